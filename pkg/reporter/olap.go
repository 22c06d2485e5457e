package reporter

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jaegertracing/jaeger-idl/thrift-gen/jaeger"
	"github.com/sirupsen/logrus"
	"github.com/stleox/seetrace/pkg/config"
	pkgtracer "github.com/stleox/seetrace/pkg/tracer"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

// OlapSink stores spans into table t_span of a MySQL-compatible OLAP server
// (Doris, StarRocks).
type OlapSink struct {
	conn     sqlx.SqlConn
	inserter *sqlx.BulkInserter
}

func NewOlapSink(dsn string) (*OlapSink, error) {
	// conn to the OLAP server
	if dsn == "" {
		dsn = config.SEETRACE_DEFAULT_DSN
	}
	return NewOlapSinkFromConn(sqlx.NewMysql(dsn))
}

func NewOlapSinkFromConn(conn sqlx.SqlConn) (*OlapSink, error) {
	if err := CreateSpanTable(conn); err != nil {
		logrus.WithError(err).Error("SeeTrace couldn't create table t_span")
		return nil, err
	}

	inserter, err := NewSpanInserter(conn)
	if err != nil {
		logrus.WithError(err).Error("SeeTrace couldn't open table t_span")
		return nil, err
	}
	inserter.SetResultHandler(func(_ sql.Result, err error) {
		if err != nil {
			logrus.WithError(err).Warn("SeeTrace couldn't insert into t_span")
		}
	})

	return &OlapSink{
		conn:     conn,
		inserter: inserter,
	}, nil
}

func CreateSpanTable(db sqlx.SqlConn) error {
	_, err := db.Exec("CREATE TABLE IF NOT EXISTS `t_span` " +
		"(trace_id CHAR(32), " + // hex of 128 bit
		"span_id CHAR(16), " +
		"parent_id CHAR(16), " +
		"service VARCHAR(128), " +
		"operation VARCHAR(256), " +
		"flags INT, " +
		"start_time DATETIME(6), " +
		"duration BIGINT) " + // us
		"DISTRIBUTED BY HASH(trace_id) BUCKETS 32 " +
		"PROPERTIES (\"replication_num\" = \"1\");")
	return err
}

func NewSpanInserter(db sqlx.SqlConn) (*sqlx.BulkInserter, error) {
	return sqlx.NewBulkInserter(db, "INSERT INTO `t_span` "+
		"(trace_id, "+
		"span_id, "+
		"parent_id, "+
		"service, "+
		"operation, "+
		"flags, "+
		"start_time, "+
		"duration) "+
		"VALUES (?,?,?,?,?,?,?,?)")
}

func (s *OlapSink) Name() string {
	return "olap"
}

func (s *OlapSink) Send(_ context.Context, batch *jaeger.Batch) error {
	service := serviceName(batch)
	for _, span := range batch.Spans {
		err := s.inserter.Insert(
			pkgtracer.OtelTraceID(uint64(span.TraceIdHigh), uint64(span.TraceIdLow)).String(),
			pkgtracer.OtelSpanID(uint64(span.SpanId)).String(),
			pkgtracer.OtelSpanID(uint64(span.ParentSpanId)).String(),
			service,
			span.OperationName,
			int64(span.Flags),
			time.UnixMicro(span.StartTime).UTC().Format(config.DATE6),
			span.Duration)
		if err != nil {
			return err
		}
	}
	// 每次上报即落库，不等 BulkInserter 的定时刷新
	s.inserter.Flush()
	return nil
}

func (s *OlapSink) Close(context.Context) error {
	s.inserter.Flush()
	return nil
}
