package reporter

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jaegertracing/jaeger-idl/thrift-gen/jaeger"
	r "github.com/stretchr/testify/require"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

func TestOlapSink_CreateTableError(t *testing.T) {
	db, mock, err := sqlmock.New()
	r.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS `t_span`").WillReturnError(errors.New("no such database"))

	_, err = NewOlapSinkFromConn(sqlx.NewSqlConnFromDB(db))
	r.Error(t, err)
	r.NoError(t, mock.ExpectationsWereMet())
}

func TestOlapSink_Send(t *testing.T) {
	db, mock, err := sqlmock.New()
	r.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS `t_span`").WillReturnResult(sqlmock.NewResult(0, 0))
	sink, err := NewOlapSinkFromConn(sqlx.NewSqlConnFromDB(db))
	r.NoError(t, err)

	// 两个 span 合并成一条 INSERT
	mock.ExpectExec("INSERT INTO `t_span` .*'0000000000000001'.*'get_user'.*'0000000000000002'.*'list_users'").
		WillReturnResult(sqlmock.NewResult(0, 2))

	batch := mockBatch("users",
		&jaeger.Span{TraceIdLow: 1, SpanId: 1, OperationName: "get_user", Flags: 1, StartTime: 1_700_000_000_000_000, Duration: 10},
		&jaeger.Span{TraceIdLow: 1, SpanId: 2, ParentSpanId: 1, OperationName: "list_users", Flags: 1, StartTime: 1_700_000_000_000_100, Duration: 5},
	)
	r.NoError(t, sink.Send(context.Background(), batch))
	r.NoError(t, sink.Close(context.Background()))
	r.NoError(t, mock.ExpectationsWereMet())
}
