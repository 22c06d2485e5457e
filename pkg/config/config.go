package config

import (
	"time"
)

const (
	Version = "0.3.0"

	NameUnknown = "unknown"
)

// for root
var (
	Debug = false
)

// for pkg tracer
var (
	// 同时存活的 Tracer（即 service）数量上限
	MaxNumTracer = 16

	DefaultMaxTracesPerSecond = 10.0
)

// for pkg reporter
var (
	// 上报的时间间隔，cron 的最小粒度为 1s
	ReportInterval = time.Second

	// OLAP sink 的测试账号
	SEETRACE_DEFAULT_DSN = "root:@tcp(127.0.0.1:9030)/seetrace"
)

// DATETIME(6) 的格式
const DATE6 = "2006-01-02 15:04:05.000000"

// for files
const (
	PathSpanLog = "/tmp/seetrace_spans.log.json"
	PathThrift  = "/tmp/seetrace_spans.thrift"
)
