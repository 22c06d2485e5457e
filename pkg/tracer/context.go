package tracer

import (
	"encoding/binary"
	"fmt"

	tr "go.opentelemetry.io/otel/trace"
)

const (
	FlagSampled byte = 1
	FlagDebug   byte = 2
)

// TraceContext identifies a span within a trace. It is created when the span
// starts and never mutated afterwards.
type TraceContext struct {
	TraceIDHigh  uint64
	TraceID      uint64
	SpanID       uint64
	ParentSpanID uint64
	Flags        byte
}

func (c TraceContext) IsSampled() bool {
	return c.Flags&FlagSampled == FlagSampled
}

func (c TraceContext) IsDebug() bool {
	return c.Flags&FlagDebug == FlagDebug
}

// IsValid reports whether the context carries a trace and span id.
func (c TraceContext) IsValid() bool {
	return (c.TraceID != 0 || c.TraceIDHigh != 0) && c.SpanID != 0
}

// String uses the uber-trace-id layout: {trace-id}:{span-id}:{parent-span-id}:{flags}
func (c TraceContext) String() string {
	if c.TraceIDHigh == 0 {
		return fmt.Sprintf("%x:%x:%x:%x", c.TraceID, c.SpanID, c.ParentSpanID, c.Flags)
	}
	return fmt.Sprintf("%x%016x:%x:%x:%x", c.TraceIDHigh, c.TraceID, c.SpanID, c.ParentSpanID, c.Flags)
}

// OtelTraceID converts the id halves into a 128-bit otel trace id.
func OtelTraceID(high, low uint64) tr.TraceID {
	var id tr.TraceID
	binary.BigEndian.PutUint64(id[:8], high)
	binary.BigEndian.PutUint64(id[8:], low)
	return id
}

// OtelSpanID converts a 64-bit span id into an otel span id.
func OtelSpanID(id uint64) tr.SpanID {
	var sid tr.SpanID
	binary.BigEndian.PutUint64(sid[:], id)
	return sid
}
