package tracer

import (
	"sync"
	"time"
)

// Tag is a single key/value attached to a span or a log record.
type Tag struct {
	Key   string
	Value any
}

// LogRecord is a timestamped event attached to a span.
type LogRecord struct {
	Timestamp time.Time
	Fields    []Tag
}

// Span is one timed operation of a trace. It belongs to the goroutine that
// started it until Finish hands it to the collector.
type Span struct {
	tracer *Tracer

	context       TraceContext
	operationName string
	startTime     time.Time

	// 被调用方并发修改，Finish 后只读
	mu       sync.Mutex
	tags     []Tag
	logs     []LogRecord
	finished bool
}

func (s *Span) Context() TraceContext {
	return s.context
}

func (s *Span) OperationName() string {
	return s.operationName
}

func (s *Span) StartTime() time.Time {
	return s.startTime
}

// SetTag appends a tag. Tags set after Finish are ignored.
func (s *Span) SetTag(key string, value any) *Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finished {
		s.tags = append(s.tags, Tag{Key: key, Value: value})
	}
	return s
}

// Log records an event at the current time.
func (s *Span) Log(fields ...Tag) {
	s.LogWithTime(time.Now(), fields...)
}

func (s *Span) LogWithTime(ts time.Time, fields ...Tag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finished {
		s.logs = append(s.logs, LogRecord{Timestamp: ts, Fields: fields})
	}
}

// Tags returns a copy of the span tags in insertion order.
func (s *Span) Tags() []Tag {
	s.mu.Lock()
	defer s.mu.Unlock()
	tags := make([]Tag, len(s.tags))
	copy(tags, s.tags)
	return tags
}

// Logs returns a copy of the span log records in insertion order.
func (s *Span) Logs() []LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	logs := make([]LogRecord, len(s.logs))
	copy(logs, s.logs)
	return logs
}

func (s *Span) Finish() {
	s.FinishWithTime(time.Now())
}

// FinishWithTime ends the span at endTime and records it. Only the first
// call has any effect.
func (s *Span) FinishWithTime(endTime time.Time) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	s.mu.Unlock()

	if s.tracer != nil {
		s.tracer.collector.Record(s, endTime)
	}
}

// SpanOption configures StartSpan.
type SpanOption func(*spanOptions)

type spanOptions struct {
	parent    TraceContext
	startTime time.Time
	tags      []Tag
	debug     bool
}

// ChildOf makes the new span a child of parent. An invalid parent starts a
// new trace.
func ChildOf(parent TraceContext) SpanOption {
	return func(o *spanOptions) {
		o.parent = parent
	}
}

func WithStartTime(t time.Time) SpanOption {
	return func(o *spanOptions) {
		o.startTime = t
	}
}

func WithTags(tags ...Tag) SpanOption {
	return func(o *spanOptions) {
		o.tags = append(o.tags, tags...)
	}
}

// WithDebug forces a new trace to be sampled and flags it for debug,
// bypassing the sampler.
func WithDebug() SpanOption {
	return func(o *spanOptions) {
		o.debug = true
	}
}
