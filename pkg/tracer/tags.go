package tracer

import (
	"fmt"

	"github.com/jaegertracing/jaeger-idl/thrift-gen/jaeger"
)

func buildTags(tags []Tag) []*jaeger.Tag {
	out := make([]*jaeger.Tag, 0, len(tags))
	for _, tag := range tags {
		out = append(out, BuildTag(tag.Key, tag.Value))
	}
	return out
}

func buildLogs(logs []LogRecord) []*jaeger.Log {
	out := make([]*jaeger.Log, 0, len(logs))
	for _, l := range logs {
		out = append(out, &jaeger.Log{
			Timestamp: toMicros(l.Timestamp),
			Fields:    buildTags(l.Fields),
		})
	}
	return out
}

// BuildTag converts a Go value into a typed jaeger tag. Values without a
// native jaeger type are stored as their fmt representation.
func BuildTag(key string, value any) *jaeger.Tag {
	tag := &jaeger.Tag{Key: key}
	switch v := value.(type) {
	case string:
		tag.VType, tag.VStr = jaeger.TagType_STRING, &v
	case []byte:
		tag.VType, tag.VBinary = jaeger.TagType_BINARY, v
	case bool:
		tag.VType, tag.VBool = jaeger.TagType_BOOL, &v
	case int:
		setLong(tag, int64(v))
	case int8:
		setLong(tag, int64(v))
	case int16:
		setLong(tag, int64(v))
	case int32:
		setLong(tag, int64(v))
	case int64:
		setLong(tag, v)
	case uint:
		setLong(tag, int64(v))
	case uint8:
		setLong(tag, int64(v))
	case uint16:
		setLong(tag, int64(v))
	case uint32:
		setLong(tag, int64(v))
	case uint64:
		setLong(tag, int64(v))
	case float32:
		f := float64(v)
		tag.VType, tag.VDouble = jaeger.TagType_DOUBLE, &f
	case float64:
		tag.VType, tag.VDouble = jaeger.TagType_DOUBLE, &v
	case fmt.Stringer:
		s := v.String()
		tag.VType, tag.VStr = jaeger.TagType_STRING, &s
	case error:
		s := v.Error()
		tag.VType, tag.VStr = jaeger.TagType_STRING, &s
	default:
		s := fmt.Sprint(v)
		tag.VType, tag.VStr = jaeger.TagType_STRING, &s
	}
	return tag
}

func setLong(tag *jaeger.Tag, v int64) {
	tag.VType, tag.VLong = jaeger.TagType_LONG, &v
}

// TagValue returns the Go value carried by a jaeger tag.
func TagValue(tag *jaeger.Tag) any {
	switch tag.VType {
	case jaeger.TagType_STRING:
		return tag.GetVStr()
	case jaeger.TagType_DOUBLE:
		return tag.GetVDouble()
	case jaeger.TagType_BOOL:
		return tag.GetVBool()
	case jaeger.TagType_LONG:
		return tag.GetVLong()
	case jaeger.TagType_BINARY:
		return tag.GetVBinary()
	default:
		return nil
	}
}
