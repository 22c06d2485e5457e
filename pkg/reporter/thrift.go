package reporter

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/jaegertracing/jaeger-idl/thrift-gen/jaeger"
)

// EncodeBatch serializes batch with the Thrift binary protocol, the format
// jaeger collectors accept.
func EncodeBatch(ctx context.Context, batch *jaeger.Batch) ([]byte, error) {
	b, err := thrift.NewTSerializer().Write(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("encoding batch: %w", err)
	}
	return b, nil
}

func DecodeBatch(ctx context.Context, b []byte) (*jaeger.Batch, error) {
	batch := jaeger.NewBatch()
	if err := thrift.NewTDeserializer().Read(ctx, batch, b); err != nil {
		return nil, fmt.Errorf("decoding batch: %w", err)
	}
	return batch, nil
}

// ErrFrameTooLarge is returned by ReadFrame for a frame longer than the
// Thrift default max message size.
var ErrFrameTooLarge = errors.New("thrift frame too large")

// ThriftSink writes every batch as a frame: a 4-byte big-endian length
// followed by the Thrift-encoded batch.
type ThriftSink struct {
	mu    sync.Mutex
	w     io.Writer
	seqNo int64
}

func NewThriftSink(w io.Writer) *ThriftSink {
	return &ThriftSink{w: w}
}

func (s *ThriftSink) Name() string {
	return "thrift"
}

func (s *ThriftSink) Send(ctx context.Context, batch *jaeger.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 其他 sink 共用同一个 batch，这里只改副本
	framed := *batch
	s.seqNo++
	seqNo := s.seqNo
	framed.SeqNo = &seqNo

	payload, err := EncodeBatch(ctx, &framed)
	if err != nil {
		return err
	}
	if len(payload) > thrift.DEFAULT_MAX_MESSAGE_SIZE {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := s.w.Write(header[:]); err != nil {
		return fmt.Errorf("writing frame header: %w", err)
	}
	if _, err := s.w.Write(payload); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

func (s *ThriftSink) Close(context.Context) error {
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// ReadFrame reads one frame written by ThriftSink.
func ReadFrame(ctx context.Context, r io.Reader) (*jaeger.Batch, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > thrift.DEFAULT_MAX_MESSAGE_SIZE {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("reading frame: %w", err)
	}
	return DecodeBatch(ctx, payload)
}
