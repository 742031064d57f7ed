package writer

import (
	"context"
	"io"

	"github.com/wudi/quotekit/ir/raw"
)

type Config struct {
	// Version overrides the header version; empty keeps the document's.
	Version string
	// Compression is the zlib level used for streams; zero means default.
	Compression int
	// CompressStreams flate-encodes streams that carry no filter yet.
	CompressStreams bool
	// Deterministic derives the file ID from content instead of randomness.
	Deterministic bool
	// GarbageCollect drops objects unreachable from the trailer.
	GarbageCollect bool
}

type Writer interface {
	Write(ctx context.Context, doc *raw.Document, w io.Writer, cfg Config) error
	SerializeObject(ref raw.ObjectRef, obj raw.Object) ([]byte, error)
}

// Interceptor observes objects as they are written.
type Interceptor interface {
	BeforeWrite(ctx context.Context, ref raw.ObjectRef, obj raw.Object) error
	AfterWrite(ctx context.Context, ref raw.ObjectRef, bytesWritten int64) error
}

type WriterBuilder struct{ interceptors []Interceptor }

func (b *WriterBuilder) WithInterceptor(i Interceptor) *WriterBuilder {
	b.interceptors = append(b.interceptors, i)
	return b
}
func (b *WriterBuilder) Build() Writer { return &impl{interceptors: b.interceptors} }
