package codec

import (
	"bytes"
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/ltsm-go/ltsmcore/internal/framebuffer"
	"github.com/ltsm-go/ltsmcore/internal/pixelformat"
	"github.com/ltsm-go/ltsmcore/internal/region"
	"github.com/ltsm-go/ltsmcore/internal/wire"
)

// bufferStream adapts a bytes.Buffer to wire.SecureStream so Pool can run
// a Codec's normal Encode(w *wire.Wire, ...) signature against an
// in-memory sink instead of the live connection.
type bufferStream struct{ buf *bytes.Buffer }

func (b bufferStream) Read(p []byte) (int, error)  { return b.buf.Read(p) }
func (b bufferStream) Write(p []byte) (int, error) { return b.buf.Write(p) }
func (b bufferStream) Close() error                { return nil }

func encodeWithWireBuffer(c Codec, buf *bytes.Buffer, fb *framebuffer.FrameBuffer, clientFormat pixelformat.Format) error {
	w := wire.New(bufferStream{buf: buf})
	if err := c.Encode(w, fb, clientFormat); err != nil {
		return err
	}
	return w.Flush()
}

// EncodeToBytes runs one Codec.Encode against an in-memory sink and returns
// the rectangle body it produced.
func EncodeToBytes(c Codec, fb *framebuffer.FrameBuffer, clientFormat pixelformat.Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeWithWireBuffer(c, &buf, fb, clientFormat); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Job is one damage rectangle to encode. NewCodec must return a fresh,
// stateless Codec instance per call (Raw/RRE/CoRRE/Hextile/TRLE/JPEG/QOI
// are safe, since a fresh Hextile starts each rectangle with no carried
// background/foreground; ZRLE/Zlib/LZ4 carry stream state across calls and
// must instead be driven serially through a single Registry instance,
// never through Pool).
type Job struct {
	Reg      region.Region
	NewCodec func() Codec
}

// Result is a job's encoded rectangle body, in wire order (header +
// payload is the caller's job -- Pool only returns the payload bytes).
type Result struct {
	Reg  region.Region
	Type ID
	Data []byte
}

// Pool runs independent rectangle encodes concurrently, bounded to
// Workers goroutines, then hands results back in the caller's original
// order so the session can write them to the wire under one send-lock
// pass. Built on golang.org/x/sync/errgroup so the whole batch is a
// joinable, cancelable, limited-concurrency group.
type Pool struct {
	Workers int
}

func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{Workers: workers}
}

// EncodeAll runs jobs against fb, returning one Result per job in the same
// order, or the first error encountered (encoding then stops for the
// remaining in-flight jobs via ctx cancellation).
func (p *Pool) EncodeAll(ctx context.Context, fb *framebuffer.FrameBuffer, jobs []Job, clientFormat pixelformat.Format) ([]Result, error) {
	results := make([]Result, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Workers)

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			c := job.NewCodec()
			var buf bytes.Buffer
			sub := framebuffer.New(region.New(0, 0, job.Reg.W, job.Reg.H), fb.Format)
			if err := sub.Blit(fb, job.Reg, region.Point{}); err != nil {
				return err
			}
			if err := encodeWithWireBuffer(c, &buf, sub, clientFormat); err != nil {
				return err
			}
			results[i] = Result{Reg: job.Reg, Type: c.Type(), Data: buf.Bytes()}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
