package codec

import (
	"bytes"

	"github.com/ltsm-go/ltsmcore/internal/framebuffer"
	"github.com/ltsm-go/ltsmcore/internal/pixelformat"
	"github.com/ltsm-go/ltsmcore/internal/region"
	"github.com/ltsm-go/ltsmcore/internal/wire"
)

// ZRLECodec is TRLE's tile grammar (trlecommon.go) carried over a
// persistent zlib stream scoped to the whole session (RFC 6143 §7.7.6):
// one zlib.Writer/zlib.Reader pair lives for as long as the
// client keeps this codec selected, so its dictionary compounds across
// every FramebufferUpdate rather than resetting per rectangle.
type ZRLECodec struct {
	enc *zlibEncodeStream
	dec *zlibDecodeStream
}

func NewZRLE() *ZRLECodec {
	return &ZRLECodec{enc: newZlibEncodeStream(), dec: newZlibDecodeStream()}
}

func (c *ZRLECodec) Type() ID { return ZRLE }

// Reset is a no-op: per-rectangle tile state (none is carried) is distinct
// from the session-scoped zlib dictionary, which ResetSession clears.
func (c *ZRLECodec) Reset() {}

// SetCompressionLevel applies a client-requested zlib level; effective only
// before the first rectangle has been compressed.
func (c *ZRLECodec) SetCompressionLevel(level int) { c.enc.setLevel(level) }

func (c *ZRLECodec) ResetSession() {
	c.enc = newZlibEncodeStream()
	c.dec = newZlibDecodeStream()
}

func (c *ZRLECodec) Encode(w *wire.Wire, fb *framebuffer.FrameBuffer, clientFormat pixelformat.Format) error {
	var plain bytes.Buffer
	for _, tile := range fb.Reg.DivideBlocks(64) {
		if err := encodeTileBody(&plain, fb, tile, clientFormat); err != nil {
			return err
		}
	}
	framed, err := c.enc.compress(plain.Bytes())
	if err != nil {
		return err
	}
	if err := w.WriteU32BE(uint32(len(framed))); err != nil {
		return err
	}
	return w.WriteBytes(framed)
}

func (c *ZRLECodec) Decode(r *wire.Wire, reg region.Region, clientFormat pixelformat.Format) (*framebuffer.FrameBuffer, error) {
	n, err := r.ReadU32BE()
	if err != nil {
		return nil, err
	}
	framed := make([]byte, n)
	if err := r.ReadExact(framed); err != nil {
		return nil, err
	}
	stream, err := c.dec.feedBytes(framed)
	if err != nil {
		return nil, err
	}

	fb := framebuffer.New(reg, clientFormat)
	for _, tile := range reg.DivideBlocks(64) {
		sub, err := decodeTileBody(stream, tile, clientFormat)
		if err != nil {
			return nil, err
		}
		if err := fb.Blit(sub, sub.Reg, region.Point{X: uint16(tile.X - reg.X), Y: uint16(tile.Y - reg.Y)}); err != nil {
			return nil, err
		}
	}
	return fb, nil
}
