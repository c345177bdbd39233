package codec

import (
	"bytes"

	"github.com/ltsm-go/ltsmcore/internal/framebuffer"
	"github.com/ltsm-go/ltsmcore/internal/pixelformat"
	"github.com/ltsm-go/ltsmcore/internal/region"
	"github.com/ltsm-go/ltsmcore/internal/wire"
)

// TRLECodec is Tiled Run-Length Encoding (RFC 6143 §7.7.5): 64x64 tiles,
// each a solid/packed-palette/plain-RLE body, written straight to the wire
// with no compression. ZRLE reuses the identical tile grammar over a
// persistent zlib stream -- see zrle.go and trlecommon.go.
type TRLECodec struct{}

func NewTRLE() *TRLECodec { return &TRLECodec{} }

func (c *TRLECodec) Type() ID { return TRLE }
func (c *TRLECodec) Reset()   {}

func (c *TRLECodec) Encode(w *wire.Wire, fb *framebuffer.FrameBuffer, clientFormat pixelformat.Format) error {
	for _, tile := range fb.Reg.DivideBlocks(64) {
		var buf bytes.Buffer
		if err := encodeTileBody(&buf, fb, tile, clientFormat); err != nil {
			return err
		}
		if err := w.WriteBytes(buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func (c *TRLECodec) Decode(r *wire.Wire, reg region.Region, clientFormat pixelformat.Format) (*framebuffer.FrameBuffer, error) {
	fb := framebuffer.New(reg, clientFormat)
	for _, tile := range reg.DivideBlocks(64) {
		sub, err := decodeTileBody(r.Reader(), tile, clientFormat)
		if err != nil {
			return nil, err
		}
		if err := fb.Blit(sub, sub.Reg, region.Point{X: uint16(tile.X - reg.X), Y: uint16(tile.Y - reg.Y)}); err != nil {
			return nil, err
		}
	}
	return fb, nil
}
