package protocol

import (
	"github.com/ltsm-go/ltsmcore/internal/pixelformat"
	"github.com/ltsm-go/ltsmcore/internal/wire"
)

// ClientInit is the shared-flag byte the client sends after the security
// result.
type ClientInit struct {
	Shared bool
}

// ReadClientInit reads the client's shared-flag byte.
func ReadClientInit(w *wire.Wire) (ClientInit, error) {
	b, err := w.ReadU8()
	if err != nil {
		return ClientInit{}, err
	}
	return ClientInit{Shared: b != 0}, nil
}

// ServerInit is the server's reply to ClientInit: display size, initial
// pixel format, and desktop name.
type ServerInit struct {
	Width, Height uint16
	Format        pixelformat.Format
	DesktopName   string
}

// WriteServerInit writes the 16-byte pixel format record (bpp, depth,
// bigendian, trueColor, rmax, gmax, bmax, rshift, gshift, bshift, 3 pad)
// followed by the length-prefixed desktop name.
func WriteServerInit(w *wire.Wire, si ServerInit) error {
	if err := w.WriteU16BE(si.Width); err != nil {
		return err
	}
	if err := w.WriteU16BE(si.Height); err != nil {
		return err
	}
	if err := writePixelFormatRecord(w, si.Format); err != nil {
		return err
	}
	if err := w.WriteString(si.DesktopName); err != nil {
		return err
	}
	return w.Flush()
}

func writePixelFormatRecord(w *wire.Wire, f pixelformat.Format) error {
	if err := w.WriteU8(f.BPP); err != nil {
		return err
	}
	if err := w.WriteU8(f.Depth); err != nil {
		return err
	}
	if err := w.WriteU8(boolByte(f.BigEndian)); err != nil {
		return err
	}
	if err := w.WriteU8(boolByte(f.TrueColour)); err != nil {
		return err
	}
	if err := w.WriteU16BE(f.RedMax); err != nil {
		return err
	}
	if err := w.WriteU16BE(f.GreenMax); err != nil {
		return err
	}
	if err := w.WriteU16BE(f.BlueMax); err != nil {
		return err
	}
	if err := w.WriteU8(f.RedShift); err != nil {
		return err
	}
	if err := w.WriteU8(f.GreenShift); err != nil {
		return err
	}
	if err := w.WriteU8(f.BlueShift); err != nil {
		return err
	}
	return w.WriteBytes([]byte{0, 0, 0}) // 3 pad bytes
}

// readPixelFormatRecord reads the 16-byte pixel format record from
// SetPixelFormat. Alpha is never carried on the
// wire record; AlphaMax/AlphaShift stay zero.
func readPixelFormatRecord(w *wire.Wire) (pixelformat.Format, error) {
	var f pixelformat.Format
	bpp, err := w.ReadU8()
	if err != nil {
		return f, err
	}
	depth, err := w.ReadU8()
	if err != nil {
		return f, err
	}
	bigEndian, err := w.ReadU8()
	if err != nil {
		return f, err
	}
	trueColour, err := w.ReadU8()
	if err != nil {
		return f, err
	}
	redMax, err := w.ReadU16BE()
	if err != nil {
		return f, err
	}
	greenMax, err := w.ReadU16BE()
	if err != nil {
		return f, err
	}
	blueMax, err := w.ReadU16BE()
	if err != nil {
		return f, err
	}
	redShift, err := w.ReadU8()
	if err != nil {
		return f, err
	}
	greenShift, err := w.ReadU8()
	if err != nil {
		return f, err
	}
	blueShift, err := w.ReadU8()
	if err != nil {
		return f, err
	}
	if err := w.Skip(3); err != nil {
		return f, err
	}
	f = pixelformat.Format{
		BPP: bpp, Depth: depth,
		BigEndian: bigEndian != 0, TrueColour: trueColour != 0,
		RedMax: redMax, GreenMax: greenMax, BlueMax: blueMax,
		RedShift: redShift, GreenShift: greenShift, BlueShift: blueShift,
	}
	return f, nil
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
