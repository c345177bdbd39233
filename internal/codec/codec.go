// Package codec implements the pluggable region encoders/decoders:
// Raw, RRE, CoRRE, Hextile, TRLE, ZRLE, Zlib, LZ4, JPEG, QOI,
// and a video-codec family, plus the server's fixed selection priority
// and a tile worker pool.
//
// The RRE/Hextile/TRLE/ZRLE wire shapes follow RFC 6143 §7.7, implemented
// here as bidirectional
// Codec, which a session holds for its lifetime so stateful codecs (ZRLE,
// Zlib) can keep a persistent deflate/inflate stream across rectangles
//.
package codec

import (
	"github.com/ltsm-go/ltsmcore/internal/framebuffer"
	"github.com/ltsm-go/ltsmcore/internal/pixelformat"
	"github.com/ltsm-go/ltsmcore/internal/region"
	"github.com/ltsm-go/ltsmcore/internal/wire"
)

// ID is a signed 32-bit encoding code; negative codes are pseudo-encodings
//.
type ID int32

// Encoding ids from RFC 6143 plus the LTSM extensions.
const (
	Raw      ID = 0
	CopyRect ID = 1
	RRE      ID = 2
	CoRRE    ID = 4
	Hextile  ID = 5
	Zlib     ID = 6
	TRLE     ID = 15
	ZRLE     ID = 16

	// LTSM-family pseudo/data encodings.
	QOI ID = -503
	LZ4 ID = -504

	// JPEG tile encoding (Tight-style, simplified for this module to a
	// standalone whole-region JPEG payload rather than Tight's filter
	// chain).
	JPEG ID = -505

	// Video codec family.
	VideoH264 ID = -510
	VideoAV1  ID = -511
	VideoVP8  ID = -512

	// LTSM in-band channel mux.
	LTSM ID = 0x4C54534D

	// Cursor pseudo-encodings.
	RichCursor ID = -239
	LTSMCursor ID = -412

	// Signaling pseudo-encodings.
	ContinuousUpdates   ID = -313
	ExtendedDesktopSize ID = -308
	LastRect            ID = -224

	// ExtendedClipboard is a module-local id for the capability flag; the
	// real wire signaling is ClientCutText's negative length, not a
	// SetEncodings id, so this exists only for encoder-chain bookkeeping.
	ExtendedClipboard ID = -1000

	// Compression-level pseudo-encodings map to zlib levels 9..1
	//.
	compressLevelBase ID = -247
)

// CompressLevelFromPseudo maps one of the -247..-255 pseudo-encoding ids to
// a zlib compression level 9..1, and reports whether id was in that range.
func CompressLevelFromPseudo(id ID) (level int, ok bool) {
	if id > compressLevelBase || id < compressLevelBase-8 {
		return 0, false
	}
	return 9 - int(compressLevelBase-id), true
}

// Codec is the capability trait every region encoder/decoder implements,
// replacing the source's EncodingBase inheritance hierarchy with Go
// interface dispatch.
type Codec interface {
	// Type is this codec's encoding id.
	Type() ID

	// Encode writes fb (already in the server's internal pixel format) as
	// clientFormat-encoded bytes to w. Implementations convert pixel
	// format themselves.
	Encode(w *wire.Wire, fb *framebuffer.FrameBuffer, clientFormat pixelformat.Format) error

	// Decode reads an encoded rectangle body of the given region and
	// client pixel format from r, returning the decoded FrameBuffer in
	// clientFormat.
	Decode(r *wire.Wire, reg region.Region, clientFormat pixelformat.Format) (*framebuffer.FrameBuffer, error)

	// Reset clears any per-rectangle state a tile codec accumulates
	// (Hextile's last background/foreground). Stateful zlib codecs do NOT
	// reset their dictionary here -- see ResetSession.
	Reset()
}

// SessionResetter is implemented by codecs whose state spans the whole
// session (ZRLE, Zlib, LZ4): their compression stream persists across all
// rectangles for the session's lifetime and is only ever
// cleared by an explicit ResetSession call, never by Reset.
type SessionResetter interface {
	ResetSession()
}
