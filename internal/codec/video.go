package codec

import (
	"github.com/ltsm-go/ltsmcore/internal/framebuffer"
	"github.com/ltsm-go/ltsmcore/internal/pixelformat"
	"github.com/ltsm-go/ltsmcore/internal/region"
	"github.com/ltsm-go/ltsmcore/internal/wire"
)

// VideoEncoder and VideoDecoder describe the H264/AV1/VP8 slot in the
// server's priority list. No real FFmpeg cgo binding
// ships in this module by default -- a static Go binary cross-compiling
// for every LTSM deployment target cannot assume a cgo toolchain is
// present, and no production-quality pure-Go H264/AV1/VP8 encoder
// exists. A `ffmpeg` build tag is reserved for wiring a real
// binding (github.com/asticode/go-astiav is the standard choice) behind
// these interfaces; no such file ships, so AvailableVideoCodecs reports an
// empty set and the session falls through to the LTSM/ZRLE/.../Raw chain.
type VideoEncoder interface {
	Codec
	// KeyFrame forces the next Encode call to emit an intra-only frame,
	// used after a client (re)negotiates this codec mid-session.
	KeyFrame()
	// Resize tears the encoder context down and rebuilds it for the new
	// display dimensions; the next frame is a key frame.
	Resize(width, height uint16)
}

type VideoDecoder interface {
	Decode(r *wire.Wire, reg region.Region, clientFormat pixelformat.Format) (*framebuffer.FrameBuffer, error)
}

// VideoFactory constructs a VideoEncoder/VideoDecoder pair for one of
// VideoH264, VideoAV1, VideoVP8. Registered only by a build-tagged file
// that imports a real codec binding.
type VideoFactory func() (VideoEncoder, VideoDecoder)

var videoFactories = map[ID]VideoFactory{}

// RegisterVideoFactory installs a real backend for id. Nothing in this
// module calls it, so the video registry is empty.
func RegisterVideoFactory(id ID, f VideoFactory) {
	videoFactories[id] = f
}

// AvailableVideoCodecs reports which of VideoH264/VideoAV1/VideoVP8 have a
// registered backend in this build.
func AvailableVideoCodecs() []ID {
	ids := make([]ID, 0, len(videoFactories))
	for id := range videoFactories {
		ids = append(ids, id)
	}
	return ids
}
