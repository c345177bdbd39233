package session

import (
	"github.com/ltsm-go/ltsmcore/internal/extclipboard"
	"github.com/ltsm-go/ltsmcore/internal/framebuffer"
	"github.com/ltsm-go/ltsmcore/internal/protocol"
	"github.com/ltsm-go/ltsmcore/internal/region"
)

// FrameSource is the display acquisition backend: ask
// for a current-screen pixmap of a given region, and be notified of damage
// and resize. Implementations live outside this module (an X11/Wayland
// capture backend, a synthetic test source, ...).
type FrameSource interface {
	// Dimensions returns the current desktop size.
	Dimensions() (width, height uint16)
	// Snapshot returns a FrameBuffer covering reg as it currently stands,
	// with its own local origin at (0,0) -- i.e. pixel (0,0) of the
	// returned buffer is screen pixel (reg.X, reg.Y), not absolute (0,0).
	Snapshot(reg region.Region) (*framebuffer.FrameBuffer, error)
	// Damage returns a channel of regions that have changed since the last
	// receive; the channel is closed when the source shuts down.
	Damage() <-chan region.Region
}

// InputSink is the input injection backend.
type InputSink interface {
	KeyEvent(down bool, key uint32) error
	PointerEvent(buttonMask uint8, x, y uint16) error
}

// ClipboardEndpoint reads and writes local clipboard content.
// ReadClipboard honors the per-type data a Provide frame needs;
// WriteClipboard stores what the peer pasted.
type ClipboardEndpoint interface {
	ReadClipboard(types extclipboard.TypeMask) (map[extclipboard.TypeMask][]byte, error)
	WriteClipboard(text string) error
}

// DisplayControl changes the randr-equivalent mode on a SetDesktopSize
// request, returning the layout actually applied.
type DisplayControl interface {
	SetDesktopSize(screens []protocol.ScreenInfo) (width, height uint16, err error)
}
