// Package session implements session orchestration: the
// glue between ProtocolCore, the codec Registry, ChannelMux, and the
// Extended Clipboard negotiator, exposed to the outside world only through
// the FrameSource/InputSink/ClipboardEndpoint/DisplayControl interfaces.
//
// The display feed arrives through an injected FrameSource, errors are
// typed ltsmerr values (unknown message types stay fatal at the read
// loop's top level), and the long-lived activities run under
// golang.org/x/sync/errgroup so shutdown can join every worker.
package session

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ltsm-go/ltsmcore/internal/channelmux"
	"github.com/ltsm-go/ltsmcore/internal/channelmux/fuse"
	"github.com/ltsm-go/ltsmcore/internal/channelmux/pkcs11"
	"github.com/ltsm-go/ltsmcore/internal/codec"
	"github.com/ltsm-go/ltsmcore/internal/extclipboard"
	"github.com/ltsm-go/ltsmcore/internal/ltsmerr"
	"github.com/ltsm-go/ltsmcore/internal/pixelformat"
	"github.com/ltsm-go/ltsmcore/internal/protocol"
	"github.com/ltsm-go/ltsmcore/internal/region"
	"github.com/ltsm-go/ltsmcore/internal/wire"
)

// Config holds the per-session tunables.
type Config struct {
	DesktopName string

	// Workers sizes the tile encoder pool; 0 means the default of 2.
	Workers int

	Auths        []protocol.Authenticator
	AllowChannel channelmux.AllowFunc

	ClipboardCaps extclipboard.Capabilities

	// ActivationTimeout tears the session down if no SetEncodings arrives
	// within it; 0 means the default of 30s.
	ActivationTimeout time.Duration

	// ClipboardTargetTimeout/ClipboardDataTimeout bound local selection
	// reads.
	ClipboardTargetTimeout time.Duration
	ClipboardDataTimeout   time.Duration

	// TileSize is the block size damage is subdivided into before handing
	// tiles to the encoder pool.
	TileSize uint16

	// Logger receives session diagnostics (client version, encodings,
	// unknown system commands); nil means log.Default().
	Logger *log.Logger
}

func (c *Config) setDefaults() {
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.ActivationTimeout <= 0 {
		c.ActivationTimeout = 30 * time.Second
	}
	if c.ClipboardTargetTimeout <= 0 {
		c.ClipboardTargetTimeout = 100 * time.Millisecond
	}
	if c.ClipboardDataTimeout <= 0 {
		c.ClipboardDataTimeout = 3 * time.Second
	}
	if c.TileSize == 0 {
		c.TileSize = 64
	}
}

// updateRequest is one queued FramebufferUpdateRequest, passed from the
// read loop to the frame producer.
type updateRequest struct {
	Incremental bool
	Reg         region.Region
}

// Session is one live RFB connection.
type Session struct {
	cfg Config

	w      *wire.Wire
	pool   *codec.Pool
	codecs *codec.Registry
	mux    *channelmux.Mux
	clip   *extclipboard.Negotiator

	frames    FrameSource
	input     InputSink
	clipboard ClipboardEndpoint
	display   DisplayControl

	// updateMu is held by the frame producer for the whole of one
	// FramebufferUpdate (snapshot, encode, write); SetPixelFormat and
	// SetEncodings take it so a renegotiation waits for the in-flight
	// update to drain.
	updateMu sync.Mutex

	stateMu           sync.Mutex
	clientFormat      pixelformat.Format
	clientEncodings   []codec.ID
	continuousUpdates bool
	continuousRegion  region.Region

	damageMu sync.Mutex
	damage   region.Region

	updateReqCh chan updateRequest
	activatedCh chan struct{}
	activateOne sync.Once

	bridgesMu sync.Mutex
	fuseBridges   map[uint8]*fuse.Bridge
	pkcs11Bridges map[uint8]*pkcs11.Bridge

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New builds a Session ready to Serve over stream.
func New(stream wire.SecureStream, cfg Config, frames FrameSource, input InputSink, clip ClipboardEndpoint, display DisplayControl) *Session {
	cfg.setDefaults()
	return &Session{
		cfg:           cfg,
		w:             wire.New(stream),
		pool:          codec.NewPool(cfg.Workers),
		codecs:        codec.NewRegistry(),
		clip:          extclipboard.NewNegotiator(cfg.ClipboardCaps),
		frames:        frames,
		input:         input,
		clipboard:     clip,
		display:       display,
		updateReqCh:   make(chan updateRequest, 128),
		activatedCh:   make(chan struct{}),
		fuseBridges:   make(map[uint8]*fuse.Bridge),
		pkcs11Bridges: make(map[uint8]*pkcs11.Bridge),
		stopCh:        make(chan struct{}),
	}
}

// Serve runs the handshake and then the session's three long-lived
// activities until ctx is canceled, the peer disconnects, or a
// fatal error occurs. It always closes the underlying Wire before
// returning.
func (s *Session) Serve(ctx context.Context) error {
	defer s.shutdown()

	version, err := protocol.Handshake(s.w)
	if err != nil {
		return err
	}
	next, err := protocol.NegotiateSecurity(s.w, version, s.cfg.Auths)
	if err != nil {
		return err
	}
	s.w = next
	s.mux = channelmux.New(s.cfg.AllowChannel, senderFunc(s.sendFrame))

	if _, err := protocol.ReadClientInit(s.w); err != nil {
		return err
	}

	width, height := s.frames.Dimensions()
	s.clientFormat = pixelformat.RGBA32
	if err := protocol.WriteServerInit(s.w, protocol.ServerInit{
		Width: width, Height: height,
		Format:      s.clientFormat,
		DesktopName: s.cfg.DesktopName,
	}); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.activationTimer(gctx) })
	g.Go(func() error { return s.pushFramesLoop(gctx) })
	g.Go(func() error { return s.readLoop() })

	return g.Wait()
}

// readLoop is the single-threaded RFB message dispatcher: it never runs
// concurrently with itself, so client state (format,
// encodings) needs no lock beyond what concurrent readers (frame producer)
// of that same state require.
func (s *Session) readLoop() error {
	for {
		select {
		case <-s.stopCh:
			return nil
		default:
		}
		if err := protocol.DispatchOne(s.w, s); err != nil {
			if !ltsmerr.IsFatal(err) {
				// A side-channel failure only takes down that channel;
				// the RFB session keeps serving.
				s.cfg.Logger.Printf("channel error: %v", err)
				continue
			}
			return err
		}
	}
}

func (s *Session) activationTimer(ctx context.Context) error {
	select {
	case <-s.activatedCh:
		return nil
	case <-s.stopCh:
		return nil
	case <-ctx.Done():
		return nil
	case <-time.After(s.cfg.ActivationTimeout):
		s.shutdown()
		return ltsmerr.New(ltsmerr.Timeout, "session not activated")
	}
}

func (s *Session) markActivated() {
	s.activateOne.Do(func() { close(s.activatedCh) })
}

// shutdown is idempotent; it drains
// nothing itself (in-flight encoders finish their current EncodeAll call
// since Pool.EncodeAll isn't interrupted mid-tile) but stops the producer
// and read loops and tears down every channel before closing the Wire.
func (s *Session) shutdown() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if s.mux != nil {
			s.mux.Shutdown()
		}
		_ = s.w.Close()
	})
}

type senderFunc func(channelmux.Frame) error

func (f senderFunc) SendFrame(fr channelmux.Frame) error { return f(fr) }

// sendFrame writes one outbound LTSM channel frame as a FramebufferUpdate
// rectangle.
func (s *Session) sendFrame(fr channelmux.Frame) error {
	s.w.Lock()
	defer s.w.Unlock()
	if err := protocol.WriteFramebufferUpdateHeader(s.w, 1); err != nil {
		return err
	}
	if err := channelmux.WriteServerFrame(s.w, fr); err != nil {
		return err
	}
	return s.w.Flush()
}
