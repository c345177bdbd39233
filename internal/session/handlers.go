package session

import (
	"github.com/ltsm-go/ltsmcore/internal/channelmux"
	"github.com/ltsm-go/ltsmcore/internal/codec"
	"github.com/ltsm-go/ltsmcore/internal/extclipboard"
	"github.com/ltsm-go/ltsmcore/internal/pixelformat"
	"github.com/ltsm-go/ltsmcore/internal/protocol"
	"github.com/ltsm-go/ltsmcore/internal/region"
)

var _ protocol.Handlers = (*Session)(nil)

// SetPixelFormat implements protocol.Handlers. The read loop is the only
// writer of clientFormat, so no lock is needed against itself -- only
// against the frame producer, which takes stateMu to read it.
func (s *Session) SetPixelFormat(f pixelformat.Format) error {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()
	s.stateMu.Lock()
	s.clientFormat = f
	s.stateMu.Unlock()
	return nil
}

// SetEncodings implements protocol.Handlers. The first SetEncodings
// activates the session. Compression-level pseudo-encodings are applied to
// the codec registry, and the rebuilt encoder chain is primed with a
// full-screen update.
func (s *Session) SetEncodings(ids []codec.ID) error {
	s.updateMu.Lock()
	s.stateMu.Lock()
	s.clientEncodings = ids
	s.stateMu.Unlock()
	s.updateMu.Unlock()
	s.markActivated()

	for _, id := range ids {
		if level, ok := codec.CompressLevelFromPseudo(id); ok {
			s.codecs.SetCompressionLevel(level)
		}
	}

	if clipboardAdvertised(ids) {
		caps := s.clip.Caps()
		if err := extclipboard.WriteExtendedCutText(s.w, protocol.MsgServerCutText, caps); err != nil {
			return err
		}
	}

	width, height := s.frames.Dimensions()
	select {
	case s.updateReqCh <- updateRequest{Reg: region.New(0, 0, width, height)}:
	case <-s.stopCh:
	}
	return nil
}

func clipboardAdvertised(ids []codec.ID) bool {
	for _, id := range ids {
		if id == codec.ExtendedClipboard {
			return true
		}
	}
	return false
}

// FramebufferUpdateRequest implements protocol.Handlers: queues the
// request for the frame producer goroutine, never blocking the read loop.
func (s *Session) FramebufferUpdateRequest(incremental bool, reg region.Region) error {
	select {
	case s.updateReqCh <- updateRequest{Incremental: incremental, Reg: reg}:
	case <-s.stopCh:
	}
	return nil
}

func (s *Session) KeyEvent(down bool, key uint32) error {
	return s.input.KeyEvent(down, key)
}

func (s *Session) PointerEvent(buttonMask uint8, x, y uint16) error {
	return s.input.PointerEvent(buttonMask, x, y)
}

// ClientCutText implements protocol.Handlers for a plain paste.
func (s *Session) ClientCutText(text string) error {
	return s.clipboard.WriteClipboard(text)
}

// ClientCutTextExtended implements protocol.Handlers for Extended
// Clipboard frames carried inside ClientCutText's negative-length form.
func (s *Session) ClientCutTextExtended(body []byte) error {
	fr, err := extclipboard.Decode(body)
	if err != nil {
		return err
	}
	switch fr.Op {
	case extclipboard.OpRequest:
		return s.handleClipboardRequest(fr.Types)
	case extclipboard.OpPeek:
		return s.notifyClipboardAvailability()
	case extclipboard.OpNotify:
		// Peer advertises availability; nothing to pre-fetch until asked.
		return nil
	case extclipboard.OpProvide:
		return s.handleClipboardProvide(fr)
	case extclipboard.OpCaps:
		// The client's own capability announcement; no action required
		// beyond having received it.
		return nil
	}
	return nil
}

func (s *Session) handleClipboardRequest(types extclipboard.TypeMask) error {
	send, ok := s.clip.BeginRequest(types)
	if !ok {
		return nil
	}
	return s.provideClipboard(send)
}

func (s *Session) provideClipboard(types extclipboard.TypeMask) error {
	data, err := s.clipboard.ReadClipboard(types)
	if err != nil {
		return err
	}
	body, err := extclipboard.EncodeProvide(data)
	if err != nil {
		return err
	}
	if err := extclipboard.WriteExtendedCutText(s.w, protocol.MsgServerCutText, body); err != nil {
		return err
	}
	remaining, more := s.clip.CompleteProvide(types)
	if more {
		return s.provideClipboard(remaining)
	}
	return nil
}

func (s *Session) notifyClipboardAvailability() error {
	data, err := s.clipboard.ReadClipboard(extclipboard.TypeMask(0))
	if err != nil {
		return err
	}
	var types extclipboard.TypeMask
	for t := range data {
		types |= t
	}
	body := extclipboard.EncodeNotify(types)
	return extclipboard.WriteExtendedCutText(s.w, protocol.MsgServerCutText, body)
}

func (s *Session) handleClipboardProvide(fr extclipboard.Frame) error {
	text := fr.Payloads[extclipboard.TypeText]
	if text == nil {
		return nil
	}
	return s.clipboard.WriteClipboard(string(text))
}

// EnableContinuousUpdates implements protocol.Handlers.
func (s *Session) EnableContinuousUpdates(enable bool, reg region.Region) error {
	s.stateMu.Lock()
	s.continuousUpdates = enable
	s.continuousRegion = reg
	s.stateMu.Unlock()
	return nil
}

// SetDesktopSize implements protocol.Handlers: on success
// it echoes ExtendedDesktopSize back with the confirmed layout, matching
// the RFC 6143 extension's reply semantics.
func (s *Session) SetDesktopSize(screens []protocol.ScreenInfo) error {
	width, height, err := s.display.SetDesktopSize(screens)
	if err != nil {
		return err
	}
	s.codecs.ResizeVideo(width, height)
	s.w.Lock()
	defer s.w.Unlock()
	if err := protocol.WriteFramebufferUpdateHeader(s.w, 1); err != nil {
		return err
	}
	if err := protocol.WriteRectHeader(s.w, protocol.RectHeader{
		Reg:      region.New(0, 0, width, height),
		Encoding: codec.ExtendedDesktopSize,
	}); err != nil {
		return err
	}
	return s.w.Flush()
}

// ChannelData implements protocol.Handlers for message type 119: decode
// the LTSM mux frame and route it to the system channel, a
// bridge, or a generic proxied channel. A ChannelError here
// only terminates the offending channel, never the session.
func (s *Session) ChannelData(body []byte) error {
	fr, _, ok := channelmux.DecodeFrame(body)
	if !ok {
		return nil // partial frame already handled at the dispatch layer
	}
	if fr.Channel == channelmux.SystemChannel {
		return s.handleSystemFrame(fr)
	}
	if b, ok := s.fuseBridge(fr.Channel); ok {
		return b.HandleFrame(fr.Payload)
	}
	if b, ok := s.pkcs11Bridge(fr.Channel); ok {
		return b.HandleFrame(fr.Payload)
	}
	return s.mux.Dispatch(fr)
}
