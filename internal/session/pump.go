package session

import (
	"context"

	"github.com/ltsm-go/ltsmcore/internal/codec"
	"github.com/ltsm-go/ltsmcore/internal/framebuffer"
	"github.com/ltsm-go/ltsmcore/internal/pixelformat"
	"github.com/ltsm-go/ltsmcore/internal/protocol"
	"github.com/ltsm-go/ltsmcore/internal/region"
)

// pushFramesLoop is the frame-update producer:
// accumulates damage until the client has an outstanding
// FramebufferUpdateRequest (or continuous updates are enabled), encodes it
// with the negotiated codec, and writes the result as one FramebufferUpdate.
func (s *Session) pushFramesLoop(ctx context.Context) error {
	damageCh := s.frames.Damage()
	for {
		var req updateRequest
		var haveReq bool

		select {
		case <-ctx.Done():
			return nil
		case <-s.stopCh:
			return nil
		case reg, ok := <-damageCh:
			if !ok {
				return nil
			}
			if cReg, on := s.continuousTarget(); on {
				// Continuous updates: push damage as it
				// arrives rather than waiting for another explicit
				// FramebufferUpdateRequest.
				req, haveReq = updateRequest{Incremental: true, Reg: cReg}, true
				s.mergeDamage(reg)
				break
			}
			s.mergeDamage(reg)
			continue
		case req = <-s.updateReqCh:
			haveReq = true
		}

		if !haveReq {
			continue
		}

		reg, ok := s.takeDamage(req)
		if !ok {
			continue
		}
		if err := s.encodeAndSend(ctx, reg); err != nil {
			return err
		}
	}
}

// continuousTarget reports the region to auto-push damage against when
// the client has enabled continuous updates, and whether it's currently
// enabled.
func (s *Session) continuousTarget() (region.Region, bool) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.continuousRegion, s.continuousUpdates
}

func (s *Session) mergeDamage(reg region.Region) {
	s.damageMu.Lock()
	s.damage = s.damage.Join(reg)
	s.damageMu.Unlock()
}

// takeDamage resolves one FramebufferUpdateRequest against accumulated
// damage: a non-incremental request always returns the requested region in
// full; an incremental one returns only the overlap with pending damage,
// clearing what it consumes. Either way the result is aligned to 4px and
// clipped back to the display region.
func (s *Session) takeDamage(req updateRequest) (region.Region, bool) {
	width, height := s.frames.Dimensions()
	display := region.New(0, 0, width, height)

	if !req.Incremental {
		s.damageMu.Lock()
		s.damage = region.Region{}
		s.damageMu.Unlock()
		reg := req.Reg.Align(4).Clip(display)
		return reg, !reg.Empty()
	}

	s.damageMu.Lock()
	defer s.damageMu.Unlock()
	reg := s.damage.Intersect(req.Reg)
	if reg.Empty() {
		return region.Region{}, false
	}
	s.damage = region.Region{}
	reg = reg.Align(4).Clip(display)
	return reg, !reg.Empty()
}

// encodeAndSend encodes reg with the client's negotiated codec and writes
// it as a FramebufferUpdate. Stateful codecs (ZRLE, Zlib, LZ4) run
// single-threaded against the whole region through the session's own
// Registry instance, since their dictionary must see every byte in order;
// stateless codecs are tiled and handed to the Pool for concurrent
// encoding.
func (s *Session) encodeAndSend(ctx context.Context, reg region.Region) error {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	s.stateMu.Lock()
	clientFormat := s.clientFormat
	encID := s.codecs.Select(s.clientEncodings)
	s.stateMu.Unlock()

	fb, err := s.frames.Snapshot(reg)
	if err != nil {
		return err
	}

	c, _ := s.codecs.Get(encID)
	if _, stateful := c.(codec.SessionResetter); stateful {
		return s.sendWholeRegion(c, reg, fb, clientFormat)
	}
	return s.sendTiled(ctx, encID, reg, fb, clientFormat)
}

// sendWholeRegion drives a session-scoped stateful codec directly against
// the live Wire, holding the send lock for the header and body so no other
// writer can interleave a rectangle mid-stream.
func (s *Session) sendWholeRegion(c codec.Codec, reg region.Region, fb *framebuffer.FrameBuffer, clientFormat pixelformat.Format) error {
	s.w.Lock()
	defer s.w.Unlock()
	if err := protocol.WriteFramebufferUpdateHeader(s.w, 1); err != nil {
		return err
	}
	if err := protocol.WriteRectHeader(s.w, protocol.RectHeader{Reg: reg, Encoding: c.Type()}); err != nil {
		return err
	}
	if err := c.Encode(s.w, fb, clientFormat); err != nil {
		return err
	}
	return s.w.Flush()
}

// sendTiled divides reg into TileSize blocks and hands them to the Pool for
// concurrent encoding, then writes the ordered results as one
// FramebufferUpdate with one rectangle per tile.
func (s *Session) sendTiled(ctx context.Context, encID codec.ID, reg region.Region, fb *framebuffer.FrameBuffer, clientFormat pixelformat.Format) error {
	// fb is local to reg (its own (0,0) is reg's top-left, per FrameSource's
	// contract), so tiles and Pool.EncodeAll's jobs must be divided in that
	// same local space; the wire rectangle for each tile is translated back
	// to absolute screen coordinates afterward.
	local := region.New(0, 0, reg.W, reg.H)
	tiles := local.DivideBlocks(s.cfg.TileSize)
	jobs := make([]codec.Job, len(tiles))
	for i, t := range tiles {
		jobs[i] = codec.Job{Reg: t, NewCodec: codecFactory(encID)}
	}

	results, err := s.pool.EncodeAll(ctx, fb, jobs, clientFormat)
	if err != nil {
		return err
	}

	// RRE/CoRRE can exceed the raw body for busy tiles; those tiles fall
	// back to Raw, which the per-rectangle encoding field makes free.
	for i, res := range results {
		if res.Type != codec.RRE && res.Type != codec.CoRRE {
			continue
		}
		rawLen := res.Reg.Area() * clientFormat.BytesPerPixel()
		if len(res.Data) <= rawLen {
			continue
		}
		sub := framebuffer.New(region.New(0, 0, res.Reg.W, res.Reg.H), fb.Format)
		if err := sub.Blit(fb, res.Reg, region.Point{}); err != nil {
			return err
		}
		data, err := codec.EncodeToBytes(codec.NewRaw(), sub, clientFormat)
		if err != nil {
			return err
		}
		results[i] = codec.Result{Reg: res.Reg, Type: codec.Raw, Data: data}
	}

	s.w.Lock()
	defer s.w.Unlock()
	if err := protocol.WriteFramebufferUpdateHeader(s.w, uint16(len(results))); err != nil {
		return err
	}
	for _, res := range results {
		abs := region.New(res.Reg.X+reg.X, res.Reg.Y+reg.Y, res.Reg.W, res.Reg.H)
		if err := protocol.WriteRectHeader(s.w, protocol.RectHeader{Reg: abs, Encoding: res.Type}); err != nil {
			return err
		}
		if err := s.w.WriteBytes(res.Data); err != nil {
			return err
		}
	}
	return s.w.Flush()
}

// codecFactory returns a constructor for a fresh, stateless Codec instance
// of the given encoding, for use by the tile Pool. Hextile's background/
// foreground state is scoped to a single Encode call, so a fresh instance
// per tile is safe to parallelize.
func codecFactory(id codec.ID) func() codec.Codec {
	switch id {
	case codec.RRE:
		return func() codec.Codec { return codec.NewRRE() }
	case codec.CoRRE:
		return func() codec.Codec { return codec.NewCoRRE() }
	case codec.Hextile:
		return func() codec.Codec { return codec.NewHextile() }
	case codec.TRLE:
		return func() codec.Codec { return codec.NewTRLE() }
	case codec.JPEG:
		return func() codec.Codec { return codec.NewJPEG(0) }
	case codec.QOI:
		return func() codec.Codec { return codec.NewQOI() }
	default:
		return func() codec.Codec { return codec.NewRaw() }
	}
}
