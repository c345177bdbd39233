package codec

// PriorityOrder is the server's fixed encoding preference: among the
// encodings a client advertised via SetEncodings, the
// server always picks the first that also appears here, never anything a
// client might imply by ordering its own list.
var PriorityOrder = []ID{
	VideoH264, VideoAV1, VideoVP8,
	QOI, LZ4, JPEG,
	ZRLE, TRLE, Zlib, Hextile, CoRRE, RRE, Raw,
}

// Registry holds one live Codec instance per encoding the session has
// negotiated, so stateful codecs (ZRLE, Zlib, LZ4) keep their compression
// stream state across rectangles.
type Registry struct {
	codecs map[ID]Codec
}

func NewRegistry() *Registry {
	r := &Registry{codecs: make(map[ID]Codec)}
	r.codecs[Raw] = NewRaw()
	r.codecs[RRE] = NewRRE()
	r.codecs[CoRRE] = NewCoRRE()
	r.codecs[Hextile] = NewHextile()
	r.codecs[TRLE] = NewTRLE()
	r.codecs[ZRLE] = NewZRLE()
	r.codecs[Zlib] = NewZlib()
	r.codecs[LZ4] = NewLZ4()
	r.codecs[JPEG] = NewJPEG(0)
	r.codecs[QOI] = NewQOI()
	for id, factory := range videoFactories {
		enc, _ := factory()
		r.codecs[id] = enc
	}
	return r
}

// Get returns the registered Codec for id, if any.
func (r *Registry) Get(id ID) (Codec, bool) {
	c, ok := r.codecs[id]
	return c, ok
}

// Select picks the highest-priority encoding present in both
// PriorityOrder and the client's advertised set, defaulting to Raw (which
// every client must support per RFC 6143).
func (r *Registry) Select(clientEncodings []ID) ID {
	advertised := make(map[ID]bool, len(clientEncodings))
	for _, id := range clientEncodings {
		advertised[id] = true
	}
	for _, id := range PriorityOrder {
		if advertised[id] {
			if _, ok := r.codecs[id]; ok {
				return id
			}
		}
	}
	return Raw
}

// ResizeVideo resets every registered video encoder's context to the new
// display dimensions, called on a successful SetDesktopSize.
func (r *Registry) ResizeVideo(width, height uint16) {
	for _, c := range r.codecs {
		if enc, ok := c.(VideoEncoder); ok {
			enc.Resize(width, height)
		}
	}
}

// SetCompressionLevel propagates a client-requested zlib level (from the
// compression-level pseudo-encodings) to every codec that compresses.
func (r *Registry) SetCompressionLevel(level int) {
	for _, c := range r.codecs {
		if lc, ok := c.(interface{ SetCompressionLevel(int) }); ok {
			lc.SetCompressionLevel(level)
		}
	}
}

// ResetSession calls Reset on every registered codec (clearing Hextile's
// background/foreground) and ResetSession on every SessionResetter
// (clearing ZRLE/Zlib/LZ4's persistent stream state).
func (r *Registry) ResetSession() {
	for _, c := range r.codecs {
		if c == nil {
			continue
		}
		c.Reset()
		if sr, ok := c.(SessionResetter); ok {
			sr.ResetSession()
		}
	}
}
