package channelmux

import (
	"io"
	"sync"

	"github.com/ltsm-go/ltsmcore/internal/ltsmerr"
)

// Mode is a channel's direction.
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
	ModeReadWrite
)

// AllowFunc is the pluggable local-authorization hook consulted before a
// ChannelOpen is admitted.
type AllowFunc func(kind, target string, mode Mode) bool

// Sender delivers an outbound Frame to the peer; internal/session supplies
// an implementation that writes through protocol.WriteRectHeader (server
// side) or channelmux.Frame.Encode under message type 119 (client side).
type Sender interface {
	SendFrame(Frame) error
}

// Channel is one admitted non-zero side-channel: a local endpoint plus the
// bookkeeping the Mux needs to route frames to/from it.
type Channel struct {
	ID     uint8
	Kind   string // e.g. "fuse", "pkcs11"
	Target string
	Mode   Mode

	// SpeedLimit records a bytes/sec egress cap for the channel (0 means
	// none). The Mux stores it but does not throttle egress by it.
	SpeedLimit int

	local  io.ReadWriteCloser
	closed bool
	mu     sync.Mutex
}

// Close shuts the channel's local endpoint down. Idempotent.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.local != nil {
		return c.local.Close()
	}
	return nil
}

func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Mux admits, tracks, and tears down the side-channels multiplexed over one
// session's transport.
type Mux struct {
	mu       sync.Mutex
	channels map[uint8]*Channel
	allow    AllowFunc
	sender   Sender
}

// New builds a Mux that authorizes new channels via allow (nil means deny
// everything) and sends outbound frames via sender.
func New(allow AllowFunc, sender Sender) *Mux {
	if allow == nil {
		allow = func(string, string, Mode) bool { return false }
	}
	return &Mux{channels: make(map[uint8]*Channel), allow: allow, sender: sender}
}

// Open admits a new channel after the ChannelOpen handshake and local
// authorization. Returns ChannelError if id is already in
// use or authorization is denied.
func (m *Mux) Open(id uint8, kind, target string, mode Mode, local io.ReadWriteCloser) (*Channel, error) {
	if id == SystemChannel {
		return nil, ltsmerr.New(ltsmerr.ChannelError, "channel 0 is reserved for the system channel")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.channels[id]; exists {
		return nil, ltsmerr.New(ltsmerr.ChannelError, "channel id already open")
	}
	if !m.allow(kind, target, mode) {
		return nil, ltsmerr.New(ltsmerr.ChannelError, "channel open denied")
	}
	ch := &Channel{ID: id, Kind: kind, Target: target, Mode: mode, local: local}
	m.channels[id] = ch
	return ch, nil
}

// Get returns the channel registered for id, if any.
func (m *Mux) Get(id uint8) (*Channel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[id]
	return ch, ok
}

// Close closes and unregisters one channel, idempotently. Callers that
// need the peer told send an EncodeChannelClose payload on the system
// channel themselves.
func (m *Mux) Close(id uint8) error {
	m.mu.Lock()
	ch, ok := m.channels[id]
	if ok {
		delete(m.channels, id)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return ch.Close()
}

// Dispatch routes one inbound Frame: system-channel (id 0) frames are
// handled by the caller (they carry JSON control commands, see system.go);
// any other channel's payload is delivered to its local endpoint. An error
// writing to a closed or missing channel's local endpoint is a ChannelError
// and only closes that channel, never propagated as fatal.
func (m *Mux) Dispatch(fr Frame) error {
	ch, ok := m.Get(fr.Channel)
	if !ok {
		return ltsmerr.New(ltsmerr.ChannelError, "frame for unknown channel")
	}
	if ch.Closed() {
		return ltsmerr.New(ltsmerr.ChannelError, "frame for closed channel")
	}
	if ch.local == nil {
		return nil
	}
	if _, err := ch.local.Write(fr.Payload); err != nil {
		_ = m.Close(fr.Channel)
		return ltsmerr.Wrap(ltsmerr.ChannelError, "write channel payload", err)
	}
	return nil
}

// Send frames fr to the peer via the Mux's Sender.
func (m *Mux) Send(fr Frame) error {
	if m.sender == nil {
		return ltsmerr.New(ltsmerr.ChannelError, "no sender configured")
	}
	return m.sender.SendFrame(fr)
}

// Shutdown closes every open channel, idempotently; called on transport
// loss and on session teardown.
func (m *Mux) Shutdown() {
	m.mu.Lock()
	ids := make([]uint8, 0, len(m.channels))
	for id := range m.channels {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		_ = m.Close(id)
	}
}

// Channels returns a snapshot of currently open channel ids, for tests and
// diagnostics.
func (m *Mux) Channels() []uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uint8, 0, len(m.channels))
	for id := range m.channels {
		ids = append(ids, id)
	}
	return ids
}
