package fuse

import (
	"sync"

	"github.com/ltsm-go/ltsmcore/internal/ltsmerr"
)

// Bridge is the server-end RPC shape over one channelmux.Channel: the FUSE
// sub-protocol has no request-id field, so calls are strictly
// one-in-flight-at-a-time, serialized by callMu.
type Bridge struct {
	send func([]byte) error

	callMu  sync.Mutex
	mu      sync.Mutex
	closed  bool
	pending chan Reply
}

// NewBridge builds a Bridge that writes outbound request bytes via send
// (internal/session wires this to channelmux.Mux.Send on the FUSE
// channel's id).
func NewBridge(send func([]byte) error) *Bridge {
	return &Bridge{send: send, pending: make(chan Reply, 1)}
}

// Call sends req and blocks for the matching Reply.
func (b *Bridge) Call(req Request) (Reply, error) {
	b.callMu.Lock()
	defer b.callMu.Unlock()
	if err := b.send(req.Encode()); err != nil {
		return Reply{}, ltsmerr.Wrap(ltsmerr.ChannelError, "fuse bridge send", err)
	}
	reply, ok := <-b.pending
	if !ok {
		return Reply{}, ltsmerr.New(ltsmerr.ChannelError, "fuse bridge closed")
	}
	return reply, nil
}

// HandleFrame delivers one inbound channel payload to whichever Call is
// awaiting a reply. A reply nobody is waiting for is dropped rather than
// blocking the read loop.
func (b *Bridge) HandleFrame(payload []byte) error {
	reply, err := DecodeReply(payload)
	if err != nil {
		return ltsmerr.Wrap(ltsmerr.ChannelError, "fuse bridge reply", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	select {
	case b.pending <- reply:
	default:
	}
	return nil
}

// Close unblocks any in-flight Call. Idempotent.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.pending)
}
