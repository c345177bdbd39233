package extclipboard

import "sync"

// Negotiator tracks one session's Extended Clipboard state: the server's
// advertised capabilities, and in-flight Request/Provide coalescing: a
// second Request while a Provide is in flight ORs into the pending mask.
type Negotiator struct {
	mu sync.Mutex

	caps Capabilities

	providing   bool
	pendingMask TypeMask
}

// NewNegotiator builds a Negotiator advertising caps; every SetEncodings
// that lists ExtendedClipboard must be followed by sending EncodeCaps(caps)
// as the first extended frame.
func NewNegotiator(caps Capabilities) *Negotiator {
	return &Negotiator{caps: caps}
}

// Caps returns this negotiator's advertised capabilities frame body.
func (n *Negotiator) Caps() []byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	return EncodeCaps(n.caps)
}

// BeginRequest records a Request(types) about to be sent to the peer,
// coalescing with any Request still awaiting its Provide. It returns the
// full mask that should now be requested (0 and false if a request is
// already in flight and nothing new needs to be sent).
func (n *Negotiator) BeginRequest(types TypeMask) (send TypeMask, shouldSend bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.providing {
		n.pendingMask |= types
		return 0, false
	}
	n.providing = true
	n.pendingMask = types
	return types, true
}

// CompleteProvide marks the in-flight request satisfied. If further types
// were coalesced in while the Provide was in flight, it returns them so the
// caller can issue a follow-up Request.
func (n *Negotiator) CompleteProvide(provided TypeMask) (remaining TypeMask, more bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pendingMask &^= provided
	if n.pendingMask == 0 {
		n.providing = false
		return 0, false
	}
	remaining = n.pendingMask
	n.pendingMask = 0
	return remaining, true
}
