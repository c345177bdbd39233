package pkcs11

import (
	"sync"

	"github.com/ltsm-go/ltsmcore/internal/ltsmerr"
)

// Bridge is the server-end RPC shape over one channelmux.Channel, mirroring
// fuse.Bridge's single-call-in-flight design: the PKCS#11
// sub-protocol carries no request id either, so Call serializes access with
// callMu the same way.
type Bridge struct {
	send func([]byte) error

	callMu  sync.Mutex
	mu      sync.Mutex
	closed  bool
	pending chan Reply
}

// NewBridge builds a Bridge that writes outbound request bytes via send
// (internal/session wires this to channelmux.Mux.Send on the PKCS#11
// channel's id).
func NewBridge(send func([]byte) error) *Bridge {
	return &Bridge{send: send, pending: make(chan Reply, 1)}
}

// Call sends req and blocks for the matching Reply.
func (b *Bridge) Call(req Request) (Reply, error) {
	b.callMu.Lock()
	defer b.callMu.Unlock()
	if err := b.send(req.Encode()); err != nil {
		return Reply{}, ltsmerr.Wrap(ltsmerr.ChannelError, "pkcs11 bridge send", err)
	}
	reply, ok := <-b.pending
	if !ok {
		return Reply{}, ltsmerr.New(ltsmerr.ChannelError, "pkcs11 bridge closed")
	}
	return reply, nil
}

// HandleFrame delivers one inbound channel payload to whichever Call is
// awaiting a reply. A reply nobody is waiting for is dropped rather than
// blocking the read loop.
func (b *Bridge) HandleFrame(payload []byte) error {
	reply, err := DecodeReply(payload)
	if err != nil {
		return ltsmerr.Wrap(ltsmerr.ChannelError, "pkcs11 bridge reply", err)
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

// Init issues the OpInit handshake and returns the provider's CryptokiInfo,
// or the client-reported Error string wrapped as a ChannelError.
func (b *Bridge) Init() (CryptokiInfo, error) {
	reply, err := b.Call(Request{Op: OpInit})
	if err != nil {
		return CryptokiInfo{}, err
	}
	ir, err := DecodeInitReply(reply.Body)
	if err != nil {
		return CryptokiInfo{}, err
	}
	if ir.Error != "" {
		return CryptokiInfo{}, ltsmerr.New(ltsmerr.ChannelError, ir.Error)
	}
	return ir.Info, nil
}

// GetSlots issues OpGetSlots and returns the slot/token list.
func (b *Bridge) GetSlots(tokenPresentOnly bool) ([]Slot, error) {
	reply, err := b.Call(Request{Op: OpGetSlots, Body: GetSlotsRequest{TokenPresentOnly: tokenPresentOnly}.Encode()})
	if err != nil {
		return nil, err
	}
	return DecodeSlots(reply.Body)
}

// GetSlotMechanisms issues OpGetSlotMechanisms and returns the slot's
// supported mechanism type list.
func (b *Bridge) GetSlotMechanisms(slot uint64) ([]uint64, error) {
	req := &byteBuf{}
	req.putU64(slot)
	reply, err := b.Call(Request{Op: OpGetSlotMechanisms, Body: req.bytes()})
	if err != nil {
		return nil, err
	}
	r := &byteReader{buf: reply.Body}
	count, err := r.u16()
	if err != nil {
		return nil, err
	}
	out := make([]uint64, 0, count)
	for i := uint16(0); i < count; i++ {
		m, err := r.u64()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// GetSlotCertificates issues OpGetSlotCertificates and returns the DER
// certificates found on the slot.
func (b *Bridge) GetSlotCertificates(slot uint64) ([][]byte, error) {
	req := &byteBuf{}
	req.putU64(slot)
	reply, err := b.Call(Request{Op: OpGetSlotCertificates, Body: req.bytes()})
	if err != nil {
		return nil, err
	}
	r := &byteReader{buf: reply.Body}
	count, err := r.u16()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, count)
	for i := uint16(0); i < count; i++ {
		n, err := r.u32()
		if err != nil {
			return nil, err
		}
		der, err := r.raw(int(n))
		if err != nil {
			return nil, err
		}
		out = append(out, der)
	}
	return out, nil
}

// SignData issues OpSignData against the given slot, PIN, certificate id
// and mechanism type.
func (b *Bridge) SignData(slot, mechType uint64, pin string, certID, data []byte) ([]byte, error) {
	return b.signOrDecrypt(OpSignData, slot, mechType, pin, certID, data)
}

// DecryptData issues OpDecryptData, mirroring SignData's field layout.
func (b *Bridge) DecryptData(slot, mechType uint64, pin string, certID, data []byte) ([]byte, error) {
	return b.signOrDecrypt(OpDecryptData, slot, mechType, pin, certID, data)
}

func (b *Bridge) signOrDecrypt(op uint16, slot, mechType uint64, pin string, certID, data []byte) ([]byte, error) {
	body := SignRequest{Slot: slot, MechType: mechType, PIN: pin, CertID: certID, Data: data}.Encode()
	reply, err := b.Call(Request{Op: op, Body: body})
	if err != nil {
		return nil, err
	}
	dr, err := DecodeDataReply(reply.Body)
	if err != nil {
		return nil, err
	}
	if len(dr.Data) == 0 {
		return nil, ltsmerr.New(ltsmerr.ChannelError, "pkcs11 operation failed or mechanism unsupported")
	}
	return dr.Data, nil
}
