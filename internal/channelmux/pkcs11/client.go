package pkcs11

import (
	"sync"

	miekg "github.com/miekg/pkcs11"
)

// ClientProxy is the client end of the PKCS#11 bridge: it
// loads a Cryptoki provider library and executes the requested operation
// against it, replying over the channel, via github.com/miekg/pkcs11's
// Ctx binding.
type ClientProxy struct {
	LibraryPath string

	mu  sync.Mutex
	ctx *miekg.Ctx
}

// NewClientProxy builds a proxy that will load libraryPath on the first
// Init request.
func NewClientProxy(libraryPath string) *ClientProxy {
	return &ClientProxy{LibraryPath: libraryPath}
}

// Handle dispatches one decoded Request to the matching Cryptoki call and
// returns the encoded Reply body.
func (c *ClientProxy) Handle(req Request) []byte {
	switch req.Op {
	case OpInit:
		return c.doInit()
	case OpGetSlots:
		return c.doGetSlots(req)
	case OpGetSlotMechanisms:
		return c.doGetSlotMechanisms(req)
	case OpGetSlotCertificates:
		return c.doGetSlotCertificates(req)
	case OpSignData:
		return c.doSignOrDecrypt(req, true)
	case OpDecryptData:
		return c.doSignOrDecrypt(req, false)
	default:
		return InitReply{Error: "unsupported op"}.Encode()
	}
}

func (c *ClientProxy) doInit() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctx := miekg.New(c.LibraryPath)
	if ctx == nil {
		return InitReply{Error: "failed to load cryptoki provider"}.Encode()
	}
	if err := ctx.Initialize(); err != nil {
		return InitReply{Error: err.Error()}.Encode()
	}
	info, err := ctx.GetInfo()
	if err != nil {
		return InitReply{Error: err.Error()}.Encode()
	}
	c.ctx = ctx
	return InitReply{Info: CryptokiInfo{
		CryptokiVersionMajor: info.CryptokiVersion.Major,
		CryptokiVersionMinor: info.CryptokiVersion.Minor,
		ManufacturerID:       info.ManufacturerID,
		Flags:                uint32(info.Flags),
		LibraryDescription:   info.LibraryDescription,
		LibraryVersionMajor:  info.LibraryVersion.Major,
		LibraryVersionMinor:  info.LibraryVersion.Minor,
	}}.Encode()
}

func (c *ClientProxy) doGetSlots(req Request) []byte {
	gr, err := DecodeGetSlotsRequest(req.Body)
	if err != nil {
		return EncodeSlots(nil)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		return EncodeSlots(nil)
	}
	ids, err := c.ctx.GetSlotList(gr.TokenPresentOnly)
	if err != nil {
		return EncodeSlots(nil)
	}
	slots := make([]Slot, 0, len(ids))
	for _, id := range ids {
		s := Slot{SlotID: uint64(id)}
		if si, err := c.ctx.GetSlotInfo(id); err == nil {
			s.HasSlotInfo = true
			s.SlotInfo = SlotInfo{Description: si.SlotDescription, ManufacturerID: si.ManufacturerID, Flags: uint32(si.Flags)}
		}
		if ti, err := c.ctx.GetTokenInfo(id); err == nil {
			s.HasTokenInfo = true
			s.TokenInfo = TokenInfo{
				Label: ti.Label, ManufacturerID: ti.ManufacturerID,
				Model: ti.Model, SerialNumber: ti.SerialNumber, Flags: uint32(ti.Flags),
			}
		}
		slots = append(slots, s)
	}
	return EncodeSlots(slots)
}

func (c *ClientProxy) doGetSlotMechanisms(req Request) []byte {
	r := &byteReader{buf: req.Body}
	slot, err := r.u64()
	if err != nil {
		return (&byteBuf{}).bytes()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		return (&byteBuf{}).bytes()
	}
	mechs, err := c.ctx.GetMechanismList(uint(slot))
	buf := &byteBuf{}
	if err != nil {
		buf.putU16(0)
		return buf.bytes()
	}
	buf.putU16(uint16(len(mechs)))
	for _, m := range mechs {
		buf.putU64(uint64(m.Mechanism))
	}
	return buf.bytes()
}

func (c *ClientProxy) doGetSlotCertificates(req Request) []byte {
	r := &byteReader{buf: req.Body}
	slot, err := r.u64()
	if err != nil {
		return (&byteBuf{}).bytes()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := &byteBuf{}
	if c.ctx == nil {
		buf.putU16(0)
		return buf.bytes()
	}
	session, err := c.ctx.OpenSession(uint(slot), miekg.CKF_SERIAL_SESSION)
	if err != nil {
		buf.putU16(0)
		return buf.bytes()
	}
	defer c.ctx.CloseSession(session)

	template := []*miekg.Attribute{miekg.NewAttribute(miekg.CKA_CLASS, miekg.CKO_CERTIFICATE)}
	if err := c.ctx.FindObjectsInit(session, template); err != nil {
		buf.putU16(0)
		return buf.bytes()
	}
	handles, _, _ := c.ctx.FindObjects(session, 64)
	_ = c.ctx.FindObjectsFinal(session)

	var certs [][]byte
	for _, h := range handles {
		attrs, err := c.ctx.GetAttributeValue(session, h, []*miekg.Attribute{miekg.NewAttribute(miekg.CKA_VALUE, nil)})
		if err != nil || len(attrs) == 0 {
			continue
		}
		certs = append(certs, attrs[0].Value)
	}
	buf.putU16(uint16(len(certs)))
	for _, der := range certs {
		buf.putU32(uint32(len(der)))
		buf.raw(der)
	}
	return buf.bytes()
}

// doSignOrDecrypt implements SignData/DecryptData: logs
// in with the supplied PIN, finds the matching private key by CKA_ID, and
// validates the requested mechanism is advertised by the slot before
// invoking C_SignInit/C_Sign (or Decrypt), rather than blindly trying
// CKM_RSA_PKCS.
func (c *ClientProxy) doSignOrDecrypt(req Request, sign bool) []byte {
	sr, err := DecodeSignRequest(req.Body)
	if err != nil {
		return DataReply{}.Encode()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		return DataReply{}.Encode()
	}

	if !c.mechanismSupported(uint(sr.Slot), uint(sr.MechType)) {
		return DataReply{}.Encode()
	}

	session, err := c.ctx.OpenSession(uint(sr.Slot), miekg.CKF_SERIAL_SESSION|miekg.CKF_RW_SESSION)
	if err != nil {
		return DataReply{}.Encode()
	}
	defer c.ctx.CloseSession(session)

	if err := c.ctx.Login(session, miekg.CKU_USER, sr.PIN); err != nil {
		return DataReply{}.Encode()
	}
	defer c.ctx.Logout(session)

	class := uint(miekg.CKO_PRIVATE_KEY)
	template := []*miekg.Attribute{
		miekg.NewAttribute(miekg.CKA_CLASS, class),
		miekg.NewAttribute(miekg.CKA_ID, sr.CertID),
	}
	if err := c.ctx.FindObjectsInit(session, template); err != nil {
		return DataReply{}.Encode()
	}
	handles, _, err := c.ctx.FindObjects(session, 1)
	_ = c.ctx.FindObjectsFinal(session)
	if err != nil || len(handles) == 0 {
		return DataReply{}.Encode()
	}
	key := handles[0]

	mech := []*miekg.Mechanism{miekg.NewMechanism(uint(sr.MechType), nil)}
	var out []byte
	if sign {
		if err := c.ctx.SignInit(session, mech, key); err != nil {
			return DataReply{}.Encode()
		}
		out, err = c.ctx.Sign(session, sr.Data)
	} else {
		if err := c.ctx.DecryptInit(session, mech, key); err != nil {
			return DataReply{}.Encode()
		}
		out, err = c.ctx.Decrypt(session, sr.Data)
	}
	if err != nil {
		return DataReply{}.Encode()
	}
	return DataReply{Data: out}.Encode()
}

func (c *ClientProxy) mechanismSupported(slot, mechType uint) bool {
	mechs, err := c.ctx.GetMechanismList(slot)
	if err != nil {
		return false
	}
	for _, m := range mechs {
		if m.Mechanism == mechType {
			return true
		}
	}
	return false
}

// Close finalizes the Cryptoki provider, if loaded.
func (c *ClientProxy) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		return nil
	}
	c.ctx.Finalize()
	c.ctx.Destroy()
	c.ctx = nil
	return nil
}
