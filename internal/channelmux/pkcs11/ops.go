// Package pkcs11 implements the PKCS#11/Cryptoki bridge sub-protocol
// layered on a channelmux.Channel: the client end loads
// a Cryptoki provider and executes the requested operation; the server end
// issues requests and consumes replies. All op fields are little-endian;
// the client-end binding uses github.com/miekg/pkcs11.
package pkcs11

import (
	"encoding/binary"

	"github.com/ltsm-go/ltsmcore/internal/ltsmerr"
)

// Op codes.
const (
	OpInit                uint16 = 0xFC01
	OpGetSlots            uint16 = 0xFC02
	OpGetSlotMechanisms   uint16 = 0xFC03
	OpGetSlotCertificates uint16 = 0xFC04
	OpSignData            uint16 = 0xFC11
	OpDecryptData         uint16 = 0xFC12
)

// Version is the wire protocol version this module speaks.
const Version uint16 = 1

// Request is one client-bound bridge call: a u16 op code followed by
// op-specific little-endian fields.
type Request struct {
	Op   uint16
	Body []byte
}

func (r Request) Encode() []byte {
	out := make([]byte, 2+len(r.Body))
	binary.LittleEndian.PutUint16(out[0:2], r.Op)
	copy(out[2:], r.Body)
	return out
}

func DecodeRequest(buf []byte) (Request, error) {
	if len(buf) < 2 {
		return Request{}, ltsmerr.New(ltsmerr.Format, "pkcs11 request too short")
	}
	return Request{Op: binary.LittleEndian.Uint16(buf[0:2]), Body: buf[2:]}, nil
}

// Reply mirrors each op's own reply shape: Init's and GetSlots'
// replies don't carry a uniform errno prefix the way the FUSE bridge does,
// so Reply here is just the op id plus an opaque body the per-op decoder
// parses.
type Reply struct {
	Op   uint16
	Body []byte
}

func (r Reply) Encode() []byte {
	out := make([]byte, 2+len(r.Body))
	binary.LittleEndian.PutUint16(out[0:2], r.Op)
	copy(out[2:], r.Body)
	return out
}

func DecodeReply(buf []byte) (Reply, error) {
	if len(buf) < 2 {
		return Reply{}, ltsmerr.New(ltsmerr.Format, "pkcs11 reply too short")
	}
	return Reply{Op: binary.LittleEndian.Uint16(buf[0:2]), Body: buf[2:]}, nil
}

// SlotInfo/TokenInfo carry the subset of Cryptoki slot/token metadata the
// bridge forwards.
type SlotInfo struct {
	Description    string
	ManufacturerID string
	Flags          uint32
}

type TokenInfo struct {
	Label          string
	ManufacturerID string
	Model          string
	SerialNumber   string
	Flags          uint32
}

// CryptokiInfo is the provider-wide info Init returns on success.
type CryptokiInfo struct {
	CryptokiVersionMajor, CryptokiVersionMinor uint8
	ManufacturerID                             string
	Flags                                      uint32
	LibraryDescription                         string
	LibraryVersionMajor, LibraryVersionMinor   uint8
}

// InitReply: `u16 errLen, bytes[errLen]` then on success `u16 ver,
// CryptokiInfo`.
type InitReply struct {
	Error string
	OK    bool
	Info  CryptokiInfo
}

func (r InitReply) Encode() []byte {
	buf := &byteBuf{}
	buf.putString(r.Error)
	if r.Error == "" {
		buf.putU16(Version)
		buf.putU8(r.Info.CryptokiVersionMajor)
		buf.putU8(r.Info.CryptokiVersionMinor)
		buf.putString(r.Info.ManufacturerID)
		buf.putU32(r.Info.Flags)
		buf.putString(r.Info.LibraryDescription)
		buf.putU8(r.Info.LibraryVersionMajor)
		buf.putU8(r.Info.LibraryVersionMinor)
	}
	return buf.bytes()
}

func DecodeInitReply(raw []byte) (InitReply, error) {
	r := &byteReader{buf: raw}
	errStr, err := r.string()
	if err != nil {
		return InitReply{}, err
	}
	if errStr != "" {
		return InitReply{Error: errStr}, nil
	}
	if _, err := r.u16(); err != nil { // version, unused beyond validation
		return InitReply{}, err
	}
	major, err := r.u8()
	if err != nil {
		return InitReply{}, err
	}
	minor, err := r.u8()
	if err != nil {
		return InitReply{}, err
	}
	mfg, err := r.string()
	if err != nil {
		return InitReply{}, err
	}
	flags, err := r.u32()
	if err != nil {
		return InitReply{}, err
	}
	desc, err := r.string()
	if err != nil {
		return InitReply{}, err
	}
	libMajor, err := r.u8()
	if err != nil {
		return InitReply{}, err
	}
	libMinor, err := r.u8()
	if err != nil {
		return InitReply{}, err
	}
	return InitReply{
		Info: CryptokiInfo{
			CryptokiVersionMajor: major, CryptokiVersionMinor: minor,
			ManufacturerID: mfg, Flags: flags, LibraryDescription: desc,
			LibraryVersionMajor: libMajor, LibraryVersionMinor: libMinor,
		},
	}, nil
}

// Slot is one GetSlots reply entry.
type Slot struct {
	SlotID       uint64
	HasSlotInfo  bool
	SlotInfo     SlotInfo
	HasTokenInfo bool
	TokenInfo    TokenInfo
}

// GetSlotsRequest: `u8 tokenPresentOnly`.
type GetSlotsRequest struct{ TokenPresentOnly bool }

func (r GetSlotsRequest) Encode() []byte {
	if r.TokenPresentOnly {
		return []byte{1}
	}
	return []byte{0}
}

func DecodeGetSlotsRequest(buf []byte) (GetSlotsRequest, error) {
	if len(buf) < 1 {
		return GetSlotsRequest{}, ltsmerr.New(ltsmerr.Format, "pkcs11 getslots truncated")
	}
	return GetSlotsRequest{TokenPresentOnly: buf[0] != 0}, nil
}

// EncodeSlots builds the `u16 count, per-slot {...}` reply body.
func EncodeSlots(slots []Slot) []byte {
	buf := &byteBuf{}
	buf.putU16(uint16(len(slots)))
	for _, s := range slots {
		buf.putU64(s.SlotID)
		buf.putU8(boolByte(s.HasSlotInfo))
		if s.HasSlotInfo {
			buf.putString(s.SlotInfo.Description)
			buf.putString(s.SlotInfo.ManufacturerID)
			buf.putU32(s.SlotInfo.Flags)
		}
		buf.putU8(boolByte(s.HasTokenInfo))
		if s.HasTokenInfo {
			buf.putString(s.TokenInfo.Label)
			buf.putString(s.TokenInfo.ManufacturerID)
			buf.putString(s.TokenInfo.Model)
			buf.putString(s.TokenInfo.SerialNumber)
			buf.putU32(s.TokenInfo.Flags)
		}
	}
	return buf.bytes()
}

func DecodeSlots(raw []byte) ([]Slot, error) {
	r := &byteReader{buf: raw}
	count, err := r.u16()
	if err != nil {
		return nil, err
	}
	out := make([]Slot, 0, count)
	for i := uint16(0); i < count; i++ {
		var s Slot
		slotID, err := r.u64()
		if err != nil {
			return nil, err
		}
		s.SlotID = slotID
		hasSlot, err := r.u8()
		if err != nil {
			return nil, err
		}
		s.HasSlotInfo = hasSlot != 0
		if s.HasSlotInfo {
			if s.SlotInfo.Description, err = r.string(); err != nil {
				return nil, err
			}
			if s.SlotInfo.ManufacturerID, err = r.string(); err != nil {
				return nil, err
			}
			if s.SlotInfo.Flags, err = r.u32(); err != nil {
				return nil, err
			}
		}
		hasToken, err := r.u8()
		if err != nil {
			return nil, err
		}
		s.HasTokenInfo = hasToken != 0
		if s.HasTokenInfo {
			if s.TokenInfo.Label, err = r.string(); err != nil {
				return nil, err
			}
			if s.TokenInfo.ManufacturerID, err = r.string(); err != nil {
				return nil, err
			}
			if s.TokenInfo.Model, err = r.string(); err != nil {
				return nil, err
			}
			if s.TokenInfo.SerialNumber, err = r.string(); err != nil {
				return nil, err
			}
			if s.TokenInfo.Flags, err = r.u32(); err != nil {
				return nil, err
			}
		}
		out = append(out, s)
	}
	return out, nil
}

// SignRequest / DecryptRequest: `u64 slot, u64 mechType, u16 pinLen,
// bytes[pinLen], u16 certIdLen, bytes[certIdLen], u32 dataLen,
// bytes[dataLen]`.
type SignRequest struct {
	Slot     uint64
	MechType uint64
	PIN      string
	CertID   []byte
	Data     []byte
}

func (r SignRequest) Encode() []byte {
	buf := &byteBuf{}
	buf.putU64(r.Slot)
	buf.putU64(r.MechType)
	buf.putU16(uint16(len(r.PIN)))
	buf.raw([]byte(r.PIN))
	buf.putU16(uint16(len(r.CertID)))
	buf.raw(r.CertID)
	buf.putU32(uint32(len(r.Data)))
	buf.raw(r.Data)
	return buf.bytes()
}

func DecodeSignRequest(raw []byte) (SignRequest, error) {
	r := &byteReader{buf: raw}
	slot, err := r.u64()
	if err != nil {
		return SignRequest{}, err
	}
	mech, err := r.u64()
	if err != nil {
		return SignRequest{}, err
	}
	pinLen, err := r.u16()
	if err != nil {
		return SignRequest{}, err
	}
	pin, err := r.raw(int(pinLen))
	if err != nil {
		return SignRequest{}, err
	}
	certLen, err := r.u16()
	if err != nil {
		return SignRequest{}, err
	}
	cert, err := r.raw(int(certLen))
	if err != nil {
		return SignRequest{}, err
	}
	dataLen, err := r.u32()
	if err != nil {
		return SignRequest{}, err
	}
	data, err := r.raw(int(dataLen))
	if err != nil {
		return SignRequest{}, err
	}
	return SignRequest{Slot: slot, MechType: mech, PIN: string(pin), CertID: cert, Data: data}, nil
}

// DataReply: `u32 outLen, bytes[outLen]`, used by SignData and
// DecryptData's success reply.
type DataReply struct{ Data []byte }

func (r DataReply) Encode() []byte {
	buf := &byteBuf{}
	buf.putU32(uint32(len(r.Data)))
	buf.raw(r.Data)
	return buf.bytes()
}

func DecodeDataReply(raw []byte) (DataReply, error) {
	r := &byteReader{buf: raw}
	n, err := r.u32()
	if err != nil {
		return DataReply{}, err
	}
	data, err := r.raw(int(n))
	if err != nil {
		return DataReply{}, err
	}
	return DataReply{Data: data}, nil
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
