package pkcs11

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestRoundTrip(t *testing.T) {
	req := Request{Op: OpGetSlots, Body: []byte{1}}
	got, err := DecodeRequest(req.Encode())
	require.NoError(t, err)
	require.Equal(t, req, got)
}

func TestInitReplySuccessRoundTrip(t *testing.T) {
	r := InitReply{Info: CryptokiInfo{
		CryptokiVersionMajor: 2, CryptokiVersionMinor: 40,
		ManufacturerID: "SoftHSM", Flags: 0,
		LibraryDescription:  "Implementation of PKCS11",
		LibraryVersionMajor: 2, LibraryVersionMinor: 6,
	}}
	got, err := DecodeInitReply(r.Encode())
	require.NoError(t, err)
	require.Equal(t, r.Info, got.Info)
	require.Empty(t, got.Error)
}

func TestInitReplyErrorRoundTrip(t *testing.T) {
	r := InitReply{Error: "failed to load cryptoki provider"}
	got, err := DecodeInitReply(r.Encode())
	require.NoError(t, err)
	require.Equal(t, "failed to load cryptoki provider", got.Error)
}

func TestSlotsRoundTrip(t *testing.T) {
	slots := []Slot{
		{
			SlotID: 0, HasSlotInfo: true,
			SlotInfo: SlotInfo{Description: "slot 0", ManufacturerID: "SoftHSM", Flags: 1},
			HasTokenInfo: true,
			TokenInfo:    TokenInfo{Label: "token1", ManufacturerID: "SoftHSM", Model: "v2", SerialNumber: "abc123", Flags: 2},
		},
		{SlotID: 1},
	}
	got, err := DecodeSlots(EncodeSlots(slots))
	require.NoError(t, err)
	require.Equal(t, slots, got)
}

func TestGetSlotsRequestRoundTrip(t *testing.T) {
	r := GetSlotsRequest{TokenPresentOnly: true}
	got, err := DecodeGetSlotsRequest(r.Encode())
	require.NoError(t, err)
	require.Equal(t, r, got)
}

func TestSignRequestRoundTrip(t *testing.T) {
	sr := SignRequest{
		Slot: 1, MechType: 0x00000001, PIN: "1234",
		CertID: []byte{0xde, 0xad, 0xbe, 0xef},
		Data:   []byte("the quick brown fox"),
	}
	got, err := DecodeSignRequest(sr.Encode())
	require.NoError(t, err)
	require.Equal(t, sr, got)
}

func TestDataReplyRoundTrip(t *testing.T) {
	dr := DataReply{Data: []byte{1, 2, 3, 4, 5}}
	got, err := DecodeDataReply(dr.Encode())
	require.NoError(t, err)
	require.Equal(t, dr, got)
}

func TestReplyRoundTrip(t *testing.T) {
	r := Reply{Op: OpSignData, Body: []byte{9, 9, 9}}
	got, err := DecodeReply(r.Encode())
	require.NoError(t, err)
	require.Equal(t, r, got)
}
