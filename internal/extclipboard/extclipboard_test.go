package extclipboard

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCapsRoundTrip(t *testing.T) {
	caps := Capabilities{MaxSize: map[TypeMask]uint32{TypeText: 4096, TypeFiles: 1 << 20}}
	body := EncodeCaps(caps)

	f, err := Decode(body)
	require.NoError(t, err)
	require.Equal(t, OpCaps, f.Op)
	require.Equal(t, TypeText|TypeFiles, f.Types)
	require.EqualValues(t, 4096, f.MaxSize[TypeText])
	require.EqualValues(t, 1<<20, f.MaxSize[TypeFiles])
}

// TestPeekNotify exercises Peek eliciting Notify, down to the literal
// flags value 0x08000001 (OpNotify|TypeText).
func TestPeekNotify(t *testing.T) {
	peekBody := EncodePeek()
	f, err := Decode(peekBody)
	require.NoError(t, err)
	require.Equal(t, OpPeek, f.Op)

	notifyBody := EncodeNotify(TypeText)
	require.Len(t, notifyBody, 4)
	require.EqualValues(t, 0x08000001, beU32(notifyBody))

	nf, err := Decode(notifyBody)
	require.NoError(t, err)
	require.Equal(t, OpNotify, nf.Op)
	require.Equal(t, TypeText, nf.Types)
}

func TestRequestProvideRoundTrip(t *testing.T) {
	reqBody := EncodeRequest(TypeText | TypeHTML)
	rf, err := Decode(reqBody)
	require.NoError(t, err)
	require.Equal(t, OpRequest, rf.Op)
	require.Equal(t, TypeText|TypeHTML, rf.Types)

	payloads := map[TypeMask][]byte{
		TypeText: []byte("hello"),
		TypeHTML: []byte("<b>hi</b>"),
	}
	provideBody, err := EncodeProvide(payloads)
	require.NoError(t, err)

	pf, err := Decode(provideBody)
	require.NoError(t, err)
	require.Equal(t, OpProvide, pf.Op)
	require.Equal(t, TypeText|TypeHTML, pf.Types)
	require.Equal(t, []byte("hello"), pf.Payloads[TypeText])
	require.Equal(t, []byte("<b>hi</b>"), pf.Payloads[TypeHTML])
}

func TestNegotiatorCoalescesRequests(t *testing.T) {
	n := NewNegotiator(Capabilities{MaxSize: map[TypeMask]uint32{TypeText: 1024}})

	send, should := n.BeginRequest(TypeText)
	require.True(t, should)
	require.Equal(t, TypeText, send)

	// A second Request while the first Provide is in flight coalesces.
	_, should = n.BeginRequest(TypeHTML)
	require.False(t, should)

	remaining, more := n.CompleteProvide(TypeText)
	require.True(t, more)
	require.Equal(t, TypeHTML, remaining)

	_, more = n.CompleteProvide(TypeHTML)
	require.False(t, more)
}

func beU32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
