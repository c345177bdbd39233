package protocol

import (
	"crypto/des"
	"crypto/rand"

	"github.com/ltsm-go/ltsmcore/internal/ltsmerr"
	"github.com/ltsm-go/ltsmcore/internal/wire"
)

// VNCAuthenticator implements the classic VNC DES challenge: the server
// sends 16 random bytes, the client DES-encrypts them
// under the password (truncated/padded to 8 bytes, each byte bit-reversed
// per the VNC convention), and the server accepts if the ciphertext
// matches any configured password.
type VNCAuthenticator struct {
	// Passwords is the set of plaintext passwords any of which succeeds,
	// one entry per line of the password file.
	Passwords []string
}

func (VNCAuthenticator) Type() SecurityType { return SecurityVNC }

func (a VNCAuthenticator) Authenticate(w *wire.Wire) (*wire.Wire, error) {
	challenge := make([]byte, 16)
	if _, err := rand.Read(challenge); err != nil {
		return nil, ltsmerr.WrapSecurity(ltsmerr.SecurityAuthFailed, "generate challenge", err)
	}
	if err := w.WriteBytes(challenge); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}

	response := make([]byte, 16)
	if err := w.ReadExact(response); err != nil {
		return nil, err
	}

	for _, pw := range a.Passwords {
		expect, err := desEncryptChallenge(challenge, pw)
		if err != nil {
			return nil, ltsmerr.WrapSecurity(ltsmerr.SecurityAuthFailed, "vnc auth", err)
		}
		if bytesEqual(expect, response) {
			return w, nil
		}
	}
	return nil, ltsmerr.WrapSecurity(ltsmerr.SecurityAuthFailed, "vnc auth", nil)
}

func desEncryptChallenge(challenge []byte, password string) ([]byte, error) {
	key := vncDESKey(password)
	block, err := des.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 16)
	block.Encrypt(out[0:8], challenge[0:8])
	block.Encrypt(out[8:16], challenge[8:16])
	return out, nil
}

// vncDESKey pads/truncates password to 8 bytes and bit-reverses each byte,
// the non-standard key schedule every VNC DES implementation must match.
func vncDESKey(password string) []byte {
	key := make([]byte, 8)
	copy(key, password)
	for i, b := range key {
		key[i] = reverseBits(b)
	}
	return key
}

func reverseBits(b byte) byte {
	var r byte
	for i := 0; i < 8; i++ {
		r <<= 1
		r |= b & 1
		b >>= 1
	}
	return r
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
