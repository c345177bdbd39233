package protocol

import (
	"crypto/tls"
	"net"

	"github.com/ltsm-go/ltsmcore/internal/ltsmerr"
	"github.com/ltsm-go/ltsmcore/internal/wire"
)

// VeNCrypt subtypes this module supports (RFC: VeNCrypt draft). Only the
// anonymous-cert and server-cert TLS variants are wired; the Plain
// (username/password-in-the-clear) subtypes are deliberately not offered.
const (
	vencryptTLSNone  = 257
	vencryptX509None = 260
)

// VeNCryptAuthenticator negotiates a TLS tunnel, then
// hands back a Wire built over the TLS connection for the remainder of
// the session. The underlying SecureStream must also be a net.Conn (the
// raw socket), since crypto/tls.Server needs deadline/address methods no
// abstract stream interface provides; a stream that isn't a net.Conn
// fails with HandshakeSecurity rather than silently skipping the tunnel.
type VeNCryptAuthenticator struct {
	Config *tls.Config
	// Inner, if set, runs after the TLS tunnel is up (e.g. VNC auth over
	// TLS); if nil the tunnel alone is sufficient (X509None/TLSNone).
	Inner Authenticator
}

func (VeNCryptAuthenticator) Type() SecurityType { return SecurityVeNCrypt }

func (a VeNCryptAuthenticator) Authenticate(w *wire.Wire) (*wire.Wire, error) {
	if err := w.WriteU8(0); err != nil { // major
		return nil, err
	}
	if err := w.WriteU8(2); err != nil { // minor
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	if _, err := w.ReadU8(); err != nil { // client major (ack'd implicitly)
		return nil, err
	}
	if _, err := w.ReadU8(); err != nil { // client minor
		return nil, err
	}
	if err := w.WriteU8(0); err != nil { // accepted
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}

	subtype := vencryptX509None
	if a.Config == nil || len(a.Config.Certificates) == 0 {
		subtype = vencryptTLSNone
	}
	if err := w.WriteU8(1); err != nil {
		return nil, err
	}
	if err := w.WriteU32BE(uint32(subtype)); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	if _, err := w.ReadU32BE(); err != nil { // client echoes chosen subtype
		return nil, err
	}

	conn, ok := w.Stream().(net.Conn)
	if !ok {
		return nil, ltsmerr.WrapSecurity(ltsmerr.SecurityTLSFailed, "vencrypt requires a net.Conn transport", nil)
	}
	tlsConn := tls.Server(conn, a.Config)
	if err := tlsConn.Handshake(); err != nil {
		return nil, ltsmerr.WrapSecurity(ltsmerr.SecurityTLSFailed, "tls handshake", err)
	}

	tunneled := wire.New(tlsConn)
	if a.Inner == nil {
		return tunneled, nil
	}
	return a.Inner.Authenticate(tunneled)
}
