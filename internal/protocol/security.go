package protocol

import (
	"github.com/ltsm-go/ltsmcore/internal/ltsmerr"
	"github.com/ltsm-go/ltsmcore/internal/wire"
)

// SecurityType is one of the u8 security codes of the RFB handshake.
type SecurityType uint8

const (
	SecurityNone     SecurityType = 1
	SecurityVNC      SecurityType = 2
	SecurityVeNCrypt SecurityType = 19
	SecurityGSSAPI   SecurityType = 77
)

const (
	securityResultOK  = 0
	securityResultErr = 1
)

// Authenticator performs one security type's challenge/response and
// returns the Wire to use afterward (VeNCrypt/GSSAPI may wrap it in a
// tunnel; None/VNC return w unchanged).
type Authenticator interface {
	Type() SecurityType
	Authenticate(w *wire.Wire) (*wire.Wire, error)
}

// NegotiateSecurity advertises the given authenticators (proto 3.8+) or a
// single forced type (proto 3.3), lets the client choose, runs that
// authenticator, and writes the SecurityResult. Returns the Wire to use
// for the rest of the session.
func NegotiateSecurity(w *wire.Wire, version ProtocolVersion, auths []Authenticator) (*wire.Wire, error) {
	if len(auths) == 0 {
		return nil, ltsmerr.New(ltsmerr.HandshakeSecurity, "no security types configured")
	}

	var chosen Authenticator
	if version == Version33 {
		// 3.3 has no negotiation and predates VeNCrypt/GSSAPI: force the
		// first None or VNC authenticator.
		for _, a := range auths {
			if a.Type() == SecurityNone || a.Type() == SecurityVNC {
				chosen = a
				break
			}
		}
		if chosen == nil {
			return nil, ltsmerr.WrapSecurity(ltsmerr.SecurityBadType, "no 3.3-compatible security type", nil)
		}
		if err := w.WriteU32BE(uint32(chosen.Type())); err != nil {
			return nil, err
		}
		if err := w.Flush(); err != nil {
			return nil, err
		}
	} else {
		if err := w.WriteU8(uint8(len(auths))); err != nil {
			return nil, err
		}
		for _, a := range auths {
			if err := w.WriteU8(uint8(a.Type())); err != nil {
				return nil, err
			}
		}
		if err := w.Flush(); err != nil {
			return nil, err
		}

		picked, err := w.ReadU8()
		if err != nil {
			return nil, err
		}
		for _, a := range auths {
			if uint8(a.Type()) == picked {
				chosen = a
				break
			}
		}
		if chosen == nil {
			writeSecurityFailure(w, "unsupported security type")
			return nil, ltsmerr.WrapSecurity(ltsmerr.SecurityBadType, "negotiate security", nil)
		}
	}

	next, err := chosen.Authenticate(w)
	if err != nil {
		writeSecurityFailure(w, err.Error())
		return nil, err
	}

	// 3.8 always acknowledges with a SecurityResult; earlier versions only
	// do so after a VNC challenge.
	if version == Version38 || chosen.Type() == SecurityVNC {
		if err := next.WriteU32BE(securityResultOK); err != nil {
			return nil, err
		}
		if err := next.Flush(); err != nil {
			return nil, err
		}
	}
	return next, nil
}

func writeSecurityFailure(w *wire.Wire, reason string) {
	_ = w.WriteU32BE(securityResultErr)
	_ = w.WriteString(reason)
	_ = w.Flush()
}

// NoneAuthenticator implements SecurityNone: no challenge, immediate OK.
type NoneAuthenticator struct{}

func (NoneAuthenticator) Type() SecurityType { return SecurityNone }

func (NoneAuthenticator) Authenticate(w *wire.Wire) (*wire.Wire, error) {
	return w, nil
}
