package protocol

import (
	"github.com/jcmturner/gokrb5/v8/keytab"
	"github.com/jcmturner/gokrb5/v8/messages"
	"github.com/jcmturner/gokrb5/v8/service"

	"github.com/ltsm-go/ltsmcore/internal/ltsmerr"
	"github.com/ltsm-go/ltsmcore/internal/wire"
)

// GSSAPIAuthenticator implements the GSSAPI security type: the
// client sends a single length-prefixed Kerberos AP-REQ token, the server
// verifies it against a keytab, and replies with a u32 status word (0 ==
// accepted) before the regular SecurityResult. No SPNEGO/HTTP layer is
// involved -- this is the raw AP-REQ/AP-REP exchange libvncserver's GSSAPI
// security type also uses, so only github.com/jcmturner/gokrb5/v8's
// service.VerifyAPREQ is needed, not its SPNEGO middleware.
type GSSAPIAuthenticator struct {
	Keytab *keytab.Keytab
	SPN    string // service principal name the keytab entry must match
	Realm  string
}

func (GSSAPIAuthenticator) Type() SecurityType { return SecurityGSSAPI }

func (a GSSAPIAuthenticator) Authenticate(w *wire.Wire) (*wire.Wire, error) {
	tokenLen, err := w.ReadU32BE()
	if err != nil {
		return nil, err
	}
	token := make([]byte, tokenLen)
	if err := w.ReadExact(token); err != nil {
		return nil, err
	}

	var apReq messages.APReq
	if err := apReq.Unmarshal(token); err != nil {
		writeGSSAPIStatus(w, false)
		return nil, ltsmerr.WrapSecurity(ltsmerr.SecurityKerberosFailed, "unmarshal AP-REQ", err)
	}

	opts := []func(*service.Settings){}
	if a.SPN != "" {
		opts = append(opts, service.KeytabPrincipal(a.SPN))
	}
	settings := service.NewSettings(a.Keytab, opts...)
	ok, _, err := service.VerifyAPREQ(&apReq, settings)
	if err != nil || !ok {
		writeGSSAPIStatus(w, false)
		return nil, ltsmerr.WrapSecurity(ltsmerr.SecurityKerberosFailed, "verify AP-REQ", err)
	}

	if err := writeGSSAPIStatus(w, true); err != nil {
		return nil, err
	}
	return w, nil
}

func writeGSSAPIStatus(w *wire.Wire, ok bool) error {
	var status uint32
	if !ok {
		status = 1
	}
	if err := w.WriteU32BE(status); err != nil {
		return err
	}
	return w.Flush()
}
