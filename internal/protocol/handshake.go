package protocol

import (
	"strings"

	"github.com/ltsm-go/ltsmcore/internal/ltsmerr"
	"github.com/ltsm-go/ltsmcore/internal/wire"
)

// ProtocolVersion is one of the three RFB version strings the handshake
// recognizes.
type ProtocolVersion int

const (
	Version33 ProtocolVersion = iota
	Version37
	Version38
)

const serverVersionString = "RFB 003.008\n"

var clientVersionStrings = map[string]ProtocolVersion{
	"RFB 003.003\n": Version33,
	"RFB 003.007\n": Version37,
	"RFB 003.008\n": Version38,
}

// Handshake writes the server's version string and reads back the
// client's, failing with HandshakeVersion on anything unrecognized.
func Handshake(w *wire.Wire) (ProtocolVersion, error) {
	if err := w.WriteBytes([]byte(serverVersionString)); err != nil {
		return 0, err
	}
	if err := w.Flush(); err != nil {
		return 0, err
	}

	buf := make([]byte, len(serverVersionString))
	if err := w.ReadExact(buf); err != nil {
		return 0, err
	}
	line := string(buf)
	if v, ok := clientVersionStrings[line]; ok {
		return v, nil
	}
	return 0, ltsmerr.New(ltsmerr.HandshakeVersion, "unrecognized client version "+strings.TrimSpace(line))
}
