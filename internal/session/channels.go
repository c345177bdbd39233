package session

import (
	"encoding/json"

	"github.com/ltsm-go/ltsmcore/internal/channelmux"
	"github.com/ltsm-go/ltsmcore/internal/channelmux/fuse"
	"github.com/ltsm-go/ltsmcore/internal/channelmux/pkcs11"
	"github.com/ltsm-go/ltsmcore/internal/ltsmerr"
)

// handleSystemFrame dispatches one channel-0 JSON control command.
// A bridge kind ("fuse", "pkcs11") is wired straight to its own
// sub-protocol bridge rather than going through Mux.Open's generic
// io.ReadWriteCloser path, since those kinds speak a typed RPC protocol, not
// a raw byte stream.
func (s *Session) handleSystemFrame(fr channelmux.Frame) error {
	sc, err := channelmux.ParseSystemCommand(fr.Payload)
	if err != nil {
		return err
	}
	switch sc.Cmd {
	case channelmux.CmdChannelOpen:
		return s.handleChannelOpen(fr.Payload)
	case channelmux.CmdChannelClose:
		return s.handleChannelClose(fr.Payload)
	case channelmux.CmdChannelConnected, channelmux.CmdChannelError:
		s.cfg.Logger.Printf("session: system command %s: %s", sc.Cmd, fr.Payload)
		return nil
	default:
		s.cfg.Logger.Printf("session: unhandled system command %q", sc.Cmd)
		return nil
	}
}

func (s *Session) handleChannelOpen(payload []byte) error {
	var open channelmux.ChannelOpenCommand
	if err := decodeJSON(payload, &open); err != nil {
		return err
	}
	mode := channelmux.ModeFromString(open.Mode)

	switch open.Kind {
	case "fuse":
		b := fuse.NewBridge(func(p []byte) error {
			return s.mux.Send(channelmux.Frame{Channel: open.ID, Payload: p})
		})
		s.bridgesMu.Lock()
		s.fuseBridges[open.ID] = b
		s.bridgesMu.Unlock()
	case "pkcs11":
		b := pkcs11.NewBridge(func(p []byte) error {
			return s.mux.Send(channelmux.Frame{Channel: open.ID, Payload: p})
		})
		s.bridgesMu.Lock()
		s.pkcs11Bridges[open.ID] = b
		s.bridgesMu.Unlock()
	}

	if _, err := s.mux.Open(open.ID, open.Kind, open.Target, mode, nil); err != nil {
		s.bridgesMu.Lock()
		delete(s.fuseBridges, open.ID)
		delete(s.pkcs11Bridges, open.ID)
		s.bridgesMu.Unlock()
		return s.mux.Send(channelmux.Frame{
			Channel: channelmux.SystemChannel,
			Payload: channelmux.EncodeChannelError(open.ID, err.Error()),
		})
	}
	return s.mux.Send(channelmux.Frame{
		Channel: channelmux.SystemChannel,
		Payload: channelmux.EncodeChannelConnected(open.ID),
	})
}

func (s *Session) handleChannelClose(payload []byte) error {
	var closeCmd channelmux.ChannelCloseCommand
	if err := decodeJSON(payload, &closeCmd); err != nil {
		return err
	}
	s.bridgesMu.Lock()
	if b, ok := s.fuseBridges[closeCmd.ID]; ok {
		b.Close()
		delete(s.fuseBridges, closeCmd.ID)
	}
	if b, ok := s.pkcs11Bridges[closeCmd.ID]; ok {
		b.Close()
		delete(s.pkcs11Bridges, closeCmd.ID)
	}
	s.bridgesMu.Unlock()
	return s.mux.Close(closeCmd.ID)
}

func (s *Session) fuseBridge(id uint8) (*fuse.Bridge, bool) {
	s.bridgesMu.Lock()
	defer s.bridgesMu.Unlock()
	b, ok := s.fuseBridges[id]
	return b, ok
}

func (s *Session) pkcs11Bridge(id uint8) (*pkcs11.Bridge, bool) {
	s.bridgesMu.Lock()
	defer s.bridgesMu.Unlock()
	b, ok := s.pkcs11Bridges[id]
	return b, ok
}

func decodeJSON(payload []byte, v interface{}) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return ltsmerr.Wrap(ltsmerr.ChannelError, "decode system command", err)
	}
	return nil
}
