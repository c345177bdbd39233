package channelmux

import (
	"encoding/json"

	"github.com/ltsm-go/ltsmcore/internal/ltsmerr"
)

// SystemCommand is the JSON envelope every channel-0 control message
// uses: `{cmd: "ChannelOpen"|..., ...}`. Fields beyond Cmd are
// command-specific and carried in the raw message for the caller to
// re-unmarshal into a concrete type.
type SystemCommand struct {
	Cmd string `json:"cmd"`
}

// Known system channel command names.
const (
	CmdChannelOpen      = "ChannelOpen"
	CmdChannelListen    = "ChannelListen"
	CmdChannelClose     = "ChannelClose"
	CmdChannelConnected = "ChannelConnected"
	CmdChannelError     = "ChannelError"
	CmdFuseProxy        = "FuseProxy"
	CmdTokenAuth        = "TokenAuth"
	CmdLoginSuccess     = "LoginSuccess"
	CmdClientVariables  = "ClientVariables"
	CmdKeyboardChange   = "KeyboardChange"
	CmdKeyboardEvent    = "KeyboardEvent"
	CmdCursorFailed     = "CursorFailed"
	CmdTransferFiles    = "TransferFiles"
)

// ChannelOpenCommand requests a new channel be admitted.
type ChannelOpenCommand struct {
	Cmd    string `json:"cmd"`
	ID     uint8  `json:"id"`
	Kind   string `json:"kind"`
	Target string `json:"target"`
	Mode   string `json:"mode"` // "ro" | "wo" | "rw"
}

// ChannelCloseCommand notifies the peer a channel was closed.
type ChannelCloseCommand struct {
	Cmd string `json:"cmd"`
	ID  uint8  `json:"id"`
}

// ChannelConnectedCommand confirms a channel was admitted on this end.
type ChannelConnectedCommand struct {
	Cmd string `json:"cmd"`
	ID  uint8  `json:"id"`
}

// ChannelErrorCommand reports a channel-level failure to the peer.
type ChannelErrorCommand struct {
	Cmd   string `json:"cmd"`
	ID    uint8  `json:"id"`
	Error string `json:"error"`
}

// ParseSystemCommand unmarshals the command name from a channel-0 payload.
// Unknown command names are not an error here; the caller decides whether
// to log and drop.
func ParseSystemCommand(payload []byte) (SystemCommand, error) {
	var sc SystemCommand
	if err := json.Unmarshal(payload, &sc); err != nil {
		return SystemCommand{}, ltsmerr.Wrap(ltsmerr.ChannelError, "parse system command", err)
	}
	return sc, nil
}

// ModeFromString maps the JSON "ro"/"wo"/"rw" mode string to a Mode.
func ModeFromString(s string) Mode {
	switch s {
	case "ro":
		return ModeRead
	case "wo":
		return ModeWrite
	default:
		return ModeReadWrite
	}
}

func marshalCommand(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// Every SystemCommand payload type here is a plain struct of
		// strings/ints; json.Marshal only fails on unsupported types
		// (channels, funcs, cyclic structures), none of which appear.
		panic(err)
	}
	return b
}

// EncodeChannelOpen builds the system-channel payload for a ChannelOpen
// command.
func EncodeChannelOpen(id uint8, kind, target, mode string) []byte {
	return marshalCommand(ChannelOpenCommand{Cmd: CmdChannelOpen, ID: id, Kind: kind, Target: target, Mode: mode})
}

// EncodeChannelClose builds the system-channel payload for a ChannelClose
// notification.
func EncodeChannelClose(id uint8) []byte {
	return marshalCommand(ChannelCloseCommand{Cmd: CmdChannelClose, ID: id})
}

// EncodeChannelConnected builds the system-channel payload confirming a
// channel was admitted.
func EncodeChannelConnected(id uint8) []byte {
	return marshalCommand(ChannelConnectedCommand{Cmd: CmdChannelConnected, ID: id})
}

// EncodeChannelError builds the system-channel payload reporting a channel
// failure.
func EncodeChannelError(id uint8, reason string) []byte {
	return marshalCommand(ChannelErrorCommand{Cmd: CmdChannelError, ID: id, Error: reason})
}
