// Package protocol implements the RFB state machine: version/security
// handshake, ClientInit/ServerInit, and the server message dispatch loop,
// a pluggable dispatcher with a typed error path.
package protocol

// Client-to-server message types.
const (
	MsgSetPixelFormat           = 0
	MsgSetEncodings             = 2
	MsgFramebufferUpdateRequest = 3
	MsgKeyEvent                 = 4
	MsgPointerEvent             = 5
	MsgClientCutText            = 6
	MsgEnableContinuousUpdates  = 150
	MsgSetDesktopSize           = 251
	MsgLTSM                     = 119
)

// Server-to-client message types.
const (
	MsgFramebufferUpdate = 0
	MsgBell              = 2
	MsgServerCutText     = 3
)
