// Package message defines the protocol-neutral data contract between the
// IRC and Telegram adapters and the relay router.
package message

// Protocol identifies which side of the bridge produced a message.
type Protocol string

const (
	// ProtocolIRC marks messages originating from the IRC side.
	ProtocolIRC Protocol = "irc"
	// ProtocolTelegram marks messages originating from the Telegram side.
	ProtocolTelegram Protocol = "telegram"
)

// Type discriminates the kind of chat event a Message carries.
type Type string

// Supported message types.
const (
	TypePlain  Type = "plain"
	TypeAction Type = "action"
	TypeTopic  Type = "topic"
	TypeJoin   Type = "join"
	TypePart   Type = "part"
	TypeQuit   Type = "quit"
)

// Command enumerates the control commands produced from Telegram
// slash-commands. Commands are consumed by the router and never hit either
// protocol's wire format as-is.
type Command string

// Supported commands.
const (
	CmdNone        Command = ""
	CmdNames       Command = "getNames"
	CmdTopic       Command = "getTopic"
	CmdVersion     Command = "getVersion"
	CmdSendCommand Command = "sendCommand"
	CmdBroadcast   Command = "broadcast"
)
