package message

import (
	"encoding/json"
	"regexp"
	"time"
)

// IDPattern matches a relay short id embedded in message text, e.g. "$a1b2".
// IRC users reply to a Telegram message by quoting its id.
var IDPattern = regexp.MustCompile(`\$([0-9a-f]{4})\b`)

// NickPattern matches the "<nick> " prefix the bridge prepends to relayed
// text, so reply snippets can strip it before truncation.
var NickPattern = regexp.MustCompile(`^<[^>]*> `)

// Message is the normalized representation of one chat event. A Message with
// a non-empty Cmd is a control command for the router; everything else is
// deliverable text.
//
// Channel is never nil for a deliverable Message — adapters drop events that
// fail channel resolution instead of emitting them.
type Message struct {
	Protocol Protocol
	Channel  *Channel
	Type     Type

	// User is the display name of the author, empty for system events
	// (joins, parts, topics) whose text already names the actor.
	User string
	Text string

	// ReplyTo is the short id of a previously relayed message this one
	// replies to, when the author quoted one.
	ReplyTo string
	// ReplyText is the text of the natively quoted message, when the
	// originating protocol carries one. Used for outbound reply snippets.
	ReplyText string
	// ID is the short id assigned to this message once recorded.
	ID string
	// NativeID is the originating protocol's message id, when it has one.
	NativeID string

	// Cmd marks the message as a control command.
	Cmd Command
	// CmdEcho carries the original "<nick> /command ..." text relayed
	// alongside a CmdSendCommand, so channel members see who issued it.
	CmdEcho string

	// Time is the arrival time on the originating side.
	Time time.Time

	// Original retains the native event payload for formatting fallback,
	// e.g. extracting a reply snippet from a Telegram reply_to_message.
	Original json.RawMessage
}

// IsCommand reports whether the message is a control command.
func (m *Message) IsCommand() bool {
	return m.Cmd != CmdNone
}

// ExtractReplyID returns the short id quoted in text, if any.
func ExtractReplyID(text string) string {
	if m := IDPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// StripNickPrefix removes a leading "<nick> " marker from relayed text.
func StripNickPrefix(text string) string {
	return NickPattern.ReplaceAllString(text, "")
}
