package message

import "sync"

// Channel is one bridged IRC-channel ↔ Telegram-group pair. Channels are
// loaded from configuration at startup and live for the whole process.
//
// Both adapters hold the same *Channel so that chat-id discovery on the
// Telegram side is immediately visible to outbound sends from the IRC side.
// The mutable fields are guarded because the two protocol connections run
// as independent goroutines.
type Channel struct {
	// IRCChan is the IRC channel name. Lookups on it are case-insensitive.
	IRCChan string
	// IRCChanKey is an optional channel key appended to JOIN.
	IRCChanKey string
	// TGGroup is the Telegram group title. Lookups on it are exact.
	TGGroup string
	// Alias overrides the display name in user-facing text.
	Alias string

	IRCReadOnly         bool
	IRCOverrideReadOnly bool
	TGReadOnly          bool
	TGOverrideReadOnly  bool

	mu             sync.Mutex
	tgChatID       int64
	firstTopicSeen bool
}

// TGChatID returns the discovered Telegram chat id, or 0 when unknown.
func (c *Channel) TGChatID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tgChatID
}

// SetTGChatID records the Telegram chat id for this pair.
func (c *Channel) SetTGChatID(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tgChatID = id
}

// MarkTopicSeen records that a topic event arrived for this channel and
// reports whether it was the first one of the session. IRC servers echo the
// current topic on join; the first event per channel is suppressed.
func (c *Channel) MarkTopicSeen() (first bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.firstTopicSeen {
		c.firstTopicSeen = true
		return true
	}
	return false
}

// DisplayName returns the alias when configured, else the IRC channel name.
func (c *Channel) DisplayName() string {
	if c.Alias != "" {
		return c.Alias
	}
	return c.IRCChan
}
