// Package relay holds the channel registry and the router that moves
// normalized messages between the two protocol adapters.
package relay

import (
	"strings"

	"github.com/flemzord/ircgram/internal/config"
	"github.com/flemzord/ircgram/pkg/message"
)

// Registry is the lookup table over the configured channel pairs. The list
// is small and static; an O(n) scan keeps the semantics obvious.
type Registry struct {
	channels []*message.Channel
}

// NewRegistry builds the shared Channel records from configuration.
// Adapters receive the same *Channel pointers, never copies, so chat-id
// discovery is visible to both directions.
func NewRegistry(pairs []config.ChannelConfig) *Registry {
	channels := make([]*message.Channel, 0, len(pairs))
	for _, p := range pairs {
		channels = append(channels, &message.Channel{
			IRCChan:             p.IRCChan,
			IRCChanKey:          p.IRCChanKey,
			TGGroup:             p.TGGroup,
			Alias:               p.Alias,
			IRCReadOnly:         p.IRCReadOnly,
			IRCOverrideReadOnly: p.IRCOverrideReadOnly,
			TGReadOnly:          p.TGReadOnly,
			TGOverrideReadOnly:  p.TGOverrideReadOnly,
		})
	}
	return &Registry{channels: channels}
}

// Channels returns all configured pairs.
func (r *Registry) Channels() []*message.Channel {
	return r.channels
}

// FindByGroup matches a Telegram group title exactly.
func (r *Registry) FindByGroup(name string) *message.Channel {
	for _, ch := range r.channels {
		if ch.TGGroup == name {
			return ch
		}
	}
	return nil
}

// FindByChannel matches an IRC channel name exactly.
func (r *Registry) FindByChannel(name string) *message.Channel {
	for _, ch := range r.channels {
		if ch.IRCChan == name {
			return ch
		}
	}
	return nil
}

// LookupChannel matches an IRC channel name case-insensitively. IRC servers
// do not preserve channel name casing reliably, so the IRC side always
// resolves through this.
func (r *Registry) LookupChannel(name string) *message.Channel {
	for _, ch := range r.channels {
		if strings.EqualFold(ch.IRCChan, name) {
			return ch
		}
	}
	return nil
}
