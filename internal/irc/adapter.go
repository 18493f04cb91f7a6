// Package irc implements the IRC side of the bridge on top of
// ergochat/irc-go: inbound event normalization with relay gating, channel
// state tracking, and paced outbound delivery.
package irc

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/ergochat/irc-go/ircevent"
	"github.com/ergochat/irc-go/ircmsg"

	"github.com/flemzord/ircgram/internal/config"
	"github.com/flemzord/ircgram/internal/metrics"
	"github.com/flemzord/ircgram/internal/relay"
	"github.com/flemzord/ircgram/internal/textform"
	"github.com/flemzord/ircgram/pkg/message"
)

// wire is the subset of the IRC connection the adapter writes to. Factored
// out so outbound behavior is testable without a server.
type wire interface {
	Privmsg(target, message string) error
	SendRaw(line string) error
	Join(channel string) error
}

// Adapter owns the IRC connection, tracks channel state, and converts
// between native IRC events and normalized relay messages.
type Adapter struct {
	conn *ircevent.Connection
	wire wire

	registry *relay.Registry
	cfg      config.IRCConfig
	nick     string
	events   map[string]bool
	hl       *regexp.Regexp

	state *state
	sends *sendPacer

	publish func(*message.Message)
	metrics *metrics.Set
	logger  *slog.Logger
}

// AdapterOptions configures an Adapter.
type AdapterOptions struct {
	Registry *relay.Registry
	Config   config.IRCConfig
	Publish  func(*message.Message)
	Metrics  *metrics.Set
	Logger   *slog.Logger
}

// NewAdapter creates the IRC adapter. The connection is established at Start.
func NewAdapter(opts AdapterOptions) *Adapter {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	events := make(map[string]bool, len(opts.Config.RelayEvents))
	for _, ev := range opts.Config.RelayEvents {
		events[ev] = true
	}
	var hl *regexp.Regexp
	if opts.Config.Highlight != "" {
		hl, _ = regexp.Compile(opts.Config.Highlight) // validated at config load
	}
	return &Adapter{
		registry: opts.Registry,
		cfg:      opts.Config,
		nick:     opts.Config.Nick,
		events:   events,
		hl:       hl,
		state:    newState(),
		sends:    newSendPacer(opts.Config.SendDelay),
		publish:  opts.Publish,
		metrics:  opts.Metrics,
		logger:   logger.With("component", "irc"),
	}
}

// Start connects to the IRC server and begins the event loop. Connection
// failure is fatal; reconnects after that are handled by the client library.
func (a *Adapter) Start() error {
	conn := &ircevent.Connection{
		Server:        fmt.Sprintf("%s:%d", a.cfg.Server, a.cfg.Port),
		Nick:          a.cfg.Nick,
		User:          a.cfg.User,
		RealName:      a.cfg.RealName,
		UseTLS:        a.cfg.TLS,
		Password:      a.cfg.Password,
		ReconnectFreq: time.Minute,
	}
	a.conn = conn
	a.wire = conn
	a.registerHandlers(conn)

	if err := conn.Connect(); err != nil {
		return fmt.Errorf("irc: connect to %s: %w", conn.Server, err)
	}
	go conn.Loop()
	return nil
}

// Stop sends QUIT and lets the library close the connection.
func (a *Adapter) Stop(_ context.Context) error {
	if a.conn != nil {
		a.conn.Quit()
	}
	return nil
}

func (a *Adapter) registerHandlers(conn *ircevent.Connection) {
	conn.AddConnectCallback(func(_ ircmsg.Message) { a.onRegistered() })

	conn.AddCallback("PRIVMSG", func(e ircmsg.Message) {
		if len(e.Params) < 2 {
			return
		}
		target, text := e.Params[0], e.Params[1]
		if !strings.HasPrefix(target, "#") {
			return
		}
		if action, ok := ctcpAction(text); ok {
			a.handleAction(target, e.Nick(), action)
			return
		}
		a.handleMessage(target, e.Nick(), text)
	})

	conn.AddCallback("NOTICE", func(e ircmsg.Message) {
		if len(e.Params) < 2 || !strings.HasPrefix(e.Params[0], "#") {
			return
		}
		a.handleNotice(e.Params[0], e.Nick(), e.Params[1])
	})

	conn.AddCallback("TOPIC", func(e ircmsg.Message) {
		if len(e.Params) < 2 {
			return
		}
		a.handleTopic(e.Params[0], e.Params[1], e.Source)
	})

	// Initial topic on join; relayed through the same path so the
	// join-time echo suppression sees it.
	conn.AddCallback("332", func(e ircmsg.Message) {
		if len(e.Params) < 3 {
			return
		}
		a.handleTopic(e.Params[1], e.Params[2], "")
	})

	// RPL_TOPICWHOTIME carries who set the stored topic.
	conn.AddCallback("333", func(e ircmsg.Message) {
		if len(e.Params) < 3 {
			return
		}
		a.state.setTopicBy(e.Params[1], e.Params[2])
	})

	conn.AddCallback("353", func(e ircmsg.Message) {
		if len(e.Params) < 4 {
			return
		}
		a.state.namesReply(e.Params[2], e.Params[3])
	})

	conn.AddCallback("366", func(e ircmsg.Message) {
		if len(e.Params) < 2 {
			return
		}
		a.state.namesDone(e.Params[1])
	})

	conn.AddCallback("JOIN", func(e ircmsg.Message) {
		if len(e.Params) < 1 {
			return
		}
		a.handleJoin(e.Params[0], e.Nick())
	})

	conn.AddCallback("PART", func(e ircmsg.Message) {
		if len(e.Params) < 1 {
			return
		}
		a.handlePart(e.Params[0], e.Nick())
	})

	conn.AddCallback("KICK", func(e ircmsg.Message) {
		if len(e.Params) < 2 {
			return
		}
		reason := ""
		if len(e.Params) > 2 {
			reason = e.Params[2]
		}
		a.handleKick(e.Params[0], e.Params[1], e.Nick(), reason)
	})

	conn.AddCallback("QUIT", func(e ircmsg.Message) {
		reason := ""
		if len(e.Params) > 0 {
			reason = e.Params[0]
		}
		a.handleQuit(e.Nick(), reason)
	})

	conn.AddCallback("NICK", func(e ircmsg.Message) {
		if len(e.Params) < 1 {
			return
		}
		a.state.renameNick(e.Nick(), e.Params[0])
	})
}

// onRegistered runs the configured post-connect commands and joins all
// bridged channels.
func (a *Adapter) onRegistered() {
	for _, cmd := range a.cfg.Perform {
		if err := a.wire.SendRaw(cmd); err != nil {
			a.logger.Error("perform command failed", "command", cmd, "error", err)
		}
	}
	for _, ch := range a.registry.Channels() {
		var err error
		if ch.IRCChanKey != "" {
			err = a.wire.SendRaw("JOIN " + ch.IRCChan + " " + ch.IRCChanKey)
		} else {
			err = a.wire.Join(ch.IRCChan)
		}
		if err != nil {
			a.logger.Error("join failed", "channel", ch.IRCChan, "error", err)
		}
	}
}

func (a *Adapter) drop(reason string) {
	if a.metrics != nil {
		a.metrics.Dropped.WithLabelValues("irc", reason).Inc()
	}
}

// resolve looks up the bridged pair for an IRC channel name. Unknown
// channels drop the event; relaying to an unmapped destination is undefined.
func (a *Adapter) resolve(chanName string) *message.Channel {
	ch := a.registry.LookupChannel(chanName)
	if ch == nil {
		a.logger.Warn("channel not mapped, dropping event", "channel", chanName)
		a.drop("unknown_channel")
	}
	return ch
}

func (a *Adapter) enabled(event string) bool {
	if a.events[event] {
		return true
	}
	a.drop("event_disabled")
	return false
}

func (a *Adapter) handleMessage(chanName, nick, text string) {
	if !a.enabled("message") {
		return
	}
	a.relayText(chanName, nick, text, message.TypePlain)
}

func (a *Adapter) handleNotice(chanName, nick, text string) {
	if !a.enabled("notice") {
		return
	}
	a.relayText(chanName, nick, text, message.TypePlain)
}

func (a *Adapter) handleAction(chanName, nick, text string) {
	if !a.enabled("action") {
		return
	}
	a.relayText(chanName, nick, text, message.TypeAction)
}

// relayText applies highlight detection and read-only gating shared by
// message, notice and action events.
func (a *Adapter) relayText(chanName, nick, text string, typ message.Type) {
	ch := a.resolve(chanName)
	if ch == nil {
		return
	}

	text = textform.StripColorCodes(strings.TrimSpace(text))

	var match []string
	if a.hl != nil {
		match = a.hl.FindStringSubmatch(text)
	}
	if match != nil && a.cfg.HighlightOnlyMatch && len(match) > 1 {
		text = match[1]
	}
	if ch.IRCReadOnly && !(ch.IRCOverrideReadOnly && match != nil) {
		a.drop("read_only")
		return
	}

	a.publish(&message.Message{
		Protocol: message.ProtocolIRC,
		Channel:  ch,
		Type:     typ,
		User:     nick,
		Text:     text,
		ReplyTo:  message.ExtractReplyID(text),
		Time:     time.Now(),
	})
}

func (a *Adapter) handleTopic(chanName, topic, source string) {
	a.state.setTopic(chanName, topic, source)
	if !a.enabled("topic") {
		return
	}
	ch := a.resolve(chanName)
	if ch == nil {
		return
	}
	// IRC servers echo the current topic when joining; the first topic
	// event per channel session is that echo, not a change.
	if ch.MarkTopicSeen() {
		a.drop("first_topic")
		return
	}
	a.publish(&message.Message{
		Protocol: message.ProtocolIRC,
		Channel:  ch,
		Type:     message.TypeTopic,
		Text:     topicFormat(ch, topic, source),
		Time:     time.Now(),
	})
}

func (a *Adapter) handleJoin(chanName, nick string) {
	a.state.addNick(chanName, nick)
	if nick == a.nick {
		return
	}
	if !a.enabled("join") {
		return
	}
	ch := a.resolve(chanName)
	if ch == nil {
		return
	}
	a.publish(&message.Message{
		Protocol: message.ProtocolIRC,
		Channel:  ch,
		Type:     message.TypeJoin,
		Text:     nick + " has joined",
		Time:     time.Now(),
	})
}

func (a *Adapter) handlePart(chanName, nick string) {
	a.state.removeNick(chanName, nick)
	if nick == a.nick {
		return
	}
	if !a.enabled("part") {
		return
	}
	ch := a.resolve(chanName)
	if ch == nil {
		return
	}
	a.publish(&message.Message{
		Protocol: message.ProtocolIRC,
		Channel:  ch,
		Type:     message.TypePart,
		Text:     nick + " has left",
		Time:     time.Now(),
	})
}

func (a *Adapter) handleKick(chanName, nick, by, reason string) {
	a.state.removeNick(chanName, nick)
	if !a.enabled("kick") {
		return
	}
	ch := a.resolve(chanName)
	if ch == nil {
		return
	}
	a.publish(&message.Message{
		Protocol: message.ProtocolIRC,
		Channel:  ch,
		Type:     message.TypePart,
		Text:     fmt.Sprintf("%s was kicked by %s (%s)", nick, by, reason),
		Time:     time.Now(),
	})
}

// handleQuit fans the quit out to every bridged channel the user shared
// with the bridge.
func (a *Adapter) handleQuit(nick, reason string) {
	channels := a.state.removeNickEverywhere(nick)
	if !a.enabled("quit") {
		return
	}
	text := nick + " has quit"
	if reason != "" {
		text += " (" + reason + ")"
	}
	for _, chanName := range channels {
		ch := a.registry.LookupChannel(chanName)
		if ch == nil {
			continue
		}
		a.publish(&message.Message{
			Protocol: message.ProtocolIRC,
			Channel:  ch,
			Type:     message.TypeQuit,
			Text:     text,
			Time:     time.Now(),
		})
	}
}

// Names returns the current nick list with mode prefixes applied.
func (a *Adapter) Names(ch *message.Channel) []string {
	return a.state.nameList(ch.IRCChan)
}

// Topic returns the user-facing topic text for the channel.
func (a *Adapter) Topic(ch *message.Channel) string {
	topic, by := a.state.topicOf(ch.IRCChan)
	return topicFormat(ch, topic, by)
}

// topicFormat renders a topic the way channel members see it, one " | "
// separated segment per line, naming who set it.
func topicFormat(ch *message.Channel, topic, by string) string {
	if topic == "" {
		return "No topic for channel " + ch.DisplayName()
	}
	nick := strings.SplitN(by, "!", 2)[0]
	return "Topic for channel " + ch.DisplayName() + ":\n | " +
		strings.Join(strings.Split(topic, " | "), "\n | ") +
		"\n * set by " + nick
}

// ctcpAction unwraps a CTCP ACTION ("/me") payload.
func ctcpAction(text string) (string, bool) {
	if strings.HasPrefix(text, "\x01ACTION ") && strings.HasSuffix(text, "\x01") {
		return strings.TrimSuffix(strings.TrimPrefix(text, "\x01ACTION "), "\x01"), true
	}
	return "", false
}
