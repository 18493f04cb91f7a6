package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/flemzord/ircgram/internal/config"
	"github.com/flemzord/ircgram/internal/metrics"
	"github.com/flemzord/ircgram/internal/relay"
	"github.com/flemzord/ircgram/internal/store"
	"github.com/flemzord/ircgram/internal/textform"
	"github.com/flemzord/ircgram/pkg/message"
)

const noChatIDText = "No chat_id set! Add me to a Telegram group " +
	"and say hi so I can find your group's chat_id!"

// Resolver resolves relay short ids back to native message ids.
type Resolver interface {
	Resolve(shortID string) (string, bool)
}

// Adapter owns the Telegram side of the bridge: the Bot API client, the
// long-poll update source, inbound normalization and outbound delivery.
type Adapter struct {
	client  *Client
	poller  *Poller
	parser  *Parser
	chatIDs *store.ChatIDStore
	ids     Resolver

	tgCfg  config.TelegramConfig
	fmtCfg config.FormatConfig

	publish func(*message.Message)
	metrics *metrics.Set
	logger  *slog.Logger
}

// AdapterOptions configures an Adapter.
type AdapterOptions struct {
	Registry    *relay.Registry
	ChatIDs     *store.ChatIDStore
	IDs         Resolver
	Media       MediaHost // nil disables media URL resolution
	Telegram    config.TelegramConfig
	Format      config.FormatConfig
	MediaConfig config.MediaConfig
	Publish     func(*message.Message)
	Metrics     *metrics.Set
	Logger      *slog.Logger
}

// NewAdapter creates the Telegram adapter. The bot's own username, needed
// for highlight detection and reply-name recovery, is fetched at Start.
func NewAdapter(opts AdapterOptions) *Adapter {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := NewClient(opts.Telegram.Token, opts.Telegram.APIURL)
	a := &Adapter{
		client:  client,
		chatIDs: opts.ChatIDs,
		ids:     opts.IDs,
		tgCfg:   opts.Telegram,
		fmtCfg:  opts.Format,
		publish: opts.Publish,
		metrics: opts.Metrics,
		logger:  logger.With("component", "telegram"),
	}
	a.parser = NewParser(ParserOptions{
		Registry:    opts.Registry,
		ChatIDs:     opts.ChatIDs,
		Media:       opts.Media,
		Telegram:    opts.Telegram,
		Format:      opts.Format,
		MediaConfig: opts.MediaConfig,
		Publish:     opts.Publish,
		Metrics:     opts.Metrics,
		Logger:      logger,
	})
	a.poller = NewPoller(client, a.parser.HandleUpdate, opts.Telegram.PollingTimeout, logger)
	return a
}

// Client exposes the Bot API client for collaborators (media downloads).
func (a *Adapter) Client() *Client { return a.client }

// Start authenticates against the Bot API and begins long polling.
// Authentication failure is fatal; the process is expected to be supervised.
func (a *Adapter) Start() error {
	me, err := a.client.GetMe(context.Background())
	if err != nil {
		return fmt.Errorf("telegram: authenticate: %w", err)
	}
	a.parser.botUsername = me.Username
	a.logger.Info("telegram bot authenticated", "username", me.Username)
	a.poller.Start()
	return nil
}

// Stop halts the polling loop.
func (a *Adapter) Stop(_ context.Context) error {
	a.poller.Stop()
	return nil
}

// Send delivers a normalized message into the channel's Telegram group.
// When the chat id is still unknown a remediation notice is surfaced to the
// IRC side and the message is dropped.
func (a *Adapter) Send(ctx context.Context, msg *message.Message) error {
	ch := msg.Channel

	chatID := ch.TGChatID()
	if chatID == 0 {
		if id, ok := a.chatIDs.Lookup(ch.TGGroup); ok {
			ch.SetTGChatID(id)
			chatID = id
		}
	}
	if chatID == 0 {
		a.logger.Error("no chat id for group", "group", ch.TGGroup)
		a.publish(&message.Message{
			Protocol: message.ProtocolTelegram,
			Channel:  ch,
			Type:     message.TypePlain,
			Text:     noChatIDText,
		})
		if a.metrics != nil {
			a.metrics.Dropped.WithLabelValues("irc", "no_chat_id").Inc()
		}
		return nil
	}

	style := textform.Style(a.fmtCfg.ParseMode)
	parseMode := ""
	if style == textform.StyleMarkdown || style == textform.StyleHTML {
		parseMode = string(style)
	}

	text := msg.Text
	switch {
	case msg.Type == message.TypeAction:
		text = textform.FormatAction(msg.User, text, style, a.fmtCfg.EmNick)
	case msg.User != "":
		text = textform.FormatNick(msg.User, style, a.fmtCfg.EmNick) + " " + text
		if style == textform.StyleMarkdown {
			text = textform.EscapeUnbalanced(text)
		}
	}

	req := SendMessageRequest{
		ChatID:    chatID,
		Text:      text,
		ParseMode: parseMode,
	}

	// Replies quoting a known relay id link natively; the quoted marker is
	// then redundant and stripped from the visible text.
	if msg.ReplyTo != "" {
		if native, ok := a.ids.Resolve(msg.ReplyTo); ok {
			if id, err := strconv.Atoi(native); err == nil {
				req.ReplyToMessageID = id
				req.Text = message.IDPattern.ReplaceAllString(req.Text, "")
			}
		}
	}

	if _, err := a.client.SendMessage(ctx, req); err != nil {
		if parseMode == "" {
			return fmt.Errorf("telegram: send to %q: %w", ch.TGGroup, err)
		}
		// Formatting rejections are the common failure; retry once as
		// plain text before giving up.
		a.logger.Warn("send failed, falling back to plain text", "error", err)
		req.ParseMode = ""
		if _, err := a.client.SendMessage(ctx, req); err != nil {
			return fmt.Errorf("telegram: plain-text fallback to %q: %w", ch.TGGroup, err)
		}
	}
	return nil
}
