package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/flemzord/ircgram/internal/config"
	"github.com/flemzord/ircgram/internal/metrics"
	"github.com/flemzord/ircgram/internal/relay"
	"github.com/flemzord/ircgram/internal/store"
	"github.com/flemzord/ircgram/internal/textform"
	"github.com/flemzord/ircgram/pkg/message"
)

// MediaHost resolves a Telegram file id to a shareable URL, either by
// re-serving the file locally or by uploading it to an external host.
// Retrieval is slow (download, possibly a format conversion), so the parser
// calls it off the polling goroutine.
type MediaHost interface {
	ServeFile(ctx context.Context, fileID string) (string, error)
	Upload(ctx context.Context, fileID string) (string, error)
}

// ircNamePattern extracts the IRC nick from relayed text like "<nick> hi",
// used when a reply or forward quotes one of the bridge's own messages.
var ircNamePattern = regexp.MustCompile(`^<(.*?)>`)

// Parser turns raw Bot API updates into normalized relay messages or
// commands. Branches are evaluated in a fixed priority order and the first
// matching branch terminates processing for the update.
type Parser struct {
	registry *relay.Registry
	chatIDs  *store.ChatIDStore
	media    MediaHost

	tgCfg    config.TelegramConfig
	fmtCfg   config.FormatConfig
	mediaCfg config.MediaConfig

	publish func(*message.Message)
	metrics *metrics.Set
	logger  *slog.Logger

	botUsername string
	now         func() time.Time
}

// ParserOptions configures a Parser.
type ParserOptions struct {
	Registry    *relay.Registry
	ChatIDs     *store.ChatIDStore
	Media       MediaHost // nil disables media URL resolution
	Telegram    config.TelegramConfig
	Format      config.FormatConfig
	MediaConfig config.MediaConfig
	Publish     func(*message.Message)
	Metrics     *metrics.Set
	Logger      *slog.Logger
	BotUsername string
}

// NewParser creates a Parser.
func NewParser(opts ParserOptions) *Parser {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{
		registry:    opts.Registry,
		chatIDs:     opts.ChatIDs,
		media:       opts.Media,
		tgCfg:       opts.Telegram,
		fmtCfg:      opts.Format,
		mediaCfg:    opts.MediaConfig,
		publish:     opts.Publish,
		metrics:     opts.Metrics,
		logger:      logger.With("component", "telegram"),
		botUsername: opts.BotUsername,
		now:         time.Now,
	}
}

// HandleUpdate processes one update. Edited messages are relayed only when
// configured; they flow through the same pipeline with the edit timestamp
// taking over for age filtering.
func (p *Parser) HandleUpdate(upd *Update) {
	msg := upd.Message
	edited := false
	if msg == nil {
		if upd.EditedMessage == nil {
			return
		}
		if !p.tgCfg.RelayEdits {
			p.drop("edit_disabled")
			return
		}
		msg = upd.EditedMessage
		edited = true
	}
	p.parse(msg, edited)
}

func (p *Parser) drop(reason string) {
	if p.metrics != nil {
		p.metrics.Dropped.WithLabelValues("telegram", reason).Inc()
	}
}

func (p *Parser) parse(msg *Message, edited bool) {
	// Private /say broadcasts into a named channel pair.
	if msg.Chat.Type == "private" && strings.HasPrefix(msg.Text, "/say") {
		p.commandSay(msg)
		return
	}

	ch := p.registry.FindByGroup(msg.Chat.Title)
	if ch == nil {
		p.logger.Info("telegram group not mapped, dropping message", "group", msg.Chat.Title)
		p.drop("unknown_group")
		return
	}

	// A migration to a supergroup renumbers the chat. Store the new id and
	// relay nothing for this update.
	if msg.MigrateToChatID != 0 {
		p.logger.Info("chat migrated to supergroup", "group", ch.TGGroup, "chat_id", msg.MigrateToChatID)
		ch.SetTGChatID(msg.MigrateToChatID)
		if err := p.chatIDs.Set(ch.TGGroup, msg.MigrateToChatID); err != nil {
			p.logger.Error("could not persist chat id", "error", err)
		}
		return
	}

	// First contact in a newly-added group self-registers the chat id.
	if ch.TGChatID() == 0 {
		p.logger.Info("storing chat id", "group", ch.TGGroup, "chat_id", msg.Chat.ID)
		ch.SetTGChatID(msg.Chat.ID)
		if err := p.chatIDs.Set(ch.TGGroup, msg.Chat.ID); err != nil {
			p.logger.Error("could not persist chat id", "error", err)
		}
	}

	date := msg.Date
	if msg.EditDate != 0 {
		date = msg.EditDate
	}
	if p.tgCfg.MaxMsgAge > 0 {
		age := p.now().Unix() - date
		if age > int64(p.tgCfg.MaxMsgAge/time.Second) {
			p.logger.Warn("skipping old message, check max_msg_age and the system clock",
				"age_seconds", age)
			p.drop("too_old")
			return
		}
	}

	// Media messages pass only when media relaying is on, with one
	// exception: photos still flow when external upload is configured.
	if msg.HasMedia() && !p.mediaCfg.Enabled {
		if !(len(msg.Photo) > 0 && p.mediaCfg.Upload != "") {
			p.drop("media_disabled")
			return
		}
	}

	emit := p.emitter(ch, msg)

	if msg.Text != "" && strings.HasPrefix(msg.Text, "/") {
		p.parseCommand(msg, ch, emit)
		return
	}

	text := msg.Text
	if text != "" {
		text = textform.ReconstructSpans(text, entitySpans(msg.Entities), p.logger)
	}
	if edited && text != "" {
		text = "[Edit] " + text
	}

	switch {
	case msg.ReplyToMessage != nil && text != "":
		reply := msg.ReplyToMessage
		out := emitBase(msg, ch)
		out.User = p.prefixName(msg.From)
		out.Text = p.replyName(reply) + p.replySnippet(msg, reply) + "\x03: " + text
		out.ReplyText = reply.Text
		emit(out)

	case (msg.ForwardFrom != nil || msg.ForwardFromChat != nil) && text != "":
		out := emitBase(msg, ch)
		out.User = p.prefixName(msg.From)
		out.Text = "Fwd from " + p.forwardName(msg) + ": " + text
		emit(out)

	case msg.Audio != nil:
		p.emitMedia(msg, ch, emit, msg.Audio.FileID, false, func(url string) string {
			return fmt.Sprintf("(Audio, %ds)%s", msg.Audio.Duration, url)
		})

	case msg.Document != nil:
		p.emitMedia(msg, ch, emit, msg.Document.FileID, false, func(url string) string {
			return "(Document) " + url
		})

	case len(msg.Photo) > 0:
		photo := msg.Photo[len(msg.Photo)-1] // highest quality size is last
		p.emitMedia(msg, ch, emit, photo.FileID, true, func(url string) string {
			return fmt.Sprintf("(Photo, %dx%d) %s%s", photo.Width, photo.Height, url, caption(msg))
		})

	case len(msg.NewChatPhoto) > 0:
		photo := msg.NewChatPhoto[len(msg.NewChatPhoto)-1]
		p.emitMedia(msg, ch, emit, photo.FileID, true, func(url string) string {
			return fmt.Sprintf("(New chat photo, %dx%d) %s", photo.Width, photo.Height, url)
		})

	case msg.Sticker != nil:
		p.emitMedia(msg, ch, emit, msg.Sticker.FileID, false, func(url string) string {
			return fmt.Sprintf("(Sticker, %dx%d) %s", msg.Sticker.Width, msg.Sticker.Height, url)
		})

	case msg.Video != nil:
		p.emitMedia(msg, ch, emit, msg.Video.FileID, false, func(url string) string {
			return fmt.Sprintf("(Video, %ds) %s%s", msg.Video.Duration, url, caption(msg))
		})

	case msg.Voice != nil:
		p.emitMedia(msg, ch, emit, msg.Voice.FileID, false, func(url string) string {
			return fmt.Sprintf("(Voice, %ds) %s", msg.Voice.Duration, url)
		})

	case msg.Contact != nil:
		out := emitBase(msg, ch)
		out.User = p.prefixName(msg.From)
		out.Text = fmt.Sprintf("(Contact, %q, %s)",
			strings.TrimSpace(msg.Contact.FirstName+" "+msg.Contact.LastName),
			msg.Contact.PhoneNumber)
		emit(out)

	case msg.Location != nil:
		out := emitBase(msg, ch)
		out.User = p.prefixName(msg.From)
		out.Text = fmt.Sprintf("(Location, lon: %v, lat: %v)",
			msg.Location.Longitude, msg.Location.Latitude)
		emit(out)

	case msg.NewChatParticipant != nil:
		out := emitBase(msg, ch)
		out.Type = message.TypeJoin
		out.Text = p.displayName(msg.NewChatParticipant) + " was added by: " + p.displayName(msg.From)
		emit(out)

	case msg.LeftChatParticipant != nil:
		out := emitBase(msg, ch)
		out.Type = message.TypePart
		out.Text = p.displayName(msg.LeftChatParticipant) + " was removed by: " + p.displayName(msg.From)
		emit(out)

	case text != "":
		out := emitBase(msg, ch)
		out.User = p.prefixName(msg.From)
		out.Text = text
		emit(out)

	default:
		p.logger.Warn("unhandled message kind", "message_id", msg.MessageID)
		p.drop("unhandled")
	}
}

// parseCommand maps the fixed slash-command set onto router commands.
// Anything else starting with a slash is dropped, not relayed, so bot
// command syntax never leaks into the channel.
func (p *Parser) parseCommand(msg *Message, ch *message.Channel, emit func(*message.Message)) {
	switch {
	case strings.HasPrefix(msg.Text, "/names"):
		out := emitBase(msg, ch)
		out.Cmd = message.CmdNames
		emit(out)

	case strings.HasPrefix(msg.Text, "/topic"):
		out := emitBase(msg, ch)
		out.Cmd = message.CmdTopic
		emit(out)

	case strings.HasPrefix(msg.Text, "/version"):
		out := emitBase(msg, ch)
		out.Cmd = message.CmdVersion
		emit(out)

	case strings.HasPrefix(msg.Text, "/command"):
		rest := strings.TrimPrefix(msg.Text, "/command")
		rest = strings.TrimPrefix(rest, " ")
		out := emitBase(msg, ch)
		out.Cmd = message.CmdSendCommand
		out.Text = rest
		echo := msg.Text
		if name := p.prefixName(msg.From); name != "" {
			echo = "<" + name + "> " + echo
		}
		out.CmdEcho = echo
		emit(out)

	case strings.HasPrefix(msg.Text, "/me"):
		rest := strings.TrimPrefix(msg.Text, "/me")
		rest = strings.TrimPrefix(rest, " ")
		out := emitBase(msg, ch)
		out.Type = message.TypeAction
		out.Text = "* " + p.displayName(msg.From) + " " + rest
		emit(out)

	case strings.HasPrefix(msg.Text, "/say"):
		p.commandSay(msg)

	default:
		p.logger.Info("ignoring unknown command", "text", msg.Text)
		p.drop("unknown_command")
	}
}

// commandSay handles "/say <channel> <text>": a broadcast into a channel
// pair by its IRC channel name, usable from a private chat with the bot.
func (p *Parser) commandSay(msg *Message) {
	parts := strings.SplitN(msg.Text, " ", 3)
	if len(parts) < 3 {
		p.drop("malformed_say")
		return
	}
	ch := p.registry.FindByChannel(parts[1])
	if ch == nil {
		p.logger.Info("say target not mapped", "channel", parts[1])
		p.drop("unknown_channel")
		return
	}

	text := parts[2]
	if p.fmtCfg.ParseMode == string(textform.StyleHTML) {
		text = strings.ReplaceAll(text, "<", "&lt;")
	}

	out := emitBase(msg, ch)
	out.Cmd = message.CmdBroadcast
	out.Text = text
	p.emitter(ch, msg)(out)
}

// emitter wraps publish with the Telegram-side read-only gate. The gate is
// applied per update so asynchronous media completions go through it too.
func (p *Parser) emitter(ch *message.Channel, msg *Message) func(*message.Message) {
	highlighted := p.botUsername != "" && strings.HasPrefix(msg.Text, "@"+p.botUsername)
	return func(out *message.Message) {
		if ch.TGReadOnly && !(ch.TGOverrideReadOnly && highlighted) {
			p.drop("read_only")
			return
		}
		p.publish(out)
	}
}

// emitBase builds the normalized skeleton shared by every branch.
func emitBase(msg *Message, ch *message.Channel) *message.Message {
	original, _ := json.Marshal(msg)
	return &message.Message{
		Protocol: message.ProtocolTelegram,
		Channel:  ch,
		Type:     message.TypePlain,
		NativeID: strconv.Itoa(msg.MessageID),
		Time:     time.Unix(msg.Date, 0),
		Original: original,
	}
}

// emitMedia resolves the media URL off the polling goroutine, then emits the
// described message. Arriving out of order relative to newer plain text is
// acceptable.
func (p *Parser) emitMedia(msg *Message, ch *message.Channel, emit func(*message.Message), fileID string, photo bool, describe func(url string) string) {
	if p.media == nil {
		p.drop("media_unconfigured")
		return
	}
	user := p.prefixName(msg.From)
	go func() {
		ctx := context.Background()
		var url string
		var err error
		if photo && p.mediaCfg.Upload != "" {
			url, err = p.media.Upload(ctx, fileID)
		} else {
			url, err = p.media.ServeFile(ctx, fileID)
		}
		if err != nil {
			p.logger.Error("media retrieval failed", "file_id", fileID, "error", err)
			p.drop("media_error")
			return
		}
		out := emitBase(msg, ch)
		out.User = user
		out.Text = describe(url)
		emit(out)
	}()
}

// displayName renders a user through the configured name template.
// %username% falls back to the fallback template when the user has no
// username set.
func (p *Parser) displayName(user *User) string {
	if user == nil {
		return ""
	}
	name := p.tgCfg.NameFormat
	if user.Username != "" {
		name = strings.ReplaceAll(name, "%username%", user.Username)
	} else {
		name = strings.ReplaceAll(name, "%username%", p.tgCfg.UsernameFallback)
	}
	name = strings.ReplaceAll(name, "%firstName%", user.FirstName)
	name = strings.ReplaceAll(name, "%lastName%", user.LastName)
	return strings.TrimSpace(name)
}

// prefixName is displayName unless solo use suppresses author prefixes.
func (p *Parser) prefixName(user *User) string {
	if p.tgCfg.SoloUse {
		return ""
	}
	return p.displayName(user)
}

// replyName names the author of a quoted message. When the quoted message
// came from the bridge itself, the original IRC nick inside "<nick> " is
// recovered instead of naming the bot.
func (p *Parser) replyName(reply *Message) string {
	if reply.From != nil && reply.From.Username == p.botUsername {
		if m := ircNamePattern.FindStringSubmatch(reply.Text); m != nil {
			return m[1]
		}
	}
	return p.displayName(reply.From)
}

// forwardName names the origin of a forwarded message, recovering the IRC
// nick when the forward quotes the bridge's own output.
func (p *Parser) forwardName(msg *Message) string {
	from := msg.ForwardFrom
	if from == nil && msg.ForwardFromChat != nil {
		if msg.ForwardFromChat.Title != "" {
			return msg.ForwardFromChat.Title
		}
		return msg.ForwardFromChat.Username
	}
	if from != nil && from.Username == p.botUsername {
		if m := ircNamePattern.FindStringSubmatch(msg.Text); m != nil {
			return m[1]
		}
	}
	return p.displayName(from)
}

// replySnippet renders the " [...]" context shown next to a reply. The
// snippet source depends on what the quoted message was: text, media, or a
// membership change.
func (p *Parser) replySnippet(msg, reply *Message) string {
	if p.fmtCfg.ReplySnippetLength <= 0 {
		return ""
	}
	var snippet string
	switch {
	case reply.HasMedia():
		snippet = "<reply to media>"
	case reply.NewChatParticipant != nil:
		snippet = p.displayName(reply.NewChatParticipant) + " was added by: " + p.displayName(msg.From)
	case reply.LeftChatParticipant != nil:
		snippet = p.displayName(reply.LeftChatParticipant) + " was removed by: " + p.displayName(msg.From)
	case reply.Text != "":
		snippet = textform.Truncate(reply.Text, p.fmtCfg.ReplySnippetLength)
	default:
		snippet = "<reply to unk>"
	}
	return " [" + snippet + "]"
}

func caption(msg *Message) string {
	if msg.Caption == "" {
		return ""
	}
	return " " + msg.Caption
}

// entitySpans converts Bot API entities into the textform span shape.
func entitySpans(entities []MessageEntity) []textform.Span {
	if len(entities) == 0 {
		return nil
	}
	spans := make([]textform.Span, len(entities))
	for i, e := range entities {
		spans[i] = textform.Span{Type: e.Type, Offset: e.Offset, Length: e.Length, URL: e.URL}
	}
	return spans
}
