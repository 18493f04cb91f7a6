package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/flemzord/ircgram/internal/metrics"
	"github.com/flemzord/ircgram/pkg/message"
)

// IRCPort is the router's view of the IRC adapter.
type IRCPort interface {
	// Send delivers a normalized message to the IRC channel.
	Send(ctx context.Context, msg *message.Message) error
	// SendRaw delivers text without newline rewriting or id suffixing,
	// used for relayed /command input.
	SendRaw(ctx context.Context, msg *message.Message) error
	// Names returns the current nick list for the channel, with mode
	// prefixes applied, or nil when the channel state is unknown.
	Names(ch *message.Channel) []string
	// Topic returns the user-facing topic text for the channel.
	Topic(ch *message.Channel) string
}

// TelegramPort is the router's view of the Telegram adapter.
type TelegramPort interface {
	Send(ctx context.Context, msg *message.Message) error
}

// MessageLog assigns short ids and keeps the relay log.
type MessageLog interface {
	ComputeID(msg *message.Message) string
	Record(shortID, nativeID string)
	Append(msg *message.Message)
}

// Archiver persists relayed messages to durable history. Optional.
type Archiver interface {
	Archive(ctx context.Context, msg *message.Message) error
}

// Router consumes normalized messages from both adapters and dispatches each
// to the opposite side. It carries no transformation logic of its own; that
// keeps the adapters protocol-pure and mutually unaware.
type Router struct {
	irc     IRCPort
	tg      TelegramPort
	log     MessageLog
	archive Archiver
	metrics *metrics.Set
	tracer  trace.Tracer
	logger  *slog.Logger
	version string

	inbox    chan *message.Message
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// RouterOptions configures a Router.
type RouterOptions struct {
	IRC      IRCPort
	Telegram TelegramPort
	Log      MessageLog
	Archive  Archiver // may be nil
	Metrics  *metrics.Set
	Tracer   trace.Tracer // may be nil
	Logger   *slog.Logger
	Version  string
}

// NewRouter creates a Router. Adapters enqueue via Inbox.
func NewRouter(opts RouterOptions) *Router {
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("ircgram/relay")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		irc:     opts.IRC,
		tg:      opts.Telegram,
		log:     opts.Log,
		archive: opts.Archive,
		metrics: opts.Metrics,
		tracer:  tracer,
		logger:  logger.With("component", "router"),
		version: opts.Version,
		inbox:   make(chan *message.Message, 64),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Inbox returns the callback adapters use to publish normalized messages.
// It never blocks the adapter's event loop for long: the queue is buffered
// and drained by the router goroutine.
func (r *Router) Inbox() func(msg *message.Message) {
	return func(msg *message.Message) {
		select {
		case r.inbox <- msg:
		case <-r.stopCh:
		}
	}
}

// Start launches the dispatch loop.
func (r *Router) Start() error {
	go r.loop()
	return nil
}

// Stop signals the loop to exit and waits for in-flight dispatch to finish.
func (r *Router) Stop(ctx context.Context) error {
	r.stopOnce.Do(func() { close(r.stopCh) })
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Router) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.stopCh:
			return
		case msg := <-r.inbox:
			r.dispatch(context.Background(), msg)
		}
	}
}

// dispatch routes one message or command to the opposite adapter.
func (r *Router) dispatch(ctx context.Context, msg *message.Message) {
	if msg.Channel == nil {
		// Adapters resolve channels before emitting; treat this as a bug.
		r.logger.Warn("dropping message without channel", "protocol", msg.Protocol)
		return
	}

	ctx, span := r.tracer.Start(ctx, "relay.dispatch", trace.WithAttributes(
		attribute.String("relay.protocol", string(msg.Protocol)),
		attribute.String("relay.channel", msg.Channel.IRCChan),
		attribute.String("relay.type", string(msg.Type)),
		attribute.String("relay.cmd", string(msg.Cmd)),
	))
	defer span.End()

	if msg.IsCommand() {
		r.dispatchCommand(ctx, msg)
		return
	}

	msg.ID = r.log.ComputeID(msg)
	if msg.NativeID != "" {
		r.log.Record(msg.ID, msg.NativeID)
	}
	r.log.Append(msg)
	if r.archive != nil {
		if err := r.archive.Archive(ctx, msg); err != nil {
			r.logger.Warn("history archive failed", "error", err)
		}
	}

	var err error
	switch msg.Protocol {
	case message.ProtocolIRC:
		err = r.tg.Send(ctx, msg)
	case message.ProtocolTelegram:
		err = r.irc.Send(ctx, msg)
	default:
		r.logger.Warn("unknown protocol", "protocol", msg.Protocol)
		return
	}

	if err != nil {
		span.RecordError(err)
		r.metrics.SendErrors.WithLabelValues(oppositeOf(msg.Protocol)).Inc()
		r.logger.Error("relay failed",
			"from", msg.Protocol,
			"channel", msg.Channel.IRCChan,
			"error", err,
		)
		return
	}
	r.metrics.Relayed.WithLabelValues(string(msg.Protocol)).Inc()
}

// dispatchCommand handles the Telegram slash-commands that round-trip
// through the IRC side.
func (r *Router) dispatchCommand(ctx context.Context, msg *message.Message) {
	ch := msg.Channel

	switch msg.Cmd {
	case message.CmdNames:
		names := r.irc.Names(ch)
		var text string
		if len(names) == 0 {
			text = "No names for channel " + ch.DisplayName()
		} else {
			text = fmt.Sprintf("Users in %s (%d):\n%s",
				ch.DisplayName(), len(names), strings.Join(names, ", "))
		}
		r.reply(ctx, ch, text)

	case message.CmdTopic:
		r.reply(ctx, ch, r.irc.Topic(ch))

	case message.CmdVersion:
		r.reply(ctx, ch, "ircgram "+r.version)

	case message.CmdSendCommand:
		if err := r.irc.SendRaw(ctx, msg); err != nil {
			r.logger.Error("raw command failed", "error", err)
			r.metrics.SendErrors.WithLabelValues("irc").Inc()
			return
		}
		if msg.CmdEcho != "" {
			echo := &message.Message{
				Protocol: msg.Protocol,
				Channel:  ch,
				Type:     message.TypePlain,
				Text:     msg.CmdEcho,
				Time:     msg.Time,
			}
			if err := r.irc.Send(ctx, echo); err != nil {
				r.logger.Error("command echo failed", "error", err)
			}
		}

	case message.CmdBroadcast:
		out := &message.Message{
			Protocol: msg.Protocol,
			Channel:  ch,
			Type:     message.TypePlain,
			Text:     msg.Text,
			Time:     msg.Time,
		}
		if err := r.irc.Send(ctx, out); err != nil {
			r.logger.Error("broadcast to irc failed", "error", err)
			r.metrics.SendErrors.WithLabelValues("irc").Inc()
		}
		r.reply(ctx, ch, msg.Text)

	default:
		r.logger.Warn("unknown command", "cmd", msg.Cmd)
	}
}

// reply sends system text back to the Telegram group of the pair.
func (r *Router) reply(ctx context.Context, ch *message.Channel, text string) {
	msg := &message.Message{
		Protocol: message.ProtocolIRC, // deliver on the Telegram side
		Channel:  ch,
		Type:     message.TypePlain,
		Text:     text,
	}
	if err := r.tg.Send(ctx, msg); err != nil {
		r.logger.Error("command reply failed", "error", err)
		r.metrics.SendErrors.WithLabelValues("telegram").Inc()
	}
}

func oppositeOf(p message.Protocol) string {
	if p == message.ProtocolIRC {
		return "telegram"
	}
	return "irc"
}
