package irc

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/flemzord/ircgram/internal/textform"
	"github.com/flemzord/ircgram/pkg/message"
)

// blankLinePattern matches leading/embedded blank lines stripped before
// newline substitution.
var blankLinePattern = regexp.MustCompile(`(?m)^\s*\n`)

// sendPacer serializes outbound lines per destination channel. Lines to the
// same channel are strictly ordered and rate limited; different channels
// do not wait on each other.
type sendPacer struct {
	mu    sync.Mutex
	delay time.Duration
	locks map[string]*sync.Mutex
}

func newSendPacer(delay time.Duration) *sendPacer {
	return &sendPacer{delay: delay, locks: make(map[string]*sync.Mutex)}
}

func (p *sendPacer) lock(chanName string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := strings.ToLower(chanName)
	l, ok := p.locks[key]
	if !ok {
		l = &sync.Mutex{}
		p.locks[key] = l
	}
	return l
}

// Send delivers a normalized message to the channel: blank lines stripped,
// newlines substituted, URLs canonicalized, the short id appended, a reply
// snippet attached, then one paced Privmsg per line. A rejected line is
// retried after the same delay rather than abandoned; the blocking
// condition is typically server rate limiting, which self-resolves.
func (a *Adapter) Send(ctx context.Context, msg *message.Message) error {
	ch := msg.Channel

	text := blankLinePattern.ReplaceAllString(msg.Text, "")
	text = strings.ReplaceAll(text, "\n", a.cfg.ReplaceNewlines)
	text = textform.CanonicalizeURLsIn(text)

	if msg.User != "" {
		text = "<" + msg.User + "> " + text
	}
	if msg.ID != "" {
		text += " $" + msg.ID
	}
	if msg.ReplyText != "" {
		text += " (" + replySnippet(msg.ReplyText) + ")"
	}

	return a.deliver(ctx, ch.IRCChan, strings.Split(text, "\n"))
}

// SendRaw writes the text as a raw IRC command line, bypassing the text
// pipeline. Used for relayed /command input and perform commands.
func (a *Adapter) SendRaw(_ context.Context, msg *message.Message) error {
	return a.wire.SendRaw(msg.Text)
}

// deliver sends each line with the configured inter-line delay, holding the
// channel's pacing lock so concurrent sends to one channel stay ordered.
func (a *Adapter) deliver(ctx context.Context, chanName string, lines []string) error {
	lock := a.sends.lock(chanName)
	lock.Lock()
	defer lock.Unlock()

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		for {
			err := a.wire.Privmsg(chanName, line)
			if err == nil {
				break
			}
			a.logger.Warn("send rejected, retrying", "channel", chanName, "error", err)
			if werr := a.wait(ctx); werr != nil {
				return werr
			}
		}
		if err := a.wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) wait(ctx context.Context) error {
	timer := time.NewTimer(a.sends.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// replySnippet renders the short context hint appended to relayed replies.
// A replied-to bare URL is shown in canonical form; anything else shows its
// first few characters.
func replySnippet(replyText string) string {
	src := message.StripNickPrefix(replyText)
	if textform.IsBareURL(src) {
		src = textform.CanonicalizeURL(strings.TrimSpace(src)).URL
		return src
	}
	runes := []rune(src)
	if len(runes) > 5 {
		src = string(runes[:5]) + "…"
	}
	return src
}
