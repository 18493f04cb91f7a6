package telegram

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/ircgram/internal/config"
	"github.com/flemzord/ircgram/internal/metrics"
	"github.com/flemzord/ircgram/internal/relay"
	"github.com/flemzord/ircgram/internal/store"
	"github.com/flemzord/ircgram/pkg/message"
)

// collector gathers published messages; media branches publish from a
// separate goroutine, so access is locked and waiting polls.
type collector struct {
	mu   sync.Mutex
	msgs []*message.Message
}

func (c *collector) publish(m *message.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, m)
}

func (c *collector) all() []*message.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*message.Message, len(c.msgs))
	copy(out, c.msgs)
	return out
}

func (c *collector) waitFor(t *testing.T, n int) []*message.Message {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if msgs := c.all(); len(msgs) >= n {
			return msgs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d published messages, have %d", n, len(c.all()))
	return nil
}

type fakeMediaHost struct{}

func (fakeMediaHost) ServeFile(_ context.Context, fileID string) (string, error) {
	return "http://files.example/" + fileID, nil
}

func (fakeMediaHost) Upload(_ context.Context, fileID string) (string, error) {
	return "https://i.example/" + fileID, nil
}

type parserOverrides func(*ParserOptions)

func newTestParser(t *testing.T, sink *collector, overrides ...parserOverrides) *Parser {
	t.Helper()

	chatIDs, err := store.OpenChatIDStore(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}

	opts := ParserOptions{
		Registry: relay.NewRegistry([]config.ChannelConfig{
			{IRCChan: "#go", TGGroup: "Go Nuts"},
		}),
		ChatIDs: chatIDs,
		Media:   fakeMediaHost{},
		Telegram: config.TelegramConfig{
			NameFormat:       "%username%",
			UsernameFallback: "%firstName% %lastName%",
			RelayEdits:       true,
		},
		Format: config.FormatConfig{
			ParseMode:          "plain",
			ReplySnippetLength: 10,
		},
		MediaConfig: config.MediaConfig{Enabled: true},
		Publish:     sink.publish,
		Metrics:     metrics.NewUnregistered(),
		BotUsername: "bridgebot",
	}
	for _, o := range overrides {
		o(&opts)
	}
	p := NewParser(opts)
	p.now = func() time.Time { return time.Unix(1_000_000, 0) }
	return p
}

func groupMsg(text string) *Message {
	return &Message{
		MessageID: 7,
		From:      &User{Username: "alice", FirstName: "Alice"},
		Chat:      Chat{ID: -100123, Type: "group", Title: "Go Nuts"},
		Date:      1_000_000,
		Text:      text,
	}
}

func TestParsePlainText(t *testing.T) {
	sink := &collector{}
	p := newTestParser(t, sink)

	p.HandleUpdate(&Update{UpdateID: 1, Message: groupMsg("hello")})

	msgs := sink.all()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	got := msgs[0]
	if got.User != "alice" || got.Text != "hello" {
		t.Errorf("got user=%q text=%q, want alice/hello", got.User, got.Text)
	}
	if got.Protocol != message.ProtocolTelegram {
		t.Errorf("protocol = %q", got.Protocol)
	}
	if got.NativeID != "7" {
		t.Errorf("native id = %q, want 7", got.NativeID)
	}

	// First contact registers the chat id on the shared channel record
	// and in the persistent store.
	if id := got.Channel.TGChatID(); id != -100123 {
		t.Errorf("chat id on channel = %d, want -100123", id)
	}
	if id, ok := p.chatIDs.Lookup("Go Nuts"); !ok || id != -100123 {
		t.Errorf("persisted chat id = %d, %v; want -100123, true", id, ok)
	}
}

func TestParseUnknownGroupDropped(t *testing.T) {
	sink := &collector{}
	p := newTestParser(t, sink)

	msg := groupMsg("hello")
	msg.Chat.Title = "Other Group"
	p.HandleUpdate(&Update{Message: msg})

	if len(sink.all()) != 0 {
		t.Fatal("message for unmapped group was relayed")
	}
}

func TestParseSupergroupMigration(t *testing.T) {
	sink := &collector{}
	p := newTestParser(t, sink)

	msg := groupMsg("")
	msg.MigrateToChatID = -100999
	p.HandleUpdate(&Update{Message: msg})

	if len(sink.all()) != 0 {
		t.Fatal("migration update should relay nothing")
	}
	if id, ok := p.chatIDs.Lookup("Go Nuts"); !ok || id != -100999 {
		t.Errorf("migrated chat id = %d, %v; want -100999, true", id, ok)
	}
}

func TestParseAgeFilter(t *testing.T) {
	tests := []struct {
		name  string
		date  int64
		relay bool
	}{
		{"older than threshold", 1_000_000 - 61, false},
		{"one second younger", 1_000_000 - 59, true},
		{"exactly at threshold", 1_000_000 - 60, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &collector{}
			p := newTestParser(t, sink, func(o *ParserOptions) {
				o.Telegram.MaxMsgAge = 60 * time.Second
			})

			msg := groupMsg("hello")
			msg.Date = tt.date
			p.HandleUpdate(&Update{Message: msg})

			if got := len(sink.all()) == 1; got != tt.relay {
				t.Errorf("relayed = %v, want %v", got, tt.relay)
			}
		})
	}
}

func TestParseCommands(t *testing.T) {
	tests := []struct {
		text string
		cmd  message.Command
	}{
		{"/names", message.CmdNames},
		{"/topic", message.CmdTopic},
		{"/version", message.CmdVersion},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			sink := &collector{}
			p := newTestParser(t, sink)

			p.HandleUpdate(&Update{Message: groupMsg(tt.text)})

			msgs := sink.all()
			if len(msgs) != 1 {
				t.Fatalf("published %d messages, want 1", len(msgs))
			}
			if msgs[0].Cmd != tt.cmd {
				t.Errorf("cmd = %q, want %q", msgs[0].Cmd, tt.cmd)
			}
		})
	}
}

func TestParseSendCommand(t *testing.T) {
	sink := &collector{}
	p := newTestParser(t, sink)

	p.HandleUpdate(&Update{Message: groupMsg("/command mode +v bob")})

	msgs := sink.all()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	got := msgs[0]
	if got.Cmd != message.CmdSendCommand {
		t.Fatalf("cmd = %q", got.Cmd)
	}
	if got.Text != "mode +v bob" {
		t.Errorf("text = %q, want the raw command", got.Text)
	}
	if got.CmdEcho != "<alice> /command mode +v bob" {
		t.Errorf("echo = %q", got.CmdEcho)
	}
}

func TestParseMeAction(t *testing.T) {
	sink := &collector{}
	p := newTestParser(t, sink)

	p.HandleUpdate(&Update{Message: groupMsg("/me waves")})

	msgs := sink.all()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	if msgs[0].Type != message.TypeAction {
		t.Errorf("type = %q, want action", msgs[0].Type)
	}
	if msgs[0].Text != "* alice waves" {
		t.Errorf("text = %q", msgs[0].Text)
	}
}

func TestParseUnknownCommandDropped(t *testing.T) {
	sink := &collector{}
	p := newTestParser(t, sink)

	p.HandleUpdate(&Update{Message: groupMsg("/start")})

	if len(sink.all()) != 0 {
		t.Fatal("unknown slash command leaked into the relay")
	}
}

func TestParsePrivateSay(t *testing.T) {
	sink := &collector{}
	p := newTestParser(t, sink)

	msg := groupMsg("/say #go hello from afar")
	msg.Chat = Chat{ID: 55, Type: "private"}
	p.HandleUpdate(&Update{Message: msg})

	msgs := sink.all()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	got := msgs[0]
	if got.Cmd != message.CmdBroadcast {
		t.Fatalf("cmd = %q, want broadcast", got.Cmd)
	}
	if got.Channel.IRCChan != "#go" {
		t.Errorf("channel = %q, want #go", got.Channel.IRCChan)
	}
	if got.Text != "hello from afar" {
		t.Errorf("text = %q", got.Text)
	}
}

func TestParsePrivateSayUnknownChannel(t *testing.T) {
	sink := &collector{}
	p := newTestParser(t, sink)

	msg := groupMsg("/say #elsewhere hi")
	msg.Chat = Chat{ID: 55, Type: "private"}
	p.HandleUpdate(&Update{Message: msg})

	if len(sink.all()) != 0 {
		t.Fatal("say into unknown channel was relayed")
	}
}

func TestParseReadOnlyGating(t *testing.T) {
	tests := []struct {
		name        string
		readOnly    bool
		override    bool
		highlighted bool
		relay       bool
	}{
		{"open channel", false, false, false, true},
		{"read only, no override", true, false, true, false},
		{"override without highlight", true, true, false, false},
		{"override with highlight", true, true, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &collector{}
			p := newTestParser(t, sink, func(o *ParserOptions) {
				o.Registry = relay.NewRegistry([]config.ChannelConfig{{
					IRCChan:            "#go",
					TGGroup:            "Go Nuts",
					TGReadOnly:         tt.readOnly,
					TGOverrideReadOnly: tt.override,
				}})
			})

			text := "hello"
			if tt.highlighted {
				text = "@bridgebot hello"
			}
			p.HandleUpdate(&Update{Message: groupMsg(text)})

			if got := len(sink.all()) == 1; got != tt.relay {
				t.Errorf("relayed = %v, want %v", got, tt.relay)
			}
		})
	}
}

func TestParseEditedMessage(t *testing.T) {
	t.Run("relayed with prefix", func(t *testing.T) {
		sink := &collector{}
		p := newTestParser(t, sink)

		msg := groupMsg("fixed typo")
		msg.EditDate = 1_000_000
		p.HandleUpdate(&Update{EditedMessage: msg})

		msgs := sink.all()
		if len(msgs) != 1 {
			t.Fatalf("published %d messages, want 1", len(msgs))
		}
		if msgs[0].Text != "[Edit] fixed typo" {
			t.Errorf("text = %q", msgs[0].Text)
		}
	})

	t.Run("dropped when disabled", func(t *testing.T) {
		sink := &collector{}
		p := newTestParser(t, sink, func(o *ParserOptions) {
			o.Telegram.RelayEdits = false
		})

		msg := groupMsg("fixed typo")
		msg.EditDate = 1_000_000
		p.HandleUpdate(&Update{EditedMessage: msg})

		if len(sink.all()) != 0 {
			t.Fatal("edit relayed despite relay_edits=false")
		}
	})
}

func TestParseReplySnippets(t *testing.T) {
	tests := []struct {
		name  string
		reply *Message
		want  string
	}{
		{
			"text reply truncated",
			&Message{From: &User{Username: "bob"}, Text: "a rather long message body"},
			"bob [a rather l …]\x03: sure",
		},
		{
			"media reply",
			&Message{From: &User{Username: "bob"}, Photo: []PhotoSize{{FileID: "f"}}},
			"bob [<reply to media>]\x03: sure",
		},
		{
			"reply to unknown kind",
			&Message{From: &User{Username: "bob"}},
			"bob [<reply to unk>]\x03: sure",
		},
		{
			"reply to bridged irc message recovers nick",
			&Message{From: &User{Username: "bridgebot"}, Text: "<carol> hi there"},
			"carol [<carol> hi …]\x03: sure",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &collector{}
			p := newTestParser(t, sink)

			msg := groupMsg("sure")
			msg.ReplyToMessage = tt.reply
			p.HandleUpdate(&Update{Message: msg})

			msgs := sink.all()
			if len(msgs) != 1 {
				t.Fatalf("published %d messages, want 1", len(msgs))
			}
			if msgs[0].Text != tt.want {
				t.Errorf("text = %q, want %q", msgs[0].Text, tt.want)
			}
		})
	}
}

func TestParseForward(t *testing.T) {
	sink := &collector{}
	p := newTestParser(t, sink)

	msg := groupMsg("check this out")
	msg.ForwardFrom = &User{Username: "dave"}
	p.HandleUpdate(&Update{Message: msg})

	msgs := sink.all()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	if msgs[0].Text != "Fwd from dave: check this out" {
		t.Errorf("text = %q", msgs[0].Text)
	}
}

func TestParseMembershipChanges(t *testing.T) {
	sink := &collector{}
	p := newTestParser(t, sink)

	msg := groupMsg("")
	msg.NewChatParticipant = &User{Username: "eve"}
	p.HandleUpdate(&Update{Message: msg})

	msg = groupMsg("")
	msg.LeftChatParticipant = &User{Username: "eve"}
	p.HandleUpdate(&Update{Message: msg})

	msgs := sink.all()
	if len(msgs) != 2 {
		t.Fatalf("published %d messages, want 2", len(msgs))
	}
	if msgs[0].Text != "eve was added by: alice" {
		t.Errorf("join text = %q", msgs[0].Text)
	}
	if msgs[1].Text != "eve was removed by: alice" {
		t.Errorf("part text = %q", msgs[1].Text)
	}
}

func TestParseMediaDescriptions(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Message)
		want string
	}{
		{
			"audio",
			func(m *Message) { m.Audio = &Audio{FileID: "aud", Duration: 30} },
			"(Audio, 30s)http://files.example/aud",
		},
		{
			"document",
			func(m *Message) { m.Document = &Document{FileID: "doc"} },
			"(Document) http://files.example/doc",
		},
		{
			"photo picks largest size",
			func(m *Message) {
				m.Photo = []PhotoSize{
					{FileID: "small", Width: 90, Height: 60},
					{FileID: "big", Width: 900, Height: 600},
				}
				m.Caption = "sunset"
			},
			"(Photo, 900x600) http://files.example/big sunset",
		},
		{
			"sticker",
			func(m *Message) { m.Sticker = &Sticker{FileID: "stk", Width: 512, Height: 512} },
			"(Sticker, 512x512) http://files.example/stk",
		},
		{
			"video",
			func(m *Message) { m.Video = &Video{FileID: "vid", Duration: 12} },
			"(Video, 12s) http://files.example/vid",
		},
		{
			"voice",
			func(m *Message) { m.Voice = &Voice{FileID: "vce", Duration: 4} },
			"(Voice, 4s) http://files.example/vce",
		},
		{
			"new chat photo",
			func(m *Message) { m.NewChatPhoto = []PhotoSize{{FileID: "grp", Width: 640, Height: 640}} },
			"(New chat photo, 640x640) http://files.example/grp",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &collector{}
			p := newTestParser(t, sink)

			msg := groupMsg("")
			tt.mut(msg)
			p.HandleUpdate(&Update{Message: msg})

			msgs := sink.waitFor(t, 1)
			if msgs[0].Text != tt.want {
				t.Errorf("text = %q, want %q", msgs[0].Text, tt.want)
			}
		})
	}
}

func TestParseContactAndLocation(t *testing.T) {
	sink := &collector{}
	p := newTestParser(t, sink)

	msg := groupMsg("")
	msg.Contact = &Contact{FirstName: "Frank", LastName: "Ocean", PhoneNumber: "+358401234567"}
	p.HandleUpdate(&Update{Message: msg})

	msg = groupMsg("")
	msg.Location = &Location{Longitude: 24.94, Latitude: 60.17}
	p.HandleUpdate(&Update{Message: msg})

	msgs := sink.all()
	if len(msgs) != 2 {
		t.Fatalf("published %d messages, want 2", len(msgs))
	}
	if msgs[0].Text != `(Contact, "Frank Ocean", +358401234567)` {
		t.Errorf("contact text = %q", msgs[0].Text)
	}
	if msgs[1].Text != "(Location, lon: 24.94, lat: 60.17)" {
		t.Errorf("location text = %q", msgs[1].Text)
	}
}

func TestParseMediaFilter(t *testing.T) {
	t.Run("media dropped when disabled", func(t *testing.T) {
		sink := &collector{}
		p := newTestParser(t, sink, func(o *ParserOptions) {
			o.MediaConfig = config.MediaConfig{Enabled: false}
		})

		msg := groupMsg("")
		msg.Document = &Document{FileID: "doc"}
		p.HandleUpdate(&Update{Message: msg})

		time.Sleep(20 * time.Millisecond)
		if len(sink.all()) != 0 {
			t.Fatal("document relayed despite media disabled")
		}
	})

	t.Run("photos pass when external upload configured", func(t *testing.T) {
		sink := &collector{}
		p := newTestParser(t, sink, func(o *ParserOptions) {
			o.MediaConfig = config.MediaConfig{Enabled: false, Upload: "imgur"}
		})

		msg := groupMsg("")
		msg.Photo = []PhotoSize{{FileID: "pic", Width: 10, Height: 10}}
		p.HandleUpdate(&Update{Message: msg})

		msgs := sink.waitFor(t, 1)
		if !strings.HasPrefix(msgs[0].Text, "(Photo, 10x10) https://i.example/pic") {
			t.Errorf("text = %q", msgs[0].Text)
		}
	})
}

func TestParseEntityReconstruction(t *testing.T) {
	sink := &collector{}
	p := newTestParser(t, sink)

	msg := groupMsg("see docs here")
	msg.Entities = []MessageEntity{
		{Type: "text_link", Offset: 4, Length: 4, URL: "https://go.dev"},
	}
	p.HandleUpdate(&Update{Message: msg})

	msgs := sink.all()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	if msgs[0].Text != "see [docs](https://go.dev) here" {
		t.Errorf("text = %q", msgs[0].Text)
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name     string
		format   string
		fallback string
		user     *User
		want     string
	}{
		{"username", "%username%", "%firstName% %lastName%", &User{Username: "alice", FirstName: "Alice", LastName: "K"}, "alice"},
		{"fallback to full name", "%username%", "%firstName% %lastName%", &User{FirstName: "Alice", LastName: "K"}, "Alice K"},
		{"fallback first name only", "%username%", "%firstName% %lastName%", &User{FirstName: "Alice"}, "Alice"},
		{"combined format", "%firstName% (%username%)", "%firstName%", &User{Username: "alice", FirstName: "Alice"}, "Alice (alice)"},
		{"nil user", "%username%", "%firstName%", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &collector{}
			p := newTestParser(t, sink, func(o *ParserOptions) {
				o.Telegram.NameFormat = tt.format
				o.Telegram.UsernameFallback = tt.fallback
			})
			if got := p.displayName(tt.user); got != tt.want {
				t.Errorf("displayName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseSoloUseSuppressesPrefix(t *testing.T) {
	sink := &collector{}
	p := newTestParser(t, sink, func(o *ParserOptions) {
		o.Telegram.SoloUse = true
	})

	p.HandleUpdate(&Update{Message: groupMsg("hello")})

	msgs := sink.all()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	if msgs[0].User != "" {
		t.Errorf("user = %q, want empty in solo use", msgs[0].User)
	}
}
