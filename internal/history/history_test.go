package history_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/flemzord/ircgram/internal/history"
	"github.com/flemzord/ircgram/pkg/message"
)

func TestArchiveRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")

	archive, err := history.Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = archive.Close() }()

	ch := &message.Channel{IRCChan: "#go", TGGroup: "Go Nuts"}
	ctx := context.Background()

	if err := archive.Archive(ctx, &message.Message{
		Protocol: message.ProtocolIRC,
		Channel:  ch,
		Type:     message.TypePlain,
		User:     "alice",
		Text:     "hello",
		ID:       "a1b2",
		Time:     time.Unix(1_000_000, 0),
	}); err != nil {
		t.Fatalf("Archive first: %v", err)
	}
	if err := archive.Archive(ctx, &message.Message{
		Protocol: message.ProtocolTelegram,
		Channel:  ch,
		Type:     message.TypePlain,
		User:     "bob",
		Text:     "hi there",
		NativeID: "42",
		Time:     time.Unix(1_000_060, 0),
	}); err != nil {
		t.Fatalf("Archive second: %v", err)
	}

	msgs, err := archive.Recent(ctx, "#go", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].User != "alice" || msgs[0].ID != "a1b2" {
		t.Errorf("msgs[0] = %+v, want alice first", msgs[0])
	}
	if msgs[1].User != "bob" || msgs[1].NativeID != "42" {
		t.Errorf("msgs[1] = %+v", msgs[1])
	}
	if msgs[1].Protocol != message.ProtocolTelegram {
		t.Errorf("protocol = %q", msgs[1].Protocol)
	}
}

func TestArchiveFiltersByChannel(t *testing.T) {
	archive, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = archive.Close() }()

	ctx := context.Background()
	for _, chanName := range []string{"#go", "#ops", "#go"} {
		err := archive.Archive(ctx, &message.Message{
			Protocol: message.ProtocolIRC,
			Channel:  &message.Channel{IRCChan: chanName},
			Type:     message.TypePlain,
			Text:     "in " + chanName,
			Time:     time.Now(),
		})
		if err != nil {
			t.Fatalf("Archive: %v", err)
		}
	}

	msgs, err := archive.Recent(ctx, "#go", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(msgs) != 2 {
		t.Errorf("expected 2 #go messages, got %d", len(msgs))
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")

	first, err := history.Open(dbPath)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Re-opening must not fail on the existing schema.
	second, err := history.Open(dbPath)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	_ = second.Close()
}
