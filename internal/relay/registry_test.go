package relay

import (
	"testing"

	"github.com/flemzord/ircgram/internal/config"
)

func testRegistry() *Registry {
	return NewRegistry([]config.ChannelConfig{
		{IRCChan: "#go", TGGroup: "Go Nuts", Alias: "golang"},
		{IRCChan: "#ops", TGGroup: "Ops"},
	})
}

func TestLookupChannelCaseInsensitive(t *testing.T) {
	r := testRegistry()

	for _, name := range []string{"#go", "#GO", "#Go"} {
		if ch := r.LookupChannel(name); ch == nil || ch.TGGroup != "Go Nuts" {
			t.Errorf("LookupChannel(%q) = %v", name, ch)
		}
	}
	if ch := r.LookupChannel("#rust"); ch != nil {
		t.Errorf("LookupChannel(#rust) = %v, want nil", ch)
	}
}

func TestFindByGroupExact(t *testing.T) {
	r := testRegistry()

	if ch := r.FindByGroup("Go Nuts"); ch == nil || ch.IRCChan != "#go" {
		t.Errorf("FindByGroup = %v", ch)
	}
	// Group titles are matched exactly, unlike IRC channel names.
	if ch := r.FindByGroup("go nuts"); ch != nil {
		t.Errorf("FindByGroup(lowercase) = %v, want nil", ch)
	}
}

func TestChannelsShareIdentity(t *testing.T) {
	r := testRegistry()

	byGroup := r.FindByGroup("Go Nuts")
	byChan := r.LookupChannel("#GO")
	if byGroup != byChan {
		t.Fatal("lookups returned different Channel pointers")
	}

	// Chat-id discovery through one lookup is visible through the other.
	byGroup.SetTGChatID(-100123)
	if got := byChan.TGChatID(); got != -100123 {
		t.Errorf("chat id = %d", got)
	}
}

func TestDisplayNamePrefersAlias(t *testing.T) {
	r := testRegistry()

	if got := r.LookupChannel("#go").DisplayName(); got != "golang" {
		t.Errorf("DisplayName = %q, want alias", got)
	}
	if got := r.LookupChannel("#ops").DisplayName(); got != "#ops" {
		t.Errorf("DisplayName = %q, want channel name", got)
	}
}
