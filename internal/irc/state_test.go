package irc

import "testing"

func TestNamesBurstReplacesStaleList(t *testing.T) {
	s := newState()

	s.namesReply("#go", "alice bob")
	s.namesDone("#go")

	// A later burst starts fresh rather than accumulating.
	s.namesReply("#go", "@carol")
	s.namesReply("#go", "dave")
	s.namesDone("#go")

	got := s.nameList("#go")
	want := []string{"(@)carol", "dave"}
	if len(got) != len(want) {
		t.Fatalf("names = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRenameNickKeepsPrefix(t *testing.T) {
	s := newState()
	s.namesReply("#go", "@alice")
	s.namesDone("#go")

	s.renameNick("alice", "alice2")

	got := s.nameList("#go")
	if len(got) != 1 || got[0] != "(@)alice2" {
		t.Errorf("names = %v", got)
	}
}

func TestRemoveNickEverywhere(t *testing.T) {
	s := newState()
	s.addNick("#go", "bob")
	s.addNick("#ops", "bob")
	s.addNick("#go", "alice")

	channels := s.removeNickEverywhere("bob")
	if len(channels) != 2 || channels[0] != "#go" || channels[1] != "#ops" {
		t.Fatalf("channels = %v", channels)
	}
	if got := s.nameList("#go"); len(got) != 1 || got[0] != "alice" {
		t.Errorf("#go names = %v", got)
	}
}
