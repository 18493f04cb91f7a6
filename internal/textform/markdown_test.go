package textform

import "testing"

func TestEscapeUnbalanced(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no markers", "plain text", "plain text"},
		{"balanced pair", "a *bold* word", "a *bold* word"},
		{"unbalanced asterisk", "2 * 3 is 6", `2 \* 3 is 6`},
		{"unbalanced backtick", "run `ls", "run \\`ls"},
		{"mixed balanced and not", "*ok* and _oops", `*ok* and \_oops`},
		{"nested different markers", "*_both open", `\*\_both open`},
		{"escaped marker ignored", `already \* fine`, `already \* fine`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EscapeUnbalanced(tt.in); got != tt.want {
				t.Errorf("EscapeUnbalanced(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEscapeUnbalancedIdempotent(t *testing.T) {
	inputs := []string{
		"2 * 3 is 6",
		"*ok* and _oops",
		"run `ls",
		"plain",
	}
	for _, in := range inputs {
		once := EscapeUnbalanced(in)
		twice := EscapeUnbalanced(once)
		if once != twice {
			t.Errorf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestStripColorCodes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bold", "hi \x02there\x02", "hi there"},
		{"color with fg", "\x034red text", "red text"},
		{"color with fg and bg", "\x0304,01boxed", "boxed"},
		{"reset and italic", "a\x0fb\x1dc", "abc"},
		{"clean text untouched", "nothing here", "nothing here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripColorCodes(tt.in); got != tt.want {
				t.Errorf("StripColorCodes(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatNick(t *testing.T) {
	tests := []struct {
		name      string
		style     Style
		emphasize bool
		want      string
	}{
		{"plain", StylePlain, false, "<alice>"},
		{"plain emphasis ignored", StylePlain, true, "<alice>"},
		{"markdown", StyleMarkdown, true, "<*alice*>"},
		{"html", StyleHTML, true, "&lt;<b>alice</b>&gt;"},
		{"markdown without emphasis", StyleMarkdown, false, "<alice>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatNick("alice", tt.style, tt.emphasize); got != tt.want {
				t.Errorf("FormatNick = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatAction(t *testing.T) {
	tests := []struct {
		name      string
		style     Style
		emphasize bool
		want      string
	}{
		{"plain", StylePlain, false, "* alice waves"},
		{"markdown emphasized", StyleMarkdown, true, `\* *alice* waves`},
		{"html emphasized", StyleHTML, true, "* <b>alice</b> waves"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatAction("alice", "waves", tt.style, tt.emphasize); got != tt.want {
				t.Errorf("FormatAction = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate = %q", got)
	}
	if got := Truncate("a rather long sentence", 8); got != "a rather …" {
		t.Errorf("Truncate = %q", got)
	}
	// Rune-aware: multi-byte characters count once.
	if got := Truncate("héllo wörld", 5); got != "héllo …" {
		t.Errorf("Truncate = %q", got)
	}
}
