package textform

import (
	"html"
	"regexp"
	"strings"
)

// Style selects the outbound text decoration for the Telegram side.
type Style string

// Supported styles. The closed set mirrors Telegram's parse modes plus
// plain text.
const (
	StylePlain    Style = "plain"
	StyleMarkdown Style = "markdown"
	StyleHTML     Style = "html"
)

// EscapeUnbalanced escapes markdown emphasis markers (*, _, `) that are left
// unmatched, so the rendering side does not reject the message as
// unterminated formatting. A marker closes only when the same marker is the
// most recently opened one; everything still open at end-of-string gets a
// preceding backslash. Already-escaped markers are skipped, which makes the
// function idempotent: EscapeUnbalanced(EscapeUnbalanced(s)) == EscapeUnbalanced(s).
func EscapeUnbalanced(text string) string {
	runes := []rune(text)

	var open []rune // stack of currently-open markers
	var openIdx []int
	escaped := false

	for i, c := range runes {
		switch c {
		case '\\':
			escaped = true
		case '*', '_', '`':
			if escaped {
				escaped = false
				break
			}
			if len(open) > 0 && open[len(open)-1] == c {
				open = open[:len(open)-1]
				openIdx = openIdx[:len(openIdx)-1]
			} else {
				open = append(open, c)
				openIdx = append(openIdx, i)
			}
		}
	}

	if len(openIdx) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text) + len(openIdx))
	j := 0
	for i, c := range runes {
		if j < len(openIdx) && i == openIdx[j] {
			b.WriteByte('\\')
			j++
		}
		b.WriteRune(c)
	}
	return b.String()
}

// colorCodePattern matches mIRC color and formatting control codes:
// \x03 with optional fg[,bg] digits, plus bold, reset, reverse, italic
// and underline bytes.
var colorCodePattern = regexp.MustCompile(
	"\x03[0-9][0-9]?(?:,[0-9][0-9]?)?|[\x02\x03\x0f\x16\x1d\x1f]")

// StripColorCodes removes IRC inline color and formatting control codes.
func StripColorCodes(text string) string {
	return colorCodePattern.ReplaceAllString(text, "")
}

// FormatNick wraps a display name in angle brackets, optionally emphasized
// per the output style. The HTML style escapes the wrapping brackets so the
// markup stays valid; the name itself is left alone, matching what the
// relayed text looks like on the other protocols.
func FormatNick(name string, style Style, emphasize bool) string {
	if emphasize {
		switch style {
		case StyleMarkdown:
			return "<*" + name + "*>"
		case StyleHTML:
			return "&lt;<b>" + name + "</b>&gt;"
		}
	}
	return "<" + name + ">"
}

// FormatAction renders a /me action line per the output style.
func FormatAction(name, text string, style Style, emphasize bool) string {
	if emphasize {
		switch style {
		case StyleMarkdown:
			return `\* *` + name + `* ` + text
		case StyleHTML:
			return "* <b>" + name + "</b> " + text
		}
	}
	return "* " + name + " " + text
}

// EscapeHTML escapes text destined for the HTML parse mode.
func EscapeHTML(text string) string {
	return html.EscapeString(text)
}

// Truncate shortens text to at most n runes, appending an ellipsis when
// anything was cut.
func Truncate(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return strings.TrimSpace(string(runes[:n])) + " …"
}
