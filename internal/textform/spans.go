package textform

import (
	"log/slog"
	"unicode/utf16"
)

// Span is a formatting annotation over a flat text string. Offsets and
// lengths are in UTF-16 code units, which is what Telegram uses, so non-BMP
// characters (emoji) keep spans aligned.
type Span struct {
	Type   string
	Offset int
	Length int
	URL    string
}

// ReconstructSpans rewrites text to embed inline formatting markers at the
// annotated positions: text_link becomes [text](url), code becomes `text`,
// pre becomes ```text```. Hashtags pass through as-is. Each insertion shifts
// every span positioned after it, so left-to-right processing keeps all
// later spans correctly placed. Unsupported span types are left unrendered
// and logged, never fatal.
func ReconstructSpans(text string, spans []Span, logger *slog.Logger) string {
	if len(spans) == 0 {
		return text
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Work in UTF-16 code units to honor the span offsets.
	units := utf16.Encode([]rune(text))

	// Copy so offset adjustment does not mutate the caller's slice.
	work := make([]Span, len(spans))
	copy(work, spans)

	shift := func(from, by int) {
		for i := range work {
			if work[i].Offset > from {
				work[i].Offset += by
			}
		}
	}

	for i := 0; i < len(work); i++ {
		sp := work[i]
		if sp.Offset < 0 || sp.Offset > len(units) {
			continue
		}
		end := sp.Offset + sp.Length
		if end > len(units) {
			end = len(units)
		}

		switch sp.Type {
		case "text_link":
			marked := append([]uint16{}, units[:sp.Offset]...)
			marked = append(marked, utf16.Encode([]rune("["))...)
			marked = append(marked, units[sp.Offset:end]...)
			marked = append(marked, utf16.Encode([]rune("]("+sp.URL+")"))...)
			marked = append(marked, units[end:]...)
			units = marked
			shift(sp.Offset, 4+len(utf16.Encode([]rune(sp.URL))))
		case "code":
			units = wrapUnits(units, sp.Offset, end, "`", "`")
			shift(sp.Offset, 2)
		case "pre":
			units = wrapUnits(units, sp.Offset, end, "```", "```")
			shift(sp.Offset, 6)
		case "hashtag":
			// passes through as-is
		default:
			logger.Warn("unsupported formatting span", "type", sp.Type)
		}
	}

	return string(utf16.Decode(units))
}

// wrapUnits surrounds units[start:end] with the given markers.
func wrapUnits(units []uint16, start, end int, open, close string) []uint16 {
	out := append([]uint16{}, units[:start]...)
	out = append(out, utf16.Encode([]rune(open))...)
	out = append(out, units[start:end]...)
	out = append(out, utf16.Encode([]rune(close))...)
	out = append(out, units[end:]...)
	return out
}

// SpanText extracts the annotated substring, honoring UTF-16 offsets.
func SpanText(text string, offset, length int) string {
	units := utf16.Encode([]rune(text))
	if offset < 0 || offset >= len(units) {
		return ""
	}
	end := offset + length
	if end > len(units) {
		end = len(units)
	}
	return string(utf16.Decode(units[offset:end]))
}
