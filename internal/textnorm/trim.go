// Package textnorm normalizes streamed agent text.
package textnorm

import "strings"

// StreamTrimmer drops blank lines from the start of a streamed response.
// Whitespace-only deltas are buffered until real content arrives, so a model
// that opens with "\n\n" never produces a visually empty first line.
type StreamTrimmer struct {
	started bool
	pending strings.Builder
}

// Push ingests one text delta and returns the delta to emit, which is empty
// while the stream is still leading whitespace.
func (t *StreamTrimmer) Push(delta string) string {
	if t.started {
		return delta
	}
	if delta == "" {
		return ""
	}

	t.pending.WriteString(delta)
	buffered := t.pending.String()
	if strings.TrimSpace(buffered) == "" {
		return ""
	}

	t.started = true
	t.pending.Reset()
	return trimLeadingBlankLines(buffered)
}

// trimLeadingBlankLines removes whole blank lines from the front of text,
// keeping intentional indentation on the first line with content.
func trimLeadingBlankLines(text string) string {
	for {
		rest := strings.TrimLeft(text, " \t")
		switch {
		case strings.HasPrefix(rest, "\r\n"):
			text = rest[2:]
		case strings.HasPrefix(rest, "\n"), strings.HasPrefix(rest, "\r"):
			text = rest[1:]
		default:
			return text
		}
	}
}
