package stream

import (
	"context"
	"errors"
	"io"
)

// DefaultErrorText is the placeholder shown when a turn fails before any
// content arrived, so the UI is never left with an empty agent message.
const DefaultErrorText = "Sorry, I'm having technical difficulties. Try again in a moment!"

// Result is the final outcome of one assembled agent turn.
type Result struct {
	Parts   []Part
	Actions []Action
	// Done reports whether the turn ended with a done event rather than the
	// transport closing early.
	Done bool
}

// Consumer drives one turn: it reads the response body, decodes frames,
// folds events through an Assembler, and hands collected actions to the
// executor exactly once after the stream ends.
type Consumer struct {
	// Sink receives part snapshots after every event. Optional.
	Sink Sink
	// Execute receives the post-stream actions, called at most once and only
	// when the turn saw a done event with a non-empty action list. Optional.
	Execute func(actions []Action)
	// ErrorText overrides DefaultErrorText for the failure placeholder.
	ErrorText string
}

// Run consumes body until the done event, end of stream, or a transport
// failure, whichever comes first. Each frame is processed to completion
// before the next read, so events apply strictly in wire arrival order.
//
// On a transport failure Run returns both the result assembled so far and
// the error: parts already assembled are preserved as final, and a turn
// that failed before producing anything gets a single placeholder text
// part. Cancellation discards the turn entirely and returns the context
// error alone.
func (c *Consumer) Run(ctx context.Context, body io.Reader) (*Result, error) {
	asm := NewAssembler(c.Sink)
	var dec decoder
	lines := newLineReader(body)

	for {
		line, err := lines.next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				// Natural close. A truncated final frame was already
				// discarded by the reader; whatever was assembled stands.
				return c.finish(asm), nil
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if asm.Empty() {
				asm.Apply(TextEvent{Content: c.errorText()})
			}
			return c.finish(asm), err
		}

		ev, ok := dec.feed(line)
		if !ok {
			continue
		}
		asm.Apply(ev)
		if asm.Done() {
			return c.finish(asm), nil
		}
	}
}

func (c *Consumer) finish(asm *Assembler) *Result {
	res := &Result{
		Parts:   asm.Parts(),
		Actions: asm.Actions(),
		Done:    asm.Done(),
	}
	if c.Execute != nil && res.Done && len(res.Actions) > 0 {
		c.Execute(res.Actions)
	}
	return res
}

func (c *Consumer) errorText() string {
	if c.ErrorText != "" {
		return c.ErrorText
	}
	return DefaultErrorText
}
