// Package stream implements the wire protocol between the Playhead agent and
// its clients: a line-framed event stream carried over a long-lived HTTP
// response, and the assembler that folds decoded events into an ordered,
// display-ready message.
package stream

import (
	"encoding/json"
	"fmt"
)

// Wire event names.
const (
	eventText      = "text"
	eventThinking  = "thinking"
	eventToolStart = "tool_start"
	eventToolEnd   = "tool_end"
	eventDone      = "done"
)

// ToolStatus is the lifecycle state of a tool invocation.
type ToolStatus string

const (
	ToolStatusPending ToolStatus = "pending"
	ToolStatusSuccess ToolStatus = "success"
	ToolStatusError   ToolStatus = "error"
)

// Action is an opaque post-stream instruction, e.g. "ACTION:PLAY_INDEX:2".
// The assembler only collects actions; interpreting them is the executor's
// job.
type Action string

// Event is a decoded wire event. The set of implementations is closed.
type Event interface {
	eventName() string
}

// TextEvent is a narrated-text increment.
type TextEvent struct {
	Content string `json:"content"`
}

// ThinkingEvent is an internal-reasoning increment, distinct from narration.
type ThinkingEvent struct {
	Content string `json:"content"`
}

// ToolStartEvent announces that a tool invocation has begun.
type ToolStartEvent struct {
	ID       string         `json:"id"`
	ToolName string         `json:"tool_name"`
	Args     map[string]any `json:"args,omitempty"`
}

// ToolEndEvent announces that a previously started tool invocation finished.
type ToolEndEvent struct {
	ID     string     `json:"id"`
	Result any        `json:"result,omitempty"`
	Status ToolStatus `json:"status"`
}

// DoneEvent terminates a turn and carries the post-stream action list.
type DoneEvent struct {
	Actions []Action `json:"actions"`
}

// UnknownEvent is any event name without a registered decoder. It must not
// abort the stream.
type UnknownEvent struct {
	Name string
	Raw  string
}

func (TextEvent) eventName() string      { return eventText }
func (ThinkingEvent) eventName() string  { return eventThinking }
func (ToolStartEvent) eventName() string { return eventToolStart }
func (ToolEndEvent) eventName() string   { return eventToolEnd }
func (DoneEvent) eventName() string      { return eventDone }
func (UnknownEvent) eventName() string   { return "" }

// decodeEvent maps one (event name, payload text) pair to a typed event.
// Unregistered names decode to UnknownEvent; a payload that does not parse
// for its event name returns an error so the frame can be dropped.
func decodeEvent(name, payload string) (Event, error) {
	switch name {
	case eventText:
		var ev TextEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("text payload: %w", err)
		}
		return ev, nil
	case eventThinking:
		var ev ThinkingEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("thinking payload: %w", err)
		}
		return ev, nil
	case eventToolStart:
		var ev ToolStartEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("tool_start payload: %w", err)
		}
		return ev, nil
	case eventToolEnd:
		var ev ToolEndEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("tool_end payload: %w", err)
		}
		return ev, nil
	case eventDone:
		var ev DoneEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("done payload: %w", err)
		}
		return ev, nil
	default:
		return UnknownEvent{Name: name, Raw: payload}, nil
	}
}
