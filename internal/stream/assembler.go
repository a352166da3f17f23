package stream

import "strings"

// PartType tags one assembled message part.
type PartType string

const (
	PartText     PartType = "text"
	PartThinking PartType = "thinking"
	PartToolCall PartType = "tool_call"
)

// Part is a single chronological unit of an assembled agent message: a text
// run, a thinking segment, or a tool call. Tool-call parts are mutated in
// place when their tool_end arrives; their position never moves.
type Part struct {
	Type     PartType       `json:"type"`
	Content  string         `json:"content,omitempty"`
	ID       string         `json:"id,omitempty"`
	ToolName string         `json:"tool_name,omitempty"`
	Args     map[string]any `json:"args,omitempty"`
	Result   any            `json:"result,omitempty"`
	Status   ToolStatus     `json:"status,omitempty"`
}

// Sink receives a full snapshot of the assembled parts after every visible
// change. Snapshots are deep copies; the sink may retain them freely. The
// sink is always at most one event behind the wire.
type Sink interface {
	Snapshot(parts []Part)
}

// Assembler folds decoded events into an ordered part sequence for the
// agent message currently being built. It is single-writer; one assembler
// serves exactly one turn.
type Assembler struct {
	parts     []Part
	toolIndex map[string]int
	actions   []Action
	done      bool
	sink      Sink
}

// NewAssembler creates an assembler for one turn. sink may be nil when the
// caller only wants the final parts.
func NewAssembler(sink Sink) *Assembler {
	return &Assembler{
		toolIndex: make(map[string]int),
		sink:      sink,
	}
}

// Apply folds one event into the assembled message, applying the merge rules
// for its kind, and emits a snapshot when the parts visibly changed.
func (a *Assembler) Apply(ev Event) {
	switch ev := ev.(type) {
	case TextEvent:
		if ev.Content == "" {
			return
		}
		// Consecutive text increments coalesce into one run; anything else
		// in between starts a fresh run.
		if n := len(a.parts); n > 0 && a.parts[n-1].Type == PartText {
			a.parts[n-1].Content += ev.Content
		} else {
			a.parts = append(a.parts, Part{Type: PartText, Content: ev.Content})
		}
		a.emit()

	case ThinkingEvent:
		// Reasoning segments are discrete steps; never coalesced.
		a.parts = append(a.parts, Part{Type: PartThinking, Content: ev.Content})
		a.emit()

	case ToolStartEvent:
		if strings.TrimSpace(ev.ToolName) == "" {
			return
		}
		if i, ok := a.toolIndex[ev.ID]; ok {
			// Duplicate start for the same id: some backends resend partial
			// tool-call chunks. A later, fuller args map wins; an emptier
			// one never clobbers it.
			if len(ev.Args) > 0 {
				a.parts[i].Args = ev.Args
				a.emit()
			}
			return
		}
		a.parts = append(a.parts, Part{
			Type:     PartToolCall,
			ID:       ev.ID,
			ToolName: ev.ToolName,
			Args:     ev.Args,
			Status:   ToolStatusPending,
		})
		a.toolIndex[ev.ID] = len(a.parts) - 1
		a.emit()

	case ToolEndEvent:
		i, ok := a.toolIndex[ev.ID]
		if !ok {
			// Orphan end: the matching start never arrived (or was dropped
			// as malformed). Ignored.
			return
		}
		a.parts[i].Result = ev.Result
		a.parts[i].Status = ev.Status
		a.emit()

	case DoneEvent:
		if a.done {
			return
		}
		a.done = true
		a.actions = ev.Actions

	case UnknownEvent:
		// Tolerated so new server event kinds never break older clients.
	}
}

// Done reports whether the terminal event has been processed.
func (a *Assembler) Done() bool { return a.done }

// Empty reports whether no parts have been assembled yet.
func (a *Assembler) Empty() bool { return len(a.parts) == 0 }

// Parts returns a deep copy of the assembled part sequence.
func (a *Assembler) Parts() []Part { return snapshotParts(a.parts) }

// Actions returns the post-stream actions carried by the done event, or nil
// if the turn never completed.
func (a *Assembler) Actions() []Action {
	if !a.done {
		return nil
	}
	return a.actions
}

func (a *Assembler) emit() {
	if a.sink == nil {
		return
	}
	a.sink.Snapshot(snapshotParts(a.parts))
}

func snapshotParts(parts []Part) []Part {
	out := make([]Part, len(parts))
	for i, p := range parts {
		if p.Args != nil {
			p.Args = cloneValue(p.Args).(map[string]any)
		}
		p.Result = cloneValue(p.Result)
		out[i] = p
	}
	return out
}

// cloneValue deep-copies the decoded-JSON value union (maps, arrays,
// scalars). Tool args and results vary per tool, so no fixed shape is
// assumed.
func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
