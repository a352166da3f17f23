package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"playhead/internal/session"
	"playhead/internal/stream"
	"playhead/internal/textnorm"
)

const (
	defaultMaxRunDuration = 2 * time.Minute
	defaultMaxToolCalls   = 10
	defaultChatModel      = "gpt-4o-mini"

	historyWindow = 10

	hiccupText = "Sorry, I had a little hiccup. Try again?"
)

const systemPromptTemplate = `You are a friendly music DJ assistant called "Playhead DJ". You help users discover and play music.

Current State:
%s

You have access to tools to control music playback and manage the playlist:
- search_music: Search for music
- get_now_playing: Check what's currently playing
- get_playlist: See the queue
- play_track: Play a specific track by number (1-indexed)
- skip_next: Skip to next track
- add_to_playlist: Add music (format: "track name - artist")
- remove_from_playlist: Remove track by number (1-indexed)

Be conversational and fun! Add music-related commentary. Keep responses concise.`

// ServiceOptions controls model selection and run limits.
type ServiceOptions struct {
	ChatModel      string
	TitleModel     string
	MaxToolCalls   int
	MaxRunDuration time.Duration
}

// ChatRequest is the request body for agent chat endpoints.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// StreamRun is one in-flight agent turn: the resolved session plus the
// ordered event stream.
type StreamRun struct {
	SessionID string
	Events    <-chan stream.Event
}

// Service orchestrates agent turns: it runs the model tool loop, streams
// events, persists history, and schedules title generation.
type Service struct {
	runtime        Runtime
	store          *session.Store
	chatModel      string
	titleModel     string
	maxToolCalls   int
	maxRunDuration time.Duration
}

// NewService creates an agent service.
func NewService(runtime Runtime, store *session.Store, options ServiceOptions) *Service {
	chatModel := options.ChatModel
	if chatModel == "" {
		chatModel = defaultChatModel
	}
	titleModel := options.TitleModel
	if titleModel == "" {
		titleModel = chatModel
	}
	maxToolCalls := options.MaxToolCalls
	if maxToolCalls <= 0 {
		maxToolCalls = defaultMaxToolCalls
	}
	maxDuration := options.MaxRunDuration
	if maxDuration <= 0 {
		maxDuration = defaultMaxRunDuration
	}

	return &Service{
		runtime:        runtime,
		store:          store,
		chatModel:      chatModel,
		titleModel:     titleModel,
		maxToolCalls:   maxToolCalls,
		maxRunDuration: maxDuration,
	}
}

// ChatStream executes one agent turn. Events on the returned channel follow
// the turn protocol: text and thinking deltas, tool lifecycle pairs, and a
// final done event carrying collected device actions. The channel closes
// after done.
func (s *Service) ChatStream(ctx context.Context, userID string, req ChatRequest) (*StreamRun, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, fmt.Errorf("message is required")
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	st, err := s.store.CreateSession(sessionID, userID)
	if err != nil {
		return nil, err
	}

	out := make(chan stream.Event, 100)
	go s.run(ctx, st, userID, message, out)

	return &StreamRun{
		SessionID: sessionID,
		Events:    out,
	}, nil
}

func (s *Service) run(ctx context.Context, st *session.State, userID, message string, out chan<- stream.Event) {
	defer close(out)

	ctx, cancel := context.WithTimeout(ctx, s.maxRunDuration)
	defer cancel()

	// The assembler mirrors everything emitted so the turn can be persisted
	// as the same parts a consumer would assemble.
	asm := stream.NewAssembler(nil)
	emit := func(ev stream.Event) {
		asm.Apply(ev)
		select {
		case out <- ev:
		case <-ctx.Done():
		}
	}

	var actions []stream.Action
	var trimmer textnorm.StreamTrimmer
	deltas := TurnDeltas{
		Text: func(delta string) {
			if normalized := trimmer.Push(delta); normalized != "" {
				emit(stream.TextEvent{Content: normalized})
			}
		},
		Thinking: func(delta string) {
			emit(stream.ThinkingEvent{Content: delta})
		},
	}

	messages := s.buildMessages(st, message)
	executor := &ToolExecutor{State: st}
	tools := ToolDefinitions()

	toolCallsSeen := 0
	for {
		turn, err := s.runtime.StreamTurn(ctx, TurnRequest{
			Model:    s.chatModel,
			Messages: messages,
			Tools:    tools,
		}, deltas)
		if err != nil {
			if ctx.Err() != nil {
				// Cancelled or timed out: the turn is discarded, nothing is
				// persisted and no actions are dispatched.
				return
			}
			log.Printf("agent: model turn failed: %v", err)
			if asm.Empty() {
				emit(stream.TextEvent{Content: hiccupText})
			}
			break
		}
		if len(turn.ToolCalls) == 0 {
			break
		}
		toolCallsSeen += len(turn.ToolCalls)
		if toolCallsSeen > s.maxToolCalls {
			log.Printf("agent: run exceeded max tool calls (%d)", s.maxToolCalls)
			break
		}

		messages = append(messages, ChatMessage{
			Role:      "assistant",
			Content:   turn.Content,
			ToolCalls: turn.ToolCalls,
		})
		for _, call := range turn.ToolCalls {
			id := call.ID
			if id == "" {
				id = uuid.NewString()
			}
			args := decodeToolArgs(call.Args)
			emit(stream.ToolStartEvent{ID: id, ToolName: call.Name, Args: args})

			outcome := executor.Execute(call.Name, args)
			if outcome.Action != "" {
				actions = append(actions, outcome.Action)
			}
			status := stream.ToolStatusSuccess
			if outcome.IsError {
				status = stream.ToolStatusError
			}
			emit(stream.ToolEndEvent{ID: id, Result: outcome.Content, Status: status})

			messages = append(messages, ChatMessage{
				Role:       "tool",
				Content:    outcome.Content,
				ToolCallID: call.ID,
			})
		}
	}

	if ctx.Err() != nil {
		return
	}

	emit(stream.DoneEvent{Actions: actions})
	s.persistTurn(st, userID, message, asm.Parts())
}

func (s *Service) buildMessages(st *session.State, message string) []ChatMessage {
	messages := []ChatMessage{{
		Role:    "system",
		Content: fmt.Sprintf(systemPromptTemplate, st.ContextSummary()),
	}}

	history := st.ChatHistory
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	for _, msg := range history {
		role := "assistant"
		if msg.Role == "user" {
			role = "user"
		}
		text := msg.Text()
		if text == "" {
			continue
		}
		messages = append(messages, ChatMessage{Role: role, Content: text})
	}

	return append(messages, ChatMessage{Role: "user", Content: message})
}

func (s *Service) persistTurn(st *session.State, userID, message string, parts []stream.Part) {
	st.AddUserMessage(message)
	st.AddAgentMessage(parts)

	titleDue, err := s.store.UpdateSession(st, userID)
	if err != nil {
		log.Printf("agent: persisting session %s failed: %v", st.SessionID, err)
		return
	}
	if titleDue {
		go s.refreshTitle(st.SessionID, st.ChatHistory)
	}
}

func decodeToolArgs(raw string) map[string]any {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil || args == nil {
		return map[string]any{}
	}
	return args
}
