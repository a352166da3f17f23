package agent

import (
	"context"
	"errors"
	"fmt"
)

// ChatMessage is one entry in the model conversation.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a model-requested tool invocation. Args holds the raw JSON
// argument object as produced by the model.
type ToolCall struct {
	ID   string
	Name string
	Args string
}

// TurnRequest is one model turn: the conversation so far plus the tools the
// model may call.
type TurnRequest struct {
	Model    string
	Messages []ChatMessage
	Tools    []ToolDefinition
}

// TurnDeltas receives streamed model output as it arrives. Nil callbacks are
// skipped.
type TurnDeltas struct {
	Text     func(delta string)
	Thinking func(delta string)
}

// ModelTurn is the accumulated result of one streamed model turn.
type ModelTurn struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
}

// Runtime is the provider contract for model execution.
type Runtime interface {
	Available() bool
	StreamTurn(ctx context.Context, req TurnRequest, deltas TurnDeltas) (*ModelTurn, error)
	Complete(ctx context.Context, model string, messages []ChatMessage) (string, error)
}

// RuntimeUnavailableError indicates the model backend cannot currently execute.
type RuntimeUnavailableError struct {
	Reason string
}

func (e *RuntimeUnavailableError) Error() string {
	if e.Reason == "" {
		return "model runtime unavailable"
	}
	return fmt.Sprintf("model runtime unavailable: %s", e.Reason)
}

// IsRuntimeUnavailable returns whether err indicates an unavailable runtime.
func IsRuntimeUnavailable(err error) bool {
	var target *RuntimeUnavailableError
	return errors.As(err, &target)
}
