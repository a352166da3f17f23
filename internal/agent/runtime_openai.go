package agent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIRuntime talks to an OpenAI-compatible chat completions endpoint.
// Custom base URLs allow pointing it at compatible gateways.
type OpenAIRuntime struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewOpenAIRuntime creates a runtime for the given endpoint. An empty baseURL
// selects the OpenAI API.
func NewOpenAIRuntime(baseURL, apiKey string) *OpenAIRuntime {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAIRuntime{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			// Streaming requests must not have a global client timeout.
			Timeout: 0,
		},
	}
}

// Available reports current availability.
func (r *OpenAIRuntime) Available() bool {
	return r != nil && r.apiKey != ""
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Tools    []wireTool    `json:"tools,omitempty"`
	Stream   bool          `json:"stream,omitempty"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireTool struct {
	Type     string      `json:"type"`
	Function wireToolDef `json:"function"`
}

type wireToolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type chatCompletionChunk struct {
	Choices []struct {
		Delta struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
			ToolCalls        []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// StreamTurn executes one streamed model turn, forwarding text and thinking
// deltas as they arrive and accumulating any tool calls.
func (r *OpenAIRuntime) StreamTurn(ctx context.Context, req TurnRequest, deltas TurnDeltas) (*ModelTurn, error) {
	if !r.Available() {
		return nil, &RuntimeUnavailableError{Reason: "OpenAI API key not configured"}
	}

	resp, err := r.post(ctx, chatCompletionRequest{
		Model:    req.Model,
		Messages: toWireMessages(req.Messages),
		Tools:    toWireTools(req.Tools),
		Stream:   true,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	turn := &ModelTurn{}
	var content strings.Builder
	var calls []ToolCall
	var callArgs []strings.Builder

	scanner := bufio.NewScanner(resp.Body)
	buffer := make([]byte, 0, 64*1024)
	scanner.Buffer(buffer, 2*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var chunk chatCompletionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		if choice.Delta.Content != "" {
			content.WriteString(choice.Delta.Content)
			if deltas.Text != nil {
				deltas.Text(choice.Delta.Content)
			}
		}
		if choice.Delta.ReasoningContent != "" && deltas.Thinking != nil {
			deltas.Thinking(choice.Delta.ReasoningContent)
		}
		for _, tc := range choice.Delta.ToolCalls {
			for tc.Index >= len(calls) {
				calls = append(calls, ToolCall{})
				callArgs = append(callArgs, strings.Builder{})
			}
			if tc.ID != "" {
				calls[tc.Index].ID = tc.ID
			}
			if tc.Function.Name != "" {
				calls[tc.Index].Name = tc.Function.Name
			}
			callArgs[tc.Index].WriteString(tc.Function.Arguments)
		}
		if choice.FinishReason != "" {
			turn.FinishReason = choice.FinishReason
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("model stream: %w", err)
	}

	turn.Content = content.String()
	for i := range calls {
		calls[i].Args = callArgs[i].String()
	}
	turn.ToolCalls = calls
	return turn, nil
}

// Complete executes a non-streaming completion and returns the text content.
func (r *OpenAIRuntime) Complete(ctx context.Context, model string, messages []ChatMessage) (string, error) {
	if !r.Available() {
		return "", &RuntimeUnavailableError{Reason: "OpenAI API key not configured"}
	}

	resp, err := r.post(ctx, chatCompletionRequest{
		Model:    model,
		Messages: toWireMessages(messages),
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var decoded chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return decoded.Choices[0].Message.Content, nil
}

func (r *OpenAIRuntime) post(ctx context.Context, payload chatCompletionRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, mapTransportError(err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		responseBody, _ := io.ReadAll(resp.Body)
		return nil, mapStatusError(resp.StatusCode, string(responseBody))
	}
	return resp, nil
}

func toWireMessages(messages []ChatMessage) []wireMessage {
	out := make([]wireMessage, 0, len(messages))
	for _, msg := range messages {
		wm := wireMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			args := tc.Args
			if args == "" {
				args = "{}"
			}
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: wireFunction{
					Name:      tc.Name,
					Arguments: args,
				},
			})
		}
		out = append(out, wm)
	}
	return out
}

func toWireTools(tools []ToolDefinition) []wireTool {
	out := make([]wireTool, 0, len(tools))
	for _, def := range tools {
		out = append(out, wireTool{
			Type: "function",
			Function: wireToolDef{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}
	return out
}

func mapTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &RuntimeUnavailableError{Reason: "model API network error: " + netErr.Error()}
	}
	return &RuntimeUnavailableError{Reason: "model API request failed: " + err.Error()}
}

func mapStatusError(status int, body string) error {
	body = strings.TrimSpace(body)
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &RuntimeUnavailableError{Reason: fmt.Sprintf("model API auth error (%d): %s", status, body)}
	default:
		return &RuntimeUnavailableError{Reason: fmt.Sprintf("model API error (%d): %s", status, body)}
	}
}

var _ Runtime = (*OpenAIRuntime)(nil)
