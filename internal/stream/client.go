package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ChatRequest is the body of a chat-stream request.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// Client opens chat streams against the Playhead API. It is the transport
// half of a turn: it owns the request and hands the open response body to a
// Consumer.
type Client struct {
	BaseURL string
	Token   string
	User    string

	// HTTPClient defaults to a client without a global timeout; streaming
	// responses must not be cut off mid-turn.
	HTTPClient *http.Client
}

// NewClient creates a client for the given API base URL.
func NewClient(baseURL, token, user string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		Token:      token,
		User:       user,
		HTTPClient: &http.Client{Timeout: 0},
	}
}

// OpenChatStream starts one agent turn and returns the open response body.
// The caller must close it; cancelling ctx releases the underlying read.
func (c *Client) OpenChatStream(ctx context.Context, req ChatRequest) (io.ReadCloser, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/chat/stream", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if c.User != "" {
		httpReq.Header.Set("X-Playhead-User", c.User)
	}

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat stream request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		responseBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("chat stream error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(responseBody)))
	}
	return resp.Body, nil
}

// Chat runs one full turn: open the stream, assemble it, and return the
// result. The consumer's executor fires before Chat returns.
func (c *Client) Chat(ctx context.Context, req ChatRequest, consumer *Consumer) (*Result, error) {
	body, err := c.OpenChatStream(ctx, req)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return consumer.Run(ctx, body)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}
