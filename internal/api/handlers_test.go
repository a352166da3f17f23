package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"playhead/internal/agent"
	"playhead/internal/config"
	"playhead/internal/session"
	"playhead/internal/stream"
)

const (
	testToken = "test-token"
	testUser  = "alex"
)

// stubRuntime plays back one canned model turn per round.
type stubTurn struct {
	text      []string
	toolCalls []agent.ToolCall
	err       error
}

type stubRuntime struct {
	turns []stubTurn
}

func (r *stubRuntime) Available() bool { return true }

func (r *stubRuntime) StreamTurn(ctx context.Context, req agent.TurnRequest, deltas agent.TurnDeltas) (*agent.ModelTurn, error) {
	if len(r.turns) == 0 {
		return &agent.ModelTurn{FinishReason: "stop"}, nil
	}
	turn := r.turns[0]
	r.turns = r.turns[1:]
	if turn.err != nil {
		return nil, turn.err
	}
	var content strings.Builder
	for _, d := range turn.text {
		content.WriteString(d)
		if deltas.Text != nil {
			deltas.Text(d)
		}
	}
	return &agent.ModelTurn{Content: content.String(), ToolCalls: turn.toolCalls}, nil
}

func (r *stubRuntime) Complete(ctx context.Context, model string, messages []agent.ChatMessage) (string, error) {
	return "Test Title", nil
}

func newTestServer(t *testing.T, runtime agent.Runtime) (*httptest.Server, *session.Store) {
	t.Helper()
	store, err := session.NewStore(filepath.Join(t.TempDir(), "playhead.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{Token: testToken, ValidUsers: []string{testUser}}
	agentSvc := agent.NewService(runtime, store, agent.ServiceOptions{})
	srv := NewServerWithDependencies(cfg, store, agentSvc)

	ts := httptest.NewServer(NewRouter(srv))
	t.Cleanup(ts.Close)
	return ts, store
}

func doJSON(t *testing.T, ts *httptest.Server, method, path string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("X-Playhead-User", testUser)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestAuthRequired(t *testing.T) {
	ts, _ := newTestServer(t, &stubRuntime{})

	resp, err := http.Get(ts.URL + "/api/conversations")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}

	// Health stays open for device probes.
	resp, err = http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}
}

func TestInvalidUserRejected(t *testing.T) {
	ts, _ := newTestServer(t, &stubRuntime{})

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/conversations", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("X-Playhead-User", "mallory")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestChatStreamEndToEnd(t *testing.T) {
	runtime := &stubRuntime{turns: []stubTurn{
		{toolCalls: []agent.ToolCall{{ID: "c1", Name: "skip_next", Args: "{}"}}},
		{text: []string{"Next one ", "coming up!"}},
	}}
	ts, _ := newTestServer(t, runtime)

	client := stream.NewClient(ts.URL, testToken, testUser)
	var dispatched []stream.Action
	consumer := &stream.Consumer{
		Execute: func(actions []stream.Action) { dispatched = append(dispatched, actions...) },
	}

	result, err := client.Chat(context.Background(), stream.ChatRequest{Message: "skip this"}, consumer)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if !result.Done {
		t.Error("turn did not complete")
	}
	if len(result.Parts) != 2 {
		t.Fatalf("parts = %+v", result.Parts)
	}
	if result.Parts[0].Type != stream.PartToolCall || result.Parts[0].ToolName != "skip_next" {
		t.Errorf("tool part = %+v", result.Parts[0])
	}
	if result.Parts[1].Content != "Next one coming up!" {
		t.Errorf("text part = %+v", result.Parts[1])
	}
	if len(dispatched) != 1 || string(dispatched[0]) != "ACTION:SKIP_NEXT" {
		t.Errorf("dispatched = %v", dispatched)
	}
}

func TestChatNonStreaming(t *testing.T) {
	runtime := &stubRuntime{turns: []stubTurn{
		{text: []string{"All set."}},
	}}
	ts, _ := newTestServer(t, runtime)

	resp := doJSON(t, ts, http.MethodPost, "/api/chat", map[string]string{"message": "hello"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body ChatResponse
	decodeBody(t, resp, &body)
	if body.Response != "All set." {
		t.Errorf("response = %q", body.Response)
	}
	if body.Actions == nil || len(body.Actions) != 0 {
		t.Errorf("actions = %v", body.Actions)
	}
	if body.SessionID == "" {
		t.Error("missing session id")
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	ts, _ := newTestServer(t, &stubRuntime{})
	resp := doJSON(t, ts, http.MethodPost, "/api/chat", map[string]string{"message": ""})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestStateSyncAndGet(t *testing.T) {
	ts, _ := newTestServer(t, &stubRuntime{})

	playing := true
	position := 12.5
	sync := SyncRequest{
		CurrentTrack:     &session.TrackInfo{ID: "t1", Name: "So What", Artist: "Miles Davis"},
		Playlist:         &[]session.TrackInfo{{ID: "t1", Name: "So What", Artist: "Miles Davis"}},
		IsPlaying:        &playing,
		PlaybackPosition: &position,
	}
	resp := doJSON(t, ts, http.MethodPost, "/api/state/sync", sync)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sync status = %d", resp.StatusCode)
	}
	var synced struct {
		Status    string `json:"status"`
		SessionID string `json:"session_id"`
	}
	decodeBody(t, resp, &synced)
	if synced.Status != "synced" || synced.SessionID == "" {
		t.Fatalf("sync response = %+v", synced)
	}

	resp = doJSON(t, ts, http.MethodGet, "/api/state?session_id="+synced.SessionID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	var state StateResponse
	decodeBody(t, resp, &state)
	if state.CurrentTrack == nil || state.CurrentTrack.Name != "So What" {
		t.Errorf("current track = %+v", state.CurrentTrack)
	}
	if !state.IsPlaying || state.PlaybackPosition != 12.5 {
		t.Errorf("playback = %+v", state)
	}
	if len(state.Playlist) != 1 {
		t.Errorf("playlist = %+v", state.Playlist)
	}
}

func TestStateGetNotFound(t *testing.T) {
	ts, _ := newTestServer(t, &stubRuntime{})
	resp := doJSON(t, ts, http.MethodGet, "/api/state?session_id="+uuid.NewString(), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestDirectAction(t *testing.T) {
	ts, store := newTestServer(t, &stubRuntime{})

	sessionID := uuid.NewString()
	st, err := store.CreateSession(sessionID, testUser)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	st.CurrentTrack = &session.TrackInfo{ID: "t1"}
	st.Playlist = []session.TrackInfo{{ID: "t1", Name: "One"}, {ID: "t2", Name: "Two"}}
	if _, err := store.UpdateSession(st, testUser); err != nil {
		t.Fatalf("seed state: %v", err)
	}

	resp := doJSON(t, ts, http.MethodPost, "/api/action/skip_next?session_id="+sessionID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var result agent.DirectResult
	decodeBody(t, resp, &result)
	if result.Action != "play" || result.Index != 1 {
		t.Errorf("result = %+v", result)
	}

	resp = doJSON(t, ts, http.MethodPost, fmt.Sprintf("/api/action/play?session_id=%s&index=0", sessionID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("play status = %d", resp.StatusCode)
	}
	decodeBody(t, resp, &result)
	if result.Track == nil || result.Track.Name != "One" {
		t.Errorf("play result = %+v", result)
	}

	resp = doJSON(t, ts, http.MethodPost, "/api/action/shuffle?session_id="+sessionID, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown action status = %d", resp.StatusCode)
	}
}

func TestConversationsListAndHistory(t *testing.T) {
	runtime := &stubRuntime{turns: []stubTurn{
		{text: []string{"Hey there!"}},
	}}
	ts, _ := newTestServer(t, runtime)

	resp := doJSON(t, ts, http.MethodPost, "/api/chat", map[string]string{"message": "hi"})
	var chat ChatResponse
	decodeBody(t, resp, &chat)

	resp = doJSON(t, ts, http.MethodGet, "/api/conversations", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var list struct {
		Conversations []session.Summary `json:"conversations"`
	}
	decodeBody(t, resp, &list)
	if len(list.Conversations) != 1 {
		t.Fatalf("conversations = %+v", list.Conversations)
	}
	if list.Conversations[0].MessageCount != 2 {
		t.Errorf("message count = %d", list.Conversations[0].MessageCount)
	}

	resp = doJSON(t, ts, http.MethodGet, "/api/conversations/"+chat.SessionID+"/history", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history status = %d", resp.StatusCode)
	}
	var history struct {
		SessionID string            `json:"session_id"`
		Messages  []session.Message `json:"messages"`
	}
	decodeBody(t, resp, &history)
	if len(history.Messages) != 2 {
		t.Fatalf("messages = %+v", history.Messages)
	}
	if history.Messages[0].Role != "user" || history.Messages[0].Content != "hi" {
		t.Errorf("user message = %+v", history.Messages[0])
	}
	if history.Messages[1].Text() != "Hey there!" {
		t.Errorf("agent message = %+v", history.Messages[1])
	}
}
