package session

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"playhead/internal/stream"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "playhead.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreCreateAndGetSession(t *testing.T) {
	store := newTestStore(t)
	sessionID := uuid.NewString()

	st, err := store.CreateSession(sessionID, "user-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if st.SessionID != sessionID {
		t.Errorf("session id = %q", st.SessionID)
	}
	if len(st.ChatHistory) != 0 {
		t.Errorf("fresh session has history: %+v", st.ChatHistory)
	}

	// Create is get-or-create; a second call must not fail or reset.
	if _, err := store.CreateSession(sessionID, "user-1"); err != nil {
		t.Fatalf("second create: %v", err)
	}
}

func TestStoreGetSessionNotFound(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.GetSession("not-a-uuid", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("invalid id err = %v, want ErrNotFound", err)
	}
	if _, err := store.GetSession(uuid.NewString(), ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing id err = %v, want ErrNotFound", err)
	}
}

func TestStoreOwnershipCheck(t *testing.T) {
	store := newTestStore(t)
	sessionID := uuid.NewString()
	if _, err := store.CreateSession(sessionID, "user-1"); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := store.GetSession(sessionID, "user-2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign user err = %v, want ErrNotFound", err)
	}
	if _, err := store.GetSession(sessionID, ""); err != nil {
		t.Errorf("ownerless lookup should succeed (sync path): %v", err)
	}
}

func TestStoreUpdateSessionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	sessionID := uuid.NewString()
	st, err := store.CreateSession(sessionID, "user-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	st.AddUserMessage("play some jazz")
	st.AddAgentMessage([]stream.Part{
		{Type: stream.PartText, Content: "On it."},
		{Type: stream.PartToolCall, ID: "t1", ToolName: "search_music", Args: map[string]any{"query": "jazz"}, Status: stream.ToolStatusSuccess},
	})
	st.IsPlaying = true
	st.PlaybackPosition = 42.5
	st.CurrentTrack = &TrackInfo{ID: "tr1", Name: "Take Five", Artist: "Dave Brubeck"}
	st.Playlist = []TrackInfo{{ID: "tr1", Name: "Take Five", Artist: "Dave Brubeck"}}

	if _, err := store.UpdateSession(st, "user-1"); err != nil {
		t.Fatalf("update: %v", err)
	}

	loaded, err := store.GetSession(sessionID, "user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(loaded.ChatHistory) != 2 {
		t.Fatalf("history length = %d", len(loaded.ChatHistory))
	}
	agent := loaded.ChatHistory[1]
	if len(agent.Parts) != 2 || agent.Parts[1].ToolName != "search_music" {
		t.Errorf("agent parts = %+v", agent.Parts)
	}
	if !loaded.IsPlaying || loaded.PlaybackPosition != 42.5 {
		t.Errorf("playback state = %+v", loaded)
	}
	if loaded.CurrentTrack == nil || loaded.CurrentTrack.Name != "Take Five" {
		t.Errorf("current track = %+v", loaded.CurrentTrack)
	}
}

func TestStoreTitleCadence(t *testing.T) {
	store := newTestStore(t)
	sessionID := uuid.NewString()
	st, err := store.CreateSession(sessionID, "user-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	st.AddUserMessage("hello")
	due, err := store.UpdateSession(st, "user-1")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if due {
		t.Error("title not due after one message")
	}

	st.AddAgentMessage([]stream.Part{{Type: stream.PartText, Content: "hey!"}})
	due, err = store.UpdateSession(st, "user-1")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !due {
		t.Error("title due after the first full exchange")
	}

	for i := 0; i < 8; i++ {
		st.AddUserMessage("more")
	}
	due, err = store.UpdateSession(st, "user-1")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !due {
		t.Error("title due at every tenth message")
	}
}

func TestStoreListConversations(t *testing.T) {
	store := newTestStore(t)

	first := uuid.NewString()
	second := uuid.NewString()
	for _, id := range []string{first, second} {
		if _, err := store.CreateSession(id, "user-1"); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := store.CreateSession(uuid.NewString(), "user-2"); err != nil {
		t.Fatalf("create: %v", err)
	}

	st, err := store.GetSession(second, "user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	st.AddUserMessage("queue up something upbeat")
	if _, err := store.UpdateSession(st, "user-1"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := store.SetTitle(second, "Upbeat Queue"); err != nil {
		t.Fatalf("set title: %v", err)
	}

	summaries, err := store.ListConversations("user-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("got %d conversations, want 2", len(summaries))
	}
	// Updated conversation sorts first.
	if summaries[0].SessionID != second {
		t.Errorf("order = %v", []string{summaries[0].SessionID, summaries[1].SessionID})
	}
	if summaries[0].Title != "Upbeat Queue" || summaries[0].MessageCount != 1 {
		t.Errorf("summary = %+v", summaries[0])
	}
	if summaries[0].LastPreview != "queue up something upbeat" {
		t.Errorf("preview = %q", summaries[0].LastPreview)
	}
	if summaries[1].Title != DefaultTitle {
		t.Errorf("untouched title = %q", summaries[1].Title)
	}
}
