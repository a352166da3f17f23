package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"playhead/internal/agent"
	"playhead/internal/session"
)

const historyResponseSize = 20

// StateResponse is the full session state returned to the device.
type StateResponse struct {
	SessionID        string              `json:"session_id"`
	CurrentTrack     *session.TrackInfo  `json:"current_track,omitempty"`
	Playlist         []session.TrackInfo `json:"playlist"`
	IsPlaying        bool                `json:"is_playing"`
	PlaybackPosition float64             `json:"playback_position"`
	ChatHistory      []session.Message   `json:"chat_history"`
}

// SyncRequest carries device playback state to the server. Nil fields are
// left untouched.
type SyncRequest struct {
	SessionID        string               `json:"session_id,omitempty"`
	CurrentTrack     *session.TrackInfo   `json:"current_track,omitempty"`
	Playlist         *[]session.TrackInfo `json:"playlist,omitempty"`
	IsPlaying        *bool                `json:"is_playing,omitempty"`
	PlaybackPosition *float64             `json:"playback_position,omitempty"`
}

// handleGetState returns the current session state including recent history.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeBadRequest(w, "session_id is required")
		return
	}

	st, err := s.store.GetSession(sessionID, user)
	if errors.Is(err, session.ErrNotFound) {
		writeNotFound(w, "Conversation not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	history := st.ChatHistory
	if len(history) > historyResponseSize {
		history = history[len(history)-historyResponseSize:]
	}
	if history == nil {
		history = []session.Message{}
	}

	writeJSON(w, http.StatusOK, StateResponse{
		SessionID:        st.SessionID,
		CurrentTrack:     st.CurrentTrack,
		Playlist:         st.Playlist,
		IsPlaying:        st.IsPlaying,
		PlaybackPosition: st.PlaybackPosition,
		ChatHistory:      history,
	})
}

// handleSyncState merges device playback state into the session.
func (s *Server) handleSyncState(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	st, err := s.store.CreateSession(sessionID, user)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if req.CurrentTrack != nil {
		st.CurrentTrack = req.CurrentTrack
	}
	if req.Playlist != nil {
		st.Playlist = *req.Playlist
	}
	if req.IsPlaying != nil {
		st.IsPlaying = *req.IsPlaying
	}
	if req.PlaybackPosition != nil {
		st.PlaybackPosition = *req.PlaybackPosition
	}

	if _, err := s.store.UpdateSession(st, user); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "synced",
		"session_id": st.SessionID,
		"last_sync":  time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// handleAction executes a direct playback command against the session's
// playlist and returns the device instruction.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeBadRequest(w, "session_id is required")
		return
	}

	st, err := s.store.GetSession(sessionID, user)
	if errors.Is(err, session.ErrNotFound) {
		writeNotFound(w, "Conversation not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var index *int
	if raw := r.URL.Query().Get("index"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeBadRequest(w, "Invalid index")
			return
		}
		index = &parsed
	}

	result, err := agent.ResolveDirectAction(st, chi.URLParam(r, "action"), index)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}
