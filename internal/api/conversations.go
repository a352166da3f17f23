package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"playhead/internal/session"
)

// handleListConversations returns the user's conversations, newest first.
func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	summaries, err := s.store.ListConversations(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": summaries})
}

// handleConversationHistory returns the full message history of one
// conversation, parts included.
func (s *Server) handleConversationHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	st, err := s.store.GetSession(chi.URLParam(r, "id"), user)
	if errors.Is(err, session.ErrNotFound) {
		writeNotFound(w, "Conversation not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	history := st.ChatHistory
	if history == nil {
		history = []session.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": st.SessionID,
		"messages":   history,
	})
}
