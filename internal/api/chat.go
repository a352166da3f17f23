package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"playhead/internal/agent"
	"playhead/internal/stream"
)

const emptyReplyText = "I'm here to help with your music! What would you like to do?"

// ChatResponse is the non-streaming chat response body.
type ChatResponse struct {
	Response  string          `json:"response"`
	Actions   []stream.Action `json:"actions"`
	SessionID string          `json:"session_id"`
}

// handleChatStream streams one agent turn as event/data frames.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req agent.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}

	run, err := s.agent.ChatStream(r.Context(), user, req)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	fw, err := stream.NewFrameWriter(w)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	for event := range run.Events {
		if err := fw.WriteEvent(event); err != nil {
			// Client went away; drain so the agent turn still completes
			// and gets persisted.
			log.Printf("api: chat stream write failed: %v", err)
			for range run.Events {
			}
			return
		}
	}
}

// handleChat runs one agent turn to completion and returns the assembled
// response in a single body.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req agent.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}

	run, err := s.agent.ChatStream(r.Context(), user, req)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	asm := stream.NewAssembler(nil)
	for event := range run.Events {
		asm.Apply(event)
	}

	response := textContent(asm.Parts())
	if response == "" {
		response = emptyReplyText
	}
	actions := asm.Actions()
	if actions == nil {
		actions = []stream.Action{}
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Response:  response,
		Actions:   actions,
		SessionID: run.SessionID,
	})
}

func textContent(parts []stream.Part) string {
	var b strings.Builder
	for _, part := range parts {
		if part.Type == stream.PartText {
			b.WriteString(part.Content)
		}
	}
	return strings.TrimSpace(b.String())
}
