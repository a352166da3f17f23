// Package session holds the per-conversation state of the music agent: chat
// history, the device's playback snapshot, and the SQLite persistence behind
// both.
package session

import (
	"fmt"
	"strings"
	"time"

	"playhead/internal/stream"
)

// TrackInfo describes one music track as reported by the device.
type TrackInfo struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Artist     string  `json:"artist"`
	Album      string  `json:"album,omitempty"`
	ArtworkURL string  `json:"artwork_url,omitempty"`
	Duration   float64 `json:"duration,omitempty"`
}

// Message is one chat history entry. Agent messages carry the assembled
// part sequence; user messages carry plain text.
type Message struct {
	Role      string        `json:"role"`
	Content   string        `json:"content,omitempty"`
	Parts     []stream.Part `json:"parts,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Text returns the message's narrated text: the content field, or the
// concatenation of its text parts.
func (m Message) Text() string {
	if m.Content != "" {
		return m.Content
	}
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == stream.PartText {
			b.WriteString(p.Content)
		}
	}
	return b.String()
}

// State is the complete session state for one conversation.
type State struct {
	SessionID        string      `json:"session_id"`
	ChatHistory      []Message   `json:"chat_history"`
	CurrentTrack     *TrackInfo  `json:"current_track,omitempty"`
	Playlist         []TrackInfo `json:"playlist"`
	IsPlaying        bool        `json:"is_playing"`
	PlaybackPosition float64     `json:"playback_position"`
	LastSync         time.Time   `json:"last_sync"`
}

// AddUserMessage appends a plain-text user message to the history.
func (s *State) AddUserMessage(content string) {
	s.ChatHistory = append(s.ChatHistory, Message{
		Role:      "user",
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
}

// AddAgentMessage appends an agent message built from assembled parts.
func (s *State) AddAgentMessage(parts []stream.Part) {
	s.ChatHistory = append(s.ChatHistory, Message{
		Role:      "agent",
		Parts:     parts,
		Timestamp: time.Now().UTC(),
	})
}

// ContextSummary renders the playback state for the LLM system prompt.
func (s *State) ContextSummary() string {
	var lines []string

	if s.CurrentTrack != nil {
		lines = append(lines, fmt.Sprintf("Currently playing: %s by %s", s.CurrentTrack.Name, s.CurrentTrack.Artist))
	} else {
		lines = append(lines, "Nothing is currently playing.")
	}

	if len(s.Playlist) > 0 {
		lines = append(lines, fmt.Sprintf("Playlist has %d tracks:", len(s.Playlist)))
		for i, track := range s.Playlist {
			if i == 5 {
				lines = append(lines, fmt.Sprintf("  ... and %d more", len(s.Playlist)-5))
				break
			}
			lines = append(lines, fmt.Sprintf("  %d. %s - %s", i+1, track.Name, track.Artist))
		}
	} else {
		lines = append(lines, "Playlist is empty.")
	}

	return strings.Join(lines, "\n")
}

// LastPreview returns a short preview of the newest non-empty message, for
// conversation listings.
func (s *State) LastPreview() string {
	const maxPreviewLen = 100
	for i := len(s.ChatHistory) - 1; i >= 0; i-- {
		text := strings.Join(strings.Fields(s.ChatHistory[i].Text()), " ")
		if text == "" {
			continue
		}
		if len(text) <= maxPreviewLen {
			return text
		}
		trimmed := text[:maxPreviewLen]
		if cut := strings.LastIndex(trimmed, " "); cut > maxPreviewLen/2 {
			trimmed = trimmed[:cut]
		}
		return strings.TrimSpace(trimmed)
	}
	return ""
}
