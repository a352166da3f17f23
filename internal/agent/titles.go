package agent

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"playhead/internal/session"
)

const (
	titleTimeout    = 5 * time.Second
	titleMaxLength  = 50
	titleSourceSize = 5
)

const titlePromptTemplate = `Based on this music conversation, generate a short, descriptive title (max 5 words).
The title should capture the main topic or vibe.

Examples:
- "Chill Jazz Playlist"
- "90s Rock Recommendations"
- "Study Focus Music"
- "Workout Energy Mix"

Conversation:
%s

Title (5 words max):`

// GenerateTitle produces a short conversation title from the first messages.
// It never fails: any error falls back to the default title.
func (s *Service) GenerateTitle(ctx context.Context, history []session.Message) string {
	ctx, cancel := context.WithTimeout(ctx, titleTimeout)
	defer cancel()

	source := history
	if len(source) > titleSourceSize {
		source = source[:titleSourceSize]
	}
	var conversation strings.Builder
	for _, msg := range source {
		fmt.Fprintf(&conversation, "%s: %s\n", msg.Role, msg.Text())
	}

	raw, err := s.runtime.Complete(ctx, s.titleModel, []ChatMessage{{
		Role:    "user",
		Content: fmt.Sprintf(titlePromptTemplate, strings.TrimRight(conversation.String(), "\n")),
	}})
	if err != nil {
		log.Printf("agent: title generation failed: %v", err)
		return session.DefaultTitle
	}

	title := strings.TrimSpace(raw)
	title = strings.Trim(title, `"'`)
	title = strings.TrimSpace(title)
	if title == "" {
		return session.DefaultTitle
	}
	if len(title) > titleMaxLength {
		title = title[:titleMaxLength-3] + "..."
	}
	return title
}

func (s *Service) refreshTitle(sessionID string, history []session.Message) {
	title := s.GenerateTitle(context.Background(), history)
	if err := s.store.SetTitle(sessionID, title); err != nil {
		log.Printf("agent: saving title for %s failed: %v", sessionID, err)
	}
}
