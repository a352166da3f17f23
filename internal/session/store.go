package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound indicates the conversation does not exist or is not owned by
// the requesting user.
var ErrNotFound = errors.New("conversation not found")

// DefaultTitle is used until a real title has been generated.
const DefaultTitle = "New Conversation"

// storeTimeLayout is RFC 3339 with fixed-width nanoseconds so that stored
// timestamps sort chronologically as text (ORDER BY updated_at).
const storeTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Summary is per-conversation metadata for conversation listings.
type Summary struct {
	SessionID     string     `json:"session_id"`
	Title         string     `json:"title"`
	MessageCount  int        `json:"message_count"`
	LastPreview   string     `json:"last_preview,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// stateContext is the persisted playback-state half of a conversation.
type stateContext struct {
	IsPlaying        bool        `json:"is_playing"`
	PlaybackPosition float64     `json:"playback_position"`
	CurrentTrack     *TrackInfo  `json:"current_track,omitempty"`
	Playlist         []TrackInfo `json:"playlist"`
}

// Store persists conversations and their session state in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the conversation database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("conversation db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) init() error {
	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT 'New Conversation',
			message_count INTEGER NOT NULL DEFAULT 0,
			last_message_preview TEXT NOT NULL DEFAULT '',
			last_message_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS conversation_states (
			conversation_id TEXT PRIMARY KEY REFERENCES conversations(id) ON DELETE CASCADE,
			messages TEXT NOT NULL DEFAULT '[]',
			context TEXT NOT NULL DEFAULT '{}',
			last_synced_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id, updated_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// GetSession loads a conversation's state. An empty userID skips the
// ownership check (used by the device sync path).
func (s *Store) GetSession(sessionID, userID string) (*State, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, ErrNotFound
	}

	query := `SELECT cs.messages, cs.context, cs.last_synced_at
		FROM conversation_states cs
		JOIN conversations c ON c.id = cs.conversation_id
		WHERE c.id = ?`
	args := []any{sessionID}
	if userID != "" {
		query += " AND c.user_id = ?"
		args = append(args, userID)
	}

	var messagesJSON, contextJSON, syncedAt string
	err := s.db.QueryRow(query, args...).Scan(&messagesJSON, &contextJSON, &syncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return hydrateState(sessionID, messagesJSON, contextJSON, syncedAt)
}

// CreateSession creates the conversation if needed and returns its state.
func (s *Store) CreateSession(sessionID, userID string) (*State, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, fmt.Errorf("invalid session id %q", sessionID)
	}
	if userID == "" {
		return nil, errors.New("user id is required")
	}

	now := time.Now().UTC().Format(storeTimeLayout)
	_, err := s.db.Exec(`INSERT INTO conversations (id, user_id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`, sessionID, userID, DefaultTitle, now, now)
	if err != nil {
		return nil, err
	}
	_, err = s.db.Exec(`INSERT INTO conversation_states (conversation_id, last_synced_at)
		VALUES (?, ?)
		ON CONFLICT(conversation_id) DO NOTHING`, sessionID, now)
	if err != nil {
		return nil, err
	}

	return s.GetSession(sessionID, userID)
}

// UpdateSession persists the full session state and refreshes conversation
// metadata. It reports whether a title (re)generation is due: after the
// first exchange and then every tenth message.
func (s *Store) UpdateSession(st *State, userID string) (bool, error) {
	messagesJSON, err := json.Marshal(st.ChatHistory)
	if err != nil {
		return false, fmt.Errorf("marshal messages: %w", err)
	}
	contextJSON, err := json.Marshal(stateContext{
		IsPlaying:        st.IsPlaying,
		PlaybackPosition: st.PlaybackPosition,
		CurrentTrack:     st.CurrentTrack,
		Playlist:         st.Playlist,
	})
	if err != nil {
		return false, fmt.Errorf("marshal context: %w", err)
	}

	now := time.Now().UTC()
	nowText := now.Format(storeTimeLayout)

	_, err = s.db.Exec(`INSERT INTO conversation_states (conversation_id, messages, context, last_synced_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			messages = excluded.messages,
			context = excluded.context,
			last_synced_at = excluded.last_synced_at`,
		st.SessionID, string(messagesJSON), string(contextJSON), nowText)
	if err != nil {
		return false, err
	}

	messageCount := len(st.ChatHistory)
	var lastMessageAt any
	if messageCount > 0 {
		lastMessageAt = st.ChatHistory[messageCount-1].Timestamp.UTC().Format(storeTimeLayout)
	}

	query := `UPDATE conversations SET
			message_count = ?,
			last_message_preview = ?,
			last_message_at = ?,
			updated_at = ?
		WHERE id = ?`
	args := []any{messageCount, st.LastPreview(), lastMessageAt, nowText, st.SessionID}
	if userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}
	if _, err := s.db.Exec(query, args...); err != nil {
		return false, err
	}

	titleDue := messageCount == 2 || (messageCount > 0 && messageCount%10 == 0)
	return titleDue, nil
}

// SetTitle stores a generated conversation title.
func (s *Store) SetTitle(sessionID, title string) error {
	if title == "" {
		title = DefaultTitle
	}
	_, err := s.db.Exec(`UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?`,
		title, time.Now().UTC().Format(storeTimeLayout), sessionID)
	return err
}

// ListConversations returns the user's conversations, newest first.
func (s *Store) ListConversations(userID string) ([]Summary, error) {
	rows, err := s.db.Query(`SELECT id, title, message_count, last_message_preview, last_message_at, created_at, updated_at
		FROM conversations
		WHERE user_id = ?
		ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []Summary{}
	for rows.Next() {
		var sum Summary
		var lastAt sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(&sum.SessionID, &sum.Title, &sum.MessageCount, &sum.LastPreview, &lastAt, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if lastAt.Valid {
			if ts, err := time.Parse(time.RFC3339Nano, lastAt.String); err == nil {
				sum.LastMessageAt = &ts
			}
		}
		sum.CreatedAt = parseStoredTime(createdAt)
		sum.UpdatedAt = parseStoredTime(updatedAt)
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

func hydrateState(sessionID, messagesJSON, contextJSON, syncedAt string) (*State, error) {
	st := &State{
		SessionID: sessionID,
		Playlist:  []TrackInfo{},
		LastSync:  parseStoredTime(syncedAt),
	}

	if messagesJSON != "" {
		if err := json.Unmarshal([]byte(messagesJSON), &st.ChatHistory); err != nil {
			return nil, fmt.Errorf("decode messages: %w", err)
		}
	}
	if contextJSON != "" && contextJSON != "{}" {
		var ctx stateContext
		if err := json.Unmarshal([]byte(contextJSON), &ctx); err != nil {
			return nil, fmt.Errorf("decode context: %w", err)
		}
		st.IsPlaying = ctx.IsPlaying
		st.PlaybackPosition = ctx.PlaybackPosition
		st.CurrentTrack = ctx.CurrentTrack
		if ctx.Playlist != nil {
			st.Playlist = ctx.Playlist
		}
	}
	return st, nil
}

func parseStoredTime(value string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}
