package agent

import (
	"fmt"
	"strconv"
	"strings"

	"playhead/internal/session"
	"playhead/internal/stream"
)

// ToolDefinition describes one tool offered to the model, with a JSON Schema
// parameter object.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolOutcome is the result of executing a tool: narration fed back to the
// model, plus an optional device action.
type ToolOutcome struct {
	Content string
	Action  stream.Action
	IsError bool
}

func stringParam(description string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": description},
		},
		"required": []string{"query"},
	}
}

func indexParam(description string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"index": map[string]any{"type": "integer", "description": description},
		},
		"required": []string{"index"},
	}
}

var noParams = map[string]any{
	"type":       "object",
	"properties": map[string]any{},
}

// ToolDefinitions returns the playback tools offered on every agent turn.
func ToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        "search_music",
			Description: "Search for music tracks. Input: search query.",
			Parameters:  stringParam("Search query, e.g. artist or track name."),
		},
		{
			Name:        "get_now_playing",
			Description: "Get info about the currently playing track.",
			Parameters:  noParams,
		},
		{
			Name:        "get_playlist",
			Description: "Get the current playlist/queue.",
			Parameters:  noParams,
		},
		{
			Name:        "play_track",
			Description: "Play a track by its position number (1-indexed).",
			Parameters:  indexParam("Track position, 1-indexed."),
		},
		{
			Name:        "skip_next",
			Description: "Skip to the next track.",
			Parameters:  noParams,
		},
		{
			Name:        "add_to_playlist",
			Description: "Add a track to playlist. Input: 'track name - artist'.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"track_info": map[string]any{"type": "string", "description": "Track to add, formatted 'track name - artist'."},
				},
				"required": []string{"track_info"},
			},
		},
		{
			Name:        "remove_from_playlist",
			Description: "Remove track by position number (1-indexed).",
			Parameters:  indexParam("Track position, 1-indexed."),
		},
	}
}

// ToolExecutor runs tools against a session's playback state.
type ToolExecutor struct {
	State *session.State
}

// Execute runs the named tool. Unknown tools and bad arguments produce an
// error outcome rather than a Go error so the model can recover.
func (e *ToolExecutor) Execute(name string, args map[string]any) ToolOutcome {
	switch name {
	case "search_music":
		query, _ := args["query"].(string)
		return ToolOutcome{
			Content: fmt.Sprintf("To search for '%s', I'll ask the user's device to search the music catalog. The results will appear in the UI.", query),
		}
	case "get_now_playing":
		if e.State == nil || e.State.CurrentTrack == nil {
			return ToolOutcome{Content: "Nothing is currently playing."}
		}
		track := e.State.CurrentTrack
		return ToolOutcome{Content: fmt.Sprintf("Currently playing: %s by %s", track.Name, track.Artist)}
	case "get_playlist":
		return ToolOutcome{Content: e.playlistSummary()}
	case "play_track":
		idx, err := parseIndex(args["index"])
		if err != nil {
			return ToolOutcome{Content: "Please provide a valid track number.", IsError: true}
		}
		return ToolOutcome{
			Content: fmt.Sprintf("Playing track at position %d", idx),
			Action:  PlayIndexAction(idx - 1),
		}
	case "skip_next":
		return ToolOutcome{
			Content: "Skipping to next track",
			Action:  SkipNextAction(),
		}
	case "add_to_playlist":
		trackInfo, _ := args["track_info"].(string)
		trackInfo = strings.TrimSpace(trackInfo)
		if trackInfo == "" {
			return ToolOutcome{Content: "Please provide a track as 'track name - artist'.", IsError: true}
		}
		return ToolOutcome{
			Content: fmt.Sprintf("I'll add '%s' to your playlist.", trackInfo),
			Action:  SearchAndAddAction(trackInfo),
		}
	case "remove_from_playlist":
		idx, err := parseIndex(args["index"])
		if err != nil {
			return ToolOutcome{Content: "Please provide a valid track number.", IsError: true}
		}
		return ToolOutcome{
			Content: fmt.Sprintf("Removed track at position %d", idx),
			Action:  RemoveIndexAction(idx - 1),
		}
	default:
		return ToolOutcome{Content: fmt.Sprintf("Unknown tool: %s", name), IsError: true}
	}
}

func (e *ToolExecutor) playlistSummary() string {
	if e.State == nil || len(e.State.Playlist) == 0 {
		return "Playlist is empty."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Playlist has %d tracks:\n", len(e.State.Playlist))
	for i, track := range e.State.Playlist {
		fmt.Fprintf(&b, "%d. %s by %s\n", i+1, track.Name, track.Artist)
	}
	return strings.TrimRight(b.String(), "\n")
}

// parseIndex accepts JSON numbers and numeric strings; models produce both.
func parseIndex(value any) (int, error) {
	switch v := value.(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case string:
		idx, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("invalid index %q", v)
		}
		return idx, nil
	default:
		return 0, fmt.Errorf("invalid index %v", value)
	}
}
