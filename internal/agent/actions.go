package agent

import (
	"fmt"
	"strconv"
	"strings"

	"playhead/internal/session"
	"playhead/internal/stream"
)

// Device action verbs carried in ACTION strings.
const (
	ActionPlayIndex    = "PLAY_INDEX"
	ActionSkipNext     = "SKIP_NEXT"
	ActionSearchAndAdd = "SEARCH_AND_ADD"
	ActionRemoveIndex  = "REMOVE_INDEX"
)

// PlayIndexAction plays the playlist track at the 0-indexed position.
func PlayIndexAction(index int) stream.Action {
	return stream.Action(fmt.Sprintf("ACTION:%s:%d", ActionPlayIndex, index))
}

// SkipNextAction advances to the next track.
func SkipNextAction() stream.Action {
	return stream.Action("ACTION:" + ActionSkipNext)
}

// SearchAndAddAction searches for trackInfo and appends the result to the
// playlist.
func SearchAndAddAction(trackInfo string) stream.Action {
	return stream.Action(fmt.Sprintf("ACTION:%s:%s", ActionSearchAndAdd, trackInfo))
}

// RemoveIndexAction removes the playlist track at the 0-indexed position.
func RemoveIndexAction(index int) stream.Action {
	return stream.Action(fmt.Sprintf("ACTION:%s:%d", ActionRemoveIndex, index))
}

// ParseAction splits an ACTION string into its verb and optional argument.
func ParseAction(action stream.Action) (verb, arg string, ok bool) {
	raw := string(action)
	if !strings.HasPrefix(raw, "ACTION:") {
		return "", "", false
	}
	rest := strings.TrimPrefix(raw, "ACTION:")
	if rest == "" {
		return "", "", false
	}
	verb, arg, _ = strings.Cut(rest, ":")
	return verb, arg, true
}

// DirectResult is the device instruction produced by a direct playback
// command.
type DirectResult struct {
	Action string             `json:"action"`
	Index  int                `json:"index"`
	Track  *session.TrackInfo `json:"track,omitempty"`
}

// ResolveDirectAction maps a direct command (play, skip_next, skip_prev)
// against the session's playlist to a concrete play instruction.
func ResolveDirectAction(st *session.State, action string, index *int) (*DirectResult, error) {
	switch action {
	case "play":
		if index == nil {
			return nil, fmt.Errorf("play requires an index")
		}
		if *index < 0 || *index >= len(st.Playlist) {
			return nil, fmt.Errorf("invalid index %d", *index)
		}
		track := st.Playlist[*index]
		return &DirectResult{Action: "play", Index: *index, Track: &track}, nil
	case "skip_next":
		if st.CurrentTrack != nil && len(st.Playlist) > 0 {
			current := currentPlaylistIndex(st, -1)
			next := current + 1
			if next < len(st.Playlist) {
				return &DirectResult{Action: "play", Index: next}, nil
			}
		}
		return &DirectResult{Action: "play", Index: 0}, nil
	case "skip_prev":
		if st.CurrentTrack != nil && len(st.Playlist) > 0 {
			current := currentPlaylistIndex(st, 0)
			prev := current - 1
			if prev < 0 {
				prev = 0
			}
			return &DirectResult{Action: "play", Index: prev}, nil
		}
		return &DirectResult{Action: "play", Index: 0}, nil
	default:
		return nil, fmt.Errorf("unknown action: %s", action)
	}
}

func currentPlaylistIndex(st *session.State, fallback int) int {
	for i, track := range st.Playlist {
		if track.ID == st.CurrentTrack.ID {
			return i
		}
	}
	return fallback
}

// ActionIndex extracts the integer argument of an index-carrying action.
func ActionIndex(action stream.Action) (int, bool) {
	_, arg, ok := ParseAction(action)
	if !ok {
		return 0, false
	}
	idx, err := strconv.Atoi(arg)
	if err != nil {
		return 0, false
	}
	return idx, true
}
