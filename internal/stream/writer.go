package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// FrameWriter writes wire frames to a streaming HTTP response, flushing
// after every frame so clients stay at most one event behind.
type FrameWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewFrameWriter prepares w for streaming and returns a writer for it.
// Fails when the response writer cannot flush incrementally.
func NewFrameWriter(w http.ResponseWriter) (*FrameWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming not supported")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return &FrameWriter{w: w, flusher: flusher}, nil
}

// WriteEvent writes one event as an "event:"/"data:" frame followed by a
// blank separator. Unknown events have no wire name and are skipped.
func (fw *FrameWriter) WriteEvent(ev Event) error {
	name := ev.eventName()
	if name == "" {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(fw.w, "event: %s\ndata: %s\n\n", name, payload); err != nil {
		return err
	}
	fw.flusher.Flush()
	return nil
}
