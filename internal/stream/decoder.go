package stream

import (
	"log"
	"strings"
)

const (
	eventPrefix = "event: "
	dataPrefix  = "data: "
)

// decoder groups wire lines into frames and decodes them into typed events.
// A frame is an "event:" line naming the event followed by a "data:" line
// carrying its JSON payload. The pending name/payload pair is scoped to one
// decoder instance; every stream gets a fresh decoder.
//
// Only these two fields exist in this protocol. Any other line, including
// blank separators and comments, matches neither prefix and is ignored.
type decoder struct {
	pendingName string
}

// feed processes one line. It returns the completed event and true when the
// line finishes a frame. Malformed payloads are logged and dropped so a bad
// frame never aborts an otherwise healthy stream.
func (d *decoder) feed(line string) (Event, bool) {
	switch {
	case strings.HasPrefix(line, eventPrefix):
		d.pendingName = strings.TrimSpace(strings.TrimPrefix(line, eventPrefix))
	case strings.HasPrefix(line, dataPrefix):
		if d.pendingName == "" {
			return nil, false
		}
		name := d.pendingName
		d.pendingName = ""
		payload := strings.TrimLeft(strings.TrimPrefix(line, dataPrefix), " ")
		ev, err := decodeEvent(name, payload)
		if err != nil {
			log.Printf("stream: dropping malformed %q frame: %v", name, err)
			return nil, false
		}
		return ev, true
	}
	return nil, false
}
