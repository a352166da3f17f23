// Package main is playctl, a terminal client for the playhead server. It
// streams one agent turn, renders parts as they assemble, and forwards
// playback actions back to the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"playhead/internal/agent"
	"playhead/internal/stream"
)

func main() {
	addr := flag.String("addr", envOr("PLAYHEAD_ADDR", "http://127.0.0.1:8080"), "server base URL")
	token := flag.String("token", os.Getenv("PLAYHEAD_TOKEN"), "API bearer token")
	user := flag.String("user", envOr("PLAYHEAD_USER", "cli"), "user name sent as X-Playhead-User")
	sessionID := flag.String("session", "", "conversation id (empty starts a new one)")
	flag.Parse()

	message := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if message == "" {
		fmt.Fprintln(os.Stderr, "usage: playctl [flags] <message>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	if *token == "" {
		log.Fatal("token is required (flag -token or PLAYHEAD_TOKEN)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := stream.NewClient(*addr, *token, *user)
	dispatcher := &actionDispatcher{
		client:    client,
		sessionID: *sessionID,
	}
	consumer := &stream.Consumer{
		Sink:    newRenderer(os.Stdout),
		Execute: dispatcher.dispatch,
	}

	result, err := client.Chat(ctx, stream.ChatRequest{
		Message:   message,
		SessionID: *sessionID,
	}, consumer)
	fmt.Println()
	if err != nil {
		log.Fatalf("turn failed: %v", err)
	}
	if !result.Done {
		log.Print("stream closed before the turn finished")
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// renderer prints parts incrementally: text deltas as they grow, one line
// per tool call transition.
type renderer struct {
	out     *os.File
	printed []printedPart
}

type printedPart struct {
	textLen   int
	announced bool
	completed bool
}

func newRenderer(out *os.File) *renderer {
	return &renderer{out: out}
}

// Snapshot implements stream.Sink.
func (r *renderer) Snapshot(parts []stream.Part) {
	for len(r.printed) < len(parts) {
		r.printed = append(r.printed, printedPart{})
	}
	for i, part := range parts {
		state := &r.printed[i]
		switch part.Type {
		case stream.PartText:
			if len(part.Content) > state.textLen {
				fmt.Fprint(r.out, part.Content[state.textLen:])
				state.textLen = len(part.Content)
			}
		case stream.PartThinking:
			if !state.announced {
				fmt.Fprintf(r.out, "\n[thinking] %s\n", strings.TrimSpace(part.Content))
				state.announced = true
			}
		case stream.PartToolCall:
			if !state.announced {
				fmt.Fprintf(r.out, "\n[tool] %s %s\n", part.ToolName, compactArgs(part.Args))
				state.announced = true
			}
			if part.Status != stream.ToolStatusPending && !state.completed {
				fmt.Fprintf(r.out, "[tool] %s -> %s\n", part.ToolName, part.Status)
				state.completed = true
			}
		}
	}
}

func compactArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(args))
	for key, value := range args {
		pairs = append(pairs, fmt.Sprintf("%s=%v", key, value))
	}
	return "(" + strings.Join(pairs, " ") + ")"
}

// actionDispatcher forwards playback actions to the server's direct action
// endpoint. Actions the device must execute itself are only reported.
type actionDispatcher struct {
	client    *stream.Client
	sessionID string
}

func (d *actionDispatcher) dispatch(actions []stream.Action) {
	for _, action := range actions {
		verb, arg, ok := agent.ParseAction(action)
		if !ok {
			log.Printf("skipping unrecognized action %q", action)
			continue
		}
		switch verb {
		case agent.ActionPlayIndex:
			d.post("play", url.Values{"index": {arg}})
		case agent.ActionSkipNext:
			d.post("skip_next", nil)
		default:
			// SEARCH_AND_ADD and REMOVE_INDEX run on the device.
			fmt.Printf("[action] %s\n", action)
		}
	}
}

func (d *actionDispatcher) post(action string, params url.Values) {
	if d.sessionID == "" {
		fmt.Printf("[action] %s (no session, not dispatched)\n", action)
		return
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("session_id", d.sessionID)

	endpoint := fmt.Sprintf("%s/api/action/%s?%s", d.client.BaseURL, action, params.Encode())
	req, err := http.NewRequest(http.MethodPost, endpoint, nil)
	if err != nil {
		log.Printf("action %s: %v", action, err)
		return
	}
	req.Header.Set("Authorization", "Bearer "+d.client.Token)
	req.Header.Set("X-Playhead-User", d.client.User)

	resp, err := d.client.HTTPClient.Do(req)
	if err != nil {
		log.Printf("action %s: %v", action, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Printf("action %s: status %d", action, resp.StatusCode)
		return
	}
	fmt.Printf("[action] %s dispatched\n", action)
}
