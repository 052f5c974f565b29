package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Status discriminates the event union: processing and error events are
// control-plane progress, result events carry stage output — including, on
// the Answering step, the answer fragments themselves.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusResult     Status = "result"
	StatusError      Status = "error"
)

// Pipeline step names, in emission order.
const (
	StepUnderstanding = "Understanding"
	StepSearching     = "Searching"
	StepGenerating    = "Generating"
	StepAnswering     = "Answering"
	StepError         = "Error"
)

// Icon decorates an event for the client UI.
type Icon struct {
	Emoji string `json:"emoji"`
}

// Event is one message on the chat stream. Events are emitted and
// transmitted in the order the pipeline stages complete; an error event is
// terminal.
type Event struct {
	Step    string `json:"step"`
	Status  Status `json:"status"`
	Message string `json:"message"`
	Icon    Icon   `json:"icon"`
}

// eventWriter frames events as server-sent messages and flushes each one so
// the client sees progress immediately.
type eventWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newEventWriter(w http.ResponseWriter) (*eventWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return &eventWriter{w: w, flusher: flusher}, nil
}

// send writes one event frame. A write error means the client is gone; the
// caller stops emitting.
func (e *eventWriter) send(evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	e.flusher.Flush()
	return nil
}
