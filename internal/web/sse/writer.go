// Package sse provides Server-Sent Events plumbing for streaming chat
// responses.
package sse

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Stream terminators. A stream is any number of data frames followed by
// exactly one of these.
const (
	doneMarker  = "[DONE]"
	errorPrefix = "ERROR:"
)

// ErrStreamingUnsupported indicates the response writer cannot flush.
var ErrStreamingUnsupported = errors.New("response writer does not support streaming")

// Writer frames chat deltas as SSE over an http.ResponseWriter.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter wraps w for SSE and sends the stream headers.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Writer{w: w, flusher: flusher}, nil
}

// WriteDelta sends one chunk of response text. Multi-line chunks become
// multiple data lines in a single event, per the SSE wire format.
func (w *Writer) WriteDelta(text string) error {
	for _, line := range strings.Split(text, "\n") {
		if _, err := fmt.Fprintf(w.w, "data: %s\n", line); err != nil {
			return fmt.Errorf("writing delta: %w", err)
		}
	}
	if _, err := w.w.Write([]byte("\n")); err != nil {
		return fmt.Errorf("writing delta terminator: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// WriteDone terminates a successful stream.
func (w *Writer) WriteDone() error {
	if _, err := fmt.Fprintf(w.w, "data: %s\n\n", doneMarker); err != nil {
		return fmt.Errorf("writing done marker: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// WriteError terminates a failed stream. The message is flattened to one
// line so it stays a single data frame.
func (w *Writer) WriteError(msg string) error {
	msg = strings.ReplaceAll(msg, "\n", " ")
	if _, err := fmt.Fprintf(w.w, "data: %s%s\n\n", errorPrefix, msg); err != nil {
		return fmt.Errorf("writing error frame: %w", err)
	}
	w.flusher.Flush()
	return nil
}
