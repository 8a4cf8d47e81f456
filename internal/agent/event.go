// Package agent orchestrates a chat turn: it fans out the requested tools,
// folds their results into the model context, and streams the model response
// back as events.
package agent

// EventType discriminates stream events.
type EventType string

const (
	// EventDelta carries one incremental chunk of response text.
	EventDelta EventType = "delta"
	// EventDone terminates a successful stream. Text holds the full
	// response.
	EventDone EventType = "done"
	// EventError terminates a failed stream.
	EventError EventType = "error"
)

// Event is one element of a chat response stream. A stream is zero or more
// deltas followed by exactly one Done or Error.
type Event struct {
	Type  EventType
	Delta string
	Text  string
	Err   error
}
