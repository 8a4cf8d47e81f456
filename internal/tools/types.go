// Package tools implements the tool registry and the six built-in tools the
// chat orchestrator and the direct invocation endpoints share.
package tools

import (
	"encoding/json"
	"fmt"
	"time"
)

// Tool identifiers.
const (
	ToolWebSearch        = "web-search"
	ToolDocumentSearch   = "document-search"
	ToolEconomicData     = "economic-data"
	ToolMarketAnalysis   = "market-analysis"
	ToolPropertyAnalysis = "property-analysis"
	ToolValueProposition = "value-proposition"
)

// ErrorKind classifies a failure for callers that map errors to transport
// responses.
type ErrorKind string

const (
	KindInvalidInput      ErrorKind = "InvalidInput"
	KindTimeout           ErrorKind = "Timeout"
	KindUpstreamFailure   ErrorKind = "UpstreamFailure"
	KindUnsupportedFormat ErrorKind = "UnsupportedFormat"
	KindIndexWriteFailure ErrorKind = "IndexWriteFailure"
	KindNotFound          ErrorKind = "NotFound"
)

// ToolError is a typed tool failure.
type ToolError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewToolError builds a ToolError with a formatted message.
func NewToolError(kind ErrorKind, format string, args ...any) *ToolError {
	return &ToolError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Status is the outcome of a tool invocation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result is the immutable outcome of one tool invocation. Exactly one of
// Data and Err is set, matching Status.
type Result struct {
	ToolID   string        `json:"tool_id"`
	Status   Status        `json:"status"`
	Data     any           `json:"data,omitempty"`
	Err      *ToolError    `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Summary renders a successful result's data as indented JSON for inclusion
// in a model context block. Failed results summarize as an unavailable note.
func (r Result) Summary() string {
	if r.Status != StatusSuccess {
		return fmt.Sprintf("[%s] unavailable: %s", r.ToolID, r.Err.Message)
	}
	data, err := json.MarshalIndent(r.Data, "", "  ")
	if err != nil {
		return fmt.Sprintf("[%s] %v", r.ToolID, r.Data)
	}
	return fmt.Sprintf("[%s]\n%s", r.ToolID, data)
}
