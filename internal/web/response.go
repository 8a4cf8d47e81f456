package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/crepilot/crepilot/internal/document"
	"github.com/crepilot/crepilot/internal/ingest"
	"github.com/crepilot/crepilot/internal/tools"
)

// errorBody is the JSON error envelope.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// writeJSON encodes into a buffer first so headers are only sent after a
// successful encode.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		s.logger.Error("encoding JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Debug("writing response body", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorBody{Error: msg})
}

// writeToolError maps a tool failure kind to an HTTP status.
func (s *Server) writeToolError(w http.ResponseWriter, terr *tools.ToolError) {
	var status int
	switch terr.Kind {
	case tools.KindInvalidInput, tools.KindUnsupportedFormat:
		status = http.StatusBadRequest
	case tools.KindNotFound:
		status = http.StatusNotFound
	case tools.KindTimeout:
		status = http.StatusGatewayTimeout
	default:
		status = http.StatusBadGateway
	}
	s.writeJSON(w, status, errorBody{Error: terr.Message, Kind: string(terr.Kind)})
}

// statusFromError maps storage and pipeline errors to an HTTP status.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, document.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
