package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/crepilot/crepilot/internal/prompt"
)

// systemMessageResponse is the system message payload. Default reports
// whether the compiled-in message is in effect because no stored message is
// active.
type systemMessageResponse struct {
	Message string `json:"message"`
	Default bool   `json:"default"`
	ID      string `json:"id,omitempty"`
}

func (s *Server) handleGetSystemMessage(w http.ResponseWriter, r *http.Request) {
	m, err := s.prompts.Active(r.Context())
	if errors.Is(err, prompt.ErrNoActive) {
		s.writeJSON(w, http.StatusOK, systemMessageResponse{
			Message: prompt.DefaultSystemMessage,
			Default: true,
		})
		return
	}
	if err != nil {
		s.logger.Error("fetching system message", "error", err)
		s.writeError(w, http.StatusInternalServerError, "fetching system message")
		return
	}
	s.writeJSON(w, http.StatusOK, systemMessageResponse{Message: m.Message, ID: m.ID})
}

func (s *Server) handleSetSystemMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message string `json:"message"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(body.Message) == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	m, err := s.prompts.Set(r.Context(), body.Message)
	if err != nil {
		s.logger.Error("storing system message", "error", err)
		s.writeError(w, http.StatusInternalServerError, "storing system message")
		return
	}
	s.writeJSON(w, http.StatusOK, systemMessageResponse{Message: m.Message, ID: m.ID})
}
