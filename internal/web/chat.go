package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/crepilot/crepilot/internal/agent"
	"github.com/crepilot/crepilot/internal/web/sse"
)

const maxChatBodyBytes = 1 << 20

// handleChat streams one chat turn as Server-Sent Events. Validation
// failures are plain JSON errors; once streaming starts, failures arrive as
// an ERROR frame.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req agent.Request
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	events, err := s.chat.Chat(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, agent.ErrEmptyMessage):
			s.writeError(w, http.StatusBadRequest, "message is required")
		case errors.Is(err, agent.ErrUnknownTool):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.logger.Error("starting chat turn", "error", err)
			s.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writer, err := sse.NewWriter(w)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	for ev := range events {
		switch ev.Type {
		case agent.EventDelta:
			if err := writer.WriteDelta(ev.Delta); err != nil {
				s.logger.Debug("client went away mid-stream", "error", err)
				return
			}
		case agent.EventDone:
			if err := writer.WriteDone(); err != nil {
				s.logger.Debug("writing done frame", "error", err)
			}
			return
		case agent.EventError:
			s.logger.Warn("chat turn failed", "error", ev.Err)
			if err := writer.WriteError(ev.Err.Error()); err != nil {
				s.logger.Debug("writing error frame", "error", err)
			}
			return
		}
	}
}
