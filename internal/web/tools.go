package web

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/crepilot/crepilot/internal/tools"
)

const maxToolBodyBytes = 1 << 20

// toolInfo is one entry of the tool listing.
type toolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	ids := s.tools.IDs()
	infos := make([]toolInfo, 0, len(ids))
	for _, id := range ids {
		exec, ok := s.tools.Get(id)
		if !ok {
			continue
		}
		infos = append(infos, toolInfo{Name: exec.Name(), Description: exec.Description()})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tools": infos})
}

// toolResponse is the direct invocation response body.
type toolResponse struct {
	ToolID     string `json:"tool_id"`
	Status     string `json:"status"`
	Data       any    `json:"data"`
	DurationMS int64  `json:"duration_ms"`
}

func (s *Server) handleRunTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	r.Body = http.MaxBytesReader(w, r.Body, maxToolBodyBytes)
	input, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "reading request body")
		return
	}

	result := s.tools.Run(r.Context(), name, input)
	if result.Status != tools.StatusSuccess {
		s.writeToolError(w, result.Err)
		return
	}
	s.writeJSON(w, http.StatusOK, toolResponse{
		ToolID:     result.ToolID,
		Status:     string(result.Status),
		Data:       result.Data,
		DurationMS: result.Duration.Milliseconds(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			s.logger.Warn("health probe failed", "error", err)
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
