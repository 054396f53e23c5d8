package server

import (
	"encoding/json"
	"net/http"
	"strconv"
)

type interactRequest struct {
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}

func (s *Server) handleInteract(w http.ResponseWriter, r *http.Request) {
	var req interactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	resp, err := s.manager.HandleUserMessage(r.Context(), req.Message)
	if err != nil {
		s.logger.Error("interaction failed", "err", err)
		s.writeError(w, http.StatusInternalServerError, "interaction failed")
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	msgs, err := s.history.Recent(limit)
	if err != nil {
		s.logger.Error("history read failed", "err", err)
		s.writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"messages": msgs,
		"count":    len(msgs),
	})
}

// handleAnalyze triggers one proactive pass by hand. 204 means the
// gate was closed or the analysis produced nothing.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	snap, err := s.env.Snapshot(r.Context())
	if err != nil {
		s.logger.Error("snapshot failed", "err", err)
		s.writeError(w, http.StatusInternalServerError, "snapshot unavailable")
		return
	}

	suggestion, err := s.manager.AnalyzeSnapshot(r.Context(), snap)
	if err != nil {
		if suggestion == nil {
			s.logger.Error("analysis failed", "err", err)
			s.writeError(w, http.StatusInternalServerError, "analysis failed")
			return
		}
		// The suggestion was produced and its actions applied; only
		// recording it in the conversation failed. Still return it.
		s.logger.Error("suggestion not persisted", "suggestion_id", suggestion.ID, "err", err)
	}
	if suggestion == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, http.StatusOK, suggestion)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.manager.Status())
}
