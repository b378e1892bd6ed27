package api

import (
	"crypto/subtle"
	"net/http"

	apperrors "github.com/Matej398/crypto-folio/internal/errors"
)

// handleRunSnapshot handles POST /api/snapshot. The route is meant for a
// scheduler, so it is gated by a shared cron token instead of a session.
func (s *Server) handleRunSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.config.CronToken == "" {
		respondError(w, http.StatusForbidden, ErrCodeForbidden, "Snapshot trigger is not configured", nil)
		return
	}

	token := r.Header.Get("X-Cron-Token")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.config.CronToken)) != 1 {
		respondError(w, http.StatusForbidden, "INVALID_CRON_TOKEN", "Invalid cron token", nil)
		return
	}

	result, err := s.snapshotService.Run(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleFearGreed handles GET /api/fear-greed
func (s *Server) handleFearGreed(w http.ResponseWriter, r *http.Request) {
	reading, err := s.sentimentService.Fetch(r.Context())
	if err != nil {
		respondServiceError(w, apperrors.NewUpstreamError("fear/greed feed", err))
		return
	}

	respondJSON(w, http.StatusOK, reading)
}
