package api

import (
	"log/slog"
	"net/http"
)

// handleTick runs one scheduled tick and returns its summary. This is
// the endpoint an external cron caller hits.
func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	summary, err := s.runner.RunScheduledJobs(r.Context())
	if err != nil {
		s.logger.Error("runner tick error", slog.String("error", err.Error()))
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

// handleRunNow runs one manual tick, semantically identical to the
// scheduled trigger but stamped with the manual runner identity.
func (s *Server) handleRunNow(w http.ResponseWriter, r *http.Request) {
	summary, err := s.runner.RunNow(r.Context())
	if err != nil {
		s.logger.Error("manual run error", slog.String("error", err.Error()))
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}
