package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carebridge/scheduler"
	"github.com/carebridge/scheduler/dlq"
	"github.com/carebridge/scheduler/id"
)

// handleListDLQ returns dead letter entries, oldest failure first.
// Resolved entries are excluded unless include_resolved=true.
func (s *Server) handleListDLQ(w http.ResponseWriter, r *http.Request) {
	opts := dlq.ListOpts{
		TenantID:        r.URL.Query().Get("tenant_id"),
		IncludeResolved: r.URL.Query().Get("include_resolved") == "true",
		Limit:           queryInt(r, "limit", 50),
		Offset:          queryInt(r, "offset", 0),
	}

	entries, err := s.store.ListDLQ(r.Context(), opts)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

// handleCountDLQ returns the number of unresolved entries, for alerting.
func (s *Server) handleCountDLQ(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.CountDLQ(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"unresolved": count})
}

// handleResolveDLQ marks an entry resolved, returning its job to the
// scheduling rotation.
func (s *Server) handleResolveDLQ(w http.ResponseWriter, r *http.Request) {
	entryID, err := id.ParseDLQID(chi.URLParam(r, "entryID"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid dlq entry id")
		return
	}

	if err := s.runner.DLQ().Resolve(r.Context(), entryID); err != nil {
		if errors.Is(err, scheduler.ErrDLQNotFound) {
			s.writeError(w, http.StatusNotFound, "dlq entry not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}
