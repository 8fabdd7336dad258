package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/carebridge/scheduler"
	"github.com/carebridge/scheduler/execution"
	"github.com/carebridge/scheduler/id"
	"github.com/carebridge/scheduler/job"
)

// handleListJobs returns job definitions, filterable by tenant and type.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	opts := job.ListOpts{
		TenantID: r.URL.Query().Get("tenant_id"),
		Type:     job.Type(r.URL.Query().Get("type")),
		Limit:    queryInt(r, "limit", 50),
		Offset:   queryInt(r, "offset", 0),
	}

	jobs, err := s.store.ListJobs(r.Context(), opts)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs, "count": len(jobs)})
}

// handleGetJob returns a single job definition.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := id.ParseJobID(chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	def, err := s.store.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			s.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, def)
}

// handleListExecutions returns the execution ledger for one job, newest
// first.
func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	jobID, err := id.ParseJobID(chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	opts := execution.ListOpts{
		JobID:  jobID,
		Status: execution.Status(r.URL.Query().Get("status")),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}

	execs, err := s.store.ListExecutions(r.Context(), opts)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"executions": execs, "count": len(execs)})
}

// queryInt parses an integer query parameter, falling back to def.
func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
