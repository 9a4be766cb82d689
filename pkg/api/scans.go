package api

import (
	"errors"
	"net/http"

	"driftwatch/pkg/diff"
	"driftwatch/pkg/model"
	"driftwatch/pkg/store"
)

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid scan id")
		return
	}
	job, err := s.store.Job(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "scan not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load scan")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleScanDiff compares a successful scan against the prior successful
// scan for the same host. Failed jobs never participate in the chronology.
func (s *Server) handleScanDiff(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid scan id")
		return
	}
	job, err := s.store.Job(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "scan not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load scan")
		return
	}
	if job.Status != model.StatusSuccess || job.Snapshot == nil {
		writeError(w, http.StatusBadRequest, "diff is only available for successful scans")
		return
	}

	var prev *model.ScanJob
	if p, err := s.store.SuccessBefore(job); err == nil {
		prev = &p
	} else if !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "failed to load previous scan")
		return
	}
	writeJSON(w, http.StatusOK, diff.BuildResultCached(prev, &job))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	results, err := s.searcher.Search(r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, results)
}
