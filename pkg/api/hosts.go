package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"driftwatch/pkg/model"
	"driftwatch/pkg/scan"
	"driftwatch/pkg/secret"
	"driftwatch/pkg/store"
)

type createHostRequest struct {
	Hostname    string `json:"hostname"`
	IPAddress   string `json:"ip_address"`
	SSHUser     string `json:"ssh_user"`
	SSHPassword string `json:"ssh_password,omitempty"`
	SSHKey      string `json:"ssh_key,omitempty"`
}

func (s *Server) handleListHosts(w http.ResponseWriter, _ *http.Request) {
	hosts, err := s.store.ListHosts()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list hosts")
		return
	}
	writeJSON(w, http.StatusOK, hosts)
}

func (s *Server) handleCreateHost(w http.ResponseWriter, r *http.Request) {
	var req createHostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Hostname == "" || req.IPAddress == "" || req.SSHUser == "" {
		writeError(w, http.StatusBadRequest, "hostname, ip_address and ssh_user are required")
		return
	}

	encPassword, err := secret.Encrypt(req.SSHPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to protect credential")
		return
	}
	encKey, err := secret.Encrypt(req.SSHKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to protect credential")
		return
	}

	host := model.Host{
		Hostname:    req.Hostname,
		IPAddress:   req.IPAddress,
		SSHUser:     req.SSHUser,
		SSHPassword: encPassword,
		SSHKey:      encKey,
		CreatedAt:   time.Now(),
	}
	if err := s.store.CreateHost(&host); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create host")
		return
	}
	s.log.Info().Uint("host", host.ID).Str("hostname", host.Hostname).Msg("host registered")
	writeJSON(w, http.StatusCreated, host)
}

func (s *Server) handleDeleteHost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid host id")
		return
	}
	if err := s.store.DeleteHost(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "host not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete host")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleTriggerScan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid host id")
		return
	}
	job, err := s.orch.Trigger(id)
	if err != nil {
		switch {
		case errors.Is(err, scan.ErrConflict):
			writeError(w, http.StatusConflict, "a scan is already running for this host")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "host not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to start scan")
		}
		return
	}
	writeJSON(w, http.StatusAccepted, job.Summary())
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid host id")
		return
	}
	if _, err := s.store.Host(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "host not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load host")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	jobs, err := s.store.ListJobs(id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list scans")
		return
	}
	summaries := make([]model.ScanJobSummary, 0, len(jobs))
	for i := range jobs {
		summaries = append(summaries, jobs[i].Summary())
	}
	writeJSON(w, http.StatusOK, summaries)
}
