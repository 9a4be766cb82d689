package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"driftwatch/pkg/auth"
	"driftwatch/pkg/model"
	"driftwatch/pkg/store"
)

const tokenTTL = 24 * time.Hour

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// decodeCredentials accepts both JSON bodies and classic form posts.
func decodeCredentials(r *http.Request) (credentialsRequest, bool) {
	var req credentialsRequest
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseForm(); err != nil {
			return req, false
		}
		req.Username = r.FormValue("username")
		req.Password = r.FormValue("password")
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, false
	}
	return req, req.Username != "" && req.Password != ""
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	user, err := s.store.UserByUsername(req.Username)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "incorrect username or password")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "incorrect username or password")
		return
	}
	token, err := auth.Generate(user.ID, user.Username, tokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token, "token_type": "bearer"})
}

// handleRegister only allows the first user to be created (bootstrap admin).
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	count, err := s.store.CountUsers()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count users")
		return
	}
	if count > 0 {
		writeError(w, http.StatusForbidden, "registration closed")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}
	user := model.User{Username: req.Username, PasswordHash: string(hash), IsAdmin: true, CreatedAt: time.Now()}
	if err := s.store.CreateUser(&user); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}
	s.log.Info().Str("username", user.Username).Msg("bootstrap admin created")
	token, err := auth.Generate(user.ID, user.Username, tokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token, "token_type": "bearer"})
}

// handleUsersCount tells the client whether to show login or first-run
// registration.
func (s *Server) handleUsersCount(w http.ResponseWriter, _ *http.Request) {
	count, err := s.store.CountUsers()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count users")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": count})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	user, err := s.store.UserByID(claims.UserID)
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
