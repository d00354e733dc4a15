package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"hlstaild/internal/logger"
	"hlstaild/internal/session"
	"net/http"
	"strconv"
)

// maxBodyBytes bounds a create request body.
const maxBodyBytes = 1 << 16

type API struct {
	sessionMgr *session.Manager
	logger     logger.Logger
}

type createRequest struct {
	URL     string `json:"url"`
	Quality string `json:"quality"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func New(sessionMgr *session.Manager, log logger.Logger) http.Handler {
	api := &API{
		sessionMgr: sessionMgr,
		logger:     log,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /sessions", api.handleCreate)
	mux.HandleFunc("GET /sessions", api.handleList)
	mux.HandleFunc("GET /sessions/{id}", api.handleGet)
	mux.HandleFunc("GET /sessions/{id}/segments", api.handleSegments)
	mux.HandleFunc("DELETE /sessions/{id}", api.handleDelete)

	return mux
}

func (a *API) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	sess, err := a.sessionMgr.Create(req.URL, req.Quality)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, session.ErrInvalidURL) {
			status = http.StatusBadRequest
		}
		a.writeError(w, status, err)
		return
	}

	w.Header().Set("Location", "/sessions/"+sess.ID())
	a.writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (a *API) handleList(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, a.sessionMgr.List())
}

func (a *API) handleGet(w http.ResponseWriter, r *http.Request) {
	sess, found := a.sessionMgr.Get(r.PathValue("id"))
	if !found {
		a.writeError(w, http.StatusNotFound, session.ErrNotFound)
		return
	}
	a.writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (a *API) handleSegments(w http.ResponseWriter, r *http.Request) {
	after := 0
	if raw := r.URL.Query().Get("after"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			a.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid after parameter %q", raw))
			return
		}
		after = n
	}

	segments, err := a.sessionMgr.Segments(r.PathValue("id"), after)
	if err != nil {
		a.writeError(w, http.StatusNotFound, err)
		return
	}
	a.writeJSON(w, http.StatusOK, segments)
}

func (a *API) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.sessionMgr.Remove(r.PathValue("id")); err != nil {
		a.writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warnf("Failed to write response: %v", err)
	}
}

func (a *API) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		a.logger.Errorf("Request failed: %v", err)
	} else {
		a.logger.Debugf("Request rejected: %v", err)
	}
	a.writeJSON(w, status, errorResponse{Error: err.Error()})
}
