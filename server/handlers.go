package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	iris "github.com/irislabs/iris"
)

const (
	maxBatchSize      = 10
	healthProbePeriod = 5 * time.Second
)

// ErrorResponse is the body of a request-level failure (422, 503). Fetch
// failures are reported in-band inside a 200 FetchResponse instead.
type ErrorResponse struct {
	Error      string `json:"error"`
	StatusCode int    `json:"status_code"`
}

// handleFetch handles POST /fetch.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	if !s.browserAvailable() {
		s.sendError(w, "browser not available", http.StatusServiceUnavailable)
		return
	}

	var req iris.FetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "invalid request body: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if !req.WaitStrategy.Valid() {
		s.sendError(w, "unknown wait_strategy: "+string(req.WaitStrategy), http.StatusUnprocessableEntity)
		return
	}

	resp := s.deps.Client.Fetch(r.Context(), req)
	s.sendJSON(w, resp, http.StatusOK)
}

// handleBatch handles POST /batch.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if !s.browserAvailable() {
		s.sendError(w, "browser not available", http.StatusServiceUnavailable)
		return
	}

	var req iris.BatchFetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "invalid request body: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if len(req.Requests) < 1 || len(req.Requests) > maxBatchSize {
		s.sendError(w, "requests must contain between 1 and 10 items", http.StatusUnprocessableEntity)
		return
	}
	for _, fr := range req.Requests {
		if !fr.WaitStrategy.Valid() {
			s.sendError(w, "unknown wait_strategy: "+string(fr.WaitStrategy), http.StatusUnprocessableEntity)
			return
		}
	}

	resp := s.deps.Client.FetchBatch(r.Context(), req.Requests)
	s.sendJSON(w, resp, http.StatusOK)
}

// handleCacheInvalidate handles DELETE /cache/{url_hash}.
func (s *Server) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "url_hash")
	deleted := s.deps.Client.Cache().Invalidate(r.Context(), hash)
	s.sendJSON(w, map[string]bool{"deleted": deleted}, http.StatusOK)
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthProbePeriod)
	defer cancel()

	browserConnected := s.browserAvailable()
	cacheConnected := false
	if c := s.deps.Client.Cache(); c.Enabled() {
		cacheConnected = c.Ping(ctx) == nil
		stats := c.Stats()
		s.log.Debug("cache stats",
			"hits", stats.Hits,
			"misses", stats.Misses,
			"errors", stats.Errors,
		)
	}
	sentinelConnected := s.deps.Sentinel != nil && s.deps.Sentinel.Ping(ctx) == nil

	activePages := 0
	if s.deps.Pool != nil {
		activePages = s.deps.Pool.ActivePages()
	}

	status := "ok"
	if !browserConnected {
		status = "degraded"
	}

	s.sendJSON(w, iris.HealthResponse{
		Status:            status,
		Service:           serviceName,
		Version:           serviceVersion,
		BrowserConnected:  browserConnected,
		CacheConnected:    cacheConnected,
		SentinelConnected: sentinelConnected,
		ActivePages:       activePages,
		UptimeSeconds:     time.Since(s.started).Seconds(),
	}, http.StatusOK)
}

// browserAvailable reports whether fetches can be served. A nil pool means
// the client was wired with a non-browser executor and is always available.
func (s *Server) browserAvailable() bool {
	return s.deps.Pool == nil || s.deps.Pool.Connected()
}

func (s *Server) sendJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(data); err != nil {
		s.log.Error("failed to encode response", "error", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	s.sendJSON(w, ErrorResponse{Error: message, StatusCode: statusCode}, statusCode)
}
