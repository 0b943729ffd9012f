// Package httpapi serves nitrate's JSON HTTP API, the Prometheus metrics
// endpoint and the mounted XML-RPC server.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/nitrate/internal/metrics"
	"github.com/mesh-intelligence/nitrate/internal/tcms"
	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// maxRequestBodySize limits POST body sizes.
const maxRequestBodySize = 1 << 20 // 1 MB

// Options configures a Server.
type Options struct {
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer // served on /metrics; nil disables it
	RPC      http.Handler        // mounted on /xmlrpc/; nil disables it
}

// Server holds the HTTP handlers.
type Server struct {
	svc      *tcms.Service
	logger   *zap.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	rpc      http.Handler
}

// New creates a server over svc.
func New(svc *tcms.Service, opts Options) *Server {
	s := &Server{
		svc:      svc,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		gatherer: opts.Gatherer,
		rpc:      opts.RPC,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Handler returns the complete instrumented handler: health, metrics,
// XML-RPC and the JSON API under /api/.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	if s.rpc != nil {
		mux.Handle("/xmlrpc/", s.rpc)
	}
	s.RegisterHTTPHandlers("api", mux)
	return s.instrument(mux)
}

// RegisterHTTPHandlers registers the JSON API under prefix:
//
//	POST   <prefix>/comments
//	GET    <prefix>/comments?object_type=&object_id=
//	DELETE <prefix>/comments/{id}
//	POST   <prefix>/caseruns/{id}/links
//	GET    <prefix>/caseruns/{id}/links
//	DELETE <prefix>/links/{id}
//	POST   <prefix>/caseruns/{id}/status
//	GET    <prefix>/cases
//	GET    <prefix>/plans
//	GET    <prefix>/runs
//	GET    <prefix>/runs/{id}/stats
//	GET    <prefix>/users/{username}/recent
func (s *Server) RegisterHTTPHandlers(prefix string, mux *http.ServeMux) {
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix = prefix + "/"
	}

	mux.HandleFunc("POST "+prefix+"comments", s.handlePostComment)
	mux.HandleFunc("GET "+prefix+"comments", s.handleListComments)
	mux.HandleFunc("DELETE "+prefix+"comments/{id}", s.handleRemoveComment)
	mux.HandleFunc("POST "+prefix+"caseruns/{id}/links", s.handleAddLink)
	mux.HandleFunc("GET "+prefix+"caseruns/{id}/links", s.handleListLinks)
	mux.HandleFunc("DELETE "+prefix+"links/{id}", s.handleRemoveLink)
	mux.HandleFunc("POST "+prefix+"caseruns/{id}/status", s.handleCaseRunStatus)
	mux.HandleFunc("GET "+prefix+"cases", s.handleSearchCases)
	mux.HandleFunc("GET "+prefix+"plans", s.handleSearchPlans)
	mux.HandleFunc("GET "+prefix+"runs", s.handleSearchRuns)
	mux.HandleFunc("GET "+prefix+"runs/{id}/stats", s.handleRunStats)
	mux.HandleFunc("GET "+prefix+"users/{username}/recent", s.handleRecent)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument records request counts and durations by matched route.
func (s *Server) instrument(next http.Handler) http.Handler {
	if s.metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		s.metrics.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// authorize resolves the caller from Basic auth and checks perm. An empty
// perm only requires login. On failure the response is already written.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, perm string) (*types.User, bool) {
	username, password, ok := r.BasicAuth()
	if !ok {
		w.Header().Set("WWW-Authenticate", `Basic realm="nitrate"`)
		writeError(w, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	u, err := s.svc.Authenticate(username, password)
	if err != nil {
		s.fail(w, err)
		return nil, false
	}
	if perm != "" && !u.HasPerm(perm) {
		writeError(w, http.StatusForbidden, fmt.Sprintf("permission %s required", perm))
		return nil, false
	}
	return u, true
}

// fail writes the response for a service error.
func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, types.ErrBadCredentials):
		w.Header().Set("WWW-Authenticate", `Basic realm="nitrate"`)
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, types.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, types.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case isBadRequest(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// isBadRequest reports whether err is the caller's fault: an oversized body
// or input the service rejected.
func isBadRequest(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || tcms.IsInvalidInput(err)
}

// decodeBody reads a JSON body of at most maxRequestBodySize into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: decoding request body: %v", types.ErrInvalidData, err)
	}
	return nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error": msg}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
