// Package rpc serves nitrate's XML-RPC API. Calls are decoded by the codec
// in this package, authorized against the caller's permissions and
// dispatched to the tcms service.
package rpc

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/nitrate/internal/metrics"
	"github.com/mesh-intelligence/nitrate/internal/tcms"
	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// Fault codes.
const (
	FaultBadRequest      = 400
	FaultUnauthenticated = 401
	FaultPermission      = 403
	FaultNotFound        = 404
	FaultInternal        = 500
)

// SessionCookie is the cookie that carries the session key from Auth.login.
const SessionCookie = "sessionid"

// maxRequestBodySize caps the XML accepted in one call.
const maxRequestBodySize = 1 << 20

// Handler runs one method.
type Handler func(ctx context.Context, call *Call) (any, error)

// Method is a registered XML-RPC method.
type Method struct {
	Name      string
	Perm      string // required permission; empty means login only
	Anonymous bool   // callable without credentials
	Handler   Handler
}

// Call is the context of one invocation.
type Call struct {
	User    *types.User // nil for anonymous calls
	Session string      // session key the call was authenticated with
	Args    Args
}

// Options configures a Server.
type Options struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Version string
}

// Server dispatches XML-RPC calls to the tcms service.
type Server struct {
	svc      *tcms.Service
	logger   *zap.Logger
	metrics  *metrics.Metrics
	version  string
	methods  map[string]Method
	sessions *sessionStore
}

// NewServer creates a server with every nitrate method registered.
func NewServer(svc *tcms.Service, opts Options) *Server {
	s := &Server{
		svc:      svc,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		version:  opts.Version,
		methods:  make(map[string]Method),
		sessions: newSessionStore(),
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.version == "" {
		s.version = "dev"
	}
	s.registerAuth()
	s.registerProduct()
	s.registerPlan()
	s.registerCase()
	s.registerRun()
	s.registerCaseRun()
	return s
}

// Register adds or replaces a method.
func (s *Server) Register(m Method) {
	s.methods[m.Name] = m
}

// Methods returns the registered method names, sorted.
func (s *Server) Methods() []string {
	names := make([]string, 0, len(s.methods))
	for name := range s.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ServeHTTP decodes one methodCall from a POST body and writes the
// methodResponse. Faults are returned with status 200, as XML-RPC clients
// expect.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name, params, err := DecodeCall(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	var result any
	if err == nil {
		var user *types.User
		var session string
		user, session, err = s.authenticate(r)
		if err == nil {
			result, err = s.Invoke(r.Context(), &Call{User: user, Session: session, Args: params}, name)
		}
	}

	var buf bytes.Buffer
	if err != nil {
		_ = EncodeFault(&buf, s.fault(name, err))
	} else if encErr := EncodeResponse(&buf, result); encErr != nil {
		s.logger.Error("encoding xmlrpc response", zap.String("method", name), zap.Error(encErr))
		buf.Reset()
		_ = EncodeFault(&buf, Faultf(FaultInternal, "internal error"))
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	if _, err := io.Copy(w, &buf); err != nil {
		s.logger.Debug("writing xmlrpc response", zap.Error(err))
	}
}

// Invoke runs method for call, enforcing login and permission checks.
func (s *Server) Invoke(ctx context.Context, call *Call, method string) (any, error) {
	m, ok := s.methods[method]
	if !ok {
		s.count(method, "unknown")
		return nil, Faultf(FaultNotFound, "method %q is not supported", method)
	}
	if !m.Anonymous {
		if call.User == nil {
			s.count(method, "unauthenticated")
			return nil, Faultf(FaultUnauthenticated, "authentication required")
		}
		if m.Perm != "" && !call.User.HasPerm(m.Perm) {
			s.count(method, "denied")
			return nil, Faultf(FaultPermission, "permission %s required", m.Perm)
		}
	}
	result, err := m.Handler(ctx, call)
	if err != nil {
		s.count(method, "fault")
		return nil, err
	}
	s.count(method, "ok")
	return result, nil
}

func (s *Server) count(method, outcome string) {
	if s.metrics == nil {
		return
	}
	if _, ok := s.methods[method]; !ok {
		method = "unknown"
	}
	s.metrics.RPCCalls.WithLabelValues(method, outcome).Inc()
}

// authenticate resolves the caller from Basic auth or the session cookie.
// A request without either is anonymous.
func (s *Server) authenticate(r *http.Request) (*types.User, string, error) {
	if username, password, ok := r.BasicAuth(); ok {
		u, err := s.svc.Authenticate(username, password)
		if err != nil {
			return nil, "", err
		}
		return u, "", nil
	}
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return nil, "", nil
	}
	userID, ok := s.sessions.get(c.Value)
	if !ok {
		return nil, "", nil
	}
	u, err := s.svc.GetUser(userID)
	if errors.Is(err, types.ErrNotFound) {
		s.sessions.delete(c.Value)
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	return u, c.Value, nil
}

// fault maps an error to the fault returned to the client.
func (s *Server) fault(method string, err error) *Fault {
	var f *Fault
	if errors.As(err, &f) {
		return f
	}
	switch {
	case errors.Is(err, types.ErrBadCredentials):
		return Faultf(FaultUnauthenticated, "%v", err)
	case errors.Is(err, types.ErrPermissionDenied):
		return Faultf(FaultPermission, "%v", err)
	case errors.Is(err, types.ErrNotFound):
		return Faultf(FaultNotFound, "%v", err)
	case IsBadRequest(err):
		return Faultf(FaultBadRequest, "%v", err)
	}
	s.logger.Error("xmlrpc method failed", zap.String("method", method), zap.Error(err))
	return Faultf(FaultInternal, "internal error")
}

// IsBadRequest reports whether err stems from invalid input rather than a
// server failure: malformed calls, bad arguments, oversized bodies or
// invalid service input.
func IsBadRequest(err error) bool {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr),
		errors.Is(err, ErrBadRequest),
		errors.Is(err, ErrArgs):
		return true
	}
	return tcms.IsInvalidInput(err)
}

// sessionStore maps session keys from Auth.login to user IDs.
type sessionStore struct {
	mu   sync.Mutex
	keys map[string]string
}

func newSessionStore() *sessionStore {
	return &sessionStore{keys: make(map[string]string)}
}

func (ss *sessionStore) create(userID string) string {
	key := uuid.NewString()
	ss.mu.Lock()
	ss.keys[key] = userID
	ss.mu.Unlock()
	return key
}

func (ss *sessionStore) get(key string) (string, bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	id, ok := ss.keys[key]
	return id, ok
}

func (ss *sessionStore) delete(key string) {
	ss.mu.Lock()
	delete(ss.keys, key)
	ss.mu.Unlock()
}
