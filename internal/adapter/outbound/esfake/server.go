// Package esfake runs an in-process HTTP server that speaks enough of the
// Elasticsearch REST API for adapter and end-to-end tests. Documents live in
// memory; search queries are evaluated by in-memory bleve indexes.
package esfake

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultVersion = "8.18.1"
	clusterName    = "esfake"
	clusterUUID    = "Zm9vYmFyYmF6cXV4MDAx"
	nodeName       = "esfake-node-1"
)

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the version number the server reports from GET /.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithBasicAuth makes every request require the given credentials.
func WithBasicAuth(username, password string) Option {
	return func(s *Server) { s.username, s.password = username, password }
}

// Server is a fake engine. It is safe for concurrent use.
type Server struct {
	httpServer *httptest.Server

	version  string
	username string
	password string

	delay    atomic.Int64
	requests atomic.Int64

	mu      sync.RWMutex
	indices map[string]*index
	aliases []alias
}

type alias struct {
	name    string
	index   string
	isWrite bool
}

// New starts a fake engine. Call Close when done.
func New(opts ...Option) *Server {
	s := &Server{
		version: defaultVersion,
		indices: make(map[string]*index),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.httpServer = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	return s
}

// URL is the base address to configure as an engine host.
func (s *Server) URL() string { return s.httpServer.URL }

// Close shuts the server down and releases every index.
func (s *Server) Close() {
	s.httpServer.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, idx := range s.indices {
		_ = idx.search.Close()
	}
	s.indices = map[string]*index{}
}

// SetDelay makes every subsequent response wait d, or until the client gives up.
func (s *Server) SetDelay(d time.Duration) { s.delay.Store(int64(d)) }

// Requests returns how many requests reached the server.
func (s *Server) Requests() int64 { return s.requests.Load() }

// AddAlias points alias at an existing or future index.
func (s *Server) AddAlias(name, index string, isWrite bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aliases = append(s.aliases, alias{name: name, index: index, isWrite: isWrite})
}

// CreateIndex creates an empty index. Existing indices are left untouched.
func (s *Server) CreateIndex(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.indexLocked(name, true)
	return err
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	w.Header().Set("X-Elastic-Product", "Elasticsearch")

	if d := time.Duration(s.delay.Load()); d > 0 {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return
		}
	}

	if s.username != "" {
		u, p, ok := r.BasicAuth()
		if !ok || u != s.username || p != s.password {
			writeError(w, http.StatusUnauthorized, "security_exception", "unable to authenticate user ["+u+"] for REST request ["+r.URL.Path+"]")
			return
		}
	}

	segs := splitPath(r.URL.Path)
	switch {
	case len(segs) == 0 && (r.Method == http.MethodGet || r.Method == http.MethodHead):
		s.handleInfo(w)
	case len(segs) >= 1 && segs[0] == "_cluster":
		s.routeCluster(w, r, segs)
	case len(segs) >= 2 && segs[0] == "_cat":
		s.routeCat(w, r, segs)
	case len(segs) == 1 && segs[0] == "_bulk":
		s.handleBulk(w, r, "")
	case len(segs) == 1 && segs[0] == "_search":
		s.handleSearch(w, r, "*")
	case len(segs) == 2 && segs[1] == "_bulk":
		s.handleBulk(w, r, segs[0])
	case len(segs) == 2 && segs[1] == "_search":
		s.handleSearch(w, r, segs[0])
	case len(segs) == 2 && segs[1] == "_mapping" && r.Method == http.MethodGet:
		s.handleMapping(w, segs[0])
	case len(segs) == 3 && segs[1] == "_doc":
		s.routeDocument(w, r, segs[0], segs[2])
	case len(segs) == 3 && segs[1] == "_create" && (r.Method == http.MethodPut || r.Method == http.MethodPost):
		s.handleIndex(w, r, segs[0], segs[2], true)
	default:
		writeError(w, http.StatusBadRequest, "illegal_argument_exception", "no handler found for uri ["+r.URL.Path+"] and method ["+r.Method+"]")
	}
}

func (s *Server) routeDocument(w http.ResponseWriter, r *http.Request, idx, id string) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		s.handleGet(w, idx, id)
	case http.MethodPut, http.MethodPost:
		s.handleIndex(w, r, idx, id, r.URL.Query().Get("op_type") == "create")
	case http.MethodDelete:
		s.handleDelete(w, r, idx, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "illegal_argument_exception", "method not allowed")
	}
}

func (s *Server) routeCluster(w http.ResponseWriter, r *http.Request, segs []string) {
	if r.Method != http.MethodGet || len(segs) < 2 {
		writeError(w, http.StatusBadRequest, "illegal_argument_exception", "unsupported cluster request")
		return
	}
	switch segs[1] {
	case "health":
		s.handleHealth(w)
	case "stats":
		s.handleStats(w)
	default:
		writeError(w, http.StatusBadRequest, "illegal_argument_exception", "unsupported cluster request")
	}
}

func (s *Server) routeCat(w http.ResponseWriter, r *http.Request, segs []string) {
	arg := ""
	if len(segs) > 2 {
		arg = segs[2]
	}
	switch segs[1] {
	case "indices":
		s.handleCatIndices(w, arg)
	case "aliases":
		s.handleCatAliases(w, arg)
	case "allocation":
		s.handleCatAllocation(w, arg)
	default:
		writeError(w, http.StatusBadRequest, "illegal_argument_exception", "unsupported cat request")
	}
}

func (s *Server) handleInfo(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":         nodeName,
		"cluster_name": clusterName,
		"cluster_uuid": clusterUUID,
		"version": map[string]any{
			"number":         s.version,
			"build_flavor":   "default",
			"build_type":     "docker",
			"lucene_version": "9.12.0",
		},
		"tagline": "You Know, for Search",
	})
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, typ, reason string) {
	cause := map[string]any{"type": typ, "reason": reason}
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"root_cause": []any{cause},
			"type":       typ,
			"reason":     reason,
		},
		"status": status,
	})
}
