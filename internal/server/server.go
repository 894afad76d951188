package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Rulyen46/changelog-relay/internal/health"
	"github.com/Rulyen46/changelog-relay/internal/store"
)

// TokenHeader is the request header carrying the shared-secret token.
const TokenHeader = "X-Relay-Token"

const shutdownTimeout = 5 * time.Second

// SnapshotSource supplies the most recent health snapshot.
// [health.SnapshotHolder] satisfies this.
type SnapshotSource interface {
	Latest() (health.Snapshot, bool)
}

// Server handles HTTP requests for the relay's read API.
//
// The server is stateless: every response is derived from the changelog
// store or the latest health snapshot at request time.
type Server struct {
	store      *store.ChangelogStore
	snapshots  SnapshotSource
	token      string
	port       int
	metrics    http.Handler
	logger     *slog.Logger
	httpServer *http.Server
	started    time.Time
}

// NewServer creates a new HTTP [Server].
//
// token is the shared secret required on authenticated routes. metrics may
// be nil, in which case no /metrics route is registered. The server is not
// started until [Server.Start] is called.
func NewServer(st *store.ChangelogStore, snapshots SnapshotSource, token string, port int, metrics http.Handler, logger *slog.Logger) *Server {
	return &Server{
		store:     st,
		snapshots: snapshots,
		token:     token,
		port:      port,
		metrics:   metrics,
		logger:    logger,
		started:   time.Now(),
	}
}

// Handler builds the route table. Exposed for tests; Start uses it too.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/detail", s.requireToken(s.handleHealthDetail))
	mux.HandleFunc("/feed/latest", s.requireToken(s.handleFeedLatest))
	mux.HandleFunc("/feed/entries", s.requireToken(s.handleFeedEntries))
	mux.HandleFunc("/feed/markdown", s.requireToken(s.handleFeedMarkdown))
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}

	return s.logRequests(mux)
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns after confirming the listener is bound.
// When ctx is cancelled the server shuts down gracefully with a 5-second
// timeout for in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.httpServer = &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// statusRecorder captures the response status for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logRequests logs every request with a correlation ID, client IP, auth
// disposition, status, and duration. The presented token itself is never
// logged; only a masked form appears when it is invalid.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()

		clientIP := r.RemoteAddr
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			clientIP = strings.TrimSpace(strings.Split(fwd, ",")[0])
		}

		auth := "anonymous"
		if presented := r.Header.Get(TokenHeader); presented != "" {
			if s.tokenValid(presented) {
				auth = "authenticated"
			} else {
				auth = "invalid_token(" + maskSecret(presented) + ")"
			}
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		s.logger.Info("api request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"client_ip", clientIP,
			"auth", auth,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// tokenValid compares the presented token in constant time.
func (s *Server) tokenValid(presented string) bool {
	return subtle.ConstantTimeCompare([]byte(presented), []byte(s.token)) == 1
}

// requireToken wraps an authenticated handler. A missing or wrong token
// yields 401 with no store contents; this is a normal request outcome.
func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		presented := r.Header.Get(TokenHeader)
		if presented == "" || !s.tokenValid(presented) {
			s.writeJSON(w, http.StatusUnauthorized, map[string]any{
				"status":  "error",
				"message": "invalid authentication token",
			})
			return
		}
		next(w, r)
	}
}

// maskSecret shows only the first and last four characters of a secret.
func maskSecret(secret string) string {
	if len(secret) <= 8 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// handleHealth is the public liveness summary: 200 whenever the process is
// responsive, no secrets, no store contents.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": time.Since(s.started).Seconds(),
	})
}

// handleHealthDetail returns the most recent health snapshot.
func (s *Server) handleHealthDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snap, ok := s.snapshots.Latest()
	if !ok {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"status":  "success",
			"found":   false,
			"message": "no health snapshot recorded yet",
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"found":  true,
		"health": snap,
	})
}

// handleFeedLatest returns the newest changelog entry. An empty store is a
// normal state and answers found:false with HTTP 200.
func (s *Server) handleFeedLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	entry, ok := s.store.Latest()
	if !ok {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"status":  "success",
			"found":   false,
			"message": "no changelog entries found",
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"found":     true,
		"changelog": entry,
	})
}

// handleFeedEntries serves history queries: ?after=<id> returns entries
// strictly newer than the given message ID, ?all=true returns the full
// history, and the default is the latest entry only.
func (s *Server) handleFeedEntries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var entries []store.Entry
	switch {
	case r.URL.Query().Get("after") != "":
		entries = s.store.EntriesAfter(r.URL.Query().Get("after"))
	case r.URL.Query().Get("all") == "true":
		entries = s.store.Entries()
	default:
		if latest, ok := s.store.Latest(); ok {
			entries = []store.Entry{latest}
		} else {
			entries = []store.Entry{}
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":     "success",
		"changelogs": entries,
		"total":      len(entries),
	})
}

// handleFeedMarkdown serves the durable changelog file as-is, so operators
// and the patcher can fetch the same document the relay maintains on disk.
// ?download=true forces an attachment disposition.
func (s *Server) handleFeedMarkdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, err := os.ReadFile(s.store.Path())
	if err != nil {
		if os.IsNotExist(err) {
			s.writeJSON(w, http.StatusNotFound, map[string]any{
				"status":  "error",
				"message": "changelog file not found",
			})
			return
		}
		s.logger.Error("failed to read changelog file", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status":  "error",
			"message": "failed to read changelog file",
		})
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	if r.URL.Query().Get("download") == "true" {
		w.Header().Set("Content-Disposition", `attachment; filename=changelog.md`)
	}
	if _, err := w.Write(data); err != nil {
		s.logger.Error("failed to write markdown response", "error", err)
	}
}
