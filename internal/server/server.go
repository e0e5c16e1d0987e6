// Package server exposes the analysis over HTTP:
//   - POST /analyze: analyze a JSON batch
//   - GET /ws/analyze: stream one result per row over a WebSocket
//   - GET /runs/{id}: fetch a stored run as JSON, CSV or Markdown
//   - GET /runs/{id}/verify: re-optimize a stored run and compare
//   - /health, /status, /metrics
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tt-analysis/internal/analysis"
	"tt-analysis/internal/ingestion"
	"tt-analysis/internal/observability"
	"tt-analysis/internal/optimizer"
)

// maxRequestBytes bounds request bodies and WebSocket messages.
const maxRequestBytes = 4 << 20

// Server serves analysis requests. Each request runs its own analysis.Runner.
type Server struct {
	optimizer *optimizer.Optimizer
	stores    []analysis.NamedStore
	keepGoing bool
	logger    *log.Logger
	upgrader  websocket.Upgrader
	now       func() time.Time

	// State
	mu         sync.Mutex
	started    time.Time
	runs       int
	failedRuns int
	lastRunID  string
	lastRunAt  time.Time
}

// Options for creating Server.
type Options struct {
	Optimizer *optimizer.Optimizer
	Stores    []analysis.NamedStore
	KeepGoing bool // default for requests that do not set keep_going
	Logger    *log.Logger

	// CheckOrigin for WebSocket upgrades; nil allows all origins
	CheckOrigin func(r *http.Request) bool
}

// New creates a new Server.
func New(opts Options) (*Server, error) {
	if opts.Optimizer == nil {
		return nil, errors.New("server: optimizer is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[server] ", log.LstdFlags)
	}
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}

	return &Server{
		optimizer: opts.Optimizer,
		stores:    opts.Stores,
		keepGoing: opts.KeepGoing,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		now:     func() time.Time { return time.Now().UTC() },
		started: time.Now().UTC(),
	}, nil
}

// Handler returns the HTTP handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", observability.Handler())
	mux.Handle("GET /status", s.instrument("/status", s.handleStatus))
	mux.Handle("POST /analyze", s.instrument("/analyze", s.handleAnalyze))
	mux.Handle("GET /runs/{id}", s.instrument("/runs", s.handleGetRun))
	mux.Handle("GET /runs/{id}/verify", s.instrument("/runs/verify", s.handleVerifyRun))
	mux.HandleFunc("GET /ws/analyze", s.handleStream)

	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("Starting HTTP server on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return ctx.Err()
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		Status:     "running",
		Uptime:     time.Since(s.started).Round(time.Second).String(),
		Runs:       s.runs,
		FailedRuns: s.failedRuns,
		LastRunID:  s.lastRunID,
		LastRunAt:  s.lastRunAt,
	}
	s.mu.Unlock()

	resp.Stores = make([]string, len(s.stores))
	for i, st := range s.stores {
		resp.Stores[i] = st.Name
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// newRunner builds a Runner for a single request.
func (s *Server) newRunner(keepGoing bool, onRow func(analysis.RowOutcome)) (*analysis.Runner, error) {
	return analysis.New(analysis.Options{
		Optimizer: s.optimizer,
		Stores:    s.stores,
		OnRow:     onRow,
		KeepGoing: keepGoing,
		Logger:    s.logger,
		Now:       s.now,
	})
}

// analyze runs req and records the outcome in the server state.
func (s *Server) analyze(ctx context.Context, source string, req *AnalyzeRequest, onRow func(analysis.RowOutcome)) (*analysis.RunResult, error) {
	runner, err := s.newRunner(req.KeepGoing || s.keepGoing, onRow)
	if err != nil {
		return nil, err
	}

	src := ingestion.NewSliceSource(req.Static.toDomain(), req.scenarios())
	result, err := runner.Run(ctx, source, src)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs++
	if err != nil {
		s.failedRuns++
		return nil, err
	}
	s.lastRunID = result.RunID
	s.lastRunAt = result.FinishedAt
	return result, nil
}

// instrument counts requests by endpoint and status code.
func (s *Server) instrument(endpoint string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		observability.RecordHTTPRequest(endpoint, rec.status)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// writeJSON marshals v before any header is written so an encoding failure
// can still be reported as a 500.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Printf("encode response: %v", err)
		status = http.StatusInternalServerError
		data, _ = json.Marshal(ErrorResponse{Error: "failed to encode response"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		s.logger.Printf("write response: %v", err)
	}
}
