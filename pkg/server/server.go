// Package server exposes the wizards and dashboards over a JSON/SSE HTTP API for the browser
// frontend.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zdunecki/matchfund/pkg/campaign"
	"github.com/zdunecki/matchfund/pkg/config"
	"github.com/zdunecki/matchfund/pkg/dashboard"
	"github.com/zdunecki/matchfund/pkg/flows"
	"github.com/zdunecki/matchfund/pkg/logging"
)

const (
	keyBits           = 2048
	keepAliveInterval = 30 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Server holds the wizard sessions and the handlers that drive them.
type Server struct {
	deps     flows.Deps
	loader   *dashboard.Loader
	cfg      config.Server
	logger   *zap.Logger
	keys     *keyring
	sessions *sessionStore

	keepAlive time.Duration
}

// New creates a server with a fresh encryption key for secure fields.
func New(deps flows.Deps, loader *dashboard.Loader, cfg config.Server, logger *zap.Logger) (*Server, error) {
	logger = logging.OrNop(logger)
	if deps.Logger == nil {
		deps.Logger = logger
	}
	if deps.Launcher == nil && deps.API != nil {
		deps.Launcher = campaign.NewLauncher(deps.API, logger)
	}
	keys, err := newKeyring(keyBits)
	if err != nil {
		return nil, fmt.Errorf("init secure keypair: %w", err)
	}
	return &Server{
		deps:      deps,
		loader:    loader,
		cfg:       cfg,
		logger:    logger,
		keys:      keys,
		sessions:  newSessionStore(cfg.SessionTTL, logger),
		keepAlive: keepAliveInterval,
	}, nil
}

// Handler returns the routed API wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/flows", s.handleListFlows)
	mux.HandleFunc("POST /api/wizards", s.handleCreateWizard)
	mux.HandleFunc("GET /api/wizards/{id}", s.handleGetWizard)
	mux.HandleFunc("PATCH /api/wizards/{id}/fields", s.handleSetFields)
	mux.HandleFunc("POST /api/wizards/{id}/next", s.handleNext)
	mux.HandleFunc("POST /api/wizards/{id}/previous", s.handlePrevious)
	mux.HandleFunc("POST /api/wizards/{id}/goto", s.handleGoTo)
	mux.HandleFunc("POST /api/wizards/{id}/submit", s.handleSubmit)
	mux.HandleFunc("DELETE /api/wizards/{id}", s.handleDeleteWizard)
	mux.HandleFunc("GET /api/dashboards/{kind}", s.handleDashboard)
	mux.HandleFunc("POST /api/campaigns/{id}/complete-funding", s.handleCompleteFunding)
	mux.HandleFunc("GET /api/crypto/public-key", s.handlePublicKey)
	return s.logRequests(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully and closes every
// open wizard session.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	if s.cfg.SessionTTL > 0 {
		go s.sessions.runSweeper(sweepCtx, sweepInterval(s.cfg.SessionTTL))
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", s.cfg.Listen))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.sessions.closeAll()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := httpServer.Shutdown(shutdownCtx)
	s.sessions.closeAll()
	<-errCh
	if err != nil {
		s.logger.Error("server shutdown failed", zap.Error(err))
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func sweepInterval(ttl time.Duration) time.Duration {
	interval := ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}

// statusRecorder captures the response status for request logs. It keeps Flush working so
// submissions can stream through it.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	size        int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
		r.ResponseWriter.WriteHeader(status)
	}
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := r.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, fmt.Errorf("statusRecorder does not support hijacking")
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		rec.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(rec, r)

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Int("size", rec.size),
			zap.Duration("duration", time.Since(start)),
		}
		switch {
		case rec.status >= 500:
			s.logger.Error("http request", fields...)
		case rec.status >= 400:
			s.logger.Warn("http request", fields...)
		default:
			s.logger.Info("http request", fields...)
		}
	})
}

// OpenBrowser opens url with the platform's default handler. Failures are only logged.
func OpenBrowser(url string, logger *zap.Logger) {
	var err error
	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", url).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		err = exec.Command("open", url).Start()
	default:
		err = fmt.Errorf("unsupported platform")
	}
	if err != nil && logger != nil {
		logger.Warn("failed to open browser", zap.String("url", url), zap.Error(err))
	}
}
