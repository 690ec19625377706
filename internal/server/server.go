package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sync/errgroup"

	"credbroker/internal/config"
	"credbroker/internal/metrics"
	"credbroker/internal/oauth"
	"credbroker/pkg/logging"
)

const (
	// DefaultReadHeaderTimeout is the timeout for reading request headers.
	DefaultReadHeaderTimeout = 10 * time.Second
	// DefaultIdleTimeout is the idle timeout for keepalive connections.
	DefaultIdleTimeout = 120 * time.Second

	healthPath  = "/healthz"
	metricsPath = "/metrics"
)

// Pinger reports whether the credential store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the credbroker HTTP server.
type Server struct {
	cfg     config.ServerConfig
	handler http.Handler

	listening chan net.Addr
}

// New builds the route table for the enabled flows.
func New(cfg config.Config, h *oauth.Handler, db Pinger, m *metrics.Metrics) *Server {
	mux := http.NewServeMux()

	if cfg.Google.Enabled {
		mux.HandleFunc("GET "+cfg.Google.StartPath, h.GoogleStart)
		mux.HandleFunc("GET "+cfg.Google.CallbackPath, h.GoogleCallback)
		logging.Debug("Server", "Mounted Google flow at %s and %s", cfg.Google.StartPath, cfg.Google.CallbackPath)
	}
	if cfg.Slack.Enabled {
		mux.HandleFunc("GET "+cfg.Slack.InstallPath, h.SlackInstall)
		mux.HandleFunc("GET "+cfg.Slack.CallbackPath, h.SlackCallback)
		logging.Debug("Server", "Mounted Slack flow at %s and %s", cfg.Slack.InstallPath, cfg.Slack.CallbackPath)
	}

	mux.HandleFunc("GET "+healthPath, healthHandler(db))
	if m != nil {
		mux.Handle("GET "+metricsPath, m.Handler())
	}

	return &Server{
		cfg:       cfg.Server,
		handler:   logRequests(mux),
		listening: make(chan net.Addr, 1),
	}
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Listening receives the bound address once Run has opened its listener.
func (s *Server) Listening() <-chan net.Addr {
	return s.listening
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	httpServer := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logging.Info("Server", "Listening on %s (public URL %s)", ln.Addr(), s.cfg.PublicURL)
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logging.Info("Server", "Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout())
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	s.listening <- ln.Addr()
	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logging.Warn("Server", "Failed to notify systemd: %v", err)
	} else if sent {
		logging.Debug("Server", "Notified systemd of readiness")
	}

	return g.Wait()
}

func (s *Server) shutdownTimeout() time.Duration {
	if s.cfg.ShutdownTimeout > 0 {
		return s.cfg.ShutdownTimeout
	}
	return 20 * time.Second
}

func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				logging.Warn("Server", "Health check failed: %v", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logRequests logs method, path and status. Query strings carry
// authorization codes and state tokens, so they are never logged.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.Debug("HTTP", "%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}
