package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/florianilch/lodestone/internal/docstore"
	"github.com/florianilch/lodestone/internal/observability/middleware"
	"github.com/florianilch/lodestone/internal/remote"
)

// metricsPath serves Prometheus metrics.
const metricsPath = "/metrics"

// Documents are the stores backing each persisted document.
type Documents struct {
	Config       docstore.Store
	PluginConfig docstore.Store
	Credentials  docstore.Store
}

// Option configures a Server.
type Option func(*Server)

// WithJarFile sets the path returned by the jar file picker endpoint.
func WithJarFile(path string) Option {
	return func(s *Server) {
		s.jarFile = path
	}
}

// WithLogger sets the logger used for request logging.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// Server is the backing store HTTP server.
type Server struct {
	mux     *http.ServeMux
	server  *http.Server
	jarFile string
	logger  *slog.Logger
}

// Compile-time check that Server implements http.Handler
var _ http.Handler = (*Server)(nil)

// New creates a Server persisting into docs.
func New(docs Documents, opts ...Option) (*Server, error) {
	if docs.Config == nil || docs.PluginConfig == nil || docs.Credentials == nil {
		return nil, errors.New("missing document store")
	}

	s := &Server{
		mux:    http.NewServeMux(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	routes := []struct {
		pattern  string
		endpoint string
		handler  http.Handler
	}{
		{"POST " + remote.PathSaveConfig, remote.PathSaveConfig, saveHandler(docs.Config, shapeObject)},
		{"POST " + remote.PathSavePluginConfig, remote.PathSavePluginConfig, saveHandler(docs.PluginConfig, shapeObject)},
		{"POST " + remote.PathSaveCredentials, remote.PathSaveCredentials, saveHandler(docs.Credentials, shapeArray)},
		{"GET " + remote.PathConfig, remote.PathConfig, loadHandler(docs.Config, shapeObject)},
		{"GET " + remote.PathPluginConfig, remote.PathPluginConfig, loadHandler(docs.PluginConfig, shapeObject)},
		{"GET " + remote.PathCredentials, remote.PathCredentials, loadHandler(docs.Credentials, shapeArray)},
		{"GET " + remote.PathJarFilePicker, remote.PathJarFilePicker, filePickerHandler(s.jarFile)},
	}
	logging := middleware.Logging(s.logger, middleware.WithSkipPaths(metricsPath))
	for _, route := range routes {
		s.mux.Handle(route.pattern, middleware.Chain(route.handler,
			logging,
			middleware.Recovery,
			countRequests(route.endpoint),
		))
	}
	s.mux.Handle("GET "+metricsPath, middleware.Chain(promhttp.Handler(), logging, middleware.Recovery))

	return s, nil
}

// ServeHTTP implements http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start starts the HTTP server in the background and returns immediately.
// Returns a channel for runtime errors and a startup error if any.
//
// Startup errors (port in use, permission denied) are returned immediately.
// Runtime errors are sent to the error channel.
//
// The caller is responsible for calling Shutdown() to stop the server.
func (s *Server) Start(ctx context.Context, address string) (<-chan error, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	s.server = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)

	go func() {
		err := s.server.Serve(listener)
		// Only report error if not from graceful shutdown
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Shutdown performs graceful shutdown of the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	if err := s.server.Shutdown(ctx); err != nil {
		_ = s.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}
