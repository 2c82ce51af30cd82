package exporter

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/hashpipe-gateway/internal/infrastructure/logging"
)

const (
	// gracefulShutdownTimeout is the maximum time to wait for in-flight
	// scrapes during shutdown.
	gracefulShutdownTimeout = 10 * time.Second

	readHeaderTimeout = 5 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
)

// Options configures the HTTP server.
type Options struct {
	Bind     string
	Port     int
	Domain   string
	Gateway  string
	Gatherer prometheus.Gatherer
	Logger   *logging.Logger
}

// Server serves the index page and /metrics.
//
// Thread Safety: All methods are safe for concurrent use.
type Server struct {
	addr     string
	domain   string
	gateway  string
	gatherer prometheus.Gatherer
	logger   *logging.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// New creates a server. It does not listen until Start.
func New(opts Options) (*Server, error) {
	if opts.Gatherer == nil {
		return nil, fmt.Errorf("metrics gatherer is required")
	}
	if opts.Port < 0 || opts.Port > 65535 {
		return nil, fmt.Errorf("invalid exporter port %d", opts.Port)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &Server{
		addr:     net.JoinHostPort(opts.Bind, strconv.Itoa(opts.Port)),
		domain:   opts.Domain,
		gateway:  opts.Gateway,
		gatherer: opts.Gatherer,
		logger:   logger,
	}, nil
}

// Start binds the listener and serves in a background goroutine. Binding
// happens before Start returns so port conflicts surface to the caller.
func (s *Server) Start(_ context.Context) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("exporter listen on %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	s.mu.Lock()
	s.server = srv
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("exporter listening", "address", ln.Addr().String())
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("exporter server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Close waits up to 10 seconds for in-flight scrapes, then closes
// remaining connections.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("exporter shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down exporter: %w", err)
	}
	return nil
}

// Handler builds the router.
func (s *Server) Handler() (http.Handler, error) {
	gzip, err := gzhttp.NewWrapper(gzhttp.MinSize(0))
	if err != nil {
		return nil, fmt.Errorf("building gzip wrapper: %w", err)
	}

	metrics := promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{
		ErrorHandling:      promhttp.ContinueOnError,
		ErrorLog:           promErrorLog{s.logger},
		DisableCompression: true,
	})

	r := chi.NewRouter()
	r.Use(s.recoveryMiddleware)
	r.Use(s.loggingMiddleware)

	r.Get("/", s.handleIndex)
	r.Method(http.MethodGet, "/metrics", gzip(metrics))

	return r, nil
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	title := html.EscapeString(fmt.Sprintf("Hashpipe %s://%s Exporter", s.domain, s.gateway))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprintf(w,
		`<html><head><title>%s</title></head><body><h1>%s</h1><p><a href="/metrics">Metrics</a></p></body></html>`,
		title, title)
}

// promErrorLog routes promhttp gather errors to the structured logger.
type promErrorLog struct {
	logger *logging.Logger
}

func (l promErrorLog) Println(v ...any) {
	l.logger.Warn("metrics gather error", "error", fmt.Sprint(v...))
}
