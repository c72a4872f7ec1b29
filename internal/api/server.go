package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/mqtt2broadlink/internal/journal"
)

// Server timeouts.
const (
	readHeaderTimeout = 5 * time.Second

	// gracefulShutdownTimeout is the maximum time to wait for in-flight
	// requests to complete during shutdown.
	gracefulShutdownTimeout = 5 * time.Second
)

// HealthFunc reports whether the bridge is healthy.
type HealthFunc func(ctx context.Context) error

// Inventory is the read side of the command store.
type Inventory interface {
	DeviceNames() []string
	Device(name string) (string, bool)
	CommandNames() []string
}

// JournalLister queries the command journal.
type JournalLister interface {
	List(ctx context.Context, filter journal.Filter) ([]journal.Entry, error)
}

// Logger defines the logging interface used by the Server.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Deps holds the dependencies of the server. Only Listen and Logger are
// required; routes backed by a nil dependency answer 404.
type Deps struct {
	Listen  string
	Version string
	Logger  Logger

	Health    HealthFunc
	Metrics   http.Handler
	Inventory Inventory
	Journal   JournalLister
}

// Server is the HTTP status server.
type Server struct {
	deps   Deps
	logger Logger

	server   *http.Server
	listener net.Listener
}

// New creates a server. It does not listen until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if deps.Listen == "" {
		return nil, errors.New("listen address is required")
	}
	return &Server{deps: deps, logger: deps.Logger}, nil
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listen address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.deps.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.deps.Listen, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	s.logger.Info("HTTP server started", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close shuts the server down gracefully.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down HTTP server: %w", err)
	}
	return nil
}
