package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/canny86/FilaCore/internal/certs"
	"github.com/canny86/FilaCore/internal/command"
	"github.com/canny86/FilaCore/internal/filament"
	"github.com/canny86/FilaCore/internal/history"
	"github.com/canny86/FilaCore/internal/infrastructure/config"
	"github.com/canny86/FilaCore/internal/infrastructure/database"
	"github.com/canny86/FilaCore/internal/infrastructure/logging"
	"github.com/canny86/FilaCore/internal/printer"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Security  config.SecurityConfig
	Logger    *logging.Logger
	Printers  *printer.Registry
	Filaments *filament.Registry
	Certs     *certs.Provisioner
	Commands  *command.Service
	History   history.Repository // optional
	DB        *database.DB       // optional, reported by /metrics
	Version   string
}

// Server is the HTTP API server.
//
// It is created with New, started with Start and stopped with Close.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	printers  *printer.Registry
	filaments *filament.Registry
	certs     *certs.Provisioner
	commands  *command.Service
	history   history.Repository
	db        *database.DB
	version   string
	tickets   *ticketStore
	streams   *streamTracker
	startTime time.Time
	server    *http.Server
	cancel    context.CancelFunc
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Printers == nil {
		return nil, fmt.Errorf("printer registry is required")
	}
	if deps.Filaments == nil {
		return nil, fmt.Errorf("filament registry is required")
	}
	if deps.Certs == nil {
		return nil, fmt.Errorf("certificate provisioner is required")
	}
	if deps.Commands == nil {
		return nil, fmt.Errorf("command service is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		printers:  deps.Printers,
		filaments: deps.Filaments,
		certs:     deps.Certs,
		commands:  deps.Commands,
		history:   deps.History,
		db:        deps.DB,
		version:   deps.Version,
		tickets:   newTicketStore(),
		streams:   &streamTracker{},
		startTime: time.Now(),
	}, nil
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine.
// It returns an error if the address cannot be bound.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.cleanTicketsLoop(srvCtx)

	s.server = &http.Server{
		Addr:              net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
		BaseContext:       func(net.Listener) context.Context { return srvCtx },
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}

	s.logger.Info("API server starting", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// Open report streams are cancelled, then in-flight requests get up to 10
// seconds to finish.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
