package calc

import (
	"fmt"
	"net"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// Calculator service endpoint configuration. An empty AdminAuthToken
// leaves the admin surface open; any other value guards everything but
// the probe routes.
type ServiceConfig struct {
	ServiceID       string
	ListenAddr      string
	MaxConnections  int64
	AcceptBackoff   BackoffConfig
	AdminListenAddr string
	AdminAuthToken  string
	CORSOrigins     []string
}

// Calculator service defaults: loopback listener, 250 concurrent handlers,
// doubling accept backoff from one second to a 64-second ceiling, admin
// surface disabled.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ServiceID:       "calcd.local",
		ListenAddr:      "127.0.0.1:8080",
		MaxConnections:  250,
		AcceptBackoff:   DefaultBackoffConfig(),
		AdminListenAddr: "",
	}
}

// Calculator runtime service owning the permit pool and accept loop.
type Service struct {
	cfg     ServiceConfig
	permits *semaphore.Weighted
	active  atomic.Int64
	log     zerolog.Logger
}

// Calculator service constructor using default configuration.
func NewService() *Service {
	return NewServiceWithConfig(DefaultServiceConfig())
}

// Calculator service constructor using explicit configuration; zero fields
// fall back to defaults.
func NewServiceWithConfig(cfg ServiceConfig) *Service {
	def := DefaultServiceConfig()
	if strings.TrimSpace(cfg.ServiceID) == "" {
		cfg.ServiceID = def.ServiceID
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		cfg.ListenAddr = def.ListenAddr
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = def.MaxConnections
	}
	cfg.AcceptBackoff = cfg.AcceptBackoff.WithDefaults()
	return &Service{
		cfg:     cfg,
		permits: semaphore.NewWeighted(cfg.MaxConnections),
		log:     log.Logger.With().Str("service", cfg.ServiceID).Logger(),
	}
}

// Config returns the normalized configuration the service runs with.
func (s *Service) Config() ServiceConfig {
	return s.cfg
}

// ActiveHandlers reports how many handlers currently hold a permit.
func (s *Service) ActiveHandlers() int64 {
	return s.active.Load()
}

// Run binds the protocol listener, starts the admin surface when
// configured, and blocks until a fatal error. There is no graceful
// shutdown path; see the package documentation.
func (s *Service) Run() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("calc: listen %s: %w", s.cfg.ListenAddr, err)
	}
	s.log.Info().
		Str("addr", ln.Addr().String()).
		Int64("max_connections", s.cfg.MaxConnections).
		Msg("listening")

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.Serve(ln)
	}()

	adminAddr := strings.TrimSpace(s.cfg.AdminListenAddr)
	if adminAddr == "" {
		return <-serveErr
	}
	s.log.Info().Str("addr", adminAddr).Msg("admin surface enabled")
	adminErr := make(chan error, 1)
	go func() {
		adminErr <- NewAdmin(s).Serve(adminAddr)
	}()
	select {
	case err := <-serveErr:
		return err
	case err := <-adminErr:
		if err != nil {
			return err
		}
		return <-serveErr
	}
}
