package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sipweb/devserve/internal/api"
	"github.com/sipweb/devserve/internal/certs"
	"github.com/sipweb/devserve/internal/static"
	"github.com/sipweb/devserve/internal/storage"
	"github.com/sipweb/devserve/pkg/models"
	"github.com/sirupsen/logrus"
)

type Server struct {
	config     *Config
	logger     *logrus.Logger
	router     *mux.Router
	handler    http.Handler
	httpServer *http.Server
	root       string
	storage    storage.Storage
	static     *static.Handler
	ledger     *certs.Ledger
	certs      *certs.Manager

	mu        sync.RWMutex
	addr      string
	tlsActive bool
	ready     chan struct{}
}

type Option func(*options)

type options struct {
	generator certs.Generator
}

// WithGenerator replaces the certificate generator selected by
// Config.CertGenerator.
func WithGenerator(g certs.Generator) Option {
	return func(o *options) {
		o.generator = g
	}
}

// New validates the configuration and prepares the handlers. Nothing is
// bound until Start.
func New(config *Config, logger *logrus.Logger, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	root, err := ResolveServeRoot(config)
	if err != nil {
		return nil, err
	}

	fileStorage := storage.NewOSStorage(root)

	s := &Server{
		config:  config,
		logger:  logger,
		router:  mux.NewRouter(),
		root:    root,
		storage: fileStorage,
		static:  static.NewHandler(fileStorage, config.MIMETypes, nil, logger),
		ledger:  certs.NewLedger(config.Path(config.DatabasePath)),
		ready:   make(chan struct{}),
	}

	if config.EnableTLS {
		generator := o.generator
		if generator == nil {
			generator, err = certs.NewGenerator(config.CertGenerator)
			if err != nil {
				return nil, err
			}
		}
		s.certs = certs.NewManager(generator, config.Path(config.CertFile), config.Path(config.KeyFile), s.ledger, logger)
	}

	if err := s.setupRoutes(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Server) setupRoutes() error {
	apiHandler := api.NewHandler(s, s.storage, s.certs, s.ledger, s.logger)
	apiHandler.Register(s.router)

	s.router.PathPrefix("/").Handler(s.static)
	s.router.Use(requestLogger(s.logger))

	s.handler = s.router
	if s.config.Compress {
		wrap, err := compress()
		if err != nil {
			return fmt.Errorf("failed to configure compression: %w", err)
		}
		s.handler = wrap(s.router)
	}
	return nil
}

// Start runs the server until ctx is cancelled. A server can be started
// only once.
func (s *Server) Start(ctx context.Context) error {
	tlsConfig := s.loadTLSConfig(ctx)

	listener, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return &BindError{Addr: s.config.Addr(), Err: err}
	}

	if tlsConfig != nil {
		listener = tls.NewListener(listener, tlsConfig)
	}

	s.httpServer = &http.Server{
		Handler:           s.handler,
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.mu.Lock()
	s.addr = listener.Addr().String()
	s.tlsActive = tlsConfig != nil
	s.mu.Unlock()

	var watcher *static.Watcher
	if s.config.Watch {
		watcher = static.NewWatcher(s.root, s.static.ETags(), s.logger)
		if err := watcher.Start(ctx); err != nil {
			s.logger.WithError(err).Warn("File watcher disabled")
			watcher = nil
		}
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.WithFields(logrus.Fields{
			"addr":   s.Addr(),
			"scheme": s.Scheme(),
			"root":   s.root,
		}).Info("Starting server")

		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
		} else {
			errChan <- nil
		}
	}()

	close(s.ready)

	defer func() {
		if watcher != nil {
			watcher.Stop()
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Stopping server")
		if err := s.httpServer.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close HTTP server")
		}
		<-errChan
		return nil
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}

// loadTLSConfig returns nil when the server should fall back to plain HTTP.
func (s *Server) loadTLSConfig(ctx context.Context) *tls.Config {
	if s.certs == nil {
		return nil
	}

	if !s.certs.Ensure(ctx) {
		return nil
	}

	cert, err := tls.LoadX509KeyPair(s.certs.CertPath(), s.certs.KeyPath())
	if err != nil {
		s.logger.WithError(err).WithField("cert", s.certs.CertPath()).Warn("Failed to load certificate, HTTPS unavailable")
		return nil
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		NextProtos:   []string{"http/1.1"},
	}
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// TLS reports whether the bound listener speaks TLS.
func (s *Server) TLS() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tlsActive
}

func (s *Server) Scheme() string {
	if s.TLS() {
		return "https"
	}
	return "http"
}

// URL is the address a local browser should open.
func (s *Server) URL() string {
	_, port, err := net.SplitHostPort(s.Addr())
	if err != nil {
		port = s.config.Port
	}
	return fmt.Sprintf("%s://localhost:%s", s.Scheme(), port)
}

func (s *Server) Root() string {
	return s.root
}

func (s *Server) Status() models.ServerStatus {
	return models.ServerStatus{
		Scheme:    s.Scheme(),
		Address:   s.Addr(),
		ServeRoot: s.root,
		TLS:       s.TLS(),
	}
}
