package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sipweb/devserve/internal/config"
	"github.com/sipweb/devserve/internal/console"
	"github.com/sipweb/devserve/internal/server"
	"github.com/sirupsen/logrus"
)

func main() {
	os.Exit(run(context.Background(), os.Stdout, os.LookupEnv))
}

// run serves until ctx is cancelled or an interrupt arrives and returns the
// process exit code.
func run(ctx context.Context, stdout io.Writer, lookup config.Lookup) int {
	out := console.New(stdout)

	cfg, logging, err := config.Load(lookup)
	if err != nil {
		out.Error("%v", err)
		return 1
	}

	logger := newLogger(logging)

	srv, err := server.New(cfg, logger)
	if err != nil {
		var cfgErr *server.ConfigurationError
		if errors.As(err, &cfgErr) {
			out.Error("%s directory not found!", cfgErr.Path)
			out.Hint("Make sure the built web application sits next to the devserve executable.")
			return 1
		}
		logger.WithError(err).Error("Failed to create server")
		out.Error("%v", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	bannerCtx, cancelBanner := context.WithCancel(ctx)
	announced := make(chan struct{})
	go func() {
		defer close(announced)
		announce(bannerCtx, out, srv, cfg.EnableTLS)
	}()

	err = srv.Start(ctx)
	cancelBanner()
	<-announced

	if err != nil {
		var bindErr *server.BindError
		if errors.As(err, &bindErr) {
			if bindErr.PortInUse() {
				out.Error("Port %s is already in use!", cfg.Port)
				out.Hint("Try stopping other servers or change DEVSERVE_PORT.")
			} else {
				out.Error("Error starting server: %v", bindErr.Err)
			}
			return 1
		}
		logger.WithError(err).Error("Server failed")
		out.Error("Unexpected error: %v", err)
		return 1
	}

	out.Stopped()
	logger.Info("Server shutdown complete")
	return 0
}

type readyServer interface {
	Ready() <-chan struct{}
	URL() string
	Root() string
	TLS() bool
}

// announce prints the startup banner once srv is bound. Nothing is printed
// when ctx ends first, including a bind that races with shutdown.
func announce(ctx context.Context, out *console.Printer, srv readyServer, wantTLS bool) {
	select {
	case <-srv.Ready():
	case <-ctx.Done():
		return
	}
	if ctx.Err() != nil {
		return
	}

	if wantTLS && !srv.TLS() {
		out.TLSUnavailable()
	}
	out.Started(srv.URL(), srv.Root(), srv.TLS())
}

func newLogger(logging config.Logging) *logrus.Logger {
	logger := logrus.New()

	switch logging.Format {
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(logging.Level)
	if err != nil {
		logger.WithField("level", logging.Level).Warn("Unknown log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}
