package daemon

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/samber/oops"

	"github.com/careloop/careloop/internal/config"
	"github.com/careloop/careloop/internal/log"
)

const (
	ReadHeaderTimeout = 5 * time.Second
	ReadTimeout       = 10 * time.Second
	WriteTimeout      = 10 * time.Second
	IdleTimeout       = 120 * time.Second
)

// Server runs the careloop HTTP API.
type Server struct {
	cfg    *config.Config
	server *http.Server
}

func NewServer(cfg *config.Config, handler http.Handler) *Server {
	return &Server{
		cfg: cfg,
		server: &http.Server{
			Addr:              cfg.HTTP.Address,
			Handler:           handler,
			ReadHeaderTimeout: ReadHeaderTimeout,
			ReadTimeout:       ReadTimeout,
			WriteTimeout:      WriteTimeout,
			IdleTimeout:       IdleTimeout,
		},
	}
}

// Start begins serving in the background. Listen failures after startup
// surface through the returned channel.
func (s *Server) Start(ctx context.Context) <-chan error {
	errChan := make(chan error, 1)

	go func() {
		log.Info(ctx, "Starting HTTP server on "+s.cfg.HTTP.Address)

		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- oops.In("daemon").Wrapf(err, "http server failed")
		}

		close(errChan)
	}()

	return errChan
}

// Close drains in-flight requests within the configured shutdown timeout.
func (s *Server) Close(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	err := s.server.Shutdown(shutdownCtx)
	if err != nil {
		return oops.In("daemon").Wrapf(err, "http server shutdown failed")
	}

	return nil
}
