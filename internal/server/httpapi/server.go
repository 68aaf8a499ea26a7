package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/docauth/internal/logging"
	"github.com/labstack/echo/v4"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	address string
	echo    *echo.Echo
	logger  logging.Logger
	ready   chan struct{}
	addr    net.Addr
}

func NewServer(address string, d *Deps) *Server {
	return &Server{
		address: address,
		echo:    NewRouter(d),
		logger:  d.Logger.With("module", "http_server"),
		ready:   make(chan struct{}),
	}
}

// Addr blocks until Run has tried to bind and returns the bound address, or
// nil when binding failed.
func (s *Server) Addr() net.Addr {
	<-s.ready
	return s.addr
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		close(s.ready)
		return err
	}
	s.echo.Listener = listen
	s.addr = listen.Addr()
	close(s.ready)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
