package relaysync

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/relaysync/config"
	"github.com/opd-ai/relaysync/hub"
)

// ShutdownTimeout bounds how long Serve waits for open requests on exit.
const ShutdownTimeout = 5 * time.Second

// Server runs a hub behind an HTTP listener.
type Server struct {
	hub      *hub.Hub
	registry *prometheus.Registry
	http     *http.Server
}

// NewServer assembles a hub with its own metrics registry.
func NewServer(cfg config.ServerConfig) *Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	h := hub.New(cfg.Hub(), hub.NewMetrics(reg))

	return &Server{
		hub:      h,
		registry: reg,
		http: &http.Server{
			Addr:              cfg.Listen,
			Handler:           hub.NewRouter(h, reg),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Hub returns the underlying hub.
func (s *Server) Hub() *hub.Hub { return s.hub }

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.http.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the hub and serves HTTP on ln until ctx is cancelled, then shuts
// both down. It returns nil on a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		s.hub.Run(hubCtx)
	}()
	defer func() {
		stopHub()
		<-hubDone
	}()

	logrus.WithFields(logrus.Fields{
		"function": "Server.Serve",
		"addr":     ln.Addr().String(),
	}).Info("Hub listening")

	errCh := make(chan error, 1)
	go func() { errCh <- s.http.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	// stop the hub first so websocket sessions close and Shutdown can drain
	stopHub()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Server.Serve",
			"error":    err.Error(),
		}).Warn("Graceful shutdown incomplete")
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logrus.WithField("function", "Server.Serve").Info("Hub stopped")
	return nil
}
