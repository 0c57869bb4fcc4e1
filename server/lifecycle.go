package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/teranos/postpulse/errors"
	"github.com/teranos/postpulse/logger"
	"github.com/teranos/postpulse/sym"
	"github.com/teranos/postpulse/version"
)

// HealthResponse is the /healthz payload.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
	LiveClients   int    `json:"liveClients"`
	Admin         bool   `json:"adminConfigured"`
	Cron          bool   `json:"cronConfigured"`
}

// HandleHealth reports liveness and which credentials are configured.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "ok",
		Version:       version.Get().Version,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		LiveClients:   s.hub.ClientCount(),
	}
	if s.deps.Auth != nil {
		resp.Admin = s.deps.Auth.AdminConfigured()
		resp.Cron = s.deps.Auth.CronConfigured()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Start serves HTTP on port, and gRPC health on grpcPort when it is
// non-zero, until ctx is cancelled. It then drains both listeners.
func (s *Server) Start(ctx context.Context, port, grpcPort int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return errors.Wrapf(err, "failed to listen on port %d", port)
	}
	return s.Serve(ctx, ln, grpcPort)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener, grpcPort int) error {
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// generation calls the model; leave room for one retry
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errc := make(chan error, 2)

	if grpcPort > 0 {
		gln, err := net.Listen("tcp", fmt.Sprintf(":%d", grpcPort))
		if err != nil {
			ln.Close()
			return errors.Wrapf(err, "failed to listen on gRPC port %d", grpcPort)
		}
		s.grpcServer = grpc.NewServer()
		healthpb.RegisterHealthServer(s.grpcServer, s.health)
		s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		s.health.SetServingStatus("postpulse", healthpb.HealthCheckResponse_SERVING)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.log.Infow("gRPC health listening", logger.FieldPort, grpcPort)
			if err := s.grpcServer.Serve(gln); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errc <- errors.Wrap(err, "gRPC server failed")
			}
		}()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.log.Infow(sym.PulseOpen+" Server ready", logger.FieldAddress, ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- errors.Wrap(err, "HTTP server failed")
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errc:
	}

	if err := s.Shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Shutdown stops accepting connections, waits for in-flight requests up to
// the shutdown timeout, and disconnects live clients.
func (s *Server) Shutdown() error {
	s.log.Infow(sym.PulseClose + " Server shutting down")
	s.health.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()

	var err error
	if s.httpServer != nil {
		if shutdownErr := s.httpServer.Shutdown(ctx); shutdownErr != nil {
			err = errors.Wrap(shutdownErr, "HTTP shutdown")
		}
	}
	s.hub.Close()

	if s.grpcServer != nil {
		done := make(chan struct{})
		go func() {
			s.grpcServer.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			s.grpcServer.Stop()
		}
	}

	s.wg.Wait()
	return err
}
