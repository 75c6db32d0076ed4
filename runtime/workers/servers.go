package workers

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"duo-chat/errors"

	"google.golang.org/grpc"
)

// HTTPServerWorker serves the websocket and account endpoints until ctx ends,
// then drains for at most shutdownTimeout.
type HTTPServerWorker struct {
	log             *slog.Logger
	server          *http.Server
	shutdownTimeout time.Duration
}

func NewHTTPServerWorker(log *slog.Logger, server *http.Server, shutdownTimeout time.Duration) *HTTPServerWorker {
	return &HTTPServerWorker{log: log, server: server, shutdownTimeout: shutdownTimeout}
}

func (w *HTTPServerWorker) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		w.log.Info("Starting HTTP server", "address", w.server.Addr)
		errChan <- w.server.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.shutdownTimeout)
	defer cancel()
	if err := w.server.Shutdown(shutdownCtx); err != nil {
		w.log.Warn("HTTP server did not drain in time", "error", err)
	}
	if err := <-errChan; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// GRPCServerWorker serves the health and presence services until ctx ends.
type GRPCServerWorker struct {
	log     *slog.Logger
	server  *grpc.Server
	address string
}

func NewGRPCServerWorker(log *slog.Logger, server *grpc.Server, address string) *GRPCServerWorker {
	return &GRPCServerWorker{log: log, server: server, address: address}
}

func (w *GRPCServerWorker) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", w.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", w.address, err)
	}

	errChan := make(chan error, 1)
	go func() {
		w.log.Info("Starting gRPC server", "address", w.address)
		for serviceName := range w.server.GetServiceInfo() {
			w.log.Debug("gRPC exposed service", "name", serviceName)
		}
		errChan <- w.server.Serve(listener)
	}()

	select {
	case err := <-errChan:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("gRPC server error: %w", err)
	case <-ctx.Done():
		w.server.GracefulStop()
		return nil
	}
}
