package workers

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

func freeAddress(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())
	return addr
}

func TestHTTPServerWorker_ServesUntilCancelled(t *testing.T) {
	req := require.New(t)
	addr := freeAddress(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	worker := NewHTTPServerWorker(slog.Default(), &http.Server{Addr: addr, Handler: mux}, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	// When the server is up
	req.Eventually(func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusNoContent
	}, 2*time.Second, 10*time.Millisecond)

	// Then cancelling stops it cleanly
	cancel()
	req.NoError(<-done)
}

func TestHTTPServerWorker_ListenFailure(t *testing.T) {
	req := require.New(t)
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	req.NoError(err)
	defer lis.Close()

	// Given the address already taken
	worker := NewHTTPServerWorker(slog.Default(), &http.Server{Addr: lis.Addr().String()}, time.Second)

	// Then Run fails so the supervisor can retry
	req.Error(worker.Run(context.Background()))
}

func TestGRPCServerWorker_StopsOnCancel(t *testing.T) {
	req := require.New(t)
	worker := NewGRPCServerWorker(slog.Default(), grpc.NewServer(), freeAddress(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(2 * time.Second):
		req.Fail("gRPC worker did not stop")
	}
}
