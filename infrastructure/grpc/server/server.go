package server

import (
	"log/slog"

	"duo-chat/auth"
	"duo-chat/contract"

	grpc3 "github.com/mama165/sdk-go/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// publicMethods are reachable without a credential token.
var publicMethods = []string{healthpb.Health_Check_FullMethodName}

// NewServer builds the chat gRPC server: the standard health service plus
// the token-protected presence service.
func NewServer(log *slog.Logger, resolver contract.IdentityResolver, online func() []string) (*grpc.Server, *health.Server) {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpc3.UnaryLoggingInterceptor(log),
			auth.AuthInterceptor(resolver, publicMethods...),
		))

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(s, healthServer)
	RegisterPresenceServer(s, NewPresenceServer(log, online))

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(PresenceServiceName, healthpb.HealthCheckResponse_SERVING)
	return s, healthServer
}
