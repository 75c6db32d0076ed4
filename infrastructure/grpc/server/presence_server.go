package server

import (
	"context"
	"log/slog"

	"duo-chat/auth"

	"github.com/samber/lo"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	PresenceServiceName         = "duochat.v1.Presence"
	PresenceOnlineUsersFullName = "/" + PresenceServiceName + "/OnlineUsers"
)

// PresenceService exposes the online-set to authenticated operators and bots.
type PresenceService interface {
	OnlineUsers(ctx context.Context, req *emptypb.Empty) (*structpb.ListValue, error)
}

type PresenceServer struct {
	log    *slog.Logger
	online func() []string
}

func NewPresenceServer(log *slog.Logger, online func() []string) *PresenceServer {
	return &PresenceServer{log: log, online: online}
}

func (s *PresenceServer) OnlineUsers(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	user, ok := auth.UserFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing identity")
	}
	s.log.Debug("Online users requested", "user_id", user.ID)

	values := lo.Map(s.online(), func(id string, _ int) *structpb.Value {
		return structpb.NewStringValue(id)
	})
	return &structpb.ListValue{Values: values}, nil
}

func RegisterPresenceServer(s grpc.ServiceRegistrar, srv PresenceService) {
	s.RegisterService(&presenceServiceDesc, srv)
}

func onlineUsersHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PresenceService).OnlineUsers(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: PresenceOnlineUsersFullName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PresenceService).OnlineUsers(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

var presenceServiceDesc = grpc.ServiceDesc{
	ServiceName: PresenceServiceName,
	HandlerType: (*PresenceService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "OnlineUsers", Handler: onlineUsersHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "duochat/v1/presence",
}
