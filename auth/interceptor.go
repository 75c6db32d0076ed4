package auth

import (
	"context"
	"strings"

	"duo-chat/contract"
	"duo-chat/domain"
	"duo-chat/errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type contextKey string

const userKey contextKey = "user"

// BearerToken extracts the credential of an "Authorization: Bearer <token>" header value.
func BearerToken(header string) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// WithUser stores the resolved account in ctx.
func WithUser(ctx context.Context, user domain.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the account stored by WithUser.
func UserFromContext(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(userKey).(domain.User)
	return user, ok
}

// AuthInterceptor resolves the bearer token of every gRPC call except publicMethods
// and injects the caller's profile into the handler context.
func AuthInterceptor(resolver contract.IdentityResolver, publicMethods ...string) grpc.UnaryServerInterceptor {
	public := make(map[string]struct{}, len(publicMethods))
	for _, method := range publicMethods {
		public[method] = struct{}{}
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := public[info.FullMethod]; ok {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "metadata is missing")
		}
		values := md.Get("authorization")
		if len(values) == 0 {
			return nil, status.Error(codes.Unauthenticated, "authorization token is missing")
		}

		user, err := resolver.Resolve(ctx, BearerToken(values[0]))
		switch {
		case err == nil:
			return handler(WithUser(ctx, user), req)
		case errors.IsRejection(err):
			return nil, status.Error(codes.Unauthenticated, errors.RejectionMessage(err))
		default:
			return nil, status.Error(codes.Unavailable, errors.RejectionMessage(err))
		}
	}
}
