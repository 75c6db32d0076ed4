package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"duo-chat/auth"
	"duo-chat/domain"
	"duo-chat/errors"
	"duo-chat/mocks"
	"duo-chat/repositories"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newIssuer() *auth.TokenIssuer {
	return auth.NewTokenIssuer("auth-service-secret-0123456789", 24*time.Hour)
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("should register successfully when input is valid", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		mockRepo := mocks.NewMockIUserRepository(ctrl)
		issuer := newIssuer()
		svc := NewAuthService(mockRepo, issuer, slog.Default())
		password := "ComplexPass123!"

		// The repository receives a hash, never the plain password
		mockRepo.EXPECT().
			CreateUser(gomock.Any(), domain.User{Name: "Alice", Email: "test@example.com"}, gomock.Not(password)).
			Return(domain.User{ID: "user-uuid", Name: "Alice", Email: "test@example.com"}, nil).
			Times(1)

		token, err := svc.Register(ctx, auth.RegisterRequest{Name: "Alice", Email: "test@example.com", Password: password})

		req.NoError(err)
		claims, err := issuer.Validate(token.String())
		req.NoError(err)
		req.Equal("user-uuid", claims.UserID)
	})

	t.Run("should fail when password complexity is not met", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		mockRepo := mocks.NewMockIUserRepository(ctrl)
		svc := NewAuthService(mockRepo, newIssuer(), slog.Default())

		// Repository should never be called
		mockRepo.EXPECT().CreateUser(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		token, err := svc.Register(ctx, auth.RegisterRequest{Name: "Alice", Email: "test@example.com", Password: "simple"})

		req.ErrorIs(err, errors.ErrInvalidPassword)
		req.Empty(token)
	})

	t.Run("should fail when user already exists in repository", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		mockRepo := mocks.NewMockIUserRepository(ctrl)
		svc := NewAuthService(mockRepo, newIssuer(), slog.Default())

		mockRepo.EXPECT().
			CreateUser(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(domain.User{}, errors.ErrUserAlreadyExists).
			Times(1)

		_, err := svc.Register(ctx, auth.RegisterRequest{Name: "Dup", Email: "duplicate@example.com", Password: "ComplexPass123!"})

		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	email := "user@example.com"
	password := "Secret123456!"
	hashedPassword, err := auth.HashPassword(password)
	require.NoError(t, err)
	storedUser := repositories.User{
		User:         domain.User{ID: "uuid-123", Email: email},
		PasswordHash: hashedPassword,
	}

	t.Run("should login successfully with correct credentials", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		mockRepo := mocks.NewMockIUserRepository(ctrl)
		issuer := newIssuer()
		svc := NewAuthService(mockRepo, issuer, slog.Default())

		mockRepo.EXPECT().GetUserByEmail(gomock.Any(), email).Return(storedUser, nil).Times(1)

		token, err := svc.Login(ctx, auth.LoginRequest{Email: email, Password: password})

		req.NoError(err)
		claims, err := issuer.Validate(string(token))
		req.NoError(err)
		req.Equal(storedUser.ID, claims.UserID)
	})

	t.Run("should return invalid credentials when password matches nothing", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		mockRepo := mocks.NewMockIUserRepository(ctrl)
		svc := NewAuthService(mockRepo, newIssuer(), slog.Default())

		mockRepo.EXPECT().GetUserByEmail(gomock.Any(), email).Return(storedUser, nil).Times(1)

		_, err := svc.Login(ctx, auth.LoginRequest{Email: email, Password: "WrongPassword123!"})

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should return invalid credentials when user is not found", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		mockRepo := mocks.NewMockIUserRepository(ctrl)
		svc := NewAuthService(mockRepo, newIssuer(), slog.Default())

		mockRepo.EXPECT().
			GetUserByEmail(gomock.Any(), "unknown@example.com").
			Return(repositories.User{}, errors.ErrUnknownUser).
			Times(1)

		_, err := svc.Login(ctx, auth.LoginRequest{Email: "unknown@example.com", Password: "anyPassword"})

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should surface an unavailable store", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		mockRepo := mocks.NewMockIUserRepository(ctrl)
		svc := NewAuthService(mockRepo, newIssuer(), slog.Default())

		mockRepo.EXPECT().GetUserByEmail(gomock.Any(), email).Return(repositories.User{}, errors.ErrStoreUnavailable)

		_, err := svc.Login(ctx, auth.LoginRequest{Email: email, Password: password})

		req.ErrorIs(err, errors.ErrStoreUnavailable)
	})
}
