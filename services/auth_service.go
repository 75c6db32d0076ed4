package services

import (
	"context"
	"fmt"
	"log/slog"

	"duo-chat/auth"
	"duo-chat/domain"
	"duo-chat/errors"
	"duo-chat/repositories"
)

type IAuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (Token, error)
	Login(ctx context.Context, req auth.LoginRequest) (Token, error)
}

type AuthService struct {
	userRepository repositories.IUserRepository
	tokens         *auth.TokenIssuer
	log            *slog.Logger
}

type Token string

func (t Token) String() string {
	return string(t)
}

func NewAuthService(repo repositories.IUserRepository, tokens *auth.TokenIssuer, log *slog.Logger) IAuthService {
	return &AuthService{userRepository: repo, tokens: tokens, log: log}
}

// Register creates the account and returns its first credential token.
func (s *AuthService) Register(ctx context.Context, req auth.RegisterRequest) (Token, error) {
	req = auth.SanitizeRegister(req)

	// Business rules are checked before any expensive cryptographic operation
	if err := auth.ValidateRegister(req); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	// The repository never sees plain passwords
	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	user, err := s.userRepository.CreateUser(ctx, domain.User{
		Name:       req.Name,
		Email:      req.Email,
		ProfilePic: req.ProfilePic,
	}, hashedPassword)
	if err != nil {
		return "", err
	}
	s.log.Info("Account registered", "user_id", user.ID)

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrTokenGeneration, err)
	}
	return Token(token), nil
}

// Login exchanges credentials for a token. Unknown emails and wrong passwords
// are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, req auth.LoginRequest) (Token, error) {
	if err := auth.ValidateLogin(req); err != nil {
		return "", errors.ErrInvalidCredentials
	}

	user, err := s.userRepository.GetUserByEmail(ctx, req.Email)
	switch {
	case errors.Is(err, errors.ErrStoreUnavailable):
		return "", err
	case err != nil:
		return "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(req.Password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrTokenGeneration, err)
	}
	return Token(token), nil
}
