package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"duo-chat/contract"
	"duo-chat/domain"
	"duo-chat/errors"
)

// Resolver turns a connection credential into the account it belongs to.
type Resolver struct {
	tokens   *TokenIssuer
	accounts contract.AccountStore
	timeout  time.Duration
	log      *slog.Logger
}

func NewResolver(tokens *TokenIssuer, accounts contract.AccountStore, timeout time.Duration, log *slog.Logger) *Resolver {
	return &Resolver{tokens: tokens, accounts: accounts, timeout: timeout, log: log}
}

type resolution struct {
	user domain.User
	err  error
}

// Resolve verifies token and loads the profile of its owner.
// A missing token means the session is over (ErrSessionExpired), a token that
// fails verification is ErrInvalidToken and a vanished account is ErrUnknownUser.
// When the whole lookup exceeds the timeout ErrResolverTimeout is returned.
func (r *Resolver) Resolve(ctx context.Context, token string) (domain.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.User{}, errors.ErrSessionExpired
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan resolution, 1)
	go func() {
		user, err := r.resolve(ctx, token)
		done <- resolution{user: user, err: err}
	}()

	select {
	case res := <-done:
		return res.user, res.err
	case <-ctx.Done():
		r.log.Warn("Identity resolution timed out", "timeout", r.timeout)
		return domain.User{}, fmt.Errorf("%w: %v", errors.ErrResolverTimeout, ctx.Err())
	}
}

func (r *Resolver) resolve(ctx context.Context, token string) (domain.User, error) {
	claims, err := r.tokens.Validate(token)
	if err != nil {
		r.log.Debug("Token rejected", "error", err)
		return domain.User{}, fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}

	user, err := r.accounts.FindByID(ctx, claims.UserID)
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, errors.ErrUnknownUser):
		return domain.User{}, err
	case ctx.Err() != nil:
		return domain.User{}, fmt.Errorf("%w: %v", errors.ErrResolverTimeout, err)
	default:
		return domain.User{}, err
	}
}
