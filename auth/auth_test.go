package auth

import (
	"strings"
	"testing"
	"time"

	"duo-chat/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "MyPasswordIsS0Safe!"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("WrongPassword", hash)
	req.NoError(err)
	req.False(match)
}

func TestCompareRejectsMalformedHash(t *testing.T) {
	req := require.New(t)

	_, err := ComparePassword("whatever", "plain-text")
	req.ErrorIs(err, errors.ErrInvalidCredentials)

	_, err = ComparePassword("whatever", "$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA")
	req.ErrorIs(err, errors.ErrInvalidCredentials)
}

func TestRegistrationValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr bool
	}{
		{"Valid request", RegisterRequest{Name: "Alice", Email: "test@example.com", Password: "ComplexPass123!"}, false},
		{"Valid with avatar", RegisterRequest{Name: "Alice", Email: "test@example.com", Password: "ComplexPass123!", ProfilePic: "https://cdn.example.com/a.png"}, false},
		{"Missing name", RegisterRequest{Email: "test@example.com", Password: "ComplexPass123!"}, true},
		{"Invalid avatar", RegisterRequest{Name: "Alice", Email: "test@example.com", Password: "ComplexPass123!", ProfilePic: "not a url"}, true},
		{"Invalid email", RegisterRequest{Name: "Alice", Email: "notanemail", Password: "ComplexPass123!"}, true},
		{"Password too short", RegisterRequest{Name: "Alice", Email: "test@example.com", Password: "Short1!"}, true},
		{"Missing digit", RegisterRequest{Name: "Alice", Email: "test@example.com", Password: "NoDigitPass!"}, true},
		{"Missing special char", RegisterRequest{Name: "Alice", Email: "test@example.com", Password: "NoSpecialChar123"}, true},
		{"Missing uppercase", RegisterRequest{Name: "Alice", Email: "test@example.com", Password: "nouppercase123!"}, true},
		{"Password too long", RegisterRequest{Name: "Alice", Email: "test@example.com", Password: strings.Repeat("a", 73)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			err := ValidateRegister(tt.req)
			if tt.wantErr {
				req.Error(err)
			} else {
				req.NoError(err)
			}
		})
	}
}

func TestTokenRoundTrip(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenIssuer("a-secret-long-enough-for-hs256", time.Hour)

	token, err := issuer.Generate("user-123")
	req.NoError(err)

	claims, err := issuer.Validate(token)
	req.NoError(err)
	req.Equal("user-123", claims.UserID)
	req.Equal("duo-chat", claims.Issuer)
}

func TestTokenRejections(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenIssuer("a-secret-long-enough-for-hs256", time.Hour)

	// Signed with another secret
	forged, err := NewTokenIssuer("another-secret", time.Hour).Generate("user-123")
	req.NoError(err)
	_, err = issuer.Validate(forged)
	req.ErrorIs(err, jwt.ErrTokenSignatureInvalid)

	// Expired
	expired, err := NewTokenIssuer("a-secret-long-enough-for-hs256", -time.Minute).Generate("user-123")
	req.NoError(err)
	_, err = issuer.Validate(expired)
	req.ErrorIs(err, jwt.ErrTokenExpired)

	// Garbage
	_, err = issuer.Validate("not.a.token")
	req.Error(err)

	// No subject
	anonymous, err := issuer.Generate("")
	req.NoError(err)
	_, err = issuer.Validate(anonymous)
	req.ErrorIs(err, jwt.ErrTokenInvalidClaims)
}

// BenchmarkHashPassword measures the CPU/RAM cost of a registration
func BenchmarkHashPassword(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = HashPassword("A-very-long-and-complex-password-for-bench-123!")
	}
}

func TestSanitizeRegister(t *testing.T) {
	req := require.New(t)

	clean := SanitizeRegister(RegisterRequest{
		Name:       ` <b>Alice</b><script>alert("x")</script> `,
		Email:      " alice@duo.chat ",
		Password:   " kept as typed ",
		ProfilePic: " https://cdn.example.com/a.png ",
	})

	req.Equal("Alice", clean.Name)
	req.Equal("alice@duo.chat", clean.Email)
	req.Equal(" kept as typed ", clean.Password)
	req.Equal("https://cdn.example.com/a.png", clean.ProfilePic)
}
