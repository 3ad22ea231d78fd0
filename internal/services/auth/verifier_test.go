package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const testSecret = "test-secret-key-for-hs256"

func signToken(t *testing.T, build func(b *jwt.Builder)) string {
	t.Helper()

	b := jwt.NewBuilder().
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(time.Hour))
	build(b)

	token, err := b.Build()
	if err != nil {
		t.Fatalf("failed to build token: %v", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, []byte(testSecret)))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return string(signed)
}

func TestTokenVerifier_Verify(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	verifier, err := NewTokenVerifier(testSecret, "")
	if err != nil {
		t.Fatalf("NewTokenVerifier() error = %v", err)
	}

	tokenString := signToken(t, func(b *jwt.Builder) {
		b.Subject(userID.String())
		b.Claim("email", "user@example.com")
	})

	claims, err := verifier.Verify(context.Background(), tokenString)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.UserID != userID {
		t.Errorf("UserID = %v, want %v", claims.UserID, userID)
	}
	if claims.Email != "user@example.com" {
		t.Errorf("Email = %q", claims.Email)
	}
}

func TestTokenVerifier_Rejections(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{
			name: "wrong secret",
			token: func(t *testing.T) string {
				b := jwt.NewBuilder().Subject(userID.String()).Expiration(time.Now().Add(time.Hour))
				token, _ := b.Build()
				signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, []byte("other-secret")))
				if err != nil {
					t.Fatalf("sign: %v", err)
				}
				return string(signed)
			},
		},
		{
			name: "expired token",
			token: func(t *testing.T) string {
				return signToken(t, func(b *jwt.Builder) {
					b.Subject(userID.String())
					b.Expiration(time.Now().Add(-time.Hour))
				})
			},
		},
		{
			name: "missing subject",
			token: func(t *testing.T) string {
				return signToken(t, func(b *jwt.Builder) {})
			},
		},
		{
			name: "non-uuid subject",
			token: func(t *testing.T) string {
				return signToken(t, func(b *jwt.Builder) {
					b.Subject("alice")
				})
			},
		},
		{
			name: "garbage",
			token: func(t *testing.T) string {
				return "not.a.token"
			},
		},
	}

	verifier, err := NewTokenVerifier(testSecret, "")
	if err != nil {
		t.Fatalf("NewTokenVerifier() error = %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := verifier.Verify(context.Background(), tt.token(t)); err == nil {
				t.Error("Verify() expected error, got nil")
			}
		})
	}
}

func TestTokenVerifier_NoKeyConfigured(t *testing.T) {
	t.Parallel()

	if _, err := NewTokenVerifier("", ""); !errors.Is(err, ErrNoVerificationKey) {
		t.Errorf("NewTokenVerifier() error = %v, want ErrNoVerificationKey", err)
	}
}
