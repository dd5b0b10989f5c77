package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/identity"
	"github.com/procurement/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-at-least-32-chars"

func newTestJWTService() *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:                testSecret,
		Issuer:                "test-issuer",
		Audience:              "procurement",
		AccessTokenExpiration: 15 * time.Minute,
	})
}

func newTestInput() GenerateTokenInput {
	return GenerateTokenInput{
		UserID:    uuid.New(),
		Email:     "buyer@example.com",
		Role:      identity.RoleBuyer,
		FirstName: "Ivan",
		LastName:  "Petrov",
	}
}

func signClaims(t *testing.T, claims *Claims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := newTestJWTService()
	input := newTestInput()

	token, expiresAt, err := svc.GenerateToken(input)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, input.UserID.String(), claims.Subject)
	assert.Equal(t, "buyer@example.com", claims.Email)
	assert.Equal(t, "buyer", claims.Role)
	assert.Equal(t, "Ivan", claims.FirstName)
	assert.Greater(t, claims.GetRemainingTTL(), 14*time.Minute)

	actor, err := claims.Actor()
	require.NoError(t, err)
	assert.True(t, actor.IsBuyer())
	assert.True(t, actor.Is(input.UserID))
}

func TestValidateToken_Rejections(t *testing.T) {
	svc := newTestJWTService()
	now := time.Now()
	valid := func() *Claims {
		return &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   uuid.NewString(),
				Issuer:    "test-issuer",
				Audience:  jwt.ClaimStrings{"procurement"},
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
				IssuedAt:  jwt.NewNumericDate(now),
			},
			Email: "shop@example.com",
			Role:  "shop",
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Claims)
		secret string
		want   error
	}{
		{"expired", func(c *Claims) { c.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Hour)) }, testSecret, ErrExpiredToken},
		{"not yet valid", func(c *Claims) { c.NotBefore = jwt.NewNumericDate(now.Add(time.Hour)) }, testSecret, ErrTokenNotYetValid},
		{"wrong secret", func(c *Claims) {}, "another-secret-key-at-least-32-chars", ErrInvalidToken},
		{"wrong issuer", func(c *Claims) { c.Issuer = "elsewhere" }, testSecret, ErrInvalidToken},
		{"wrong audience", func(c *Claims) { c.Audience = jwt.ClaimStrings{"billing"} }, testSecret, ErrInvalidToken},
		{"missing expiry", func(c *Claims) { c.ExpiresAt = nil }, testSecret, ErrInvalidToken},
		{"missing subject", func(c *Claims) { c.Subject = "" }, testSecret, ErrMissingUserID},
		{"subject is not a uuid", func(c *Claims) { c.Subject = "user-1" }, testSecret, ErrInvalidClaims},
		{"unknown role", func(c *Claims) { c.Role = "root" }, testSecret, ErrInvalidRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := valid()
			tt.mutate(claims)

			_, err := svc.ValidateToken(signClaims(t, claims, tt.secret))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidateToken_RejectsOtherAlgorithms(t *testing.T) {
	svc := newTestJWTService()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			Issuer:    "test-issuer",
			Audience:  jwt.ClaimStrings{"procurement"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "admin",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_Leeway(t *testing.T) {
	svc := NewJWTService(config.JWTConfig{Secret: testSecret, Leeway: time.Minute})
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-10 * time.Second)),
		},
		Role: "admin",
	}

	parsed, err := svc.ValidateToken(signClaims(t, claims, testSecret))
	require.NoError(t, err)
	assert.Zero(t, parsed.GetRemainingTTL())
}
