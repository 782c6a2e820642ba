package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/settlement-backend/pkg/config"
)

func testTokens(t *testing.T) *Tokens {
	t.Helper()
	tokens, err := NewTokens(config.JWTConfig{Secret: "secret", Issuer: "settlement", ExpirationMinutes: 30})
	require.NoError(t, err)
	return tokens
}

func TestMintThenParse(t *testing.T) {
	tokens := testTokens(t)
	fixed := time.Now().UTC().Truncate(time.Second)
	tokens.now = func() time.Time { return fixed }
	userID := uuid.New()

	raw, err := tokens.Mint(AccessTokenPayload{UserID: userID, Email: " buyer@example.com ", JTI: "fixed-jti"})
	require.NoError(t, err)

	claims, err := tokens.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, userID, claims.UserID)
	require.Equal(t, userID.String(), claims.Subject)
	require.Equal(t, "buyer@example.com", claims.Email)
	require.Equal(t, "fixed-jti", claims.ID)
	require.True(t, fixed.Add(30*time.Minute).Equal(claims.ExpiresAt.Time), "exp %s", claims.ExpiresAt)
}

func TestNewTokensValidatesConfig(t *testing.T) {
	for name, cfg := range map[string]config.JWTConfig{
		"no secret": {Issuer: "i", ExpirationMinutes: 1},
		"no issuer": {Secret: "s", ExpirationMinutes: 1},
		"no ttl":    {Secret: "s", Issuer: "i"},
	} {
		if _, err := NewTokens(cfg); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestMintRequiresUser(t *testing.T) {
	if _, err := testTokens(t).Mint(AccessTokenPayload{}); err == nil {
		t.Fatal("expected nil user id to be rejected")
	}
}

func TestParseRejections(t *testing.T) {
	tokens := testTokens(t)
	userID := uuid.New()

	expired := testTokens(t)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredRaw, err := expired.Mint(AccessTokenPayload{UserID: userID})
	require.NoError(t, err)

	otherSecret, err := NewTokens(config.JWTConfig{Secret: "different", Issuer: "settlement", ExpirationMinutes: 30})
	require.NoError(t, err)
	forgedRaw, err := otherSecret.Mint(AccessTokenPayload{UserID: userID})
	require.NoError(t, err)

	sign := func(method jwt.SigningMethod, claims AccessTokenClaims) string {
		raw, err := jwt.NewWithClaims(method, claims).SignedString([]byte("secret"))
		require.NoError(t, err)
		return raw
	}
	valid := jwt.RegisteredClaims{Issuer: "settlement", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}

	cases := []struct {
		name string
		raw  string
		want error
	}{
		{"expired", expiredRaw, ErrTokenExpired},
		{"wrong secret", forgedRaw, ErrTokenInvalid},
		{"hs512", sign(jwt.SigningMethodHS512, AccessTokenClaims{UserID: userID, RegisteredClaims: valid}), ErrTokenInvalid},
		{"no user", sign(jwt.SigningMethodHS256, AccessTokenClaims{RegisteredClaims: valid}), ErrTokenInvalid},
		{"subject mismatch", sign(jwt.SigningMethodHS256, AccessTokenClaims{UserID: userID, RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "settlement", Subject: uuid.NewString(), ExpiresAt: valid.ExpiresAt,
		}}), ErrTokenInvalid},
		{"garbage", "not.a.jwt", ErrTokenInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tokens.Parse(tc.raw)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
