package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestMintAndVerify(t *testing.T) {
	issuer, err := NewIssuer("front-desk-secret", "meddoc")
	require.NoError(t, err)

	token, err := issuer.Mint(" nurse@clinic.example ", time.Hour)
	require.NoError(t, err)

	claims, err := NewVerifier("front-desk-secret", "meddoc").Verify("Bearer " + token)
	require.NoError(t, err)
	require.Equal(t, "nurse@clinic.example", claims.Email)
	require.Equal(t, "nurse@clinic.example", claims.Subject)
	require.NotEmpty(t, claims.ID)
}

func TestMintRejectsBadInput(t *testing.T) {
	_, err := NewIssuer(" ", "meddoc")
	require.ErrorIs(t, err, ErrNoSecret)

	issuer, err := NewIssuer("k", "meddoc")
	require.NoError(t, err)
	_, err = issuer.Mint("", time.Hour)
	require.ErrorIs(t, err, ErrNoEmail)
	_, err = issuer.Mint("a@b.example", 0)
	require.ErrorContains(t, err, "ttl")
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	issuer, err := NewIssuer("k", "meddoc")
	require.NoError(t, err)
	issuer.now = fixedClock(time.Now().Add(-2 * time.Hour))

	token, err := issuer.Mint("a@b.example", time.Hour)
	require.NoError(t, err)

	_, err = NewVerifier("k", "meddoc").Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)

	_, err = NewVerifier("", "").Verify(token)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestVerifyRejectsForeignTokens(t *testing.T) {
	issuer, err := NewIssuer("k", "meddoc")
	require.NoError(t, err)
	token, err := issuer.Mint("a@b.example", time.Hour)
	require.NoError(t, err)

	_, err = NewVerifier("other", "meddoc").Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewVerifier("k", "someone-else").Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewVerifier("k", "meddoc").Verify("not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewVerifier("k", "meddoc").Verify("  ")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRequiresEmailClaim(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "meddoc",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	_, err = NewVerifier("k", "meddoc").Verify(raw)
	require.ErrorIs(t, err, ErrNoEmail)
}

func TestVerifyWithoutSecretDecodesOnly(t *testing.T) {
	issuer, err := NewIssuer("server-only-secret", "meddoc")
	require.NoError(t, err)
	token, err := issuer.Mint("a@b.example", time.Hour)
	require.NoError(t, err)

	v := NewVerifier("", "meddoc")
	require.False(t, v.Verifies())
	claims, err := v.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "a@b.example", claims.Email)
}
