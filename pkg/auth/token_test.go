package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/campusmart/campusmart-backend/pkg/config"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "campusmart", ExpirationMinutes: 30}

func TestMintAndParseAccessToken(t *testing.T) {
	now := time.Now().UTC()
	userID := uuid.New()

	token, err := MintAccessToken(testJWT, now, AccessTokenPayload{UserID: userID, Email: "ada@campus.edu", JTI: "access-1"})
	require.NoError(t, err)

	claims, err := ParseAccessToken(testJWT, token)
	require.NoError(t, err)
	require.Equal(t, userID, claims.UserID)
	require.Equal(t, "ada@campus.edu", claims.Email)
	require.Equal(t, "access-1", claims.ID)
	require.Equal(t, userID.String(), claims.Subject)
	require.Equal(t, "campusmart", claims.Issuer)
	require.WithinDuration(t, now.Add(30*time.Minute), claims.ExpiresAt.Time, time.Second)
}

func TestMintGeneratesJTI(t *testing.T) {
	token, err := MintAccessToken(testJWT, time.Now(), AccessTokenPayload{UserID: uuid.New(), JTI: "  "})
	require.NoError(t, err)
	claims, err := ParseAccessToken(testJWT, token)
	require.NoError(t, err)
	_, err = uuid.Parse(claims.ID)
	require.NoError(t, err)
}

func TestParseAccessTokenRejectsTampering(t *testing.T) {
	token, err := MintAccessToken(testJWT, time.Now(), AccessTokenPayload{UserID: uuid.New()})
	require.NoError(t, err)

	_, err = ParseAccessToken(testJWT, token+"x")
	require.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	other := testJWT
	other.Issuer = "someone-else"
	_, err = ParseAccessToken(other, token)
	require.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
}

func TestParseAccessTokenRejectsOtherAlgorithms(t *testing.T) {
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS512, AccessTokenClaims{
		UserID:           uuid.New(),
		RegisteredClaims: jwt.RegisteredClaims{Issuer: testJWT.Issuer},
	}).SignedString([]byte(testJWT.Secret))
	require.NoError(t, err)

	_, err = ParseAccessToken(testJWT, forged)
	require.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestExpiredTokenOnlyParsesForRefresh(t *testing.T) {
	token, err := MintAccessToken(testJWT, time.Now().Add(-time.Hour), AccessTokenPayload{UserID: uuid.New(), JTI: "old"})
	require.NoError(t, err)

	_, err = ParseAccessToken(testJWT, token)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)

	claims, err := ParseAccessTokenAllowExpired(testJWT, token)
	require.NoError(t, err)
	require.Equal(t, "old", claims.ID)
}

func TestMintAccessTokenValidatesInput(t *testing.T) {
	_, err := MintAccessToken(testJWT, time.Now(), AccessTokenPayload{})
	require.Error(t, err)

	_, err = MintAccessToken(config.JWTConfig{Issuer: "x", ExpirationMinutes: 1}, time.Now(), AccessTokenPayload{UserID: uuid.New()})
	require.ErrorIs(t, err, ErrMissingSecret)
}
