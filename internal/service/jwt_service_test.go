package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/homeserve/otpauth/internal/config"
	"github.com/homeserve/otpauth/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestJWTService(t *testing.T, clock Clock) *JWTService {
	t.Helper()
	svc, err := NewJWTService(&config.JWTConfig{SecretKey: testSecret}, quietLogger())
	require.NoError(t, err)
	if clock != nil {
		svc.clock = clock
	}
	return svc
}

func TestNewJWTService(t *testing.T) {
	_, err := NewJWTService(&config.JWTConfig{}, quietLogger())
	assert.ErrorIs(t, err, config.ErrMissingSecret)

	_, err = NewJWTService(&config.JWTConfig{SecretKey: "short"}, quietLogger())
	assert.ErrorContains(t, err, "at least 32 bytes")

	svc, err := NewJWTService(&config.JWTConfig{SecretKey: testSecret}, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 30*24*time.Hour, svc.SessionExpiry())
}

func TestJWTService_IssueAndVerify(t *testing.T) {
	clock := newFakeClock()
	svc := newTestJWTService(t, clock)
	user := &models.User{ID: "user-1", PhoneNumber: "9876543210"}

	token, expiresAt, err := svc.Issue(user)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(30*24*time.Hour), expiresAt)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
	assert.Equal(t, "9876543210", claims.Phone)
	assert.NotEmpty(t, claims.ID)

	other, _, err := svc.Issue(user)
	require.NoError(t, err)
	assert.NotEqual(t, token, other, "each token carries a unique id")
}

func TestJWTService_VerifyExpired(t *testing.T) {
	clock := newFakeClock()
	svc := newTestJWTService(t, clock)

	token, _, err := svc.Issue(&models.User{ID: "user-1", PhoneNumber: "9876543210"})
	require.NoError(t, err)

	clock.Advance(30*24*time.Hour + time.Minute)
	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestJWTService_VerifyRejects(t *testing.T) {
	svc := newTestJWTService(t, nil)

	otherSigner, err := NewJWTService(&config.JWTConfig{SecretKey: "ffffffffffffffffffffffffffffffff"}, quietLogger())
	require.NoError(t, err)
	foreign, _, err := otherSigner.Issue(&models.User{ID: "user-1", PhoneNumber: "9876543210"})
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": foreign,
		"no subject":   noSubject,
		"no expiry":    noExpiry,
		"empty":        "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Verify(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
