package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/homeserve/otpauth/internal/config"
	"github.com/homeserve/otpauth/internal/models"
	"github.com/sirupsen/logrus"
)

const minSecretLength = 32

// JWTService issues and verifies the session tokens handed out after an OTP
// login. Tokens are not persisted; validity depends only on the signature and
// the embedded expiry.
type JWTService struct {
	secretKey     []byte
	sessionExpiry time.Duration
	clock         Clock
	logger        *logrus.Logger
}

func NewJWTService(cfg *config.JWTConfig, logger *logrus.Logger) (*JWTService, error) {
	secretKey := []byte(cfg.SecretKey)
	if len(secretKey) == 0 {
		return nil, config.ErrMissingSecret
	}
	if len(secretKey) < minSecretLength {
		return nil, fmt.Errorf("secret key must be at least %d bytes", minSecretLength)
	}

	expiry := cfg.SessionExpiry
	if expiry <= 0 {
		expiry = 30 * 24 * time.Hour
	}

	return &JWTService{
		secretKey:     secretKey,
		sessionExpiry: expiry,
		clock:         SystemClock(),
		logger:        logger,
	}, nil
}

type Claims struct {
	Phone string `json:"phone"`
	jwt.RegisteredClaims
}

// UserID is the identity the token is bound to.
func (c *Claims) UserID() string {
	return c.Subject
}

// SessionExpiry is the fixed validity window of issued tokens.
func (s *JWTService) SessionExpiry() time.Duration {
	return s.sessionExpiry
}

// Issue signs a session token for user and returns it with its expiry time.
func (s *JWTService) Issue(user *models.User) (string, time.Time, error) {
	now := s.clock.Now()
	expiresAt := now.Add(s.sessionExpiry)
	jti := uuid.New().String()

	claims := &Claims{
		Phone: user.PhoneNumber,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        jti,
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secretKey)
	if err != nil {
		s.logger.WithError(err).Error("Failed to sign session token")
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}

	return token, expiresAt, nil
}

// Verify returns the claims of a valid token, ErrTokenExpired for an expired
// one and ErrInvalidToken for anything else.
func (s *JWTService) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	}, jwt.WithTimeFunc(s.clock.Now), jwt.WithExpirationRequired())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
