package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/homeserve/otpauth/internal/service"
	"github.com/sirupsen/logrus"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// TokenVerifier checks a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (*service.Claims, error)
}

type AuthMiddleware struct {
	sessions TokenVerifier
	logger   *logrus.Logger
}

func NewAuthMiddleware(sessions TokenVerifier, logger *logrus.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		sessions: sessions,
		logger:   logger,
	}
}

// ClaimsFromContext returns the session claims stored by RequireAuth.
func ClaimsFromContext(ctx context.Context) (*service.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*service.Claims)
	return claims, ok && claims != nil
}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *service.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.respondUnauthorized(w, "UNAUTHORIZED", "Missing authorization header")
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			m.respondUnauthorized(w, "UNAUTHORIZED", "Invalid authorization header format")
			return
		}

		claims, err := m.sessions.Verify(parts[1])
		if err != nil {
			m.logger.WithError(err).Debug("Token verification failed")
			if errors.Is(err, service.ErrTokenExpired) {
				m.respondUnauthorized(w, "TOKEN_EXPIRED", "Session has expired. Please log in again")
				return
			}
			m.respondUnauthorized(w, "UNAUTHORIZED", "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

type unauthorizedResponse struct {
	Success bool `json:"success"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (m *AuthMiddleware) respondUnauthorized(w http.ResponseWriter, code, message string) {
	var body unauthorizedResponse
	body.Error.Code = code
	body.Error.Message = message

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		m.logger.WithError(err).Error("Failed to write unauthorized response")
	}
}
