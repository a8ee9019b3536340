package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/homeserve/otpauth/internal/middleware"
	"github.com/sirupsen/logrus"
)

// NewRouter mounts the health probe at the root and the OTP login API
// under /api/v1/auth. CORS wraps the whole router so preflight requests
// are answered before route matching.
func NewRouter(
	authHandlers *AuthHandlers,
	healthHandler *HealthHandler,
	authMiddleware *middleware.AuthMiddleware,
	allowedOrigins []string,
	logger *logrus.Logger,
) http.Handler {
	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware(logger))

	router.HandleFunc("/health", healthHandler.Health).Methods(http.MethodGet)

	auth := router.PathPrefix("/api/v1/auth").Subrouter()
	auth.HandleFunc("/send-otp", authHandlers.SendOTP).Methods(http.MethodPost)
	auth.HandleFunc("/verify-otp", authHandlers.VerifyOTP).Methods(http.MethodPost)

	protected := router.PathPrefix("/api/v1/auth").Subrouter()
	protected.Use(authMiddleware.RequireAuth)
	protected.HandleFunc("/profile", authHandlers.GetProfile).Methods(http.MethodGet)
	protected.HandleFunc("/profile", authHandlers.UpdateProfile).Methods(http.MethodPut)

	return middleware.CORSMiddleware(allowedOrigins)(router)
}
