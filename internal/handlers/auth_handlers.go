package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/homeserve/otpauth/internal/middleware"
	"github.com/homeserve/otpauth/internal/models"
	"github.com/homeserve/otpauth/internal/service"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

// AuthService is the OTP login flow as the HTTP layer sees it.
type AuthService interface {
	RequestOTP(ctx context.Context, phone string) (*models.OTPAcknowledgement, error)
	VerifyOTP(ctx context.Context, phone, code, name string) (*models.AuthResult, error)
	GetProfile(ctx context.Context, claims *service.Claims) (*models.User, error)
	UpdateProfile(ctx context.Context, claims *service.Claims, update service.ProfileUpdate) (*models.User, error)
}

type AuthHandlers struct {
	auth      AuthService
	validator *RequestValidator
	logger    *logrus.Logger
}

func NewAuthHandlers(auth AuthService, validator *RequestValidator, logger *logrus.Logger) *AuthHandlers {
	return &AuthHandlers{
		auth:      auth,
		validator: validator,
		logger:    logger,
	}
}

type SendOTPRequest struct {
	Phone string `json:"phone" validate:"required"`
}

type VerifyOTPRequest struct {
	Phone string `json:"phone" validate:"required"`
	OTP   string `json:"otp" validate:"required,digits"`
	Name  string `json:"name" validate:"omitempty,min=2,max=50"`
}

type UpdateProfileRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=2,max=50"`
	Email *string `json:"email" validate:"omitempty,email"`
}

// decode reads a JSON body into dst and validates it. It writes the error
// response itself and reports whether the handler may continue.
func (h *AuthHandlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		h.logger.WithError(err).Debug("Failed to decode request body")
		respondWithError(w, h.logger, http.StatusBadRequest, ErrorDetail{
			Code:    string(service.KindInvalidInput),
			Message: "Invalid request body",
		})
		return false
	}

	if err := h.validator.Validate(dst); err != nil {
		respondWithValidationError(w, h.logger, err)
		return false
	}
	return true
}

func (h *AuthHandlers) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req SendOTPRequest
	if !h.decode(w, r, &req) {
		return
	}

	ack, err := h.auth.RequestOTP(r.Context(), req.Phone)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	respondWithSuccess(w, h.logger, "OTP sent successfully", ack)
}

func (h *AuthHandlers) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.auth.VerifyOTP(r.Context(), req.Phone, req.OTP, req.Name)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	message := "Login successful"
	if result.IsNewUser {
		message = "Registration successful"
	}
	respondWithSuccess(w, h.logger, message, result)
}

func (h *AuthHandlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	user, err := h.auth.GetProfile(r.Context(), claims)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	respondWithSuccess(w, h.logger, "", user)
}

func (h *AuthHandlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.auth.UpdateProfile(r.Context(), claims, service.ProfileUpdate{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	respondWithSuccess(w, h.logger, "Profile updated successfully", user)
}

func (h *AuthHandlers) claims(w http.ResponseWriter, r *http.Request) (*service.Claims, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		respondWithError(w, h.logger, http.StatusUnauthorized, ErrorDetail{
			Code:    "UNAUTHORIZED",
			Message: "Invalid token",
		})
		return nil, false
	}
	return claims, true
}
