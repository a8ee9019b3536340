package handlers

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/homeserve/otpauth/internal/service"
	"github.com/sirupsen/logrus"
)

type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code              string            `json:"code"`
	Message           string            `json:"message"`
	RetryAfter        int64             `json:"retryAfter,omitempty"`
	RemainingAttempts *int              `json:"remainingAttempts,omitempty"`
	Fields            map[string]string `json:"fields,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, logger *logrus.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.WithError(err).Error("Failed to write response")
	}
}

func respondWithSuccess(w http.ResponseWriter, logger *logrus.Logger, message string, data any) {
	respondWithJSON(w, logger, http.StatusOK, SuccessResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func respondWithError(w http.ResponseWriter, logger *logrus.Logger, status int, detail ErrorDetail) {
	respondWithJSON(w, logger, status, ErrorResponse{Error: detail})
}

func respondWithValidationError(w http.ResponseWriter, logger *logrus.Logger, err error) {
	var fields ValidationError
	if !errors.As(err, &fields) {
		respondWithError(w, logger, http.StatusBadRequest, ErrorDetail{
			Code:    string(service.KindInvalidInput),
			Message: "Invalid request body",
		})
		return
	}

	respondWithError(w, logger, http.StatusBadRequest, ErrorDetail{
		Code:    string(service.KindInvalidInput),
		Message: "Request validation failed",
		Fields:  fields,
	})
}

// respondWithServiceError renders an AuthError with its status; any other
// error is logged and reported as a generic 500.
func respondWithServiceError(w http.ResponseWriter, logger *logrus.Logger, err error) {
	var authErr *service.AuthError
	if !errors.As(err, &authErr) {
		logger.WithError(err).Error("Unexpected error handling request")
		respondWithError(w, logger, http.StatusInternalServerError, ErrorDetail{
			Code:    "INTERNAL_ERROR",
			Message: "Something went wrong. Please try again",
		})
		return
	}

	status := statusForKind(authErr.Kind)
	if status >= http.StatusInternalServerError {
		logger.WithError(err).Error("Request failed")
	}

	detail := ErrorDetail{
		Code:              string(authErr.Kind),
		Message:           authErr.Message,
		RemainingAttempts: authErr.RemainingAttempts,
	}
	if authErr.RetryAfter > 0 {
		detail.RetryAfter = int64(math.Ceil(authErr.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.FormatInt(detail.RetryAfter, 10))
	}

	respondWithError(w, logger, status, detail)
}

func statusForKind(kind service.ErrorKind) int {
	switch kind {
	case service.KindRateLimited:
		return http.StatusTooManyRequests
	case service.KindSMSDeliveryFailed:
		return http.StatusInternalServerError
	case service.KindUserNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}
