package service

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies business failures so the HTTP layer can map them
// to a status code without inspecting messages.
type ErrorKind string

const (
	KindInvalidPhone      ErrorKind = "INVALID_PHONE"
	KindInvalidInput      ErrorKind = "INVALID_INPUT"
	KindRateLimited       ErrorKind = "RATE_LIMITED"
	KindOTPNotFound       ErrorKind = "OTP_NOT_FOUND"
	KindOTPExpired        ErrorKind = "OTP_EXPIRED"
	KindTooManyAttempts   ErrorKind = "TOO_MANY_ATTEMPTS"
	KindInvalidOTP        ErrorKind = "INVALID_OTP"
	KindNameRequired      ErrorKind = "NAME_REQUIRED"
	KindUserNotFound      ErrorKind = "USER_NOT_FOUND"
	KindSMSDeliveryFailed ErrorKind = "SMS_DELIVERY_FAILED"
)

// AuthError is a user-safe failure of the OTP flow. Err, when set, holds the
// underlying cause for server-side logging only.
type AuthError struct {
	Kind              ErrorKind
	Message           string
	RetryAfter        time.Duration
	RemainingAttempts *int
	Err               error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is matches on Kind so callers can compare against the sentinels below.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidPhone      = &AuthError{Kind: KindInvalidPhone, Message: "Please enter a valid 10-digit mobile number"}
	ErrInvalidInput      = &AuthError{Kind: KindInvalidInput, Message: "Invalid input"}
	ErrRateLimited       = &AuthError{Kind: KindRateLimited, Message: "Please wait before requesting another OTP"}
	ErrOTPNotFound       = &AuthError{Kind: KindOTPNotFound, Message: "OTP not found or already used. Please request a new OTP"}
	ErrOTPExpired        = &AuthError{Kind: KindOTPExpired, Message: "OTP has expired. Please request a new OTP"}
	ErrTooManyAttempts   = &AuthError{Kind: KindTooManyAttempts, Message: "Too many failed attempts. Please request a new OTP"}
	ErrInvalidOTP        = &AuthError{Kind: KindInvalidOTP, Message: "Invalid OTP"}
	ErrNameRequired      = &AuthError{Kind: KindNameRequired, Message: "Name is required for new users"}
	ErrUserNotFound      = &AuthError{Kind: KindUserNotFound, Message: "User not found"}
	ErrSMSDeliveryFailed = &AuthError{Kind: KindSMSDeliveryFailed, Message: "Failed to send OTP. Please try again"}

	ErrInvalidToken = errors.New("invalid session token")
	ErrTokenExpired = errors.New("session token expired")
)

func newAuthError(base *AuthError, message string, cause error) *AuthError {
	e := *base
	if message != "" {
		e.Message = message
	}
	e.Err = cause
	return &e
}

func rateLimitedError(retryAfter time.Duration) *AuthError {
	e := *ErrRateLimited
	e.RetryAfter = retryAfter
	return &e
}

func invalidOTPError(remaining int) *AuthError {
	e := *ErrInvalidOTP
	e.Message = fmt.Sprintf("Invalid OTP. %d attempt(s) remaining", remaining)
	e.RemainingAttempts = &remaining
	return &e
}
