package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/homeserve/otpauth/internal/config"
	"github.com/homeserve/otpauth/internal/models"
	"github.com/homeserve/otpauth/internal/phone"
	"github.com/homeserve/otpauth/internal/repository"
	"github.com/sirupsen/logrus"
)

// UserDirectory persists users keyed by normalized phone number. Lookups
// return (nil, nil) when no user exists.
type UserDirectory interface {
	GetByPhoneNumber(ctx context.Context, phoneNumber string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
}

// ProfileUpdate carries the fields a user may change. Nil means unchanged.
type ProfileUpdate struct {
	Name  *string
	Email *string
}

// OTPAuthService runs phone-number login: issue a code, verify it, then
// resolve the user and mint a session token.
type OTPAuthService struct {
	manager  *OTPSessionManager
	sms      SMSSender
	sessions *JWTService
	users    UserDirectory
	cfg      *config.OTPConfig
	clock    Clock
	logger   *logrus.Logger
}

func NewOTPAuthService(
	manager *OTPSessionManager,
	sms SMSSender,
	sessions *JWTService,
	users UserDirectory,
	cfg *config.OTPConfig,
	logger *logrus.Logger,
) *OTPAuthService {
	return &OTPAuthService{
		manager:  manager,
		sms:      sms,
		sessions: sessions,
		users:    users,
		cfg:      cfg,
		clock:    SystemClock(),
		logger:   logger,
	}
}

// RequestOTP issues a fresh code for rawPhone and sends it by SMS. A new code
// replaces any pending one for the same phone.
func (s *OTPAuthService) RequestOTP(ctx context.Context, rawPhone string) (*models.OTPAcknowledgement, error) {
	phoneNumber, err := phone.Parse(rawPhone)
	if err != nil {
		return nil, ErrInvalidPhone
	}

	allowed, retryAfter, err := s.manager.Limiter().Allow(ctx, phoneNumber)
	if err != nil {
		return nil, err
	}
	if !allowed {
		s.logger.WithField("phone", phoneNumber).Info("OTP request rate limited")
		return nil, rateLimitedError(retryAfter)
	}

	code, err := s.generateCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate OTP: %w", err)
	}

	s.manager.Store().Store(phoneNumber, code, s.cfg.Expiry)

	result := s.sms.Send(ctx, phoneNumber, code)
	if !result.Success {
		return nil, newAuthError(ErrSMSDeliveryFailed, "", errors.New(result.Error))
	}

	s.logger.WithFields(logrus.Fields{
		"phone":     phoneNumber,
		"simulated": result.Simulated,
	}).Info("OTP issued")

	return &models.OTPAcknowledgement{
		Phone:     phoneNumber,
		ExpiresIn: int64(s.cfg.Expiry.Seconds()),
		Simulated: result.Simulated,
	}, nil
}

// VerifyOTP checks code for rawPhone and completes the login. A first-time
// phone must supply name; the code stays valid when it is missing so the
// client can retry with one.
func (s *OTPAuthService) VerifyOTP(ctx context.Context, rawPhone, code, name string) (*models.AuthResult, error) {
	phoneNumber, err := phone.Parse(rawPhone)
	if err != nil {
		return nil, ErrInvalidPhone
	}

	code = strings.TrimSpace(code)
	if !s.isCodeFormat(code) {
		return nil, newAuthError(ErrInvalidInput, fmt.Sprintf("OTP must be a %d-digit number", s.codeLength()), nil)
	}
	name = strings.TrimSpace(name)

	store := s.manager.Store()
	if err := store.Check(phoneNumber, code, s.cfg.MaxAttempts); err != nil {
		s.logger.WithFields(logrus.Fields{
			"phone":  phoneNumber,
			"reason": err.Error(),
		}).Info("OTP verification failed")
		return nil, err
	}

	user, err := s.users.GetByPhoneNumber(ctx, phoneNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil && name == "" {
		return nil, ErrNameRequired
	}

	if err := store.Claim(phoneNumber, code); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	isNew := user == nil
	if isNew {
		user, err = s.createUser(ctx, phoneNumber, name, now)
	} else {
		err = s.markLoggedIn(ctx, user, name, now)
	}
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.sessions.Issue(user)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"phone":    phoneNumber,
		"new_user": isNew,
	}).Info("OTP login completed")

	return &models.AuthResult{
		User:      user,
		Token:     token,
		ExpiresIn: int64(s.sessions.SessionExpiry().Seconds()),
		ExpiresAt: expiresAt,
		IsNewUser: isNew,
	}, nil
}

// GetProfile loads the user a session token was issued to.
func (s *OTPAuthService) GetProfile(ctx context.Context, claims *Claims) (*models.User, error) {
	user, err := s.users.GetByPhoneNumber(ctx, claims.Phone)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if user == nil || user.ID != claims.UserID() {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UpdateProfile changes name and/or email of the session's user.
func (s *OTPAuthService) UpdateProfile(ctx context.Context, claims *Claims, update ProfileUpdate) (*models.User, error) {
	user, err := s.GetProfile(ctx, claims)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, newAuthError(ErrInvalidInput, "Name cannot be empty", nil)
		}
		user.Name = name
	}
	if update.Email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*update.Email))
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}

// PendingOTPs is exposed for the health endpoint.
func (s *OTPAuthService) PendingOTPs() int {
	return s.manager.PendingCount()
}

func (s *OTPAuthService) createUser(ctx context.Context, phoneNumber, name string, now time.Time) (*models.User, error) {
	user := &models.User{
		ID:          uuid.New().String(),
		PhoneNumber: phoneNumber,
		Name:        name,
		IsVerified:  true,
		LastLoginAt: &now,
	}

	err := s.users.Create(ctx, user)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrUserExists) {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	// Lost a race with a concurrent first login for the same phone.
	existing, err := s.users.GetByPhoneNumber(ctx, phoneNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to load concurrently created user: %w", err)
	}
	if existing == nil {
		return nil, fmt.Errorf("user %s reported as existing but not found", phoneNumber)
	}
	if err := s.markLoggedIn(ctx, existing, name, now); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *OTPAuthService) markLoggedIn(ctx context.Context, user *models.User, name string, now time.Time) error {
	user.IsVerified = true
	user.LastLoginAt = &now
	if user.Name == "" && name != "" {
		user.Name = name
	}

	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (s *OTPAuthService) codeLength() int {
	if s.cfg.Length < 4 || s.cfg.Length > 9 {
		return 6
	}
	return s.cfg.Length
}

func (s *OTPAuthService) isCodeFormat(code string) bool {
	if len(code) != s.codeLength() {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// generateCode draws uniformly from the codes without a leading zero,
// 100000-999999 for the default length.
func (s *OTPAuthService) generateCode() (string, error) {
	length := s.codeLength()
	low := int64(1)
	for i := 1; i < length; i++ {
		low *= 10
	}

	n, err := rand.Int(rand.Reader, big.NewInt(9*low))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+low), nil
}
