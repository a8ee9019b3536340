package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/homeserve/otpauth/internal/config"
	"github.com/homeserve/otpauth/internal/models"
	"github.com/homeserve/otpauth/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authFixture struct {
	svc     *OTPAuthService
	clock   *fakeClock
	sms     *fakeSMS
	users   *repository.MemoryUserRepository
	manager *OTPSessionManager
}

func newAuthFixture(t *testing.T, cooldown time.Duration) *authFixture {
	t.Helper()

	clock := newFakeClock()
	manager := NewOTPSessionManager(clock, cooldown, time.Minute, quietLogger())
	t.Cleanup(func() { manager.Stop(context.Background()) })

	sms := newFakeSMS()
	users := repository.NewMemoryUserRepository()
	sessions := newTestJWTService(t, clock)

	svc := NewOTPAuthService(manager, sms, sessions, users, &config.OTPConfig{
		Length:      6,
		Expiry:      5 * time.Minute,
		MaxAttempts: 3,
	}, quietLogger())
	svc.clock = clock

	return &authFixture{svc: svc, clock: clock, sms: sms, users: users, manager: manager}
}

func (f *authFixture) lastCode(t *testing.T) string {
	t.Helper()
	sent := f.sms.Sent()
	require.NotEmpty(t, sent)
	return sent[len(sent)-1].Code
}

func TestRequestOTP(t *testing.T) {
	f := newAuthFixture(t, 30*time.Second)

	ack, err := f.svc.RequestOTP(context.Background(), "+91 98765-43210")
	require.NoError(t, err)
	assert.Equal(t, "9876543210", ack.Phone)
	assert.EqualValues(t, 300, ack.ExpiresIn)
	assert.True(t, ack.Simulated)

	code := f.lastCode(t)
	assert.Len(t, code, 6)
	assert.NotEqual(t, byte('0'), code[0])

	record, ok := f.manager.Store().Get("9876543210")
	require.True(t, ok)
	assert.Equal(t, code, record.Code)
	assert.Equal(t, 1, f.svc.PendingOTPs())
}

func TestRequestOTP_InvalidPhone(t *testing.T) {
	f := newAuthFixture(t, 30*time.Second)

	for _, raw := range []string{"", "12345", "5876543210", "abcdefghij"} {
		_, err := f.svc.RequestOTP(context.Background(), raw)
		assert.ErrorIs(t, err, ErrInvalidPhone, raw)
	}
	assert.Empty(t, f.sms.Sent())
}

func TestRequestOTP_RateLimited(t *testing.T) {
	f := newAuthFixture(t, 30*time.Second)
	ctx := context.Background()

	_, err := f.svc.RequestOTP(ctx, "9876543210")
	require.NoError(t, err)

	_, err = f.svc.RequestOTP(ctx, "919876543210")
	require.ErrorIs(t, err, ErrRateLimited)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, 30*time.Second, authErr.RetryAfter)
	assert.Len(t, f.sms.Sent(), 1)

	_, err = f.svc.RequestOTP(ctx, "9000000000")
	assert.NoError(t, err, "other phones are unaffected")
}

func TestRequestOTP_SMSFailure(t *testing.T) {
	f := newAuthFixture(t, 30*time.Second)
	f.sms.result = SMSResult{Success: false, Error: "provider down"}

	_, err := f.svc.RequestOTP(context.Background(), "9876543210")
	require.ErrorIs(t, err, ErrSMSDeliveryFailed)
	assert.ErrorContains(t, err, "provider down")
}

func TestRequestOTP_NewCodeReplacesOld(t *testing.T) {
	f := newAuthFixture(t, 30*time.Second)
	ctx := context.Background()

	_, err := f.svc.RequestOTP(ctx, "9876543210")
	require.NoError(t, err)
	first := f.lastCode(t)

	f.clock.Advance(30 * time.Second)
	_, err = f.svc.RequestOTP(ctx, "9876543210")
	require.NoError(t, err)
	second := f.lastCode(t)

	if first != second {
		_, err = f.svc.VerifyOTP(ctx, "9876543210", first, "Asha")
		assert.ErrorIs(t, err, ErrInvalidOTP)
	}

	result, err := f.svc.VerifyOTP(ctx, "9876543210", second, "Asha")
	require.NoError(t, err)
	assert.True(t, result.IsNewUser)
}

func TestVerifyOTP_NewUserFlow(t *testing.T) {
	f := newAuthFixture(t, 30*time.Second)
	ctx := context.Background()

	_, err := f.svc.RequestOTP(ctx, "9876543210")
	require.NoError(t, err)
	code := f.lastCode(t)

	_, err = f.svc.VerifyOTP(ctx, "9876543210", code, "  ")
	require.ErrorIs(t, err, ErrNameRequired)

	result, err := f.svc.VerifyOTP(ctx, "+919876543210", code, "Asha")
	require.NoError(t, err)
	assert.True(t, result.IsNewUser)
	assert.NotEmpty(t, result.Token)
	assert.EqualValues(t, 30*24*60*60, result.ExpiresIn)
	assert.Equal(t, f.clock.Now().Add(30*24*time.Hour), result.ExpiresAt)
	assert.Equal(t, "Asha", result.User.Name)
	assert.Equal(t, "9876543210", result.User.PhoneNumber)
	assert.True(t, result.User.IsVerified)
	require.NotNil(t, result.User.LastLoginAt)

	stored, err := f.users.GetByPhoneNumber(ctx, "9876543210")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, result.User.ID, stored.ID)

	_, err = f.svc.VerifyOTP(ctx, "9876543210", code, "Asha")
	assert.ErrorIs(t, err, ErrOTPNotFound, "codes are single use")
	assert.Equal(t, 0, f.svc.PendingOTPs())
}

func TestVerifyOTP_ReturningUser(t *testing.T) {
	f := newAuthFixture(t, 30*time.Second)
	ctx := context.Background()

	_, err := f.svc.RequestOTP(ctx, "9876543210")
	require.NoError(t, err)
	first, err := f.svc.VerifyOTP(ctx, "9876543210", f.lastCode(t), "Asha")
	require.NoError(t, err)

	f.clock.Advance(time.Hour)

	_, err = f.svc.RequestOTP(ctx, "9876543210")
	require.NoError(t, err)
	second, err := f.svc.VerifyOTP(ctx, "9876543210", f.lastCode(t), "")
	require.NoError(t, err)

	assert.False(t, second.IsNewUser)
	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Equal(t, "Asha", second.User.Name)
	assert.True(t, f.clock.Now().Equal(*second.User.LastLoginAt))
}

func TestVerifyOTP_Expired(t *testing.T) {
	f := newAuthFixture(t, 30*time.Second)
	ctx := context.Background()

	_, err := f.svc.RequestOTP(ctx, "9876543210")
	require.NoError(t, err)
	code := f.lastCode(t)

	f.clock.Advance(301 * time.Second)

	_, err = f.svc.VerifyOTP(ctx, "9876543210", code, "Asha")
	assert.ErrorIs(t, err, ErrOTPExpired)

	_, err = f.svc.VerifyOTP(ctx, "9876543210", code, "Asha")
	assert.ErrorIs(t, err, ErrOTPNotFound)
}

func TestVerifyOTP_TooManyAttempts(t *testing.T) {
	f := newAuthFixture(t, 30*time.Second)
	ctx := context.Background()

	_, err := f.svc.RequestOTP(ctx, "9876543210")
	require.NoError(t, err)
	code := f.lastCode(t)
	wrong := wrongCode(code)

	for _, remaining := range []int{2, 1, 0} {
		_, err := f.svc.VerifyOTP(ctx, "9876543210", wrong, "Asha")
		require.ErrorIs(t, err, ErrInvalidOTP)

		var authErr *AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, remaining, *authErr.RemainingAttempts)
	}

	_, err = f.svc.VerifyOTP(ctx, "9876543210", code, "Asha")
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	_, err = f.svc.VerifyOTP(ctx, "9876543210", code, "Asha")
	assert.ErrorIs(t, err, ErrOTPNotFound)
}

func TestVerifyOTP_InputValidation(t *testing.T) {
	f := newAuthFixture(t, 30*time.Second)
	ctx := context.Background()

	_, err := f.svc.VerifyOTP(ctx, "12345", "123456", "Asha")
	assert.ErrorIs(t, err, ErrInvalidPhone)

	for _, code := range []string{"", "12345", "1234567", "12ab56"} {
		_, err := f.svc.VerifyOTP(ctx, "9876543210", code, "Asha")
		assert.ErrorIs(t, err, ErrInvalidInput, code)
	}

	_, err = f.svc.VerifyOTP(ctx, "9876543210", "123456", "Asha")
	assert.ErrorIs(t, err, ErrOTPNotFound)
}

func TestProfile(t *testing.T) {
	f := newAuthFixture(t, 30*time.Second)
	ctx := context.Background()

	_, err := f.svc.RequestOTP(ctx, "9876543210")
	require.NoError(t, err)
	result, err := f.svc.VerifyOTP(ctx, "9876543210", f.lastCode(t), "Asha")
	require.NoError(t, err)

	claims, err := f.svc.sessions.Verify(result.Token)
	require.NoError(t, err)

	user, err := f.svc.GetProfile(ctx, claims)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, user.ID)

	name := " Asha Rao "
	email := " Asha@Example.COM"
	updated, err := f.svc.UpdateProfile(ctx, claims, ProfileUpdate{Name: &name, Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", updated.Name)
	assert.Equal(t, "asha@example.com", updated.Email)

	empty := "   "
	_, err = f.svc.UpdateProfile(ctx, claims, ProfileUpdate{Name: &empty})
	assert.ErrorIs(t, err, ErrInvalidInput)

	user, err = f.svc.GetProfile(ctx, claims)
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", user.Name)

	stale := *claims
	stale.Subject = "someone-else"
	_, err = f.svc.GetProfile(ctx, &stale)
	assert.ErrorIs(t, err, ErrUserNotFound)

	stale = *claims
	stale.Phone = "9000000000"
	_, err = f.svc.GetProfile(ctx, &stale)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestGenerateCode(t *testing.T) {
	svc := &OTPAuthService{cfg: &config.OTPConfig{Length: 6}}

	for i := 0; i < 200; i++ {
		code, err := svc.generateCode()
		require.NoError(t, err)
		require.Len(t, code, 6)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}

	svc.cfg.Length = 0
	code, err := svc.generateCode()
	require.NoError(t, err)
	assert.Len(t, code, 6, "out-of-range lengths fall back to six digits")
}

func wrongCode(code string) string {
	if code == "111111" {
		return "222222"
	}
	return "111111"
}

// slowDirectory advances the clock during each lookup to model a slow store.
type slowDirectory struct {
	*repository.MemoryUserRepository
	clock *fakeClock
	delay time.Duration
}

func (d *slowDirectory) GetByPhoneNumber(ctx context.Context, phoneNumber string) (*models.User, error) {
	d.clock.Advance(d.delay)
	return d.MemoryUserRepository.GetByPhoneNumber(ctx, phoneNumber)
}

func TestVerifyOTP_ExpiresDuringUserLookup(t *testing.T) {
	f := newAuthFixture(t, 30*time.Second)
	f.svc.users = &slowDirectory{
		MemoryUserRepository: f.users,
		clock:                f.clock,
		delay:                2 * time.Second,
	}
	ctx := context.Background()

	_, err := f.svc.RequestOTP(ctx, "9876543210")
	require.NoError(t, err)
	code := f.lastCode(t)

	f.clock.Advance(5*time.Minute - time.Second)

	_, err = f.svc.VerifyOTP(ctx, "9876543210", code, "Asha")
	assert.ErrorIs(t, err, ErrOTPExpired)
	assert.Equal(t, 0, f.svc.PendingOTPs())

	stored, err := f.users.GetByPhoneNumber(ctx, "9876543210")
	require.NoError(t, err)
	assert.Nil(t, stored, "no user is created for an expired code")
}
