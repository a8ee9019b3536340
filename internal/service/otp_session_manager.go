package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// OTPSessionManager owns the process-wide OTP state: the pending-code store,
// the per-phone cooldown limiter and the periodic expiry sweep. Construct one
// per process and call Stop on shutdown.
type OTPSessionManager struct {
	store   *OTPStore
	limiter *PhoneRateLimiter
	cron    *cron.Cron
	logger  *logrus.Logger
}

// NewOTPSessionManager builds the manager and starts the expiry sweep.
func NewOTPSessionManager(clock Clock, cooldown, sweepInterval time.Duration, logger *logrus.Logger) *OTPSessionManager {
	m := &OTPSessionManager{
		store:   NewOTPStore(clock),
		limiter: NewPhoneRateLimiter(clock, cooldown),
		logger:  logger,
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.VerbosePrintfLogger(logger)),
			cron.SkipIfStillRunning(cron.DiscardLogger),
		)),
	}

	m.cron.Schedule(cron.Every(sweepInterval), cron.FuncJob(m.sweep))
	m.cron.Start()

	return m
}

func (m *OTPSessionManager) Store() *OTPStore {
	return m.store
}

func (m *OTPSessionManager) Limiter() *PhoneRateLimiter {
	return m.limiter
}

// PendingCount is the number of OTP records currently held.
func (m *OTPSessionManager) PendingCount() int {
	return m.store.Len()
}

// Stop halts the sweep and waits for a running sweep to finish or ctx to end.
func (m *OTPSessionManager) Stop(ctx context.Context) {
	done := m.cron.Stop()
	select {
	case <-done.Done():
		m.logger.Info("OTP expiry sweep stopped")
	case <-ctx.Done():
		m.logger.WithError(ctx.Err()).Warn("OTP expiry sweep did not stop in time")
	}
}

func (m *OTPSessionManager) sweep() {
	removed := m.store.Sweep()
	cooldowns := m.limiter.Sweep()
	if removed > 0 || cooldowns > 0 {
		m.logger.WithFields(logrus.Fields{
			"removed":   removed,
			"cooldowns": cooldowns,
			"pending":   m.store.Len(),
		}).Debug("Expired OTP state removed")
	}
}
