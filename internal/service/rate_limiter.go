package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ulule/limiter/v3"
)

// PhoneRateLimiter admits one OTP request per phone per cooldown window. The
// window opens on an accepted request; rejected requests do not extend it.
type PhoneRateLimiter struct {
	limiter  *limiter.Limiter
	store    *cooldownStore
	cooldown time.Duration
}

func NewPhoneRateLimiter(clock Clock, cooldown time.Duration) *PhoneRateLimiter {
	if clock == nil {
		clock = SystemClock()
	}
	store := newCooldownStore(clock)

	return &PhoneRateLimiter{
		limiter:  limiter.New(store, limiter.Rate{Period: cooldown, Limit: 1}),
		store:    store,
		cooldown: cooldown,
	}
}

// Allow reports whether a request for phone may proceed. When it may not,
// the returned duration is the cooldown hint for the client.
func (l *PhoneRateLimiter) Allow(ctx context.Context, phone string) (bool, time.Duration, error) {
	lctx, err := l.limiter.Get(ctx, phone)
	if err != nil {
		return false, 0, fmt.Errorf("failed to check rate limit: %w", err)
	}

	if lctx.Reached {
		return false, l.cooldown, nil
	}
	return true, 0, nil
}

func (l *PhoneRateLimiter) Cooldown() time.Duration {
	return l.cooldown
}

// Sweep forgets phones whose cooldown has ended.
func (l *PhoneRateLimiter) Sweep() int {
	return l.store.Sweep()
}
