package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOTPStore_StoreAndGet(t *testing.T) {
	clock := newFakeClock()
	store := NewOTPStore(clock)

	record := store.Store("9876543210", "123456", 5*time.Minute)
	assert.Equal(t, "123456", record.Code)
	assert.Equal(t, 0, record.Attempts)
	assert.Equal(t, clock.Now().Add(5*time.Minute), record.ExpiresAt)

	got, ok := store.Get("9876543210")
	require.True(t, ok)
	assert.Equal(t, record, got)

	_, ok = store.Get("9000000000")
	assert.False(t, ok)
}

func TestOTPStore_StoreReplacesPendingCode(t *testing.T) {
	store := NewOTPStore(newFakeClock())

	store.Store("9876543210", "111111", time.Minute)
	store.IncrementAttempts("9876543210")
	store.Store("9876543210", "222222", time.Minute)

	got, ok := store.Get("9876543210")
	require.True(t, ok)
	assert.Equal(t, "222222", got.Code)
	assert.Equal(t, 0, got.Attempts)
	assert.Equal(t, 1, store.Len())

	assert.ErrorIs(t, store.Check("9876543210", "111111", 3), ErrInvalidOTP)
	assert.NoError(t, store.Check("9876543210", "222222", 3))
}

func TestOTPStore_Check(t *testing.T) {
	t.Run("missing record", func(t *testing.T) {
		store := NewOTPStore(newFakeClock())
		assert.ErrorIs(t, store.Check("9876543210", "123456", 3), ErrOTPNotFound)
	})

	t.Run("expired record is removed", func(t *testing.T) {
		clock := newFakeClock()
		store := NewOTPStore(clock)
		store.Store("9876543210", "123456", 5*time.Minute)

		clock.Advance(5*time.Minute + time.Second)
		assert.ErrorIs(t, store.Check("9876543210", "123456", 3), ErrOTPExpired)
		assert.ErrorIs(t, store.Check("9876543210", "123456", 3), ErrOTPNotFound)
	})

	t.Run("exactly at expiry is still valid", func(t *testing.T) {
		clock := newFakeClock()
		store := NewOTPStore(clock)
		store.Store("9876543210", "123456", 5*time.Minute)

		clock.Advance(5 * time.Minute)
		assert.NoError(t, store.Check("9876543210", "123456", 3))
	})

	t.Run("wrong codes count down then lock out", func(t *testing.T) {
		store := NewOTPStore(newFakeClock())
		store.Store("9876543210", "123456", time.Minute)

		for _, want := range []int{2, 1, 0} {
			err := store.Check("9876543210", "000000", 3)
			require.ErrorIs(t, err, ErrInvalidOTP)

			var authErr *AuthError
			require.ErrorAs(t, err, &authErr)
			require.NotNil(t, authErr.RemainingAttempts)
			assert.Equal(t, want, *authErr.RemainingAttempts)
		}

		got, ok := store.Get("9876543210")
		require.True(t, ok)
		assert.Equal(t, 3, got.Attempts)

		assert.ErrorIs(t, store.Check("9876543210", "123456", 3), ErrTooManyAttempts)
		assert.ErrorIs(t, store.Check("9876543210", "123456", 3), ErrOTPNotFound)
	})

	t.Run("match keeps the record until claimed", func(t *testing.T) {
		store := NewOTPStore(newFakeClock())
		store.Store("9876543210", "123456", time.Minute)

		require.NoError(t, store.Check("9876543210", "123456", 3))
		assert.Equal(t, 1, store.Len())

		assert.NoError(t, store.Claim("9876543210", "123456"))
		assert.ErrorIs(t, store.Claim("9876543210", "123456"), ErrOTPNotFound)
		assert.ErrorIs(t, store.Check("9876543210", "123456", 3), ErrOTPNotFound)
	})
}

func TestOTPStore_Claim(t *testing.T) {
	clock := newFakeClock()
	store := NewOTPStore(clock)
	store.Store("9876543210", "123456", time.Minute)

	assert.ErrorIs(t, store.Claim("9876543210", "654321"), ErrOTPNotFound)
	assert.ErrorIs(t, store.Claim("9000000000", "123456"), ErrOTPNotFound)
	assert.Equal(t, 1, store.Len(), "a wrong code does not consume the record")

	clock.Advance(2 * time.Minute)
	assert.ErrorIs(t, store.Claim("9876543210", "123456"), ErrOTPExpired)
	assert.Equal(t, 0, store.Len())
	assert.ErrorIs(t, store.Claim("9876543210", "123456"), ErrOTPNotFound)
}

func TestOTPStore_ClaimIsSingleUse(t *testing.T) {
	store := NewOTPStore(newFakeClock())
	store.Store("9876543210", "123456", time.Minute)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if store.Claim("9876543210", "123456") == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}

func TestOTPStore_IncrementAttempts(t *testing.T) {
	store := NewOTPStore(newFakeClock())
	assert.Equal(t, 0, store.IncrementAttempts("9876543210"))

	store.Store("9876543210", "123456", time.Minute)
	assert.Equal(t, 1, store.IncrementAttempts("9876543210"))
	assert.Equal(t, 2, store.IncrementAttempts("9876543210"))

	store.Delete("9876543210")
	assert.Equal(t, 0, store.Len())
}

func TestOTPStore_Sweep(t *testing.T) {
	clock := newFakeClock()
	store := NewOTPStore(clock)

	store.Store("9000000001", "111111", time.Minute)
	store.Store("9000000002", "222222", 10*time.Minute)
	clock.Advance(2 * time.Minute)
	store.Store("9000000003", "333333", time.Minute)

	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 2, store.Len())

	_, ok := store.Get("9000000001")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Sweep())
}
