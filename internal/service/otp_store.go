package service

import (
	"crypto/subtle"
	"sync"
	"time"

	"github.com/homeserve/otpauth/internal/models"
)

// OTPStore keeps at most one pending OTP per normalized phone number in memory.
// Records do not survive a restart.
type OTPStore struct {
	mu      sync.Mutex
	records map[string]*models.OTPRecord
	clock   Clock
}

func NewOTPStore(clock Clock) *OTPStore {
	if clock == nil {
		clock = SystemClock()
	}
	return &OTPStore{
		records: make(map[string]*models.OTPRecord),
		clock:   clock,
	}
}

// Store inserts or replaces the record for phone. Any previous code stops
// being valid immediately.
func (s *OTPStore) Store(phone, code string, ttl time.Duration) models.OTPRecord {
	now := s.clock.Now()
	record := &models.OTPRecord{
		Code:      code,
		Phone:     phone,
		Attempts:  0,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	s.mu.Lock()
	s.records[phone] = record
	s.mu.Unlock()

	return *record
}

// Get returns a copy of the record for phone.
func (s *OTPStore) Get(phone string) (models.OTPRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[phone]
	if !ok {
		return models.OTPRecord{}, false
	}
	return *record, true
}

func (s *OTPStore) Delete(phone string) {
	s.mu.Lock()
	delete(s.records, phone)
	s.mu.Unlock()
}

// IncrementAttempts bumps the failed-attempt counter and returns the new value.
// It is a no-op returning 0 when no record exists.
func (s *OTPStore) IncrementAttempts(phone string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[phone]
	if !ok {
		return 0
	}
	record.Attempts++
	return record.Attempts
}

// Check compares code with the pending record for phone under a single lock.
// Expired and exhausted records are deleted; a mismatch counts as a failed
// attempt. A match leaves the record in place until Claim is called.
func (s *OTPStore) Check(phone, code string, maxAttempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[phone]
	if !ok {
		return ErrOTPNotFound
	}

	if record.IsExpired(s.clock.Now()) {
		delete(s.records, phone)
		return ErrOTPExpired
	}

	if record.Attempts >= maxAttempts {
		delete(s.records, phone)
		return ErrTooManyAttempts
	}

	if !codesEqual(record.Code, code) {
		remaining := maxAttempts - 1 - record.Attempts
		if remaining < 0 {
			remaining = 0
		}
		record.Attempts++
		return invalidOTPError(remaining)
	}

	return nil
}

// Claim deletes the record for phone if it still holds code and has not
// expired. Only one caller can claim a given code. A record that expired
// since Check is removed and reported as ErrOTPExpired; a missing or
// replaced record is ErrOTPNotFound.
func (s *OTPStore) Claim(phone, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[phone]
	if !ok || !codesEqual(record.Code, code) {
		return ErrOTPNotFound
	}

	delete(s.records, phone)
	if record.IsExpired(s.clock.Now()) {
		return ErrOTPExpired
	}
	return nil
}

// Sweep removes every expired record and returns how many were dropped.
func (s *OTPStore) Sweep() int {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for phone, record := range s.records {
		if record.IsExpired(now) {
			delete(s.records, phone)
			removed++
		}
	}
	return removed
}

// Len is the number of pending records, expired or not.
func (s *OTPStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func codesEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
