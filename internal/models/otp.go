package models

import "time"

// OTPRecord is the single pending verification for a normalized phone number.
type OTPRecord struct {
	Code      string    `json:"code"`
	Phone     string    `json:"phone"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired reports whether the record is no longer usable at now.
func (r *OTPRecord) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
