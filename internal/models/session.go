package models

import "time"

// OTPAcknowledgement is returned by a successful OTP request. It never carries the code.
type OTPAcknowledgement struct {
	Phone     string `json:"phone"`
	ExpiresIn int64  `json:"expiresIn"`
	Simulated bool   `json:"-"`
}

// AuthResult is the outcome of a completed OTP login.
type AuthResult struct {
	User      *User     `json:"user"`
	Token     string    `json:"token"`
	ExpiresIn int64     `json:"expiresIn"`
	ExpiresAt time.Time `json:"expiresAt"`
	IsNewUser bool      `json:"isNewUser"`
}
