package models

import (
	"time"
)

type User struct {
	ID          string     `json:"id" dynamodbav:"id"`
	PhoneNumber string     `json:"phone" dynamodbav:"phone_number"`
	Name        string     `json:"name,omitempty" dynamodbav:"name,omitempty"`
	Email       string     `json:"email,omitempty" dynamodbav:"email,omitempty"`
	IsVerified  bool       `json:"isVerified" dynamodbav:"is_verified"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty" dynamodbav:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" dynamodbav:"updated_at"`
}

func (u *User) GetPK() string {
	return "USER!" + u.PhoneNumber
}

func (u *User) GetSK() string {
	return "METADATA"
}
