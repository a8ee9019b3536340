package repository

import (
	"context"
	"sync"
	"time"

	"github.com/homeserve/otpauth/internal/models"
)

// MemoryUserRepository keeps users in process memory. It backs local runs and tests.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]models.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]models.User)}
}

func (r *MemoryUserRepository) GetByPhoneNumber(_ context.Context, phoneNumber string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[phoneNumber]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func (r *MemoryUserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.PhoneNumber]; ok {
		return ErrUserExists
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.PhoneNumber] = *user
	return nil
}

func (r *MemoryUserRepository) Update(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[user.PhoneNumber]
	if !ok {
		return ErrUserNotFound
	}

	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = time.Now()
	r.users[user.PhoneNumber] = *user
	return nil
}
