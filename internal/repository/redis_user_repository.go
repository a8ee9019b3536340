package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/homeserve/otpauth/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisUserRepository stores each user as JSON under user:<phone>.
type RedisUserRepository struct {
	client redis.Cmdable
	logger *logrus.Logger
}

func NewRedisUserRepository(client redis.Cmdable, logger *logrus.Logger) *RedisUserRepository {
	return &RedisUserRepository{
		client: client,
		logger: logger,
	}
}

func redisUserKey(phoneNumber string) string {
	return fmt.Sprintf("user:%s", phoneNumber)
}

func (r *RedisUserRepository) GetByPhoneNumber(ctx context.Context, phoneNumber string) (*models.User, error) {
	dataJSON, err := r.client.Get(ctx, redisUserKey(phoneNumber)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		r.logger.WithError(err).Error("Failed to get user from Redis")
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var user models.User
	if err := json.Unmarshal([]byte(dataJSON), &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return &user, nil
}

func (r *RedisUserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	dataJSON, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	created, err := r.client.SetNX(ctx, redisUserKey(user.PhoneNumber), dataJSON, 0).Result()
	if err != nil {
		r.logger.WithError(err).Error("Failed to create user in Redis")
		return fmt.Errorf("failed to create user: %w", err)
	}
	if !created {
		return ErrUserExists
	}
	return nil
}

func (r *RedisUserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()

	dataJSON, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	updated, err := r.client.SetXX(ctx, redisUserKey(user.PhoneNumber), dataJSON, 0).Result()
	if err != nil {
		r.logger.WithError(err).Error("Failed to update user in Redis")
		return fmt.Errorf("failed to update user: %w", err)
	}
	if !updated {
		return ErrUserNotFound
	}
	return nil
}
