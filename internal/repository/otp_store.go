package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Alu2004/swift-bus-bookings/internal/domain"
)

const otpKeyPrefix = "login_otp:"

// RedisOTPStore keeps hashed one-time login codes in Redis with a TTL.
type RedisOTPStore struct {
	client *redis.Client
}

// NewRedisOTPStore connects to Redis and verifies the connection.
func NewRedisOTPStore(addr, password string, db int) (*RedisOTPStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisOTPStore{client: client}, nil
}

// Store saves the hashed code for the contact, replacing any previous one.
func (s *RedisOTPStore) Store(ctx context.Context, contact, codeHash string, ttl time.Duration) error {
	if err := s.client.Set(ctx, otpKeyPrefix+contact, codeHash, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store one-time code: %w", err)
	}
	return nil
}

// Get returns the stored hash for the contact. A missing or expired code is
// a NotFoundError; anything else is an infrastructure failure and must not
// be mistaken for a bad code.
func (s *RedisOTPStore) Get(ctx context.Context, contact string) (string, error) {
	hash, err := s.client.Get(ctx, otpKeyPrefix+contact).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.NewNotFoundError("LoginCode", contact)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get one-time code: %w", err)
	}
	return hash, nil
}

// Delete removes the stored code, consuming it.
func (s *RedisOTPStore) Delete(ctx context.Context, contact string) error {
	return s.client.Del(ctx, otpKeyPrefix+contact).Err()
}

// Close closes the Redis connection.
func (s *RedisOTPStore) Close() error {
	return s.client.Close()
}
