package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"chat-service/config"
	"chat-service/model"
)

const refreshTokenPrefix = "refresh_token:"

func RedisConnect(ctx context.Context, log *slog.Logger, cfg config.RedisSettings) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	log.Info("connection opened to redis", "addr", client.Options().Addr, "db", cfg.DB)
	return client, nil
}

// RedisTokenStore keeps one refresh token per user, expiring with the token itself.
type RedisTokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisTokenStore(client *redis.Client, ttl time.Duration) *RedisTokenStore {
	return &RedisTokenStore{client: client, ttl: ttl}
}

func refreshTokenKey(userID string) string {
	return refreshTokenPrefix + userID
}

func (s *RedisTokenStore) SetRefreshToken(ctx context.Context, userID, token string) error {
	if err := s.client.Set(ctx, refreshTokenKey(userID), token, s.ttl).Err(); err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	return nil
}

func (s *RedisTokenStore) GetRefreshToken(ctx context.Context, userID string) (string, error) {
	token, err := s.client.Get(ctx, refreshTokenKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", model.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get refresh token: %w", err)
	}
	return token, nil
}

func (s *RedisTokenStore) DeleteRefreshToken(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, refreshTokenKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}
