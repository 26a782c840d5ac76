/*
 *    Copyright 2025 blockarchitech
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisStatePrefix = "smartlife:oauth_state:"

// RedisStateStore keeps states as expiring keys so several app instances can
// share pending authorizations.
type RedisStateStore struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisStateStore(ctx context.Context, url string, logger *zap.Logger) (*RedisStateStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("Successfully connected to Redis", zap.String("addr", opts.Addr))
	return NewRedisStateStoreFromClient(client, logger), nil
}

func NewRedisStateStoreFromClient(client *redis.Client, logger *zap.Logger) *RedisStateStore {
	return &RedisStateStore{client: client, logger: logger.Named("redis_state_store")}
}

func (s *RedisStateStore) Put(ctx context.Context, state, userID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, redisStatePrefix+state, userID, ttl).Err(); err != nil {
		s.logger.Error("Failed to store oauth state", zap.String("userID", userID), zap.Error(err))
		return fmt.Errorf("failed to store state: %w", err)
	}
	return nil
}

func (s *RedisStateStore) Take(ctx context.Context, state string) (string, error) {
	userID, err := s.client.GetDel(ctx, redisStatePrefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrStateNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to take state: %w", err)
	}
	return userID, nil
}

func (s *RedisStateStore) Close() error {
	return s.client.Close()
}
