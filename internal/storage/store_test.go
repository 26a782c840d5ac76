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
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"
)

func TestInMemoryStateStore(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStateStore(zaptest.NewLogger(t))

	if err := s.Put(ctx, "abc", "user-1", time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}
	userID, err := s.Take(ctx, "abc")
	if err != nil || userID != "user-1" {
		t.Fatalf("Take = %q, %v", userID, err)
	}
	if _, err := s.Take(ctx, "abc"); !errors.Is(err, ErrStateNotFound) {
		t.Errorf("second Take err = %v, want ErrStateNotFound", err)
	}
	if _, err := s.Take(ctx, "unknown"); !errors.Is(err, ErrStateNotFound) {
		t.Errorf("unknown Take err = %v", err)
	}
}

func TestInMemoryStateStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStateStore(zaptest.NewLogger(t))
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_ = s.Put(ctx, "old", "user-1", 10*time.Minute)
	now = now.Add(11 * time.Minute)
	if _, err := s.Take(ctx, "old"); !errors.Is(err, ErrStateNotFound) {
		t.Errorf("expired Take err = %v", err)
	}

	_ = s.Put(ctx, "stale", "user-2", time.Minute)
	now = now.Add(2 * time.Minute)
	_ = s.Put(ctx, "fresh", "user-3", time.Minute)
	if _, ok := s.states["stale"]; ok {
		t.Error("expired state was not swept on Put")
	}
}

func TestRedisStateStore(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	s, err := NewRedisStateStore(ctx, url, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewRedisStateStore: %v", err)
	}
	defer s.Close()

	if err := s.Put(ctx, "redis-state", "user-1", time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}
	userID, err := s.Take(ctx, "redis-state")
	if err != nil || userID != "user-1" {
		t.Fatalf("Take = %q, %v", userID, err)
	}
	if _, err := s.Take(ctx, "redis-state"); !errors.Is(err, ErrStateNotFound) {
		t.Errorf("second Take err = %v", err)
	}
}

func TestRedisStateStoreUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	s := NewRedisStateStoreFromClient(client, zaptest.NewLogger(t))
	defer s.Close()
	if _, err := s.Take(context.Background(), "x"); err == nil || errors.Is(err, ErrStateNotFound) {
		t.Errorf("Take against unreachable redis err = %v", err)
	}
}

func TestFirestoreStateStoreSharesClient(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	client, err := firestore.NewClient(ctx, "smartlife-test")
	if err != nil {
		t.Fatalf("firestore.NewClient: %v", err)
	}
	defer client.Close()

	first := NewFirestoreStateStore(client, zaptest.NewLogger(t))
	if err := first.Put(ctx, "fs-state", "user-1", time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}
	// closing one store must leave the shared client usable
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	second := NewFirestoreStateStore(client, zaptest.NewLogger(t))
	userID, err := second.Take(ctx, "fs-state")
	if err != nil || userID != "user-1" {
		t.Fatalf("Take = %q, %v", userID, err)
	}
	if _, err := second.Take(ctx, "fs-state"); !errors.Is(err, ErrStateNotFound) {
		t.Errorf("second Take err = %v", err)
	}
}
