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
	"sync"
	"time"

	"go.uber.org/zap"
)

// InMemoryStateStore keeps states in a map. Expired entries are dropped
// lazily on every Put.
type InMemoryStateStore struct {
	mu     sync.Mutex
	states map[string]pendingState
	now    func() time.Time
	logger *zap.Logger
}

func NewInMemoryStateStore(logger *zap.Logger) *InMemoryStateStore {
	return &InMemoryStateStore{
		states: make(map[string]pendingState),
		now:    time.Now,
		logger: logger.Named("inmemory_state_store"),
	}
}

func (s *InMemoryStateStore) Put(ctx context.Context, state, userID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, v := range s.states {
		if now.After(v.ExpiresAt) {
			delete(s.states, k)
		}
	}
	s.states[state] = pendingState{UserID: userID, ExpiresAt: now.Add(ttl)}
	s.logger.Debug("Stored oauth state", zap.String("userID", userID))
	return nil
}

func (s *InMemoryStateStore) Take(ctx context.Context, state string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending, found := s.states[state]
	if !found {
		return "", ErrStateNotFound
	}
	delete(s.states, state)
	if s.now().After(pending.ExpiresAt) {
		s.logger.Info("Oauth state expired", zap.String("userID", pending.UserID))
		return "", ErrStateNotFound
	}
	return pending.UserID, nil
}

func (s *InMemoryStateStore) Close() error {
	s.logger.Info("Closing InMemoryStateStore (no-op)")
	return nil
}
