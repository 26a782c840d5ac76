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

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.uber.org/zap"
)

const defaultStateCollectionName = "oauthStates"

// FirestoreStateStore keeps states as documents keyed by the nonce.
type FirestoreStateStore struct {
	client         *firestore.Client
	logger         *zap.Logger
	collectionName string
}

// NewFirestoreStateStore stores states through a client owned by the caller.
func NewFirestoreStateStore(client *firestore.Client, logger *zap.Logger) *FirestoreStateStore {
	return &FirestoreStateStore{
		client:         client,
		logger:         logger.Named("firestore_state_store"),
		collectionName: defaultStateCollectionName,
	}
}

func (s *FirestoreStateStore) Put(ctx context.Context, state, userID string, ttl time.Duration) error {
	pending := pendingState{UserID: userID, ExpiresAt: time.Now().Add(ttl)}
	if _, err := s.client.Collection(s.collectionName).Doc(state).Set(ctx, pending); err != nil {
		s.logger.Error("Failed to store oauth state", zap.String("userID", userID), zap.Error(err))
		return fmt.Errorf("failed to set document: %w", err)
	}
	return nil
}

// Take reads and deletes the state in one transaction so a nonce can be
// redeemed only once.
func (s *FirestoreStateStore) Take(ctx context.Context, state string) (string, error) {
	ref := s.client.Collection(s.collectionName).Doc(state)
	var pending pendingState
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		dsnap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrStateNotFound
			}
			return err
		}
		if err := dsnap.DataTo(&pending); err != nil {
			return fmt.Errorf("failed to decode state: %w", err)
		}
		return tx.Delete(ref)
	})
	if errors.Is(err, ErrStateNotFound) {
		return "", ErrStateNotFound
	}
	if err != nil {
		s.logger.Error("Failed to take oauth state", zap.Error(err))
		return "", fmt.Errorf("failed to take state: %w", err)
	}
	if time.Now().After(pending.ExpiresAt) {
		return "", ErrStateNotFound
	}
	return pending.UserID, nil
}

// Close leaves the shared client open.
func (s *FirestoreStateStore) Close() error {
	return nil
}
