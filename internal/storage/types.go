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
	"time"
)

// ErrStateNotFound is returned when an OAuth state is unknown, expired or
// already consumed.
var ErrStateNotFound = errors.New("oauth state not found")

// StateStore keeps short-lived OAuth state nonces bound to the user that
// started the authorization. Take is single-use.
type StateStore interface {
	Put(ctx context.Context, state, userID string, ttl time.Duration) error
	Take(ctx context.Context, state string) (string, error)
	Close() error
}

// pendingState is the stored form of a state nonce.
type pendingState struct {
	UserID    string    `firestore:"userID"`
	ExpiresAt time.Time `firestore:"expiresAt"`
}
