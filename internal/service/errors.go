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

package service

import "errors"

var (
	// ErrNotConfigured is returned when an external integration has no credentials.
	ErrNotConfigured        = errors.New("integration not configured")
	ErrNoPlan               = errors.New("project has no plan yet")
	ErrCalendarNotConnected = errors.New("google calendar not connected")
	ErrInvalidState         = errors.New("invalid or expired oauth state")
	ErrNoFreeSlot           = errors.New("no free slot")
	ErrAlreadyScheduled     = errors.New("todo already scheduled")
	ErrTodoCompleted        = errors.New("todo already completed")
	// ErrUpstream matches every UpstreamError.
	ErrUpstream = errors.New("upstream failure")
)

// UpstreamError wraps a failure reported by the AI or calendar provider.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return e.Service + " error: " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

func aiError(err error) error {
	return &UpstreamError{Service: "AI service", Err: err}
}

func calendarError(err error) error {
	return &UpstreamError{Service: "Calendar service", Err: err}
}
