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

package handler

import (
	"blockarchitech.com/smartlife/internal/auth"
	"blockarchitech.com/smartlife/internal/config"
	"blockarchitech.com/smartlife/internal/repository"
	"blockarchitech.com/smartlife/internal/service"
	"blockarchitech.com/smartlife/internal/storage"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// HttpHandlers holds application-wide state and dependencies.
type HttpHandlers struct {
	logger    *zap.Logger
	config    *config.Config
	repo      repository.Repository
	tokens    *auth.TokenIssuer
	planner   *service.Planner
	scheduler *service.Scheduler
	calendar  service.CalendarProvider
	states    storage.StateStore
	limiter   *RateLimiter
	Tracer    trace.Tracer
}

// NewHttpHandlers creates a new HttpHandlers instance. calendar may be nil
// when Google OAuth credentials are not configured.
func NewHttpHandlers(
	logger *zap.Logger,
	cfg *config.Config,
	repo repository.Repository,
	planner *service.Planner,
	scheduler *service.Scheduler,
	calendar service.CalendarProvider,
	states storage.StateStore,
	tracer trace.Tracer,
) *HttpHandlers {
	return &HttpHandlers{
		logger:    logger.Named("http_handler"),
		config:    cfg,
		repo:      repo,
		tokens:    auth.NewTokenIssuer(cfg.SecretKey, cfg.TokenTTL),
		planner:   planner,
		scheduler: scheduler,
		calendar:  calendar,
		states:    states,
		limiter:   NewRateLimiter(cfg.AuthRateLimitRPS, cfg.AuthRateLimitBurst),
		Tracer:    tracer,
	}
}

// Close stops background work owned by the handlers.
func (h *HttpHandlers) Close() {
	h.limiter.Stop()
}
