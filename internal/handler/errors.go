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
	"errors"
	"net/http"

	"blockarchitech.com/smartlife/internal/repository"
	"blockarchitech.com/smartlife/internal/service"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// abortWithError maps a service or repository error to a JSON error response.
// notFound is the message used for repository.ErrNotFound. Errors without a
// mapping are logged and reported as failed, with fallback as the message.
func (h *HttpHandlers) abortWithError(c *gin.Context, span trace.Span, err error, notFound, fallback string) {
	span.RecordError(err)

	var upstream *service.UpstreamError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": notFound})
	case errors.Is(err, repository.ErrDuplicateEmail):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "Email already registered"})
	case errors.Is(err, service.ErrNotConfigured):
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Service not configured"})
	case errors.Is(err, service.ErrNoPlan):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Project has no plan yet"})
	case errors.Is(err, service.ErrCalendarNotConnected):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Google Calendar not connected"})
	case errors.Is(err, service.ErrInvalidState):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired OAuth state"})
	case errors.Is(err, service.ErrAlreadyScheduled):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "Todo item is already scheduled"})
	case errors.Is(err, service.ErrTodoCompleted):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Todo item is already completed"})
	case errors.As(err, &upstream):
		h.logger.Warn("Upstream call failed", zap.String("service", upstream.Service), zap.Error(err))
		span.SetStatus(codes.Error, upstream.Service+" failed")
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": upstream.Error()})
	default:
		h.logger.Error(fallback, zap.Error(err), zap.String("path", c.Request.URL.Path))
		span.SetStatus(codes.Error, fallback)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
