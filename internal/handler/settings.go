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
	"time"

	"blockarchitech.com/smartlife/internal/config"
	"blockarchitech.com/smartlife/internal/models"
	"blockarchitech.com/smartlife/internal/service"
	"blockarchitech.com/smartlife/internal/storage"
	"blockarchitech.com/smartlife/internal/types/app"
	"blockarchitech.com/smartlife/internal/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *HttpHandlers) calendarAvailable(c *gin.Context) bool {
	if h.calendar == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Google Calendar integration is not configured"})
		return false
	}
	return true
}

func (h *HttpHandlers) redirectURI(c *gin.Context) string {
	if uri := c.Query("redirect_uri"); uri != "" {
		return uri
	}
	return h.config.GoogleRedirectURL
}

// HandleCalendarAuthorize starts the Google OAuth flow. The returned state is
// bound to the caller and expires after config.OauthStateTTL.
func (h *HttpHandlers) HandleCalendarAuthorize(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleCalendarAuthorize")
	defer span.End()

	user, ok := mustUser(c)
	if !ok || !h.calendarAvailable(c) {
		return
	}

	state, err := utils.GenerateState()
	if err != nil {
		h.abortWithError(c, span, err, "", "Failed to start authorization")
		return
	}
	if err := h.states.Put(ctx, state, user.ID, config.OauthStateTTL); err != nil {
		h.abortWithError(c, span, err, "", "Failed to start authorization")
		return
	}

	c.JSON(http.StatusOK, app.AuthorizeResponse{
		AuthorizationURL: h.calendar.AuthCodeURL(state, h.redirectURI(c)),
		State:            state,
	})
}

// HandleCalendarCallback completes the OAuth flow started by the same user.
func (h *HttpHandlers) HandleCalendarCallback(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleCalendarCallback")
	defer span.End()

	user, ok := mustUser(c)
	if !ok || !h.calendarAvailable(c) {
		return
	}

	if errParam := c.Query("error"); errParam != "" {
		h.logger.Warn("Google authorization was declined", zap.String("userID", user.ID), zap.String("error", errParam))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Authorization was declined: " + errParam})
		return
	}

	state := c.Query("state")
	if state == "" {
		h.abortWithError(c, span, service.ErrInvalidState, "", "")
		return
	}
	owner, err := h.states.Take(ctx, state)
	switch {
	case errors.Is(err, storage.ErrStateNotFound), err == nil && owner != user.ID:
		h.logger.Warn("OAuth state mismatch", zap.String("userID", user.ID))
		h.abortWithError(c, span, service.ErrInvalidState, "", "")
		return
	case err != nil:
		h.abortWithError(c, span, err, "", "Failed to verify authorization state")
		return
	}

	code := c.Query("code")
	if code == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Authorization code is required"})
		return
	}

	tok, err := h.calendar.Exchange(ctx, code, h.redirectURI(c))
	if err != nil {
		h.abortWithError(c, span, err, "", "Failed to exchange authorization code")
		return
	}
	email, err := h.calendar.AccountEmail(ctx, tok)
	if err != nil {
		// The connection still works without the display email.
		h.logger.Warn("Connected calendar without account email", zap.String("userID", user.ID), zap.Error(err))
	}

	cred := &models.CalendarCredential{
		UserID:    user.ID,
		Token:     tok,
		Email:     email,
		UpdatedAt: time.Now().UTC(),
	}
	if err := h.repo.SaveCalendarCredential(ctx, cred); err != nil {
		h.abortWithError(c, span, err, "", "Failed to save calendar credentials")
		return
	}
	h.logger.Info("Google Calendar connected", zap.String("userID", user.ID))
	c.JSON(http.StatusOK, app.MessageResponse{Message: "Google Calendar connected successfully", Email: email})
}

func (h *HttpHandlers) HandleCalendarStatus(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleCalendarStatus")
	defer span.End()

	user, ok := mustUser(c)
	if !ok {
		return
	}
	cred, err := h.repo.GetCalendarCredential(ctx, user.ID)
	if err != nil {
		h.abortWithError(c, span, err, "", "Failed to load calendar status")
		return
	}
	if cred == nil || cred.Token == nil {
		c.JSON(http.StatusOK, app.CalendarStatusResponse{Connected: false})
		return
	}
	c.JSON(http.StatusOK, app.CalendarStatusResponse{Connected: true, Email: cred.Email})
}

// HandleCalendarDisconnect removes the stored credential. It succeeds when
// nothing is connected.
func (h *HttpHandlers) HandleCalendarDisconnect(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleCalendarDisconnect")
	defer span.End()

	user, ok := mustUser(c)
	if !ok {
		return
	}
	if err := h.repo.DeleteCalendarCredential(ctx, user.ID); err != nil {
		h.abortWithError(c, span, err, "", "Failed to disconnect Google Calendar")
		return
	}
	c.JSON(http.StatusOK, app.MessageResponse{Message: "Google Calendar disconnected successfully"})
}

func (h *HttpHandlers) HandleGetPreferences(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleGetPreferences")
	defer span.End()

	user, ok := mustUser(c)
	if !ok {
		return
	}
	prefs, err := h.repo.GetPreferences(ctx, user.ID)
	if err != nil {
		h.abortWithError(c, span, err, "", "Failed to load preferences")
		return
	}
	if prefs == nil {
		prefs = &models.Preferences{UserID: user.ID}
	}
	if prefs.Timezone == "" {
		prefs.Timezone = h.config.DefaultTimezone
	}
	c.JSON(http.StatusOK, prefs)
}

func (h *HttpHandlers) HandleUpdatePreferences(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleUpdatePreferences")
	defer span.End()

	user, ok := mustUser(c)
	if !ok {
		return
	}
	var req app.PreferencesRequest
	if !bindJSON(c, &req) {
		return
	}

	prefs := req.ToModel(user.ID)
	prefs.UpdatedAt = time.Now().UTC()
	if err := h.repo.SavePreferences(ctx, &prefs); err != nil {
		h.abortWithError(c, span, err, "", "Failed to update preferences")
		return
	}
	if prefs.Timezone == "" {
		prefs.Timezone = h.config.DefaultTimezone
	}
	c.JSON(http.StatusOK, prefs)
}
