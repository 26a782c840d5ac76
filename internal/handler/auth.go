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
	"net/http"
	"strings"
	"time"

	"blockarchitech.com/smartlife/internal/auth"
	"blockarchitech.com/smartlife/internal/models"
	"blockarchitech.com/smartlife/internal/types/app"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HandleSignup creates an account and returns a token for it.
func (h *HttpHandlers) HandleSignup(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleSignup")
	defer span.End()

	var req app.SignupRequest
	if !bindJSON(c, &req) {
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.abortWithError(c, span, err, "", "Failed to create account")
		return
	}

	var name *string
	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		trimmed := strings.TrimSpace(*req.Name)
		name = &trimmed
	}
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		Name:         name,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.repo.CreateUser(ctx, user); err != nil {
		h.abortWithError(c, span, err, "", "Failed to create account")
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Email)
	if err != nil {
		h.abortWithError(c, span, err, "", "Failed to issue token")
		return
	}
	h.logger.Info("User signed up", zap.String("userID", user.ID))
	c.JSON(http.StatusCreated, app.AuthResponse{User: app.NewUserResponse(user), Token: token})
}

// HandleLogin exchanges credentials for a token.
func (h *HttpHandlers) HandleLogin(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleLogin")
	defer span.End()

	var req app.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.repo.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		h.abortWithError(c, span, err, "", "Failed to retrieve user")
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Incorrect email or password"})
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Email)
	if err != nil {
		h.abortWithError(c, span, err, "", "Failed to issue token")
		return
	}
	c.JSON(http.StatusOK, app.AuthResponse{User: app.NewUserResponse(user), Token: token})
}

// HandleVerify returns the identity behind the bearer token.
func (h *HttpHandlers) HandleVerify(c *gin.Context) {
	_, span := h.Tracer.Start(c.Request.Context(), "HandleVerify")
	defer span.End()

	user, ok := mustUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, app.NewUserResponse(user))
}

func (h *HttpHandlers) HandleChangePassword(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleChangePassword")
	defer span.End()

	user, ok := mustUser(c)
	if !ok {
		return
	}

	var req app.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Current password is incorrect"})
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		h.abortWithError(c, span, err, "", "Failed to update password")
		return
	}
	if err := h.repo.UpdatePassword(ctx, user.ID, hash); err != nil {
		h.abortWithError(c, span, err, "User not found", "Failed to update password")
		return
	}
	h.logger.Info("Password updated", zap.String("userID", user.ID))
	c.JSON(http.StatusOK, app.MessageResponse{Message: "Password updated successfully"})
}
