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

	"blockarchitech.com/smartlife/internal/models"
	"blockarchitech.com/smartlife/internal/types/app"
	"github.com/gin-gonic/gin"
)

// HandleChat sends a message to the general assistant. Proposed projects are
// returned for confirmation and never created here.
func (h *HttpHandlers) HandleChat(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleChat")
	defer span.End()

	user, ok := mustUser(c)
	if !ok {
		return
	}
	var req app.ChatRequest
	if !bindJSON(c, &req) {
		return
	}

	msg, err := h.planner.Chat(ctx, user.ID, strings.TrimSpace(req.Message), req.ExistingProjects)
	if err != nil {
		h.abortWithError(c, span, err, "", "Failed to process chat message")
		return
	}
	c.JSON(http.StatusOK, app.NewChatResponse(msg))
}

func (h *HttpHandlers) HandleChatHistory(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleChatHistory")
	defer span.End()

	user, ok := mustUser(c)
	if !ok {
		return
	}
	history, err := h.repo.ListChatMessages(ctx, user.ID, 0)
	if err != nil {
		h.abortWithError(c, span, err, "", "Failed to load chat history")
		return
	}
	out := make([]app.ChatResponse, 0, len(history))
	for i := range history {
		out = append(out, app.NewChatResponse(&history[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *HttpHandlers) HandleProjectChat(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleProjectChat")
	defer span.End()

	project, ok := h.loadProject(c, span)
	if !ok {
		return
	}
	var req app.ProjectChatRequest
	if !bindJSON(c, &req) {
		return
	}

	msg, err := h.planner.ProjectChat(ctx, project, strings.TrimSpace(req.Message))
	if err != nil {
		h.abortWithError(c, span, err, "Project not found", "Failed to process chat message")
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *HttpHandlers) HandleProjectChatHistory(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleProjectChatHistory")
	defer span.End()

	project, ok := h.loadProject(c, span)
	if !ok {
		return
	}
	history, err := h.repo.ListProjectMessages(ctx, project.ID, 0)
	if err != nil {
		h.abortWithError(c, span, err, "Project not found", "Failed to load chat history")
		return
	}
	if history == nil {
		history = []models.ProjectChatMessage{}
	}
	c.JSON(http.StatusOK, history)
}
