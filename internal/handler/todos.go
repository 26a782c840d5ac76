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

	"blockarchitech.com/smartlife/internal/models"
	"blockarchitech.com/smartlife/internal/types/app"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

func (h *HttpHandlers) HandleCreateTodo(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleCreateTodo")
	defer span.End()

	project, ok := h.loadProject(c, span)
	if !ok {
		return
	}
	var req app.CreateTodoRequest
	if !bindJSON(c, &req) {
		return
	}
	due, ok := parseOptionalDate(c, "due_date", req.DueDate)
	if !ok {
		return
	}
	order := req.OrderIndex
	if order == nil {
		next := project.NextOrderIndex()
		order = &next
	}

	todo := models.TodoItem{
		ID:         uuid.NewString(),
		ProjectID:  project.ID,
		Text:       strings.TrimSpace(req.Text),
		DueDate:    due,
		OrderIndex: order,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.repo.CreateTodos(ctx, project.ID, []models.TodoItem{todo}); err != nil {
		h.abortWithError(c, span, err, "Project not found", "Failed to create todo item")
		return
	}
	h.touchProject(c, project)
	c.JSON(http.StatusCreated, todo)
}

// HandleUpdateTodo changes only the fields present in the body.
func (h *HttpHandlers) HandleUpdateTodo(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleUpdateTodo")
	defer span.End()

	project, ok := h.loadProject(c, span)
	if !ok {
		return
	}
	todoID := c.Param("todo_id")
	span.SetAttributes(attribute.String("todo.id", todoID))

	var req app.UpdateTodoRequest
	if !bindJSON(c, &req) {
		return
	}

	todo, err := h.repo.GetTodo(ctx, project.ID, todoID)
	if err != nil {
		h.abortWithError(c, span, err, "Todo item not found", "Failed to load todo item")
		return
	}
	if todo == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Todo item not found"})
		return
	}

	if req.Text != nil {
		todo.Text = strings.TrimSpace(*req.Text)
	}
	if req.Completed != nil {
		todo.Completed = *req.Completed
	}
	if req.DueDate != nil {
		due, ok := parseOptionalDate(c, "due_date", req.DueDate)
		if !ok {
			return
		}
		todo.DueDate = due
	}
	if req.OrderIndex != nil {
		todo.OrderIndex = req.OrderIndex
	}

	if err := h.repo.UpdateTodo(ctx, todo); err != nil {
		h.abortWithError(c, span, err, "Todo item not found", "Failed to update todo item")
		return
	}
	h.touchProject(c, project)
	c.JSON(http.StatusOK, todo)
}

func (h *HttpHandlers) HandleDeleteTodo(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleDeleteTodo")
	defer span.End()

	project, ok := h.loadProject(c, span)
	if !ok {
		return
	}
	if err := h.repo.DeleteTodo(ctx, project.ID, c.Param("todo_id")); err != nil {
		h.abortWithError(c, span, err, "Todo item not found", "Failed to delete todo item")
		return
	}
	h.touchProject(c, project)
	c.Status(http.StatusNoContent)
}
