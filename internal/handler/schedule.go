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

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// HandleScheduleProject books calendar slots for every open to-do of the
// project. Per-item failures are part of the 200 response.
func (h *HttpHandlers) HandleScheduleProject(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleScheduleProject")
	defer span.End()

	project, ok := h.loadProject(c, span)
	if !ok {
		return
	}
	res, err := h.scheduler.ScheduleProject(ctx, project.UserID, project)
	if err != nil {
		h.abortWithError(c, span, err, "Project not found", "Failed to schedule todo items")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *HttpHandlers) HandleScheduleTodo(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleScheduleTodo")
	defer span.End()

	project, ok := h.loadProject(c, span)
	if !ok {
		return
	}
	todoID := c.Param("todo_id")
	span.SetAttributes(attribute.String("todo.id", todoID))

	res, err := h.scheduler.ScheduleTodo(ctx, project.UserID, project, todoID)
	if err != nil {
		h.abortWithError(c, span, err, "Todo item not found", "Failed to schedule todo item")
		return
	}
	c.JSON(http.StatusOK, res)
}
