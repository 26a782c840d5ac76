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
	"time"

	"blockarchitech.com/smartlife/internal/types/app"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *HttpHandlers) HandleGetPlan(c *gin.Context) {
	_, span := h.Tracer.Start(c.Request.Context(), "HandleGetPlan")
	defer span.End()

	project, ok := h.loadProject(c, span)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, app.PlanResponse{Plan: project.Plan})
}

// HandleUpdatePlan stores a plan edited by the user. An empty plan clears it.
func (h *HttpHandlers) HandleUpdatePlan(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleUpdatePlan")
	defer span.End()

	project, ok := h.loadProject(c, span)
	if !ok {
		return
	}
	var req app.PlanRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Plan == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "plan is required"})
		return
	}
	project.Plan = optionalText(req.Plan)
	project.UpdatedAt = time.Now().UTC()
	if err := h.repo.SetProjectPlan(ctx, project.UserID, project.ID, project.Plan, project.UpdatedAt); err != nil {
		h.abortWithError(c, span, err, "Project not found", "Failed to update plan")
		return
	}
	c.JSON(http.StatusOK, app.PlanResponse{Plan: project.Plan})
}

func (h *HttpHandlers) HandleDeletePlan(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleDeletePlan")
	defer span.End()

	project, ok := h.loadProject(c, span)
	if !ok {
		return
	}
	if err := h.repo.SetProjectPlan(ctx, project.UserID, project.ID, nil, time.Now().UTC()); err != nil {
		h.abortWithError(c, span, err, "Project not found", "Failed to clear plan")
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleGeneratePlan asks the assistant for a plan. When the assistant needs
// more information the question is returned and the stored plan is kept.
func (h *HttpHandlers) HandleGeneratePlan(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleGeneratePlan")
	defer span.End()

	project, ok := h.loadProject(c, span)
	if !ok {
		return
	}
	var req app.GeneratePlanRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	res, err := h.planner.GeneratePlan(ctx, project, req.Clarification)
	if err != nil {
		h.abortWithError(c, span, err, "Project not found", "Failed to generate plan")
		return
	}
	plan := res.Plan
	c.JSON(http.StatusOK, app.PlanResponse{Plan: &plan, NeedsClarification: res.NeedsClarification})
}

func (h *HttpHandlers) HandleGenerateTodos(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleGenerateTodos")
	defer span.End()

	project, ok := h.loadProject(c, span)
	if !ok {
		return
	}
	todos, err := h.planner.GenerateTodos(ctx, project)
	if err != nil {
		h.abortWithError(c, span, err, "Project not found", "Failed to generate todo items")
		return
	}
	h.logger.Info("Generated todos", zap.String("projectID", project.ID), zap.Int("count", len(todos)))
	c.JSON(http.StatusCreated, app.GenerateTodosResponse{Todos: todos, Count: len(todos)})
}
