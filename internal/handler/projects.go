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
	"blockarchitech.com/smartlife/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// loadProject resolves the :id path parameter to a project owned by the
// caller. Projects owned by someone else are reported as missing.
func (h *HttpHandlers) loadProject(c *gin.Context, span trace.Span) (*models.Project, bool) {
	user, ok := mustUser(c)
	if !ok {
		return nil, false
	}
	projectID := c.Param("id")
	span.SetAttributes(attribute.String("project.id", projectID))

	project, err := h.repo.GetProject(c.Request.Context(), user.ID, projectID)
	if err != nil {
		h.abortWithError(c, span, err, "Project not found", "Failed to load project")
		return nil, false
	}
	if project == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return nil, false
	}
	if project.Todos == nil {
		project.Todos = []models.TodoItem{}
	}
	return project, true
}

// parseOptionalDate parses a due date field. A blank value clears the date.
func parseOptionalDate(c *gin.Context, field string, raw *string) (*time.Time, bool) {
	if raw == nil {
		return nil, true
	}
	t, err := utils.ParseDate(*raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": field + ": " + err.Error()})
		return nil, false
	}
	return t, true
}

func optionalText(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// touchProject bumps the project's updated_at after a change to its children.
func (h *HttpHandlers) touchProject(c *gin.Context, project *models.Project) {
	project.UpdatedAt = time.Now().UTC()
	if err := h.repo.TouchProject(c.Request.Context(), project.UserID, project.ID, project.UpdatedAt); err != nil {
		h.logger.Warn("Failed to bump project timestamp", zap.String("projectID", project.ID), zap.Error(err))
	}
}

func (h *HttpHandlers) HandleListProjects(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleListProjects")
	defer span.End()

	user, ok := mustUser(c)
	if !ok {
		return
	}
	projects, err := h.repo.ListProjects(ctx, user.ID)
	if err != nil {
		h.abortWithError(c, span, err, "", "Failed to list projects")
		return
	}
	for i := range projects {
		if projects[i].Todos == nil {
			projects[i].Todos = []models.TodoItem{}
		}
	}
	c.JSON(http.StatusOK, projects)
}

func (h *HttpHandlers) HandleCreateProject(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleCreateProject")
	defer span.End()

	user, ok := mustUser(c)
	if !ok {
		return
	}
	var req app.CreateProjectRequest
	if !bindJSON(c, &req) {
		return
	}
	due, ok := parseOptionalDate(c, "due_date", req.DueDate)
	if !ok {
		return
	}
	category := req.Category
	if category == "" {
		category = models.CategoryWorkStudy
	}

	now := time.Now().UTC()
	project := &models.Project{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		Title:       strings.TrimSpace(req.Title),
		Description: optionalText(req.Description),
		DueDate:     due,
		Category:    category,
		CreatedAt:   now,
		UpdatedAt:   now,
		Todos:       []models.TodoItem{},
	}
	if err := h.repo.CreateProject(ctx, project); err != nil {
		h.abortWithError(c, span, err, "", "Failed to create project")
		return
	}
	h.logger.Info("Project created", zap.String("userID", user.ID), zap.String("projectID", project.ID))
	c.JSON(http.StatusCreated, project)
}

func (h *HttpHandlers) HandleGetProject(c *gin.Context) {
	_, span := h.Tracer.Start(c.Request.Context(), "HandleGetProject")
	defer span.End()

	project, ok := h.loadProject(c, span)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, project)
}

// HandleUpdateProject changes only the fields present in the body.
func (h *HttpHandlers) HandleUpdateProject(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleUpdateProject")
	defer span.End()

	project, ok := h.loadProject(c, span)
	if !ok {
		return
	}
	var req app.UpdateProjectRequest
	if !bindJSON(c, &req) {
		return
	}

	if req.Title != nil {
		project.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		project.Description = optionalText(req.Description)
	}
	if req.DueDate != nil {
		due, ok := parseOptionalDate(c, "due_date", req.DueDate)
		if !ok {
			return
		}
		project.DueDate = due
	}
	if req.Category != nil {
		project.Category = *req.Category
	}
	project.UpdatedAt = time.Now().UTC()

	if err := h.repo.UpdateProject(ctx, project); err != nil {
		h.abortWithError(c, span, err, "Project not found", "Failed to update project")
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *HttpHandlers) HandleDeleteProject(c *gin.Context) {
	ctx, span := h.Tracer.Start(c.Request.Context(), "HandleDeleteProject")
	defer span.End()

	user, ok := mustUser(c)
	if !ok {
		return
	}
	projectID := c.Param("id")
	if err := h.repo.DeleteProject(ctx, user.ID, projectID); err != nil {
		h.abortWithError(c, span, err, "Project not found", "Failed to delete project")
		return
	}
	h.logger.Info("Project deleted", zap.String("userID", user.ID), zap.String("projectID", projectID))
	c.Status(http.StatusNoContent)
}
