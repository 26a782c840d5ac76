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

import (
	"context"
	"strings"
	"time"

	"blockarchitech.com/smartlife/internal/models"
	"blockarchitech.com/smartlife/internal/repository"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// PlannerStore is the persistence the planner needs.
type PlannerStore interface {
	repository.ChatRepository
	repository.ProjectRepository
	repository.TodoRepository
	repository.ProjectChatRepository
}

// Planner runs assistant conversations and turns their results into stored
// chat turns, plans and to-do items. Nothing is stored when the assistant fails.
type Planner struct {
	store     PlannerStore
	assistant Assistant
	now       func() time.Time
	tracer    trace.Tracer
	logger    *zap.Logger
}

// NewPlanner creates a new Planner.
func NewPlanner(store PlannerStore, assistant Assistant, tracer trace.Tracer, logger *zap.Logger) *Planner {
	return &Planner{
		store:     store,
		assistant: assistant,
		now:       func() time.Time { return time.Now().UTC() },
		tracer:    tracer,
		logger:    logger.Named("planner"),
	}
}

// Chat answers a general chat message. existing lists projects the client
// already shows; the user's stored projects are added to it.
func (p *Planner) Chat(ctx context.Context, userID, message string, existing []models.ProposedProject) (*models.ChatMessage, error) {
	ctx, span := p.tracer.Start(ctx, "Planner.Chat")
	defer span.End()

	history, err := p.store.ListChatMessages(ctx, userID, MaxHistoryTurns)
	if err != nil {
		return nil, err
	}
	turns := make([]ChatTurn, 0, len(history))
	for _, m := range history {
		turns = append(turns, ChatTurn{Message: m.Message, Response: m.Response})
	}

	projects, err := p.store.ListProjects(ctx, userID)
	if err != nil {
		return nil, err
	}
	known := append([]models.ProposedProject{}, existing...)
	for _, proj := range projects {
		known = append(known, models.ProposedProject{Title: proj.Title})
	}

	reply, err := p.assistant.Chat(ctx, turns, message, known)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	msg := &models.ChatMessage{
		ID:               uuid.NewString(),
		UserID:           userID,
		Message:          message,
		Response:         reply.Response,
		ProposedProjects: reply.ProposedProjects,
		Timestamp:        p.now(),
	}
	if msg.ProposedProjects == nil {
		msg.ProposedProjects = []models.ProposedProject{}
	}
	if err := p.store.AddChatMessage(ctx, msg); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("chat.proposals", len(msg.ProposedProjects)))
	return msg, nil
}

// ProjectChat answers a message about one project.
func (p *Planner) ProjectChat(ctx context.Context, project *models.Project, message string) (*models.ProjectChatMessage, error) {
	ctx, span := p.tracer.Start(ctx, "Planner.ProjectChat")
	defer span.End()

	history, err := p.store.ListProjectMessages(ctx, project.ID, MaxHistoryTurns)
	if err != nil {
		return nil, err
	}
	turns := make([]ChatTurn, 0, len(history))
	for _, m := range history {
		turns = append(turns, ChatTurn{Message: m.Message, Response: m.Response})
	}

	response, err := p.assistant.ProjectChat(ctx, project, turns, message)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	msg := &models.ProjectChatMessage{
		ID:        uuid.NewString(),
		ProjectID: project.ID,
		Message:   message,
		Response:  response,
		Timestamp: p.now(),
	}
	if err := p.store.AddProjectMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// GeneratePlan asks for a new or refined plan. A clarifying question is
// returned without touching the stored plan.
func (p *Planner) GeneratePlan(ctx context.Context, project *models.Project, clarification string) (*PlanResult, error) {
	ctx, span := p.tracer.Start(ctx, "Planner.GeneratePlan")
	defer span.End()

	res, err := p.assistant.GeneratePlan(ctx, project, strings.TrimSpace(clarification))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Bool("plan.needs_clarification", res.NeedsClarification))
	if res.NeedsClarification {
		return res, nil
	}
	plan := res.Plan
	now := p.now()
	if err := p.store.SetProjectPlan(ctx, project.UserID, project.ID, &plan, now); err != nil {
		return nil, err
	}
	project.Plan = &plan
	project.UpdatedAt = now
	p.logger.Info("Stored generated plan", zap.String("projectID", project.ID))
	return res, nil
}

// GenerateTodos derives to-do items from the stored plan and appends them
// after the project's existing items.
func (p *Planner) GenerateTodos(ctx context.Context, project *models.Project) ([]models.TodoItem, error) {
	ctx, span := p.tracer.Start(ctx, "Planner.GenerateTodos")
	defer span.End()

	if !project.HasPlan() {
		return nil, ErrNoPlan
	}
	generated, err := p.assistant.GenerateTodos(ctx, project)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	now := p.now()
	next := project.NextOrderIndex()
	items := make([]models.TodoItem, 0, len(generated))
	for i, g := range generated {
		order := next + i
		items = append(items, models.TodoItem{
			ID:         uuid.NewString(),
			ProjectID:  project.ID,
			Text:       g.Text,
			DueDate:    g.DueDate,
			OrderIndex: &order,
			CreatedAt:  now,
		})
	}
	if len(items) == 0 {
		return items, nil
	}
	if err := p.store.CreateTodos(ctx, project.ID, items); err != nil {
		return nil, err
	}
	if err := p.store.TouchProject(ctx, project.UserID, project.ID, now); err != nil {
		return nil, err
	}
	project.UpdatedAt = now
	span.SetAttributes(attribute.Int("todos.generated", len(items)))
	p.logger.Info("Stored generated todos", zap.String("projectID", project.ID), zap.Int("count", len(items)))
	return items, nil
}
