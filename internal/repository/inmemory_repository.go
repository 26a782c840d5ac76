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

package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"blockarchitech.com/smartlife/internal/models"
	"go.uber.org/zap"
)

// InMemoryRepository is an in-memory implementation of the Repository.
// Records are copied on the way in and out so callers never share state
// with the store.
type InMemoryRepository struct {
	mu              sync.RWMutex
	users           map[string]*models.User
	userIDByEmail   map[string]string
	chat            map[string][]models.ChatMessage
	projects        map[string]*models.Project
	todos           map[string]map[string]*models.TodoItem
	projectMessages map[string][]models.ProjectChatMessage
	preferences     map[string]*models.Preferences
	credentials     map[string]*models.CalendarCredential
	logger          *zap.Logger
}

// NewInMemoryRepository creates a new InMemoryRepository.
func NewInMemoryRepository(logger *zap.Logger) *InMemoryRepository {
	return &InMemoryRepository{
		users:           make(map[string]*models.User),
		userIDByEmail:   make(map[string]string),
		chat:            make(map[string][]models.ChatMessage),
		projects:        make(map[string]*models.Project),
		todos:           make(map[string]map[string]*models.TodoItem),
		projectMessages: make(map[string][]models.ProjectChatMessage),
		preferences:     make(map[string]*models.Preferences),
		credentials:     make(map[string]*models.CalendarCredential),
		logger:          logger.Named("inmemory_repo"),
	}
}

func (r *InMemoryRepository) CreateUser(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	email := strings.ToLower(user.Email)
	if _, exists := r.userIDByEmail[email]; exists {
		return ErrDuplicateEmail
	}
	if _, exists := r.users[user.ID]; exists {
		return fmt.Errorf("user with id %s already exists", user.ID)
	}
	u := *user
	u.Email = email
	r.users[user.ID] = &u
	r.userIDByEmail[email] = user.ID
	r.logger.Info("Created user in-memory", zap.String("userID", user.ID))
	return nil
}

func (r *InMemoryRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, exists := r.users[id]
	if !exists {
		return nil, nil
	}
	u := *user
	return &u, nil
}

func (r *InMemoryRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, exists := r.userIDByEmail[strings.ToLower(email)]
	if !exists {
		return nil, nil
	}
	u := *r.users[id]
	return &u, nil
}

func (r *InMemoryRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, exists := r.users[userID]
	if !exists {
		return ErrNotFound
	}
	user.PasswordHash = passwordHash
	return nil
}

func (r *InMemoryRepository) AddChatMessage(ctx context.Context, msg *models.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := *msg
	m.ProposedProjects = append([]models.ProposedProject(nil), msg.ProposedProjects...)
	r.chat[msg.UserID] = append(r.chat[msg.UserID], m)
	return nil
}

func (r *InMemoryRepository) ListChatMessages(ctx context.Context, userID string, limit int) ([]models.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := append([]models.ChatMessage{}, r.chat[userID]...)
	models.SortChatMessages(out)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *InMemoryRepository) CreateProject(ctx context.Context, project *models.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.projects[project.ID]; exists {
		return fmt.Errorf("project with id %s already exists", project.ID)
	}
	p := *project
	p.Todos = nil
	r.projects[project.ID] = &p
	r.todos[project.ID] = make(map[string]*models.TodoItem)
	for _, t := range project.Todos {
		item := t
		item.ProjectID = project.ID
		r.todos[project.ID][t.ID] = &item
	}
	r.logger.Info("Created project in-memory", zap.String("projectID", project.ID))
	return nil
}

// loadProject copies a project with its to-do items. Callers hold the lock.
func (r *InMemoryRepository) loadProject(p *models.Project) models.Project {
	out := *p
	out.Todos = make([]models.TodoItem, 0, len(r.todos[p.ID]))
	for _, t := range r.todos[p.ID] {
		out.Todos = append(out.Todos, *t)
	}
	models.SortTodos(out.Todos)
	return out
}

func (r *InMemoryRepository) GetProject(ctx context.Context, userID, projectID string) (*models.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, exists := r.projects[projectID]
	if !exists || p.UserID != userID {
		return nil, nil
	}
	out := r.loadProject(p)
	return &out, nil
}

func (r *InMemoryRepository) ListProjects(ctx context.Context, userID string) ([]models.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.Project{}
	for _, p := range r.projects {
		if p.UserID == userID {
			out = append(out, r.loadProject(p))
		}
	}
	models.SortProjects(out)
	return out, nil
}

func (r *InMemoryRepository) UpdateProject(ctx context.Context, project *models.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, exists := r.projects[project.ID]
	if !exists || existing.UserID != project.UserID {
		return ErrNotFound
	}
	existing.Title = project.Title
	existing.Description = project.Description
	existing.DueDate = project.DueDate
	existing.Category = project.Category
	existing.UpdatedAt = project.UpdatedAt
	return nil
}

// owned returns the stored project when userID owns it. Callers hold the lock.
func (r *InMemoryRepository) owned(userID, projectID string) (*models.Project, error) {
	p, exists := r.projects[projectID]
	if !exists || p.UserID != userID {
		return nil, ErrNotFound
	}
	return p, nil
}

func (r *InMemoryRepository) SetProjectPlan(ctx context.Context, userID, projectID string, plan *string, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, err := r.owned(userID, projectID)
	if err != nil {
		return err
	}
	if plan != nil {
		v := *plan
		plan = &v
	}
	p.Plan = plan
	p.UpdatedAt = updatedAt
	return nil
}

func (r *InMemoryRepository) TouchProject(ctx context.Context, userID, projectID string, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, err := r.owned(userID, projectID)
	if err != nil {
		return err
	}
	p.UpdatedAt = updatedAt
	return nil
}

func (r *InMemoryRepository) DeleteProject(ctx context.Context, userID, projectID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, exists := r.projects[projectID]
	if !exists || p.UserID != userID {
		return ErrNotFound
	}
	delete(r.projects, projectID)
	delete(r.todos, projectID)
	delete(r.projectMessages, projectID)
	r.logger.Info("Deleted project in-memory", zap.String("projectID", projectID))
	return nil
}

func (r *InMemoryRepository) CreateTodos(ctx context.Context, projectID string, todos []models.TodoItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	items, exists := r.todos[projectID]
	if !exists {
		return ErrNotFound
	}
	for _, t := range todos {
		if _, dup := items[t.ID]; dup {
			return fmt.Errorf("todo with id %s already exists", t.ID)
		}
	}
	for _, t := range todos {
		item := t
		item.ProjectID = projectID
		items[t.ID] = &item
	}
	return nil
}

func (r *InMemoryRepository) GetTodo(ctx context.Context, projectID, todoID string) (*models.TodoItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, exists := r.todos[projectID][todoID]
	if !exists {
		return nil, nil
	}
	out := *t
	return &out, nil
}

func (r *InMemoryRepository) UpdateTodo(ctx context.Context, todo *models.TodoItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, exists := r.todos[todo.ProjectID][todo.ID]
	if !exists {
		return ErrNotFound
	}
	t.Text = todo.Text
	t.Completed = todo.Completed
	t.DueDate = todo.DueDate
	t.OrderIndex = todo.OrderIndex
	return nil
}

func (r *InMemoryRepository) SetTodoEventID(ctx context.Context, projectID, todoID, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, exists := r.todos[projectID][todoID]
	if !exists {
		return ErrNotFound
	}
	t.CalendarEventID = &eventID
	return nil
}

func (r *InMemoryRepository) DeleteTodo(ctx context.Context, projectID, todoID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.todos[projectID][todoID]; !exists {
		return ErrNotFound
	}
	delete(r.todos[projectID], todoID)
	return nil
}

func (r *InMemoryRepository) AddProjectMessage(ctx context.Context, msg *models.ProjectChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.projects[msg.ProjectID]; !exists {
		return ErrNotFound
	}
	r.projectMessages[msg.ProjectID] = append(r.projectMessages[msg.ProjectID], *msg)
	return nil
}

func (r *InMemoryRepository) ListProjectMessages(ctx context.Context, projectID string, limit int) ([]models.ProjectChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := append([]models.ProjectChatMessage{}, r.projectMessages[projectID]...)
	models.SortProjectChatMessages(out)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *InMemoryRepository) GetPreferences(ctx context.Context, userID string) (*models.Preferences, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, exists := r.preferences[userID]
	if !exists {
		return nil, nil
	}
	out := *p
	return &out, nil
}

func (r *InMemoryRepository) SavePreferences(ctx context.Context, prefs *models.Preferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := *prefs
	r.preferences[prefs.UserID] = &p
	r.logger.Info("Updated user preferences in-memory", zap.String("userID", prefs.UserID))
	return nil
}

func (r *InMemoryRepository) GetCalendarCredential(ctx context.Context, userID string) (*models.CalendarCredential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, exists := r.credentials[userID]
	if !exists {
		return nil, nil
	}
	out := *c
	if c.Token != nil {
		tok := *c.Token
		out.Token = &tok
	}
	return &out, nil
}

func (r *InMemoryRepository) SaveCalendarCredential(ctx context.Context, cred *models.CalendarCredential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *cred
	if cred.Token != nil {
		tok := *cred.Token
		c.Token = &tok
	}
	r.credentials[cred.UserID] = &c
	return nil
}

func (r *InMemoryRepository) DeleteCalendarCredential(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.credentials, userID)
	return nil
}

func (r *InMemoryRepository) Close() error {
	r.logger.Info("Closing in-memory repository (no-op).")
	return nil
}
