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
	"errors"
	"time"

	"blockarchitech.com/smartlife/internal/models"
)

var (
	// ErrNotFound is returned by updates and deletes that match no record.
	// Lookups return nil, nil instead.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail is returned when creating a user whose email is taken.
	ErrDuplicateEmail = errors.New("email already registered")
)

// UserRepository stores accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

// ChatRepository stores general chat turns.
type ChatRepository interface {
	AddChatMessage(ctx context.Context, msg *models.ChatMessage) error
	// ListChatMessages returns the user's turns in chronological order. A
	// positive limit keeps only the most recent turns.
	ListChatMessages(ctx context.Context, userID string, limit int) ([]models.ChatMessage, error)
}

// ProjectRepository stores projects. Reads are scoped to the owning user and
// include the project's to-do items.
type ProjectRepository interface {
	CreateProject(ctx context.Context, project *models.Project) error
	GetProject(ctx context.Context, userID, projectID string) (*models.Project, error)
	// ListProjects returns the user's projects, most recently updated first.
	ListProjects(ctx context.Context, userID string) ([]models.Project, error)
	// UpdateProject writes the editable fields: title, description, due date,
	// category and updated_at. The plan and the to-do items are left alone.
	UpdateProject(ctx context.Context, project *models.Project) error
	// SetProjectPlan replaces only the plan and updated_at. A nil plan clears it.
	SetProjectPlan(ctx context.Context, userID, projectID string, plan *string, updatedAt time.Time) error
	// TouchProject sets only updated_at.
	TouchProject(ctx context.Context, userID, projectID string, updatedAt time.Time) error
	// DeleteProject removes the project with its to-do items and chat turns.
	DeleteProject(ctx context.Context, userID, projectID string) error
}

// TodoRepository stores to-do items of a project.
type TodoRepository interface {
	// CreateTodos inserts all items atomically.
	CreateTodos(ctx context.Context, projectID string, todos []models.TodoItem) error
	GetTodo(ctx context.Context, projectID, todoID string) (*models.TodoItem, error)
	// UpdateTodo writes text, completion, due date and order. The calendar
	// event link is only written by SetTodoEventID.
	UpdateTodo(ctx context.Context, todo *models.TodoItem) error
	SetTodoEventID(ctx context.Context, projectID, todoID, eventID string) error
	DeleteTodo(ctx context.Context, projectID, todoID string) error
}

// ProjectChatRepository stores project-scoped chat turns.
type ProjectChatRepository interface {
	AddProjectMessage(ctx context.Context, msg *models.ProjectChatMessage) error
	// ListProjectMessages returns the project's turns in chronological order.
	// A positive limit keeps only the most recent turns.
	ListProjectMessages(ctx context.Context, projectID string, limit int) ([]models.ProjectChatMessage, error)
}

// SettingsRepository stores preferences and calendar credentials.
type SettingsRepository interface {
	GetPreferences(ctx context.Context, userID string) (*models.Preferences, error)
	SavePreferences(ctx context.Context, prefs *models.Preferences) error
	GetCalendarCredential(ctx context.Context, userID string) (*models.CalendarCredential, error)
	SaveCalendarCredential(ctx context.Context, cred *models.CalendarCredential) error
	// DeleteCalendarCredential succeeds when no credential is stored.
	DeleteCalendarCredential(ctx context.Context, userID string) error
}

// Repository defines the interface for storing and retrieving application data.
type Repository interface {
	UserRepository
	ChatRepository
	ProjectRepository
	TodoRepository
	ProjectChatRepository
	SettingsRepository
	Close() error
}
