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

// Package app holds the request and response bodies of the HTTP JSON API.
package app

import (
	"strings"
	"time"

	"blockarchitech.com/smartlife/internal/models"
)

type SignupRequest struct {
	Email    string  `json:"email" binding:"required,email"`
	Password string  `json:"password" binding:"required,min=6,max=72"`
	Name     *string `json:"name" binding:"omitempty,max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID    string  `json:"id"`
	Email string  `json:"email"`
	Name  *string `json:"name"`
}

func NewUserResponse(u *models.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, Name: u.Name}
}

type AuthResponse struct {
	User  UserResponse `json:"user"`
	Token string       `json:"token"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=6,max=72"`
}

type ChatRequest struct {
	Message          string                   `json:"message" binding:"required,notblank"`
	ExistingProjects []models.ProposedProject `json:"existing_projects"`
}

type ChatResponse struct {
	ID                   string                   `json:"id"`
	Message              string                   `json:"message"`
	Response             string                   `json:"response"`
	ProposedProjects     []models.ProposedProject `json:"proposed_projects"`
	RequiresConfirmation bool                     `json:"requires_confirmation"`
	Timestamp            time.Time                `json:"timestamp"`
}

func NewChatResponse(m *models.ChatMessage) ChatResponse {
	proposals := m.ProposedProjects
	if proposals == nil {
		proposals = []models.ProposedProject{}
	}
	return ChatResponse{
		ID:                   m.ID,
		Message:              m.Message,
		Response:             m.Response,
		ProposedProjects:     proposals,
		RequiresConfirmation: len(proposals) > 0,
		Timestamp:            m.Timestamp,
	}
}

type ProjectChatRequest struct {
	Message string `json:"message" binding:"required,notblank"`
}

type CreateProjectRequest struct {
	Title       string  `json:"title" binding:"required,notblank,max=200"`
	Description *string `json:"description"`
	DueDate     *string `json:"due_date"`
	Category    string  `json:"category" binding:"omitempty,category"`
}

// UpdateProjectRequest changes only the fields that are present.
type UpdateProjectRequest struct {
	Title       *string `json:"title" binding:"omitempty,notblank,max=200"`
	Description *string `json:"description"`
	DueDate     *string `json:"due_date"`
	Category    *string `json:"category" binding:"omitempty,category"`
}

type CreateTodoRequest struct {
	Text       string  `json:"text" binding:"required,notblank"`
	DueDate    *string `json:"due_date"`
	OrderIndex *int    `json:"order_index" binding:"omitempty,min=0"`
}

// UpdateTodoRequest changes only the fields that are present.
type UpdateTodoRequest struct {
	Text       *string `json:"text" binding:"omitempty,notblank"`
	Completed  *bool   `json:"completed"`
	DueDate    *string `json:"due_date"`
	OrderIndex *int    `json:"order_index" binding:"omitempty,min=0"`
}

type PlanRequest struct {
	Plan *string `json:"plan"`
}

type GeneratePlanRequest struct {
	Clarification string `json:"clarification"`
}

type PlanResponse struct {
	Plan               *string `json:"plan"`
	NeedsClarification bool    `json:"needs_clarification"`
}

type GenerateTodosResponse struct {
	Todos []models.TodoItem `json:"todos"`
	Count int               `json:"count"`
}

type AuthorizeResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
}

type CalendarStatusResponse struct {
	Connected bool   `json:"connected"`
	Email     string `json:"email,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
	Email   string `json:"email,omitempty"`
}

// TimeWindowInput is one category's window in a preferences update.
type TimeWindowInput struct {
	Weekdays *string `json:"weekdays" binding:"omitempty,timewindow"`
	Weekends *string `json:"weekends" binding:"omitempty,timewindow"`
	AllTime  bool    `json:"all_time"`
}

func (in TimeWindowInput) toModel() models.TimeWindow {
	return models.TimeWindow{
		Weekdays: blankToNil(in.Weekdays),
		Weekends: blankToNil(in.Weekends),
		AllTime:  in.AllTime,
	}
}

type PreferencesRequest struct {
	WorkStudy     TimeWindowInput `json:"work_study"`
	GymActivity   TimeWindowInput `json:"gym_activity"`
	PersonalGoals TimeWindowInput `json:"personal_goals"`
	Timezone      string          `json:"timezone" binding:"omitempty,timezone"`
}

// ToModel converts the request into stored preferences for userID.
func (r PreferencesRequest) ToModel(userID string) models.Preferences {
	return models.Preferences{
		UserID:        userID,
		WorkStudy:     r.WorkStudy.toModel(),
		GymActivity:   r.GymActivity.toModel(),
		PersonalGoals: r.PersonalGoals.toModel(),
		Timezone:      r.Timezone,
	}
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
