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

package models

import (
	"sort"
	"time"
)

// Project is a user-defined goal holding to-do items and an optional plan.
type Project struct {
	ID          string     `firestore:"id" json:"id"`
	UserID      string     `firestore:"userID" json:"user_id"`
	Title       string     `firestore:"title" json:"title"`
	Description *string    `firestore:"description,omitempty" json:"description"`
	DueDate     *time.Time `firestore:"dueDate,omitempty" json:"due_date"`
	Plan        *string    `firestore:"plan,omitempty" json:"plan"`
	Category    string     `firestore:"category" json:"category"`
	CreatedAt   time.Time  `firestore:"createdAt" json:"created_at"`
	UpdatedAt   time.Time  `firestore:"updatedAt" json:"updated_at"`
	Todos       []TodoItem `firestore:"-" json:"todos"`
}

// HasPlan reports whether a non-empty plan is stored.
func (p *Project) HasPlan() bool {
	return p.Plan != nil && *p.Plan != ""
}

// NextOrderIndex returns the order index following the highest one in use.
func (p *Project) NextOrderIndex() int {
	next := 0
	for _, t := range p.Todos {
		if t.OrderIndex != nil && *t.OrderIndex >= next {
			next = *t.OrderIndex + 1
		}
	}
	if next < len(p.Todos) {
		next = len(p.Todos)
	}
	return next
}

// TodoItem is a single actionable item of a project.
type TodoItem struct {
	ID              string     `firestore:"id" json:"id"`
	ProjectID       string     `firestore:"projectID" json:"project_id"`
	Text            string     `firestore:"text" json:"text"`
	Completed       bool       `firestore:"completed" json:"completed"`
	DueDate         *time.Time `firestore:"dueDate,omitempty" json:"due_date"`
	OrderIndex      *int       `firestore:"orderIndex,omitempty" json:"order_index"`
	CalendarEventID *string    `firestore:"calendarEventID,omitempty" json:"calendar_event_id"`
	CreatedAt       time.Time  `firestore:"createdAt" json:"created_at"`
}

// Scheduled reports whether the item is linked to a calendar event.
func (t *TodoItem) Scheduled() bool {
	return t.CalendarEventID != nil && *t.CalendarEventID != ""
}

// SortTodos orders items by order index, then by creation time. Items
// without an index sort after indexed ones.
func SortTodos(todos []TodoItem) {
	sort.SliceStable(todos, func(i, j int) bool {
		a, b := todos[i], todos[j]
		switch {
		case a.OrderIndex != nil && b.OrderIndex != nil && *a.OrderIndex != *b.OrderIndex:
			return *a.OrderIndex < *b.OrderIndex
		case a.OrderIndex != nil && b.OrderIndex == nil:
			return true
		case a.OrderIndex == nil && b.OrderIndex != nil:
			return false
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

// SortProjects orders projects by most recently updated first.
func SortProjects(projects []Project) {
	sort.SliceStable(projects, func(i, j int) bool {
		return projects[i].UpdatedAt.After(projects[j].UpdatedAt)
	})
}
