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

// ProposedProject is a project suggested by the assistant. It is only
// created when the user explicitly accepts it.
type ProposedProject struct {
	Title       string `firestore:"title" json:"title"`
	Description string `firestore:"description,omitempty" json:"description,omitempty"`
	DueDate     string `firestore:"dueDate,omitempty" json:"due_date,omitempty"`
	Category    string `firestore:"category,omitempty" json:"category,omitempty"`
}

// ChatMessage is one turn of the general assistant chat.
type ChatMessage struct {
	ID               string            `firestore:"id" json:"id"`
	UserID           string            `firestore:"userID" json:"-"`
	Message          string            `firestore:"message" json:"message"`
	Response         string            `firestore:"response" json:"response"`
	ProposedProjects []ProposedProject `firestore:"proposedProjects,omitempty" json:"proposed_projects,omitempty"`
	Timestamp        time.Time         `firestore:"timestamp" json:"timestamp"`
}

// ProjectChatMessage is one turn of a project-scoped chat.
type ProjectChatMessage struct {
	ID        string    `firestore:"id" json:"id"`
	ProjectID string    `firestore:"projectID" json:"project_id"`
	Message   string    `firestore:"message" json:"message"`
	Response  string    `firestore:"response" json:"response"`
	Timestamp time.Time `firestore:"timestamp" json:"timestamp"`
}

// SortChatMessages orders turns chronologically.
func SortChatMessages(msgs []ChatMessage) {
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Timestamp.Before(msgs[j].Timestamp) })
}

// SortProjectChatMessages orders turns chronologically.
func SortProjectChatMessages(msgs []ProjectChatMessage) {
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Timestamp.Before(msgs[j].Timestamp) })
}
