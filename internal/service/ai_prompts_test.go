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
	"strings"
	"testing"
	"time"

	"blockarchitech.com/smartlife/internal/models"
	"blockarchitech.com/smartlife/internal/utils"
)

func TestBuildProjectContext(t *testing.T) {
	due := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		project models.Project
		want    string
	}{
		{
			name:    "empty project",
			project: models.Project{Title: "Learn Go"},
			want:    "Project: Learn Go\nDescription: No description\nDue Date: Not set\n\nTodo Items:\nNo todo items yet",
		},
		{
			name: "with todos",
			project: models.Project{
				Title:       "Marathon",
				Description: utils.StringPtr("Run 42km"),
				DueDate:     &due,
				Todos: []models.TodoItem{
					{Text: "Buy shoes", Completed: true},
					{Text: "Run 5k"},
				},
			},
			want: "Project: Marathon\nDescription: Run 42km\nDue Date: 2025-06-01\n\nTodo Items:\n1. [✓] Buy shoes\n2. [○] Run 5k",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildProjectContext(&tt.project); got != tt.want {
				t.Errorf("BuildProjectContext() =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestProjectPromptIncludesPlan(t *testing.T) {
	p := &models.Project{Title: "X", Plan: utils.StringPtr("1. Do it")}
	if got := projectPrompt(p); !strings.HasSuffix(got, "Current Plan:\n1. Do it") {
		t.Errorf("projectPrompt() = %q", got)
	}
}

func TestCleanResponse(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello", "Hello"},
		{"Use \x60go test\x60 often", "Use go test often"},
		{"Before\n\x60\x60\x60go\nfmt.Println()\n\x60\x60\x60\nAfter", "Before\n\nAfter"},
		{"a\n\n\n\n b", "a\n\n b"},
		{"  padded \r\n", "padded"},
	}
	for _, tt := range tests {
		if got := CleanResponse(tt.in); got != tt.want {
			t.Errorf("CleanResponse(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseChatReply(t *testing.T) {
	raw := "\x60\x60\x60json\n" + `{"response": "Sounds great!", "proposed_projects": [
		{"title": "Run a 5k", "category": "gym_activity", "due_date": "2025-05-01"},
		{"title": "run a 5K"},
		{"title": "Learn Go", "category": "bogus"},
		{"title": "  "},
		{"title": "Read more", "due_date": "next week"}
	]}` + "\n\x60\x60\x60"
	existing := []models.ProposedProject{{Title: "learn go"}}

	reply, err := parseChatReply(raw, existing)
	if err != nil {
		t.Fatalf("parseChatReply: %v", err)
	}
	if reply.Response != "Sounds great!" {
		t.Errorf("Response = %q", reply.Response)
	}
	if len(reply.ProposedProjects) != 2 {
		t.Fatalf("ProposedProjects = %+v", reply.ProposedProjects)
	}
	first, second := reply.ProposedProjects[0], reply.ProposedProjects[1]
	if first.Title != "Run a 5k" || first.Category != models.CategoryGymActivity || first.DueDate != "2025-05-01" {
		t.Errorf("first proposal = %+v", first)
	}
	if second.Title != "Read more" || second.Category != models.CategoryWorkStudy || second.DueDate != "" {
		t.Errorf("second proposal = %+v", second)
	}
}

func TestParseChatReplyPlainText(t *testing.T) {
	reply, err := parseChatReply("Just text", nil)
	if err != nil {
		t.Fatalf("parseChatReply: %v", err)
	}
	if reply.Response != "Just text" || len(reply.ProposedProjects) != 0 {
		t.Errorf("reply = %+v", reply)
	}
}

func TestParsePlan(t *testing.T) {
	res, err := parsePlan(`{"plan": "What is your budget?", "needs_clarification": true}`)
	if err != nil {
		t.Fatalf("parsePlan: %v", err)
	}
	if !res.NeedsClarification || res.Plan != "What is your budget?" {
		t.Errorf("parsePlan = %+v", res)
	}
	if _, err := parsePlan(`{"plan": "", "needs_clarification": false}`); err == nil {
		t.Error("parsePlan accepted an empty plan")
	}
	if _, err := parsePlan("no json here"); err == nil {
		t.Error("parsePlan accepted prose")
	}
}

func TestParseTodos(t *testing.T) {
	todos, err := parseTodos(`{"todos": [{"text": "Buy shoes", "due_date": "2025-04-01"}, {"text": " "}, {"text": "Stretch", "due_date": "soon"}]}`)
	if err != nil {
		t.Fatalf("parseTodos: %v", err)
	}
	if len(todos) != 2 {
		t.Fatalf("todos = %+v", todos)
	}
	if todos[0].DueDate == nil || todos[0].DueDate.Format(utils.DateLayout) != "2025-04-01" {
		t.Errorf("first due = %v", todos[0].DueDate)
	}
	if todos[1].Text != "Stretch" || todos[1].DueDate != nil {
		t.Errorf("second = %+v", todos[1])
	}
}

func TestRecentTurns(t *testing.T) {
	history := make([]ChatTurn, MaxHistoryTurns+5)
	for i := range history {
		history[i] = ChatTurn{Message: string(rune('a' + i%26))}
	}
	got := recentTurns(history)
	if len(got) != MaxHistoryTurns || got[0] != history[5] {
		t.Errorf("recentTurns kept %d turns starting at %+v", len(got), got[0])
	}
}
