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
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"blockarchitech.com/smartlife/internal/models"
	"blockarchitech.com/smartlife/internal/utils"
)

// MaxHistoryTurns bounds how many earlier turns are replayed to the model.
const MaxHistoryTurns = 20

const chatInstruction = `You are SmartLife, a friendly personal productivity assistant.
Help the user think through goals, habits and tasks. Keep answers short and practical.
When the user describes something they want to achieve, you may propose projects for it.
A proposed project has a short title, an optional one sentence description, an optional
due date formatted YYYY-MM-DD and a category: work_study, gym_activity or personal_goals.
Never propose a project whose title matches one the user already has.
Respond with JSON: {"response": "<your reply>", "proposed_projects": [...]}. Use an empty
list when nothing should be proposed.`

const projectChatInstruction = `You are SmartLife, a productivity assistant helping the user with one project.
Answer questions about the project, its plan and its to-do items. Keep answers short,
concrete and in plain text without code blocks.`

const planInstruction = `You create execution plans for personal projects.
Write a clear step by step plan in plain text with numbered phases and concrete actions.
If the project is too vague to plan well and no clarification was given, ask exactly one
clarifying question instead and set needs_clarification to true.
Respond with JSON: {"plan": "<plan or question>", "needs_clarification": <bool>}.`

const todosInstruction = `You turn execution plans into actionable to-do items.
Each item is one short imperative sentence. Add a due date formatted YYYY-MM-DD only
when the plan implies one and it falls before the project due date.
Respond with JSON: {"todos": [{"text": "...", "due_date": "YYYY-MM-DD"}]}.`

// ChatTurn is one earlier exchange replayed as conversation history.
type ChatTurn struct {
	Message  string
	Response string
}

// ChatReply is the assistant's answer to a general chat message.
type ChatReply struct {
	Response         string
	ProposedProjects []models.ProposedProject
}

// PlanResult is either a plan or, when NeedsClarification is set, a question.
type PlanResult struct {
	Plan               string `json:"plan"`
	NeedsClarification bool   `json:"needs_clarification"`
}

// GeneratedTodo is a to-do item derived from a plan.
type GeneratedTodo struct {
	Text    string
	DueDate *time.Time
}

// BuildProjectContext renders the project block handed to the model.
func BuildProjectContext(p *models.Project) string {
	var b strings.Builder
	b.WriteString("Project: " + p.Title + "\n")
	desc := "No description"
	if p.Description != nil && strings.TrimSpace(*p.Description) != "" {
		desc = *p.Description
	}
	b.WriteString("Description: " + desc + "\n")
	b.WriteString("Due Date: " + utils.FormatDate(p.DueDate, "Not set") + "\n")
	b.WriteString("\nTodo Items:\n")
	if len(p.Todos) == 0 {
		b.WriteString("No todo items yet")
	}
	for i, t := range p.Todos {
		mark := "○"
		if t.Completed {
			mark = "✓"
		}
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(strconv.Itoa(i+1) + ". [" + mark + "] " + t.Text)
	}
	return b.String()
}

func projectPrompt(p *models.Project) string {
	ctx := BuildProjectContext(p)
	if p.HasPlan() {
		ctx += "\n\nCurrent Plan:\n" + *p.Plan
	}
	return ctx
}

var (
	fencedCode = regexp.MustCompile("(?s)\x60\x60\x60.*?\x60\x60\x60")
	inlineCode = regexp.MustCompile("\x60([^\x60\n]*)\x60")
	blankRuns  = regexp.MustCompile(`\n[ \t]*\n(?:[ \t]*\n)+`)
)

// CleanResponse removes code formatting from model output and collapses
// runs of blank lines.
func CleanResponse(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = fencedCode.ReplaceAllString(s, "")
	s = inlineCode.ReplaceAllString(s, "$1")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// extractJSON returns the outermost JSON object in text, tolerating code
// fences and chatter around it.
func extractJSON(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", errors.New("no JSON object in model response")
	}
	return text[start : end+1], nil
}

func recentTurns(history []ChatTurn) []ChatTurn {
	if len(history) > MaxHistoryTurns {
		return history[len(history)-MaxHistoryTurns:]
	}
	return history
}

type chatPayload struct {
	Response         string                   `json:"response"`
	ProposedProjects []models.ProposedProject `json:"proposed_projects"`
}

func parseChatReply(raw string, existing []models.ProposedProject) (*ChatReply, error) {
	text, err := extractJSON(raw)
	if err != nil {
		// plain prose is still a usable answer
		return &ChatReply{Response: CleanResponse(raw), ProposedProjects: []models.ProposedProject{}}, nil
	}
	var payload chatPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, fmt.Errorf("failed to decode chat reply: %w", err)
	}
	response := CleanResponse(payload.Response)
	if response == "" {
		return nil, errors.New("empty response from model")
	}
	return &ChatReply{
		Response:         response,
		ProposedProjects: normalizeProposals(payload.ProposedProjects, existing),
	}, nil
}

// normalizeProposals drops blank and duplicate titles, including titles the
// user already has, and fills in a valid category.
func normalizeProposals(in, existing []models.ProposedProject) []models.ProposedProject {
	seen := make(map[string]bool, len(existing)+len(in))
	for _, e := range existing {
		seen[strings.ToLower(strings.TrimSpace(e.Title))] = true
	}
	out := []models.ProposedProject{}
	for _, p := range in {
		p.Title = strings.TrimSpace(p.Title)
		key := strings.ToLower(p.Title)
		if p.Title == "" || seen[key] {
			continue
		}
		seen[key] = true
		p.Description = strings.TrimSpace(p.Description)
		if !models.ValidCategory(p.Category) {
			p.Category = models.CategoryWorkStudy
		}
		if due, err := utils.ParseDate(p.DueDate); err != nil || due == nil {
			p.DueDate = ""
		} else {
			p.DueDate = due.Format(utils.DateLayout)
		}
		out = append(out, p)
	}
	return out
}

func parsePlan(raw string) (*PlanResult, error) {
	text, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}
	var res PlanResult
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	res.Plan = CleanResponse(res.Plan)
	if res.Plan == "" {
		return nil, errors.New("empty plan from model")
	}
	return &res, nil
}

type todosPayload struct {
	Todos []struct {
		Text    string `json:"text"`
		DueDate string `json:"due_date"`
	} `json:"todos"`
}

func parseTodos(raw string) ([]GeneratedTodo, error) {
	text, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}
	var payload todosPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, fmt.Errorf("failed to decode todos: %w", err)
	}
	out := make([]GeneratedTodo, 0, len(payload.Todos))
	for _, t := range payload.Todos {
		item := GeneratedTodo{Text: strings.TrimSpace(t.Text)}
		if item.Text == "" {
			continue
		}
		if due, err := utils.ParseDate(t.DueDate); err == nil {
			item.DueDate = due
		}
		out = append(out, item)
	}
	return out, nil
}
