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
	"errors"
	"fmt"
	"strings"
	"time"

	"blockarchitech.com/smartlife/internal/models"
	"github.com/google/generative-ai-go/genai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Assistant is the generative model behind chat, plans and to-do generation.
type Assistant interface {
	Chat(ctx context.Context, history []ChatTurn, message string, existing []models.ProposedProject) (*ChatReply, error)
	ProjectChat(ctx context.Context, project *models.Project, history []ChatTurn, message string) (string, error)
	GeneratePlan(ctx context.Context, project *models.Project, clarification string) (*PlanResult, error)
	GenerateTodos(ctx context.Context, project *models.Project) ([]GeneratedTodo, error)
}

const geminiTimeout = 60 * time.Second

func toPtr[T any](v T) *T {
	return &v
}

// GeminiAssistant implements Assistant on the Gemini API.
type GeminiAssistant struct {
	client  *genai.Client
	model   string
	tracer  trace.Tracer
	logger  *zap.Logger
	timeout time.Duration
}

// NewGeminiAssistant creates a Gemini client for the given model.
func NewGeminiAssistant(ctx context.Context, apiKey, model string, tracer trace.Tracer, logger *zap.Logger) (*GeminiAssistant, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiAssistant{
		client:  client,
		model:   model,
		tracer:  tracer,
		logger:  logger.Named("gemini_service"),
		timeout: geminiTimeout,
	}, nil
}

func (g *GeminiAssistant) Close() error {
	return g.client.Close()
}

func (g *GeminiAssistant) newModel(instruction string, schema *genai.Schema) *genai.GenerativeModel {
	model := g.client.GenerativeModel(g.model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(instruction)}}
	model.Temperature = toPtr(float32(0.7))
	if schema != nil {
		model.ResponseMIMEType = "application/json"
		model.ResponseSchema = schema
	}
	return model
}

func historyContents(history []ChatTurn) []*genai.Content {
	var out []*genai.Content
	for _, turn := range recentTurns(history) {
		out = append(out,
			&genai.Content{Role: "user", Parts: []genai.Part{genai.Text(turn.Message)}},
			&genai.Content{Role: "model", Parts: []genai.Part{genai.Text(turn.Response)}},
		)
	}
	return out
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("empty response from gemini")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("gemini returned no text (finish reason %v)", resp.Candidates[0].FinishReason)
	}
	return b.String(), nil
}

// send runs one model call with the configured timeout and tracing.
func (g *GeminiAssistant) send(ctx context.Context, op string, model *genai.GenerativeModel, history []*genai.Content, prompt string) (string, error) {
	ctx, span := g.tracer.Start(ctx, "GeminiAssistant."+op)
	defer span.End()
	span.SetAttributes(attribute.String("gemini.model", g.model), attribute.Int("gemini.history", len(history)))

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var resp *genai.GenerateContentResponse
	var err error
	if len(history) > 0 {
		cs := model.StartChat()
		cs.History = history
		resp, err = cs.SendMessage(callCtx, genai.Text(prompt))
	} else {
		resp, err = model.GenerateContent(callCtx, genai.Text(prompt))
	}
	if err == nil {
		var text string
		text, err = responseText(resp)
		if err == nil {
			span.SetStatus(codes.Ok, "")
			return text, nil
		}
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "Gemini request failed")
	g.logger.Error("Gemini request failed", zap.String("operation", op), zap.Error(err))
	return "", aiError(err)
}

func (g *GeminiAssistant) Chat(ctx context.Context, history []ChatTurn, message string, existing []models.ProposedProject) (*ChatReply, error) {
	schema := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"response": {Type: genai.TypeString},
			"proposed_projects": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"title":       {Type: genai.TypeString},
						"description": {Type: genai.TypeString},
						"due_date":    {Type: genai.TypeString},
						"category":    {Type: genai.TypeString, Enum: []string{models.CategoryWorkStudy, models.CategoryGymActivity, models.CategoryPersonalGoals}},
					},
					Required: []string{"title"},
				},
			},
		},
		Required: []string{"response", "proposed_projects"},
	}

	prompt := message
	if len(existing) > 0 {
		titles := make([]string, 0, len(existing))
		for _, p := range existing {
			titles = append(titles, "- "+p.Title)
		}
		prompt = "Projects the user already has or was already offered:\n" + strings.Join(titles, "\n") + "\n\nUser message:\n" + message
	}
	prompt += "\n\nToday is " + time.Now().Format("Monday, 2006-01-02") + "."

	raw, err := g.send(ctx, "Chat", g.newModel(chatInstruction, schema), historyContents(history), prompt)
	if err != nil {
		return nil, err
	}
	reply, err := parseChatReply(raw, existing)
	if err != nil {
		return nil, aiError(err)
	}
	return reply, nil
}

func (g *GeminiAssistant) ProjectChat(ctx context.Context, project *models.Project, history []ChatTurn, message string) (string, error) {
	instruction := projectChatInstruction + "\n\n" + projectPrompt(project)
	raw, err := g.send(ctx, "ProjectChat", g.newModel(instruction, nil), historyContents(history), message)
	if err != nil {
		return "", err
	}
	text := CleanResponse(raw)
	if text == "" {
		return "", aiError(errors.New("empty response from gemini"))
	}
	return text, nil
}

func (g *GeminiAssistant) GeneratePlan(ctx context.Context, project *models.Project, clarification string) (*PlanResult, error) {
	schema := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"plan":                {Type: genai.TypeString},
			"needs_clarification": {Type: genai.TypeBoolean},
		},
		Required: []string{"plan", "needs_clarification"},
	}
	prompt := projectPrompt(project)
	if c := strings.TrimSpace(clarification); c != "" {
		prompt += "\n\nClarification from the user:\n" + c
	}
	if project.HasPlan() {
		prompt += "\n\nRefine the current plan."
	}
	raw, err := g.send(ctx, "GeneratePlan", g.newModel(planInstruction, schema), nil, prompt)
	if err != nil {
		return nil, err
	}
	res, err := parsePlan(raw)
	if err != nil {
		return nil, aiError(err)
	}
	return res, nil
}

func (g *GeminiAssistant) GenerateTodos(ctx context.Context, project *models.Project) ([]GeneratedTodo, error) {
	if !project.HasPlan() {
		return nil, ErrNoPlan
	}
	schema := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"todos": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"text":     {Type: genai.TypeString},
						"due_date": {Type: genai.TypeString},
					},
					Required: []string{"text"},
				},
			},
		},
		Required: []string{"todos"},
	}
	prompt := projectPrompt(project) + "\n\nToday is " + time.Now().Format("2006-01-02") + ". Derive to-do items from the plan that are not already listed."
	raw, err := g.send(ctx, "GenerateTodos", g.newModel(todosInstruction, schema), nil, prompt)
	if err != nil {
		return nil, err
	}
	todos, err := parseTodos(raw)
	if err != nil {
		return nil, aiError(err)
	}
	return todos, nil
}

// DisabledAssistant answers every call with ErrNotConfigured.
type DisabledAssistant struct{}

func (DisabledAssistant) Chat(context.Context, []ChatTurn, string, []models.ProposedProject) (*ChatReply, error) {
	return nil, ErrNotConfigured
}

func (DisabledAssistant) ProjectChat(context.Context, *models.Project, []ChatTurn, string) (string, error) {
	return "", ErrNotConfigured
}

func (DisabledAssistant) GeneratePlan(context.Context, *models.Project, string) (*PlanResult, error) {
	return nil, ErrNotConfigured
}

func (DisabledAssistant) GenerateTodos(context.Context, *models.Project) ([]GeneratedTodo, error) {
	return nil, ErrNotConfigured
}
