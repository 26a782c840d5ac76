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
	"testing"
	"time"

	"blockarchitech.com/smartlife/internal/models"
	"blockarchitech.com/smartlife/internal/repository"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zaptest"
	"golang.org/x/oauth2"
)

var testTracer = noop.NewTracerProvider().Tracer("test")

type fakeCalendar struct {
	busy      []BusyInterval
	busyErr   error
	failOn    map[string]error
	created   []CalendarEvent
	refreshed *oauth2.Token
	token     *oauth2.Token
	onCreate  func(CalendarEvent)
}

func (f *fakeCalendar) AuthCodeURL(state, redirectURI string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (f *fakeCalendar) Exchange(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: "access-" + code}, nil
}

func (f *fakeCalendar) AccountEmail(ctx context.Context, tok *oauth2.Token) (string, error) {
	return "cal@example.com", nil
}

func (f *fakeCalendar) Client(ctx context.Context, tok *oauth2.Token) (CalendarClient, error) {
	f.token = tok
	return f, nil
}

func (f *fakeCalendar) BusyIntervals(ctx context.Context, from, to time.Time) ([]BusyInterval, error) {
	if f.busyErr != nil {
		return nil, f.busyErr
	}
	return f.busy, nil
}

func (f *fakeCalendar) CreateEvent(ctx context.Context, event CalendarEvent) (string, error) {
	if err := f.failOn[event.Summary]; err != nil {
		return "", err
	}
	f.created = append(f.created, event)
	if f.onCreate != nil {
		f.onCreate(event)
	}
	return fmt.Sprintf("evt-%d", len(f.created)), nil
}

func (f *fakeCalendar) Token() (*oauth2.Token, error) {
	if f.refreshed != nil {
		return f.refreshed, nil
	}
	return f.token, nil
}

type fakeAssistant struct {
	reply       *ChatReply
	projectText string
	plan        *PlanResult
	todos       []GeneratedTodo
	err         error

	gotHistory  []ChatTurn
	gotExisting []models.ProposedProject
}

func (f *fakeAssistant) Chat(ctx context.Context, history []ChatTurn, message string, existing []models.ProposedProject) (*ChatReply, error) {
	f.gotHistory, f.gotExisting = history, existing
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

func (f *fakeAssistant) ProjectChat(ctx context.Context, project *models.Project, history []ChatTurn, message string) (string, error) {
	f.gotHistory = history
	if f.err != nil {
		return "", f.err
	}
	return f.projectText, nil
}

func (f *fakeAssistant) GeneratePlan(ctx context.Context, project *models.Project, clarification string) (*PlanResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.plan, nil
}

func (f *fakeAssistant) GenerateTodos(ctx context.Context, project *models.Project) ([]GeneratedTodo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.todos, nil
}

var errBoom = errors.New("boom")

func newTestRepo(t *testing.T) *repository.InMemoryRepository {
	t.Helper()
	repo := repository.NewInMemoryRepository(zaptest.NewLogger(t))
	user := &models.User{ID: "user-1", Email: "a@x.com", PasswordHash: "x", CreatedAt: time.Now()}
	if err := repo.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return repo
}

func seedProject(t *testing.T, repo repository.Repository, p *models.Project) *models.Project {
	t.Helper()
	ctx := context.Background()
	if p.UserID == "" {
		p.UserID = "user-1"
	}
	if p.Category == "" {
		p.Category = models.CategoryWorkStudy
	}
	if err := repo.CreateProject(ctx, p); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	got, err := repo.GetProject(ctx, p.UserID, p.ID)
	if err != nil || got == nil {
		t.Fatalf("GetProject: %v, %v", got, err)
	}
	return got
}
