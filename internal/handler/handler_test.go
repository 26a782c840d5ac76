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

package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"blockarchitech.com/smartlife/internal/config"
	"blockarchitech.com/smartlife/internal/handler"
	"blockarchitech.com/smartlife/internal/models"
	"blockarchitech.com/smartlife/internal/repository"
	"blockarchitech.com/smartlife/internal/service"
	"blockarchitech.com/smartlife/internal/storage"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zaptest"
	"golang.org/x/oauth2"
)

type stubAssistant struct {
	mu    sync.Mutex
	reply *service.ChatReply
	plan  *service.PlanResult
	todos []service.GeneratedTodo
	err   error
}

func (s *stubAssistant) Chat(ctx context.Context, history []service.ChatTurn, message string, existing []models.ProposedProject) (*service.ChatReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.reply, nil
}

func (s *stubAssistant) ProjectChat(ctx context.Context, project *models.Project, history []service.ChatTurn, message string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	return fmt.Sprintf("About %s: %d earlier turns", project.Title, len(history)), nil
}

func (s *stubAssistant) GeneratePlan(ctx context.Context, project *models.Project, clarification string) (*service.PlanResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.plan, nil
}

func (s *stubAssistant) GenerateTodos(ctx context.Context, project *models.Project) ([]service.GeneratedTodo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.todos, nil
}

type stubCalendar struct {
	mu     sync.Mutex
	events int
}

func (s *stubCalendar) AuthCodeURL(state, redirectURI string) string {
	return "https://accounts.example.com/o/oauth2/auth?state=" + state + "&redirect_uri=" + redirectURI
}

func (s *stubCalendar) Exchange(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) {
	if code == "bad" {
		return nil, &service.UpstreamError{Service: "Calendar service", Err: errors.New("invalid_grant")}
	}
	return &oauth2.Token{AccessToken: "access-" + code, RefreshToken: "refresh", Expiry: time.Now().Add(time.Hour)}, nil
}

func (s *stubCalendar) AccountEmail(ctx context.Context, tok *oauth2.Token) (string, error) {
	return "me@gmail.com", nil
}

func (s *stubCalendar) Client(ctx context.Context, tok *oauth2.Token) (service.CalendarClient, error) {
	return &stubCalendarClient{cal: s, tok: tok}, nil
}

type stubCalendarClient struct {
	cal *stubCalendar
	tok *oauth2.Token
}

func (c *stubCalendarClient) BusyIntervals(ctx context.Context, from, to time.Time) ([]service.BusyInterval, error) {
	return nil, nil
}

func (c *stubCalendarClient) CreateEvent(ctx context.Context, event service.CalendarEvent) (string, error) {
	c.cal.mu.Lock()
	defer c.cal.mu.Unlock()
	c.cal.events++
	return fmt.Sprintf("evt-%d", c.cal.events), nil
}

func (c *stubCalendarClient) Token() (*oauth2.Token, error) { return c.tok, nil }

type testServer struct {
	router    *gin.Engine
	repo      *repository.InMemoryRepository
	assistant *stubAssistant
	calendar  *stubCalendar
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)
	tracer := noop.NewTracerProvider().Tracer("test")

	cfg := &config.Config{
		SecretKey:            "test-secret",
		TokenTTL:             time.Hour,
		CORSAllowedOrigins:   "http://localhost:3000",
		GoogleRedirectURL:    "http://localhost:3000/settings",
		AuthRateLimitRPS:     100,
		AuthRateLimitBurst:   100,
		ScheduleEventMinutes: 60,
		ScheduleHorizonDays:  14,
		DefaultTimezone:      "America/Chicago",
	}
	for _, m := range mutate {
		m(cfg)
	}

	repo := repository.NewInMemoryRepository(logger)
	assistant := &stubAssistant{}
	cal := &stubCalendar{}
	states := storage.NewInMemoryStateStore(logger)
	planner := service.NewPlanner(repo, assistant, tracer, logger)
	scheduler := service.NewScheduler(repo, cal, cfg.ScheduleEventMinutes, cfg.ScheduleHorizonDays, cfg.DefaultTimezone, tracer, logger)

	h := handler.NewHttpHandlers(logger, cfg, repo, planner, scheduler, cal, states, tracer)
	t.Cleanup(h.Close)

	router := gin.New()
	h.RegisterRoutes(router)
	return &testServer{router: router, repo: repo, assistant: assistant, calendar: cal}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d; body = %s", w.Code, want, w.Body.String())
	}
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, msg string) {
	t.Helper()
	expectStatus(t, w, status)
	got := decode[map[string]string](t, w)["error"]
	if got != msg {
		t.Errorf("error = %q, want %q", got, msg)
	}
}

type authBody struct {
	User struct {
		ID    string  `json:"id"`
		Email string  `json:"email"`
		Name  *string `json:"name"`
	} `json:"user"`
	Token string `json:"token"`
}

func (s *testServer) signup(t *testing.T, email string) authBody {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{"email": email, "password": "secret1"})
	expectStatus(t, w, http.StatusCreated)
	return decode[authBody](t, w)
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	created := s.signup(t, "A@x.com")
	if created.Token == "" || created.User.Email != "a@x.com" {
		t.Fatalf("signup body = %+v", created)
	}

	w := s.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{"email": "a@x.com", "password": "another"})
	expectError(t, w, http.StatusConflict, "Email already registered")

	w = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@x.com", "password": "wrong-pw"})
	expectError(t, w, http.StatusUnauthorized, "Incorrect email or password")

	w = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "nobody@x.com", "password": "secret1"})
	expectError(t, w, http.StatusUnauthorized, "Incorrect email or password")

	w = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@x.com", "password": "secret1"})
	expectStatus(t, w, http.StatusOK)
	login := decode[authBody](t, w)
	if login.User.ID != created.User.ID {
		t.Errorf("login user id = %q, want %q", login.User.ID, created.User.ID)
	}

	w = s.do(t, http.MethodGet, "/api/auth/verify", login.Token, nil)
	expectStatus(t, w, http.StatusOK)
	me := decode[map[string]any](t, w)
	if me["email"] != "a@x.com" || me["id"] != created.User.ID {
		t.Errorf("verify body = %v", me)
	}
}

func TestAuthRejects(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"garbage token", "Bearer not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, req)
			expectStatus(t, w, http.StatusUnauthorized)
		})
	}
}

func TestSignupValidation(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name string
		body any
		want string
	}{
		{"bad email", map[string]string{"email": "nope", "password": "secret1"}, "email must be a valid email address"},
		{"short password", map[string]string{"email": "a@x.com", "password": "123"}, "password must be at least 6 characters"},
		{"missing password", map[string]string{"email": "a@x.com"}, "password is required"},
		{"malformed json", `{"email":`, "Invalid JSON body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/auth/signup", "", tt.body)
			expectError(t, w, http.StatusBadRequest, tt.want)
		})
	}
}

func TestChangePassword(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "a@x.com").Token

	w := s.do(t, http.MethodPost, "/api/settings/password", token, map[string]string{"current_password": "nope12", "new_password": "secret2"})
	expectError(t, w, http.StatusUnauthorized, "Current password is incorrect")

	w = s.do(t, http.MethodPost, "/api/settings/password", token, map[string]string{"current_password": "secret1", "new_password": "abc"})
	expectStatus(t, w, http.StatusBadRequest)

	w = s.do(t, http.MethodPost, "/api/settings/password", token, map[string]string{"current_password": "secret1", "new_password": "secret2"})
	expectStatus(t, w, http.StatusOK)

	w = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@x.com", "password": "secret2"})
	expectStatus(t, w, http.StatusOK)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.AuthRateLimitRPS = 0.001
		c.AuthRateLimitBurst = 2
	})
	body := map[string]string{"email": "a@x.com", "password": "secret1"}
	for i := 0; i < 2; i++ {
		w := s.do(t, http.MethodPost, "/api/auth/login", "", body)
		expectStatus(t, w, http.StatusUnauthorized)
	}
	w := s.do(t, http.MethodPost, "/api/auth/login", "", body)
	expectError(t, w, http.StatusTooManyRequests, "Too many requests")
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/projects", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	expectStatus(t, w, http.StatusNoContent)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/projects", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unexpected allow origin %q", got)
	}
}

func TestCORSWildcardOmitsCredentials(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.CORSAllowedOrigins = "*" })
	req := httptest.NewRequest(http.MethodOptions, "/api/projects", nil)
	req.Header.Set("Origin", "https://anywhere.example.com")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	expectStatus(t, w, http.StatusNoContent)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow origin = %q, want *", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Errorf("allow credentials = %q on wildcard origin", got)
	}

	listed := newTestServer(t)
	req = httptest.NewRequest(http.MethodOptions, "/api/projects", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w = httptest.NewRecorder()
	listed.router.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("allow credentials = %q for listed origin", got)
	}
}

type projectBody struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description *string           `json:"description"`
	DueDate     *time.Time        `json:"due_date"`
	Plan        *string           `json:"plan"`
	Category    string            `json:"category"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Todos       []models.TodoItem `json:"todos"`
}

func (s *testServer) createProject(t *testing.T, token string, body map[string]any) projectBody {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/projects", token, body)
	expectStatus(t, w, http.StatusCreated)
	return decode[projectBody](t, w)
}

func TestProjectAndTodoScenario(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "a@x.com").Token

	p := s.createProject(t, token, map[string]any{"title": "Learn Go", "description": "Finish the tour", "due_date": "2030-01-15"})
	if p.Title != "Learn Go" || p.Todos == nil || len(p.Todos) != 0 || p.Category != models.CategoryWorkStudy {
		t.Fatalf("created project = %+v", p)
	}
	if !strings.Contains(s.do(t, http.MethodPost, "/api/projects", token, map[string]any{"title": "X"}).Body.String(), `"todos":[]`) {
		t.Error("new project should serialize todos as []")
	}

	w := s.do(t, http.MethodPost, "/api/projects/"+p.ID+"/todos", token, map[string]any{"text": "Read book"})
	expectStatus(t, w, http.StatusCreated)
	todo := decode[models.TodoItem](t, w)
	if todo.Completed || todo.Text != "Read book" || todo.OrderIndex == nil || *todo.OrderIndex != 0 {
		t.Fatalf("created todo = %+v", todo)
	}

	w = s.do(t, http.MethodPut, "/api/projects/"+p.ID+"/todos/"+todo.ID, token, map[string]any{"completed": true})
	expectStatus(t, w, http.StatusOK)
	if updated := decode[models.TodoItem](t, w); !updated.Completed || updated.Text != "Read book" {
		t.Errorf("updated todo = %+v", updated)
	}

	w = s.do(t, http.MethodPut, "/api/projects/"+p.ID, token, map[string]any{"title": "Learn Go well"})
	expectStatus(t, w, http.StatusOK)

	w = s.do(t, http.MethodGet, "/api/projects/"+p.ID, token, nil)
	expectStatus(t, w, http.StatusOK)
	got := decode[projectBody](t, w)
	if got.Title != "Learn Go well" || got.Description == nil || *got.Description != "Finish the tour" {
		t.Errorf("partial update changed other fields: %+v", got)
	}
	if got.DueDate == nil || got.DueDate.Format("2006-01-02") != "2030-01-15" {
		t.Errorf("due date = %v", got.DueDate)
	}
	if len(got.Todos) != 1 || !got.Todos[0].Completed {
		t.Errorf("todos = %+v", got.Todos)
	}
	if !got.UpdatedAt.After(p.UpdatedAt) {
		t.Errorf("updated_at = %v, want after %v", got.UpdatedAt, p.UpdatedAt)
	}

	w = s.do(t, http.MethodGet, "/api/projects", token, nil)
	expectStatus(t, w, http.StatusOK)
	list := decode[[]projectBody](t, w)
	if len(list) != 2 || list[0].ID != p.ID {
		t.Errorf("list order = %+v", list)
	}

	w = s.do(t, http.MethodDelete, "/api/projects/"+p.ID+"/todos/"+todo.ID, token, nil)
	expectStatus(t, w, http.StatusNoContent)
	w = s.do(t, http.MethodDelete, "/api/projects/"+p.ID+"/todos/"+todo.ID, token, nil)
	expectError(t, w, http.StatusNotFound, "Todo item not found")

	w = s.do(t, http.MethodDelete, "/api/projects/"+p.ID, token, nil)
	expectStatus(t, w, http.StatusNoContent)
	w = s.do(t, http.MethodGet, "/api/projects/"+p.ID, token, nil)
	expectError(t, w, http.StatusNotFound, "Project not found")
}

func TestProjectValidation(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "a@x.com").Token
	p := s.createProject(t, token, map[string]any{"title": "Gym"})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   string
	}{
		{"blank title", http.MethodPost, "/api/projects", map[string]any{"title": "   "}, "title must not be blank"},
		{"unknown category", http.MethodPost, "/api/projects", map[string]any{"title": "A", "category": "sleep"}, "category must be one of work_study, gym_activity, personal_goals"},
		{"bad due date", http.MethodPost, "/api/projects", map[string]any{"title": "A", "due_date": "next week"}, `due_date: invalid date "next week": expected YYYY-MM-DD or RFC3339`},
		{"blank todo", http.MethodPost, "/api/projects/" + p.ID + "/todos", map[string]any{"text": ""}, "text is required"},
		{"negative order", http.MethodPost, "/api/projects/" + p.ID + "/todos", map[string]any{"text": "a", "order_index": -1}, "order_index must be at least 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, token, tt.body)
			expectError(t, w, http.StatusBadRequest, tt.want)
		})
	}
}

func TestProjectOwnership(t *testing.T) {
	s := newTestServer(t)
	owner := s.signup(t, "owner@x.com").Token
	other := s.signup(t, "other@x.com").Token
	p := s.createProject(t, owner, map[string]any{"title": "Private"})

	w := s.do(t, http.MethodPost, "/api/projects/"+p.ID+"/todos", owner, map[string]any{"text": "mine"})
	todo := decode[models.TodoItem](t, w)

	requests := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/api/projects/" + p.ID, nil},
		{http.MethodPut, "/api/projects/" + p.ID, map[string]any{"title": "stolen"}},
		{http.MethodDelete, "/api/projects/" + p.ID, nil},
		{http.MethodPost, "/api/projects/" + p.ID + "/todos", map[string]any{"text": "x"}},
		{http.MethodPut, "/api/projects/" + p.ID + "/todos/" + todo.ID, map[string]any{"completed": true}},
		{http.MethodGet, "/api/projects/" + p.ID + "/chat/history", nil},
		{http.MethodGet, "/api/projects/" + p.ID + "/plan", nil},
		{http.MethodPost, "/api/projects/" + p.ID + "/schedule", nil},
	}
	for _, r := range requests {
		t.Run(r.method+" "+r.path, func(t *testing.T) {
			w := s.do(t, r.method, r.path, other, r.body)
			expectError(t, w, http.StatusNotFound, "Project not found")
		})
	}

	w = s.do(t, http.MethodGet, "/api/projects", other, nil)
	if list := decode[[]projectBody](t, w); len(list) != 0 {
		t.Errorf("other user sees %d projects", len(list))
	}
}

func TestChat(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "a@x.com").Token

	s.assistant.reply = &service.ChatReply{
		Response:         "Here is a start.",
		ProposedProjects: []models.ProposedProject{{Title: "Run a 10k", DueDate: "2030-05-01"}},
	}
	w := s.do(t, http.MethodPost, "/api/chat", token, map[string]any{"message": "I want to get fit"})
	expectStatus(t, w, http.StatusOK)
	reply := decode[map[string]any](t, w)
	if reply["requires_confirmation"] != true || reply["response"] != "Here is a start." {
		t.Errorf("chat reply = %v", reply)
	}
	if proposals, _ := reply["proposed_projects"].([]any); len(proposals) != 1 {
		t.Errorf("proposed_projects = %v", reply["proposed_projects"])
	}

	w = s.do(t, http.MethodGet, "/api/projects", token, nil)
	if list := decode[[]projectBody](t, w); len(list) != 0 {
		t.Error("proposals must not be persisted as projects")
	}

	s.assistant.reply = &service.ChatReply{Response: "Sure."}
	w = s.do(t, http.MethodPost, "/api/chat", token, map[string]any{"message": "thanks"})
	expectStatus(t, w, http.StatusOK)
	reply = decode[map[string]any](t, w)
	if reply["requires_confirmation"] != false {
		t.Errorf("requires_confirmation = %v", reply["requires_confirmation"])
	}

	s.assistant.err = &service.UpstreamError{Service: "AI service", Err: errors.New("quota exceeded")}
	w = s.do(t, http.MethodPost, "/api/chat", token, map[string]any{"message": "again"})
	expectError(t, w, http.StatusBadGateway, "AI service error: quota exceeded")

	w = s.do(t, http.MethodPost, "/api/chat", token, map[string]any{"message": "  "})
	expectStatus(t, w, http.StatusBadRequest)

	w = s.do(t, http.MethodGet, "/api/chat/history", token, nil)
	expectStatus(t, w, http.StatusOK)
	history := decode[[]map[string]any](t, w)
	if len(history) != 2 || history[0]["message"] != "I want to get fit" || history[1]["message"] != "thanks" {
		t.Errorf("history = %v", history)
	}
}

func TestChatNotConfigured(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "a@x.com").Token
	s.assistant.err = service.ErrNotConfigured
	w := s.do(t, http.MethodPost, "/api/chat", token, map[string]any{"message": "hi"})
	expectStatus(t, w, http.StatusServiceUnavailable)
}

func TestProjectChat(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "a@x.com").Token
	p := s.createProject(t, token, map[string]any{"title": "Garden"})

	for i := 0; i < 2; i++ {
		w := s.do(t, http.MethodPost, "/api/projects/"+p.ID+"/chat", token, map[string]any{"message": fmt.Sprintf("q%d", i)})
		expectStatus(t, w, http.StatusOK)
		msg := decode[models.ProjectChatMessage](t, w)
		if want := fmt.Sprintf("About Garden: %d earlier turns", i); msg.Response != want {
			t.Errorf("response = %q, want %q", msg.Response, want)
		}
	}

	w := s.do(t, http.MethodGet, "/api/projects/"+p.ID+"/chat/history", token, nil)
	expectStatus(t, w, http.StatusOK)
	if history := decode[[]models.ProjectChatMessage](t, w); len(history) != 2 || history[0].Message != "q0" {
		t.Errorf("history = %+v", history)
	}

	s.do(t, http.MethodDelete, "/api/projects/"+p.ID, token, nil)
	msgs, err := s.repo.ListProjectMessages(context.Background(), p.ID, 0)
	if err != nil || len(msgs) != 0 {
		t.Errorf("project messages after delete = %v, %v", msgs, err)
	}
}

func TestPlanAndTodoGeneration(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "a@x.com").Token
	p := s.createProject(t, token, map[string]any{"title": "Marathon"})
	base := "/api/projects/" + p.ID

	w := s.do(t, http.MethodPost, base+"/todos/generate", token, nil)
	expectError(t, w, http.StatusBadRequest, "Project has no plan yet")

	s.assistant.plan = &service.PlanResult{Plan: "How many days a week can you train?", NeedsClarification: true}
	w = s.do(t, http.MethodPost, base+"/plan", token, nil)
	expectStatus(t, w, http.StatusOK)
	res := decode[map[string]any](t, w)
	if res["needs_clarification"] != true {
		t.Errorf("plan response = %v", res)
	}
	w = s.do(t, http.MethodGet, base+"/plan", token, nil)
	if got := decode[map[string]any](t, w); got["plan"] != nil {
		t.Errorf("clarifying question stored as plan: %v", got)
	}

	s.assistant.plan = &service.PlanResult{Plan: "Week 1: run 3x"}
	w = s.do(t, http.MethodPost, base+"/plan", token, map[string]any{"clarification": "three days"})
	expectStatus(t, w, http.StatusOK)

	// chunked request without a body
	req := httptest.NewRequest(http.MethodPost, base+"/plan", io.NopCloser(strings.NewReader("")))
	req.Header.Set("Authorization", "Bearer "+token)
	if req.ContentLength != -1 {
		t.Fatalf("ContentLength = %d, want unknown", req.ContentLength)
	}
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	expectStatus(t, w, http.StatusOK)

	w = s.do(t, http.MethodPost, base+"/plan", token, `{"clarification": `)
	expectError(t, w, http.StatusBadRequest, "Invalid JSON body")

	w = s.do(t, http.MethodPut, base, token, map[string]any{"title": "Spring marathon"})
	expectStatus(t, w, http.StatusOK)
	w = s.do(t, http.MethodGet, base+"/plan", token, nil)
	if got := decode[map[string]any](t, w); got["plan"] != "Week 1: run 3x" {
		t.Errorf("project update changed plan to %v", got["plan"])
	}

	s.assistant.plan = &service.PlanResult{Plan: "What is your goal pace?", NeedsClarification: true}
	s.do(t, http.MethodPost, base+"/plan", token, nil)
	w = s.do(t, http.MethodGet, base+"/plan", token, nil)
	if got := decode[map[string]any](t, w); got["plan"] != "Week 1: run 3x" {
		t.Errorf("plan = %v, want the stored non-clarifying plan", got["plan"])
	}

	s.do(t, http.MethodPost, base+"/todos", token, map[string]any{"text": "Buy shoes"})
	s.assistant.todos = []service.GeneratedTodo{{Text: "Run 5k"}, {Text: "Run 8k"}}
	w = s.do(t, http.MethodPost, base+"/todos/generate", token, nil)
	expectStatus(t, w, http.StatusCreated)
	gen := decode[struct {
		Todos []models.TodoItem `json:"todos"`
		Count int               `json:"count"`
	}](t, w)
	if gen.Count != 2 || len(gen.Todos) != 2 || *gen.Todos[0].OrderIndex != 1 || *gen.Todos[1].OrderIndex != 2 {
		t.Errorf("generated = %+v", gen)
	}

	w = s.do(t, http.MethodPut, base+"/plan", token, map[string]any{"plan": "Edited plan"})
	expectStatus(t, w, http.StatusOK)
	w = s.do(t, http.MethodDelete, base+"/plan", token, nil)
	expectStatus(t, w, http.StatusNoContent)
	w = s.do(t, http.MethodGet, base+"/plan", token, nil)
	if got := decode[map[string]any](t, w); got["plan"] != nil {
		t.Errorf("plan after delete = %v", got["plan"])
	}
}

func TestCalendarConnectAndSchedule(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "a@x.com").Token
	intruder := s.signup(t, "b@x.com").Token
	p := s.createProject(t, token, map[string]any{"title": "Study"})
	base := "/api/projects/" + p.ID

	w := s.do(t, http.MethodGet, "/api/settings/google-calendar/status", token, nil)
	if got := decode[map[string]any](t, w); got["connected"] != false {
		t.Errorf("status = %v", got)
	}
	w = s.do(t, http.MethodDelete, "/api/settings/google-calendar/disconnect", token, nil)
	expectStatus(t, w, http.StatusOK)

	w = s.do(t, http.MethodPost, base+"/schedule", token, nil)
	expectError(t, w, http.StatusBadRequest, "Google Calendar not connected")

	w = s.do(t, http.MethodGet, "/api/settings/google-calendar/authorize", token, nil)
	expectStatus(t, w, http.StatusOK)
	auth := decode[map[string]string](t, w)
	state := auth["state"]
	if state == "" || !strings.Contains(auth["authorization_url"], state) {
		t.Fatalf("authorize = %v", auth)
	}

	w = s.do(t, http.MethodGet, "/api/settings/google-calendar/callback?code=abc&state="+state, intruder, nil)
	expectError(t, w, http.StatusBadRequest, "Invalid or expired OAuth state")

	// The intruder consumed the state.
	w = s.do(t, http.MethodGet, "/api/settings/google-calendar/callback?code=abc&state="+state, token, nil)
	expectError(t, w, http.StatusBadRequest, "Invalid or expired OAuth state")

	w = s.do(t, http.MethodGet, "/api/settings/google-calendar/authorize", token, nil)
	state = decode[map[string]string](t, w)["state"]
	w = s.do(t, http.MethodGet, "/api/settings/google-calendar/callback?code=bad&state="+state, token, nil)
	expectError(t, w, http.StatusBadGateway, "Calendar service error: invalid_grant")

	w = s.do(t, http.MethodGet, "/api/settings/google-calendar/authorize", token, nil)
	state = decode[map[string]string](t, w)["state"]
	w = s.do(t, http.MethodGet, "/api/settings/google-calendar/callback?code=abc&state="+state, token, nil)
	expectStatus(t, w, http.StatusOK)
	if got := decode[map[string]string](t, w); got["email"] != "me@gmail.com" {
		t.Errorf("callback = %v", got)
	}
	w = s.do(t, http.MethodGet, "/api/settings/google-calendar/callback?code=abc&state="+state, token, nil)
	expectStatus(t, w, http.StatusBadRequest)

	w = s.do(t, http.MethodGet, "/api/settings/google-calendar/status", token, nil)
	if got := decode[map[string]any](t, w); got["connected"] != true || got["email"] != "me@gmail.com" {
		t.Errorf("status = %v", got)
	}

	w = s.do(t, http.MethodPost, base+"/todos", token, map[string]any{"text": "Chapter 1"})
	first := decode[models.TodoItem](t, w)
	s.do(t, http.MethodPost, base+"/todos", token, map[string]any{"text": "Chapter 2"})
	w = s.do(t, http.MethodPost, base+"/todos", token, map[string]any{"text": "Done already"})
	done := decode[models.TodoItem](t, w)
	s.do(t, http.MethodPut, base+"/todos/"+done.ID, token, map[string]any{"completed": true})

	w = s.do(t, http.MethodPost, base+"/schedule", token, nil)
	expectStatus(t, w, http.StatusOK)
	result := decode[service.ScheduleResult](t, w)
	if result.Scheduled != 2 || result.Failed != 0 || result.Skipped != 1 {
		t.Errorf("schedule result = %+v", result)
	}
	if result.Message != "Scheduled 2 of 2 to-dos." {
		t.Errorf("message = %q", result.Message)
	}
	if len(result.Results) == 2 && !result.Results[0].Start.Before(*result.Results[1].Start) {
		t.Error("second event should follow the first")
	}

	w = s.do(t, http.MethodPost, base+"/todos/"+first.ID+"/schedule", token, nil)
	expectStatus(t, w, http.StatusConflict)
	w = s.do(t, http.MethodPost, base+"/todos/"+done.ID+"/schedule", token, nil)
	expectStatus(t, w, http.StatusBadRequest)
	w = s.do(t, http.MethodPost, base+"/todos/missing/schedule", token, nil)
	expectError(t, w, http.StatusNotFound, "Todo item not found")

	w = s.do(t, http.MethodDelete, "/api/settings/google-calendar/disconnect", token, nil)
	expectStatus(t, w, http.StatusOK)
	w = s.do(t, http.MethodGet, "/api/settings/google-calendar/status", token, nil)
	if got := decode[map[string]any](t, w); got["connected"] != false {
		t.Errorf("status after disconnect = %v", got)
	}
}

func TestPreferences(t *testing.T) {
	s := newTestServer(t)
	token := s.signup(t, "a@x.com").Token

	w := s.do(t, http.MethodGet, "/api/settings/preferences", token, nil)
	expectStatus(t, w, http.StatusOK)
	defaults := decode[models.Preferences](t, w)
	if defaults.WorkStudy.Weekdays != nil || defaults.GymActivity.AllTime || defaults.Timezone != "America/Chicago" {
		t.Errorf("defaults = %+v", defaults)
	}

	w = s.do(t, http.MethodPut, "/api/settings/preferences", token, map[string]any{"timezone": "Mars/Olympus"})
	expectError(t, w, http.StatusBadRequest, "timezone must be a valid IANA time zone")

	w = s.do(t, http.MethodPut, "/api/settings/preferences", token, map[string]any{
		"work_study":     map[string]any{"weekdays": "09:00-17:00", "weekends": "any"},
		"gym_activity":   map[string]any{"weekdays": "after work, before dinner"},
		"personal_goals": map[string]any{"all_time": true},
		"timezone":       "Europe/Berlin",
	})
	expectStatus(t, w, http.StatusOK)

	w = s.do(t, http.MethodGet, "/api/settings/preferences", token, nil)
	got := decode[models.Preferences](t, w)
	if got.WorkStudy.Weekdays == nil || *got.WorkStudy.Weekdays != "09:00-17:00" {
		t.Errorf("work_study = %+v", got.WorkStudy)
	}
	if got.GymActivity.Weekdays == nil || *got.GymActivity.Weekdays != "after work, before dinner" {
		t.Errorf("free-form window not kept: %+v", got.GymActivity)
	}
	if !got.PersonalGoals.AllTime || got.Timezone != "Europe/Berlin" {
		t.Errorf("preferences = %+v", got)
	}
}
