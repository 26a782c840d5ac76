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
	"fmt"
	"strings"
	"time"

	"blockarchitech.com/smartlife/internal/models"
	"blockarchitech.com/smartlife/internal/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ScheduleStore is the persistence the scheduler needs.
type ScheduleStore interface {
	repository.SettingsRepository
	repository.TodoRepository
}

// ScheduleItem reports the outcome for one to-do.
type ScheduleItem struct {
	TodoID  string     `json:"todo_id"`
	Text    string     `json:"text"`
	Success bool       `json:"success"`
	EventID string     `json:"event_id,omitempty"`
	Start   *time.Time `json:"start,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// ScheduleResult aggregates a scheduling run. Items fail independently.
type ScheduleResult struct {
	Message   string         `json:"message"`
	Scheduled int            `json:"scheduled"`
	Failed    int            `json:"failed"`
	Skipped   int            `json:"skipped"`
	Results   []ScheduleItem `json:"results"`
}

// Scheduler places to-do items into free calendar slots that respect the
// user's time window preferences.
type Scheduler struct {
	store       ScheduleStore
	calendar    CalendarProvider
	eventLength time.Duration
	horizonDays int
	defaultTZ   string
	now         func() time.Time
	tracer      trace.Tracer
	logger      *zap.Logger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(store ScheduleStore, calendar CalendarProvider, eventMinutes, horizonDays int, defaultTZ string, tracer trace.Tracer, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		store:       store,
		calendar:    calendar,
		eventLength: time.Duration(eventMinutes) * time.Minute,
		horizonDays: horizonDays,
		defaultTZ:   defaultTZ,
		now:         time.Now,
		tracer:      tracer,
		logger:      logger.Named("scheduler"),
	}
}

// ScheduleProject schedules every open, unscheduled to-do of the project.
func (s *Scheduler) ScheduleProject(ctx context.Context, userID string, project *models.Project) (*ScheduleResult, error) {
	var pending []models.TodoItem
	skipped := 0
	for _, t := range project.Todos {
		if t.Completed || t.Scheduled() {
			skipped++
			continue
		}
		pending = append(pending, t)
	}
	return s.run(ctx, userID, project, pending, skipped)
}

// ScheduleTodo schedules a single to-do of the project.
func (s *Scheduler) ScheduleTodo(ctx context.Context, userID string, project *models.Project, todoID string) (*ScheduleResult, error) {
	for _, t := range project.Todos {
		if t.ID != todoID {
			continue
		}
		if t.Completed {
			return nil, ErrTodoCompleted
		}
		if t.Scheduled() {
			return nil, ErrAlreadyScheduled
		}
		return s.run(ctx, userID, project, []models.TodoItem{t}, 0)
	}
	return nil, repository.ErrNotFound
}

func (s *Scheduler) location(prefs *models.Preferences) (*time.Location, string) {
	for _, name := range []string{prefs.Timezone, s.defaultTZ} {
		if name == "" {
			continue
		}
		if loc, err := time.LoadLocation(name); err == nil {
			return loc, name
		}
	}
	return time.UTC, "UTC"
}

// firstDay is the due date when it has not passed, otherwise tomorrow.
func firstDay(todo models.TodoItem, now time.Time) time.Time {
	today := midnight(now)
	if todo.DueDate != nil {
		y, m, d := todo.DueDate.Date()
		due := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
		if !due.Before(today) {
			return due
		}
	}
	return today.AddDate(0, 0, 1)
}

func (s *Scheduler) run(ctx context.Context, userID string, project *models.Project, todos []models.TodoItem, skipped int) (*ScheduleResult, error) {
	ctx, span := s.tracer.Start(ctx, "Scheduler.Schedule")
	defer span.End()
	span.SetAttributes(attribute.String("project.id", project.ID), attribute.Int("schedule.pending", len(todos)))

	if s.calendar == nil {
		return nil, ErrNotConfigured
	}
	cred, err := s.store.GetCalendarCredential(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cred == nil || cred.Token == nil {
		return nil, ErrCalendarNotConnected
	}

	result := &ScheduleResult{Skipped: skipped, Results: []ScheduleItem{}}
	if len(todos) == 0 {
		result.Message = "No to-dos to schedule."
		return result, nil
	}

	prefs, err := s.store.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	if prefs == nil {
		prefs = &models.Preferences{UserID: userID}
	}
	loc, tzName := s.location(prefs)
	now := s.now().In(loc)
	window := prefs.Window(project.Category)

	client, err := s.calendar.Client(ctx, cred.Token)
	if err != nil {
		return nil, err
	}

	starts := make([]time.Time, len(todos))
	last := now
	for i, t := range todos {
		starts[i] = firstDay(t, now)
		if starts[i].After(last) {
			last = starts[i]
		}
	}
	busy, err := client.BusyIntervals(ctx, now, last.AddDate(0, 0, s.horizonDays))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Free/busy query failed")
		return nil, err
	}

	for i, todo := range todos {
		item := ScheduleItem{TodoID: todo.ID, Text: todo.Text}
		eventID, start, err := s.place(ctx, client, project, todo, starts[i], window, busy, now, tzName)
		if err != nil {
			item.Error = err.Error()
			result.Failed++
			s.logger.Warn("Failed to schedule todo", zap.String("todoID", todo.ID), zap.Error(err))
		} else {
			item.Success = true
			item.EventID = eventID
			item.Start = &start
			result.Scheduled++
			busy = append(busy, BusyInterval{Start: start, End: start.Add(s.eventLength)})
		}
		result.Results = append(result.Results, item)
	}

	s.persistToken(ctx, client, cred)
	result.Message = summarize(result)
	span.SetAttributes(attribute.Int("schedule.scheduled", result.Scheduled), attribute.Int("schedule.failed", result.Failed))
	s.logger.Info("Scheduling finished",
		zap.String("projectID", project.ID),
		zap.Int("scheduled", result.Scheduled),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

func (s *Scheduler) place(ctx context.Context, client CalendarClient, project *models.Project, todo models.TodoItem, first time.Time, tw models.TimeWindow, busy []BusyInterval, now time.Time, tzName string) (string, time.Time, error) {
	for i := 0; i < s.horizonDays; i++ {
		day := first.AddDate(0, 0, i)
		start, ok := FindSlot(day, WindowFor(tw, day.Weekday()), busy, s.eventLength, now)
		if !ok {
			continue
		}
		eventID, err := client.CreateEvent(ctx, CalendarEvent{
			Summary:     todo.Text,
			Description: "Project: " + project.Title,
			Start:       start,
			End:         start.Add(s.eventLength),
			TimeZone:    tzName,
		})
		if err != nil {
			return "", time.Time{}, err
		}
		if err := s.store.SetTodoEventID(ctx, project.ID, todo.ID, eventID); err != nil {
			return "", time.Time{}, fmt.Errorf("event created but not saved: %w", err)
		}
		return eventID, start, nil
	}
	return "", time.Time{}, fmt.Errorf("%w in the next %d days", ErrNoFreeSlot, s.horizonDays)
}

// persistToken stores the token again when the client refreshed it.
func (s *Scheduler) persistToken(ctx context.Context, client CalendarClient, cred *models.CalendarCredential) {
	tok, err := client.Token()
	if err != nil || tok == nil || tok.AccessToken == cred.Token.AccessToken {
		return
	}
	updated := *cred
	updated.Token = tok
	updated.UpdatedAt = s.now()
	if err := s.store.SaveCalendarCredential(ctx, &updated); err != nil {
		s.logger.Error("Failed to persist refreshed calendar token", zap.String("userID", cred.UserID), zap.Error(err))
	}
}

func summarize(r *ScheduleResult) string {
	total := r.Scheduled + r.Failed
	msg := fmt.Sprintf("Scheduled %d of %d to-dos.", r.Scheduled, total)
	if r.Failed == 0 {
		return msg
	}
	var failures []string
	for _, item := range r.Results {
		if !item.Success {
			failures = append(failures, fmt.Sprintf("%q (%s)", item.Text, item.Error))
		}
	}
	return msg + " Failed: " + strings.Join(failures, ", ")
}
