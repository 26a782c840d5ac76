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
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

const (
	primaryCalendar = "primary"
	calendarTimeout = 15 * time.Second
)

// BusyInterval is a half-open [Start, End) span already taken on a calendar.
type BusyInterval struct {
	Start time.Time
	End   time.Time
}

// CalendarEvent is an event to create on the user's primary calendar.
type CalendarEvent struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	TimeZone    string
}

// CalendarClient acts on one user's calendar.
type CalendarClient interface {
	BusyIntervals(ctx context.Context, from, to time.Time) ([]BusyInterval, error)
	CreateEvent(ctx context.Context, event CalendarEvent) (string, error)
	// Token returns the current token, refreshed if the client renewed it.
	Token() (*oauth2.Token, error)
}

// CalendarProvider runs the OAuth handshake and opens per-user clients.
type CalendarProvider interface {
	AuthCodeURL(state, redirectURI string) string
	Exchange(ctx context.Context, code, redirectURI string) (*oauth2.Token, error)
	AccountEmail(ctx context.Context, tok *oauth2.Token) (string, error)
	Client(ctx context.Context, tok *oauth2.Token) (CalendarClient, error)
}

// GoogleCalendarService implements CalendarProvider against Google APIs.
type GoogleCalendarService struct {
	oauth  *oauth2.Config
	client *http.Client
	tracer trace.Tracer
	logger *zap.Logger
	// endpoint overrides the Google API base URL when set.
	endpoint string
}

// NewGoogleCalendarService creates a new GoogleCalendarService.
func NewGoogleCalendarService(oauthConfig *oauth2.Config, tracer trace.Tracer, logger *zap.Logger) *GoogleCalendarService {
	client := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithTracerProvider(otel.GetTracerProvider()),
		),
		Timeout: calendarTimeout,
	}
	return &GoogleCalendarService{
		oauth:  oauthConfig,
		client: client,
		tracer: tracer,
		logger: logger.Named("calendar_service"),
	}
}

// configFor returns the OAuth config with the redirect URI the client used.
func (s *GoogleCalendarService) configFor(redirectURI string) *oauth2.Config {
	if redirectURI == "" || redirectURI == s.oauth.RedirectURL {
		return s.oauth
	}
	cfg := *s.oauth
	cfg.RedirectURL = redirectURI
	return &cfg
}

// withHTTPClient makes oauth2 use the instrumented client for token calls.
func (s *GoogleCalendarService) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.client)
}

func (s *GoogleCalendarService) apiOptions(client *http.Client) []option.ClientOption {
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if s.endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.endpoint))
	}
	return opts
}

func (s *GoogleCalendarService) AuthCodeURL(state, redirectURI string) string {
	return s.configFor(redirectURI).AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

func (s *GoogleCalendarService) Exchange(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) {
	ctx, span := s.tracer.Start(ctx, "GoogleCalendarService.Exchange")
	defer span.End()

	tok, err := s.configFor(redirectURI).Exchange(s.withHTTPClient(ctx), code)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Token exchange failed")
		s.logger.Error("Failed to exchange authorization code", zap.Error(err))
		return nil, calendarError(err)
	}
	span.SetStatus(codes.Ok, "")
	return tok, nil
}

func (s *GoogleCalendarService) AccountEmail(ctx context.Context, tok *oauth2.Token) (string, error) {
	ctx, span := s.tracer.Start(ctx, "GoogleCalendarService.AccountEmail")
	defer span.End()

	ctx = s.withHTTPClient(ctx)
	svc, err := oauth2api.NewService(ctx, s.apiOptions(s.oauth.Client(ctx, tok))...)
	if err != nil {
		return "", fmt.Errorf("failed to create userinfo client: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Userinfo request failed")
		s.logger.Warn("Failed to fetch Google account email", zap.Error(err))
		return "", calendarError(describeGoogleError(err))
	}
	return info.Email, nil
}

func (s *GoogleCalendarService) Client(ctx context.Context, tok *oauth2.Token) (CalendarClient, error) {
	ctx = s.withHTTPClient(ctx)
	ts := oauth2.ReuseTokenSource(tok, s.oauth.TokenSource(ctx, tok))
	svc, err := calendar.NewService(ctx, s.apiOptions(oauth2.NewClient(ctx, ts))...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar client: %w", err)
	}
	return &googleCalendarClient{svc: svc, ts: ts, tracer: s.tracer, logger: s.logger}, nil
}

type googleCalendarClient struct {
	svc    *calendar.Service
	ts     oauth2.TokenSource
	tracer trace.Tracer
	logger *zap.Logger
}

func (c *googleCalendarClient) BusyIntervals(ctx context.Context, from, to time.Time) ([]BusyInterval, error) {
	ctx, span := c.tracer.Start(ctx, "GoogleCalendarClient.BusyIntervals")
	defer span.End()

	resp, err := c.svc.Freebusy.Query(&calendar.FreeBusyRequest{
		TimeMin: from.Format(time.RFC3339),
		TimeMax: to.Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: primaryCalendar}},
	}).Context(ctx).Do()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Free/busy query failed")
		c.logger.Error("Free/busy query failed", zap.Error(err))
		return nil, calendarError(describeGoogleError(err))
	}

	var out []BusyInterval
	if cal, ok := resp.Calendars[primaryCalendar]; ok {
		for _, period := range cal.Busy {
			start, err1 := time.Parse(time.RFC3339, period.Start)
			end, err2 := time.Parse(time.RFC3339, period.End)
			if err1 != nil || err2 != nil {
				c.logger.Warn("Skipping unparseable busy period", zap.String("start", period.Start), zap.String("end", period.End))
				continue
			}
			out = append(out, BusyInterval{Start: start, End: end})
		}
	}
	span.SetAttributes(attribute.Int("calendar.busy_count", len(out)))
	return out, nil
}

func (c *googleCalendarClient) CreateEvent(ctx context.Context, event CalendarEvent) (string, error) {
	ctx, span := c.tracer.Start(ctx, "GoogleCalendarClient.CreateEvent")
	defer span.End()

	created, err := c.svc.Events.Insert(primaryCalendar, &calendar.Event{
		Summary:     event.Summary,
		Description: event.Description,
		Start:       &calendar.EventDateTime{DateTime: event.Start.Format(time.RFC3339), TimeZone: event.TimeZone},
		End:         &calendar.EventDateTime{DateTime: event.End.Format(time.RFC3339), TimeZone: event.TimeZone},
	}).Context(ctx).Do()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Event insert failed")
		c.logger.Error("Failed to create calendar event", zap.Error(err))
		return "", calendarError(describeGoogleError(err))
	}
	span.SetAttributes(attribute.String("calendar.event_id", created.Id))
	span.SetStatus(codes.Ok, "")
	return created.Id, nil
}

func (c *googleCalendarClient) Token() (*oauth2.Token, error) {
	return c.ts.Token()
}

// describeGoogleError turns auth failures into messages a user can act on.
func describeGoogleError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized:
			return errors.New("authorization expired, please reconnect Google Calendar")
		case http.StatusForbidden:
			return errors.New("permission denied by Google Calendar")
		}
		return err
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return errors.New("authorization expired, please reconnect Google Calendar")
	}
	return err
}
