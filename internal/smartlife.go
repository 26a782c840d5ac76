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

package smartlife

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blockarchitech.com/smartlife/internal/config"
	"blockarchitech.com/smartlife/internal/handler"
	"blockarchitech.com/smartlife/internal/logging"
	"blockarchitech.com/smartlife/internal/repository"
	"blockarchitech.com/smartlife/internal/service"
	"blockarchitech.com/smartlife/internal/storage"
	"cloud.google.com/go/firestore"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const serviceName = "smartlife"

type App struct {
	logger *zap.Logger
	cfg    *config.Config
	server *http.Server
}

// NewApp loads configuration and builds the logger.
func NewApp() (*App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return nil, fmt.Errorf("can't initialize zap logger: %w", err)
	}
	return &App{
		logger: logger,
		cfg:    cfg,
	}, nil
}

// Run serves HTTP until SIGINT or SIGTERM, then shuts down gracefully.
func (a *App) Run() error {
	defer a.logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var tp *sdktrace.TracerProvider
	if a.cfg.OtelExporterEndpoint != "" {
		var err error
		if tp, err = a.initTracerProvider(ctx); err != nil {
			return err
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				a.logger.Error("Error shutting down tracer provider", zap.Error(err))
			}
		}()
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	}
	tracer := otel.Tracer(serviceName)

	// one Firestore client serves the repository and the state store
	var fsClient *firestore.Client
	if a.cfg.StorageType == "firestore" {
		var err error
		if fsClient, err = firestore.NewClient(ctx, a.cfg.GCPProjectID); err != nil {
			return fmt.Errorf("failed to create firestore client: %w", err)
		}
		defer fsClient.Close()
		a.logger.Info("Successfully connected to Firestore", zap.String("projectID", a.cfg.GCPProjectID))
	}

	repo, err := a.initRepository(ctx, fsClient)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	defer repo.Close()

	states, err := a.initStateStore(ctx, fsClient)
	if err != nil {
		return fmt.Errorf("failed to initialize oauth state store: %w", err)
	}
	defer states.Close()

	assistant, closeAssistant := a.initAssistant(ctx, tracer)
	defer closeAssistant()

	var calendar service.CalendarProvider
	if a.cfg.CalendarConfigured() {
		calendar = service.NewGoogleCalendarService(a.cfg.GoogleOAuthConfig, tracer, a.logger)
	} else {
		a.logger.Warn("GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET not set; calendar features are disabled")
	}

	planner := service.NewPlanner(repo, assistant, tracer, a.logger)
	scheduler := service.NewScheduler(repo, calendar, a.cfg.ScheduleEventMinutes, a.cfg.ScheduleHorizonDays, a.cfg.DefaultTimezone, tracer, a.logger)

	handlers := handler.NewHttpHandlers(a.logger, a.cfg, repo, planner, scheduler, calendar, states, tracer)
	defer handlers.Close()

	router := a.setupRouter(handlers, tp)

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", a.cfg.Port),
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("Server starting", zap.String("address", a.server.Addr), zap.String("storage", a.cfg.StorageType))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("could not listen on %s: %w", a.server.Addr, err)
	}
	a.logger.Info("Server shutting down...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := a.server.Shutdown(ctxShutdown); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	a.logger.Info("Server exited properly")
	return nil
}

func (a *App) initTracerProvider(ctx context.Context) (*sdktrace.TracerProvider, error) {
	traceExporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(a.cfg.OtelExporterEndpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP HTTP trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(a.cfg.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenTelemetry resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	a.logger.Info("OTLP HTTP trace exporter initialized", zap.String("endpoint", a.cfg.OtelExporterEndpoint))
	return tp, nil
}

func (a *App) initRepository(ctx context.Context, fsClient *firestore.Client) (repository.Repository, error) {
	switch a.cfg.StorageType {
	case "sqlite":
		return repository.NewSQLRepository(ctx, repository.DialectSQLite, a.cfg.DatabaseURL, a.cfg.EncryptionKey, a.logger)
	case "postgres":
		return repository.NewSQLRepository(ctx, repository.DialectPostgres, a.cfg.DatabaseURL, a.cfg.EncryptionKey, a.logger)
	case "firestore":
		return repository.NewFirestoreRepository(fsClient, a.cfg.EncryptionKey, a.logger), nil
	case "inmemory":
		a.logger.Warn("using inmemory repository. Did you mean to do this?")
		return repository.NewInMemoryRepository(a.logger), nil
	default:
		return nil, fmt.Errorf("invalid storage type: %s", a.cfg.StorageType)
	}
}

// initStateStore prefers Redis, then Firestore when that is the main store,
// and falls back to process memory.
func (a *App) initStateStore(ctx context.Context, fsClient *firestore.Client) (storage.StateStore, error) {
	switch {
	case a.cfg.RedisURL != "":
		return storage.NewRedisStateStore(ctx, a.cfg.RedisURL, a.logger)
	case fsClient != nil:
		return storage.NewFirestoreStateStore(fsClient, a.logger), nil
	default:
		return storage.NewInMemoryStateStore(a.logger), nil
	}
}

func (a *App) initAssistant(ctx context.Context, tracer trace.Tracer) (service.Assistant, func()) {
	gemini, err := service.NewGeminiAssistant(ctx, a.cfg.GeminiAPIKey, a.cfg.GeminiModel, tracer, a.logger)
	if err != nil {
		a.logger.Warn("AI assistant disabled", zap.Error(err))
		return service.DisabledAssistant{}, func() {}
	}
	return gemini, func() {
		if err := gemini.Close(); err != nil {
			a.logger.Warn("Failed to close AI client", zap.Error(err))
		}
	}
}

func (a *App) setupRouter(handlers *handler.HttpHandlers, tp *sdktrace.TracerProvider) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	if tp != nil {
		router.Use(otelgin.Middleware(serviceName+"-http", otelgin.WithTracerProvider(tp)))
	}

	handlers.RegisterRoutes(router)

	router.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/robots.txt", func(c *gin.Context) {
		c.Header("Content-Type", "text/plain")
		c.String(http.StatusOK, "User-agent: *\nDisallow: /\n")
	})

	return router
}
