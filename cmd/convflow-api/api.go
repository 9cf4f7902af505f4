// Package main provides the convflow API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/redis/go-redis/v9"

	"github.com/convflow/convflow/pkg/cmd"
	"github.com/convflow/convflow/pkg/eventbus"
	"github.com/convflow/convflow/pkg/history"
	"github.com/convflow/convflow/pkg/llm"
	"github.com/convflow/convflow/pkg/otelhelper"
	"github.com/convflow/convflow/pkg/persistence"
	"github.com/convflow/convflow/pkg/suspension"
	"github.com/convflow/convflow/pkg/web"
	"github.com/convflow/convflow/pkg/workflow"
)

// APIConfig carries the collaborators the API server wires together.
type APIConfig struct {
	Logger     *slog.Logger
	Store      persistence.Persistence
	EventBus   eventbus.EventBus
	ChatClient llm.ChatClient
	Retriever  llm.Retriever
	RedisURL   string
	PauseTTL   time.Duration
}

type API struct {
	logger   *slog.Logger
	handlers *web.APIHandlers
}

func NewAPI(ctx context.Context, config APIConfig) *API {
	logger := config.Logger

	var publisher eventbus.EventPublisher
	if config.EventBus != nil {
		publisher = config.EventBus
	}

	reg := cmd.NewRegistry(logger, config.ChatClient, config.Retriever)

	suspensions := suspension.NewService(logger, config.Store, publisher, config.PauseTTL)

	var histories history.Loader
	if config.RedisURL != "" {
		opts, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			logger.ErrorContext(ctx, "Invalid redis URL, history disabled", "error", err)
		} else {
			histories = history.NewRedisLoader(logger, redis.NewClient(opts), 0)
		}
	}

	tracer, err := otelhelper.NewTracer(ctx, "convflow-api")
	if err != nil {
		logger.WarnContext(ctx, "Tracing disabled", "error", err)

		tracer = nil
	}

	executor := workflow.NewExecutor(logger, reg, tracer)
	engine := workflow.NewEngine(logger, config.Store, executor, suspensions, histories, publisher)
	manager := workflow.NewManager(logger, config.Store, publisher)

	validate := validator.New(validator.WithRequiredStructEnabled())
	handlers := web.NewAPIHandlers(manager, engine, suspensions, config.Store, validate, reg)

	return &API{logger: logger, handlers: handlers}
}

func (a *API) App() *fiber.App {
	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("convflow API")
	})

	a.handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}
