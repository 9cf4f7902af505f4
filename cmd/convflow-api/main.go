package main

import (
	"context"
	"os"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/convflow/convflow/pkg/cmd"
	"github.com/convflow/convflow/pkg/llm"
	"github.com/convflow/convflow/pkg/log"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "convflow-api",
		Usage:                 "Run the conversation workflow engine API",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka); empty disables eventing",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:     "llm-api-url",
				Usage:    "Base URL of the OpenAI-compatible chat API",
				Required: true,
				Sources:  cli.EnvVars("LLM_API_URL"),
			},
			&cli.StringFlag{
				Name:    "llm-api-key",
				Usage:   "API key for the chat API",
				Sources: cli.EnvVars("LLM_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "llm-model",
				Usage:   "Default model for chat completions",
				Value:   "gpt-4o-mini",
				Sources: cli.EnvVars("LLM_MODEL"),
			},
			&cli.StringFlag{
				Name:    "retriever-url",
				Usage:   "Endpoint of the knowledge retrieval service",
				Sources: cli.EnvVars("RETRIEVER_URL"),
			},
			&cli.StringFlag{
				Name:    "retriever-api-key",
				Usage:   "API key for the retrieval service",
				Sources: cli.EnvVars("RETRIEVER_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for conversation history; empty disables history",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.DurationFlag{
				Name:    "pause-ttl",
				Usage:   "How long a suspended run waits for user input",
				Value:   30 * time.Minute,
				Sources: cli.EnvVars("PAUSE_TTL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing convflow API")

			store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "convflow-api", logger)
			if err != nil {
				return err
			}

			if eventBus != nil {
				defer func() {
					if err := eventBus.Close(); err != nil {
						logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
					}
				}()
			}

			chatClient := llm.NewOpenAIClient(
				command.String("llm-api-url"),
				command.String("llm-api-key"),
				command.String("llm-model"),
			)

			var retriever llm.Retriever
			if url := command.String("retriever-url"); url != "" {
				retriever = llm.NewHTTPRetriever(url, command.String("retriever-api-key"))
			}

			api := NewAPI(ctx, APIConfig{
				Logger:     logger,
				Store:      store,
				EventBus:   eventBus,
				ChatClient: chatClient,
				Retriever:  retriever,
				RedisURL:   command.String("redis-url"),
				PauseTTL:   command.Duration("pause-ttl"),
			})

			return api.Start(int(command.Int("port")))
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
