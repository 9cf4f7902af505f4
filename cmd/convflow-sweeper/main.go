// Package main runs the suspension sweeper: a small daemon that expires
// overdue paused workflow runs and purges old terminal records.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/convflow/convflow/pkg/cmd"
	"github.com/convflow/convflow/pkg/eventbus"
	"github.com/convflow/convflow/pkg/log"
	"github.com/convflow/convflow/pkg/suspension"
)

func main() {
	logger := log.WithModule("sweeper")

	command := &cli.Command{
		Name:                  "convflow-sweeper",
		Usage:                 "Expire overdue workflow suspensions and purge old records",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
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
				Name:    "schedule",
				Usage:   "Cron schedule of the sweep",
				Value:   suspension.DefaultSweepSchedule,
				Sources: cli.EnvVars("SWEEP_SCHEDULE"),
			},
			&cli.DurationFlag{
				Name:    "retention",
				Usage:   "How long terminal suspension records are kept",
				Value:   suspension.DefaultRetention,
				Sources: cli.EnvVars("SWEEP_RETENTION"),
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

			logger.InfoContext(ctx, "Initializing convflow sweeper")

			store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "convflow-sweeper", logger)
			if err != nil {
				return err
			}

			var publisher eventbus.EventPublisher
			if eventBus != nil {
				publisher = eventBus

				defer func() {
					if err := eventBus.Close(); err != nil {
						logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
					}
				}()
			}

			sweeper := suspension.NewSweeper(
				logger,
				store,
				publisher,
				command.String("schedule"),
				command.Duration("retention"),
			)

			// One pass up front so a crashed-and-restarted sweeper catches
			// up immediately instead of waiting for the next tick.
			if err := sweeper.Sweep(ctx); err != nil {
				logger.ErrorContext(ctx, "Initial sweep failed", "error", err)
			}

			if err := sweeper.Start(ctx); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			<-stop

			logger.InfoContext(ctx, "Shutting down sweeper")
			sweeper.Stop()

			// Give a running sweep a moment to release resources.
			time.Sleep(100 * time.Millisecond)

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
