// Seed tool for loading a synthetic campus into an Argus store and
// exercising the async resolve worker over the event bus.
//
// Usage:
//
//	seed campus --db-path ./argus.db --entities 200 --days 14
//	seed resolve --nats-url nats://localhost:4222 --mode exact --card-id C10003
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/campusguard/argus/internal/bus"
	"github.com/campusguard/argus/internal/domain"
	"github.com/campusguard/argus/internal/repository"
	"github.com/campusguard/argus/internal/worker"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	root := &cli.Command{
		Name:  "seed",
		Usage: "Argus demo data and bus tooling",
		Commands: []*cli.Command{
			campusCommand(),
			resolveCommand(),
		},
	}

	if err := root.Run(context.Background(), args); err != nil {
		slog.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func campusCommand() *cli.Command {
	return &cli.Command{
		Name:  "campus",
		Usage: "Write synthetic profiles and per-source activity into the store",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "driver", Value: "sqlite", Usage: "sqlite or postgres"},
			&cli.StringFlag{Name: "db-path", Value: "./argus.db", Usage: "SQLite database path", Sources: cli.EnvVars("ARGUS_DB_PATH")},
			&cli.StringFlag{Name: "pg-host", Value: "localhost"},
			&cli.IntFlag{Name: "pg-port", Value: 5432},
			&cli.StringFlag{Name: "pg-user", Value: "postgres"},
			&cli.StringFlag{Name: "pg-password", Sources: cli.EnvVars("ARGUS_PG_PASSWORD")},
			&cli.StringFlag{Name: "pg-db", Value: "argus"},
			&cli.IntFlag{Name: "entities", Value: 200, Usage: "number of profiles"},
			&cli.IntFlag{Name: "days", Value: 14, Usage: "days of history per entity"},
			&cli.IntFlag{Name: "seed", Value: 1, Usage: "random seed"},
			&cli.FloatFlag{Name: "silent-ratio", Value: 0.05, Usage: "share of entities with no activity"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := domain.RepositoryConfig{
				Driver:           c.String("driver"),
				SQLitePath:       c.String("db-path"),
				PostgresHost:     c.String("pg-host"),
				PostgresPort:     c.Int("pg-port"),
				PostgresUser:     c.String("pg-user"),
				PostgresPassword: c.String("pg-password"),
				PostgresDB:       c.String("pg-db"),
			}
			opts := CampusOptions{
				Entities:    c.Int("entities"),
				Days:        c.Int("days"),
				Seed:        uint64(c.Int("seed")),
				Now:         time.Now(),
				SilentRatio: c.Float("silent-ratio"),
			}
			return seedCampus(ctx, cfg, opts)
		},
	}
}

func seedCampus(ctx context.Context, cfg domain.RepositoryConfig, opts CampusOptions) error {
	repo, err := repository.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer repo.Close()

	start := time.Now()
	campus := GenerateCampus(opts)

	for _, p := range campus.Profiles {
		if err := repo.SaveProfile(ctx, p); err != nil {
			return fmt.Errorf("failed to save profile %s: %w", p.EntityID, err)
		}
	}

	counts := make(map[domain.Source]int)
	for _, rec := range campus.Activities {
		if err := repo.SaveActivity(ctx, rec); err != nil {
			return fmt.Errorf("failed to save %s activity: %w", rec.Source, err)
		}
		counts[rec.Source]++
	}

	slog.Info("campus seeded",
		"driver", cfg.Driver,
		"profiles", len(campus.Profiles),
		"activities", len(campus.Activities),
		"per_source", counts,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func resolveCommand() *cli.Command {
	return &cli.Command{
		Name:  "resolve",
		Usage: "Send a resolve request to the async worker and print the reply",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "nats-url", Value: "nats://localhost:4222", Sources: cli.EnvVars("ARGUS_NATS_URL")},
			&cli.StringFlag{Name: "mode", Value: worker.ModeFuzzy, Usage: "fuzzy or exact"},
			&cli.StringFlag{Name: "card-id"},
			&cli.StringFlag{Name: "device-hash"},
			&cli.StringFlag{Name: "face-id"},
			&cli.StringFlag{Name: "student-id"},
			&cli.StringFlag{Name: "email"},
			&cli.StringFlag{Name: "name"},
			&cli.DurationFlag{Name: "timeout", Value: 5 * time.Second},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			eventBus, err := bus.New(domain.EventBusConfig{
				Type:              "nats",
				NATSUrl:           c.String("nats-url"),
				NATSMaxReconnects: 2,
				NATSReconnectWait: 1,
			})
			if err != nil {
				return err
			}
			defer eventBus.Close()

			req := worker.ResolveMessage{
				RequestID: uuid.New().String(),
				Mode:      c.String("mode"),
				Identifiers: domain.Identifiers{
					CardID:     c.String("card-id"),
					DeviceHash: c.String("device-hash"),
					FaceID:     c.String("face-id"),
					StudentID:  c.String("student-id"),
					Email:      c.String("email"),
					Name:       c.String("name"),
				},
			}
			payload, err := json.Marshal(req)
			if err != nil {
				return err
			}

			reqCtx, cancel := context.WithTimeout(ctx, c.Duration("timeout"))
			defer cancel()

			reply, err := eventBus.Request(reqCtx, domain.TopicResolveRequest, payload)
			if err != nil {
				return fmt.Errorf("no reply from worker: %w", err)
			}

			var res worker.ResultMessage
			if err := json.Unmarshal(reply, &res); err != nil {
				return fmt.Errorf("failed to decode reply: %w", err)
			}
			out, _ := json.MarshalIndent(res, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
}
