package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/samirrijal/soundlines/internal/adapters/postgres"
	"github.com/samirrijal/soundlines/internal/pkg/config"
	"github.com/samirrijal/soundlines/internal/pkg/logging"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down>")
	}

	cfg, err := config.Load("soundlines-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, "text")

	var dir postgres.Direction
	switch os.Args[1] {
	case "up":
		dir = postgres.Up
	case "down":
		dir = postgres.Down
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN(), 1)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db, dir); err != nil {
		log.Fatalf("migrate %s: %v", dir, err)
	}
	slog.Info("all migrations applied", "direction", dir)
}
