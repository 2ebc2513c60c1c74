package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/samirrijal/soundlines/internal/adapters/postgres"
	"github.com/samirrijal/soundlines/internal/core/fetch"
)

// commandDump initializes the source, fetches one collection, decodes it and
// prints the result. It exercises the same decode path as the worker.
func commandDump(c *cli.Context) error {
	kind := c.Args().First()
	if kind != "entities" && kind != "cells" {
		return cli.Exit("usage: soundlines dump entities|cells", 2)
	}

	cfg, err := loadConfig(c, "soundlines-dump")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}

	source := postgres.NewSource(cfg.Database.DSN(), 1, cfg.Database.QueryTimeout)
	if err := source.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer source.Close()

	var out any
	switch kind {
	case "entities":
		raw, err := source.FetchEntitiesRaw(ctx)
		if err != nil {
			return err
		}
		entities, err := fetch.DecodeEntities(raw)
		if err != nil {
			return err
		}
		slog.Info("entities fetched", "count", len(entities))
		out = entities
	case "cells":
		raw, err := source.FetchCellsRaw(ctx)
		if err != nil {
			return err
		}
		cells, err := fetch.DecodeCells(raw)
		if err != nil {
			return err
		}
		slog.Info("cells fetched", "count", len(cells))
		out = cells
	}

	enc := json.NewEncoder(os.Stdout)
	if c.Bool("pretty") {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(out)
}
