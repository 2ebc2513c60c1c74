package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/samirrijal/soundlines/internal/pkg/config"
	"github.com/samirrijal/soundlines/internal/pkg/logging"
)

func main() {
	app := &cli.App{
		Name:        "soundlines",
		Usage:       "entity and cell viewer for the soundlines simulation database",
		Description: "fetches the simulated entities and grid cells in the background and serves the latest snapshot",
		Flags: []cli.Flag{
			&cli.PathFlag{
				Name:    "config-dir",
				Usage:   "directory searched for config.yaml before . and ./configs",
				EnvVars: []string{"SOUNDLINES_CONFIG_DIR"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override log.level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the fetch worker and the HTTP API",
				Action: commandServe,
			},
			{
				Name:      "dump",
				Usage:     "fetch one collection once and print it as JSON",
				ArgsUsage: "entities|cells",
				Action:    commandDump,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "indent the output",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// loadConfig loads configuration and sets up the default logger.
func loadConfig(c *cli.Context, service string) (*config.Config, error) {
	var paths []string
	if dir := c.Path("config-dir"); dir != "" {
		paths = append(paths, dir)
	}

	cfg, err := config.Load(service, paths...)
	if err != nil {
		return nil, err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}
