// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/recall"
	"github.com/poiesic/recall/config"
	"github.com/poiesic/recall/metrics"
	"github.com/urfave/cli/v2"
)

// extraOptions is appended to every database opened by a command.
var extraOptions []recall.DatabaseOption

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func dbFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "db",
		Aliases: []string{"d"},
		Usage:   "Path to BadgerDB database directory (overrides storage.path)",
	}
}

func embeddingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL (overrides ai.embeddingHost)",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name (overrides ai.embeddingModel)",
		},
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "recall",
		Usage: "Relevance and similarity retrieval over saved notes and bookmarks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "add",
				Usage:  "Store a note or bookmark",
				Action: addCommand,
				Flags: append([]cli.Flag{
					dbFlag(),
					&cli.StringFlag{Name: "text", Aliases: []string{"t"}, Usage: "Note text"},
					&cli.StringFlag{Name: "url", Usage: "Bookmark URL"},
					&cli.StringFlag{Name: "title", Usage: "Bookmark title"},
					&cli.StringFlag{Name: "description", Usage: "Bookmark description"},
					&cli.PathFlag{Name: "web-text-file", Usage: "File holding the extracted page text"},
					&cli.BoolFlag{Name: "no-embed", Usage: "Do not compute the embedding now"},
				}, embeddingFlags()...),
			},
			{
				Name:   "import",
				Usage:  "Bulk import nodes from a YAML file",
				Action: importCommand,
				Flags: append([]cli.Flag{
					dbFlag(),
					&cli.PathFlag{Name: "file", Aliases: []string{"f"}, Usage: "YAML file of records", Required: true},
					&cli.IntFlag{Name: "batch-size", Usage: "Number of nodes per embedding request", Value: 32},
					&cli.IntFlag{Name: "workers", Usage: "Number of concurrent embedding requests", Value: 2},
					&cli.BoolFlag{Name: "no-embed", Usage: "Store the nodes without computing embeddings"},
				}, embeddingFlags()...),
			},
			{
				Name:      "search",
				Usage:     "Lexical (BM25+) search over stored nodes",
				ArgsUsage: "<text>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					dbFlag(),
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Maximum results (0 for all)", Value: 10},
				},
			},
			{
				Name:      "similar",
				Usage:     "Similarity search with quoted page passages",
				ArgsUsage: "<phrase>",
				Action:    similarCommand,
				Flags: append([]cli.Flag{
					dbFlag(),
					&cli.Int64SliceFlag{Name: "exclude", Aliases: []string{"x"}, Usage: "Node IDs to leave out"},
				}, embeddingFlags()...),
			},
			{
				Name:   "sweep",
				Usage:  "Recompute missing and stale embeddings",
				Action: sweepCommand,
				Flags:  append([]cli.Flag{dbFlag()}, embeddingFlags()...),
			},
			{
				Name:   "stats",
				Usage:  "Count current, stale and missing embeddings",
				Action: statsCommand,
				Flags:  append([]cli.Flag{dbFlag()}, embeddingFlags()...),
			},
			{
				Name:  "label",
				Usage: "Manage the node label classifier",
				Subcommands: []*cli.Command{
					{
						Name:   "add",
						Usage:  "Use a node as an example of a label",
						Action: labelAddCommand,
						Flags: append([]cli.Flag{
							dbFlag(),
							&cli.Uint64Flag{Name: "node", Usage: "Example node ID", Required: true},
							&cli.StringFlag{Name: "label", Usage: "Label name", Required: true},
						}, embeddingFlags()...),
					},
					{
						Name:   "clear",
						Usage:  "Remove every example of a label",
						Action: labelClearCommand,
						Flags: append([]cli.Flag{
							dbFlag(),
							&cli.StringFlag{Name: "label", Usage: "Label name", Required: true},
						}, embeddingFlags()...),
					},
					{
						Name:   "predict",
						Usage:  "Predict the label of a node or a text",
						Action: labelPredictCommand,
						Flags: append([]cli.Flag{
							dbFlag(),
							&cli.Uint64Flag{Name: "node", Usage: "Node ID to classify"},
							&cli.StringFlag{Name: "text", Usage: "Text to classify"},
							&cli.IntFlag{Name: "k", Usage: "Number of neighbours that vote", Value: 3},
						}, embeddingFlags()...),
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Keep embeddings current in the background, optionally exposing Prometheus metrics",
				Action: serveCommand,
				Flags: append([]cli.Flag{
					dbFlag(),
					&cli.StringFlag{Name: "listen", Usage: "Metrics listen address (overrides metrics.listen)"},
				}, embeddingFlags()...),
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := c.String("log-level")
	if !c.IsSet("log-level") && c.String("config") != "" {
		// The flag wins; otherwise the config file may set logging.level.
		if cfg, err := config.Load(c.String("config")); err == nil && cfg.Logging.Level != "" {
			levelStr = cfg.Logging.Level
		}
	}
	levelStr = strings.ToLower(levelStr)

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

// loadConfig reads the --config file and applies command flags on top.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("db") {
		cfg.Storage.Path = c.String("db")
	}
	if c.IsSet("embedding-host") {
		cfg.AI.EmbeddingHost = c.String("embedding-host")
	}
	if c.IsSet("embedding-model") {
		cfg.AI.EmbeddingModel = c.String("embedding-model")
	}
	if c.IsSet("listen") {
		cfg.Metrics.Listen = c.String("listen")
	}
	return cfg, nil
}

func openDatabase(c *cli.Context, m *metrics.Metrics) (*recall.Database, *config.Config, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	opts := recall.OptionsFromConfig(cfg)
	if m != nil {
		opts = append(opts, recall.WithMetrics(m))
	}
	opts = append(opts, extraOptions...)

	db, err := recall.NewDatabase(cfg.Storage.Path, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, cfg, nil
}
