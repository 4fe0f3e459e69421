package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/ingestion"
	"github.com/poiesic/recall/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

const snippetRunes = 80

func addCommand(c *cli.Context) error {
	text := c.String("text")
	url := c.String("url")
	if text == "" && url == "" {
		return fmt.Errorf("either --text or --url is required")
	}

	node := &core.Node{Text: text}
	if url != "" {
		node.Bookmark = &core.Bookmark{
			URL:         url,
			Title:       c.String("title"),
			Description: c.String("description"),
		}
		if path := c.Path("web-text-file"); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read web text: %w", err)
			}
			node.Bookmark.WebText = string(data)
		}
	}

	db, _, err := openDatabase(c, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	added, err := db.AddNodes(c.Context, node)
	if err != nil {
		return fmt.Errorf("failed to add node: %w", err)
	}
	id := added[0].Id

	if !c.Bool("no-embed") {
		// The node is stored either way; a later sweep picks up failures.
		if err := db.Similarity().UpdateNode(c.Context, id); err != nil {
			slog.Warn("embedding deferred", "id", id, "err", err)
		}
	}

	fmt.Fprintf(c.App.Writer, "added node %d\n", id)
	return nil
}

func importCommand(c *cli.Context) error {
	f, err := os.Open(c.Path("file"))
	if err != nil {
		return fmt.Errorf("failed to open import file: %w", err)
	}
	defer f.Close()

	nodes, err := ingestion.ReadRecords(f)
	if err != nil {
		return err
	}

	db, _, err := openDatabase(c, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	if c.Bool("no-embed") {
		added, err := db.AddNodes(c.Context, nodes...)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "imported %d nodes\n", len(added))
		return nil
	}

	pipeline, err := ingestion.NewPipeline(db.NodeRepository(), db.Similarity(),
		ingestion.WithBatchSize(c.Int("batch-size")),
		ingestion.WithPoolSize(c.Int("workers")),
		ingestion.WithLogger(slog.Default()))
	if err != nil {
		return err
	}
	defer pipeline.Release()

	added, err := pipeline.Ingest(c.Context, nodes...)
	if err != nil {
		return err
	}
	embedded, err := pipeline.Wait()
	if err != nil {
		// The nodes are stored; a later sweep embeds the rest.
		slog.Warn("some embeddings failed", "err", err)
	}
	fmt.Fprintf(c.App.Writer, "imported %d nodes, embedded %d\n", len(added), embedded)
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("search text is required")
	}

	db, _, err := openDatabase(c, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	matches, err := db.SearchLexical(c.Context, query, c.Int("limit"))
	if err != nil {
		return err
	}
	repo := db.NodeRepository()
	for _, m := range matches {
		node, err := repo.GetNode(c.Context, m.Id)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%d\t%.4f\t%s\n", m.Id, m.Score, snippet(node))
	}
	return nil
}

func similarCommand(c *cli.Context) error {
	phrase := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(phrase) == "" {
		return fmt.Errorf("search phrase is required")
	}
	var excluded []core.ID
	for _, id := range c.Int64Slice("exclude") {
		if id <= 0 {
			return fmt.Errorf("invalid node id %d", id)
		}
		excluded = append(excluded, core.ID(id))
	}

	db, _, err := openDatabase(c, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	matches, err := db.SearchSimilar(c.Context, phrase, excluded)
	if err != nil {
		return err
	}
	for _, m := range matches {
		fmt.Fprintf(c.App.Writer, "%d\t%.4f\t%s\n", m.Node.Id, m.Distance, snippet(m.Node))
		if m.Quote != nil {
			fmt.Fprintf(c.App.Writer, "\t%s[%s]%s\n", m.Quote.Prefix, m.Quote.Match, m.Quote.Suffix)
		}
	}
	return nil
}

func sweepCommand(c *cli.Context) error {
	db, _, err := openDatabase(c, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := db.Similarity().Sweep(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "visited %d, current %d, refreshed %d, failed %d\n",
		result.Visited, result.Current, result.Refreshed, result.Failed)
	return nil
}

func statsCommand(c *cli.Context) error {
	db, _, err := openDatabase(c, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := db.Similarity().Stats(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "current %d, stale %d, missing %d\n", stats.Current, stats.Stale, stats.Missing)
	return nil
}

func labelAddCommand(c *cli.Context) error {
	db, _, err := openDatabase(c, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	id := core.ID(c.Uint64("node"))
	vec, err := db.NodeEmbedding(c.Context, id)
	if err != nil {
		return fmt.Errorf("failed to embed node %d: %w", id, err)
	}
	clf, err := db.OpenClassifier(c.Context)
	if err != nil {
		return err
	}
	if err := clf.AddExample(c.Context, vec, c.String("label")); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "labelled node %d as %q\n", id, c.String("label"))
	return nil
}

func labelClearCommand(c *cli.Context) error {
	db, _, err := openDatabase(c, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	clf, err := db.OpenClassifier(c.Context)
	if err != nil {
		return err
	}
	if err := clf.ClearClass(c.Context, c.String("label")); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "cleared label %q\n", c.String("label"))
	return nil
}

func labelPredictCommand(c *cli.Context) error {
	if c.IsSet("node") == c.IsSet("text") {
		return fmt.Errorf("exactly one of --node or --text is required")
	}

	db, _, err := openDatabase(c, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	var vec []float32
	if c.IsSet("node") {
		vec, err = db.NodeEmbedding(c.Context, core.ID(c.Uint64("node")))
	} else {
		vec, err = db.EmbedText(c.Context, c.String("text"))
	}
	if err != nil {
		return err
	}

	clf, err := db.OpenClassifier(c.Context)
	if err != nil {
		return err
	}
	prediction, err := clf.PredictClass(vec, c.Int("k"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s\t%.2f\n", prediction.Label, prediction.Confidences[prediction.Label])
	return nil
}

func serveCommand(c *cli.Context) error {
	m := metrics.New(prometheus.DefaultRegisterer)
	db, cfg, err := openDatabase(c, m)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.StartMaintenance(ctx); err != nil {
		return err
	}
	slog.Info("serving", "db", cfg.Storage.Path)

	if !cfg.Metrics.Enabled && !c.IsSet("listen") {
		<-ctx.Done()
		slog.Info("shutting down")
		return nil
	}

	shutdown := metrics.StartServer(cfg.Metrics.Listen, prometheus.DefaultGatherer)
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// snippet is a one line preview of a node.
func snippet(node *core.Node) string {
	text := node.Text
	if b := node.Bookmark; b != nil && b.Title != "" {
		text = b.Title
	} else if text == "" && b != nil {
		text = b.URL
	}
	text = strings.Join(strings.Fields(text), " ")
	if r := []rune(text); len(r) > snippetRunes {
		text = string(r[:snippetRunes]) + "..."
	}
	return text
}
