package similarity

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/fragment"
	"github.com/poiesic/recall/nlp"
	"github.com/poiesic/recall/storage"
	"golang.org/x/sync/singleflight"
)

// Match is a node close to the query phrase.
type Match struct {
	Node     *core.Node
	Distance float32
	// Quote is the passage of the bookmark's page text best matching the
	// phrase. Nil for nodes without page text or without a matching sentence.
	Quote *fragment.Quote
}

type candidate struct {
	id       core.ID
	distance float32
}

// Search returns the stored nodes whose embedding is within the maximum
// distance of phrase, closest first, ties by ascending id. Nodes listed in
// excluded, nodes without an embedding and nodes with a stale embedding are
// skipped.
func (ix *Index) Search(ctx context.Context, phrase string, excluded []core.ID) ([]Match, error) {
	start := time.Now()
	matches, err := ix.search(ctx, phrase, excluded)
	if err != nil && ctx.Err() != nil && !errors.Is(err, ErrCancelled) {
		// storage and embedder errors caused by cancellation are reported as such
		matches, err = nil, cancelled(ctx)
	}
	switch {
	case errors.Is(err, ErrCancelled):
		ix.logger.Debug("search cancelled", "phrase", phrase, "err", err)
		ix.metrics.ObserveSearch("cancelled", time.Since(start), 0)
	case err != nil:
		ix.logger.Error("search failed", "phrase", phrase, "err", err)
		ix.metrics.ObserveSearch("error", time.Since(start), 0)
	default:
		ix.metrics.ObserveSearch("ok", time.Since(start), len(matches))
	}
	return matches, err
}

func (ix *Index) search(ctx context.Context, phrase string, excluded []core.ID) ([]Match, error) {
	if err := cancelled(ctx); err != nil {
		return nil, err
	}

	query, err := ix.embedQuery(ctx, phrase)
	if err != nil {
		return nil, err
	}

	ids, err := ix.repository.GetAllNodeIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing node ids: %w", err)
	}
	if err := cancelled(ctx); err != nil {
		return nil, err
	}

	skip := make(map[core.ID]struct{}, len(excluded))
	for _, id := range excluded {
		skip[id] = struct{}{}
	}

	algorithm := ix.CurrentAlgorithm()
	candidates := make([]candidate, 0)
	for _, id := range ids {
		if err := cancelled(ctx); err != nil {
			return nil, err
		}
		if _, ok := skip[id]; ok {
			ix.metrics.CandidateSkipped("excluded")
			continue
		}

		info, err := ix.repository.GetSimilarityInfo(ctx, id)
		if storage.IsCorrupt(err) {
			ix.logger.Debug("node embedding is unreadable", "node", id, "err", err)
			ix.metrics.CandidateSkipped("stale")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading embedding of node %d: %w", id, err)
		}
		if info == nil {
			ix.logger.Debug("node has no embedding", "node", id)
			ix.metrics.CandidateSkipped("missing")
			continue
		}
		if !IsCurrent(info, algorithm, EmbeddingVersion) || info.Embedding.Cols() != len(query) {
			ix.logger.Debug("node embedding is stale", "node", id, "algorithm", info.Algorithm, "version", info.Version)
			ix.metrics.CandidateSkipped("stale")
			continue
		}

		d := ix.distanceFunc(query, info.Embedding.Data)
		if d < ix.maxDistance {
			candidates = append(candidates, candidate{id: id, distance: d})
		}
	}

	slices.SortFunc(candidates, func(a, b candidate) int {
		if c := cmp.Compare(a.distance, b.distance); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})
	if len(candidates) > ix.maxResults {
		candidates = candidates[:ix.maxResults]
	}
	if len(candidates) == 0 {
		return []Match{}, nil
	}

	wanted := make([]core.ID, len(candidates))
	for i, c := range candidates {
		wanted[i] = c.id
	}
	nodes, err := ix.repository.GetNodes(ctx, wanted...)
	if err != nil {
		return nil, fmt.Errorf("loading matched nodes: %w", err)
	}
	byID := make(map[core.ID]*core.Node, len(nodes))
	for _, node := range nodes {
		byID[node.Id] = node
	}

	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		if err := cancelled(ctx); err != nil {
			return nil, err
		}
		node, ok := byID[c.id]
		if !ok {
			ix.logger.Warn("matched node disappeared", "node", c.id)
			continue
		}

		match := Match{Node: node, Distance: c.distance}
		if node.HasWebText() {
			doc := nlp.Analyze(node.Bookmark.WebText)
			if quote, found := fragment.FindQuote(doc, phrase, ix.fragmentOpts); found {
				match.Quote = &quote
			}
		}
		matches = append(matches, match)
	}

	return matches, nil
}

// embedQuery embeds phrase, sharing the call between concurrent searches
// for the same phrase. The shared call is not cancelled with any one
// caller's context; each caller stops waiting when its own context ends.
func (ix *Index) embedQuery(ctx context.Context, phrase string) ([]float32, error) {
	detached := context.WithoutCancel(ctx)
	ch := ix.queries.DoChan(phrase, func() (any, error) {
		return ix.getEmbedder().EmbedText(detached, phrase)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, cancelled(ctx)
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, fmt.Errorf("embedding query: %w", res.Err)
	}
	if res.Shared {
		ix.logger.Debug("query embedding shared", "phrase", phrase)
	}
	vec := res.Val.([]float32)
	if len(vec) == 0 {
		return nil, fmt.Errorf("embedding query: %w", ErrEmptyEmbedding)
	}
	return vec, nil
}

func cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Join(ErrCancelled, err)
	}
	return nil
}
