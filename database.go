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

// Package recall wires node storage, the embedding provider and the
// retrieval components into a single Database.
package recall

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/recall/ai"
	"github.com/poiesic/recall/ai/openai"
	"github.com/poiesic/recall/cache"
	"github.com/poiesic/recall/classifier"
	"github.com/poiesic/recall/config"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/fragment"
	"github.com/poiesic/recall/lexical"
	"github.com/poiesic/recall/metrics"
	"github.com/poiesic/recall/similarity"
	"github.com/poiesic/recall/storage"
	"github.com/poiesic/recall/storage/badger"
	redisstore "github.com/poiesic/recall/storage/redis"
	"golang.org/x/time/rate"
)

// DefaultCachePrefix is the cache store prefix of the node label classifier.
const DefaultCachePrefix = "classifier"

type Database struct {
	backend     *badger.Backend
	nodeRepo    storage.NodeRepository
	kvArea      storage.KVArea
	closeKV     func() error
	provider    ai.AIProvider
	index       *similarity.Index
	cachePrefix string
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig       *ai.Config
	provider       ai.AIProvider
	inMemory       bool
	redis          *redisstore.Options
	cachePrefix    string
	similarityOpts []similarity.Option
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

// WithAIConfig sets the embedding service configuration.
func WithAIConfig(cfg *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = cfg
	}
}

// WithAIProvider uses provider instead of creating an OpenAI-compatible one.
// The database closes the provider on Close.
func WithAIProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithInMemory keeps all data in memory; the file path is ignored.
func WithInMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// WithRedisCache stores the classifier cache in Redis instead of Badger.
func WithRedisCache(opts redisstore.Options) DatabaseOption {
	return func(o *databaseOptions) {
		o.redis = &opts
	}
}

// WithCachePrefix sets the key prefix of the classifier cache.
func WithCachePrefix(prefix string) DatabaseOption {
	return func(o *databaseOptions) {
		o.cachePrefix = prefix
	}
}

// WithSimilarityOptions passes options to the similarity index.
func WithSimilarityOptions(opts ...similarity.Option) DatabaseOption {
	return func(o *databaseOptions) {
		o.similarityOpts = append(o.similarityOpts, opts...)
	}
}

// WithMetrics records activity of every component in m.
func WithMetrics(m *metrics.Metrics) DatabaseOption {
	return func(o *databaseOptions) {
		o.metrics = m
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

// OptionsFromConfig translates a loaded configuration into database options.
func OptionsFromConfig(cfg *config.Config) []DatabaseOption {
	opts := []DatabaseOption{
		WithAIConfig(ai.NewConfig(
			ai.WithEmbeddingHost(cfg.AI.EmbeddingHost),
			ai.WithEmbeddingModel(cfg.AI.EmbeddingModel),
			ai.WithToken(cfg.AI.Token),
		)),
		WithCachePrefix(cfg.Cache.Prefix),
		WithSimilarityOptions(
			similarity.WithMaxDistance(cfg.Similarity.MaxDistance),
			similarity.WithMaxResults(cfg.Similarity.MaxResults),
			similarity.WithSweepRate(rate.Limit(cfg.Similarity.SweepRate), 1),
			similarity.WithPoolSize(cfg.Similarity.PoolSize),
			similarity.WithRetry(cfg.Similarity.RetryAttempts, cfg.Similarity.RetryDelay),
			similarity.WithFragmentOptions(fragment.Options{
				PrefixWords:    cfg.Fragment.PrefixWords,
				SuffixWords:    cfg.Fragment.SuffixWords,
				MaxMatchTokens: cfg.Fragment.MaxMatchTokens,
				HighlightGap:   cfg.Fragment.HighlightGap,
			}),
		),
	}
	if cfg.Storage.InMemory {
		opts = append(opts, WithInMemory())
	}
	if cfg.Cache.Backend == config.CacheBackendRedis {
		opts = append(opts, WithRedisCache(redisstore.Options{
			Addr:      cfg.Cache.Redis.Addr,
			Password:  cfg.Cache.Redis.Password,
			DB:        cfg.Cache.Redis.DB,
			PoolSize:  cfg.Cache.Redis.PoolSize,
			Namespace: "recall:",
		}))
	}
	return opts
}

// NewDatabase opens the Badger database at filePath and wires the similarity
// index and classifier cache on top of it.
func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		aiConfig:    ai.DefaultConfig(),
		cachePrefix: DefaultCachePrefix,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	nodeRepo, err := badger.NewNodeRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	db := &Database{
		backend:     backend,
		nodeRepo:    nodeRepo,
		kvArea:      badger.NewKVArea(backend),
		closeKV:     func() error { return nil },
		cachePrefix: options.cachePrefix,
		metrics:     options.metrics,
		logger:      options.logger,
	}

	if options.redis != nil {
		area, err := redisstore.NewKVArea(context.Background(), *options.redis)
		if err != nil {
			db.closeStorage()
			return nil, err
		}
		db.kvArea = area
		db.closeKV = area.Close
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			db.closeStorage()
			return nil, err
		}
	}
	db.provider = provider

	simOpts := append([]similarity.Option{
		similarity.WithLogger(options.logger),
		similarity.WithMetrics(options.metrics),
	}, options.similarityOpts...)
	db.index, err = similarity.New(nodeRepo, provider, simOpts...)
	if err != nil {
		provider.Close()
		db.closeStorage()
		return nil, err
	}

	return db, nil
}

// Close stops background maintenance and releases every resource.
func (db *Database) Close() error {
	if err := db.index.Close(); err != nil {
		db.logger.Error("error closing similarity index", "err", err)
	}
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
	}
	return db.closeStorage()
}

func (db *Database) closeStorage() error {
	var errs []error
	if err := db.closeKV(); err != nil {
		db.logger.Error("error closing cache area", "err", err)
		errs = append(errs, err)
	}
	if err := db.nodeRepo.Close(); err != nil {
		db.logger.Error("error closing node repository", "err", err)
		errs = append(errs, err)
	}
	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (db *Database) NodeRepository() storage.NodeRepository {
	return db.nodeRepo
}

func (db *Database) Similarity() *similarity.Index {
	return db.index
}

// AddNodes stores new nodes. With maintenance started their embeddings are
// computed in the background.
func (db *Database) AddNodes(ctx context.Context, nodes ...*core.Node) ([]*core.Node, error) {
	return db.nodeRepo.AddNodes(ctx, nodes...)
}

// StartMaintenance starts the background embedding updater and sweep.
func (db *Database) StartMaintenance(ctx context.Context) error {
	return db.index.Start(ctx)
}

// SearchSimilar runs a similarity search. See similarity.Index.Search.
func (db *Database) SearchSimilar(ctx context.Context, phrase string, excluded []core.ID) ([]similarity.Match, error) {
	return db.index.Search(ctx, phrase, excluded)
}

// LexicalMatch is a node ranked by SearchLexical.
type LexicalMatch struct {
	Id    core.ID
	Score float64
}

// SearchLexical ranks stored nodes against text with BM25+ and returns at
// most limit matches (limit <= 0 means all). The index is built from the
// current contents of storage on every call.
func (db *Database) SearchLexical(ctx context.Context, text string, limit int) ([]LexicalMatch, error) {
	start := time.Now()
	db.metrics.LexicalSearch()

	index := lexical.NewIndex()
	for node, err := range db.nodeRepo.Nodes(ctx) {
		if err != nil {
			return nil, err
		}
		index.Add(lexicalID(node.Id), LexicalText(node))
	}

	found := index.Search(text, limit)
	matches := make([]LexicalMatch, 0, len(found))
	for _, m := range found {
		id, err := strconv.ParseUint(m.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("lexical document id %q: %w", m.ID, err)
		}
		matches = append(matches, LexicalMatch{Id: core.ID(id), Score: m.Score})
	}
	db.logger.Debug("lexical search", "documents", index.Len(), "matches", len(matches), "elapsed", time.Since(start))
	return matches, nil
}

// lexicalID pads ids so that string order equals numeric order, which keeps
// score ties ordered by ascending node id.
func lexicalID(id core.ID) string {
	return fmt.Sprintf("%020d", uint64(id))
}

// LexicalText is the text indexed for a node: its note text followed by the
// bookmark title, description and page text.
func LexicalText(node *core.Node) string {
	parts := []string{node.Text}
	if b := node.Bookmark; b != nil {
		parts = append(parts, b.Title, b.Description, b.WebText)
	}
	return strings.Join(parts, "\n")
}

// NodeEmbedding returns the node's current embedding, computing it first
// when it is missing or stale.
func (db *Database) NodeEmbedding(ctx context.Context, id core.ID) ([]float32, error) {
	info, err := db.nodeRepo.GetSimilarityInfo(ctx, id)
	if storage.IsCorrupt(err) {
		db.logger.Debug("node embedding is unreadable, recomputing", "node", id, "err", err)
		info, err = nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !db.index.IsCurrent(info) {
		if err := db.index.UpdateNode(ctx, id); err != nil {
			return nil, err
		}
		if info, err = db.nodeRepo.GetSimilarityInfo(ctx, id); err != nil {
			return nil, err
		}
	}
	return info.Embedding.Data, nil
}

// EmbedText embeds free text with the configured embedder.
func (db *Database) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return db.provider.Embedder().EmbedText(ctx, text)
}

// OpenClassifier loads the node label classifier. Its cache is invalidated
// whenever the embedding algorithm or version changes.
func (db *Database) OpenClassifier(ctx context.Context) (*classifier.Cached, error) {
	store := cache.New(db.kvArea, db.cachePrefix,
		cache.WithLogger(db.logger),
		cache.WithMetrics(db.metrics))
	signature := classifier.Signature(db.index.CurrentAlgorithm(), similarity.EmbeddingVersion)
	return classifier.Create(ctx, store, signature,
		classifier.WithLogger(db.logger),
		classifier.WithMetrics(db.metrics))
}
