// Package classifier persists a knn.Classifier through a cache.Store so the
// examples survive restarts without being re-embedded.
//
// The cache is keyed by a signature derived from the embedding algorithm.
// When the algorithm changes the stored examples are discarded, since
// vectors from different models cannot be compared.
package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/poiesic/recall/cache"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/knn"
	"github.com/poiesic/recall/metrics"
)

// Signature derives the cache signature for examples embedded with the
// given algorithm and embedding version.
func Signature(algorithm string, version int) string {
	return core.Digest("knn-classifier", algorithm, strconv.Itoa(version))
}

// Cached is a knn classifier whose examples are written through to a cache
// store. Writes update memory first and are not rolled back if persisting
// fails. A Cached must have a single writer.
type Cached struct {
	store   *cache.Store
	knn     *knn.Classifier
	labels  []string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Cached classifier.
type Option func(*Cached)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cached) {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
	}
}

// WithMetrics counts example changes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cached) {
		c.metrics = m
	}
}

// Create validates the store against expectedSignature, wiping it on
// mismatch, and loads every persisted label class into a new classifier.
func Create(ctx context.Context, store *cache.Store, expectedSignature string, opts ...Option) (*Cached, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if expectedSignature == "" {
		return nil, ErrEmptySignature
	}

	c := &Cached{
		store:  store,
		knn:    knn.New(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "classifier", "prefix", store.Prefix())

	invalidated, err := store.EnsureValid(ctx, expectedSignature)
	if err != nil {
		return nil, fmt.Errorf("validating cache: %w", err)
	}
	if invalidated {
		c.logger.Info("classifier cache reset")
		return c, nil
	}

	v, ok, err := store.Get(ctx, cache.AllLabelsKey{})
	if err != nil {
		return nil, fmt.Errorf("reading labels: %w", err)
	}
	if !ok {
		return c, nil
	}
	labels := v.(cache.AllLabelsValue).Labels

	keys := make([]cache.Key, len(labels))
	for i, label := range labels {
		keys[i] = cache.LabelClassKey{Label: label}
	}
	values, err := store.GetMany(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("reading label classes: %w", err)
	}

	for i, label := range labels {
		if values[i] == nil {
			c.logger.Warn("label listed without examples", "label", label)
			continue
		}
		class := values[i].(cache.LabelClassValue).Class
		if err := c.knn.SetClassDataset(label, class); err != nil {
			c.logger.Warn("skipping unusable label examples", "label", label, "err", err)
			continue
		}
		if !slices.Contains(c.labels, label) {
			c.labels = append(c.labels, label)
		}
	}
	c.logger.Debug("classifier loaded", "labels", len(c.labels))
	return c, nil
}

// AddExample adds vec as an example of label and persists the label's
// normalised examples together with the label list.
func (c *Cached) AddExample(ctx context.Context, vec []float32, label string) error {
	if err := c.knn.AddExample(vec, label); err != nil {
		return err
	}
	c.metrics.ClassifierExample("add")

	class, _ := c.knn.ClassDataset(label)
	if !slices.Contains(c.labels, label) {
		c.labels = append(c.labels, label)
	}

	err := c.store.Set(ctx,
		cache.Entry{Key: cache.AllLabelsKey{}, Value: cache.AllLabelsValue{Labels: slices.Clone(c.labels)}},
		cache.Entry{Key: cache.LabelClassKey{Label: label}, Value: cache.LabelClassValue{Class: class}},
	)
	if err != nil {
		return fmt.Errorf("persisting examples of %q: %w", label, err)
	}
	return nil
}

// ClearClass removes every example of label from memory and from the store.
func (c *Cached) ClearClass(ctx context.Context, label string) error {
	c.knn.ClearClass(label)
	c.metrics.ClassifierExample("clear")
	c.labels = slices.DeleteFunc(c.labels, func(l string) bool { return l == label })

	if err := c.store.Remove(ctx, cache.LabelClassKey{Label: label}); err != nil {
		return fmt.Errorf("removing examples of %q: %w", label, err)
	}
	err := c.store.Set(ctx, cache.Entry{
		Key:   cache.AllLabelsKey{},
		Value: cache.AllLabelsValue{Labels: slices.Clone(c.labels)},
	})
	if err != nil {
		return fmt.Errorf("rewriting labels: %w", err)
	}
	return nil
}

// PredictClass classifies input against the in-memory examples.
func (c *Cached) PredictClass(input []float32, k int) (knn.Prediction, error) {
	return c.knn.PredictClass(input, k)
}

// Labels returns the labels with examples, in the order they were first added.
func (c *Cached) Labels() []string {
	return slices.Clone(c.labels)
}
