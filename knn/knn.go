// Package knn implements an in-memory k-nearest-neighbour classifier over
// embedding vectors.
//
// Examples are L2-normalised when added, so the dot product of two stored
// rows is their cosine similarity. Each label's examples are kept as one
// rank two tensor that can be read back with ClassDataset and restored with
// SetClassDataset.
package knn

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/hupe1980/vecgo/distance"
	"github.com/poiesic/recall/core"
)

// Prediction is the outcome of PredictClass.
type Prediction struct {
	Label string
	// Confidences maps each label among the k nearest examples to its share of the vote.
	Confidences map[string]float64
}

// Classifier holds labelled example vectors.
// It is not safe for concurrent mutation.
type Classifier struct {
	classes map[string]core.Tensor
	dim     int
}

// New creates an empty classifier.
func New() *Classifier {
	return &Classifier{classes: make(map[string]core.Tensor)}
}

// AddExample normalises vec and appends it to the examples of label.
func (c *Classifier) AddExample(vec []float32, label string) error {
	if label == "" {
		return ErrEmptyLabel
	}
	if err := c.checkDim(len(vec)); err != nil {
		return err
	}
	row, ok := distance.NormalizeL2Copy(vec)
	if !ok {
		return ErrZeroVector
	}

	t := c.classes[label]
	data := append(slices.Clone(t.Data), row...)
	c.classes[label] = core.Tensor{Data: data, Shape: []int{t.Rows() + 1, len(row)}}
	c.dim = len(row)
	return nil
}

// ClearClass removes every example of label.
func (c *Classifier) ClearClass(label string) {
	delete(c.classes, label)
	if len(c.classes) == 0 {
		c.dim = 0
	}
}

// ClassDataset returns a copy of the normalised examples of label.
func (c *Classifier) ClassDataset(label string) (core.Tensor, bool) {
	t, ok := c.classes[label]
	if !ok {
		return core.Tensor{}, false
	}
	return core.Tensor{Data: slices.Clone(t.Data), Shape: slices.Clone(t.Shape)}, true
}

// SetClassDataset replaces the examples of label with t.
// Rows are stored as given; t is expected to come from ClassDataset.
// An empty tensor clears the class.
func (c *Classifier) SetClassDataset(label string, t core.Tensor) error {
	if label == "" {
		return ErrEmptyLabel
	}
	if err := core.ValidateTensor(t); err != nil {
		return err
	}
	if len(t.Shape) > 2 {
		return fmt.Errorf("%w: rank %d dataset", core.ErrShapeMismatch, len(t.Shape))
	}
	if t.Rows() == 0 {
		c.ClearClass(label)
		return nil
	}

	// Only the class being replaced may disagree with the current dimension.
	prev, had := c.classes[label]
	delete(c.classes, label)
	if len(c.classes) == 0 {
		c.dim = 0
	}
	if err := c.checkDim(t.Cols()); err != nil {
		if had {
			c.classes[label] = prev
		}
		return err
	}

	c.classes[label] = core.Tensor{
		Data:  slices.Clone(t.Data),
		Shape: []int{t.Rows(), t.Cols()},
	}
	c.dim = t.Cols()
	return nil
}

// Labels returns the labels with at least one example, sorted.
func (c *Classifier) Labels() []string {
	labels := make([]string, 0, len(c.classes))
	for label := range c.classes {
		labels = append(labels, label)
	}
	slices.Sort(labels)
	return labels
}

// NumClasses returns the number of labels with examples.
func (c *Classifier) NumClasses() int {
	return len(c.classes)
}

type neighbour struct {
	label      string
	similarity float32
}

// PredictClass votes among the k examples most cosine-similar to input.
// k below 1 is treated as 1 and k above the number of examples uses them all.
// Vote ties go to the label with the higher summed similarity, then to the
// smaller label.
func (c *Classifier) PredictClass(input []float32, k int) (Prediction, error) {
	if len(c.classes) == 0 {
		return Prediction{}, ErrEmptyDataset
	}
	if err := c.checkDim(len(input)); err != nil {
		return Prediction{}, err
	}
	query, ok := distance.NormalizeL2Copy(input)
	if !ok {
		return Prediction{}, ErrZeroVector
	}

	var neighbours []neighbour
	for _, label := range c.Labels() {
		t := c.classes[label]
		for i := range t.Rows() {
			neighbours = append(neighbours, neighbour{label: label, similarity: distance.Dot(query, t.Row(i))})
		}
	}
	// Stable keeps label order for equal similarities.
	slices.SortStableFunc(neighbours, func(a, b neighbour) int {
		return cmp.Compare(b.similarity, a.similarity)
	})

	if k < 1 {
		k = 1
	}
	if k > len(neighbours) {
		k = len(neighbours)
	}

	votes := make(map[string]int)
	sums := make(map[string]float32)
	for _, n := range neighbours[:k] {
		votes[n.label]++
		sums[n.label] += n.similarity
	}

	pred := Prediction{Confidences: make(map[string]float64, len(votes))}
	for label, v := range votes {
		pred.Confidences[label] = float64(v) / float64(k)
		if pred.Label == "" || better(label, pred.Label, votes, sums) {
			pred.Label = label
		}
	}
	return pred, nil
}

func better(a, b string, votes map[string]int, sums map[string]float32) bool {
	if votes[a] != votes[b] {
		return votes[a] > votes[b]
	}
	if sums[a] != sums[b] {
		return sums[a] > sums[b]
	}
	return a < b
}

func (c *Classifier) checkDim(n int) error {
	if n == 0 {
		return fmt.Errorf("%w: empty vector", ErrDimensionMismatch)
	}
	if c.dim != 0 && n != c.dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, n, c.dim)
	}
	return nil
}
