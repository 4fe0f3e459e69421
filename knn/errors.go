package knn

import "errors"

var (
	// ErrEmptyDataset is returned by PredictClass when no examples have been added.
	ErrEmptyDataset = errors.New("classifier has no examples")

	// ErrDimensionMismatch indicates a vector whose length differs from the stored examples.
	ErrDimensionMismatch = errors.New("vector dimension does not match examples")

	// ErrZeroVector indicates a vector with zero L2 norm, which has no direction to compare.
	ErrZeroVector = errors.New("vector has zero norm")

	// ErrEmptyLabel indicates an example without a label.
	ErrEmptyLabel = errors.New("label cannot be empty")
)
