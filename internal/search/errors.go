package search

import "errors"

var (
	// ErrEmptyCatalog is returned when an index is built from zero items.
	ErrEmptyCatalog = errors.New("catalog is empty")
	// ErrInvalidArgument is returned for a non-positive result count.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNoIndex is returned when no index has been built yet.
	ErrNoIndex = errors.New("index not built")
)
