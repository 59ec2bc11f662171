package store

import (
	"context"
	"errors"

	"nearp/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// CreateRun inserts a new run; the id must be unused.
	CreateRun(ctx context.Context, run model.Run) error
	// UpdateRun replaces a stored run.
	UpdateRun(ctx context.Context, run model.Run) error
	GetRun(ctx context.Context, id string) (model.Run, error)
	// ListRuns pages through runs in creation order. An empty cursor starts
	// at the oldest run; the returned cursor is empty on the last page.
	ListRuns(ctx context.Context, cursor string, limit int) ([]model.Run, string, error)
}

var ErrNotFound = errors.New("not found")

// ErrConflict is returned when creating a run whose id already exists.
var ErrConflict = errors.New("conflict")

const (
	defaultPageSize = 100
	maxPageSize     = 500
)

func pageSize(limit int) int {
	if limit <= 0 || limit > maxPageSize {
		return defaultPageSize
	}
	return limit
}
