package remote

import (
	"context"
)

// Row is one backend record keyed by snake_case column names, matching the
// wire representation the record store persists.
type Row = map[string]any

// Backend is the authoritative database consumed by the repositories and the
// reconciler. Implementations must assign their own ids on Insert and return
// the stored row including them.
type Backend interface {
	Insert(ctx context.Context, collection string, fields Row) (Row, error)
	Select(ctx context.Context, collection string, filters Row) ([]Row, error)
	Update(ctx context.Context, collection string, id string, fields Row) error
	Delete(ctx context.Context, collection string, id string) error
	DeleteWhere(ctx context.Context, collection string, filters Row) error

	// Probe is a lightweight round-trip used to decide whether the backend
	// is actually reachable; link-layer online is not enough.
	Probe(ctx context.Context) error
}
