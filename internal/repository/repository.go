// Package repository implements the remote-first, local-fallback CRUD surface
// over one entity collection. A single generic implementation replaces the
// per-entity stores: each entity supplies a Config with its collection name,
// id/timestamp accessors, and cascade rules.
//
// Availability wins over consistency here: any transport failure during a
// mutation degrades to local-only behavior and is logged, never raised to the
// caller. The record store always ends up reflecting the caller's change.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/nexypass/nexypass-backend/internal/infrastructure/observability"
	"github.com/nexypass/nexypass-backend/internal/remote"
	"github.com/nexypass/nexypass-backend/internal/store"
	pkgerrors "github.com/nexypass/nexypass-backend/pkg/errors"
)

// Reachability is the cached connectivity signal; satisfied by
// *connectivity.Monitor.
type Reachability interface {
	IsReachable() bool
}

// Cascade names a dependent collection cleaned up when a record is deleted.
type Cascade struct {
	Collection string
	Field      string
}

type Config[T any] struct {
	Collection string

	GetID        func(*T) string
	SetID        func(*T, string)
	GetCreatedAt func(*T) time.Time
	SetCreatedAt func(*T, time.Time)

	// ServerAssigned columns are stripped before remote inserts; the backend
	// issues its own values for them.
	ServerAssigned []string

	Cascades []Cascade
}

type Repository[T any] struct {
	cfg     Config[T]
	store   *store.RecordStore
	backend remote.Backend
	net     Reachability
}

func New[T any](cfg Config[T], rs *store.RecordStore, backend remote.Backend, net Reachability) *Repository[T] {
	return &Repository[T]{cfg: cfg, store: rs, backend: backend, net: net}
}

func (r *Repository[T]) Collection() string {
	return r.cfg.Collection
}

func (r *Repository[T]) encode(entity *T) (store.Row, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, err
	}
	row := store.Row{}
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, err
	}
	return row, nil
}

func (r *Repository[T]) decode(row store.Row) (*T, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return nil, err
	}
	entity := new(T)
	if err := json.Unmarshal(data, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

func (r *Repository[T]) insertFields(entity *T) (store.Row, error) {
	row, err := r.encode(entity)
	if err != nil {
		return nil, err
	}
	for _, col := range r.cfg.ServerAssigned {
		delete(row, col)
	}
	return row, nil
}

func (r *Repository[T]) count(method, source string) {
	observability.RepositoryCalls.WithLabelValues(r.cfg.Collection, method, source).Inc()
}

// Create inserts the entity remotely when the backend is reachable, otherwise
// synthesizes a local id and persists it in the record store. The caller is
// never blocked on reachability: both paths return a stored entity.
func (r *Repository[T]) Create(ctx context.Context, entity *T) (*T, error) {
	if r.cfg.GetCreatedAt(entity).IsZero() {
		r.cfg.SetCreatedAt(entity, time.Now().UTC())
	}

	if r.net.IsReachable() {
		fields, err := r.insertFields(entity)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", r.cfg.Collection, err)
		}
		row, err := r.backend.Insert(ctx, r.cfg.Collection, fields)
		if err == nil {
			stored, err := r.decode(row)
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", r.cfg.Collection, err)
			}
			r.mirror(ctx, row)
			r.count("create", "remote")
			return stored, nil
		}
		slog.Warn("remote insert failed, falling back to local store",
			"collection", r.cfg.Collection, "error", err)
	}

	r.cfg.SetID(entity, store.NewLocalID())
	row, err := r.encode(entity)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", r.cfg.Collection, err)
	}
	err = r.store.Mutate(ctx, r.cfg.Collection, func(rows []store.Row) ([]store.Row, error) {
		return append(rows, row), nil
	})
	if err != nil {
		return nil, err
	}
	r.count("create", "local")
	return entity, nil
}

// List queries the backend when reachable and mirrors the result into the
// record store; otherwise (or on a remote failure) it serves the local cache.
// Results are newest-first from either source.
func (r *Repository[T]) List(ctx context.Context, filters store.Row) ([]*T, error) {
	if r.net.IsReachable() {
		rows, err := r.backend.Select(ctx, r.cfg.Collection, filters)
		if err == nil {
			if len(filters) == 0 {
				rows = append(rows, r.replaceKeepingLocal(ctx, rows)...)
			} else {
				r.mergeRows(ctx, rows)
			}
			r.count("list", "remote")
			return r.decodeSorted(rows)
		}
		slog.Warn("remote select failed, serving local store",
			"collection", r.cfg.Collection, "error", err)
	}

	rows, err := r.store.Read(ctx, r.cfg.Collection)
	if err != nil {
		return nil, err
	}
	filtered := rows[:0:0]
	for _, row := range rows {
		if rowMatches(row, filters) {
			filtered = append(filtered, row)
		}
	}
	r.count("list", "local")
	return r.decodeSorted(filtered)
}

// Get returns the record by id, checking the local store first and the
// backend second. Absent from both means ErrNotFound.
func (r *Repository[T]) Get(ctx context.Context, id string) (*T, error) {
	rows, err := r.store.Read(ctx, r.cfg.Collection)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row["id"] == id {
			return r.decode(row)
		}
	}

	if r.net.IsReachable() {
		remoteRows, err := r.backend.Select(ctx, r.cfg.Collection, store.Row{"id": id})
		if err == nil && len(remoteRows) > 0 {
			r.mirror(ctx, remoteRows[0])
			return r.decode(remoteRows[0])
		}
	}
	return nil, fmt.Errorf("%w: %s %q", pkgerrors.ErrNotFound, r.cfg.Collection, id)
}

// Update applies the patch to the record store unconditionally, so the local
// state reflects the change even when the remote call fails afterwards. Patch
// keys are snake_case column names.
func (r *Repository[T]) Update(ctx context.Context, id string, patch store.Row) (*T, error) {
	var updated store.Row
	err := r.store.Mutate(ctx, r.cfg.Collection, func(rows []store.Row) ([]store.Row, error) {
		for _, row := range rows {
			if row["id"] == id {
				for k, v := range patch {
					row[k] = v
				}
				updated = row
				return rows, nil
			}
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}

	if updated == nil {
		// Not cached locally; the record may still exist remotely.
		if !r.net.IsReachable() {
			return nil, fmt.Errorf("%w: %s %q", pkgerrors.ErrNotFound, r.cfg.Collection, id)
		}
		remoteRows, err := r.backend.Select(ctx, r.cfg.Collection, store.Row{"id": id})
		if err != nil || len(remoteRows) == 0 {
			return nil, fmt.Errorf("%w: %s %q", pkgerrors.ErrNotFound, r.cfg.Collection, id)
		}
		updated = remoteRows[0]
		for k, v := range patch {
			updated[k] = v
		}
		r.mirror(ctx, updated)
	}

	// Locally created records carry the whole patched state to the backend at
	// reconciliation time; only server-issued ids are updated remotely.
	if r.net.IsReachable() && !store.IsLocalID(id) {
		if err := r.backend.Update(ctx, r.cfg.Collection, id, patch); err != nil {
			slog.Warn("remote update failed, local store updated anyway",
				"collection", r.cfg.Collection, "id", id, "error", err)
			r.count("update", "local")
		} else {
			r.count("update", "remote")
		}
	} else {
		r.count("update", "local")
	}
	return r.decode(updated)
}

// Delete removes the record and its cascade dependents from both sides in the
// same call. Remote failures are logged; the local removal always happens.
func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	if r.net.IsReachable() && !store.IsLocalID(id) {
		if err := r.backend.Delete(ctx, r.cfg.Collection, id); err != nil {
			slog.Warn("remote delete failed", "collection", r.cfg.Collection, "id", id, "error", err)
		}
		for _, c := range r.cfg.Cascades {
			if err := r.backend.DeleteWhere(ctx, c.Collection, store.Row{c.Field: id}); err != nil {
				slog.Warn("remote cascade delete failed",
					"collection", c.Collection, "field", c.Field, "id", id, "error", err)
			}
		}
	}

	found := false
	err := r.store.Mutate(ctx, r.cfg.Collection, func(rows []store.Row) ([]store.Row, error) {
		kept := rows[:0]
		for _, row := range rows {
			if row["id"] == id {
				found = true
				continue
			}
			kept = append(kept, row)
		}
		return kept, nil
	})
	if err != nil {
		return err
	}
	for _, c := range r.cfg.Cascades {
		err := r.store.Mutate(ctx, c.Collection, func(rows []store.Row) ([]store.Row, error) {
			kept := rows[:0]
			for _, row := range rows {
				if v, ok := row[c.Field].(string); ok && v == id {
					continue
				}
				kept = append(kept, row)
			}
			return kept, nil
		})
		if err != nil {
			return err
		}
	}

	if !found && !r.net.IsReachable() {
		return fmt.Errorf("%w: %s %q", pkgerrors.ErrNotFound, r.cfg.Collection, id)
	}
	r.count("delete", "both")
	return nil
}

// mirror upserts one row into the local cache by id.
func (r *Repository[T]) mirror(ctx context.Context, row store.Row) {
	err := r.store.Mutate(ctx, r.cfg.Collection, func(rows []store.Row) ([]store.Row, error) {
		for i, existing := range rows {
			if existing["id"] == row["id"] {
				rows[i] = row
				return rows, nil
			}
		}
		return append(rows, row), nil
	})
	if err != nil {
		slog.Warn("failed to mirror record", "collection", r.cfg.Collection, "error", err)
	}
}

// replaceKeepingLocal replaces the collection snapshot with the remote rows
// while carrying over records that still have a locally synthesized id. Those
// records exist nowhere else; dropping them here would lose them before the
// reconciler can push them. Returns the carried-over rows.
func (r *Repository[T]) replaceKeepingLocal(ctx context.Context, rows []store.Row) []store.Row {
	var kept []store.Row
	err := r.store.Mutate(ctx, r.cfg.Collection, func(existing []store.Row) ([]store.Row, error) {
		kept = kept[:0]
		for _, row := range existing {
			if id, ok := row["id"].(string); ok && store.IsLocalID(id) {
				kept = append(kept, row)
			}
		}
		merged := make([]store.Row, 0, len(rows)+len(kept))
		merged = append(merged, rows...)
		merged = append(merged, kept...)
		return merged, nil
	})
	if err != nil {
		slog.Warn("failed to mirror collection", "collection", r.cfg.Collection, "error", err)
	}
	return kept
}

func (r *Repository[T]) mergeRows(ctx context.Context, rows []store.Row) {
	for _, row := range rows {
		r.mirror(ctx, row)
	}
}

func (r *Repository[T]) decodeSorted(rows []store.Row) ([]*T, error) {
	out := make([]*T, 0, len(rows))
	for _, row := range rows {
		entity, err := r.decode(row)
		if err != nil {
			slog.Warn("skipping undecodable record", "collection", r.cfg.Collection, "error", err)
			continue
		}
		out = append(out, entity)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return r.cfg.GetCreatedAt(out[i]).After(r.cfg.GetCreatedAt(out[j]))
	})
	return out, nil
}

func rowMatches(row, filters store.Row) bool {
	for k, v := range filters {
		if fmt.Sprint(row[k]) != fmt.Sprint(v) {
			return false
		}
	}
	return true
}
