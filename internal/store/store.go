package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	pkgerrors "github.com/nexypass/nexypass-backend/pkg/errors"
)

// Row is one persisted record, keyed by snake_case field names. Collections
// are stored as JSON arrays of rows under a single key.
type Row = map[string]any

// RecordStore is the local mirror of the remote database. Every mutation is a
// read-full-collection, compute, write-full-collection cycle guarded by a
// per-collection mutex, so a repository call racing the reconciler cannot
// drop the other writer's change.
type RecordStore struct {
	kv     KV
	prefix string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(kv KV, prefix string) *RecordStore {
	return &RecordStore{
		kv:     kv,
		prefix: prefix,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (s *RecordStore) lock(collection string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[collection]
	if !ok {
		l = &sync.Mutex{}
		s.locks[collection] = l
	}
	return l
}

func (s *RecordStore) key(collection string) string {
	return s.prefix + collection
}

// Read returns the collection's rows. A missing key yields an empty slice.
// Undecodable data is quarantined under a ".corrupt" key and the collection
// restarts empty; the caller never sees an error for either case.
func (s *RecordStore) Read(ctx context.Context, collection string) ([]Row, error) {
	l := s.lock(collection)
	l.Lock()
	defer l.Unlock()
	return s.readLocked(ctx, collection)
}

func (s *RecordStore) readLocked(ctx context.Context, collection string) ([]Row, error) {
	raw, err := s.kv.Get(ctx, s.key(collection))
	if errors.Is(err, ErrKeyNotFound) {
		return []Row{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", collection, err)
	}

	var rows []Row
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		s.quarantine(ctx, collection, raw, err)
		return []Row{}, nil
	}
	if rows == nil {
		rows = []Row{}
	}
	return rows, nil
}

func (s *RecordStore) quarantine(ctx context.Context, collection, raw string, cause error) {
	slog.Error("local collection corrupted, resetting",
		"collection", collection,
		"error", fmt.Errorf("%w: %v", pkgerrors.ErrCorruptedCollection, cause))
	if err := s.kv.Set(ctx, s.key(collection)+".corrupt", raw); err != nil {
		slog.Warn("failed to quarantine corrupted data", "collection", collection, "error", err)
	}
	if err := s.kv.Del(ctx, s.key(collection)); err != nil {
		slog.Warn("failed to clear corrupted key", "collection", collection, "error", err)
	}
}

// Write replaces the collection's full contents. Not transactional across
// collections.
func (s *RecordStore) Write(ctx context.Context, collection string, rows []Row) error {
	l := s.lock(collection)
	l.Lock()
	defer l.Unlock()
	return s.writeLocked(ctx, collection, rows)
}

func (s *RecordStore) writeLocked(ctx context.Context, collection string, rows []Row) error {
	if rows == nil {
		rows = []Row{}
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", collection, err)
	}
	if err := s.kv.Set(ctx, s.key(collection), string(data)); err != nil {
		return fmt.Errorf("write %s: %w", collection, err)
	}
	return nil
}

// Mutate applies fn to the collection snapshot under its lock and persists
// the result. fn returning an error leaves the stored data untouched.
func (s *RecordStore) Mutate(ctx context.Context, collection string, fn func(rows []Row) ([]Row, error)) error {
	l := s.lock(collection)
	l.Lock()
	defer l.Unlock()

	rows, err := s.readLocked(ctx, collection)
	if err != nil {
		return err
	}
	next, err := fn(rows)
	if err != nil {
		return err
	}
	return s.writeLocked(ctx, collection, next)
}

// ReplaceID substitutes newID for oldID in the given field across the whole
// collection. Used by the reconciler to converge foreign keys after a
// locally created record receives its server-assigned id.
func (s *RecordStore) ReplaceID(ctx context.Context, collection, field, oldID, newID string) error {
	return s.Mutate(ctx, collection, func(rows []Row) ([]Row, error) {
		for _, row := range rows {
			if v, ok := row[field].(string); ok && v == oldID {
				row[field] = newID
			}
		}
		return rows, nil
	})
}
