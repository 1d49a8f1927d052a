// Package remotetest provides an in-memory Backend for tests: a reachability
// switch, serial server-assigned ids, and per-collection failure injection.
package remotetest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nexypass/nexypass-backend/internal/remote"
	pkgerrors "github.com/nexypass/nexypass-backend/pkg/errors"
)

type Backend struct {
	mu        sync.Mutex
	reachable bool
	nextID    int
	tables    map[string][]remote.Row

	// FailInsert makes Insert fail for the given collection.
	FailInsert map[string]error
	// InsertCount tracks Insert calls per collection, successful or not.
	InsertCount map[string]int
}

func New() *Backend {
	return &Backend{
		reachable:   true,
		tables:      make(map[string][]remote.Row),
		FailInsert:  make(map[string]error),
		InsertCount: make(map[string]int),
	}
}

func (b *Backend) SetReachable(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reachable = ok
}

// Rows returns a deep copy of a collection's rows.
func (b *Backend) Rows(collection string) []remote.Row {
	b.mu.Lock()
	defer b.mu.Unlock()
	return copyRows(b.tables[collection])
}

func (b *Backend) Insert(ctx context.Context, collection string, fields remote.Row) (remote.Row, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.InsertCount[collection]++
	if !b.reachable {
		return nil, pkgerrors.ErrBackendUnreachable
	}
	if err := b.FailInsert[collection]; err != nil {
		return nil, err
	}
	row := copyRow(fields)
	b.nextID++
	row["id"] = fmt.Sprintf("srv_%d", b.nextID)
	if _, ok := row["created_at"]; !ok {
		row["created_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	}
	b.tables[collection] = append(b.tables[collection], row)
	return copyRow(row), nil
}

func (b *Backend) Select(ctx context.Context, collection string, filters remote.Row) ([]remote.Row, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.reachable {
		return nil, pkgerrors.ErrBackendUnreachable
	}
	out := []remote.Row{}
	for _, row := range b.tables[collection] {
		if matches(row, filters) {
			out = append(out, copyRow(row))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return fmt.Sprint(out[i]["created_at"]) > fmt.Sprint(out[j]["created_at"])
	})
	return out, nil
}

func (b *Backend) Update(ctx context.Context, collection string, id string, fields remote.Row) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.reachable {
		return pkgerrors.ErrBackendUnreachable
	}
	for _, row := range b.tables[collection] {
		if row["id"] == id {
			for k, v := range fields {
				row[k] = v
			}
			return nil
		}
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, collection string, id string) error {
	return b.DeleteWhere(ctx, collection, remote.Row{"id": id})
}

func (b *Backend) DeleteWhere(ctx context.Context, collection string, filters remote.Row) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.reachable {
		return pkgerrors.ErrBackendUnreachable
	}
	kept := b.tables[collection][:0]
	for _, row := range b.tables[collection] {
		if !matches(row, filters) {
			kept = append(kept, row)
		}
	}
	b.tables[collection] = kept
	return nil
}

func (b *Backend) Probe(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.reachable {
		return pkgerrors.ErrBackendUnreachable
	}
	return nil
}

func matches(row, filters remote.Row) bool {
	for k, v := range filters {
		if fmt.Sprint(row[k]) != fmt.Sprint(v) {
			return false
		}
	}
	return true
}

func copyRow(row remote.Row) remote.Row {
	data, _ := json.Marshal(row)
	out := remote.Row{}
	_ = json.Unmarshal(data, &out)
	return out
}

func copyRows(rows []remote.Row) []remote.Row {
	out := make([]remote.Row, len(rows))
	for i, r := range rows {
		out[i] = copyRow(r)
	}
	return out
}
