// Package syncer moves locally created records to the backend and converges
// local ids to server-assigned ones. It runs on a timer, immediately on an
// offline-to-online transition, and on demand via SyncNow.
package syncer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nexypass/nexypass-backend/internal/connectivity"
	"github.com/nexypass/nexypass-backend/internal/infrastructure/kafka"
	"github.com/nexypass/nexypass-backend/internal/infrastructure/observability"
	"github.com/nexypass/nexypass-backend/internal/models"
	"github.com/nexypass/nexypass-backend/internal/remote"
	"github.com/nexypass/nexypass-backend/internal/store"
	pkgerrors "github.com/nexypass/nexypass-backend/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// SyncEventsTopic carries one message per record that received its
// server-assigned id.
const SyncEventsTopic = "sync.events"

// syncOrder is fixed: later collections hold foreign keys into earlier ones,
// so parents must receive their server ids first. Stock items go last; they
// are the only collection referencing orders.
var syncOrder = []string{
	models.CollectionUsers,
	models.CollectionProducts,
	models.CollectionOrders,
	models.CollectionTransactions,
	models.CollectionRechargeRequests,
	models.CollectionStockItems,
}

// foreignKeys lists the reference fields of each collection. A record whose
// reference still carries the local prefix is deferred to the next cycle
// rather than pushed with a dangling id.
var foreignKeys = map[string][]string{
	models.CollectionOrders:           {"user_id", "product_id"},
	models.CollectionTransactions:     {"user_id", "product_id"},
	models.CollectionRechargeRequests: {"user_id"},
	models.CollectionStockItems:       {"product_id", "sold_to", "order_id"},
}

type ref struct {
	collection string
	field      string
}

// referencedBy drives the fan-out substitution after an id rewrite: every
// collection holding the old local id must be updated, or cross-references
// silently break.
var referencedBy = map[string][]ref{
	models.CollectionUsers: {
		{models.CollectionStockItems, "sold_to"},
		{models.CollectionOrders, "user_id"},
		{models.CollectionTransactions, "user_id"},
		{models.CollectionRechargeRequests, "user_id"},
	},
	models.CollectionProducts: {
		{models.CollectionStockItems, "product_id"},
		{models.CollectionOrders, "product_id"},
		{models.CollectionTransactions, "product_id"},
	},
	models.CollectionOrders: {
		{models.CollectionStockItems, "order_id"},
	},
}

// serverAssigned columns are stripped before pushing a record; the backend
// issues its own.
var serverAssigned = []string{"id", "created_at"}

type syncEvent struct {
	Collection string `json:"collection"`
	OldID      string `json:"old_id"`
	NewID      string `json:"new_id"`
}

type Scheduler struct {
	store    *store.RecordStore
	backend  remote.Backend
	monitor  *connectivity.Monitor
	producer kafka.KafkaProducer
	interval time.Duration
	kick     chan struct{}
}

func NewScheduler(rs *store.RecordStore, backend remote.Backend, monitor *connectivity.Monitor, producer kafka.KafkaProducer, interval time.Duration) *Scheduler {
	s := &Scheduler{
		store:    rs,
		backend:  backend,
		monitor:  monitor,
		producer: producer,
		interval: interval,
		kick:     make(chan struct{}, 1),
	}
	monitor.OnOnline(s.Kick)
	return s
}

// Kick requests an immediate cycle without blocking the caller.
func (s *Scheduler) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-s.kick:
		}
		if err := s.SyncNow(ctx); err != nil {
			slog.Info("sync cycle skipped", "reason", err)
		}
	}
}

// SyncNow runs one full reconciliation cycle. It aborts up front when the
// backend probe fails and otherwise never returns an error: individual record
// failures are logged and retried on the next cycle.
func (s *Scheduler) SyncNow(ctx context.Context) error {
	tracer := otel.Tracer("sync-engine")
	ctx, span := tracer.Start(ctx, "SyncNow")
	defer span.End()

	if !s.monitor.Probe(ctx) {
		observability.SyncCycles.WithLabelValues("unreachable").Inc()
		span.SetStatus(codes.Error, "backend unreachable")
		return pkgerrors.ErrBackendUnreachable
	}

	synced := 0
	for _, collection := range syncOrder {
		synced += s.syncCollection(ctx, collection)
	}
	observability.SyncCycles.WithLabelValues("ok").Inc()
	if synced > 0 {
		slog.Info("reconciliation cycle completed", "records_synced", synced)
	}
	return nil
}

func (s *Scheduler) syncCollection(ctx context.Context, collection string) int {
	rows, err := s.store.Read(ctx, collection)
	if err != nil {
		slog.Warn("failed to read local collection", "collection", collection, "error", err)
		return 0
	}

	synced := 0
	for _, row := range rows {
		id, ok := row["id"].(string)
		if !ok || !store.IsLocalID(id) {
			continue
		}
		if field := localReference(collection, row); field != "" {
			slog.Info("deferring record with unsynced reference",
				"collection", collection, "id", id, "field", field)
			observability.SyncRecords.WithLabelValues(collection, "deferred").Inc()
			continue
		}

		inserted, err := s.backend.Insert(ctx, collection, insertFields(row))
		if err != nil {
			slog.Warn("failed to push local record, will retry",
				"collection", collection, "id", id, "error", err)
			observability.SyncRecords.WithLabelValues(collection, "failed").Inc()
			continue
		}
		newID, ok := inserted["id"].(string)
		if !ok || newID == "" {
			slog.Error("backend returned no id for inserted record", "collection", collection, "local_id", id)
			observability.SyncRecords.WithLabelValues(collection, "failed").Inc()
			continue
		}

		s.rewriteID(ctx, collection, id, newID)
		observability.SyncRecords.WithLabelValues(collection, "synced").Inc()
		s.publish(ctx, syncEvent{Collection: collection, OldID: id, NewID: newID})
		synced++
	}
	return synced
}

// rewriteID converges the id in the owning collection and in every collection
// that references it.
func (s *Scheduler) rewriteID(ctx context.Context, collection, oldID, newID string) {
	if err := s.store.ReplaceID(ctx, collection, "id", oldID, newID); err != nil {
		slog.Error("failed to rewrite record id", "collection", collection, "old_id", oldID, "error", err)
		return
	}
	for _, r := range referencedBy[collection] {
		if err := s.store.ReplaceID(ctx, r.collection, r.field, oldID, newID); err != nil {
			slog.Error("failed to rewrite reference",
				"collection", r.collection, "field", r.field, "old_id", oldID, "error", err)
		}
	}
}

func (s *Scheduler) publish(ctx context.Context, event syncEvent) {
	if s.producer == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.producer.Send(ctx, SyncEventsTopic, event.OldID, payload); err != nil {
		slog.Warn("failed to publish sync event", "collection", event.Collection, "error", err)
	}
}

func localReference(collection string, row store.Row) string {
	for _, field := range foreignKeys[collection] {
		if v, ok := row[field].(string); ok && store.IsLocalID(v) {
			return field
		}
	}
	return ""
}

func insertFields(row store.Row) remote.Row {
	fields := remote.Row{}
	for k, v := range row {
		fields[k] = v
	}
	for _, col := range serverAssigned {
		delete(fields, col)
	}
	return fields
}
