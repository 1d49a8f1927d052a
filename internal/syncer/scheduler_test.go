package syncer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nexypass/nexypass-backend/internal/connectivity"
	"github.com/nexypass/nexypass-backend/internal/models"
	"github.com/nexypass/nexypass-backend/internal/remote/remotetest"
	"github.com/nexypass/nexypass-backend/internal/repository"
	"github.com/nexypass/nexypass-backend/internal/store"
	pkgerrors "github.com/nexypass/nexypass-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingProducer struct {
	events []syncEvent
}

func (p *capturingProducer) Send(ctx context.Context, topic, key string, value []byte) error {
	var event syncEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *capturingProducer) Close() error { return nil }

func newSyncEnv(t *testing.T) (*store.RecordStore, *remotetest.Backend, *Scheduler, *capturingProducer) {
	t.Helper()
	kv, err := store.NewFileKV(t.TempDir())
	require.NoError(t, err)
	rs := store.New(kv, "nexypass_")
	backend := remotetest.New()
	monitor := connectivity.NewMonitor(backend.Probe, time.Minute, time.Second)
	producer := &capturingProducer{}
	return rs, backend, NewScheduler(rs, backend, monitor, producer, time.Minute), producer
}

func TestScheduler_ConvergesLocalRecords(t *testing.T) {
	rs, backend, scheduler, producer := newSyncEnv(t)
	ctx := context.Background()

	localID := store.NewLocalID()
	require.NoError(t, rs.Write(ctx, models.CollectionProducts, []store.Row{
		{"id": localID, "name": "Netflix", "price": 25.00, "is_active": true, "created_at": "2026-08-01T10:00:00Z"},
	}))

	require.NoError(t, scheduler.SyncNow(ctx))

	rows, err := rs.Read(ctx, models.CollectionProducts)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, store.IsLocalID(rows[0]["id"].(string)))
	assert.Equal(t, 25.00, rows[0]["price"])

	remoteRows := backend.Rows(models.CollectionProducts)
	require.Len(t, remoteRows, 1)
	assert.Equal(t, rows[0]["id"], remoteRows[0]["id"])
	// The backend assigned its own id and timestamp.
	assert.NotEqual(t, localID, remoteRows[0]["id"])
	assert.NotEqual(t, "2026-08-01T10:00:00Z", remoteRows[0]["created_at"])

	require.Len(t, producer.events, 1)
	assert.Equal(t, models.CollectionProducts, producer.events[0].Collection)
	assert.Equal(t, localID, producer.events[0].OldID)
	assert.Equal(t, rows[0]["id"], producer.events[0].NewID)
}

func TestScheduler_RewritesReferences(t *testing.T) {
	rs, backend, scheduler, _ := newSyncEnv(t)
	ctx := context.Background()

	userID := store.NewLocalID()
	orderID := store.NewLocalID()
	require.NoError(t, rs.Write(ctx, models.CollectionUsers, []store.Row{
		{"id": userID, "username": "ana", "role": "user", "wallet_balance": 0.0},
	}))
	require.NoError(t, rs.Write(ctx, models.CollectionOrders, []store.Row{
		{"id": orderID, "user_id": userID, "product_name": "Netflix", "price": 25.00},
	}))

	require.NoError(t, scheduler.SyncNow(ctx))

	users, err := rs.Read(ctx, models.CollectionUsers)
	require.NoError(t, err)
	require.Len(t, users, 1)
	newUserID := users[0]["id"].(string)
	assert.False(t, store.IsLocalID(newUserID))

	orders, err := rs.Read(ctx, models.CollectionOrders)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.False(t, store.IsLocalID(orders[0]["id"].(string)))
	assert.Equal(t, newUserID, orders[0]["user_id"])

	// The pushed order carries the rewritten user id as well.
	remoteOrders := backend.Rows(models.CollectionOrders)
	require.Len(t, remoteOrders, 1)
	assert.Equal(t, newUserID, remoteOrders[0]["user_id"])
}

func TestScheduler_Idempotent(t *testing.T) {
	rs, backend, scheduler, _ := newSyncEnv(t)
	ctx := context.Background()

	require.NoError(t, rs.Write(ctx, models.CollectionUsers, []store.Row{
		{"id": store.NewLocalID(), "username": "bo"},
	}))

	require.NoError(t, scheduler.SyncNow(ctx))
	require.NoError(t, scheduler.SyncNow(ctx))

	assert.Equal(t, 1, backend.InsertCount[models.CollectionUsers])
	assert.Len(t, backend.Rows(models.CollectionUsers), 1)
}

func TestScheduler_UnreachableAbortsCycle(t *testing.T) {
	rs, backend, scheduler, _ := newSyncEnv(t)
	ctx := context.Background()
	backend.SetReachable(false)

	require.NoError(t, rs.Write(ctx, models.CollectionUsers, []store.Row{
		{"id": store.NewLocalID(), "username": "carol"},
	}))

	err := scheduler.SyncNow(ctx)
	assert.ErrorIs(t, err, pkgerrors.ErrBackendUnreachable)
	assert.Equal(t, 0, backend.InsertCount[models.CollectionUsers])
}

func TestScheduler_DefersRecordsWithUnsyncedReferences(t *testing.T) {
	rs, backend, scheduler, _ := newSyncEnv(t)
	ctx := context.Background()

	orderID := store.NewLocalID()
	stockID := store.NewLocalID()
	backend.FailInsert[models.CollectionOrders] = assert.AnError
	require.NoError(t, rs.Write(ctx, models.CollectionOrders, []store.Row{
		{"id": orderID, "user_id": "srv_1"},
	}))
	require.NoError(t, rs.Write(ctx, models.CollectionStockItems, []store.Row{
		{"id": stockID, "product_id": "srv_2", "order_id": orderID, "is_sold": true},
	}))

	require.NoError(t, scheduler.SyncNow(ctx))

	// The stock item was never pushed with a dangling order reference.
	assert.Equal(t, 0, backend.InsertCount[models.CollectionStockItems])
	stock, err := rs.Read(ctx, models.CollectionStockItems)
	require.NoError(t, err)
	assert.True(t, store.IsLocalID(stock[0]["id"].(string)))

	// Once the order goes through, the next cycle picks the stock item up.
	delete(backend.FailInsert, models.CollectionOrders)
	require.NoError(t, scheduler.SyncNow(ctx))

	stock, err = rs.Read(ctx, models.CollectionStockItems)
	require.NoError(t, err)
	require.Len(t, stock, 1)
	assert.False(t, store.IsLocalID(stock[0]["id"].(string)))
	assert.False(t, store.IsLocalID(stock[0]["order_id"].(string)))
}

func TestScheduler_OfflinePurchaseFlowConverges(t *testing.T) {
	rs, backend, scheduler, _ := newSyncEnv(t)
	ctx := context.Background()
	net := &staleNet{}
	products := repository.NewProducts(rs, backend, net)

	backend.SetReachable(false)
	created, err := products.Create(ctx, &models.Product{Name: "Netflix", Price: 25.00, IsActive: true})
	require.NoError(t, err)
	assert.Regexp(t, "^local_", created.ID)

	backend.SetReachable(true)
	require.NoError(t, scheduler.SyncNow(ctx))

	listed, err := products.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.NotRegexp(t, "^local_", listed[0].ID)
	assert.Equal(t, 25.00, listed[0].Price)
}

// staleNet reports offline so repository reads stay on the local mirror.
type staleNet struct{}

func (staleNet) IsReachable() bool { return false }
