package repository

import (
	"context"
	"testing"
	"time"

	"github.com/nexypass/nexypass-backend/internal/models"
	"github.com/nexypass/nexypass-backend/internal/remote/remotetest"
	"github.com/nexypass/nexypass-backend/internal/store"
	pkgerrors "github.com/nexypass/nexypass-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNet struct{ online bool }

func (f *fakeNet) IsReachable() bool { return f.online }

func newEnv(t *testing.T) (*store.RecordStore, *remotetest.Backend, *fakeNet) {
	t.Helper()
	kv, err := store.NewFileKV(t.TempDir())
	require.NoError(t, err)
	return store.New(kv, "nexypass_"), remotetest.New(), &fakeNet{online: true}
}

func TestRepository_CreateOffline(t *testing.T) {
	rs, backend, net := newEnv(t)
	net.online = false
	backend.SetReachable(false)
	products := NewProducts(rs, backend, net)
	ctx := context.Background()

	created, err := products.Create(ctx, &models.Product{Name: "Netflix", Price: 25.00, IsActive: true})
	require.NoError(t, err)
	assert.Regexp(t, "^local_", created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	// The record is retrievable immediately, without any backend.
	listed, err := products.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)
	assert.Equal(t, 25.00, listed[0].Price)

	assert.Empty(t, backend.Rows(models.CollectionProducts))
}

func TestRepository_CreateOnline(t *testing.T) {
	rs, backend, net := newEnv(t)
	products := NewProducts(rs, backend, net)
	ctx := context.Background()

	created, err := products.Create(ctx, &models.Product{Name: "Spotify", Price: 10.0})
	require.NoError(t, err)
	assert.Regexp(t, "^srv_", created.ID)

	// The remote result is mirrored into the local cache.
	net.online = false
	listed, err := products.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)
}

func TestRepository_CreateRemoteFailureFallsBackLocal(t *testing.T) {
	rs, backend, net := newEnv(t)
	backend.FailInsert[models.CollectionProducts] = assert.AnError
	products := NewProducts(rs, backend, net)

	created, err := products.Create(context.Background(), &models.Product{Name: "Disney+", Price: 8.0})
	require.NoError(t, err)
	assert.Regexp(t, "^local_", created.ID)
}

func TestRepository_ListMirrorKeepsUnsyncedRecords(t *testing.T) {
	rs, backend, net := newEnv(t)
	products := NewProducts(rs, backend, net)
	ctx := context.Background()

	synced, err := products.Create(ctx, &models.Product{Name: "Spotify", Price: 10.0})
	require.NoError(t, err)

	// Transport error mid-connection: the monitor still reports reachable but
	// the insert fails, so the record lands in the local store with a local id.
	backend.FailInsert[models.CollectionProducts] = assert.AnError
	localOnly, err := products.Create(ctx, &models.Product{Name: "Netflix", Price: 25.0})
	require.NoError(t, err)
	require.Regexp(t, "^local_", localOnly.ID)
	delete(backend.FailInsert, models.CollectionProducts)

	// An unfiltered list mirrors the remote snapshot but must not erase the
	// record the reconciler has not pushed yet.
	listed, err := products.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	rows, err := rs.Read(ctx, models.CollectionProducts)
	require.NoError(t, err)
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row["id"].(string))
	}
	assert.Contains(t, ids, synced.ID)
	assert.Contains(t, ids, localOnly.ID)
}

func TestRepository_ListNewestFirst(t *testing.T) {
	rs, backend, net := newEnv(t)
	net.online = false
	backend.SetReachable(false)
	orders := NewOrders(rs, backend, net)
	ctx := context.Background()

	older := &models.Order{Code: "ITC1", UserID: "u1"}
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	_, err := orders.Create(ctx, older)
	require.NoError(t, err)

	newer := &models.Order{Code: "ITC2", UserID: "u1"}
	_, err = orders.Create(ctx, newer)
	require.NoError(t, err)

	listed, err := orders.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "ITC2", listed[0].Code)
	assert.Equal(t, "ITC1", listed[1].Code)
}

func TestRepository_ListFilters(t *testing.T) {
	rs, backend, net := newEnv(t)
	net.online = false
	backend.SetReachable(false)
	stock := NewStockItems(rs, backend, net)
	ctx := context.Background()

	_, err := stock.Create(ctx, &models.StockItem{ProductID: "p1", Credentials: "a:b:1:1111"})
	require.NoError(t, err)
	sold := &models.StockItem{ProductID: "p1", Credentials: "c:d:2:2222", IsSold: true}
	_, err = stock.Create(ctx, sold)
	require.NoError(t, err)

	available, err := stock.List(ctx, store.Row{"product_id": "p1", "is_sold": false})
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "a:b:1:1111", available[0].Credentials)
}

func TestRepository_UpdateOfflineKeepsLocalEdit(t *testing.T) {
	rs, backend, net := newEnv(t)
	users := NewUsers(rs, backend, net)
	ctx := context.Background()

	created, err := users.Create(ctx, &models.User{Username: "ana", Role: models.RoleUser})
	require.NoError(t, err)

	net.online = false
	updated, err := users.Update(ctx, created.ID, store.Row{"wallet_balance": 40.0})
	require.NoError(t, err)
	assert.Equal(t, 40.0, updated.WalletBalance)

	got, err := users.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 40.0, got.WalletBalance)
}

func TestRepository_UpdateOnlinePropagates(t *testing.T) {
	rs, backend, net := newEnv(t)
	users := NewUsers(rs, backend, net)
	ctx := context.Background()

	created, err := users.Create(ctx, &models.User{Username: "bo"})
	require.NoError(t, err)

	_, err = users.Update(ctx, created.ID, store.Row{"is_approved": true})
	require.NoError(t, err)

	rows := backend.Rows(models.CollectionUsers)
	require.Len(t, rows, 1)
	assert.Equal(t, true, rows[0]["is_approved"])
}

func TestRepository_UpdateMissing(t *testing.T) {
	rs, backend, net := newEnv(t)
	users := NewUsers(rs, backend, net)

	_, err := users.Update(context.Background(), "srv_404", store.Row{"is_approved": true})
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestRepository_DeleteCascades(t *testing.T) {
	rs, backend, net := newEnv(t)
	products := NewProducts(rs, backend, net)
	stock := NewStockItems(rs, backend, net)
	ctx := context.Background()

	product, err := products.Create(ctx, &models.Product{Name: "Prime", Price: 5.0})
	require.NoError(t, err)
	_, err = stock.Create(ctx, &models.StockItem{ProductID: product.ID, Credentials: "x:y"})
	require.NoError(t, err)
	_, err = stock.Create(ctx, &models.StockItem{ProductID: "other", Credentials: "q:w"})
	require.NoError(t, err)

	require.NoError(t, products.Delete(ctx, product.ID))

	assert.Empty(t, backend.Rows(models.CollectionProducts))
	remaining := backend.Rows(models.CollectionStockItems)
	require.Len(t, remaining, 1)
	assert.Equal(t, "other", remaining[0]["product_id"])

	// Local cache is cleaned up in the same call.
	net.online = false
	items, err := stock.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "other", items[0].ProductID)
}

func TestRepository_GetNotFound(t *testing.T) {
	rs, backend, net := newEnv(t)
	users := NewUsers(rs, backend, net)

	_, err := users.Get(context.Background(), "srv_404")
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}
