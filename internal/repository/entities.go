package repository

import (
	"time"

	"github.com/nexypass/nexypass-backend/internal/models"
	"github.com/nexypass/nexypass-backend/internal/remote"
	"github.com/nexypass/nexypass-backend/internal/store"
)

// serverAssigned lists the columns every backend issues itself.
var serverAssigned = []string{"id", "created_at"}

func NewUsers(rs *store.RecordStore, backend remote.Backend, net Reachability) *Repository[models.User] {
	return New(Config[models.User]{
		Collection:     models.CollectionUsers,
		GetID:          func(u *models.User) string { return u.ID },
		SetID:          func(u *models.User, id string) { u.ID = id },
		GetCreatedAt:   func(u *models.User) time.Time { return u.CreatedAt },
		SetCreatedAt:   func(u *models.User, t time.Time) { u.CreatedAt = t },
		ServerAssigned: serverAssigned,
	}, rs, backend, net)
}

func NewProducts(rs *store.RecordStore, backend remote.Backend, net Reachability) *Repository[models.Product] {
	return New(Config[models.Product]{
		Collection:     models.CollectionProducts,
		GetID:          func(p *models.Product) string { return p.ID },
		SetID:          func(p *models.Product, id string) { p.ID = id },
		GetCreatedAt:   func(p *models.Product) time.Time { return p.CreatedAt },
		SetCreatedAt:   func(p *models.Product, t time.Time) { p.CreatedAt = t },
		ServerAssigned: serverAssigned,
		// A product owns its stock: deleting one removes its credentials too.
		Cascades: []Cascade{{Collection: models.CollectionStockItems, Field: "product_id"}},
	}, rs, backend, net)
}

func NewStockItems(rs *store.RecordStore, backend remote.Backend, net Reachability) *Repository[models.StockItem] {
	return New(Config[models.StockItem]{
		Collection:     models.CollectionStockItems,
		GetID:          func(s *models.StockItem) string { return s.ID },
		SetID:          func(s *models.StockItem, id string) { s.ID = id },
		GetCreatedAt:   func(s *models.StockItem) time.Time { return s.CreatedAt },
		SetCreatedAt:   func(s *models.StockItem, t time.Time) { s.CreatedAt = t },
		ServerAssigned: serverAssigned,
	}, rs, backend, net)
}

func NewOrders(rs *store.RecordStore, backend remote.Backend, net Reachability) *Repository[models.Order] {
	return New(Config[models.Order]{
		Collection:     models.CollectionOrders,
		GetID:          func(o *models.Order) string { return o.ID },
		SetID:          func(o *models.Order, id string) { o.ID = id },
		GetCreatedAt:   func(o *models.Order) time.Time { return o.CreatedAt },
		SetCreatedAt:   func(o *models.Order, t time.Time) { o.CreatedAt = t },
		ServerAssigned: serverAssigned,
	}, rs, backend, net)
}

func NewTransactions(rs *store.RecordStore, backend remote.Backend, net Reachability) *Repository[models.Transaction] {
	return New(Config[models.Transaction]{
		Collection:     models.CollectionTransactions,
		GetID:          func(t *models.Transaction) string { return t.ID },
		SetID:          func(t *models.Transaction, id string) { t.ID = id },
		GetCreatedAt:   func(t *models.Transaction) time.Time { return t.CreatedAt },
		SetCreatedAt:   func(t *models.Transaction, ts time.Time) { t.CreatedAt = ts },
		ServerAssigned: serverAssigned,
	}, rs, backend, net)
}

func NewRechargeRequests(rs *store.RecordStore, backend remote.Backend, net Reachability) *Repository[models.RechargeRequest] {
	return New(Config[models.RechargeRequest]{
		Collection:     models.CollectionRechargeRequests,
		GetID:          func(r *models.RechargeRequest) string { return r.ID },
		SetID:          func(r *models.RechargeRequest, id string) { r.ID = id },
		GetCreatedAt:   func(r *models.RechargeRequest) time.Time { return r.CreatedAt },
		SetCreatedAt:   func(r *models.RechargeRequest, t time.Time) { r.CreatedAt = t },
		ServerAssigned: serverAssigned,
	}, rs, backend, net)
}
