package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nexypass/nexypass-backend/internal/infrastructure/kafka"
	"github.com/nexypass/nexypass-backend/internal/infrastructure/redis"
	"github.com/nexypass/nexypass-backend/internal/models"
	"github.com/nexypass/nexypass-backend/internal/repository"
	"github.com/nexypass/nexypass-backend/internal/store"
	pkgerrors "github.com/nexypass/nexypass-backend/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/bcrypt"
)

const OrdersTopic = "orders"

type Stats struct {
	TotalSales       float64 `json:"total_sales"`
	TotalOrders      int     `json:"total_orders"`
	ActiveOrders     int     `json:"active_orders"`
	TotalProducts    int     `json:"total_products"`
	TotalUsers       int     `json:"total_users"`
	PendingRecharges int     `json:"pending_recharges"`
	Transactions     int     `json:"transactions"`
}

type Storefront interface {
	Login(ctx context.Context, username, password string) (string, *models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	ApproveUser(ctx context.Context, userID string) (*models.User, error)
	RejectUser(ctx context.Context, userID string) error
	AddUserBalance(ctx context.Context, userID string, amount float64) (*models.User, error)

	ListProducts(ctx context.Context) ([]*models.Product, error)
	AddProduct(ctx context.Context, product *models.Product) (*models.Product, error)
	UpdateProduct(ctx context.Context, id string, patch map[string]any) (*models.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	AddStock(ctx context.Context, productID, credentials string) (*models.StockItem, error)
	AvailableStock(ctx context.Context, productID string) (int, error)

	Purchase(ctx context.Context, userID, productID, customerName, customerPhone string) (*models.Order, error)
	UserOrders(ctx context.Context, userID string) ([]*models.Order, error)
	Transactions(ctx context.Context, userID string) ([]*models.Transaction, error)

	CreateRechargeRequest(ctx context.Context, userID string, amount float64, method string) (*models.RechargeRequest, error)
	PendingRecharges(ctx context.Context) ([]*models.RechargeRequest, error)
	ApproveRecharge(ctx context.Context, requestID string) error
	RejectRecharge(ctx context.Context, requestID string) error

	Stats(ctx context.Context) (Stats, error)
}

type storefront struct {
	users     *repository.Repository[models.User]
	products  *repository.Repository[models.Product]
	stock     *repository.Repository[models.StockItem]
	orders    *repository.Repository[models.Order]
	txns      *repository.Repository[models.Transaction]
	recharges *repository.Repository[models.RechargeRequest]

	redisClient redis.RedisClient
	producer    kafka.KafkaProducer

	jwtSecret         string
	adminUsername     string
	adminPasswordHash string
}

func NewStorefront(
	users *repository.Repository[models.User],
	products *repository.Repository[models.Product],
	stock *repository.Repository[models.StockItem],
	orders *repository.Repository[models.Order],
	txns *repository.Repository[models.Transaction],
	recharges *repository.Repository[models.RechargeRequest],
	redisClient redis.RedisClient,
	producer kafka.KafkaProducer,
	jwtSecret, adminUsername, adminPasswordHash string,
) *storefront {
	return &storefront{
		users:             users,
		products:          products,
		stock:             stock,
		orders:            orders,
		txns:              txns,
		recharges:         recharges,
		redisClient:       redisClient,
		producer:          producer,
		jwtSecret:         jwtSecret,
		adminUsername:     adminUsername,
		adminPasswordHash: adminPasswordHash,
	}
}

// Login finds or creates the user and issues a session token. Regular users
// are synthesized on first login with zero balance and pending approval;
// credential verification beyond the configured admin account is delegated to
// the identity provider in front of this service.
func (s *storefront) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	tracer := otel.Tracer("storefront")
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()

	if username == "" {
		span.SetStatus(codes.Error, "empty username")
		return "", nil, pkgerrors.ErrInvalidInput
	}

	isAdmin := username == s.adminUsername && s.adminPasswordHash != ""
	if isAdmin {
		if err := bcrypt.CompareHashAndPassword([]byte(s.adminPasswordHash), []byte(password)); err != nil {
			span.SetStatus(codes.Error, "bad admin password")
			return "", nil, pkgerrors.ErrInvalidCredentials
		}
	}

	user, err := s.findUserByUsername(ctx, username)
	if err != nil {
		role := models.RoleUser
		approved := false
		if isAdmin {
			role = models.RoleAdmin
			approved = true
		}
		user, err = s.users.Create(ctx, &models.User{
			Username:   username,
			Email:      username + "@email.com",
			Role:       role,
			IsApproved: approved,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "user creation failed")
			slog.Error("failed to create user on login", "username", username, "error", err)
			return "", nil, err
		}
	}

	token, err := s.issueToken(ctx, user)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token issuing failed")
		return "", nil, err
	}
	return token, user, nil
}

func (s *storefront) issueToken(ctx context.Context, user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"role":    string(user.Role),
		"exp":     time.Now().Add(time.Hour).Unix(),
		"iat":     time.Now().Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	if s.redisClient != nil {
		key := fmt.Sprintf("user:%s:token", user.ID)
		if err := s.redisClient.Set(ctx, key, token, time.Hour); err != nil {
			slog.Warn("failed to cache session token", "user_id", user.ID, "error", err)
		}
	}
	return token, nil
}

func (s *storefront) findUserByUsername(ctx context.Context, username string) (*models.User, error) {
	users, err := s.users.List(ctx, store.Row{"username": username})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, pkgerrors.ErrUserNotFound
	}
	return users[0], nil
}

func (s *storefront) ListUsers(ctx context.Context) ([]*models.User, error) {
	return s.users.List(ctx, nil)
}

func (s *storefront) ApproveUser(ctx context.Context, userID string) (*models.User, error) {
	return s.users.Update(ctx, userID, store.Row{"is_approved": true})
}

// RejectUser removes the account entirely; it is the only hard delete a user
// record ever sees.
func (s *storefront) RejectUser(ctx context.Context, userID string) error {
	return s.users.Delete(ctx, userID)
}

func (s *storefront) AddUserBalance(ctx context.Context, userID string, amount float64) (*models.User, error) {
	if amount <= 0 {
		return nil, pkgerrors.ErrInvalidAmount
	}
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	updated, err := s.users.Update(ctx, userID, store.Row{"wallet_balance": user.WalletBalance + amount})
	if err != nil {
		return nil, err
	}
	_, err = s.txns.Create(ctx, &models.Transaction{
		Type:        models.TypeBalanceAdd,
		Amount:      amount,
		Description: "Balance added by admin",
		UserID:      userID,
		Status:      models.StatusCompleted,
	})
	if err != nil {
		slog.Error("failed to record balance transaction", "user_id", userID, "error", err)
	}
	return updated, nil
}

func (s *storefront) ListProducts(ctx context.Context) ([]*models.Product, error) {
	return s.products.List(ctx, nil)
}

func (s *storefront) AddProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if product.Name == "" || product.Price <= 0 {
		return nil, pkgerrors.ErrInvalidInput
	}
	created, err := s.products.Create(ctx, product)
	if err != nil {
		return nil, err
	}
	_, err = s.txns.Create(ctx, &models.Transaction{
		Type:        models.TypeSystem,
		Amount:      0,
		Description: "Product created: " + created.Name,
		UserID:      "system",
		ProductID:   created.ID,
		Status:      models.StatusCompleted,
	})
	if err != nil {
		slog.Error("failed to record product creation", "product_id", created.ID, "error", err)
	}
	return created, nil
}

func (s *storefront) UpdateProduct(ctx context.Context, id string, patch map[string]any) (*models.Product, error) {
	return s.products.Update(ctx, id, patch)
}

func (s *storefront) DeleteProduct(ctx context.Context, id string) error {
	return s.products.Delete(ctx, id)
}

func (s *storefront) AddStock(ctx context.Context, productID, credentials string) (*models.StockItem, error) {
	if credentials == "" {
		return nil, pkgerrors.ErrInvalidInput
	}
	if _, err := s.products.Get(ctx, productID); err != nil {
		return nil, pkgerrors.ErrProductNotFound
	}
	return s.stock.Create(ctx, &models.StockItem{
		ProductID:   productID,
		Credentials: credentials,
	})
}

func (s *storefront) AvailableStock(ctx context.Context, productID string) (int, error) {
	items, err := s.stock.List(ctx, store.Row{"product_id": productID, "is_sold": false})
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// Purchase delivers one unsold credential set to the buyer: the stock item is
// marked sold, an order snapshots the product name and price, the wallet is
// debited and a purchase transaction is appended to the ledger.
func (s *storefront) Purchase(ctx context.Context, userID, productID, customerName, customerPhone string) (*models.Order, error) {
	tracer := otel.Tracer("storefront")
	ctx, span := tracer.Start(ctx, "Purchase")
	defer span.End()

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		span.SetStatus(codes.Error, "user not found")
		return nil, pkgerrors.ErrUserNotFound
	}
	if !user.IsApproved {
		span.SetStatus(codes.Error, "user not approved")
		return nil, pkgerrors.ErrUserNotApproved
	}

	product, err := s.products.Get(ctx, productID)
	if err != nil {
		span.SetStatus(codes.Error, "product not found")
		return nil, pkgerrors.ErrProductNotFound
	}
	if !product.IsActive {
		span.SetStatus(codes.Error, "product inactive")
		return nil, pkgerrors.ErrProductInactive
	}
	if user.WalletBalance < product.Price {
		span.SetStatus(codes.Error, "insufficient funds")
		return nil, pkgerrors.ErrInsufficientFunds
	}

	available, err := s.stock.List(ctx, store.Row{"product_id": productID, "is_sold": false})
	if err != nil {
		return nil, err
	}
	if len(available) == 0 {
		span.SetStatus(codes.Error, "no stock")
		return nil, pkgerrors.ErrNoStockAvailable
	}
	item := available[len(available)-1] // oldest first out

	now := time.Now().UTC()
	_, err = s.stock.Update(ctx, item.ID, store.Row{
		"is_sold": true,
		"sold_to": user.ID,
		"sold_at": now.Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, err
	}

	order, err := s.orders.Create(ctx, &models.Order{
		Code:                 models.NewOrderCode(now),
		ProductName:          product.Name,
		PriceAtPurchase:      product.Price,
		CredentialsDelivered: item.Credentials,
		PurchaseURL:          models.PurchaseURLFor(product.Name),
		ProfileInfo:          profileOrDefault(item.Credentials),
		Supplier:             "NexyPass",
		CustomerName:         customerName,
		CustomerPhone:        customerPhone,
		UserID:               user.ID,
		ProductID:            product.ID,
		Status:               models.OrderStatusActive,
		ExpiresAt:            now.Add(models.OrderValidity),
	})
	if err != nil {
		return nil, err
	}

	// Exactly one order per sold stock item; the back-reference makes the
	// pairing traversable from either side.
	if _, err := s.stock.Update(ctx, item.ID, store.Row{"order_id": order.ID}); err != nil {
		slog.Error("failed to associate stock with order", "stock_id", item.ID, "order_id", order.ID, "error", err)
	}

	if _, err := s.users.Update(ctx, user.ID, store.Row{"wallet_balance": user.WalletBalance - product.Price}); err != nil {
		slog.Error("failed to debit wallet", "user_id", user.ID, "error", err)
	}

	_, err = s.txns.Create(ctx, &models.Transaction{
		Type:        models.TypePurchase,
		Amount:      -product.Price,
		Description: "Purchase: " + product.Name,
		UserID:      user.ID,
		ProductID:   product.ID,
		Status:      models.StatusCompleted,
	})
	if err != nil {
		slog.Error("failed to record purchase transaction", "user_id", user.ID, "error", err)
	}

	s.publishOrderEvent(order)
	return order, nil
}

func profileOrDefault(credentials string) string {
	if p := models.ParseCredentials(credentials).Profile; p != "" {
		return p
	}
	return "1"
}

func (s *storefront) publishOrderEvent(order *models.Order) {
	if s.producer == nil {
		return
	}
	event := map[string]any{
		"event_type": "order_created",
		"order_id":   order.ID,
		"code":       order.Code,
		"user_id":    order.UserID,
		"product_id": order.ProductID,
		"price":      order.PriceAtPurchase,
		"created_at": order.CreatedAt.Format(time.RFC3339),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	go func() {
		for i := 0; i < 3; i++ {
			if err := s.producer.Send(context.Background(), OrdersTopic, order.ID, payload); err == nil {
				return
			}
			time.Sleep(time.Second)
		}
		slog.Error("failed to publish order event", "order_id", order.ID)
	}()
}

func (s *storefront) UserOrders(ctx context.Context, userID string) ([]*models.Order, error) {
	orders, err := s.orders.List(ctx, store.Row{"user_id": userID})
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	for _, o := range orders {
		if o.Status == models.OrderStatusActive && o.Expired(now) {
			o.Status = models.OrderStatusExpired
		}
	}
	return orders, nil
}

func (s *storefront) Transactions(ctx context.Context, userID string) ([]*models.Transaction, error) {
	filters := store.Row{}
	if userID != "" {
		filters["user_id"] = userID
	}
	return s.txns.List(ctx, filters)
}

func (s *storefront) CreateRechargeRequest(ctx context.Context, userID string, amount float64, method string) (*models.RechargeRequest, error) {
	if amount <= 0 {
		return nil, pkgerrors.ErrInvalidAmount
	}
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, pkgerrors.ErrUserNotFound
	}
	return s.recharges.Create(ctx, &models.RechargeRequest{
		UserID:   user.ID,
		Username: user.Username,
		Amount:   amount,
		Method:   method,
		Status:   models.RechargePending,
	})
}

func (s *storefront) PendingRecharges(ctx context.Context) ([]*models.RechargeRequest, error) {
	return s.recharges.List(ctx, store.Row{"status": string(models.RechargePending)})
}

// ApproveRecharge credits the wallet and appends the balance_add transaction;
// the request leaves the pending view through its status change.
func (s *storefront) ApproveRecharge(ctx context.Context, requestID string) error {
	tracer := otel.Tracer("storefront")
	ctx, span := tracer.Start(ctx, "ApproveRecharge")
	defer span.End()

	req, err := s.recharges.Get(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Status != models.RechargePending {
		span.SetStatus(codes.Error, "not pending")
		return pkgerrors.ErrRequestNotPending
	}

	user, err := s.users.Get(ctx, req.UserID)
	if err != nil {
		return pkgerrors.ErrUserNotFound
	}
	if _, err := s.users.Update(ctx, user.ID, store.Row{"wallet_balance": user.WalletBalance + req.Amount}); err != nil {
		return err
	}
	_, err = s.txns.Create(ctx, &models.Transaction{
		Type:        models.TypeBalanceAdd,
		Amount:      req.Amount,
		Description: "Balance recharge via " + req.Method,
		UserID:      user.ID,
		Status:      models.StatusCompleted,
	})
	if err != nil {
		slog.Error("failed to record recharge transaction", "request_id", requestID, "error", err)
	}

	_, err = s.recharges.Update(ctx, requestID, store.Row{
		"status":       string(models.RechargeApproved),
		"processed_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	return err
}

// RejectRecharge is terminal and has no side effect on the wallet.
func (s *storefront) RejectRecharge(ctx context.Context, requestID string) error {
	req, err := s.recharges.Get(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Status != models.RechargePending {
		return pkgerrors.ErrRequestNotPending
	}
	_, err = s.recharges.Update(ctx, requestID, store.Row{
		"status":       string(models.RechargeRejected),
		"processed_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	return err
}

func (s *storefront) Stats(ctx context.Context) (Stats, error) {
	var stats Stats

	txns, err := s.txns.List(ctx, nil)
	if err != nil {
		return stats, err
	}
	for _, t := range txns {
		if t.Type == models.TypePurchase {
			if t.Amount < 0 {
				stats.TotalSales -= t.Amount
			} else {
				stats.TotalSales += t.Amount
			}
		}
	}
	stats.Transactions = len(txns)

	orders, err := s.orders.List(ctx, nil)
	if err != nil {
		return stats, err
	}
	stats.TotalOrders = len(orders)
	now := time.Now().UTC()
	for _, o := range orders {
		if o.Status == models.OrderStatusActive && !o.Expired(now) {
			stats.ActiveOrders++
		}
	}

	products, err := s.products.List(ctx, nil)
	if err != nil {
		return stats, err
	}
	stats.TotalProducts = len(products)

	users, err := s.users.List(ctx, nil)
	if err != nil {
		return stats, err
	}
	stats.TotalUsers = len(users)

	pending, err := s.PendingRecharges(ctx)
	if err != nil {
		return stats, err
	}
	stats.PendingRecharges = len(pending)

	return stats, nil
}
