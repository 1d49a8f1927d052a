package models

// Collection names shared by the record store and the remote backend.
// They double as local storage key suffixes and remote table names.
const (
	CollectionUsers            = "users"
	CollectionProducts         = "products"
	CollectionStockItems       = "stock_items"
	CollectionOrders           = "orders"
	CollectionTransactions     = "transactions"
	CollectionRechargeRequests = "recharge_requests"
)
