package models

import "time"

type TransactionType string

const (
	TypePurchase   TransactionType = "purchase"
	TypeBalanceAdd TransactionType = "balance_add"
	TypeSystem     TransactionType = "system"
)

type TransactionStatus string

const (
	StatusCompleted TransactionStatus = "completed"
	StatusPending   TransactionStatus = "pending"
)

// Transaction is an append-only ledger entry. Amounts are signed: purchases
// are negative, balance additions positive.
type Transaction struct {
	ID          string            `json:"id"`
	Type        TransactionType   `json:"type"`
	Amount      float64           `json:"amount"`
	Description string            `json:"description"`
	UserID      string            `json:"user_id"`
	ProductID   string            `json:"product_id,omitempty"`
	Status      TransactionStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
}
