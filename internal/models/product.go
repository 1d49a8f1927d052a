package models

import (
	"strings"
	"time"
)

type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	ImageURL  string    `json:"image_url"`
	Category  string    `json:"category"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// StockItem is one sellable credential set owned by a product. Once sold it is
// immutable except for re-association with its order during id reconciliation.
type StockItem struct {
	ID          string     `json:"id"`
	ProductID   string     `json:"product_id"`
	Credentials string     `json:"credentials"`
	IsSold      bool       `json:"is_sold"`
	SoldTo      string     `json:"sold_to,omitempty"`
	OrderID     string     `json:"order_id,omitempty"`
	SoldAt      *time.Time `json:"sold_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Credentials is the decoded form of the colon-delimited payload
// "account:secret:profile:pin". Missing fields decode as empty strings.
type Credentials struct {
	Account string
	Secret  string
	Profile string
	PIN     string
}

func ParseCredentials(payload string) Credentials {
	parts := strings.SplitN(payload, ":", 4)
	var c Credentials
	if len(parts) > 0 {
		c.Account = parts[0]
	}
	if len(parts) > 1 {
		c.Secret = parts[1]
	}
	if len(parts) > 2 {
		c.Profile = parts[2]
	}
	if len(parts) > 3 {
		c.PIN = parts[3]
	}
	return c
}
