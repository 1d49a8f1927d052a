package models

import (
	"fmt"
	"strings"
	"time"
)

type OrderStatus string

const (
	OrderStatusActive  OrderStatus = "active"
	OrderStatusExpired OrderStatus = "expired"
)

// OrderValidity is the fixed window after which a delivered credential
// expires. ExpiresAt is stamped once at purchase and never recomputed.
const OrderValidity = 30 * 24 * time.Hour

type Order struct {
	ID                   string      `json:"id"`
	Code                 string      `json:"code"`
	ProductName          string      `json:"product_name"`
	PriceAtPurchase      float64     `json:"price_at_purchase"`
	CredentialsDelivered string      `json:"credentials_delivered"`
	PurchaseURL          string      `json:"purchase_url"`
	ProfileInfo          string      `json:"profile_info"`
	Supplier             string      `json:"supplier"`
	CustomerName         string      `json:"customer_name"`
	CustomerPhone        string      `json:"customer_phone"`
	UserID               string      `json:"user_id"`
	ProductID            string      `json:"product_id"`
	Status               OrderStatus `json:"status"`
	CreatedAt            time.Time   `json:"created_at"`
	ExpiresAt            time.Time   `json:"expires_at"`
}

// Expired reports whether the order is past its validity window, regardless
// of the persisted status field.
func (o *Order) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// NewOrderCode builds the human-readable code shown to customers,
// e.g. "ITC4821733".
func NewOrderCode(now time.Time) string {
	ms := fmt.Sprintf("%d", now.UnixMilli())
	if len(ms) > 7 {
		ms = ms[len(ms)-7:]
	}
	return "ITC" + ms
}

var productURLs = map[string]string{
	"netflix":         "https://netflix.com",
	"spotify":         "https://spotify.com",
	"disney+":         "https://disneyplus.com",
	"amazon prime":    "https://primevideo.com",
	"youtube premium": "https://youtube.com/premium",
}

// PurchaseURLFor maps a product name to the site where the delivered
// credentials are used.
func PurchaseURLFor(productName string) string {
	lower := strings.ToLower(productName)
	for key, url := range productURLs {
		if strings.Contains(lower, key) {
			return url
		}
	}
	return "https://example.com"
}
