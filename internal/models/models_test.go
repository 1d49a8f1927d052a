package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseCredentials(t *testing.T) {
	c := ParseCredentials("mail@x.com:secret:3:1234")
	assert.Equal(t, "mail@x.com", c.Account)
	assert.Equal(t, "secret", c.Secret)
	assert.Equal(t, "3", c.Profile)
	assert.Equal(t, "1234", c.PIN)

	partial := ParseCredentials("mail@x.com:secret")
	assert.Equal(t, "secret", partial.Secret)
	assert.Empty(t, partial.Profile)
	assert.Empty(t, partial.PIN)

	// A pin containing colons survives because splitting stops at four parts.
	odd := ParseCredentials("a:b:c:d:e")
	assert.Equal(t, "d:e", odd.PIN)
}

func TestNewOrderCode(t *testing.T) {
	at := time.UnixMilli(1756464821733)
	assert.Equal(t, "ITC4821733", NewOrderCode(at))
	assert.Len(t, NewOrderCode(time.Now()), 10)
}

func TestPurchaseURLFor(t *testing.T) {
	assert.Equal(t, "https://netflix.com", PurchaseURLFor("Netflix Premium 4K"))
	assert.Equal(t, "https://spotify.com", PurchaseURLFor("SPOTIFY Family"))
	assert.Equal(t, "https://disneyplus.com", PurchaseURLFor("Disney+ Monthly"))
	assert.Equal(t, "https://example.com", PurchaseURLFor("Unknown Service"))
}

func TestOrderExpired(t *testing.T) {
	now := time.Now().UTC()
	order := &Order{Status: OrderStatusActive, ExpiresAt: now.Add(OrderValidity)}
	assert.False(t, order.Expired(now))
	assert.True(t, order.Expired(now.Add(OrderValidity+time.Minute)))
}
