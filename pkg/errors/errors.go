package errors

import (
	"errors"
)

var (
	// Transport and sync layer. Recoverable: callers fall back to the local store.
	ErrBackendUnreachable  = errors.New("backend unreachable")
	ErrCorruptedCollection = errors.New("corrupted local collection")

	// Business-level failures surfaced to the caller.
	ErrNotFound           = errors.New("record not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrProductNotFound    = errors.New("product not found")
	ErrNoStockAvailable   = errors.New("no stock available")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrUserNotApproved    = errors.New("user not approved")
	ErrProductInactive    = errors.New("product is not active")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
	ErrRequestNotPending  = errors.New("recharge request is not pending")
)
