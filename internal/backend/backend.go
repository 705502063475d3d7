// Package backend is the boundary to the shop's table store: catalog,
// profiles, orders and the wallet ledger.
package backend

import (
	"context"
	"errors"

	"voalzira/internal/models"
	"voalzira/internal/money"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	ErrInvalidAmount     = errors.New("amount must be positive")
)

// WalletDebit identifies one wallet movement. IdempotencyKey makes retries
// of the same movement safe: a replayed key succeeds without moving money.
type WalletDebit struct {
	UserID         string
	AmountCents    money.Cents
	OrderID        string
	IdempotencyKey string
}

// Backend is implemented by SQLStore and MemoryStore.
type Backend interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	ListStores(ctx context.Context) ([]models.Store, error)
	GetProfile(ctx context.Context, id string) (models.UserProfile, error)
	UpdateProfile(ctx context.Context, p models.UserProfile) error
	ListOrders(ctx context.Context) ([]models.Order, error)

	// CreateProduct and UpdateProduct receive every store id so that the
	// product's availability can be stored per store.
	CreateProduct(ctx context.Context, p models.Product, storeIDs []string) (models.Product, error)
	UpdateProduct(ctx context.Context, p models.Product, storeIDs []string) error
	CreateOrder(ctx context.Context, o models.Order) (models.Order, error)

	// DebitWallet atomically takes the amount from the user's balance.
	DebitWallet(ctx context.Context, d WalletDebit) error
	// RefundWallet returns a previously debited amount.
	RefundWallet(ctx context.Context, d WalletDebit) error
}

// availableStores is the complement of a product's out-of-stock list.
func availableStores(p models.Product, storeIDs []string) []string {
	var out []string
	for _, id := range storeIDs {
		if !p.OutOfStockAt(id) {
			out = append(out, id)
		}
	}
	return out
}
