package backend

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voalzira/internal/models"
	"voalzira/internal/money"
)

var (
	fixtureStores = []models.Store{
		{ID: "1", Name: "Tijuca", Address: "Rua Conde de Bonfim, 123"},
		{ID: "2", Name: "Barra", Address: "Av. das Américas, 500"},
	}
	fixtureProfile = models.UserProfile{
		ID: "u1", Name: "Maria", Email: "maria@example.com", WhatsApp: "+55 21 90000-0000",
		Points: 40, LoyaltyRatio: 1, WalletBalanceCents: 10000,
	}
)

// contract runs the behaviour every Backend must share.
func contract(t *testing.T, newStore func(t *testing.T) Backend) {
	ctx := context.Background()
	storeIDs := []string{"1", "2"}

	t.Run("stores and categories", func(t *testing.T) {
		s := newStore(t)
		stores, err := s.ListStores(ctx)
		require.NoError(t, err)
		assert.Len(t, stores, 2)
		cats, err := s.ListCategories(ctx)
		require.NoError(t, err)
		assert.Equal(t, []models.Category{{ID: "classic", Name: "Classic"}}, cats)
	})

	t.Run("create and list product", func(t *testing.T) {
		s := newStore(t)
		sale := money.Cents(990)
		created, err := s.CreateProduct(ctx, models.Product{
			Name: "Bolo de Cenoura", PriceWhole: 4500, PriceSlice: 1200, SalePriceSlice: &sale,
			StockCount: 3, Image: "a.jpg", Images: []string{"a.jpg", "b.jpg"}, CategoryID: "classic",
			OutOfStockStores: []string{"2"},
		}, storeIDs)
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, "Classic", created.Category)

		products, err := s.ListProducts(ctx)
		require.NoError(t, err)
		require.Len(t, products, 1)
		p := products[0]
		assert.Equal(t, created.ID, p.ID)
		assert.Equal(t, []string{"a.jpg", "b.jpg"}, p.Images)
		assert.Equal(t, []string{"2"}, p.OutOfStockStores)
		require.NotNil(t, p.SalePriceSlice)
		assert.Equal(t, money.Cents(990), *p.SalePriceSlice)
		assert.Nil(t, p.SalePriceWhole)
		assert.Equal(t, "Classic", p.Category)
	})

	t.Run("update product", func(t *testing.T) {
		s := newStore(t)
		created, err := s.CreateProduct(ctx, models.Product{Name: "Fubá", PriceWhole: 3800, PriceSlice: 1000}, storeIDs)
		require.NoError(t, err)

		created.Name = "Fubá com Goiabada"
		created.Images = []string{"c.jpg"}
		created.OutOfStockStores = []string{"1", "2"}
		require.NoError(t, s.UpdateProduct(ctx, created, storeIDs))
		// unchanged values must not read as missing
		require.NoError(t, s.UpdateProduct(ctx, created, storeIDs))

		products, err := s.ListProducts(ctx)
		require.NoError(t, err)
		require.Len(t, products, 1)
		assert.Equal(t, "Fubá com Goiabada", products[0].Name)
		assert.Equal(t, []string{"c.jpg"}, products[0].Images)
		assert.ElementsMatch(t, []string{"1", "2"}, products[0].OutOfStockStores)

		err = s.UpdateProduct(ctx, models.Product{ID: "missing", Name: "x"}, storeIDs)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("profile", func(t *testing.T) {
		s := newStore(t)
		p, err := s.GetProfile(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, fixtureProfile, p)

		p.Name = "Maria Silva"
		p.WalletBalanceCents = 999999
		require.NoError(t, s.UpdateProfile(ctx, p))
		got, err := s.GetProfile(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "Maria Silva", got.Name)
		assert.Equal(t, money.Cents(10000), got.WalletBalanceCents, "balance only moves through the ledger")

		_, err = s.GetProfile(ctx, "nobody")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.UpdateProfile(ctx, models.UserProfile{ID: "nobody"}), ErrNotFound)
	})

	t.Run("orders", func(t *testing.T) {
		s := newStore(t)
		o, err := s.CreateOrder(ctx, models.Order{
			ID: "order-1", UserID: "u1", StoreID: "1", TotalCents: 2160,
			Status: models.OrderCompleted, PaymentMethod: models.PayWallet,
			Items: []models.OrderItem{
				{ProductID: "c3", Type: models.Slice, Quantity: 2, PriceCents: 1000},
				{ProductID: "c1", Type: models.Whole, Quantity: 1, PriceCents: 400},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "order-1", o.ID)

		orders, err := s.ListOrders(ctx)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, "Maria", orders[0].CustomerName)
		assert.Equal(t, models.OrderCompleted, orders[0].Status)
		assert.Equal(t, money.Cents(2160), orders[0].TotalCents)
		require.Len(t, orders[0].Items, 2)
		assert.Equal(t, "c3", orders[0].Items[0].ProductID)

		_, err = s.CreateOrder(ctx, models.Order{ID: "order-1", UserID: "u1"})
		assert.Error(t, err, "duplicate ids are rejected")
	})

	t.Run("debit and refund", func(t *testing.T) {
		s := newStore(t)
		d := WalletDebit{UserID: "u1", AmountCents: 2160, OrderID: "o1", IdempotencyKey: "idemp_o1"}
		require.NoError(t, s.DebitWallet(ctx, d))
		require.NoError(t, s.DebitWallet(ctx, d), "replayed key is a no-op")
		assertBalance(t, s, 7840)

		require.NoError(t, s.RefundWallet(ctx, WalletDebit{UserID: "u1", AmountCents: 2160, OrderID: "o1", IdempotencyKey: "refund_o1"}))
		assertBalance(t, s, 10000)

		err := s.DebitWallet(ctx, WalletDebit{UserID: "u1", AmountCents: 10001, IdempotencyKey: "big"})
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assertBalance(t, s, 10000)

		err = s.DebitWallet(ctx, WalletDebit{UserID: "ghost", AmountCents: 1, IdempotencyKey: "ghost"})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.DebitWallet(ctx, WalletDebit{UserID: "u1", IdempotencyKey: "zero"}), ErrInvalidAmount)
	})

	t.Run("concurrent debits never overdraw", func(t *testing.T) {
		s := newStore(t)
		var wg sync.WaitGroup
		var ok atomic.Int32
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := s.DebitWallet(ctx, WalletDebit{UserID: "u1", AmountCents: 3000, IdempotencyKey: string(rune('a' + i))})
				if err == nil {
					ok.Add(1)
				} else if !errors.Is(err, ErrInsufficientFunds) {
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, int32(3), ok.Load())
		assertBalance(t, s, 1000)
	})
}

func assertBalance(t *testing.T, s Backend, want money.Cents) {
	t.Helper()
	p, err := s.GetProfile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, want, p.WalletBalanceCents)
}
