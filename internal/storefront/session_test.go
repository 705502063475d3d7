package storefront

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"voalzira/internal/cart"
	"voalzira/internal/loyalty"
	"voalzira/internal/models"
	"voalzira/internal/money"
)

func TestAddToCartRejectsUnknownAndOutOfStock(t *testing.T) {
	h := newHarness(t, 0)
	ss := h.session(t)

	_, err := ss.AddToCart("nope", models.Slice)
	assert.ErrorIs(t, err, ErrUnknownProduct)

	_, err = ss.AddToCart("c2", models.Slice)
	assert.ErrorIs(t, err, ErrOutOfStock)

	_, err = ss.SelectStore("2")
	require.NoError(t, err)
	snap, err := ss.AddToCart("c2", models.Slice)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Cart.Count)

	_, err = ss.AddToCart("c3", "slab")
	assert.ErrorIs(t, err, cart.ErrInvalidSaleType)
}

func TestCouponScenario(t *testing.T) {
	h := newHarness(t, 0)
	ss := h.session(t)
	_, err := ss.AddToCart("c3", models.Slice)
	require.NoError(t, err)
	_, err = ss.AddToCart("c3", models.Slice)
	require.NoError(t, err)

	snap, err := ss.ApplyCoupon("bolo10")
	require.NoError(t, err)
	assert.Equal(t, money.Cents(2400), snap.Cart.Subtotal)
	assert.Equal(t, money.Cents(240), snap.Cart.Discount)
	assert.Equal(t, money.Cents(2160), snap.Cart.Total)
	require.NotNil(t, snap.Cart.Coupon)

	snap, err = ss.ApplyCoupon("NOPE")
	assert.ErrorIs(t, err, cart.ErrUnknownCoupon)
	assert.Nil(t, snap.Cart.Coupon)
	assert.Equal(t, money.Cents(0), snap.Cart.Discount)

	_, err = h.sf.AddCoupon(models.Coupon{Code: "PASCOA", Discount: 5, Kind: models.Percentage, ExpiryDate: "2026-04-05"})
	require.NoError(t, err)
	_, err = ss.ApplyCoupon("pascoa")
	assert.ErrorIs(t, err, cart.ErrCouponExpired)
}

func TestDefaultCouponsOnTheRealClock(t *testing.T) {
	fb := newFakeBackend(t, 0)
	sf, err := New(testConfig(), fb, nil, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, sf.Load(context.Background()))
	ss, err := sf.NewSession(context.Background())
	require.NoError(t, err)

	_, err = ss.AddToCart("c3", models.Slice)
	require.NoError(t, err)
	_, err = ss.AddToCart("c3", models.Slice)
	require.NoError(t, err)

	snap, err := ss.ApplyCoupon("BOLO10")
	require.NoError(t, err)
	assert.Equal(t, money.Cents(2400), snap.Cart.Subtotal)
	assert.Equal(t, money.Cents(240), snap.Cart.Discount)
	assert.Equal(t, money.Cents(2160), snap.Cart.Total)

	snap, err = ss.ApplyCoupon("VEMPROBOLO")
	require.NoError(t, err)
	assert.Equal(t, money.Cents(500), snap.Cart.Discount)
}

func TestRemoveAndClearCart(t *testing.T) {
	h := newHarness(t, 0)
	ss := h.session(t)
	_, _ = ss.AddToCart("c3", models.Whole)
	_, _ = ss.AddToCart("c3", models.Whole)
	snap := ss.RemoveFromCart("c3", models.Whole)
	assert.Equal(t, 1, snap.Cart.Count)
	snap = ss.ClearCart()
	assert.Equal(t, 0, snap.Cart.Count)
	assert.False(t, snap.CanPayWithWallet)
}

func TestTopUp(t *testing.T) {
	h := newHarness(t, 0)
	ss := h.session(t)
	credited, snap, err := ss.TopUp(money.FromReais(100))
	require.NoError(t, err)
	assert.Equal(t, money.FromReais(110), credited)
	assert.Equal(t, money.FromReais(110), snap.WalletBalanceCents)

	_, _, err = ss.TopUp(0)
	assert.Error(t, err)
}

func TestRedeemReward(t *testing.T) {
	h := newHarness(t, 0)
	ss := h.session(t)
	_, err := ss.RedeemReward()
	assert.ErrorIs(t, err, loyalty.ErrNotEnoughStamps)

	for i := 0; i < loyalty.MaxStamps; i++ {
		ss.card.AddPoints(loyalty.PointsPerStamp)
	}
	snap, err := ss.RedeemReward()
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Stamps)
}

func TestSelectStoreAndNavigate(t *testing.T) {
	h := newHarness(t, 0)
	ss := h.session(t)
	_, err := ss.SelectStore("42")
	assert.ErrorIs(t, err, ErrUnknownStore)

	snap, err := ss.Navigate(ViewWallet)
	require.NoError(t, err)
	assert.Equal(t, ViewWallet, snap.View)
	_, err = ss.Navigate("home")
	assert.ErrorIs(t, err, ErrUnknownView)
}

func TestSessionManager(t *testing.T) {
	h := newHarness(t, 0)
	m := NewSessionManager(h.sf)
	ctx := context.Background()

	ss, err := m.GetOrCreate(ctx, "")
	require.NoError(t, err)
	again, err := m.GetOrCreate(ctx, ss.ID)
	require.NoError(t, err)
	assert.Same(t, ss, again)

	other, err := m.GetOrCreate(ctx, "stale-id")
	require.NoError(t, err)
	assert.NotEqual(t, ss.ID, other.ID)
	assert.Equal(t, 2, m.Len())

	_, ok := m.Get("stale-id")
	assert.False(t, ok)
}

func TestSessionManagerDropsIdleSessions(t *testing.T) {
	h := newHarness(t, 0)
	now := october()
	m := NewSessionManager(h.sf, WithIdleTimeout(time.Minute), WithManagerClock(func() time.Time { return now }))
	ctx := context.Background()

	idle, err := m.Create(ctx)
	require.NoError(t, err)
	now = now.Add(30 * time.Second)
	active, err := m.Create(ctx)
	require.NoError(t, err)

	now = now.Add(45 * time.Second)
	_, ok := m.Get(active.ID)
	require.True(t, ok)
	_, ok = m.Get(idle.ID)
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	fresh, err := m.GetOrCreate(ctx, active.ID)
	require.NoError(t, err)
	assert.NotEqual(t, active.ID, fresh.ID)
	assert.Equal(t, 1, m.Len())
}

func TestSessionManagerCapsCookielessSessions(t *testing.T) {
	h := newHarness(t, 0)
	now := october()
	m := NewSessionManager(h.sf, WithMaxSessions(50), WithManagerClock(func() time.Time {
		now = now.Add(time.Millisecond)
		return now
	}))
	ctx := context.Background()

	first, err := m.GetOrCreate(ctx, "")
	require.NoError(t, err)
	var last *Session
	for i := 0; i < 500; i++ {
		last, err = m.GetOrCreate(ctx, "")
		require.NoError(t, err)
	}
	assert.Equal(t, 50, m.Len())
	_, ok := m.Get(first.ID)
	assert.False(t, ok)
	_, ok = m.Get(last.ID)
	assert.True(t, ok)
}

func TestSessionsAreIndependent(t *testing.T) {
	h := newHarness(t, 0)
	a, b := h.session(t), h.session(t)
	_, err := a.AddToCart("c3", models.Slice)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Snapshot().Cart.Count)
	assert.Equal(t, 0, b.Snapshot().Cart.Count)
}
