package wallet

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voalzira/internal/models"
	"voalzira/internal/money"
)

func defaultTiers(t *testing.T) *Tiers {
	t.Helper()
	tiers, err := NewTiers(DefaultTiers())
	require.NoError(t, err)
	return tiers
}

func TestComputeBonusSteps(t *testing.T) {
	w := New(0, defaultTiers(t))

	cases := []struct {
		amount money.Cents
		bonus  money.Cents
	}{
		{money.FromReais(10), 0},
		{money.FromReais(49), 0},
		{money.FromReais(50), money.FromReais(50).Percent(5)},
		{money.FromReais(99), money.FromReais(99).Percent(5)},
		{money.FromReais(100), money.FromReais(10)},
		{money.FromReais(199), money.FromReais(199).Percent(10)},
		{money.FromReais(200), money.FromReais(30)},
		{money.FromReais(1000), money.FromReais(150)},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.bonus, w.ComputeBonus(tc.amount), tc.amount.String())
	}
}

func TestTopUpCreditsBonus(t *testing.T) {
	w := New(0, defaultTiers(t))

	credited, err := w.TopUp(money.FromReais(100))
	require.NoError(t, err)
	assert.Equal(t, money.FromReais(110), credited)
	assert.Equal(t, money.FromReais(110), w.Balance())
}

func TestTopUpRejectsNonPositive(t *testing.T) {
	w := New(500, defaultTiers(t))
	_, err := w.TopUp(0)
	assert.ErrorIs(t, err, ErrInvalidTopUp)
	assert.Equal(t, money.Cents(500), w.Balance())
}

func TestTopUpRejectsOverflow(t *testing.T) {
	w := New(math.MaxInt64-1000, defaultTiers(t))
	_, err := w.TopUp(money.FromReais(50))
	assert.ErrorIs(t, err, ErrInvalidTopUp)
	assert.Equal(t, money.Cents(math.MaxInt64-1000), w.Balance())
	assert.Positive(t, int64(w.Balance()))
}

func TestTopUpRejectsAboveCeiling(t *testing.T) {
	w := New(0, defaultTiers(t))
	_, err := w.TopUp(math.MaxInt64)
	assert.ErrorIs(t, err, ErrInvalidTopUp)
	_, err = w.TopUp(MaxTopUp + 1)
	assert.ErrorIs(t, err, ErrInvalidTopUp)
	assert.Zero(t, w.Balance())

	_, err = w.TopUp(MaxTopUp)
	require.NoError(t, err)
}

func TestPayInsufficientLeavesBalance(t *testing.T) {
	w := New(1500, defaultTiers(t))

	assert.False(t, w.CanPay(2160))
	assert.False(t, w.Pay(2160))
	assert.Equal(t, money.Cents(1500), w.Balance())
}

func TestPayAndCredit(t *testing.T) {
	w := New(15000, defaultTiers(t))

	require.True(t, w.Pay(2160))
	assert.Equal(t, money.Cents(12840), w.Balance())

	w.Credit(2160)
	assert.Equal(t, money.Cents(15000), w.Balance())

	assert.True(t, w.Pay(15000))
	assert.Equal(t, money.Cents(0), w.Balance())
}

func TestTiersAdminEditIsUsedByTopUp(t *testing.T) {
	tiers := defaultTiers(t)
	w := New(0, tiers)

	require.NoError(t, tiers.Set(models.WalletTier{Amount: money.FromReais(100), BonusPercentage: 20}))
	credited, err := w.TopUp(money.FromReais(100))
	require.NoError(t, err)
	assert.Equal(t, money.FromReais(120), credited)

	require.NoError(t, tiers.Set(models.WalletTier{Amount: money.FromReais(20), BonusPercentage: 1}))
	list := tiers.List()
	require.Len(t, list, 4)
	assert.Equal(t, money.FromReais(20), list[0].Amount)
}

func TestTiersValidation(t *testing.T) {
	tiers := defaultTiers(t)
	assert.ErrorIs(t, tiers.Set(models.WalletTier{Amount: 0, BonusPercentage: 5}), ErrTierAmount)
	assert.ErrorIs(t, tiers.Set(models.WalletTier{Amount: 100, BonusPercentage: 101}), ErrTierPercentage)
}
