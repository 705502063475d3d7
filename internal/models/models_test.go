package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"voalzira/internal/money"
)

func cents(v int64) *money.Cents {
	c := money.Cents(v)
	return &c
}

func TestProductPricePrefersSale(t *testing.T) {
	p := Product{PriceWhole: 4500, PriceSlice: 1200, SalePriceSlice: cents(990)}

	assert.Equal(t, money.Cents(990), p.Price(Slice))
	assert.Equal(t, money.Cents(4500), p.Price(Whole))

	p.SalePriceWhole = cents(3990)
	assert.Equal(t, money.Cents(3990), p.Price(Whole))
}

func TestSalePricesValid(t *testing.T) {
	p := Product{PriceWhole: 4500, PriceSlice: 1200}
	assert.True(t, p.SalePricesValid())

	p.SalePriceSlice = cents(1200)
	assert.True(t, p.SalePricesValid())

	p.SalePriceWhole = cents(5000)
	assert.False(t, p.SalePricesValid())
}

func TestOutOfStockAt(t *testing.T) {
	p := Product{OutOfStockStores: []string{"2"}}
	assert.True(t, p.OutOfStockAt("2"))
	assert.False(t, p.OutOfStockAt("1"))
}

func TestEnumsValid(t *testing.T) {
	assert.True(t, Slice.Valid())
	assert.False(t, SaleType("crumb").Valid())
	assert.True(t, PayPix.Valid())
	assert.False(t, PaymentMethod("card").Valid())
}
