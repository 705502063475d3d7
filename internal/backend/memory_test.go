package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voalzira/internal/models"
)

func newMemoryFixture(t *testing.T) Backend {
	s := NewMemoryStore()
	for _, st := range fixtureStores {
		s.AddStore(st)
	}
	s.AddCategory(models.Category{ID: "classic", Name: "Classic"})
	s.PutProfile(fixtureProfile)
	return s
}

func TestMemoryStoreContract(t *testing.T) {
	contract(t, newMemoryFixture)
}

func TestSeededMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewSeededMemoryStore()

	products, err := s.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 6)

	stores, err := s.ListStores(ctx)
	require.NoError(t, err)
	assert.Len(t, stores, 4)

	p, err := s.GetProfile(ctx, DevProfileID)
	require.NoError(t, err)
	assert.EqualValues(t, 15000, p.WalletBalanceCents)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewSeededMemoryStore()
	products, err := s.ListProducts(ctx)
	require.NoError(t, err)
	products[0].Images[0] = "mutated"
	products[0].OutOfStockStores = append(products[0].OutOfStockStores, "9")

	again, err := s.ListProducts(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", again[0].Images[0])
	assert.NotContains(t, again[0].OutOfStockStores, "9")
}
