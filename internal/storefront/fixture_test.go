package storefront

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"voalzira/internal/backend"
	"voalzira/internal/config"
	"voalzira/internal/models"
	"voalzira/internal/money"
	"voalzira/internal/wallet"
	"voalzira/internal/webhook"
)

// fakeBackend wraps the memory store with call counters and injectable
// failures.
type fakeBackend struct {
	*backend.MemoryStore

	mu              sync.Mutex
	debits          int
	refunds         int
	failList        error
	failDebit       error
	failRefund      error
	failCreateOrder error
	failUpdate      error
}

func (f *fakeBackend) ListStores(ctx context.Context) ([]models.Store, error) {
	f.mu.Lock()
	err := f.failList
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.MemoryStore.ListStores(ctx)
}

func (f *fakeBackend) DebitWallet(ctx context.Context, d backend.WalletDebit) error {
	f.mu.Lock()
	f.debits++
	err := f.failDebit
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.MemoryStore.DebitWallet(ctx, d)
}

func (f *fakeBackend) RefundWallet(ctx context.Context, d backend.WalletDebit) error {
	f.mu.Lock()
	f.refunds++
	err := f.failRefund
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.MemoryStore.RefundWallet(ctx, d)
}

func (f *fakeBackend) CreateOrder(ctx context.Context, o models.Order) (models.Order, error) {
	f.mu.Lock()
	err := f.failCreateOrder
	f.mu.Unlock()
	if err != nil {
		return models.Order{}, err
	}
	return f.MemoryStore.CreateOrder(ctx, o)
}

func (f *fakeBackend) UpdateProduct(ctx context.Context, p models.Product, storeIDs []string) error {
	f.mu.Lock()
	err := f.failUpdate
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.MemoryStore.UpdateProduct(ctx, p, storeIDs)
}

var october = func() time.Time { return time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC) }

func testConfig() *config.Config {
	return &config.Config{
		ShopName:       "Vó Alzira",
		ProfileID:      "u1",
		PreferredStore: "teste",
		Coupons:        config.DefaultCoupons(),
		WalletTiers:    wallet.DefaultTiers(),
		Webhook:        config.WebhookConfig{Timeout: time.Second},
	}
}

func newFakeBackend(t *testing.T, balance money.Cents) *fakeBackend {
	t.Helper()
	ctx := context.Background()
	mem := backend.NewMemoryStore()
	mem.AddStore(models.Store{ID: "2", Name: "Vó Alzira - Barra", Address: "Av. das Américas, 500", Slug: "barra"})
	mem.AddStore(models.Store{ID: "1", Name: "Loja Teste", Address: "Endereço de Teste", Slug: "loja-teste"})
	mem.AddCategory(models.Category{ID: "classic", Name: "Classic"})
	stores := []string{"1", "2"}
	_, err := mem.CreateProduct(ctx, models.Product{ID: "c3", Name: "Bolo de Fubá", PriceWhole: 3800, PriceSlice: 1200, CategoryID: "classic"}, stores)
	require.NoError(t, err)
	_, err = mem.CreateProduct(ctx, models.Product{ID: "c2", Name: "Red Velvet", PriceWhole: 8500, PriceSlice: 1800, OutOfStockStores: []string{"1"}}, stores)
	require.NoError(t, err)
	_, err = mem.CreateProduct(ctx, models.Product{ID: "c9", Name: "Bolo Festa", PriceWhole: 10000, PriceSlice: 2500}, stores)
	require.NoError(t, err)
	mem.PutProfile(models.UserProfile{
		ID: "u1", Name: "Maria", Email: "maria@example.com", Address: "Rua das Flores, 123",
		WhatsApp: "+55 21 99887-7665", LoyaltyRatio: 1, WalletBalanceCents: balance,
	})
	return &fakeBackend{MemoryStore: mem}
}

type harness struct {
	sf       *Storefront
	backend  *fakeBackend
	notifier *webhook.Notifier
}

func newHarness(t *testing.T, balance money.Cents) *harness {
	t.Helper()
	fb := newFakeBackend(t, balance)
	logger := zaptest.NewLogger(t)
	n := webhook.New("", time.Second, logger)
	sf, err := New(testConfig(), fb, nil, n, logger, WithClock(october))
	require.NoError(t, err)
	require.NoError(t, sf.Load(context.Background()))
	return &harness{sf: sf, backend: fb, notifier: n}
}

func (h *harness) session(t *testing.T) *Session {
	t.Helper()
	ss, err := h.sf.NewSession(context.Background())
	require.NoError(t, err)
	return ss
}

func (h *harness) remoteBalance(t *testing.T) money.Cents {
	t.Helper()
	p, err := h.backend.GetProfile(context.Background(), "u1")
	require.NoError(t, err)
	return p.WalletBalanceCents
}
