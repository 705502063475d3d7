package backend

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"voalzira/internal/models"
	"voalzira/internal/money"
)

// DevProfileID is the customer the dev store is seeded with.
const DevProfileID = "dev-customer"

// MemoryStore is the dev-mode Backend: everything lives in process memory
// and is lost on restart.
type MemoryStore struct {
	mu         sync.Mutex
	products   []models.Product
	categories []models.Category
	stores     []models.Store
	profiles   map[string]models.UserProfile
	orders     []models.Order
	ledger     map[string]WalletDebit
	now        func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]models.UserProfile),
		ledger:   make(map[string]WalletDebit),
		now:      time.Now,
	}
}

// NewSeededMemoryStore returns a store holding the demo catalog, the four
// shop locations and the dev customer.
func NewSeededMemoryStore() *MemoryStore {
	s := NewMemoryStore()
	s.categories = []models.Category{
		{ID: "classic", Name: "Classic"},
		{ID: "premium", Name: "Premium"},
		{ID: "special", Name: "Special"},
		{ID: "drinks", Name: "Drinks"},
		{ID: "ice-cream", Name: "Ice Cream"},
	}
	s.stores = []models.Store{
		{ID: "1", Name: "Vó Alzira - Tijuca", Address: "Rua Conde de Bonfim, 123", Slug: "tijuca"},
		{ID: "2", Name: "Vó Alzira - Barra", Address: "Av. das Américas, 500", Slug: "barra"},
		{ID: "3", Name: "Vó Alzira - Centro", Address: "Rua do Ouvidor, 45", Slug: "centro"},
		{ID: "4", Name: "Vó Alzira - Copacabana", Address: "Av. N. Sra. de Copacabana, 800", Slug: "copacabana"},
	}
	sale := func(v int64) *money.Cents { c := money.Cents(v); return &c }
	img := func(seed string) string { return "https://picsum.photos/seed/" + seed + "/600/600" }
	s.products = []models.Product{
		{ID: "c1", Name: "Bolo de Cenoura com Chocolate", Description: "Massa fofinha de cenoura com cobertura generosa de brigadeiro artesanal.",
			PriceWhole: 4500, PriceSlice: 1200, SalePriceSlice: sale(990), StockCount: 15, Image: img("cake1"),
			Images: []string{img("cake1"), img("cake1b")}, CategoryID: "classic", Category: "Classic"},
		{ID: "c2", Name: "Red Velvet Premium", Description: "Massa aveludada vermelha com recheio de cream cheese e frutas vermelhas.",
			PriceWhole: 8500, PriceSlice: 1800, StockCount: 5, Image: img("cake2"),
			Images: []string{img("cake2")}, CategoryID: "premium", Category: "Premium", OutOfStockStores: []string{"2"}},
		{ID: "c3", Name: "Bolo de Fubá com Goiabada", Description: "O clássico da vovó, feito com milho selecionado e pedaços de goiabada cascão.",
			PriceWhole: 3800, PriceSlice: 1000, StockCount: 20, Image: img("cake3"),
			Images: []string{img("cake3")}, CategoryID: "classic", Category: "Classic"},
		{ID: "c4", Name: "Chocolate Belga 70%", Description: "Para os amantes de chocolate intenso, massa úmida e ganache de chocolate belga.",
			PriceWhole: 9500, PriceSlice: 2200, SalePriceWhole: sale(7990), StockCount: 3, Image: img("cake4"),
			Images: []string{img("cake4")}, CategoryID: "special", Category: "Special"},
		{ID: "c5", Name: "Ninho com Nutella", Description: "Combinação perfeita de leite ninho cremoso com a legítima Nutella.",
			PriceWhole: 7500, PriceSlice: 1600, StockCount: 12, Image: img("cake5"),
			Images: []string{img("cake5")}, CategoryID: "premium", Category: "Premium"},
		{ID: "c6", Name: "Limão Siciliano", Description: "Massa leve com toque cítrico de limão siciliano e merengue suíço.",
			PriceWhole: 5500, PriceSlice: 1400, StockCount: 8, Image: img("cake6"),
			Images: []string{img("cake6")}, CategoryID: "special", Category: "Special"},
	}
	s.profiles[DevProfileID] = models.UserProfile{
		ID:                 DevProfileID,
		Name:               "Cliente Teste",
		Email:              "cliente@voalzira.com",
		Address:            "Rua das Flores, 123 - Apt 402, Rio de Janeiro",
		WhatsApp:           "+55 21 99887-7665",
		Points:             1250,
		LoyaltyRatio:       1,
		WalletBalanceCents: 15000,
	}
	return s
}

// AddStore registers a shop location.
func (s *MemoryStore) AddStore(st models.Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stores = append(s.stores, st)
}

// AddCategory registers a category.
func (s *MemoryStore) AddCategory(c models.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = append(s.categories, c)
}

// PutProfile inserts or replaces a profile, balance included.
func (s *MemoryStore) PutProfile(p models.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
}

func (s *MemoryStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, cloneProduct(p))
	}
	return out, nil
}

func (s *MemoryStore) ListCategories(ctx context.Context) ([]models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Category, len(s.categories))
	copy(out, s.categories)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) ListStores(ctx context.Context) ([]models.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Store, len(s.stores))
	copy(out, s.stores)
	return out, nil
}

func (s *MemoryStore) GetProfile(ctx context.Context, id string) (models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return models.UserProfile{}, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	return p, nil
}

func (s *MemoryStore) UpdateProfile(ctx context.Context, p models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.profiles[p.ID]
	if !ok {
		return fmt.Errorf("profile %s: %w", p.ID, ErrNotFound)
	}
	cur.Name = p.Name
	cur.Email = p.Email
	cur.Address = p.Address
	cur.WhatsApp = p.WhatsApp
	cur.LoyaltyRatio = p.LoyaltyRatio
	s.profiles[p.ID] = cur
	return nil
}

func (s *MemoryStore) ListOrders(ctx context.Context) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Order, 0, len(s.orders))
	for i := len(s.orders) - 1; i >= 0; i-- {
		o := s.orders[i]
		o.Items = append([]models.OrderItem(nil), o.Items...)
		if p, ok := s.profiles[o.UserID]; ok {
			o.CustomerName = p.Name
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *MemoryStore) CreateProduct(ctx context.Context, p models.Product, storeIDs []string) (models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	for _, existing := range s.products {
		if existing.ID == p.ID {
			return models.Product{}, fmt.Errorf("product %s already exists", p.ID)
		}
	}
	p.Category = s.categoryName(p.CategoryID)
	p.OutOfStockStores = outOfStock(availableStores(p, storeIDs), storeIDs)
	p.CreatedAt = s.now()
	p = cloneProduct(p)
	s.products = append([]models.Product{p}, s.products...)
	return cloneProduct(p), nil
}

func (s *MemoryStore) UpdateProduct(ctx context.Context, p models.Product, storeIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.products {
		if s.products[i].ID != p.ID {
			continue
		}
		p.Category = s.categoryName(p.CategoryID)
		p.OutOfStockStores = outOfStock(availableStores(p, storeIDs), storeIDs)
		p.CreatedAt = s.products[i].CreatedAt
		s.products[i] = cloneProduct(p)
		return nil
	}
	return fmt.Errorf("product %s: %w", p.ID, ErrNotFound)
}

func (s *MemoryStore) CreateOrder(ctx context.Context, o models.Order) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	for _, existing := range s.orders {
		if existing.ID == o.ID {
			return models.Order{}, fmt.Errorf("order %s already exists", o.ID)
		}
	}
	o.CreatedAt = s.now()
	o.Items = append([]models.OrderItem(nil), o.Items...)
	s.orders = append(s.orders, o)
	return o, nil
}

func (s *MemoryStore) DebitWallet(ctx context.Context, d WalletDebit) error {
	return s.moveBalance(d, -d.AmountCents)
}

func (s *MemoryStore) RefundWallet(ctx context.Context, d WalletDebit) error {
	return s.moveBalance(d, d.AmountCents)
}

func (s *MemoryStore) moveBalance(d WalletDebit, delta money.Cents) error {
	if d.AmountCents <= 0 {
		return ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.ledger[d.IdempotencyKey]; seen {
		return nil
	}
	p, ok := s.profiles[d.UserID]
	if !ok {
		return fmt.Errorf("profile %s: %w", d.UserID, ErrNotFound)
	}
	if p.WalletBalanceCents+delta < 0 {
		return ErrInsufficientFunds
	}
	p.WalletBalanceCents += delta
	s.profiles[d.UserID] = p
	s.ledger[d.IdempotencyKey] = d
	return nil
}

func (s *MemoryStore) categoryName(id string) string {
	for _, c := range s.categories {
		if c.ID == id {
			return c.Name
		}
	}
	return ""
}

// outOfStock lists the stores in all that are not in available.
func outOfStock(available, all []string) []string {
	in := make(map[string]bool, len(available))
	for _, id := range available {
		in[id] = true
	}
	out := []string{}
	for _, id := range all {
		if !in[id] {
			out = append(out, id)
		}
	}
	return out
}

func cloneProduct(p models.Product) models.Product {
	p.Images = append([]string(nil), p.Images...)
	p.OutOfStockStores = append([]string(nil), p.OutOfStockStores...)
	if p.SalePriceWhole != nil {
		v := *p.SalePriceWhole
		p.SalePriceWhole = &v
	}
	if p.SalePriceSlice != nil {
		v := *p.SalePriceSlice
		p.SalePriceSlice = &v
	}
	return p
}
