// Package storefront holds the shop state shared by every customer session:
// the catalog cache loaded from the backend, the coupon book, the wallet
// tier table and the order webhook. Sessions and admin operations are
// methods on top of it.
package storefront

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"voalzira/internal/backend"
	"voalzira/internal/cart"
	"voalzira/internal/config"
	"voalzira/internal/media"
	"voalzira/internal/models"
	"voalzira/internal/wallet"
	"voalzira/internal/webhook"
)

var (
	ErrNotReady          = errors.New("storefront data is not loaded")
	ErrUnknownProduct    = errors.New("unknown product")
	ErrUnknownStore      = errors.New("unknown store")
	ErrOutOfStock        = errors.New("product is out of stock at the selected store")
	ErrInvalidProduct    = errors.New("invalid product")
	ErrInvalidProfile    = errors.New("invalid profile")
	ErrInvalidWebhookURL = errors.New("webhook url must be an absolute http or https url")
)

// Catalog is the cached product listing served to customers.
type Catalog struct {
	Products   []models.Product  `json:"products"`
	Categories []models.Category `json:"categories"`
	Stores     []models.Store    `json:"stores"`
}

// AdminConfig is the runtime-editable integration settings.
type AdminConfig struct {
	WebhookURL string `json:"webhookUrl"`
}

// Storefront is safe for concurrent use.
type Storefront struct {
	backend  backend.Backend
	uploader media.Uploader
	notifier *webhook.Notifier
	coupons  *cart.CouponBook
	tiers    *wallet.Tiers
	logger   *zap.Logger
	now      func() time.Time

	shopName       string
	profileID      string
	preferredStore string
	reloadEvery    time.Duration

	// adminMu serialises product writes so read-modify-write edits such
	// as ToggleStock do not lose updates.
	adminMu sync.Mutex

	mu         sync.RWMutex
	ready      bool
	reloading  bool
	lastLoad   time.Time
	products   []models.Product
	categories []models.Category
	stores     []models.Store
	profile    models.UserProfile
}

// Option configures a Storefront.
type Option func(*Storefront)

// WithClock overrides the clock used for coupon expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Storefront) { s.now = now }
}

// WithReloadInterval sets how long a storefront that failed to load waits
// before a request triggers another attempt.
func WithReloadInterval(d time.Duration) Option {
	return func(s *Storefront) { s.reloadEvery = d }
}

const (
	defaultReloadInterval = 30 * time.Second
	reloadTimeout         = 15 * time.Second
)

// New builds a storefront from configuration. Load must succeed before it
// serves anything.
func New(cfg *config.Config, b backend.Backend, up media.Uploader, n *webhook.Notifier, logger *zap.Logger, opts ...Option) (*Storefront, error) {
	coupons, err := cart.NewCouponBook(cfg.Coupons)
	if err != nil {
		return nil, fmt.Errorf("coupons: %w", err)
	}
	tiers, err := wallet.NewTiers(cfg.WalletTiers)
	if err != nil {
		return nil, fmt.Errorf("wallet tiers: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if up == nil {
		up = media.PlaceholderUploader{}
	}
	if n == nil {
		n = webhook.New(cfg.Webhook.URL, cfg.Webhook.Timeout, logger)
	}
	s := &Storefront{
		backend:        b,
		uploader:       up,
		notifier:       n,
		coupons:        coupons,
		tiers:          tiers,
		logger:         logger,
		now:            time.Now,
		shopName:       cfg.ShopName,
		profileID:      cfg.ProfileID,
		preferredStore: cfg.PreferredStore,
		reloadEvery:    defaultReloadInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Load fetches products, categories, stores and the customer profile
// concurrently. Either all of them land in the cache or the storefront is
// marked not ready.
func (s *Storefront) Load(ctx context.Context) error {
	var (
		products   []models.Product
		categories []models.Category
		stores     []models.Store
		profile    models.UserProfile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		products, err = s.backend.ListProducts(gctx)
		return wrap("products", err)
	})
	g.Go(func() (err error) {
		categories, err = s.backend.ListCategories(gctx)
		return wrap("categories", err)
	})
	g.Go(func() (err error) {
		stores, err = s.backend.ListStores(gctx)
		return wrap("stores", err)
	})
	g.Go(func() (err error) {
		profile, err = s.backend.GetProfile(gctx, s.profileID)
		return wrap("profile", err)
	})
	err := g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLoad = s.now()
	s.reloading = false
	if err != nil {
		s.ready = false
		s.logger.Error("error fetching storefront data", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrNotReady, err)
	}
	s.products = products
	s.categories = categories
	s.stores = stores
	s.profile = profile
	s.ready = true
	s.logger.Info("storefront loaded",
		zap.Int("products", len(products)), zap.Int("categories", len(categories)), zap.Int("stores", len(stores)))
	return nil
}

func wrap(what string, err error) error {
	if err != nil {
		return fmt.Errorf("load %s: %w", what, err)
	}
	return nil
}

// Ready reports whether the last Load succeeded.
func (s *Storefront) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// checkReady fails with ErrNotReady until a Load succeeds. While not ready,
// at most one caller per reload interval retries the load.
func (s *Storefront) checkReady() error {
	if s.Ready() {
		return nil
	}
	if !s.claimReload() {
		return ErrNotReady
	}
	s.logger.Info("retrying storefront load")
	ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
	defer cancel()
	return s.Load(ctx)
}

func (s *Storefront) claimReload() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return false
	}
	if s.reloading || s.now().Sub(s.lastLoad) < s.reloadEvery {
		return false
	}
	s.reloading = true
	return true
}

// ShopName is the display name used in outgoing messages.
func (s *Storefront) ShopName() string { return s.shopName }

// Product implements cart.Catalog over the cache.
func (s *Storefront) Product(id string) (models.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.productIndex(id)
	if i < 0 {
		return models.Product{}, false
	}
	return s.products[i], true
}

func (s *Storefront) productIndex(id string) int {
	for i := range s.products {
		if s.products[i].ID == id {
			return i
		}
	}
	return -1
}

// Catalog returns a copy of the cached listing.
func (s *Storefront) Catalog() (Catalog, error) {
	if err := s.checkReady(); err != nil {
		return Catalog{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Catalog{
		Products:   append([]models.Product(nil), s.products...),
		Categories: append([]models.Category(nil), s.categories...),
		Stores:     append([]models.Store(nil), s.stores...),
	}, nil
}

// Store looks up a cached store by id.
func (s *Storefront) Store(id string) (models.Store, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.stores {
		if st.ID == id {
			return st, true
		}
	}
	return models.Store{}, false
}

// defaultStore is the first store whose name or slug contains the
// preferred-store hint, falling back to the first store.
func (s *Storefront) defaultStore() models.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.stores) == 0 {
		return models.Store{}
	}
	hint := strings.ToLower(s.preferredStore)
	if hint != "" {
		for _, st := range s.stores {
			if strings.Contains(strings.ToLower(st.Name), hint) || strings.Contains(strings.ToLower(st.Slug), hint) {
				return st
			}
		}
	}
	return s.stores[0]
}

// Profile returns the cached customer profile.
func (s *Storefront) Profile() models.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

func (s *Storefront) storeIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, len(s.stores))
	for i, st := range s.stores {
		ids[i] = st.ID
	}
	return ids
}

func (s *Storefront) categoryName(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.categories {
		if c.ID == id {
			return c.Name
		}
	}
	return ""
}

func validateProduct(p models.Product) error {
	var errs []error
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if p.PriceWhole < 0 || p.PriceSlice < 0 {
		errs = append(errs, errors.New("prices must not be negative"))
	}
	if (p.SalePriceWhole != nil && *p.SalePriceWhole < 0) || (p.SalePriceSlice != nil && *p.SalePriceSlice < 0) {
		errs = append(errs, errors.New("sale prices must not be negative"))
	}
	if !p.SalePricesValid() {
		errs = append(errs, errors.New("sale price must not exceed the base price"))
	}
	if p.StockCount < 0 {
		errs = append(errs, errors.New("stock count must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidProduct, errors.Join(errs...))
	}
	return nil
}

// CreateProduct persists p and appends it to the cache. On failure the
// cache is left as it was.
func (s *Storefront) CreateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	if err := s.checkReady(); err != nil {
		return models.Product{}, err
	}
	if err := validateProduct(p); err != nil {
		return models.Product{}, err
	}
	if p.Image == "" && len(p.Images) > 0 {
		p.Image = p.Images[0]
	}
	s.adminMu.Lock()
	defer s.adminMu.Unlock()
	created, err := s.backend.CreateProduct(ctx, p, s.storeIDs())
	if err != nil {
		s.logger.Error("failed to create product", zap.String("name", p.Name), zap.Error(err))
		return models.Product{}, err
	}
	if created.Category == "" {
		created.Category = s.categoryName(created.CategoryID)
	}
	s.mu.Lock()
	s.products = append(s.products, created)
	s.mu.Unlock()
	s.logger.Info("product created", zap.String("product_id", created.ID))
	return created, nil
}

// UpdateProduct persists p and replaces the cached copy. On failure the
// cache is left as it was.
func (s *Storefront) UpdateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	if err := s.checkReady(); err != nil {
		return models.Product{}, err
	}
	s.adminMu.Lock()
	defer s.adminMu.Unlock()
	return s.updateProduct(ctx, p)
}

func (s *Storefront) updateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	if err := validateProduct(p); err != nil {
		return models.Product{}, err
	}
	if p.Image == "" && len(p.Images) > 0 {
		p.Image = p.Images[0]
	}
	if err := s.backend.UpdateProduct(ctx, p, s.storeIDs()); err != nil {
		s.logger.Error("failed to update product", zap.String("product_id", p.ID), zap.Error(err))
		return models.Product{}, err
	}
	p.Category = s.categoryName(p.CategoryID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.productIndex(p.ID); i >= 0 {
		p.CreatedAt = s.products[i].CreatedAt
		s.products[i] = p
	} else {
		s.products = append(s.products, p)
	}
	return p, nil
}

// ToggleStock flips whether productID is available at storeID and persists
// the new availability.
func (s *Storefront) ToggleStock(ctx context.Context, productID, storeID string) (models.Product, error) {
	if err := s.checkReady(); err != nil {
		return models.Product{}, err
	}
	if _, ok := s.Store(storeID); !ok {
		return models.Product{}, ErrUnknownStore
	}
	s.adminMu.Lock()
	defer s.adminMu.Unlock()
	p, ok := s.Product(productID)
	if !ok {
		return models.Product{}, ErrUnknownProduct
	}
	if p.OutOfStockAt(storeID) {
		out := make([]string, 0, len(p.OutOfStockStores))
		for _, id := range p.OutOfStockStores {
			if id != storeID {
				out = append(out, id)
			}
		}
		p.OutOfStockStores = out
	} else {
		p.OutOfStockStores = append(append([]string(nil), p.OutOfStockStores...), storeID)
	}
	return s.updateProduct(ctx, p)
}

// Coupons lists the coupon book.
func (s *Storefront) Coupons() []models.Coupon { return s.coupons.List() }

func (s *Storefront) AddCoupon(c models.Coupon) (models.Coupon, error) {
	if err := s.coupons.Add(c); err != nil {
		return models.Coupon{}, err
	}
	got, _ := s.coupons.Lookup(c.Code)
	return got, nil
}

func (s *Storefront) UpdateCoupon(c models.Coupon) error { return s.coupons.Update(c) }

func (s *Storefront) DeleteCoupon(id string) error { return s.coupons.Delete(id) }

// WalletTiers lists the top-up bonus table.
func (s *Storefront) WalletTiers() []models.WalletTier { return s.tiers.List() }

// SetWalletTier upserts a tier. Top-ups in every session use it at once.
func (s *Storefront) SetWalletTier(t models.WalletTier) error {
	if err := s.tiers.Set(t); err != nil {
		return err
	}
	s.logger.Info("wallet tier updated", zap.Int64("amount_cents", int64(t.Amount)), zap.Int64("bonus_pct", t.BonusPercentage))
	return nil
}

// AdminConfig returns the integration settings.
func (s *Storefront) AdminConfig() AdminConfig {
	return AdminConfig{WebhookURL: s.notifier.URL()}
}

// SetWebhookURL changes where new orders are posted. Empty disables it.
func (s *Storefront) SetWebhookURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return ErrInvalidWebhookURL
		}
	}
	s.notifier.SetURL(raw)
	return nil
}

// UpdateProfile saves the customer's contact details and loyalty ratio.
func (s *Storefront) UpdateProfile(ctx context.Context, p models.UserProfile) (models.UserProfile, error) {
	if err := s.checkReady(); err != nil {
		return models.UserProfile{}, err
	}
	if p.LoyaltyRatio < 0 {
		return models.UserProfile{}, fmt.Errorf("%w: loyalty ratio must not be negative", ErrInvalidProfile)
	}
	s.mu.RLock()
	cur := s.profile
	s.mu.RUnlock()
	cur.Name = p.Name
	cur.Email = p.Email
	cur.Address = p.Address
	cur.WhatsApp = p.WhatsApp
	if p.LoyaltyRatio > 0 {
		cur.LoyaltyRatio = p.LoyaltyRatio
	}
	if err := s.backend.UpdateProfile(ctx, cur); err != nil {
		s.logger.Error("failed to update profile", zap.String("profile_id", cur.ID), zap.Error(err))
		return models.UserProfile{}, err
	}
	s.mu.Lock()
	s.profile = cur
	s.mu.Unlock()
	return cur, nil
}

// ListOrders returns every order, newest first.
func (s *Storefront) ListOrders(ctx context.Context) ([]models.Order, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	return s.backend.ListOrders(ctx)
}

// UploadImage stores an image for use in a product.
func (s *Storefront) UploadImage(ctx context.Context, filename string, r io.Reader) (string, error) {
	return s.uploader.Upload(ctx, filename, r)
}
