package storefront

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voalzira/internal/cart"
	"voalzira/internal/loyalty"
	"voalzira/internal/models"
	"voalzira/internal/money"
	"voalzira/internal/wallet"
)

// View is the screen the customer's client should show.
type View string

const (
	ViewCatalog  View = "catalog"
	ViewWallet   View = "wallet"
	ViewLoyalty  View = "loyalty"
	ViewSuccess  View = "success"
	ViewSettings View = "settings"
	ViewAdmin    View = "admin"
)

var ErrUnknownView = errors.New("unknown view")

func (v View) valid() bool {
	switch v {
	case ViewCatalog, ViewWallet, ViewLoyalty, ViewSuccess, ViewSettings, ViewAdmin:
		return true
	}
	return false
}

// Session is one customer's cart, wallet and loyalty card. All methods
// serialise on the session's mutex.
type Session struct {
	ID string

	sf     *Storefront
	logger *zap.Logger

	mu        sync.Mutex
	profileID string
	cart      *cart.Cart
	wallet    *wallet.Wallet
	card      *loyalty.Card
	store     models.Store
	view      View
}

// Snapshot is what a client needs to render the session.
type Snapshot struct {
	ID                 string             `json:"id"`
	View               View               `json:"view"`
	Store              models.Store       `json:"store"`
	Cart               cart.Summary       `json:"cart"`
	WalletBalanceCents money.Cents        `json:"walletBalanceCents"`
	CanPayWithWallet   bool               `json:"canPayWithWallet"`
	Stamps             int                `json:"stamps"`
	Points             int64              `json:"points"`
	Profile            models.UserProfile `json:"profile"`
}

// NewSession starts a session for the configured customer. The wallet is
// seeded from the balance the backend reports now.
func (s *Storefront) NewSession(ctx context.Context) (*Session, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	profile, err := s.backend.GetProfile(ctx, s.profileID)
	if err != nil {
		s.logger.Error("failed to load profile", zap.String("profile_id", s.profileID), zap.Error(err))
		return nil, fmt.Errorf("load profile: %w", err)
	}
	s.mu.Lock()
	s.profile = profile
	s.mu.Unlock()

	id := uuid.NewString()
	return &Session{
		ID:        id,
		sf:        s,
		logger:    s.logger.With(zap.String("session_id", id)),
		profileID: profile.ID,
		cart:      cart.New(s, s.coupons, cart.WithClock(s.now)),
		wallet:    wallet.New(profile.WalletBalanceCents, s.tiers),
		card:      loyalty.NewCard(),
		store:     s.defaultStore(),
		view:      ViewCatalog,
	}, nil
}

func (ss *Session) snapshot() Snapshot {
	total := ss.cart.Total()
	profile := ss.sf.Profile()
	profile.WalletBalanceCents = ss.wallet.Balance()
	return Snapshot{
		ID:                 ss.ID,
		View:               ss.view,
		Store:              ss.store,
		Cart:               ss.cart.Summary(),
		WalletBalanceCents: ss.wallet.Balance(),
		CanPayWithWallet:   !ss.cart.Empty() && ss.wallet.CanPay(total),
		Stamps:             ss.card.Stamps(),
		Points:             ss.card.Points(),
		Profile:            profile,
	}
}

// Snapshot returns the session's current state.
func (ss *Session) Snapshot() Snapshot {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.snapshot()
}

// AddToCart adds one unit of productID. Products unknown to the catalog or
// out of stock at the selected store are rejected.
func (ss *Session) AddToCart(productID string, t models.SaleType) (Snapshot, error) {
	if err := ss.sf.checkReady(); err != nil {
		return Snapshot{}, err
	}
	ss.mu.Lock()
	defer ss.mu.Unlock()
	p, ok := ss.sf.Product(productID)
	if !ok {
		return Snapshot{}, ErrUnknownProduct
	}
	if p.OutOfStockAt(ss.store.ID) {
		return Snapshot{}, ErrOutOfStock
	}
	if err := ss.cart.Add(productID, t); err != nil {
		return Snapshot{}, err
	}
	return ss.snapshot(), nil
}

// RemoveFromCart takes one unit of productID off the cart.
func (ss *Session) RemoveFromCart(productID string, t models.SaleType) Snapshot {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.cart.Remove(productID, t)
	return ss.snapshot()
}

// ApplyCoupon applies code. A failed code also clears any earlier coupon,
// so the returned snapshot is meaningful on error as well.
func (ss *Session) ApplyCoupon(code string) (Snapshot, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	_, err := ss.cart.ApplyCoupon(code)
	return ss.snapshot(), err
}

// ClearCart empties the cart and drops the coupon.
func (ss *Session) ClearCart() Snapshot {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.cart.Clear()
	return ss.snapshot()
}

// TopUp credits amount plus the tier bonus to the session wallet.
func (ss *Session) TopUp(amount money.Cents) (money.Cents, Snapshot, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	credited, err := ss.wallet.TopUp(amount)
	if err != nil {
		return 0, ss.snapshot(), err
	}
	ss.logger.Info("wallet topped up", zap.Int64("amount_cents", int64(amount)), zap.Int64("credited_cents", int64(credited)))
	return credited, ss.snapshot(), nil
}

// RedeemReward spends a full loyalty card.
func (ss *Session) RedeemReward() (Snapshot, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if err := ss.card.Redeem(); err != nil {
		return ss.snapshot(), err
	}
	ss.logger.Info("loyalty reward redeemed")
	return ss.snapshot(), nil
}

// SelectStore changes the pickup store.
func (ss *Session) SelectStore(storeID string) (Snapshot, error) {
	st, ok := ss.sf.Store(storeID)
	if !ok {
		return Snapshot{}, ErrUnknownStore
	}
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.store = st
	return ss.snapshot(), nil
}

// Navigate records the screen the client moved to.
func (ss *Session) Navigate(v View) (Snapshot, error) {
	if !v.valid() {
		return Snapshot{}, ErrUnknownView
	}
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.view = v
	return ss.snapshot(), nil
}

// SessionManager keeps the live sessions by id. Sessions idle for longer
// than the idle timeout are dropped, and the least recently used one is
// evicted when the manager is full.
type SessionManager struct {
	sf          *Storefront
	now         func() time.Time
	idleTimeout time.Duration
	maxSessions int

	mu       sync.Mutex
	sessions map[string]*managed
}

type managed struct {
	ss       *Session
	lastSeen time.Time
}

const (
	DefaultIdleTimeout = 30 * time.Minute
	DefaultMaxSessions = 10000
)

type ManagerOption func(*SessionManager)

// WithIdleTimeout sets how long an unused session is kept.
func WithIdleTimeout(d time.Duration) ManagerOption {
	return func(m *SessionManager) {
		if d > 0 {
			m.idleTimeout = d
		}
	}
}

// WithMaxSessions caps the number of live sessions.
func WithMaxSessions(n int) ManagerOption {
	return func(m *SessionManager) {
		if n > 0 {
			m.maxSessions = n
		}
	}
}

// WithManagerClock replaces time.Now for idle bookkeeping.
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *SessionManager) { m.now = now }
}

func NewSessionManager(sf *Storefront, opts ...ManagerOption) *SessionManager {
	m := &SessionManager{
		sf:          sf,
		now:         time.Now,
		idleTimeout: DefaultIdleTimeout,
		maxSessions: DefaultMaxSessions,
		sessions:    make(map[string]*managed),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the session with id, if any, and marks it as used.
func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	now := m.now()
	if now.Sub(e.lastSeen) > m.idleTimeout {
		delete(m.sessions, id)
		return nil, false
	}
	e.lastSeen = now
	return e.ss, true
}

// Create starts and registers a new session.
func (m *SessionManager) Create(ctx context.Context) (*Session, error) {
	ss, err := m.sf.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.sweep(now)
	for len(m.sessions) >= m.maxSessions {
		m.evictOldest()
	}
	m.sessions[ss.ID] = &managed{ss: ss, lastSeen: now}
	return ss, nil
}

// sweep drops idle sessions. Callers hold m.mu.
func (m *SessionManager) sweep(now time.Time) {
	for id, e := range m.sessions {
		if now.Sub(e.lastSeen) > m.idleTimeout {
			delete(m.sessions, id)
		}
	}
}

// evictOldest drops the least recently used session. Callers hold m.mu.
func (m *SessionManager) evictOldest() {
	var (
		oldest string
		seen   time.Time
	)
	for id, e := range m.sessions {
		if oldest == "" || e.lastSeen.Before(seen) {
			oldest, seen = id, e.lastSeen
		}
	}
	delete(m.sessions, oldest)
}

// GetOrCreate returns the session with id or starts a new one when id is
// empty, unknown or expired.
func (m *SessionManager) GetOrCreate(ctx context.Context, id string) (*Session, error) {
	if id != "" {
		if ss, ok := m.Get(id); ok {
			return ss, nil
		}
	}
	return m.Create(ctx)
}

// Len is the number of registered sessions, idle ones included until the
// next sweep.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
