package cart

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"voalzira/internal/models"
)

const dateLayout = "2006-01-02"

var (
	ErrCouponCodeRequired = errors.New("coupon code is required")
	ErrCouponExists       = errors.New("coupon code already exists")
	ErrCouponNotFound     = errors.New("coupon not found")
	ErrPercentageRange    = errors.New("percentage must be 0-100")
	ErrFixedNegative      = errors.New("fixed discount cannot be negative")
	ErrInvalidCouponType  = errors.New("invalid coupon type")
	ErrInvalidExpiry      = errors.New("expiry date must be YYYY-MM-DD")
)

// CouponBook is the shop's set of coupons. Codes are unique ignoring case.
// It is safe for concurrent use; the admin edits it while sessions read it.
type CouponBook struct {
	mu      sync.RWMutex
	coupons []models.Coupon
}

// NewCouponBook validates and loads the initial coupon set.
func NewCouponBook(initial []models.Coupon) (*CouponBook, error) {
	b := &CouponBook{}
	for _, c := range initial {
		if err := b.Add(c); err != nil {
			return nil, fmt.Errorf("coupon %q: %w", c.Code, err)
		}
	}
	return b, nil
}

// Lookup finds a coupon by code, ignoring case.
func (b *CouponBook) Lookup(code string) (models.Coupon, bool) {
	code = strings.TrimSpace(code)
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, c := range b.coupons {
		if strings.EqualFold(c.Code, code) {
			return c, true
		}
	}
	return models.Coupon{}, false
}

// List returns the coupons ordered by code.
func (b *CouponBook) List() []models.Coupon {
	b.mu.RLock()
	out := make([]models.Coupon, len(b.coupons))
	copy(out, b.coupons)
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Add inserts a new coupon. The ID defaults to the upper-cased code.
func (b *CouponBook) Add(c models.Coupon) error {
	c.Code = strings.TrimSpace(c.Code)
	if err := validateCoupon(c); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = strings.ToUpper(c.Code)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.coupons {
		if strings.EqualFold(existing.Code, c.Code) || existing.ID == c.ID {
			return ErrCouponExists
		}
	}
	b.coupons = append(b.coupons, c)
	return nil
}

// Update replaces the coupon with the same ID.
func (b *CouponBook) Update(c models.Coupon) error {
	c.Code = strings.TrimSpace(c.Code)
	if err := validateCoupon(c); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := -1
	for i, existing := range b.coupons {
		if existing.ID == c.ID {
			idx = i
			continue
		}
		if strings.EqualFold(existing.Code, c.Code) {
			return ErrCouponExists
		}
	}
	if idx == -1 {
		return ErrCouponNotFound
	}
	b.coupons[idx] = c
	return nil
}

// Delete removes the coupon with the given ID.
func (b *CouponBook) Delete(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, c := range b.coupons {
		if c.ID == id {
			b.coupons = append(b.coupons[:i], b.coupons[i+1:]...)
			return nil
		}
	}
	return ErrCouponNotFound
}

// Expired reports whether c is past its expiry date at now. A coupon is
// valid through the whole of its expiry day.
func Expired(c models.Coupon, now time.Time) bool {
	if c.ExpiryDate == "" {
		return false
	}
	return now.Format(dateLayout) > c.ExpiryDate
}

func validateCoupon(c models.Coupon) error {
	if c.Code == "" {
		return ErrCouponCodeRequired
	}
	switch c.Kind {
	case models.Percentage:
		if c.Discount < 0 || c.Discount > 100 {
			return ErrPercentageRange
		}
	case models.Fixed:
		if c.Discount < 0 {
			return ErrFixedNegative
		}
	default:
		return ErrInvalidCouponType
	}
	if c.ExpiryDate != "" {
		if _, err := time.Parse(dateLayout, c.ExpiryDate); err != nil {
			return ErrInvalidExpiry
		}
	}
	return nil
}
