// Package cart aggregates the lines a customer intends to buy and prices
// them, including coupon discounts.
package cart

import (
	"errors"
	"time"

	"voalzira/internal/models"
	"voalzira/internal/money"
)

var (
	ErrProductRequired = errors.New("product id is required")
	ErrInvalidSaleType = errors.New("sale type must be slice or whole")
	ErrUnknownCoupon   = errors.New("unknown coupon")
	ErrCouponExpired   = errors.New("coupon expired")
)

// Catalog resolves products for pricing.
type Catalog interface {
	Product(id string) (models.Product, bool)
}

// Line is one (product, sale type) entry of the cart.
type Line struct {
	ProductID string          `json:"cakeId"`
	Type      models.SaleType `json:"type"`
	Quantity  int             `json:"quantity"`
}

// Summary is a priced snapshot of the cart.
type Summary struct {
	Lines    []Line         `json:"items"`
	Count    int            `json:"count"`
	Subtotal money.Cents    `json:"subtotalCents"`
	Discount money.Cents    `json:"discountCents"`
	Total    money.Cents    `json:"totalCents"`
	Coupon   *models.Coupon `json:"appliedCoupon,omitempty"`
}

// Cart is not safe for concurrent use; the owning session serialises access.
type Cart struct {
	catalog Catalog
	coupons *CouponBook
	now     func() time.Time

	lines  []Line
	coupon *models.Coupon
}

// Option configures a Cart.
type Option func(*Cart)

// WithClock sets the clock used for coupon expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Cart) { c.now = now }
}

// New returns an empty cart priced against catalog.
func New(catalog Catalog, coupons *CouponBook, opts ...Option) *Cart {
	c := &Cart{catalog: catalog, coupons: coupons, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Add increments the matching line or appends a new one with quantity 1.
func (c *Cart) Add(productID string, t models.SaleType) error {
	if productID == "" {
		return ErrProductRequired
	}
	if !t.Valid() {
		return ErrInvalidSaleType
	}
	for i := range c.lines {
		if c.lines[i].ProductID == productID && c.lines[i].Type == t {
			c.lines[i].Quantity++
			return nil
		}
	}
	c.lines = append(c.lines, Line{ProductID: productID, Type: t, Quantity: 1})
	return nil
}

// Remove decrements the matching line, dropping it when it reaches zero.
// Removing an absent line is a no-op.
func (c *Cart) Remove(productID string, t models.SaleType) {
	for i := range c.lines {
		if c.lines[i].ProductID != productID || c.lines[i].Type != t {
			continue
		}
		if c.lines[i].Quantity > 1 {
			c.lines[i].Quantity--
			return
		}
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
		return
	}
}

// Lines returns a copy of the cart lines in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Count is the total number of units in the cart.
func (c *Cart) Count() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool {
	return len(c.lines) == 0
}

// Subtotal sums effective price times quantity. Lines whose product is no
// longer in the catalog contribute nothing.
func (c *Cart) Subtotal() money.Cents {
	var sum money.Cents
	for _, l := range c.lines {
		p, ok := c.catalog.Product(l.ProductID)
		if !ok {
			continue
		}
		sum += p.Price(l.Type) * money.Cents(l.Quantity)
	}
	return sum
}

// ApplyCoupon looks code up ignoring case. On success the coupon is kept for
// discount computation; on any failure the applied coupon is cleared.
func (c *Cart) ApplyCoupon(code string) (bool, error) {
	found, ok := c.coupons.Lookup(code)
	if !ok {
		c.coupon = nil
		return false, ErrUnknownCoupon
	}
	if Expired(found, c.now()) {
		c.coupon = nil
		return false, ErrCouponExpired
	}
	c.coupon = &found
	return true, nil
}

// AppliedCoupon returns the coupon in effect, if any.
func (c *Cart) AppliedCoupon() (models.Coupon, bool) {
	if c.coupon == nil {
		return models.Coupon{}, false
	}
	return *c.coupon, true
}

// Discount never exceeds the subtotal.
func (c *Cart) Discount() money.Cents {
	return c.discountOn(c.Subtotal())
}

func (c *Cart) discountOn(subtotal money.Cents) money.Cents {
	if c.coupon == nil {
		return 0
	}
	switch c.coupon.Kind {
	case models.Percentage:
		return money.Min(subtotal.Percent(c.coupon.Discount), subtotal)
	case models.Fixed:
		return money.Min(money.Cents(c.coupon.Discount), subtotal)
	}
	return 0
}

// Total is Subtotal minus Discount.
func (c *Cart) Total() money.Cents {
	sub := c.Subtotal()
	return sub - c.discountOn(sub)
}

// Clear empties the lines and drops the coupon.
func (c *Cart) Clear() {
	c.lines = nil
	c.coupon = nil
}

// Summary prices the cart in one pass.
func (c *Cart) Summary() Summary {
	sub := c.Subtotal()
	disc := c.discountOn(sub)
	s := Summary{
		Lines:    c.Lines(),
		Count:    c.Count(),
		Subtotal: sub,
		Discount: disc,
		Total:    sub - disc,
	}
	if c.coupon != nil {
		cp := *c.coupon
		s.Coupon = &cp
	}
	return s
}
