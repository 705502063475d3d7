package models

import (
	"time"

	"voalzira/internal/money"
)

// SaleType selects which price point of a product a cart line uses.
type SaleType string

const (
	Slice SaleType = "slice" // unit price
	Whole SaleType = "whole" // bulk price
)

// Valid reports whether t is a known sale type.
func (t SaleType) Valid() bool {
	return t == Slice || t == Whole
}

// Product represents a cake in the shop.
type Product struct {
	ID                  string       `json:"id"`
	Name                string       `json:"name"`
	Description         string       `json:"description"`
	DescriptionMarkdown string       `json:"descriptionMarkdown,omitempty"`
	PriceWhole          money.Cents  `json:"priceWholeCents"`
	PriceSlice          money.Cents  `json:"priceSliceCents"`
	SalePriceWhole      *money.Cents `json:"salePriceWholeCents,omitempty"`
	SalePriceSlice      *money.Cents `json:"salePriceSliceCents,omitempty"`
	StockCount          int          `json:"stockCount"`
	Image               string       `json:"image"`
	Images              []string     `json:"images"`
	CategoryID          string       `json:"categoryId,omitempty"`
	Category            string       `json:"category"`
	OutOfStockStores    []string     `json:"outOfStockStores"`
	CreatedAt           time.Time    `json:"createdAt"`
}

// Price returns the effective unit price for t: the sale price when one is
// set, the base price otherwise.
func (p Product) Price(t SaleType) money.Cents {
	if t == Whole {
		if p.SalePriceWhole != nil {
			return *p.SalePriceWhole
		}
		return p.PriceWhole
	}
	if p.SalePriceSlice != nil {
		return *p.SalePriceSlice
	}
	return p.PriceSlice
}

// SalePricesValid reports whether no sale price exceeds its base price.
func (p Product) SalePricesValid() bool {
	if p.SalePriceWhole != nil && *p.SalePriceWhole > p.PriceWhole {
		return false
	}
	if p.SalePriceSlice != nil && *p.SalePriceSlice > p.PriceSlice {
		return false
	}
	return true
}

// OutOfStockAt reports whether the product is flagged unavailable at storeID.
func (p Product) OutOfStockAt(storeID string) bool {
	for _, id := range p.OutOfStockStores {
		if id == storeID {
			return true
		}
	}
	return false
}

// Category represents a product category.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Store is a physical shop location customers pick up from.
type Store struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Slug    string `json:"slug,omitempty"`
}

// CouponKind is how a coupon's discount is measured.
type CouponKind string

const (
	Percentage CouponKind = "percentage"
	Fixed      CouponKind = "fixed"
)

// Coupon is a discount code. For Percentage coupons Discount is a percent,
// for Fixed coupons it is an amount in cents.
type Coupon struct {
	ID         string     `json:"id" yaml:"id"`
	Code       string     `json:"code" yaml:"code"`
	Discount   int64      `json:"discount" yaml:"discount"`
	Kind       CouponKind `json:"type" yaml:"type"`
	ExpiryDate string     `json:"expiryDate" yaml:"expiry_date"` // YYYY-MM-DD, empty = never
}

// WalletTier maps a top-up threshold to a bonus percentage.
type WalletTier struct {
	Amount          money.Cents `json:"amountCents" yaml:"amount_cents"`
	BonusPercentage int64       `json:"bonusPercentage" yaml:"bonus_percentage"`
}

// UserProfile is the customer the session acts for.
type UserProfile struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name"`
	Email              string      `json:"email"`
	Address            string      `json:"address"`
	WhatsApp           string      `json:"whatsapp"`
	Points             int64       `json:"points"`
	LoyaltyRatio       float64     `json:"loyaltyRatio"`
	WalletBalanceCents money.Cents `json:"walletBalanceCents"`
}

// OrderStatus values. Orders never change status after creation.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

// PaymentMethod is how the customer chose to pay at checkout.
type PaymentMethod string

const (
	PayWallet   PaymentMethod = "wallet"
	PayPix      PaymentMethod = "pix"
	PayWhatsApp PaymentMethod = "whatsapp"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	return m == PayWallet || m == PayPix || m == PayWhatsApp
}

// OrderItem is a cart line frozen at checkout with its unit price.
type OrderItem struct {
	ProductID  string      `json:"cakeId"`
	Type       SaleType    `json:"type"`
	Quantity   int         `json:"quantity"`
	PriceCents money.Cents `json:"priceCents"`
}

// Order is the record persisted once per checkout.
type Order struct {
	ID            string        `json:"id"`
	UserID        string        `json:"userId"`
	CustomerName  string        `json:"customerName,omitempty"`
	StoreID       string        `json:"storeId"`
	TotalCents    money.Cents   `json:"totalCents"`
	Status        OrderStatus   `json:"status"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	Items         []OrderItem   `json:"items"`
	CreatedAt     time.Time     `json:"createdAt"`
}
