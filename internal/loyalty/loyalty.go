// Package loyalty accrues purchase points into stamps. Every 100 points earn
// a stamp; a full card of 10 stamps redeems a reward.
package loyalty

import (
	"errors"

	"github.com/shopspring/decimal"

	"voalzira/internal/money"
)

const (
	PointsPerStamp = 100
	MaxStamps      = 10
)

// ErrNotEnoughStamps is returned when redeeming a card that is not full.
var ErrNotEnoughStamps = errors.New("card needs 10 stamps to redeem")

// Card is not safe for concurrent use; the owning session serialises access.
type Card struct {
	points int64
	stamps int
}

// NewCard returns an empty card.
func NewCard() *Card {
	return &Card{}
}

// Points are the points accumulated towards the next stamp.
func (c *Card) Points() int64 { return c.points }

// Stamps held, at most MaxStamps.
func (c *Card) Stamps() int { return c.stamps }

// AddPoints adds amount points. When the running total reaches 100 a single
// stamp is awarded and 100 points are taken off, however many boundaries
// the call crossed. It reports whether the stamp count went up.
func (c *Card) AddPoints(amount int64) bool {
	if amount <= 0 {
		return false
	}
	c.points += amount
	if c.points < PointsPerStamp {
		return false
	}
	c.points -= PointsPerStamp
	if c.stamps >= MaxStamps {
		return false
	}
	c.stamps++
	return true
}

// Redeem exchanges a full card for a reward and resets the stamps.
func (c *Card) Redeem() error {
	if c.stamps < MaxStamps {
		return ErrNotEnoughStamps
	}
	c.stamps = 0
	return nil
}

// PointsFor is how many points an order total earns at ratio points per
// currency unit, rounded down.
func PointsFor(total money.Cents, ratio float64) int64 {
	if total <= 0 || ratio <= 0 {
		return 0
	}
	return total.Decimal().Mul(decimal.NewFromFloat(ratio)).Floor().IntPart()
}
