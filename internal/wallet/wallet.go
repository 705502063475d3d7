// Package wallet tracks a customer's prepaid balance in cents.
package wallet

import (
	"errors"
	"fmt"
	"math"

	"voalzira/internal/money"
)

// ErrInvalidTopUp is returned for top-ups that are not positive, exceed
// MaxTopUp or would overflow the balance.
var ErrInvalidTopUp = errors.New("invalid top-up amount")

// MaxTopUp is the largest single top-up accepted.
const MaxTopUp = money.Cents(100_000_00)

// Wallet is not safe for concurrent use; the owning session serialises access.
type Wallet struct {
	balance money.Cents
	tiers   *Tiers
}

// New returns a wallet holding balance whose top-ups earn bonuses from tiers.
func New(balance money.Cents, tiers *Tiers) *Wallet {
	return &Wallet{balance: balance, tiers: tiers}
}

// Balance is the current balance.
func (w *Wallet) Balance() money.Cents {
	return w.balance
}

// ComputeBonus is the bonus a top-up of amount would earn.
func (w *Wallet) ComputeBonus(amount money.Cents) money.Cents {
	return w.tiers.Bonus(amount)
}

// TopUp credits amount plus its bonus and returns the total credited.
func (w *Wallet) TopUp(amount money.Cents) (money.Cents, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: must be positive", ErrInvalidTopUp)
	}
	if amount > MaxTopUp {
		return 0, fmt.Errorf("%w: at most %s", ErrInvalidTopUp, MaxTopUp)
	}
	credited := amount + w.ComputeBonus(amount)
	if w.balance > math.MaxInt64-credited {
		return 0, fmt.Errorf("%w: balance limit reached", ErrInvalidTopUp)
	}
	w.balance += credited
	return credited, nil
}

// CanPay reports whether the balance covers amount.
func (w *Wallet) CanPay(amount money.Cents) bool {
	return w.balance >= amount
}

// Pay debits amount when the balance covers it. On false the balance is
// left untouched.
func (w *Wallet) Pay(amount money.Cents) bool {
	if !w.CanPay(amount) {
		return false
	}
	w.balance -= amount
	return true
}

// Credit returns amount to the balance, e.g. to reverse a Pay.
func (w *Wallet) Credit(amount money.Cents) {
	w.balance += amount
}
