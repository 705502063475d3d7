package wallet

import (
	"errors"
	"sort"
	"sync"

	"voalzira/internal/models"
	"voalzira/internal/money"
)

var (
	ErrTierAmount     = errors.New("tier amount must be positive")
	ErrTierPercentage = errors.New("bonus percentage must be 0-100")
)

// DefaultTiers is the top-up bonus table used when configuration has none.
func DefaultTiers() []models.WalletTier {
	return []models.WalletTier{
		{Amount: money.FromReais(50), BonusPercentage: 5},
		{Amount: money.FromReais(100), BonusPercentage: 10},
		{Amount: money.FromReais(200), BonusPercentage: 15},
	}
}

// Tiers is the single bonus table shared by top-up pricing and the admin
// API. It is safe for concurrent use.
type Tiers struct {
	mu    sync.RWMutex
	tiers []models.WalletTier // ascending by Amount
}

// NewTiers validates initial and returns the table.
func NewTiers(initial []models.WalletTier) (*Tiers, error) {
	t := &Tiers{}
	for _, tier := range initial {
		if err := t.Set(tier); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Bonus returns the bonus credited for a top-up of amount: the percentage
// of the highest tier whose threshold is at or below amount.
func (t *Tiers) Bonus(amount money.Cents) money.Cents {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := len(t.tiers) - 1; i >= 0; i-- {
		if amount >= t.tiers[i].Amount {
			return amount.Percent(t.tiers[i].BonusPercentage)
		}
	}
	return 0
}

// Set inserts tier or replaces the bonus of the tier with the same amount.
func (t *Tiers) Set(tier models.WalletTier) error {
	if tier.Amount <= 0 {
		return ErrTierAmount
	}
	if tier.BonusPercentage < 0 || tier.BonusPercentage > 100 {
		return ErrTierPercentage
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.tiers {
		if t.tiers[i].Amount == tier.Amount {
			t.tiers[i].BonusPercentage = tier.BonusPercentage
			return nil
		}
	}
	t.tiers = append(t.tiers, tier)
	sort.Slice(t.tiers, func(i, j int) bool { return t.tiers[i].Amount < t.tiers[j].Amount })
	return nil
}

// List returns the tiers in ascending order of amount.
func (t *Tiers) List() []models.WalletTier {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.WalletTier, len(t.tiers))
	copy(out, t.tiers)
	return out
}
