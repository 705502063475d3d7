package storefront

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voalzira/internal/backend"
	"voalzira/internal/loyalty"
	"voalzira/internal/models"
	"voalzira/internal/money"
	"voalzira/internal/webhook"
)

var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrInsufficientFunds    = backend.ErrInsufficientFunds
	ErrInvalidPaymentMethod = errors.New("payment method must be wallet, pix or whatsapp")
	ErrNoStore              = errors.New("no store selected")
)

// Confirmation is the result of a checkout.
type Confirmation struct {
	OrderID       string               `json:"orderId,omitempty"`
	Method        models.PaymentMethod `json:"method"`
	Status        models.OrderStatus   `json:"status,omitempty"`
	TotalCents    money.Cents          `json:"totalCents"`
	Store         models.Store         `json:"store"`
	PointsAwarded int64                `json:"pointsAwarded"`
	StampAwarded  bool                 `json:"stampAwarded"`
	RedirectURL   string               `json:"redirectUrl,omitempty"`
	Session       Snapshot             `json:"session"`
}

// Checkout turns the cart into an order paid with method.
//
// A wallet checkout is refused up front when the local balance does not
// cover the total. Otherwise it debits the remote wallet, then the local
// one, then records the order; if recording fails both debits are
// reversed and the cart is kept. Pix orders are recorded as pending.
// WhatsApp checkouts only build a chat link and always empty the cart.
func (ss *Session) Checkout(ctx context.Context, method models.PaymentMethod) (Confirmation, error) {
	if !method.Valid() {
		return Confirmation{}, ErrInvalidPaymentMethod
	}
	if err := ss.sf.checkReady(); err != nil {
		return Confirmation{}, err
	}
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.cart.Empty() {
		return Confirmation{}, ErrEmptyCart
	}
	if err := ss.checkStock(); err != nil {
		return Confirmation{}, err
	}
	if method == models.PayWhatsApp {
		return ss.checkoutWhatsApp(), nil
	}
	if ss.store.ID == "" {
		return Confirmation{}, ErrNoStore
	}

	total := ss.cart.Total()
	if method == models.PayWallet && !ss.wallet.CanPay(total) {
		ss.logger.Warn("wallet checkout refused",
			zap.Int64("total_cents", int64(total)), zap.Int64("balance_cents", int64(ss.wallet.Balance())))
		return Confirmation{}, ErrInsufficientFunds
	}

	order := ss.buildOrder(method, total)
	logger := ss.logger.With(zap.String("order_id", order.ID), zap.String("method", string(method)))
	if err := runSaga(ctx, logger, ss.orderSteps(&order)); err != nil {
		logger.Error("checkout failed", zap.Error(err))
		return Confirmation{}, err
	}

	profile := ss.sf.Profile()
	ss.sf.notifier.Fire(webhook.OrderPayload{
		OrderID:    order.ID,
		Items:      order.Items,
		Total:      total.Number(),
		TotalCents: int64(total),
		Customer: webhook.Customer{
			Name:     profile.Name,
			Email:    profile.Email,
			WhatsApp: profile.WhatsApp,
			Address:  profile.Address,
		},
		Store: ss.store,
	})

	points := loyalty.PointsFor(total, profile.LoyaltyRatio)
	stamp := ss.card.AddPoints(points)
	ss.cart.Clear()
	ss.view = ViewSuccess
	logger.Info("order placed", zap.Int64("total_cents", int64(total)), zap.Int64("points", points))

	return Confirmation{
		OrderID:       order.ID,
		Method:        method,
		Status:        order.Status,
		TotalCents:    total,
		Store:         ss.store,
		PointsAwarded: points,
		StampAwarded:  stamp,
		Session:       ss.snapshot(),
	}, nil
}

func (ss *Session) buildOrder(method models.PaymentMethod, total money.Cents) models.Order {
	status := models.OrderCompleted
	if method == models.PayPix {
		status = models.OrderPending
	}
	lines := ss.cart.Lines()
	items := make([]models.OrderItem, 0, len(lines))
	for _, l := range lines {
		var price money.Cents
		if p, ok := ss.sf.Product(l.ProductID); ok {
			price = p.Price(l.Type)
		}
		items = append(items, models.OrderItem{ProductID: l.ProductID, Type: l.Type, Quantity: l.Quantity, PriceCents: price})
	}
	return models.Order{
		ID:            uuid.NewString(),
		UserID:        ss.profileID,
		StoreID:       ss.store.ID,
		TotalCents:    total,
		Status:        status,
		PaymentMethod: method,
		Items:         items,
	}
}

// orderSteps are the saga steps for a wallet or pix order. A zero total
// moves no money.
func (ss *Session) orderSteps(order *models.Order) []step {
	var steps []step
	if order.PaymentMethod == models.PayWallet && order.TotalCents > 0 {
		debit := backend.WalletDebit{
			UserID:         order.UserID,
			AmountCents:    order.TotalCents,
			OrderID:        order.ID,
			IdempotencyKey: "idemp_" + order.ID,
		}
		steps = append(steps,
			step{
				name: "debit wallet",
				do:   func(ctx context.Context) error { return ss.sf.backend.DebitWallet(ctx, debit) },
				undo: func(ctx context.Context) error {
					refund := debit
					refund.IdempotencyKey = "refund_" + order.ID
					return ss.sf.backend.RefundWallet(ctx, refund)
				},
			},
			step{
				name: "pay from session wallet",
				do: func(ctx context.Context) error {
					if !ss.wallet.Pay(order.TotalCents) {
						return ErrInsufficientFunds
					}
					return nil
				},
				undo: func(ctx context.Context) error {
					ss.wallet.Credit(order.TotalCents)
					return nil
				},
			},
		)
	}
	return append(steps, step{
		name: "create order",
		do: func(ctx context.Context) error {
			created, err := ss.sf.backend.CreateOrder(ctx, *order)
			if err != nil {
				return err
			}
			*order = created
			return nil
		},
	})
}

func (ss *Session) checkoutWhatsApp() Confirmation {
	profile := ss.sf.Profile()
	total := ss.cart.Total()
	msg := whatsAppMessage(ss.sf.ShopName(), ss.cart.Lines(), ss.sf, total, ss.store, profile.Address)
	link := whatsAppLink(profile.WhatsApp, msg)
	ss.cart.Clear()
	ss.logger.Info("whatsapp order handed off", zap.Int64("total_cents", int64(total)))
	return Confirmation{
		Method:      models.PayWhatsApp,
		TotalCents:  total,
		Store:       ss.store,
		RedirectURL: link,
		Session:     ss.snapshot(),
	}
}

// checkStock rejects carts holding a product that is out of stock at the
// selected store, which can happen when the store changes after the
// product was added. Callers hold ss.mu.
func (ss *Session) checkStock() error {
	if ss.store.ID == "" {
		return nil
	}
	for _, l := range ss.cart.Lines() {
		if p, ok := ss.sf.Product(l.ProductID); ok && p.OutOfStockAt(ss.store.ID) {
			return fmt.Errorf("%w: %s", ErrOutOfStock, p.Name)
		}
	}
	return nil
}
