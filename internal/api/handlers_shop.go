package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"voalzira/internal/models"
	"voalzira/internal/money"
	"voalzira/internal/storefront"
)

// session returns the caller's storefront session, starting one and
// setting the cookie when the request has none.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*storefront.Session, error) {
	cs, _ := h.cookies.Get(r, cookieName)
	sid, _ := cs.Values[keySession].(string)
	ss, err := h.sessions.GetOrCreate(r.Context(), sid)
	if err != nil {
		return nil, err
	}
	if ss.ID != sid {
		cs.Values[keySession] = ss.ID
		if err := cs.Save(r, w); err != nil {
			return nil, fmt.Errorf("save session cookie: %w", err)
		}
	}
	return ss, nil
}

// GetCatalog handles GET /api/catalog.
func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	c, err := h.sf.Catalog()
	if err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// GetSession handles GET /api/session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	ss, err := h.session(w, r)
	if err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	writeJSON(w, http.StatusOK, ss.Snapshot())
}

// SelectStore handles PUT /api/session/store.
func (h *Handler) SelectStore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StoreID string `json:"storeId"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	ss, err := h.session(w, r)
	if err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	snap, err := ss.SelectStore(req.StoreID)
	if err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Navigate handles PUT /api/session/view.
func (h *Handler) Navigate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		View storefront.View `json:"view"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	ss, err := h.session(w, r)
	if err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	snap, err := ss.Navigate(req.View)
	if err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type cartItemRequest struct {
	ProductID string          `json:"cakeId"`
	Type      models.SaleType `json:"type"`
}

// AddCartItem handles POST /api/cart/items.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	ss, err := h.session(w, r)
	if err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	snap, err := ss.AddToCart(req.ProductID, req.Type)
	if err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// RemoveCartItem handles DELETE /api/cart/items.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	ss, err := h.session(w, r)
	if err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	writeJSON(w, http.StatusOK, ss.RemoveFromCart(req.ProductID, req.Type))
}

// ApplyCoupon handles POST /api/cart/coupon. A rejected code still clears
// the previous coupon; the response then carries the error only.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	ss, err := h.session(w, r)
	if err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	snap, err := ss.ApplyCoupon(req.Code)
	if err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ClearCart handles DELETE /api/cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ss, err := h.session(w, r)
	if err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	writeJSON(w, http.StatusOK, ss.ClearCart())
}

// ListTiers handles GET /api/wallet/tiers.
func (h *Handler) ListTiers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sf.WalletTiers())
}

// TopUp handles POST /api/wallet/topup. The amount is given either in
// cents or as a decimal string such as "100.00".
func (h *Handler) TopUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount      string      `json:"amount"`
		AmountCents money.Cents `json:"amountCents"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	amount := req.AmountCents
	if amount == 0 && req.Amount != "" {
		parsed, err := money.Parse(req.Amount)
		if err != nil {
			h.fail(w, r, err, msgOperationFailed)
			return
		}
		amount = parsed
	}
	ss, err := h.session(w, r)
	if err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	credited, snap, err := ss.TopUp(amount)
	if err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"creditedCents": credited, "session": snap})
}

// RedeemReward handles POST /api/loyalty/redeem.
func (h *Handler) RedeemReward(w http.ResponseWriter, r *http.Request) {
	ss, err := h.session(w, r)
	if err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	snap, err := ss.RedeemReward()
	if err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Checkout handles POST /api/checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method models.PaymentMethod `json:"method"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err, msgCheckoutFailed)
		return
	}
	ss, err := h.session(w, r)
	if err != nil {
		h.fail(w, r, err, msgCheckoutFailed)
		return
	}
	conf, err := ss.Checkout(r.Context(), req.Method)
	if err != nil {
		h.fail(w, r, err, msgCheckoutFailed)
		return
	}
	writeJSON(w, http.StatusOK, conf)
}

// Login handles POST /api/login with {"username","password"}.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var cred struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &cred); err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	userOK := subtle.ConstantTimeCompare([]byte(cred.Username), []byte(h.admin.Username)) == 1
	if h.admin.PasswordHash == "" || !userOK ||
		bcrypt.CompareHashAndPassword([]byte(h.admin.PasswordHash), []byte(cred.Password)) != nil {
		h.logger.Warn("failed admin login", zap.String("username", cred.Username), zap.String("ip", r.RemoteAddr))
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	cs, _ := h.cookies.Get(r, cookieName)
	cs.Values[keyAdmin] = true
	if err := cs.Save(r, w); err != nil {
		h.fail(w, r, fmt.Errorf("save session cookie: %w", err), msgOperationFailed)
		return
	}
	h.logger.Info("admin logged in", zap.String("username", cred.Username))
	writeJSON(w, http.StatusOK, map[string]any{"admin": true})
}

// Logout handles POST /api/logout. The cart session survives; only the
// admin flag is dropped.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	cs, _ := h.cookies.Get(r, cookieName)
	delete(cs.Values, keyAdmin)
	if err := cs.Save(r, w); err != nil {
		h.fail(w, r, fmt.Errorf("save session cookie: %w", err), msgOperationFailed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"admin": false})
}
