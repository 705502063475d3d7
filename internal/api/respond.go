package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"voalzira/internal/backend"
	"voalzira/internal/cart"
	"voalzira/internal/loyalty"
	"voalzira/internal/media"
	"voalzira/internal/money"
	"voalzira/internal/storefront"
	"voalzira/internal/wallet"
)

var (
	errUnauthorized = errors.New("unauthorized")
	errBadRequest   = errors.New("bad request")
)

const (
	msgOperationFailed = "Operation failed"
	msgCheckoutFailed  = "Checkout failed. Please try again."
	msgNotReady        = "Falha ao conectar com o banco de dados. Tente novamente mais tarde."
)

var (
	badRequest = []error{
		errBadRequest,
		cart.ErrProductRequired, cart.ErrInvalidSaleType, cart.ErrUnknownCoupon, cart.ErrCouponExpired,
		cart.ErrCouponCodeRequired, cart.ErrPercentageRange, cart.ErrFixedNegative,
		cart.ErrInvalidCouponType, cart.ErrInvalidExpiry,
		wallet.ErrInvalidTopUp, wallet.ErrTierAmount, wallet.ErrTierPercentage,
		money.ErrInvalidAmount, backend.ErrInvalidAmount,
		media.ErrUnsupportedFormat, media.ErrDecode,
		storefront.ErrInvalidProduct, storefront.ErrInvalidProfile, storefront.ErrInvalidWebhookURL,
		storefront.ErrEmptyCart, storefront.ErrInvalidPaymentMethod, storefront.ErrNoStore,
		storefront.ErrUnknownView, storefront.ErrOutOfStock,
		cart.ErrCouponExists, loyalty.ErrNotEnoughStamps,
	}
	notFound = []error{
		backend.ErrNotFound, cart.ErrCouponNotFound, storefront.ErrUnknownProduct, storefront.ErrUnknownStore,
	}
)

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// statusFor maps a domain error to its HTTP status. Server errors get the
// generic message; client errors carry the error text.
func statusFor(err error, generic string) (int, string) {
	switch {
	case errors.Is(err, storefront.ErrNotReady):
		return http.StatusServiceUnavailable, msgNotReady
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, backend.ErrInsufficientFunds):
		return http.StatusPaymentRequired, "Saldo insuficiente"
	case isAny(err, notFound):
		return http.StatusNotFound, err.Error()
	case isAny(err, badRequest):
		return http.StatusBadRequest, err.Error()
	}
	return http.StatusInternalServerError, generic
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    status,
		},
	})
}

// fail writes err with the status statusFor picks and logs server errors.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, generic string) {
	status, msg := statusFor(err, generic)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeError(w, status, msg)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body", errBadRequest)
	}
	return nil
}
