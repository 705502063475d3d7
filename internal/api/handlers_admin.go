package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"voalzira/internal/models"
	"voalzira/internal/storefront"
)

// ListOrders handles GET /api/admin/orders.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.sf.ListOrders(r.Context())
	if err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// uploadFormFile uploads the optional "file" part and returns its URL, or
// "" when the form has none.
func (h *Handler) uploadFormFile(r *http.Request) (string, error) {
	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", errBadRequest, err)
	}
	defer file.Close()
	url, err := h.sf.UploadImage(r.Context(), header.Filename, file)
	if err != nil {
		return "", err
	}
	h.logger.Info("product image uploaded", zap.String("filename", header.Filename), zap.String("url", url))
	return url, nil
}

// CreateProduct handles POST /api/admin/products.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	form, err := h.parseProductForm(w, r)
	if err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	var p models.Product
	if err := form.apply(&p); err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	url, err := h.uploadFormFile(r)
	if err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	if url != "" {
		p.Image = url
		p.Images = append([]string{url}, p.Images...)
	}
	created, err := h.sf.CreateProduct(r.Context(), p)
	if err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateProduct handles PUT /api/admin/products/{id}.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, ok := h.sf.Product(id)
	if !ok {
		h.fail(w, r, storefront.ErrUnknownProduct, msgOperationFailed)
		return
	}
	form, err := h.parseProductForm(w, r)
	if err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	if err := form.apply(&p); err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	url, err := h.uploadFormFile(r)
	if err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	if url != "" {
		p.Image = url
		p.Images = append([]string{url}, p.Images...)
	}
	updated, err := h.sf.UpdateProduct(r.Context(), p)
	if err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// ToggleStock handles POST /api/admin/products/{id}/stock.
func (h *Handler) ToggleStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StoreID string `json:"storeId"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	p, err := h.sf.ToggleStock(r.Context(), chi.URLParam(r, "id"), req.StoreID)
	if err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ListCoupons handles GET /api/admin/coupons.
func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sf.Coupons())
}

// CreateCoupon handles POST /api/admin/coupons.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var c models.Coupon
	if err := decodeJSON(w, r, &c); err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	created, err := h.sf.AddCoupon(c)
	if err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateCoupon handles PUT /api/admin/coupons/{id}.
func (h *Handler) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	var c models.Coupon
	if err := decodeJSON(w, r, &c); err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	c.ID = chi.URLParam(r, "id")
	if err := h.sf.UpdateCoupon(c); err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteCoupon handles DELETE /api/admin/coupons/{id}.
func (h *Handler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.sf.DeleteCoupon(chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetTier handles PUT /api/admin/tiers and answers with the whole table.
func (h *Handler) SetTier(w http.ResponseWriter, r *http.Request) {
	var t models.WalletTier
	if err := decodeJSON(w, r, &t); err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	if err := h.sf.SetWalletTier(t); err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	writeJSON(w, http.StatusOK, h.sf.WalletTiers())
}

// Reload handles POST /api/admin/reload by refetching the catalog.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.sf.Load(r.Context()); err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "ready": true})
}

// GetConfig handles GET /api/admin/config.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sf.AdminConfig())
}

// UpdateConfig handles PUT /api/admin/config.
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var c storefront.AdminConfig
	if err := decodeJSON(w, r, &c); err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	if err := h.sf.SetWebhookURL(c.WebhookURL); err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	writeJSON(w, http.StatusOK, h.sf.AdminConfig())
}

// UpdateProfile handles PUT /api/admin/profile.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var p models.UserProfile
	if err := decodeJSON(w, r, &p); err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	updated, err := h.sf.UpdateProfile(r.Context(), p)
	if err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// UploadImage handles POST /api/admin/images with a multipart "file".
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.fail(w, r, fmt.Errorf("%w: %v", errBadRequest, err), msgOperationFailed)
		return
	}
	url, err := h.uploadFormFile(r)
	if err != nil {
		h.fail(w, r, err, msgOperationFailed)
		return
	}
	if url == "" {
		h.fail(w, r, fmt.Errorf("%w: file is required", errBadRequest), msgOperationFailed)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}
