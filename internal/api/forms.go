package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"voalzira/internal/models"
	"voalzira/internal/money"
)

// productForm is the multipart form the admin product editor submits.
// Prices are decimal strings in reais.
type productForm struct {
	Name                string   `schema:"name"`
	Description         string   `schema:"description"`
	DescriptionMarkdown string   `schema:"descriptionMarkdown"`
	PriceWhole          string   `schema:"priceWhole"`
	PriceSlice          string   `schema:"priceSlice"`
	SalePriceWhole      string   `schema:"salePriceWhole"`
	SalePriceSlice      string   `schema:"salePriceSlice"`
	StockCount          int      `schema:"stockCount"`
	CategoryID          string   `schema:"categoryId"`
	Images              []string `schema:"images"`
	OutOfStockStores    []string `schema:"outOfStockStores"`
}

// parseProductForm reads the form fields of a multipart or urlencoded body.
func (h *Handler) parseProductForm(w http.ResponseWriter, r *http.Request) (productForm, error) {
	var f productForm
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return f, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := h.forms.Decode(&f, r.PostForm); err != nil {
		return f, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return f, nil
}

// apply copies the form onto p. Image lists are only replaced when the
// form carries them.
func (f productForm) apply(p *models.Product) error {
	var err error
	p.Name = strings.TrimSpace(f.Name)
	p.Description = f.Description
	p.DescriptionMarkdown = f.DescriptionMarkdown
	p.StockCount = f.StockCount
	p.CategoryID = f.CategoryID
	if p.PriceWhole, err = requiredPrice("priceWhole", f.PriceWhole); err != nil {
		return err
	}
	if p.PriceSlice, err = requiredPrice("priceSlice", f.PriceSlice); err != nil {
		return err
	}
	if p.SalePriceWhole, err = optionalPrice("salePriceWhole", f.SalePriceWhole); err != nil {
		return err
	}
	if p.SalePriceSlice, err = optionalPrice("salePriceSlice", f.SalePriceSlice); err != nil {
		return err
	}
	if f.Images != nil {
		p.Images = nonEmpty(f.Images)
		p.Image = ""
		if len(p.Images) > 0 {
			p.Image = p.Images[0]
		}
	}
	if f.OutOfStockStores != nil {
		p.OutOfStockStores = nonEmpty(f.OutOfStockStores)
	}
	return nil
}

func requiredPrice(field, s string) (money.Cents, error) {
	if strings.TrimSpace(s) == "" {
		return 0, fmt.Errorf("%w: %s is required", errBadRequest, field)
	}
	c, err := money.Parse(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return c, nil
}

func optionalPrice(field, s string) (*money.Cents, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	c, err := money.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return &c, nil
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
