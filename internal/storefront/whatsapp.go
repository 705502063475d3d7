package storefront

import (
	"fmt"
	"net/url"
	"strings"

	"voalzira/internal/cart"
	"voalzira/internal/models"
	"voalzira/internal/money"
)

// whatsAppMessage is the order text customers send to the shop.
func whatsAppMessage(shop string, lines []cart.Line, catalog cart.Catalog, total money.Cents, store models.Store, address string) string {
	items := make([]string, 0, len(lines))
	for _, l := range lines {
		name := l.ProductID
		if p, ok := catalog.Product(l.ProductID); ok {
			name = p.Name
		}
		items = append(items, fmt.Sprintf("%dx %s (%s)", l.Quantity, name, l.Type))
	}
	return fmt.Sprintf("*Novo Pedido - %s*\n\n*Itens:*\n%s\n\n*Total:* %s\n*Loja:* %s\n*Endereço:* %s",
		shop, strings.Join(items, "\n"), total, store.Name, address)
}

// whatsAppLink is a wa.me deep link opening a chat with phone prefilled
// with text. Everything but ASCII digits is stripped from phone.
func whatsAppLink(phone, text string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	// encodeURIComponent style: spaces as %20, not +
	escaped := strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	return "https://wa.me/" + digits + "?text=" + escaped
}
