package invoice

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"github.com/superbazaar/storefront-api/pkg/db/models"
)

// Renderer turns an order into a downloadable invoice document.
type Renderer interface {
	Render(order *models.Order) ([]byte, error)
	ContentType() string
	Filename(order *models.Order) string
}

// TextRenderer produces a plain-text invoice: order header, shipping
// address, line items, and the totals block with the discount row omitted
// when zero.
type TextRenderer struct {
	siteName string
	currency string
}

// NewTextRenderer builds the plain-text invoice renderer.
func NewTextRenderer(siteName, currency string) *TextRenderer {
	if currency == "" {
		currency = "INR"
	}
	return &TextRenderer{siteName: siteName, currency: currency}
}

func (r *TextRenderer) ContentType() string {
	return "text/plain; charset=utf-8"
}

func (r *TextRenderer) Filename(order *models.Order) string {
	return fmt.Sprintf("invoice_%s.txt", order.OrderNumber)
}

func (r *TextRenderer) Render(order *models.Order) ([]byte, error) {
	if order == nil {
		return nil, fmt.Errorf("order required")
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s\n", r.siteName)
	fmt.Fprintf(&buf, "Invoice #%s\n\n", order.OrderNumber)
	fmt.Fprintf(&buf, "Order Date:     %s\n", order.CreatedAt.Format("January 2, 2006"))
	fmt.Fprintf(&buf, "Status:         %s\n", order.Status)
	fmt.Fprintf(&buf, "Payment Status: %s\n", order.PaymentStatus)
	fmt.Fprintf(&buf, "Payment Method: %s\n\n", order.PaymentMethod)

	if addr := order.ShippingAddress; addr != nil {
		fmt.Fprintf(&buf, "Ship To:\n%s\n%s\n", addr.FullName, addr.Line1)
		if addr.Line2 != "" {
			fmt.Fprintf(&buf, "%s\n", addr.Line2)
		}
		fmt.Fprintf(&buf, "%s, %s %s\n%s\n\n", addr.City, addr.State, addr.PostalCode, addr.Country)
	}

	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Product\tQty\tPrice\tSubtotal")
	for _, item := range order.Items {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
			item.ProductName, item.Quantity, item.Price.StringFixed(2), item.Subtotal.StringFixed(2))
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}

	fmt.Fprintf(&buf, "\nSubtotal: %s %s\n", r.currency, order.Subtotal.StringFixed(2))
	fmt.Fprintf(&buf, "Tax:      %s %s\n", r.currency, order.TaxAmount.StringFixed(2))
	fmt.Fprintf(&buf, "Shipping: %s %s\n", r.currency, order.ShippingCost.StringFixed(2))
	if order.DiscountAmount.Sign() > 0 {
		fmt.Fprintf(&buf, "Discount: -%s %s\n", r.currency, order.DiscountAmount.StringFixed(2))
	}
	fmt.Fprintf(&buf, "Total:    %s %s\n", r.currency, order.Total.StringFixed(2))

	return buf.Bytes(), nil
}
