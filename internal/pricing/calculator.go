package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/superbazaar/storefront-api/pkg/config"
	"github.com/superbazaar/storefront-api/pkg/db/models"
)

// Calculator derives tax, shipping, and order totals from store settings.
type Calculator struct {
	cfg config.StoreConfig
}

// Quote is the monetary breakdown of an order before it is persisted.
type Quote struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// NewCalculator builds a calculator from the store configuration.
func NewCalculator(cfg config.StoreConfig) *Calculator {
	return &Calculator{cfg: cfg}
}

// Tax computes tax on the discounted subtotal, rounded to two places.
// Discounts reduce the taxable base; shipping is never taxed.
func (c *Calculator) Tax(subtotal, discount decimal.Decimal) decimal.Decimal {
	base := subtotal.Sub(discount)
	if base.Sign() < 0 {
		base = decimal.Zero
	}
	return base.Mul(c.cfg.TaxRateDecimal()).Round(2)
}

// ShippingCost resolves shipping with a two-tier fallback: an explicit
// method uses its own free-shipping threshold and price; without one, the
// store-wide threshold and default cost apply.
func (c *Calculator) ShippingCost(subtotal decimal.Decimal, method *models.ShippingMethod) decimal.Decimal {
	if method != nil {
		if subtotal.GreaterThanOrEqual(method.MinOrderAmount) {
			return decimal.Zero
		}
		return method.Price
	}
	if subtotal.GreaterThanOrEqual(c.cfg.MinOrderAmountDecimal()) {
		return decimal.Zero
	}
	return c.cfg.DefaultShippingCostDecimal()
}

// QuoteOrder assembles the full breakdown for a cart subtotal.
func (c *Calculator) QuoteOrder(subtotal, discount decimal.Decimal, method *models.ShippingMethod) Quote {
	tax := c.Tax(subtotal, discount)
	shipping := c.ShippingCost(subtotal, method)
	return Quote{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Add(tax).Add(shipping).Sub(discount),
	}
}
