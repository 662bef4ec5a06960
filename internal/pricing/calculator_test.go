package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/superbazaar/storefront-api/pkg/config"
	"github.com/superbazaar/storefront-api/pkg/db/models"
)

func newCalculator(minOrder, defaultShipping float64) *Calculator {
	return NewCalculator(config.StoreConfig{
		TaxRate:             0.18,
		MinOrderAmount:      minOrder,
		DefaultShippingCost: defaultShipping,
	})
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestTaxAppliesToDiscountedSubtotal(t *testing.T) {
	t.Parallel()

	calc := newCalculator(0, 50)

	got := calc.Tax(dec("200"), dec("50"))
	require.Equal(t, "27.00", got.StringFixed(2))
}

func TestTaxRoundsHalfUpToTwoPlaces(t *testing.T) {
	t.Parallel()

	calc := newCalculator(0, 50)

	// 99.99 * 0.18 = 17.9982 -> 18.00
	got := calc.Tax(dec("99.99"), decimal.Zero)
	require.Equal(t, "18.00", got.StringFixed(2))

	// 0.25 * 0.18 = 0.045 -> 0.05
	got = calc.Tax(dec("0.25"), decimal.Zero)
	require.Equal(t, "0.05", got.StringFixed(2))
}

func TestTaxNeverNegative(t *testing.T) {
	t.Parallel()

	calc := newCalculator(0, 50)

	got := calc.Tax(dec("40"), dec("100"))
	require.True(t, got.IsZero(), "got %s", got)
}

func TestShippingCostUsesMethodThreshold(t *testing.T) {
	t.Parallel()

	calc := newCalculator(500, 50)
	method := &models.ShippingMethod{
		Price:          dec("80"),
		MinOrderAmount: dec("300"),
	}

	require.True(t, calc.ShippingCost(dec("300"), method).IsZero())
	require.Equal(t, "80.00", calc.ShippingCost(dec("299.99"), method).StringFixed(2))
}

func TestShippingCostMethodOverridesStoreThreshold(t *testing.T) {
	t.Parallel()

	calc := newCalculator(100, 50)
	method := &models.ShippingMethod{
		Price:          dec("60"),
		MinOrderAmount: dec("10000"),
	}

	// An explicit method uses its own threshold, not the store-wide one.
	require.Equal(t, "60.00", calc.ShippingCost(dec("5000"), method).StringFixed(2))
}

func TestShippingCostFallsBackToStoreSettings(t *testing.T) {
	t.Parallel()

	calc := newCalculator(500, 50)

	require.True(t, calc.ShippingCost(dec("600"), nil).IsZero())
	require.Equal(t, "50.00", calc.ShippingCost(dec("499"), nil).StringFixed(2))
}

func TestShippingCostZeroThresholdAlwaysFree(t *testing.T) {
	t.Parallel()

	calc := newCalculator(0, 50)
	method := &models.ShippingMethod{Price: dec("60")}

	require.True(t, calc.ShippingCost(dec("1"), nil).IsZero())
	require.True(t, calc.ShippingCost(dec("1"), method).IsZero())
}

func TestQuoteOrderTotalIdentity(t *testing.T) {
	t.Parallel()

	calc := newCalculator(500, 50)

	quote := calc.QuoteOrder(dec("200"), dec("40"), nil)
	require.Equal(t, "28.80", quote.Tax.StringFixed(2))
	require.Equal(t, "50.00", quote.Shipping.StringFixed(2))

	want := quote.Subtotal.Add(quote.Tax).Add(quote.Shipping).Sub(quote.Discount)
	require.True(t, quote.Total.Equal(want), "total %s != identity %s", quote.Total, want)
	require.Equal(t, "238.80", quote.Total.StringFixed(2))
}
