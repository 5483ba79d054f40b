package service

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"
)

var (
	taxRate               = decimal.RequireFromString("0.08")
	freeShippingThreshold = decimal.NewFromInt(500)
	flatShipping          = decimal.NewFromInt(25)
)

// Totals is the price breakdown stored on an order.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// CalculateTotals applies 8% tax, flat shipping under the free-shipping threshold
// and no discount.
func CalculateTotals(subtotal decimal.Decimal) Totals {
	t := Totals{
		Subtotal: subtotal,
		Tax:      subtotal.Mul(taxRate).Round(2),
		Shipping: flatShipping,
		Discount: decimal.Zero,
	}
	if subtotal.GreaterThanOrEqual(freeShippingThreshold) {
		t.Shipping = decimal.Zero
	}
	t.Total = t.Subtotal.Add(t.Tax).Add(t.Shipping).Sub(t.Discount)
	return t
}

const orderNumberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateOrderNumber returns LUX-<last 8 digits of epoch ms>-<4 random [A-Z0-9]>.
func GenerateOrderNumber(now time.Time) string {
	suffix := make([]byte, 4)
	for i := range suffix {
		suffix[i] = orderNumberAlphabet[rand.IntN(len(orderNumberAlphabet))]
	}
	return fmt.Sprintf("LUX-%08d-%s", now.UnixMilli()%100_000_000, suffix)
}
