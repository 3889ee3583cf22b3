package domain

import "github.com/shopspring/decimal"

// FreeShippingThreshold is the items subtotal above which shipping is free.
// The comparison is strict: a subtotal of exactly 99 still pays the fee.
var FreeShippingThreshold = decimal.NewFromInt(99)

// ShippingFee returns the flat fee, or zero when the subtotal crosses the
// free-shipping threshold.
func ShippingFee(subtotal, flatFee decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThan(FreeShippingThreshold) {
		return decimal.Zero
	}
	return flatFee
}
