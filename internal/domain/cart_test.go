package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectiveUnitPrice_UsesDiscountWhenPresent(t *testing.T) {
	discounted := decimal.NewFromInt(40)
	line := CartLine{
		ProductID:           "p1",
		UnitPrice:           decimal.NewFromInt(50),
		DiscountedUnitPrice: &discounted,
		Quantity:            3,
	}

	assert.True(t, line.EffectiveUnitPrice().Equal(decimal.NewFromInt(40)))
	assert.True(t, line.Subtotal().Equal(decimal.NewFromInt(120)),
		"discounted line must contribute 120, not 150")
}

func TestEffectiveUnitPrice_FallsBackToRegular(t *testing.T) {
	line := CartLine{ProductID: "p1", UnitPrice: decimal.NewFromInt(50), Quantity: 2}

	assert.True(t, line.EffectiveUnitPrice().Equal(decimal.NewFromInt(50)))
	assert.True(t, line.Subtotal().Equal(decimal.NewFromInt(100)))
}

func TestCartTotalAndCount(t *testing.T) {
	discounted := decimal.NewFromInt(40)
	cart := NewCart()
	cart.Lines["p1"] = CartLine{ProductID: "p1", UnitPrice: decimal.NewFromInt(50), DiscountedUnitPrice: &discounted, Quantity: 3}
	cart.Lines["p2"] = CartLine{ProductID: "p2", UnitPrice: decimal.NewFromInt(10), Quantity: 2}

	assert.True(t, cart.Total().Equal(decimal.NewFromInt(140)))
	assert.Equal(t, 5, cart.Count())
}

func TestNormalizeLine_FillsDefaults(t *testing.T) {
	line := NormalizeLine(CartLine{ProductID: "p1"})

	assert.Equal(t, 1, line.Quantity)
	assert.Equal(t, PlaceholderName, line.Name)
	assert.True(t, line.UnitPrice.IsZero())
	assert.Nil(t, line.DiscountedUnitPrice)
}

func TestNormalize_DropsLinesWithoutProductID(t *testing.T) {
	cart := NewCart()
	cart.Lines["p1"] = CartLine{ProductID: "p1", Name: "Dress", Quantity: 1}
	cart.Lines[""] = CartLine{Name: "orphan", Quantity: 1}

	cart.Normalize()

	require.Len(t, cart.Lines, 1)
	assert.Contains(t, cart.Lines, "p1")
}

func TestDecodeCart_MalformedYieldsEmpty(t *testing.T) {
	for _, input := range [][]byte{nil, []byte(""), []byte("{not json"), []byte(`"a string"`)} {
		cart := DecodeCart(input)
		require.NotNil(t, cart)
		assert.True(t, cart.IsEmpty())
	}
}

func TestDecodeCart_RoundTrip(t *testing.T) {
	cart := DecodeCart([]byte(`{"lines":{"42":{"product_id":"42","name":"Dress","quantity":2,"unit_price":"80"}}}`))

	require.Len(t, cart.Lines, 1)
	line := cart.Lines["42"]
	assert.Equal(t, "Dress", line.Name)
	assert.Equal(t, 2, line.Quantity)
	assert.True(t, line.UnitPrice.Equal(decimal.NewFromInt(80)))
}
