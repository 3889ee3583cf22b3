package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// PlaceholderName is substituted when a stored cart line has no product name.
const PlaceholderName = "Unknown product"

// Product is the catalog snapshot captured when an item is added to the cart.
// It is never re-fetched at render time.
type Product struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Price           decimal.Decimal  `json:"price"`
	DiscountedPrice *decimal.Decimal `json:"discounted_price,omitempty"`
	ImageRef        string           `json:"image_ref,omitempty"`
}

type CartLine struct {
	ProductID           string           `json:"product_id"`
	Name                string           `json:"name"`
	Quantity            int              `json:"quantity"`
	UnitPrice           decimal.Decimal  `json:"unit_price"`
	DiscountedUnitPrice *decimal.Decimal `json:"discounted_unit_price,omitempty"`
	ImageRef            string           `json:"image_ref,omitempty"`
}

// EffectiveUnitPrice is the discounted price when present, the regular price otherwise.
func (l CartLine) EffectiveUnitPrice() decimal.Decimal {
	if l.DiscountedUnitPrice != nil {
		return *l.DiscountedUnitPrice
	}
	return l.UnitPrice
}

// Subtotal is the effective unit price times quantity.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.EffectiveUnitPrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart maps product IDs to lines. Exactly one line per product.
type Cart struct {
	Lines map[string]CartLine `json:"lines"`
}

func NewCart() *Cart {
	return &Cart{Lines: make(map[string]CartLine)}
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Lines) == 0
}

// Total sums effective unit price times quantity over all lines.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.Lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// Count sums quantities over all lines.
func (c *Cart) Count() int {
	count := 0
	for _, line := range c.Lines {
		count += line.Quantity
	}
	return count
}

func (c *Cart) Clone() *Cart {
	clone := NewCart()
	if c == nil {
		return clone
	}
	for id, line := range c.Lines {
		clone.Lines[id] = line
	}
	return clone
}

// NormalizeLine fills defaults for fields a stored line may be missing:
// quantity below 1 becomes 1, an empty name becomes a placeholder. A zero
// unit price and a nil discounted price are already valid defaults.
func NormalizeLine(line CartLine) CartLine {
	if line.Quantity < 1 {
		line.Quantity = 1
	}
	if line.Name == "" {
		line.Name = PlaceholderName
	}
	return line
}

// Normalize validates every line in place, dropping lines without a product ID.
func (c *Cart) Normalize() {
	for id, line := range c.Lines {
		if id == "" || line.ProductID == "" {
			delete(c.Lines, id)
			continue
		}
		c.Lines[id] = NormalizeLine(line)
	}
}

// DecodeCart parses a serialized cart. Malformed input yields an empty cart,
// never an error: a corrupt local copy must not break the session.
func DecodeCart(data []byte) *Cart {
	if len(data) == 0 {
		return NewCart()
	}
	var cart Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return NewCart()
	}
	if cart.Lines == nil {
		cart.Lines = make(map[string]CartLine)
	}
	cart.Normalize()
	return &cart
}
