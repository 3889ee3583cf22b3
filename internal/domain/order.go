package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// OrderSource records which backend a read-side order was retrieved from.
// Used only for merge bookkeeping and diagnostics, never authoritative.
type OrderSource string

const (
	SourcePrimaryAPI       OrderSource = "primary-api"
	SourceRemoteTopLevel   OrderSource = "remote-top-level"
	SourceRemoteUserScoped OrderSource = "remote-user-scoped"
)

type Address struct {
	FullName   string `json:"full_name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
}

// Validate returns a field name to message map for every required field that
// is empty. State is optional. An empty map means the address is complete.
func (a Address) Validate() map[string]string {
	fields := make(map[string]string)
	required := map[string]string{
		"full_name":   a.FullName,
		"address":     a.Address,
		"city":        a.City,
		"postal_code": a.PostalCode,
		"country":     a.Country,
		"phone":       a.Phone,
	}
	for name, value := range required {
		if strings.TrimSpace(value) == "" {
			fields[name] = "must not be empty"
		}
	}
	return fields
}

// OrderItem is a line snapshot frozen at checkout time. LineSubtotal is
// computed once and persisted, never recomputed from live catalog data.
type OrderItem struct {
	ProductID    string          `json:"product_id"`
	Name         string          `json:"name"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity"`
	ImageRef     string          `json:"image_ref,omitempty"`
	LineSubtotal decimal.Decimal `json:"line_subtotal"`
}

// Order IDs are unique only within their source; cross-source dedup happens
// in the read aggregator.
type Order struct {
	ID              string          `json:"id"`
	SubjectID       string          `json:"subject_id"`
	Items           []OrderItem     `json:"items"`
	ShippingAddress Address         `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method,omitempty"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Status          OrderStatus     `json:"status"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	Source          OrderSource     `json:"source,omitempty"`
	PlacedAt        time.Time       `json:"placed_at"`
}
