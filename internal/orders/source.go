package orders

import (
	"context"
	"time"

	"github.com/fjod/storefront/internal/domain"
)

// RawOrder is an order as retrieved from one backend, before its timestamp
// has been resolved. Backends disagree on which date field they carry, and
// either may be absent.
type RawOrder struct {
	domain.Order

	CreationTime *time.Time
	OrderDate    *time.Time
}

// Source is one independent order backend. Implementations tag every record
// they return with their own domain.OrderSource.
type Source interface {
	Name() string
	Fetch(ctx context.Context, subject string) ([]RawOrder, error)
}
