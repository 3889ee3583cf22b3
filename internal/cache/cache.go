package cache

import (
	"context"
	"errors"

	"github.com/fjod/storefront/internal/domain"
)

// CartCache is the device-local backup copy of a session's cart. It is a
// mirror, never the owner: the reconciliation engine writes through to it
// after every mutation.
type CartCache interface {
	Get(ctx context.Context, session string) (*domain.Cart, error)
	Set(ctx context.Context, session string, cart *domain.Cart) error
	Delete(ctx context.Context, session string) error
}

var ErrCacheMiss = errors.New("cache miss")
