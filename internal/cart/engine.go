package cart

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/store"
	apperrors "github.com/fjod/storefront/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// SyncEvent reports a failed remote mirror write. The local mutation it
// belongs to has already been committed and is not rolled back.
type SyncEvent struct {
	Op  string
	Err error
}

// Engine owns the in-memory cart for one session and keeps the local cache
// and the remote store in sync on every mutation. The local side commits
// synchronously; the remote side is mirrored in the background with failures
// surfaced on the Events channel. When the two diverge, the next Init
// resolves it: the remote cart wins if the session is authenticated and the
// remote copy is non-empty.
type Engine struct {
	session string
	subject string
	cache   cache.CartCache
	store   store.CartStore
	logger  *zap.Logger

	mu     sync.Mutex
	cart   *domain.Cart
	loaded bool
	closed bool

	sfg           singleflight.Group
	events        chan SyncEvent
	mirrorTimeout time.Duration
	mirrorWG      sync.WaitGroup
}

// NewEngine builds an engine for one session. An empty subject means the
// session is anonymous and only the local cache is used.
func NewEngine(session, subject string, c cache.CartCache, s store.CartStore, logger *zap.Logger) *Engine {
	return &Engine{
		session:       session,
		subject:       subject,
		cache:         c,
		store:         s,
		logger:        logger,
		cart:          domain.NewCart(),
		events:        make(chan SyncEvent, 16),
		mirrorTimeout: 5 * time.Second,
	}
}

func (e *Engine) Session() string { return e.session }
func (e *Engine) Subject() string { return e.subject }

// Events delivers remote mirror failures. The channel is buffered and sends
// are non-blocking; a slow consumer loses events, not mutations.
func (e *Engine) Events() <-chan SyncEvent { return e.events }

// Init loads the working cart. Authenticated sessions adopt the remote cart
// when it exists and has lines, falling back to the local cache otherwise;
// anonymous sessions load the local cache directly. Nothing here ever fails
// the caller: every load error degrades to an empty cart.
func (e *Engine) Init(ctx context.Context) error {
	_, err, _ := e.sfg.Do(e.session, func() (interface{}, error) {
		loaded := e.load(ctx)

		e.mu.Lock()
		e.cart = loaded
		e.loaded = true
		e.mu.Unlock()
		return nil, nil
	})
	return err
}

func (e *Engine) load(ctx context.Context) *domain.Cart {
	local := e.loadLocal(ctx)

	if e.subject == "" {
		return local
	}

	remote, err := e.store.Load(ctx, e.subject)
	if err != nil && !errors.Is(err, store.ErrCartNotFound) {
		e.logger.Warn("remote cart load failed, keeping local copy",
			zap.String("subject", e.subject), zap.Error(err))
	}
	return adoptRemote(remote, local)
}

func (e *Engine) loadLocal(ctx context.Context) *domain.Cart {
	local, err := e.cache.Get(ctx, e.session)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			e.logger.Warn("local cart load failed", zap.String("session", e.session), zap.Error(err))
		}
		return domain.NewCart()
	}
	return local
}

// adoptRemote is the identity-transition policy made explicit: a non-empty
// remote cart replaces whatever the device held, the anonymous cart is not
// merged into it.
func adoptRemote(remote, local *domain.Cart) *domain.Cart {
	if remote != nil && !remote.IsEmpty() {
		remote.Normalize()
		return remote
	}
	return local
}

// AddItem merges the product into an existing line (summing quantities) or
// inserts a new one. The remote mirror failing does not roll it back.
func (e *Engine) AddItem(ctx context.Context, product domain.Product, qty int) error {
	if product.ID == "" {
		return &apperrors.ErrInvalidInput{Message: "product is missing an identifier"}
	}
	if qty < 1 {
		return &apperrors.ErrInvalidInput{Message: "quantity must be at least 1"}
	}

	e.mu.Lock()
	if line, ok := e.cart.Lines[product.ID]; ok {
		line.Quantity += qty
		e.cart.Lines[product.ID] = line
	} else {
		e.cart.Lines[product.ID] = domain.CartLine{
			ProductID:           product.ID,
			Name:                product.Name,
			Quantity:            qty,
			UnitPrice:           product.Price,
			DiscountedUnitPrice: product.DiscountedPrice,
			ImageRef:            product.ImageRef,
		}
	}
	snapshot := e.cart.Clone()
	e.mu.Unlock()

	e.persist(ctx, "add_item", snapshot)
	return nil
}

// RemoveItem deletes the line if present. Removing an absent line is not an
// error.
func (e *Engine) RemoveItem(ctx context.Context, productID string) error {
	if productID == "" {
		return &apperrors.ErrInvalidInput{Message: "product identifier is required"}
	}

	e.mu.Lock()
	delete(e.cart.Lines, productID)
	snapshot := e.cart.Clone()
	e.mu.Unlock()

	e.persist(ctx, "remove_item", snapshot)
	return nil
}

// SetQuantity replaces the line's quantity. A quantity at or below zero
// removes the line instead; a missing line is a no-op.
func (e *Engine) SetQuantity(ctx context.Context, productID string, qty int) error {
	if productID == "" {
		return &apperrors.ErrInvalidInput{Message: "product identifier is required"}
	}
	if qty <= 0 {
		return e.RemoveItem(ctx, productID)
	}

	e.mu.Lock()
	line, ok := e.cart.Lines[productID]
	if !ok {
		e.mu.Unlock()
		return nil
	}
	line.Quantity = qty
	e.cart.Lines[productID] = line
	snapshot := e.cart.Clone()
	e.mu.Unlock()

	e.persist(ctx, "set_quantity", snapshot)
	return nil
}

// Clear empties the cart and persists the empty state to both stores.
func (e *Engine) Clear(ctx context.Context) error {
	e.mu.Lock()
	e.cart = domain.NewCart()
	snapshot := e.cart.Clone()
	e.mu.Unlock()

	e.persist(ctx, "clear", snapshot)
	return nil
}

func (e *Engine) Total() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cart.Total()
}

func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cart.Count()
}

func (e *Engine) IsEmpty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cart.IsEmpty()
}

// Snapshot returns the lines sorted by product ID, decoupled from the live
// map.
func (e *Engine) Snapshot() []domain.CartLine {
	e.mu.Lock()
	defer e.mu.Unlock()

	lines := make([]domain.CartLine, 0, len(e.cart.Lines))
	for _, line := range e.cart.Lines {
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].ProductID < lines[j].ProductID
	})
	return lines
}

// persist is the two-phase apply: the cache write happens on the caller's
// goroutine, the remote mirror does not block the caller's perceived success.
func (e *Engine) persist(ctx context.Context, op string, snapshot *domain.Cart) {
	if err := e.cache.Set(ctx, e.session, snapshot); err != nil {
		e.logger.Warn("local cart write failed",
			zap.String("session", e.session), zap.String("op", op), zap.Error(err))
	}

	if e.subject == "" {
		return
	}

	// The Add must happen before Close can observe the closed flag, or the
	// Wait in Close would miss this mirror and the send below could hit a
	// closed channel.
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.mirrorWG.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.mirrorWG.Done()
		mirrorCtx, cancel := context.WithTimeout(context.Background(), e.mirrorTimeout)
		defer cancel()

		if err := e.store.Save(mirrorCtx, e.subject, snapshot); err != nil {
			e.logger.Warn("remote cart mirror failed",
				zap.String("subject", e.subject), zap.String("op", op), zap.Error(err))
			select {
			case e.events <- SyncEvent{Op: op, Err: err}:
			default:
			}
		}
	}()
}

// Flush waits for in-flight remote mirrors. Used on shutdown.
func (e *Engine) Flush() {
	e.mirrorWG.Wait()
}

// Close drains in-flight remote mirrors and closes the Events channel so the
// consumer's range loop terminates. The engine must not be handed out again
// after Close; further mutations still commit locally but are no longer
// mirrored. Safe to call more than once.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.mirrorWG.Wait()
	close(e.events)
}
