package http

import (
	"context"
	"sync"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/cart"
	"github.com/fjod/storefront/internal/checkout"
	"github.com/fjod/storefront/internal/identity"
	"github.com/fjod/storefront/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// SessionHub hands out per-session engines and checkout orchestrators. An
// engine is rebuilt whenever the session's subject changes, which is what
// re-runs the cart initialization protocol on sign-in and sign-out.
type SessionHub struct {
	identity identity.Provider
	cache    cache.CartCache
	store    store.CartStore
	charges  checkout.ChargeService
	writer   checkout.OrderWriter
	flatFee  decimal.Decimal
	logger   *zap.Logger

	mu        sync.Mutex
	engines   map[string]*cart.Engine
	checkouts map[string]*checkout.Orchestrator
	warnings  map[string]string
	sfg       singleflight.Group
}

func NewSessionHub(
	provider identity.Provider,
	cartCache cache.CartCache,
	cartStore store.CartStore,
	charges checkout.ChargeService,
	writer checkout.OrderWriter,
	flatFee decimal.Decimal,
	logger *zap.Logger,
) *SessionHub {
	return &SessionHub{
		identity:  provider,
		cache:     cartCache,
		store:     cartStore,
		charges:   charges,
		writer:    writer,
		flatFee:   flatFee,
		logger:    logger,
		engines:   make(map[string]*cart.Engine),
		checkouts: make(map[string]*checkout.Orchestrator),
		warnings:  make(map[string]string),
	}
}

func (h *SessionHub) Engine(ctx context.Context, session string) (*cart.Engine, error) {
	subject, err := h.identity.CurrentSubject(ctx, session)
	if err != nil {
		// An unreachable identity service degrades to anonymous rather
		// than blocking the cart.
		h.logger.Warn("identity lookup failed, treating session as anonymous",
			zap.String("session", session), zap.Error(err))
		subject = ""
	}

	// Concurrent requests for the same session collapse into one build, so
	// exactly one engine ever serves a session at a time. Building outside
	// the singleflight would let two racing requests each Init their own
	// engine and overwrite each other's cache writes.
	v, err, _ := h.sfg.Do(session, func() (interface{}, error) {
		h.mu.Lock()
		if eng, ok := h.engines[session]; ok && eng.Subject() == subject {
			h.mu.Unlock()
			return eng, nil
		}
		h.mu.Unlock()

		eng := cart.NewEngine(session, subject, h.cache, h.store, h.logger)
		if err := eng.Init(ctx); err != nil {
			return nil, err
		}

		h.mu.Lock()
		replaced := h.engines[session]
		h.engines[session] = eng
		h.mu.Unlock()
		if replaced != nil {
			go replaced.Close()
		}

		go h.watchSyncEvents(session, eng)
		return eng, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*cart.Engine), nil
}

// watchSyncEvents turns remote mirror failures into a per-session warning the
// next cart read surfaces once.
func (h *SessionHub) watchSyncEvents(session string, eng *cart.Engine) {
	for event := range eng.Events() {
		h.mu.Lock()
		h.warnings[session] = "your cart could not be saved to your account; it is kept on this device"
		h.mu.Unlock()
		h.logger.Warn("cart sync event",
			zap.String("session", session),
			zap.String("op", event.Op),
			zap.Error(event.Err))
	}
}

// PopWarning returns and clears the pending sync warning for a session.
func (h *SessionHub) PopWarning(session string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	warning := h.warnings[session]
	delete(h.warnings, session)
	return warning
}

// Checkout returns the session's orchestrator, starting a fresh one when none
// exists or the previous one already completed.
func (h *SessionHub) Checkout(ctx context.Context, session string) (*checkout.Orchestrator, error) {
	eng, err := h.Engine(ctx, session)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if orch, ok := h.checkouts[session]; ok && orch.Stage() != checkout.StageConfirmation {
		return orch, nil
	}

	orch := checkout.NewOrchestrator(eng, eng.Subject(), h.charges, h.writer, h.flatFee, h.logger)
	h.checkouts[session] = orch
	return orch, nil
}

// CurrentCheckout returns the orchestrator without starting a new one.
func (h *SessionHub) CurrentCheckout(session string) (*checkout.Orchestrator, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	orch, ok := h.checkouts[session]
	return orch, ok
}

// Drop forgets the session's engine and checkout so the next request rebuilds
// them. Called on identity transitions. The dropped engine is closed so its
// event watcher terminates instead of leaking per sign-in.
func (h *SessionHub) Drop(session string) {
	h.mu.Lock()
	eng := h.engines[session]
	delete(h.engines, session)
	delete(h.checkouts, session)
	h.mu.Unlock()

	if eng != nil {
		go eng.Close()
	}
}

// Close drains every live engine's in-flight remote mirrors. Used on shutdown
// so queued cart writes reach the store before the connections go away.
func (h *SessionHub) Close() {
	h.mu.Lock()
	engines := make([]*cart.Engine, 0, len(h.engines))
	for _, eng := range h.engines {
		engines = append(engines, eng)
	}
	h.engines = make(map[string]*cart.Engine)
	h.mu.Unlock()

	for _, eng := range engines {
		eng.Close()
	}
}
