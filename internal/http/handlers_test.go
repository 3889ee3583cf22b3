package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/cart"
	"github.com/fjod/storefront/internal/checkout"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/orders"
	"github.com/fjod/storefront/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockIdentity struct {
	m        sync.RWMutex
	subjects map[string]string
}

func newMockIdentity() *mockIdentity {
	return &mockIdentity{subjects: make(map[string]string)}
}

func (m *mockIdentity) CurrentSubject(_ context.Context, session string) (string, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.subjects[session], nil
}

func (m *mockIdentity) SignIn(_ context.Context, session, subject string) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.subjects[session] = subject
	return nil
}

func (m *mockIdentity) SignOut(_ context.Context, session string) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.subjects, session)
	return nil
}

type mockCartCache struct {
	m     sync.RWMutex
	carts map[string]*domain.Cart
}

func newMockCartCache() *mockCartCache {
	return &mockCartCache{carts: make(map[string]*domain.Cart)}
}

func (m *mockCartCache) Get(_ context.Context, session string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	cart, ok := m.carts[session]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return cart.Clone(), nil
}

func (m *mockCartCache) Set(_ context.Context, session string, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.carts[session] = cart.Clone()
	return nil
}

func (m *mockCartCache) Delete(_ context.Context, session string) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.carts, session)
	return nil
}

type mockCartStore struct {
	m     sync.RWMutex
	carts map[string]*domain.Cart
}

func newMockCartStore() *mockCartStore {
	return &mockCartStore{carts: make(map[string]*domain.Cart)}
}

func (m *mockCartStore) Load(_ context.Context, subject string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	cart, ok := m.carts[subject]
	if !ok {
		return nil, store.ErrCartNotFound
	}
	return cart.Clone(), nil
}

func (m *mockCartStore) Save(_ context.Context, subject string, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.carts[subject] = cart.Clone()
	return nil
}

func (m *mockCartStore) Delete(_ context.Context, subject string) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.carts, subject)
	return nil
}

type mockCharges struct {
	authErr error
}

func (m *mockCharges) CreateAuthorization(context.Context, decimal.Decimal, map[string]string) (string, error) {
	if m.authErr != nil {
		return "", m.authErr
	}
	return "secret-1", nil
}

func (m *mockCharges) ConfirmPayment(context.Context, string, checkout.CardDetails) error {
	return nil
}

type mockWriter struct {
	m    sync.Mutex
	err  error
	last *domain.Order
}

func (m *mockWriter) CreateOrder(_ context.Context, order domain.Order) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.last = &order
	return m.err
}

type stubSource struct {
	recs []orders.RawOrder
	err  error
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Fetch(context.Context, string) ([]orders.RawOrder, error) {
	return s.recs, s.err
}

type testEnv struct {
	router   http.Handler
	hub      *SessionHub
	identity *mockIdentity
	cache    *mockCartCache
	store    *mockCartStore
	charges  *mockCharges
	writer   *mockWriter
}

func newTestEnv(t *testing.T, sources ...orders.Source) *testEnv {
	t.Helper()
	env := &testEnv{
		identity: newMockIdentity(),
		cache:    newMockCartCache(),
		store:    newMockCartStore(),
		charges:  &mockCharges{},
		writer:   &mockWriter{},
	}
	logger := zap.NewNop()
	hub := NewSessionHub(env.identity, env.cache, env.store, env.charges, env.writer, decimal.NewFromInt(10), logger)
	env.hub = hub
	aggregator := orders.NewAggregator(logger, sources...)
	env.router = NewRouter(
		NewCartHandler(hub),
		NewOrdersHandler(aggregator, env.identity, logger),
		NewCheckoutHandler(hub),
		NewAuthHandler(env.identity, hub),
	)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, session string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if session != "" {
		req.Header.Set("X-Session-ID", session)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) CartResponseDTO {
	t.Helper()
	var dto CartResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	return dto
}

func addDress(qty int) AddItemRequestDTO {
	return AddItemRequestDTO{ProductID: "42", Name: "Dress", Price: decimal.NewFromInt(80), Quantity: qty}
}

func shippingAddress() domain.Address {
	return domain.Address{
		FullName:   "Ada Lovelace",
		Address:    "12 Analytical Way",
		City:       "London",
		PostalCode: "NW1",
		Country:    "UK",
		Phone:      "+44 20 0000",
	}
}

func TestMissingSessionHeader(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/cart", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/cart/items", "s1", addDress(1))
	require.Equal(t, http.StatusCreated, rec.Code)
	cart := decodeCart(t, rec)
	assert.Equal(t, 1, cart.Count)
	assert.True(t, cart.Total.Equal(decimal.NewFromInt(80)))

	rec = env.do(t, http.MethodPost, "/cart/items", "s1", addDress(2))
	require.Equal(t, http.StatusCreated, rec.Code)
	cart = decodeCart(t, rec)
	require.Len(t, cart.Lines, 1, "re-adding the same product merges lines")
	assert.Equal(t, 3, cart.Count)
	assert.True(t, cart.Total.Equal(decimal.NewFromInt(240)))

	rec = env.do(t, http.MethodPut, "/cart/items/42", "s1", UpdateQuantityRequestDTO{Quantity: 0})
	require.Equal(t, http.StatusOK, rec.Code)
	cart = decodeCart(t, rec)
	assert.Empty(t, cart.Lines)
}

func TestAddItem_MissingProductID(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/cart/items", "s1", AddItemRequestDTO{Quantity: 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignIn_RemoteCartWins(t *testing.T) {
	env := newTestEnv(t)

	remote := domain.NewCart()
	remote.Lines["7"] = domain.CartLine{ProductID: "7", Name: "Coat", Quantity: 2, UnitPrice: decimal.NewFromInt(120)}
	env.store.carts["subj1"] = remote

	// anonymous session builds a local cart first
	rec := env.do(t, http.MethodPost, "/cart/items", "s1", addDress(1))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/session/signin", "s1", SignInRequestDTO{Subject: "subj1"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/cart", "s1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decodeCart(t, rec)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, "7", cart.Lines[0].ProductID, "the non-empty remote cart replaces the anonymous one")
}

func TestOrdersEndpoint(t *testing.T) {
	src := &stubSource{recs: []orders.RawOrder{
		{Order: domain.Order{ID: "1", Status: domain.OrderStatusProcessing, Source: domain.SourcePrimaryAPI}},
		{Order: domain.Order{ID: "2", Status: domain.OrderStatusShipped, Source: domain.SourcePrimaryAPI}},
	}}
	env := newTestEnv(t, src)
	require.NoError(t, env.identity.SignIn(context.Background(), "s1", "subj1"))

	rec := env.do(t, http.MethodGet, "/orders", "s1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []domain.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2)

	rec = env.do(t, http.MethodGet, "/orders?status=shipped", "s1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "2", list[0].ID)
}

func TestOrdersEndpoint_AnonymousGetsEmptyList(t *testing.T) {
	env := newTestEnv(t, &stubSource{err: fmt.Errorf("should not matter")})

	rec := env.do(t, http.MethodGet, "/orders", "s1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestCheckoutFlowOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.identity.SignIn(context.Background(), "s1", "subj1"))

	// cart total 150: free shipping
	rec := env.do(t, http.MethodPost, "/cart/items", "s1", AddItemRequestDTO{ProductID: "9", Name: "Boots", Price: decimal.NewFromInt(75), Quantity: 2})
	require.Equal(t, http.StatusCreated, rec.Code)

	// incomplete address is rejected
	incomplete := shippingAddress()
	incomplete.Phone = ""
	rec = env.do(t, http.MethodPost, "/checkout/shipping", "s1", incomplete)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodPost, "/checkout/shipping", "s1", shippingAddress())
	require.Equal(t, http.StatusOK, rec.Code)

	// primary API is down: checkout still completes with a sync warning
	env.writer.err = fmt.Errorf("api down")
	rec = env.do(t, http.MethodPost, "/checkout/pay", "s1", checkout.CardDetails{Number: "4242"})
	require.Equal(t, http.StatusOK, rec.Code)

	var state CheckoutStateDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, checkout.StageConfirmation, state.Stage)
	require.NotNil(t, state.Result)
	assert.True(t, state.Result.SyncWarning)
	assert.True(t, state.Result.TotalAmount.Equal(decimal.NewFromInt(150)))

	// the cart was cleared even though the write failed
	rec = env.do(t, http.MethodGet, "/cart", "s1", nil)
	cart := decodeCart(t, rec)
	assert.Empty(t, cart.Lines)
}

func TestCheckout_UnauthenticatedPay(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/cart/items", "s1", addDress(1))
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = env.do(t, http.MethodPost, "/checkout/shipping", "s1", shippingAddress())
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/checkout/pay", "s1", checkout.CardDetails{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckout_EmptyCartPay(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.identity.SignIn(context.Background(), "s1", "subj1"))

	rec := env.do(t, http.MethodPost, "/checkout/shipping", "s1", shippingAddress())
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/checkout/pay", "s1", checkout.CardDetails{})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCheckout_PaymentFailureIs402(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.identity.SignIn(context.Background(), "s1", "subj1"))
	env.charges.authErr = fmt.Errorf("provider rejected")

	rec := env.do(t, http.MethodPost, "/cart/items", "s1", addDress(1))
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = env.do(t, http.MethodPost, "/checkout/shipping", "s1", shippingAddress())
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/checkout/pay", "s1", checkout.CardDetails{})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	// the cart survives a failed payment
	rec = env.do(t, http.MethodGet, "/cart", "s1", nil)
	cart := decodeCart(t, rec)
	assert.Len(t, cart.Lines, 1)
}

func eventsClosed(eng *cart.Engine) func() bool {
	return func() bool {
		select {
		case _, open := <-eng.Events():
			return !open
		default:
			return false
		}
	}
}

func TestHub_ConcurrentEngineRequestsShareOneEngine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const workers = 8
	engines := make([]*cart.Engine, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			eng, err := env.hub.Engine(ctx, "s1")
			assert.NoError(t, err)
			engines[i] = eng
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		assert.Same(t, engines[0], engines[i], "a session must never be served by two engines")
	}
}

func TestHub_DropClosesEngine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	eng1, err := env.hub.Engine(ctx, "s1")
	require.NoError(t, err)

	env.hub.Drop("s1")
	require.Eventually(t, eventsClosed(eng1), time.Second, 10*time.Millisecond,
		"the dropped engine's events channel must close so its watcher exits")

	eng2, err := env.hub.Engine(ctx, "s1")
	require.NoError(t, err)
	assert.NotSame(t, eng1, eng2)
}

func TestHub_SubjectChangeClosesReplacedEngine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	eng1, err := env.hub.Engine(ctx, "s1")
	require.NoError(t, err)

	// identity changes without an explicit Drop; the rebuild must still
	// retire the old engine
	require.NoError(t, env.identity.SignIn(ctx, "s1", "subj1"))
	eng2, err := env.hub.Engine(ctx, "s1")
	require.NoError(t, err)

	assert.NotSame(t, eng1, eng2)
	require.Eventually(t, eventsClosed(eng1), time.Second, 10*time.Millisecond)
}

func TestHub_CloseDrainsPendingMirrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.identity.SignIn(ctx, "s1", "subj1"))

	eng, err := env.hub.Engine(ctx, "s1")
	require.NoError(t, err)
	product := domain.Product{ID: "42", Name: "Dress", Price: decimal.NewFromInt(80)}
	require.NoError(t, eng.AddItem(ctx, product, 1))

	env.hub.Close()

	// no Eventually: Close returns only after the mirror landed
	stored, err := env.store.Load(ctx, "subj1")
	require.NoError(t, err)
	assert.Len(t, stored.Lines, 1)
}
