package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fjod/storefront/internal/checkout"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubIntents struct {
	amount   decimal.Decimal
	metadata map[string]string
	err      error
}

func (s *stubIntents) CreatePaymentIntent(_ context.Context, amount decimal.Decimal, metadata map[string]string) (string, error) {
	s.amount = amount
	s.metadata = metadata
	if s.err != nil {
		return "", s.err
	}
	return "secret-1", nil
}

func TestCreateAuthorization_DelegatesToIntentCreator(t *testing.T) {
	intents := &stubIntents{}
	sut := NewHTTPChargeService(intents, "http://unused", "sk")

	secret, err := sut.CreateAuthorization(context.Background(), decimal.NewFromInt(60), map[string]string{"order_id": "o1"})
	require.NoError(t, err)
	assert.Equal(t, "secret-1", secret)
	assert.True(t, intents.amount.Equal(decimal.NewFromInt(60)))
	assert.Equal(t, "o1", intents.metadata["order_id"])
}

func TestConfirmPayment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/confirm", r.URL.Path)
		assert.Equal(t, "Bearer sk", r.Header.Get("Authorization"))

		var req confirmRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "secret-1", req.ClientSecret)
		assert.Equal(t, "4242", req.Card.Number)

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sut := NewHTTPChargeService(&stubIntents{}, server.URL, "sk")
	err := sut.ConfirmPayment(context.Background(), "secret-1", checkout.CardDetails{Number: "4242"})
	assert.NoError(t, err)
}

func TestConfirmPayment_ProviderRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "card declined", http.StatusPaymentRequired)
	}))
	defer server.Close()

	sut := NewHTTPChargeService(&stubIntents{}, server.URL, "sk")
	err := sut.ConfirmPayment(context.Background(), "secret-1", checkout.CardDetails{Number: "4000"})
	assert.ErrorContains(t, err, "402")
}
