package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/storefront/internal/checkout"
	"github.com/shopspring/decimal"
)

// IntentCreator obtains the client secret for a charge. The primary API
// fronts the payment provider for this step so the provider's secret key
// never has to mint intents from here.
type IntentCreator interface {
	CreatePaymentIntent(ctx context.Context, amount decimal.Decimal, metadata map[string]string) (string, error)
}

// HTTPChargeService implements checkout.ChargeService: authorization secrets
// come from the intent creator, confirmation goes to the provider's REST
// surface. The provider handles idempotency of abandoned authorizations on
// its side.
type HTTPChargeService struct {
	intents    IntentCreator
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewHTTPChargeService(intents IntentCreator, baseURL, secretKey string) *HTTPChargeService {
	return &HTTPChargeService{
		intents:   intents,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (s *HTTPChargeService) CreateAuthorization(ctx context.Context, amount decimal.Decimal, metadata map[string]string) (string, error) {
	return s.intents.CreatePaymentIntent(ctx, amount, metadata)
}

type confirmRequest struct {
	ClientSecret string               `json:"client_secret"`
	Card         checkout.CardDetails `json:"card"`
}

func (s *HTTPChargeService) ConfirmPayment(ctx context.Context, clientSecret string, details checkout.CardDetails) error {
	_, err := s.post(ctx, "/confirm", confirmRequest{ClientSecret: clientSecret, Card: details})
	return err
}

func (s *HTTPChargeService) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.secretKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("charge provider returned %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
