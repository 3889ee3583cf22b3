package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/orders"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Client speaks to the primary (legacy relational) API. All calls go through
// a circuit breaker: once the API starts failing, callers get fast failures
// instead of hanging requests, and the read aggregator degrades gracefully.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     *zap.Logger
}

func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "primary-api",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		breaker: breaker,
		logger:  logger,
	}
}

type orderItemPayload struct {
	ProductID    string          `json:"product_id"`
	Name         string          `json:"name"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity"`
	ImageRef     string          `json:"image_ref,omitempty"`
	LineSubtotal decimal.Decimal `json:"line_subtotal"`
}

type orderPayload struct {
	ID              string             `json:"id"`
	SubjectID       string             `json:"subject_id"`
	Items           []orderItemPayload `json:"items"`
	ShippingAddress domain.Address     `json:"shipping_address"`
	PaymentMethod   string             `json:"payment_method,omitempty"`
	TotalAmount     decimal.Decimal    `json:"total_amount"`
	Status          string             `json:"status"`
	PaymentStatus   string             `json:"payment_status"`
	CreationTime    *time.Time         `json:"creation_time,omitempty"`
	OrderDate       *time.Time         `json:"order_date,omitempty"`
}

// ListOrders implements orders.Source over GET /orders?subject=.
func (c *Client) ListOrders(ctx context.Context, subject string) ([]orders.RawOrder, error) {
	endpoint := fmt.Sprintf("%s/orders?subject=%s", c.baseURL, url.QueryEscape(subject))
	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var payloads []orderPayload
	if err := json.Unmarshal(body, &payloads); err != nil {
		return nil, fmt.Errorf("failed to decode orders response: %w", err)
	}

	raws := make([]orders.RawOrder, 0, len(payloads))
	for _, p := range payloads {
		raws = append(raws, p.toRaw())
	}
	return raws, nil
}

func (c *Client) Name() string {
	return string(domain.SourcePrimaryAPI)
}

// Fetch satisfies orders.Source.
func (c *Client) Fetch(ctx context.Context, subject string) ([]orders.RawOrder, error) {
	return c.ListOrders(ctx, subject)
}

// CreateOrder posts a completed order via POST /orders.
func (c *Client) CreateOrder(ctx context.Context, order domain.Order) error {
	payload := orderPayload{
		ID:              order.ID,
		SubjectID:       order.SubjectID,
		Items:           make([]orderItemPayload, 0, len(order.Items)),
		ShippingAddress: order.ShippingAddress,
		PaymentMethod:   order.PaymentMethod,
		TotalAmount:     order.TotalAmount,
		Status:          string(order.Status),
		PaymentStatus:   string(order.PaymentStatus),
		OrderDate:       &order.PlacedAt,
	}
	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemPayload{
			ProductID:    item.ProductID,
			Name:         item.Name,
			UnitPrice:    item.UnitPrice,
			Quantity:     item.Quantity,
			ImageRef:     item.ImageRef,
			LineSubtotal: item.LineSubtotal,
		})
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}

	if _, err := c.do(ctx, http.MethodPost, c.baseURL+"/orders", jsonData); err != nil {
		return err
	}
	return nil
}

type paymentIntentRequest struct {
	Amount   decimal.Decimal   `json:"amount"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type paymentIntentResponse struct {
	ClientSecret string `json:"client_secret"`
}

// CreatePaymentIntent requests a charge authorization for the given amount
// via POST /payment-intent. The metadata travels opaquely to the provider.
func (c *Client) CreatePaymentIntent(ctx context.Context, amount decimal.Decimal, metadata map[string]string) (string, error) {
	jsonData, err := json.Marshal(paymentIntentRequest{Amount: amount, Metadata: metadata})
	if err != nil {
		return "", fmt.Errorf("failed to marshal payment intent request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, c.baseURL+"/payment-intent", jsonData)
	if err != nil {
		return "", err
	}

	var resp paymentIntentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode payment intent response: %w", err)
	}
	if resp.ClientSecret == "" {
		return "", fmt.Errorf("payment intent response missing client secret")
	}
	return resp.ClientSecret, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	return c.breaker.Execute(func() ([]byte, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("X-API-Key", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("primary API returned %d: %s", resp.StatusCode, string(respBody))
		}

		return respBody, nil
	})
}

func (p orderPayload) toRaw() orders.RawOrder {
	items := make([]domain.OrderItem, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, domain.OrderItem{
			ProductID:    item.ProductID,
			Name:         item.Name,
			UnitPrice:    item.UnitPrice,
			Quantity:     item.Quantity,
			ImageRef:     item.ImageRef,
			LineSubtotal: item.LineSubtotal,
		})
	}
	return orders.RawOrder{
		Order: domain.Order{
			ID:              p.ID,
			SubjectID:       p.SubjectID,
			Items:           items,
			ShippingAddress: p.ShippingAddress,
			PaymentMethod:   p.PaymentMethod,
			TotalAmount:     p.TotalAmount,
			Status:          domain.OrderStatus(p.Status),
			PaymentStatus:   domain.PaymentStatus(p.PaymentStatus),
			Source:          domain.SourcePrimaryAPI,
		},
		CreationTime: p.CreationTime,
		OrderDate:    p.OrderDate,
	}
}
