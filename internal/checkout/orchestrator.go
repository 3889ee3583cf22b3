package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/domain"
	apperrors "github.com/fjod/storefront/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Stage string

const (
	StageShipping     Stage = "shipping"
	StagePayment      Stage = "payment"
	StageConfirmation Stage = "confirmation"
)

type CardDetails struct {
	Number   string `json:"number"`
	ExpMonth int    `json:"exp_month"`
	ExpYear  int    `json:"exp_year"`
	CVC      string `json:"cvc"`
}

// ChargeService is the opaque payment provider: an approved-but-unconfirmed
// authorization first, then a confirmation against it.
type ChargeService interface {
	CreateAuthorization(ctx context.Context, amount decimal.Decimal, metadata map[string]string) (clientSecret string, err error)
	ConfirmPayment(ctx context.Context, clientSecret string, details CardDetails) error
}

// OrderWriter is the single write target for completed orders.
type OrderWriter interface {
	CreateOrder(ctx context.Context, order domain.Order) error
}

// CartEngine is the slice of the reconciliation engine checkout needs.
type CartEngine interface {
	Snapshot() []domain.CartLine
	IsEmpty() bool
	Clear(ctx context.Context) error
}

// Result is what the confirmation page shows. SyncWarning means the order
// write failed after a successful charge: the order is considered placed and
// the user is told to check order history, never re-charged.
type Result struct {
	OrderID     string          `json:"order_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	SyncWarning bool            `json:"sync_warning"`
}

// Orchestrator walks one session through shipping, payment and confirmation.
// The shipping-to-payment edge is re-enterable on failure; once payment
// succeeds there is no way back and the draft is frozen.
type Orchestrator struct {
	engine  CartEngine
	subject string
	charges ChargeService
	writer  OrderWriter
	logger  *zap.Logger
	flatFee decimal.Decimal

	mu      sync.Mutex
	stage   Stage
	address *domain.Address
	draft   *domain.Order
	result  *Result

	now   func() time.Time
	newID func() string
}

func NewOrchestrator(engine CartEngine, subject string, charges ChargeService, writer OrderWriter, flatFee decimal.Decimal, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		engine:  engine,
		subject: subject,
		charges: charges,
		writer:  writer,
		logger:  logger,
		flatFee: flatFee,
		stage:   StageShipping,
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
}

func (o *Orchestrator) Stage() Stage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stage
}

func (o *Orchestrator) Result() *Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.result
}

// SubmitShipping validates and records the shipping address. Once payment
// has succeeded it has no effect: the draft's items and total are frozen.
func (o *Orchestrator) SubmitShipping(address domain.Address) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stage == StageConfirmation {
		return nil
	}

	if fields := address.Validate(); len(fields) > 0 {
		return &apperrors.ErrValidation{Fields: fields}
	}

	o.address = &address
	o.stage = StagePayment
	return nil
}

// Pay runs the payment step: precondition checks, draft freeze, charge
// authorization, confirmation, then the write fan-out. Payment success is
// the irreversible event; the cart is cleared and the stage advances to
// confirmation even if persisting the order afterwards fails.
func (o *Orchestrator) Pay(ctx context.Context, card CardDetails) (*Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stage == StageConfirmation {
		return o.result, nil
	}
	if o.stage != StagePayment || o.address == nil {
		return nil, &apperrors.ErrPreconditionFailed{Reason: "shipping address required"}
	}
	if o.subject == "" {
		return nil, &apperrors.ErrPreconditionFailed{Reason: "authentication required"}
	}
	if o.engine.IsEmpty() {
		return nil, &apperrors.ErrPreconditionFailed{Reason: "cart is empty"}
	}

	draft := o.buildDraft()

	metadata := map[string]string{
		"order_id":   draft.ID,
		"subject_id": draft.SubjectID,
		"total":      draft.TotalAmount.String(),
	}
	clientSecret, err := o.charges.CreateAuthorization(ctx, draft.TotalAmount, metadata)
	if err != nil {
		return nil, &apperrors.ErrPaymentSetup{Cause: err}
	}
	if err := o.charges.ConfirmPayment(ctx, clientSecret, card); err != nil {
		return nil, &apperrors.ErrPaymentSetup{Cause: err}
	}

	// Past this point the charge has settled; nothing below may fail the
	// checkout.
	draft.PaymentStatus = domain.PaymentStatusPaid
	o.draft = &draft

	result := &Result{OrderID: draft.ID, TotalAmount: draft.TotalAmount}
	if writeErr := o.writer.CreateOrder(ctx, draft); writeErr != nil {
		o.logger.Warn("order write failed after successful payment",
			zap.String("order_id", draft.ID),
			zap.String("subject", draft.SubjectID),
			zap.Error(writeErr))
		result.SyncWarning = true
	}

	if clearErr := o.engine.Clear(ctx); clearErr != nil {
		o.logger.Warn("cart clear failed after checkout", zap.String("order_id", draft.ID), zap.Error(clearErr))
	}

	o.result = result
	o.stage = StageConfirmation
	return result, nil
}

// buildDraft snapshots the cart into an immutable priced order. Line
// subtotals are computed from the effective unit price once, here, and then
// persisted as-is.
func (o *Orchestrator) buildDraft() domain.Order {
	lines := o.engine.Snapshot()
	items := make([]domain.OrderItem, 0, len(lines))
	subtotal := decimal.Zero
	for _, line := range lines {
		lineSubtotal := line.Subtotal()
		items = append(items, domain.OrderItem{
			ProductID:    line.ProductID,
			Name:         line.Name,
			UnitPrice:    line.EffectiveUnitPrice(),
			Quantity:     line.Quantity,
			ImageRef:     line.ImageRef,
			LineSubtotal: lineSubtotal,
		})
		subtotal = subtotal.Add(lineSubtotal)
	}

	fee := domain.ShippingFee(subtotal, o.flatFee)

	return domain.Order{
		ID:              o.newID(),
		SubjectID:       o.subject,
		Items:           items,
		ShippingAddress: *o.address,
		PaymentMethod:   "card",
		TotalAmount:     subtotal.Add(fee),
		Status:          domain.OrderStatusProcessing,
		PaymentStatus:   domain.PaymentStatusPending,
		PlacedAt:        o.now(),
	}
}
