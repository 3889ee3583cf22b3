package orders

import (
	"context"
	"sort"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// StatusAll disables status filtering.
const StatusAll = "all"

// Aggregator merges a user's orders out of independent backends that were
// never transactionally consistent with each other. It is read-only and
// idempotent per call.
type Aggregator struct {
	sources []Source
	logger  *zap.Logger
	now     func() time.Time
}

func NewAggregator(logger *zap.Logger, sources ...Source) *Aggregator {
	return &Aggregator{
		sources: sources,
		logger:  logger,
		now:     time.Now,
	}
}

// Orders fans out to every source concurrently, merges the results by ID
// (first occurrence in source declaration order wins), and sorts by resolved
// timestamp descending. A failing source only reduces completeness: it is
// logged and contributes nothing, the call itself never errors.
func (a *Aggregator) Orders(ctx context.Context, subject string) ([]domain.Order, error) {
	if subject == "" {
		return nil, nil
	}

	results := make([][]RawOrder, len(a.sources))
	g := new(errgroup.Group)
	for i, src := range a.sources {
		i, src := i, src
		g.Go(func() error {
			recs, err := src.Fetch(ctx, subject)
			if err != nil {
				a.logger.Warn("order source unavailable",
					zap.String("source", src.Name()),
					zap.String("subject", subject),
					zap.Error(err))
				return nil
			}
			results[i] = recs
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]struct{})
	var merged []domain.Order
	for _, recs := range results {
		for _, rec := range recs {
			if _, dup := seen[rec.ID]; dup {
				continue
			}
			seen[rec.ID] = struct{}{}
			order := rec.Order
			order.PlacedAt = a.resolveTimestamp(rec.CreationTime, rec.OrderDate)
			merged = append(merged, order)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].PlacedAt.After(merged[j].PlacedAt)
	})

	return merged, nil
}

// resolveTimestamp prefers the creation time, falls back to the order date,
// and finally to the current time. A row is never failed for a missing date.
func (a *Aggregator) resolveTimestamp(creationTime, orderDate *time.Time) time.Time {
	if creationTime != nil && !creationTime.IsZero() {
		return *creationTime
	}
	if orderDate != nil && !orderDate.IsZero() {
		return *orderDate
	}
	return a.now()
}

// FilterByStatus is a pure function over an already-merged sequence; it never
// triggers a re-query. An empty status or StatusAll returns the input as is.
func FilterByStatus(list []domain.Order, status string) []domain.Order {
	if status == "" || status == StatusAll {
		return list
	}
	var filtered []domain.Order
	for _, order := range list {
		if string(order.Status) == status {
			filtered = append(filtered, order)
		}
	}
	return filtered
}
