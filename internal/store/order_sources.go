package store

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/orders"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ordersCollection     = "orders"
	userOrdersCollection = "user_orders"
)

type orderItemDoc struct {
	ProductID    string `bson:"product_id"`
	Name         string `bson:"name"`
	UnitPrice    string `bson:"unit_price"`
	Quantity     int    `bson:"quantity"`
	ImageRef     string `bson:"image_ref,omitempty"`
	LineSubtotal string `bson:"line_subtotal"`
}

// orderDoc tolerates records written by other paths: either date field may be
// absent, which the read aggregator resolves.
type orderDoc struct {
	OrderID         string         `bson:"order_id"`
	SubjectID       string         `bson:"subject_id"`
	Items           []orderItemDoc `bson:"items"`
	ShippingAddress domain.Address `bson:"shipping_address"`
	PaymentMethod   string         `bson:"payment_method,omitempty"`
	TotalAmount     string         `bson:"total_amount"`
	Status          string         `bson:"status"`
	PaymentStatus   string         `bson:"payment_status"`
	CreatedAt       *time.Time     `bson:"created_at,omitempty"`
	OrderDate       *time.Time     `bson:"order_date,omitempty"`
}

func (d orderDoc) toRaw(source domain.OrderSource) orders.RawOrder {
	items := make([]domain.OrderItem, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, domain.OrderItem{
			ProductID:    item.ProductID,
			Name:         item.Name,
			UnitPrice:    parsePrice(item.UnitPrice),
			Quantity:     item.Quantity,
			ImageRef:     item.ImageRef,
			LineSubtotal: parsePrice(item.LineSubtotal),
		})
	}
	return orders.RawOrder{
		Order: domain.Order{
			ID:              d.OrderID,
			SubjectID:       d.SubjectID,
			Items:           items,
			ShippingAddress: d.ShippingAddress,
			PaymentMethod:   d.PaymentMethod,
			TotalAmount:     parsePrice(d.TotalAmount),
			Status:          domain.OrderStatus(d.Status),
			PaymentStatus:   domain.PaymentStatus(d.PaymentStatus),
			Source:          source,
		},
		CreationTime: d.CreatedAt,
		OrderDate:    d.OrderDate,
	}
}

// TopLevelOrders reads the flat remote order collection, filtered by subject
// and sorted by creation time descending.
type TopLevelOrders struct {
	collection *mongo.Collection
}

func NewTopLevelOrders(db *mongo.Database) *TopLevelOrders {
	return &TopLevelOrders{collection: db.Collection(ordersCollection)}
}

func (s *TopLevelOrders) Name() string {
	return string(domain.SourceRemoteTopLevel)
}

func (s *TopLevelOrders) Fetch(ctx context.Context, subject string) ([]orders.RawOrder, error) {
	filter := bson.M{"subject_id": subject}
	sort := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return fetchOrders(ctx, s.collection, filter, sort, domain.SourceRemoteTopLevel)
}

// UserScopedOrders reads the per-subject order subcollection, which keeps its
// own date field.
type UserScopedOrders struct {
	collection *mongo.Collection
}

func NewUserScopedOrders(db *mongo.Database) *UserScopedOrders {
	return &UserScopedOrders{collection: db.Collection(userOrdersCollection)}
}

func (s *UserScopedOrders) Name() string {
	return string(domain.SourceRemoteUserScoped)
}

func (s *UserScopedOrders) Fetch(ctx context.Context, subject string) ([]orders.RawOrder, error) {
	filter := bson.M{"subject_id": subject}
	sort := options.Find().SetSort(bson.D{{Key: "order_date", Value: -1}})
	return fetchOrders(ctx, s.collection, filter, sort, domain.SourceRemoteUserScoped)
}

func fetchOrders(ctx context.Context, collection *mongo.Collection, filter bson.M, opts *options.FindOptions, source domain.OrderSource) ([]orders.RawOrder, error) {
	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection.Name(), err)
	}
	defer cursor.Close(ctx)

	var raws []orders.RawOrder
	for cursor.Next(ctx) {
		var doc orderDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode order: %w", err)
		}
		raws = append(raws, doc.toRaw(source))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error on %s: %w", collection.Name(), err)
	}

	return raws, nil
}
