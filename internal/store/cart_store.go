package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrCartNotFound = errors.New("cart not found")

// CartStore holds the authoritative cart for a signed-in subject.
type CartStore interface {
	Load(ctx context.Context, subject string) (*domain.Cart, error)
	Save(ctx context.Context, subject string, cart *domain.Cart) error
	Delete(ctx context.Context, subject string) error
}

const cartsCollection = "carts"

type mongoCartStore struct {
	collection *mongo.Collection
}

func NewMongoCartStore(db *mongo.Database) CartStore {
	return &mongoCartStore{collection: db.Collection(cartsCollection)}
}

// Money is persisted as strings: BSON has no decimal type that round-trips
// through shopspring/decimal without loss.
type cartLineDoc struct {
	ProductID           string  `bson:"product_id"`
	Name                string  `bson:"name"`
	Quantity            int     `bson:"quantity"`
	UnitPrice           string  `bson:"unit_price"`
	DiscountedUnitPrice *string `bson:"discounted_unit_price,omitempty"`
	ImageRef            string  `bson:"image_ref,omitempty"`
}

type cartDoc struct {
	SubjectID string        `bson:"subject_id"`
	Lines     []cartLineDoc `bson:"lines"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

func (m *mongoCartStore) Load(ctx context.Context, subject string) (*domain.Cart, error) {
	var doc cartDoc

	filter := bson.M{"subject_id": subject}
	err := m.collection.FindOne(ctx, filter).Decode(&doc)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	cart := domain.NewCart()
	for _, line := range doc.Lines {
		if line.ProductID == "" {
			continue
		}
		cart.Lines[line.ProductID] = domain.NormalizeLine(domain.CartLine{
			ProductID:           line.ProductID,
			Name:                line.Name,
			Quantity:            line.Quantity,
			UnitPrice:           parsePrice(line.UnitPrice),
			DiscountedUnitPrice: parseOptionalPrice(line.DiscountedUnitPrice),
			ImageRef:            line.ImageRef,
		})
	}
	return cart, nil
}

func (m *mongoCartStore) Save(ctx context.Context, subject string, cart *domain.Cart) error {
	now := time.Now()

	doc := cartDoc{
		SubjectID: subject,
		Lines:     make([]cartLineDoc, 0, len(cart.Lines)),
		UpdatedAt: now,
	}
	for _, line := range cart.Lines {
		doc.Lines = append(doc.Lines, cartLineDoc{
			ProductID:           line.ProductID,
			Name:                line.Name,
			Quantity:            line.Quantity,
			UnitPrice:           line.UnitPrice.String(),
			DiscountedUnitPrice: formatOptionalPrice(line.DiscountedUnitPrice),
			ImageRef:            line.ImageRef,
		})
	}

	filter := bson.M{"subject_id": subject}
	update := bson.M{
		"$set":         bson.M{"lines": doc.Lines, "updated_at": now},
		"$setOnInsert": bson.M{"subject_id": subject, "created_at": now},
	}
	opts := options.Update().SetUpsert(true)

	if _, err := m.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to upsert cart: %w", err)
	}

	return nil
}

func (m *mongoCartStore) Delete(ctx context.Context, subject string) error {
	filter := bson.M{"subject_id": subject}
	if _, err := m.collection.DeleteOne(ctx, filter); err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}

// parsePrice falls back to zero on garbage, matching the fill-missing-with-0
// rule applied when adopting a stored cart.
func parsePrice(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseOptionalPrice(s *string) *decimal.Decimal {
	if s == nil {
		return nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil
	}
	return &d
}

func formatOptionalPrice(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
