package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionProducts is the catalogue collection shared with the storefront admin.
const CollectionProducts = "products"

type productDocument struct {
	ID       any     `bson:"_id"`
	Name     string  `bson:"name"`
	SKU      string  `bson:"skuCode,omitempty"`
	Price    float64 `bson:"price"`
	Discount int     `bson:"discount"`
	Stock    int     `bson:"stock"`
	Sale     int     `bson:"sale"`
}

func (d productDocument) toDomain() domain.Product {
	return domain.Product{
		ID:       idString(d.ID),
		Name:     d.Name,
		SKU:      d.SKU,
		Price:    decimal.NewFromFloat(d.Price).Round(2),
		Discount: d.Discount,
		Stock:    d.Stock,
		Sale:     d.Sale,
	}
}

// ProductStore reads the catalogue and keeps the stock ledger in MongoDB.
// Each adjustment is one findOneAndUpdate guarded on the current stock.
type ProductStore struct {
	products *mongo.Collection
}

var _ ports.ProductStore = (*ProductStore)(nil)

func NewProductStore(db *mongo.Database) *ProductStore {
	return &ProductStore{products: db.Collection(CollectionProducts)}
}

func (s *ProductStore) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	var doc productDocument
	err := s.products.FindOne(ctx, bson.M{"_id": idFilter(id)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ports.ErrProductNotFound
		}
		return nil, fmt.Errorf("find product: %w", err)
	}

	product := doc.toDomain()
	return &product, nil
}

func (s *ProductStore) GetStock(ctx context.Context, id string) (domain.StockLevel, error) {
	opts := options.FindOne().SetProjection(bson.M{"stock": 1, "sale": 1})

	var doc productDocument
	err := s.products.FindOne(ctx, bson.M{"_id": idFilter(id)}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.StockLevel{}, ports.ErrProductNotFound
		}
		return domain.StockLevel{}, fmt.Errorf("find stock: %w", err)
	}
	return domain.StockLevel{Stock: doc.Stock, Sale: doc.Sale}, nil
}

func (s *ProductStore) AdjustStock(ctx context.Context, id string, stockDelta, saleDelta int) (domain.StockLevel, error) {
	filter := bson.M{
		"_id":   idFilter(id),
		"stock": bson.M{"$gte": -stockDelta},
	}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"stock": bson.M{"$add": bson.A{"$stock", stockDelta}},
			"sale":  bson.M{"$max": bson.A{0, bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$sale", 0}}, saleDelta}}}},
		}}},
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"stock": 1, "sale": 1})

	var doc productDocument
	err := s.products.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		return domain.StockLevel{Stock: doc.Stock, Sale: doc.Sale}, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return domain.StockLevel{}, fmt.Errorf("adjust stock: %w", err)
	}

	current, err := s.GetStock(ctx, id)
	if err != nil {
		return domain.StockLevel{}, err
	}
	return domain.StockLevel{}, &domain.InsufficientStockError{
		ProductID: id,
		Available: current.Stock,
		Requested: -stockDelta,
	}
}

// Upsert replaces a catalogue entry. It is used for seeding and by tests.
func (s *ProductStore) Upsert(ctx context.Context, product domain.Product) error {
	price, _ := product.Price.Float64()
	doc := productDocument{
		ID:       idFilter(product.ID),
		Name:     product.Name,
		SKU:      product.SKU,
		Price:    price,
		Discount: product.Discount,
		Stock:    product.Stock,
		Sale:     product.Sale,
	}

	_, err := s.products.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

// idFilter matches catalogue ids written as ObjectIDs as well as plain string keys.
func idFilter(id string) any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

func idString(v any) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}
