package ledger

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"priceatlas/cpiworker/internal/catalog"
)

// MongoLedger implements Ledger over MongoDB collections.
type MongoLedger struct {
	products     *mongo.Collection
	retailers    *mongo.Collection
	observations *mongo.Collection
}

// NewMongoLedger creates a ledger over the given database.
func NewMongoLedger(db *mongo.Database) *MongoLedger {
	return &MongoLedger{
		products:     db.Collection("products"),
		retailers:    db.Collection("retailers"),
		observations: db.Collection("price_observations"),
	}
}

// Connect opens a MongoDB connection and verifies it with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	clientOptions := options.Client().ApplyURI(uri)
	clientOptions.SetMaxPoolSize(10)
	clientOptions.SetMaxConnIdleTime(30 * time.Second)
	clientOptions.SetTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

// FindExisting reports whether an observation exists for the pair in the
// period starting at periodStart.
func (l *MongoLedger) FindExisting(ctx context.Context, productID, retailerID string, periodStart time.Time) (bool, error) {
	filter := bson.M{
		"product_id":  productID,
		"retailer_id": retailerID,
		"observed_at": bson.M{"$gte": periodStart},
	}

	count, err := l.observations.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check existing observation: %w", err)
	}
	return count > 0, nil
}

// PersistPrice appends one observation. Category, country and location ids
// default to 1 when the product record carries none.
func (l *MongoLedger) PersistPrice(ctx context.Context, product catalog.Product, retailerID string, price float64, observedAt time.Time) error {
	obs := catalog.PriceObservation{
		ProductID:  product.ID,
		RetailerID: retailerID,
		EAN:        product.EAN,
		Name:       product.Name,
		Price:      price,
		CategoryID: defaultID(product.CategoryID),
		CountryID:  defaultID(product.CountryID),
		LocationID: defaultID(product.LocationID),
		ObservedAt: observedAt,
	}

	if _, err := l.observations.InsertOne(ctx, obs); err != nil {
		return fmt.Errorf("failed to persist price observation: %w", err)
	}
	return nil
}

// FetchProducts returns the products covered by the scope.
func (l *MongoLedger) FetchProducts(ctx context.Context, scope Scope) ([]catalog.Product, error) {
	filter := bson.M{}
	opts := options.Find()

	switch {
	case scope.ProductID != "":
		filter["_id"] = scope.ProductID
	case !scope.All && scope.Limit > 0:
		opts.SetLimit(int64(scope.Limit))
	}

	cursor, err := l.products.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}
	defer cursor.Close(ctx)

	var products []catalog.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}
	return products, nil
}

// FetchRetailers returns all known retailers.
func (l *MongoLedger) FetchRetailers(ctx context.Context) ([]catalog.Retailer, error) {
	cursor, err := l.retailers.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch retailers: %w", err)
	}
	defer cursor.Close(ctx)

	var retailers []catalog.Retailer
	if err := cursor.All(ctx, &retailers); err != nil {
		return nil, fmt.Errorf("failed to decode retailers: %w", err)
	}
	return retailers, nil
}

func defaultID(id int) int {
	if id <= 0 {
		return 1
	}
	return id
}
