package proxy

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store over a MongoDB collection.
type MongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore creates a proxy store backed by the "proxies" collection.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		collection: db.Collection("proxies"),
	}
}

// BestActiveProxy returns the most recently health-checked active proxy.
// Recency of the last check is the freshness heuristic for reachability.
func (s *MongoStore) BestActiveProxy(ctx context.Context) (*Proxy, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "last_checked", Value: -1}})

	var proxy Proxy
	err := s.collection.FindOne(ctx, bson.M{"status": StatusActive}, opts).Decode(&proxy)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query best active proxy: %w", err)
	}
	return &proxy, nil
}

// Get returns the proxy with the given id, or (nil, nil) when unknown.
func (s *MongoStore) Get(ctx context.Context, id string) (*Proxy, error) {
	var proxy Proxy
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&proxy)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get proxy: %w", err)
	}
	return &proxy, nil
}

// UpdateHealth overwrites the health counters and status of a proxy.
func (s *MongoStore) UpdateHealth(ctx context.Context, id string, failCount, successCount int, status Status) error {
	filter := bson.M{"_id": id}
	update := bson.M{
		"$set": bson.M{
			"fail_count":    failCount,
			"success_count": successCount,
			"status":        status,
			"last_checked":  time.Now(),
		},
	}

	_, err := s.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update proxy health: %w", err)
	}
	return nil
}
