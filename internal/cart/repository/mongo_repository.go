package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/shop-api/internal/cart/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const usersCollection = "users"

type mongoRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoRepository(db *mongo.Database) CartRepository {
	return &mongoRepository{
		collection: db.Collection(usersCollection),
		now:        time.Now,
	}
}

func (m *mongoRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var cart domain.Cart

	err := m.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	if cart.Items == nil {
		cart.Items = domain.Snapshot{}
	}

	return &cart, nil
}

func (m *mongoRepository) ReplaceCart(ctx context.Context, userID string, items domain.Snapshot, seq int64) (*domain.Cart, error) {
	filter := bson.M{"_id": userID}
	set := bson.M{
		"cartItems": items.Clone(),
		"updatedAt": m.now().UTC(),
	}
	update := bson.M{"$set": set}

	if seq > 0 {
		// A stale seq leaves the filter unmatched; the upsert then collides on
		// _id and surfaces as a duplicate key error.
		filter["$or"] = bson.A{
			bson.M{"cartSeq": bson.M{"$lt": seq}},
			bson.M{"cartSeq": bson.M{"$exists": false}},
		}
		set["cartSeq"] = seq
	} else {
		update["$setOnInsert"] = bson.M{"cartSeq": int64(0)}
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var cart domain.Cart
	err := m.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&cart)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrStaleSnapshot
		}
		return nil, fmt.Errorf("failed to replace cart: %w", err)
	}
	if cart.Items == nil {
		cart.Items = domain.Snapshot{}
	}

	return &cart, nil
}

func (m *mongoRepository) ClearCart(ctx context.Context, userID string) error {
	update := bson.M{
		"$set": bson.M{
			"cartItems": domain.Snapshot{},
			"updatedAt": m.now().UTC(),
		},
	}

	result, err := m.collection.UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrCartNotFound
	}

	return nil
}
