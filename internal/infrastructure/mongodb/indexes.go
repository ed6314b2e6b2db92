// Package mongodb provides MongoDB infrastructure components including index management.
package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// CollectionUsers is the default collection holding the user directory.
const CollectionUsers = "users"

// IndexDefinition describes a MongoDB index to be created.
type IndexDefinition struct {
	Collection string
	Name       string
	Keys       bson.D
	Unique     bool
}

// CreateAllIndexes creates all necessary indexes for the user collection.
// This function is idempotent - calling it multiple times is safe.
func CreateAllIndexes(ctx context.Context, db *mongo.Database, collection string) error {
	for _, idx := range GetUserIndexes(collection) {
		coll := db.Collection(idx.Collection)
		model := mongo.IndexModel{
			Keys:    idx.Keys,
			Options: options.Index().SetName(idx.Name).SetUnique(idx.Unique),
		}

		if _, err := coll.Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("failed to create index %s on collection %s: %w",
				idx.Name, idx.Collection, err)
		}
	}

	return nil
}

// GetUserIndexes returns index definitions for the user directory collection.
func GetUserIndexes(collection string) []IndexDefinition {
	if collection == "" {
		collection = CollectionUsers
	}

	return []IndexDefinition{
		{
			// Usernames are the directory key
			Collection: collection,
			Name:       "idx_users_user_name_unique",
			Keys:       bson.D{{Key: "user_name", Value: 1}},
			Unique:     true,
		},
		{
			// Load order
			Collection: collection,
			Name:       "idx_users_position",
			Keys:       bson.D{{Key: "position", Value: 1}, {Key: "_id", Value: 1}},
		},
	}
}
