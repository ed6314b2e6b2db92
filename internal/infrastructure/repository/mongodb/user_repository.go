package mongodb

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/lllypuk/dwidmapper/internal/domain/errs"
	"github.com/lllypuk/dwidmapper/internal/domain/user"
)

// MongoUserRepository stores the user directory in a MongoDB collection.
// Documents carry a position field that fixes the directory order.
type MongoUserRepository struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

// UserRepoOption configures MongoUserRepository.
type UserRepoOption func(*MongoUserRepository)

// WithUserRepoLogger sets the logger for user repository.
func WithUserRepoLogger(logger *slog.Logger) UserRepoOption {
	return func(r *MongoUserRepository) {
		r.logger = logger
	}
}

// NewMongoUserRepository creates a MongoDB user repository.
func NewMongoUserRepository(collection *mongo.Collection, opts ...UserRepoOption) *MongoUserRepository {
	r := &MongoUserRepository{
		collection: collection,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Name implements dataset.Source.
func (r *MongoUserRepository) Name() string {
	return "mongodb:" + r.collection.Database().Name() + "." + r.collection.Name()
}

// Load implements dataset.Source. Records are returned by position, then by _id.
func (r *MongoUserRepository) Load(ctx context.Context) ([]user.Record, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "position", Value: 1},
		{Key: "_id", Value: 1},
	})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to query users", slog.String("error", err.Error()))
		return nil, HandleMongoError(err, "users")
	}
	defer cursor.Close(ctx)

	var docs []userDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, HandleMongoError(err, "users")
	}

	records := make([]user.Record, 0, len(docs))
	for i := range docs {
		rec, convErr := r.documentToRecord(&docs[i])
		if convErr != nil {
			return nil, convErr
		}
		records = append(records, rec)
	}

	return records, nil
}

// stagingSuffix names the collection ReplaceAll fills before swapping it in.
const stagingSuffix = "_staging"

// ReplaceAll replaces the collection content with records, keeping their order.
// Records are written to a staging collection carrying the same indexes, which
// then replaces the collection in a single rename. A failed write leaves the
// stored users untouched.
func (r *MongoUserRepository) ReplaceAll(ctx context.Context, records []user.Record) error {
	if len(records) == 0 {
		return errs.ErrEmptyDirectory
	}

	db := r.collection.Database()
	staging := db.Collection(r.collection.Name() + stagingSuffix)

	if err := staging.Drop(ctx); err != nil {
		return HandleMongoError(err, "users")
	}
	if err := r.copyIndexes(ctx, staging); err != nil {
		return err
	}

	docs := make([]any, 0, len(records))
	for i, rec := range records {
		docs = append(docs, r.recordToDocument(rec, i))
	}

	if _, err := staging.InsertMany(ctx, docs); err != nil {
		r.logger.ErrorContext(ctx, "failed to insert users",
			slog.Int("count", len(docs)),
			slog.String("error", err.Error()),
		)
		if dropErr := staging.Drop(ctx); dropErr != nil {
			r.logger.WarnContext(ctx, "failed to drop staging collection",
				slog.String("collection", staging.Name()),
				slog.String("error", dropErr.Error()),
			)
		}
		return HandleMongoError(err, "users")
	}

	rename := bson.D{
		{Key: "renameCollection", Value: db.Name() + "." + staging.Name()},
		{Key: "to", Value: db.Name() + "." + r.collection.Name()},
		{Key: "dropTarget", Value: true},
	}
	if err := db.Client().Database("admin").RunCommand(ctx, rename).Err(); err != nil {
		return HandleMongoError(err, "users")
	}

	r.logger.InfoContext(ctx, "users replaced", slog.Int("count", len(docs)))
	return nil
}

// copyIndexes recreates the collection's secondary indexes on dst.
func (r *MongoUserRepository) copyIndexes(ctx context.Context, dst *mongo.Collection) error {
	specs, err := r.collection.Indexes().ListSpecifications(ctx)
	if err != nil && !isNamespaceNotFound(err) {
		return HandleMongoError(err, "users")
	}

	for _, spec := range specs {
		if spec.Name == "_id_" {
			continue
		}
		opts := options.Index().SetName(spec.Name)
		if spec.Unique != nil {
			opts.SetUnique(*spec.Unique)
		}
		model := mongo.IndexModel{Keys: spec.KeysDocument, Options: opts}
		if _, err = dst.Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("failed to create index %s on %s: %w", spec.Name, dst.Name(), err)
		}
	}
	return nil
}

// Count returns the number of stored users.
func (r *MongoUserRepository) Count(ctx context.Context) (int, error) {
	count, err := CountAll(ctx, r.collection)
	if err != nil {
		return 0, HandleMongoError(err, "users")
	}
	return count, nil
}

// userDocument represents the document structure in MongoDB.
// UserID holds an int64, a double or a string depending on the dataset.
type userDocument struct {
	BaseDocument `bson:",inline"`

	UserID   any    `bson:"user_id"`
	UserName string `bson:"user_name"`
	Position int    `bson:"position"`
}

// recordToDocument converts a record into its document.
func (r *MongoUserRepository) recordToDocument(rec user.Record, position int) *userDocument {
	doc := &userDocument{
		UserID:   idToBSON(rec.ID()),
		UserName: rec.Name(),
		Position: position,
	}
	doc.SetTimestamps()
	return doc
}

// documentToRecord converts a document into a record.
func (r *MongoUserRepository) documentToRecord(doc *userDocument) (user.Record, error) {
	id, err := user.ParseID(doc.UserID)
	if err != nil {
		return user.Record{}, fmt.Errorf("user %q: %w", doc.UserName, err)
	}
	return user.NewRecord(id, doc.UserName)
}

// idToBSON picks the BSON type for an id: int64 or double for numeric ids,
// string otherwise.
func idToBSON(id user.ID) any {
	if !id.IsNumeric() {
		return id.String()
	}
	if n, err := strconv.ParseInt(id.String(), 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(id.String(), 64); err == nil {
		return f
	}
	return id.String()
}
