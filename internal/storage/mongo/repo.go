// Package mongo implements a MongoDB-backed storage.Repository. Each entity is
// one document keyed by _id; every family is an embedded document holding
// its qualifiers:
//
//	{ "_id": "42", "info": { "name": "ann", "age": "30" } }
//
// A batch becomes one unordered BulkWrite of upserting $set updates, so
// writing a cell replaces only that field and leaves the rest of the row.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"bulkimport/pkg/records"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DefaultDatabase is used when the URI has no database path.
const DefaultDatabase = "bulkimport"

// ErrFieldName is returned for a family or qualifier Mongo cannot store as a
// field name.
var ErrFieldName = errors.New("mongo: invalid field name")

// Config holds MongoDB repository configuration.
type Config struct {
	URI        string // mongodb:// or mongodb+srv:// connection string
	Collection string
}

// Repository is a MongoDB-backed implementation of storage.Repository.
type Repository struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewRepository connects, pings, and returns a Repository plus a Close function.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.Collection) == "" {
		return nil, nil, fmt.Errorf("mongo: collection must not be empty")
	}
	dbName, err := databaseFromURI(cfg.URI)
	if err != nil {
		return nil, nil, err
	}

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}

	closeFn := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(ctx)
	}
	return &Repository{
		client: client,
		coll:   client.Database(dbName).Collection(cfg.Collection),
	}, closeFn, nil
}

// databaseFromURI returns the database named in the URI path, or
// DefaultDatabase when there is none.
func databaseFromURI(uri string) (string, error) {
	if !strings.HasPrefix(uri, "mongodb://") && !strings.HasPrefix(uri, "mongodb+srv://") {
		return "", fmt.Errorf("mongo: uri must start with mongodb:// or mongodb+srv://")
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("mongo uri: %w", err)
	}
	if db := strings.Trim(u.Path, "/"); db != "" {
		return db, nil
	}
	return DefaultDatabase, nil
}

// fieldPath returns the dotted $set path for a cell.
func fieldPath(c records.Cell) (string, error) {
	for _, part := range []string{c.Family, c.Qualifier} {
		if part == "" || strings.HasPrefix(part, "$") || strings.Contains(part, ".") {
			return "", fmt.Errorf("%w %q in %s", ErrFieldName, part, c.Column())
		}
	}
	return c.Family + "." + c.Qualifier, nil
}

// buildModels groups cells by entity into one upsert per document, keeping
// first-seen entity order.
func buildModels(cells []records.Cell) ([]mongo.WriteModel, error) {
	sets := make(map[string]bson.D)
	order := make([]string, 0)
	for _, c := range cells {
		path, err := fieldPath(c)
		if err != nil {
			return nil, err
		}
		if _, ok := sets[c.EntityID]; !ok {
			order = append(order, c.EntityID)
		}
		sets[c.EntityID] = append(sets[c.EntityID], bson.E{Key: path, Value: c.Value})
	}

	models := make([]mongo.WriteModel, 0, len(order))
	for _, id := range order {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.D{{Key: "_id", Value: id}}).
			SetUpdate(bson.D{{Key: "$set", Value: sets[id]}}).
			SetUpsert(true))
	}
	return models, nil
}

// WriteCells upserts cells. A write error may leave part of the batch applied;
// the returned count is then 0 and the batch is safe to replay.
func (r *Repository) WriteCells(ctx context.Context, cells []records.Cell) (int64, error) {
	if len(cells) == 0 {
		return 0, nil
	}
	models, err := buildModels(cells)
	if err != nil {
		return 0, err
	}
	if _, err := r.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return 0, fmt.Errorf("bulk write: %w", err)
	}
	return int64(len(cells)), nil
}

// Exec accepts only the empty statement; collections are created on first write.
func (r *Repository) Exec(_ context.Context, stmt string) error {
	if strings.TrimSpace(stmt) == "" {
		return nil
	}
	return fmt.Errorf("mongo: Exec does not run statements")
}
