package mongo

import (
	"context"
	"os"
	"testing"

	"bulkimport/internal/storage"
	"bulkimport/pkg/records"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

func TestDatabaseFromURI(t *testing.T) {
	tests := []struct {
		uri     string
		want    string
		wantErr bool
	}{
		{"mongodb://localhost:27017", DefaultDatabase, false},
		{"mongodb://localhost:27017/", DefaultDatabase, false},
		{"mongodb://u:p@db:27017/imports?authSource=admin", "imports", false},
		{"mongodb+srv://u:p@cluster.example.net/crm", "crm", false},
		{"postgres://localhost/x", "", true},
	}
	for _, tt := range tests {
		got, err := databaseFromURI(tt.uri)
		if tt.wantErr {
			assert.Error(t, err, tt.uri)
			continue
		}
		require.NoError(t, err, tt.uri)
		assert.Equal(t, tt.want, got, tt.uri)
	}
}

func TestFieldPath(t *testing.T) {
	p, err := fieldPath(records.Cell{Family: "info", Qualifier: "name"})
	require.NoError(t, err)
	assert.Equal(t, "info.name", p)

	for _, c := range []records.Cell{
		{Family: "in.fo", Qualifier: "n"},
		{Family: "info", Qualifier: "$n"},
		{Family: "", Qualifier: "n"},
	} {
		_, err := fieldPath(c)
		assert.ErrorIs(t, err, ErrFieldName, c.Column())
	}
}

func TestBuildModels_GroupsByEntity(t *testing.T) {
	models, err := buildModels([]records.Cell{
		{EntityID: "2", Family: "info", Qualifier: "n", Value: "bob"},
		{EntityID: "1", Family: "info", Qualifier: "n", Value: "ann"},
		{EntityID: "2", Family: "info", Qualifier: "a", Value: "41"},
	})
	require.NoError(t, err)
	require.Len(t, models, 2)

	first, ok := models[0].(*mongo.UpdateOneModel)
	require.True(t, ok)
	assert.Equal(t, bson.D{{Key: "_id", Value: "2"}}, first.Filter)
	assert.Equal(t, bson.D{{Key: "$set", Value: bson.D{
		{Key: "info.n", Value: "bob"},
		{Key: "info.a", Value: "41"},
	}}}, first.Update)
	require.NotNil(t, first.Upsert)
	assert.True(t, *first.Upsert)

	_, err = buildModels([]records.Cell{{EntityID: "1", Family: "a.b", Qualifier: "q"}})
	assert.ErrorIs(t, err, ErrFieldName)
}

func TestExec(t *testing.T) {
	r := &Repository{}
	assert.NoError(t, r.Exec(context.Background(), " "))
	assert.Error(t, r.Exec(context.Background(), "db.dropDatabase()"))
}

func TestRegistrationUsesHook(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var got Config
	closed := false
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		got = cfg
		return &Repository{}, func() { closed = true }, nil
	}

	repo, err := storage.New(context.Background(), storage.Config{Kind: "mongo", DSN: "mongodb://db/crm", Table: "people"})
	require.NoError(t, err)
	assert.Equal(t, Config{URI: "mongodb://db/crm", Collection: "people"}, got)
	repo.Close()
	assert.True(t, closed)
}

// Set TEST_MONGO_URI (e.g. mongodb://localhost:27017/bulkimport_test) to run.
func TestIntegration_WriteCells(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("skipping integration test: set TEST_MONGO_URI to run")
	}
	ctx := context.Background()
	repo, closeFn, err := NewRepository(ctx, Config{URI: uri, Collection: "cells_test"})
	require.NoError(t, err)
	defer closeFn()
	_ = repo.coll.Drop(ctx)

	_, err = repo.WriteCells(ctx, []records.Cell{
		{EntityID: "1", Family: "info", Qualifier: "n", Value: "ann"},
		{EntityID: "1", Family: "info", Qualifier: "a", Value: "30"},
	})
	require.NoError(t, err)
	_, err = repo.WriteCells(ctx, []records.Cell{{EntityID: "1", Family: "info", Qualifier: "n", Value: "anne"}})
	require.NoError(t, err)

	var doc struct {
		Info map[string]string `bson:"info"`
	}
	require.NoError(t, repo.coll.FindOne(ctx, bson.D{{Key: "_id", Value: "1"}}).Decode(&doc))
	assert.Equal(t, map[string]string{"n": "anne", "a": "30"}, doc.Info)
}
