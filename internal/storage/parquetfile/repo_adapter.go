package parquetfile

import (
	"context"

	"bulkimport/internal/config"
	"bulkimport/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

var (
	_ storage.Repository = (*wrappedRepo)(nil)
	_ storage.Finisher   = (*wrappedRepo)(nil)
)

// init registers the "parquet" backend; the storage DSN is the output path.
func init() {
	storage.Register("parquet", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{Path: cfg.DSN})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL("parquet", func(context.Context, storage.Repository, config.Pipeline) error {
		return nil
	})
}

type wrappedRepo struct {
	*Repository
	closeFn func()
}

func (w *wrappedRepo) Close() { w.closeFn() }
