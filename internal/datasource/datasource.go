// Package datasource defines where import input comes from. Implementations
// live in subpackages: file for local paths and httpds for HTTP downloads.
package datasource

import (
	"context"
	"io"
)

// Source opens the input as decoded UTF-8 text. Every Open returns an
// independent reader that the caller must close.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
