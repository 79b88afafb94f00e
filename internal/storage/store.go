// Package storage provides the key addressed byte stores used for raw logs,
// reports and the blacklist ledger, plus the repositories built on them.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("object not found")

// Object describes one stored blob.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// BlobStore is a flat key/prefix addressed byte store. List is recursive and
// returns objects in key order.
type BlobStore interface {
	List(ctx context.Context, prefix string) ([]Object, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}
