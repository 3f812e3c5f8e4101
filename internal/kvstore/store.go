// Package kvstore persists small string values (tokens, profiles, settings)
// under string keys. The SQL and Redis stores encrypt values at rest.
package kvstore

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by Get when the key has no value
var ErrNotFound = errors.New("key not found")

// Store is a string key-value store
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Delete removes key; deleting an absent key is not an error
	Delete(ctx context.Context, key string) error
}

type scopedStore struct {
	inner  Store
	prefix string
}

// Scoped returns a view of store whose keys are prefixed with prefix + "/"
func Scoped(store Store, prefix string) Store {
	return &scopedStore{inner: store, prefix: strings.TrimSuffix(prefix, "/") + "/"}
}

func (s *scopedStore) Get(ctx context.Context, key string) (string, error) {
	return s.inner.Get(ctx, s.prefix+key)
}

func (s *scopedStore) Set(ctx context.Context, key, value string) error {
	return s.inner.Set(ctx, s.prefix+key, value)
}

func (s *scopedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, s.prefix+key)
}
