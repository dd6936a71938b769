package kvstore

import (
	"context"
	"encoding/json"
	"time"
)

// Typed provides type-safe access to a Store for values of type T.
type Typed[T any] struct {
	store  *Store
	prefix string
}

// NewTyped returns a Typed[T] over store with unprefixed keys.
func NewTyped[T any](store *Store) *Typed[T] {
	return &Typed[T]{store: store}
}

// Scoped returns a Typed[T] that prefixes all keys with "namespace:". The
// prefixed key still has to fit in MaxKeyLength characters.
func Scoped[T any](store *Store, namespace string) *Typed[T] {
	return &Typed[T]{
		store:  store,
		prefix: namespace + ":",
	}
}

// Get retrieves and decodes the value at key. The boolean is false when the
// key is missing or expired, or when the stored value does not decode into T.
func (t *Typed[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var v T

	raw, ok, err := t.store.Get(ctx, t.prefix+key)
	if err != nil || !ok {
		return v, false, err
	}

	if err := json.Unmarshal(raw, &v); err != nil {
		return v, t.store.fail(ctx, "get", t.prefix+key, err), nil
	}
	return v, true, nil
}

// Set stores a value with no expiry.
func (t *Typed[T]) Set(ctx context.Context, key string, value T) (bool, error) {
	return t.store.Set(ctx, t.prefix+key, value)
}

// SetTTL stores a value that expires after the given duration.
func (t *Typed[T]) SetTTL(ctx context.Context, key string, value T, ttl time.Duration) (bool, error) {
	return t.store.SetTTL(ctx, t.prefix+key, value, ttl)
}

// Delete removes a key.
func (t *Typed[T]) Delete(ctx context.Context, key string) (bool, error) {
	return t.store.Delete(ctx, t.prefix+key)
}

// Has returns whether a key exists, expired or not.
func (t *Typed[T]) Has(ctx context.Context, key string) (bool, error) {
	return t.store.Has(ctx, t.prefix+key)
}
