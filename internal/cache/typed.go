package cache

import (
	"context"
	"encoding/json"
	"fmt"
)

// Typed stores JSON-encoded values of T on top of a Cache.
type Typed[T any] struct {
	backend Cache
}

// NewTyped wraps a Cache
func NewTyped[T any](backend Cache) *Typed[T] {
	return &Typed[T]{backend: backend}
}

// Get decodes the value stored under key
func (t *Typed[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	raw, ok, err := t.backend.Get(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return v, true, nil
}

// Set encodes v and stores it under key
func (t *Typed[T]) Set(ctx context.Context, key string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return t.backend.Set(ctx, key, raw)
}
