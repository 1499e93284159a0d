// Package kv is the persistence layer: a named key maps to one JSON
// document (a collection array or a singleton object). Writes are
// synchronous write-throughs; callers keep their own in-memory mirror.
package kv

import "context"

type Store interface {
	// Get deserializes the value stored under key into dest. It reports
	// false with a nil error when the key has never been written.
	Get(ctx context.Context, key string, dest any) (bool, error)
	// Set serializes value and durably stores it under key before returning.
	Set(ctx context.Context, key string, value any) error
	Close() error
}
