// Package storage defines the key-value contract backing the scoring
// service and provides an in-memory implementation for tests and
// prototyping.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound marks an absent key on the plain Get path.
var ErrNotFound = errors.New("storage: key not found")

// CachePrefix namespaces cache entries away from plain keys sharing the
// same backend.
const CachePrefix = "cache:"

// KeyValue is the store contract consumed by the scoring service.
//
// Get and Set address plain keys and surface backend failures to the
// caller. CacheGet and CacheSet address the cache namespace, always attach
// a TTL on write, and absorb backend failures: a broken backend reads as a
// miss and drops writes, so callers degrade to recomputation.
type KeyValue interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	CacheGet(ctx context.Context, key string) (string, bool)
	CacheSet(ctx context.Context, key, value string, ttl time.Duration) bool
}
