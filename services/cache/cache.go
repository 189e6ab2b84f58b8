package cache

import (
	"errors"
	"fmt"
	"time"
)

// ErrMiss is returned by Get when the key is not cached
var ErrMiss = errors.New("cache: miss")

// CacheService is the small key/value surface the worker needs: the
// deduplication mirror and the per-source rate-limit block both live here.
type CacheService interface {
	// Get retrieves a value, or ErrMiss
	Get(key string) ([]byte, error)

	// Set stores a value with an expiration time; zero means no expiry
	Set(key string, value []byte, expiration time.Duration) error

	// Delete removes a value
	Delete(key string) error
}

// SeenKey is the key under which a listing identity hash is mirrored
func SeenKey(source string, hash uint64) string {
	return fmt.Sprintf("seen:%s:%016x", source, hash)
}

// BlockKey is the key that marks a source as rate limited
func BlockKey(source string) string {
	return "blocked:" + source
}
