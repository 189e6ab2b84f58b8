// Package dedup remembers which listings a source has already reported.
package dedup

import (
	"errors"
	"time"

	"sjsage522/carlistingworker/internal/listing"
	"sjsage522/carlistingworker/logger"
	"sjsage522/carlistingworker/services/cache"
)

// Store is the seen set of one source. A listing is admitted at most once per
// identity; the URL plays no part. A Store belongs to a single source and is
// not safe for concurrent use.
type Store struct {
	source string
	index  map[listing.Identity]struct{}
	seen   []listing.Car

	cache cache.CacheService
	ttl   time.Duration
	log   *logger.Logger
}

// Option configures a Store
type Option func(*Store)

// WithCache mirrors every recorded identity into c so a restarted process
// still skips listings it reported before, even without its state file.
func WithCache(c cache.CacheService, ttl time.Duration) Option {
	return func(s *Store) {
		s.cache = c
		s.ttl = ttl
	}
}

// WithLogger replaces the default store logger
func WithLogger(l *logger.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

// NewStore creates an empty store for source
func NewStore(source string, opts ...Option) *Store {
	s := &Store{
		source: source,
		index:  make(map[listing.Identity]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.ForStore(source)
	}
	return s
}

// Source is the name of the source owning the store
func (s *Store) Source() string {
	return s.source
}

// IsNew reports whether no listing with the same identity has been recorded
func (s *Store) IsNew(car listing.Car) bool {
	id := car.Identity()
	if _, ok := s.index[id]; ok {
		return false
	}
	if s.cache == nil {
		return true
	}

	_, err := s.cache.Get(cache.SeenKey(s.source, id.Hash()))
	switch {
	case err == nil:
		// seen by an earlier process; remember it so the cache is asked once
		s.remember(car)
		return false
	case errors.Is(err, cache.ErrMiss):
		return true
	default:
		s.log.Warn().Err(err).Str("listing", car.String()).Msg("Seen cache lookup failed")
		return true
	}
}

// Record adds car to the seen set. Recording a known identity is a no-op.
func (s *Store) Record(car listing.Car) {
	if _, ok := s.index[car.Identity()]; ok {
		return
	}
	s.remember(car)

	if s.cache == nil {
		return
	}
	key := cache.SeenKey(s.source, car.Identity().Hash())
	if err := s.cache.Set(key, []byte(car.URL), s.ttl); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to mirror seen listing")
	}
}

// Admit records car and reports whether it was new
func (s *Store) Admit(car listing.Car) bool {
	if !s.IsNew(car) {
		return false
	}
	s.Record(car)
	return true
}

// Restore loads previously persisted listings without touching the cache
func (s *Store) Restore(cars []listing.Car) {
	for _, car := range cars {
		if _, ok := s.index[car.Identity()]; ok {
			continue
		}
		s.remember(car)
	}
	s.log.Debug().Int("count", len(s.seen)).Msg("Seen listings restored")
}

// Seen returns the recorded listings in the order they were first seen
func (s *Store) Seen() []listing.Car {
	out := make([]listing.Car, len(s.seen))
	copy(out, s.seen)
	return out
}

// Len is the number of distinct identities recorded
func (s *Store) Len() int {
	return len(s.seen)
}

func (s *Store) remember(car listing.Car) {
	s.index[car.Identity()] = struct{}{}
	s.seen = append(s.seen, car)
}
