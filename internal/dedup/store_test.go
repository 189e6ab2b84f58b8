package dedup

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/carlistingworker/internal/listing"
	"sjsage522/carlistingworker/logger"
	"sjsage522/carlistingworker/services/cache"
)

type mockCache struct {
	data    map[string][]byte
	getErr  error
	setErr  error
	gets    int
	sets    int
	lastTTL time.Duration
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) Get(key string) ([]byte, error) {
	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return v, nil
}

func (m *mockCache) Set(key string, value []byte, ttl time.Duration) error {
	m.sets++
	m.lastTTL = ttl
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(key string) error {
	delete(m.data, key)
	return nil
}

func car(url string, price int) listing.Car {
	return listing.Car{
		Make:    "Kia",
		Model:   "Soul",
		Year:    2012,
		Mileage: listing.Some(84000),
		Price:   listing.Some(price),
		URL:     url,
	}
}

func newStore(opts ...Option) *Store {
	return NewStore("cargurus", append(opts, WithLogger(logger.Nop()))...)
}

func TestAdmitIsIdempotent(t *testing.T) {
	s := newStore()
	c := car("https://www.cargurus.com/Cars/inventorylisting#listing=4", 7500)

	admitted := 0
	for i := 0; i < 5; i++ {
		if s.Admit(c) {
			admitted++
		}
	}

	assert.Equal(t, 1, admitted)
	assert.Equal(t, 1, s.Len())
	assert.False(t, s.IsNew(c))
}

func TestAdmitIgnoresURL(t *testing.T) {
	s := newStore()

	assert.True(t, s.Admit(car("https://www.cargurus.com/Cars/inventorylisting#listing=4", 7500)))
	assert.False(t, s.Admit(car("https://www.cargurus.com/Cars/inventorylisting#listing=9", 7500)))
	assert.True(t, s.Admit(car("https://www.cargurus.com/Cars/inventorylisting#listing=9", 7400)))

	seen := s.Seen()
	require.Len(t, seen, 2)
	assert.Equal(t, "https://www.cargurus.com/Cars/inventorylisting#listing=4", seen[0].URL, "first URL is kept")
	assert.Equal(t, listing.Some(7400), seen[1].Price)
}

func TestIsNewDoesNotRecord(t *testing.T) {
	s := newStore()
	c := car("", 7500)

	assert.True(t, s.IsNew(c))
	assert.True(t, s.IsNew(c))
	assert.Equal(t, 0, s.Len())

	s.Record(c)
	s.Record(c)
	assert.Equal(t, 1, s.Len())
}

func TestSeenReturnsCopy(t *testing.T) {
	s := newStore()
	s.Record(car("a", 1))

	seen := s.Seen()
	seen[0].Make = "Changed"
	assert.Equal(t, "Kia", s.Seen()[0].Make)
}

func TestRestore(t *testing.T) {
	s := newStore()
	s.Restore([]listing.Car{car("a", 1), car("b", 2), car("c", 1)})

	assert.Equal(t, 2, s.Len())
	assert.False(t, s.Admit(car("z", 2)))
	assert.True(t, s.Admit(car("z", 3)))
}

func TestCacheMirror(t *testing.T) {
	mc := newMockCache()
	s := newStore(WithCache(mc, time.Hour))
	c := car("https://example.com/1", 7500)

	require.True(t, s.Admit(c))
	assert.Equal(t, 1, mc.sets)
	assert.Equal(t, time.Hour, mc.lastTTL)
	assert.Contains(t, mc.data, cache.SeenKey("cargurus", c.Identity().Hash()))

	// a fresh process sharing the cache does not report it again
	restarted := newStore(WithCache(mc, time.Hour))
	assert.False(t, restarted.Admit(car("https://example.com/other", 7500)))
	assert.Equal(t, 1, restarted.Len())
	assert.Equal(t, 1, mc.sets)

	gets := mc.gets
	assert.False(t, restarted.IsNew(c))
	assert.Equal(t, gets, mc.gets, "known identities are answered locally")
}

func TestCacheMirrorIsPerSource(t *testing.T) {
	mc := newMockCache()
	c := car("", 7500)

	require.True(t, NewStore("cars.com", WithCache(mc, 0), WithLogger(logger.Nop())).Admit(c))
	assert.True(t, NewStore("cargurus", WithCache(mc, 0), WithLogger(logger.Nop())).Admit(c))
}

func TestCacheFailuresDoNotBlockAdmission(t *testing.T) {
	mc := newMockCache()
	mc.getErr = errors.New("connection refused")
	mc.setErr = errors.New("connection refused")
	s := newStore(WithCache(mc, time.Hour))

	for i := 0; i < 3; i++ {
		assert.True(t, s.Admit(car(fmt.Sprintf("u%d", i), 1000+i)))
	}
	assert.False(t, s.Admit(car("again", 1000)))
	assert.Equal(t, 3, s.Len())
}
