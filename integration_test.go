package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"sjsage522/carlistingworker/internal/dedup"
	"sjsage522/carlistingworker/internal/listing"
	"sjsage522/carlistingworker/internal/source"
	"sjsage522/carlistingworker/services/cache"
	"sjsage522/carlistingworker/services/notifier"
	"sjsage522/carlistingworker/services/publisher"
	"sjsage522/carlistingworker/services/worker"
	"sjsage522/carlistingworker/storage"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	formPath    = "/Cars/forsale"
	resultsPath = "/Cars/inventorylisting/viewDetailsFilterViewInventoryListing.action"
)

// MockCacheService implements a simple in-memory cache for testing
type MockCacheService struct {
	mu    sync.Mutex
	cache map[string][]byte
}

// Ensure MockCacheService implements cache.CacheService
var _ cache.CacheService = (*MockCacheService)(nil)

func (m *MockCacheService) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if val, ok := m.cache[key]; ok {
		return val, nil
	}
	return nil, cache.ErrMiss
}

func (m *MockCacheService) Set(key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = value
	return nil
}

func (m *MockCacheService) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, key)
	return nil
}

// MockPublisher keeps published messages in memory
type MockPublisher struct {
	mu       sync.Mutex
	messages [][]byte
}

// Ensure MockPublisher implements publisher.Publisher
var _ publisher.Publisher = (*MockPublisher)(nil)

func (m *MockPublisher) Publish(_ context.Context, key string, message []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	messageCopy := make([]byte, len(message))
	copy(messageCopy, message)
	m.messages = append(m.messages, messageCopy)
	return nil
}

func (m *MockPublisher) TrimStreams(context.Context) error {
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

func (m *MockPublisher) events(t *testing.T) []notifier.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var events []notifier.Event
	for _, msg := range m.messages {
		var ev notifier.Event
		require.NoError(t, json.Unmarshal(msg, &ev))
		events = append(events, ev)
	}
	return events
}

// newCarGurusServer serves the CarGurus form and result fixtures
func newCarGurusServer(t *testing.T) *httptest.Server {
	t.Helper()
	routes := map[string]string{
		formPath:    "cargurus_form.html",
		resultsPath: "cargurus_results.html",
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		data, err := os.ReadFile(filepath.Join("internal", "source", "testdata", name))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(data)
	}))
	t.Cleanup(server.Close)
	return server
}

func kiaSearch() listing.Search {
	s := listing.NewSearch("Kia", "52405",
		listing.Constrained(listing.NewModel("Soul").WithYears(listing.None, listing.Some(2012))))
	s.PriceEnd = listing.Some(8000)
	return s
}

func newCarGurusWorker(serverURL string, memcache cache.CacheService, n notifier.Notifier, ledger storage.Ledger) *worker.Worker {
	src := source.NewCarGurus(source.Config{
		Name: "cargurus",
		URL:  serverURL + formPath,
	}, source.HTTPFetcher{}, memcache)

	return worker.NewWorker(
		worker.Track([]source.ListingSource{src}, dedup.WithCache(memcache, time.Hour)),
		[]listing.Search{kiaSearch()},
		n,
		time.Hour,
		worker.WithLedger(ledger),
	)
}

// TestIntegration runs full passes against fixture pages: the two rows that
// differ only in their listing id produce one event, and a restarted worker
// reports nothing it reported before
func TestIntegration(t *testing.T) {
	server := newCarGurusServer(t)
	ctx := context.Background()

	mockCache := &MockCacheService{cache: make(map[string][]byte)}
	mockPublisher := &MockPublisher{}
	state, err := storage.NewFileStore(filepath.Join(t.TempDir(), "carwatch.json"))
	require.NoError(t, err)

	w := newCarGurusWorker(server.URL, mockCache, notifier.NewStreamNotifier(mockPublisher), state)
	stats := w.RunPass(ctx)

	assert.Equal(t, 1, stats.Pairs)
	assert.Equal(t, 3, stats.Rows)
	assert.Equal(t, 2, stats.New)

	events := mockPublisher.events(t)
	require.Len(t, events, 2)
	assert.Contains(t, events[0].Car.URL, "#listing=4")
	assert.Equal(t, 7500, events[0].Car.Price.OrElse(0))
	assert.Contains(t, events[1].Car.URL, "#listing=12")
	assert.False(t, events[1].Car.Price.IsSet())
	assert.NotEqual(t, events[0].ID, events[1].ID)

	seen, err := state.LoadSeen(ctx, "cargurus")
	require.NoError(t, err)
	assert.Len(t, seen, 2)

	// restart from the state file
	restartedPublisher := &MockPublisher{}
	restarted := newCarGurusWorker(server.URL, mockCache, notifier.NewStreamNotifier(restartedPublisher), state)
	restarted.Restore(ctx)
	stats = restarted.RunPass(ctx)
	assert.Equal(t, 0, stats.New)
	assert.Empty(t, restartedPublisher.events(t))

	// restart without the state file; memcache still knows the listings
	emptyState, err := storage.NewFileStore(filepath.Join(t.TempDir(), "fresh.json"))
	require.NoError(t, err)
	freshPublisher := &MockPublisher{}
	fresh := newCarGurusWorker(server.URL, mockCache, notifier.NewStreamNotifier(freshPublisher), emptyState)
	stats = fresh.RunPass(ctx)
	assert.Equal(t, 0, stats.New)
	assert.Empty(t, freshPublisher.events(t))
}

// TestIntegrationRedis publishes events to a live Redis stream
func TestIntegrationRedis(t *testing.T) {
	// Skip this test if running in CI or without Redis
	if os.Getenv("CI") != "" {
		t.Skip("Skipping integration test in CI environment")
	}

	server := newCarGurusServer(t)
	ctx := context.Background()

	redisAddr := "localhost:6379"
	redisClient := redis.NewClient(&redis.Options{
		Addr: redisAddr,
		DB:   0,
	})
	defer redisClient.Close()

	// Check if Redis is available by attempting a ping, skip test if not
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		t.Skip("Redis is not available, skipping integration test")
	}

	prefix := fmt.Sprintf("test_carlistings_%d", time.Now().UnixNano())
	redisPublisher := publisher.NewRedisPublisher(redisAddr, 0, prefix, 1, 100)
	defer redisPublisher.Close()
	defer redisClient.Del(ctx, redisPublisher.StreamName(0))

	mockCache := &MockCacheService{cache: make(map[string][]byte)}
	state, err := storage.NewFileStore(filepath.Join(t.TempDir(), "carwatch.json"))
	require.NoError(t, err)

	w := newCarGurusWorker(server.URL, mockCache, notifier.NewStreamNotifier(redisPublisher), state)
	stats := w.RunPass(ctx)
	require.Equal(t, 2, stats.New)

	entries, err := redisClient.XRange(ctx, redisPublisher.StreamName(0), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	payload, ok := entries[0].Values[notifier.StreamKey].(string)
	require.True(t, ok, "entry should carry the encoded event")

	decoded, err := base64.StdEncoding.DecodeString(payload)
	require.NoError(t, err)

	var ev notifier.Event
	require.NoError(t, json.Unmarshal(decoded, &ev))
	assert.Equal(t, "cargurus", ev.Source)
	assert.Equal(t, "Kia", ev.Car.Make)
	assert.Equal(t, "Soul", ev.Car.Model)
	assert.Contains(t, ev.Car.URL, "#listing=4")
}
