package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/carlistingworker/internal/listing"
)

// This test requires a reachable Postgres in DATABASE_URL
// If it is not set or not reachable, the test will be skipped
func TestPostgresLedger(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is not set, skipping test")
	}

	ctx := context.Background()
	l, err := NewPostgresLedger(ctx, dsn)
	if err != nil {
		t.Skipf("Postgres is not available, skipping test: %v", err)
	}
	defer l.Close()

	source := fmt.Sprintf("test-%d", time.Now().UnixNano())
	defer l.pool.Exec(ctx, `DELETE FROM seen_listings WHERE source = $1`, source)

	first := car("#listing=4", listing.Some(7500))
	unknown := car("#listing=5", listing.None)

	require.NoError(t, l.SaveSeen(ctx, source, []listing.Car{first, unknown}))
	require.NoError(t, l.SaveSeen(ctx, source, []listing.Car{car("#listing=9", listing.Some(7500))}))
	require.NoError(t, l.SaveSeen(ctx, source, nil))

	seen, err := l.LoadSeen(ctx, source)
	require.NoError(t, err)
	require.Len(t, seen, 2)
	assert.True(t, seen[0].Equal(first))
	assert.Equal(t, "#listing=4", seen[0].URL)
	assert.False(t, seen[1].Price.IsSet())
}
