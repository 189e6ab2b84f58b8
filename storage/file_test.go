package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/carlistingworker/internal/listing"
	"sjsage522/carlistingworker/pkg/errors"
)

func newStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	return s
}

func car(url string, price listing.Optional) listing.Car {
	return listing.Car{
		Make: "Kia", Model: "Soul", Year: 2012,
		Mileage: listing.Some(84000), Price: price, URL: url,
	}
}

func TestLoadMissingFile(t *testing.T) {
	doc, err := newStore(t).Load()
	require.NoError(t, err)
	assert.Empty(t, doc.Searches)
	assert.NotNil(t, doc.Listings)
}

func TestRoundTrip(t *testing.T) {
	s := newStore(t)

	search := listing.NewSearch("Kia", "52405",
		listing.Constrained(listing.NewModel("Soul").WithYears(listing.None, listing.Some(2012))),
		listing.Named("Rio"))
	search.PriceEnd = listing.Some(8000)

	doc := Document{
		Searches: []listing.Search{search},
		Listings: map[string][]listing.Car{
			"cargurus": {car("u1", listing.Some(7500)), car("u2", listing.None)},
		},
	}
	require.NoError(t, s.Save(doc))

	back, err := s.Load()
	require.NoError(t, err)
	require.Len(t, back.Searches, 1)
	assert.Equal(t, search.Constraints(), back.Searches[0].Constraints())

	cars := back.Listings["cargurus"]
	require.Len(t, cars, 2)
	assert.True(t, cars[0].Equal(doc.Listings["cargurus"][0]))
	assert.False(t, cars[1].Price.IsSet())

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"price": -1`)
	assert.Contains(t, string(raw), `"type": "string"`)
}

func TestSchemaRejectsBadState(t *testing.T) {
	s := newStore(t)

	bad := []string{
		`{"searches": [{"make": "Kia", "models": [], "zip": "52405"}]}`,
		`{"searches": [{"make": "Kia", "models": [{"type": "string"}], "zip": "52405"}]}`,
		`{"listings": {"cars.com": [{"make": "Kia", "model": "Soul", "year": 2012, "mileage": -5, "price": 1}]}}`,
		`{"listings": {"cars.com": [{"make": "Kia"}]}}`,
	}
	for _, content := range bad {
		require.NoError(t, os.WriteFile(s.Path(), []byte(content), 0o644))
		_, err := s.Load()
		require.Error(t, err, content)
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation), content)
	}

	require.NoError(t, os.WriteFile(s.Path(), []byte(`{not json`), 0o644))
	_, err := s.Load()
	assert.True(t, errors.IsType(err, errors.ErrorTypeParsing))
}

func TestLedgerMergesByIdentity(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSeen(ctx, "cargurus", []listing.Car{car("#listing=4", listing.Some(7500))}))
	require.NoError(t, s.SaveSeen(ctx, "cargurus", []listing.Car{
		car("#listing=9", listing.Some(7500)),
		car("#listing=10", listing.Some(7000)),
	}))
	require.NoError(t, s.SaveSeen(ctx, "cars.com", []listing.Car{car("x", listing.Some(1))}))

	seen, err := s.LoadSeen(ctx, "cargurus")
	require.NoError(t, err)
	require.Len(t, seen, 2)
	assert.Equal(t, "#listing=4", seen[0].URL, "the first URL recorded is kept")

	other, err := s.LoadSeen(ctx, "cars.com")
	require.NoError(t, err)
	assert.Len(t, other, 1)

	none, err := s.LoadSeen(ctx, "autotrader")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSaveSearchesKeepsListings(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSeen(ctx, "cars.com", []listing.Car{car("x", listing.Some(1))}))
	require.NoError(t, s.SaveSearches([]listing.Search{listing.NewSearch("Toyota", "52405", listing.Named("Camry"))}))

	doc, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, doc.Searches, 1)
	assert.Len(t, doc.Listings["cars.com"], 1)
}
