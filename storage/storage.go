// Package storage persists searches and the listings each source has seen.
package storage

import (
	"context"

	"sjsage522/carlistingworker/internal/listing"
)

// Ledger keeps the seen listings of each source across restarts
type Ledger interface {
	// LoadSeen returns the listings recorded for source, oldest first
	LoadSeen(ctx context.Context, source string) ([]listing.Car, error)

	// SaveSeen records cars for source. Listings already recorded are kept.
	SaveSeen(ctx context.Context, source string, cars []listing.Car) error
}
