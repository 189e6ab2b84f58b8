// Package source drives the search forms of used-car listing sites and
// scrapes their result pages.
package source

import (
	"context"
	"io"

	"sjsage522/carlistingworker/internal/listing"
)

// ListingSource is one listing site. A search is submitted once per resolved
// constraint set; the returned handle then addresses its result pages.
type ListingSource interface {
	// Name identifies the source in logs, cache keys and persisted state
	Name() string

	// SubmitSearch fills in the site's search form for c. It fails with a
	// configuration-unavailable error when the form cannot express c.
	SubmitSearch(ctx context.Context, c listing.Constraints) (*FormHandle, error)

	// ListPages returns the number of result pages, at least 1
	ListPages(ctx context.Context, h *FormHandle) (int, error)

	// ScrapePage returns the raw rows of one result page, numbered from 1
	ScrapePage(ctx context.Context, h *FormHandle, page int) ([]listing.RawListing, error)
}

// Fetcher loads a page and returns its UTF-8 body
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.Reader, error)
}

// Config contains configuration for a source
type Config struct {
	Name      string
	URL       string
	BlockTime int64 // seconds
	// RequestInterval is the minimum gap between two requests, in milliseconds
	RequestInterval int64
}
