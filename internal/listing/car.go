package listing

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Car is one scraped vehicle-for-sale listing
type Car struct {
	Make    string   `json:"make"`
	Model   string   `json:"model"`
	Year    int      `json:"year"`
	Mileage Optional `json:"mileage"`
	Price   Optional `json:"price"`
	URL     string   `json:"url"`
}

// Identity is the part of a Car that decides whether two listings are the same.
// The URL is left out on purpose: the same listing shows up under different
// fragments between scrape passes.
type Identity struct {
	Make    string
	Model   string
	Year    int
	Mileage Optional
	Price   Optional
}

// Identity returns the car's identity tuple
func (c Car) Identity() Identity {
	return Identity{
		Make:    c.Make,
		Model:   c.Model,
		Year:    c.Year,
		Mileage: c.Mileage,
		Price:   c.Price,
	}
}

// Equal reports whether two cars are the same listing
func (c Car) Equal(other Car) bool {
	return c.Identity() == other.Identity()
}

// Equal reports whether a and b are the same listing
func Equal(a, b Car) bool {
	return a.Equal(b)
}

// String renders the car the way notifications show it
func (c Car) String() string {
	price := "N/A"
	if p, ok := c.Price.Get(); ok {
		price = "$" + groupThousands(p)
	}
	mileage := "N/A"
	if m, ok := c.Mileage.Get(); ok {
		mileage = groupThousands(m)
	}
	return fmt.Sprintf("%d %s %s, %s, %s miles", c.Year, c.Make, c.Model, price, mileage)
}

// Key is the canonical string form of the identity
func (id Identity) Key() string {
	return fmt.Sprintf("%q|%q|%d|%d|%d", id.Make, id.Model, id.Year, id.Mileage.Sentinel(), id.Price.Sentinel())
}

// Hash is a 64-bit digest of Key, short enough for cache keys
func (id Identity) Hash() uint64 {
	return xxhash.Sum64String(id.Key())
}

func groupThousands(v int) string {
	s := strconv.Itoa(v)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	if neg {
		return "-" + b.String()
	}
	return b.String()
}
