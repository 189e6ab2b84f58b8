// Package matcher translates a continuous search constraint into the closest
// discrete choice a site's search form offers.
//
// Selection always rounds down: when no option equals the target, the largest
// option below it wins, so a ceiling never silently relaxes past what was asked.
package matcher

import (
	"errors"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrNoOptions is returned when the option list is empty
	ErrNoOptions = errors.New("matcher: no options to choose from")
	// ErrBelowRange is returned when the target is smaller than every option
	ErrBelowRange = errors.New("matcher: target is below every option")
	// ErrNoMatch is returned when a named option does not exist
	ErrNoMatch = errors.New("matcher: no option with that label")
)

// NearestIndex returns the index of the last option whose key is <= target.
// That is the exact match when one exists, otherwise the largest key strictly
// below target. keys must be non-decreasing.
func NearestIndex[T any](target float64, options []T, key func(T) float64) (int, error) {
	if len(options) == 0 {
		return -1, ErrNoOptions
	}

	// first index whose key is strictly greater than target
	above := sort.Search(len(options), func(i int) bool {
		return key(options[i]) > target
	})

	if above == 0 {
		return -1, ErrBelowRange
	}
	return above - 1, nil
}

// Option is one entry of a site's dropdown or radio list
type Option struct {
	Label string
	Value string
	Key   float64
}

// Sentinels maps non-numeric labels to a conceptual key, e.g. "No Max Price" to +Inf
type Sentinels map[string]float64

var (
	// Unbounded is the key used for "no limit" labels
	Unbounded = math.Inf(1)
	// UnboundedBelow is the key used for "no minimum" labels
	UnboundedBelow = math.Inf(-1)
)

// DefaultSentinels covers the "no limit" phrasing used by the supported sites
var DefaultSentinels = Sentinels{
	"no max price":   Unbounded,
	"no min price":   UnboundedBelow,
	"all miles from": Unbounded,
	"any mileage":    Unbounded,
	"no max":         Unbounded,
	"no min":         UnboundedBelow,
}

var numberPattern = regexp.MustCompile(`-?[\d,]*\d(?:\.\d+)?`)

// ParseLabel turns an option label into its numeric key
func ParseLabel(label string, sentinels Sentinels) (float64, bool) {
	normalized := strings.ToLower(strings.TrimSpace(label))
	if key, ok := sentinels[normalized]; ok {
		return key, true
	}

	cleaned := strings.ReplaceAll(normalized, "$", "")
	match := numberPattern.FindString(cleaned)
	if match == "" {
		return 0, false
	}

	value, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// NewOption builds an option from a form value and its visible label.
// Labels that carry no number and no known sentinel are rejected.
func NewOption(value, label string, sentinels Sentinels) (Option, bool) {
	key, ok := ParseLabel(label, sentinels)
	if !ok {
		return Option{}, false
	}
	return Option{
		Label: strings.TrimSpace(label),
		Value: value,
		Key:   key,
	}, true
}

// NamedOption builds an option that is chosen by label rather than by key
func NamedOption(value, label string) Option {
	return Option{Label: strings.TrimSpace(label), Value: value}
}

// Sorted returns a key-ordered copy of options
func Sorted(options []Option) []Option {
	sorted := make([]Option, len(options))
	copy(sorted, options)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Key < sorted[j].Key
	})
	return sorted
}

// Nearest sorts options and returns the one NearestIndex selects for target
func Nearest(target float64, options []Option) (Option, error) {
	sorted := Sorted(options)
	i, err := NearestIndex(target, sorted, func(o Option) float64 { return o.Key })
	if err != nil {
		return Option{}, err
	}
	return sorted[i], nil
}

// ExactLabel finds a named option (a make or a model) ignoring case and surrounding space
func ExactLabel(label string, options []Option) (Option, error) {
	want := strings.TrimSpace(label)
	for _, o := range options {
		if strings.EqualFold(strings.TrimSpace(o.Label), want) {
			return o, nil
		}
	}
	return Option{}, ErrNoMatch
}
