package source

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/carlistingworker/internal/listing"
	"sjsage522/carlistingworker/internal/matcher"
	"sjsage522/carlistingworker/pkg/errors"
)

// Axis names one search form control
type Axis string

const (
	AxisStock      Axis = "stock"
	AxisMake       Axis = "make"
	AxisModel      Axis = "model"
	AxisPriceStart Axis = "price_start"
	AxisPriceEnd   Axis = "price_end"
	AxisYearStart  Axis = "year_start"
	AxisYearEnd    Axis = "year_end"
	AxisDistance   Axis = "distance"
	AxisMileage    Axis = "mileage"
)

// IsFloor reports whether the axis is a lower bound
func (a Axis) IsFloor() bool {
	return a == AxisPriceStart || a == AxisYearStart
}

// Policy decides what happens when no option fits the target
type Policy int

const (
	// FailPair abandons the search for this constraint set
	FailPair Policy = iota
	// LeaveUnset keeps the site default, which is less restrictive
	LeaveUnset
)

// PolicyFor returns the policy used for axis: a floor nobody can meet is
// dropped, a ceiling nobody can meet fails the search.
func PolicyFor(a Axis) Policy {
	if a.IsFloor() {
		return LeaveUnset
	}
	return FailPair
}

// Field is one form control: the query parameter it sets and its choices
type Field struct {
	Param   string
	Options []matcher.Option
}

// FormHandle is a submitted search. It carries the query built from the
// chosen options and, once results were loaded, the first result page.
type FormHandle struct {
	Source      string
	Constraints listing.Constraints
	Query       url.Values
	Chosen      map[Axis]matcher.Option
	Unset       []Axis

	resultsURL string
	pageParam  string
	firstPage  *goquery.Document
}

// NewFormHandle starts an empty search for c on source
func NewFormHandle(source string, c listing.Constraints) *FormHandle {
	return &FormHandle{
		Source:      source,
		Constraints: c,
		Query:       url.Values{},
		Chosen:      make(map[Axis]matcher.Option),
	}
}

// Set records a free-form parameter, such as a zip code
func (h *FormHandle) Set(param, value string) {
	h.Query.Set(param, value)
}

// ResultsURL is the URL of the first result page
func (h *FormHandle) ResultsURL() string {
	return h.PageURL(1)
}

// PageURL is the URL of result page n
func (h *FormHandle) PageURL(n int) string {
	u, err := url.Parse(h.resultsURL)
	if err != nil {
		return h.resultsURL
	}
	q := u.Query()
	for k, vs := range h.Query {
		q[k] = append([]string(nil), vs...)
	}
	if n > 1 && h.pageParam != "" {
		q.Set(h.pageParam, strconv.Itoa(n))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (h *FormHandle) setResults(resultsURL, pageParam string) {
	h.resultsURL = resultsURL
	h.pageParam = pageParam
	h.firstPage = nil
}

// SelectNearestOption chooses, on field, the option for target that the
// matcher picks: the exact match or the largest option below it. When no
// option qualifies, policy decides between failing and leaving the control
// at its default.
func SelectNearestOption(h *FormHandle, axis Axis, target int, field Field, policy Policy) error {
	opt, err := matcher.Nearest(float64(target), field.Options)
	if err != nil {
		if policy == LeaveUnset {
			h.Unset = append(h.Unset, axis)
			return nil
		}
		return errors.NewMatcherExhausted(h.Source,
			fmt.Sprintf("%s: no %s option at or below %d (%d options)", h.Constraints, axis, target, len(field.Options)), err)
	}

	h.Chosen[axis] = opt
	if field.Param != "" {
		h.Query.Set(field.Param, opt.Value)
	}
	return nil
}

// SelectExact chooses the option labelled label, e.g. a make or model name
func SelectExact(h *FormHandle, axis Axis, label string, field Field) error {
	opt, err := matcher.ExactLabel(label, field.Options)
	if err != nil {
		return errors.NewConfigurationUnavailable(h.Source,
			fmt.Sprintf("%s: site offers no %s %q", h.Constraints, axis, label), err)
	}

	h.Chosen[axis] = opt
	if field.Param != "" {
		h.Query.Set(field.Param, opt.Value)
	}
	return nil
}

// selectBound applies SelectNearestOption when the bound is set
func selectBound(h *FormHandle, axis Axis, bound listing.Optional, field Field) error {
	target, ok := bound.Get()
	if !ok {
		return nil
	}
	return SelectNearestOption(h, axis, target, field, PolicyFor(axis))
}
