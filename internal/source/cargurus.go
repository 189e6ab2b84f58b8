package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/carlistingworker/helpers"
	"sjsage522/carlistingworker/internal/listing"
	"sjsage522/carlistingworker/internal/matcher"
	"sjsage522/carlistingworker/pkg/errors"
	"sjsage522/carlistingworker/services/cache"
)

const (
	carGurusResultsPath = "/Cars/inventorylisting/viewDetailsFilterViewInventoryListing.action"
	carGurusPageParam   = "resultsPage"
)

// CarGurus searches cargurus.com. The header form picks make, model, zip,
// distance and years; price and mileage are sliders on the result page whose
// boundary labels limit what can be asked for.
type CarGurus struct {
	BaseSource
}

// NewCarGurus creates a CarGurus source
func NewCarGurus(cfg Config, fetcher Fetcher, cacheSvc cache.CacheService) *CarGurus {
	return &CarGurus{BaseSource: NewBaseSource(cfg, fetcher, cacheSvc)}
}

// SubmitSearch implements ListingSource
func (s *CarGurus) SubmitSearch(ctx context.Context, c listing.Constraints) (*FormHandle, error) {
	h := NewFormHandle(s.Name(), c)

	form, err := s.fetchDocument(ctx, s.URL)
	if err != nil {
		return nil, err
	}
	if err := s.fillHeaderForm(h, form); err != nil {
		return nil, err
	}

	action, _ := form.Find("form").Has(".maker-select-dropdown").First().Attr("action")
	if action == "" {
		action = carGurusResultsPath
	}
	h.setResults(helpers.ResolveURL(s.URL, action), carGurusPageParam)

	results, err := s.firstPageDocument(ctx, h)
	if err != nil {
		return nil, err
	}
	before := h.Query.Encode()
	if err := s.applySliders(h, results); err != nil {
		return nil, err
	}
	if h.Query.Encode() != before {
		h.firstPage = nil
	}

	s.log.Debug().
		Str("search", c.String()).
		Str("url", h.ResultsURL()).
		Interface("unset", h.Unset).
		Msg("Search submitted")
	return h, nil
}

func (s *CarGurus) fillHeaderForm(h *FormHandle, doc *goquery.Document) error {
	c := h.Constraints

	makeSel := doc.Find("select.maker-select-dropdown").First()
	if err := SelectExact(h, AxisMake, c.Make, namedField(makeSel, fieldName(makeSel, "selectedMakeId"))); err != nil {
		return err
	}
	modelSel := doc.Find("select.model-select-dropdown").First()
	if err := SelectExact(h, AxisModel, c.Model, namedField(modelSel, fieldName(modelSel, "selectedModelId"))); err != nil {
		return err
	}

	zip := doc.Find("#newSearchHeaderForm_UsedCar_zip")
	h.Set(fieldName(zip, "zip"), c.Zip)

	distanceSel := doc.Find("#newSearchHeaderForm_UsedCar_distance")
	distance := numericField(distanceSel, fieldName(distanceSel, "distance"), matcher.DefaultSentinels)
	if err := SelectNearestOption(h, AxisDistance, c.Distance, distance, PolicyFor(AxisDistance)); err != nil {
		return err
	}

	years := doc.Find("select.car-select-dropdown")
	startSel, endSel := years.Eq(0), years.Eq(1)
	if err := selectBound(h, AxisYearStart, c.YearStart, numericField(startSel, fieldName(startSel, "startYear"), nil)); err != nil {
		return err
	}
	return selectBound(h, AxisYearEnd, c.YearEnd, numericField(endSel, fieldName(endSel, "endYear"), nil))
}

// applySliders clamps the price and mileage bounds to the slider ranges
func (s *CarGurus) applySliders(h *FormHandle, doc *goquery.Document) error {
	c := h.Constraints

	priceLo, priceHi := sliderRange(doc, "#priceSliderLowerBoundaryLabel", "#priceSliderUpperBoundaryLabel")
	if err := SelectWithinRange(h, AxisPriceStart, c.PriceStart, priceLo, priceHi, "minPrice"); err != nil {
		return err
	}
	if err := SelectWithinRange(h, AxisPriceEnd, c.PriceEnd, priceLo, priceHi, "maxPrice"); err != nil {
		return err
	}

	mileLo, mileHi := sliderRange(doc, "#mileageSliderLowerBoundaryLabel", "#mileageSliderUpperBoundaryLabel")
	return SelectWithinRange(h, AxisMileage, c.MileageCeiling, mileLo, mileHi, "maxMileage")
}

// sliderRange reads a slider's boundary labels; a missing label leaves that
// side open.
func sliderRange(doc *goquery.Document, lower, upper string) (float64, float64) {
	lo, ok := matcher.ParseLabel(doc.Find(lower).First().Text(), nil)
	if !ok {
		lo = matcher.UnboundedBelow
	}
	hi, ok := matcher.ParseLabel(doc.Find(upper).First().Text(), nil)
	if !ok {
		hi = matcher.Unbounded
	}
	return lo, hi
}

// SelectWithinRange sets a continuous control such as a slider. Targets at or
// past the top of the range need no filter; targets below the bottom follow
// the axis policy.
func SelectWithinRange(h *FormHandle, axis Axis, bound listing.Optional, lo, hi float64, param string) error {
	target, ok := bound.Get()
	if !ok {
		return nil
	}
	value := float64(target)

	if value >= hi {
		return nil
	}
	if value < lo {
		if PolicyFor(axis) == LeaveUnset {
			h.Unset = append(h.Unset, axis)
			return nil
		}
		return errors.NewMatcherExhausted(h.Source,
			fmt.Sprintf("%s: %s %d is below the site minimum %.0f", h.Constraints, axis, target, lo), matcher.ErrBelowRange)
	}

	v := strconv.Itoa(target)
	h.Chosen[axis] = matcher.Option{Label: v, Value: v, Key: value}
	h.Query.Set(param, v)
	return nil
}

// ListPages implements ListingSource
func (s *CarGurus) ListPages(ctx context.Context, h *FormHandle) (int, error) {
	doc, err := s.firstPageDocument(ctx, h)
	if err != nil {
		return 0, err
	}
	return s.lastPage(doc, ".toPage"), nil
}

// ScrapePage implements ListingSource
func (s *CarGurus) ScrapePage(ctx context.Context, h *FormHandle, page int) ([]listing.RawListing, error) {
	if page < 1 {
		return nil, errors.NewValidation(s.Name(), "page "+strconv.Itoa(page))
	}
	doc, err := s.pageDocument(ctx, h, page)
	if err != nil {
		return nil, err
	}

	pageURL := h.PageURL(page)
	var rows []listing.RawListing
	doc.Find(".ft-car").Each(func(_ int, car *goquery.Selection) {
		row := listing.RawListing{
			Source: s.Name(),
			Title:  text(car.Find(".cg-dealFinder-result-model").First()),
			URL:    pageURL,
		}

		car.Find(".cg-dealFinder-result-stats p").Each(func(_ int, stat *goquery.Selection) {
			label, value, found := strings.Cut(text(stat), ":")
			if !found {
				return
			}
			value = strings.TrimSpace(value)
			switch strings.TrimSpace(label) {
			case "Mileage":
				row.Mileage = firstWord(value)
			case "Price":
				if span := stat.Find(".cg-dealFinder-priceAndMoPayment span").First(); span.Length() > 0 {
					row.Price = text(span)
				} else {
					row.Price = firstWord(value)
				}
			}
		})

		if onclick, ok := car.Attr("onclick"); ok {
			if id := helpers.LastNumber(onclick); id != "" {
				row.URL = pageURL + "#listing=" + id
			}
		}
		rows = append(rows, row)
	})

	return rows, nil
}

// firstWord keeps "84,000" out of "84,000 mi", but leaves phrases such as
// "No Price Listed" whole.
func firstWord(value string) string {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return ""
	}
	if _, err := listing.ParseAmount(fields[0]); err == nil {
		return fields[0]
	}
	return value
}
