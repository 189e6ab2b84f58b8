package source

import (
	"context"
	"fmt"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/carlistingworker/helpers"
	"sjsage522/carlistingworker/internal/listing"
	"sjsage522/carlistingworker/internal/matcher"
	"sjsage522/carlistingworker/pkg/errors"
	"sjsage522/carlistingworker/services/cache"
)

const (
	carsDotComResultsPath = "/for-sale/searchresults.action/"
	carsDotComPageParam   = "page"
)

// CarsDotCom searches cars.com. The home page form picks make, model, the
// price ceiling and the radius; the result page then refines the lower price,
// the year range and the mileage.
type CarsDotCom struct {
	BaseSource
}

// NewCarsDotCom creates a cars.com source
func NewCarsDotCom(cfg Config, fetcher Fetcher, cacheSvc cache.CacheService) *CarsDotCom {
	return &CarsDotCom{BaseSource: NewBaseSource(cfg, fetcher, cacheSvc)}
}

// SubmitSearch implements ListingSource
func (s *CarsDotCom) SubmitSearch(ctx context.Context, c listing.Constraints) (*FormHandle, error) {
	h := NewFormHandle(s.Name(), c)

	home, err := s.fetchDocument(ctx, s.URL+"/")
	if err != nil {
		return nil, err
	}
	if err := s.fillHomeForm(h, home); err != nil {
		return nil, err
	}

	action, _ := home.Find("form").Has("select[name='makeId']").First().Attr("action")
	if action == "" {
		action = carsDotComResultsPath
	}
	h.setResults(helpers.ResolveURL(s.URL+"/", action), carsDotComPageParam)

	results, err := s.firstPageDocument(ctx, h)
	if err != nil {
		return nil, err
	}
	changed, err := s.refineResults(h, results)
	if err != nil {
		return nil, err
	}
	if changed {
		// refinements change the query, so page 1 has to be loaded again
		h.firstPage = nil
	}

	s.log.Debug().
		Str("search", c.String()).
		Str("url", h.ResultsURL()).
		Interface("unset", h.Unset).
		Msg("Search submitted")
	return h, nil
}

func (s *CarsDotCom) fillHomeForm(h *FormHandle, doc *goquery.Document) error {
	c := h.Constraints

	if stock := doc.Find("select[name='stockType']"); stock.Length() > 0 {
		if err := SelectExact(h, AxisStock, "Used Cars", namedField(stock, "stockType")); err != nil {
			return err
		}
	}

	makes := namedField(doc.Find("select[name='makeId']"), "makeId")
	if err := SelectExact(h, AxisMake, c.Make, makes); err != nil {
		return err
	}
	models := namedField(doc.Find("select[name='modelId']"), "modelId")
	if err := SelectExact(h, AxisModel, c.Model, models); err != nil {
		return err
	}

	prices := numericField(doc.Find("select[name='priceMax']"), "priceMax", matcher.DefaultSentinels)
	if err := selectBound(h, AxisPriceEnd, c.PriceEnd, prices); err != nil {
		return err
	}

	radius := numericField(doc.Find("select[name='radius']"), "radius", matcher.DefaultSentinels)
	if err := SelectNearestOption(h, AxisDistance, c.Distance, radius, PolicyFor(AxisDistance)); err != nil {
		return err
	}

	zip := doc.Find("input[name='zip']")
	h.Set(fieldName(zip, "zip"), c.Zip)
	return nil
}

// refineResults applies the filters only the result page offers. It reports
// whether the query changed.
func (s *CarsDotCom) refineResults(h *FormHandle, doc *goquery.Document) (bool, error) {
	c := h.Constraints
	before := h.Query.Encode()

	minPrices := numericField(doc.Find("select[name='prMn']"), "prMn", matcher.DefaultSentinels)
	if err := selectBound(h, AxisPriceStart, c.PriceStart, minPrices); err != nil {
		return false, err
	}

	years := doc.Find("select[name='yrId']")
	if err := selectBound(h, AxisYearStart, c.YearStart, numericField(years.Eq(0), "yrMn", nil)); err != nil {
		return false, err
	}
	if err := selectBound(h, AxisYearEnd, c.YearEnd, numericField(years.Eq(1), "yrMx", nil)); err != nil {
		return false, err
	}

	mileage := radioField(doc, "#mlgId li.radio input[id^='mlgId-']", "mlgId", matcher.DefaultSentinels)
	if err := selectBound(h, AxisMileage, c.MileageCeiling, mileage); err != nil {
		return false, err
	}

	return h.Query.Encode() != before, nil
}

// ListPages implements ListingSource
func (s *CarsDotCom) ListPages(ctx context.Context, h *FormHandle) (int, error) {
	doc, err := s.firstPageDocument(ctx, h)
	if err != nil {
		return 0, err
	}
	return s.lastPage(doc, ".js-last-page"), nil
}

// ScrapePage implements ListingSource
func (s *CarsDotCom) ScrapePage(ctx context.Context, h *FormHandle, page int) ([]listing.RawListing, error) {
	if page < 1 {
		return nil, errors.NewValidation(s.Name(), "page "+strconv.Itoa(page))
	}
	doc, err := s.pageDocument(ctx, h, page)
	if err != nil {
		return nil, err
	}

	pageURL := h.PageURL(page)
	var rows []listing.RawListing
	doc.Find(".shop-srp-listings__listing-container").Each(func(i int, row *goquery.Selection) {
		href, _ := row.Find("a.shop-srp-listings__listing").First().Attr("href")
		if href == "" {
			s.log.Debug().Int("page", page).Int("row", i).Msg("Listing without link")
		}
		rows = append(rows, listing.RawListing{
			Source:  s.Name(),
			Title:   text(row.Find(".listing-row__title").First()),
			Mileage: text(row.Find(".listing-row__mileage").First()),
			Price:   text(row.Find(".listing-row__price").First()),
			URL:     helpers.ResolveURL(pageURL, href),
		})
	})

	return rows, nil
}

func (s *CarsDotCom) String() string {
	return fmt.Sprintf("CarsDotCom(%s)", s.URL)
}
