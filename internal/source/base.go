package source

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"sjsage522/carlistingworker/helpers"
	"sjsage522/carlistingworker/internal/matcher"
	"sjsage522/carlistingworker/logger"
	"sjsage522/carlistingworker/pkg/errors"
	"sjsage522/carlistingworker/services/cache"
)

// BaseSource provides common functionality for all sources
type BaseSource struct {
	name      string
	URL       string
	Fetcher   Fetcher
	CacheSvc  cache.CacheService
	BlockTime time.Duration

	limiter *rate.Limiter
	log     *logger.Logger
}

// NewBaseSource builds the shared fetch machinery for one site
func NewBaseSource(cfg Config, fetcher Fetcher, cacheSvc cache.CacheService) BaseSource {
	limit := rate.Inf
	if cfg.RequestInterval > 0 {
		limit = rate.Every(time.Duration(cfg.RequestInterval) * time.Millisecond)
	}
	if fetcher == nil {
		fetcher = HTTPFetcher{}
	}

	return BaseSource{
		name:      cfg.Name,
		URL:       strings.TrimRight(cfg.URL, "/"),
		Fetcher:   fetcher,
		CacheSvc:  cacheSvc,
		BlockTime: time.Duration(cfg.BlockTime) * time.Second,
		limiter:   rate.NewLimiter(limit, 1),
		log:       logger.ForSource(cfg.Name),
	}
}

// Name returns the source name
func (b *BaseSource) Name() string {
	return b.name
}

func (b *BaseSource) blockKey() string {
	return cache.BlockKey(b.name)
}

// fetchDocument loads url as a goquery document, honouring the request rate
// and the rate-limit block a previous 429 left in the cache.
func (b *BaseSource) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	if b.CacheSvc != nil {
		if _, err := b.CacheSvc.Get(b.blockKey()); err == nil {
			return nil, errors.NewRateLimit(b.name, b.BlockTime)
		}
	}

	if err := b.limiter.Wait(ctx); err != nil {
		return nil, errors.NewScrapeTransient(b.name, "waiting for request slot", err)
	}

	b.log.Debug().Str("url", url).Msg("Fetching page")

	body, err := b.Fetcher.Fetch(ctx, url)
	if err != nil {
		if stderrors.Is(err, helpers.ErrRateLimited) {
			b.block()
			return nil, errors.NewRateLimit(b.name, b.BlockTime)
		}
		var netErr net.Error
		if stderrors.As(err, &netErr) {
			return nil, errors.NewNetwork(b.name, "fetch "+url, err)
		}
		return nil, errors.NewScrapeTransient(b.name, "fetch "+url, err)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, errors.NewParsing(b.name, "HTML document", err)
	}
	return doc, nil
}

func (b *BaseSource) block() {
	if b.CacheSvc == nil || b.BlockTime <= 0 {
		return
	}
	value := []byte(strconv.Itoa(int(b.BlockTime / time.Second)))
	if err := b.CacheSvc.Set(b.blockKey(), value, b.BlockTime); err != nil {
		b.log.Warn().Err(errors.NewCache(b.name, "store rate limit block", err)).Msg("Failed to store rate limit block")
		return
	}
	b.log.Warn().Dur("block", b.BlockTime).Msg("Rate limited, pausing requests")
}

// firstPageDocument returns the cached first result page, loading it if needed
func (b *BaseSource) firstPageDocument(ctx context.Context, h *FormHandle) (*goquery.Document, error) {
	if h.firstPage != nil {
		return h.firstPage, nil
	}
	doc, err := b.fetchDocument(ctx, h.ResultsURL())
	if err != nil {
		return nil, err
	}
	h.firstPage = doc
	return doc, nil
}

// pageDocument returns result page n of h
func (b *BaseSource) pageDocument(ctx context.Context, h *FormHandle, n int) (*goquery.Document, error) {
	if n == 1 {
		return b.firstPageDocument(ctx, h)
	}
	return b.fetchDocument(ctx, h.PageURL(n))
}

// lastPage reads the page count from the element matched by selector;
// a missing element means a single page.
func (b *BaseSource) lastPage(doc *goquery.Document, selector string) int {
	sel := doc.Find(selector).Last()
	if sel.Length() == 0 {
		return 1
	}
	n, err := strconv.Atoi(strings.TrimSpace(sel.Text()))
	if err != nil || n < 1 {
		b.log.Warn().Str("text", sel.Text()).Msg("Unreadable page count, scraping one page")
		return 1
	}
	return n
}

func fieldName(sel *goquery.Selection, fallback string) string {
	if name, ok := sel.Attr("name"); ok && name != "" {
		return name
	}
	if id, ok := sel.Attr("id"); ok && id != "" {
		return id
	}
	return fallback
}

// namedField reads a <select> whose options are chosen by label
func namedField(sel *goquery.Selection, param string) Field {
	field := Field{Param: param}
	sel.Find("option").Each(func(_ int, o *goquery.Selection) {
		value, _ := o.Attr("value")
		if value == "" {
			return
		}
		field.Options = append(field.Options, matcher.NamedOption(value, o.Text()))
	})
	return field
}

// numericField reads a <select> whose option labels carry numbers.
// Placeholder options such as "Select a price" are dropped.
func numericField(sel *goquery.Selection, param string, sentinels matcher.Sentinels) Field {
	field := Field{Param: param}
	sel.Find("option").Each(func(_ int, o *goquery.Selection) {
		value, _ := o.Attr("value")
		if opt, ok := matcher.NewOption(value, o.Text(), sentinels); ok {
			field.Options = append(field.Options, opt)
		}
	})
	return field
}

// radioField reads a list of radio inputs, labelled by <label for=id>
func radioField(doc *goquery.Document, inputs string, param string, sentinels matcher.Sentinels) Field {
	field := Field{Param: param}
	doc.Find(inputs).Each(func(_ int, in *goquery.Selection) {
		id, _ := in.Attr("id")
		value, _ := in.Attr("value")
		label := doc.Find(fmt.Sprintf("label[for=%q]", id)).First().Text()
		if label == "" {
			label = in.Parent().Text()
		}
		if opt, ok := matcher.NewOption(value, label, sentinels); ok {
			field.Options = append(field.Options, opt)
		}
	})
	return field
}

func text(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.Text()), " ")
}
