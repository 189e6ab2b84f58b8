package source

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"sjsage522/carlistingworker/helpers"
	"sjsage522/carlistingworker/logger"
)

// HTTPFetcher loads pages with a plain GET and browser-like headers
type HTTPFetcher struct{}

// Fetch implements Fetcher
func (HTTPFetcher) Fetch(ctx context.Context, url string) (io.Reader, error) {
	return helpers.FetchWithRandomHeaders(ctx, url)
}

// ChromeFetcher renders pages in headless Chrome, for sites that build their
// result lists with JavaScript.
type ChromeFetcher struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	timeout     time.Duration
	waitFor     string
}

// NewChromeFetcher launches a headless browser. Pages are read once
// waitFor is visible, or once the body is ready when waitFor is empty.
func NewChromeFetcher(timeout time.Duration, waitFor string) *ChromeFetcher {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	logger.Info("Headless Chrome allocator ready")
	return &ChromeFetcher{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		timeout:     timeout,
		waitFor:     waitFor,
	}
}

// Fetch implements Fetcher
func (c *ChromeFetcher) Fetch(ctx context.Context, url string) (io.Reader, error) {
	tabCtx, tabCancel := chromedp.NewContext(c.allocCtx)
	defer tabCancel()

	runCtx, cancel := context.WithTimeout(tabCtx, c.timeout)
	defer cancel()

	// the tab lives under the allocator, so tie it to the caller as well
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	wait := chromedp.WaitReady("body", chromedp.ByQuery)
	if c.waitFor != "" {
		wait = chromedp.WaitVisible(c.waitFor, chromedp.ByQuery)
	}

	doc := &documentStatus{}
	chromedp.ListenTarget(tabCtx, doc.observe)

	var html string
	err := chromedp.Run(runCtx,
		network.Enable(),
		chromedp.Navigate(url),
		wait,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	// a throttled site may answer with a page that never shows waitFor
	if statusErr := doc.check(url); statusErr != nil {
		return nil, statusErr
	}
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", url, err)
	}
	return strings.NewReader(html), nil
}

// documentStatus remembers the status of the first document response in a tab
type documentStatus struct {
	mu         sync.Mutex
	status     int
	retryAfter string
}

func (d *documentStatus) observe(ev interface{}) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.status != 0 {
		return
	}
	d.status = int(resp.Response.Status)
	for k, v := range resp.Response.Headers {
		if strings.EqualFold(k, "Retry-After") {
			d.retryAfter = fmt.Sprint(v)
		}
	}
}

// check reports the status as helpers.FetchWithRandomHeaders would. A tab
// that never received a document response is not an error here.
func (d *documentStatus) check(url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.status == 0 {
		return nil
	}
	return helpers.CheckStatus(url, d.status, d.retryAfter)
}

// Close shuts the browser down
func (c *ChromeFetcher) Close() error {
	c.allocCancel()
	return nil
}
