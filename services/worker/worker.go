package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"sjsage522/carlistingworker/helpers"
	"sjsage522/carlistingworker/internal/dedup"
	"sjsage522/carlistingworker/internal/listing"
	"sjsage522/carlistingworker/internal/source"
	"sjsage522/carlistingworker/logger"
	"sjsage522/carlistingworker/pkg/errors"
	"sjsage522/carlistingworker/services/notifier"
	"sjsage522/carlistingworker/storage"
)

// State is the phase the polling cycle is in
type State int32

const (
	Idle State = iota
	Configuring
	Scraping
	Filtering
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Configuring:
		return "configuring"
	case Scraping:
		return "scraping"
	case Filtering:
		return "filtering"
	default:
		return "unknown"
	}
}

// Tracked pairs a source with the seen set it owns
type Tracked struct {
	Source source.ListingSource
	Seen   *dedup.Store
}

// PassStats summarizes one pass over every source and search
type PassStats struct {
	Pairs         int
	SkippedPairs  int
	Pages         int
	Rows          int
	ParseFailures int
	New           int
	Duration      time.Duration
}

// Worker polls every source for every search, one request at a time
type Worker struct {
	tracked  []Tracked
	notifier notifier.Notifier
	ledger   storage.Ledger
	reporter helpers.LoggerInterface
	interval time.Duration
	log      *logger.Logger

	mu       sync.Mutex
	searches []listing.Search

	state atomic.Int32
}

// Option configures a Worker
type Option func(*Worker)

// WithLedger persists the seen sets after every pass
func WithLedger(l storage.Ledger) Option {
	return func(w *Worker) {
		w.ledger = l
	}
}

// WithReporter sends every skipped pair, page or row to r
func WithReporter(r helpers.LoggerInterface) Option {
	return func(w *Worker) {
		w.reporter = r
	}
}

// NewWorker creates a new worker
func NewWorker(
	tracked []Tracked,
	searches []listing.Search,
	n notifier.Notifier,
	interval time.Duration,
	opts ...Option,
) *Worker {
	w := &Worker{
		tracked:  tracked,
		searches: searches,
		notifier: n,
		interval: interval,
		log:      logger.ForWorker(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Track creates the seen set of every source
func Track(sources []source.ListingSource, opts ...dedup.Option) []Tracked {
	tracked := make([]Tracked, 0, len(sources))
	for _, src := range sources {
		tracked = append(tracked, Tracked{
			Source: src,
			Seen:   dedup.NewStore(src.Name(), opts...),
		})
	}
	return tracked
}

// State returns the current phase
func (w *Worker) State() State {
	return State(w.state.Load())
}

func (w *Worker) setState(s State) {
	if prev := State(w.state.Swap(int32(s))); prev != s {
		w.log.Debug().Str("from", prev.String()).Str("to", s.String()).Msg("State changed")
	}
}

// Tracked returns the sources and their seen sets
func (w *Worker) Tracked() []Tracked {
	return w.tracked
}

// Searches returns a copy of the current searches
func (w *Worker) Searches() []listing.Search {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]listing.Search, len(w.searches))
	copy(out, w.searches)
	return out
}

// SetSearches replaces the searches used from the next pass on
func (w *Worker) SetSearches(searches []listing.Search) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.searches = searches
}

// Restore loads the persisted seen sets. A source whose ledger entry cannot
// be read starts empty.
func (w *Worker) Restore(ctx context.Context) {
	if w.ledger == nil {
		return
	}
	for _, t := range w.tracked {
		cars, err := w.ledger.LoadSeen(ctx, t.Source.Name())
		if err != nil {
			w.log.Error().Err(err).Str("source", t.Source.Name()).Msg("Failed to load seen listings")
			continue
		}
		t.Seen.Restore(cars)
	}
}

// Start runs passes until ctx is cancelled. A pass that has begun always
// completes; cancellation is honoured while waiting for the next one.
func (w *Worker) Start(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Polling stopped")
			return ctx.Err()
		case <-timer.C:
		}
		// select picks at random when both are ready
		if err := ctx.Err(); err != nil {
			w.log.Info().Msg("Polling stopped")
			return err
		}

		stats := w.RunPass(context.WithoutCancel(ctx))
		w.log.Info().
			Int("pairs", stats.Pairs).
			Int("skipped", stats.SkippedPairs).
			Int("pages", stats.Pages).
			Int("rows", stats.Rows).
			Int("new", stats.New).
			Dur("elapsed", stats.Duration).
			Dur("next_in", w.interval).
			Msg("Pass finished")

		timer.Reset(w.interval)
	}
}

// RunPass polls every source for every search once, then persists the seen
// sets and trims the notification stream.
func (w *Worker) RunPass(ctx context.Context) PassStats {
	start := time.Now()
	searches := w.Searches()
	var stats PassStats

	for _, t := range w.tracked {
		for _, search := range searches {
			for _, c := range search.Constraints() {
				w.runPair(ctx, t, c, &stats)
			}
		}
	}
	w.setState(Idle)

	w.persist(ctx)
	if flusher, ok := w.notifier.(notifier.Flusher); ok {
		if err := flusher.Flush(ctx); err != nil {
			w.log.Warn().Err(err).Msg("Undelivered notifications remain queued")
		}
	}
	if trimmer, ok := w.notifier.(notifier.Trimmer); ok {
		if err := trimmer.TrimStreams(ctx); err != nil {
			w.log.Error().Err(err).Msg("Failed to trim streams")
			w.report("StreamTrimming", err)
		}
	}

	stats.Duration = time.Since(start)
	if w.reporter != nil && (stats.SkippedPairs > 0 || stats.ParseFailures > 0) {
		w.reporter.LogInfo("pass skipped %d of %d searches and %d of %d listings",
			stats.SkippedPairs, stats.Pairs, stats.ParseFailures, stats.Rows)
	}
	return stats
}

// runPair configures one source for one constraint set, scrapes every result
// page and notifies the listings not seen before.
func (w *Worker) runPair(ctx context.Context, t Tracked, c listing.Constraints, stats *PassStats) {
	name := t.Source.Name()
	log := w.log.WithFields(logger.Fields{"source": name, "search": c.String()})
	stats.Pairs++

	w.setState(Configuring)
	handle, err := t.Source.SubmitSearch(ctx, c)
	if err != nil {
		stats.SkippedPairs++
		w.skip(log, name, err, "Search skipped")
		return
	}
	for _, axis := range handle.Unset {
		log.Warn().Str("axis", string(axis)).Msg("No option for lower bound, left unfiltered")
	}

	pages, err := t.Source.ListPages(ctx, handle)
	if err != nil {
		stats.SkippedPairs++
		w.skip(log, name, err, "Search skipped")
		return
	}

	w.setState(Scraping)
	var rows []listing.RawListing
	for page := 1; page <= pages; page++ {
		pageRows, err := t.Source.ScrapePage(ctx, handle, page)
		if err != nil {
			w.skip(log.WithField("page", page), name, err, "Remaining pages skipped")
			break
		}
		stats.Pages++
		rows = append(rows, pageRows...)
	}

	w.setState(Filtering)
	for _, raw := range rows {
		stats.Rows++
		if raw.Source == "" {
			raw.Source = name
		}
		car, err := listing.ParseListing(raw)
		if err != nil {
			stats.ParseFailures++
			w.skip(log, name, err, "Listing skipped")
			continue
		}
		if !t.Seen.Admit(car) {
			continue
		}
		stats.New++

		ev := notifier.NewEvent(name, car)
		if err := w.notifier.Notify(ctx, ev); err != nil {
			log.Error().Err(err).Str("listing", car.String()).Msg("Failed to notify")
			w.report(name, err)
			continue
		}
		log.Info().Str("listing", car.String()).Str("url", car.URL).Msg("New listing")
	}
}

func (w *Worker) skip(log *logger.Logger, sourceName string, err error, msg string) {
	event := log.Warn()
	switch {
	case errors.IsConfigurationUnavailable(err):
		msg += ", the site cannot express this search"
	case errors.IsType(err, errors.ErrorTypeRateLimit), errors.IsRetryable(err):
		event = log.Info()
		msg += ", retrying next pass"
	}
	event.Err(err).Str("error_type", string(errors.TypeOf(err))).Msg(msg)
	w.report(sourceName, err)
}

func (w *Worker) report(sourceName string, err error) {
	if w.reporter != nil {
		w.reporter.LogError(sourceName, err)
	}
}

func (w *Worker) persist(ctx context.Context) {
	if w.ledger == nil {
		return
	}
	for _, t := range w.tracked {
		if err := w.ledger.SaveSeen(ctx, t.Source.Name(), t.Seen.Seen()); err != nil {
			w.log.Error().Err(err).Str("source", t.Source.Name()).Msg("Failed to save seen listings")
			w.report(t.Source.Name(), err)
		}
	}
}
