package console

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"sjsage522/carlistingworker/internal/listing"
	"sjsage522/carlistingworker/services/worker"
)

// SearchSaver persists the searches edited in the menu
type SearchSaver interface {
	SaveSearches(searches []listing.Search) error
}

// Session is the main menu around a worker
type Session struct {
	console *Console
	worker  *worker.Worker
	saver   SearchSaver
}

// NewSession creates the main menu
func NewSession(c *Console, w *worker.Worker, saver SearchSaver) *Session {
	return &Session{console: c, worker: w, saver: saver}
}

var mainOptions = []string{
	"Start polling",
	"Edit searches",
	"Show seen listings",
	"Save and exit",
}

// Run shows the main menu until the user exits or starts polling. Polling
// runs until ctx is cancelled. Closed input or a cancelled ctx counts as
// "Save and exit".
func (s *Session) Run(ctx context.Context) error {
	s.console.watch(ctx)
	for {
		choice, err := s.console.Menu("Used Car Listing Watcher", mainOptions)
		if stopped(ctx, err) {
			return s.save()
		}
		if err != nil {
			return err
		}

		switch choice {
		case 0:
			if len(s.worker.Searches()) == 0 {
				s.console.Warning("There are no searches yet, create one first.")
				continue
			}
			if err := s.save(); err != nil {
				return err
			}
			s.console.Notification("Polling started, press Ctrl+C to stop")
			if err := s.worker.Start(ctx); err != nil && !stderrors.Is(err, context.Canceled) {
				return err
			}
			return nil

		case 1:
			searches, err := EditList(s.console, "Searches", s.worker.Searches(),
				listing.Search.String, s.console.NewSearch, s.console.EditSearch)
			if err != nil {
				if stopped(ctx, err) {
					return s.save()
				}
				return err
			}
			s.worker.SetSearches(searches)

		case 2:
			s.showSeen()

		case 3:
			return s.save()
		}
	}
}

func stopped(ctx context.Context, err error) bool {
	return stderrors.Is(err, io.EOF) || (err != nil && ctx.Err() != nil)
}

func (s *Session) save() error {
	if s.saver == nil {
		return nil
	}
	if err := s.saver.SaveSearches(s.worker.Searches()); err != nil {
		return fmt.Errorf("save searches: %w", err)
	}
	s.console.Info("Searches saved")
	return nil
}

func (s *Session) showSeen() {
	s.console.Clear()
	for _, t := range s.worker.Tracked() {
		cars := t.Seen.Seen()
		s.console.Println(fmt.Sprintf("%s (%d)", t.Source.Name(), len(cars)))
		for i, car := range cars {
			s.console.Println(fmt.Sprintf("%d: %s %s", i, car, car.URL))
		}
	}
	s.console.Println()
}
