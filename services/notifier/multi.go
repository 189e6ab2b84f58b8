package notifier

import (
	"context"
	"errors"
)

// Multi fans events out to several notifiers. One failing notifier does not
// keep the others from being called.
type Multi []Notifier

// Notify implements Notifier
func (m Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// TrimStreams trims every member that supports it
func (m Multi) TrimStreams(ctx context.Context) error {
	var errs []error
	for _, n := range m {
		if t, ok := n.(Trimmer); ok {
			if err := t.TrimStreams(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Flush retries every member holding undelivered events
func (m Multi) Flush(ctx context.Context) error {
	var errs []error
	for _, n := range m {
		if f, ok := n.(Flusher); ok {
			if err := f.Flush(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close implements Notifier
func (m Multi) Close() error {
	var errs []error
	for _, n := range m {
		if err := n.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
