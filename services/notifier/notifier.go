// Package notifier delivers newly found listings to the user.
package notifier

import (
	"bytes"
	"context"
	"html/template"
	"time"

	"github.com/google/uuid"

	"sjsage522/carlistingworker/internal/listing"
	"sjsage522/carlistingworker/logger"
)

// Event announces one listing seen for the first time
type Event struct {
	ID      string      `json:"id"`
	Source  string      `json:"source"`
	Car     listing.Car `json:"car"`
	FoundAt time.Time   `json:"found_at"`
}

// NewEvent stamps car with a fresh id and the current time
func NewEvent(source string, car listing.Car) Event {
	return Event{
		ID:      uuid.NewString(),
		Source:  source,
		Car:     car,
		FoundAt: time.Now().UTC(),
	}
}

// Subject is the one-line summary used as mail subject
func (e Event) Subject() string {
	return "New listing: " + e.Car.String()
}

var bodyTemplate = template.Must(template.New("body").Parse(
	`<p>Found on {{.Source}}: <b>{{.Car}}</b></p>` +
		`{{if .Car.URL}}<p><a href="{{.Car.URL}}">{{.Car.URL}}</a></p>{{end}}` +
		`<p><small>{{.FoundAt.Format "2006-01-02 15:04 MST"}}</small></p>`))

// HTML renders the mail body
func (e Event) HTML() string {
	var buf bytes.Buffer
	if err := bodyTemplate.Execute(&buf, e); err != nil {
		return template.HTMLEscapeString(e.Car.String())
	}
	return buf.String()
}

// Notifier delivers events. Notify may be called again for an event whose
// delivery failed.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
	Close() error
}

// Trimmer is implemented by notifiers whose outbound queue needs trimming
type Trimmer interface {
	TrimStreams(ctx context.Context) error
}

// Flusher is implemented by notifiers that keep undelivered events for retry
type Flusher interface {
	Flush(ctx context.Context) error
}

// LogNotifier writes events to the structured log
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier creates a notifier that only logs
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logger.ForNotifier("log")}
}

// Notify implements Notifier
func (n *LogNotifier) Notify(_ context.Context, ev Event) error {
	n.log.Info().
		Str("source", ev.Source).
		Str("url", ev.Car.URL).
		Str("event_id", ev.ID).
		Msgf("Found car: %s", ev.Car)
	return nil
}

// Close implements Notifier
func (n *LogNotifier) Close() error {
	return nil
}
