package notifier

import (
	"context"
	"encoding/json"

	"sjsage522/carlistingworker/logger"
	"sjsage522/carlistingworker/pkg/errors"
	"sjsage522/carlistingworker/services/publisher"
)

// StreamKey is the stream field the base64 encoded event is stored under
const StreamKey = "b64_listing"

// StreamNotifier publishes events as JSON to the Redis streams
type StreamNotifier struct {
	publisher publisher.Publisher
	log       *logger.Logger
}

// NewStreamNotifier wraps a publisher
func NewStreamNotifier(p publisher.Publisher) *StreamNotifier {
	return &StreamNotifier{
		publisher: p,
		log:       logger.ForNotifier("stream"),
	}
}

// Notify implements Notifier
func (n *StreamNotifier) Notify(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return errors.NewNotifier("encode event", err)
	}
	if err := n.publisher.Publish(ctx, StreamKey, data); err != nil {
		return errors.NewPublisher(ev.Source, "publish event "+ev.ID, err)
	}
	n.log.Debug().Str("event_id", ev.ID).Msg("Event published")
	return nil
}

// TrimStreams implements Trimmer
func (n *StreamNotifier) TrimStreams(ctx context.Context) error {
	if err := n.publisher.TrimStreams(ctx); err != nil {
		return errors.NewPublisher("", "trim streams", err)
	}
	return nil
}

// Close implements Notifier
func (n *StreamNotifier) Close() error {
	return n.publisher.Close()
}
