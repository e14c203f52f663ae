// Package relay republishes parsed webhook events to NATS so other services
// can consume them without a webhook endpoint of their own.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/harun/lineapi/internal/tracing"
	"github.com/harun/lineapi/pkg/event"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// DefaultSubjectPrefix is prepended to the event kind to build the subject
const DefaultSubjectPrefix = "line.events"

// Message is the JSON body published for every event
type Message struct {
	Kind      event.Kind  `json:"kind"`
	EventID   string      `json:"eventId"`
	RequestID string      `json:"requestId,omitempty"`
	Event     event.Event `json:"event"`
}

// Recorder receives publish outcomes. *metrics.Metrics satisfies it.
type Recorder interface {
	ObserveRelay(kind string, err error)
}

// Options configures a Publisher
type Options struct {
	SubjectPrefix string
	Recorder      Recorder
	Logger        zerolog.Logger
}

// Publisher is a webhook handler that publishes each event it receives
type Publisher struct {
	nc       *nats.Conn
	prefix   string
	recorder Recorder
	logger   zerolog.Logger
}

// NewPublisher creates a Publisher on an established connection
func NewPublisher(nc *nats.Conn, options Options) (*Publisher, error) {
	if nc == nil {
		return nil, fmt.Errorf("nats connection is required")
	}

	prefix := strings.TrimSuffix(options.SubjectPrefix, ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}

	return &Publisher{
		nc:       nc,
		prefix:   prefix,
		recorder: options.Recorder,
		logger:   options.Logger.With().Str("component", "relay").Logger(),
	}, nil
}

// Subject returns the subject events of kind are published to
func (p *Publisher) Subject(kind event.Kind) string {
	return p.prefix + "." + string(kind)
}

// HandleEvent publishes ev to <prefix>.<kind>
func (p *Publisher) HandleEvent(ctx context.Context, ev event.Event) error {
	err := p.publish(ctx, ev)
	if p.recorder != nil {
		p.recorder.ObserveRelay(string(ev.Kind()), err)
	}
	return err
}

func (p *Publisher) publish(ctx context.Context, ev event.Event) error {
	msg := Message{
		Kind:      ev.Kind(),
		EventID:   ev.Common().WebhookEventID,
		RequestID: tracing.GetRequestID(ctx),
		Event:     ev,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", msg.EventID, err)
	}

	subject := p.Subject(msg.Kind)
	if err := p.nc.Publish(subject, data); err != nil {
		logger := tracing.LoggerFromContext(ctx, p.logger)
		logger.Error().Err(err).Str("subject", subject).Msg("Failed to publish event")
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	logger := tracing.LoggerFromContext(ctx, p.logger)
	logger.Debug().Str("subject", subject).Msg("Event published")
	return nil
}

// Connect dials a NATS server with reconnects enabled
func Connect(url, name string, logger zerolog.Logger) (*nats.Conn, error) {
	if url == "" {
		url = nats.DefaultURL
	}

	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", url, err)
	}
	return nc, nil
}
