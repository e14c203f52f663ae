package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harun/lineapi/internal/tracing"
	"github.com/harun/lineapi/pkg/event"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "lineapi/webhook"

// Options configures a Dispatcher
type Options struct {
	ChannelSecret        string
	VerifySignature      bool
	TrackProcessedEvents bool

	// Store remembers processed event ids. Defaults to a MemoryStore when
	// TrackProcessedEvents is set.
	Store ProcessedEventStore

	// Recorder receives dispatch outcomes in addition to the dispatcher's own stats
	Recorder Recorder

	Logger zerolog.Logger
}

// DefaultOptions returns options with signature verification and
// de-duplication enabled
func DefaultOptions(channelSecret string) Options {
	return Options{
		ChannelSecret:        channelSecret,
		VerifySignature:      true,
		TrackProcessedEvents: true,
		Logger:               zerolog.Nop(),
	}
}

// Dispatcher verifies webhook deliveries, parses them and fans each event
// out to the handlers registered for its kind.
//
// A Dispatcher is safe for concurrent use once registration is done.
type Dispatcher struct {
	*Registry

	options  Options
	store    ProcessedEventStore
	stats    *MetricsTracker
	recorder Recorder
	logger   zerolog.Logger
}

// NewDispatcher creates a dispatcher with an empty registry
func NewDispatcher(options Options) (*Dispatcher, error) {
	if options.VerifySignature && options.ChannelSecret == "" {
		return nil, errors.New("channel secret is required when signature verification is enabled")
	}

	store := options.Store
	if options.TrackProcessedEvents && store == nil {
		store = NewMemoryStore(DefaultDedupCapacity, DefaultDedupTTL)
	}
	if !options.TrackProcessedEvents {
		store = nil
	}

	stats := NewMetricsTracker()
	var recorder Recorder = stats
	if options.Recorder != nil {
		recorder = multiRecorder{stats, options.Recorder}
	}

	return &Dispatcher{
		Registry: NewRegistry(),
		options:  options,
		store:    store,
		stats:    stats,
		recorder: recorder,
		logger:   options.Logger.With().Str("component", "dispatcher").Logger(),
	}, nil
}

// HandleWebhook processes one delivery and always returns a response.
// body must be the raw request bytes; payload, when non-nil, is the same body
// already decoded and is parsed instead of body.
func (d *Dispatcher) HandleWebhook(ctx context.Context, body []byte, signature string, payload map[string]interface{}) WebhookResponse {
	resp, _ := d.dispatch(ctx, body, signature, payload)
	return resp
}

// Process is HandleWebhook for transports that need the boundary error to
// pick a status code (see HTTPStatus). The error is a
// *SignatureVerificationError or *PayloadValidationError, never a handler error.
func (d *Dispatcher) Process(ctx context.Context, body []byte, signature string) (WebhookResponse, error) {
	return d.dispatch(ctx, body, signature, nil)
}

// Stats returns per-kind processing counters
func (d *Dispatcher) Stats() []KindStats {
	return d.stats.GetStats()
}

// StatsFor returns the counters of one kind, or nil if none were recorded
func (d *Dispatcher) StatsFor(kind string) *KindStats {
	return d.stats.GetStatsForKind(kind)
}

// Deliveries returns delivery counters by status
func (d *Dispatcher) Deliveries() DeliveryStats {
	return d.stats.GetDeliveries()
}

func (d *Dispatcher) dispatch(ctx context.Context, body []byte, signature string, payload map[string]interface{}) (WebhookResponse, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	ctx, span := tracing.StartSpan(ctx, tracerName, "webhook.dispatch",
		attribute.Int("webhook.body_bytes", len(body)),
		attribute.Bool("webhook.verify_signature", d.options.VerifySignature),
	)
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, d.logger)

	if d.options.VerifySignature {
		if err := VerifyStrict(body, signature, d.options.ChannelSecret); err != nil {
			logger.Warn().Err(err).Msg("Rejected webhook delivery")
			span.RecordError(err)
			span.SetStatus(codes.Error, MessageInvalidSignature)
			d.recorder.ObserveDelivery(string(StatusError), time.Since(start))
			return errorResponse(MessageInvalidSignature), err
		}
	}

	var (
		env *event.Envelope
		err error
	)
	if payload != nil {
		env, err = event.ParseMap(payload)
	} else {
		env, err = event.Parse(body)
	}
	if err != nil {
		perr := newPayloadValidationError(err)
		logger.Warn().Err(err).Str("field", perr.Field).Msg("Rejected malformed webhook payload")
		span.RecordError(perr)
		span.SetStatus(codes.Error, MessageInvalidPayload)
		d.recorder.ObserveDelivery(string(StatusError), time.Since(start))
		return errorResponse(MessageInvalidPayload), perr
	}

	logger = logger.With().Str("destination", env.Destination).Logger()
	span.SetAttributes(attribute.Int("webhook.events", len(env.Events)))

	processed := 0
	for _, ev := range env.Events {
		if d.dispatchEvent(ctx, logger, ev) {
			processed++
		}
	}

	span.SetAttributes(attribute.Int("webhook.processed_events", processed))
	d.recorder.ObserveDelivery(string(StatusOK), time.Since(start))

	logger.Debug().
		Int("events", len(env.Events)).
		Int("processed", processed).
		Dur("duration", time.Since(start)).
		Msg("Webhook delivery dispatched")

	return okResponse(processed), nil
}

// dispatchEvent runs every handler for ev and reports whether ev counts as processed
func (d *Dispatcher) dispatchEvent(ctx context.Context, logger zerolog.Logger, ev event.Event) bool {
	base := ev.Common()
	kind := ev.Kind()

	logger = logger.With().
		Str("event_id", base.WebhookEventID).
		Str("kind", string(kind)).
		Logger()

	// Unknown kinds are checked before the store so their ids are never recorded
	if !kind.Known() {
		err := &UnknownEventKindError{EventID: base.WebhookEventID, Kind: kind}
		logger.Debug().Err(err).Msg("Skipping event")
		d.recorder.ObserveEvent(string(kind), OutcomeUnknown)
		return false
	}

	if d.store != nil {
		first, err := d.store.MarkIfAbsent(ctx, base.WebhookEventID)
		switch {
		case err != nil:
			logger.Error().Err(err).Msg("Processed-event store unavailable, dispatching anyway")
		case !first:
			logger.Debug().
				Bool("redelivery", base.DeliveryContext.IsRedelivery).
				Msg("Skipping duplicate event")
			d.recorder.ObserveEvent(string(kind), OutcomeDuplicate)
			return false
		}
	}

	for i, h := range d.handlersFor(kind) {
		start := time.Now()
		err := d.invoke(ctx, h, ev)
		d.recorder.ObserveHandler(string(kind), time.Since(start), err != nil)
		if err != nil {
			herr := &HandlerExecutionError{
				EventID: base.WebhookEventID,
				Kind:    kind,
				Index:   i,
				Err:     err,
			}
			logger.Error().Err(herr).Int("handler", i).Msg("Event handler failed")
		}
	}

	d.recorder.ObserveEvent(string(kind), OutcomeProcessed)
	return true
}

func (d *Dispatcher) invoke(ctx context.Context, h Handler, ev event.Event) (err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "webhook.handler",
		attribute.String("line.event_kind", string(ev.Kind())),
		attribute.String("line.webhook_event_id", ev.Common().WebhookEventID),
	)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	return h.HandleEvent(ctx, ev)
}
