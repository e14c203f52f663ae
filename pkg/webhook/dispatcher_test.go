package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harun/lineapi/pkg/event"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-channel-secret"

	hiPayload = `{"destination":"U1","events":[{"type":"message","timestamp":1,"source":{"type":"user","userId":"U2"},"mode":"active","webhookEventId":"E1","deliveryContext":{"isRedelivery":false},"replyToken":"R1","message":{"id":"M1","type":"text","text":"hi"}}]}`
)

func createTestDispatcher(t *testing.T, mutate ...func(*Options)) *Dispatcher {
	t.Helper()

	options := DefaultOptions(testSecret)
	options.Logger = zerolog.Nop()
	for _, m := range mutate {
		m(&options)
	}

	d, err := NewDispatcher(options)
	require.NoError(t, err)
	return d
}

func textEvent(id string, text string, redelivery bool) string {
	return fmt.Sprintf(`{"type":"message","timestamp":1625665242211,"source":{"type":"user","userId":"U2"},"mode":"active","webhookEventId":%q,"deliveryContext":{"isRedelivery":%t},"replyToken":"R-%s","message":{"id":"M-%s","type":"text","text":%q}}`,
		id, redelivery, id, id, text)
}

func envelope(events ...string) []byte {
	return []byte(`{"destination":"U1","events":[` + strings.Join(events, ",") + `]}`)
}

func signed(d *Dispatcher, body []byte) (context.Context, []byte, string) {
	return context.Background(), body, Sign(body, testSecret)
}

func TestNewDispatcherRequiresSecret(t *testing.T) {
	_, err := NewDispatcher(Options{VerifySignature: true})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "channel secret is required")

	_, err = NewDispatcher(Options{VerifySignature: false})
	assert.NoError(t, err)
}

func TestHandleWebhookHiScenario(t *testing.T) {
	d := createTestDispatcher(t)

	var seen []string
	require.NoError(t, d.OnMessage(func(ctx context.Context, ev *event.MessageEvent) error {
		seen = append(seen, ev.Message.(*event.TextMessage).Text)
		return nil
	}))

	body := []byte(hiPayload)
	resp := d.HandleWebhook(context.Background(), body, Sign(body, testSecret), nil)

	assert.Equal(t, []string{"hi"}, seen)
	assert.Equal(t, WebhookResponse{Status: StatusOK, ProcessedEvents: 1}, resp)

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"OK","processed_events":1}`, string(data))
}

func TestHandleWebhookUsesParsedPayload(t *testing.T) {
	d := createTestDispatcher(t)

	var text string
	require.NoError(t, d.OnMessage(func(ctx context.Context, ev *event.MessageEvent) error {
		text = ev.Message.(*event.TextMessage).Text
		return nil
	}))

	body := []byte(hiPayload)
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &payload))

	resp := d.HandleWebhook(context.Background(), body, Sign(body, testSecret), payload)
	assert.True(t, resp.OK())
	assert.Equal(t, "hi", text)
}

func TestHandleWebhookBadSignature(t *testing.T) {
	d := createTestDispatcher(t)

	called := false
	require.NoError(t, d.OnMessage(func(ctx context.Context, ev *event.MessageEvent) error {
		called = true
		return nil
	}))

	resp := d.HandleWebhook(context.Background(), []byte(hiPayload), "sha256=deadbeef", nil)

	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, MessageInvalidSignature, resp.Message)
	assert.Equal(t, 0, resp.ProcessedEvents)
	assert.False(t, called)
}

func TestHandleWebhookMissingSignature(t *testing.T) {
	d := createTestDispatcher(t)

	resp, err := d.Process(context.Background(), []byte(hiPayload), "")
	assert.Equal(t, StatusError, resp.Status)

	var sigErr *SignatureVerificationError
	require.ErrorAs(t, err, &sigErr)
	assert.Equal(t, ReasonMissingSignature, sigErr.Reason)
}

func TestHandleWebhookVerificationDisabled(t *testing.T) {
	d := createTestDispatcher(t, func(o *Options) {
		o.VerifySignature = false
		o.ChannelSecret = ""
	})

	calls := 0
	require.NoError(t, d.OnMessage(func(ctx context.Context, ev *event.MessageEvent) error {
		calls++
		return nil
	}))

	resp := d.HandleWebhook(context.Background(), []byte(hiPayload), "garbage", nil)
	assert.True(t, resp.OK())
	assert.Equal(t, 1, calls)
}

func TestHandleWebhookInvalidPayload(t *testing.T) {
	d := createTestDispatcher(t)

	called := false
	require.NoError(t, d.OnMessage(func(ctx context.Context, ev *event.MessageEvent) error {
		called = true
		return nil
	}))

	bodies := map[string][]byte{
		"not json":          []byte(`{"destination":`),
		"missing events":    []byte(`{"destination":"U1"}`),
		"events not array":  []byte(`{"destination":"U1","events":{}}`),
		"missing common":    []byte(`{"destination":"U1","events":[{"type":"message","message":{"id":"1","type":"text","text":"x"}}]}`),
		"one bad in batch":  envelope(textEvent("E1", "ok", false), `{"type":"follow","timestamp":"yesterday"}`),
		"text without text": envelope(`{"type":"message","timestamp":1,"source":{"type":"user","userId":"U"},"mode":"active","webhookEventId":"E","deliveryContext":{"isRedelivery":false},"message":{"id":"1","type":"text"}}`),
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			resp, err := d.Process(signed(d, body))

			assert.Equal(t, StatusError, resp.Status)
			assert.Equal(t, MessageInvalidPayload, resp.Message)

			var perr *PayloadValidationError
			require.ErrorAs(t, err, &perr)
			assert.NotEmpty(t, perr.Field)
			assert.True(t, errors.Is(err, event.ErrValidation))
		})
	}

	assert.False(t, called)
}

func TestHandleWebhookErrorMessageHidesDetails(t *testing.T) {
	d := createTestDispatcher(t)

	body := []byte(`{"destination":"U1","events":[{"type":"message","timestamp":"secret-internals"}]}`)
	resp := d.HandleWebhook(context.Background(), body, Sign(body, testSecret), nil)

	assert.Equal(t, MessageInvalidPayload, resp.Message)
	assert.NotContains(t, resp.Message, "timestamp")
}

func TestHandleWebhookDeduplication(t *testing.T) {
	d := createTestDispatcher(t)

	calls := map[string]int{}
	require.NoError(t, d.OnMessage(func(ctx context.Context, ev *event.MessageEvent) error {
		calls[ev.WebhookEventID]++
		return nil
	}))

	body := envelope(textEvent("E1", "a", false), textEvent("E2", "b", false))

	first, err := d.Process(signed(d, body))
	require.NoError(t, err)
	assert.Equal(t, 2, first.ProcessedEvents)

	second, err := d.Process(signed(d, body))
	require.NoError(t, err)
	assert.Equal(t, StatusOK, second.Status)
	assert.Equal(t, 0, second.ProcessedEvents)

	assert.Equal(t, map[string]int{"E1": 1, "E2": 1}, calls)

	stats := d.stats.GetStatsForKind("message")
	require.NotNil(t, stats)
	assert.Equal(t, int64(4), stats.Received)
	assert.Equal(t, int64(2), stats.Duplicates)
}

func TestHandleWebhookRedelivery(t *testing.T) {
	d := createTestDispatcher(t)

	calls := 0
	require.NoError(t, d.OnMessage(func(ctx context.Context, ev *event.MessageEvent) error {
		calls++
		return nil
	}))

	original := envelope(textEvent("E1", "hi", false))
	redelivered := envelope(textEvent("E1", "hi", true))

	resp := d.HandleWebhook(context.Background(), original, Sign(original, testSecret), nil)
	assert.Equal(t, 1, resp.ProcessedEvents)

	resp = d.HandleWebhook(context.Background(), redelivered, Sign(redelivered, testSecret), nil)
	assert.True(t, resp.OK())
	assert.Equal(t, 0, resp.ProcessedEvents)

	assert.Equal(t, 1, calls)
}

func TestHandleWebhookDuplicateWithinBatch(t *testing.T) {
	d := createTestDispatcher(t)

	calls := 0
	require.NoError(t, d.OnMessage(func(ctx context.Context, ev *event.MessageEvent) error {
		calls++
		return nil
	}))

	body := envelope(textEvent("E1", "a", false), textEvent("E1", "a", true))
	resp, err := d.Process(signed(d, body))
	require.NoError(t, err)

	assert.Equal(t, 1, resp.ProcessedEvents)
	assert.Equal(t, 1, calls)
}

func TestHandleWebhookTrackingDisabled(t *testing.T) {
	d := createTestDispatcher(t, func(o *Options) {
		o.TrackProcessedEvents = false
	})

	calls := 0
	require.NoError(t, d.OnMessage(func(ctx context.Context, ev *event.MessageEvent) error {
		calls++
		return nil
	}))

	body := []byte(hiPayload)
	for i := 0; i < 3; i++ {
		resp, err := d.Process(signed(d, body))
		require.NoError(t, err)
		assert.Equal(t, 1, resp.ProcessedEvents)
	}
	assert.Equal(t, 3, calls)
}

type failingStore struct{}

func (failingStore) MarkIfAbsent(context.Context, string) (bool, error) {
	return false, errors.New("store down")
}

func TestHandleWebhookStoreErrorFailsOpen(t *testing.T) {
	d := createTestDispatcher(t, func(o *Options) {
		o.Store = failingStore{}
	})

	calls := 0
	require.NoError(t, d.OnMessage(func(ctx context.Context, ev *event.MessageEvent) error {
		calls++
		return nil
	}))

	resp, err := d.Process(signed(d, []byte(hiPayload)))
	require.NoError(t, err)
	assert.Equal(t, 1, resp.ProcessedEvents)
	assert.Equal(t, 1, calls)
}

func TestHandleWebhookHandlerIsolation(t *testing.T) {
	d := createTestDispatcher(t)

	var order []string
	require.NoError(t, d.OnMessage(func(ctx context.Context, ev *event.MessageEvent) error {
		order = append(order, "failing")
		return errors.New("boom")
	}))
	require.NoError(t, d.OnMessage(func(ctx context.Context, ev *event.MessageEvent) error {
		order = append(order, "second")
		return nil
	}))

	resp, err := d.Process(signed(d, []byte(hiPayload)))
	require.NoError(t, err)

	assert.Equal(t, StatusOK, resp.Status)
	assert.Equal(t, 1, resp.ProcessedEvents)
	assert.Equal(t, []string{"failing", "second"}, order)

	stats := d.stats.GetStatsForKind("message")
	require.NotNil(t, stats)
	assert.Equal(t, int64(1), stats.HandlerFailures)
}

func TestHandleWebhookHandlerPanicIsContained(t *testing.T) {
	d := createTestDispatcher(t)

	var events []string
	require.NoError(t, d.OnMessage(func(ctx context.Context, ev *event.MessageEvent) error {
		if ev.WebhookEventID == "E1" {
			panic("handler bug")
		}
		return nil
	}))
	require.NoError(t, d.OnMessage(func(ctx context.Context, ev *event.MessageEvent) error {
		events = append(events, ev.WebhookEventID)
		return nil
	}))

	body := envelope(textEvent("E1", "a", false), textEvent("E2", "b", false))

	var resp WebhookResponse
	assert.NotPanics(t, func() {
		resp = d.HandleWebhook(context.Background(), body, Sign(body, testSecret), nil)
	})

	assert.Equal(t, StatusOK, resp.Status)
	assert.Equal(t, 2, resp.ProcessedEvents)
	assert.Equal(t, []string{"E1", "E2"}, events)
}

func TestInvokeWrapsPanic(t *testing.T) {
	d := createTestDispatcher(t)

	err := d.invoke(context.Background(), HandlerFunc(func(ctx context.Context, ev event.Event) error {
		panic("kaboom")
	}), &event.FollowEvent{Base: event.Base{Type: event.KindFollow, WebhookEventID: "E"}})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHandlerPanic))
	assert.Contains(t, err.Error(), "kaboom")
}

func TestHandleWebhookOrderPreservation(t *testing.T) {
	d := createTestDispatcher(t)

	var trace []string
	record := func(name string) func(context.Context, *event.MessageEvent) error {
		return func(ctx context.Context, ev *event.MessageEvent) error {
			trace = append(trace, name+":"+ev.WebhookEventID)
			return nil
		}
	}
	require.NoError(t, d.OnMessage(record("H1")))
	require.NoError(t, d.OnMessage(record("H2")))

	body := envelope(textEvent("E1", "a", false), textEvent("E2", "b", false), textEvent("E3", "c", false))
	resp, err := d.Process(signed(d, body))
	require.NoError(t, err)
	assert.Equal(t, 3, resp.ProcessedEvents)

	assert.Equal(t, []string{
		"H1:E1", "H2:E1",
		"H1:E2", "H2:E2",
		"H1:E3", "H2:E3",
	}, trace)
}

func TestHandleWebhookUnknownKindTolerance(t *testing.T) {
	d := createTestDispatcher(t)

	calls := 0
	require.NoError(t, d.OnMessage(func(ctx context.Context, ev *event.MessageEvent) error {
		calls++
		return nil
	}))

	unknown := `{"type":"membershipRenewed","timestamp":1,"webhookEventId":"E-unknown","whatever":{"nested":true}}`
	body := envelope(textEvent("E1", "hi", false), unknown)

	resp, err := d.Process(signed(d, body))
	require.NoError(t, err)

	assert.Equal(t, StatusOK, resp.Status)
	assert.Equal(t, 1, resp.ProcessedEvents)
	assert.Equal(t, 1, calls)

	// Unknown ids are never recorded, so a later known event reusing one still runs
	first, err := d.store.MarkIfAbsent(context.Background(), "E-unknown")
	require.NoError(t, err)
	assert.True(t, first)
}

func TestHandleWebhookEventWithoutHandlersCountsAsProcessed(t *testing.T) {
	d := createTestDispatcher(t)

	resp, err := d.Process(signed(d, []byte(hiPayload)))
	require.NoError(t, err)
	assert.Equal(t, 1, resp.ProcessedEvents)
}

func TestHandleWebhookEmptyBatch(t *testing.T) {
	d := createTestDispatcher(t)

	resp, err := d.Process(signed(d, []byte(`{"destination":"U1","events":[]}`)))
	require.NoError(t, err)
	assert.Equal(t, WebhookResponse{Status: StatusOK, ProcessedEvents: 0}, resp)
}

func TestHandleWebhookRoutesByKind(t *testing.T) {
	d := createTestDispatcher(t)

	var got []string
	require.NoError(t, d.OnFollow(func(ctx context.Context, ev *event.FollowEvent) error {
		got = append(got, "follow")
		return nil
	}))
	require.NoError(t, d.OnPostback(func(ctx context.Context, ev *event.PostbackEvent) error {
		got = append(got, "postback:"+ev.Postback.Data)
		return nil
	}))
	require.NoError(t, d.RegisterHandler(event.KindUnfollow, HandlerFunc(func(ctx context.Context, ev event.Event) error {
		got = append(got, "unfollow")
		return nil
	})))

	common := `"timestamp":1,"source":{"type":"user","userId":"U2"},"mode":"active","deliveryContext":{"isRedelivery":false}`
	body := envelope(
		`{"type":"follow","replyToken":"r",`+common+`,"webhookEventId":"F1"}`,
		`{"type":"postback","replyToken":"r",`+common+`,"webhookEventId":"P1","postback":{"data":"a=1"}}`,
		`{"type":"unfollow",`+common+`,"webhookEventId":"U1"}`,
	)

	resp, err := d.Process(signed(d, body))
	require.NoError(t, err)
	assert.Equal(t, 3, resp.ProcessedEvents)
	assert.Equal(t, []string{"follow", "postback:a=1", "unfollow"}, got)
}

type recordingRecorder struct {
	mu         sync.Mutex
	deliveries []string
	events     []string
}

func (r *recordingRecorder) ObserveDelivery(status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, status)
}

func (r *recordingRecorder) ObserveEvent(kind string, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, kind+":"+outcome)
}

func (r *recordingRecorder) ObserveHandler(string, time.Duration, bool) {}

func TestDispatcherRecorder(t *testing.T) {
	rec := &recordingRecorder{}
	d := createTestDispatcher(t, func(o *Options) {
		o.Recorder = rec
	})

	body := []byte(hiPayload)
	d.HandleWebhook(context.Background(), body, Sign(body, testSecret), nil)
	d.HandleWebhook(context.Background(), body, Sign(body, testSecret), nil)
	d.HandleWebhook(context.Background(), body, "bad", nil)

	assert.Equal(t, []string{"OK", "OK", "ERROR"}, rec.deliveries)
	assert.Equal(t, []string{"message:processed", "message:duplicate"}, rec.events)

	deliveries := d.Deliveries()
	assert.Equal(t, int64(2), deliveries.Accepted)
	assert.Equal(t, int64(1), deliveries.Rejected)
	assert.Len(t, d.Stats(), 1)
}

func TestDispatcherConcurrentDeliveriesDedup(t *testing.T) {
	d := createTestDispatcher(t)

	var mu sync.Mutex
	calls := 0
	require.NoError(t, d.OnMessage(func(ctx context.Context, ev *event.MessageEvent) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	}))

	body := []byte(hiPayload)
	sig := Sign(body, testSecret)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.HandleWebhook(context.Background(), body, sig, nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, calls)
}
