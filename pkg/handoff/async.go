package handoff

import (
	"context"

	"github.com/harun/lineapi/pkg/event"
	"github.com/harun/lineapi/pkg/webhook"
)

// LaneFor returns the lane an event is queued in: its conversation, or
// its kind when the source carries no identifier.
func LaneFor(ev event.Event) string {
	if id := ev.Common().Source.ConversationID(); id != "" {
		return id
	}
	return string(ev.Kind())
}

// Async wraps h so the dispatcher only enqueues the event. Events from the
// same conversation are still handled in delivery order. The returned
// handler fails only when the queue refuses the task; errors from h are
// logged by the queue.
func Async(q *Queue, h webhook.Handler) webhook.Handler {
	return webhook.HandlerFunc(func(ctx context.Context, ev event.Event) error {
		return q.Submit(ctx, LaneFor(ev), func(ctx context.Context) error {
			return h.HandleEvent(ctx, ev)
		})
	})
}
