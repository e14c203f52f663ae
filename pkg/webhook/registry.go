package webhook

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/harun/lineapi/pkg/event"
)

// Handler processes one parsed webhook event
type Handler interface {
	HandleEvent(ctx context.Context, ev event.Event) error
}

// HandlerFunc adapts a plain function to Handler
type HandlerFunc func(ctx context.Context, ev event.Event) error

// HandleEvent calls f(ctx, ev)
func (f HandlerFunc) HandleEvent(ctx context.Context, ev event.Event) error {
	return f(ctx, ev)
}

// Registry maps event kinds to handlers in registration order.
// It is meant to be filled at start-up and only read afterwards.
type Registry struct {
	handlers map[event.Kind][]Handler
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[event.Kind][]Handler),
	}
}

// RegisterHandler appends h to the handlers of kind
func (r *Registry) RegisterHandler(kind event.Kind, h Handler) error {
	if !kind.Known() {
		return fmt.Errorf("cannot register handler for unknown event kind %q", kind)
	}
	if h == nil {
		return errors.New("handler is required")
	}

	r.mu.Lock()
	r.handlers[kind] = append(r.handlers[kind], h)
	r.mu.Unlock()
	return nil
}

// HandlerCount returns the number of handlers across all kinds
func (r *Registry) HandlerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, hs := range r.handlers {
		total += len(hs)
	}
	return total
}

// HandlerCountFor returns the number of handlers registered for kind
func (r *Registry) HandlerCountFor(kind event.Kind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[kind])
}

// handlersFor returns a snapshot so dispatch never holds the lock while
// user code runs
func (r *Registry) handlersFor(kind event.Kind) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hs := r.handlers[kind]
	if len(hs) == 0 {
		return nil
	}
	out := make([]Handler, len(hs))
	copy(out, hs)
	return out
}

func on[T event.Event](r *Registry, kind event.Kind, fn func(context.Context, T) error) error {
	if fn == nil {
		return errors.New("handler is required")
	}
	return r.RegisterHandler(kind, HandlerFunc(func(ctx context.Context, ev event.Event) error {
		typed, ok := ev.(T)
		if !ok {
			return fmt.Errorf("unexpected %T for %s handler", ev, kind)
		}
		return fn(ctx, typed)
	}))
}

// OnMessage registers fn for message events
func (r *Registry) OnMessage(fn func(context.Context, *event.MessageEvent) error) error {
	return on(r, event.KindMessage, fn)
}

// OnPostback registers fn for postback events
func (r *Registry) OnPostback(fn func(context.Context, *event.PostbackEvent) error) error {
	return on(r, event.KindPostback, fn)
}

// OnFollow registers fn for follow events
func (r *Registry) OnFollow(fn func(context.Context, *event.FollowEvent) error) error {
	return on(r, event.KindFollow, fn)
}

// OnUnfollow registers fn for unfollow events
func (r *Registry) OnUnfollow(fn func(context.Context, *event.UnfollowEvent) error) error {
	return on(r, event.KindUnfollow, fn)
}

// OnJoin registers fn for events sent when the bot joins a group or room
func (r *Registry) OnJoin(fn func(context.Context, *event.JoinEvent) error) error {
	return on(r, event.KindJoin, fn)
}

// OnLeave registers fn for events sent when the bot is removed from a group or room
func (r *Registry) OnLeave(fn func(context.Context, *event.LeaveEvent) error) error {
	return on(r, event.KindLeave, fn)
}

// OnUnsend registers fn for unsent messages
func (r *Registry) OnUnsend(fn func(context.Context, *event.UnsendEvent) error) error {
	return on(r, event.KindUnsend, fn)
}

// OnMemberJoined registers fn for users joining a group or room
func (r *Registry) OnMemberJoined(fn func(context.Context, *event.MemberJoinedEvent) error) error {
	return on(r, event.KindMemberJoined, fn)
}

// OnMemberLeft registers fn for users leaving a group or room
func (r *Registry) OnMemberLeft(fn func(context.Context, *event.MemberLeftEvent) error) error {
	return on(r, event.KindMemberLeft, fn)
}

// OnBeacon registers fn for beacon events
func (r *Registry) OnBeacon(fn func(context.Context, *event.BeaconEvent) error) error {
	return on(r, event.KindBeacon, fn)
}

// OnAccountLink registers fn for account link results
func (r *Registry) OnAccountLink(fn func(context.Context, *event.AccountLinkEvent) error) error {
	return on(r, event.KindAccountLink, fn)
}

// OnVideoPlayComplete registers fn for videos watched to the end
func (r *Registry) OnVideoPlayComplete(fn func(context.Context, *event.VideoPlayCompleteEvent) error) error {
	return on(r, event.KindVideoPlayComplete, fn)
}
