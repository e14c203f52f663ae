// Package event models LINE webhook deliveries.
//
// Invariants:
// - Every recognized event type decodes into its own struct; unrecognized types
//   decode into *UnknownEvent instead of failing the delivery.
// - Event.Kind() always matches the variant's payload shape.
// - Timestamps stay in epoch milliseconds and text is never normalized.
//
// Usage:
//
//	env, err := event.Parse(body)
//	if err != nil {
//		return err // errors.Is(err, event.ErrValidation)
//	}
//	for _, ev := range env.Events {
//		if msg, ok := ev.(*event.MessageEvent); ok {
//			_ = msg.Message
//		}
//	}
package event
