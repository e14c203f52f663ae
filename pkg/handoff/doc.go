// Package handoff runs webhook work outside the request that delivered it.
//
// Invariants:
// - Tasks in the same lane execute in FIFO order, one at a time.
// - Tasks in different lanes may execute concurrently.
// - A lane exists only while it has queued or running tasks.
//
// Usage:
//
//	queue := handoff.New(handoff.Options{Logger: logger})
//	defer queue.Close(ctx)
//	_ = dispatcher.RegisterHandler(event.KindMessage, handoff.Async(queue, slowHandler))
package handoff
