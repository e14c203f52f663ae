package handoff

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harun/lineapi/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "lineapi/handoff"

var (
	// ErrClosed is returned by Submit after Close was called
	ErrClosed = errors.New("handoff queue closed")
	// ErrTaskPanic wraps a panic recovered from a task
	ErrTaskPanic = errors.New("handoff task panicked")
)

// Task is one unit of deferred work
type Task func(ctx context.Context) error

// Recorder receives queue activity. *metrics.Metrics satisfies it.
type Recorder interface {
	ObserveHandoff(success bool)
	SetHandoffPending(pending int)
}

// Options configures a Queue
type Options struct {
	Logger   zerolog.Logger
	Recorder Recorder
	// WarnAfter logs a warning for tasks that waited longer than this
	// before starting. Zero disables the warning.
	WarnAfter time.Duration
}

// Stats is a snapshot of queue activity
type Stats struct {
	Lanes     int
	Pending   int
	Completed uint64
	Failed    uint64
}

type taskRecord struct {
	id         string
	task       Task
	ctx        context.Context
	enqueuedAt time.Time
	done       chan error
}

type laneState struct {
	queue   []*taskRecord
	running bool
}

// Queue runs tasks in per-lane FIFO order
type Queue struct {
	lanes     map[string]*laneState
	taskIDSeq uint64
	pending   int
	completed uint64
	failed    uint64
	closed    bool
	mu        sync.Mutex
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	options   Options
	logger    zerolog.Logger
}

// New creates an empty queue
func New(options Options) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		lanes:   make(map[string]*laneState),
		ctx:     ctx,
		cancel:  cancel,
		options: options,
		logger:  options.Logger.With().Str("component", "handoff").Logger(),
	}
}

// Submit appends task to lane and returns without waiting for it.
// The task runs with a context that keeps the tracing values of ctx but
// not its cancellation, so it can outlive the webhook request.
func (q *Queue) Submit(ctx context.Context, lane string, task Task) error {
	_, err := q.enqueue(ctx, lane, task)
	return err
}

// Do appends task to lane and waits for it to finish or for ctx to end
func (q *Queue) Do(ctx context.Context, lane string, task Task) error {
	record, err := q.enqueue(ctx, lane, task)
	if err != nil {
		return err
	}

	select {
	case err := <-record.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) enqueue(ctx context.Context, lane string, task Task) (*taskRecord, error) {
	if task == nil {
		return nil, fmt.Errorf("task is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrClosed
	}

	q.taskIDSeq++
	record := &taskRecord{
		id:         fmt.Sprintf("%s-%d", lane, q.taskIDSeq),
		task:       task,
		ctx:        tracing.WithConversation(tracing.CloneContext(ctx), lane),
		enqueuedAt: time.Now(),
		done:       make(chan error, 1),
	}

	ls, exists := q.lanes[lane]
	if !exists {
		ls = &laneState{}
		q.lanes[lane] = ls
	}
	ls.queue = append(ls.queue, record)
	queueSize := len(ls.queue)
	q.pending++
	pending := q.pending

	// A new lane has no worker yet; an existing one drains itself.
	if !exists {
		q.wg.Add(1)
		go q.runLane(lane, ls)
	}
	q.mu.Unlock()

	q.setPending(pending)

	enqueueLogger := tracing.LoggerFromContext(record.ctx, q.logger)
	enqueueLogger.Debug().
		Str("lane", lane).
		Str("task_id", record.id).
		Int("queue_size", queueSize).
		Msg("Task enqueued")

	return record, nil
}

// runLane executes the tasks of one lane until it is empty, then removes it
func (q *Queue) runLane(lane string, ls *laneState) {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		if len(ls.queue) == 0 {
			delete(q.lanes, lane)
			q.mu.Unlock()
			return
		}
		record := ls.queue[0]
		ls.queue = ls.queue[1:]
		ls.running = true
		q.mu.Unlock()

		err := q.execute(lane, record)

		q.mu.Lock()
		ls.running = false
		q.pending--
		pending := q.pending
		if err != nil {
			q.failed++
		} else {
			q.completed++
		}
		q.mu.Unlock()

		record.done <- err
		close(record.done)

		q.setPending(pending)
		if q.options.Recorder != nil {
			q.options.Recorder.ObserveHandoff(err == nil)
		}
	}
}

func (q *Queue) execute(lane string, record *taskRecord) (err error) {
	taskCtx, span := tracing.StartSpan(
		record.ctx,
		tracerName,
		"handoff.execute_task",
		attribute.String("lane", lane),
		attribute.String("task_id", record.id),
	)
	defer span.End()

	logger := tracing.LoggerFromContext(taskCtx, q.logger).With().Str("lane", lane).Str("task_id", record.id).Logger()

	wait := time.Since(record.enqueuedAt)
	if q.options.WarnAfter > 0 && wait > q.options.WarnAfter {
		logger.Warn().Dur("wait", wait).Msg("Task waited longer than expected")
	}

	runCtx, cancel := context.WithCancel(taskCtx)
	stopCancel := context.AfterFunc(q.ctx, cancel)
	defer func() {
		stopCancel()
		cancel()
	}()

	startTime := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
		}

		duration := time.Since(startTime)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Error().Err(err).Dur("duration", duration).Msg("Task failed")
			return
		}
		logger.Debug().Dur("duration", duration).Msg("Task completed")
	}()

	return record.task(runCtx)
}

func (q *Queue) setPending(pending int) {
	if q.options.Recorder != nil {
		q.options.Recorder.SetHandoffPending(pending)
	}
}

// Pending returns the number of tasks queued or running in lane
func (q *Queue) Pending(lane string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	ls, exists := q.lanes[lane]
	if !exists {
		return 0
	}
	pending := len(ls.queue)
	if ls.running {
		pending++
	}
	return pending
}

// Stats returns a snapshot of queue activity
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return Stats{
		Lanes:     len(q.lanes),
		Pending:   q.pending,
		Completed: q.completed,
		Failed:    q.failed,
	}
}

// Close stops accepting tasks and waits for queued ones to finish. When
// ctx ends first, running tasks see their context cancelled and Close
// returns ctx.Err().
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		q.cancel()
		q.logger.Info().Msg("Hand-off queue drained")
		return nil
	case <-ctx.Done():
		q.cancel()
		q.logger.Warn().Msg("Timeout waiting for hand-off tasks")
		return ctx.Err()
	}
}
