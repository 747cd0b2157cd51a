package importer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/the-paperwork-must-flow/internal/common"
)

var (
	// ErrQueueClosed is returned when a job is enqueued after Stop.
	ErrQueueClosed = errors.New("import queue closed")
	// ErrQueueFull is returned when every queue slot is taken.
	ErrQueueFull = errors.New("import queue full")
)

// QueueConfig sizes the background worker pool.
type QueueConfig struct {
	Workers    int
	Size       int
	RunTimeout time.Duration
}

// Queue runs import sessions on a fixed pool of background workers.
type Queue struct {
	runner  Runner
	jobs    chan string
	cancel  context.CancelFunc
	cfg     QueueConfig
	wg      sync.WaitGroup

	// scheduled holds ids that are queued or running; running ones carry the
	// cancel func of their run.
	scheduled map[string]context.CancelFunc
	mu        sync.Mutex
	started   bool
	closed    bool
}

// NewQueue creates a queue that hands session ids to runner.
func NewQueue(runner Runner, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Size <= 0 {
		cfg.Size = 64
	}
	return &Queue{
		runner:    runner,
		jobs:      make(chan string, cfg.Size),
		cfg:       cfg,
		scheduled: make(map[string]context.CancelFunc),
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true

	ctx, q.cancel = context.WithCancel(ctx)
	q.wg.Add(q.cfg.Workers)
	for i := 0; i < q.cfg.Workers; i++ {
		go func(workerID int) {
			defer q.wg.Done()
			q.worker(ctx, workerID)
		}(i)
	}
	slog.Info("Import queue started", "workers", q.cfg.Workers, "capacity", q.cfg.Size)
}

// Enqueue schedules a session without waiting. A session that is already queued
// or running is not scheduled twice. ErrQueueFull is returned when no slot is free.
func (q *Queue) Enqueue(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	if _, ok := q.scheduled[sessionID]; ok {
		return nil
	}

	select {
	case q.jobs <- sessionID:
		q.scheduled[sessionID] = nil
		return nil
	default:
		return ErrQueueFull
	}
}

// Scheduled reports whether sessionID is queued or running.
func (q *Queue) Scheduled(sessionID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.scheduled[sessionID]
	return ok
}

// Cancel stops the run of sessionID if a worker is processing it.
func (q *Queue) Cancel(sessionID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if cancel := q.scheduled[sessionID]; cancel != nil {
		cancel()
	}
}

func (q *Queue) running(sessionID string, cancel context.CancelFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.scheduled[sessionID] = cancel
}

func (q *Queue) finished(sessionID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.scheduled, sessionID)
}

// Stop refuses new jobs, lets the workers drain what is queued, and waits for them.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	started := q.started
	q.mu.Unlock()

	if !started {
		return
	}
	q.wg.Wait()
	q.cancel()
	slog.Info("Import queue stopped")
}

func (q *Queue) worker(ctx context.Context, workerID int) {
	for sessionID := range q.jobs {
		q.process(ctx, workerID, sessionID)
	}
}

func (q *Queue) process(ctx context.Context, workerID int, sessionID string) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	q.running(sessionID, cancel)
	defer q.finished(sessionID)

	if q.cfg.RunTimeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, q.cfg.RunTimeout)
		defer cancelTimeout()
	}

	runCtx = common.WithLogger(runCtx, slog.With("worker", workerID))

	start := time.Now()
	if err := q.runner.Run(runCtx, sessionID); err != nil {
		slog.Warn("Import session failed",
			"session_id", sessionID,
			"worker", workerID,
			"duration", time.Since(start),
			"error", err)
		return
	}
	slog.Debug("Import session processed",
		"session_id", sessionID,
		"worker", workerID,
		"duration", time.Since(start))
}
