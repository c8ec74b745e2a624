package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cdrp/console-gateway/pkg/jobs"
)

// Scheduler runs reconcile tasks outside the request that triggered them.
type Scheduler interface {
	Schedule(screenID string, task func(ctx context.Context))
}

// QueueSchedulerConfig tunes the reconcile worker pool.
type QueueSchedulerConfig struct {
	Workers    int
	BufferSize int
	Timeout    time.Duration
}

// QueueScheduler runs reconcile tasks on a jobs.Queue.
type QueueScheduler struct {
	queue   *jobs.Queue
	timeout time.Duration
	logger  *zap.Logger
}

// NewQueueScheduler builds a scheduler; call Start before scheduling.
func NewQueueScheduler(cfg QueueSchedulerConfig, logger *zap.Logger) *QueueScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	s := &QueueScheduler{timeout: cfg.Timeout, logger: logger}
	s.queue = jobs.NewQueue("reconcile", s.run, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		Logger:     logger,
	})
	return s
}

// Start launches the workers.
func (s *QueueScheduler) Start(ctx context.Context) { s.queue.Start(ctx) }

// Stop waits for the workers to exit.
func (s *QueueScheduler) Stop() { s.queue.Stop() }

// Schedule enqueues task keyed by screen. A reconcile already waiting for the
// same screen absorbs the new one, since both refetch the same page. A full
// queue drops the task; the next fetch of the screen reconciles instead.
func (s *QueueScheduler) Schedule(screenID string, task func(ctx context.Context)) {
	err := s.queue.Enqueue(jobs.Job{Key: screenID, Payload: reconcileTask{screenID: screenID, run: task}})
	switch {
	case err == nil:
	case errors.Is(err, jobs.ErrAlreadyPending):
		s.logger.Debug("reconcile coalesced", zap.String("screen_id", screenID))
	default:
		s.logger.Warn("reconcile dropped", zap.String("screen_id", screenID), zap.Error(err))
	}
}

type reconcileTask struct {
	screenID string
	run      func(ctx context.Context)
}

func (s *QueueScheduler) run(ctx context.Context, job jobs.Job) error {
	task, ok := job.Payload.(reconcileTask)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()
	task.run(ctx)
	s.logger.Debug("reconcile finished", zap.String("screen_id", task.screenID), zap.Duration("took", time.Since(start)))
	return nil
}

// InlineScheduler runs tasks synchronously on the caller's goroutine.
type InlineScheduler struct{}

// Schedule runs task immediately.
func (InlineScheduler) Schedule(_ string, task func(ctx context.Context)) {
	task(context.Background())
}
