package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/InvoiceDrop/internal/processing"
)

// Options configures the Redis connection and worker pool.
type Options struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Concurrency   int
	Queue         string
}

// Scheduler implements processing.Scheduler with asynq delayed tasks.
// Tasks are enqueued with MaxRetry(0): a failed transition is never retried.
type Scheduler struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	server    *asynq.Server
	queue     string
	log       zerolog.Logger
}

var _ processing.Scheduler = (*Scheduler)(nil)

// NewScheduler connects lazily; nothing talks to Redis until Start or Schedule.
func NewScheduler(opts Options, log zerolog.Logger) *Scheduler {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Queue == "" {
		opts.Queue = DefaultQueue
	}
	redis := asynq.RedisClientOpt{
		Addr:     opts.RedisAddr,
		Password: opts.RedisPassword,
		DB:       opts.RedisDB,
	}
	log = log.With().Str("component", "asynq-scheduler").Logger()
	return &Scheduler{
		client:    asynq.NewClient(redis),
		inspector: asynq.NewInspector(redis),
		server: asynq.NewServer(redis, asynq.Config{
			Concurrency: opts.Concurrency,
			Queues:      map[string]int{opts.Queue: 1},
			Logger:      logAdapter{log},
			ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
				log.Error().Err(err).Str("task", task.Type()).Bytes("payload", task.Payload()).Msg("task failed")
			}),
		}),
		queue: opts.Queue,
		log:   log,
	}
}

// Start runs the asynq worker loop in the background.
func (s *Scheduler) Start(_ context.Context, h processing.Handler) error {
	if err := s.server.Start(NewMux(h)); err != nil {
		return fmt.Errorf("start asynq server: %w", err)
	}
	s.log.Info().Str("queue", s.queue).Msg("asynq scheduler started")
	return nil
}

// Schedule enqueues job to run after delay.
func (s *Scheduler) Schedule(ctx context.Context, job processing.Job, delay time.Duration) (processing.Task, error) {
	task, err := NewTransitionTask(job)
	if err != nil {
		return nil, err
	}
	info, err := s.client.EnqueueContext(ctx, task,
		asynq.Queue(s.queue),
		asynq.ProcessIn(delay),
		asynq.MaxRetry(0),
	)
	if err != nil {
		return nil, fmt.Errorf("enqueue transition task: %w", err)
	}
	return &queuedTask{id: info.ID, queue: info.Queue, inspector: s.inspector}, nil
}

// Stop shuts the worker loop down and closes the Redis clients. Tasks still
// scheduled in Redis outlive the process, but refer to invoices the next
// process does not know and are dropped on delivery.
func (s *Scheduler) Stop() {
	s.server.Shutdown()
	if err := s.client.Close(); err != nil {
		s.log.Warn().Err(err).Msg("close asynq client")
	}
	if err := s.inspector.Close(); err != nil {
		s.log.Warn().Err(err).Msg("close asynq inspector")
	}
}

type queuedTask struct {
	id        string
	queue     string
	inspector *asynq.Inspector
}

func (t *queuedTask) ID() string { return t.id }

func (t *queuedTask) Cancel() bool {
	return t.inspector.DeleteTask(t.queue, t.id) == nil
}

// logAdapter routes asynq's internal logging through zerolog.
type logAdapter struct {
	log zerolog.Logger
}

func (l logAdapter) Debug(args ...interface{}) { l.log.Debug().Msg(fmt.Sprint(args...)) }
func (l logAdapter) Info(args ...interface{})  { l.log.Info().Msg(fmt.Sprint(args...)) }
func (l logAdapter) Warn(args ...interface{})  { l.log.Warn().Msg(fmt.Sprint(args...)) }
func (l logAdapter) Error(args ...interface{}) { l.log.Error().Msg(fmt.Sprint(args...)) }
func (l logAdapter) Fatal(args ...interface{}) { l.log.Fatal().Msg(fmt.Sprint(args...)) }
