package processing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Stage names one of the two delayed transitions of an invoice.
type Stage string

const (
	StageStart  Stage = "start"
	StageFinish Stage = "finish"
)

// Job is one delayed transition. Simple structs like this make it easy to
// extend later without changing the scheduler signatures.
type Job struct {
	InvoiceID string `json:"invoiceId"`
	Stage     Stage  `json:"stage"`
}

// Task is the handle of a scheduled job.
type Task interface {
	ID() string
	// Cancel stops the job from running. It reports false when the job
	// already ran or was cancelled.
	Cancel() bool
}

// Handler runs jobs when their delay elapses.
type Handler interface {
	Handle(ctx context.Context, job Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job Job) error

func (f HandlerFunc) Handle(ctx context.Context, job Job) error { return f(ctx, job) }

// Scheduler runs one-shot jobs after a delay. Pending jobs do not survive
// Stop or a process restart.
type Scheduler interface {
	Start(ctx context.Context, h Handler) error
	Schedule(ctx context.Context, job Job, delay time.Duration) (Task, error)
	Stop()
}

// ErrNotStarted is returned by Schedule before Start was called.
var ErrNotStarted = errors.New("scheduler not started")

// TimerScheduler runs each job on its own time.AfterFunc timer.
type TimerScheduler struct {
	log zerolog.Logger

	mu      sync.Mutex
	ctx     context.Context
	handler Handler
	pending map[string]*timerTask
}

var _ Scheduler = (*TimerScheduler)(nil)

// NewTimerScheduler builds an idle scheduler; call Start before Schedule.
func NewTimerScheduler(log zerolog.Logger) *TimerScheduler {
	return &TimerScheduler{
		log:     log.With().Str("component", "timer-scheduler").Logger(),
		pending: make(map[string]*timerTask),
	}
}

// Start records the handler and the context handed to every job.
func (s *TimerScheduler) Start(ctx context.Context, h Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = ctx
	s.handler = h
	return nil
}

// Schedule arms a timer for job.
func (s *TimerScheduler) Schedule(_ context.Context, job Job, delay time.Duration) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handler == nil {
		return nil, ErrNotStarted
	}
	task := &timerTask{id: uuid.NewString(), owner: s}
	ctx, handler := s.ctx, s.handler
	task.timer = time.AfterFunc(delay, func() {
		if !s.release(task.id) {
			return
		}
		if err := handler.Handle(ctx, job); err != nil {
			s.log.Error().Err(err).Str("invoice_id", job.InvoiceID).Str("stage", string(job.Stage)).Msg("job failed")
		}
	})
	s.pending[task.id] = task
	return task, nil
}

// Stop cancels every pending timer. Their jobs are dropped and later
// Schedule calls fail with ErrNotStarted until Start runs again.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx, s.handler = nil, nil
	dropped := len(s.pending)
	for id, task := range s.pending {
		task.timer.Stop()
		delete(s.pending, id)
	}
	s.log.Info().Int("dropped", dropped).Msg("timer scheduler stopped")
}

// Pending reports how many jobs are waiting.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// release removes id from the pending set and reports whether it was there.
func (s *TimerScheduler) release(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[id]; !ok {
		return false
	}
	delete(s.pending, id)
	return true
}

type timerTask struct {
	id    string
	owner *TimerScheduler
	timer *time.Timer
}

func (t *timerTask) ID() string { return t.id }

func (t *timerTask) Cancel() bool {
	if !t.owner.release(t.id) {
		return false
	}
	t.timer.Stop()
	return true
}
