// Package processing simulates the invoice pipeline: each invoice waits a
// moment, enters Processing, and after a random delay lands in Processed or
// Failed. Delays are delegated to a Scheduler so timers can be swapped for a
// queue.
package processing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/InvoiceDrop/internal/model"
	"github.com/dharsanguruparan/InvoiceDrop/internal/random"
	"github.com/dharsanguruparan/InvoiceDrop/internal/storage"
)

// Config holds the simulator timings and odds.
type Config struct {
	StartDelay     time.Duration
	FinishMinDelay time.Duration
	FinishMaxDelay time.Duration
	SuccessRate    float64
}

// DefaultConfig mirrors the demo pipeline: 1s queueing, 15-45s of work and
// an 80% success rate.
func DefaultConfig() Config {
	return Config{
		StartDelay:     time.Second,
		FinishMinDelay: 15 * time.Second,
		FinishMaxDelay: 45 * time.Second,
		SuccessRate:    0.8,
	}
}

// errSkip aborts an Update whose transition is not allowed any more.
var errSkip = errors.New("transition not allowed")

// Simulator advances invoices through their lifecycle. It implements Handler
// so schedulers can deliver jobs back to it.
type Simulator struct {
	store     storage.Store
	scheduler Scheduler
	rnd       random.Source
	cfg       Config
	log       zerolog.Logger
	observers Observers
	now       func() time.Time
}

var _ Handler = (*Simulator)(nil)

// Option customises a Simulator.
type Option func(*Simulator)

// WithObserver registers an observer for committed transitions.
func WithObserver(o Observer) Option {
	return func(s *Simulator) { s.observers = append(s.observers, o) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Simulator) { s.log = log }
}

// NewSimulator wires a simulator. Call Run (or Scheduler.Start with the
// simulator) before Begin.
func NewSimulator(store storage.Store, scheduler Scheduler, rnd random.Source, cfg Config, opts ...Option) *Simulator {
	s := &Simulator{
		store:     store,
		scheduler: scheduler,
		rnd:       rnd,
		cfg:       cfg,
		log:       zerolog.Nop(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("component", "simulator").Logger()
	return s
}

// Run starts the scheduler with the simulator as its handler.
func (s *Simulator) Run(ctx context.Context) error {
	return s.scheduler.Start(ctx, s)
}

// Begin schedules the Pending -> Processing step for id.
func (s *Simulator) Begin(ctx context.Context, id string) (Task, error) {
	task, err := s.scheduler.Schedule(ctx, Job{InvoiceID: id, Stage: StageStart}, s.cfg.StartDelay)
	if err != nil {
		return nil, model.WrapError(model.ErrInternal, "schedule start", err)
	}
	return task, nil
}

// Handle runs one delivered job. Jobs for unknown invoices and jobs that
// arrive after their transition already happened are dropped.
func (s *Simulator) Handle(ctx context.Context, job Job) error {
	switch job.Stage {
	case StageStart:
		return s.start(ctx, job.InvoiceID)
	case StageFinish:
		return s.finish(ctx, job.InvoiceID)
	default:
		return fmt.Errorf("unknown stage %q", job.Stage)
	}
}

func (s *Simulator) start(ctx context.Context, id string) error {
	changed, ok := s.transition(ctx, id, model.StatusProcessing, func(inv *model.Invoice) {
		now := s.now()
		inv.ProcessingStartTime = &now
	})
	if !ok {
		return nil
	}
	delay := random.Duration(s.rnd, s.cfg.FinishMinDelay, s.cfg.FinishMaxDelay)
	if _, err := s.scheduler.Schedule(ctx, Job{InvoiceID: changed.ID, Stage: StageFinish}, delay); err != nil {
		return model.WrapError(model.ErrInternal, "schedule finish", err)
	}
	s.log.Debug().Str("invoice_id", id).Dur("finish_in", delay).Msg("processing started")
	return nil
}

func (s *Simulator) finish(ctx context.Context, id string) error {
	// Drawn before the update so the random sequence does not depend on
	// whether the job turns out to be stale.
	next := model.StatusFailed
	if s.rnd.Float64() < s.cfg.SuccessRate {
		next = model.StatusProcessed
	}
	if _, ok := s.transition(ctx, id, next, func(inv *model.Invoice) {
		now := s.now()
		inv.ProcessingEndTime = &now
	}); ok {
		s.log.Info().Str("invoice_id", id).Str("status", string(next)).Msg("processing finished")
	}
	return nil
}

// transition moves id to next in one store update, applying stamp to the
// same copy, and notifies observers. ok is false when nothing changed.
func (s *Simulator) transition(ctx context.Context, id string, next model.Status, stamp func(*model.Invoice)) (model.Invoice, bool) {
	var from model.Status
	updated, err := s.store.Update(id, func(inv *model.Invoice) error {
		if !inv.Status.CanTransition(next) {
			return errSkip
		}
		from = inv.Status
		inv.Status = next
		stamp(inv)
		return nil
	})
	switch {
	case err == nil:
	case model.IsKind(err, model.ErrNotFound):
		s.log.Debug().Str("invoice_id", id).Msg("invoice gone, transition abandoned")
		return model.Invoice{}, false
	case errors.Is(err, errSkip):
		s.log.Debug().Str("invoice_id", id).Str("status", string(updated.Status)).Str("wanted", string(next)).Msg("stale job ignored")
		return model.Invoice{}, false
	default:
		s.log.Error().Err(err).Str("invoice_id", id).Msg("transition failed")
		return model.Invoice{}, false
	}
	s.observers.InvoiceChanged(ctx, Change{Invoice: updated, From: from, To: next})
	return updated, true
}
