// Package queue delivers simulator jobs through Redis with asynq instead of
// in-process timers. Client and server run inside the API process because the
// invoice store lives in its memory.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/InvoiceDrop/internal/processing"
)

const (
	// TransitionTask carries one delayed lifecycle step of an invoice.
	TransitionTask = "invoice:transition"
	// DefaultQueue is the asynq queue the scheduler uses.
	DefaultQueue = "invoices"
)

// NewTransitionTask encodes job as an asynq task.
func NewTransitionTask(job processing.Job) (*asynq.Task, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TransitionTask, data), nil
}

// NewMux routes transition tasks to h.
func NewMux(h processing.Handler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TransitionTask, func(ctx context.Context, task *asynq.Task) error {
		var job processing.Job
		if err := json.Unmarshal(task.Payload(), &job); err != nil {
			return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
		}
		if job.InvoiceID == "" {
			return fmt.Errorf("payload without invoice id: %w", asynq.SkipRetry)
		}
		return h.Handle(ctx, job)
	})
	return mux
}
