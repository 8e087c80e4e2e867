package processing

import (
	"context"

	"github.com/dharsanguruparan/InvoiceDrop/internal/model"
)

// Change describes one committed lifecycle step. From is empty for a newly
// created invoice.
type Change struct {
	Invoice model.Invoice
	From    model.Status
	To      model.Status
}

// Observer is told about every committed change. Implementations must not
// block; they run on the goroutine that made the change.
type Observer interface {
	InvoiceChanged(ctx context.Context, change Change)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, change Change)

func (f ObserverFunc) InvoiceChanged(ctx context.Context, change Change) { f(ctx, change) }

// Observers fans a change out to several observers.
type Observers []Observer

func (o Observers) InvoiceChanged(ctx context.Context, change Change) {
	for _, obs := range o {
		if obs != nil {
			obs.InvoiceChanged(ctx, change)
		}
	}
}
