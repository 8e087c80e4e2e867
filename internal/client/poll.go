package client

import (
	"context"
	"time"

	"github.com/dharsanguruparan/InvoiceDrop/internal/model"
	"github.com/dharsanguruparan/InvoiceDrop/internal/query"
)

// WatchList polls the list every interval and hands each page to fn. It
// returns once every visible invoice is terminal, or with the first error.
func (c *Client) WatchList(ctx context.Context, params query.Params, interval time.Duration, fn func(query.Result)) error {
	if interval <= 0 {
		interval = DefaultListInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		res, err := c.List(ctx, params)
		if err != nil {
			return err
		}
		if fn != nil {
			fn(res)
		}
		if allTerminal(res.Data) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// AwaitInvoice polls one invoice until it is terminal. After maxAttempts
// reads it gives up with ErrAttemptsExhausted and the last observed state.
func (c *Client) AwaitInvoice(ctx context.Context, id string, interval time.Duration, maxAttempts int) (model.Invoice, error) {
	if interval <= 0 {
		interval = DefaultItemInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	var last model.Invoice
	for attempt := 1; ; attempt++ {
		inv, err := c.Get(ctx, id)
		if err != nil {
			return last, err
		}
		last = inv
		if inv.Status.Terminal() {
			return inv, nil
		}
		if attempt >= maxAttempts {
			return last, ErrAttemptsExhausted
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return last, ctx.Err()
		case <-timer.C:
		}
	}
}

func allTerminal(items []model.Invoice) bool {
	for _, inv := range items {
		if !inv.Status.Terminal() {
			return false
		}
	}
	return true
}
