// Package events publishes invoice status changes to NATS so other systems
// can follow the pipeline without polling.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/InvoiceDrop/internal/model"
	"github.com/dharsanguruparan/InvoiceDrop/internal/processing"
)

// StatusChanged is the message body.
type StatusChanged struct {
	InvoiceID  string        `json:"invoiceId"`
	From       model.Status  `json:"from,omitempty"`
	To         model.Status  `json:"to"`
	OccurredAt time.Time     `json:"occurredAt"`
	Invoice    model.Invoice `json:"invoice"`
}

// Options tune the connection.
type Options struct {
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
}

type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// Publisher implements processing.Observer over a NATS connection.
type Publisher struct {
	conn    conn
	subject string
	log     zerolog.Logger
	now     func() time.Time
}

var _ processing.Observer = (*Publisher)(nil)

// Connect dials url. The connection retries in the background when the
// server is not up yet.
func Connect(url, subject string, opts Options, log zerolog.Logger) (*Publisher, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 2 * time.Second
	}
	if opts.ReconnectWait <= 0 {
		opts.ReconnectWait = 2 * time.Second
	}
	if opts.MaxReconnects <= 0 {
		opts.MaxReconnects = 60
	}
	log = log.With().Str("component", "nats-publisher").Logger()
	nc, err := nats.Connect(
		url,
		nats.Name("invoicedrop"),
		nats.Timeout(opts.ConnectTimeout),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return newPublisher(nc, subject, log), nil
}

func newPublisher(c conn, subject string, log zerolog.Logger) *Publisher {
	return &Publisher{conn: c, subject: subject, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// InvoiceChanged publishes the change. Failures are logged; the lifecycle
// never waits on NATS.
func (p *Publisher) InvoiceChanged(_ context.Context, c processing.Change) {
	msg := StatusChanged{
		InvoiceID:  c.Invoice.ID,
		From:       c.From,
		To:         c.To,
		OccurredAt: p.now(),
		Invoice:    c.Invoice,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		p.log.Error().Err(err).Str("invoice_id", msg.InvoiceID).Msg("encode status event")
		return
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		p.log.Warn().Err(err).Str("invoice_id", msg.InvoiceID).Msg("publish status event")
	}
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() error {
	return p.conn.Drain()
}
