package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/InvoiceDrop/internal/model"
	"github.com/dharsanguruparan/InvoiceDrop/internal/processing"
)

type fakeConn struct {
	subjects []string
	payloads [][]byte
	err      error
	drained  bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return nil
}

func (f *fakeConn) Drain() error {
	f.drained = true
	return nil
}

func TestPublisherEncodesChange(t *testing.T) {
	fc := &fakeConn{}
	p := newPublisher(fc, "invoices.status", zerolog.Nop())
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return at }

	p.InvoiceChanged(context.Background(), processing.Change{
		Invoice: model.Invoice{ID: "inv-1", Status: model.StatusProcessing},
		From:    model.StatusPending,
		To:      model.StatusProcessing,
	})

	require.Len(t, fc.payloads, 1)
	assert.Equal(t, "invoices.status", fc.subjects[0])
	var msg StatusChanged
	require.NoError(t, json.Unmarshal(fc.payloads[0], &msg))
	assert.Equal(t, "inv-1", msg.InvoiceID)
	assert.Equal(t, model.StatusPending, msg.From)
	assert.Equal(t, model.StatusProcessing, msg.To)
	assert.Equal(t, at, msg.OccurredAt)

	require.NoError(t, p.Close())
	assert.True(t, fc.drained)
}

func TestPublisherSwallowsErrors(t *testing.T) {
	fc := &fakeConn{err: errors.New("nats: connection closed")}
	p := newPublisher(fc, "invoices.status", zerolog.Nop())
	assert.NotPanics(t, func() {
		p.InvoiceChanged(context.Background(), processing.Change{Invoice: model.Invoice{ID: "x"}, To: model.StatusPending})
	})
	assert.Empty(t, fc.payloads)
}
