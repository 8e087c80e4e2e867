// Package intake turns accepted uploads into Pending invoices and hands them
// to the simulator.
package intake

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/InvoiceDrop/internal/model"
	"github.com/dharsanguruparan/InvoiceDrop/internal/processing"
	"github.com/dharsanguruparan/InvoiceDrop/internal/random"
	"github.com/dharsanguruparan/InvoiceDrop/internal/storage"
)

// Clients is the roster mock client names are drawn from.
var Clients = []string{
	"Acme Corp",
	"Globex Inc",
	"Initech",
	"Umbrella Ltd",
	"Stark Industries",
	"Wayne Enterprises",
	"Wonka Industries",
	"Tyrell Corp",
}

const (
	minAmount   = 100
	amountRange = 10000 // amounts fall in [100, 10099] cents
)

// StoredFile is an upload that passed validation and was persisted.
type StoredFile struct {
	Name   string
	Size   int64
	Handle string
}

// Starter schedules the first lifecycle step. *processing.Simulator
// satisfies it.
type Starter interface {
	Begin(ctx context.Context, id string) (processing.Task, error)
}

// Service registers uploads.
type Service struct {
	store     storage.Store
	starter   Starter
	rnd       random.Source
	observers processing.Observers
	log       zerolog.Logger
	now       func() time.Time
}

// NewService wires the intake service. Observers see every new Pending
// invoice.
func NewService(store storage.Store, starter Starter, rnd random.Source, log zerolog.Logger, observers ...processing.Observer) *Service {
	return &Service{
		store:     store,
		starter:   starter,
		rnd:       rnd,
		observers: observers,
		log:       log.With().Str("component", "intake").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Register creates one Pending invoice per file and schedules its
// processing. A scheduling failure is logged and leaves that invoice Pending.
func (s *Service) Register(ctx context.Context, files []StoredFile) ([]model.Invoice, error) {
	if len(files) == 0 {
		return nil, model.Validationf("no files uploaded")
	}
	created := make([]model.Invoice, 0, len(files))
	for _, f := range files {
		inv := model.Invoice{
			ID:         uuid.NewString(),
			FileName:   f.Name,
			FileSize:   f.Size,
			ClientName: random.Pick(s.rnd, Clients),
			Amount:     int64(minAmount + s.rnd.Intn(amountRange)),
			UploadDate: s.now(),
			Status:     model.StatusPending,
			FilePath:   f.Handle,
		}
		s.store.Put(inv)
		s.observers.InvoiceChanged(ctx, processing.Change{Invoice: inv, To: model.StatusPending})

		if _, err := s.starter.Begin(ctx, inv.ID); err != nil {
			s.log.Error().Err(err).Str("invoice_id", inv.ID).Msg("schedule processing")
		}
		s.log.Info().Str("invoice_id", inv.ID).Str("file", inv.FileName).Int64("size", inv.FileSize).Msg("invoice registered")
		created = append(created, inv)
	}
	return created, nil
}
