// Package server wires HTTP routes to the invoice store, intake service and
// file storage. Handlers receive http.ResponseWriter + *http.Request; routing
// and request ids come from chi.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/time/rate"

	"github.com/dharsanguruparan/InvoiceDrop/internal/config"
	"github.com/dharsanguruparan/InvoiceDrop/internal/filestore"
	"github.com/dharsanguruparan/InvoiceDrop/internal/intake"
	"github.com/dharsanguruparan/InvoiceDrop/internal/metrics"
	"github.com/dharsanguruparan/InvoiceDrop/internal/model"
	"github.com/dharsanguruparan/InvoiceDrop/internal/signing"
	"github.com/dharsanguruparan/InvoiceDrop/internal/storage"
)

// Registrar turns stored files into invoices. *intake.Service satisfies it.
type Registrar interface {
	Register(ctx context.Context, files []intake.StoredFile) ([]model.Invoice, error)
}

// Deps are the collaborators of a Server.
type Deps struct {
	Config  *config.Config
	Store   storage.Store
	Intake  Registrar
	Files   filestore.Store
	Signer  *signing.Signer
	Metrics *metrics.Recorder
	Logger  zerolog.Logger
}

// Server hosts the HTTP API.
type Server struct {
	cfg     *config.Config
	store   storage.Store
	intake  Registrar
	files   filestore.Store
	signer  *signing.Signer
	metrics *metrics.Recorder
	log     zerolog.Logger
	limiter *rate.Limiter
	now     func() time.Time
}

// New creates a configured server.
func New(d Deps) (*Server, error) {
	switch {
	case d.Config == nil:
		return nil, errors.New("server: config is required")
	case d.Store == nil || d.Intake == nil || d.Files == nil || d.Signer == nil:
		return nil, errors.New("server: store, intake, files and signer are required")
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	s := &Server{
		cfg:     d.Config,
		store:   d.Store,
		intake:  d.Intake,
		files:   d.Files,
		signer:  d.Signer,
		metrics: d.Metrics,
		log:     d.Logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
	if rps := d.Config.Upload.RatePerSecond; rps > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(rps), d.Config.Upload.Burst)
	}
	return s, nil
}

// Serve runs the HTTP server until ctx is cancelled, then shuts down
// gracefully within the configured timeout.
func (s *Server) Serve(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Address).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.log.Info().Msg("http server shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(s.log))
	r.Use(requestIDField)
	r.Use(hlog.AccessHandler(accessLog))
	r.Use(s.recoverer)
	r.Use(s.cors)
	r.Use(s.metrics.Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/invoices", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.With(s.limitUploads).Post("/upload", s.handleUpload)
		r.Get("/{id}", s.handleGet)
		r.Get("/{id}/signed-url", s.handleSignedURL)
		r.Get("/{id}/file", s.handleFile)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
