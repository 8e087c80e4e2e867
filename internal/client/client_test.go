package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/InvoiceDrop/internal/config"
	"github.com/dharsanguruparan/InvoiceDrop/internal/filestore"
	"github.com/dharsanguruparan/InvoiceDrop/internal/intake"
	"github.com/dharsanguruparan/InvoiceDrop/internal/model"
	"github.com/dharsanguruparan/InvoiceDrop/internal/processing"
	"github.com/dharsanguruparan/InvoiceDrop/internal/query"
	"github.com/dharsanguruparan/InvoiceDrop/internal/random"
	"github.com/dharsanguruparan/InvoiceDrop/internal/server"
	"github.com/dharsanguruparan/InvoiceDrop/internal/signing"
	"github.com/dharsanguruparan/InvoiceDrop/internal/storage"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestWatchListStopsWhenAllTerminal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/invoices", r.URL.Path)
		assert.Equal(t, "Processing", r.URL.Query().Get("status"))
		status := model.StatusProcessing
		if calls.Add(1) >= 3 {
			status = model.StatusProcessed
		}
		writeJSON(w, http.StatusOK, query.Result{
			Data:  []model.Invoice{{ID: "a", Status: model.StatusFailed}, {ID: "b", Status: status}},
			Total: 2, Page: 1, Limit: 10,
		})
	}))
	defer srv.Close()

	var pages []query.Result
	err := New(srv.URL).WatchList(context.Background(), query.Params{Status: "Processing"}, time.Millisecond, func(r query.Result) {
		pages = append(pages, r)
	})
	require.NoError(t, err)
	assert.Len(t, pages, 3)
	assert.Equal(t, int32(3), calls.Load())
}

func TestWatchListEmptyListStopsImmediately(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, query.Result{Data: []model.Invoice{}, Page: 1, Limit: 10})
	}))
	defer srv.Close()
	require.NoError(t, New(srv.URL).WatchList(context.Background(), query.Params{}, time.Hour, nil))
}

func TestWatchListHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, query.Result{Data: []model.Invoice{{ID: "a", Status: model.StatusPending}}})
	}))
	defer srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := New(srv.URL).WatchList(ctx, query.Params{}, 5*time.Millisecond, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAwaitInvoiceExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/invoices/a", r.URL.Path)
		writeJSON(w, http.StatusOK, model.Invoice{ID: "a", Status: model.StatusProcessing})
	}))
	defer srv.Close()

	inv, err := New(srv.URL).AwaitInvoice(context.Background(), "a", time.Millisecond, 3)
	assert.ErrorIs(t, err, ErrAttemptsExhausted)
	assert.Equal(t, model.StatusProcessing, inv.Status)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "invoice not found"})
	}))
	defer srv.Close()

	_, err := New(srv.URL).Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNotFound))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "invoice not found", apiErr.Message)

	_, err = New(srv.URL).AwaitInvoice(context.Background(), "missing", time.Millisecond, 5)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestGetEscapesID(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.EscapedPath(), r.URL.RawQuery
		writeJSON(w, http.StatusOK, model.Invoice{ID: "x", Status: model.StatusPending})
	}))
	defer srv.Close()

	_, err := New(srv.URL).Get(context.Background(), "a/b?c#d")
	require.NoError(t, err)
	assert.Equal(t, "/api/invoices/a%2Fb%3Fc%23d", gotPath)
	assert.Empty(t, gotQuery)
}

// TestUploadAndAwaitEndToEnd runs the real server with millisecond timings.
func TestUploadAndAwaitEndToEnd(t *testing.T) {
	cfg := config.Default()
	cfg.Signing.Secret = "secret"
	require.NoError(t, cfg.Validate())

	store := storage.NewMemoryStore()
	sched := processing.NewTimerScheduler(zerolog.Nop())
	sim := processing.NewSimulator(store, sched, random.New(11), processing.Config{
		StartDelay:     time.Millisecond,
		FinishMinDelay: 2 * time.Millisecond,
		FinishMaxDelay: 5 * time.Millisecond,
		SuccessRate:    0.8,
	})
	require.NoError(t, sim.Run(context.Background()))
	defer sched.Stop()

	files, err := filestore.NewLocal(t.TempDir())
	require.NoError(t, err)
	api, err := server.New(server.Deps{
		Config: cfg,
		Store:  store,
		Intake: intake.NewService(store, sim, random.New(11), zerolog.Nop()),
		Files:  files,
		Signer: signing.NewSigner([]byte(cfg.Signing.Secret), cfg.Signing.TTL),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	srv := httptest.NewServer(api.Handler())
	defer srv.Close()

	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"one.pdf", "two.pdf"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte("%PDF-1.7\n%%EOF\n"), 0o600))
		paths = append(paths, p)
	}

	c := New(srv.URL)
	res, err := c.Upload(context.Background(), paths...)
	require.NoError(t, err)
	require.Len(t, res.Invoices, 2)
	assert.Equal(t, "2 invoice(s) uploaded successfully", res.Message)

	for _, inv := range res.Invoices {
		done, err := c.AwaitInvoice(context.Background(), inv.ID, 5*time.Millisecond, 200)
		require.NoError(t, err)
		assert.True(t, done.Status.Terminal())
		require.NotNil(t, done.ProcessingStartTime)
		require.NotNil(t, done.ProcessingEndTime)
	}

	require.NoError(t, c.WatchList(context.Background(), query.Params{}, 5*time.Millisecond, nil))
}

func TestUploadRejectedFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mr, err := r.MultipartReader()
		if !assert.NoError(t, err) {
			return
		}
		part, err := mr.NextPart()
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, "invoices", part.FormName())
		assert.Equal(t, "notes.txt", part.FileName())
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "notes.txt is not a PDF"})
	}))
	defer srv.Close()

	p := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(p, []byte("hello"), 0o600))
	_, err := New(srv.URL).Upload(context.Background(), p)
	assert.True(t, errors.Is(err, model.ErrValidation))
}
