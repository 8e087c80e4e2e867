// Package client talks to the InvoiceDrop HTTP API and implements the two
// polling loops used after an upload: a list-level watch and a per-invoice
// wait.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dharsanguruparan/InvoiceDrop/internal/model"
	"github.com/dharsanguruparan/InvoiceDrop/internal/query"
)

const (
	// DefaultListInterval is the list-level poll period.
	DefaultListInterval = 3 * time.Second
	// DefaultItemInterval is the per-invoice poll period.
	DefaultItemInterval = 2 * time.Second
	// DefaultMaxAttempts bounds the per-invoice poll.
	DefaultMaxAttempts = 30
)

// ErrAttemptsExhausted is returned by AwaitInvoice when the invoice is still
// not terminal after the last attempt.
var ErrAttemptsExhausted = errors.New("invoice still processing after the last attempt")

// UploadResult mirrors the upload response body.
type UploadResult struct {
	Success  bool            `json:"success"`
	Invoices []model.Invoice `json:"invoices"`
	Message  string          `json:"message"`
}

// Client is safe for concurrent use.
type Client struct {
	baseURL   string
	http      *http.Client
	fieldName string
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithFieldName overrides the multipart field used for uploads.
func WithFieldName(name string) Option {
	return func(c *Client) { c.fieldName = name }
}

// New returns a client for baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      http.DefaultClient,
		fieldName: "invoices",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upload sends the files at paths in one multipart request. The body is
// streamed through a pipe so large files are never buffered whole.
func (c *Client) Upload(ctx context.Context, paths ...string) (UploadResult, error) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeFiles(writer, c.fieldName, paths))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/invoices/upload", pr)
	if err != nil {
		pr.Close()
		return UploadResult{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var out UploadResult
	if err := c.do(req, http.StatusCreated, &out); err != nil {
		return UploadResult{}, err
	}
	return out, nil
}

func writeFiles(writer *multipart.Writer, field string, paths []string) error {
	for _, path := range paths {
		if err := writeFile(writer, field, path); err != nil {
			return err
		}
	}
	return writer.Close()
}

func writeFile(writer *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	part, err := writer.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}

// List fetches one page of invoices.
func (c *Client) List(ctx context.Context, params query.Params) (query.Result, error) {
	u := c.baseURL + "/api/invoices"
	if enc := params.Values().Encode(); enc != "" {
		u += "?" + enc
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return query.Result{}, err
	}
	var out query.Result
	if err := c.do(req, http.StatusOK, &out); err != nil {
		return query.Result{}, err
	}
	return out, nil
}

// Get fetches one invoice. Unknown ids yield an error of kind
// model.ErrNotFound.
func (c *Client) Get(ctx context.Context, id string) (model.Invoice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/invoices/"+url.PathEscape(id), nil)
	if err != nil {
		return model.Invoice{}, err
	}
	var out model.Invoice
	if err := c.do(req, http.StatusOK, &out); err != nil {
		return model.Invoice{}, err
	}
	return out, nil
}

// APIError is a non-success response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Is lets callers match API errors against the model error kinds.
func (e *APIError) Is(target error) bool {
	switch e.Status {
	case http.StatusBadRequest:
		return target == model.ErrValidation
	case http.StatusNotFound:
		return target == model.ErrNotFound
	default:
		return e.Status >= 500 && target == model.ErrInternal
	}
}

func (c *Client) do(req *http.Request, want int, out any) error {
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer res.Body.Close()

	if res.StatusCode != want {
		var body struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
		if json.Unmarshal(data, &body) != nil || body.Error == "" {
			body.Error = strings.TrimSpace(string(data))
		}
		return &APIError{Status: res.StatusCode, Message: body.Error}
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
