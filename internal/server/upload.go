package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dharsanguruparan/InvoiceDrop/internal/filestore"
	"github.com/dharsanguruparan/InvoiceDrop/internal/intake"
	"github.com/dharsanguruparan/InvoiceDrop/internal/model"
)

const (
	pdfContentType = "application/pdf"
	sniffLen       = 512
	// multipartSlack covers part headers and boundaries on top of the files.
	multipartSlack = 1 << 20
)

type uploadResponse struct {
	Success  bool            `json:"success"`
	Invoices []model.Invoice `json:"invoices"`
	Message  string          `json:"message"`
}

// spooled is a validated part waiting in a temp file.
type spooled struct {
	name string
	path string
	size int64
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxFiles := s.cfg.Upload.MaxFilesPerUpload
	// http.MaxBytesReader wraps the Body to protect against oversized payloads.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize*int64(maxFiles)+multipartSlack)
	// MultipartReader streams parts instead of buffering the whole form.
	mr, err := r.MultipartReader()
	if err != nil {
		s.reject(w, r, "not_multipart", model.Validationf("expecting multipart/form-data with field %q", s.cfg.Upload.FieldName))
		return
	}

	var parts []spooled
	defer func() {
		for _, p := range parts {
			_ = os.Remove(p.path)
		}
	}()
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.reject(w, r, "malformed", uploadReadError(err))
			return
		}
		if part.FormName() != s.cfg.Upload.FieldName {
			part.Close()
			continue
		}
		if len(parts) == maxFiles {
			part.Close()
			s.reject(w, r, "too_many_files", model.Validationf("too many files: at most %d per upload", maxFiles))
			return
		}
		sp, err := s.spoolPart(part, len(parts)+1)
		if err != nil {
			s.reject(w, r, "invalid_file", err)
			return
		}
		parts = append(parts, sp)
	}
	if len(parts) == 0 {
		s.reject(w, r, "no_files", model.Validationf("no files uploaded: attach PDFs under field %q", s.cfg.Upload.FieldName))
		return
	}

	stored, err := s.storeAll(r.Context(), parts)
	if err != nil {
		respondError(w, r, model.WrapError(model.ErrInternal, "store upload", err))
		return
	}
	invoices, err := s.intake.Register(r.Context(), stored)
	if err != nil {
		s.discard(r.Context(), stored)
		respondError(w, r, err)
		return
	}
	for _, inv := range invoices {
		s.metrics.RecordUpload(inv.FileSize)
	}
	respondJSON(w, http.StatusCreated, uploadResponse{
		Success:  true,
		Invoices: invoices,
		Message:  fmt.Sprintf("%d invoice(s) uploaded successfully", len(invoices)),
	})
}

// spoolPart streams part to a temp file, enforcing the size limit and
// checking that the first bytes look like a PDF.
func (s *Server) spoolPart(part *multipart.Part, index int) (spooled, error) {
	defer part.Close()
	name := cleanFileName(part.FileName(), index)

	tmp, err := os.CreateTemp("", "invoicedrop-*.part")
	if err != nil {
		return spooled{}, model.WrapError(model.ErrInternal, "create temp file", err)
	}
	sp := spooled{name: name, path: tmp.Name()}
	fail := func(err error) (spooled, error) {
		tmp.Close()
		os.Remove(sp.path)
		return spooled{}, err
	}

	var sniff []byte
	// A 32 KiB buffer reused for every Read keeps memory bounded.
	buf := make([]byte, 32*1024)
	limit := s.cfg.Upload.MaxFileSize
	for {
		n, readErr := part.Read(buf)
		if n > 0 {
			sp.size += int64(n)
			if sp.size > limit {
				return fail(model.Validationf("%s exceeds the %d byte limit", name, limit))
			}
			if len(sniff) < sniffLen {
				chunk := n
				if remain := sniffLen - len(sniff); chunk > remain {
					chunk = remain
				}
				sniff = append(sniff, buf[:chunk]...)
			}
			if _, err := tmp.Write(buf[:n]); err != nil {
				return fail(model.WrapError(model.ErrInternal, "spool upload", err))
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return fail(uploadReadError(readErr))
		}
	}
	if sp.size == 0 {
		return fail(model.Validationf("%s is empty", name))
	}
	if ct := http.DetectContentType(sniff); ct != pdfContentType {
		return fail(model.Validationf("%s is not a PDF (detected %s)", name, ct))
	}
	if err := tmp.Close(); err != nil {
		return fail(model.WrapError(model.ErrInternal, "spool upload", err))
	}
	return sp, nil
}

// storeAll saves every spooled part; on failure the ones already saved are
// deleted again.
func (s *Server) storeAll(ctx context.Context, parts []spooled) ([]intake.StoredFile, error) {
	stored := make([]intake.StoredFile, 0, len(parts))
	for _, p := range parts {
		handle, err := s.storeOne(ctx, p)
		if err != nil {
			s.discard(ctx, stored)
			return nil, err
		}
		stored = append(stored, intake.StoredFile{Name: p.name, Size: p.size, Handle: handle})
	}
	return stored, nil
}

func (s *Server) storeOne(ctx context.Context, p spooled) (string, error) {
	f, err := os.Open(p.path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return s.files.Save(ctx, filestore.UniqueName(s.now(), ".pdf"), f, p.size, pdfContentType)
}

func (s *Server) discard(ctx context.Context, stored []intake.StoredFile) {
	for _, f := range stored {
		if err := s.files.Delete(ctx, f.Handle); err != nil {
			s.log.Warn().Err(err).Str("handle", f.Handle).Msg("delete stored file")
		}
	}
}

func (s *Server) reject(w http.ResponseWriter, r *http.Request, reason string, err error) {
	s.metrics.RecordRejection(reason)
	respondError(w, r, err)
}

// uploadReadError classifies body read failures.
func uploadReadError(err error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return model.Validationf("upload exceeds %d bytes", tooBig.Limit)
	}
	return model.Validationf("failed to read upload: %v", err)
}

func cleanFileName(name string, n int) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "" || name == "." || name == "/" {
		// Some clients omit filenames.
		return fmt.Sprintf("invoice-%d.pdf", n)
	}
	return name
}
