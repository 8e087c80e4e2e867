package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dharsanguruparan/InvoiceDrop/internal/filestore"
	"github.com/dharsanguruparan/InvoiceDrop/internal/model"
	"github.com/dharsanguruparan/InvoiceDrop/internal/query"
	"github.com/dharsanguruparan/InvoiceDrop/internal/signing"
)

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	params, err := query.ParseParams(r.URL.Query())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, query.Run(s.store.List(), params))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	inv, err := s.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, inv)
}

func (s *Server) handleSignedURL(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.Get(id); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, s.signer.Issue(fileRoute(id), id))
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	q := r.URL.Query()
	if q.Get("expires") == "" || q.Get("signature") == "" {
		writeError(w, http.StatusBadRequest, "missing expires or signature")
		return
	}
	switch err := s.signer.Verify(id, q.Get("expires"), q.Get("signature")); {
	case errors.Is(err, signing.ErrExpired):
		writeError(w, http.StatusUnauthorized, "url expired")
		return
	case err != nil:
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	inv, err := s.store.Get(id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	rc, err := s.files.Open(r.Context(), inv.FilePath)
	if errors.Is(err, filestore.ErrNotExist) {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	if err != nil {
		respondError(w, r, model.WrapError(model.ErrInternal, "open stored file", err))
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", inv.FileName))
	// Seekable backends get range support from ServeContent.
	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, inv.FileName, inv.UploadDate, rs)
		return
	}
	w.Header().Set("Content-Length", strconv.FormatInt(inv.FileSize, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.log.Warn().Err(err).Str("invoice_id", id).Msg("stream stored file")
	}
}

func fileRoute(id string) string {
	return "/api/invoices/" + id + "/file"
}
