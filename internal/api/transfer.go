package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.svc.ExportCustomersCSV(r.Context(), &buf); err != nil {
		s.fail(w, r, err)
		return
	}
	serveDownload(w, "text/csv; charset=utf-8", "customers", "csv", buf.Bytes())
}

func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.svc.ExportSnapshotJSON(r.Context(), &buf); err != nil {
		s.fail(w, r, err)
		return
	}
	serveDownload(w, "application/json", "ledger-snapshot", "json", buf.Bytes())
}

func serveDownload(w http.ResponseWriter, contentType, name, ext string, body []byte) {
	filename := fmt.Sprintf("%s-%s.%s", name, time.Now().UTC().Format("2006-01-02"), ext)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// upload returns the request payload: the "file" part of a multipart form, or
// the raw body otherwise.
func upload(w http.ResponseWriter, r *http.Request) (io.ReadCloser, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, err
		}
		return file, nil
	}
	return r.Body, nil
}

func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	if err := confirmed(r); err != nil {
		s.fail(w, r, err)
		return
	}
	body, err := upload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	defer body.Close()

	customers, err := s.svc.ImportCustomersCSV(r.Context(), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("csv import accepted", zap.Int("customers", len(customers)))
	writeJSON(w, http.StatusOK, map[string]any{
		"imported":              len(customers),
		"transactionsDiscarded": true,
	})
}

func (s *Server) handleImportJSON(w http.ResponseWriter, r *http.Request) {
	if err := confirmed(r); err != nil {
		s.fail(w, r, err)
		return
	}
	body, err := upload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	defer body.Close()

	report, err := s.svc.ImportSnapshotJSON(r.Context(), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := confirmed(r); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.svc.ResetAll(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
