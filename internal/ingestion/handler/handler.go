// Package handler exposes the ingestion pipeline over HTTP.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/schema"
	apperrors "github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/pkg/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Pipeline is implemented by *ingestion.Pipeline.
type Pipeline interface {
	Add(ctx context.Context, record []byte) (ingestion.AddResponse, error)
	Commit(ctx context.Context) (ingestion.CommitResult, error)
}

type Handler struct {
	pipeline Pipeline
	schema   *schema.Schema
	logger   *slog.Logger
}

func New(p Pipeline, s *schema.Schema) *Handler {
	return &Handler{
		pipeline: p,
		schema:   s,
		logger:   slog.Default().With("component", "ingestion-handler"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/documents", h.Ingest)
	mux.HandleFunc("POST /api/v1/commit", h.Commit)
}

// Ingest buffers one JSON record. It is searchable after the next commit.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, validator.MaxRecordBytes+1))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err := apperrors.Newf(apperrors.ErrInvalidInput, http.StatusRequestEntityTooLarge,
				"record exceeds %d bytes", validator.MaxRecordBytes)
			h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
			return
		}
		h.writeError(w, http.StatusBadRequest, "reading request body failed")
		return
	}
	if err := validator.ValidateRecord(h.schema, body); err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.pipeline.Add(ctx, body)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		log.Warn("document rejected", "error", err, "status_code", status)
		h.writeError(w, status, err.Error())
		return
	}
	log.Debug("document accepted", "doc_id", resp.DocID, "pending", resp.Pending)
	h.writeJSON(w, http.StatusAccepted, resp)
}

// Commit forces a commit of everything buffered so far.
func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res, err := h.pipeline.Commit(ctx)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		logger.FromContext(ctx).Error("commit failed", "error", err, "status_code", status)
		h.writeError(w, status, "commit failed")
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
