package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/apperror"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/document"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/infrastructure/blob"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/listing"
)

// multipartOverhead leaves room for the form fields around the file.
const multipartOverhead = 1 << 20

type DocumentService interface {
	Upload(ctx context.Context, in document.UploadInput) (*document.Document, error)
	Get(ctx context.Context, id uuid.UUID) (*document.Document, error)
	Open(ctx context.Context, id uuid.UUID) (*document.Document, *blob.Object, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params listing.Params) (*listing.Page[document.Document], error)
}

type DocumentHandler struct {
	svc    DocumentService
	logger *zap.Logger
}

func NewDocumentHandler(svc DocumentService, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{svc: svc, logger: logger}
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.List(r.Context(), listParams(r, document.ListSpec))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Upload handles a multipart form with a "file" part plus patient_id,
// category and title fields.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	in, err := readUpload(w, r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	d, err := h.svc.Upload(r.Context(), *in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func readUpload(w http.ResponseWriter, r *http.Request) (*document.UploadInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, document.MaxSize+multipartOverhead)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			v := &apperror.ValidationError{}
			v.Add("file", fmt.Sprintf("must be at most %d MB", document.MaxSize>>20))
			return nil, v
		}
		return nil, badRequest("invalid multipart form: %v", err)
	}
	defer r.MultipartForm.RemoveAll()

	in := &document.UploadInput{
		Category: document.Category(r.FormValue("category")),
		Title:    r.FormValue("title"),
	}
	v := &apperror.ValidationError{}
	id, err := uuid.Parse(r.FormValue("patient_id"))
	v.Check(err == nil, "patient_id", "must be a UUID")
	in.PatientID = id

	file, header, err := r.FormFile("file")
	if err != nil {
		v.Add("file", "is required")
		return nil, v
	}
	defer file.Close()
	if err := v.Err(); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, badRequest("read upload: %v", err)
	}
	in.FileName = header.Filename
	in.ContentType = header.Header.Get("Content-Type")
	in.Data = data
	return in, nil
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	d, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Content streams the stored file back with its original name.
func (h *DocumentHandler) Content(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	d, obj, err := h.svc.Open(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	defer obj.Body.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = d.ContentType
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": d.FileName}))
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj.Body); err != nil {
		h.logger.Warn("stream document", zap.String("document_id", id.String()), zap.Error(err))
	}
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
