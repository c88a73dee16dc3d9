package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/matthewbaird/strata/internal/document"
	"github.com/matthewbaird/strata/internal/event"
	"github.com/matthewbaird/strata/internal/validate"
)

// formOverhead is the multipart allowance on top of the document itself.
const formOverhead = 64 << 10

// DocumentHandler implements the pet-registration upload endpoint.
type DocumentHandler struct {
	reg *document.Registrar
	recorder
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(reg *document.Registrar, rec event.Recorder, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{reg: reg, recorder: newRecorder(rec, logger)}
}

// Upload accepts a multipart form with document, pet_name, owner_name and
// unit_number.
// POST /v1/documents
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, document.MaxSize+formOverhead)
	if err := r.ParseMultipartForm(document.MaxSize + formOverhead); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			domainErrorToHTTP(w, h.log, validate.Invalid("document", "file size too large. Maximum size is 5MB"))
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "expected multipart/form-data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	sub := document.Submission{
		PetName:    r.FormValue("pet_name"),
		OwnerName:  r.FormValue("owner_name"),
		UnitNumber: r.FormValue("unit_number"),
	}
	if f, fh, err := r.FormFile("document"); err == nil {
		body, err := readPart(f, fh)
		if err != nil {
			domainErrorToHTTP(w, h.log, err)
			return
		}
		sub.Filename = fh.Filename
		sub.Body = body
		sub.ContentType = document.ContentType(fh.Header.Get("Content-Type"), body)
	} else if !errors.Is(err, http.ErrMissingFile) {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "unreadable document part")
		return
	}

	rc, err := h.reg.Register(r.Context(), sub)
	if err != nil {
		domainErrorToHTTP(w, h.log, err)
		return
	}

	h.recordEvent(r.Context(), event.NewDocumentStored(event.DocumentStoredPayload{
		SubmissionID: rc.SubmissionID,
		UnitNumber:   rc.Details.UnitNumber,
		PetName:      rc.Details.PetName,
		ContentType:  rc.Details.ContentType,
		Size:         int64(len(sub.Body)),
		StoredAt:     rc.Details.SubmittedAt,
	}))
	h.log.Info("document stored",
		slog.String("submission_id", rc.SubmissionID),
		slog.String("location", rc.Location))
	writeJSON(w, http.StatusOK, rc)
}

func readPart(f multipart.File, fh *multipart.FileHeader) ([]byte, error) {
	defer f.Close()
	if fh.Size > document.MaxSize {
		return nil, validate.Invalid("document", "file size too large. Maximum size is 5MB")
	}
	body, err := io.ReadAll(io.LimitReader(f, document.MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	return body, nil
}

// MethodNotAllowed rejects anything but POST on the upload route.
func (h *DocumentHandler) MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Allow", http.MethodPost)
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed. Use POST for file uploads.")
}
