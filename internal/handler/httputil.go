package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/matthewbaird/strata/internal/validate"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error     string   `json:"error"`
	Code      string   `json:"code"`
	Field     string   `json:"field,omitempty"`
	Accepted  []string `json:"accepted,omitempty"`
	Available []string `json:"available,omitempty"`
}

// internalErrorBody is written verbatim when a response cannot be encoded.
const internalErrorBody = `{"error":"internal server error","code":"INTERNAL_ERROR"}` + "\n"

// writeJSON marshals v as JSON and writes it with the given status code.
// The body is encoded before the header goes out, so an unencodable value
// becomes a 500 rather than a truncated success.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("writeJSON encode error", slog.String("error", err.Error()))
		status, body = http.StatusInternalServerError, []byte(internalErrorBody)
	} else {
		body = append(body, '\n')
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: message, Code: code})
}

// decodeJSON decodes the request body into v. Unknown fields are ignored.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("unexpected data after JSON body")
	}
	return nil
}

// invalidBody reports a body that could not be decoded.
func invalidBody(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
		return
	}
	writeError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
}

// domainErrorToHTTP maps evaluator errors to HTTP responses. Anything that is
// not a validation or lookup failure is logged and reported generically.
func domainErrorToHTTP(w http.ResponseWriter, logger *slog.Logger, err error) {
	var verr *validate.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:    verr.Error(),
			Code:     "VALIDATION_ERROR",
			Field:    verr.Field,
			Accepted: verr.Accepted,
		})
		return
	}
	var nf *validate.NotFoundError
	if errors.As(err, &nf) {
		writeJSON(w, http.StatusNotFound, errorBody{
			Error:     nf.Error(),
			Code:      "NOT_FOUND",
			Available: nf.Available,
		})
		return
	}
	logger.Error("internal error", slog.String("error", err.Error()))
	writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}
