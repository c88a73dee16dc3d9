package document

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/matthewbaird/strata/internal/ident"
	"github.com/matthewbaird/strata/internal/validate"
)

// MaxSize is the largest accepted document, in bytes.
const MaxSize = 5 << 20

// AllowedTypes lists the accepted document content types.
var AllowedTypes = []string{"application/pdf", "image/jpeg", "image/png"}

// Submission is a pet-registration upload.
type Submission struct {
	PetName     string
	OwnerName   string
	UnitNumber  string
	Filename    string
	ContentType string
	Body        []byte
}

// Receipt is returned for every stored document.
type Receipt struct {
	Success      bool           `json:"success"`
	Message      string         `json:"message"`
	SubmissionID string         `json:"submission_id"`
	Details      ReceiptDetails `json:"details"`
	Location     string         `json:"-"`
}

// ReceiptDetails echoes the submission.
type ReceiptDetails struct {
	PetName     string    `json:"pet_name"`
	OwnerName   string    `json:"owner_name"`
	UnitNumber  string    `json:"unit_number"`
	FileName    string    `json:"file_name"`
	FileSize    string    `json:"file_size"`
	ContentType string    `json:"content_type"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Registrar validates submissions and writes them to a Sink.
type Registrar struct {
	sink Sink
	now  func() time.Time
}

// NewRegistrar creates a Registrar. now may be nil.
func NewRegistrar(sink Sink, now func() time.Time) *Registrar {
	if now == nil {
		now = time.Now
	}
	return &Registrar{sink: sink, now: now}
}

// ContentType returns the declared type, falling back to sniffing the body.
func ContentType(declared string, body []byte) string {
	ct := strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "" || ct == "application/octet-stream" {
		ct, _, _ = strings.Cut(http.DetectContentType(body), ";")
	}
	return ct
}

// Validate checks required fields, type and size.
func (r *Registrar) Validate(sub Submission) error {
	err := validate.Required(map[string]*string{
		"pet_name":    &sub.PetName,
		"owner_name":  &sub.OwnerName,
		"unit_number": &sub.UnitNumber,
	}, "pet_name", "owner_name", "unit_number")
	if err != nil {
		return err
	}
	if len(sub.Body) == 0 {
		return validate.Invalid("document", "required field missing")
	}
	if !slices.Contains(AllowedTypes, sub.ContentType) {
		return &validate.ValidationError{
			Field:    "document",
			Message:  "invalid file type. Only PDF, JPEG, and PNG files are allowed",
			Accepted: AllowedTypes,
		}
	}
	if len(sub.Body) > MaxSize {
		return validate.Invalid("document", "file size too large. Maximum size is 5MB")
	}
	return nil
}

// Register validates sub and stores it.
func (r *Registrar) Register(ctx context.Context, sub Submission) (*Receipt, error) {
	if err := r.Validate(sub); err != nil {
		return nil, err
	}
	now := r.now().UTC()
	id := ident.New("PET", now)
	name := path.Base(strings.ReplaceAll(sub.Filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "document"
	}
	loc, err := r.sink.Put(ctx, Object{
		Key:         fmt.Sprintf("pet-registrations/%s/%s/%s", strings.TrimSpace(sub.UnitNumber), id, name),
		ContentType: sub.ContentType,
		Body:        sub.Body,
		Metadata: map[string]string{
			"pet-name":    sub.PetName,
			"owner-name":  sub.OwnerName,
			"unit-number": sub.UnitNumber,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("storing document %s: %w", id, err)
	}
	return &Receipt{
		Success:      true,
		Message:      "Pet registration submitted successfully",
		SubmissionID: id,
		Location:     loc,
		Details: ReceiptDetails{
			PetName:     sub.PetName,
			OwnerName:   sub.OwnerName,
			UnitNumber:  sub.UnitNumber,
			FileName:    name,
			FileSize:    fmt.Sprintf("%.2f MB", float64(len(sub.Body))/1024/1024),
			ContentType: sub.ContentType,
			SubmittedAt: now,
		},
	}, nil
}
