// Package document keeps patient files: metadata in Postgres, contents in
// blob storage.
package document

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/apperror"
)

const AggregateType = "document"

// MaxSize is the largest accepted upload.
const MaxSize = 25 << 20

type Category string

const (
	CategoryLabReport        Category = "lab-report"
	CategoryRadiology        Category = "radiology"
	CategoryPrescription     Category = "prescription"
	CategoryConsentForm      Category = "consent-form"
	CategoryDischargeSummary Category = "discharge-summary"
	CategoryOther            Category = "other"
)

var Categories = []Category{
	CategoryLabReport, CategoryRadiology, CategoryPrescription,
	CategoryConsentForm, CategoryDischargeSummary, CategoryOther,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

var allowedTypes = map[string]bool{
	"application/pdf":    true,
	"image/jpeg":         true,
	"image/png":          true,
	"image/webp":         true,
	"application/dicom":  true,
	"text/plain":         true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

type Document struct {
	ID          uuid.UUID `json:"id"`
	PatientID   uuid.UUID `json:"patient_id"`
	Category    Category  `json:"category"`
	Title       string    `json:"title"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Checksum    string    `json:"checksum"`
	StorageKey  string    `json:"-"`
	UploadedBy  string    `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// UploadInput is one uploaded file with its form fields.
type UploadInput struct {
	PatientID   uuid.UUID
	Category    Category
	Title       string
	FileName    string
	ContentType string
	Data        []byte
}

// Normalize cleans the file name and resolves the media type, sniffing
// the content when the client sent none.
func (in *UploadInput) Normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.FileName = path.Base(strings.ReplaceAll(strings.TrimSpace(in.FileName), "\\", "/"))
	if in.FileName == "." || in.FileName == "/" {
		in.FileName = ""
	}
	ct := in.ContentType
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(in.Data)
	}
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mt
	}
	in.ContentType = ct
	if in.Title == "" {
		in.Title = strings.TrimSuffix(in.FileName, path.Ext(in.FileName))
	}
}

func (in *UploadInput) Validate() error {
	v := &apperror.ValidationError{}
	v.Check(in.PatientID != uuid.Nil, "patient_id", "is required")
	v.Check(in.Category.Valid(), "category", "is not a known document category")
	v.Check(in.FileName != "", "file", "is required")
	v.Check(len(in.Data) > 0, "file", "must not be empty")
	v.Check(len(in.Data) <= MaxSize, "file", fmt.Sprintf("must be at most %d MB", MaxSize>>20))
	v.Check(allowedTypes[in.ContentType], "file", fmt.Sprintf("type %s is not allowed", in.ContentType))
	v.Check(len(in.Title) <= 200, "title", "must be at most 200 characters")
	return v.Err()
}

// Checksum is the hex SHA-256 of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// StorageKey places a document under its patient.
func StorageKey(patientID, docID uuid.UUID, fileName string) string {
	return fmt.Sprintf("patients/%s/%s/%s", patientID, docID, fileName)
}

// EventData is the payload of document.uploaded.
type EventData struct {
	DocumentID string   `json:"document_id"`
	PatientID  string   `json:"patient_id"`
	Category   Category `json:"category"`
	Title      string   `json:"title"`
	FileName   string   `json:"file_name"`
	SizeBytes  int64    `json:"size_bytes"`
}
