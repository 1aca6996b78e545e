package domain

import (
	"fmt"
	"strings"

	"github.com/docker/go-units"
)

// MaxUploadBytes is the largest document accepted for extraction (10 MiB).
const MaxUploadBytes int64 = 10 * 1024 * 1024

var acceptedMediaTypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/jpg":       {},
	"image/png":       {},
	"application/pdf": {},
}

// UploadedFile is a user supplied document. Data may be nil when the file was
// rejected on its declared size before being read.
type UploadedFile struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Size      int64  `json:"size"`
	Data      []byte `json:"-"`
}

func NormalizeMediaType(mediaType string) string {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if idx := strings.Index(mt, ";"); idx >= 0 {
		mt = strings.TrimSpace(mt[:idx])
	}
	return mt
}

func IsAcceptedMediaType(mediaType string) bool {
	_, ok := acceptedMediaTypes[NormalizeMediaType(mediaType)]
	return ok
}

func IsPDF(mediaType string) bool {
	return NormalizeMediaType(mediaType) == "application/pdf"
}

// ValidateUpload runs the client-side checks that must pass before any
// network call is attempted.
func ValidateUpload(file UploadedFile) error {
	if !IsAcceptedMediaType(file.MediaType) {
		return NewUserError(ErrInvalidInput,
			fmt.Sprintf("Unsupported file type %q. Please upload a JPEG, PNG or PDF document.", file.MediaType))
	}
	if file.Size > MaxUploadBytes {
		return NewUserError(ErrInvalidInput,
			fmt.Sprintf("File is %s. The maximum upload size is %s.", units.BytesSize(float64(file.Size)), units.BytesSize(float64(MaxUploadBytes))))
	}
	if file.Size <= 0 {
		return NewUserError(ErrInvalidInput, "The selected file is empty.")
	}
	return nil
}

// ApplicationFormData is cross-reference context sent to the agent alongside
// the document.
type ApplicationFormData struct {
	Name        string `json:"name"`
	Address     string `json:"address"`
	DateOfBirth string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
}

// PreviewKind describes how a selected file can be displayed.
type PreviewKind string

const (
	PreviewImage PreviewKind = "image"
	PreviewPDF   PreviewKind = "pdf"
)

type Preview struct {
	Kind      PreviewKind `json:"kind"`
	MediaType string      `json:"media_type"`
	Width     int         `json:"width,omitempty"`
	Height    int         `json:"height,omitempty"`
	Pages     int         `json:"pages,omitempty"`
	SizeLabel string      `json:"size_label"`
}
