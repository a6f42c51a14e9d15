package document

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
	ErrDuplicateContent    = errors.New("duplicate content")
)

// MIME types accepted at upload time.
const (
	MIMEPDF  = "application/pdf"
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
)

// MaxFileSize caps uploads at 50 MB.
const MaxFileSize = 50 << 20

var allowedTypes = map[string]struct{}{
	MIMEPDF:  {},
	MIMEJPEG: {},
	MIMEPNG:  {},
}

// ValidateUpload enforces type and size limits before a job is created.
// Violations surface synchronously at job-creation time and never reach the
// worker.
func ValidateUpload(fileType string, size int64) error {
	if _, ok := allowedTypes[fileType]; !ok {
		return fmt.Errorf("%w: %s (supported: PDF, JPEG, PNG)", ErrUnsupportedFileType, fileType)
	}
	if size > MaxFileSize {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFileTooLarge, size, MaxFileSize)
	}
	return nil
}

// IsImageType reports whether the MIME type is one of the supported raster
// image formats.
func IsImageType(fileType string) bool {
	return fileType == MIMEJPEG || fileType == MIMEPNG
}
