// Package pdf validates uploaded PDFs and extracts their metadata and text.
//
// Parsing is delegated to github.com/ledongthuc/pdf (pure Go, no CGO), with
// github.com/pdfcpu/pdfcpu available as an alternative metadata backend.
// Both libraries can panic on sufficiently broken input, so every call into
// them is guarded and turned into an ordinary error.
package pdf

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// Reason is the machine-readable cause of an upload rejection.
type Reason string

const (
	InvalidExtension Reason = "INVALID_EXTENSION"
	TooLarge         Reason = "TOO_LARGE"
	InvalidSignature Reason = "INVALID_SIGNATURE"
	InvalidMIME      Reason = "INVALID_MIME"
)

const (
	// MIMEType is the only content type accepted by the sniff check.
	MIMEType = "application/pdf"

	// DefaultMaxSize is the upload ceiling used when Validator.MaxSize is unset.
	DefaultMaxSize int64 = 20 * 1024 * 1024

	signature = "%PDF"
	sniffLen  = 2048
)

// ValidationError is returned when an upload is rejected.
type ValidationError struct {
	Reason  Reason
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsValidationError reports whether err is (or wraps) a *ValidationError.
func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// Sniffer guesses a content type from the leading bytes of a file. An error
// means the sniffer could not run, not that the content is wrong.
type Sniffer interface {
	Sniff(head []byte) (string, error)
}

// MimetypeSniffer detects content types with gabriel-vasile/mimetype.
type MimetypeSniffer struct{}

func (MimetypeSniffer) Sniff(head []byte) (string, error) {
	return mimetype.Detect(head).String(), nil
}

// Validator decides whether an upload is plausibly a PDF.
type Validator struct {
	MaxSize int64   // bytes; <= 0 means DefaultMaxSize
	Sniffer Sniffer // nil disables the MIME check
	Logger  *zap.Logger
}

// NewValidator returns a validator with the given ceiling. When sniff is
// true the MIME check uses MimetypeSniffer.
func NewValidator(maxSize int64, sniff bool, logger *zap.Logger) *Validator {
	v := &Validator{MaxSize: maxSize, Logger: logger}
	if sniff {
		v.Sniffer = MimetypeSniffer{}
	}
	return v
}

// Validate checks filename, declared size (negative if unknown) and the
// leading bytes of r. The first failing rule wins. r is always left at the
// offset it had on entry.
//
// A rejection is returned as *ValidationError; any other error means r
// could not be read.
func (v *Validator) Validate(filename string, size int64, r io.ReadSeeker) (err error) {
	start, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("failed to read upload position: %w", err)
	}
	defer func() {
		if _, serr := r.Seek(start, io.SeekStart); serr != nil && err == nil {
			err = fmt.Errorf("failed to rewind upload: %w", serr)
		}
	}()

	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return &ValidationError{Reason: InvalidExtension, Message: "Only PDF files are allowed (by extension)."}
	}

	maxSize := v.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if size >= 0 && size > maxSize {
		return &ValidationError{
			Reason:  TooLarge,
			Message: fmt.Sprintf("File too large. Max %dMB.", maxSize/(1024*1024)),
		}
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]

	if !strings.HasPrefix(string(head), signature) {
		return &ValidationError{Reason: InvalidSignature, Message: "Invalid PDF file signature."}
	}

	if v.Sniffer != nil {
		mime, serr := v.Sniffer.Sniff(head)
		switch {
		case serr != nil:
			if v.Logger != nil {
				v.Logger.Debug("mime sniff unavailable, skipping", zap.Error(serr))
			}
		case mime != MIMEType && !strings.HasPrefix(mime, MIMEType+";"):
			return &ValidationError{Reason: InvalidMIME, Message: fmt.Sprintf("Invalid MIME type: %s", mime)}
		}
	}
	return nil
}
