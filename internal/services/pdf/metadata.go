package pdf

import (
	"fmt"
	"os"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Metadata is the document-level information read from a PDF.
type Metadata struct {
	Title     string
	Author    string
	PageCount int
}

// MetadataReader reads Metadata from a PDF on disk. Missing or malformed
// info entries degrade to empty strings; only a file that cannot be opened
// as a PDF at all is an error.
type MetadataReader interface {
	ReadMetadata(path string) (Metadata, error)
}

// NewMetadataReader returns the reader for a configured backend name.
func NewMetadataReader(backend string) (MetadataReader, error) {
	switch backend {
	case "", "ledongthuc":
		return LedongthucReader{}, nil
	case "pdfcpu":
		return NewPDFCPUReader(), nil
	default:
		return nil, fmt.Errorf("unknown PDF metadata backend %q", backend)
	}
}

// LedongthucReader reads the trailer's Info dictionary with ledongthuc/pdf.
type LedongthucReader struct{}

func (LedongthucReader) ReadMetadata(path string) (meta Metadata, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to open PDF: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	info := r.Trailer().Key("Info")
	return Metadata{
		Title:     infoString(info, "Title"),
		Author:    infoString(info, "Author"),
		PageCount: r.NumPage(),
	}, nil
}

// infoString returns the named Info entry if it is a string, else "".
// Producers sometimes store names, numbers or nothing at all here.
func infoString(info pdf.Value, key string) (s string) {
	defer func() {
		if recover() != nil {
			s = ""
		}
	}()
	v := info.Key(key)
	if v.Kind() != pdf.String {
		return ""
	}
	return v.Text()
}

var disablePDFCPUConfigDir sync.Once

// PDFCPUReader reads metadata with pdfcpu in relaxed validation mode.
// pdfcpu also checks the file's cross-reference structure, so it rejects
// some files ledongthuc would accept.
type PDFCPUReader struct{}

// NewPDFCPUReader returns a reader that keeps pdfcpu from writing a
// configuration directory under the user's home.
func NewPDFCPUReader() PDFCPUReader {
	disablePDFCPUConfigDir.Do(api.DisableConfigDir)
	return PDFCPUReader{}
}

func (PDFCPUReader) ReadMetadata(path string) (meta Metadata, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to open PDF: %v", r)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to open PDF: %w", err)
	}

	return Metadata{
		Title:     ctx.Title,
		Author:    ctx.Author,
		PageCount: ctx.PageCount,
	}, nil
}
