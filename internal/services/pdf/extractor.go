package pdf

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Shimizu-Technology/docvault-api/internal/models"
)

// Extractor computes every field a successful extraction writes back to a
// document.
type Extractor struct {
	Metadata MetadataReader
	Text     TextExtractor
}

// NewExtractor wires an Extractor with the given metadata backend.
func NewExtractor(metadata MetadataReader, logger *zap.Logger) *Extractor {
	if metadata == nil {
		metadata = LedongthucReader{}
	}
	return &Extractor{Metadata: metadata, Text: TextExtractor{Logger: logger}}
}

// Extract fingerprints, reads metadata from and extracts text from the PDF
// at path. The three steps are independent and run concurrently; the
// returned fields are only populated once all three have succeeded.
func (e *Extractor) Extract(ctx context.Context, path string) (models.ExtractedFields, error) {
	var (
		sum  string
		meta Metadata
		text string
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sum, err = FingerprintFile(path)
		return err
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		meta, err = e.Metadata.ReadMetadata(path)
		return err
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		text, err = e.Text.ExtractText(path)
		return err
	})
	if err := g.Wait(); err != nil {
		return models.ExtractedFields{}, err
	}

	return models.ExtractedFields{
		Title:       meta.Title,
		Author:      meta.Author,
		PageCount:   meta.PageCount,
		ContentText: text,
		MD5:         sum,
	}, nil
}
