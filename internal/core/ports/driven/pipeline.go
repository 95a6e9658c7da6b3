package driven

import (
	"context"
	"image"

	"github.com/custodia-labs/docfield-core/internal/core/domain"
)

// Rasterizer renders a PDF's pages into raster images at a target
// resolution.
type Rasterizer interface {
	// Rasterize returns one image per page, in page order. Fails with
	// domain.ErrInvalidDocument for unparseable bytes and
	// domain.ErrEmptyDocument for a zero-page PDF.
	Rasterize(ctx context.Context, pdf []byte, dpi int) ([]domain.PageImage, error)
}

// Preprocessor normalizes one raster page for recognition.
type Preprocessor interface {
	// Process applies grayscale, denoise, deskew and binarization in a
	// fixed order. Idempotent on an already-clean image. Fails with
	// domain.ErrPreprocessing only on malformed input.
	Process(img image.Image) (*image.Gray, error)
}

// PageRecognizer merges the output of all configured engines for one page.
type PageRecognizer interface {
	// RecognizePage runs every engine over the page and returns the merged
	// span sequence in reading order.
	RecognizePage(ctx context.Context, page domain.PageImage) ([]domain.TextSpan, error)
}

// FieldMapper maps a document's span sequence to field-record candidates.
type FieldMapper interface {
	// Map produces one record per detected field occurrence. Absence of a
	// match is not an error; domain.ErrMapping signals an internal
	// invariant violation.
	Map(spans []domain.TextSpan) ([]domain.FieldRecord, error)
}
