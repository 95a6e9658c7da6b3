package driven

import (
	"context"

	"github.com/custodia-labs/docfield-core/internal/core/domain"
)

// Recognizer is the capability shared by all recognition engines: one
// preprocessed page in, positioned confidence-scored text spans out.
// Implementations must rescale engine-native confidences to [0,1] before
// returning.
type Recognizer interface {
	// Name identifies the engine for logging.
	Name() string

	// Detect recognizes text on a page. Span pages and modality are filled
	// in by the implementation.
	Detect(ctx context.Context, page domain.PageImage) ([]domain.TextSpan, error)
}
