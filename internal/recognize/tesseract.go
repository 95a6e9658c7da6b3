package recognize

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/custodia-labs/docfield-core/internal/core/domain"
)

// TesseractEngine recognizes printed text using the gosseract client.
type TesseractEngine struct {
	languages     []string
	dpi           int
	clientFactory func() *gosseract.Client
}

// NewTesseractEngine constructs the printed-text engine. languages follow
// Tesseract naming ("eng", "por"); dpi must match the rasterization DPI so
// Tesseract's layout analysis sees correct physical sizes.
func NewTesseractEngine(languages []string, dpi int) *TesseractEngine {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &TesseractEngine{
		languages:     languages,
		dpi:           dpi,
		clientFactory: gosseract.NewClient,
	}
}

func (e *TesseractEngine) Name() string { return "tesseract" }

// Detect runs word-level recognition over one page.
func (e *TesseractEngine) Detect(ctx context.Context, page domain.PageImage) ([]domain.TextSpan, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, page.Image); err != nil {
		return nil, fmt.Errorf("%w: encoding page %d: %v", domain.ErrRecognition, page.Number, err)
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("%w: set image: %v", domain.ErrRecognition, err)
	}
	if err := c.SetLanguage(e.languages...); err != nil {
		return nil, fmt.Errorf("%w: set languages: %v", domain.ErrRecognition, err)
	}
	if e.dpi > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(e.dpi)); err != nil {
			return nil, fmt.Errorf("%w: set dpi: %v", domain.ErrRecognition, err)
		}
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", domain.ErrRecognition, page.Number, err)
	}

	spans := make([]domain.TextSpan, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		spans = append(spans, domain.TextSpan{
			Text:       text,
			Confidence: domain.NormalizeConfidence(b.Confidence),
			Page:       page.Number,
			BBox: domain.BoundingBox{
				X: float64(b.Box.Min.X),
				Y: float64(b.Box.Min.Y),
				W: float64(b.Box.Dx()),
				H: float64(b.Box.Dy()),
			},
			Modality: domain.ModalityPrinted,
		})
	}
	return spans, nil
}
