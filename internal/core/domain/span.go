package domain

import (
	"image"
	"sort"
)

// Modality identifies which recognizer produced a text span.
type Modality string

const (
	ModalityPrinted     Modality = "printed"
	ModalityHandwritten Modality = "handwritten"
)

// TextSpan is one positioned piece of recognized text. Confidence is already
// rescaled to [0,1] at the engine boundary.
type TextSpan struct {
	Text       string      `json:"text"`
	Confidence float64     `json:"confidence"`
	Page       int         `json:"page"`
	BBox       BoundingBox `json:"bbox"`
	Modality   Modality    `json:"modality"`
}

// PageImage is one rasterized PDF page. Number is 1-indexed.
type PageImage struct {
	Number int
	Image  image.Image
}

// Width returns the page width in pixels.
func (p PageImage) Width() float64 {
	if p.Image == nil {
		return 0
	}
	return float64(p.Image.Bounds().Dx())
}

// Height returns the page height in pixels.
func (p PageImage) Height() float64 {
	if p.Image == nil {
		return 0
	}
	return float64(p.Image.Bounds().Dy())
}

// SortSpans orders spans into reading order: by page, then top-to-bottom,
// then left-to-right.
func SortSpans(spans []TextSpan) {
	sort.SliceStable(spans, func(i, j int) bool {
		a, b := spans[i], spans[j]
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		if a.BBox.Y != b.BBox.Y {
			return a.BBox.Y < b.BBox.Y
		}
		return a.BBox.X < b.BBox.X
	})
}
