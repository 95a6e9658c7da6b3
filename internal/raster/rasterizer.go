// Package raster renders scanned PDF pages into in-memory images.
//
// Inputs are scanner output: each page carries one full-page embedded raster
// image. Rendering therefore extracts the embedded images and rescales them
// to the page geometry at the requested DPI, rather than interpreting page
// content streams.
package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"

	"github.com/custodia-labs/docfield-core/internal/core/domain"
)

const pointsPerInch = 72.0

// Rasterizer extracts and scales page images from scanned PDFs.
type Rasterizer struct {
	conf *model.Configuration
}

// New creates a Rasterizer with relaxed validation, since scanner firmware
// produces PDFs that trip strict structural checks.
func New() *Rasterizer {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Rasterizer{conf: conf}
}

// Rasterize renders every page of pdf at dpi, in page order.
func (r *Rasterizer) Rasterize(ctx context.Context, pdf []byte, dpi int) ([]domain.PageImage, error) {
	if len(pdf) == 0 {
		return nil, fmt.Errorf("%w: empty input", domain.ErrInvalidDocument)
	}
	if dpi <= 0 {
		dpi = 300
	}

	pdfCtx, err := api.ReadContext(bytes.NewReader(pdf), r.conf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidDocument, err)
	}
	if pdfCtx.PageCount == 0 {
		return nil, domain.ErrEmptyDocument
	}

	dims, err := pdfCtx.PageDims()
	if err != nil {
		return nil, fmt.Errorf("%w: reading page dimensions: %v", domain.ErrInvalidDocument, err)
	}

	embedded, err := r.extractPageImages(pdf)
	if err != nil {
		return nil, err
	}

	pages := make([]domain.PageImage, 0, pdfCtx.PageCount)
	for i := 0; i < pdfCtx.PageCount; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		pageNr := i + 1
		w := int(dims[i].Width / pointsPerInch * float64(dpi))
		h := int(dims[i].Height / pointsPerInch * float64(dpi))
		if w <= 0 || h <= 0 {
			return nil, fmt.Errorf("%w: page %d has degenerate dimensions", domain.ErrInvalidDocument, pageNr)
		}

		var img image.Image
		if src, ok := embedded[pageNr]; ok {
			img = scaleTo(src, w, h)
		} else {
			// Scanner pages without an extractable image render blank
			// rather than failing the whole document.
			img = blankPage(w, h)
		}
		pages = append(pages, domain.PageImage{Number: pageNr, Image: img})
	}
	return pages, nil
}

// extractPageImages pulls the largest embedded raster per page.
func (r *Rasterizer) extractPageImages(pdf []byte) (map[int]image.Image, error) {
	raw, err := api.ExtractImagesRaw(bytes.NewReader(pdf), nil, r.conf)
	if err != nil {
		return nil, fmt.Errorf("%w: extracting images: %v", domain.ErrInvalidDocument, err)
	}

	best := make(map[int]image.Image)
	for _, pageImages := range raw {
		for _, pi := range pageImages {
			if pi.Thumb {
				continue
			}
			img, _, err := image.Decode(pi)
			if err != nil {
				// Unsupported encodings (e.g. JBIG2) are skipped; the page
				// falls back to a blank raster.
				continue
			}
			cur, ok := best[pi.PageNr]
			if !ok || area(img) > area(cur) {
				best[pi.PageNr] = img
			}
		}
	}
	return best, nil
}

func area(img image.Image) int {
	b := img.Bounds()
	return b.Dx() * b.Dy()
}

// scaleTo resamples src to exactly w x h.
func scaleTo(src image.Image, w, h int) image.Image {
	b := src.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	scaler := xdraw.Scaler(xdraw.CatmullRom)
	if b.Dx() < w || b.Dy() < h {
		// BiLinear avoids ringing artifacts when upscaling low-res scans.
		scaler = xdraw.BiLinear
	}
	scaler.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	return dst
}

func blankPage(w, h int) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	return img
}
