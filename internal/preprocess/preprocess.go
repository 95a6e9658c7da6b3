// Package preprocess normalizes raster pages before recognition: grayscale
// conversion, median denoising, projection-profile deskew and Otsu
// binarization, always in that order.
package preprocess

import (
	"fmt"
	"image"
	"image/color"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/custodia-labs/docfield-core/internal/core/domain"
)

const (
	// maxSkewDegrees bounds the deskew search. Scanner feed misalignment
	// rarely exceeds a few degrees; anything larger is a rotated original
	// that deskew should not touch.
	maxSkewDegrees = 5.0

	// skewStepDegrees is the angle search resolution.
	skewStepDegrees = 0.25

	// minSkewDegrees is the correction floor. Rotating below it costs more
	// in interpolation blur than it gains, and keeps the stage idempotent
	// on already-straight pages.
	minSkewDegrees = 0.5
)

// Preprocessor cleans one page image for recognition.
type Preprocessor struct{}

// New creates a Preprocessor.
func New() *Preprocessor {
	return &Preprocessor{}
}

// Process runs the full normalization sequence. The result is a binary
// image: every pixel is 0 (ink) or 255 (paper).
func (p *Preprocessor) Process(img image.Image) (*image.Gray, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", domain.ErrPreprocessing)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: empty image %v", domain.ErrPreprocessing, b)
	}

	gray := toGray(img)
	gray = median3x3(gray)

	if angle := estimateSkew(gray); math.Abs(angle) >= minSkewDegrees {
		gray = rotate(gray, -angle)
	}

	return binarize(gray, otsuThreshold(gray)), nil
}

// toGray converts any image to 8-bit grayscale.
func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(out, out.Bounds(), img, b.Min, xdraw.Src)
	return out
}

// median3x3 applies a 3x3 median filter, removing salt-and-pepper noise
// from the scan while preserving stroke edges.
func median3x3(src *image.Gray) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))

	var window [9]uint8
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			n := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					ny, nx := y+dy, x+dx
					if ny < 0 || ny >= h || nx < 0 || nx >= w {
						continue
					}
					window[n] = src.GrayAt(b.Min.X+nx, b.Min.Y+ny).Y
					n++
				}
			}
			dst.SetGray(x, y, color.Gray{Y: medianOf(window[:n])})
		}
	}
	return dst
}

// medianOf is an insertion sort over at most 9 values.
func medianOf(v []uint8) uint8 {
	for i := 1; i < len(v); i++ {
		for j := i; j > 0 && v[j-1] > v[j]; j-- {
			v[j-1], v[j] = v[j], v[j-1]
		}
	}
	return v[len(v)/2]
}

// estimateSkew finds the rotation angle, in degrees, that maximizes the
// variance of horizontal ink projections. Text lines produce sharply peaked
// row profiles when horizontal, so the variance is highest at the true
// skew angle.
func estimateSkew(gray *image.Gray) float64 {
	threshold := otsuThreshold(gray)
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()

	// Subsample large pages; angle estimation does not need full resolution.
	step := 1
	for (w/step)*(h/step) > 1_000_000 {
		step++
	}

	type point struct{ x, y float64 }
	var ink []point
	for y := 0; y < h; y += step {
		for x := 0; x < w; x += step {
			if gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y < threshold {
				ink = append(ink, point{float64(x), float64(y)})
			}
		}
	}
	if len(ink) < 100 {
		return 0
	}

	bestAngle, bestScore := 0.0, -1.0
	rows := make([]float64, h/step+2)
	for angle := -maxSkewDegrees; angle <= maxSkewDegrees; angle += skewStepDegrees {
		rad := angle * math.Pi / 180
		sin, cos := math.Sin(rad), math.Cos(rad)

		for i := range rows {
			rows[i] = 0
		}
		for _, p := range ink {
			// Row index of the pixel after rotating by -angle.
			ry := int((p.y*cos - p.x*sin) / float64(step))
			if ry >= 0 && ry < len(rows) {
				rows[ry]++
			}
		}

		var sum, sumSq float64
		for _, r := range rows {
			sum += r
			sumSq += r * r
		}
		mean := sum / float64(len(rows))
		variance := sumSq/float64(len(rows)) - mean*mean
		if variance > bestScore {
			bestScore = variance
			bestAngle = angle
		}
	}
	return bestAngle
}

// rotate turns the image by angle degrees around its center, filling the
// uncovered corners with paper white.
func rotate(src *image.Gray, angle float64) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for i := range dst.Pix {
		dst.Pix[i] = 0xFF
	}

	rad := angle * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	cx, cy := float64(w)/2, float64(h)/2

	// Rotation around the page center: translate, rotate, translate back.
	m := f64.Aff3{
		cos, -sin, cx - cos*cx + sin*cy,
		sin, cos, cy - sin*cx - cos*cy,
	}
	xdraw.BiLinear.Transform(dst, m, src, b, xdraw.Over, nil)
	return dst
}

// otsuThreshold computes the global binarization threshold maximizing
// between-class variance.
func otsuThreshold(gray *image.Gray) uint8 {
	var hist [256]int
	b := gray.Bounds()
	total := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			hist[gray.GrayAt(x, y).Y]++
			total++
		}
	}
	if total == 0 {
		return 128
	}

	var sumAll float64
	for i, c := range hist {
		sumAll += float64(i) * float64(c)
	}

	var sumBg, wBg float64
	best, bestVar := 128, -1.0
	for t := 0; t < 256; t++ {
		wBg += float64(hist[t])
		if wBg == 0 {
			continue
		}
		wFg := float64(total) - wBg
		if wFg == 0 {
			break
		}
		sumBg += float64(t) * float64(hist[t])
		meanBg := sumBg / wBg
		meanFg := (sumAll - sumBg) / wFg
		between := wBg * wFg * (meanBg - meanFg) * (meanBg - meanFg)
		if between > bestVar {
			bestVar = between
			best = t
		}
	}
	return uint8(best)
}

// binarize maps pixels at or below threshold to ink and the rest to paper.
func binarize(gray *image.Gray, threshold uint8) *image.Gray {
	b := gray.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if gray.GrayAt(x, y).Y <= threshold {
				out.Pix[i] = 0x00
			} else {
				out.Pix[i] = 0xFF
			}
			i++
		}
	}
	return out
}
