package extractor

import (
	"context"
	"image"

	"golang.org/x/image/draw"

	"github.com/facemark-labs/facemark/internal/domain"
)

const (
	// fallbackDescriptorDim is the dimensionality of the pixel-statistics
	// descriptor (16x8 resampled grayscale patch).
	fallbackDescriptorDim = 128

	// minWindowSide is the smallest face candidate worth reporting.
	minWindowSide = 24

	// minDetectVariance is the grayscale variance below which a window is
	// considered featureless (blank walls, corrupt frames).
	minDetectVariance = 80.0
)

// FallbackExtractor is a coarse heuristic detector for environments without
// the native embedding model. It localizes the highest-contrast square window
// in the frame and derives a low-dimensional descriptor directly from the
// pixel statistics of that region. Interchangeable with GeometricExtractor
// behind the Extractor contract; only the matcher metric differs.
type FallbackExtractor struct{}

func NewFallback() *FallbackExtractor {
	return &FallbackExtractor{}
}

func (e *FallbackExtractor) Extract(ctx context.Context, img []byte) ([]domain.Detection, error) {
	decoded, err := decodeImage(img)
	if err != nil {
		return []domain.Detection{}, nil
	}

	region, ok := locateCandidate(decoded)
	if !ok {
		return []domain.Detection{}, nil
	}

	return []domain.Detection{
		{
			Region:     region,
			Descriptor: regionDescriptor(decoded, region),
		},
	}, nil
}

// locateCandidate slides a square window over the frame and keeps the one
// with the highest grayscale variance. Faces carry far more local contrast
// than background, which makes this a usable stand-in for a real detector on
// portrait-style probe photos.
func locateCandidate(img image.Image) (domain.FaceRegion, bool) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	side := min(w, h) * 5 / 8
	if side < minWindowSide {
		return domain.FaceRegion{}, false
	}
	stride := side / 4
	if stride < 1 {
		stride = 1
	}

	var (
		best    domain.FaceRegion
		bestVar = -1.0
	)

	for y := bounds.Min.Y; y+side <= bounds.Max.Y; y += stride {
		for x := bounds.Min.X; x+side <= bounds.Max.X; x += stride {
			v := windowVariance(img, x, y, side)
			if v > bestVar {
				bestVar = v
				best = domain.FaceRegion{Top: y, Right: x + side, Bottom: y + side, Left: x}
			}
		}
	}

	if bestVar < minDetectVariance {
		return domain.FaceRegion{}, false
	}
	return best, true
}

// windowVariance computes the luminance variance of a side×side window,
// sampling every other pixel.
func windowVariance(img image.Image, x0, y0, side int) float64 {
	var sum, sumSq float64
	var n int

	for y := y0; y < y0+side; y += 2 {
		for x := x0; x < x0+side; x += 2 {
			l := luminance(img, x, y)
			sum += l
			sumSq += l * l
			n++
		}
	}
	if n == 0 {
		return 0
	}

	mean := sum / float64(n)
	return sumSq/float64(n) - mean*mean
}

// regionDescriptor resamples the region to a 16x8 grayscale patch and returns
// the pixels as a normalized vector.
func regionDescriptor(img image.Image, region domain.FaceRegion) domain.FaceDescriptor {
	patch := image.NewGray(image.Rect(0, 0, 16, 8))
	src := image.Rect(region.Left, region.Top, region.Right, region.Bottom)
	draw.ApproxBiLinear.Scale(patch, patch.Bounds(), img, src, draw.Src, nil)

	descriptor := make(domain.FaceDescriptor, fallbackDescriptorDim)
	for i, p := range patch.Pix[:fallbackDescriptorDim] {
		descriptor[i] = float64(p) / 255.0
	}
	return descriptor
}

// luminance returns the 0-255 grayscale value at (x, y).
func luminance(img image.Image, x, y int) float64 {
	r, g, b, _ := img.At(x, y).RGBA()
	return (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 257.0
}

var _ Extractor = (*FallbackExtractor)(nil)
