// Package quality scores how suitable a detected face region is as biometric
// evidence. Scoring is deterministic and pure: it reads only the already
// decoded image.
package quality

import (
	"image"

	"github.com/facemark-labs/facemark/internal/domain"
)

const (
	// baselineArea normalizes the size sub-score: a 100x100 px face scores 1.0.
	baselineArea = 100.0 * 100.0
	// sharpnessNorm normalizes the variance of the Laplacian.
	sharpnessNorm = 500.0
	// optimalBrightness is the grayscale mean considered ideally exposed.
	optimalBrightness = 128.0

	weightSize       = 0.3
	weightSharpness  = 0.4
	weightBrightness = 0.3
)

// Score decomposes a region's fitness into its sub-scores. Total is the
// weighted combination, clamped to [0,1].
type Score struct {
	Size       float64 `json:"size"`
	Sharpness  float64 `json:"sharpness"`
	Brightness float64 `json:"brightness"`
	Total      float64 `json:"total"`
}

// Usable reports whether the score clears the given threshold.
func (s Score) Usable(threshold float64) bool {
	return s.Total >= threshold
}

type Scorer struct{}

func NewScorer() *Scorer {
	return &Scorer{}
}

// Score rates a face region. Degenerate regions (empty, outside the image)
// score zero.
func (s *Scorer) Score(img image.Image, region domain.FaceRegion) Score {
	gray, w, h := grayRegion(img, region)
	if w < 3 || h < 3 {
		return Score{}
	}

	sizeScore := clamp01(float64(region.Area()) / baselineArea)
	sharpnessScore := clamp01(laplacianVariance(gray, w, h) / sharpnessNorm)

	brightness := mean(gray)
	brightnessScore := 1.0 - abs(brightness-optimalBrightness)/optimalBrightness

	total := clamp01(weightSize*sizeScore + weightSharpness*sharpnessScore + weightBrightness*brightnessScore)

	return Score{
		Size:       sizeScore,
		Sharpness:  sharpnessScore,
		Brightness: brightnessScore,
		Total:      total,
	}
}

// grayRegion extracts the region as a flat grayscale plane, clipped to the
// image bounds.
func grayRegion(img image.Image, region domain.FaceRegion) ([]float64, int, int) {
	bounds := img.Bounds()
	rect := image.Rect(region.Left, region.Top, region.Right, region.Bottom).Intersect(bounds)
	w, h := rect.Dx(), rect.Dy()
	if w <= 0 || h <= 0 {
		return nil, 0, 0
	}

	gray := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(rect.Min.X+x, rect.Min.Y+y).RGBA()
			gray[y*w+x] = (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 257.0
		}
	}
	return gray, w, h
}

// laplacianVariance measures sharpness as the variance of the 4-neighbor
// Laplacian over the interior pixels.
func laplacianVariance(gray []float64, w, h int) float64 {
	n := (w - 2) * (h - 2)
	if n <= 0 {
		return 0
	}

	var sum, sumSq float64
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			lap := 4*gray[y*w+x] - gray[(y-1)*w+x] - gray[(y+1)*w+x] - gray[y*w+x-1] - gray[y*w+x+1]
			sum += lap
			sumSq += lap * lap
		}
	}

	m := sum / float64(n)
	return sumSq/float64(n) - m*m
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
