// Package match compares a probe descriptor against a gallery of enrolled
// descriptors.
package match

import (
	"math"

	"github.com/google/uuid"

	"github.com/facemark-labs/facemark/internal/domain"
	"github.com/facemark-labs/facemark/internal/extractor"
)

// Metric computes a distance between two descriptors of equal length. Lower
// means more alike. The confidence derived from it (1 - distance, clamped) is
// monotonic in the distance regardless of which metric is plugged in.
type Metric func(a, b domain.FaceDescriptor) float64

// Euclidean is the metric for dense embedding descriptors; enrolled and probe
// faces of the same person typically fall below 0.6.
func Euclidean(a, b domain.FaceDescriptor) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Cosine converts cosine similarity into a distance. Suited to embeddings of
// varying magnitude from remote extraction services.
func Cosine(a, b domain.FaceDescriptor) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

// Correlation remaps the Pearson correlation coefficient from [-1,1] into a
// [0,1] distance. This is the metric for the pixel-statistics fallback
// descriptors, where absolute pixel levels vary with exposure but the spatial
// pattern does not.
func Correlation(a, b domain.FaceDescriptor) float64 {
	n := float64(len(a))
	if n == 0 {
		return 1
	}

	var sumA, sumB float64
	for i := range a {
		sumA += a[i]
		sumB += b[i]
	}
	meanA, meanB := sumA/n, sumB/n

	var cov, varA, varB float64
	for i := range a {
		da, db := a[i]-meanA, b[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 1
	}

	corr := cov / math.Sqrt(varA*varB)
	return 1 - (corr+1)/2
}

// MetricFor pairs each extraction capability with the metric its descriptors
// were designed for.
func MetricFor(kind extractor.Kind) Metric {
	switch kind {
	case extractor.KindFallback:
		return Correlation
	case extractor.KindRemote:
		return Cosine
	default:
		return Euclidean
	}
}

// Result is the best gallery candidate for a probe.
type Result struct {
	StudentID  uuid.UUID
	Distance   float64
	Confidence float64
}

// Matcher selects the minimum-distance gallery entry for a probe descriptor.
type Matcher struct {
	metric      Metric
	maxDistance float64
}

// NewMatcher creates a matcher. maxDistance is the largest distance still
// declared a match; equivalently, confidence must reach 1 - maxDistance.
func NewMatcher(metric Metric, maxDistance float64) *Matcher {
	return &Matcher{metric: metric, maxDistance: maxDistance}
}

// Match scans the gallery in the supplied order and returns the entry of
// minimum distance, provided it is within maxDistance. Ties keep the first
// entry encountered, so repeated calls with identical input are
// deterministic. Entries whose descriptor length differs from the probe are
// skipped. The gallery is never mutated.
func (m *Matcher) Match(probe domain.FaceDescriptor, gallery []domain.GalleryEntry) (*Result, bool) {
	var (
		found    bool
		bestID   uuid.UUID
		bestDist float64
	)

	for _, entry := range gallery {
		if len(entry.Descriptor) != len(probe) || len(entry.Descriptor) == 0 {
			continue
		}
		d := m.metric(probe, entry.Descriptor)
		if !found || d < bestDist {
			found = true
			bestID = entry.StudentID
			bestDist = d
		}
	}

	if !found || bestDist > m.maxDistance {
		return nil, false
	}

	return &Result{
		StudentID:  bestID,
		Distance:   bestDist,
		Confidence: clamp01(1 - bestDist),
	}, true
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
