// Package verify orchestrates extraction, quality gating and gallery matching
// into a single verification verdict.
package verify

import (
	"bytes"
	"context"
	"errors"
	"image"

	"github.com/facemark-labs/facemark/internal/domain"
	"github.com/facemark-labs/facemark/internal/extractor"
	"github.com/facemark-labs/facemark/internal/match"
	"github.com/facemark-labs/facemark/internal/quality"
)

// DefaultQualityThreshold is the minimum usable face quality.
const DefaultQualityThreshold = 0.6

// Engine runs one verification per call: extract candidate faces, gate them on
// quality, match the best one against the supplied gallery. Every call is
// independent; the engine holds no session state and the same inputs always
// produce the same verdict.
type Engine struct {
	extractor        extractor.Extractor
	scorer           *quality.Scorer
	matcher          *match.Matcher
	qualityThreshold float64
}

// NewEngine wires the engine's collaborators explicitly; implementations are
// chosen by the caller, never resolved through ambient state.
func NewEngine(ext extractor.Extractor, scorer *quality.Scorer, matcher *match.Matcher) *Engine {
	return &Engine{
		extractor:        ext,
		scorer:           scorer,
		matcher:          matcher,
		qualityThreshold: DefaultQualityThreshold,
	}
}

// WithQualityThreshold overrides the minimum usable face quality.
func (e *Engine) WithQualityThreshold(threshold float64) *Engine {
	e.qualityThreshold = threshold
	return e
}

// Verify runs the full pipeline against a probe image and a read-only gallery
// snapshot. Input problems (undecodable image, no face, low quality, no match)
// are folded into the result; the returned error is reserved for collaborator
// faults such as an unreachable remote extractor.
func (e *Engine) Verify(ctx context.Context, img []byte, gallery []domain.GalleryEntry) (*domain.VerificationResult, error) {
	best, score, err := e.BestFace(ctx, img)
	if err != nil {
		var appErr *domain.AppError
		if errors.As(err, &appErr) {
			switch appErr.Code {
			case domain.ErrNoFaceDetected.Code:
				return &domain.VerificationResult{
					Success:       false,
					QualityPassed: false,
					Error:         domain.ErrNoFaceDetected.Message,
				}, nil
			case domain.ErrLowQualityImage.Code:
				return &domain.VerificationResult{
					Success:       false,
					QualityPassed: false,
					QualityScore:  score.Total,
					Error:         domain.ErrLowQualityImage.Message,
				}, nil
			}
		}
		return nil, err
	}

	result, ok := e.matcher.Match(best.Descriptor, gallery)
	if !ok {
		return &domain.VerificationResult{
			Success:       false,
			QualityPassed: true,
			QualityScore:  score.Total,
			Error:         domain.ErrFaceNotRecognized.Message,
		}, nil
	}

	studentID := result.StudentID
	return &domain.VerificationResult{
		Success:       true,
		StudentID:     &studentID,
		Confidence:    result.Confidence,
		QualityScore:  score.Total,
		QualityPassed: true,
	}, nil
}

// BestFace extracts all candidate faces and returns the maximum-quality region
// that clears the quality threshold, along with its score. It returns
// domain.ErrNoFaceDetected when nothing is detectable and
// domain.ErrLowQualityImage (with the best observed score) when no candidate
// qualifies.
func (e *Engine) BestFace(ctx context.Context, img []byte) (*domain.Detection, quality.Score, error) {
	detections, err := e.extractor.Extract(ctx, img)
	if err != nil {
		return nil, quality.Score{}, err
	}
	if len(detections) == 0 {
		return nil, quality.Score{}, domain.ErrNoFaceDetected
	}

	decoded, _, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		// The extractor found faces but the probe cannot be re-decoded
		// locally; fail closed the same way as an undetectable face.
		return nil, quality.Score{}, domain.ErrNoFaceDetected.WithError(err)
	}

	var (
		best      *domain.Detection
		bestScore quality.Score
		topScore  quality.Score
	)

	for i := range detections {
		s := e.scorer.Score(decoded, detections[i].Region)
		if s.Total > topScore.Total {
			topScore = s
		}
		if !s.Usable(e.qualityThreshold) {
			continue
		}
		if best == nil || s.Total > bestScore.Total {
			best = &detections[i]
			bestScore = s
		}
	}

	if best == nil {
		return nil, topScore, domain.ErrLowQualityImage
	}
	return best, bestScore, nil
}
