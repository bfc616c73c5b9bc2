// Package enrollment manages reference face encodings and the per-section
// gallery snapshots built from them.
package enrollment

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/facemark-labs/facemark/internal/cache"
	"github.com/facemark-labs/facemark/internal/domain"
	"github.com/facemark-labs/facemark/internal/notify"
	"github.com/facemark-labs/facemark/internal/quality"
	"github.com/facemark-labs/facemark/internal/repository"
	"github.com/facemark-labs/facemark/internal/verify"
)

// FaceFinder locates the best usable face in a reference photo.
type FaceFinder interface {
	BestFace(ctx context.Context, img []byte) (*domain.Detection, quality.Score, error)
}

var _ FaceFinder = (*verify.Engine)(nil)

// EventDispatcher fans domain events out to registered webhooks.
type EventDispatcher interface {
	Dispatch(ctx context.Context, event notify.EventPayload) error
}

type Service struct {
	encodings repository.FaceEncodingRepositoryInterface
	sessions  repository.SessionRepositoryInterface
	finder    FaceFinder
	gallery   *cache.GalleryCache
	events    EventDispatcher
	logger    *slog.Logger
}

func NewService(
	encodings repository.FaceEncodingRepositoryInterface,
	sessions repository.SessionRepositoryInterface,
	finder FaceFinder,
	gallery *cache.GalleryCache,
	events EventDispatcher,
	logger *slog.Logger,
) *Service {
	return &Service{
		encodings: encodings,
		sessions:  sessions,
		finder:    finder,
		gallery:   gallery,
		events:    events,
		logger:    logger,
	}
}

// RegisterFace extracts a face descriptor from a reference photo and stores it
// as a new encoding. The photo must contain a usable face; the first encoding
// a student registers becomes their primary one. Registering invalidates the
// cached galleries of every section the student is enrolled in.
func (s *Service) RegisterFace(ctx context.Context, studentID uuid.UUID, img []byte, referencePhoto string) (*domain.FaceEncoding, error) {
	best, score, err := s.finder.BestFace(ctx, img)
	if err != nil {
		return nil, err
	}

	hasPrimary, err := s.encodings.HasPrimary(ctx, studentID)
	if err != nil {
		return nil, err
	}

	enc := &domain.FaceEncoding{
		ID:             uuid.New(),
		StudentID:      studentID,
		Descriptor:     best.Descriptor,
		ReferencePhoto: referencePhoto,
		QualityScore:   score.Total,
		Primary:        !hasPrimary,
	}

	if err := s.encodings.Create(ctx, enc); err != nil {
		return nil, err
	}

	s.invalidateGalleries(ctx, studentID)

	if err := s.events.Dispatch(ctx, notify.NewEvent(notify.EventFaceEnrolled, map[string]any{
		"student_id":    studentID,
		"encoding_id":   enc.ID,
		"quality_score": enc.QualityScore,
		"is_primary":    enc.Primary,
	})); err != nil {
		s.logger.Warn("failed to dispatch face enrolled event",
			"student_id", studentID,
			"error", err,
		)
	}

	return enc, nil
}

func (s *Service) ListEncodings(ctx context.Context, studentID uuid.UUID) ([]domain.FaceEncoding, error) {
	return s.encodings.ListActiveByStudent(ctx, studentID)
}

// RemoveEncoding deactivates an encoding; the row stays for audit purposes but
// leaves every gallery.
func (s *Service) RemoveEncoding(ctx context.Context, studentID, encodingID uuid.UUID) error {
	if err := s.encodings.Deactivate(ctx, studentID, encodingID); err != nil {
		return err
	}
	s.invalidateGalleries(ctx, studentID)
	return nil
}

// GallerySnapshot returns the section's gallery, serving from cache when a
// fresh copy exists. The snapshot the caller receives is theirs alone; later
// enrollment changes never mutate it.
func (s *Service) GallerySnapshot(ctx context.Context, sectionID uuid.UUID) ([]domain.GalleryEntry, error) {
	if gallery, ok := s.gallery.Get(ctx, sectionID); ok {
		return gallery, nil
	}

	gallery, err := s.encodings.GalleryBySection(ctx, sectionID)
	if err != nil {
		return nil, err
	}

	if err := s.gallery.Set(ctx, sectionID, gallery); err != nil {
		s.logger.Warn("failed to cache gallery",
			"section_id", sectionID,
			"error", err,
		)
	}
	return gallery, nil
}

func (s *Service) invalidateGalleries(ctx context.Context, studentID uuid.UUID) {
	sections, err := s.sessions.SectionsByStudent(ctx, studentID)
	if err != nil {
		s.logger.Warn("failed to list sections for gallery invalidation",
			"student_id", studentID,
			"error", err,
		)
		return
	}
	for _, sectionID := range sections {
		if err := s.gallery.Invalidate(ctx, sectionID); err != nil {
			s.logger.Warn("failed to invalidate gallery cache",
				"section_id", sectionID,
				"error", err,
			)
		}
	}
}
