package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/facemark-labs/facemark/internal/domain"
	"github.com/facemark-labs/facemark/internal/ledger"
	"github.com/facemark-labs/facemark/internal/notify"
	"github.com/facemark-labs/facemark/internal/repository"
)

// GalleryProvider supplies the read-only gallery snapshot for a section.
type GalleryProvider interface {
	GallerySnapshot(ctx context.Context, sectionID uuid.UUID) ([]domain.GalleryEntry, error)
}

// Verifier runs one face verification against a gallery snapshot.
type Verifier interface {
	Verify(ctx context.Context, img []byte, gallery []domain.GalleryEntry) (*domain.VerificationResult, error)
}

// SelfMarkLimiter throttles repeated self-service attempts.
type SelfMarkLimiter interface {
	CheckSelfMarkLimit(ctx context.Context, sessionID, studentID uuid.UUID, limit int) error
}

// EventDispatcher fans domain events out to registered webhooks.
type EventDispatcher interface {
	Dispatch(ctx context.Context, event notify.EventPayload) error
}

// AttendanceService ties the verification pipeline to the attendance ledger.
// Recognition verdicts come back in the VerificationResult; a non-nil error
// means a collaborator fault or a ledger policy rejection, never a benign
// "face not recognized" outcome.
type AttendanceService struct {
	sessions      repository.SessionRepositoryInterface
	records       repository.AttendanceRepositoryInterface
	logs          repository.VerificationLogRepositoryInterface
	gallery       GalleryProvider
	verifier      Verifier
	ledger        *ledger.Ledger
	limiter       SelfMarkLimiter
	events        EventDispatcher
	selfMarkLimit int
	logger        *slog.Logger
}

func NewAttendanceService(
	sessions repository.SessionRepositoryInterface,
	records repository.AttendanceRepositoryInterface,
	logs repository.VerificationLogRepositoryInterface,
	gallery GalleryProvider,
	verifier Verifier,
	attendanceLedger *ledger.Ledger,
	limiter SelfMarkLimiter,
	events EventDispatcher,
	selfMarkLimit int,
	logger *slog.Logger,
) *AttendanceService {
	return &AttendanceService{
		sessions:      sessions,
		records:       records,
		logs:          logs,
		gallery:       gallery,
		verifier:      verifier,
		ledger:        attendanceLedger,
		limiter:       limiter,
		events:        events,
		selfMarkLimit: selfMarkLimit,
		logger:        logger,
	}
}

// MarkByPhoto runs the automatic flow: verify the probe against the session's
// section gallery and, on a match, commit a present mark for the recognized
// student. A failed recognition is reported in the result with a nil record.
func (s *AttendanceService) MarkByPhoto(ctx context.Context, sessionID uuid.UUID, img []byte, photoRef string) (*domain.VerificationResult, *domain.AttendanceRecord, error) {
	session, err := s.sessions.GetActive(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	result, err := s.verifyAgainstSection(ctx, session, nil, img)
	if err != nil {
		return nil, nil, err
	}
	if !result.Success {
		return result, nil, nil
	}

	confidence := result.Confidence
	record, err := s.ledger.Apply(ctx, domain.MarkRequest{
		SessionID:         sessionID,
		StudentID:         *result.StudentID,
		Status:            domain.StatusPresent,
		Confidence:        &confidence,
		VerificationPhoto: photoRef,
	})
	if err != nil {
		return result, nil, err
	}

	s.dispatchCommitted(ctx, record)
	return result, record, nil
}

// MarkSelf runs the student-driven flow: the caller must be enrolled, within
// the attempt limit, and the recognized face must be their own.
func (s *AttendanceService) MarkSelf(ctx context.Context, sessionID, studentID uuid.UUID, img []byte, photoRef string) (*domain.VerificationResult, *domain.AttendanceRecord, error) {
	session, err := s.sessions.GetActive(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	enrolled, err := s.sessions.IsEnrolled(ctx, studentID, session.SectionID)
	if err != nil {
		return nil, nil, err
	}
	if !enrolled {
		return nil, nil, domain.ErrNotEnrolled
	}

	if err := s.limiter.CheckSelfMarkLimit(ctx, sessionID, studentID, s.selfMarkLimit); err != nil {
		return nil, nil, err
	}

	result, err := s.verifyAgainstSection(ctx, session, &studentID, img)
	if err != nil {
		return nil, nil, err
	}
	if !result.Success {
		return result, nil, nil
	}
	if *result.StudentID != studentID {
		return result, nil, domain.ErrIdentityMismatch
	}

	confidence := result.Confidence
	record, err := s.ledger.Apply(ctx, domain.MarkRequest{
		SessionID:         sessionID,
		StudentID:         studentID,
		Status:            domain.StatusPresent,
		Confidence:        &confidence,
		VerificationPhoto: photoRef,
		SelfService:       true,
	})
	if err != nil {
		return result, nil, err
	}

	s.dispatchCommitted(ctx, record)
	return result, record, nil
}

// MarkManual commits a lecturer's explicit decision for a student. Lecturer
// marks override earlier automatic ones.
func (s *AttendanceService) MarkManual(ctx context.Context, sessionID, studentID uuid.UUID, status domain.AttendanceStatus) (*domain.AttendanceRecord, error) {
	if _, err := s.sessions.GetActive(ctx, sessionID); err != nil {
		return nil, err
	}

	record, err := s.ledger.Apply(ctx, domain.MarkRequest{
		SessionID:  sessionID,
		StudentID:  studentID,
		Status:     status,
		ByLecturer: true,
	})
	if err != nil {
		return nil, err
	}

	s.dispatchCommitted(ctx, record)
	return record, nil
}

func (s *AttendanceService) CreateSession(ctx context.Context, sectionID, lecturerID uuid.UUID, startsAt time.Time, endsAt *time.Time) (*domain.Session, error) {
	session := &domain.Session{
		ID:        uuid.New(),
		SectionID: sectionID,
		StartsAt:  startsAt,
		EndsAt:    endsAt,
		CreatedBy: lecturerID,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *AttendanceService) CloseSession(ctx context.Context, sessionID, lecturerID uuid.UUID) error {
	if err := s.sessions.Close(ctx, sessionID, lecturerID); err != nil {
		return err
	}

	if err := s.events.Dispatch(ctx, notify.NewEvent(notify.EventSessionClosed, map[string]any{
		"session_id": sessionID,
	})); err != nil {
		s.logger.Warn("failed to dispatch session closed event",
			"session_id", sessionID,
			"error", err,
		)
	}
	return nil
}

func (s *AttendanceService) SessionRecords(ctx context.Context, sessionID uuid.UUID) ([]domain.AttendanceRecord, error) {
	return s.records.ListBySession(ctx, sessionID)
}

func (s *AttendanceService) StudentHistory(ctx context.Context, studentID uuid.UUID) ([]domain.AttendanceRecord, error) {
	return s.records.ListByStudent(ctx, studentID)
}

// verifyAgainstSection runs the engine against the section gallery and writes
// the audit row. Audit failures are logged, never returned; the verdict was
// already reached.
func (s *AttendanceService) verifyAgainstSection(ctx context.Context, session *domain.Session, studentID *uuid.UUID, img []byte) (*domain.VerificationResult, error) {
	gallery, err := s.gallery.GallerySnapshot(ctx, session.SectionID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := s.verifier.Verify(ctx, img, gallery)
	latencyMs := time.Since(start).Milliseconds()
	if err != nil {
		return nil, err
	}

	logRow := &domain.VerificationLog{
		ID:            uuid.New(),
		SessionID:     &session.ID,
		StudentID:     studentID,
		Success:       result.Success,
		Confidence:    result.Confidence,
		QualityScore:  result.QualityScore,
		QualityPassed: result.QualityPassed,
		FailureReason: result.Error,
		LatencyMs:     latencyMs,
	}
	if result.Success {
		logRow.StudentID = result.StudentID
	}
	if err := s.logs.Create(ctx, logRow); err != nil {
		s.logger.Warn("failed to write verification log",
			"session_id", session.ID,
			"error", err,
		)
	}

	return result, nil
}

func (s *AttendanceService) dispatchCommitted(ctx context.Context, record *domain.AttendanceRecord) {
	err := s.events.Dispatch(ctx, notify.NewEvent(notify.EventAttendanceCommitted, record))
	if err != nil {
		s.logger.Warn("failed to dispatch attendance event",
			"session_id", record.SessionID,
			"student_id", record.StudentID,
			"error", err,
		)
	}
}
