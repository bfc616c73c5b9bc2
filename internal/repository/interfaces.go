package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/facemark-labs/facemark/internal/domain"
)

// PgxPool is the subset of pgxpool.Pool the repositories use (compatible with
// pgxmock).
type PgxPool interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
}

// AttendanceRepositoryInterface defines operations for attendance record data
// access.
type AttendanceRepositoryInterface interface {
	Get(ctx context.Context, sessionID, studentID uuid.UUID) (*domain.AttendanceRecord, error)
	Insert(ctx context.Context, rec *domain.AttendanceRecord) error
	Update(ctx context.Context, rec *domain.AttendanceRecord) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.AttendanceRecord, error)
	ListByStudent(ctx context.Context, studentID uuid.UUID) ([]domain.AttendanceRecord, error)
}

// FaceEncodingRepositoryInterface defines operations for enrolled face
// encodings.
type FaceEncodingRepositoryInterface interface {
	Create(ctx context.Context, enc *domain.FaceEncoding) error
	ListActiveByStudent(ctx context.Context, studentID uuid.UUID) ([]domain.FaceEncoding, error)
	GalleryBySection(ctx context.Context, sectionID uuid.UUID) ([]domain.GalleryEntry, error)
	HasPrimary(ctx context.Context, studentID uuid.UUID) (bool, error)
	Deactivate(ctx context.Context, studentID, encodingID uuid.UUID) error
}

// SessionRepositoryInterface defines operations for attendance sessions.
type SessionRepositoryInterface interface {
	Create(ctx context.Context, session *domain.Session) error
	GetActive(ctx context.Context, id uuid.UUID) (*domain.Session, error)
	Close(ctx context.Context, id, lecturerID uuid.UUID) error
	IsEnrolled(ctx context.Context, studentID, sectionID uuid.UUID) (bool, error)
	SectionsByStudent(ctx context.Context, studentID uuid.UUID) ([]uuid.UUID, error)
}

// VerificationLogRepositoryInterface defines operations for verification
// audit logging.
type VerificationLogRepositoryInterface interface {
	Create(ctx context.Context, v *domain.VerificationLog) error
}
