package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/facemark-labs/facemark/internal/domain"
)

type AttendanceRepository struct {
	pool PgxPool
}

func NewAttendanceRepository(pool PgxPool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

func (r *AttendanceRepository) Get(ctx context.Context, sessionID, studentID uuid.UUID) (*domain.AttendanceRecord, error) {
	query := `
		SELECT id, session_id, student_id, status, marked_at, confidence, verification_photo, marked_by_lecturer, updated_at
		FROM attendance_records
		WHERE session_id = $1 AND student_id = $2
	`

	var rec domain.AttendanceRecord
	err := r.pool.QueryRow(ctx, query, sessionID, studentID).Scan(
		&rec.ID,
		&rec.SessionID,
		&rec.StudentID,
		&rec.Status,
		&rec.MarkedAt,
		&rec.Confidence,
		&rec.VerificationPhoto,
		&rec.MarkedByLecturer,
		&rec.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get attendance record: %w", err)
	}

	return &rec, nil
}

func (r *AttendanceRepository) Insert(ctx context.Context, rec *domain.AttendanceRecord) error {
	query := `
		INSERT INTO attendance_records (id, session_id, student_id, status, marked_at, confidence, verification_photo, marked_by_lecturer, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING updated_at
	`

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	err := r.pool.QueryRow(ctx, query,
		rec.ID,
		rec.SessionID,
		rec.StudentID,
		rec.Status,
		rec.MarkedAt,
		rec.Confidence,
		rec.VerificationPhoto,
		rec.MarkedByLecturer,
	).Scan(&rec.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			// Backstop for concurrent writers on another instance; the
			// ledger maps this to its first-write-wins rules.
			return domain.ErrAlreadyMarked
		}
		return fmt.Errorf("insert attendance record: %w", err)
	}

	return nil
}

func (r *AttendanceRepository) Update(ctx context.Context, rec *domain.AttendanceRecord) error {
	query := `
		UPDATE attendance_records
		SET status = $3, marked_at = $4, confidence = $5, verification_photo = $6, marked_by_lecturer = $7, updated_at = NOW()
		WHERE session_id = $1 AND student_id = $2
		RETURNING updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		rec.SessionID,
		rec.StudentID,
		rec.Status,
		rec.MarkedAt,
		rec.Confidence,
		rec.VerificationPhoto,
		rec.MarkedByLecturer,
	).Scan(&rec.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrRecordNotFound
	}
	if err != nil {
		return fmt.Errorf("update attendance record: %w", err)
	}

	return nil
}

func (r *AttendanceRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.AttendanceRecord, error) {
	query := `
		SELECT id, session_id, student_id, status, marked_at, confidence, verification_photo, marked_by_lecturer, updated_at
		FROM attendance_records
		WHERE session_id = $1
		ORDER BY marked_at ASC
	`

	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list attendance by session: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (r *AttendanceRepository) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]domain.AttendanceRecord, error) {
	query := `
		SELECT id, session_id, student_id, status, marked_at, confidence, verification_photo, marked_by_lecturer, updated_at
		FROM attendance_records
		WHERE student_id = $1
		ORDER BY marked_at DESC
	`

	rows, err := r.pool.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("list attendance by student: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func scanRecords(rows pgx.Rows) ([]domain.AttendanceRecord, error) {
	var records []domain.AttendanceRecord
	for rows.Next() {
		var rec domain.AttendanceRecord
		err := rows.Scan(
			&rec.ID,
			&rec.SessionID,
			&rec.StudentID,
			&rec.Status,
			&rec.MarkedAt,
			&rec.Confidence,
			&rec.VerificationPhoto,
			&rec.MarkedByLecturer,
			&rec.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance records: %w", err)
	}
	return records, nil
}
