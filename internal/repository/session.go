package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/facemark-labs/facemark/internal/domain"
)

type SessionRepository struct {
	pool PgxPool
}

func NewSessionRepository(pool PgxPool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.Session) error {
	query := `
		INSERT INTO sessions (id, section_id, starts_at, ends_at, is_active, created_by, created_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, NOW())
		RETURNING created_at
	`

	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}

	err := r.pool.QueryRow(ctx, query,
		session.ID,
		session.SectionID,
		session.StartsAt,
		session.EndsAt,
		session.CreatedBy,
	).Scan(&session.CreatedAt)

	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	session.Active = true
	return nil
}

// GetActive returns the session only while it is open for marking.
func (r *SessionRepository) GetActive(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	query := `
		SELECT id, section_id, starts_at, ends_at, is_active, created_by, created_at
		FROM sessions
		WHERE id = $1 AND is_active = TRUE AND (ends_at IS NULL OR ends_at > NOW())
	`

	var session domain.Session
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.SectionID,
		&session.StartsAt,
		&session.EndsAt,
		&session.Active,
		&session.CreatedBy,
		&session.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	return &session, nil
}

func (r *SessionRepository) Close(ctx context.Context, id, lecturerID uuid.UUID) error {
	query := `
		UPDATE sessions
		SET is_active = FALSE, ends_at = COALESCE(ends_at, NOW())
		WHERE id = $1 AND created_by = $2
	`

	result, err := r.pool.Exec(ctx, query, id, lecturerID)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) SectionsByStudent(ctx context.Context, studentID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT section_id FROM enrollments
		WHERE student_id = $1 AND is_active = TRUE
	`

	rows, err := r.pool.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("list sections by student: %w", err)
	}
	defer rows.Close()

	var sections []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan section id: %w", err)
		}
		sections = append(sections, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sections: %w", err)
	}
	return sections, nil
}

func (r *SessionRepository) IsEnrolled(ctx context.Context, studentID, sectionID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM enrollments
			WHERE student_id = $1 AND section_id = $2 AND is_active = TRUE
		)
	`

	var enrolled bool
	if err := r.pool.QueryRow(ctx, query, studentID, sectionID).Scan(&enrolled); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return enrolled, nil
}
