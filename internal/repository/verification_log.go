package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/facemark-labs/facemark/internal/domain"
)

type VerificationLogRepository struct {
	pool PgxPool
}

func NewVerificationLogRepository(pool PgxPool) *VerificationLogRepository {
	return &VerificationLogRepository{pool: pool}
}

func (r *VerificationLogRepository) Create(ctx context.Context, v *domain.VerificationLog) error {
	query := `
		INSERT INTO verification_log (id, session_id, student_id, success, confidence, quality_score, quality_passed, failure_reason, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING created_at
	`

	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}

	err := r.pool.QueryRow(ctx, query,
		v.ID,
		v.SessionID,
		v.StudentID,
		v.Success,
		v.Confidence,
		v.QualityScore,
		v.QualityPassed,
		v.FailureReason,
		v.LatencyMs,
	).Scan(&v.CreatedAt)

	if err != nil {
		return fmt.Errorf("create verification log: %w", err)
	}

	return nil
}
