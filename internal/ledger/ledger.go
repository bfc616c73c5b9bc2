// Package ledger applies verification outcomes and manual marks to attendance
// state under idempotency and authority rules.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/facemark-labs/facemark/internal/domain"
)

// Repository is the storage the ledger commits through. Get must return
// domain.ErrRecordNotFound when no record exists for the pair.
type Repository interface {
	Get(ctx context.Context, sessionID, studentID uuid.UUID) (*domain.AttendanceRecord, error)
	Insert(ctx context.Context, rec *domain.AttendanceRecord) error
	Update(ctx context.Context, rec *domain.AttendanceRecord) error
}

// Ledger enforces the attendance write policy:
//
//   - at most one record per (session, student) pair; repeat writes update,
//     never duplicate;
//   - an automatic write never overwrites a lecturer-confirmed record;
//   - a lecturer write always wins, including over earlier lecturer writes;
//   - self-service writes are strictly first-write-wins.
//
// The read-decide-write sequence for one pair is a guarded critical section;
// writes to different pairs run in parallel. The unique (session_id,
// student_id) index is the storage-level backstop for multi-instance
// deployments: an insert that loses a cross-instance race is retried once so
// it lands on the update branch like any other repeat write.
type Ledger struct {
	repo  Repository
	locks *keyLocks
}

func New(repo Repository) *Ledger {
	return &Ledger{
		repo:  repo,
		locks: newKeyLocks(),
	}
}

// Apply commits one attendance state transition and returns the resulting
// record snapshot. Policy violations surface as domain.ErrAlreadyMarked or
// domain.ErrAlreadyFinalized so the caller can branch on the reason; storage
// faults pass through unmodified.
func (l *Ledger) Apply(ctx context.Context, req domain.MarkRequest) (*domain.AttendanceRecord, error) {
	if !req.Status.Valid() {
		return nil, domain.ErrValidationFailed.WithError(fmt.Errorf("invalid status %q", req.Status))
	}

	unlock := l.locks.lock(req.SessionID, req.StudentID)
	defer unlock()

	// One retry: when another instance inserts between our read and write, the
	// unique index reports it and the second pass takes the update branch.
	for attempt := 0; ; attempt++ {
		existing, err := l.repo.Get(ctx, req.SessionID, req.StudentID)
		if err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
			return nil, err
		}

		now := time.Now().UTC()

		if existing == nil || errors.Is(err, domain.ErrRecordNotFound) {
			rec := &domain.AttendanceRecord{
				ID:                uuid.New(),
				SessionID:         req.SessionID,
				StudentID:         req.StudentID,
				Status:            req.Status,
				MarkedAt:          now,
				Confidence:        req.Confidence,
				VerificationPhoto: req.VerificationPhoto,
				MarkedByLecturer:  req.ByLecturer,
			}
			insertErr := l.repo.Insert(ctx, rec)
			if insertErr == nil {
				return rec, nil
			}
			if errors.Is(insertErr, domain.ErrAlreadyMarked) && attempt == 0 {
				continue
			}
			return nil, insertErr
		}

		// Self-service never overwrites, regardless of who wrote first.
		if req.SelfService {
			return nil, domain.ErrAlreadyMarked
		}

		// Automatic recognition never overturns a lecturer's decision.
		if existing.MarkedByLecturer && !req.ByLecturer {
			return nil, domain.ErrAlreadyFinalized
		}

		existing.Status = req.Status
		existing.Confidence = req.Confidence
		existing.MarkedByLecturer = req.ByLecturer
		existing.MarkedAt = now
		if req.VerificationPhoto != "" {
			existing.VerificationPhoto = req.VerificationPhoto
		}

		if err := l.repo.Update(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}
}
