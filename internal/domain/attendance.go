package domain

import (
	"time"

	"github.com/google/uuid"
)

// AttendanceStatus is the recorded state of a student for a session.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusAbsent  AttendanceStatus = "absent"
	StatusLate    AttendanceStatus = "late"
)

func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate:
		return true
	}
	return false
}

// Session is one attendance-taking occasion for a section.
type Session struct {
	ID        uuid.UUID  `json:"id"`
	SectionID uuid.UUID  `json:"section_id"`
	StartsAt  time.Time  `json:"starts_at"`
	EndsAt    *time.Time `json:"ends_at,omitempty"`
	Active    bool       `json:"is_active"`
	CreatedBy uuid.UUID  `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
}

// AttendanceRecord is the persisted attendance state for one
// (session, student) pair. At most one record exists per pair; repeated
// writes update in place under the ledger rules.
type AttendanceRecord struct {
	ID                uuid.UUID        `json:"id"`
	SessionID         uuid.UUID        `json:"session_id"`
	StudentID         uuid.UUID        `json:"student_id"`
	Status            AttendanceStatus `json:"status"`
	MarkedAt          time.Time        `json:"marked_at"`
	Confidence        *float64         `json:"confidence,omitempty"`
	VerificationPhoto string           `json:"verification_photo,omitempty"`
	MarkedByLecturer  bool             `json:"marked_by_lecturer"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// MarkRequest is one attempted attendance state transition, routed through the
// ledger. SelfService marks are strictly first-write-wins; ByLecturer marks
// may override automatic ones.
type MarkRequest struct {
	SessionID         uuid.UUID
	StudentID         uuid.UUID
	Status            AttendanceStatus
	Confidence        *float64
	VerificationPhoto string
	ByLecturer        bool
	SelfService       bool
}
