package domain

import (
	"time"

	"github.com/google/uuid"
)

// VerificationResult is the single contract the calling layer needs to render
// a verification outcome. Produced once per verification call and never
// mutated afterwards.
type VerificationResult struct {
	Success       bool       `json:"success"`
	StudentID     *uuid.UUID `json:"student_id,omitempty"`
	Confidence    float64    `json:"confidence"`
	QualityScore  float64    `json:"quality_score"`
	QualityPassed bool       `json:"quality_passed"`
	Error         string     `json:"error,omitempty"`
}

// VerificationLog is the audit row persisted for every verification attempt.
type VerificationLog struct {
	ID            uuid.UUID  `json:"id"`
	SessionID     *uuid.UUID `json:"session_id,omitempty"`
	StudentID     *uuid.UUID `json:"student_id,omitempty"`
	Success       bool       `json:"success"`
	Confidence    float64    `json:"confidence"`
	QualityScore  float64    `json:"quality_score"`
	QualityPassed bool       `json:"quality_passed"`
	FailureReason string     `json:"failure_reason,omitempty"`
	LatencyMs     int64      `json:"latency_ms"`
	CreatedAt     time.Time  `json:"created_at"`
}
