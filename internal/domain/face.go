package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FaceDescriptor is a fixed-length numeric vector summarizing a face's
// appearance. It is immutable once produced by an extractor; callers must not
// modify it in place.
type FaceDescriptor []float64

// ParseDescriptor deserializes the stored text form of a descriptor (a JSON
// array of numbers) back into a FaceDescriptor.
func ParseDescriptor(data string) (FaceDescriptor, error) {
	var d FaceDescriptor
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return nil, fmt.Errorf("parse descriptor: %w", err)
	}
	if len(d) == 0 {
		return nil, fmt.Errorf("parse descriptor: empty vector")
	}
	return d, nil
}

// Encode serializes the descriptor to its text storage form.
func (d FaceDescriptor) Encode() (string, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encode descriptor: %w", err)
	}
	return string(data), nil
}

// FaceRegion is a bounding box in pixel coordinates within a source image,
// ordered (top, right, bottom, left) to match the detector output.
type FaceRegion struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

func (r FaceRegion) Width() int {
	return r.Right - r.Left
}

func (r FaceRegion) Height() int {
	return r.Bottom - r.Top
}

func (r FaceRegion) Area() int {
	return r.Width() * r.Height()
}

// Detection pairs a localized face with the descriptor produced from the same
// detection pass.
type Detection struct {
	Region     FaceRegion
	Descriptor FaceDescriptor
}

// GalleryEntry is one enrolled identity the probe is compared against. The
// gallery is a read-only snapshot owned by the caller; matchers never mutate
// it.
type GalleryEntry struct {
	StudentID  uuid.UUID
	Descriptor FaceDescriptor
	Primary    bool
}

// FaceEncoding is a persisted reference descriptor for a student. A student
// may have several encodings (multiple reference photos); exactly one active
// encoding per student is flagged primary.
type FaceEncoding struct {
	ID             uuid.UUID      `json:"id"`
	StudentID      uuid.UUID      `json:"student_id"`
	Descriptor     FaceDescriptor `json:"-"`
	ReferencePhoto string         `json:"reference_photo"`
	QualityScore   float64        `json:"quality_score"`
	Primary        bool           `json:"is_primary"`
	Active         bool           `json:"is_active"`
	CreatedAt      time.Time      `json:"created_at"`
}
