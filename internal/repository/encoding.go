package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/facemark-labs/facemark/internal/domain"
)

type FaceEncodingRepository struct {
	pool PgxPool
}

func NewFaceEncodingRepository(pool PgxPool) *FaceEncodingRepository {
	return &FaceEncodingRepository{pool: pool}
}

func (r *FaceEncodingRepository) Create(ctx context.Context, enc *domain.FaceEncoding) error {
	query := `
		INSERT INTO face_encodings (id, student_id, embedding, encoding_data, reference_photo, quality_score, is_primary, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, NOW())
		RETURNING created_at
	`

	if enc.ID == uuid.Nil {
		enc.ID = uuid.New()
	}

	encoded, err := enc.Descriptor.Encode()
	if err != nil {
		return err
	}

	err = r.pool.QueryRow(ctx, query,
		enc.ID,
		enc.StudentID,
		toVector(enc.Descriptor),
		encoded,
		enc.ReferencePhoto,
		enc.QualityScore,
		enc.Primary,
	).Scan(&enc.CreatedAt)

	if err != nil {
		return fmt.Errorf("create face encoding: %w", err)
	}

	enc.Active = true
	return nil
}

func (r *FaceEncodingRepository) ListActiveByStudent(ctx context.Context, studentID uuid.UUID) ([]domain.FaceEncoding, error) {
	query := `
		SELECT id, student_id, encoding_data, reference_photo, quality_score, is_primary, is_active, created_at
		FROM face_encodings
		WHERE student_id = $1 AND is_active = TRUE
		ORDER BY is_primary DESC, created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("list face encodings: %w", err)
	}
	defer rows.Close()

	var encodings []domain.FaceEncoding
	for rows.Next() {
		var enc domain.FaceEncoding
		var data string
		err := rows.Scan(
			&enc.ID,
			&enc.StudentID,
			&data,
			&enc.ReferencePhoto,
			&enc.QualityScore,
			&enc.Primary,
			&enc.Active,
			&enc.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan face encoding: %w", err)
		}

		descriptor, err := domain.ParseDescriptor(data)
		if err != nil {
			// Malformed stored encodings are skipped, never fatal.
			continue
		}
		enc.Descriptor = descriptor
		encodings = append(encodings, enc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate face encodings: %w", err)
	}

	return encodings, nil
}

// GalleryBySection assembles the read-only gallery snapshot for a section:
// every active encoding of every actively enrolled student, in stable order.
func (r *FaceEncodingRepository) GalleryBySection(ctx context.Context, sectionID uuid.UUID) ([]domain.GalleryEntry, error) {
	query := `
		SELECT fe.student_id, fe.encoding_data, fe.is_primary
		FROM face_encodings fe
		INNER JOIN enrollments e ON e.student_id = fe.student_id
		WHERE e.section_id = $1 AND e.is_active = TRUE AND fe.is_active = TRUE
		ORDER BY fe.student_id, fe.is_primary DESC, fe.created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, sectionID)
	if err != nil {
		return nil, fmt.Errorf("load section gallery: %w", err)
	}
	defer rows.Close()

	return scanGallery(rows)
}

func (r *FaceEncodingRepository) HasPrimary(ctx context.Context, studentID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM face_encodings
			WHERE student_id = $1 AND is_primary = TRUE AND is_active = TRUE
		)
	`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, studentID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check primary encoding: %w", err)
	}
	return exists, nil
}

func (r *FaceEncodingRepository) Deactivate(ctx context.Context, studentID, encodingID uuid.UUID) error {
	query := `
		UPDATE face_encodings
		SET is_active = FALSE
		WHERE id = $1 AND student_id = $2
	`

	result, err := r.pool.Exec(ctx, query, encodingID, studentID)
	if err != nil {
		return fmt.Errorf("deactivate face encoding: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrEncodingNotFound
	}
	return nil
}

func scanGallery(rows pgx.Rows) ([]domain.GalleryEntry, error) {
	var gallery []domain.GalleryEntry
	for rows.Next() {
		var (
			studentID uuid.UUID
			data      string
			primary   bool
		)
		if err := rows.Scan(&studentID, &data, &primary); err != nil {
			return nil, fmt.Errorf("scan gallery entry: %w", err)
		}

		descriptor, err := domain.ParseDescriptor(data)
		if err != nil {
			continue
		}
		gallery = append(gallery, domain.GalleryEntry{
			StudentID:  studentID,
			Descriptor: descriptor,
			Primary:    primary,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gallery entries: %w", err)
	}
	return gallery, nil
}

// toVector converts a descriptor to the pgvector column representation.
func toVector(d domain.FaceDescriptor) *pgvector.Vector {
	if len(d) == 0 {
		return nil
	}
	floats := make([]float32, len(d))
	for i, v := range d {
		floats[i] = float32(v)
	}
	vec := pgvector.NewVector(floats)
	return &vec
}
