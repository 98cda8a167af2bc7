package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/ivolkova/luthier/internal/common"
	"github.com/ivolkova/luthier/internal/models"
)

func (r *Repository) CreateAttachment(ctx context.Context, att *models.Attachment) error {
	if att.ID == uuid.Nil {
		att.ID = uuid.New()
	}
	if att.Status == "" {
		att.Status = models.AttachmentStatusPending
	}

	query := `
		INSERT INTO attachments (id, entity_type, entity_id, uploaded_by, original_filename, content_type, file_size, storage_key, checksum, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	`

	_, err := r.db.Pool().Exec(ctx, query,
		att.ID,
		att.EntityType,
		att.EntityID,
		att.UploadedBy,
		att.OriginalFilename,
		att.ContentType,
		att.FileSize,
		att.StorageKey,
		att.Checksum,
		att.Status,
	)
	if err != nil {
		return err
	}

	r.stamps.touch(models.EntityAttachment)
	return nil
}

func (r *Repository) GetAttachmentByID(ctx context.Context, id uuid.UUID) (*models.Attachment, error) {
	query := `
		SELECT id, entity_type, entity_id, uploaded_by, original_filename, content_type, file_size, storage_key, checksum, status, error, created_at, updated_at
		FROM attachments
		WHERE id = $1
	`

	var att models.Attachment
	var errMsg sql.NullString

	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&att.ID,
		&att.EntityType,
		&att.EntityID,
		&att.UploadedBy,
		&att.OriginalFilename,
		&att.ContentType,
		&att.FileSize,
		&att.StorageKey,
		&att.Checksum,
		&att.Status,
		&errMsg,
		&att.CreatedAt,
		&att.UpdatedAt,
	)
	if err != nil {
		return nil, wrapNoRows(err, common.ErrAttachmentNotFound)
	}

	if errMsg.Valid {
		att.Error = &errMsg.String
	}

	return &att, nil
}

func (r *Repository) GetAttachmentsByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]models.Attachment, error) {
	query := `
		SELECT id, entity_type, entity_id, uploaded_by, original_filename, content_type, file_size, storage_key, checksum, status, error, created_at, updated_at
		FROM attachments
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at
	`

	rows, err := r.db.Pool().Query(ctx, query, entityType, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attachments []models.Attachment
	for rows.Next() {
		var att models.Attachment
		var errMsg sql.NullString

		err := rows.Scan(
			&att.ID,
			&att.EntityType,
			&att.EntityID,
			&att.UploadedBy,
			&att.OriginalFilename,
			&att.ContentType,
			&att.FileSize,
			&att.StorageKey,
			&att.Checksum,
			&att.Status,
			&errMsg,
			&att.CreatedAt,
			&att.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		if errMsg.Valid {
			att.Error = &errMsg.String
		}

		attachments = append(attachments, att)
	}

	return attachments, rows.Err()
}

// CountAttachmentsByStorageKey reports how many other attachments reference
// the same stored object. Deduplicated uploads share a key, so the object is
// only removed from storage when this reaches zero.
func (r *Repository) CountAttachmentsByStorageKey(ctx context.Context, storageKey string, excludeID uuid.UUID) (int, error) {
	var count int
	err := r.db.Pool().QueryRow(ctx,
		`SELECT COUNT(*) FROM attachments WHERE storage_key = $1 AND id <> $2`,
		storageKey, excludeID,
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *Repository) DeleteAttachment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool().Exec(ctx, `DELETE FROM attachments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrAttachmentNotFound
	}

	r.stamps.touch(models.EntityAttachment)
	return nil
}

// MarkAttachmentReady records the verified checksum and content type the
// post-processing worker produced.
func (r *Repository) MarkAttachmentReady(ctx context.Context, id uuid.UUID, checksum, contentType string) error {
	query := `
		UPDATE attachments
		SET status = $2, checksum = $3, content_type = $4, error = NULL, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Pool().Exec(ctx, query, id, models.AttachmentStatusReady, checksum, contentType)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrAttachmentNotFound
	}

	r.stamps.touch(models.EntityAttachment)
	return nil
}

func (r *Repository) MarkAttachmentFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE attachments
		SET status = $2, error = $3, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Pool().Exec(ctx, query, id, models.AttachmentStatusFailed, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrAttachmentNotFound
	}

	r.stamps.touch(models.EntityAttachment)
	return nil
}
