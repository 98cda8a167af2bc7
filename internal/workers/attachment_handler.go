package workers

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/ivolkova/luthier/internal/job"
	"github.com/ivolkova/luthier/internal/models"
	"github.com/ivolkova/luthier/internal/repository"
	"github.com/ivolkova/luthier/internal/storage"
	"github.com/ivolkova/luthier/internal/validation"
)

// attachmentStore is the slice of the repository the worker needs.
type attachmentStore interface {
	GetAttachmentByID(ctx context.Context, id uuid.UUID) (*models.Attachment, error)
	MarkAttachmentReady(ctx context.Context, id uuid.UUID, checksum, contentType string) error
	MarkAttachmentFailed(ctx context.Context, id uuid.UUID, reason string) error
}

var _ attachmentStore = (*repository.Repository)(nil)

type AttachmentHandler struct {
	store   attachmentStore
	storage storage.Storage
}

// AttachmentJobPayload identifies the uploaded object to verify.
type AttachmentJobPayload struct {
	AttachmentID uuid.UUID `json:"attachment_id"`
	StorageKey   string    `json:"storage_key"`
}

func NewAttachmentHandler(store attachmentStore, storageService storage.Storage) *AttachmentHandler {
	return &AttachmentHandler{
		store:   store,
		storage: storageService,
	}
}

// HandleAttachmentJob verifies a freshly uploaded object: it downloads the
// stored bytes, checks size and real content type against the recorded row,
// and marks the attachment ready with its SHA-256 checksum, or failed with
// the reason.
func (h *AttachmentHandler) HandleAttachmentJob(ctx context.Context, j *job.Job) error {
	if j.Type != job.TypeAttachmentProcess {
		return fmt.Errorf("unexpected job type: %s", j.Type)
	}

	var payload AttachmentJobPayload
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal attachment job payload: %w", err)
	}

	att, err := h.store.GetAttachmentByID(ctx, payload.AttachmentID)
	if err != nil {
		return fmt.Errorf("failed to load attachment: %w", err)
	}

	slog.Info("Verifying uploaded attachment",
		"job_id", j.ID,
		"attachment_id", att.ID,
		"storage_key", att.StorageKey)

	content, err := h.storage.DownloadFile(ctx, att.StorageKey)
	if err != nil {
		h.markFailed(ctx, att.ID, fmt.Sprintf("stored object unreadable: %v", err))
		return fmt.Errorf("failed to download stored object: %w", err)
	}

	if int64(len(content)) != att.FileSize {
		reason := fmt.Sprintf("stored object is %d bytes, recorded size is %d", len(content), att.FileSize)
		h.markFailed(ctx, att.ID, reason)
		return errors.New(reason)
	}

	detected := mimetype.Detect(content)
	if !validation.IsAllowedUploadType(detected.String()) {
		reason := fmt.Sprintf("detected content type %s is not allowed for attachments", detected)
		h.markFailed(ctx, att.ID, reason)
		return errors.New(reason)
	}
	if !detected.Is(att.ContentType) {
		slog.Warn("declared content type corrected",
			"attachment_id", att.ID,
			"declared", att.ContentType,
			"detected", detected.String())
	}

	checksum := fmt.Sprintf("%x", sha256.Sum256(content))
	if err := h.store.MarkAttachmentReady(ctx, att.ID, checksum, detected.String()); err != nil {
		return fmt.Errorf("failed to mark attachment ready: %w", err)
	}

	slog.Info("Attachment verified",
		"job_id", j.ID,
		"attachment_id", att.ID,
		"content_type", detected.String(),
		"size_bytes", len(content))

	return nil
}

func (h *AttachmentHandler) markFailed(ctx context.Context, id uuid.UUID, reason string) {
	if err := h.store.MarkAttachmentFailed(ctx, id, reason); err != nil {
		slog.Error("failed to record attachment failure", "attachment_id", id, "error", err)
	}
}
