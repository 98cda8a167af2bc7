package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
	Roles        []Role    `json:"roles,omitempty"`
}

type Role struct {
	ID          int          `json:"id" db:"id"`
	Name        string       `json:"name" db:"name"`
	Description string       `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	Permissions []Permission `json:"permissions,omitempty"`
}

type Permission struct {
	ID          int       `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Resource    string    `json:"resource" db:"resource"`
	Action      string    `json:"action" db:"action"`
	Description string    `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type RefreshToken struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	UserID    uuid.UUID  `json:"user_id" db:"user_id"`
	TokenHash string     `json:"-" db:"token_hash"`
	ExpiresAt time.Time  `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
}

type Client struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	Notes     *string   `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Instrument struct {
	ID           uuid.UUID `json:"id"`
	Maker        string    `json:"maker"`
	Model        string    `json:"model"`
	Category     string    `json:"category"`
	SerialNumber string    `json:"serial_number,omitempty"`
	Year         int       `json:"year,omitempty"`
	PriceCents   int64     `json:"price_cents,omitempty"`
	Notes        *string   `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ClientInstrument records ownership of an instrument by a client.
type ClientInstrument struct {
	ID           uuid.UUID  `json:"id"`
	ClientID     uuid.UUID  `json:"client_id"`
	InstrumentID uuid.UUID  `json:"instrument_id"`
	AcquiredAt   time.Time  `json:"acquired_at"`
	SoldAt       *time.Time `json:"sold_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

type MaintenanceTask struct {
	ID           uuid.UUID  `json:"id"`
	InstrumentID uuid.UUID  `json:"instrument_id"`
	ClientID     *uuid.UUID `json:"client_id,omitempty"`
	AssignedTo   *uuid.UUID `json:"assigned_to,omitempty"`
	Title        string     `json:"title"`
	Description  *string    `json:"description,omitempty"`
	Status       string     `json:"status"`
	Priority     string     `json:"priority"`
	ScheduledAt  time.Time  `json:"scheduled_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Attachment is a stored file (invoice image, certificate logo) tied to a
// domain entity. StorageKey addresses the object in the configured backend.
type Attachment struct {
	ID               uuid.UUID  `json:"id"`
	EntityType       string     `json:"entity_type"`
	EntityID         uuid.UUID  `json:"entity_id"`
	UploadedBy       *uuid.UUID `json:"uploaded_by,omitempty"`
	OriginalFilename string     `json:"original_filename"`
	ContentType      string     `json:"content_type"`
	FileSize         int64      `json:"file_size"`
	StorageKey       string     `json:"storage_key"`
	Checksum         string     `json:"checksum,omitempty"`
	Status           string     `json:"status"`
	Error            *string    `json:"error,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

const (
	TaskStatusScheduled  = "scheduled"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusCancelled  = "cancelled"
)

const (
	TaskPriorityLow    = "low"
	TaskPriorityNormal = "normal"
	TaskPriorityHigh   = "high"
	TaskPriorityUrgent = "urgent"
)

const (
	AttachmentStatusPending = "pending"
	AttachmentStatusReady   = "ready"
	AttachmentStatusFailed  = "failed"
)

// Entity type names, used for attachment targets and cache-invalidation
// stamps.
const (
	EntityClient           = "client"
	EntityInstrument       = "instrument"
	EntityClientInstrument = "client_instrument"
	EntityMaintenanceTask  = "maintenance_task"
	EntityAttachment       = "attachment"
)
