package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/ivolkova/luthier/internal/common"
	"github.com/ivolkova/luthier/internal/models"
)

func (r *Repository) CreateClient(ctx context.Context, client *models.Client) error {
	if client.ID == uuid.Nil {
		client.ID = uuid.New()
	}

	query := `
		INSERT INTO clients (id, name, email, phone, address, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`

	var notes sql.NullString
	if client.Notes != nil {
		notes = sql.NullString{String: *client.Notes, Valid: true}
	}

	_, err := r.db.Pool().Exec(ctx, query,
		client.ID,
		client.Name,
		client.Email,
		client.Phone,
		client.Address,
		notes,
	)
	if err != nil {
		return err
	}

	r.stamps.touch(models.EntityClient)
	return nil
}

func (r *Repository) GetClientByID(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	query := `
		SELECT id, name, email, phone, address, notes, created_at, updated_at
		FROM clients
		WHERE id = $1
	`

	var client models.Client
	var notes sql.NullString

	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&client.ID,
		&client.Name,
		&client.Email,
		&client.Phone,
		&client.Address,
		&notes,
		&client.CreatedAt,
		&client.UpdatedAt,
	)
	if err != nil {
		return nil, wrapNoRows(err, common.ErrClientNotFound)
	}

	if notes.Valid {
		client.Notes = &notes.String
	}

	return &client, nil
}

func (r *Repository) ListClients(ctx context.Context, limit, offset int) ([]models.Client, error) {
	query := `
		SELECT id, name, email, phone, address, notes, created_at, updated_at
		FROM clients
		ORDER BY name
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Pool().Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []models.Client
	for rows.Next() {
		var client models.Client
		var notes sql.NullString

		err := rows.Scan(
			&client.ID,
			&client.Name,
			&client.Email,
			&client.Phone,
			&client.Address,
			&notes,
			&client.CreatedAt,
			&client.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		if notes.Valid {
			client.Notes = &notes.String
		}

		clients = append(clients, client)
	}

	return clients, rows.Err()
}

func (r *Repository) UpdateClient(ctx context.Context, client *models.Client) error {
	query := `
		UPDATE clients
		SET name = $2, email = $3, phone = $4, address = $5, notes = $6, updated_at = NOW()
		WHERE id = $1
	`

	var notes sql.NullString
	if client.Notes != nil {
		notes = sql.NullString{String: *client.Notes, Valid: true}
	}

	tag, err := r.db.Pool().Exec(ctx, query,
		client.ID,
		client.Name,
		client.Email,
		client.Phone,
		client.Address,
		notes,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrClientNotFound
	}

	r.stamps.touch(models.EntityClient)
	return nil
}

func (r *Repository) DeleteClient(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool().Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrClientNotFound
	}

	r.stamps.touch(models.EntityClient)
	return nil
}

func (r *Repository) CreateInstrument(ctx context.Context, instrument *models.Instrument) error {
	if instrument.ID == uuid.Nil {
		instrument.ID = uuid.New()
	}

	query := `
		INSERT INTO instruments (id, maker, model, category, serial_number, year, price_cents, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`

	var notes sql.NullString
	if instrument.Notes != nil {
		notes = sql.NullString{String: *instrument.Notes, Valid: true}
	}

	_, err := r.db.Pool().Exec(ctx, query,
		instrument.ID,
		instrument.Maker,
		instrument.Model,
		instrument.Category,
		instrument.SerialNumber,
		instrument.Year,
		instrument.PriceCents,
		notes,
	)
	if err != nil {
		return err
	}

	r.stamps.touch(models.EntityInstrument)
	return nil
}

func (r *Repository) GetInstrumentByID(ctx context.Context, id uuid.UUID) (*models.Instrument, error) {
	query := `
		SELECT id, maker, model, category, serial_number, year, price_cents, notes, created_at, updated_at
		FROM instruments
		WHERE id = $1
	`

	var instrument models.Instrument
	var notes sql.NullString

	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&instrument.ID,
		&instrument.Maker,
		&instrument.Model,
		&instrument.Category,
		&instrument.SerialNumber,
		&instrument.Year,
		&instrument.PriceCents,
		&notes,
		&instrument.CreatedAt,
		&instrument.UpdatedAt,
	)
	if err != nil {
		return nil, wrapNoRows(err, common.ErrInstrumentNotFound)
	}

	if notes.Valid {
		instrument.Notes = &notes.String
	}

	return &instrument, nil
}

func (r *Repository) ListInstruments(ctx context.Context, limit, offset int) ([]models.Instrument, error) {
	query := `
		SELECT id, maker, model, category, serial_number, year, price_cents, notes, created_at, updated_at
		FROM instruments
		ORDER BY maker, model
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Pool().Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instruments []models.Instrument
	for rows.Next() {
		var instrument models.Instrument
		var notes sql.NullString

		err := rows.Scan(
			&instrument.ID,
			&instrument.Maker,
			&instrument.Model,
			&instrument.Category,
			&instrument.SerialNumber,
			&instrument.Year,
			&instrument.PriceCents,
			&notes,
			&instrument.CreatedAt,
			&instrument.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		if notes.Valid {
			instrument.Notes = &notes.String
		}

		instruments = append(instruments, instrument)
	}

	return instruments, rows.Err()
}

func (r *Repository) AssignInstrumentToClient(ctx context.Context, link *models.ClientInstrument) error {
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	if link.AcquiredAt.IsZero() {
		link.AcquiredAt = time.Now()
	}

	query := `
		INSERT INTO client_instruments (id, client_id, instrument_id, acquired_at, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`

	_, err := r.db.Pool().Exec(ctx, query, link.ID, link.ClientID, link.InstrumentID, link.AcquiredAt)
	if err != nil {
		return err
	}

	r.stamps.touch(models.EntityClientInstrument)
	return nil
}

func (r *Repository) GetClientInstruments(ctx context.Context, clientID uuid.UUID) ([]models.ClientInstrument, error) {
	query := `
		SELECT id, client_id, instrument_id, acquired_at, sold_at, created_at
		FROM client_instruments
		WHERE client_id = $1
		ORDER BY acquired_at DESC
	`

	rows, err := r.db.Pool().Query(ctx, query, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []models.ClientInstrument
	for rows.Next() {
		var link models.ClientInstrument
		err := rows.Scan(
			&link.ID,
			&link.ClientID,
			&link.InstrumentID,
			&link.AcquiredAt,
			&link.SoldAt,
			&link.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}

	return links, rows.Err()
}

// RecordInstrumentSale closes an ownership record by setting sold_at.
func (r *Repository) RecordInstrumentSale(ctx context.Context, linkID uuid.UUID, soldAt time.Time) error {
	query := `
		UPDATE client_instruments
		SET sold_at = $2
		WHERE id = $1 AND sold_at IS NULL
	`

	tag, err := r.db.Pool().Exec(ctx, query, linkID, soldAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}

	r.stamps.touch(models.EntityClientInstrument)
	return nil
}

func (r *Repository) CreateMaintenanceTask(ctx context.Context, task *models.MaintenanceTask) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.Status == "" {
		task.Status = models.TaskStatusScheduled
	}
	if task.Priority == "" {
		task.Priority = models.TaskPriorityNormal
	}

	query := `
		INSERT INTO maintenance_tasks (id, instrument_id, client_id, assigned_to, title, description, status, priority, scheduled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	`

	var description sql.NullString
	if task.Description != nil {
		description = sql.NullString{String: *task.Description, Valid: true}
	}

	_, err := r.db.Pool().Exec(ctx, query,
		task.ID,
		task.InstrumentID,
		task.ClientID,
		task.AssignedTo,
		task.Title,
		description,
		task.Status,
		task.Priority,
		task.ScheduledAt,
	)
	if err != nil {
		return err
	}

	r.stamps.touch(models.EntityMaintenanceTask)
	return nil
}

func (r *Repository) GetMaintenanceTaskByID(ctx context.Context, id uuid.UUID) (*models.MaintenanceTask, error) {
	query := `
		SELECT id, instrument_id, client_id, assigned_to, title, description, status, priority, scheduled_at, completed_at, created_at, updated_at
		FROM maintenance_tasks
		WHERE id = $1
	`

	var task models.MaintenanceTask
	var description sql.NullString

	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&task.ID,
		&task.InstrumentID,
		&task.ClientID,
		&task.AssignedTo,
		&task.Title,
		&description,
		&task.Status,
		&task.Priority,
		&task.ScheduledAt,
		&task.CompletedAt,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, wrapNoRows(err, common.ErrTaskNotFound)
	}

	if description.Valid {
		task.Description = &description.String
	}

	return &task, nil
}

func (r *Repository) GetTasksByInstrumentID(ctx context.Context, instrumentID uuid.UUID) ([]models.MaintenanceTask, error) {
	query := `
		SELECT id, instrument_id, client_id, assigned_to, title, description, status, priority, scheduled_at, completed_at, created_at, updated_at
		FROM maintenance_tasks
		WHERE instrument_id = $1
		ORDER BY scheduled_at DESC
	`

	rows, err := r.db.Pool().Query(ctx, query, instrumentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []models.MaintenanceTask
	for rows.Next() {
		var task models.MaintenanceTask
		var description sql.NullString

		err := rows.Scan(
			&task.ID,
			&task.InstrumentID,
			&task.ClientID,
			&task.AssignedTo,
			&task.Title,
			&description,
			&task.Status,
			&task.Priority,
			&task.ScheduledAt,
			&task.CompletedAt,
			&task.CreatedAt,
			&task.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		if description.Valid {
			task.Description = &description.String
		}

		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

func (r *Repository) UpdateTaskStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := `
		UPDATE maintenance_tasks
		SET status = $2,
		    completed_at = CASE WHEN $2 = $3 THEN NOW() ELSE completed_at END,
		    updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Pool().Exec(ctx, query, id, status, models.TaskStatusCompleted)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrTaskNotFound
	}

	r.stamps.touch(models.EntityMaintenanceTask)
	return nil
}
