package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/timekeeper/internal/errs"
	"github.com/and161185/timekeeper/internal/model"
)

// DeviceRepo implements DeviceRepository using PostgreSQL.
type DeviceRepo struct{ db *DB }

// NewDeviceRepo constructs a device repository.
func NewDeviceRepo(db *DB) *DeviceRepo { return &DeviceRepo{db: db} }

// Create inserts a new device row.
func (r *DeviceRepo) Create(ctx context.Context, d model.Device) error {
	_, err := r.db.Pool.Exec(ctx, `INSERT INTO devices (id, name, created_at) VALUES ($1, $2, $3)`, d.ID, d.Name, d.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByID selects a device by ID.
func (r *DeviceRepo) GetByID(ctx context.Context, id uuid.UUID) (model.Device, error) {
	var d model.Device
	err := r.db.Pool.QueryRow(ctx, `SELECT id, name, created_at FROM devices WHERE id=$1`, id).Scan(&d.ID, &d.Name, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Device{}, errs.ErrNotFound
	}
	return d, err
}
