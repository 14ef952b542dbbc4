// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/timekeeper/internal/model"
)

// ProjectRepository provides CRUD access to projects.
type ProjectRepository interface {
	// List returns all projects, oldest first.
	List(ctx context.Context) ([]model.Project, error)
	// Get loads a project by ID.
	Get(ctx context.Context, id uuid.UUID) (model.Project, error)
	// Create inserts a project with a zero total.
	Create(ctx context.Context, p model.Project) (model.Project, error)
	// Update changes descriptive fields. The stored total is never overwritten.
	Update(ctx context.Context, p model.Project) (model.Project, error)
	// Delete removes a project and, by cascade, its sessions.
	Delete(ctx context.Context, id uuid.UUID) error
}

// SessionRepository stores sessions and keeps project totals in step with them.
type SessionRepository interface {
	List(ctx context.Context) ([]model.Session, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]model.Session, error)
	Get(ctx context.Context, id uuid.UUID) (model.Session, error)
	// Create inserts a session and adds its duration to the project total.
	Create(ctx context.Context, s model.Session) (model.Session, error)
	// Update replaces a session and moves the duration delta between project totals.
	Update(ctx context.Context, s model.Session) (model.Session, error)
	// Delete removes a session and subtracts its duration from the project total.
	Delete(ctx context.Context, id uuid.UUID) error
	// ListActive returns sessions without an end time, newest first.
	ListActive(ctx context.Context) ([]model.Session, error)
	// UpsertActive creates or refreshes a running session. Totals are untouched.
	UpsertActive(ctx context.Context, s model.Session) (model.Session, error)
	// CompleteActive fixes the end time of a running session and credits the project.
	CompleteActive(ctx context.Context, id uuid.UUID, end time.Time, duration int64) (model.Session, error)
}

// SettingRepository stores key/value settings.
type SettingRepository interface {
	All(ctx context.Context) (model.Settings, error)
	Get(ctx context.Context, key model.SettingKey) (string, error)
	Put(ctx context.Context, key model.SettingKey, value string) error
}

// DeviceRepository records devices that were issued access tokens.
type DeviceRepository interface {
	// Create inserts a new device.
	Create(ctx context.Context, d model.Device) error
	// GetByID loads a device by ID.
	GetByID(ctx context.Context, id uuid.UUID) (model.Device, error)
}
