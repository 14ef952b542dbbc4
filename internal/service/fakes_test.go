package service

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/timekeeper/internal/errs"
	"github.com/and161185/timekeeper/internal/model"
	"github.com/and161185/timekeeper/internal/repository"
)

type fakeProjectRepo struct {
	created model.Project
	updated model.Project
	stored  model.Project
	deleted uuid.UUID
	err     error
}

var _ repository.ProjectRepository = (*fakeProjectRepo)(nil)

func (f *fakeProjectRepo) List(context.Context) ([]model.Project, error) {
	return []model.Project{f.stored}, f.err
}
func (f *fakeProjectRepo) Get(_ context.Context, id uuid.UUID) (model.Project, error) {
	if f.stored.ID != id {
		return model.Project{}, errs.ErrNotFound
	}
	return f.stored, f.err
}
func (f *fakeProjectRepo) Create(_ context.Context, p model.Project) (model.Project, error) {
	f.created = p
	return p, f.err
}
func (f *fakeProjectRepo) Update(_ context.Context, p model.Project) (model.Project, error) {
	f.updated = p
	p.TotalTimeSpent = f.stored.TotalTimeSpent
	return p, f.err
}
func (f *fakeProjectRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.deleted = id
	return f.err
}

type fakeSessionRepo struct {
	listAll, listByProject int
	lastProject            uuid.UUID

	created, updated, upserted model.Session
	deleted                    uuid.UUID

	completeID  uuid.UUID
	completeEnd time.Time
	completeDur int64

	err error
}

var _ repository.SessionRepository = (*fakeSessionRepo)(nil)

func (f *fakeSessionRepo) List(context.Context) ([]model.Session, error) {
	f.listAll++
	return []model.Session{}, f.err
}
func (f *fakeSessionRepo) ListByProject(_ context.Context, pid uuid.UUID) ([]model.Session, error) {
	f.listByProject++
	f.lastProject = pid
	return []model.Session{}, f.err
}
func (f *fakeSessionRepo) Get(_ context.Context, id uuid.UUID) (model.Session, error) {
	return model.Session{ID: id}, f.err
}
func (f *fakeSessionRepo) Create(_ context.Context, s model.Session) (model.Session, error) {
	f.created = s
	return s, f.err
}
func (f *fakeSessionRepo) Update(_ context.Context, s model.Session) (model.Session, error) {
	f.updated = s
	return s, f.err
}
func (f *fakeSessionRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.deleted = id
	return f.err
}
func (f *fakeSessionRepo) ListActive(context.Context) ([]model.Session, error) {
	return []model.Session{}, f.err
}
func (f *fakeSessionRepo) UpsertActive(_ context.Context, s model.Session) (model.Session, error) {
	f.upserted = s
	return s, f.err
}
func (f *fakeSessionRepo) CompleteActive(_ context.Context, id uuid.UUID, end time.Time, d int64) (model.Session, error) {
	f.completeID, f.completeEnd, f.completeDur = id, end, d
	return model.Session{ID: id, EndTime: &end, Duration: d}, f.err
}

type fakeSettingRepo struct {
	values map[model.SettingKey]string
	err    error
}

var _ repository.SettingRepository = (*fakeSettingRepo)(nil)

func (f *fakeSettingRepo) All(context.Context) (model.Settings, error) {
	out := model.Settings{}
	for k, v := range f.values {
		out[k] = v
	}
	return out, f.err
}
func (f *fakeSettingRepo) Get(_ context.Context, key model.SettingKey) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", errs.ErrNotFound
	}
	return v, f.err
}
func (f *fakeSettingRepo) Put(_ context.Context, key model.SettingKey, value string) error {
	if f.err != nil {
		return f.err
	}
	if f.values == nil {
		f.values = map[model.SettingKey]string{}
	}
	f.values[key] = value
	return nil
}

type fakeDevices struct {
	byID      map[uuid.UUID]model.Device
	createErr error
	getErr    error
}

var _ repository.DeviceRepository = (*fakeDevices)(nil)

func (f *fakeDevices) Create(_ context.Context, d model.Device) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.byID == nil {
		f.byID = map[uuid.UUID]model.Device{}
	}
	if _, ok := f.byID[d.ID]; ok {
		return errs.ErrAlreadyExists
	}
	f.byID[d.ID] = d
	return nil
}
func (f *fakeDevices) GetByID(_ context.Context, id uuid.UUID) (model.Device, error) {
	if f.getErr != nil {
		return model.Device{}, f.getErr
	}
	d, ok := f.byID[id]
	if !ok {
		return model.Device{}, errs.ErrNotFound
	}
	return d, nil
}
