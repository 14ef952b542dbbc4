package grpcserver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/timekeeper/internal/errs"
	"github.com/and161185/timekeeper/internal/model"
	"github.com/and161185/timekeeper/internal/service"
)

// memStore implements the three services over maps with the server's total bookkeeping.
type memStore struct {
	mu       sync.Mutex
	projects map[uuid.UUID]model.Project
	sessions map[uuid.UUID]model.Session
	settings model.Settings
	panicOn  string
}

var (
	_ service.ProjectService = (*memProjects)(nil)
	_ service.SessionService = (*memSessions)(nil)
	_ service.SettingService = (*memSettings)(nil)
)

func newMemStore() *memStore {
	return &memStore{
		projects: map[uuid.UUID]model.Project{},
		sessions: map[uuid.UUID]model.Session{},
		settings: model.Settings{},
	}
}

func credit(s model.Session) int64 {
	if s.EndTime == nil {
		return 0
	}
	return s.Duration
}

func (m *memStore) bump(pid uuid.UUID, d int64) {
	p := m.projects[pid]
	p.TotalTimeSpent += d
	m.projects[pid] = p
}

type memProjects struct{ *memStore }

func (m memProjects) List(context.Context) ([]model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Project{}
	for _, p := range m.projects {
		out = append(out, p)
	}
	return out, nil
}
func (m memProjects) Get(_ context.Context, id uuid.UUID) (model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panicOn == "get_project" {
		panic("boom")
	}
	p, ok := m.projects[id]
	if !ok {
		return model.Project{}, errs.ErrNotFound
	}
	return p, nil
}
func (m memProjects) Create(_ context.Context, p model.Project) (model.Project, error) {
	if err := p.Validate(); err != nil {
		return model.Project{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[p.ID]; ok {
		return model.Project{}, errs.ErrAlreadyExists
	}
	p.TotalTimeSpent = 0
	m.projects[p.ID] = p
	return p, nil
}
func (m memProjects) Update(_ context.Context, p model.Project) (model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.projects[p.ID]
	if !ok {
		return model.Project{}, errs.ErrNotFound
	}
	p.TotalTimeSpent = old.TotalTimeSpent
	m.projects[p.ID] = p
	return p, nil
}
func (m memProjects) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return errs.ErrNotFound
	}
	delete(m.projects, id)
	for sid, s := range m.sessions {
		if s.ProjectID == id {
			delete(m.sessions, sid)
		}
	}
	return nil
}

type memSessions struct{ *memStore }

func (m memSessions) List(_ context.Context, pid uuid.UUID) ([]model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Session{}
	for _, s := range m.sessions {
		if pid == uuid.Nil || s.ProjectID == pid {
			out = append(out, s)
		}
	}
	return out, nil
}
func (m memSessions) Get(_ context.Context, id uuid.UUID) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return model.Session{}, errs.ErrNotFound
	}
	return s, nil
}
func (m memSessions) Create(_ context.Context, s model.Session) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[s.ProjectID]; !ok {
		return model.Session{}, fmt.Errorf("%w: unknown project", errs.ErrValidation)
	}
	m.sessions[s.ID] = s
	m.bump(s.ProjectID, credit(s))
	return s, nil
}
func (m memSessions) Update(_ context.Context, s model.Session) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.sessions[s.ID]
	if !ok {
		return model.Session{}, errs.ErrNotFound
	}
	m.bump(old.ProjectID, -credit(old))
	m.bump(s.ProjectID, credit(s))
	m.sessions[s.ID] = s
	return s, nil
}
func (m memSessions) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.sessions[id]
	if !ok {
		return errs.ErrNotFound
	}
	m.bump(old.ProjectID, -credit(old))
	delete(m.sessions, id)
	return nil
}
func (m memSessions) ListActive(context.Context) ([]model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Session{}
	for _, s := range m.sessions {
		if s.EndTime == nil {
			out = append(out, s)
		}
	}
	return out, nil
}
func (m memSessions) UpsertActive(_ context.Context, s model.Session) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.sessions[s.ID]; ok && old.EndTime != nil {
		return model.Session{}, fmt.Errorf("%w: already completed", errs.ErrValidation)
	}
	if _, ok := m.projects[s.ProjectID]; !ok {
		return model.Session{}, fmt.Errorf("%w: unknown project", errs.ErrValidation)
	}
	m.sessions[s.ID] = s
	return s, nil
}
func (m memSessions) CompleteActive(_ context.Context, id uuid.UUID, end time.Time, d int64) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.EndTime != nil {
		return model.Session{}, errs.ErrNotFound
	}
	s = s.Complete(end, d)
	m.sessions[id] = s
	m.bump(s.ProjectID, d)
	return s, nil
}

type memSettings struct{ *memStore }

func (m memSettings) All(context.Context) (model.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := model.Settings{}
	for k, v := range model.DefaultSettings {
		out[k] = v
	}
	for k, v := range m.settings {
		out[k] = v
	}
	return out, nil
}
func (m memSettings) Get(_ context.Context, key model.SettingKey) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.settings[key]; ok {
		return v, nil
	}
	if v, ok := model.DefaultSettings[key]; ok {
		return v, nil
	}
	return "", errs.ErrNotFound
}
func (m memSettings) Put(_ context.Context, key model.SettingKey, value string) error {
	if err := model.ValidateSetting(key, value); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

type fakeAuth struct {
	token  string
	device uuid.UUID
	err    error
}

func (f *fakeAuth) Authenticate(_ context.Context, tok string) (uuid.UUID, error) {
	if f.err != nil {
		return uuid.Nil, f.err
	}
	if tok != f.token {
		return uuid.Nil, errs.ErrUnauthorized
	}
	return f.device, nil
}
