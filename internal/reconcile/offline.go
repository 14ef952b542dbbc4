package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/timekeeper/internal/errs"
	"github.com/and161185/timekeeper/internal/model"
)

// Offline is a Remote that is never reachable. Every write takes the local path.
type Offline struct{}

func unreachable(op string) error {
	return errs.E(errs.KindConnectivity, "offline."+op, errs.ErrUnavailable)
}

func (Offline) ListProjects(context.Context) ([]model.Project, error) {
	return nil, unreachable("list_projects")
}
func (Offline) GetProject(context.Context, uuid.UUID) (model.Project, error) {
	return model.Project{}, unreachable("get_project")
}
func (Offline) CreateProject(context.Context, model.Project) (model.Project, error) {
	return model.Project{}, unreachable("create_project")
}
func (Offline) UpdateProject(context.Context, model.Project) (model.Project, error) {
	return model.Project{}, unreachable("update_project")
}
func (Offline) DeleteProject(context.Context, uuid.UUID) error { return unreachable("delete_project") }
func (Offline) ListSessions(context.Context) ([]model.Session, error) {
	return nil, unreachable("list_sessions")
}
func (Offline) ListSessionsByProject(context.Context, uuid.UUID) ([]model.Session, error) {
	return nil, unreachable("list_sessions")
}
func (Offline) CreateSession(context.Context, model.Session) (model.Session, error) {
	return model.Session{}, unreachable("create_session")
}
func (Offline) UpdateSession(context.Context, model.Session) (model.Session, error) {
	return model.Session{}, unreachable("update_session")
}
func (Offline) DeleteSession(context.Context, uuid.UUID) error { return unreachable("delete_session") }
func (Offline) ListActiveSessions(context.Context) ([]model.Session, error) {
	return nil, unreachable("list_active")
}
func (Offline) UpsertActiveSession(context.Context, model.Session) (model.Session, error) {
	return model.Session{}, unreachable("upsert_active")
}
func (Offline) CompleteActiveSession(context.Context, uuid.UUID, time.Time, int64) (model.Session, error) {
	return model.Session{}, unreachable("complete_active")
}
func (Offline) GetSettings(context.Context) (model.Settings, error) {
	return nil, unreachable("get_settings")
}
func (Offline) GetSetting(context.Context, model.SettingKey) (string, error) {
	return "", unreachable("get_setting")
}
func (Offline) PutSetting(context.Context, model.SettingKey, string) error {
	return unreachable("put_setting")
}

func notFound(op, what string, id uuid.UUID) error {
	return errs.E(errs.KindNotFound, "reconcile."+op, fmt.Errorf("%s %s: %w", what, id, errs.ErrNotFound))
}

func invalid(op string, err error) error {
	return errs.E(errs.KindValidation, "reconcile."+op, err)
}
