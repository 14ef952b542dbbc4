package reconcile

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/timekeeper/internal/errs"
	"github.com/and161185/timekeeper/internal/model"
	"github.com/and161185/timekeeper/internal/state"
)

// Change names the records a mutation touched, so each tier can copy them from state.
type Change struct {
	Projects       []uuid.UUID
	Sessions       []uuid.UUID
	DeletedProject *uuid.UUID
	DeletedSession *uuid.UUID
}

// write runs one mutation through the remote-first protocol.
//
// call talks to the remote service; apply commits to memory and runs only when call
// succeeded or failed for connectivity reasons.
func (e *Engine) write(ctx context.Context, op string, call func(context.Context) error, apply func(), ch Change) error {
	err := call(ctx)
	switch {
	case err == nil:
		e.setOnline(true)
		apply()
		e.mirrorAsync(ch)
		return nil
	case errs.IsConnectivity(err):
		e.setOnline(false)
		e.log.Warn("remote write failed, applied locally", zap.String("op", op), zap.Error(err))
		apply()
		mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), localTimeout)
		defer cancel()
		e.mirror(mctx, ch)
		return nil
	default:
		e.setOnline(true)
		return err
	}
}

// mirror hands the touched records to every local tier of the chain. Failures only
// degrade durability, so they are logged.
func (e *Engine) mirror(ctx context.Context, ch Change) {
	e.mirrorMu.Lock()
	defer e.mirrorMu.Unlock()
	st := e.store.State()
	for _, p := range e.chain() {
		if p.Authoritative() || !p.Available() {
			continue
		}
		if err := p.Mirror(ctx, st, ch); err != nil {
			e.log.Warn("tier mirror failed", zap.String("tier", p.Name()), zap.Error(err))
		}
	}
}

func (e *Engine) mirrorAsync(ch Change) {
	e.goInflight(func() {
		ctx, cancel := context.WithTimeout(context.Background(), localTimeout)
		defer cancel()
		e.mirror(ctx, ch)
	})
}

// --- Projects ---

// AddProject creates a project. Id and timestamps are assigned here; the total starts at zero.
func (e *Engine) AddProject(ctx context.Context, p model.Project) (model.Project, error) {
	const op = "add_project"
	now := e.now()
	if p.ID == uuid.Nil {
		p.ID = model.NewID()
	}
	p.TotalTimeSpent = 0
	p.CreatedAt, p.UpdatedAt = now, now
	if err := p.Validate(); err != nil {
		return model.Project{}, invalid(op, err)
	}

	result := p
	err := e.write(ctx, op,
		func(ctx context.Context) error {
			got, err := e.remote.CreateProject(ctx, p)
			if err == nil {
				result = got
			}
			return err
		},
		func() { e.store.Dispatch(state.AddProject{Project: result}) },
		Change{Projects: []uuid.UUID{p.ID}},
	)
	if err != nil {
		return model.Project{}, err
	}
	return result, nil
}

// UpdateProject edits name, description, color and goal. The total is never taken from input.
func (e *Engine) UpdateProject(ctx context.Context, p model.Project) (model.Project, error) {
	const op = "update_project"
	cur, ok := e.store.Project(p.ID)
	if !ok {
		return model.Project{}, notFound(op, "project", p.ID)
	}
	p.TotalTimeSpent = cur.TotalTimeSpent
	p.CreatedAt = cur.CreatedAt
	p.UpdatedAt = e.now()
	if err := p.Validate(); err != nil {
		return model.Project{}, invalid(op, err)
	}

	result := p
	err := e.write(ctx, op,
		func(ctx context.Context) error {
			got, err := e.remote.UpdateProject(ctx, p)
			switch {
			case err == nil:
				got.TotalTimeSpent = p.TotalTimeSpent
				result = got
			case errs.KindOf(err) == errs.KindNotFound:
				// created while offline and never reached the server
				e.log.Info("project unknown to server, updated locally", zap.Stringer("id", p.ID))
				return nil
			}
			return err
		},
		func() {
			if cur, ok := e.store.Project(result.ID); ok {
				result.TotalTimeSpent = cur.TotalTimeSpent
			}
			e.store.Dispatch(state.UpdateProject{Project: result})
		},
		Change{Projects: []uuid.UUID{p.ID}},
	)
	if err != nil {
		return model.Project{}, err
	}
	return result, nil
}

// DeleteProject removes a project with its sessions, stopping a timer that runs on it.
func (e *Engine) DeleteProject(ctx context.Context, id uuid.UUID) error {
	const op = "delete_project"
	if _, ok := e.store.Project(id); !ok {
		return notFound(op, "project", id)
	}
	return e.write(ctx, op,
		func(ctx context.Context) error {
			err := e.remote.DeleteProject(ctx, id)
			if errs.KindOf(err) == errs.KindNotFound {
				return nil
			}
			return err
		},
		func() {
			e.timer.abandon(id)
			e.store.Dispatch(state.DeleteProject{ID: id})
		},
		Change{DeletedProject: &id},
	)
}

// --- Sessions ---

// CompleteSession commits a finished session: it finalizes the server's active record,
// or creates the session when the server never saw it as active.
func (e *Engine) CompleteSession(ctx context.Context, s model.Session) (model.Session, error) {
	const op = "complete_session"
	if s.EndTime == nil {
		return model.Session{}, invalid(op, fmt.Errorf("%w: session has no end time", errs.ErrValidation))
	}
	if err := s.Validate(); err != nil {
		return model.Session{}, invalid(op, err)
	}
	if _, ok := e.store.Project(s.ProjectID); !ok {
		return model.Session{}, notFound(op, "project", s.ProjectID)
	}

	result := s
	err := e.write(ctx, op,
		func(ctx context.Context) error {
			got, err := e.remote.CompleteActiveSession(ctx, s.ID, *s.EndTime, s.Duration)
			if errs.KindOf(err) == errs.KindNotFound {
				got, err = e.remote.CreateSession(ctx, s)
			}
			if err == nil && got.EndTime != nil {
				result = got
			}
			return err
		},
		func() { e.store.Dispatch(state.CompleteSession{Session: result, At: e.now()}) },
		Change{Projects: []uuid.UUID{s.ProjectID}, Sessions: []uuid.UUID{s.ID}},
	)
	if err != nil {
		return model.Session{}, err
	}
	return result, nil
}

// UpdateSession edits a completed session; totals of the old and new project follow.
func (e *Engine) UpdateSession(ctx context.Context, s model.Session) (model.Session, error) {
	const op = "update_session"
	old, ok := e.store.Session(s.ID)
	if !ok || old.Status() != model.StatusCompleted {
		return model.Session{}, notFound(op, "completed session", s.ID)
	}
	if s.EndTime == nil {
		return model.Session{}, invalid(op, fmt.Errorf("%w: completed session needs an end time", errs.ErrValidation))
	}
	if err := s.Validate(); err != nil {
		return model.Session{}, invalid(op, err)
	}
	if _, ok := e.store.Project(s.ProjectID); !ok {
		return model.Session{}, notFound(op, "project", s.ProjectID)
	}

	result := s
	err := e.write(ctx, op,
		func(ctx context.Context) error {
			got, err := e.remote.UpdateSession(ctx, s)
			switch {
			case err == nil:
				result = got
			case errs.KindOf(err) == errs.KindNotFound:
				// recorded while offline; the server learns about it only by creation
				got, err = e.remote.CreateSession(ctx, s)
				if err == nil {
					result = got
				}
			}
			return err
		},
		func() { e.store.Dispatch(state.UpdateSession{Session: result, At: e.now()}) },
		Change{Projects: []uuid.UUID{old.ProjectID, s.ProjectID}, Sessions: []uuid.UUID{s.ID}},
	)
	if err != nil {
		return model.Session{}, err
	}
	return result, nil
}

// DeleteSession removes a session and subtracts it from its project total.
func (e *Engine) DeleteSession(ctx context.Context, id uuid.UUID) error {
	const op = "delete_session"
	old, ok := e.store.Session(id)
	if !ok {
		return notFound(op, "session", id)
	}
	return e.write(ctx, op,
		func(ctx context.Context) error {
			err := e.remote.DeleteSession(ctx, id)
			if errs.KindOf(err) == errs.KindNotFound {
				return nil
			}
			return err
		},
		func() {
			e.timer.abandonSession(id)
			e.store.Dispatch(state.DeleteSession{ID: id, At: e.now()})
		},
		Change{Projects: []uuid.UUID{old.ProjectID}, DeletedSession: &id},
	)
}

// --- Settings ---

// Settings returns server settings, falling back to the cached copy and then defaults.
func (e *Engine) Settings(ctx context.Context) (model.Settings, error) {
	got, err := e.remote.GetSettings(ctx)
	switch {
	case err == nil:
		e.setOnline(true)
		e.settingsMu.Lock()
		e.settings = got
		e.settingsMu.Unlock()
		if e.cache != nil {
			if err := e.cache.SaveSettings(ctx, got); err != nil {
				e.log.Warn("cache settings", zap.Error(err))
			}
		}
		return withDefaults(got), nil
	case errs.IsConnectivity(err):
		e.setOnline(false)
		return withDefaults(e.localSettings(ctx)), nil
	default:
		return nil, err
	}
}

// SetSetting validates and stores one setting.
func (e *Engine) SetSetting(ctx context.Context, key model.SettingKey, value string) error {
	const op = "set_setting"
	if err := model.ValidateSetting(key, value); err != nil {
		return invalid(op, err)
	}
	call := func(ctx context.Context) error { return e.remote.PutSetting(ctx, key, value) }
	err := call(ctx)
	switch {
	case err == nil:
		e.setOnline(true)
	case errs.IsConnectivity(err):
		e.setOnline(false)
		e.log.Warn("remote write failed, applied locally", zap.String("op", op), zap.Error(err))
	default:
		return err
	}
	s := e.localSettings(ctx)
	s[key] = value
	e.settingsMu.Lock()
	e.settings = s
	e.settingsMu.Unlock()
	if e.cache != nil {
		if err := e.cache.SaveSettings(context.WithoutCancel(ctx), s); err != nil {
			e.log.Warn("cache settings", zap.Error(err))
		}
	}
	return nil
}

func (e *Engine) localSettings(ctx context.Context) model.Settings {
	e.settingsMu.Lock()
	mem := e.settings
	e.settingsMu.Unlock()
	out := model.Settings{}
	if mem == nil && e.cache != nil {
		if cached, err := e.cache.Settings(ctx); err == nil {
			mem = cached
		}
	}
	for k, v := range mem {
		out[k] = v
	}
	return out
}

func withDefaults(s model.Settings) model.Settings {
	out := model.Settings{}
	for k, v := range model.DefaultSettings {
		out[k] = v
	}
	for k, v := range s {
		out[k] = v
	}
	return out
}
