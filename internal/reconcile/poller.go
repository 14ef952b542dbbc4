package reconcile

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/timekeeper/internal/model"
	"github.com/and161185/timekeeper/internal/state"
)

// Poll pulls the server's active sessions and merges those this client does not know.
// When no project is selected, the project of the first new session is adopted.
// It returns the sessions that were added.
func (e *Engine) Poll(ctx context.Context) ([]model.Session, error) {
	remote, err := e.remote.ListActiveSessions(ctx)
	if err != nil {
		e.setOnline(false)
		e.log.Debug("poll active sessions", zap.Error(err))
		return nil, err
	}
	e.setOnline(true)

	st := e.store.State()
	known := make(map[string]struct{}, len(st.ActiveSessions)+len(st.CompletedSessions))
	for _, s := range st.ActiveSessions {
		known[s.ID.String()] = struct{}{}
	}
	// a session this client already finalized may still be listed until the server catches up
	for _, s := range st.CompletedSessions {
		known[s.ID.String()] = struct{}{}
	}

	var (
		added   []model.Session
		adopted []uuid.UUID
	)
	for _, s := range remote {
		if _, ok := known[s.ID.String()]; ok || s.Status() != model.StatusActive {
			continue
		}
		if _, ok := e.store.Project(s.ProjectID); !ok {
			p, err := e.remote.GetProject(ctx, s.ProjectID)
			if err != nil {
				e.log.Warn("poll: unknown project for active session",
					zap.Stringer("session", s.ID), zap.Stringer("project", s.ProjectID), zap.Error(err))
				continue
			}
			e.store.Dispatch(state.AddProject{Project: p})
			adopted = append(adopted, p.ID)
		}
		e.store.Dispatch(state.StartSession{Session: s})
		added = append(added, s)
	}

	if len(added) > 0 {
		if _, ok := e.store.ActiveProject(); !ok {
			pid := added[0].ProjectID
			e.store.Dispatch(state.SetActiveProject{ID: &pid})
		}
		e.log.Info("adopted active sessions from another client", zap.Int("count", len(added)))
		e.mirrorAsync(Change{Projects: adopted})
	}
	return added, nil
}
