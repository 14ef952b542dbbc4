package state

import (
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/timekeeper/internal/model"
)

// Command is a defined state transition. The method set is sealed to this package.
type Command interface {
	apply(st *State) Scope
}

// SetProjects replaces the project list.
type SetProjects struct{ Projects []model.Project }

func (c SetProjects) apply(st *State) Scope {
	st.Projects = cloneProjects(c.Projects)
	if st.Projects == nil {
		st.Projects = []model.Project{}
	}
	return ScopeProjects
}

// SetCompletedSessions replaces the completed session list. Active records are filtered out.
type SetCompletedSessions struct{ Sessions []model.Session }

func (c SetCompletedSessions) apply(st *State) Scope {
	out := make([]model.Session, 0, len(c.Sessions))
	for _, s := range c.Sessions {
		if s.Status() == model.StatusCompleted {
			out = append(out, cloneSession(s))
		}
	}
	st.CompletedSessions = out
	return ScopeCompleted
}

// RestoreCurrent replaces the active project and active session set from the local slot.
type RestoreCurrent struct{ Current model.CurrentSession }

func (c RestoreCurrent) apply(st *State) Scope {
	st.ActiveProject = nil
	if c.Current.ActiveProject != nil {
		id := *c.Current.ActiveProject
		st.ActiveProject = &id
	}
	st.ActiveSessions = cloneSessions(c.Current.ActiveSessions)
	if st.ActiveSessions == nil {
		st.ActiveSessions = []model.Session{}
	}
	return ScopeActive
}

// AddProject inserts a project, replacing one with the same id.
type AddProject struct{ Project model.Project }

func (c AddProject) apply(st *State) Scope {
	p := cloneProjects([]model.Project{c.Project})[0]
	if i := indexProject(st.Projects, p.ID); i >= 0 {
		st.Projects[i] = p
	} else {
		st.Projects = append(st.Projects, p)
	}
	return ScopeProjects
}

// UpdateProject replaces an existing project. Unknown ids are ignored.
type UpdateProject struct{ Project model.Project }

func (c UpdateProject) apply(st *State) Scope {
	i := indexProject(st.Projects, c.Project.ID)
	if i < 0 {
		return 0
	}
	st.Projects[i] = cloneProjects([]model.Project{c.Project})[0]
	return ScopeProjects
}

// DeleteProject removes a project with its sessions and clears the selection if it pointed there.
type DeleteProject struct{ ID uuid.UUID }

func (c DeleteProject) apply(st *State) Scope {
	var scope Scope
	if i := indexProject(st.Projects, c.ID); i >= 0 {
		st.Projects = append(st.Projects[:i], st.Projects[i+1:]...)
		scope |= ScopeProjects
	}
	if kept, removed := dropProject(st.CompletedSessions, c.ID); removed {
		st.CompletedSessions = kept
		scope |= ScopeCompleted
	}
	if kept, removed := dropProject(st.ActiveSessions, c.ID); removed {
		st.ActiveSessions = kept
		scope |= ScopeActive
	}
	if st.ActiveProject != nil && *st.ActiveProject == c.ID {
		st.ActiveProject = nil
		scope |= ScopeActive
	}
	return scope
}

func dropProject(ss []model.Session, pid uuid.UUID) ([]model.Session, bool) {
	out := ss[:0]
	removed := false
	for _, s := range ss {
		if s.ProjectID == pid {
			removed = true
			continue
		}
		out = append(out, s)
	}
	return out, removed
}

// SetActiveProject changes the selection; nil clears it.
type SetActiveProject struct{ ID *uuid.UUID }

func (c SetActiveProject) apply(st *State) Scope {
	switch {
	case c.ID == nil && st.ActiveProject == nil:
		return 0
	case c.ID != nil && st.ActiveProject != nil && *c.ID == *st.ActiveProject:
		return 0
	case c.ID == nil:
		st.ActiveProject = nil
	default:
		id := *c.ID
		st.ActiveProject = &id
	}
	return ScopeActive
}

// StartSession adds a session to the active set, replacing one with the same id.
type StartSession struct{ Session model.Session }

func (c StartSession) apply(st *State) Scope {
	s := cloneSession(c.Session)
	if i := indexSession(st.ActiveSessions, s.ID); i >= 0 {
		st.ActiveSessions[i] = s
	} else {
		st.ActiveSessions = append(st.ActiveSessions, s)
	}
	return ScopeActive
}

// StopSession drops a session from the active set without recording it.
type StopSession struct{ ID uuid.UUID }

func (c StopSession) apply(st *State) Scope {
	i := indexSession(st.ActiveSessions, c.ID)
	if i < 0 {
		return 0
	}
	st.ActiveSessions = append(st.ActiveSessions[:i], st.ActiveSessions[i+1:]...)
	return ScopeActive
}

// CompleteSession moves a finalized session into the completed list and adds its
// duration (or the delta against a previously completed copy) to the project total.
type CompleteSession struct {
	Session model.Session
	At      time.Time
}

func (c CompleteSession) apply(st *State) Scope {
	s := cloneSession(c.Session)
	scope := ScopeCompleted
	if i := indexSession(st.ActiveSessions, s.ID); i >= 0 {
		st.ActiveSessions = append(st.ActiveSessions[:i], st.ActiveSessions[i+1:]...)
		scope |= ScopeActive
	}
	delta := s.Duration
	if i := indexSession(st.CompletedSessions, s.ID); i >= 0 {
		delta -= st.CompletedSessions[i].Duration
		st.CompletedSessions[i] = s
	} else {
		st.CompletedSessions = append(st.CompletedSessions, s)
	}
	if adjustTotal(st, s.ProjectID, delta, c.At) {
		scope |= ScopeProjects
	}
	return scope
}

// UpdateSession edits a completed session and moves the duration delta between totals.
type UpdateSession struct {
	Session model.Session
	At      time.Time
}

func (c UpdateSession) apply(st *State) Scope {
	i := indexSession(st.CompletedSessions, c.Session.ID)
	if i < 0 {
		return 0
	}
	old := st.CompletedSessions[i]
	s := cloneSession(c.Session)
	st.CompletedSessions[i] = s

	scope := ScopeCompleted
	if old.ProjectID == s.ProjectID {
		if adjustTotal(st, s.ProjectID, s.Duration-old.Duration, c.At) {
			scope |= ScopeProjects
		}
		return scope
	}
	a := adjustTotal(st, old.ProjectID, -old.Duration, c.At)
	b := adjustTotal(st, s.ProjectID, s.Duration, c.At)
	if a || b {
		scope |= ScopeProjects
	}
	return scope
}

// DeleteSession removes a session; a completed one is subtracted from its project total.
type DeleteSession struct {
	ID uuid.UUID
	At time.Time
}

func (c DeleteSession) apply(st *State) Scope {
	if i := indexSession(st.ActiveSessions, c.ID); i >= 0 {
		st.ActiveSessions = append(st.ActiveSessions[:i], st.ActiveSessions[i+1:]...)
		return ScopeActive
	}
	i := indexSession(st.CompletedSessions, c.ID)
	if i < 0 {
		return 0
	}
	old := st.CompletedSessions[i]
	st.CompletedSessions = append(st.CompletedSessions[:i], st.CompletedSessions[i+1:]...)
	scope := ScopeCompleted
	if adjustTotal(st, old.ProjectID, -old.Duration, c.At) {
		scope |= ScopeProjects
	}
	return scope
}

// RecomputeTotals derives every project total from the completed sessions in memory.
type RecomputeTotals struct{}

func (RecomputeTotals) apply(st *State) Scope {
	sums := make(map[uuid.UUID]int64, len(st.Projects))
	for _, s := range st.CompletedSessions {
		sums[s.ProjectID] += s.Duration
	}
	var scope Scope
	for i := range st.Projects {
		if want := sums[st.Projects[i].ID]; st.Projects[i].TotalTimeSpent != want {
			st.Projects[i].TotalTimeSpent = want
			scope = ScopeProjects
		}
	}
	return scope
}

func adjustTotal(st *State, pid uuid.UUID, delta int64, at time.Time) bool {
	if delta == 0 {
		return false
	}
	i := indexProject(st.Projects, pid)
	if i < 0 {
		return false
	}
	p := &st.Projects[i]
	p.TotalTimeSpent += delta
	if p.TotalTimeSpent < 0 {
		p.TotalTimeSpent = 0
	}
	if !at.IsZero() && !at.Before(p.CreatedAt) {
		p.UpdatedAt = at
	}
	return true
}
