// Package state holds the in-memory application state behind a single-writer store.
//
// State changes only through Command values passed to Store.Dispatch. Every command
// that touches a session duration also adjusts the owning project's TotalTimeSpent in
// the same transition, so the aggregate never drifts inside one process.
package state

import (
	"sync"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/timekeeper/internal/model"
)

// State is a value snapshot of everything the client tracks.
type State struct {
	Projects          []model.Project
	ActiveSessions    []model.Session
	CompletedSessions []model.Session
	ActiveProject     *uuid.UUID
}

// Scope flags which parts of the state a command changed.
type Scope uint8

const (
	ScopeProjects Scope = 1 << iota
	ScopeCompleted
	ScopeActive
)

// Has reports whether s includes any bit of other.
func (s Scope) Has(other Scope) bool { return s&other != 0 }

// Listener observes committed changes. It runs on the dispatching goroutine after the
// store lock is released, so it may read the store but must not block for long.
type Listener func(scope Scope, next State)

// Store owns the state. The zero value is ready to use.
type Store struct {
	mu        sync.Mutex
	st        State
	listeners []Listener
}

// NewStore returns an empty store.
func NewStore() *Store { return &Store{} }

// Subscribe registers fn for every dispatch that changes something.
func (s *Store) Subscribe(fn Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Dispatch applies cmd and notifies listeners with the resulting snapshot.
func (s *Store) Dispatch(cmd Command) Scope {
	s.mu.Lock()
	scope := cmd.apply(&s.st)
	var next State
	var ls []Listener
	if scope != 0 {
		next = s.st.clone()
		ls = append(ls, s.listeners...)
	}
	s.mu.Unlock()

	for _, fn := range ls {
		fn(scope, next)
	}
	return scope
}

// State returns a deep copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.clone()
}

// Project looks up a project by id.
func (s *Store) Project(id uuid.UUID) (model.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexProject(s.st.Projects, id)
	if i < 0 {
		return model.Project{}, false
	}
	return s.st.Projects[i], true
}

// Session looks up a session among active and completed ones.
func (s *Store) Session(id uuid.UUID) (model.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexSession(s.st.ActiveSessions, id); i >= 0 {
		return s.st.ActiveSessions[i], true
	}
	if i := indexSession(s.st.CompletedSessions, id); i >= 0 {
		return s.st.CompletedSessions[i], true
	}
	return model.Session{}, false
}

// ActiveProject returns the selected project id, if any.
func (s *Store) ActiveProject() (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.ActiveProject == nil {
		return uuid.Nil, false
	}
	return *s.st.ActiveProject, true
}

// Current returns the client-local slot contents.
func (st State) Current() model.CurrentSession {
	cur := model.CurrentSession{ActiveSessions: cloneSessions(st.ActiveSessions)}
	if st.ActiveProject != nil {
		id := *st.ActiveProject
		cur.ActiveProject = &id
	}
	if cur.ActiveSessions == nil {
		cur.ActiveSessions = []model.Session{}
	}
	return cur
}

func (st State) clone() State {
	out := State{
		Projects:          cloneProjects(st.Projects),
		ActiveSessions:    cloneSessions(st.ActiveSessions),
		CompletedSessions: cloneSessions(st.CompletedSessions),
	}
	if st.ActiveProject != nil {
		id := *st.ActiveProject
		out.ActiveProject = &id
	}
	return out
}

func cloneProjects(in []model.Project) []model.Project {
	if in == nil {
		return nil
	}
	out := make([]model.Project, len(in))
	for i, p := range in {
		if p.GoalHours != nil {
			g := *p.GoalHours
			p.GoalHours = &g
		}
		out[i] = p
	}
	return out
}

func cloneSessions(in []model.Session) []model.Session {
	if in == nil {
		return nil
	}
	out := make([]model.Session, len(in))
	for i, s := range in {
		out[i] = cloneSession(s)
	}
	return out
}

func cloneSession(s model.Session) model.Session {
	if s.EndTime != nil {
		e := *s.EndTime
		s.EndTime = &e
	}
	if s.InitialDuration != nil {
		d := *s.InitialDuration
		s.InitialDuration = &d
	}
	return s
}

func indexProject(ps []model.Project, id uuid.UUID) int {
	for i := range ps {
		if ps[i].ID == id {
			return i
		}
	}
	return -1
}

func indexSession(ss []model.Session, id uuid.UUID) int {
	for i := range ss {
		if ss[i].ID == id {
			return i
		}
	}
	return -1
}
