package state

import (
	"math/rand"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/timekeeper/internal/model"
)

var t0 = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

func project(name string) model.Project {
	return model.Project{ID: model.NewID(), Name: name, Color: model.ColorBlue, CreatedAt: t0, UpdatedAt: t0}
}

func completed(pid uuid.UUID, dur int64) model.Session {
	s := model.Session{ID: model.NewID(), ProjectID: pid, StartTime: t0, Type: model.Stopwatch}
	return s.Complete(t0.Add(time.Duration(dur)*time.Second), dur)
}

func totalsMatchSessions(t *testing.T, st State) {
	t.Helper()
	sums := map[uuid.UUID]int64{}
	for _, s := range st.CompletedSessions {
		sums[s.ProjectID] += s.Duration
	}
	for _, p := range st.Projects {
		require.Equalf(t, sums[p.ID], p.TotalTimeSpent, "project %s", p.Name)
	}
}

func TestStore_AggregateInvariant_RandomOps(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	s := NewStore()
	ps := []model.Project{project("a"), project("b"), project("c")}
	s.Dispatch(SetProjects{Projects: ps})

	var live []model.Session
	for step := 0; step < 500; step++ {
		at := t0.Add(time.Duration(step) * time.Minute)
		switch op := rng.Intn(4); {
		case op == 0 || len(live) == 0:
			sess := completed(ps[rng.Intn(len(ps))].ID, int64(rng.Intn(600)))
			s.Dispatch(StartSession{Session: model.Session{ID: sess.ID, ProjectID: sess.ProjectID, StartTime: t0, Type: model.Stopwatch}})
			s.Dispatch(CompleteSession{Session: sess, At: at})
			live = append(live, sess)
		case op == 1:
			i := rng.Intn(len(live))
			edited := live[i]
			edited.Duration = int64(rng.Intn(900))
			if rng.Intn(3) == 0 {
				edited.ProjectID = ps[rng.Intn(len(ps))].ID
			}
			s.Dispatch(UpdateSession{Session: edited, At: at})
			live[i] = edited
		case op == 2:
			i := rng.Intn(len(live))
			s.Dispatch(DeleteSession{ID: live[i].ID, At: at})
			live = append(live[:i], live[i+1:]...)
		default:
			i := rng.Intn(len(live))
			again := live[i]
			again.Duration += int64(rng.Intn(30))
			s.Dispatch(CompleteSession{Session: again, At: at})
			live[i] = again
		}
		totalsMatchSessions(t, s.State())
	}
	require.Empty(t, s.State().ActiveSessions)
}

func TestStore_DeleteProjectCascades(t *testing.T) {
	t.Parallel()

	s := NewStore()
	a, b := project("a"), project("b")
	s.Dispatch(SetProjects{Projects: []model.Project{a, b}})
	s.Dispatch(CompleteSession{Session: completed(a.ID, 10), At: t0})
	s.Dispatch(CompleteSession{Session: completed(b.ID, 20), At: t0})
	s.Dispatch(StartSession{Session: model.Session{ID: model.NewID(), ProjectID: a.ID, StartTime: t0, Type: model.Countdown}})
	s.Dispatch(SetActiveProject{ID: &a.ID})

	scope := s.Dispatch(DeleteProject{ID: a.ID})
	require.True(t, scope.Has(ScopeProjects|ScopeCompleted|ScopeActive))

	st := s.State()
	require.Len(t, st.Projects, 1)
	require.Len(t, st.CompletedSessions, 1)
	require.Equal(t, b.ID, st.CompletedSessions[0].ProjectID)
	require.Empty(t, st.ActiveSessions)
	require.Nil(t, st.ActiveProject)
	require.Equal(t, int64(20), st.Projects[0].TotalTimeSpent)
}

func TestStore_ListenerSeesScopeAndSnapshot(t *testing.T) {
	t.Parallel()

	s := NewStore()
	var scopes []Scope
	var last State
	s.Subscribe(func(scope Scope, next State) {
		scopes = append(scopes, scope)
		last = next
	})

	p := project("a")
	s.Dispatch(AddProject{Project: p})
	s.Dispatch(SetActiveProject{ID: &p.ID})
	s.Dispatch(SetActiveProject{ID: &p.ID}) // no change, no notification
	s.Dispatch(UpdateProject{Project: project("ghost")})

	require.Equal(t, []Scope{ScopeProjects, ScopeActive}, scopes)
	require.Equal(t, p.ID, *last.ActiveProject)

	// Snapshots are copies.
	last.Projects[0].Name = "mutated"
	got, ok := s.Project(p.ID)
	require.True(t, ok)
	require.Equal(t, "a", got.Name)
}

func TestStore_RecomputeTotalsAndSetCompletedFiltersActive(t *testing.T) {
	t.Parallel()

	s := NewStore()
	p := project("a")
	p.TotalTimeSpent = 999
	s.Dispatch(SetProjects{Projects: []model.Project{p}})

	active := model.Session{ID: model.NewID(), ProjectID: p.ID, StartTime: t0, Type: model.Stopwatch}
	s.Dispatch(SetCompletedSessions{Sessions: []model.Session{completed(p.ID, 30), completed(p.ID, 12), active}})
	require.Len(t, s.State().CompletedSessions, 2)

	require.Equal(t, ScopeProjects, s.Dispatch(RecomputeTotals{}))
	got, _ := s.Project(p.ID)
	require.Equal(t, int64(42), got.TotalTimeSpent)
	require.Equal(t, Scope(0), s.Dispatch(RecomputeTotals{}))
}

func TestState_CurrentNeverNil(t *testing.T) {
	t.Parallel()

	cur := State{}.Current()
	require.NotNil(t, cur.ActiveSessions)
	require.Nil(t, cur.ActiveProject)
}
