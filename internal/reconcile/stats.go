package reconcile

import (
	"sort"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/timekeeper/internal/model"
	"github.com/and161185/timekeeper/internal/state"
)

// ProjectStat summarizes one project.
type ProjectStat struct {
	Project  model.Project
	Sessions int
	// Total is the sum of completed durations; it matches Project.TotalTimeSpent once settled.
	Total int64
	// Progress is the goal fraction; HasGoal is false when the project has none.
	Progress float64
	HasGoal  bool
}

// ProjectStats computes per-project statistics, largest total first.
func ProjectStats(st state.State) []ProjectStat {
	count := make(map[uuid.UUID]int)
	sum := make(map[uuid.UUID]int64)
	for _, s := range st.CompletedSessions {
		count[s.ProjectID]++
		sum[s.ProjectID] += s.Duration
	}
	out := make([]ProjectStat, 0, len(st.Projects))
	for _, p := range st.Projects {
		ps := ProjectStat{Project: p, Sessions: count[p.ID], Total: sum[p.ID]}
		ps.Progress, ps.HasGoal = p.GoalProgress()
		out = append(out, ps)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Project.Name < out[j].Project.Name
	})
	return out
}

// TotalBetween sums completed sessions that started in [from, to).
func TotalBetween(st state.State, from, to time.Time) int64 {
	var total int64
	for _, s := range st.CompletedSessions {
		if !s.StartTime.Before(from) && s.StartTime.Before(to) {
			total += s.Duration
		}
	}
	return total
}

// DayTotal sums completed sessions started on the calendar day of t, in t's location.
func DayTotal(st state.State, t time.Time) int64 {
	y, m, d := t.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return TotalBetween(st, from, from.AddDate(0, 0, 1))
}

// Stats reports per-project statistics for the current state.
func (e *Engine) Stats() []ProjectStat { return ProjectStats(e.store.State()) }

// TodayTotal sums the sessions started today in loc.
func (e *Engine) TodayTotal(loc *time.Location) int64 {
	return DayTotal(e.store.State(), e.now().In(loc))
}
