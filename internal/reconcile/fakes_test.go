package reconcile

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/timekeeper/internal/backup"
	"github.com/and161185/timekeeper/internal/errs"
	"github.com/and161185/timekeeper/internal/model"
	"github.com/and161185/timekeeper/internal/schedule"
	"github.com/and161185/timekeeper/internal/state"
)

// fakeRemote is an in-memory server with the same total bookkeeping as the real one.
type fakeRemote struct {
	mu       sync.Mutex
	down     bool
	fail     map[string]error
	calls    []string
	projects map[uuid.UUID]model.Project
	sessions map[uuid.UUID]model.Session
	settings model.Settings
}

var _ Remote = (*fakeRemote)(nil)

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		fail:     map[string]error{},
		projects: map[uuid.UUID]model.Project{},
		sessions: map[uuid.UUID]model.Session{},
		settings: model.Settings{},
	}
}

func (f *fakeRemote) setDown(v bool) {
	f.mu.Lock()
	f.down = v
	f.mu.Unlock()
}

func (f *fakeRemote) failWith(op string, err error) {
	f.mu.Lock()
	f.fail[op] = err
	f.mu.Unlock()
}

func (f *fakeRemote) called(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

// enter must be called with mu held.
func (f *fakeRemote) enter(op string) error {
	f.calls = append(f.calls, op)
	if f.down {
		return errs.E(errs.KindConnectivity, "fake."+op, context.DeadlineExceeded)
	}
	if err := f.fail[op]; err != nil {
		return err
	}
	return nil
}

func missing(op string) error {
	return errs.E(errs.KindNotFound, "fake."+op, errs.ErrNotFound)
}

func (f *fakeRemote) bump(pid uuid.UUID, delta int64) {
	p, ok := f.projects[pid]
	if !ok {
		return
	}
	p.TotalTimeSpent = max(p.TotalTimeSpent+delta, 0)
	f.projects[pid] = p
}

func (f *fakeRemote) ListProjects(context.Context) ([]model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("list_projects"); err != nil {
		return nil, err
	}
	out := make([]model.Project, 0, len(f.projects))
	for _, p := range f.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeRemote) GetProject(_ context.Context, id uuid.UUID) (model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("get_project"); err != nil {
		return model.Project{}, err
	}
	p, ok := f.projects[id]
	if !ok {
		return model.Project{}, missing("get_project")
	}
	return p, nil
}

func (f *fakeRemote) CreateProject(_ context.Context, p model.Project) (model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("create_project"); err != nil {
		return model.Project{}, err
	}
	p.TotalTimeSpent = 0
	f.projects[p.ID] = p
	return p, nil
}

func (f *fakeRemote) UpdateProject(_ context.Context, p model.Project) (model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("update_project"); err != nil {
		return model.Project{}, err
	}
	cur, ok := f.projects[p.ID]
	if !ok {
		return model.Project{}, missing("update_project")
	}
	p.TotalTimeSpent = cur.TotalTimeSpent
	f.projects[p.ID] = p
	return p, nil
}

func (f *fakeRemote) DeleteProject(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("delete_project"); err != nil {
		return err
	}
	if _, ok := f.projects[id]; !ok {
		return missing("delete_project")
	}
	delete(f.projects, id)
	for sid, s := range f.sessions {
		if s.ProjectID == id {
			delete(f.sessions, sid)
		}
	}
	return nil
}

func (f *fakeRemote) list(keep func(model.Session) bool) []model.Session {
	out := []model.Session{}
	for _, s := range f.sessions {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

func (f *fakeRemote) ListSessions(context.Context) ([]model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("list_sessions"); err != nil {
		return nil, err
	}
	return f.list(func(s model.Session) bool { return s.EndTime != nil }), nil
}

func (f *fakeRemote) ListSessionsByProject(_ context.Context, pid uuid.UUID) ([]model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("list_sessions_by_project"); err != nil {
		return nil, err
	}
	return f.list(func(s model.Session) bool { return s.ProjectID == pid }), nil
}

func (f *fakeRemote) CreateSession(_ context.Context, s model.Session) (model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("create_session"); err != nil {
		return model.Session{}, err
	}
	if _, ok := f.projects[s.ProjectID]; !ok {
		return model.Session{}, errs.E(errs.KindValidation, "fake.create_session", errs.ErrValidation)
	}
	f.sessions[s.ID] = s
	if s.EndTime != nil {
		f.bump(s.ProjectID, s.Duration)
	}
	return s, nil
}

func (f *fakeRemote) UpdateSession(_ context.Context, s model.Session) (model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("update_session"); err != nil {
		return model.Session{}, err
	}
	old, ok := f.sessions[s.ID]
	if !ok {
		return model.Session{}, missing("update_session")
	}
	f.bump(old.ProjectID, -old.Duration)
	f.bump(s.ProjectID, s.Duration)
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeRemote) DeleteSession(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("delete_session"); err != nil {
		return err
	}
	s, ok := f.sessions[id]
	if !ok {
		return missing("delete_session")
	}
	if s.EndTime != nil {
		f.bump(s.ProjectID, -s.Duration)
	}
	delete(f.sessions, id)
	return nil
}

func (f *fakeRemote) ListActiveSessions(context.Context) ([]model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("list_active"); err != nil {
		return nil, err
	}
	return f.list(func(s model.Session) bool { return s.EndTime == nil }), nil
}

func (f *fakeRemote) UpsertActiveSession(_ context.Context, s model.Session) (model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("upsert_active"); err != nil {
		return model.Session{}, err
	}
	if old, ok := f.sessions[s.ID]; ok && old.EndTime != nil {
		return model.Session{}, errs.E(errs.KindValidation, "fake.upsert_active", errs.ErrValidation)
	}
	s.EndTime = nil
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeRemote) CompleteActiveSession(_ context.Context, id uuid.UUID, end time.Time, d int64) (model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("complete_active"); err != nil {
		return model.Session{}, err
	}
	s, ok := f.sessions[id]
	if !ok || s.EndTime != nil {
		return model.Session{}, missing("complete_active")
	}
	s = s.Complete(end, d)
	f.sessions[id] = s
	f.bump(s.ProjectID, d)
	return s, nil
}

func (f *fakeRemote) GetSettings(context.Context) (model.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("get_settings"); err != nil {
		return nil, err
	}
	out := model.Settings{}
	for k, v := range f.settings {
		out[k] = v
	}
	return out, nil
}

func (f *fakeRemote) GetSetting(_ context.Context, key model.SettingKey) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("get_setting"); err != nil {
		return "", err
	}
	v, ok := f.settings[key]
	if !ok {
		return "", missing("get_setting")
	}
	return v, nil
}

func (f *fakeRemote) PutSetting(_ context.Context, key model.SettingKey, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("put_setting"); err != nil {
		return err
	}
	f.settings[key] = value
	return nil
}

// fakeCache is an in-memory Cache.
type fakeCache struct {
	mu         sync.Mutex
	projects   map[uuid.UUID]model.Project
	sessions   map[uuid.UUID]model.Session
	current    *model.CurrentSession
	currentErr error
	settings   model.Settings
}

var _ Cache = (*fakeCache)(nil)

func newFakeCache() *fakeCache {
	return &fakeCache{projects: map[uuid.UUID]model.Project{}, sessions: map[uuid.UUID]model.Session{}}
}

func (c *fakeCache) Projects(context.Context) ([]model.Project, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []model.Project{}
	for _, p := range c.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (c *fakeCache) Sessions(context.Context) ([]model.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []model.Session{}
	for _, s := range c.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (c *fakeCache) PutProject(_ context.Context, p model.Project) error {
	c.mu.Lock()
	c.projects[p.ID] = p
	c.mu.Unlock()
	return nil
}

func (c *fakeCache) DeleteProject(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.projects, id)
	for sid, s := range c.sessions {
		if s.ProjectID == id {
			delete(c.sessions, sid)
		}
	}
	return nil
}

func (c *fakeCache) PutSession(_ context.Context, s model.Session) error {
	c.mu.Lock()
	c.sessions[s.ID] = s
	c.mu.Unlock()
	return nil
}

func (c *fakeCache) DeleteSession(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	delete(c.sessions, id)
	c.mu.Unlock()
	return nil
}

func (c *fakeCache) ReplaceAll(_ context.Context, ps []model.Project, ss []model.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ps != nil {
		c.projects = map[uuid.UUID]model.Project{}
		for _, p := range ps {
			c.projects[p.ID] = p
		}
	}
	if ss != nil {
		c.sessions = map[uuid.UUID]model.Session{}
		for _, s := range ss {
			c.sessions[s.ID] = s
		}
	}
	return nil
}

func (c *fakeCache) ImportSnapshot(ctx context.Context, ps []model.Project, ss []model.Session) (bool, error) {
	c.mu.Lock()
	empty := len(c.projects) == 0 && len(c.sessions) == 0
	c.mu.Unlock()
	if !empty {
		return false, nil
	}
	return true, c.ReplaceAll(ctx, ps, ss)
}

func (c *fakeCache) LoadCurrent(context.Context) (model.CurrentSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.currentErr != nil {
		return model.CurrentSession{}, c.currentErr
	}
	if c.current == nil {
		return model.CurrentSession{}, missing("load_current")
	}
	return *c.current, nil
}

func (c *fakeCache) SaveCurrent(_ context.Context, cur model.CurrentSession) error {
	c.mu.Lock()
	c.current, c.currentErr = &cur, nil
	c.mu.Unlock()
	return nil
}

func (c *fakeCache) Settings(context.Context) (model.Settings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.settings == nil {
		return nil, missing("settings")
	}
	return c.settings, nil
}

func (c *fakeCache) SaveSettings(_ context.Context, s model.Settings) error {
	c.mu.Lock()
	c.settings = s
	c.mu.Unlock()
	return nil
}

func (c *fakeCache) projectCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.projects)
}

// memBackups keeps snapshots in memory.
type memBackups struct {
	mu    sync.Mutex
	saves int
	snaps []backup.Snapshot
}

var _ backup.Store = (*memBackups)(nil)

func (m *memBackups) Save(_ context.Context, s backup.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.snaps = append(m.snaps, s)
	return nil
}

func (m *memBackups) Latest(context.Context) (backup.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.snaps) == 0 {
		return backup.Snapshot{}, missing("latest")
	}
	return m.snaps[len(m.snaps)-1], nil
}

func (m *memBackups) History(context.Context) ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Time, 0, len(m.snaps))
	for i := len(m.snaps) - 1; i >= 0; i-- {
		out = append(out, m.snaps[i].LastBackup)
	}
	return out, nil
}

func (m *memBackups) At(_ context.Context, ts time.Time) (backup.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.snaps {
		if s.LastBackup.Equal(ts) {
			return s, nil
		}
	}
	return backup.Snapshot{}, missing("at")
}

func (m *memBackups) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock { return &clock{t: time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Add(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type harness struct {
	eng     *Engine
	remote  *fakeRemote
	cache   *fakeCache
	backups *memBackups
	sched   *schedule.Manual
	clock   *clock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		remote:  newFakeRemote(),
		cache:   newFakeCache(),
		backups: &memBackups{},
		sched:   schedule.NewManual(),
		clock:   newClock(),
	}
	h.eng = New(h.remote,
		WithCache(h.cache),
		WithBackups(h.backups),
		WithScheduler(h.sched),
		WithClock(h.clock.Now),
		WithLogger(zaptest.NewLogger(t)),
	)
	t.Cleanup(h.eng.Wait)
	return h
}

// tick advances virtual time and the clock together, n seconds.
func (h *harness) tick(n int) {
	for i := 0; i < n; i++ {
		h.clock.Add(time.Second)
		h.sched.Tick(1)
	}
}

func (h *harness) addProject(t *testing.T, name string) model.Project {
	t.Helper()
	p, err := h.eng.AddProject(context.Background(), model.Project{Name: name, Color: model.ColorBlue})
	require.NoError(t, err)
	return p
}

func (h *harness) selectProject(t *testing.T, id uuid.UUID) {
	t.Helper()
	require.NoError(t, h.eng.SelectProject(&id))
}

func completed(pid uuid.UUID, start time.Time, dur int64) model.Session {
	end := start.Add(time.Duration(dur) * time.Second)
	return model.Session{
		ID: model.NewID(), ProjectID: pid, StartTime: start, EndTime: &end,
		Duration: dur, Type: model.Stopwatch,
	}
}

// requireTotals checks that every project total equals the sum of its completed sessions.
func requireTotals(t *testing.T, st state.State) {
	t.Helper()
	sums := map[uuid.UUID]int64{}
	for _, s := range st.CompletedSessions {
		sums[s.ProjectID] += s.Duration
	}
	for _, p := range st.Projects {
		require.Equal(t, sums[p.ID], p.TotalTimeSpent, fmt.Sprintf("total of %q", p.Name))
	}
}
