package reconcile

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/timekeeper/internal/backup"
	"github.com/and161185/timekeeper/internal/errs"
	"github.com/and161185/timekeeper/internal/model"
)

func seedSnapshot(t *testing.T, h *harness, projects, sessions int) backup.Snapshot {
	t.Helper()
	at := h.clock.Now().Add(-time.Hour)
	snap := backup.Snapshot{Version: backup.Version, LastBackup: at}
	for i := 0; i < projects; i++ {
		snap.Projects = append(snap.Projects, model.Project{
			ID: model.NewID(), Name: fmt.Sprintf("P%d", i), Color: model.ColorGreen,
			CreatedAt: at, UpdatedAt: at,
		})
	}
	for i := 0; i < sessions; i++ {
		p := snap.Projects[i%projects]
		snap.CompletedSessions = append(snap.CompletedSessions,
			completed(p.ID, at.Add(time.Duration(i)*time.Minute), int64(10*(i+1))))
	}
	require.NoError(t, h.backups.Save(context.Background(), snap))
	return snap
}

func TestBootstrap_FallsBackToSnapshotWhenRemoteDown(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.remote.setDown(true)
	snap := seedSnapshot(t, h, 2, 3)

	// no cache tier, so the snapshot is the only copy
	h.eng.cache = nil
	rep := h.eng.Bootstrap(context.Background())

	require.Equal(t, TierBackup, rep.ProjectsFrom)
	require.Equal(t, TierBackup, rep.SessionsFrom)
	require.False(t, rep.Online)

	st := h.eng.State()
	require.Len(t, st.Projects, 2)
	require.Len(t, st.CompletedSessions, 3)
	require.ElementsMatch(t, []string{snap.Projects[0].Name, snap.Projects[1].Name},
		[]string{st.Projects[0].Name, st.Projects[1].Name})
	requireTotals(t, st)
}

func TestBootstrap_SeedsEmptyCacheFromSnapshot(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.remote.setDown(true)
	seedSnapshot(t, h, 2, 3)

	rep := h.eng.Bootstrap(context.Background())
	require.Equal(t, TierCache, rep.ProjectsFrom)
	require.Equal(t, TierCache, rep.SessionsFrom)
	require.Equal(t, 2, h.cache.projectCount())
	require.Len(t, h.eng.State().CompletedSessions, 3)
}

func TestBootstrap_RemoteIsAuthoritativeAndMirrored(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)
	seedSnapshot(t, h, 2, 3)

	p := model.Project{ID: model.NewID(), Name: "Server", Color: model.ColorRed, TotalTimeSpent: 999}
	h.remote.projects[p.ID] = p
	s := completed(p.ID, h.clock.Now().Add(-time.Hour), 42)
	h.remote.sessions[s.ID] = s

	rep := h.eng.Bootstrap(ctx)
	require.Equal(t, TierRemote, rep.ProjectsFrom)
	require.Equal(t, TierRemote, rep.SessionsFrom)
	require.True(t, rep.Online)

	st := h.eng.State()
	require.Len(t, st.Projects, 1)
	// totals are recomputed from sessions, whatever the server stored
	require.Equal(t, int64(42), st.Projects[0].TotalTimeSpent)

	// the cache was seeded from the snapshot, then replaced by the server copy
	ps, err := h.cache.Projects(ctx)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	require.Equal(t, p.ID, ps[0].ID)

	latest, err := h.backups.Latest(ctx)
	require.NoError(t, err)
	require.Len(t, latest.Projects, 1)
}

func TestBootstrap_EmptyRemoteWins(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	seedSnapshot(t, h, 2, 3)
	h.eng.cache = nil

	rep := h.eng.Bootstrap(context.Background())
	require.Equal(t, TierRemote, rep.ProjectsFrom)
	require.Empty(t, h.eng.State().Projects)
}

func TestBootstrap_Idempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)
	p := model.Project{ID: model.NewID(), Name: "Server", Color: model.ColorRed}
	h.remote.projects[p.ID] = p
	for i := 0; i < 3; i++ {
		s := completed(p.ID, h.clock.Now().Add(time.Duration(-i)*time.Hour), int64(i+1))
		h.remote.sessions[s.ID] = s
	}
	active := model.Session{ID: model.NewID(), ProjectID: p.ID, StartTime: h.clock.Now(), Type: model.Stopwatch}
	require.NoError(t, h.cache.SaveCurrent(ctx, model.CurrentSession{ActiveProject: &p.ID, ActiveSessions: []model.Session{active}}))

	first := h.eng.Bootstrap(ctx)
	st1 := h.eng.State()
	second := h.eng.Bootstrap(ctx)
	st2 := h.eng.State()

	require.Equal(t, first, second)
	require.Equal(t, st1, st2)
	require.Len(t, st2.ActiveSessions, 1)
	require.Equal(t, TierCache, first.CurrentFrom)

	// same result when the server is gone and the mirrors answer
	h.remote.setDown(true)
	h.eng.Bootstrap(ctx)
	h.eng.Bootstrap(ctx)
	st3 := h.eng.State()
	require.ElementsMatch(t, st1.CompletedSessions, st3.CompletedSessions)
	require.Equal(t, st1.Projects, st3.Projects)
}

func TestBootstrap_CorruptCurrentSlotResets(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	snap := seedSnapshot(t, h, 1, 1)
	h.cache.currentErr = errs.E(errs.KindCorrupt, "fake.load_current", errs.ErrCorrupt)

	// the snapshot's selection must not leak in when the slot itself is corrupt
	pid := snap.Projects[0].ID
	snap.ActiveProject = &pid
	require.NoError(t, h.backups.Save(context.Background(), snap))

	rep := h.eng.Bootstrap(context.Background())
	require.Equal(t, TierNone, rep.CurrentFrom)
	st := h.eng.State()
	require.Nil(t, st.ActiveProject)
	require.NotNil(t, st.ActiveSessions)
	require.Empty(t, st.ActiveSessions)

	// the reset was written back
	cur, err := h.cache.LoadCurrent(context.Background())
	require.NoError(t, err)
	require.Nil(t, cur.ActiveProject)
}

func TestBootstrap_MissingSlotUsesSnapshotSelection(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.remote.setDown(true)
	snap := seedSnapshot(t, h, 1, 0)
	pid := snap.Projects[0].ID
	snap.ActiveProject = &pid
	require.NoError(t, h.backups.Save(context.Background(), snap))

	rep := h.eng.Bootstrap(context.Background())
	require.Equal(t, TierBackup, rep.CurrentFrom)
	require.Equal(t, pid, *h.eng.State().ActiveProject)
}

func TestBootstrap_NothingAnywhere(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.remote.setDown(true)

	rep := h.eng.Bootstrap(context.Background())
	require.Equal(t, Report{}, rep)
	st := h.eng.State()
	require.NotNil(t, st.Projects)
	require.Empty(t, st.Projects)
	require.Empty(t, st.CompletedSessions)
	require.Zero(t, h.backups.count())
}

func TestRecover_LatestAndHistorical(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)
	old := seedSnapshot(t, h, 1, 1)
	h.clock.Add(time.Minute)
	newer := seedSnapshot(t, h, 2, 3)

	rep, err := h.eng.Recover(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, TierBackup, rep.ProjectsFrom)
	st := h.eng.State()
	require.Len(t, st.Projects, len(newer.Projects))
	require.Len(t, st.CompletedSessions, 3)
	requireTotals(t, st)

	_, err = h.eng.Recover(ctx, &old.LastBackup)
	require.NoError(t, err)
	st = h.eng.State()
	require.Len(t, st.Projects, 1)
	require.Equal(t, old.Projects[0].ID, st.Projects[0].ID)
	requireTotals(t, st)
	require.Equal(t, 1, h.cache.projectCount())

	// recovery is local only
	require.Zero(t, h.remote.called("create_project"))
	require.Zero(t, h.remote.called("create_session"))

	missingAt := h.clock.Now().Add(24 * time.Hour)
	_, err = h.eng.Recover(ctx, &missingAt)
	require.ErrorIs(t, err, errs.ErrNotFound)

	h.eng.backups = nil
	_, err = h.eng.Recover(ctx, nil)
	require.Error(t, err)
}

func TestSettings_FallbackChain(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)

	// defaults when nothing is stored
	h.remote.setDown(true)
	got, err := h.eng.Settings(ctx)
	require.NoError(t, err)
	require.Equal(t, model.ThemeLight, got.ThemeMode())

	// server values are cached
	h.remote.setDown(false)
	h.remote.settings[model.KeyThemeMode] = "dark"
	got, err = h.eng.Settings(ctx)
	require.NoError(t, err)
	require.Equal(t, model.ThemeDark, got.ThemeMode())
	require.Equal(t, model.PaletteBlue, got.ColorPalette())

	// cached copy serves when the server is gone
	h.remote.setDown(true)
	got, err = h.eng.Settings(ctx)
	require.NoError(t, err)
	require.Equal(t, model.ThemeDark, got.ThemeMode())

	// offline writes land locally
	require.NoError(t, h.eng.SetSetting(ctx, model.KeyColorPalette, "green"))
	got, err = h.eng.Settings(ctx)
	require.NoError(t, err)
	require.Equal(t, model.PaletteGreen, got.ColorPalette())
	cached, err := h.cache.Settings(ctx)
	require.NoError(t, err)
	require.Equal(t, "green", cached[model.KeyColorPalette])

	err = h.eng.SetSetting(ctx, model.KeyThemeMode, "neon")
	require.ErrorIs(t, err, errs.ErrValidation)
}
