package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/timekeeper/internal/errs"
)

func TestProject_Validate(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	ok := Project{ID: NewID(), Name: "Thesis", Color: ColorTeal, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, ok.Validate())

	noName := ok
	noName.Name = "   "
	require.ErrorIs(t, noName.Validate(), errs.ErrValidation)

	badColor := ok
	badColor.Color = "mauve"
	require.ErrorIs(t, badColor.Validate(), errs.ErrValidation)

	zero := 0.0
	badGoal := ok
	badGoal.GoalHours = &zero
	require.ErrorIs(t, badGoal.Validate(), errs.ErrValidation)

	backwards := ok
	backwards.UpdatedAt = now.Add(-time.Hour)
	require.ErrorIs(t, backwards.Validate(), errs.ErrValidation)
}

func TestProject_GoalProgress(t *testing.T) {
	t.Parallel()

	p := Project{TotalTimeSpent: 1800}
	_, ok := p.GoalProgress()
	require.False(t, ok)

	g := 1.0
	p.GoalHours = &g
	got, ok := p.GoalProgress()
	require.True(t, ok)
	require.InDelta(t, 0.5, got, 1e-9)
}

func TestSession_StatusAndComplete(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := Session{ID: NewID(), ProjectID: NewID(), StartTime: start, Type: Stopwatch}
	require.Equal(t, StatusActive, s.Status())
	require.NoError(t, s.Validate())

	done := s.Complete(start.Add(90*time.Second), 90)
	require.Equal(t, StatusCompleted, done.Status())
	require.Equal(t, int64(90), done.Duration)
	require.Equal(t, StatusActive, s.Status(), "original must be untouched")

	bad := s.Complete(start.Add(-time.Second), 1)
	require.ErrorIs(t, bad.Validate(), errs.ErrValidation)

	s.Type = "hourglass"
	require.ErrorIs(t, s.Validate(), errs.ErrValidation)
}

func TestSettings_TypedAccessors(t *testing.T) {
	t.Parallel()

	var empty Settings
	require.Equal(t, ThemeLight, empty.ThemeMode())
	require.Equal(t, PaletteBlue, empty.ColorPalette())

	s := Settings{KeyThemeMode: "dark", KeyColorPalette: "neon", "fontSize": "14"}
	require.Equal(t, ThemeDark, s.ThemeMode())
	require.Equal(t, PaletteBlue, s.ColorPalette())
	require.Equal(t, "14", s.Get("fontSize"))

	require.NoError(t, ValidateSetting(KeyColorPalette, "pink"))
	require.NoError(t, ValidateSetting("fontSize", "anything"))
	require.ErrorIs(t, ValidateSetting(KeyThemeMode, "sepia"), errs.ErrValidation)
	require.ErrorIs(t, ValidateSetting("", "x"), errs.ErrValidation)
}
