// Package model defines domain entities shared by the client engine, the local tiers and the server.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/timekeeper/internal/errs"
)

// Color is a symbolic tag from the fixed project palette.
type Color string

// Project palette.
const (
	ColorRed     Color = "red-500"
	ColorBlue    Color = "blue-500"
	ColorGreen   Color = "green-500"
	ColorYellow  Color = "yellow-500"
	ColorPurple  Color = "purple-500"
	ColorPink    Color = "pink-500"
	ColorIndigo  Color = "indigo-500"
	ColorOrange  Color = "orange-500"
	ColorTeal    Color = "teal-500"
	ColorCyan    Color = "cyan-500"
	ColorLime    Color = "lime-500"
	ColorEmerald Color = "emerald-500"
	ColorSky     Color = "sky-500"
	ColorAmber   Color = "amber-500"
	ColorRose    Color = "rose-500"
	ColorFuchsia Color = "fuchsia-500"
	ColorSlate   Color = "slate-500"
	ColorGray    Color = "gray-500"
)

// Palette lists every accepted project color in display order.
var Palette = []Color{
	ColorRed, ColorBlue, ColorGreen, ColorYellow, ColorPurple, ColorPink, ColorIndigo,
	ColorOrange, ColorTeal, ColorCyan, ColorLime, ColorEmerald, ColorSky, ColorAmber,
	ColorRose, ColorFuchsia, ColorSlate, ColorGray,
}

// Valid reports whether c belongs to the palette.
func (c Color) Valid() bool {
	for _, p := range Palette {
		if c == p {
			return true
		}
	}
	return false
}

// Project is a unit of tracked work. TotalTimeSpent is derived from completed sessions.
type Project struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Color          Color     `json:"color"`
	TotalTimeSpent int64     `json:"totalTimeSpent"` // seconds
	GoalHours      *float64  `json:"goalHours,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Validate checks required fields and field invariants.
func (p Project) Validate() error {
	switch {
	case p.ID == uuid.Nil:
		return fmt.Errorf("%w: project id is required", errs.ErrValidation)
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: project name is required", errs.ErrValidation)
	case !p.Color.Valid():
		return fmt.Errorf("%w: unknown color %q", errs.ErrValidation, p.Color)
	case p.TotalTimeSpent < 0:
		return fmt.Errorf("%w: negative total time", errs.ErrValidation)
	case p.GoalHours != nil && *p.GoalHours <= 0:
		return fmt.Errorf("%w: goal hours must be positive", errs.ErrValidation)
	case !p.CreatedAt.IsZero() && p.UpdatedAt.Before(p.CreatedAt):
		return fmt.Errorf("%w: updatedAt precedes createdAt", errs.ErrValidation)
	}
	return nil
}

// GoalProgress returns the fraction of the goal reached, or false when there is no goal.
func (p Project) GoalProgress() (float64, bool) {
	if p.GoalHours == nil || *p.GoalHours <= 0 {
		return 0, false
	}
	return float64(p.TotalTimeSpent) / (*p.GoalHours * 3600), true
}

// SessionType distinguishes count-up from count-down timers.
type SessionType string

const (
	Stopwatch SessionType = "stopwatch"
	Countdown SessionType = "countdown"
)

// Valid reports whether t is a known timer type.
func (t SessionType) Valid() bool { return t == Stopwatch || t == Countdown }

// SessionStatus is derived from EndTime.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
)

// Session is one contiguous run of a timer against a project.
type Session struct {
	ID              uuid.UUID   `json:"id"`
	ProjectID       uuid.UUID   `json:"projectId"`
	StartTime       time.Time   `json:"startTime"`
	EndTime         *time.Time  `json:"endTime"`
	Duration        int64       `json:"duration"` // seconds; elapsed so far while active
	Type            SessionType `json:"type"`
	InitialDuration *int64      `json:"initialDuration,omitempty"` // countdown only
}

// Status is active until an end time is fixed.
func (s Session) Status() SessionStatus {
	if s.EndTime == nil {
		return StatusActive
	}
	return StatusCompleted
}

// Validate checks required fields.
func (s Session) Validate() error {
	switch {
	case s.ID == uuid.Nil:
		return fmt.Errorf("%w: session id is required", errs.ErrValidation)
	case s.ProjectID == uuid.Nil:
		return fmt.Errorf("%w: session projectId is required", errs.ErrValidation)
	case s.StartTime.IsZero():
		return fmt.Errorf("%w: session startTime is required", errs.ErrValidation)
	case !s.Type.Valid():
		return fmt.Errorf("%w: unknown session type %q", errs.ErrValidation, s.Type)
	case s.Duration < 0:
		return fmt.Errorf("%w: negative duration", errs.ErrValidation)
	case s.EndTime != nil && s.EndTime.Before(s.StartTime):
		return fmt.Errorf("%w: endTime precedes startTime", errs.ErrValidation)
	}
	return nil
}

// Complete returns a copy finalized at end with the given duration.
func (s Session) Complete(end time.Time, duration int64) Session {
	s.EndTime = &end
	s.Duration = duration
	return s
}

// NewID returns a fresh random identifier.
func NewID() uuid.UUID { return uuid.Must(uuid.NewV4()) }

// CurrentSession is the client-local "what this device was doing" slot.
type CurrentSession struct {
	ActiveProject  *uuid.UUID `json:"activeProject"`
	ActiveSessions []Session  `json:"activeSessions"`
}

// Device is a client installation holding an access token for the server.
type Device struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}
