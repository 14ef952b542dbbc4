// Package convert maps domain models to and from their wire form.
package convert

import (
	"fmt"
	"time"

	u "github.com/gofrs/uuid/v5"

	"github.com/and161185/timekeeper/internal/errs"
	"github.com/and161185/timekeeper/internal/model"
	"github.com/and161185/timekeeper/internal/rpc"
)

// --- helpers ---

func ts(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTS(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid %s: %v", errs.ErrValidation, field, err)
	}
	return t.UTC(), nil
}

// ParseID parses a canonical id, wrapping failures as validation errors.
func ParseID(field, s string) (u.UUID, error) {
	id, err := u.FromString(s)
	if err != nil {
		return u.Nil, fmt.Errorf("%w: invalid %s: %v", errs.ErrValidation, field, err)
	}
	return id, nil
}

// --- Project ---

// ToWireProject converts a domain project.
func ToWireProject(p model.Project) rpc.Project {
	return rpc.Project{
		ID:             p.ID.String(),
		Name:           p.Name,
		Description:    p.Description,
		Color:          string(p.Color),
		TotalTimeSpent: p.TotalTimeSpent,
		GoalHours:      p.GoalHours,
		CreatedAt:      ts(p.CreatedAt),
		UpdatedAt:      ts(p.UpdatedAt),
	}
}

// FromWireProject converts a wire project. It checks formats only; Validate checks semantics.
func FromWireProject(in rpc.Project) (model.Project, error) {
	id, err := ParseID("project id", in.ID)
	if err != nil {
		return model.Project{}, err
	}
	created, err := parseTS("createdAt", in.CreatedAt)
	if err != nil {
		return model.Project{}, err
	}
	updated, err := parseTS("updatedAt", in.UpdatedAt)
	if err != nil {
		return model.Project{}, err
	}
	return model.Project{
		ID:             id,
		Name:           in.Name,
		Description:    in.Description,
		Color:          model.Color(in.Color),
		TotalTimeSpent: in.TotalTimeSpent,
		GoalHours:      in.GoalHours,
		CreatedAt:      created,
		UpdatedAt:      updated,
	}, nil
}

// ToWireProjects converts a list, never returning nil.
func ToWireProjects(ps []model.Project) []rpc.Project {
	out := make([]rpc.Project, 0, len(ps))
	for _, p := range ps {
		out = append(out, ToWireProject(p))
	}
	return out
}

// FromWireProjects converts a list, failing on the first bad entry.
func FromWireProjects(in []rpc.Project) ([]model.Project, error) {
	out := make([]model.Project, 0, len(in))
	for i, p := range in {
		m, err := FromWireProject(p)
		if err != nil {
			return nil, fmt.Errorf("project[%d]: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// --- Session ---

// ToWireSession converts a domain session.
func ToWireSession(s model.Session) rpc.Session {
	out := rpc.Session{
		ID:              s.ID.String(),
		ProjectID:       s.ProjectID.String(),
		StartTime:       ts(s.StartTime),
		Duration:        s.Duration,
		Type:            string(s.Type),
		InitialDuration: s.InitialDuration,
	}
	if s.EndTime != nil {
		out.EndTime = ts(*s.EndTime)
	}
	return out
}

// FromWireSession converts a wire session.
func FromWireSession(in rpc.Session) (model.Session, error) {
	id, err := ParseID("session id", in.ID)
	if err != nil {
		return model.Session{}, err
	}
	pid, err := ParseID("projectId", in.ProjectID)
	if err != nil {
		return model.Session{}, err
	}
	start, err := parseTS("startTime", in.StartTime)
	if err != nil {
		return model.Session{}, err
	}
	out := model.Session{
		ID:              id,
		ProjectID:       pid,
		StartTime:       start,
		Duration:        in.Duration,
		Type:            model.SessionType(in.Type),
		InitialDuration: in.InitialDuration,
	}
	if in.EndTime != "" {
		end, err := parseTS("endTime", in.EndTime)
		if err != nil {
			return model.Session{}, err
		}
		out.EndTime = &end
	}
	return out, nil
}

// ToWireSessions converts a list, never returning nil.
func ToWireSessions(ss []model.Session) []rpc.Session {
	out := make([]rpc.Session, 0, len(ss))
	for _, s := range ss {
		out = append(out, ToWireSession(s))
	}
	return out
}

// FromWireSessions converts a list, failing on the first bad entry.
func FromWireSessions(in []rpc.Session) ([]model.Session, error) {
	out := make([]model.Session, 0, len(in))
	for i, s := range in {
		m, err := FromWireSession(s)
		if err != nil {
			return nil, fmt.Errorf("session[%d]: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// --- Complete ---

// FromWireComplete parses a completion request.
func FromWireComplete(in *rpc.CompleteActiveRequest) (u.UUID, time.Time, int64, error) {
	if in == nil {
		return u.Nil, time.Time{}, 0, fmt.Errorf("%w: nil request", errs.ErrValidation)
	}
	id, err := ParseID("session id", in.ID)
	if err != nil {
		return u.Nil, time.Time{}, 0, err
	}
	end, err := parseTS("endTime", in.EndTime)
	if err != nil {
		return u.Nil, time.Time{}, 0, err
	}
	if end.IsZero() {
		return u.Nil, time.Time{}, 0, fmt.Errorf("%w: endTime is required", errs.ErrValidation)
	}
	if in.Duration < 0 {
		return u.Nil, time.Time{}, 0, fmt.Errorf("%w: negative duration", errs.ErrValidation)
	}
	return id, end, in.Duration, nil
}

// ToWireComplete builds a completion request.
func ToWireComplete(id u.UUID, end time.Time, duration int64) *rpc.CompleteActiveRequest {
	return &rpc.CompleteActiveRequest{ID: id.String(), EndTime: ts(end), Duration: duration}
}

// --- Settings ---

// ToWireSettings converts a settings map.
func ToWireSettings(s model.Settings) map[string]string {
	out := make(map[string]string, len(s))
	for k, v := range s {
		out[string(k)] = v
	}
	return out
}

// FromWireSettings converts a settings map.
func FromWireSettings(in map[string]string) model.Settings {
	out := make(model.Settings, len(in))
	for k, v := range in {
		out[model.SettingKey(k)] = v
	}
	return out
}
