package rpc

// Timestamps travel as RFC 3339 strings in UTC; ids as canonical UUID strings.

// Project is the wire form of a project.
type Project struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	Color          string   `json:"color"`
	TotalTimeSpent int64    `json:"totalTimeSpent"`
	GoalHours      *float64 `json:"goalHours,omitempty"`
	CreatedAt      string   `json:"createdAt,omitempty"`
	UpdatedAt      string   `json:"updatedAt,omitempty"`
}

// Session is the wire form of a session.
type Session struct {
	ID              string `json:"id"`
	ProjectID       string `json:"projectId"`
	StartTime       string `json:"startTime"`
	EndTime         string `json:"endTime,omitempty"`
	Duration        int64  `json:"duration"`
	Type            string `json:"type"`
	InitialDuration *int64 `json:"initialDuration,omitempty"`
}

type Empty struct{}

type ListProjectsRequest struct{}

type ListProjectsResponse struct {
	Projects []Project `json:"projects"`
}

type GetProjectRequest struct {
	ID string `json:"id"`
}

type ProjectRequest struct {
	Project Project `json:"project"`
}

type ProjectResponse struct {
	Project Project `json:"project"`
}

type DeleteProjectRequest struct {
	ID string `json:"id"`
}

// ListSessionsRequest filters by project when ProjectID is set.
type ListSessionsRequest struct {
	ProjectID string `json:"projectId,omitempty"`
}

type ListSessionsResponse struct {
	Sessions []Session `json:"sessions"`
}

type SessionRequest struct {
	Session Session `json:"session"`
}

type SessionResponse struct {
	Session Session `json:"session"`
}

type DeleteSessionRequest struct {
	ID string `json:"id"`
}

type ListActiveRequest struct{}

type CompleteActiveRequest struct {
	ID       string `json:"id"`
	EndTime  string `json:"endTime"`
	Duration int64  `json:"duration"`
}

type GetSettingsRequest struct{}

type SettingsResponse struct {
	Settings map[string]string `json:"settings"`
}

type GetSettingRequest struct {
	Key string `json:"key"`
}

type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
