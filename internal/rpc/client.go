package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// TimekeeperClient is a typed stub over a client connection. Every call uses the JSON codec.
type TimekeeperClient struct {
	cc grpc.ClientConnInterface
}

// NewTimekeeperClient wraps cc.
func NewTimekeeperClient(cc grpc.ClientConnInterface) *TimekeeperClient {
	return &TimekeeperClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, c *TimekeeperClient, name string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, method(name), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *TimekeeperClient) ListProjects(ctx context.Context, in *ListProjectsRequest, opts ...grpc.CallOption) (*ListProjectsResponse, error) {
	return invoke[ListProjectsResponse](ctx, c, "ListProjects", in, opts)
}

func (c *TimekeeperClient) GetProject(ctx context.Context, in *GetProjectRequest, opts ...grpc.CallOption) (*ProjectResponse, error) {
	return invoke[ProjectResponse](ctx, c, "GetProject", in, opts)
}

func (c *TimekeeperClient) CreateProject(ctx context.Context, in *ProjectRequest, opts ...grpc.CallOption) (*ProjectResponse, error) {
	return invoke[ProjectResponse](ctx, c, "CreateProject", in, opts)
}

func (c *TimekeeperClient) UpdateProject(ctx context.Context, in *ProjectRequest, opts ...grpc.CallOption) (*ProjectResponse, error) {
	return invoke[ProjectResponse](ctx, c, "UpdateProject", in, opts)
}

func (c *TimekeeperClient) DeleteProject(ctx context.Context, in *DeleteProjectRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, "DeleteProject", in, opts)
}

func (c *TimekeeperClient) ListSessions(ctx context.Context, in *ListSessionsRequest, opts ...grpc.CallOption) (*ListSessionsResponse, error) {
	return invoke[ListSessionsResponse](ctx, c, "ListSessions", in, opts)
}

func (c *TimekeeperClient) CreateSession(ctx context.Context, in *SessionRequest, opts ...grpc.CallOption) (*SessionResponse, error) {
	return invoke[SessionResponse](ctx, c, "CreateSession", in, opts)
}

func (c *TimekeeperClient) UpdateSession(ctx context.Context, in *SessionRequest, opts ...grpc.CallOption) (*SessionResponse, error) {
	return invoke[SessionResponse](ctx, c, "UpdateSession", in, opts)
}

func (c *TimekeeperClient) DeleteSession(ctx context.Context, in *DeleteSessionRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, "DeleteSession", in, opts)
}

func (c *TimekeeperClient) ListActiveSessions(ctx context.Context, in *ListActiveRequest, opts ...grpc.CallOption) (*ListSessionsResponse, error) {
	return invoke[ListSessionsResponse](ctx, c, "ListActiveSessions", in, opts)
}

func (c *TimekeeperClient) UpsertActiveSession(ctx context.Context, in *SessionRequest, opts ...grpc.CallOption) (*SessionResponse, error) {
	return invoke[SessionResponse](ctx, c, "UpsertActiveSession", in, opts)
}

func (c *TimekeeperClient) CompleteActiveSession(ctx context.Context, in *CompleteActiveRequest, opts ...grpc.CallOption) (*SessionResponse, error) {
	return invoke[SessionResponse](ctx, c, "CompleteActiveSession", in, opts)
}

func (c *TimekeeperClient) GetSettings(ctx context.Context, in *GetSettingsRequest, opts ...grpc.CallOption) (*SettingsResponse, error) {
	return invoke[SettingsResponse](ctx, c, "GetSettings", in, opts)
}

func (c *TimekeeperClient) GetSetting(ctx context.Context, in *GetSettingRequest, opts ...grpc.CallOption) (*Setting, error) {
	return invoke[Setting](ctx, c, "GetSetting", in, opts)
}

func (c *TimekeeperClient) PutSetting(ctx context.Context, in *Setting, opts ...grpc.CallOption) (*Setting, error) {
	return invoke[Setting](ctx, c, "PutSetting", in, opts)
}
