package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "timekeeper.v1.Timekeeper"

// TimekeeperServer is implemented by the server side.
type TimekeeperServer interface {
	ListProjects(context.Context, *ListProjectsRequest) (*ListProjectsResponse, error)
	GetProject(context.Context, *GetProjectRequest) (*ProjectResponse, error)
	CreateProject(context.Context, *ProjectRequest) (*ProjectResponse, error)
	UpdateProject(context.Context, *ProjectRequest) (*ProjectResponse, error)
	DeleteProject(context.Context, *DeleteProjectRequest) (*Empty, error)

	ListSessions(context.Context, *ListSessionsRequest) (*ListSessionsResponse, error)
	CreateSession(context.Context, *SessionRequest) (*SessionResponse, error)
	UpdateSession(context.Context, *SessionRequest) (*SessionResponse, error)
	DeleteSession(context.Context, *DeleteSessionRequest) (*Empty, error)
	ListActiveSessions(context.Context, *ListActiveRequest) (*ListSessionsResponse, error)
	UpsertActiveSession(context.Context, *SessionRequest) (*SessionResponse, error)
	CompleteActiveSession(context.Context, *CompleteActiveRequest) (*SessionResponse, error)

	GetSettings(context.Context, *GetSettingsRequest) (*SettingsResponse, error)
	GetSetting(context.Context, *GetSettingRequest) (*Setting, error)
	PutSetting(context.Context, *Setting) (*Setting, error)
}

// UnimplementedTimekeeperServer answers every method with codes.Unimplemented.
type UnimplementedTimekeeperServer struct{}

func unimplemented(m string) error { return status.Errorf(codes.Unimplemented, "method %s not implemented", m) }

func (UnimplementedTimekeeperServer) ListProjects(context.Context, *ListProjectsRequest) (*ListProjectsResponse, error) {
	return nil, unimplemented("ListProjects")
}
func (UnimplementedTimekeeperServer) GetProject(context.Context, *GetProjectRequest) (*ProjectResponse, error) {
	return nil, unimplemented("GetProject")
}
func (UnimplementedTimekeeperServer) CreateProject(context.Context, *ProjectRequest) (*ProjectResponse, error) {
	return nil, unimplemented("CreateProject")
}
func (UnimplementedTimekeeperServer) UpdateProject(context.Context, *ProjectRequest) (*ProjectResponse, error) {
	return nil, unimplemented("UpdateProject")
}
func (UnimplementedTimekeeperServer) DeleteProject(context.Context, *DeleteProjectRequest) (*Empty, error) {
	return nil, unimplemented("DeleteProject")
}
func (UnimplementedTimekeeperServer) ListSessions(context.Context, *ListSessionsRequest) (*ListSessionsResponse, error) {
	return nil, unimplemented("ListSessions")
}
func (UnimplementedTimekeeperServer) CreateSession(context.Context, *SessionRequest) (*SessionResponse, error) {
	return nil, unimplemented("CreateSession")
}
func (UnimplementedTimekeeperServer) UpdateSession(context.Context, *SessionRequest) (*SessionResponse, error) {
	return nil, unimplemented("UpdateSession")
}
func (UnimplementedTimekeeperServer) DeleteSession(context.Context, *DeleteSessionRequest) (*Empty, error) {
	return nil, unimplemented("DeleteSession")
}
func (UnimplementedTimekeeperServer) ListActiveSessions(context.Context, *ListActiveRequest) (*ListSessionsResponse, error) {
	return nil, unimplemented("ListActiveSessions")
}
func (UnimplementedTimekeeperServer) UpsertActiveSession(context.Context, *SessionRequest) (*SessionResponse, error) {
	return nil, unimplemented("UpsertActiveSession")
}
func (UnimplementedTimekeeperServer) CompleteActiveSession(context.Context, *CompleteActiveRequest) (*SessionResponse, error) {
	return nil, unimplemented("CompleteActiveSession")
}
func (UnimplementedTimekeeperServer) GetSettings(context.Context, *GetSettingsRequest) (*SettingsResponse, error) {
	return nil, unimplemented("GetSettings")
}
func (UnimplementedTimekeeperServer) GetSetting(context.Context, *GetSettingRequest) (*Setting, error) {
	return nil, unimplemented("GetSetting")
}
func (UnimplementedTimekeeperServer) PutSetting(context.Context, *Setting) (*Setting, error) {
	return nil, unimplemented("PutSetting")
}

func method(name string) string { return "/" + ServiceName + "/" + name }

func unary[Req, Resp any](name string, call func(TimekeeperServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	full := method(name)
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(TimekeeperServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(TimekeeperServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes the Timekeeper service for grpc.Server registration.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TimekeeperServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ListProjects", TimekeeperServer.ListProjects),
		unary("GetProject", TimekeeperServer.GetProject),
		unary("CreateProject", TimekeeperServer.CreateProject),
		unary("UpdateProject", TimekeeperServer.UpdateProject),
		unary("DeleteProject", TimekeeperServer.DeleteProject),
		unary("ListSessions", TimekeeperServer.ListSessions),
		unary("CreateSession", TimekeeperServer.CreateSession),
		unary("UpdateSession", TimekeeperServer.UpdateSession),
		unary("DeleteSession", TimekeeperServer.DeleteSession),
		unary("ListActiveSessions", TimekeeperServer.ListActiveSessions),
		unary("UpsertActiveSession", TimekeeperServer.UpsertActiveSession),
		unary("CompleteActiveSession", TimekeeperServer.CompleteActiveSession),
		unary("GetSettings", TimekeeperServer.GetSettings),
		unary("GetSetting", TimekeeperServer.GetSetting),
		unary("PutSetting", TimekeeperServer.PutSetting),
	},
	Metadata: "timekeeper/v1/timekeeper",
}

// RegisterTimekeeperServer registers srv on s.
func RegisterTimekeeperServer(s grpc.ServiceRegistrar, srv TimekeeperServer) {
	s.RegisterService(&ServiceDesc, srv)
}
