// Package grpcserver exposes the Timekeeper gRPC API handlers.
package grpcserver

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/timekeeper/internal/convert"
	"github.com/and161185/timekeeper/internal/errs"
	"github.com/and161185/timekeeper/internal/model"
	"github.com/and161185/timekeeper/internal/rpc"
	"github.com/and161185/timekeeper/internal/service"
)

// Server wires services into gRPC handlers.
type Server struct {
	rpc.UnimplementedTimekeeperServer
	projects service.ProjectService
	sessions service.SessionService
	settings service.SettingService
	log      *zap.Logger
}

var _ rpc.TimekeeperServer = (*Server)(nil)

// New constructs a gRPC server with injected services.
func New(projects service.ProjectService, sessions service.SessionService, settings service.SettingService, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{projects: projects, sessions: sessions, settings: settings, log: log}
}

// toStatus maps service errors to gRPC codes. Unknown failures are logged and hidden.
func (s *Server) toStatus(op string, err error) error {
	switch {
	case errors.Is(err, errs.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, errs.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, errs.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, errs.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	}
	s.log.Error("request failed", zap.String("op", op), zap.Error(err))
	return status.Errorf(codes.Internal, "%s: internal error", op)
}

func badRequest(err error) error {
	return status.Error(codes.InvalidArgument, err.Error())
}

// --- Projects ---

func (s *Server) ListProjects(ctx context.Context, _ *rpc.ListProjectsRequest) (*rpc.ListProjectsResponse, error) {
	ps, err := s.projects.List(ctx)
	if err != nil {
		return nil, s.toStatus("list projects", err)
	}
	return &rpc.ListProjectsResponse{Projects: convert.ToWireProjects(ps)}, nil
}

func (s *Server) GetProject(ctx context.Context, req *rpc.GetProjectRequest) (*rpc.ProjectResponse, error) {
	id, err := convert.ParseID("id", req.ID)
	if err != nil {
		return nil, badRequest(err)
	}
	p, err := s.projects.Get(ctx, id)
	if err != nil {
		return nil, s.toStatus("get project", err)
	}
	return &rpc.ProjectResponse{Project: convert.ToWireProject(p)}, nil
}

func (s *Server) CreateProject(ctx context.Context, req *rpc.ProjectRequest) (*rpc.ProjectResponse, error) {
	in, err := convert.FromWireProject(req.Project)
	if err != nil {
		return nil, badRequest(err)
	}
	p, err := s.projects.Create(ctx, in)
	if err != nil {
		return nil, s.toStatus("create project", err)
	}
	return &rpc.ProjectResponse{Project: convert.ToWireProject(p)}, nil
}

func (s *Server) UpdateProject(ctx context.Context, req *rpc.ProjectRequest) (*rpc.ProjectResponse, error) {
	in, err := convert.FromWireProject(req.Project)
	if err != nil {
		return nil, badRequest(err)
	}
	p, err := s.projects.Update(ctx, in)
	if err != nil {
		return nil, s.toStatus("update project", err)
	}
	return &rpc.ProjectResponse{Project: convert.ToWireProject(p)}, nil
}

func (s *Server) DeleteProject(ctx context.Context, req *rpc.DeleteProjectRequest) (*rpc.Empty, error) {
	id, err := convert.ParseID("id", req.ID)
	if err != nil {
		return nil, badRequest(err)
	}
	if err := s.projects.Delete(ctx, id); err != nil {
		return nil, s.toStatus("delete project", err)
	}
	return &rpc.Empty{}, nil
}

// --- Sessions ---

func (s *Server) ListSessions(ctx context.Context, req *rpc.ListSessionsRequest) (*rpc.ListSessionsResponse, error) {
	pid := uuid.Nil
	if req.ProjectID != "" {
		id, err := convert.ParseID("projectId", req.ProjectID)
		if err != nil {
			return nil, badRequest(err)
		}
		pid = id
	}
	ss, err := s.sessions.List(ctx, pid)
	if err != nil {
		return nil, s.toStatus("list sessions", err)
	}
	return &rpc.ListSessionsResponse{Sessions: convert.ToWireSessions(ss)}, nil
}

func (s *Server) sessionCall(ctx context.Context, op string, req *rpc.SessionRequest, call func(context.Context, model.Session) (model.Session, error)) (*rpc.SessionResponse, error) {
	in, err := convert.FromWireSession(req.Session)
	if err != nil {
		return nil, badRequest(err)
	}
	out, err := call(ctx, in)
	if err != nil {
		return nil, s.toStatus(op, err)
	}
	return &rpc.SessionResponse{Session: convert.ToWireSession(out)}, nil
}

func (s *Server) CreateSession(ctx context.Context, req *rpc.SessionRequest) (*rpc.SessionResponse, error) {
	return s.sessionCall(ctx, "create session", req, s.sessions.Create)
}

func (s *Server) UpdateSession(ctx context.Context, req *rpc.SessionRequest) (*rpc.SessionResponse, error) {
	return s.sessionCall(ctx, "update session", req, s.sessions.Update)
}

func (s *Server) UpsertActiveSession(ctx context.Context, req *rpc.SessionRequest) (*rpc.SessionResponse, error) {
	return s.sessionCall(ctx, "upsert active session", req, s.sessions.UpsertActive)
}

func (s *Server) DeleteSession(ctx context.Context, req *rpc.DeleteSessionRequest) (*rpc.Empty, error) {
	id, err := convert.ParseID("id", req.ID)
	if err != nil {
		return nil, badRequest(err)
	}
	if err := s.sessions.Delete(ctx, id); err != nil {
		return nil, s.toStatus("delete session", err)
	}
	return &rpc.Empty{}, nil
}

func (s *Server) ListActiveSessions(ctx context.Context, _ *rpc.ListActiveRequest) (*rpc.ListSessionsResponse, error) {
	ss, err := s.sessions.ListActive(ctx)
	if err != nil {
		return nil, s.toStatus("list active sessions", err)
	}
	return &rpc.ListSessionsResponse{Sessions: convert.ToWireSessions(ss)}, nil
}

func (s *Server) CompleteActiveSession(ctx context.Context, req *rpc.CompleteActiveRequest) (*rpc.SessionResponse, error) {
	id, end, dur, err := convert.FromWireComplete(req)
	if err != nil {
		return nil, badRequest(err)
	}
	out, err := s.sessions.CompleteActive(ctx, id, end, dur)
	if err != nil {
		return nil, s.toStatus("complete active session", err)
	}
	return &rpc.SessionResponse{Session: convert.ToWireSession(out)}, nil
}

// --- Settings ---

func (s *Server) GetSettings(ctx context.Context, _ *rpc.GetSettingsRequest) (*rpc.SettingsResponse, error) {
	all, err := s.settings.All(ctx)
	if err != nil {
		return nil, s.toStatus("get settings", err)
	}
	return &rpc.SettingsResponse{Settings: convert.ToWireSettings(all)}, nil
}

func (s *Server) GetSetting(ctx context.Context, req *rpc.GetSettingRequest) (*rpc.Setting, error) {
	v, err := s.settings.Get(ctx, model.SettingKey(req.Key))
	if err != nil {
		return nil, s.toStatus("get setting", err)
	}
	return &rpc.Setting{Key: req.Key, Value: v}, nil
}

func (s *Server) PutSetting(ctx context.Context, req *rpc.Setting) (*rpc.Setting, error) {
	if err := s.settings.Put(ctx, model.SettingKey(req.Key), req.Value); err != nil {
		return nil, s.toStatus("put setting", err)
	}
	return &rpc.Setting{Key: req.Key, Value: req.Value}, nil
}
