// Package remote is the client side of the Timekeeper gRPC API, speaking domain types
// and reporting failures as classified errors.
package remote

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/uuid/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/and161185/timekeeper/internal/convert"
	"github.com/and161185/timekeeper/internal/errs"
	"github.com/and161185/timekeeper/internal/model"
	"github.com/and161185/timekeeper/internal/rpc"
)

// DefaultTimeout bounds each call when the caller's context has no deadline.
const DefaultTimeout = 5 * time.Second

// TLSOptions selects transport security for Dial.
type TLSOptions struct {
	Plaintext bool
	CACert    string
	Insecure  bool
}

// Client implements the remote data source over one connection.
type Client struct {
	api     *rpc.TimekeeperClient
	conn    *grpc.ClientConn
	token   string
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithToken attaches a bearer token to every call.
func WithToken(tok string) Option { return func(c *Client) { c.token = tok } }

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New wraps an existing connection.
func New(cc grpc.ClientConnInterface, opts ...Option) *Client {
	c := &Client{api: rpc.NewTimekeeperClient(cc), timeout: DefaultTimeout}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Dial creates a lazily connecting client for addr.
func Dial(addr string, tlsOpts TLSOptions, opts ...Option) (*Client, error) {
	creds, err := transportCreds(tlsOpts)
	if err != nil {
		return nil, err
	}
	cc, err := grpc.NewClient(addr, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	c := New(cc, opts...)
	c.conn = cc
	return c, nil
}

// Close releases the connection opened by Dial.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func transportCreds(o TLSOptions) (credentials.TransportCredentials, error) {
	if o.Plaintext {
		return insecure.NewCredentials(), nil
	}
	cfg := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: o.Insecure} //nolint:gosec // opt-in for self-signed dev servers
	if o.CACert != "" {
		pem, err := os.ReadFile(o.CACert)
		if err != nil {
			return nil, fmt.Errorf("read ca cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("ca cert: no certificates found")
		}
		cfg.RootCAs = pool
	}
	return credentials.NewTLS(cfg), nil
}

func (c *Client) ctx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}
	// An earlier parent deadline still wins.
	return context.WithTimeout(ctx, c.timeout)
}

// --- Projects ---

func (c *Client) ListProjects(ctx context.Context) ([]model.Project, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	resp, err := c.api.ListProjects(ctx, &rpc.ListProjectsRequest{})
	if err != nil {
		return nil, classify("remote.list_projects", err)
	}
	return decode("remote.list_projects", convert.FromWireProjects, resp.Projects)
}

func (c *Client) GetProject(ctx context.Context, id uuid.UUID) (model.Project, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	resp, err := c.api.GetProject(ctx, &rpc.GetProjectRequest{ID: id.String()})
	if err != nil {
		return model.Project{}, classify("remote.get_project", err)
	}
	return decode("remote.get_project", convert.FromWireProject, resp.Project)
}

func (c *Client) CreateProject(ctx context.Context, p model.Project) (model.Project, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	resp, err := c.api.CreateProject(ctx, &rpc.ProjectRequest{Project: convert.ToWireProject(p)})
	if err != nil {
		return model.Project{}, classify("remote.create_project", err)
	}
	return decode("remote.create_project", convert.FromWireProject, resp.Project)
}

func (c *Client) UpdateProject(ctx context.Context, p model.Project) (model.Project, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	resp, err := c.api.UpdateProject(ctx, &rpc.ProjectRequest{Project: convert.ToWireProject(p)})
	if err != nil {
		return model.Project{}, classify("remote.update_project", err)
	}
	return decode("remote.update_project", convert.FromWireProject, resp.Project)
}

func (c *Client) DeleteProject(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	_, err := c.api.DeleteProject(ctx, &rpc.DeleteProjectRequest{ID: id.String()})
	return classify("remote.delete_project", err)
}

// --- Sessions ---

func (c *Client) ListSessions(ctx context.Context) ([]model.Session, error) {
	return c.listSessions(ctx, "")
}

func (c *Client) ListSessionsByProject(ctx context.Context, projectID uuid.UUID) ([]model.Session, error) {
	return c.listSessions(ctx, projectID.String())
}

func (c *Client) listSessions(ctx context.Context, projectID string) ([]model.Session, error) {
	const op = "remote.list_sessions"
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	resp, err := c.api.ListSessions(ctx, &rpc.ListSessionsRequest{ProjectID: projectID})
	if err != nil {
		return nil, classify(op, err)
	}
	return decode(op, convert.FromWireSessions, resp.Sessions)
}

func (c *Client) CreateSession(ctx context.Context, s model.Session) (model.Session, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	resp, err := c.api.CreateSession(ctx, &rpc.SessionRequest{Session: convert.ToWireSession(s)})
	if err != nil {
		return model.Session{}, classify("remote.create_session", err)
	}
	return decode("remote.create_session", convert.FromWireSession, resp.Session)
}

func (c *Client) UpdateSession(ctx context.Context, s model.Session) (model.Session, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	resp, err := c.api.UpdateSession(ctx, &rpc.SessionRequest{Session: convert.ToWireSession(s)})
	if err != nil {
		return model.Session{}, classify("remote.update_session", err)
	}
	return decode("remote.update_session", convert.FromWireSession, resp.Session)
}

func (c *Client) DeleteSession(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	_, err := c.api.DeleteSession(ctx, &rpc.DeleteSessionRequest{ID: id.String()})
	return classify("remote.delete_session", err)
}

func (c *Client) ListActiveSessions(ctx context.Context) ([]model.Session, error) {
	const op = "remote.list_active"
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	resp, err := c.api.ListActiveSessions(ctx, &rpc.ListActiveRequest{})
	if err != nil {
		return nil, classify(op, err)
	}
	return decode(op, convert.FromWireSessions, resp.Sessions)
}

func (c *Client) UpsertActiveSession(ctx context.Context, s model.Session) (model.Session, error) {
	const op = "remote.upsert_active"
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	resp, err := c.api.UpsertActiveSession(ctx, &rpc.SessionRequest{Session: convert.ToWireSession(s)})
	if err != nil {
		return model.Session{}, classify(op, err)
	}
	return decode(op, convert.FromWireSession, resp.Session)
}

func (c *Client) CompleteActiveSession(ctx context.Context, id uuid.UUID, end time.Time, duration int64) (model.Session, error) {
	const op = "remote.complete_active"
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	resp, err := c.api.CompleteActiveSession(ctx, convert.ToWireComplete(id, end, duration))
	if err != nil {
		return model.Session{}, classify(op, err)
	}
	return decode(op, convert.FromWireSession, resp.Session)
}

// --- Settings ---

func (c *Client) GetSettings(ctx context.Context) (model.Settings, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	resp, err := c.api.GetSettings(ctx, &rpc.GetSettingsRequest{})
	if err != nil {
		return nil, classify("remote.get_settings", err)
	}
	return convert.FromWireSettings(resp.Settings), nil
}

func (c *Client) GetSetting(ctx context.Context, key model.SettingKey) (string, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	resp, err := c.api.GetSetting(ctx, &rpc.GetSettingRequest{Key: string(key)})
	if err != nil {
		return "", classify("remote.get_setting", err)
	}
	return resp.Value, nil
}

func (c *Client) PutSetting(ctx context.Context, key model.SettingKey, value string) error {
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	_, err := c.api.PutSetting(ctx, &rpc.Setting{Key: string(key), Value: value})
	return classify("remote.put_setting", err)
}

// classify maps gRPC status codes onto error kinds.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return errs.E(errs.KindOf(err), op, err)
	}
	var kind errs.Kind
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		kind = errs.KindConnectivity
	case codes.InvalidArgument, codes.FailedPrecondition, codes.AlreadyExists:
		kind = errs.KindValidation
	case codes.NotFound:
		kind = errs.KindNotFound
	default:
		kind = errs.KindApplication
	}
	return errs.E(kind, op, errors.New(st.Message()))
}

func decode[In, Out any](op string, fn func(In) (Out, error), in In) (Out, error) {
	out, err := fn(in)
	if err != nil {
		var zero Out
		return zero, errs.E(errs.KindApplication, op, fmt.Errorf("bad response: %w", err))
	}
	return out, nil
}
