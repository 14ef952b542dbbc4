// Package reconcile is the single authority for state-changing operations on the client.
//
// Writes go to the remote service first. A connectivity failure still applies the change
// locally and mirrors it to the cache and backups; any other failure leaves state untouched
// and is returned. Reads at startup walk a fixed chain of tiers: remote, cache, backup.
package reconcile

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/timekeeper/internal/backup"
	"github.com/and161185/timekeeper/internal/model"
	"github.com/and161185/timekeeper/internal/schedule"
	"github.com/and161185/timekeeper/internal/state"
)

const (
	DefaultPollInterval   = 15 * time.Second
	DefaultBackupInterval = 5 * time.Minute
	// localTimeout bounds cache and backup writes made on behalf of a caller.
	localTimeout = 5 * time.Second
)

// Remote is the authoritative persistence service.
type Remote interface {
	ListProjects(ctx context.Context) ([]model.Project, error)
	GetProject(ctx context.Context, id uuid.UUID) (model.Project, error)
	CreateProject(ctx context.Context, p model.Project) (model.Project, error)
	UpdateProject(ctx context.Context, p model.Project) (model.Project, error)
	DeleteProject(ctx context.Context, id uuid.UUID) error

	ListSessions(ctx context.Context) ([]model.Session, error)
	ListSessionsByProject(ctx context.Context, projectID uuid.UUID) ([]model.Session, error)
	CreateSession(ctx context.Context, s model.Session) (model.Session, error)
	UpdateSession(ctx context.Context, s model.Session) (model.Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error

	ListActiveSessions(ctx context.Context) ([]model.Session, error)
	UpsertActiveSession(ctx context.Context, s model.Session) (model.Session, error)
	CompleteActiveSession(ctx context.Context, id uuid.UUID, end time.Time, duration int64) (model.Session, error)

	GetSettings(ctx context.Context) (model.Settings, error)
	GetSetting(ctx context.Context, key model.SettingKey) (string, error)
	PutSetting(ctx context.Context, key model.SettingKey, value string) error
}

// Cache is the device-local mirror.
type Cache interface {
	Projects(ctx context.Context) ([]model.Project, error)
	Sessions(ctx context.Context) ([]model.Session, error)
	PutProject(ctx context.Context, p model.Project) error
	DeleteProject(ctx context.Context, id uuid.UUID) error
	PutSession(ctx context.Context, s model.Session) error
	DeleteSession(ctx context.Context, id uuid.UUID) error
	ReplaceAll(ctx context.Context, projects []model.Project, sessions []model.Session) error
	ImportSnapshot(ctx context.Context, projects []model.Project, sessions []model.Session) (bool, error)
	LoadCurrent(ctx context.Context) (model.CurrentSession, error)
	SaveCurrent(ctx context.Context, cur model.CurrentSession) error
	Settings(ctx context.Context) (model.Settings, error)
	SaveSettings(ctx context.Context, s model.Settings) error
}

// Engine owns the state store and coordinates every tier.
type Engine struct {
	store   *state.Store
	remote  Remote
	cache   Cache
	backups backup.Store
	sched   schedule.Scheduler
	log     *zap.Logger
	now     func() time.Time

	pollInterval   time.Duration
	backupInterval time.Duration

	online atomic.Bool

	// mirrorMu serializes mirror writes so each one captures the newest state.
	mirrorMu sync.Mutex
	inflight sync.WaitGroup

	timer timer

	settingsMu sync.Mutex
	settings   model.Settings

	bgMu sync.Mutex
	bg   []schedule.Handle
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache sets the device-local mirror tier.
func WithCache(c Cache) Option { return func(e *Engine) { e.cache = c } }

// WithBackups sets the snapshot store used as the last tier.
func WithBackups(b backup.Store) Option { return func(e *Engine) { e.backups = b } }

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.log = l } }

// WithScheduler replaces the wall-clock scheduler used for ticks and background jobs.
func WithScheduler(s schedule.Scheduler) Option { return func(e *Engine) { e.sched = s } }

// WithClock sets the time source for timestamps and snapshots.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithStore shares an existing state container with the engine.
func WithStore(s *state.Store) Option { return func(e *Engine) { e.store = s } }

// WithPollInterval sets how often the active-session poller runs.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.pollInterval = d
		}
	}
}

// WithBackupInterval sets how often the periodic flush runs.
func WithBackupInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.backupInterval = d
		}
	}
}

// New builds an engine. A nil remote runs the engine offline.
func New(remote Remote, opts ...Option) *Engine {
	e := &Engine{
		remote:         remote,
		sched:          schedule.Ticker{},
		log:            zap.NewNop(),
		now:            func() time.Time { return time.Now().UTC() },
		pollInterval:   DefaultPollInterval,
		backupInterval: DefaultBackupInterval,
	}
	for _, o := range opts {
		o(e)
	}
	if e.remote == nil {
		e.remote = Offline{}
	}
	if e.store == nil {
		e.store = state.NewStore()
	}
	e.store.Subscribe(e.persistCurrent)
	return e
}

// Store exposes the state container for read access and subscriptions.
func (e *Engine) Store() *state.Store { return e.store }

// State returns a snapshot of the in-memory state.
func (e *Engine) State() state.State { return e.store.State() }

// Online reports whether the last remote interaction reached the server.
func (e *Engine) Online() bool { return e.online.Load() }

func (e *Engine) setOnline(v bool) {
	if e.online.Swap(v) != v {
		if v {
			e.log.Info("server reachable")
		} else {
			e.log.Warn("server unreachable, working locally")
		}
	}
}

// Wait blocks until background mirrors and fire-and-forget remote writes settle.
func (e *Engine) Wait() { e.inflight.Wait() }

func (e *Engine) goInflight(fn func()) {
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		fn()
	}()
}

// persistCurrent keeps the client-local slot in step with the active set.
func (e *Engine) persistCurrent(scope state.Scope, next state.State) {
	if e.cache == nil || !scope.Has(state.ScopeActive) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), localTimeout)
	defer cancel()
	if err := e.cache.SaveCurrent(ctx, next.Current()); err != nil {
		e.log.Warn("save current session slot", zap.Error(err))
	}
}

// SelectProject sets or clears the active project. It is a local-only change.
func (e *Engine) SelectProject(id *uuid.UUID) error {
	if id != nil {
		if _, ok := e.store.Project(*id); !ok {
			return notFound("select_project", "project", *id)
		}
	}
	e.store.Dispatch(state.SetActiveProject{ID: id})
	return nil
}

// Start launches the poller and the periodic flush.
func (e *Engine) Start() {
	e.bgMu.Lock()
	defer e.bgMu.Unlock()
	if len(e.bg) > 0 {
		return
	}
	e.bg = append(e.bg,
		e.sched.Every(e.pollInterval, func() bool {
			ctx, cancel := context.WithTimeout(context.Background(), localTimeout)
			defer cancel()
			_, _ = e.Poll(ctx)
			return true
		}),
		e.sched.Every(e.backupInterval, func() bool {
			ctx, cancel := context.WithTimeout(context.Background(), localTimeout)
			defer cancel()
			e.Flush(ctx)
			return true
		}),
	)
}

// Flush writes the current slot to the cache and a snapshot to the backup store.
func (e *Engine) Flush(ctx context.Context) {
	e.mirrorMu.Lock()
	defer e.mirrorMu.Unlock()
	st := e.store.State()
	if e.cache != nil {
		if err := e.cache.SaveCurrent(ctx, st.Current()); err != nil {
			e.log.Warn("flush current session slot", zap.Error(err))
		}
	}
	e.saveBackup(ctx, st)
}

// Close stops background work, halts tick accrual without finalizing the running
// session so it can be resumed, and performs a last flush.
func (e *Engine) Close(ctx context.Context) {
	e.bgMu.Lock()
	for _, h := range e.bg {
		h.Cancel()
	}
	e.bg = nil
	e.bgMu.Unlock()

	e.timer.detach()
	e.Wait()
	e.Flush(ctx)
}

func (e *Engine) saveBackup(ctx context.Context, st state.State) {
	if e.backups == nil {
		return
	}
	if err := e.backups.Save(ctx, snapshotOf(st, e.now())); err != nil {
		e.log.Warn("backup snapshot", zap.Error(err))
	}
}

func snapshotOf(st state.State, at time.Time) backup.Snapshot {
	return backup.Snapshot{
		Version:           backup.Version,
		Projects:          st.Projects,
		CompletedSessions: st.CompletedSessions,
		ActiveProject:     st.ActiveProject,
		ActiveSessions:    st.ActiveSessions,
		LastBackup:        at,
	}
}
