package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/timekeeper/internal/backup"
	"github.com/and161185/timekeeper/internal/errs"
	"github.com/and161185/timekeeper/internal/model"
	"github.com/and161185/timekeeper/internal/state"
)

// Tier names reported by Bootstrap.
const (
	TierNone   = ""
	TierRemote = "remote"
	TierCache  = "cache"
	TierBackup = "backup"
)

// Provider is one tier of the startup read chain.
type Provider interface {
	Name() string
	Available() bool
	// Authoritative tiers are believed even when they return nothing.
	Authoritative() bool
	ReadProjects(ctx context.Context) ([]model.Project, error)
	ReadSessions(ctx context.Context) ([]model.Session, error)
	// Write mirrors records into the tier. Nil slices mean "unchanged".
	Write(ctx context.Context, projects []model.Project, sessions []model.Session) error
	// Mirror copies the records ch names from st into the tier after a mutation.
	Mirror(ctx context.Context, st state.State, ch Change) error
}

// Report says where each part of the state came from.
type Report struct {
	ProjectsFrom string
	SessionsFrom string
	CurrentFrom  string
	Online       bool
}

type remoteProvider struct {
	r    Remote
	note func(error)
}

func (p remoteProvider) Name() string        { return TierRemote }
func (p remoteProvider) Available() bool     { return p.r != nil }
func (p remoteProvider) Authoritative() bool { return true }

func (p remoteProvider) ReadProjects(ctx context.Context) ([]model.Project, error) {
	ps, err := p.r.ListProjects(ctx)
	p.note(err)
	return ps, err
}

func (p remoteProvider) ReadSessions(ctx context.Context) ([]model.Session, error) {
	ss, err := p.r.ListSessions(ctx)
	p.note(err)
	return ss, err
}

// Write is a no-op: the remote tier is written per mutation.
func (p remoteProvider) Write(context.Context, []model.Project, []model.Session) error { return nil }

func (p remoteProvider) Mirror(context.Context, state.State, Change) error { return nil }

type cacheProvider struct{ c Cache }

func (p cacheProvider) Name() string        { return TierCache }
func (p cacheProvider) Available() bool     { return p.c != nil }
func (p cacheProvider) Authoritative() bool { return false }

func (p cacheProvider) ReadProjects(ctx context.Context) ([]model.Project, error) {
	return p.c.Projects(ctx)
}

func (p cacheProvider) ReadSessions(ctx context.Context) ([]model.Session, error) {
	return p.c.Sessions(ctx)
}

func (p cacheProvider) Write(ctx context.Context, projects []model.Project, sessions []model.Session) error {
	if projects == nil && sessions == nil {
		return nil
	}
	return p.c.ReplaceAll(ctx, projects, sessions)
}

func (p cacheProvider) Mirror(ctx context.Context, st state.State, ch Change) error {
	var errList []error
	if ch.DeletedProject != nil {
		if err := p.c.DeleteProject(ctx, *ch.DeletedProject); err != nil {
			errList = append(errList, fmt.Errorf("delete project: %w", err))
		}
	}
	if ch.DeletedSession != nil {
		if err := p.c.DeleteSession(ctx, *ch.DeletedSession); err != nil {
			errList = append(errList, fmt.Errorf("delete session: %w", err))
		}
	}
	for _, id := range ch.Projects {
		for _, pr := range st.Projects {
			if pr.ID != id {
				continue
			}
			if err := p.c.PutProject(ctx, pr); err != nil {
				errList = append(errList, fmt.Errorf("put project: %w", err))
			}
		}
	}
	for _, id := range ch.Sessions {
		for _, s := range st.CompletedSessions {
			if s.ID != id {
				continue
			}
			if err := p.c.PutSession(ctx, s); err != nil {
				errList = append(errList, fmt.Errorf("put session: %w", err))
			}
		}
	}
	return errors.Join(errList...)
}

// backupProvider reads the latest snapshot once per chain.
type backupProvider struct {
	store backup.Store
	save  func(ctx context.Context)
	now   func() time.Time

	once sync.Once
	snap backup.Snapshot
	err  error
}

func (p *backupProvider) Name() string        { return TierBackup }
func (p *backupProvider) Available() bool     { return p.store != nil }
func (p *backupProvider) Authoritative() bool { return false }

func (p *backupProvider) latest(ctx context.Context) (backup.Snapshot, error) {
	p.once.Do(func() { p.snap, p.err = p.store.Latest(ctx) })
	return p.snap, p.err
}

func (p *backupProvider) ReadProjects(ctx context.Context) ([]model.Project, error) {
	s, err := p.latest(ctx)
	return s.Projects, err
}

func (p *backupProvider) ReadSessions(ctx context.Context) ([]model.Session, error) {
	s, err := p.latest(ctx)
	return s.CompletedSessions, err
}

// Write takes a snapshot of the engine state, which already holds the records.
func (p *backupProvider) Write(ctx context.Context, _ []model.Project, _ []model.Session) error {
	p.save(ctx)
	return nil
}

// Mirror takes a snapshot of st; every change to the session lists is recorded.
func (p *backupProvider) Mirror(ctx context.Context, st state.State, _ Change) error {
	return p.store.Save(ctx, snapshotOf(st, p.now()))
}

func (e *Engine) chain() []Provider {
	return []Provider{
		remoteProvider{r: e.remote, note: func(err error) { e.setOnline(err == nil) }},
		cacheProvider{c: e.cache},
		&backupProvider{store: e.backups, now: e.now, save: func(ctx context.Context) {
			st := e.store.State()
			if len(st.Projects) > 0 || len(st.CompletedSessions) > 0 || len(st.ActiveSessions) > 0 {
				e.saveBackup(ctx, st)
			}
		}},
	}
}

func readTier[T any](ctx context.Context, log *zap.Logger, chain []Provider, what string,
	read func(Provider, context.Context) ([]T, error)) ([]T, string) {
	for _, p := range chain {
		if !p.Available() {
			continue
		}
		items, err := read(p, ctx)
		if err != nil {
			log.Warn("tier read failed", zap.String("tier", p.Name()), zap.String("what", what), zap.Error(err))
			continue
		}
		if len(items) == 0 && !p.Authoritative() {
			continue
		}
		return items, p.Name()
	}
	return nil, TierNone
}

// Bootstrap loads state from the first tier that can serve it. It never fails: whatever
// could not be read is left empty.
func (e *Engine) Bootstrap(ctx context.Context) (rep Report) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("bootstrap panic", zap.Any("reason", r))
		}
		rep.Online = e.Online()
		e.log.Info("bootstrap",
			zap.String("projects", rep.ProjectsFrom),
			zap.String("sessions", rep.SessionsFrom),
			zap.String("current", rep.CurrentFrom),
			zap.Bool("online", rep.Online),
			zap.Duration("dur", time.Since(start)),
		)
	}()

	e.seedCache(ctx)

	chain := e.chain()
	projects, pFrom := readTier(ctx, e.log, chain, "projects", Provider.ReadProjects)
	sessions, sFrom := readTier(ctx, e.log, chain, "sessions", Provider.ReadSessions)
	rep.ProjectsFrom, rep.SessionsFrom = pFrom, sFrom

	e.store.Dispatch(state.SetProjects{Projects: projects})
	e.store.Dispatch(state.SetCompletedSessions{Sessions: sessions})

	var bp *backupProvider
	for _, p := range chain {
		if b, ok := p.(*backupProvider); ok {
			bp = b
		}
	}
	cur, curFrom := e.loadCurrent(ctx, bp)
	rep.CurrentFrom = curFrom
	e.store.Dispatch(state.RestoreCurrent{Current: cur})

	if sFrom != TierNone {
		e.store.Dispatch(state.RecomputeTotals{})
	}

	var mirrorPs []model.Project
	var mirrorSs []model.Session
	if pFrom == TierRemote {
		mirrorPs = e.store.State().Projects
	}
	if sFrom == TierRemote {
		mirrorSs = e.store.State().CompletedSessions
	}
	e.mirrorMu.Lock()
	for _, p := range chain {
		if p.Authoritative() || !p.Available() {
			continue
		}
		if err := p.Write(ctx, mirrorPs, mirrorSs); err != nil {
			e.log.Warn("tier mirror failed", zap.String("tier", p.Name()), zap.Error(err))
		}
	}
	e.mirrorMu.Unlock()
	return rep
}

// seedCache imports the latest snapshot into a cache that has never held data.
func (e *Engine) seedCache(ctx context.Context) {
	if e.cache == nil || e.backups == nil {
		return
	}
	snap, err := e.backups.Latest(ctx)
	if err != nil || snap.Empty() {
		return
	}
	if _, err := e.cache.ImportSnapshot(ctx, snap.Projects, snap.CompletedSessions); err != nil {
		e.log.Warn("seed cache from snapshot", zap.Error(err))
	}
}

// loadCurrent reads the client-local slot. A corrupt slot resets to empty; a missing
// or unreadable one falls back to the snapshot's copy.
func (e *Engine) loadCurrent(ctx context.Context, bp *backupProvider) (model.CurrentSession, string) {
	empty := model.CurrentSession{ActiveSessions: []model.Session{}}
	if e.cache != nil {
		cur, err := e.cache.LoadCurrent(ctx)
		switch errs.KindOf(err) {
		case errs.KindNone:
			return cur, TierCache
		case errs.KindCorrupt:
			e.log.Warn("current session slot is corrupt, resetting", zap.Error(err))
			return empty, TierNone
		case errs.KindNotFound:
		default:
			e.log.Warn("read current session slot", zap.Error(err))
		}
	}
	if bp != nil && bp.Available() {
		snap, err := bp.latest(ctx)
		if err == nil {
			return model.CurrentSession{ActiveProject: snap.ActiveProject, ActiveSessions: snap.ActiveSessions}, TierBackup
		}
	}
	return empty, TierNone
}

// Recover replaces the in-memory state and the cache with a snapshot: the latest one,
// or the copy taken at *at. Nothing is pushed to the remote service.
func (e *Engine) Recover(ctx context.Context, at *time.Time) (Report, error) {
	if e.backups == nil {
		return Report{}, errs.E(errs.KindStorage, "reconcile.recover", fmt.Errorf("no backup store configured"))
	}
	var (
		snap backup.Snapshot
		err  error
	)
	if at == nil {
		snap, err = e.backups.Latest(ctx)
	} else {
		snap, err = e.backups.At(ctx, *at)
	}
	if err != nil {
		return Report{}, err
	}

	e.timer.detach()
	e.store.Dispatch(state.SetProjects{Projects: snap.Projects})
	e.store.Dispatch(state.SetCompletedSessions{Sessions: snap.CompletedSessions})
	e.store.Dispatch(state.RestoreCurrent{Current: model.CurrentSession{
		ActiveProject: snap.ActiveProject, ActiveSessions: snap.ActiveSessions,
	}})
	e.store.Dispatch(state.RecomputeTotals{})

	if e.cache != nil {
		st := e.store.State()
		if err := e.cache.ReplaceAll(ctx, st.Projects, st.CompletedSessions); err != nil {
			e.log.Warn("recover: rewrite cache", zap.Error(err))
		}
	}
	e.log.Info("recovered from snapshot",
		zap.Time("taken", snap.LastBackup),
		zap.Int("projects", len(snap.Projects)),
		zap.Int("sessions", len(snap.CompletedSessions)))
	return Report{ProjectsFrom: TierBackup, SessionsFrom: TierBackup, CurrentFrom: TierBackup, Online: e.Online()}, nil
}
