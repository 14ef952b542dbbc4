package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/timekeeper/internal/errs"
	"github.com/and161185/timekeeper/internal/model"
	"github.com/and161185/timekeeper/internal/schedule"
	"github.com/and161185/timekeeper/internal/state"
)

// TickPeriod is the accrual step of a running timer.
const TickPeriod = time.Second

// TimerState is the phase of the single in-flight timer.
type TimerState int

const (
	TimerIdle TimerState = iota
	TimerRunning
	TimerPaused
	TimerCompleted
)

func (s TimerState) String() string {
	switch s {
	case TimerRunning:
		return "running"
	case TimerPaused:
		return "paused"
	case TimerCompleted:
		return "completed"
	default:
		return "idle"
	}
}

// TimerView is what a display needs to render the timer.
type TimerView struct {
	State     TimerState
	Type      model.SessionType
	ProjectID uuid.UUID
	SessionID uuid.UUID
	// Elapsed is the displayed counter. It keeps counting across pause and resume even
	// though each running stretch is its own session.
	Elapsed int64
	// Initial and Remaining are set for countdowns.
	Initial   int64
	Remaining int64
}

type timer struct {
	mu        sync.Mutex
	state     TimerState
	typ       model.SessionType
	initial   int64
	projectID uuid.UUID
	session   model.Session
	displayed int64
	segment   int64
	handle    schedule.Handle
	gen       uint64
	upserted  chan struct{}
}

// stopLocked cancels ticking; a tick already queued sees the new generation and quits.
func (t *timer) stopLocked() {
	if t.handle != nil {
		t.handle.Cancel()
		t.handle = nil
	}
	t.gen++
}

// abandon drops the timer when its project disappears.
func (t *timer) abandon(projectID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TimerIdle && t.projectID == projectID {
		t.stopLocked()
		t.state, t.displayed, t.segment = TimerIdle, 0, 0
	}
}

// abandonSession drops the timer when its running session is deleted.
func (t *timer) abandonSession(id uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == TimerRunning && t.session.ID == id {
		t.stopLocked()
		t.state, t.displayed, t.segment = TimerIdle, 0, 0
	}
}

// detach stops accrual but leaves the active session in place for a later AttachTimer.
func (t *timer) detach() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == TimerRunning {
		t.stopLocked()
		t.state = TimerIdle
	}
}

// Timer reports the timer for display.
func (e *Engine) Timer() TimerView {
	t := &e.timer
	t.mu.Lock()
	defer t.mu.Unlock()
	v := TimerView{
		State:     t.state,
		Type:      t.typ,
		ProjectID: t.projectID,
		Elapsed:   t.displayed,
	}
	if t.state == TimerRunning {
		v.SessionID = t.session.ID
	}
	if t.typ == model.Countdown {
		v.Initial = t.initial
		v.Remaining = max(t.initial-t.displayed, 0)
	}
	return v
}

// StartTimer begins a fresh timer on the active project. initial is the countdown
// length in seconds and is ignored for stopwatches.
func (e *Engine) StartTimer(_ context.Context, typ model.SessionType, initial int64) (model.Session, error) {
	const op = "start_timer"
	if !typ.Valid() {
		return model.Session{}, invalid(op, fmt.Errorf("%w: unknown timer type %q", errs.ErrValidation, typ))
	}
	if typ == model.Countdown && initial <= 0 {
		return model.Session{}, invalid(op, fmt.Errorf("%w: countdown needs a positive duration", errs.ErrValidation))
	}
	pid, err := e.activeProject(op)
	if err != nil {
		return model.Session{}, err
	}

	t := &e.timer
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == TimerRunning {
		return model.Session{}, invalid(op, fmt.Errorf("%w: timer already running", errs.ErrValidation))
	}
	t.typ = typ
	t.initial = 0
	if typ == model.Countdown {
		t.initial = initial
	}
	t.displayed = 0
	return e.beginSegmentLocked(pid), nil
}

// PauseTimer stops accrual and commits the running stretch as a completed session.
func (e *Engine) PauseTimer(ctx context.Context) (model.Session, error) {
	t := &e.timer
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TimerRunning {
		return model.Session{}, invalid("pause_timer", fmt.Errorf("%w: timer is not running", errs.ErrValidation))
	}
	t.stopLocked()
	return e.finalizeLocked(ctx, t.segment, TimerPaused)
}

// ResumeTimer continues a paused timer as a new session; the displayed counter carries on.
func (e *Engine) ResumeTimer(_ context.Context) (model.Session, error) {
	const op = "resume_timer"
	pid, err := e.activeProject(op)
	if err != nil {
		return model.Session{}, err
	}
	t := &e.timer
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TimerPaused {
		return model.Session{}, invalid(op, fmt.Errorf("%w: timer is not paused", errs.ErrValidation))
	}
	if t.typ == model.Countdown && t.displayed >= t.initial {
		t.state = TimerCompleted
		return model.Session{}, invalid(op, fmt.Errorf("%w: countdown already finished", errs.ErrValidation))
	}
	return e.beginSegmentLocked(pid), nil
}

// StopTimer finishes the timer. A paused timer has nothing left to commit.
func (e *Engine) StopTimer(ctx context.Context) (model.Session, error) {
	t := &e.timer
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case TimerRunning:
		t.stopLocked()
		return e.finalizeLocked(ctx, t.segment, TimerCompleted)
	case TimerPaused:
		t.state = TimerCompleted
		return model.Session{}, nil
	default:
		return model.Session{}, invalid("stop_timer", fmt.Errorf("%w: no timer to stop", errs.ErrValidation))
	}
}

// ResetTimer commits a running stretch, then clears the displayed counter.
func (e *Engine) ResetTimer(ctx context.Context) (model.Session, error) {
	t := &e.timer
	t.mu.Lock()
	defer t.mu.Unlock()
	var (
		done model.Session
		err  error
	)
	if t.state == TimerRunning {
		t.stopLocked()
		done, err = e.finalizeLocked(ctx, t.segment, TimerIdle)
	}
	t.state, t.displayed, t.segment = TimerIdle, 0, 0
	return done, err
}

// AttachTimer resumes ticking on an active session restored from storage or found by
// the poller. Elapsed time is taken from the session start.
func (e *Engine) AttachTimer(ctx context.Context, id uuid.UUID) (TimerView, error) {
	const op = "attach_timer"
	s, ok := e.store.Session(id)
	if !ok || s.Status() != model.StatusActive {
		return TimerView{}, notFound(op, "active session", id)
	}

	t := &e.timer
	t.mu.Lock()
	if t.state == TimerRunning {
		t.mu.Unlock()
		return TimerView{}, invalid(op, fmt.Errorf("%w: timer already running", errs.ErrValidation))
	}
	elapsed := max(int64(e.now().Sub(s.StartTime)/time.Second), s.Duration, 0)
	t.typ, t.projectID, t.session = s.Type, s.ProjectID, s
	t.initial = 0
	if s.Type == model.Countdown && s.InitialDuration != nil {
		t.initial = *s.InitialDuration
	}
	t.segment, t.displayed = elapsed, elapsed
	t.state = TimerRunning
	t.upserted = nil
	t.stopLocked()

	if t.initial > 0 && elapsed >= t.initial {
		_, err := e.finalizeLocked(ctx, t.initial, TimerCompleted)
		t.mu.Unlock()
		if err != nil {
			return TimerView{}, err
		}
		return e.Timer(), nil
	}
	s.Duration = elapsed
	t.session = s
	e.store.Dispatch(state.StartSession{Session: s})
	gen := t.gen
	t.handle = e.sched.Every(TickPeriod, func() bool { return e.tick(gen) })
	t.mu.Unlock()
	return e.Timer(), nil
}

func (e *Engine) activeProject(op string) (uuid.UUID, error) {
	pid, ok := e.store.ActiveProject()
	if !ok {
		return uuid.Nil, errs.E(errs.KindValidation, "reconcile."+op, errs.ErrNoActiveProject)
	}
	if _, ok := e.store.Project(pid); !ok {
		return uuid.Nil, notFound(op, "project", pid)
	}
	return pid, nil
}

// beginSegmentLocked opens a new active session and starts ticking. The remote upsert
// is fire-and-forget so the counter starts at once.
func (e *Engine) beginSegmentLocked(pid uuid.UUID) model.Session {
	t := &e.timer
	s := model.Session{ID: model.NewID(), ProjectID: pid, StartTime: e.now(), Type: t.typ}
	if t.typ == model.Countdown {
		rem := t.initial - t.displayed
		s.InitialDuration = &rem
	}
	t.session, t.segment, t.projectID, t.state = s, 0, pid, TimerRunning
	t.stopLocked()
	gen := t.gen

	e.store.Dispatch(state.StartSession{Session: s})
	e.mirrorAsync(Change{})

	done := make(chan struct{})
	t.upserted = done
	e.goInflight(func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), localTimeout)
		defer cancel()
		if _, err := e.remote.UpsertActiveSession(ctx, s); err != nil {
			e.log.Warn("announce active session", zap.Stringer("session", s.ID), zap.Error(err))
			if errs.IsConnectivity(err) {
				e.setOnline(false)
			}
			return
		}
		e.setOnline(true)
	})

	t.handle = e.sched.Every(TickPeriod, func() bool { return e.tick(gen) })
	return s
}

func (e *Engine) tick(gen uint64) bool {
	t := &e.timer
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen || t.state != TimerRunning {
		return false
	}
	t.segment++
	t.displayed++

	if t.session.Type == model.Countdown && t.session.InitialDuration != nil && t.segment >= *t.session.InitialDuration {
		t.handle = nil
		t.gen++
		ctx, cancel := context.WithTimeout(context.Background(), localTimeout)
		defer cancel()
		if _, err := e.finalizeLocked(ctx, *t.session.InitialDuration, TimerCompleted); err != nil {
			e.log.Warn("finish countdown", zap.Error(err))
		}
		return false
	}

	s := t.session
	s.Duration = t.segment
	t.session = s
	e.store.Dispatch(state.StartSession{Session: s})
	return true
}

// finalizeLocked commits the running stretch with duration dur and moves to next.
// Ticking must already be stopped.
func (e *Engine) finalizeLocked(ctx context.Context, dur int64, next TimerState) (model.Session, error) {
	t := &e.timer
	if done := t.upserted; done != nil {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}
	t.upserted = nil
	t.state = next

	s := t.session
	end := e.now()
	if end.Before(s.StartTime) {
		end = s.StartTime
	}
	got, err := e.CompleteSession(ctx, s.Complete(end, dur))
	if err != nil {
		e.store.Dispatch(state.StopSession{ID: s.ID})
		return model.Session{}, err
	}
	return got, nil
}
