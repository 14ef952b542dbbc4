package service

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/timekeeper/internal/errs"
	"github.com/and161185/timekeeper/internal/model"
	"github.com/and161185/timekeeper/internal/repository"
)

// SessionService defines session operations, including the running-session protocol.
type SessionService interface {
	// List returns every session, or one project's sessions when projectID is set.
	List(ctx context.Context, projectID uuid.UUID) ([]model.Session, error)
	Get(ctx context.Context, id uuid.UUID) (model.Session, error)
	Create(ctx context.Context, s model.Session) (model.Session, error)
	Update(ctx context.Context, s model.Session) (model.Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListActive(ctx context.Context) ([]model.Session, error)
	UpsertActive(ctx context.Context, s model.Session) (model.Session, error)
	CompleteActive(ctx context.Context, id uuid.UUID, end time.Time, duration int64) (model.Session, error)
}

type SessionServiceImpl struct {
	repo repository.SessionRepository
}

// NewSessionService constructs SessionService.
func NewSessionService(repo repository.SessionRepository) *SessionServiceImpl {
	return &SessionServiceImpl{repo: repo}
}

func (s *SessionServiceImpl) List(ctx context.Context, projectID uuid.UUID) ([]model.Session, error) {
	if projectID == uuid.Nil {
		return s.repo.List(ctx)
	}
	return s.repo.ListByProject(ctx, projectID)
}

func (s *SessionServiceImpl) Get(ctx context.Context, id uuid.UUID) (model.Session, error) {
	if err := requireID("id", id); err != nil {
		return model.Session{}, err
	}
	return s.repo.Get(ctx, id)
}

func validCountdown(in model.Session) error {
	if in.Type == model.Countdown && in.InitialDuration != nil && *in.InitialDuration < 0 {
		return fmt.Errorf("%w: negative initialDuration", errs.ErrValidation)
	}
	return nil
}

// Create stores a session. A completed one is credited to its project.
func (s *SessionServiceImpl) Create(ctx context.Context, in model.Session) (model.Session, error) {
	if err := in.Validate(); err != nil {
		return model.Session{}, err
	}
	if err := validCountdown(in); err != nil {
		return model.Session{}, err
	}
	return s.repo.Create(ctx, in)
}

func (s *SessionServiceImpl) Update(ctx context.Context, in model.Session) (model.Session, error) {
	if err := in.Validate(); err != nil {
		return model.Session{}, err
	}
	if err := validCountdown(in); err != nil {
		return model.Session{}, err
	}
	return s.repo.Update(ctx, in)
}

func (s *SessionServiceImpl) Delete(ctx context.Context, id uuid.UUID) error {
	if err := requireID("id", id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *SessionServiceImpl) ListActive(ctx context.Context) ([]model.Session, error) {
	return s.repo.ListActive(ctx)
}

// UpsertActive accepts only running sessions.
func (s *SessionServiceImpl) UpsertActive(ctx context.Context, in model.Session) (model.Session, error) {
	if err := in.Validate(); err != nil {
		return model.Session{}, err
	}
	if in.EndTime != nil {
		return model.Session{}, fmt.Errorf("%w: active session must not have an endTime", errs.ErrValidation)
	}
	if err := validCountdown(in); err != nil {
		return model.Session{}, err
	}
	return s.repo.UpsertActive(ctx, in)
}

func (s *SessionServiceImpl) CompleteActive(ctx context.Context, id uuid.UUID, end time.Time, duration int64) (model.Session, error) {
	if err := requireID("id", id); err != nil {
		return model.Session{}, err
	}
	switch {
	case end.IsZero():
		return model.Session{}, fmt.Errorf("%w: empty endTime", errs.ErrValidation)
	case duration < 0:
		return model.Session{}, fmt.Errorf("%w: negative duration", errs.ErrValidation)
	}
	return s.repo.CompleteActive(ctx, id, end, duration)
}
