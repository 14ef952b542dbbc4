// Package service contains the server-side application services behind the RPC and REST handlers.
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

// ProjectService defines project operations.
type ProjectService interface {
	List(ctx context.Context) ([]model.Project, error)
	Get(ctx context.Context, id uuid.UUID) (model.Project, error)
	// Create stores a new project. Any total in the request is ignored.
	Create(ctx context.Context, p model.Project) (model.Project, error)
	// Update changes descriptive fields. The stored total wins over the request.
	Update(ctx context.Context, p model.Project) (model.Project, error)
	// Delete removes the project and all of its sessions.
	Delete(ctx context.Context, id uuid.UUID) error
}

type ProjectServiceImpl struct {
	repo repository.ProjectRepository
	now  func() time.Time
}

// NewProjectService constructs ProjectService.
func NewProjectService(repo repository.ProjectRepository) *ProjectServiceImpl {
	return &ProjectServiceImpl{repo: repo, now: time.Now}
}

func requireID(field string, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("%w: empty %s", errs.ErrValidation, field)
	}
	return nil
}

func (s *ProjectServiceImpl) List(ctx context.Context) ([]model.Project, error) {
	return s.repo.List(ctx)
}

func (s *ProjectServiceImpl) Get(ctx context.Context, id uuid.UUID) (model.Project, error) {
	if err := requireID("id", id); err != nil {
		return model.Project{}, err
	}
	return s.repo.Get(ctx, id)
}

// Create validates and stamps timestamps missing from the request.
func (s *ProjectServiceImpl) Create(ctx context.Context, p model.Project) (model.Project, error) {
	now := s.now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	p.TotalTimeSpent = 0
	if err := p.Validate(); err != nil {
		return model.Project{}, err
	}
	return s.repo.Create(ctx, p)
}

func (s *ProjectServiceImpl) Update(ctx context.Context, p model.Project) (model.Project, error) {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = s.now().UTC()
	}
	p.TotalTimeSpent = 0
	if err := p.Validate(); err != nil {
		return model.Project{}, err
	}
	return s.repo.Update(ctx, p)
}

func (s *ProjectServiceImpl) Delete(ctx context.Context, id uuid.UUID) error {
	if err := requireID("id", id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}
