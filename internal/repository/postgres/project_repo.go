package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/timekeeper/internal/errs"
	"github.com/and161185/timekeeper/internal/model"
)

// ProjectRepo implements ProjectRepository using PostgreSQL.
type ProjectRepo struct{ db *DB }

// NewProjectRepo constructs a project repository.
func NewProjectRepo(db *DB) *ProjectRepo { return &ProjectRepo{db: db} }

const projectCols = `id, name, description, color, total_time_spent, goal_hours, created_at, updated_at`

func scanProject(row pgx.Row) (model.Project, error) {
	var (
		p     model.Project
		color string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &color, &p.TotalTimeSpent, &p.GoalHours, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return model.Project{}, err
	}
	p.Color = model.Color(color)
	return p, nil
}

// List returns all projects ordered by creation time.
func (r *ProjectRepo) List(ctx context.Context) ([]model.Project, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+projectCols+` FROM projects ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Get returns a single project by id.
func (r *ProjectRepo) Get(ctx context.Context, id uuid.UUID) (model.Project, error) {
	p, err := scanProject(r.db.Pool.QueryRow(ctx, `SELECT `+projectCols+` FROM projects WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Project{}, errs.ErrNotFound
	}
	return p, err
}

// Create inserts a project. The total always starts at zero.
func (r *ProjectRepo) Create(ctx context.Context, p model.Project) (model.Project, error) {
	const q = `
INSERT INTO projects (id, name, description, color, total_time_spent, goal_hours, created_at, updated_at)
VALUES ($1, $2, $3, $4, 0, $5, $6, $7)`
	_, err := r.db.Pool.Exec(ctx, q, p.ID, p.Name, p.Description, string(p.Color), p.GoalHours, p.CreatedAt, p.UpdatedAt)
	if isUniqueViolation(err) {
		return model.Project{}, errs.ErrAlreadyExists
	}
	if err != nil {
		return model.Project{}, err
	}
	p.TotalTimeSpent = 0
	return p, nil
}

// Update rewrites the descriptive fields and returns the stored total and creation time.
func (r *ProjectRepo) Update(ctx context.Context, p model.Project) (model.Project, error) {
	const q = `
UPDATE projects SET name=$2, description=$3, color=$4, goal_hours=$5, updated_at=$6
WHERE id=$1
RETURNING total_time_spent, created_at`
	var (
		total   int64
		created time.Time
	)
	err := r.db.Pool.QueryRow(ctx, q, p.ID, p.Name, p.Description, string(p.Color), p.GoalHours, p.UpdatedAt).Scan(&total, &created)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Project{}, errs.ErrNotFound
	}
	if err != nil {
		return model.Project{}, err
	}
	p.TotalTimeSpent = total
	p.CreatedAt = created
	return p, nil
}

// Delete removes a project; its sessions go with it via ON DELETE CASCADE.
func (r *ProjectRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM projects WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
