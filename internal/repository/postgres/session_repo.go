package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/timekeeper/internal/errs"
	"github.com/and161185/timekeeper/internal/model"
)

// SessionRepo implements SessionRepository using PostgreSQL.
// Every write that changes a completed duration adjusts projects.total_time_spent
// in the same transaction.
type SessionRepo struct{ db *DB }

// NewSessionRepo constructs a session repository.
func NewSessionRepo(db *DB) *SessionRepo { return &SessionRepo{db: db} }

const sessionCols = `id, project_id, start_time, end_time, duration, type, initial_duration`

const (
	lockProject = `SELECT id FROM projects WHERE id=$1 FOR UPDATE`
	bumpTotal   = `UPDATE projects SET total_time_spent = GREATEST(0, total_time_spent + $2) WHERE id=$1`
)

func scanSession(row pgx.Row) (model.Session, error) {
	var (
		s   model.Session
		typ string
	)
	if err := row.Scan(&s.ID, &s.ProjectID, &s.StartTime, &s.EndTime, &s.Duration, &typ, &s.InitialDuration); err != nil {
		return model.Session{}, err
	}
	s.Type = model.SessionType(typ)
	return s, nil
}

// credit is what a session contributes to its project total.
func credit(s model.Session) int64 {
	if s.EndTime == nil {
		return 0
	}
	return s.Duration
}

func (r *SessionRepo) query(ctx context.Context, q string, args ...any) ([]model.Session, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// List returns all sessions, newest first.
func (r *SessionRepo) List(ctx context.Context) ([]model.Session, error) {
	return r.query(ctx, `SELECT `+sessionCols+` FROM sessions ORDER BY start_time DESC`)
}

// ListByProject returns the sessions of one project, newest first.
func (r *SessionRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]model.Session, error) {
	return r.query(ctx, `SELECT `+sessionCols+` FROM sessions WHERE project_id=$1 ORDER BY start_time DESC`, projectID)
}

// ListActive returns the sessions that have not been completed.
func (r *SessionRepo) ListActive(ctx context.Context) ([]model.Session, error) {
	return r.query(ctx, `SELECT `+sessionCols+` FROM sessions WHERE status='active' ORDER BY start_time DESC`)
}

// Get returns one session by id.
func (r *SessionRepo) Get(ctx context.Context, id uuid.UUID) (model.Session, error) {
	s, err := scanSession(r.db.Pool.QueryRow(ctx, `SELECT `+sessionCols+` FROM sessions WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Session{}, errs.ErrNotFound
	}
	return s, err
}

func requireProject(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	var got uuid.UUID
	err := tx.QueryRow(ctx, lockProject, id).Scan(&got)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: unknown project %s", errs.ErrValidation, id)
	}
	return err
}

func lockSession(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.Session, error) {
	s, err := scanSession(tx.QueryRow(ctx, `SELECT `+sessionCols+` FROM sessions WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Session{}, errs.ErrNotFound
	}
	return s, err
}

func bump(ctx context.Context, tx pgx.Tx, projectID uuid.UUID, delta int64) error {
	if delta == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, bumpTotal, projectID, delta)
	return err
}

func insertSession(ctx context.Context, tx pgx.Tx, s model.Session) error {
	const ins = `
INSERT INTO sessions (id, project_id, start_time, end_time, duration, type, initial_duration, status, last_updated)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())`
	_, err := tx.Exec(ctx, ins, s.ID, s.ProjectID, s.StartTime, s.EndTime, s.Duration, string(s.Type), s.InitialDuration, string(s.Status()))
	switch {
	case isUniqueViolation(err):
		return errs.ErrAlreadyExists
	case isForeignKeyViolation(err):
		return fmt.Errorf("%w: unknown project %s", errs.ErrValidation, s.ProjectID)
	}
	return err
}

// Create inserts a session and credits a completed one to its project.
func (r *SessionRepo) Create(ctx context.Context, s model.Session) (model.Session, error) {
	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		if err := requireProject(ctx, tx, s.ProjectID); err != nil {
			return err
		}
		if err := insertSession(ctx, tx, s); err != nil {
			return err
		}
		return bump(ctx, tx, s.ProjectID, credit(s))
	})
	if err != nil {
		return model.Session{}, err
	}
	return s, nil
}

// Update replaces a session and moves its credit between project totals.
func (r *SessionRepo) Update(ctx context.Context, s model.Session) (model.Session, error) {
	const upd = `
UPDATE sessions SET project_id=$2, start_time=$3, end_time=$4, duration=$5, type=$6, initial_duration=$7, status=$8, last_updated=now()
WHERE id=$1`
	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		old, err := lockSession(ctx, tx, s.ID)
		if err != nil {
			return err
		}
		if s.ProjectID != old.ProjectID {
			if err := requireProject(ctx, tx, s.ProjectID); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx, upd, s.ID, s.ProjectID, s.StartTime, s.EndTime, s.Duration, string(s.Type), s.InitialDuration, string(s.Status())); err != nil {
			return err
		}
		if s.ProjectID == old.ProjectID {
			return bump(ctx, tx, s.ProjectID, credit(s)-credit(old))
		}
		if err := bump(ctx, tx, old.ProjectID, -credit(old)); err != nil {
			return err
		}
		return bump(ctx, tx, s.ProjectID, credit(s))
	})
	if err != nil {
		return model.Session{}, err
	}
	return s, nil
}

// Delete removes a session and withdraws its credit.
func (r *SessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		old, err := lockSession(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM sessions WHERE id=$1`, id); err != nil {
			return err
		}
		return bump(ctx, tx, old.ProjectID, -credit(old))
	})
}

// UpsertActive inserts a running session or refreshes its elapsed duration.
// A session that is already completed is rejected.
func (r *SessionRepo) UpsertActive(ctx context.Context, s model.Session) (model.Session, error) {
	const refresh = `UPDATE sessions SET duration=$2, last_updated=now() WHERE id=$1`
	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		old, err := lockSession(ctx, tx, s.ID)
		switch {
		case errors.Is(err, errs.ErrNotFound):
			if err := requireProject(ctx, tx, s.ProjectID); err != nil {
				return err
			}
			return insertSession(ctx, tx, s)
		case err != nil:
			return err
		case old.EndTime != nil:
			return fmt.Errorf("%w: session %s is already completed", errs.ErrValidation, s.ID)
		}
		_, err = tx.Exec(ctx, refresh, s.ID, s.Duration)
		return err
	})
	if err != nil {
		return model.Session{}, err
	}
	return s, nil
}

// CompleteActive finalizes a running session and credits its project.
func (r *SessionRepo) CompleteActive(ctx context.Context, id uuid.UUID, end time.Time, duration int64) (model.Session, error) {
	const fin = `UPDATE sessions SET end_time=$2, duration=$3, status='completed', last_updated=now() WHERE id=$1`
	var done model.Session
	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		s, err := lockSession(ctx, tx, id)
		if err != nil {
			return err
		}
		if s.EndTime != nil {
			return errs.ErrNotFound
		}
		if end.Before(s.StartTime) {
			return fmt.Errorf("%w: endTime precedes startTime", errs.ErrValidation)
		}
		if _, err := tx.Exec(ctx, fin, id, end, duration); err != nil {
			return err
		}
		done = s.Complete(end, duration)
		return bump(ctx, tx, s.ProjectID, duration)
	})
	if err != nil {
		return model.Session{}, err
	}
	return done, nil
}
