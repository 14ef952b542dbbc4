// Package cache is the durable on-device mirror of projects, completed sessions
// and small state slots, backed by SQLite.
package cache

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/and161185/timekeeper/internal/errs"
	"github.com/and161185/timekeeper/internal/model"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// FileName is the database file created inside the data directory.
const FileName = "timekeeper.db"

const slotCurrent = "current"

// Cache is safe for concurrent use; SQLite serializes writers.
type Cache struct {
	db       *sql.DB
	provider *goose.Provider
	log      *zap.Logger
}

// Open opens or creates the database in dir and applies pending migrations.
func Open(ctx context.Context, dir string, log *zap.Logger) (*Cache, error) {
	const op = "cache.open"
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errs.E(errs.KindStorage, op, err)
	}
	dsn := filepath.Join(dir, FileName) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errs.E(errs.KindStorage, op, err)
	}
	db.SetMaxOpenConns(1)

	sub, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		_ = db.Close()
		return nil, errs.E(errs.KindStorage, op, err)
	}
	p, err := goose.NewProvider(goose.DialectSQLite3, db, sub,
		goose.WithDisableGlobalRegistry(true),
		goose.WithGoMigrations(projectIndexMigration()),
		goose.WithLogger(gooseLogger{log.Sugar()}),
	)
	if err != nil {
		_ = db.Close()
		return nil, errs.E(errs.KindStorage, op, err)
	}
	res, err := p.Up(ctx)
	if err != nil {
		_ = db.Close()
		return nil, errs.E(errs.KindStorage, op, fmt.Errorf("migrate: %w", err))
	}
	for _, r := range res {
		log.Debug("cache migration applied", zap.Int64("version", r.Source.Version), zap.Duration("took", r.Duration))
	}
	return &Cache{db: db, provider: p, log: log}, nil
}

// Close releases the database.
func (c *Cache) Close() error { return c.db.Close() }

// SchemaVersion reports the applied migration version.
func (c *Cache) SchemaVersion(ctx context.Context) (int64, error) {
	v, err := c.provider.GetDBVersion(ctx)
	if err != nil {
		return 0, storageErr("cache.version", err)
	}
	return v, nil
}

// Projects returns all cached projects ordered by name.
func (c *Cache) Projects(ctx context.Context) ([]model.Project, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT data FROM projects ORDER BY name, id`)
	if err != nil {
		return nil, storageErr("cache.projects", err)
	}
	return scanJSON[model.Project](rows, "cache.projects")
}

// Project returns one project or errs.ErrNotFound.
func (c *Cache) Project(ctx context.Context, id uuid.UUID) (model.Project, error) {
	var p model.Project
	err := c.getJSON(ctx, "cache.project", `SELECT data FROM projects WHERE id = ?`, id.String(), &p)
	return p, err
}

// PutProject inserts or replaces a project.
func (c *Cache) PutProject(ctx context.Context, p model.Project) error {
	data, err := json.Marshal(p)
	if err != nil {
		return storageErr("cache.put_project", err)
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, data) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, data = excluded.data`,
		p.ID.String(), p.Name, string(data))
	return storageErr("cache.put_project", err)
}

// DeleteProject removes a project and its sessions.
func (c *Cache) DeleteProject(ctx context.Context, id uuid.UUID) error {
	const op = "cache.delete_project"
	return c.inTx(ctx, op, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE project_id = ?`, id.String()); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id.String())
		return err
	})
}

// Sessions returns all cached sessions ordered by start time.
func (c *Cache) Sessions(ctx context.Context) ([]model.Session, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT data FROM sessions ORDER BY start_ns, id`)
	if err != nil {
		return nil, storageErr("cache.sessions", err)
	}
	return scanJSON[model.Session](rows, "cache.sessions")
}

// SessionsByProject returns the sessions of one project ordered by start time.
func (c *Cache) SessionsByProject(ctx context.Context, projectID uuid.UUID) ([]model.Session, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT data FROM sessions WHERE project_id = ? ORDER BY start_ns, id`, projectID.String())
	if err != nil {
		return nil, storageErr("cache.sessions_by_project", err)
	}
	return scanJSON[model.Session](rows, "cache.sessions_by_project")
}

// Session returns one session or errs.ErrNotFound.
func (c *Cache) Session(ctx context.Context, id uuid.UUID) (model.Session, error) {
	var s model.Session
	err := c.getJSON(ctx, "cache.session", `SELECT data FROM sessions WHERE id = ?`, id.String(), &s)
	return s, err
}

// PutSession inserts or replaces a session.
func (c *Cache) PutSession(ctx context.Context, s model.Session) error {
	return storageErr("cache.put_session", putSession(ctx, c.db, s))
}

// DeleteSession removes a session; missing ids are ignored.
func (c *Cache) DeleteSession(ctx context.Context, id uuid.UUID) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id.String())
	return storageErr("cache.delete_session", err)
}

// ReplaceAll swaps the cached projects and sessions for the given sets in one transaction.
// A nil slice leaves that table untouched.
func (c *Cache) ReplaceAll(ctx context.Context, projects []model.Project, sessions []model.Session) error {
	return c.inTx(ctx, "cache.replace_all", func(tx *sql.Tx) error {
		if projects != nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM projects`); err != nil {
				return err
			}
			for _, p := range projects {
				data, err := json.Marshal(p)
				if err != nil {
					return err
				}
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO projects (id, name, data) VALUES (?, ?, ?)`,
					p.ID.String(), p.Name, string(data)); err != nil {
					return err
				}
			}
		}
		if sessions != nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM sessions`); err != nil {
				return err
			}
			for _, s := range sessions {
				if err := putSession(ctx, tx, s); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// ImportSnapshot seeds an empty cache. It reports false and changes nothing when data already exists.
func (c *Cache) ImportSnapshot(ctx context.Context, projects []model.Project, sessions []model.Session) (bool, error) {
	var n int
	err := c.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM projects) + (SELECT COUNT(*) FROM sessions)`).Scan(&n)
	if err != nil {
		return false, storageErr("cache.import", err)
	}
	if n > 0 {
		return false, nil
	}
	if err := c.ReplaceAll(ctx, nonNil(projects), nonNil(sessions)); err != nil {
		return false, err
	}
	c.log.Info("cache seeded from snapshot", zap.Int("projects", len(projects)), zap.Int("sessions", len(sessions)))
	return true, nil
}

// LoadSlot decodes the value stored under key into v. Missing keys yield errs.ErrNotFound,
// undecodable values errs.ErrCorrupt.
func (c *Cache) LoadSlot(ctx context.Context, key string, v any) error {
	const op = "cache.load_slot"
	var raw string
	err := c.db.QueryRowContext(ctx, `SELECT value FROM slots WHERE key = ?`, key).Scan(&raw)
	if err != nil {
		return storageErr(op, err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return errs.E(errs.KindCorrupt, op, fmt.Errorf("slot %q: %w", key, err))
	}
	return nil
}

// SaveSlot stores v as JSON under key.
func (c *Cache) SaveSlot(ctx context.Context, key string, v any) error {
	const op = "cache.save_slot"
	data, err := json.Marshal(v)
	if err != nil {
		return storageErr(op, err)
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO slots (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(data), time.Now().UnixNano())
	return storageErr(op, err)
}

// LoadCurrent reads the current-session slot.
func (c *Cache) LoadCurrent(ctx context.Context) (model.CurrentSession, error) {
	var cur model.CurrentSession
	if err := c.LoadSlot(ctx, slotCurrent, &cur); err != nil {
		return model.CurrentSession{}, err
	}
	return cur, nil
}

// SaveCurrent writes the current-session slot.
func (c *Cache) SaveCurrent(ctx context.Context, cur model.CurrentSession) error {
	if cur.ActiveSessions == nil {
		cur.ActiveSessions = []model.Session{}
	}
	return c.SaveSlot(ctx, slotCurrent, cur)
}

// Settings reads the cached settings map.
func (c *Cache) Settings(ctx context.Context) (model.Settings, error) {
	s := model.Settings{}
	if err := c.LoadSlot(ctx, "settings", &s); err != nil {
		return nil, err
	}
	return s, nil
}

// SaveSettings replaces the cached settings map.
func (c *Cache) SaveSettings(ctx context.Context, s model.Settings) error {
	return c.SaveSlot(ctx, "settings", s)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func putSession(ctx context.Context, db execer, s model.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO sessions (id, project_id, start_ns, data) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET project_id = excluded.project_id, start_ns = excluded.start_ns, data = excluded.data`,
		s.ID.String(), s.ProjectID.String(), s.StartTime.UnixNano(), string(data))
	return err
}

func (c *Cache) getJSON(ctx context.Context, op, query, id string, v any) error {
	var raw string
	if err := c.db.QueryRowContext(ctx, query, id).Scan(&raw); err != nil {
		return storageErr(op, err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return errs.E(errs.KindCorrupt, op, err)
	}
	return nil
}

func (c *Cache) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return storageErr(op, err)
	}
	return storageErr(op, tx.Commit())
}

func scanJSON[T any](rows *sql.Rows, op string) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, storageErr(op, err)
		}
		var v T
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, errs.E(errs.KindCorrupt, op, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return out, nil
}

func storageErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return errs.E(errs.KindNotFound, op, errs.ErrNotFound)
	default:
		return errs.E(errs.KindStorage, op, err)
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

type gooseLogger struct{ *zap.SugaredLogger }

func (l gooseLogger) Printf(format string, v ...any) {
	l.Debugf(strings.TrimSpace(format), v...)
}
