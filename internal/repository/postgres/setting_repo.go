package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/timekeeper/internal/errs"
	"github.com/and161185/timekeeper/internal/model"
)

// SettingRepo implements SettingRepository using PostgreSQL.
type SettingRepo struct{ db *DB }

// NewSettingRepo constructs a settings repository.
func NewSettingRepo(db *DB) *SettingRepo { return &SettingRepo{db: db} }

// All returns every stored setting.
func (r *SettingRepo) All(ctx context.Context) (model.Settings, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := model.Settings{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[model.SettingKey(k)] = v
	}
	return out, rows.Err()
}

// Get returns one value.
func (r *SettingRepo) Get(ctx context.Context, key model.SettingKey) (string, error) {
	var v string
	err := r.db.Pool.QueryRow(ctx, `SELECT value FROM settings WHERE key=$1`, string(key)).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", errs.ErrNotFound
	}
	return v, err
}

// Put inserts or overwrites a value.
func (r *SettingRepo) Put(ctx context.Context, key model.SettingKey, value string) error {
	const q = `
INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=now()`
	_, err := r.db.Pool.Exec(ctx, q, string(key), value)
	return err
}
