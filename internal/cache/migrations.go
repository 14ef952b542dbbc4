package cache

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pressly/goose/v3"

	"github.com/and161185/timekeeper/internal/model"
)

// projectIndexMigration adds sessions.project_id, backfilled from the stored JSON.
func projectIndexMigration() *goose.Migration {
	return goose.NewGoMigration(2,
		&goose.GoFunc{RunTx: upProjectIndex},
		&goose.GoFunc{RunTx: downProjectIndex},
	)
}

func upProjectIndex(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `ALTER TABLE sessions ADD COLUMN project_id TEXT NOT NULL DEFAULT ''`); err != nil {
		return err
	}
	rows, err := tx.QueryContext(ctx, `SELECT id, data FROM sessions`)
	if err != nil {
		return err
	}
	type pair struct{ id, project string }
	var todo []pair
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			rows.Close()
			return err
		}
		var s model.Session
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			continue
		}
		todo = append(todo, pair{id, s.ProjectID.String()})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()
	for _, p := range todo {
		if _, err := tx.ExecContext(ctx, `UPDATE sessions SET project_id = ? WHERE id = ?`, p.project, p.id); err != nil {
			return err
		}
	}
	_, err = tx.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_sessions_project ON sessions(project_id)`)
	return err
}

func downProjectIndex(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `DROP INDEX IF EXISTS idx_sessions_project`); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `ALTER TABLE sessions DROP COLUMN project_id`)
	return err
}
