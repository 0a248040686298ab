// Package catalog records render jobs in Postgres so finished renders can be
// listed after the process that ran them is gone.
package catalog

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ivlev/daybyday/internal/jobs"
	"github.com/ivlev/daybyday/internal/pkg/errors"
)

// Execer is the part of *pgxpool.Pool the catalog needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS render_jobs (
	id            TEXT PRIMARY KEY,
	state         TEXT NOT NULL,
	entries       INTEGER NOT NULL,
	settings_json JSONB NOT NULL,
	artifact      TEXT,
	reason        TEXT,
	placeholders  TEXT[] NOT NULL DEFAULT '{}',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	finished_at   TIMESTAMPTZ
)`

// maxReasonLen keeps failure text to a sane size.
const maxReasonLen = 2000

type Catalog struct {
	db Execer
}

func New(db Execer) *Catalog {
	return &Catalog{db: db}
}

func (c *Catalog) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.Exec(ctx, schemaSQL); err != nil {
		return errors.WrapWithCode(err, errors.CodeStorage, "catalog.schema", "render catalog schema could not be created")
	}
	return nil
}

// JobStarted inserts the job row. A row with the same id is left alone.
func (c *Catalog) JobStarted(ctx context.Context, req jobs.Request, snap jobs.Snapshot) error {
	settings, err := json.Marshal(req.Settings)
	if err != nil {
		return errors.Wrap(err, "catalog.started", "render settings could not be encoded")
	}

	_, err = c.db.Exec(ctx,
		`INSERT INTO render_jobs (id, state, entries, settings_json, created_at)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (id) DO NOTHING`,
		snap.ID, string(snap.State), snap.Entries, string(settings), snap.CreatedAt,
	)
	return classify(err, "catalog.started")
}

// JobFinished stores the outcome of the job.
func (c *Catalog) JobFinished(ctx context.Context, snap jobs.Snapshot) error {
	var (
		artifact, reason *string
		placeholders     = []string{}
	)
	if r := snap.Result; r != nil {
		if r.Handle != "" {
			artifact = &r.Handle
		}
		if r.Reason != "" {
			msg := r.Reason
			if len(msg) > maxReasonLen {
				msg = msg[:maxReasonLen]
			}
			reason = &msg
		}
		for _, d := range r.Placeholders {
			placeholders = append(placeholders, string(d))
		}
	}

	tag, err := c.db.Exec(ctx,
		`UPDATE render_jobs
		 SET state=$2, artifact=$3, reason=$4, placeholders=$5, finished_at=$6
		 WHERE id=$1`,
		snap.ID, string(snap.State), artifact, reason, placeholders, snap.FinishedAt,
	)
	if err != nil {
		return classify(err, "catalog.finished")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("render job", snap.ID)
	}
	return nil
}

func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if IsUndefinedTable(err) {
		return errors.WrapWithCode(err, errors.CodeConfiguration, op, "render_jobs table is missing, run the schema setup")
	}
	return errors.WrapWithCode(err, errors.CodeStorage, op, "render catalog could not be updated")
}

// IsUndefinedTable reports a Postgres 42P01 (undefined_table) error.
func IsUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42P01"
	}
	return false
}
