package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"nearp/internal/model"
	"nearp/internal/opt"
)

// schema is applied by Migrate. Solution, config and metrics are kept as
// JSONB documents.
const schema = `
CREATE TABLE IF NOT EXISTS solve_runs (
    id          uuid PRIMARY KEY,
    name        text NOT NULL DEFAULT '',
    status      text NOT NULL,
    depot       integer NOT NULL DEFAULT 0,
    config      jsonb NOT NULL,
    solution    jsonb,
    metrics     jsonb,
    error       text,
    created_at  timestamptz NOT NULL,
    finished_at timestamptz
);
CREATE INDEX IF NOT EXISTS solve_runs_created_idx ON solve_runs (created_at, id);
`

const uniqueViolation = "23505"

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

// Migrate creates the tables the store needs when they are missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (p *Postgres) CreateRun(ctx context.Context, run model.Run) error {
	args, err := runArgs(run)
	if err != nil {
		return fmt.Errorf("create run %s: %w", run.ID, err)
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO solve_runs (id, name, status, depot, config, solution, metrics, error, created_at, finished_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("create run %s: %w", run.ID, ErrConflict)
		}
		return fmt.Errorf("create run %s: %w", run.ID, err)
	}
	return nil
}

func (p *Postgres) UpdateRun(ctx context.Context, run model.Run) error {
	args, err := runArgs(run)
	if err != nil {
		return fmt.Errorf("update run %s: %w", run.ID, err)
	}
	res, err := p.db.ExecContext(ctx, `UPDATE solve_runs SET name=$2, status=$3, depot=$4, config=$5, solution=$6, metrics=$7, error=$8, created_at=$9, finished_at=$10 WHERE id=$1`, args...)
	if err != nil {
		return fmt.Errorf("update run %s: %w", run.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

const runColumns = `id::text, name, status, depot, config, solution, metrics, error, created_at, finished_at`

func (p *Postgres) GetRun(ctx context.Context, id string) (model.Run, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM solve_runs WHERE id::text=$1`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, ErrNotFound
	}
	if err != nil {
		return model.Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return r, nil
}

func (p *Postgres) ListRuns(ctx context.Context, cursor string, limit int) ([]model.Run, string, error) {
	limit = pageSize(limit)
	var rows *sql.Rows
	var err error
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT `+runColumns+` FROM solve_runs
            WHERE (created_at, id) > (SELECT created_at, id FROM solve_runs WHERE id::text=$1)
            ORDER BY created_at, id LIMIT $2`, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT `+runColumns+` FROM solve_runs ORDER BY created_at, id LIMIT $1`, limit)
	}
	if err != nil {
		return nil, "", fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	out := []model.Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, "", fmt.Errorf("list runs: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("list runs: %w", err)
	}
	next := ""
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (model.Run, error) {
	var r model.Run
	var cfg, sol, met []byte
	var errText sql.NullString
	var finished sql.NullTime
	if err := s.Scan(&r.ID, &r.Name, &r.Status, &r.Depot, &cfg, &sol, &met, &errText, &r.CreatedAt, &finished); err != nil {
		return r, err
	}
	if err := json.Unmarshal(cfg, &r.Config); err != nil {
		return r, fmt.Errorf("decode config: %w", err)
	}
	if len(sol) > 0 {
		r.Solution = &model.Solution{}
		if err := json.Unmarshal(sol, r.Solution); err != nil {
			return r, fmt.Errorf("decode solution: %w", err)
		}
	}
	if len(met) > 0 {
		r.Metrics = &opt.Metrics{}
		if err := json.Unmarshal(met, r.Metrics); err != nil {
			return r, fmt.Errorf("decode metrics: %w", err)
		}
	}
	r.Error = errText.String
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return r, nil
}

// runArgs lays out run in column order for INSERT and UPDATE.
func runArgs(run model.Run) ([]any, error) {
	cfg, err := json.Marshal(run.Config)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	sol, err := jsonOrNil(run.Solution)
	if err != nil {
		return nil, fmt.Errorf("encode solution: %w", err)
	}
	met, err := jsonOrNil(run.Metrics)
	if err != nil {
		return nil, fmt.Errorf("encode metrics: %w", err)
	}
	var finished any
	if run.FinishedAt != nil {
		finished = run.FinishedAt.UTC()
	}
	created := run.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return []any{run.ID, run.Name, run.Status, run.Depot, cfg, sol, met, nullIfEmpty(run.Error), created.UTC(), finished}, nil
}

// jsonOrNil encodes v, mapping a nil pointer to SQL NULL.
func jsonOrNil[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
