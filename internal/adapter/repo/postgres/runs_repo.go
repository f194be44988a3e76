package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/pain-radar/internal/domain"
)

// RunRepo tracks pipeline runs and per-post failures.
type RunRepo struct{ Pool PgxPool }

// NewRunRepo constructs a RunRepo with the given pool.
func NewRunRepo(p PgxPool) *RunRepo { return &RunRepo{Pool: p} }

// CreateRun opens a run in the running state and returns its id.
func (r *RunRepo) CreateRun(ctx context.Context, subreddits []string) (int64, error) {
	tracer := otel.Tracer("repo.runs")
	ctx, span := tracer.Start(ctx, "runs.CreateRun")
	defer span.End()

	srs, err := json.Marshal(subreddits)
	if err != nil {
		return 0, fmt.Errorf("op=runs.create: %w", err)
	}
	var id int64
	q := `INSERT INTO runs (started_at, subreddits, status) VALUES ($1, $2, 'running') RETURNING id`
	if err := r.Pool.QueryRow(ctx, q, time.Now().UTC(), srs).Scan(&id); err != nil {
		return 0, fmt.Errorf("op=runs.create: %w", err)
	}
	return id, nil
}

// UpdateRun writes the terminal counters and status of a run.
func (r *RunRepo) UpdateRun(ctx context.Context, u domain.RunUpdate) error {
	tracer := otel.Tracer("repo.runs")
	ctx, span := tracer.Start(ctx, "runs.UpdateRun")
	defer span.End()

	q := `UPDATE runs SET completed_at=$2, posts_fetched=$3, posts_analyzed=$4,
	  signals_saved=$5, qualified_signals=$6, errors=$7, status=$8 WHERE id=$1`
	if _, err := r.Pool.Exec(ctx, q, u.RunID, time.Now().UTC(), u.PostsFetched, u.PostsAnalyzed,
		u.SignalsSaved, u.QualifiedSignals, u.Errors, string(u.Status)); err != nil {
		return fmt.Errorf("op=runs.update: %w", err)
	}
	return nil
}

const runSelect = `SELECT id, started_at, completed_at, subreddits, posts_fetched,
  posts_analyzed, signals_saved, qualified_signals, errors, status FROM runs`

func scanRun(row pgx.Row) (domain.Run, error) {
	var run domain.Run
	var subreddits []byte
	if err := row.Scan(&run.ID, &run.StartedAt, &run.CompletedAt, &subreddits,
		&run.PostsFetched, &run.PostsAnalyzed, &run.SignalsSaved,
		&run.QualifiedSignals, &run.Errors, &run.Status); err != nil {
		return domain.Run{}, err
	}
	if len(subreddits) > 0 {
		if err := json.Unmarshal(subreddits, &run.Subreddits); err != nil {
			return domain.Run{}, err
		}
	}
	return run, nil
}

// GetRun loads one run by id.
func (r *RunRepo) GetRun(ctx context.Context, id int64) (domain.Run, error) {
	tracer := otel.Tracer("repo.runs")
	ctx, span := tracer.Start(ctx, "runs.GetRun")
	defer span.End()

	run, err := scanRun(r.Pool.QueryRow(ctx, runSelect+` WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Run{}, fmt.Errorf("op=runs.get: %w", domain.ErrNotFound)
		}
		return domain.Run{}, fmt.Errorf("op=runs.get: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (r *RunRepo) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	tracer := otel.Tracer("repo.runs")
	ctx, span := tracer.Start(ctx, "runs.ListRuns")
	defer span.End()

	rows, err := r.Pool.Query(ctx, runSelect+` ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("op=runs.list: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("op=runs.list: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=runs.list: %w", err)
	}
	return runs, nil
}

// RecordFailure appends a failed entry to the processing log.
func (r *RunRepo) RecordFailure(ctx context.Context, postID, errMsg string) error {
	tracer := otel.Tracer("repo.runs")
	ctx, span := tracer.Start(ctx, "runs.RecordFailure")
	defer span.End()

	now := time.Now().UTC()
	q := `INSERT INTO processing_log (post_id, status, error_message, started_at, completed_at)
	VALUES ($1, 'failed', $2, $3, $3)`
	if _, err := r.Pool.Exec(ctx, q, postID, errMsg, now); err != nil {
		return fmt.Errorf("op=runs.record_failure: %w", err)
	}
	return nil
}

var _ domain.RunRepository = (*RunRepo)(nil)
