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

// SourceSetRepo manages curated subreddit bundles.
type SourceSetRepo struct{ Pool PgxPool }

// NewSourceSetRepo constructs a SourceSetRepo with the given pool.
func NewSourceSetRepo(p PgxPool) *SourceSetRepo { return &SourceSetRepo{Pool: p} }

// Create inserts a source set and returns its id.
func (r *SourceSetRepo) Create(ctx context.Context, s domain.SourceSet) (int64, error) {
	tracer := otel.Tracer("repo.source_sets")
	ctx, span := tracer.Start(ctx, "source_sets.Create")
	defer span.End()

	subreddits, err := json.Marshal(s.Subreddits)
	if err != nil {
		return 0, fmt.Errorf("op=source_sets.create: %w", err)
	}
	var id int64
	q := `INSERT INTO source_sets (name, description, preset_key, subreddits, listing, limit_per_sub, is_active, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,TRUE,$7) RETURNING id`
	if err := r.Pool.QueryRow(ctx, q, s.Name, s.Description, s.PresetKey, subreddits, s.Listing, s.LimitPerSub, time.Now().UTC()).Scan(&id); err != nil {
		return 0, fmt.Errorf("op=source_sets.create: %w", err)
	}
	return id, nil
}

const sourceSetSelect = `SELECT id, name, COALESCE(description,''), preset_key, subreddits,
  listing, limit_per_sub, is_active, created_at, updated_at FROM source_sets`

func scanSourceSet(row pgx.Row) (domain.SourceSet, error) {
	var s domain.SourceSet
	var subreddits []byte
	if err := row.Scan(&s.ID, &s.Name, &s.Description, &s.PresetKey, &subreddits,
		&s.Listing, &s.LimitPerSub, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return domain.SourceSet{}, err
	}
	if len(subreddits) > 0 {
		if err := json.Unmarshal(subreddits, &s.Subreddits); err != nil {
			return domain.SourceSet{}, err
		}
	}
	return s, nil
}

// List returns source sets, optionally active only.
func (r *SourceSetRepo) List(ctx context.Context, activeOnly bool) ([]domain.SourceSet, error) {
	tracer := otel.Tracer("repo.source_sets")
	ctx, span := tracer.Start(ctx, "source_sets.List")
	defer span.End()

	q := sourceSetSelect
	if activeOnly {
		q += ` WHERE is_active = TRUE`
	}
	q += ` ORDER BY id`
	rows, err := r.Pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("op=source_sets.list: %w", err)
	}
	defer rows.Close()

	var sets []domain.SourceSet
	for rows.Next() {
		s, err := scanSourceSet(rows)
		if err != nil {
			return nil, fmt.Errorf("op=source_sets.list: %w", err)
		}
		sets = append(sets, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=source_sets.list: %w", err)
	}
	return sets, nil
}

// Get loads one source set by id.
func (r *SourceSetRepo) Get(ctx context.Context, id int64) (domain.SourceSet, error) {
	tracer := otel.Tracer("repo.source_sets")
	ctx, span := tracer.Start(ctx, "source_sets.Get")
	defer span.End()

	s, err := scanSourceSet(r.Pool.QueryRow(ctx, sourceSetSelect+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SourceSet{}, fmt.Errorf("op=source_sets.get: %w", domain.ErrNotFound)
		}
		return domain.SourceSet{}, fmt.Errorf("op=source_sets.get: %w", err)
	}
	return s, nil
}

// GetByPreset finds the active source set adopted from a preset key.
func (r *SourceSetRepo) GetByPreset(ctx context.Context, presetKey string) (domain.SourceSet, error) {
	tracer := otel.Tracer("repo.source_sets")
	ctx, span := tracer.Start(ctx, "source_sets.GetByPreset")
	defer span.End()

	s, err := scanSourceSet(r.Pool.QueryRow(ctx, sourceSetSelect+` WHERE preset_key = $1 AND is_active = TRUE LIMIT 1`, presetKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SourceSet{}, fmt.Errorf("op=source_sets.get_by_preset: %w", domain.ErrNotFound)
		}
		return domain.SourceSet{}, fmt.Errorf("op=source_sets.get_by_preset: %w", err)
	}
	return s, nil
}

// Update changes the mutable fields of a source set; nil fields keep the
// stored value.
func (r *SourceSetRepo) Update(ctx context.Context, id int64, u domain.SourceSetUpdate) error {
	tracer := otel.Tracer("repo.source_sets")
	ctx, span := tracer.Start(ctx, "source_sets.Update")
	defer span.End()

	var subreddits []byte
	if u.Subreddits != nil {
		b, err := json.Marshal(u.Subreddits)
		if err != nil {
			return fmt.Errorf("op=source_sets.update: %w", err)
		}
		subreddits = b
	}
	q := `UPDATE source_sets SET
	  name = COALESCE($2, name),
	  description = COALESCE($3, description),
	  subreddits = COALESCE($4, subreddits),
	  listing = COALESCE($5, listing),
	  limit_per_sub = COALESCE($6, limit_per_sub),
	  updated_at = $7
	WHERE id = $1`
	tag, err := r.Pool.Exec(ctx, q, id, u.Name, u.Description, subreddits, u.Listing, u.LimitPerSub, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=source_sets.update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=source_sets.update: %w", domain.ErrNotFound)
	}
	return nil
}

// Deactivate clears the active flag; the row stays for history.
func (r *SourceSetRepo) Deactivate(ctx context.Context, id int64) error {
	tracer := otel.Tracer("repo.source_sets")
	ctx, span := tracer.Start(ctx, "source_sets.Deactivate")
	defer span.End()

	tag, err := r.Pool.Exec(ctx, `UPDATE source_sets SET is_active = FALSE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=source_sets.deactivate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=source_sets.deactivate: %w", domain.ErrNotFound)
	}
	return nil
}

// AllActiveSubreddits returns the union of subreddits across active sets,
// first occurrence order, deduplicated.
func (r *SourceSetRepo) AllActiveSubreddits(ctx context.Context) ([]string, error) {
	tracer := otel.Tracer("repo.source_sets")
	ctx, span := tracer.Start(ctx, "source_sets.AllActiveSubreddits")
	defer span.End()

	rows, err := r.Pool.Query(ctx, `SELECT subreddits FROM source_sets WHERE is_active = TRUE ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("op=source_sets.all_active: %w", err)
	}
	defer rows.Close()

	seen := map[string]bool{}
	var all []string
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("op=source_sets.all_active: %w", err)
		}
		var subreddits []string
		if err := json.Unmarshal(raw, &subreddits); err != nil {
			return nil, fmt.Errorf("op=source_sets.all_active: %w", err)
		}
		for _, sr := range subreddits {
			if !seen[sr] {
				seen[sr] = true
				all = append(all, sr)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=source_sets.all_active: %w", err)
	}
	return all, nil
}

var _ domain.SourceSetRepository = (*SourceSetRepo)(nil)
