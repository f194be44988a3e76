package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/pain-radar/internal/domain"
)

// ClusterRepo materializes weekly pain clusters.
type ClusterRepo struct{ Pool PgxPool }

// NewClusterRepo constructs a ClusterRepo with the given pool.
func NewClusterRepo(p PgxPool) *ClusterRepo { return &ClusterRepo{Pool: p} }

// SaveClusters inserts the clusters and sets the cluster back-reference on
// every member signal inside one transaction.
func (r *ClusterRepo) SaveClusters(ctx context.Context, clusters []domain.Cluster, weekStart string) error {
	tracer := otel.Tracer("repo.clusters")
	ctx, span := tracer.Start(ctx, "clusters.SaveClusters")
	defer span.End()

	tx, err := r.Pool.BeginTx(ctx, pgxTxOptions())
	if err != nil {
		return fmt.Errorf("op=clusters.save: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	insert := `INSERT INTO clusters (id, title, summary, week_start, target_audience, why_it_matters, quotes, urls, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	backlink := `UPDATE signals SET cluster_id = $1 WHERE id = ANY($2)`

	now := time.Now().UTC()
	for _, c := range clusters {
		quotes, err := json.Marshal(c.Quotes)
		if err != nil {
			return fmt.Errorf("op=clusters.save: %w", err)
		}
		urls, err := json.Marshal(c.URLs)
		if err != nil {
			return fmt.Errorf("op=clusters.save: %w", err)
		}
		if _, err := tx.Exec(ctx, insert, c.ID, c.Title, c.Summary, weekStart, c.TargetAudience, c.WhyItMatters, quotes, urls, now); err != nil {
			return fmt.Errorf("op=clusters.save: %w", err)
		}
		if _, err := tx.Exec(ctx, backlink, c.ID, c.SignalIDs); err != nil {
			return fmt.Errorf("op=clusters.save: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("op=clusters.save: %w", err)
	}
	return nil
}

// ClusterExists reports whether a cluster id is already taken.
func (r *ClusterRepo) ClusterExists(ctx context.Context, id string) (bool, error) {
	tracer := otel.Tracer("repo.clusters")
	ctx, span := tracer.Start(ctx, "clusters.ClusterExists")
	defer span.End()

	var exists bool
	if err := r.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM clusters WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("op=clusters.exists: %w", err)
	}
	return exists, nil
}

var _ domain.ClusterRepository = (*ClusterRepo)(nil)
