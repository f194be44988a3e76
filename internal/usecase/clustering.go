package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gosimple/slug"

	"github.com/fairyhunter13/pain-radar/internal/domain"
	"github.com/fairyhunter13/pain-radar/internal/observability"
)

// clusterSlugLen bounds the title prefix used in cluster ids.
const clusterSlugLen = 10

// ClusteringService groups recent unclustered pain signals into named
// weekly clusters via the cluster model.
type ClusteringService struct {
	Signals  domain.SignalRepository
	Clusters domain.ClusterRepository
	Model    domain.ClusterModel

	// Now is swappable for tests; defaults to time.Now.
	Now func() time.Time
}

// NewClusteringService constructs a ClusteringService with its dependencies.
func NewClusteringService(signals domain.SignalRepository, clusters domain.ClusterRepository, model domain.ClusterModel) *ClusteringService {
	return &ClusteringService{Signals: signals, Clusters: clusters, Model: model, Now: time.Now}
}

// WeekStart returns the ISO date of the Monday of t's week.
func WeekStart(t time.Time) string {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset).Format("2006-01-02")
}

// ClusterRecent clusters unclustered pain signals from the past days,
// optionally scoped to one subreddit. Clustering is best-effort: a model
// failure yields an empty result, never an error.
func (s *ClusteringService) ClusterRecent(ctx context.Context, subreddit string, days int) ([]domain.Cluster, error) {
	log := observability.LoggerFromContext(ctx)

	items, err := s.Signals.GetUnclusteredPainPoints(ctx, subreddit, days)
	if err != nil {
		return nil, fmt.Errorf("op=clustering.recent: %w", err)
	}
	if len(items) == 0 {
		log.Info("no unclustered signals", slog.String("subreddit", subreddit), slog.Int("days", days))
		return nil, nil
	}

	clusters, err := s.Model.ClusterItems(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("op=clustering.recent: %w", err)
	}
	if len(clusters) == 0 {
		return nil, nil
	}

	weekStart := WeekStart(s.Now())
	seen := map[string]bool{}
	for i := range clusters {
		id, err := s.assignID(ctx, seen, weekStart, clusters[i])
		if err != nil {
			return nil, fmt.Errorf("op=clustering.recent: %w", err)
		}
		clusters[i].ID = id
		clusters[i].WeekStart = weekStart
	}

	if err := s.Clusters.SaveClusters(ctx, clusters, weekStart); err != nil {
		return nil, fmt.Errorf("op=clustering.recent: %w", err)
	}
	log.Info("clusters saved", slog.String("week_start", weekStart), slog.Int("count", len(clusters)))
	return clusters, nil
}

// assignID derives the deterministic cluster id week_start + title slug +
// member count, appending a counter when the tuple collides within the
// batch or with a stored cluster.
func (s *ClusteringService) assignID(ctx context.Context, seen map[string]bool, weekStart string, c domain.Cluster) (string, error) {
	title := []rune(c.Title)
	if len(title) > clusterSlugLen {
		title = title[:clusterSlugLen]
	}
	base := fmt.Sprintf("%s_%s_%d", weekStart, slug.Make(string(title)), len(c.SignalIDs))

	id := base
	for n := 2; ; n++ {
		if !seen[id] {
			exists, err := s.Clusters.ClusterExists(ctx, id)
			if err != nil {
				return "", err
			}
			if !exists {
				break
			}
		}
		id = fmt.Sprintf("%s_%d", base, n)
	}
	seen[id] = true
	return id, nil
}
