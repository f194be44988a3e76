package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/fairyhunter13/pain-radar/internal/domain"
	"github.com/fairyhunter13/pain-radar/internal/observability"
)

// Clusterer groups cluster items into named pain pattern clusters with a
// single LLM call. Implements domain.ClusterModel.
type Clusterer struct {
	llm chatter
}

// NewClusterer builds a clusterer over the given client.
func NewClusterer(llm chatter) *Clusterer {
	return &Clusterer{llm: llm}
}

type clusterInputItem struct {
	ID        int64    `json:"id"`
	Summary   string   `json:"summary"`
	PainPoint string   `json:"pain_point"`
	Subreddit string   `json:"subreddit"`
	URL       string   `json:"url"`
	Quotes    []string `json:"quotes"`
}

type clusterOutput struct {
	Clusters []domain.Cluster `json:"clusters"`
}

// ClusterItems asks the model for named groups. Model errors and malformed
// responses yield an empty list; clustering is best-effort.
func (c *Clusterer) ClusterItems(ctx context.Context, items []domain.ClusterItem) ([]domain.Cluster, error) {
	lg := observability.LoggerFromContext(ctx)
	if len(items) == 0 {
		return nil, nil
	}

	known := make(map[int64]bool, len(items))
	input := make([]clusterInputItem, 0, len(items))
	for _, item := range items {
		known[item.ID] = true
		var quotes []string
		for _, ev := range item.Evidence {
			if ev.SignalType == domain.SignalPain {
				quotes = append(quotes, ev.Quote)
			}
		}
		input = append(input, clusterInputItem{
			ID:        item.ID,
			Summary:   item.Summary,
			PainPoint: item.PainPoint,
			Subreddit: item.Subreddit,
			URL:       item.URL,
			Quotes:    quotes,
		})
	}

	itemsJSON, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("op=ai.ClusterItems: %w", err)
	}

	content, err := c.llm.ChatJSON(ctx, clusterSystemPrompt, fmt.Sprintf(clusterUserTemplate, itemsJSON))
	if err != nil {
		lg.Warn("clustering call failed", slog.Any("error", err))
		return nil, nil
	}

	var out clusterOutput
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		lg.Warn("clustering response malformed", slog.Any("error", err))
		return nil, nil
	}

	// Keep only member ids that exist in the input; drop empty clusters.
	clusters := make([]domain.Cluster, 0, len(out.Clusters))
	for _, cl := range out.Clusters {
		var ids []int64
		for _, id := range cl.SignalIDs {
			if known[id] {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			continue
		}
		cl.SignalIDs = ids
		clusters = append(clusters, cl)
	}
	lg.Info("clustering complete",
		slog.Int("items", len(items)),
		slog.Int("clusters", len(clusters)))
	return clusters, nil
}

var _ domain.ClusterModel = (*Clusterer)(nil)
