package usecase

import (
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/fairyhunter13/pain-radar/internal/domain"
)

// Default dedupe parameters. Both the threshold and the field weights are
// tunable per instance.
const (
	DefaultSimilarityThreshold = 0.75
	defaultSummaryWeight       = 0.5
	defaultPainWeight          = 0.25
	defaultTargetWeight        = 0.25
)

// Deduplicator groups near-identical extractions using token-set fuzzy
// matching, which tolerates word-order differences and repeated tokens.
type Deduplicator struct {
	Threshold     float64
	SummaryWeight float64
	PainWeight    float64
	TargetWeight  float64
}

// NewDeduplicator returns a Deduplicator with the default threshold and
// field weights.
func NewDeduplicator() Deduplicator {
	return Deduplicator{
		Threshold:     DefaultSimilarityThreshold,
		SummaryWeight: defaultSummaryWeight,
		PainWeight:    defaultPainWeight,
		TargetWeight:  defaultTargetWeight,
	}
}

// DedupeItem is one (post, extraction) pair fed into the deduplicator.
type DedupeItem struct {
	PostID     string
	Extraction domain.Extraction
}

// DedupeGroup is a canonical item plus the post ids it absorbed.
type DedupeGroup struct {
	PostID           string
	Extraction       domain.Extraction
	DuplicatePostIDs []string
}

// similarityRatio is a case-insensitive token-set ratio normalized to [0,1].
func similarityRatio(a, b string) float64 {
	return float64(fuzzy.TokenSetRatio(strings.ToLower(a), strings.ToLower(b))) / 100.0
}

// combinedSimilarity weights summary, pain point, and target user. A field
// empty on either side contributes zero.
func (d Deduplicator) combinedSimilarity(a, b domain.Extraction) float64 {
	sum := similarityRatio(a.SignalSummary, b.SignalSummary) * d.SummaryWeight
	if a.PainPoint != "" && b.PainPoint != "" {
		sum += similarityRatio(a.PainPoint, b.PainPoint) * d.PainWeight
	}
	if a.TargetUser != "" && b.TargetUser != "" {
		sum += similarityRatio(a.TargetUser, b.TargetUser) * d.TargetWeight
	}
	return sum
}

// Dedupe partitions items in input order: the first unassigned item becomes
// a canonical and absorbs every later item whose combined similarity meets
// the threshold. Sentinel "no viable" summaries are never canonical
// candidates and never merge; each stays a singleton group.
func (d Deduplicator) Dedupe(items []DedupeItem) []DedupeGroup {
	if len(items) == 0 {
		return nil
	}

	assigned := make(map[string]bool, len(items))
	groups := make([]DedupeGroup, 0, len(items))

	for i, item := range items {
		if assigned[item.PostID] {
			continue
		}
		assigned[item.PostID] = true

		if item.Extraction.IsNoViable() {
			groups = append(groups, DedupeGroup{PostID: item.PostID, Extraction: item.Extraction})
			continue
		}

		var duplicates []string
		for _, other := range items[i+1:] {
			if assigned[other.PostID] || other.Extraction.IsNoViable() {
				continue
			}
			if d.combinedSimilarity(item.Extraction, other.Extraction) >= d.Threshold {
				duplicates = append(duplicates, other.PostID)
				assigned[other.PostID] = true
			}
		}
		groups = append(groups, DedupeGroup{PostID: item.PostID, Extraction: item.Extraction, DuplicatePostIDs: duplicates})
	}
	return groups
}
