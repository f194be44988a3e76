package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/fairyhunter13/pain-radar/internal/domain"
	"github.com/fairyhunter13/pain-radar/internal/observability"
)

// WatchlistService scans recent signals against keyword watchlists.
type WatchlistService struct {
	Watchlists domain.WatchlistRepository
}

// NewWatchlistService constructs a WatchlistService with its dependency.
func NewWatchlistService(w domain.WatchlistRepository) *WatchlistService {
	return &WatchlistService{Watchlists: w}
}

// Create validates and stores a watchlist. An empty name gets a generated
// one from the leading keywords.
func (s *WatchlistService) Create(ctx context.Context, w domain.Watchlist) (int64, error) {
	if len(w.Keywords) == 0 {
		return 0, fmt.Errorf("op=watchlist.create: %w: at least one keyword required", domain.ErrInvalidArgument)
	}
	if w.Name == "" {
		w.Name = generatedWatchlistName(w.Keywords)
	}
	id, err := s.Watchlists.Create(ctx, w)
	if err != nil {
		return 0, fmt.Errorf("op=watchlist.create: %w", err)
	}
	return id, nil
}

func generatedWatchlistName(keywords []string) string {
	head := keywords
	if len(head) > 2 {
		head = head[:2]
	}
	name := "Watch: " + strings.Join(head, ", ")
	if rest := len(keywords) - len(head); rest > 0 {
		name += fmt.Sprintf(" (+%d)", rest)
	}
	return name
}

// Scan matches signals created within the window against every active
// watchlist. At most one match per (watchlist, signal) pair is recorded;
// the first matching keyword wins. Re-scanning the same window inserts
// nothing new. Returns the matches inserted by this scan.
func (s *WatchlistService) Scan(ctx context.Context, sinceHours int) ([]domain.AlertMatch, error) {
	log := observability.LoggerFromContext(ctx)

	watchlists, err := s.Watchlists.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("op=watchlist.scan: %w", err)
	}
	if len(watchlists) == 0 {
		return nil, nil
	}

	signals, err := s.Watchlists.RecentSignals(ctx, sinceHours)
	if err != nil {
		return nil, fmt.Errorf("op=watchlist.scan: %w", err)
	}

	var inserted []domain.AlertMatch
	for _, sig := range signals {
		haystack := strings.ToLower(sig.Summary + " " + sig.PainPoint + " " + sig.PostTitle)
		for _, wl := range watchlists {
			if wl.Subreddits != nil && !slices.Contains(wl.Subreddits, sig.Subreddit) {
				continue
			}
			keyword, ok := firstMatch(haystack, wl.Keywords)
			if !ok {
				continue
			}
			match := domain.AlertMatch{WatchlistID: wl.ID, SignalID: sig.SignalID, Keyword: keyword}
			fresh, err := s.Watchlists.InsertMatch(ctx, match)
			if err != nil {
				return nil, fmt.Errorf("op=watchlist.scan: %w", err)
			}
			if fresh {
				inserted = append(inserted, match)
			}
		}
	}
	log.Info("watchlists scanned",
		slog.Int("watchlists", len(watchlists)),
		slog.Int("signals", len(signals)),
		slog.Int("new_matches", len(inserted)))
	return inserted, nil
}

func firstMatch(haystack string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(haystack, strings.ToLower(kw)) {
			return kw, true
		}
	}
	return "", false
}
