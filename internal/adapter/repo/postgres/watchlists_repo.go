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

// WatchlistRepo manages watchlists and their matches.
type WatchlistRepo struct{ Pool PgxPool }

// NewWatchlistRepo constructs a WatchlistRepo with the given pool.
func NewWatchlistRepo(p PgxPool) *WatchlistRepo { return &WatchlistRepo{Pool: p} }

// Create inserts a watchlist and returns its id.
func (r *WatchlistRepo) Create(ctx context.Context, w domain.Watchlist) (int64, error) {
	tracer := otel.Tracer("repo.watchlists")
	ctx, span := tracer.Start(ctx, "watchlists.Create")
	defer span.End()

	keywords, err := json.Marshal(w.Keywords)
	if err != nil {
		return 0, fmt.Errorf("op=watchlists.create: %w", err)
	}
	var subreddits []byte
	if w.Subreddits != nil {
		subreddits, err = json.Marshal(w.Subreddits)
		if err != nil {
			return 0, fmt.Errorf("op=watchlists.create: %w", err)
		}
	}
	var id int64
	q := `INSERT INTO watchlists (name, keywords, subreddits, notification_email, notification_webhook, is_active, created_at)
	VALUES ($1,$2,$3,$4,$5,TRUE,$6) RETURNING id`
	if err := r.Pool.QueryRow(ctx, q, w.Name, keywords, subreddits, w.NotificationEmail, w.NotificationWebhook, time.Now().UTC()).Scan(&id); err != nil {
		return 0, fmt.Errorf("op=watchlists.create: %w", err)
	}
	return id, nil
}

const watchlistSelect = `SELECT id, name, keywords, subreddits, COALESCE(notification_email,''),
  COALESCE(notification_webhook,''), is_active, created_at FROM watchlists`

func scanWatchlist(row pgx.Row) (domain.Watchlist, error) {
	var w domain.Watchlist
	var keywords, subreddits []byte
	if err := row.Scan(&w.ID, &w.Name, &keywords, &subreddits, &w.NotificationEmail,
		&w.NotificationWebhook, &w.Active, &w.CreatedAt); err != nil {
		return domain.Watchlist{}, err
	}
	if err := json.Unmarshal(keywords, &w.Keywords); err != nil {
		return domain.Watchlist{}, err
	}
	if len(subreddits) > 0 {
		if err := json.Unmarshal(subreddits, &w.Subreddits); err != nil {
			return domain.Watchlist{}, err
		}
	}
	return w, nil
}

// List returns watchlists, optionally active only.
func (r *WatchlistRepo) List(ctx context.Context, activeOnly bool) ([]domain.Watchlist, error) {
	tracer := otel.Tracer("repo.watchlists")
	ctx, span := tracer.Start(ctx, "watchlists.List")
	defer span.End()

	q := watchlistSelect
	if activeOnly {
		q += ` WHERE is_active = TRUE`
	}
	q += ` ORDER BY id`
	rows, err := r.Pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("op=watchlists.list: %w", err)
	}
	defer rows.Close()

	var lists []domain.Watchlist
	for rows.Next() {
		w, err := scanWatchlist(rows)
		if err != nil {
			return nil, fmt.Errorf("op=watchlists.list: %w", err)
		}
		lists = append(lists, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=watchlists.list: %w", err)
	}
	return lists, nil
}

// Get loads one watchlist by id.
func (r *WatchlistRepo) Get(ctx context.Context, id int64) (domain.Watchlist, error) {
	tracer := otel.Tracer("repo.watchlists")
	ctx, span := tracer.Start(ctx, "watchlists.Get")
	defer span.End()

	w, err := scanWatchlist(r.Pool.QueryRow(ctx, watchlistSelect+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Watchlist{}, fmt.Errorf("op=watchlists.get: %w", domain.ErrNotFound)
		}
		return domain.Watchlist{}, fmt.Errorf("op=watchlists.get: %w", err)
	}
	return w, nil
}

// Deactivate clears the active flag.
func (r *WatchlistRepo) Deactivate(ctx context.Context, id int64) error {
	tracer := otel.Tracer("repo.watchlists")
	ctx, span := tracer.Start(ctx, "watchlists.Deactivate")
	defer span.End()

	tag, err := r.Pool.Exec(ctx, `UPDATE watchlists SET is_active = FALSE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=watchlists.deactivate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=watchlists.deactivate: %w", domain.ErrNotFound)
	}
	return nil
}

// RecentSignals returns extracted, non-disqualified signals saved within
// the window, joined with their posts for keyword scanning.
func (r *WatchlistRepo) RecentSignals(ctx context.Context, sinceHours int) ([]domain.WatchSignal, error) {
	tracer := otel.Tracer("repo.watchlists")
	ctx, span := tracer.Start(ctx, "watchlists.RecentSignals")
	defer span.End()

	cutoff := time.Now().UTC().Add(-time.Duration(sinceHours) * time.Hour)
	q := `SELECT s.id, s.signal_summary, COALESCE(s.pain_point,''), p.title, p.subreddit, COALESCE(p.permalink,'')
	FROM signals s JOIN posts p ON p.id = s.post_id
	WHERE s.extraction_state = 'extracted' AND s.disqualified = FALSE AND s.created_at >= $1
	ORDER BY s.id`
	rows, err := r.Pool.Query(ctx, q, cutoff)
	if err != nil {
		return nil, fmt.Errorf("op=watchlists.recent_signals: %w", err)
	}
	defer rows.Close()

	var signals []domain.WatchSignal
	for rows.Next() {
		var ws domain.WatchSignal
		if err := rows.Scan(&ws.SignalID, &ws.Summary, &ws.PainPoint, &ws.PostTitle, &ws.Subreddit, &ws.URL); err != nil {
			return nil, fmt.Errorf("op=watchlists.recent_signals: %w", err)
		}
		signals = append(signals, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=watchlists.recent_signals: %w", err)
	}
	return signals, nil
}

// InsertMatch records a match unless the (watchlist, signal) pair already
// exists. Reports whether a row was inserted.
func (r *WatchlistRepo) InsertMatch(ctx context.Context, m domain.AlertMatch) (bool, error) {
	tracer := otel.Tracer("repo.watchlists")
	ctx, span := tracer.Start(ctx, "watchlists.InsertMatch")
	defer span.End()

	q := `INSERT INTO alert_matches (watchlist_id, signal_id, keyword_matched, created_at, notified)
	VALUES ($1,$2,$3,$4,FALSE)
	ON CONFLICT (watchlist_id, signal_id) DO NOTHING`
	tag, err := r.Pool.Exec(ctx, q, m.WatchlistID, m.SignalID, m.Keyword, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("op=watchlists.insert_match: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UnnotifiedMatches returns pending matches for one watchlist.
func (r *WatchlistRepo) UnnotifiedMatches(ctx context.Context, watchlistID int64) ([]domain.AlertMatch, error) {
	tracer := otel.Tracer("repo.watchlists")
	ctx, span := tracer.Start(ctx, "watchlists.UnnotifiedMatches")
	defer span.End()

	q := `SELECT id, watchlist_id, signal_id, keyword_matched, notified, created_at, notified_at
	FROM alert_matches WHERE watchlist_id = $1 AND notified = FALSE ORDER BY id`
	rows, err := r.Pool.Query(ctx, q, watchlistID)
	if err != nil {
		return nil, fmt.Errorf("op=watchlists.unnotified: %w", err)
	}
	defer rows.Close()

	var matches []domain.AlertMatch
	for rows.Next() {
		var m domain.AlertMatch
		if err := rows.Scan(&m.ID, &m.WatchlistID, &m.SignalID, &m.Keyword, &m.Notified, &m.CreatedAt, &m.NotifiedAt); err != nil {
			return nil, fmt.Errorf("op=watchlists.unnotified: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=watchlists.unnotified: %w", err)
	}
	return matches, nil
}

// MarkNotified flips the notified flag on the given matches.
func (r *WatchlistRepo) MarkNotified(ctx context.Context, matchIDs []int64) error {
	tracer := otel.Tracer("repo.watchlists")
	ctx, span := tracer.Start(ctx, "watchlists.MarkNotified")
	defer span.End()

	if len(matchIDs) == 0 {
		return nil
	}
	q := `UPDATE alert_matches SET notified = TRUE, notified_at = $2 WHERE id = ANY($1)`
	if _, err := r.Pool.Exec(ctx, q, matchIDs, time.Now().UTC()); err != nil {
		return fmt.Errorf("op=watchlists.mark_notified: %w", err)
	}
	return nil
}

var _ domain.WatchlistRepository = (*WatchlistRepo)(nil)
