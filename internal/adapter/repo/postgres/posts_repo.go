package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/pain-radar/internal/domain"
)

// PostRepo persists scraped posts.
type PostRepo struct{ Pool PgxPool }

// NewPostRepo constructs a PostRepo with the given pool.
func NewPostRepo(p PgxPool) *PostRepo { return &PostRepo{Pool: p} }

// UpsertPosts inserts or refreshes posts by id inside one transaction.
// Snapshot fields are overwritten; processed and fetched_at of an existing
// row are preserved. Returns the number of rows written.
func (r *PostRepo) UpsertPosts(ctx context.Context, posts []domain.Post) (int, error) {
	tracer := otel.Tracer("repo.posts")
	ctx, span := tracer.Start(ctx, "posts.UpsertPosts")
	defer span.End()

	tx, err := r.Pool.BeginTx(ctx, pgxTxOptions())
	if err != nil {
		return 0, fmt.Errorf("op=posts.upsert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	q := `INSERT INTO posts (id, subreddit, title, body, created_utc, score, num_comments, url, permalink, top_comments, fetched_at, processed)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,FALSE)
	ON CONFLICT (id) DO UPDATE SET
	  subreddit = EXCLUDED.subreddit,
	  title = EXCLUDED.title,
	  body = EXCLUDED.body,
	  created_utc = EXCLUDED.created_utc,
	  score = EXCLUDED.score,
	  num_comments = EXCLUDED.num_comments,
	  url = EXCLUDED.url,
	  permalink = EXCLUDED.permalink,
	  top_comments = EXCLUDED.top_comments`
	count := 0
	for _, p := range posts {
		comments, err := json.Marshal(p.TopComments)
		if err != nil {
			return 0, fmt.Errorf("op=posts.upsert: %w", err)
		}
		if _, err := tx.Exec(ctx, q, p.ID, p.Subreddit, p.Title, p.Body, p.CreatedUTC, p.Score, p.NumComments, p.URL, p.Permalink, comments, time.Now().UTC()); err != nil {
			return 0, fmt.Errorf("op=posts.upsert: %w", err)
		}
		count++
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("op=posts.upsert: %w", err)
	}
	return count, nil
}

// GetUnprocessedPosts returns unprocessed posts ordered by popularity.
func (r *PostRepo) GetUnprocessedPosts(ctx context.Context, limit int) ([]domain.Post, error) {
	tracer := otel.Tracer("repo.posts")
	ctx, span := tracer.Start(ctx, "posts.GetUnprocessedPosts")
	defer span.End()

	q := `SELECT id, subreddit, title, COALESCE(body,''), created_utc, score, num_comments, COALESCE(url,''), COALESCE(permalink,''), top_comments, fetched_at, processed
	FROM posts WHERE processed = FALSE ORDER BY score DESC LIMIT $1`
	rows, err := r.Pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("op=posts.get_unprocessed: %w", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		var p domain.Post
		var comments []byte
		if err := rows.Scan(&p.ID, &p.Subreddit, &p.Title, &p.Body, &p.CreatedUTC, &p.Score, &p.NumComments, &p.URL, &p.Permalink, &comments, &p.FetchedAt, &p.Processed); err != nil {
			return nil, fmt.Errorf("op=posts.get_unprocessed: %w", err)
		}
		if len(comments) > 0 {
			if err := json.Unmarshal(comments, &p.TopComments); err != nil {
				return nil, fmt.Errorf("op=posts.get_unprocessed: %w", err)
			}
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=posts.get_unprocessed: %w", err)
	}
	return posts, nil
}

var _ domain.PostRepository = (*PostRepo)(nil)
