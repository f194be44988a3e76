package reddit

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/fairyhunter13/pain-radar/internal/config"
	"github.com/fairyhunter13/pain-radar/internal/domain"
	"github.com/fairyhunter13/pain-radar/internal/observability"
)

// Fetcher scrapes subreddit listings and comment pages under a shared
// bounded semaphore. It implements domain.Fetcher.
type Fetcher struct {
	client *Client
	sem    *semaphore.Weighted
	delay  time.Duration
}

// NewFetcher builds a fetcher sharing the given transport.
func NewFetcher(client *Client, cfg config.Config) *Fetcher {
	delay := cfg.CommentScrapeDelay
	if cfg.IsTest() {
		delay = 0
	}
	return &Fetcher{
		client: client,
		sem:    semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		delay:  delay,
	}
}

// FetchAll fetches posts from every subreddit concurrently. A subreddit
// failing after retries yields an empty slice without failing the run.
// Posts keep listing order within a subreddit, and subreddit order is
// preserved in the concatenation.
func (f *Fetcher) FetchAll(ctx context.Context, subreddits []string, listing string, limit, topComments int) ([]domain.Post, error) {
	lg := observability.LoggerFromContext(ctx)
	results := make([][]domain.Post, len(subreddits))

	var wg sync.WaitGroup
	for i, sr := range subreddits {
		wg.Add(1)
		go func(i int, sr string) {
			defer wg.Done()
			posts, err := f.fetchSubreddit(ctx, sr, listing, limit, topComments)
			if err != nil {
				lg.Error("subreddit fetch failed",
					slog.String("subreddit", sr),
					slog.Any("error", err))
				return
			}
			results[i] = posts
		}(i, sr)
	}
	wg.Wait()

	var all []domain.Post
	for _, posts := range results {
		all = append(all, posts...)
	}
	lg.Info("fetch complete",
		slog.Int("subreddits", len(subreddits)),
		slog.Int("total_posts", len(all)))
	return all, nil
}

func (f *Fetcher) fetchSubreddit(ctx context.Context, subreddit, listing string, limit, topComments int) ([]domain.Post, error) {
	lg := observability.LoggerFromContext(ctx)

	if err := f.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("op=reddit.fetchSubreddit: %w", err)
	}
	feedURL := fmt.Sprintf("%s/r/%s/%s.rss", f.client.BaseURL(), subreddit, listing)
	body, err := f.client.Get(ctx, feedURL, "listing")
	f.sem.Release(1)

	if err != nil {
		if IsEmpty(err) {
			lg.Warn("subreddit private or not found", slog.String("subreddit", subreddit))
			return nil, nil
		}
		return nil, fmt.Errorf("op=reddit.fetchSubreddit: %w", err)
	}

	posts, err := parseFeed(body, subreddit)
	if err != nil {
		return nil, fmt.Errorf("op=reddit.fetchSubreddit: %w", err)
	}
	if len(posts) > limit {
		posts = posts[:limit]
	}

	if topComments > 0 {
		for i := range posts {
			comments, err := f.scrapeComments(ctx, posts[i])
			if err != nil {
				// A comment failure never drops the post.
				lg.Debug("comment scrape failed",
					slog.String("post_id", posts[i].ID),
					slog.Any("error", err))
				continue
			}
			if len(comments) > topComments {
				comments = comments[:topComments]
			}
			posts[i].TopComments = comments
		}
	}

	lg.Info("subreddit fetched",
		slog.String("subreddit", subreddit),
		slog.Int("posts", len(posts)))
	return posts, nil
}

// scrapeComments reads a post's JSON page while holding the semaphore and
// pausing the polite delay first.
func (f *Fetcher) scrapeComments(ctx context.Context, post domain.Post) ([]string, error) {
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("op=reddit.scrapeComments: %w", err)
	}
	defer f.sem.Release(1)

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}

	body, err := f.client.Get(ctx, f.jsonURL(post.Permalink), "comments")
	if err != nil {
		if IsEmpty(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("op=reddit.scrapeComments: %w", err)
	}
	return parseCommentBodies(body)
}

// jsonURL normalizes a permalink into its .json page URL.
func (f *Fetcher) jsonURL(permalink string) string {
	u := permalink
	if !strings.HasPrefix(u, "http") {
		u = f.client.BaseURL() + u
	}
	if i := strings.Index(u, "?"); i >= 0 {
		u = u[:i]
	}
	if !strings.HasSuffix(u, ".json") {
		u = strings.TrimRight(u, "/") + ".json"
	}
	return u
}

// FetchMoreComments re-reads the post's comment stream and returns the
// slice [startIndex, startIndex+limit) of the same filtered sequence.
func (f *Fetcher) FetchMoreComments(ctx context.Context, post domain.Post, startIndex, limit int) ([]string, error) {
	comments, err := f.scrapeComments(ctx, post)
	if err != nil {
		return nil, err
	}
	if startIndex >= len(comments) {
		return nil, nil
	}
	end := startIndex + limit
	if end > len(comments) {
		end = len(comments)
	}
	return comments[startIndex:end], nil
}

// SearchRelatedPosts searches within a subreddit, parsing results like a
// listing feed.
func (f *Fetcher) SearchRelatedPosts(ctx context.Context, subreddit, query string, limit int) ([]domain.Post, error) {
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("op=reddit.SearchRelatedPosts: %w", err)
	}
	defer f.sem.Release(1)

	q := url.Values{}
	q.Set("q", query)
	q.Set("restrict_sr", "on")
	q.Set("sort", "relevance")
	q.Set("limit", strconv.Itoa(limit))
	searchURL := fmt.Sprintf("%s/r/%s/search.rss?%s", f.client.BaseURL(), subreddit, q.Encode())

	body, err := f.client.Get(ctx, searchURL, "search")
	if err != nil {
		if IsEmpty(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("op=reddit.SearchRelatedPosts: %w", err)
	}
	posts, err := parseFeed(body, subreddit)
	if err != nil {
		return nil, fmt.Errorf("op=reddit.SearchRelatedPosts: %w", err)
	}
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

var _ domain.Fetcher = (*Fetcher)(nil)
