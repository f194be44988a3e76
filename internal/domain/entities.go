// Package domain holds the core entities and ports of the pain-radar
// pipeline. Adapters (Reddit scraping, AI analysis, Postgres persistence)
// implement the interfaces defined here.
package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrRateLimited     = errors.New("rate limited")
	ErrUpstreamTimeout = errors.New("upstream timeout")
	ErrSchemaInvalid   = errors.New("schema invalid")
	ErrInternal        = errors.New("internal error")
)

// Post is an immutable snapshot of a scraped Reddit thread.
// Re-fetching overwrites the snapshot fields but never resets Processed.
type Post struct {
	ID          string
	Subreddit   string
	Title       string
	Body        string
	CreatedUTC  int64
	Score       int
	NumComments int
	URL         string
	Permalink   string
	TopComments []string
	FetchedAt   time.Time
	Processed   bool
}

// RunStatus enumerates the terminal and non-terminal states of a pipeline run.
type RunStatus string

// Run states. A run starts as RunRunning and ends as exactly one of
// RunCompleted or RunFailed.
const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is one pipeline invocation.
type Run struct {
	ID               int64
	StartedAt        time.Time
	CompletedAt      *time.Time
	Subreddits       []string
	PostsFetched     int
	PostsAnalyzed    int
	SignalsSaved     int
	QualifiedSignals int
	Errors           int
	Status           RunStatus
}

// RunUpdate carries the terminal counters for a run.
type RunUpdate struct {
	RunID            int64
	PostsFetched     int
	PostsAnalyzed    int
	SignalsSaved     int
	QualifiedSignals int
	Errors           int
	Status           RunStatus
}

// SourceSet is a curated bundle of subreddits with fetch parameters.
// Deleting a source set only clears the Active flag.
type SourceSet struct {
	ID          int64
	Name        string
	Description string
	PresetKey   *string
	Subreddits  []string
	Listing     string
	LimitPerSub int
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

// SourceSetUpdate lists the mutable fields of a source set; nil means keep.
type SourceSetUpdate struct {
	Name        *string
	Description *string
	Subreddits  []string
	Listing     *string
	LimitPerSub *int
}

// Watchlist is a keyword filter over recent signals.
type Watchlist struct {
	ID                  int64
	Name                string
	Keywords            []string
	Subreddits          []string // nil = all tracked subreddits
	NotificationEmail   string
	NotificationWebhook string
	Active              bool
	CreatedAt           time.Time
}

// AlertMatch records that a signal matched one of a watchlist's keywords.
// Uniqueness on (watchlist, signal) is enforced by the store.
type AlertMatch struct {
	ID          int64
	WatchlistID int64
	SignalID    int64
	Keyword     string
	Notified    bool
	CreatedAt   time.Time
	NotifiedAt  *time.Time
}

// Cluster is a named grouping of recent signals, materialized per week.
type Cluster struct {
	ID             string
	Title          string   `json:"title" validate:"required"`
	Summary        string   `json:"summary" validate:"required"`
	TargetAudience string   `json:"target_audience"`
	WhyItMatters   string   `json:"why_it_matters"`
	WeekStart      string   `json:"-"`
	SignalIDs      []int64  `json:"signal_ids" validate:"required,min=1"`
	Quotes         []string `json:"quotes"`
	URLs           []string `json:"urls"`
}

// ClusterItem is the minimal view of a signal handed to the clusterer.
type ClusterItem struct {
	ID        int64
	Summary   string
	PainPoint string
	Subreddit string
	URL       string
	Evidence  []Evidence
}

// Stats is an aggregate snapshot of the store.
type Stats struct {
	TotalPosts       int
	ProcessedPosts   int
	TotalSignals     int
	QualifiedSignals int
	AvgScore         float64
}

// PipelineResult is returned to callers of RunPipeline.
type PipelineResult struct {
	RunID            int64
	PostsFetched     int
	PostsAnalyzed    int
	SignalsSaved     int
	Errors           int
	QualifiedSignals int
	TopSignals       []Signal
}

// Repositories (ports)

// PostRepository persists scraped posts.
type PostRepository interface {
	UpsertPosts(ctx context.Context, posts []Post) (int, error)
	GetUnprocessedPosts(ctx context.Context, limit int) ([]Post, error)
}

// SignalRepository persists analysis output.
type SignalRepository interface {
	// SaveSignal inserts the signal and marks the post processed in one
	// transaction. Returns the new signal id.
	SaveSignal(ctx context.Context, post Post, a Analysis, runID int64) (int64, error)
	GetTopSignals(ctx context.Context, limit int, includeDisqualified bool) ([]Signal, error)
	GetSignalsForRun(ctx context.Context, runID int64) ([]Signal, error)
	GetUnclusteredPainPoints(ctx context.Context, subreddit string, days int) ([]ClusterItem, error)
	Stats(ctx context.Context) (Stats, error)
}

// RunRepository tracks pipeline runs and per-post failures.
type RunRepository interface {
	CreateRun(ctx context.Context, subreddits []string) (int64, error)
	UpdateRun(ctx context.Context, u RunUpdate) error
	GetRun(ctx context.Context, id int64) (Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	RecordFailure(ctx context.Context, postID, errMsg string) error
}

// ClusterRepository materializes weekly pain clusters.
type ClusterRepository interface {
	// SaveClusters inserts the clusters and sets the cluster back-reference
	// on every member signal in one transaction.
	SaveClusters(ctx context.Context, clusters []Cluster, weekStart string) error
	ClusterExists(ctx context.Context, id string) (bool, error)
}

// SourceSetRepository manages curated subreddit bundles.
type SourceSetRepository interface {
	Create(ctx context.Context, s SourceSet) (int64, error)
	List(ctx context.Context, activeOnly bool) ([]SourceSet, error)
	Get(ctx context.Context, id int64) (SourceSet, error)
	GetByPreset(ctx context.Context, presetKey string) (SourceSet, error)
	Update(ctx context.Context, id int64, u SourceSetUpdate) error
	Deactivate(ctx context.Context, id int64) error
	AllActiveSubreddits(ctx context.Context) ([]string, error)
}

// WatchSignal is the candidate view scanned against watchlists.
type WatchSignal struct {
	SignalID  int64
	Summary   string
	PainPoint string
	PostTitle string
	Subreddit string
	URL       string
}

// WatchlistRepository manages watchlists and their matches.
type WatchlistRepository interface {
	Create(ctx context.Context, w Watchlist) (int64, error)
	List(ctx context.Context, activeOnly bool) ([]Watchlist, error)
	Get(ctx context.Context, id int64) (Watchlist, error)
	Deactivate(ctx context.Context, id int64) error
	RecentSignals(ctx context.Context, sinceHours int) ([]WatchSignal, error)
	// InsertMatch records a match unless the (watchlist, signal) pair
	// already exists; reports whether a row was inserted.
	InsertMatch(ctx context.Context, m AlertMatch) (bool, error)
	UnnotifiedMatches(ctx context.Context, watchlistID int64) ([]AlertMatch, error)
	MarkNotified(ctx context.Context, matchIDs []int64) error
}

// Fetcher (port)

// Fetcher scrapes posts from source communities.
type Fetcher interface {
	FetchAll(ctx context.Context, subreddits []string, listing string, limit, topComments int) ([]Post, error)
}

// Analyst (port)

// Analyst turns one post into a structured analysis via a single LLM call.
type Analyst interface {
	Analyze(ctx context.Context, post Post) (Analysis, error)
}

// ClusterModel (port)

// ClusterModel groups cluster items into named clusters via an LLM call.
// Implementations return an empty slice on model errors; clustering is
// best-effort and never fails the caller.
type ClusterModel interface {
	ClusterItems(ctx context.Context, items []ClusterItem) ([]Cluster, error)
}
