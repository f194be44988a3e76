package usecase

import (
	"context"
	"sync"

	"github.com/fairyhunter13/pain-radar/internal/domain"
)

type fakePostRepo struct {
	mu          sync.Mutex
	upserted    []domain.Post
	unprocessed []domain.Post
	lastLimit   int
	upsertErr   error
}

func (f *fakePostRepo) UpsertPosts(_ context.Context, posts []domain.Post) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	f.upserted = append(f.upserted, posts...)
	return len(posts), nil
}

func (f *fakePostRepo) GetUnprocessedPosts(_ context.Context, limit int) ([]domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	if limit < len(f.unprocessed) {
		return f.unprocessed[:limit], nil
	}
	return f.unprocessed, nil
}

type savedSignal struct {
	post     domain.Post
	analysis domain.Analysis
	runID    int64
}

type fakeSignalRepo struct {
	mu      sync.Mutex
	saved   []savedSignal
	saveErr error
	top     []domain.Signal
	items   []domain.ClusterItem
}

func (f *fakeSignalRepo) SaveSignal(_ context.Context, post domain.Post, a domain.Analysis, runID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	f.saved = append(f.saved, savedSignal{post: post, analysis: a, runID: runID})
	return int64(len(f.saved)), nil
}

func (f *fakeSignalRepo) GetTopSignals(_ context.Context, _ int, _ bool) ([]domain.Signal, error) {
	return f.top, nil
}

func (f *fakeSignalRepo) GetSignalsForRun(_ context.Context, _ int64) ([]domain.Signal, error) {
	return nil, nil
}

func (f *fakeSignalRepo) GetUnclusteredPainPoints(_ context.Context, _ string, _ int) ([]domain.ClusterItem, error) {
	return f.items, nil
}

func (f *fakeSignalRepo) Stats(_ context.Context) (domain.Stats, error) {
	return domain.Stats{}, nil
}

type fakeRunRepo struct {
	mu       sync.Mutex
	nextID   int64
	updates  []domain.RunUpdate
	failures map[string]string
}

func (f *fakeRunRepo) CreateRun(_ context.Context, _ []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return f.nextID, nil
}

func (f *fakeRunRepo) UpdateRun(_ context.Context, u domain.RunUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, u)
	return nil
}

func (f *fakeRunRepo) GetRun(_ context.Context, _ int64) (domain.Run, error) {
	return domain.Run{}, domain.ErrNotFound
}

func (f *fakeRunRepo) ListRuns(_ context.Context, _ int) ([]domain.Run, error) { return nil, nil }

func (f *fakeRunRepo) RecordFailure(_ context.Context, postID, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures == nil {
		f.failures = map[string]string{}
	}
	f.failures[postID] = errMsg
	return nil
}

func (f *fakeRunRepo) lastUpdate() domain.RunUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates[len(f.updates)-1]
}

type fakeFetcher struct {
	posts []domain.Post
	err   error
}

func (f *fakeFetcher) FetchAll(_ context.Context, _ []string, _ string, _, _ int) ([]domain.Post, error) {
	return f.posts, f.err
}

type fakeAnalyst struct {
	mu       sync.Mutex
	byPost   map[string]domain.Analysis
	errs     map[string]error
	analyzed []string
}

func (f *fakeAnalyst) Analyze(_ context.Context, post domain.Post) (domain.Analysis, error) {
	f.mu.Lock()
	f.analyzed = append(f.analyzed, post.ID)
	f.mu.Unlock()
	if err, ok := f.errs[post.ID]; ok {
		return domain.Analysis{}, err
	}
	return f.byPost[post.ID], nil
}

type fakeClusterRepo struct {
	saved     []domain.Cluster
	weekStart string
	existing  map[string]bool
}

func (f *fakeClusterRepo) SaveClusters(_ context.Context, clusters []domain.Cluster, weekStart string) error {
	f.saved = append(f.saved, clusters...)
	f.weekStart = weekStart
	return nil
}

func (f *fakeClusterRepo) ClusterExists(_ context.Context, id string) (bool, error) {
	return f.existing[id], nil
}

type fakeClusterModel struct {
	clusters []domain.Cluster
	calls    int
}

func (f *fakeClusterModel) ClusterItems(_ context.Context, _ []domain.ClusterItem) ([]domain.Cluster, error) {
	f.calls++
	return f.clusters, nil
}

type fakeWatchlistRepo struct {
	lists    []domain.Watchlist
	signals  []domain.WatchSignal
	existing map[[2]int64]bool
	inserted []domain.AlertMatch
	created  []domain.Watchlist
	notified []int64
}

func (f *fakeWatchlistRepo) Create(_ context.Context, w domain.Watchlist) (int64, error) {
	f.created = append(f.created, w)
	return int64(len(f.created)), nil
}

func (f *fakeWatchlistRepo) List(_ context.Context, _ bool) ([]domain.Watchlist, error) {
	return f.lists, nil
}

func (f *fakeWatchlistRepo) Get(_ context.Context, _ int64) (domain.Watchlist, error) {
	return domain.Watchlist{}, domain.ErrNotFound
}

func (f *fakeWatchlistRepo) Deactivate(_ context.Context, _ int64) error { return nil }

func (f *fakeWatchlistRepo) RecentSignals(_ context.Context, _ int) ([]domain.WatchSignal, error) {
	return f.signals, nil
}

func (f *fakeWatchlistRepo) InsertMatch(_ context.Context, m domain.AlertMatch) (bool, error) {
	key := [2]int64{m.WatchlistID, m.SignalID}
	if f.existing == nil {
		f.existing = map[[2]int64]bool{}
	}
	if f.existing[key] {
		return false, nil
	}
	f.existing[key] = true
	f.inserted = append(f.inserted, m)
	return true, nil
}

func (f *fakeWatchlistRepo) UnnotifiedMatches(_ context.Context, _ int64) ([]domain.AlertMatch, error) {
	return nil, nil
}

func (f *fakeWatchlistRepo) MarkNotified(_ context.Context, ids []int64) error {
	f.notified = append(f.notified, ids...)
	return nil
}

type fakeSourceSetRepo struct {
	sets    map[string]domain.SourceSet
	created []domain.SourceSet
	active  []string
}

func (f *fakeSourceSetRepo) Create(_ context.Context, s domain.SourceSet) (int64, error) {
	f.created = append(f.created, s)
	return int64(len(f.created)), nil
}

func (f *fakeSourceSetRepo) List(_ context.Context, _ bool) ([]domain.SourceSet, error) {
	return nil, nil
}

func (f *fakeSourceSetRepo) Get(_ context.Context, _ int64) (domain.SourceSet, error) {
	return domain.SourceSet{}, domain.ErrNotFound
}

func (f *fakeSourceSetRepo) GetByPreset(_ context.Context, key string) (domain.SourceSet, error) {
	if s, ok := f.sets[key]; ok {
		return s, nil
	}
	return domain.SourceSet{}, domain.ErrNotFound
}

func (f *fakeSourceSetRepo) Update(_ context.Context, _ int64, _ domain.SourceSetUpdate) error {
	return nil
}

func (f *fakeSourceSetRepo) Deactivate(_ context.Context, _ int64) error { return nil }

func (f *fakeSourceSetRepo) AllActiveSubreddits(_ context.Context) ([]string, error) {
	return f.active, nil
}
