// Package usecase contains application business logic services.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/fairyhunter13/pain-radar/internal/domain"
	"github.com/fairyhunter13/pain-radar/internal/observability"
)

// defaultProcessLimit caps how many unprocessed posts a process-only run
// loads when the caller does not pass a limit.
const defaultProcessLimit = 1000

// topSignalCount is how many top signals a pipeline result carries.
const topSignalCount = 10

// PipelineService orchestrates one scrape-analyze-persist run.
type PipelineService struct {
	Posts   domain.PostRepository
	Signals domain.SignalRepository
	Runs    domain.RunRepository
	Fetcher domain.Fetcher
	Analyst domain.Analyst

	Subreddits        []string
	Listing           string
	PostsPerSubreddit int
	TopComments       int
	MaxConcurrency    int
}

// NewPipelineService constructs a PipelineService with its dependencies.
func NewPipelineService(posts domain.PostRepository, signals domain.SignalRepository, runs domain.RunRepository,
	fetcher domain.Fetcher, analyst domain.Analyst) *PipelineService {
	return &PipelineService{Posts: posts, Signals: signals, Runs: runs, Fetcher: fetcher, Analyst: analyst}
}

// taskResult is the per-post outcome triple. Analysis is non-nil only when
// both the LLM call and the save succeeded.
type taskResult struct {
	postID   string
	analysis *domain.Analysis
	err      error
}

// RunPipeline executes the full pipeline. When fetchNew is false it loads
// unprocessed posts from the store instead of scraping. processLimit <= 0
// means no explicit limit (process-only runs still load at most
// defaultProcessLimit).
//
// Every created run row is finalized with a terminal status on every exit
// path, including panic and cancellation.
func (s *PipelineService) RunPipeline(ctx context.Context, fetchNew bool, processLimit int) (res domain.PipelineResult, err error) {
	correlationID := uuid.NewString()
	ctx = observability.ContextWithRunID(ctx, correlationID)
	log := observability.LoggerFromContext(ctx).With(slog.String("run_uuid", correlationID))
	ctx = observability.ContextWithLogger(ctx, log)

	runID, err := s.Runs.CreateRun(ctx, s.Subreddits)
	if err != nil {
		return domain.PipelineResult{}, fmt.Errorf("op=pipeline.run: %w", err)
	}
	log.Info("run created", slog.Int64("run_id", runID), slog.Any("subreddits", s.Subreddits))

	var posts []domain.Post
	completed := false
	defer func() {
		if completed {
			return
		}
		r := recover()
		s.failRun(runID, len(posts))
		if r != nil {
			panic(r)
		}
	}()

	if fetchNew {
		posts, err = s.Fetcher.FetchAll(ctx, s.Subreddits, s.Listing, s.PostsPerSubreddit, s.TopComments)
		if err != nil {
			return domain.PipelineResult{}, fmt.Errorf("op=pipeline.run: %w", err)
		}
		if _, err = s.Posts.UpsertPosts(ctx, posts); err != nil {
			return domain.PipelineResult{}, fmt.Errorf("op=pipeline.run: %w", err)
		}
	} else {
		limit := processLimit
		if limit <= 0 {
			limit = defaultProcessLimit
		}
		posts, err = s.Posts.GetUnprocessedPosts(ctx, limit)
		if err != nil {
			return domain.PipelineResult{}, fmt.Errorf("op=pipeline.run: %w", err)
		}
		log.Info("loaded unprocessed posts", slog.Int("count", len(posts)))
	}
	if processLimit > 0 && len(posts) > processLimit {
		posts = posts[:processLimit]
	}
	observability.PipelinePostsFetchedTotal.Add(float64(len(posts)))

	results := s.analyzeAll(ctx, runID, posts)
	if err = ctx.Err(); err != nil {
		return domain.PipelineResult{}, fmt.Errorf("op=pipeline.run: %w", err)
	}

	var analyzed, errCount, saved, qualified int
	stateCounts := map[domain.ExtractionState]int{}
	for _, r := range results {
		if r.err != nil {
			errCount++
			continue
		}
		analyzed++
		saved++
		stateCounts[r.analysis.Extraction.State]++
		if r.analysis.Qualified() {
			qualified++
		}
	}

	top, err := s.Signals.GetTopSignals(ctx, topSignalCount, false)
	if err != nil {
		return domain.PipelineResult{}, fmt.Errorf("op=pipeline.run: %w", err)
	}

	if err = s.Runs.UpdateRun(ctx, domain.RunUpdate{
		RunID:            runID,
		PostsFetched:     len(posts),
		PostsAnalyzed:    analyzed,
		SignalsSaved:     saved,
		QualifiedSignals: qualified,
		Errors:           errCount,
		Status:           domain.RunCompleted,
	}); err != nil {
		return domain.PipelineResult{}, fmt.Errorf("op=pipeline.run: %w", err)
	}
	completed = true
	observability.PipelineRunsTotal.WithLabelValues(string(domain.RunCompleted)).Inc()

	log.Info("pipeline complete",
		slog.Int64("run_id", runID),
		slog.Int("posts", len(posts)),
		slog.Int("analyzed", analyzed),
		slog.Int("extracted", stateCounts[domain.StateExtracted]),
		slog.Int("not_extractable", stateCounts[domain.StateNotExtractable]),
		slog.Int("disqualified", stateCounts[domain.StateDisqualified]),
		slog.Int("qualified", qualified),
		slog.Int("errors", errCount))

	return domain.PipelineResult{
		RunID:            runID,
		PostsFetched:     len(posts),
		PostsAnalyzed:    analyzed,
		SignalsSaved:     saved,
		Errors:           errCount,
		QualifiedSignals: qualified,
		TopSignals:       top,
	}, nil
}

// RunFetchOnly scrapes and upserts posts without analyzing them.
func (s *PipelineService) RunFetchOnly(ctx context.Context) (int, error) {
	posts, err := s.Fetcher.FetchAll(ctx, s.Subreddits, s.Listing, s.PostsPerSubreddit, s.TopComments)
	if err != nil {
		return 0, fmt.Errorf("op=pipeline.fetch_only: %w", err)
	}
	if _, err := s.Posts.UpsertPosts(ctx, posts); err != nil {
		return 0, fmt.Errorf("op=pipeline.fetch_only: %w", err)
	}
	observability.PipelinePostsFetchedTotal.Add(float64(len(posts)))
	return len(posts), nil
}

// RunProcessOnly analyzes up to limit already-stored unprocessed posts.
func (s *PipelineService) RunProcessOnly(ctx context.Context, limit int) (domain.PipelineResult, error) {
	return s.RunPipeline(ctx, false, limit)
}

// analyzeAll fans out one task per post under a weighted semaphore and
// collects results in post order. Tasks share no mutable state besides the
// store.
func (s *PipelineService) analyzeAll(ctx context.Context, runID int64, posts []domain.Post) []taskResult {
	concurrency := s.MaxConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	sem := semaphore.NewWeighted(int64(concurrency))
	results := make([]taskResult, len(posts))

	var wg sync.WaitGroup
	for i, post := range posts {
		wg.Add(1)
		go func(i int, post domain.Post) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				results[i] = taskResult{postID: post.ID, err: err}
				return
			}
			defer sem.Release(1)
			results[i] = s.processPost(ctx, runID, post)
		}(i, post)
	}
	wg.Wait()
	return results
}

// processPost analyzes one post and saves the signal. Failures are recorded
// on the triple and in the processing log; they never abort the run.
func (s *PipelineService) processPost(ctx context.Context, runID int64, post domain.Post) taskResult {
	log := observability.LoggerFromContext(ctx)

	analysis, err := s.Analyst.Analyze(ctx, post)
	if err != nil {
		log.Warn("post analysis failed", slog.String("post_id", post.ID), slog.Any("error", err))
		s.recordFailure(ctx, post.ID, err)
		observability.PipelineErrorsTotal.Inc()
		return taskResult{postID: post.ID, err: err}
	}
	if _, err := s.Signals.SaveSignal(ctx, post, analysis, runID); err != nil {
		log.Error("post save failed", slog.String("post_id", post.ID), slog.Any("error", err))
		s.recordFailure(ctx, post.ID, err)
		observability.PipelineErrorsTotal.Inc()
		return taskResult{postID: post.ID, err: err}
	}
	observability.PipelinePostsAnalyzedTotal.WithLabelValues(string(analysis.Extraction.State)).Inc()
	observability.SignalScoreHistogram.Observe(float64(analysis.TotalScore()))
	return taskResult{postID: post.ID, analysis: &analysis}
}

func (s *PipelineService) recordFailure(ctx context.Context, postID string, cause error) {
	if err := s.Runs.RecordFailure(ctx, postID, cause.Error()); err != nil {
		observability.LoggerFromContext(ctx).Warn("failure record not written",
			slog.String("post_id", postID), slog.Any("error", err))
	}
}

// failRun writes the terminal failed state. It runs on the failure path
// where the original context may already be cancelled, so it uses a fresh
// one.
func (s *PipelineService) failRun(runID int64, postsFetched int) {
	err := s.Runs.UpdateRun(context.Background(), domain.RunUpdate{
		RunID:        runID,
		PostsFetched: postsFetched,
		Errors:       1,
		Status:       domain.RunFailed,
	})
	if err != nil {
		slog.Default().Error("run finalization failed", slog.Int64("run_id", runID), slog.Any("error", err))
	}
	observability.PipelineRunsTotal.WithLabelValues(string(domain.RunFailed)).Inc()
}
