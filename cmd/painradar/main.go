// Package main provides the pain-radar application entry point. One binary
// drives every mode: the full pipeline, fetch-only, process-only, weekly
// clustering, watchlist scanning, and read-only signal/stats lookups.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairyhunter13/pain-radar/internal/adapter/ai"
	"github.com/fairyhunter13/pain-radar/internal/adapter/reddit"
	"github.com/fairyhunter13/pain-radar/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/pain-radar/internal/config"
	"github.com/fairyhunter13/pain-radar/internal/domain"
	"github.com/fairyhunter13/pain-radar/internal/observability"
	"github.com/fairyhunter13/pain-radar/internal/usecase"
)

func main() {
	mode := flag.String("mode", "pipeline", "one of: pipeline, fetch, process, cluster, watch-scan, signal, stats")
	processLimit := flag.Int("limit", 0, "max posts to process (0 = no explicit limit)")
	clusterDays := flag.Int("days", 7, "cluster signals from the past N days")
	clusterSubreddit := flag.String("subreddit", "", "restrict clustering to one subreddit")
	sinceHours := flag.Int("since-hours", 24, "watch-scan window in hours")
	signalID := flag.Int64("id", 0, "signal id for -mode signal")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			slog.Error("metrics server error", slog.Any("error", err))
		}
	}()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting pain-radar", slog.String("mode", *mode), slog.String("env", cfg.AppEnv))

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("database connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		slog.Error("schema setup failed", slog.Any("error", err))
		os.Exit(1)
	}

	postRepo := postgres.NewPostRepo(pool)
	signalRepo := postgres.NewSignalRepo(pool)
	runRepo := postgres.NewRunRepo(pool)
	clusterRepo := postgres.NewClusterRepo(pool)
	sourceSetRepo := postgres.NewSourceSetRepo(pool)
	watchlistRepo := postgres.NewWatchlistRepo(pool)

	llm := ai.NewClient(cfg)
	analyst := ai.NewAnalyst(llm, cfg.AIPromptBudget)
	clusterer := ai.NewClusterer(llm)
	fetcher := reddit.NewFetcher(reddit.NewClient(cfg), cfg)

	sourceSets := usecase.NewSourceSetService(sourceSetRepo)
	subreddits, err := sourceSets.ActiveSubreddits(ctx, cfg.Subreddits)
	if err != nil {
		slog.Error("source set resolution failed", slog.Any("error", err))
		os.Exit(1)
	}

	pipeline := usecase.NewPipelineService(postRepo, signalRepo, runRepo, fetcher, analyst)
	pipeline.Subreddits = subreddits
	pipeline.Listing = cfg.Listing
	pipeline.PostsPerSubreddit = cfg.PostsPerSubreddit
	pipeline.TopComments = cfg.TopComments
	pipeline.MaxConcurrency = cfg.MaxConcurrency

	switch *mode {
	case "pipeline":
		if cfg.OpenAIAPIKey == "" {
			slog.Error("OPENAI_API_KEY required for analysis modes")
			os.Exit(1)
		}
		res, err := pipeline.RunPipeline(ctx, true, *processLimit)
		if err != nil {
			slog.Error("pipeline failed", slog.Any("error", err))
			os.Exit(1)
		}
		printResult(res)
	case "fetch":
		n, err := pipeline.RunFetchOnly(ctx)
		if err != nil {
			slog.Error("fetch failed", slog.Any("error", err))
			os.Exit(1)
		}
		fmt.Printf("fetched %d posts\n", n)
	case "process":
		if cfg.OpenAIAPIKey == "" {
			slog.Error("OPENAI_API_KEY required for analysis modes")
			os.Exit(1)
		}
		res, err := pipeline.RunProcessOnly(ctx, *processLimit)
		if err != nil {
			slog.Error("processing failed", slog.Any("error", err))
			os.Exit(1)
		}
		printResult(res)
	case "cluster":
		if cfg.OpenAIAPIKey == "" {
			slog.Error("OPENAI_API_KEY required for analysis modes")
			os.Exit(1)
		}
		clustering := usecase.NewClusteringService(signalRepo, clusterRepo, clusterer)
		clusters, err := clustering.ClusterRecent(ctx, *clusterSubreddit, *clusterDays)
		if err != nil {
			slog.Error("clustering failed", slog.Any("error", err))
			os.Exit(1)
		}
		for _, c := range clusters {
			fmt.Printf("%s  %s (%d signals)\n", c.ID, c.Title, len(c.SignalIDs))
		}
	case "watch-scan":
		watchlists := usecase.NewWatchlistService(watchlistRepo)
		matches, err := watchlists.Scan(ctx, *sinceHours)
		if err != nil {
			slog.Error("watchlist scan failed", slog.Any("error", err))
			os.Exit(1)
		}
		fmt.Printf("recorded %d new matches\n", len(matches))
	case "signal":
		s, err := signalRepo.GetSignal(ctx, *signalID)
		if err != nil {
			slog.Error("signal lookup failed", slog.Int64("id", *signalID), slog.Any("error", err))
			os.Exit(1)
		}
		fmt.Printf("[%2d] %s (r/%s)\n%s\n", s.TotalScore, s.Extraction.SignalSummary, s.Subreddit, s.Permalink)
		fmt.Printf("pain: %s\ntarget: %s\n", s.Extraction.PainPoint, s.Extraction.TargetUser)
		for _, e := range s.Extraction.Evidence {
			fmt.Printf("  %q (%s)\n", e.Quote, e.SignalType)
		}
	case "stats":
		st, err := signalRepo.Stats(ctx)
		if err != nil {
			slog.Error("stats failed", slog.Any("error", err))
			os.Exit(1)
		}
		fmt.Printf("posts=%d processed=%d signals=%d qualified=%d avg_score=%.1f\n",
			st.TotalPosts, st.ProcessedPosts, st.TotalSignals, st.QualifiedSignals, st.AvgScore)
	default:
		slog.Error("unknown mode", slog.String("mode", *mode))
		os.Exit(2)
	}
}

func printResult(res domain.PipelineResult) {
	fmt.Printf("run %d: fetched=%d analyzed=%d saved=%d qualified=%d errors=%d\n",
		res.RunID, res.PostsFetched, res.PostsAnalyzed, res.SignalsSaved, res.QualifiedSignals, res.Errors)
	for _, s := range res.TopSignals {
		fmt.Printf("  [%2d] %s (r/%s)\n", s.TotalScore, s.Extraction.SignalSummary, s.Subreddit)
	}
}
