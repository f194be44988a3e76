//go:build integration

// Package integration exercises the Postgres repositories against a real
// database started via testcontainers. Run with -tags integration.
package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fairyhunter13/pain-radar/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/pain-radar/internal/domain"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16",
		Env:          map[string]string{"POSTGRES_PASSWORD": "postgres", "POSTGRES_USER": "postgres", "POSTGRES_DB": "painradar"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithStartupTimeout(90 * time.Second),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432")
	require.NoError(t, err)
	return "postgres://postgres:postgres@" + host + ":" + port.Port() + "/painradar?sslmode=disable"
}

func Test_SignalRoundTrip(t *testing.T) {
	ctx := context.Background()
	dsn := startPostgres(t)

	p, err := postgres.NewPool(ctx, dsn)
	require.NoError(t, err)
	defer p.Close()
	require.Eventually(t, func() bool { return p.Ping(ctx) == nil }, 30*time.Second, time.Second)

	require.NoError(t, postgres.EnsureSchema(ctx, p))

	posts := postgres.NewPostRepo(p)
	signals := postgres.NewSignalRepo(p)
	runs := postgres.NewRunRepo(p)

	post := domain.Post{
		ID: "t3_abc", Subreddit: "saas", Title: "Churn is killing us",
		Body: "body", Score: 42, NumComments: 7,
		Permalink:   "https://www.reddit.com/r/saas/comments/abc/churn/",
		TopComments: []string{"same here", "we pay for a tool"},
		FetchedAt:   time.Now().UTC(),
	}
	n, err := posts.UpsertPosts(ctx, []domain.Post{post})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	unprocessed, err := posts.GetUnprocessedPosts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, unprocessed, 1)
	assert.Equal(t, post.TopComments, unprocessed[0].TopComments)

	runID, err := runs.CreateRun(ctx, []string{"saas"})
	require.NoError(t, err)

	idx := 1
	analysis := domain.Analysis{
		Extraction: domain.Extraction{
			State:         domain.StateExtracted,
			Type:          domain.TypeIdea,
			SignalSummary: "Churn tracking tool for SaaS",
			TargetUser:    "SaaS founders",
			PainPoint:     "silent churn",
			Evidence: []domain.Evidence{
				{Quote: "we pay for a tool", Source: domain.SourceComment, CommentIndex: &idx, SignalType: domain.SignalWillingnessToPay},
			},
			EvidenceStrength: 7,
		},
		Score: &domain.Score{
			Practicality: 8, Profitability: 7, Distribution: 6, Competition: 5, Moat: 4,
			Confidence: 0.8, DistributionWedge: domain.WedgeCommunity,
		},
	}
	sigID, err := signals.SaveSignal(ctx, post, analysis, runID)
	require.NoError(t, err)
	require.Positive(t, sigID)

	// Same (post, run) pair conflicts.
	_, err = signals.SaveSignal(ctx, post, analysis, runID)
	assert.ErrorIs(t, err, domain.ErrConflict)

	// Save marks the post processed.
	unprocessed, err = posts.GetUnprocessedPosts(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, unprocessed)

	top, err := signals.GetTopSignals(ctx, 10, false)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, 30, top[0].TotalScore)
	require.Len(t, top[0].Extraction.Evidence, 1)
	assert.Equal(t, domain.SignalWillingnessToPay, top[0].Extraction.Evidence[0].SignalType)
	require.NotNil(t, top[0].Extraction.Evidence[0].CommentIndex)
	assert.Equal(t, 1, *top[0].Extraction.Evidence[0].CommentIndex)
}
