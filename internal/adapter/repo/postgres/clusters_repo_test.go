package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/pain-radar/internal/domain"
)

func TestSaveClusters_BacklinksInSameTx(t *testing.T) {
	tx := &txStub{}
	pool := &poolStub{tx: tx}
	repo := NewClusterRepo(pool)

	clusters := []domain.Cluster{
		{ID: "2026-08-17_churn-trac_3", Title: "Churn tracking", Summary: "s",
			SignalIDs: []int64{1, 2, 3}, Quotes: []string{"q1", "q2"}},
		{ID: "2026-08-17_invoice-ch_2", Title: "Invoice chasing", Summary: "s",
			SignalIDs: []int64{4, 5}},
	}
	err := repo.SaveClusters(context.Background(), clusters, "2026-08-17")
	require.NoError(t, err)
	assert.True(t, tx.committed)

	// One insert plus one backlink update per cluster.
	require.Len(t, tx.execs, 4)
	assert.Contains(t, tx.execs[0].sql, "INSERT INTO clusters")
	assert.Equal(t, "2026-08-17_churn-trac_3", tx.execs[0].args[0])
	assert.Equal(t, "2026-08-17", tx.execs[0].args[3])

	assert.Contains(t, tx.execs[1].sql, "SET cluster_id")
	assert.Equal(t, "2026-08-17_churn-trac_3", tx.execs[1].args[0])
	assert.Equal(t, []int64{1, 2, 3}, tx.execs[1].args[1])
}

func TestClusterExists(t *testing.T) {
	pool := &poolStub{row: fixtureRow(true)}
	repo := NewClusterRepo(pool)

	exists, err := repo.ClusterExists(context.Background(), "2026-08-17_x_1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, []any{"2026-08-17_x_1"}, pool.lastArgs)
}
