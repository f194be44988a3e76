package postgres

import (
	"context"
	"fmt"
)

// schemaDDL is idempotent; EnsureSchema may run on every startup.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS posts (
    id TEXT PRIMARY KEY,
    subreddit TEXT NOT NULL,
    title TEXT NOT NULL,
    body TEXT,
    created_utc BIGINT NOT NULL,
    score INT NOT NULL,
    num_comments INT NOT NULL,
    url TEXT,
    permalink TEXT,
    top_comments JSONB,
    fetched_at TIMESTAMPTZ NOT NULL,
    processed BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS runs (
    id BIGSERIAL PRIMARY KEY,
    started_at TIMESTAMPTZ NOT NULL,
    completed_at TIMESTAMPTZ,
    subreddits JSONB,
    posts_fetched INT NOT NULL DEFAULT 0,
    posts_analyzed INT NOT NULL DEFAULT 0,
    signals_saved INT NOT NULL DEFAULT 0,
    qualified_signals INT NOT NULL DEFAULT 0,
    errors INT NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'running'
);

CREATE TABLE IF NOT EXISTS signals (
    id BIGSERIAL PRIMARY KEY,
    post_id TEXT NOT NULL REFERENCES posts(id),
    run_id BIGINT REFERENCES runs(id),
    cluster_id TEXT,

    extraction_state TEXT NOT NULL DEFAULT 'extracted',
    extraction_type TEXT,
    not_extractable_reason TEXT,

    signal_summary TEXT NOT NULL,
    target_user TEXT,
    pain_point TEXT,
    proposed_solution TEXT,
    evidence JSONB,
    evidence_strength INT NOT NULL DEFAULT 0,
    evidence_strength_reason TEXT,
    risk_flags JSONB,

    disqualified BOOLEAN NOT NULL DEFAULT FALSE,
    disqualify_reasons JSONB,
    practicality INT,
    profitability INT,
    distribution INT,
    competition INT,
    moat INT,
    total_score INT NOT NULL DEFAULT 0,
    confidence DOUBLE PRECISION,

    distribution_wedge TEXT,
    distribution_wedge_detail TEXT,
    competition_landscape JSONB,

    why JSONB,
    next_validation_steps JSONB,

    created_at TIMESTAMPTZ NOT NULL,
    raw_extraction JSONB,
    raw_score JSONB
);

CREATE TABLE IF NOT EXISTS processing_log (
    id BIGSERIAL PRIMARY KEY,
    post_id TEXT NOT NULL,
    status TEXT NOT NULL,
    error_message TEXT,
    started_at TIMESTAMPTZ,
    completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS clusters (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    summary TEXT NOT NULL,
    week_start TEXT NOT NULL,
    target_audience TEXT,
    why_it_matters TEXT,
    quotes JSONB,
    urls JSONB,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS alerts (
    id BIGSERIAL PRIMARY KEY,
    email TEXT NOT NULL,
    keyword TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    last_sent_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS watchlists (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    keywords JSONB NOT NULL,
    subreddits JSONB,
    notification_email TEXT,
    notification_webhook TEXT,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS alert_matches (
    id BIGSERIAL PRIMARY KEY,
    watchlist_id BIGINT NOT NULL REFERENCES watchlists(id),
    signal_id BIGINT NOT NULL REFERENCES signals(id),
    keyword_matched TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    notified BOOLEAN NOT NULL DEFAULT FALSE,
    notified_at TIMESTAMPTZ,
    CONSTRAINT alert_matches_watchlist_signal_unique UNIQUE (watchlist_id, signal_id)
);

CREATE TABLE IF NOT EXISTS source_sets (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    preset_key TEXT,
    subreddits JSONB NOT NULL,
    listing TEXT NOT NULL DEFAULT 'new',
    limit_per_sub INT NOT NULL DEFAULT 25,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_posts_subreddit ON posts(subreddit);
CREATE INDEX IF NOT EXISTS idx_posts_processed ON posts(processed);
CREATE INDEX IF NOT EXISTS idx_signals_post_id ON signals(post_id);
CREATE INDEX IF NOT EXISTS idx_signals_run_id ON signals(run_id);
CREATE INDEX IF NOT EXISTS idx_signals_total_score ON signals(total_score DESC);
CREATE INDEX IF NOT EXISTS idx_signals_disqualified ON signals(disqualified);
CREATE INDEX IF NOT EXISTS idx_signals_extraction_state ON signals(extraction_state);
CREATE UNIQUE INDEX IF NOT EXISTS idx_signals_post_run_unique ON signals(post_id, run_id);
CREATE INDEX IF NOT EXISTS idx_clusters_week ON clusters(week_start);
CREATE INDEX IF NOT EXISTS idx_alerts_email ON alerts(email);
CREATE INDEX IF NOT EXISTS idx_watchlists_active ON watchlists(is_active);
CREATE INDEX IF NOT EXISTS idx_alert_matches_watchlist ON alert_matches(watchlist_id);
CREATE INDEX IF NOT EXISTS idx_alert_matches_notified ON alert_matches(notified);
CREATE INDEX IF NOT EXISTS idx_source_sets_active ON source_sets(is_active);
CREATE INDEX IF NOT EXISTS idx_source_sets_preset ON source_sets(preset_key);
`

// EnsureSchema creates all tables and indexes when missing.
func EnsureSchema(ctx context.Context, pool PgxPool) error {
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("op=schema.EnsureSchema: %w", err)
	}
	return nil
}
