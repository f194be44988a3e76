package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/pain-radar/internal/domain"
)

// uniqueViolation is the Postgres error code for unique constraint hits.
const uniqueViolation = "23505"

// SignalRepo persists analysis output.
type SignalRepo struct{ Pool PgxPool }

// NewSignalRepo constructs a SignalRepo with the given pool.
func NewSignalRepo(p PgxPool) *SignalRepo { return &SignalRepo{Pool: p} }

func pgxTxOptions() pgx.TxOptions { return pgx.TxOptions{} }

// SaveSignal inserts the signal row and marks the post processed in the
// same transaction. A second signal for the same (post, run) pair fails
// with domain.ErrConflict.
func (r *SignalRepo) SaveSignal(ctx context.Context, post domain.Post, a domain.Analysis, runID int64) (int64, error) {
	tracer := otel.Tracer("repo.signals")
	ctx, span := tracer.Start(ctx, "signals.SaveSignal")
	defer span.End()

	rawExtraction, err := json.Marshal(a.Extraction)
	if err != nil {
		return 0, fmt.Errorf("op=signals.save: %w", err)
	}
	evidence, err := json.Marshal(a.Extraction.Evidence)
	if err != nil {
		return 0, fmt.Errorf("op=signals.save: %w", err)
	}
	riskFlags, err := json.Marshal(a.Extraction.RiskFlags)
	if err != nil {
		return 0, fmt.Errorf("op=signals.save: %w", err)
	}

	// Score columns stay zero/null for non-extracted states.
	var (
		rawScore             []byte
		disqualified         bool
		disqualifyReasons    []byte
		practicality         *int
		profitability        *int
		distribution         *int
		competition          *int
		moat                 *int
		confidence           *float64
		wedge                *string
		wedgeDetail          *string
		competitionLandscape []byte
		why                  []byte
		nextSteps            []byte
	)
	totalScore := 0
	if a.Score != nil {
		s := a.Score
		rawScore, err = json.Marshal(s)
		if err != nil {
			return 0, fmt.Errorf("op=signals.save: %w", err)
		}
		disqualified = s.Disqualified
		disqualifyReasons, _ = json.Marshal(s.DisqualifyReasons)
		practicality, profitability = &s.Practicality, &s.Profitability
		distribution, competition, moat = &s.Distribution, &s.Competition, &s.Moat
		confidence = &s.Confidence
		if s.DistributionWedge != "" {
			w := string(s.DistributionWedge)
			wedge = &w
		}
		if s.WedgeDetail != "" {
			wedgeDetail = &s.WedgeDetail
		}
		competitionLandscape, _ = json.Marshal(s.CompetitionLandscape)
		why, _ = json.Marshal(s.Why)
		nextSteps, _ = json.Marshal(s.NextValidationSteps)
		totalScore = s.Total()
	}

	tx, err := r.Pool.BeginTx(ctx, pgxTxOptions())
	if err != nil {
		return 0, fmt.Errorf("op=signals.save: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	q := `INSERT INTO signals (
	  post_id, run_id, extraction_state, extraction_type, not_extractable_reason,
	  signal_summary, target_user, pain_point, proposed_solution,
	  evidence, evidence_strength, evidence_strength_reason, risk_flags,
	  disqualified, disqualify_reasons,
	  practicality, profitability, distribution, competition, moat,
	  total_score, confidence, distribution_wedge, distribution_wedge_detail,
	  competition_landscape, why, next_validation_steps,
	  created_at, raw_extraction, raw_score
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30)
	RETURNING id`

	var id int64
	err = tx.QueryRow(ctx, q,
		post.ID, runID,
		string(a.Extraction.State), string(a.Extraction.Type), a.Extraction.NotExtractableReason,
		a.Extraction.SignalSummary, a.Extraction.TargetUser, a.Extraction.PainPoint, a.Extraction.ProposedSolution,
		evidence, a.Extraction.EvidenceStrength, a.Extraction.EvidenceStrengthReason, riskFlags,
		disqualified, disqualifyReasons,
		practicality, profitability, distribution, competition, moat,
		totalScore, confidence, wedge, wedgeDetail,
		competitionLandscape, why, nextSteps,
		time.Now().UTC(), rawExtraction, rawScore,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, fmt.Errorf("op=signals.save: %w", domain.ErrConflict)
		}
		return 0, fmt.Errorf("op=signals.save: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE posts SET processed = TRUE WHERE id = $1`, post.ID); err != nil {
		return 0, fmt.Errorf("op=signals.save: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("op=signals.save: %w", err)
	}
	return id, nil
}

const signalSelect = `SELECT s.id, s.post_id, COALESCE(s.run_id, 0), s.cluster_id,
  s.total_score, s.disqualified, s.created_at,
  s.raw_extraction, s.raw_score,
  p.title, p.subreddit, COALESCE(p.permalink, '')
FROM signals s JOIN posts p ON p.id = s.post_id`

func scanSignals(rows pgx.Rows) ([]domain.Signal, error) {
	var signals []domain.Signal
	for rows.Next() {
		var s domain.Signal
		if err := rows.Scan(&s.ID, &s.PostID, &s.RunID, &s.ClusterID,
			&s.TotalScore, &s.Disqualified, &s.CreatedAt,
			&s.RawExtraction, &s.RawScore,
			&s.PostTitle, &s.Subreddit, &s.Permalink); err != nil {
			return nil, err
		}
		if len(s.RawExtraction) > 0 {
			if err := json.Unmarshal(s.RawExtraction, &s.Extraction); err != nil {
				return nil, err
			}
		}
		if len(s.RawScore) > 0 {
			var score domain.Score
			if err := json.Unmarshal(s.RawScore, &score); err != nil {
				return nil, err
			}
			s.Score = &score
		}
		signals = append(signals, s)
	}
	return signals, rows.Err()
}

// GetTopSignals returns extracted signals ordered by total score.
// Disqualified signals are excluded unless asked for.
func (r *SignalRepo) GetTopSignals(ctx context.Context, limit int, includeDisqualified bool) ([]domain.Signal, error) {
	tracer := otel.Tracer("repo.signals")
	ctx, span := tracer.Start(ctx, "signals.GetTopSignals")
	defer span.End()

	q := signalSelect + ` WHERE s.extraction_state = 'extracted'`
	if !includeDisqualified {
		q += ` AND s.disqualified = FALSE`
	}
	q += ` ORDER BY s.total_score DESC LIMIT $1`
	rows, err := r.Pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("op=signals.get_top: %w", err)
	}
	defer rows.Close()
	signals, err := scanSignals(rows)
	if err != nil {
		return nil, fmt.Errorf("op=signals.get_top: %w", err)
	}
	return signals, nil
}

// GetSignalsForRun returns all signals saved by one run, best first.
func (r *SignalRepo) GetSignalsForRun(ctx context.Context, runID int64) ([]domain.Signal, error) {
	tracer := otel.Tracer("repo.signals")
	ctx, span := tracer.Start(ctx, "signals.GetSignalsForRun")
	defer span.End()

	q := signalSelect + ` WHERE s.run_id = $1 ORDER BY s.total_score DESC`
	rows, err := r.Pool.Query(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("op=signals.get_for_run: %w", err)
	}
	defer rows.Close()
	signals, err := scanSignals(rows)
	if err != nil {
		return nil, fmt.Errorf("op=signals.get_for_run: %w", err)
	}
	return signals, nil
}

// GetSignal returns one signal by id, or domain.ErrNotFound.
func (r *SignalRepo) GetSignal(ctx context.Context, id int64) (domain.Signal, error) {
	tracer := otel.Tracer("repo.signals")
	ctx, span := tracer.Start(ctx, "signals.GetSignal")
	defer span.End()

	rows, err := r.Pool.Query(ctx, signalSelect+` WHERE s.id = $1`, id)
	if err != nil {
		return domain.Signal{}, fmt.Errorf("op=signals.get: %w", err)
	}
	defer rows.Close()
	signals, err := scanSignals(rows)
	if err != nil {
		return domain.Signal{}, fmt.Errorf("op=signals.get: %w", err)
	}
	if len(signals) == 0 {
		return domain.Signal{}, fmt.Errorf("op=signals.get: %w", domain.ErrNotFound)
	}
	return signals[0], nil
}

// GetUnclusteredPainPoints returns recent extracted, non-disqualified
// signals without a cluster, optionally scoped to one subreddit.
func (r *SignalRepo) GetUnclusteredPainPoints(ctx context.Context, subreddit string, days int) ([]domain.ClusterItem, error) {
	tracer := otel.Tracer("repo.signals")
	ctx, span := tracer.Start(ctx, "signals.GetUnclusteredPainPoints")
	defer span.End()

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	q := `SELECT s.id, s.signal_summary, COALESCE(s.pain_point, ''), p.subreddit, COALESCE(p.permalink, ''), s.evidence
	FROM signals s JOIN posts p ON p.id = s.post_id
	WHERE s.cluster_id IS NULL AND s.disqualified = FALSE
	  AND s.extraction_state = 'extracted' AND s.created_at >= $1`
	args := []any{cutoff}
	if subreddit != "" {
		q += ` AND p.subreddit = $2`
		args = append(args, subreddit)
	}
	q += ` ORDER BY s.total_score DESC`

	rows, err := r.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("op=signals.get_unclustered: %w", err)
	}
	defer rows.Close()

	var items []domain.ClusterItem
	for rows.Next() {
		var item domain.ClusterItem
		var evidence []byte
		if err := rows.Scan(&item.ID, &item.Summary, &item.PainPoint, &item.Subreddit, &item.URL, &evidence); err != nil {
			return nil, fmt.Errorf("op=signals.get_unclustered: %w", err)
		}
		if len(evidence) > 0 {
			if err := json.Unmarshal(evidence, &item.Evidence); err != nil {
				return nil, fmt.Errorf("op=signals.get_unclustered: %w", err)
			}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=signals.get_unclustered: %w", err)
	}
	return items, nil
}

// Stats returns an aggregate snapshot of the store.
func (r *SignalRepo) Stats(ctx context.Context) (domain.Stats, error) {
	tracer := otel.Tracer("repo.signals")
	ctx, span := tracer.Start(ctx, "signals.Stats")
	defer span.End()

	q := `SELECT
	  (SELECT COUNT(*) FROM posts),
	  (SELECT COUNT(*) FROM posts WHERE processed = TRUE),
	  (SELECT COUNT(*) FROM signals),
	  (SELECT COUNT(*) FROM signals WHERE extraction_state = 'extracted' AND disqualified = FALSE),
	  (SELECT COALESCE(AVG(total_score), 0) FROM signals WHERE extraction_state = 'extracted' AND disqualified = FALSE)`
	var st domain.Stats
	if err := r.Pool.QueryRow(ctx, q).Scan(&st.TotalPosts, &st.ProcessedPosts, &st.TotalSignals, &st.QualifiedSignals, &st.AvgScore); err != nil {
		return domain.Stats{}, fmt.Errorf("op=signals.stats: %w", err)
	}
	return st, nil
}

var _ domain.SignalRepository = (*SignalRepo)(nil)
