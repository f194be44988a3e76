package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/fairyhunter13/pain-radar/internal/domain"
	"github.com/fairyhunter13/pain-radar/internal/observability"
)

// AnalysisError carries the post id of a failed analysis.
type AnalysisError struct {
	PostID string
	Err    error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("failed to analyze post %s: %v", e.PostID, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// chatter is the slice of Client the analyst needs; tests inject fakes.
type chatter interface {
	ChatJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Analyst extracts and scores one post per LLM call. Implements
// domain.Analyst.
type Analyst struct {
	llm          chatter
	promptBudget int
}

// NewAnalyst builds an analyst over the given client.
func NewAnalyst(llm chatter, promptBudget int) *Analyst {
	return &Analyst{llm: llm, promptBudget: promptBudget}
}

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// countTokens approximates prompt size with the cl100k_base encoding,
// falling back to a character heuristic when the encoding is unavailable.
func countTokens(text string) int {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			slog.Warn("tiktoken encoding unavailable", slog.Any("error", err))
			return
		}
		encoding = enc
	})
	if encoding == nil {
		return len(text) / 4
	}
	return len(encoding.Encode(text, nil, nil))
}

// buildUserPrompt renders the post with 0-based comment markers, dropping
// trailing comments until the prompt fits the token budget.
func (a *Analyst) buildUserPrompt(post domain.Post) string {
	body := post.Body
	if body == "" {
		body = "(no body)"
	}
	comments := post.TopComments
	for {
		formatted := "(no comments)"
		if len(comments) > 0 {
			lines := make([]string, len(comments))
			for i, c := range comments {
				lines[i] = fmt.Sprintf("[%d] %s", i, c)
			}
			formatted = strings.Join(lines, "\n")
		}
		prompt := fmt.Sprintf(analysisUserTemplate, post.Title, body, formatted)
		if a.promptBudget <= 0 || countTokens(prompt) <= a.promptBudget || len(comments) == 0 {
			return prompt
		}
		comments = comments[:len(comments)-1]
	}
}

// Analyze runs the single extract-and-score call and validates the result.
func (a *Analyst) Analyze(ctx context.Context, post domain.Post) (domain.Analysis, error) {
	lg := observability.LoggerFromContext(ctx)

	content, err := a.llm.ChatJSON(ctx, analysisSystemPrompt, a.buildUserPrompt(post))
	if err != nil {
		return domain.Analysis{}, &AnalysisError{PostID: post.ID, Err: err}
	}

	var analysis domain.Analysis
	if err := json.Unmarshal([]byte(content), &analysis); err != nil {
		return domain.Analysis{}, &AnalysisError{PostID: post.ID, Err: fmt.Errorf("%w: %v", domain.ErrSchemaInvalid, err)}
	}

	// Non-extracted states carry no usable score.
	if analysis.Extraction.State == domain.StateNotExtractable {
		analysis.Score = nil
	}

	if err := analysis.Validate(); err != nil {
		return domain.Analysis{}, &AnalysisError{PostID: post.ID, Err: err}
	}

	switch analysis.Extraction.State {
	case domain.StateExtracted:
		lg.Info("post analyzed",
			slog.String("post_id", post.ID),
			slog.String("summary", truncate(analysis.Extraction.SignalSummary, 80)),
			slog.Int("total", analysis.TotalScore()),
			slog.Float64("confidence", analysis.Score.Confidence),
			slog.Int("evidence_strength", analysis.Extraction.EvidenceStrength))
	case domain.StateDisqualified:
		lg.Info("post disqualified",
			slog.String("post_id", post.ID),
			slog.String("summary", truncate(analysis.Extraction.SignalSummary, 80)))
	default:
		lg.Info("post not extractable",
			slog.String("post_id", post.ID),
			slog.String("reason", analysis.Extraction.NotExtractableReason))
	}

	return analysis, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var _ domain.Analyst = (*Analyst)(nil)
