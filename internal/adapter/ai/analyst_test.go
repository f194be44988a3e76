package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/pain-radar/internal/domain"
)

type fakeChatter struct {
	response string
	err      error
	calls    int
	lastUser string
}

func (f *fakeChatter) ChatJSON(_ context.Context, _, userPrompt string) (string, error) {
	f.calls++
	f.lastUser = userPrompt
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

const extractedJSON = `{
  "extraction": {
    "extraction_state": "extracted",
    "extraction_type": "pain",
    "signal_summary": "Churn tracking across tools is manual",
    "target_user": "SaaS founders",
    "pain_point": "No unified churn view",
    "proposed_solution": "Aggregated churn dashboard",
    "evidence": [
      {"quote": "I waste hours every week", "source": "post", "signal_type": "pain"},
      {"quote": "would pay $50/mo for this", "source": "comment", "comment_index": 1, "signal_type": "willingness_to_pay"}
    ],
    "evidence_strength": 7,
    "evidence_strength_reason": "explicit WTP",
    "risk_flags": []
  },
  "score": {
    "disqualified": false,
    "disqualify_reasons": [],
    "practicality": 7, "profitability": 6, "distribution": 5,
    "competition": 4, "moat": 3,
    "confidence": 0.7,
    "distribution_wedge": "community",
    "distribution_wedge_detail": "SaaS subreddits",
    "competition_landscape": [{"category": "analytics suites", "examples": ["ChartMogul"], "your_wedge": "cross-tool"}],
    "why": ["small build"],
    "next_validation_steps": ["interview 5 founders"]
  }
}`

func TestAnalyze_Extracted(t *testing.T) {
	f := &fakeChatter{response: extractedJSON}
	a := NewAnalyst(f, 0)

	got, err := a.Analyze(context.Background(), domain.Post{ID: "abc", Title: "t"})
	require.NoError(t, err)
	assert.Equal(t, domain.StateExtracted, got.Extraction.State)
	require.NotNil(t, got.Score)
	assert.Equal(t, 25, got.TotalScore())
	assert.True(t, got.Qualified())
	require.Len(t, got.Extraction.Evidence, 2)
	require.NotNil(t, got.Extraction.Evidence[1].CommentIndex)
	assert.Equal(t, 1, *got.Extraction.Evidence[1].CommentIndex)
}

func TestAnalyze_NotExtractableDropsScore(t *testing.T) {
	f := &fakeChatter{response: `{
	  "extraction": {
	    "extraction_state": "not_extractable",
	    "signal_summary": "No viable idea",
	    "evidence_strength": 0,
	    "not_extractable_reason": "meta post"
	  },
	  "score": {"practicality": 9, "profitability": 9, "distribution": 9, "competition": 9, "moat": 9, "confidence": 0.9}
	}`}
	a := NewAnalyst(f, 0)

	got, err := a.Analyze(context.Background(), domain.Post{ID: "abc"})
	require.NoError(t, err)
	assert.Nil(t, got.Score, "stray score on a not-extractable analysis is discarded")
	assert.Zero(t, got.TotalScore())
	assert.False(t, got.Qualified())
	assert.True(t, got.Extraction.IsNoViable())
}

func TestAnalyze_MalformedResponse(t *testing.T) {
	f := &fakeChatter{response: "not json"}
	a := NewAnalyst(f, 0)

	_, err := a.Analyze(context.Background(), domain.Post{ID: "p9"})
	require.Error(t, err)
	var ae *AnalysisError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "p9", ae.PostID)
	assert.ErrorIs(t, err, domain.ErrSchemaInvalid)
}

func TestAnalyze_ExtractedWithoutScoreRejected(t *testing.T) {
	f := &fakeChatter{response: `{
	  "extraction": {"extraction_state": "extracted", "signal_summary": "an idea", "evidence_strength": 5}
	}`}
	a := NewAnalyst(f, 0)

	_, err := a.Analyze(context.Background(), domain.Post{ID: "p1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSchemaInvalid)
}

func TestAnalyze_LLMErrorWrapped(t *testing.T) {
	f := &fakeChatter{err: errors.New("boom")}
	a := NewAnalyst(f, 0)

	_, err := a.Analyze(context.Background(), domain.Post{ID: "p2"})
	var ae *AnalysisError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "p2", ae.PostID)
}

func TestBuildUserPrompt_Sentinels(t *testing.T) {
	a := NewAnalyst(&fakeChatter{}, 0)

	prompt := a.buildUserPrompt(domain.Post{Title: "title only"})
	assert.Contains(t, prompt, "(no body)")
	assert.Contains(t, prompt, "(no comments)")

	prompt = a.buildUserPrompt(domain.Post{
		Title:       "t",
		Body:        "b",
		TopComments: []string{"first", "second"},
	})
	assert.Contains(t, prompt, "[0] first")
	assert.Contains(t, prompt, "[1] second")
}

func TestBuildUserPrompt_BudgetDropsTrailingComments(t *testing.T) {
	long := strings.Repeat("word ", 200)
	a := NewAnalyst(&fakeChatter{}, 150)

	prompt := a.buildUserPrompt(domain.Post{
		Title:       "t",
		Body:        "b",
		TopComments: []string{"keep me", long, long},
	})
	assert.Contains(t, prompt, "[0] keep me")
	assert.NotContains(t, prompt, "[2]")
}
