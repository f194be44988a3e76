package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// SignalType classifies a piece of evidence by the demand signal it carries.
type SignalType string

// Evidence signal types.
const (
	SignalPain             SignalType = "pain"
	SignalWillingnessToPay SignalType = "willingness_to_pay"
	SignalAlternatives     SignalType = "alternatives"
	SignalUrgency          SignalType = "urgency"
	SignalRepetition       SignalType = "repetition"
	SignalBudget           SignalType = "budget"
)

// EvidenceSource says whether a quote came from the post body or a comment.
type EvidenceSource string

// Evidence sources.
const (
	SourcePost    EvidenceSource = "post"
	SourceComment EvidenceSource = "comment"
)

// Evidence is a single attributed quote backing an extraction.
type Evidence struct {
	Quote        string         `json:"quote" validate:"required,max=150"`
	Source       EvidenceSource `json:"source" validate:"required,oneof=post comment"`
	CommentIndex *int           `json:"comment_index,omitempty"`
	SignalType   SignalType     `json:"signal_type" validate:"required,oneof=pain willingness_to_pay alternatives urgency repetition budget"`
}

// ExtractionState is the outcome of the analyst's extraction step.
type ExtractionState string

// Extraction states.
const (
	StateExtracted      ExtractionState = "extracted"
	StateNotExtractable ExtractionState = "not_extractable"
	StateDisqualified   ExtractionState = "disqualified"
)

// ExtractionType distinguishes a productizable idea from a raw pain point.
type ExtractionType string

// Extraction types.
const (
	TypeIdea ExtractionType = "idea"
	TypePain ExtractionType = "pain"
)

// NoViableSummaryPrefix marks sentinel summaries for not-extractable posts.
// Such signals never act as dedupe canonicals and never merge.
const NoViableSummaryPrefix = "no viable"

// Extraction is the non-scoring half of a signal.
type Extraction struct {
	State                  ExtractionState `json:"extraction_state" validate:"required,oneof=extracted not_extractable disqualified"`
	Type                   ExtractionType  `json:"extraction_type" validate:"omitempty,oneof=idea pain"`
	SignalSummary          string          `json:"signal_summary" validate:"required"`
	TargetUser             string          `json:"target_user"`
	PainPoint              string          `json:"pain_point"`
	ProposedSolution       string          `json:"proposed_solution"`
	Evidence               []Evidence      `json:"evidence" validate:"dive"`
	EvidenceStrength       int             `json:"evidence_strength" validate:"gte=0,lte=10"`
	EvidenceStrengthReason string          `json:"evidence_strength_reason"`
	RiskFlags              []string        `json:"risk_flags"`
	NotExtractableReason   string          `json:"not_extractable_reason,omitempty"`
}

// DistributionWedge is the primary distribution channel type for an idea.
type DistributionWedge string

// Distribution wedges.
const (
	WedgeEcosystem           DistributionWedge = "ecosystem"
	WedgePartnerChannel      DistributionWedge = "partner_channel"
	WedgeSEO                 DistributionWedge = "seo"
	WedgeInfluencerAffiliate DistributionWedge = "influencer_affiliate"
	WedgeCommunity           DistributionWedge = "community"
	WedgeProductLed          DistributionWedge = "product_led"
)

// CompetitorNote describes one competitor category and the idea's wedge
// against it.
type CompetitorNote struct {
	Category  string   `json:"category" validate:"required"`
	Examples  []string `json:"examples"`
	YourWedge string   `json:"your_wedge"`
}

// Score is the five-dimension rubric output. Present only when the
// extraction state is StateExtracted.
type Score struct {
	Disqualified         bool              `json:"disqualified"`
	DisqualifyReasons    []string          `json:"disqualify_reasons"`
	Practicality         int               `json:"practicality" validate:"gte=0,lte=10"`
	Profitability        int               `json:"profitability" validate:"gte=0,lte=10"`
	Distribution         int               `json:"distribution" validate:"gte=0,lte=10"`
	Competition          int               `json:"competition" validate:"gte=0,lte=10"`
	Moat                 int               `json:"moat" validate:"gte=0,lte=10"`
	Confidence           float64           `json:"confidence" validate:"gte=0,lte=1"`
	DistributionWedge    DistributionWedge `json:"distribution_wedge" validate:"omitempty,oneof=ecosystem partner_channel seo influencer_affiliate community product_led"`
	WedgeDetail          string            `json:"distribution_wedge_detail"`
	CompetitionLandscape []CompetitorNote  `json:"competition_landscape" validate:"max=5,dive"`
	Why                  []string          `json:"why"`
	NextValidationSteps  []string          `json:"next_validation_steps"`
}

// Total is the derived sum of the five dimensions.
func (s Score) Total() int {
	return s.Practicality + s.Profitability + s.Distribution + s.Competition + s.Moat
}

// Analysis bundles an extraction with its optional score.
type Analysis struct {
	Extraction Extraction `json:"extraction" validate:"required"`
	Score      *Score     `json:"score,omitempty"`
}

// TotalScore returns the score total, or 0 when the score is absent
// (non-extracted states).
func (a Analysis) TotalScore() int {
	if a.Score == nil {
		return 0
	}
	return a.Score.Total()
}

// Qualified reports whether the analysis counts toward qualified signals:
// extracted and not disqualified.
func (a Analysis) Qualified() bool {
	return a.Extraction.State == StateExtracted && a.Score != nil && !a.Score.Disqualified
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the extraction state machine.
// Responses failing validation are rejected, never repaired.
func (a Analysis) Validate() error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
	}
	if a.Extraction.State == StateExtracted && a.Score == nil {
		return fmt.Errorf("%w: extracted analysis missing score", ErrSchemaInvalid)
	}
	for _, ev := range a.Extraction.Evidence {
		if ev.Source == SourceComment && ev.CommentIndex != nil && *ev.CommentIndex < 0 {
			return fmt.Errorf("%w: negative comment index", ErrSchemaInvalid)
		}
	}
	return nil
}

// IsNoViable reports whether the summary is the not-extractable sentinel.
func (e Extraction) IsNoViable() bool {
	return strings.HasPrefix(strings.ToLower(e.SignalSummary), NoViableSummaryPrefix)
}

// Signal is a persisted analysis row joined with its source post.
type Signal struct {
	ID        int64
	PostID    string
	RunID     int64
	ClusterID *string

	Extraction Extraction
	Score      *Score

	// Denormalized columns; TotalScore is 0 whenever Score is nil.
	TotalScore   int
	Disqualified bool
	CreatedAt    time.Time

	// Joined post columns.
	PostTitle string
	Subreddit string
	Permalink string

	// Raw LLM output preserved for audit and replay.
	RawExtraction []byte
	RawScore      []byte
}
