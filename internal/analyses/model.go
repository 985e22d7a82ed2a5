package analyses

import (
	"strings"
	"time"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Analysis types. TypeQA is produced by question answering only.
const (
	TypeFullSummary       = "full_summary"
	TypeRiskAssessment    = "risk_assessment"
	TypeClauseExplanation = "clause_explanation"
	TypeGeneral           = "general"
	TypeQA                = "qa"
)

var analyzeTypes = map[string]bool{
	TypeFullSummary:       true,
	TypeRiskAssessment:    true,
	TypeClauseExplanation: true,
	TypeGeneral:           true,
}

// ValidAnalyzeType reports whether t can be requested from the analyze endpoint.
func ValidAnalyzeType(t string) bool {
	return analyzeTypes[t]
}

// Severity levels for risk items.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// RiskItem is one entry of a risk assessment.
type RiskItem struct {
	Risk           string `json:"risk"`
	Severity       string `json:"severity"`
	Clause         string `json:"clause,omitempty"`
	Explanation    string `json:"explanation,omitempty"`
	Recommendation string `json:"recommendation,omitempty"`
}

type LegalImplications struct {
	Rights       []string `json:"rights,omitempty"`
	Obligations  []string `json:"obligations,omitempty"`
	Consequences []string `json:"consequences,omitempty"`
}

type ClauseAnalysis struct {
	ClauseTitle           string `json:"clause_title"`
	OriginalText          string `json:"original_text,omitempty"`
	SimplifiedExplanation string `json:"simplified_explanation,omitempty"`
	ImportanceLevel       string `json:"importance_level,omitempty"`
	UserImpact            string `json:"user_impact,omitempty"`
}

type ProblematicClause struct {
	Clause              string `json:"clause"`
	Problem             string `json:"problem,omitempty"`
	AlternativeLanguage string `json:"alternative_language,omitempty"`
}

// Result holds the structured fields parsed from a model reply. It is stored as one JSON document.
type Result struct {
	SimplifiedExplanation string              `json:"simplified_explanation,omitempty"`
	KeyPoints             []string            `json:"key_points,omitempty"`
	OverallRiskLevel      string              `json:"overall_risk_level,omitempty"`
	RiskAssessment        []RiskItem          `json:"risk_assessment,omitempty"`
	LegalImplications     *LegalImplications  `json:"legal_implications,omitempty"`
	ClausesAnalyzed       []ClauseAnalysis    `json:"clauses_analyzed,omitempty"`
	ProblematicClauses    []ProblematicClause `json:"problematic_clauses,omitempty"`
	RedFlags              []string            `json:"red_flags,omitempty"`
	ProtectiveElements    []string            `json:"protective_elements,omitempty"`
	Recommendations       []string            `json:"recommendations,omitempty"`
}

// Analysis is one persisted model invocation against a document.
// Completed analyses are immutable except for UserRating and UserFeedback.
type Analysis struct {
	ID               string
	UserID           string
	DocumentID       string
	TemplateID       string
	RequestID        string
	AnalysisType     string
	Language         string
	FocusAreas       []string
	ModelUsed        string
	Summary          string
	Result           Result
	Question         string
	Answer           string
	ConfidenceScore  float64
	ProcessingTimeMs int
	PromptTokens     int
	CompletionTokens int
	Status           string
	ErrorCode        string
	ErrorMessage     string
	UserRating       *int
	UserFeedback     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CompletedAt      *time.Time
}

// ListFilter narrows List results. Empty fields match everything.
type ListFilter struct {
	Skip         int
	Limit        int
	DocumentID   string
	AnalysisType string
}

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

func (f ListFilter) normalized() ListFilter {
	if f.Skip < 0 {
		f.Skip = 0
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	f.DocumentID = strings.TrimSpace(f.DocumentID)
	f.AnalysisType = strings.TrimSpace(f.AnalysisType)
	return f
}
