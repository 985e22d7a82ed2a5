package templates

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("template not found")

// GeneralCategory is the category assigned when no specific template applies.
const GeneralCategory = "general_legal"

// RiskFactor is a risk the analysis should look for.
type RiskFactor struct {
	Risk        string `json:"risk"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

// Template is an analysis profile for one document category.
type Template struct {
	ID                  string            `json:"id,omitempty"`
	Category            string            `json:"category"`
	Subcategory         string            `json:"subcategory,omitempty"`
	Name                string            `json:"name"`
	Description         string            `json:"description,omitempty"`
	CommonClauses       []string          `json:"commonClauses"`
	RiskFactors         []RiskFactor      `json:"riskFactors"`
	KeyTerms            []string          `json:"keyTerms"`
	RedFlags            []string          `json:"redFlags"`
	StandardProtections []string          `json:"standardProtections,omitempty"`
	Glossary            map[string]string `json:"glossary"`
	QuestionTemplates   []string          `json:"questionTemplates"`
	UsageCount          int               `json:"usageCount"`
	EffectivenessScore  float64           `json:"effectivenessScore"`
	LastUsed            *time.Time        `json:"lastUsed,omitempty"`
	Active              bool              `json:"active"`
	IsFallback          bool              `json:"isFallback"`
	CreatedAt           time.Time         `json:"createdAt,omitempty"`
	UpdatedAt           time.Time         `json:"updatedAt,omitempty"`
}

// DefaultQuestions are offered when a template has none of its own.
var DefaultQuestions = []string{
	"What are the main terms of this agreement?",
	"What are my rights under this document?",
	"What are my obligations?",
	"What are the potential risks?",
	"What happens if I want to terminate this agreement?",
}

// DefaultGlossary explains common legal terms in plain language.
var DefaultGlossary = map[string]string{
	"consideration":   "Something of value exchanged in a contract (money, services, goods)",
	"liability":       "Legal responsibility for damages or losses",
	"indemnification": "One party agrees to cover losses of another party",
	"force_majeure":   "Unforeseeable circumstances that prevent contract performance",
	"jurisdiction":    "Which court system has authority over disputes",
	"severability":    "If one part of contract is invalid, the rest remains valid",
}

// Fallback returns the generic template used when a category has no active template.
func Fallback(category string) Template {
	if category == "" {
		category = GeneralCategory
	}
	glossary := make(map[string]string, len(DefaultGlossary))
	for k, v := range DefaultGlossary {
		glossary[k] = v
	}
	return Template{
		Category:    category,
		Name:        "General legal document",
		Description: "Generic guidance for documents without a specific template.",
		CommonClauses: []string{
			"parties_involved",
			"main_obligations",
			"payment_terms",
			"termination_conditions",
			"dispute_resolution",
		},
		RiskFactors: []RiskFactor{
			{Risk: "unclear_terms", Description: "Ambiguous or unclear language", Severity: "medium"},
			{Risk: "one_sided_terms", Description: "Terms heavily favoring one party", Severity: "high"},
		},
		KeyTerms: []string{
			"effective_date",
			"duration",
			"payment_amounts",
			"termination_clause",
			"liability_limits",
		},
		RedFlags: []string{
			"No termination clause",
			"Unlimited liability",
			"Unclear payment terms",
			"No dispute resolution process",
		},
		Glossary:          glossary,
		QuestionTemplates: append([]string(nil), DefaultQuestions...),
		Active:            true,
		IsFallback:        true,
	}
}

// withDefaults fills empty glossary and questions from the defaults.
func withDefaults(t Template) Template {
	if len(t.Glossary) == 0 {
		t.Glossary = make(map[string]string, len(DefaultGlossary))
		for k, v := range DefaultGlossary {
			t.Glossary[k] = v
		}
	}
	if len(t.QuestionTemplates) == 0 {
		t.QuestionTemplates = append([]string(nil), DefaultQuestions...)
	}
	return t
}

// nextEffectiveness folds a new rating into the running score.
func nextEffectiveness(current, rating float64) float64 {
	if current == 0 {
		return rating
	}
	return (current + rating) / 2
}
