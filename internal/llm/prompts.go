package llm

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
)

// MaxDocumentChars caps how much document text is sent to the model.
const MaxDocumentChars = 8000

const systemPrompt = "You are a legal document analysis engine. Respond with JSON only. Output must match the requested structure."

var (
	//go:embed prompts/analysis.txt
	analysisTemplate string
	//go:embed prompts/qa.txt
	qaTemplate string
	//go:embed prompts/full_summary.json
	contractFullSummary string
	//go:embed prompts/risk_assessment.json
	contractRiskAssessment string
	//go:embed prompts/clause_explanation.json
	contractClauseExplanation string
	//go:embed prompts/general.json
	contractGeneral string
)

// Contract returns the JSON structure requested for an analysis type and whether the type is known.
func Contract(analysisType string) (string, bool) {
	switch analysisType {
	case "full_summary":
		return contractFullSummary, true
	case "risk_assessment":
		return contractRiskAssessment, true
	case "clause_explanation":
		return contractClauseExplanation, true
	case "general":
		return contractGeneral, true
	default:
		return "", false
	}
}

// Guidance is the template knowledge injected into a prompt.
type Guidance struct {
	Name                string
	CommonClauses       []string
	KeyTerms            []string
	RiskFactors         []string
	RedFlags            []string
	StandardProtections []string
	Glossary            map[string]string
}

// PromptInput holds everything needed to build an analysis or question prompt.
type PromptInput struct {
	AnalysisType string
	DocumentType string
	Language     string
	FocusAreas   []string
	DocumentText string
	Question     string
	Guidance     Guidance
}

// BuildAnalysisRequest renders the analysis prompt for in.AnalysisType.
func BuildAnalysisRequest(in PromptInput) (Request, error) {
	contract, ok := Contract(in.AnalysisType)
	if !ok {
		return Request{}, fmt.Errorf("unknown analysis type %q", in.AnalysisType)
	}
	focus := "General analysis"
	if len(in.FocusAreas) > 0 {
		focus = strings.Join(in.FocusAreas, ", ")
	}
	replacer := strings.NewReplacer(
		"{{DOCUMENT_TYPE}}", orDefault(in.DocumentType, "legal"),
		"{{ANALYSIS_TYPE}}", in.AnalysisType,
		"{{LANGUAGE}}", orDefault(in.Language, "en"),
		"{{FOCUS_AREAS}}", focus,
		"{{GUIDANCE}}", renderGuidance(in.Guidance),
		"{{DOCUMENT_TEXT}}", TruncateText(in.DocumentText, MaxDocumentChars),
		"{{CONTRACT}}", strings.TrimSpace(contract),
	)
	return Request{System: systemPrompt, Prompt: replacer.Replace(analysisTemplate), JSON: true}, nil
}

// BuildQuestionRequest renders the question-answering prompt.
func BuildQuestionRequest(in PromptInput) Request {
	replacer := strings.NewReplacer(
		"{{DOCUMENT_TYPE}}", orDefault(in.DocumentType, "legal document"),
		"{{DOCUMENT_TEXT}}", TruncateText(in.DocumentText, MaxDocumentChars),
		"{{QUESTION}}", strings.TrimSpace(in.Question),
		"{{LANGUAGE}}", orDefault(in.Language, "en"),
	)
	return Request{System: systemPrompt, Prompt: replacer.Replace(qaTemplate), JSON: true}
}

// TruncateText keeps at most limit characters of text.
func TruncateText(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

func renderGuidance(g Guidance) string {
	var b strings.Builder
	section := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		b.WriteString(title)
		b.WriteString(":\n")
		for _, item := range items {
			b.WriteString("- ")
			b.WriteString(item)
			b.WriteString("\n")
		}
	}
	if g.Name != "" {
		fmt.Fprintf(&b, "Reference template: %s\n", g.Name)
	}
	section("Clauses usually present", g.CommonClauses)
	section("Key terms", g.KeyTerms)
	section("Known risk factors", g.RiskFactors)
	section("Red flags to look for", g.RedFlags)
	section("Standard protections", g.StandardProtections)
	if len(g.Glossary) > 0 {
		terms := make([]string, 0, len(g.Glossary))
		for term := range g.Glossary {
			terms = append(terms, term)
		}
		sort.Strings(terms)
		b.WriteString("Glossary:\n")
		for _, term := range terms {
			fmt.Fprintf(&b, "- %s: %s\n", term, g.Glossary[term])
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "\n" + b.String()
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
