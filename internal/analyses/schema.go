package analyses

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// requiredField names the key a reply must carry for each analysis type.
var requiredField = map[string]string{
	TypeFullSummary:       "summary",
	TypeRiskAssessment:    "risk_assessment",
	TypeClauseExplanation: "clauses_analyzed",
	TypeGeneral:           "summary",
	TypeQA:                "answer",
}

// parsedReply is a model reply decoded against the analysis schema.
type parsedReply struct {
	Summary         string
	Answer          string
	ConfidenceScore float64
	Result          Result
}

type replyBody struct {
	Summary               string              `json:"summary"`
	Answer                string              `json:"answer"`
	ConfidenceScore       *float64            `json:"confidence_score"`
	SimplifiedExplanation string              `json:"simplified_explanation"`
	KeyPoints             []string            `json:"key_points"`
	OverallRiskLevel      string              `json:"overall_risk_level"`
	RiskAssessment        json.RawMessage     `json:"risk_assessment"`
	LegalImplications     *LegalImplications  `json:"legal_implications"`
	ClausesAnalyzed       []ClauseAnalysis    `json:"clauses_analyzed"`
	ProblematicClauses    []ProblematicClause `json:"problematic_clauses"`
	RedFlags              []string            `json:"red_flags"`
	ProtectiveElements    []string            `json:"protective_elements"`
	Recommendations       []string            `json:"recommendations"`
}

// parseReply decodes text for analysisType. Any failure wraps ErrMalformedResponse.
func parseReply(analysisType, text string) (parsedReply, error) {
	payload := extractJSON(text)
	if payload == "" {
		return parsedReply{}, fmt.Errorf("%w: no JSON object in reply", ErrMalformedResponse)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return parsedReply{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	required, ok := requiredField[analysisType]
	if !ok {
		return parsedReply{}, fmt.Errorf("%w: unknown analysis type %q", ErrMalformedResponse, analysisType)
	}
	if raw, ok := fields[required]; !ok || isNull(raw) {
		return parsedReply{}, fmt.Errorf("%w: missing required field %q", ErrMalformedResponse, required)
	}

	var body replyBody
	if err := json.Unmarshal([]byte(payload), &body); err != nil {
		return parsedReply{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	risks, overall, err := decodeRisks(body.RiskAssessment)
	if err != nil {
		return parsedReply{}, fmt.Errorf("%w: risk_assessment: %v", ErrMalformedResponse, err)
	}
	if body.OverallRiskLevel != "" {
		overall = normalizeSeverity(body.OverallRiskLevel)
	}

	if (required == "summary" && strings.TrimSpace(body.Summary) == "") ||
		(required == "answer" && strings.TrimSpace(body.Answer) == "") {
		return parsedReply{}, fmt.Errorf("%w: empty required field %q", ErrMalformedResponse, required)
	}

	out := parsedReply{
		Summary: strings.TrimSpace(body.Summary),
		Answer:  strings.TrimSpace(body.Answer),
		Result: Result{
			SimplifiedExplanation: body.SimplifiedExplanation,
			KeyPoints:             body.KeyPoints,
			OverallRiskLevel:      overall,
			RiskAssessment:        risks,
			LegalImplications:     body.LegalImplications,
			ClausesAnalyzed:       body.ClausesAnalyzed,
			ProblematicClauses:    body.ProblematicClauses,
			RedFlags:              body.RedFlags,
			ProtectiveElements:    body.ProtectiveElements,
			Recommendations:       body.Recommendations,
		},
	}
	if body.ConfidenceScore != nil && !math.IsNaN(*body.ConfidenceScore) {
		out.ConfidenceScore = clamp01(*body.ConfidenceScore)
	} else {
		out.ConfidenceScore = confidenceFromLength(text)
	}
	return out, nil
}

// extractJSON returns the first ```json fenced block, or the outermost {...} span.
func extractJSON(text string) string {
	if start := strings.Index(text, "```json"); start >= 0 {
		rest := text[start+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// riskObject is the grouped shape some models return instead of a list.
type riskObject struct {
	OverallRiskLevel string            `json:"overall_risk_level"`
	HighRiskItems    []json.RawMessage `json:"high_risk_items"`
	MediumRiskItems  []json.RawMessage `json:"medium_risk_items"`
	LowRiskItems     []json.RawMessage `json:"low_risk_items"`
}

// decodeRisks accepts either a list of risk items or the grouped object form.
func decodeRisks(raw json.RawMessage) ([]RiskItem, string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || isNull(trimmed) {
		return nil, "", nil
	}
	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, "", err
		}
		risks, err := decodeRiskItems(items, SeverityMedium)
		return risks, "", err
	case '{':
		var obj riskObject
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, "", err
		}
		risks := make([]RiskItem, 0, len(obj.HighRiskItems)+len(obj.MediumRiskItems)+len(obj.LowRiskItems))
		for _, group := range []struct {
			items    []json.RawMessage
			severity string
		}{
			{obj.HighRiskItems, SeverityHigh},
			{obj.MediumRiskItems, SeverityMedium},
			{obj.LowRiskItems, SeverityLow},
		} {
			decoded, err := decodeRiskItems(group.items, group.severity)
			if err != nil {
				return nil, "", err
			}
			risks = append(risks, decoded...)
		}
		overall := ""
		if obj.OverallRiskLevel != "" {
			overall = normalizeSeverity(obj.OverallRiskLevel)
		}
		return risks, overall, nil
	default:
		return nil, "", fmt.Errorf("expected list or object")
	}
}

// decodeRiskItems decodes objects or bare strings; fallback fills a missing severity.
func decodeRiskItems(items []json.RawMessage, fallback string) ([]RiskItem, error) {
	out := make([]RiskItem, 0, len(items))
	for _, raw := range items {
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '"' {
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return nil, err
			}
			out = append(out, RiskItem{Risk: s, Severity: fallback})
			continue
		}
		var item RiskItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, err
		}
		if strings.TrimSpace(item.Severity) == "" {
			item.Severity = fallback
		} else {
			item.Severity = normalizeSeverity(item.Severity)
		}
		out = append(out, item)
	}
	return out, nil
}

func normalizeSeverity(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case SeverityLow, "minor":
		return SeverityLow
	case SeverityHigh, "critical", "severe":
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// confidenceFromLength estimates confidence when the model does not supply one.
func confidenceFromLength(text string) float64 {
	switch n := len(text); {
	case n < 100:
		return 0.3
	case n < 500:
		return 0.6
	case n < 2000:
		return 0.8
	default:
		return 0.9
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
