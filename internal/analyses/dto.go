package analyses

import "time"

// AnalysisResponse is the wire shape of an analysis.
type AnalysisResponse struct {
	ID                    string              `json:"analysisId"`
	DocumentID            string              `json:"documentId"`
	AnalysisType          string              `json:"analysisType"`
	Status                string              `json:"status"`
	Language              string              `json:"language"`
	FocusAreas            []string            `json:"focusAreas"`
	ModelUsed             string              `json:"modelUsed,omitempty"`
	TemplateID            string              `json:"templateId,omitempty"`
	Summary               string              `json:"summary,omitempty"`
	SimplifiedExplanation string              `json:"simplifiedExplanation,omitempty"`
	KeyPoints             []string            `json:"keyPoints,omitempty"`
	OverallRiskLevel      string              `json:"overallRiskLevel,omitempty"`
	RiskAssessment        []RiskItem          `json:"riskAssessment,omitempty"`
	LegalImplications     *LegalImplications  `json:"legalImplications,omitempty"`
	ClausesAnalyzed       []ClauseAnalysis    `json:"clausesAnalyzed,omitempty"`
	ProblematicClauses    []ProblematicClause `json:"problematicClauses,omitempty"`
	RedFlags              []string            `json:"redFlags,omitempty"`
	ProtectiveElements    []string            `json:"protectiveElements,omitempty"`
	Recommendations       []string            `json:"recommendations,omitempty"`
	Question              string              `json:"question,omitempty"`
	Answer                string              `json:"answer,omitempty"`
	ConfidenceScore       float64             `json:"confidenceScore"`
	ProcessingTimeSeconds float64             `json:"processingTimeSeconds"`
	ErrorCode             string              `json:"errorCode,omitempty"`
	ErrorMessage          string              `json:"errorMessage,omitempty"`
	UserRating            *int                `json:"userRating,omitempty"`
	UserFeedback          string              `json:"userFeedback,omitempty"`
	CreatedAt             time.Time           `json:"createdAt"`
	CompletedAt           *time.Time          `json:"completedAt,omitempty"`
}

func toResponse(a Analysis) AnalysisResponse {
	focus := a.FocusAreas
	if focus == nil {
		focus = []string{}
	}
	return AnalysisResponse{
		ID:                    a.ID,
		DocumentID:            a.DocumentID,
		AnalysisType:          a.AnalysisType,
		Status:                a.Status,
		Language:              a.Language,
		FocusAreas:            focus,
		ModelUsed:             a.ModelUsed,
		TemplateID:            a.TemplateID,
		Summary:               a.Summary,
		SimplifiedExplanation: a.Result.SimplifiedExplanation,
		KeyPoints:             a.Result.KeyPoints,
		OverallRiskLevel:      a.Result.OverallRiskLevel,
		RiskAssessment:        a.Result.RiskAssessment,
		LegalImplications:     a.Result.LegalImplications,
		ClausesAnalyzed:       a.Result.ClausesAnalyzed,
		ProblematicClauses:    a.Result.ProblematicClauses,
		RedFlags:              a.Result.RedFlags,
		ProtectiveElements:    a.Result.ProtectiveElements,
		Recommendations:       a.Result.Recommendations,
		Question:              a.Question,
		Answer:                a.Answer,
		ConfidenceScore:       a.ConfidenceScore,
		ProcessingTimeSeconds: float64(a.ProcessingTimeMs) / 1000,
		ErrorCode:             a.ErrorCode,
		ErrorMessage:          a.ErrorMessage,
		UserRating:            a.UserRating,
		UserFeedback:          a.UserFeedback,
		CreatedAt:             a.CreatedAt,
		CompletedAt:           a.CompletedAt,
	}
}

// QuestionResponse is returned by the question endpoint.
type QuestionResponse struct {
	AnalysisID      string  `json:"analysisId"`
	Question        string  `json:"question"`
	Answer          string  `json:"answer"`
	ConfidenceScore float64 `json:"confidenceScore"`
	Status          string  `json:"status"`
	ErrorCode       string  `json:"errorCode,omitempty"`
	ErrorMessage    string  `json:"errorMessage,omitempty"`
}
