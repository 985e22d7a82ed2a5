package documents

import "strings"

// GeneralLegal is the document type assigned when no category scores high enough.
const GeneralLegal = "general_legal"

const classifyThreshold = 0.2

type classificationRule struct {
	docType  string
	keywords []string
}

// Rules are evaluated in order; the first of equally scored types wins.
var classificationRules = []classificationRule{
	{"rental_agreement", []string{
		"lease", "rent", "tenant", "landlord", "premises", "monthly rent",
		"security deposit", "rental agreement", "lease term",
	}},
	{"loan_contract", []string{
		"loan", "borrower", "lender", "principal", "interest rate", "repayment",
		"default", "collateral", "loan agreement", "credit",
	}},
	{"employment_contract", []string{
		"employee", "employer", "salary", "employment", "job", "position",
		"benefits", "termination", "employment agreement", "work",
	}},
	{"terms_of_service", []string{
		"terms of service", "terms and conditions", "user agreement",
		"privacy policy", "acceptable use", "service", "platform",
	}},
	{"purchase_agreement", []string{
		"purchase", "buyer", "seller", "sale", "goods", "merchandise",
		"purchase agreement", "delivery", "payment terms",
	}},
	{"service_contract", []string{
		"service", "contractor", "client", "services", "performance",
		"service agreement", "deliverables", "scope of work",
	}},
}

// Classify scores text against keyword lists and returns the best document type
// with the fraction of its keywords found. Below the threshold the result is
// GeneralLegal with zero confidence.
func Classify(text string) (string, float64) {
	lower := strings.ToLower(text)
	bestType, bestScore := "", 0.0
	for _, rule := range classificationRules {
		hits := 0
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		score := float64(hits) / float64(len(rule.keywords))
		if score > bestScore {
			bestType, bestScore = rule.docType, score
		}
	}
	if bestScore > classifyThreshold {
		return bestType, bestScore
	}
	return GeneralLegal, 0
}
