package templates

// Seed returns the built-in catalog. The Postgres catalog is seeded with the same rows by migration.
func Seed() []Template {
	return []Template{
		{
			ID:          "6f1c2f4e-2b71-4d0e-9a57-1d6c1c0a0001",
			Category:    "rental_agreement",
			Subcategory: "residential_lease",
			Name:        "Residential Lease",
			Description: "Residential rental and lease agreements between a landlord and a tenant.",
			CommonClauses: []string{
				"rent_amount", "lease_term", "security_deposit", "maintenance_responsibilities",
				"pet_policy", "subletting_rules", "termination_conditions",
			},
			RiskFactors: []RiskFactor{
				{Risk: "excessive_fees", Description: "Late fees or charges out of proportion to the rent", Severity: "high"},
				{Risk: "unclear_termination", Description: "No clear way to end the lease early", Severity: "medium"},
				{Risk: "maintenance_burden_on_tenant", Description: "Tenant responsible for structural or major repairs", Severity: "medium"},
				{Risk: "automatic_renewal_clauses", Description: "Lease renews without explicit notice", Severity: "low"},
			},
			KeyTerms: []string{"rent_amount", "due_date", "lease_term", "security_deposit", "notice_period"},
			RedFlags: []string{
				"excessive_fees", "unreasonable_restrictions", "unclear_termination",
				"maintenance_burden_on_tenant", "automatic_renewal_clauses",
			},
			StandardProtections: []string{
				"reasonable_notice_periods", "deposit_return_procedures",
				"habitability_guarantees", "privacy_protections",
			},
			Glossary: map[string]string{
				"security_deposit": "Money held by the landlord to cover damage or unpaid rent, usually returned at move-out",
				"sublet":           "Renting all or part of the home to someone else while you remain on the lease",
				"habitability":     "The landlord's duty to keep the home safe and livable",
			},
			QuestionTemplates: []string{
				"When is rent due and what happens if I pay late?",
				"How do I get my security deposit back?",
				"Can I end the lease early?",
				"Who pays for repairs?",
			},
			Active: true,
		},
		{
			ID:          "6f1c2f4e-2b71-4d0e-9a57-1d6c1c0a0002",
			Category:    "loan_contract",
			Subcategory: "personal_loan",
			Name:        "Personal Loan",
			Description: "Consumer loan agreements between a lender and a borrower.",
			CommonClauses: []string{
				"principal_amount", "interest_rate", "repayment_schedule", "default_conditions",
				"collateral_requirements", "prepayment_penalties",
			},
			RiskFactors: []RiskFactor{
				{Risk: "variable_interest_rates", Description: "Payments can rise when the rate changes", Severity: "high"},
				{Risk: "balloon_payments", Description: "A large lump sum is due at the end of the term", Severity: "high"},
				{Risk: "cross_default_clauses", Description: "A default on another debt triggers default on this loan", Severity: "medium"},
				{Risk: "personal_guarantees", Description: "You are personally liable beyond the collateral", Severity: "medium"},
			},
			KeyTerms: []string{"principal_amount", "interest_rate", "apr", "repayment_schedule", "late_fee"},
			RedFlags: []string{
				"variable_interest_rates", "balloon_payments", "cross_default_clauses",
				"excessive_fees", "personal_guarantees",
			},
			StandardProtections: []string{
				"fixed_interest_rates", "clear_payment_schedule", "grace_periods",
				"reasonable_default_cure_periods",
			},
			Glossary: map[string]string{
				"principal":  "The amount of money borrowed, not counting interest",
				"apr":        "Annual percentage rate, the yearly cost of the loan including fees",
				"collateral": "Property the lender can take if you do not repay",
				"default":    "Failing to meet the loan terms, usually by missing payments",
			},
			QuestionTemplates: []string{
				"What is the total amount I will repay?",
				"What happens if I miss a payment?",
				"Can I pay the loan off early?",
				"What can the lender take if I default?",
			},
			Active: true,
		},
	}
}
