package models

import "strings"

// RiskTolerance is the user's stated appetite for volatility.
type RiskTolerance string

const (
	RiskConservative RiskTolerance = "Conservative"
	RiskModerate     RiskTolerance = "Moderate"
	RiskAggressive   RiskTolerance = "Aggressive"
)

// InvestmentGoal is the user's primary objective.
type InvestmentGoal string

const (
	GoalGrowth       InvestmentGoal = "Growth"
	GoalIncome       InvestmentGoal = "Income"
	GoalPreservation InvestmentGoal = "Preservation"
	GoalSpeculation  InvestmentGoal = "Speculation"
)

// TimeHorizon values.
const (
	HorizonShort  = "Short-term"
	HorizonMedium = "Medium-term"
	HorizonLong   = "Long-term"
)

// UserRiskSettings personalises the recommendation engines.
type UserRiskSettings struct {
	UserID           string         `json:"user_id"`
	RiskTolerance    RiskTolerance  `json:"risk_tolerance"`
	InvestmentGoal   InvestmentGoal `json:"investment_goal"`
	TimeHorizon      string         `json:"time_horizon"`
	PreferredSectors []string       `json:"preferred_sectors,omitempty"`
	TaxConsideration bool           `json:"tax_consideration"`
}

// DefaultUserRiskSettings returns the settings applied when a user has none.
func DefaultUserRiskSettings(userID string) UserRiskSettings {
	return UserRiskSettings{
		UserID:         userID,
		RiskTolerance:  RiskModerate,
		InvestmentGoal: GoalGrowth,
		TimeHorizon:    HorizonLong,
	}
}

// WithDefaults fills empty fields from DefaultUserRiskSettings and replaces
// unknown tolerances and goals.
func (s UserRiskSettings) WithDefaults() UserRiskSettings {
	def := DefaultUserRiskSettings(s.UserID)
	switch s.RiskTolerance {
	case RiskConservative, RiskModerate, RiskAggressive:
	default:
		s.RiskTolerance = def.RiskTolerance
	}
	switch s.InvestmentGoal {
	case GoalGrowth, GoalIncome, GoalPreservation, GoalSpeculation:
	default:
		s.InvestmentGoal = def.InvestmentGoal
	}
	if s.TimeHorizon == "" {
		s.TimeHorizon = def.TimeHorizon
	}
	return s
}

// PrefersSector reports whether sector is in the user's preferred list
// (case-insensitive).
func (s UserRiskSettings) PrefersSector(sector string) bool {
	for _, p := range s.PreferredSectors {
		if strings.EqualFold(strings.TrimSpace(p), sector) {
			return true
		}
	}
	return false
}
