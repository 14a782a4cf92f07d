package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserRiskSettings_WithDefaults(t *testing.T) {
	s := UserRiskSettings{UserID: "u1", RiskTolerance: "Reckless", InvestmentGoal: GoalIncome}.WithDefaults()

	assert.Equal(t, RiskModerate, s.RiskTolerance)
	assert.Equal(t, GoalIncome, s.InvestmentGoal)
	assert.Equal(t, HorizonLong, s.TimeHorizon)
	assert.Equal(t, "u1", s.UserID)
}

func TestUserRiskSettings_PrefersSector(t *testing.T) {
	s := UserRiskSettings{PreferredSectors: []string{" technology", "Energy"}}

	assert.True(t, s.PrefersSector("Technology"))
	assert.True(t, s.PrefersSector("energy"))
	assert.False(t, s.PrefersSector("Utilities"))
}

func TestHolding_IsClosed(t *testing.T) {
	assert.True(t, Holding{Quantity: 0.00009}.IsClosed())
	assert.False(t, Holding{Quantity: 0.0001}.IsClosed())
	assert.Equal(t, "1450", Holding{Quantity: 10, PurchasePrice: 145}.CostBasis().String())
}
