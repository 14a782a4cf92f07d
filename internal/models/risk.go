package models

// RiskLevel classifies annualised volatility.
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "Low"
	RiskLevelMedium RiskLevel = "Medium"
	RiskLevelHigh   RiskLevel = "High"
	RiskLevelNA     RiskLevel = "N/A"
	RiskLevelError  RiskLevel = "Error"
)

// StockRisk is the stand-alone annualised volatility of one symbol.
type StockRisk struct {
	Volatility float64   `json:"volatility"`
	RiskLevel  RiskLevel `json:"risk_level"`
}

// RiskProfile is the derived risk picture of a portfolio. It is never persisted.
type RiskProfile struct {
	Volatility           float64              `json:"volatility"`
	SharpeRatio          float64              `json:"sharpe_ratio"`
	DiversificationScore float64              `json:"diversification_score"`
	RiskLevel            RiskLevel            `json:"risk_level"`
	StockRisks           map[string]StockRisk `json:"individual_stock_risks"`
}

// EmptyRiskProfile returns a zeroed profile carrying the given level.
func EmptyRiskProfile(level RiskLevel) RiskProfile {
	return RiskProfile{
		RiskLevel:  level,
		StockRisks: map[string]StockRisk{},
	}
}
