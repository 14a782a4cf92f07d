package models

// Kind tags a recommendation variant.
type Kind string

const (
	KindBuy             Kind = "buy"
	KindSell            Kind = "sell"
	KindDiversification Kind = "diversification"
	KindConcentration   Kind = "concentration"
	KindSector          Kind = "sector"
	KindRisk            Kind = "risk"
	KindRiskEfficiency  Kind = "risk_efficiency"
	KindRebalance       Kind = "rebalance"
	KindGoal            Kind = "goal"
	KindTax             Kind = "tax"
	KindStockSpecific   Kind = "stock_specific"
	KindGeneral         Kind = "general"
	KindError           Kind = "error"
)

// Priority ranks a recommendation for presentation.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Weight maps a priority onto its sort weight: high=3, medium=2, low=1,
// anything else 0.
func (p Priority) Weight() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Promote raises medium to high. Other priorities are unchanged.
func (p Priority) Promote() Priority {
	if p == PriorityMedium {
		return PriorityHigh
	}
	return p
}

// Demote lowers a priority by one step, bottoming out at low.
func (p Priority) Demote() Priority {
	switch p {
	case PriorityHigh:
		return PriorityMedium
	case PriorityMedium:
		return PriorityLow
	}
	return p
}

// Advice holds the fields every recommendation variant carries.
type Advice struct {
	Action    string   `json:"action"`
	Reasoning string   `json:"reasoning"`
	Priority  Priority `json:"priority"`
}

// Common exposes the shared fields; promoted onto every variant.
func (a *Advice) Common() *Advice { return a }

// Recommendation is implemented by every advice variant below. Use a type
// switch to reach variant fields.
type Recommendation interface {
	Kind() Kind
	Common() *Advice
}

// PortfolioAdvice is portfolio-wide advice without a symbol: diversification,
// concentration, risk, risk_efficiency, goal, general and error.
type PortfolioAdvice struct {
	Advice
	Category Kind     `json:"type"`
	Symbols  []string `json:"symbols,omitempty"`
}

func (r *PortfolioAdvice) Kind() Kind { return r.Category }

// SectorAdvice flags an under-represented sector.
type SectorAdvice struct {
	Advice
	Sector  string  `json:"sector"`
	Current float64 `json:"current"`
	Target  float64 `json:"target"`
}

func (r *SectorAdvice) Kind() Kind { return KindSector }

// RebalanceAdvice names the positions furthest from an equal-weight target.
type RebalanceAdvice struct {
	Advice
	Increase []string `json:"increase,omitempty"`
	Decrease []string `json:"decrease,omitempty"`
	MaxGap   float64  `json:"max_gap"`
}

func (r *RebalanceAdvice) Kind() Kind { return KindRebalance }

// PositionAdvice flags a single volatile holding.
type PositionAdvice struct {
	Advice
	Symbol     string  `json:"symbol"`
	Volatility float64 `json:"volatility"`
}

func (r *PositionAdvice) Kind() Kind { return KindStockSpecific }

// TradeAdvice is a predictor-driven buy or sell.
type TradeAdvice struct {
	Advice
	Side           Kind    `json:"type"` // KindBuy or KindSell
	Symbol         string  `json:"symbol"`
	Confidence     float64 `json:"confidence"`
	ExpectedReturn float64 `json:"expected_return"`
	TargetPrice    float64 `json:"target_price"`
}

func (r *TradeAdvice) Kind() Kind { return r.Side }

// TaxLossAdvice suggests harvesting a loss on a holding.
type TaxLossAdvice struct {
	Advice
	Symbol   string  `json:"symbol"`
	LossPct  float64 `json:"loss_pct"`
	HeldDays int     `json:"held_days"`
}

func (r *TaxLossAdvice) Kind() Kind { return KindTax }

// SymbolOf returns the symbol a recommendation targets, if any.
func SymbolOf(r Recommendation) (string, bool) {
	switch v := r.(type) {
	case *TradeAdvice:
		return v.Symbol, v.Symbol != ""
	case *PositionAdvice:
		return v.Symbol, v.Symbol != ""
	case *TaxLossAdvice:
		return v.Symbol, v.Symbol != ""
	}
	return "", false
}

// ConfidenceOf returns the model confidence carried by a recommendation, if any.
func ConfidenceOf(r Recommendation) (float64, bool) {
	if v, ok := r.(*TradeAdvice); ok {
		return v.Confidence, true
	}
	return 0, false
}

// RecommendationView is the flat presentation shape of any variant.
type RecommendationView struct {
	Type       Kind     `json:"type"`
	Symbol     string   `json:"symbol,omitempty"`
	Sector     string   `json:"sector,omitempty"`
	Action     string   `json:"action"`
	Reasoning  string   `json:"reasoning"`
	Priority   Priority `json:"priority"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Flatten converts a recommendation into its presentation view.
func Flatten(r Recommendation) RecommendationView {
	c := r.Common()
	view := RecommendationView{
		Type:      r.Kind(),
		Action:    c.Action,
		Reasoning: c.Reasoning,
		Priority:  c.Priority,
	}
	if sym, ok := SymbolOf(r); ok {
		view.Symbol = sym
	}
	if conf, ok := ConfidenceOf(r); ok {
		view.Confidence = &conf
	}
	if s, ok := r.(*SectorAdvice); ok {
		view.Sector = s.Sector
	}
	return view
}

// FlattenAll converts a list of recommendations, preserving order.
func FlattenAll(recs []Recommendation) []RecommendationView {
	views := make([]RecommendationView, 0, len(recs))
	for _, r := range recs {
		views = append(views, Flatten(r))
	}
	return views
}
