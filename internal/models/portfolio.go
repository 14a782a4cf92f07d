// Package models defines data structures for folio
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuantityEpsilon is the quantity below which a holding is considered closed.
const QuantityEpsilon = 0.0001

// MinBuyQuantity is the smallest quantity accepted for a buy.
const MinBuyQuantity = 0.001

// Holding represents a position in a single symbol. A portfolio holds at most
// one Holding per symbol.
type Holding struct {
	Symbol        string    `json:"symbol"`
	Quantity      float64   `json:"quantity"`
	PurchasePrice float64   `json:"purchase_price"`
	PurchaseDate  time.Time `json:"purchase_date"`
}

// CostBasis returns quantity × purchase price.
func (h Holding) CostBasis() decimal.Decimal {
	return decimal.NewFromFloat(h.PurchasePrice).Mul(decimal.NewFromFloat(h.Quantity))
}

// IsClosed reports whether the remaining quantity is effectively zero.
func (h Holding) IsClosed() bool {
	return h.Quantity < QuantityEpsilon
}

// Portfolio is an owned, named set of holdings. Holdings is always a
// materialised slice ordered as stored.
type Portfolio struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Holdings  []Holding `json:"holdings"`
}

// Symbols returns the holding symbols in portfolio order.
func (p *Portfolio) Symbols() []string {
	symbols := make([]string, 0, len(p.Holdings))
	for _, h := range p.Holdings {
		symbols = append(symbols, h.Symbol)
	}
	return symbols
}

// Holding returns the holding for symbol, if held.
func (p *Portfolio) Holding(symbol string) (Holding, bool) {
	for _, h := range p.Holdings {
		if h.Symbol == symbol {
			return h, true
		}
	}
	return Holding{}, false
}

// HistoryPoint is the recorded total value of a portfolio for one calendar day.
// At most one point exists per (PortfolioID, Date).
type HistoryPoint struct {
	PortfolioID string    `json:"portfolio_id"`
	Date        time.Time `json:"date"`
	TotalValue  float64   `json:"total_value"`
}

// HoldingPerformance is the valuation of one holding at the current quote.
type HoldingPerformance struct {
	Symbol        string    `json:"symbol"`
	Quantity      float64   `json:"quantity"`
	PurchasePrice float64   `json:"purchase_price"`
	CurrentPrice  float64   `json:"current_price"`
	CurrentValue  float64   `json:"current_value"`
	GainLoss      float64   `json:"gain_loss"`
	GainLossPct   float64   `json:"gain_loss_percentage"`
	PurchaseDate  time.Time `json:"purchase_date,omitempty"`
}

// PerformancePoint is a history point annotated with its return against the
// current cost basis.
type PerformancePoint struct {
	Date      time.Time `json:"date"`
	Value     float64   `json:"value"`
	ReturnPct float64   `json:"return_percentage"`
}

// Performance summarises a portfolio's valuation against its cost basis.
type Performance struct {
	Holdings       []HoldingPerformance `json:"holdings"`
	TotalValue     float64              `json:"total_value"`
	TotalCost      float64              `json:"total_cost"`
	TotalReturn    float64              `json:"total_return"`
	TotalReturnPct float64              `json:"total_return_percentage"`
	History        []PerformancePoint   `json:"historical_data"`
}

// TradeAction is the side of a projected trade.
type TradeAction string

const (
	TradeActionBuy  TradeAction = "buy"
	TradeActionSell TradeAction = "sell"
)

// AllocationItem is one symbol's value and weight within a portfolio.
type AllocationItem struct {
	Symbol string  `json:"symbol"`
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"`
}

// RiskSnapshot is the pair of headline risk numbers used in projections.
type RiskSnapshot struct {
	Volatility      float64 `json:"volatility"`
	Diversification float64 `json:"diversification"`
}

// TradeImpact projects how a buy or sell would move allocation and risk.
type TradeImpact struct {
	Action              TradeAction      `json:"action"`
	Symbol              string           `json:"symbol"`
	Quantity            float64          `json:"quantity"`
	CurrentValue        float64          `json:"current_value"`
	ProjectedValue      float64          `json:"projected_value"`
	CurrentAllocation   []AllocationItem `json:"current_allocation"`
	ProjectedAllocation []AllocationItem `json:"projected_allocation"`
	CurrentRisk         RiskSnapshot     `json:"current_risk"`
	ProjectedRisk       RiskSnapshot     `json:"projected_risk"`
}

// HistorySummary is a recorded value series with each point's return
// against the first point. Returns is empty when the first value is zero.
type HistorySummary struct {
	Points         []HistoryPoint `json:"points"`
	Returns        []float64      `json:"returns"` // percent, one per point
	InitialValue   float64        `json:"initial_value"`
	CurrentValue   float64        `json:"current_value"`
	TotalReturnPct float64        `json:"total_return"`
}
