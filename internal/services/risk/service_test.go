package risk

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
)

// --- Mocks ---

type mockQuotes struct {
	prices  map[string]float64
	bars    map[string][]models.Bar
	panicOn string
}

func (m *mockQuotes) GetQuote(_ context.Context, symbol string) (*models.Quote, bool) {
	p, ok := m.prices[symbol]
	if !ok {
		return nil, false
	}
	return &models.Quote{Symbol: symbol, CurrentPrice: p}, true
}

func (m *mockQuotes) GetDailyHistory(_ context.Context, symbol string, _ models.OutputSize) ([]models.Bar, error) {
	if symbol == m.panicOn {
		panic("corrupt series")
	}
	bars, ok := m.bars[symbol]
	if !ok {
		return nil, errors.New("no history")
	}
	return bars, nil
}

func (m *mockQuotes) GetFundamentals(_ context.Context, _ string) (*models.Fundamentals, bool) {
	return nil, false
}

// barsFromReturns builds daily closes starting at 100 on 2025-01-01.
func barsFromReturns(returns []float64) []models.Bar {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := []models.Bar{{Date: start, Close: 100}}
	price := 100.0
	for i, r := range returns {
		price *= 1 + r
		bars = append(bars, models.Bar{Date: start.AddDate(0, 0, i+1), Close: price})
	}
	return bars
}

func alternating(n int, size float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = size
		} else {
			out[i] = -size
		}
	}
	return out
}

// sampleStd is an independent reference for the engine's annualisation.
func sampleStd(x []float64) float64 {
	mean := 0.0
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))
	ss := 0.0
	for _, v := range x {
		ss += (v - mean) * (v - mean)
	}
	return math.Sqrt(ss / float64(len(x)-1))
}

func newTestService(q *mockQuotes) *Service {
	return NewService(q, common.NewDefaultConfig().Analytics, nil, common.NewSilentLogger())
}

func TestNewService_UnsetConfigUsesDefaults(t *testing.T) {
	svc := NewService(&mockQuotes{}, common.AnalyticsConfig{}, nil, common.NewSilentLogger())
	assert.Equal(t, DefaultRiskFreeRate, svc.riskFreeRate)
	assert.Equal(t, DefaultTradingDays, svc.tradingDays)

	svc = NewService(&mockQuotes{}, common.AnalyticsConfig{RiskFreeRate: 0.02, TradingDays: 250}, nil, common.NewSilentLogger())
	assert.Equal(t, 0.02, svc.riskFreeRate)
	assert.Equal(t, 250, svc.tradingDays)
}

func TestClassifyRisk_Boundaries(t *testing.T) {
	tests := []struct {
		vol      float64
		expected models.RiskLevel
	}{
		{0, models.RiskLevelLow},
		{0.149, models.RiskLevelLow},
		{0.15, models.RiskLevelMedium},
		{0.249, models.RiskLevelMedium},
		{0.25, models.RiskLevelHigh},
		{0.9, models.RiskLevelHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, ClassifyRisk(tt.vol), "vol %v", tt.vol)
	}
}

func TestDiversificationScore(t *testing.T) {
	assert.Equal(t, 0.0, DiversificationScore(nil))
	assert.Equal(t, 0.0, DiversificationScore([]float64{1}))

	for _, n := range []int{2, 4, 10, 50} {
		w := make([]float64, n)
		for i := range w {
			w[i] = 1 / float64(n)
		}
		assert.InDelta(t, 1-1/float64(n), DiversificationScore(w), 1e-12, "n=%d", n)
	}
}

func TestCalculatePortfolioRisk_EmptyPortfolio(t *testing.T) {
	svc := newTestService(&mockQuotes{})

	p := svc.CalculatePortfolioRisk(context.Background(), &models.Portfolio{ID: "pf"})

	assert.Equal(t, models.RiskLevelNA, p.RiskLevel)
	assert.Zero(t, p.Volatility)
	assert.Zero(t, p.SharpeRatio)
	assert.Zero(t, p.DiversificationScore)
	assert.Empty(t, p.StockRisks)
}

func TestCalculatePortfolioRisk_AllQuotesMissing(t *testing.T) {
	q := &mockQuotes{bars: map[string][]models.Bar{"AAPL": barsFromReturns(alternating(20, 0.01))}}
	svc := newTestService(q)

	p := svc.CalculatePortfolioRisk(context.Background(), &models.Portfolio{
		Holdings: []models.Holding{{Symbol: "AAPL", Quantity: 10}},
	})

	assert.Equal(t, models.EmptyRiskProfile(models.RiskLevelNA), p)
}

func TestCalculatePortfolioRisk_NoHistory(t *testing.T) {
	q := &mockQuotes{prices: map[string]float64{"AAPL": 100}}
	svc := newTestService(q)

	p := svc.CalculatePortfolioRisk(context.Background(), &models.Portfolio{
		Holdings: []models.Holding{{Symbol: "AAPL", Quantity: 10}},
	})

	assert.Equal(t, models.RiskLevelNA, p.RiskLevel)
	assert.Zero(t, p.Volatility)
}

func TestCalculatePortfolioRisk_SingleHolding(t *testing.T) {
	returns := alternating(20, 0.01)
	q := &mockQuotes{
		prices: map[string]float64{"AAPL": 100},
		bars:   map[string][]models.Bar{"AAPL": barsFromReturns(returns)},
	}
	svc := newTestService(q)

	p := svc.CalculatePortfolioRisk(context.Background(), &models.Portfolio{
		Holdings: []models.Holding{{Symbol: "AAPL", Quantity: 10}},
	})

	expectedVol := sampleStd(returns) * math.Sqrt(252)
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	assert.InDelta(t, expectedVol, p.Volatility, 1e-9)
	assert.InDelta(t, (mean*252-0.04)/expectedVol, p.SharpeRatio, 1e-9)
	assert.Equal(t, 0.0, p.DiversificationScore)
	assert.Equal(t, ClassifyRisk(expectedVol), p.RiskLevel)
	require.Contains(t, p.StockRisks, "AAPL")
	assert.InDelta(t, expectedVol, p.StockRisks["AAPL"].Volatility, 1e-9)
}

func TestCalculatePortfolioRisk_WeightsAlignedBySymbol(t *testing.T) {
	calm := alternating(30, 0.002)
	wild := alternating(30, 0.04)
	q := &mockQuotes{
		prices: map[string]float64{"CALM": 10, "WILD": 10, "NOHIST": 10},
		bars: map[string][]models.Bar{
			"CALM": barsFromReturns(calm),
			"WILD": barsFromReturns(wild),
		},
	}
	svc := newTestService(q)

	// NOHIST has a quote but no history: it counts for diversification
	// but must not shift the covariance weights onto the wrong columns.
	p := svc.CalculatePortfolioRisk(context.Background(), &models.Portfolio{
		Holdings: []models.Holding{
			{Symbol: "NOHIST", Quantity: 50},
			{Symbol: "CALM", Quantity: 40},
			{Symbol: "WILD", Quantity: 10},
		},
	})

	// CALM and WILD move together, so portfolio vol is the weighted sum.
	wCalm, wWild := 0.4, 0.1
	expected := (wCalm*sampleStd(calm) + wWild*sampleStd(wild)) * math.Sqrt(252)

	assert.InDelta(t, expected, p.Volatility, 1e-9)
	assert.InDelta(t, 1-(0.25+0.16+0.01), p.DiversificationScore, 1e-12)
	assert.Len(t, p.StockRisks, 2)
	assert.NotContains(t, p.StockRisks, "NOHIST")
}

func TestCalculatePortfolioRisk_OuterJoinDropsGaps(t *testing.T) {
	a := barsFromReturns(alternating(20, 0.01))
	b := barsFromReturns(alternating(20, 0.01))
	// B misses a day in the middle; the two returns touching it are dropped.
	b = append(b[:10:10], b[11:]...)

	q := &mockQuotes{
		prices: map[string]float64{"A": 1, "B": 1},
		bars:   map[string][]models.Bar{"A": a, "B": b},
	}
	svc := newTestService(q)

	table := svc.returnsTable(context.Background(), []string{"A", "B"})
	assert.Equal(t, 18, table.rows())

	p := svc.CalculatePortfolioRisk(context.Background(), &models.Portfolio{
		Holdings: []models.Holding{{Symbol: "A", Quantity: 1}, {Symbol: "B", Quantity: 1}},
	})
	assert.Len(t, p.StockRisks, 2)
	assert.InDelta(t, 0.5, p.DiversificationScore, 1e-12)
}

func TestCalculatePortfolioRisk_PanicYieldsErrorProfile(t *testing.T) {
	q := &mockQuotes{prices: map[string]float64{"AAPL": 1}, panicOn: "AAPL"}
	svc := newTestService(q)

	p := svc.CalculatePortfolioRisk(context.Background(), &models.Portfolio{
		Holdings: []models.Holding{{Symbol: "AAPL", Quantity: 1}},
	})

	assert.Equal(t, models.RiskLevelError, p.RiskLevel)
	assert.Zero(t, p.Volatility)
	assert.NotNil(t, p.StockRisks)
}
