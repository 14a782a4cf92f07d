package recommend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/folio/internal/models"
)

func trade(side models.Kind, sym string, confidence float64, priority models.Priority) *models.TradeAdvice {
	return &models.TradeAdvice{
		Advice:     models.Advice{Action: string(side) + " " + sym, Reasoning: "forecast", Priority: priority},
		Side:       side,
		Symbol:     sym,
		Confidence: confidence,
	}
}

func portfolioAdvice(kind models.Kind, priority models.Priority) *models.PortfolioAdvice {
	return &models.PortfolioAdvice{
		Advice:   models.Advice{Action: string(kind), Reasoning: string(kind), Priority: priority},
		Category: kind,
	}
}

// --- Conflict resolution ---

func TestResolveConflicts_StrongBuyBeatsWeakSellEitherOrder(t *testing.T) {
	held := portfolioOf("u1", holding("AAPL", 10))

	orders := [][]models.Recommendation{
		{trade(models.KindBuy, "AAPL", 0.9, models.PriorityHigh), trade(models.KindSell, "AAPL", 0.5, models.PriorityMedium)},
		{trade(models.KindSell, "AAPL", 0.5, models.PriorityMedium), trade(models.KindBuy, "AAPL", 0.9, models.PriorityHigh)},
	}
	for _, recs := range orders {
		out := ResolveConflicts(recs, held)

		require.Len(t, out, 1)
		assert.Equal(t, models.KindBuy, out[0].Kind())
		assert.Contains(t, out[0].Common().Reasoning, "conflicting sell")
	}
}

func TestResolveConflicts_HeldSellBias(t *testing.T) {
	// 0.5 x 2 = 1.0 for the buy; 0.48 x 2 x 1.1 = 1.056 for the held sell.
	recs := []models.Recommendation{
		trade(models.KindBuy, "MSFT", 0.5, models.PriorityMedium),
		trade(models.KindSell, "MSFT", 0.48, models.PriorityMedium),
	}

	out := ResolveConflicts(recs, portfolioOf("u1", holding("MSFT", 1)))
	require.Len(t, out, 1)
	assert.Equal(t, models.KindSell, out[0].Kind())

	// Not held: 0.48 x 2 x 0.9 = 0.864 loses.
	recs = []models.Recommendation{
		trade(models.KindBuy, "MSFT", 0.5, models.PriorityMedium),
		trade(models.KindSell, "MSFT", 0.48, models.PriorityMedium),
	}
	out = ResolveConflicts(recs, portfolioOf("u1"))
	require.Len(t, out, 1)
	assert.Equal(t, models.KindBuy, out[0].Kind())
}

func TestResolveConflicts_TieKeepsSell(t *testing.T) {
	// Buy 0.45 x 2 = 0.9; unheld sell 1.0 x 1 x 0.9 = 0.9.
	recs := []models.Recommendation{
		trade(models.KindBuy, "X", 0.45, models.PriorityMedium),
		trade(models.KindSell, "X", 1.0, models.PriorityLow),
	}

	out := ResolveConflicts(recs, nil)

	require.Len(t, out, 1)
	assert.Equal(t, models.KindSell, out[0].Kind())
}

func TestResolveConflicts_LeavesOtherSymbolsAndOrder(t *testing.T) {
	recs := []models.Recommendation{
		portfolioAdvice(models.KindRisk, models.PriorityHigh),
		trade(models.KindBuy, "A", 0.9, models.PriorityHigh),
		trade(models.KindSell, "B", 0.6, models.PriorityMedium),
		trade(models.KindSell, "A", 0.5, models.PriorityMedium),
	}

	out := ResolveConflicts(recs, portfolioOf("u1", holding("A", 1), holding("B", 1)))

	assert.Equal(t, []models.Kind{models.KindRisk, models.KindBuy, models.KindSell}, kinds(out))
	sym, _ := models.SymbolOf(out[2])
	assert.Equal(t, "B", sym)
}

func TestResolveConflicts_DiversificationVsConcentration(t *testing.T) {
	tests := []struct {
		name string
		div  models.Priority
		conc models.Priority
		want models.Kind
	}{
		{"diversification higher", models.PriorityHigh, models.PriorityMedium, models.KindDiversification},
		{"concentration higher", models.PriorityLow, models.PriorityMedium, models.KindConcentration},
		{"tie keeps diversification", models.PriorityMedium, models.PriorityMedium, models.KindDiversification},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := []models.Recommendation{
				portfolioAdvice(models.KindConcentration, tt.conc),
				portfolioAdvice(models.KindDiversification, tt.div),
			}

			out := ResolveConflicts(recs, nil)

			require.Len(t, out, 1)
			assert.Equal(t, tt.want, out[0].Kind())
		})
	}
}

// --- Feedback ---

func TestApplyFeedback(t *testing.T) {
	recs := []models.Recommendation{
		trade(models.KindSell, "A", 0.7, models.PriorityMedium),
		trade(models.KindBuy, "B", 0.7, models.PriorityMedium),
		portfolioAdvice(models.KindRisk, models.PriorityHigh),
		portfolioAdvice(models.KindRebalance, models.PriorityMedium),
		portfolioAdvice(models.KindGoal, models.PriorityLow),
	}
	stats := map[models.Kind]models.FeedbackStats{
		models.KindSell:      {Count: 3, AverageRating: 1.5},
		models.KindBuy:       {Count: 2, AverageRating: 4.5},
		models.KindRisk:      {Count: 4, AverageRating: 2.5},
		models.KindRebalance: {Count: 2, AverageRating: 1.0},
	}

	out := ApplyFeedback(recs, stats)

	require.Len(t, out, 4, "sell suppressed")
	assert.Equal(t, models.PriorityHigh, out[0].Common().Priority, "buy promoted")
	assert.Equal(t, models.PriorityMedium, out[1].Common().Priority, "risk demoted")
	assert.Equal(t, models.PriorityLow, out[2].Common().Priority, "too few samples to suppress, demoted")
	assert.Equal(t, models.PriorityLow, out[3].Common().Priority, "no feedback")
}

func TestApplyFeedback_NoStats(t *testing.T) {
	recs := []models.Recommendation{portfolioAdvice(models.KindRisk, models.PriorityHigh)}
	assert.Equal(t, recs, ApplyFeedback(recs, nil))
}

func TestSortByPriority_Stable(t *testing.T) {
	a := portfolioAdvice(models.KindSector, models.PriorityLow)
	b := portfolioAdvice(models.KindRisk, models.PriorityHigh)
	c := portfolioAdvice(models.KindGoal, models.PriorityMedium)
	d := portfolioAdvice(models.KindDiversification, models.PriorityHigh)
	e := &models.PortfolioAdvice{Advice: models.Advice{Priority: "urgent"}, Category: models.KindGeneral}
	recs := []models.Recommendation{a, b, e, c, d}

	SortByPriority(recs)

	assert.Equal(t, []models.Recommendation{b, d, c, a, e}, recs)
}

// --- Trade rules ---

func TestTradeRecommendations_Thresholds(t *testing.T) {
	predictions := map[string]models.Prediction{
		"UP":    {ExpectedReturn: 0.09, Confidence: 0.8, TargetPrice: 109},
		"MOON":  {ExpectedReturn: 0.13, Confidence: 0.9},
		"DOWN":  {ExpectedReturn: -0.06, Confidence: 0.7},
		"CRASH": {ExpectedReturn: -0.08, Confidence: 0.9},
		"FLAT":  {ExpectedReturn: 0.05, Confidence: 0.75},
	}
	symbols := []string{"UP", "MOON", "DOWN", "CRASH", "FLAT", "UNKNOWN"}

	recs := tradeRecommendations(symbols, predictions, models.RiskConservative)

	require.Len(t, recs, 4)
	want := []struct {
		sym      string
		side     models.Kind
		priority models.Priority
	}{
		{"UP", models.KindBuy, models.PriorityMedium},
		{"MOON", models.KindBuy, models.PriorityHigh},
		{"DOWN", models.KindSell, models.PriorityMedium},
		{"CRASH", models.KindSell, models.PriorityHigh},
	}
	for i, w := range want {
		ta := recs[i].(*models.TradeAdvice)
		assert.Equal(t, w.sym, ta.Symbol)
		assert.Equal(t, w.side, ta.Side)
		assert.Equal(t, w.priority, ta.Priority, w.sym)
	}
	assert.Equal(t, 0.8, recs[0].(*models.TradeAdvice).Confidence)
	assert.Contains(t, recs[0].Common().Reasoning, "$109.00")
}

func TestTradeRecommendations_AggressiveIsLooser(t *testing.T) {
	predictions := map[string]models.Prediction{"X": {ExpectedReturn: 0.04}}

	assert.Empty(t, tradeRecommendations([]string{"X"}, predictions, models.RiskModerate))
	assert.Len(t, tradeRecommendations([]string{"X"}, predictions, models.RiskAggressive), 1)
}

// --- Goals, concentration, tax ---

func TestCheckGoals(t *testing.T) {
	f := newFixture(3)
	f.quotes.fundamentals["T"] = models.Fundamentals{DividendYield: 0.06}
	f.quotes.fundamentals["NVDA"] = models.Fundamentals{DividendYield: 0.001}
	p := portfolioOf("u1", holding("T", 1), holding("NVDA", 1), holding("AMD", 1))
	ctx := context.Background()

	income := models.UserRiskSettings{InvestmentGoal: models.GoalIncome}
	recs := f.svc.checkGoals(ctx, p, income, healthyProfile())
	require.Len(t, recs, 1)
	assert.Equal(t, models.KindGoal, recs[0].Kind())
	assert.Equal(t, models.PriorityMedium, recs[0].Common().Priority)

	f.quotes.fundamentals["AMD"] = models.Fundamentals{DividendYield: 0.03}
	assert.Empty(t, f.svc.checkGoals(ctx, p, income, healthyProfile()), "two of three pay")

	preserve := models.UserRiskSettings{InvestmentGoal: models.GoalPreservation}
	volatile := healthyProfile()
	volatile.Volatility = 0.18
	recs = f.svc.checkGoals(ctx, p, preserve, volatile)
	require.Len(t, recs, 1)
	assert.Equal(t, models.PriorityHigh, recs[0].Common().Priority)
	assert.Empty(t, f.svc.checkGoals(ctx, p, preserve, healthyProfile()))

	shortGrowth := models.UserRiskSettings{InvestmentGoal: models.GoalGrowth, TimeHorizon: models.HorizonShort}
	assert.Len(t, f.svc.checkGoals(ctx, p, shortGrowth, healthyProfile()), 1)
	longGrowth := models.UserRiskSettings{InvestmentGoal: models.GoalGrowth, TimeHorizon: models.HorizonLong}
	assert.Empty(t, f.svc.checkGoals(ctx, p, longGrowth, healthyProfile()))
}

func TestCheckConcentration(t *testing.T) {
	v := valuation{
		values: map[string]float64{"BIG": 30, "MID": 21, "A": 10, "B": 10, "C": 10, "D": 10, "E": 9},
		order:  []string{"BIG", "MID", "A", "B", "C", "D", "E"},
		total:  100,
	}

	recs := checkConcentration(v)

	require.Len(t, recs, 1)
	pa := recs[0].(*models.PortfolioAdvice)
	assert.Equal(t, models.KindConcentration, pa.Kind())
	assert.Equal(t, []string{"BIG", "MID"}, pa.Symbols)
	assert.Equal(t, models.PriorityMedium, pa.Priority)
}

func TestCheckTaxLoss(t *testing.T) {
	f := newFixture(3)
	now := f.svc.now()
	f.quotes.prices = map[string]float64{"LOSS": 80, "SMALL": 95, "NEW": 50, "OLD": 50, "GAIN": 150}
	p := portfolioOf("u1",
		models.Holding{Symbol: "LOSS", Quantity: 1, PurchasePrice: 100, PurchaseDate: now.AddDate(0, 0, -100)},
		models.Holding{Symbol: "SMALL", Quantity: 1, PurchasePrice: 100, PurchaseDate: now.AddDate(0, 0, -100)},
		models.Holding{Symbol: "NEW", Quantity: 1, PurchasePrice: 100, PurchaseDate: now.AddDate(0, 0, -10)},
		models.Holding{Symbol: "OLD", Quantity: 1, PurchasePrice: 100, PurchaseDate: now.AddDate(-2, 0, 0)},
		models.Holding{Symbol: "GAIN", Quantity: 1, PurchasePrice: 100, PurchaseDate: now.AddDate(0, 0, -100)},
	)

	recs := f.svc.checkTaxLoss(context.Background(), p)

	require.Len(t, recs, 1)
	tl := recs[0].(*models.TaxLossAdvice)
	assert.Equal(t, "LOSS", tl.Symbol)
	assert.InDelta(t, 0.20, tl.LossPct, 1e-12)
	assert.Equal(t, 100, tl.HeldDays)
	assert.Contains(t, tl.Reasoning, "20.0%")
}

func TestPersonalise_PreferredSectorRaised(t *testing.T) {
	energy := &models.SectorAdvice{Advice: models.Advice{Priority: models.PriorityLow}, Sector: "Energy"}
	utilities := &models.SectorAdvice{Advice: models.Advice{Priority: models.PriorityLow}, Sector: "Utilities"}

	personalise([]models.Recommendation{energy, utilities}, models.UserRiskSettings{PreferredSectors: []string{"energy"}})

	assert.Equal(t, models.PriorityMedium, energy.Priority)
	assert.Equal(t, models.PriorityLow, utilities.Priority)
}

// --- Enhanced pipeline ---

func TestGenerateEnhancedRecommendations_Pipeline(t *testing.T) {
	f := newFixture(3)
	now := f.svc.now()
	f.quotes.prices = map[string]float64{"AAPL": 100, "MSFT": 100, "XOM": 80, "JNJ": 100, "KO": 100}
	f.quotes.fundamentals["XOM"] = models.Fundamentals{Sector: "Energy"}
	f.settings.settings["alice"] = models.UserRiskSettings{
		UserID:           "alice",
		RiskTolerance:    models.RiskAggressive,
		InvestmentGoal:   models.GoalGrowth,
		TimeHorizon:      models.HorizonLong,
		PreferredSectors: []string{"Healthcare"},
		TaxConsideration: true,
	}
	f.predictor.predictions = map[string]models.Prediction{
		"AAPL": {Symbol: "AAPL", ExpectedReturn: 0.06, Confidence: 0.8, TargetPrice: 106},
		"MSFT": {Symbol: "MSFT", ExpectedReturn: -0.025, Confidence: 0.62, TargetPrice: 97.5},
	}
	f.feedback.items = []models.RecommendationFeedback{
		{UserID: "alice", RecommendationType: models.KindStockSpecific, Rating: 1},
		{UserID: "alice", RecommendationType: models.KindStockSpecific, Rating: 1},
		{UserID: "alice", RecommendationType: models.KindStockSpecific, Rating: 2},
	}
	f.risk.profile.StockRisks = map[string]models.StockRisk{"XOM": {Volatility: 0.45}}
	p := portfolioOf("alice",
		models.Holding{Symbol: "AAPL", Quantity: 1, PurchasePrice: 90, PurchaseDate: now.AddDate(0, -6, 0)},
		models.Holding{Symbol: "MSFT", Quantity: 1, PurchasePrice: 90, PurchaseDate: now.AddDate(0, -6, 0)},
		models.Holding{Symbol: "XOM", Quantity: 1, PurchasePrice: 100, PurchaseDate: now.AddDate(0, -2, 0)},
		models.Holding{Symbol: "JNJ", Quantity: 1, PurchasePrice: 90, PurchaseDate: now.AddDate(0, -6, 0)},
		models.Holding{Symbol: "KO", Quantity: 1, PurchasePrice: 90, PurchaseDate: now.AddDate(0, -6, 0)},
	)

	recs := f.svc.GenerateEnhancedRecommendations(context.Background(), p, "")

	require.NotEmpty(t, recs)
	assert.Equal(t, 30, f.predictor.days)

	for i := 1; i < len(recs); i++ {
		assert.GreaterOrEqual(t, recs[i-1].Common().Priority.Weight(), recs[i].Common().Priority.Weight())
	}

	buy, ok := findKind[*models.TradeAdvice](recs)
	require.True(t, ok)
	assert.Equal(t, "AAPL", buy.Symbol)
	assert.Equal(t, models.PriorityHigh, buy.Priority, "6% is beyond 1.5x the aggressive 3% threshold")

	var sells []string
	for _, r := range recs {
		if ta, ok := r.(*models.TradeAdvice); ok && ta.Side == models.KindSell {
			sells = append(sells, ta.Symbol)
		}
	}
	assert.Equal(t, []string{"MSFT"}, sells)

	tax, ok := findKind[*models.TaxLossAdvice](recs)
	require.True(t, ok)
	assert.Equal(t, "XOM", tax.Symbol)

	assert.NotContains(t, kinds(recs), models.KindStockSpecific, "suppressed by feedback")

	for _, r := range recs {
		if sa, ok := r.(*models.SectorAdvice); ok && sa.Sector == "Healthcare" {
			assert.Equal(t, models.PriorityMedium, sa.Priority)
		}
	}
}

func TestResolveConflicts_MergedWithGeneratedAdvice(t *testing.T) {
	f := newFixture(3)
	f.quotes.prices = map[string]float64{"AAPL": 100, "MSFT": 100}
	f.predictor.predictions = map[string]models.Prediction{
		"MSFT": {Symbol: "MSFT", ExpectedReturn: -0.10, Confidence: 0.9, TargetPrice: 90},
	}
	p := portfolioOf("u1", holding("AAPL", 1), holding("MSFT", 1))

	recs := f.svc.GenerateEnhancedRecommendations(context.Background(), p, "u1")
	generated, ok := findKind[*models.TradeAdvice](recs)
	require.True(t, ok)
	require.Equal(t, models.KindSell, generated.Side)
	require.Equal(t, models.PriorityHigh, generated.Priority)

	merged := append(recs, trade(models.KindBuy, "MSFT", 0.4, models.PriorityLow))
	resolved := ResolveConflicts(merged, p)

	var sides []models.Kind
	for _, r := range resolved {
		if ta, ok := r.(*models.TradeAdvice); ok && ta.Symbol == "MSFT" {
			sides = append(sides, ta.Side)
		}
	}
	assert.Equal(t, []models.Kind{models.KindSell}, sides)
	assert.Contains(t, generated.Reasoning, "a conflicting buy recommendation for MSFT was set aside")
}

func TestGenerateEnhancedRecommendations_TaxRequiresOptIn(t *testing.T) {
	f := newFixture(3)
	now := f.svc.now()
	f.quotes.prices["XOM"] = 50
	p := portfolioOf("bob", models.Holding{Symbol: "XOM", Quantity: 1, PurchasePrice: 100, PurchaseDate: now.AddDate(0, -3, 0)})

	recs := f.svc.GenerateEnhancedRecommendations(context.Background(), p, "bob")

	assert.NotContains(t, kinds(recs), models.KindTax)
}

func TestGenerateEnhancedRecommendations_EmptyAndFailure(t *testing.T) {
	f := newFixture(3)

	recs := f.svc.GenerateEnhancedRecommendations(context.Background(), portfolioOf("u1"), "u1")
	require.Len(t, recs, 1)
	assert.Equal(t, models.KindGeneral, recs[0].Kind())

	f.quotes.prices["AAPL"] = 100
	f.risk.panics = true
	recs = f.svc.GenerateEnhancedRecommendations(context.Background(), portfolioOf("u1", holding("AAPL", 1)), "u1")
	require.Len(t, recs, 1)
	assert.Equal(t, models.KindError, recs[0].Kind())
}

func TestGenerateEnhancedRecommendations_DiversificationAbsorbsConcentration(t *testing.T) {
	f := newFixture(3)
	f.quotes.prices["AAPL"] = 100
	f.risk.profile.DiversificationScore = 0

	recs := f.svc.GenerateEnhancedRecommendations(context.Background(), portfolioOf("u1", holding("AAPL", 1)), "u1")

	assert.Contains(t, kinds(recs), models.KindDiversification)
	assert.NotContains(t, kinds(recs), models.KindConcentration)
}
