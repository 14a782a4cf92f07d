package recommend

import (
	"fmt"

	"github.com/bobmcallan/folio/internal/models"
)

// Sell scores are scaled by these factors depending on whether the symbol
// is currently held.
const (
	heldSellBias   = 1.1
	unheldSellBias = 0.9
)

// tradeScore is confidence × priority weight, with the sell bias applied.
func tradeScore(t *models.TradeAdvice, held bool) float64 {
	score := t.Confidence * float64(t.Priority.Weight())
	if t.Side == models.KindSell {
		if held {
			score *= heldSellBias
		} else {
			score *= unheldSellBias
		}
	}
	return score
}

// ResolveConflicts removes contradictory advice. For each symbol with both
// buy and sell advice the highest scoring trade is kept; equal scores keep
// the sell. When diversification and concentration advice coexist only the
// higher priority is kept, diversification on a tie. Kept advice gets a note
// about what it replaced. Order of the survivors is preserved.
func ResolveConflicts(recs []models.Recommendation, portfolio *models.Portfolio) []models.Recommendation {
	drop := make(map[int]bool)

	trades := make(map[string][]int)
	var symbols []string
	for i, r := range recs {
		t, ok := r.(*models.TradeAdvice)
		if !ok || (t.Side != models.KindBuy && t.Side != models.KindSell) {
			continue
		}
		if _, seen := trades[t.Symbol]; !seen {
			symbols = append(symbols, t.Symbol)
		}
		trades[t.Symbol] = append(trades[t.Symbol], i)
	}

	for _, sym := range symbols {
		idx := trades[sym]
		if !hasBothSides(recs, idx) {
			continue
		}
		held := false
		if portfolio != nil {
			_, held = portfolio.Holding(sym)
		}

		best := -1
		bestScore := 0.0
		for _, i := range idx {
			t := recs[i].(*models.TradeAdvice)
			score := tradeScore(t, held)
			if best < 0 || score > bestScore || (score == bestScore && t.Side == models.KindSell && recs[best].Kind() != models.KindSell) {
				best, bestScore = i, score
			}
		}

		winner := recs[best].(*models.TradeAdvice)
		for _, i := range idx {
			if i == best {
				continue
			}
			drop[i] = true
			if recs[i].Kind() != winner.Side {
				winner.Reasoning += fmt.Sprintf(" (a conflicting %s recommendation for %s was set aside)", recs[i].Kind(), sym)
			}
		}
	}

	div, conc := -1, -1
	for i, r := range recs {
		switch r.Kind() {
		case models.KindDiversification:
			if div < 0 {
				div = i
			}
		case models.KindConcentration:
			if conc < 0 {
				conc = i
			}
		}
	}
	if div >= 0 && conc >= 0 {
		keep, lose := div, conc
		if recs[conc].Common().Priority.Weight() > recs[div].Common().Priority.Weight() {
			keep, lose = conc, div
		}
		drop[lose] = true
		recs[keep].Common().Reasoning += fmt.Sprintf(" (overlapping %s advice was merged into this one)", recs[lose].Kind())
	}

	if len(drop) == 0 {
		return recs
	}
	out := make([]models.Recommendation, 0, len(recs)-len(drop))
	for i, r := range recs {
		if !drop[i] {
			out = append(out, r)
		}
	}
	return out
}

func hasBothSides(recs []models.Recommendation, idx []int) bool {
	buy, sell := false, false
	for _, i := range idx {
		switch recs[i].Kind() {
		case models.KindBuy:
			buy = true
		case models.KindSell:
			sell = true
		}
	}
	return buy && sell
}
