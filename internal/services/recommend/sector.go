package recommend

import (
	"context"
	"fmt"
	"sort"

	"github.com/bobmcallan/folio/internal/models"
)

// SectorTargets is the reference sector mix, as portfolio weights.
var SectorTargets = map[string]float64{
	"Technology":             0.25,
	"Healthcare":             0.15,
	"Financials":             0.15,
	"Consumer Cyclical":      0.10,
	"Industrials":            0.10,
	"Communication Services": 0.10,
	"Consumer Defensive":     0.05,
	"Energy":                 0.05,
	"Utilities":              0.05,
	"Materials":              0.05,
}

// underweightRatio marks a sector underrepresented below this share of its target.
const underweightRatio = 0.7

type sectorGap struct {
	sector  string
	current float64
	target  float64
}

// sectorWeights sums holding weights per sector. ok is false when no
// holding has sector data.
func (s *Service) sectorWeights(ctx context.Context, valued valuation) (weights map[string]float64, ok bool) {
	weights = make(map[string]float64)
	for _, sym := range valued.order {
		f, found := s.quotes.GetFundamentals(ctx, sym)
		if !found || f.Sector == "" {
			continue
		}
		weights[f.Sector] += valued.weight(sym)
		ok = true
	}
	return weights, ok
}

// checkSectorAllocation lists every underrepresented sector, largest gap
// first, capped at maxSectors.
func (s *Service) checkSectorAllocation(ctx context.Context, valued valuation) []models.Recommendation {
	if valued.total <= 0 {
		return nil
	}
	weights, ok := s.sectorWeights(ctx, valued)
	if !ok {
		s.logger.Debug().Msg("No sector data, skipping sector allocation")
		return nil
	}

	var gaps []sectorGap
	for sector, target := range SectorTargets {
		current := weights[sector]
		if current < target*underweightRatio {
			gaps = append(gaps, sectorGap{sector: sector, current: current, target: target})
		}
	}
	sort.Slice(gaps, func(i, j int) bool {
		gi, gj := gaps[i].target-gaps[i].current, gaps[j].target-gaps[j].current
		if gi != gj {
			return gi > gj
		}
		return gaps[i].sector < gaps[j].sector
	})
	if s.maxSectors > 0 && len(gaps) > s.maxSectors {
		gaps = gaps[:s.maxSectors]
	}

	recs := make([]models.Recommendation, 0, len(gaps))
	for _, g := range gaps {
		recs = append(recs, &models.SectorAdvice{
			Advice: models.Advice{
				Action: fmt.Sprintf("Consider adding %s stocks to your portfolio", g.sector),
				Reasoning: fmt.Sprintf("Your portfolio is underweight in %s at %.1f%% vs target of %.1f%%",
					g.sector, g.current*100, g.target*100),
				Priority: models.PriorityLow,
			},
			Sector:  g.sector,
			Current: g.current,
			Target:  g.target,
		})
	}
	return recs
}
