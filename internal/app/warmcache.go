package app

import (
	"context"
	"os"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

// warmCache pre-fetches quotes for every held symbol so the first analytics
// call does not pay for them. Each symbol is fetched once.
func warmCache(ctx context.Context, portfolios interfaces.PortfolioStore, quotes interfaces.QuoteProvider, logger *common.Logger) int {
	if os.Getenv("FOLIO_WARM_CACHE") == "off" {
		logger.Info().Msg("Warm cache: disabled via FOLIO_WARM_CACHE=off")
		return 0
	}

	start := time.Now()
	all, err := portfolios.ListPortfolios(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Warm cache: failed to list portfolios")
		return 0
	}

	seen := make(map[string]bool)
	var symbols []string
	for _, p := range all {
		for _, h := range p.Holdings {
			if h.Quantity < models.QuantityEpsilon || seen[h.Symbol] {
				continue
			}
			seen[h.Symbol] = true
			symbols = append(symbols, h.Symbol)
		}
	}
	if len(symbols) == 0 {
		logger.Info().Msg("Warm cache: no holdings, skipping")
		return 0
	}

	warmed := 0
	for _, sym := range symbols {
		if ctx.Err() != nil {
			break
		}
		if _, ok := quotes.GetQuote(ctx, sym); ok {
			warmed++
		}
	}

	logger.Info().
		Int("symbols", len(symbols)).
		Int("warmed", warmed).
		Dur("elapsed", time.Since(start)).
		Msg("Warm cache: complete")
	return warmed
}

// StartWarmCache launches the background quote warm-up.
func (a *App) StartWarmCache() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		warmCache(ctx, a.Storage.PortfolioStore(), a.Quotes, a.Logger.Component("warmcache"))
	}()
}
