// Package interfaces defines service contracts for folio
package interfaces

import (
	"context"

	"github.com/bobmcallan/folio/internal/models"
)

// EODHDClient provides access to the EODHD market data API
type EODHDClient interface {
	// GetRealTimeQuote retrieves the latest (delayed) price snapshot
	GetRealTimeQuote(ctx context.Context, symbol string) (*models.Quote, error)

	// GetEOD retrieves daily bars in ascending date order. limit <= 0 returns
	// the full history.
	GetEOD(ctx context.Context, symbol string, limit int) ([]models.Bar, error)

	// GetFundamentals retrieves sector and dividend data
	GetFundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error)
}
