package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

// historyRow is the stored shape of a HistoryPoint. The date is a
// "2006-01-02" string so that one calendar day maps to one record regardless
// of the caller's time zone.
type historyRow struct {
	PortfolioID string  `json:"portfolio_id"`
	Date        string  `json:"date"`
	TotalValue  float64 `json:"total_value"`
}

func (r historyRow) point() (models.HistoryPoint, error) {
	d, err := time.ParseInLocation("2006-01-02", r.Date, time.Local)
	if err != nil {
		return models.HistoryPoint{}, fmt.Errorf("bad history date %q: %w", r.Date, err)
	}
	return models.HistoryPoint{PortfolioID: r.PortfolioID, Date: d, TotalValue: r.TotalValue}, nil
}

// HistoryStore implements interfaces.HistoryStore using SurrealDB.
type HistoryStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewHistoryStore creates a new HistoryStore.
func NewHistoryStore(db *surrealdb.DB, logger *common.Logger) *HistoryStore {
	return &HistoryStore{db: db, logger: logger}
}

func historyID(portfolioID string, date time.Time) string {
	return portfolioID + "_" + common.DateKey(date)
}

// UpsertPoint replaces the value for point.Date's day. The record id is
// derived from (portfolio, day), so repeated writes update in place.
func (s *HistoryStore) UpsertPoint(ctx context.Context, point models.HistoryPoint) error {
	sql := `UPSERT $rid SET
		portfolio_id = $portfolio_id, date = $date, total_value = $total_value,
		updated_at = time::now()`
	vars := map[string]any{
		"rid":          surrealmodels.NewRecordID(tableHistory, historyID(point.PortfolioID, point.Date)),
		"portfolio_id": point.PortfolioID,
		"date":         common.DateKey(point.Date),
		"total_value":  point.TotalValue,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to upsert history point: %w", err)
	}
	return nil
}

func (s *HistoryStore) GetPoint(ctx context.Context, portfolioID string, date time.Time) (*models.HistoryPoint, error) {
	sql := "SELECT portfolio_id, date, total_value FROM $rid"
	vars := map[string]any{"rid": surrealmodels.NewRecordID(tableHistory, historyID(portfolioID, date))}

	results, err := surrealdb.Query[[]historyRow](ctx, s.db, sql, vars)
	if err != nil {
		if isNotFoundError(err) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get history point: %w", err)
	}

	rows := firstResult(results)
	if len(rows) == 0 {
		return nil, interfaces.ErrNotFound
	}
	p, err := rows[0].point()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPoints returns every point for the portfolio ordered by date ascending.
func (s *HistoryStore) ListPoints(ctx context.Context, portfolioID string) ([]models.HistoryPoint, error) {
	sql := "SELECT portfolio_id, date, total_value FROM portfolio_history WHERE portfolio_id = $portfolio_id ORDER BY date ASC"
	vars := map[string]any{"portfolio_id": portfolioID}

	results, err := surrealdb.Query[[]historyRow](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	rows := firstResult(results)
	points := make([]models.HistoryPoint, 0, len(rows))
	for _, r := range rows {
		p, err := r.point()
		if err != nil {
			s.logger.Warn().Str("portfolio_id", portfolioID).Err(err).Msg("Skipping malformed history row")
			continue
		}
		points = append(points, p)
	}
	return points, nil
}

var _ interfaces.HistoryStore = (*HistoryStore)(nil)
