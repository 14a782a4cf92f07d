package surrealdb

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

// SettingsStore implements interfaces.SettingsStore using SurrealDB.
type SettingsStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewSettingsStore creates a new SettingsStore.
func NewSettingsStore(db *surrealdb.DB, logger *common.Logger) *SettingsStore {
	return &SettingsStore{db: db, logger: logger}
}

func (s *SettingsStore) GetSettings(ctx context.Context, userID string) (*models.UserRiskSettings, error) {
	sql := `SELECT user_id, risk_tolerance, investment_goal, time_horizon,
		preferred_sectors, tax_consideration FROM $rid`
	vars := map[string]any{"rid": surrealmodels.NewRecordID(tableSettings, userID)}

	results, err := surrealdb.Query[[]models.UserRiskSettings](ctx, s.db, sql, vars)
	if err != nil {
		if isNotFoundError(err) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	rows := firstResult(results)
	if len(rows) == 0 {
		return nil, interfaces.ErrNotFound
	}
	return &rows[0], nil
}

func (s *SettingsStore) SaveSettings(ctx context.Context, settings *models.UserRiskSettings) error {
	if settings.UserID == "" {
		return fmt.Errorf("settings require a user id")
	}
	sectors := settings.PreferredSectors
	if sectors == nil {
		sectors = []string{}
	}

	sql := `UPSERT $rid SET
		user_id = $user_id, risk_tolerance = $risk_tolerance,
		investment_goal = $investment_goal, time_horizon = $time_horizon,
		preferred_sectors = $preferred_sectors, tax_consideration = $tax_consideration`
	vars := map[string]any{
		"rid":               surrealmodels.NewRecordID(tableSettings, settings.UserID),
		"user_id":           settings.UserID,
		"risk_tolerance":    string(settings.RiskTolerance),
		"investment_goal":   string(settings.InvestmentGoal),
		"time_horizon":      settings.TimeHorizon,
		"preferred_sectors": sectors,
		"tax_consideration": settings.TaxConsideration,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

var _ interfaces.SettingsStore = (*SettingsStore)(nil)
