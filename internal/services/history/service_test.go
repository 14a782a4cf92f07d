package history

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

// --- Mocks ---

type mockQuotes struct {
	prices map[string]float64
}

func (m *mockQuotes) GetQuote(_ context.Context, symbol string) (*models.Quote, bool) {
	p, ok := m.prices[symbol]
	if !ok {
		return nil, false
	}
	return &models.Quote{Symbol: symbol, CurrentPrice: p}, true
}

func (m *mockQuotes) GetDailyHistory(_ context.Context, _ string, _ models.OutputSize) ([]models.Bar, error) {
	return nil, nil
}

func (m *mockQuotes) GetFundamentals(_ context.Context, _ string) (*models.Fundamentals, bool) {
	return nil, false
}

// memHistory keys points by (portfolio, day) like the real store.
type memHistory struct {
	points map[string]models.HistoryPoint
	err    error
}

func newMemHistory() *memHistory {
	return &memHistory{points: make(map[string]models.HistoryPoint)}
}

func (m *memHistory) UpsertPoint(_ context.Context, p models.HistoryPoint) error {
	if m.err != nil {
		return m.err
	}
	m.points[p.PortfolioID+"_"+common.DateKey(p.Date)] = p
	return nil
}

func (m *memHistory) GetPoint(_ context.Context, id string, d time.Time) (*models.HistoryPoint, error) {
	p, ok := m.points[id+"_"+common.DateKey(d)]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return &p, nil
}

func (m *memHistory) ListPoints(_ context.Context, id string) ([]models.HistoryPoint, error) {
	var out []models.HistoryPoint
	for _, p := range m.points {
		if p.PortfolioID == id {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

type mockPortfolios struct {
	list []*models.Portfolio
}

func (m *mockPortfolios) GetPortfolio(context.Context, string) (*models.Portfolio, error) {
	return nil, interfaces.ErrNotFound
}
func (m *mockPortfolios) SavePortfolio(context.Context, *models.Portfolio) error { return nil }
func (m *mockPortfolios) ListPortfolios(context.Context) ([]*models.Portfolio, error) {
	return m.list, nil
}
func (m *mockPortfolios) DeletePortfolio(context.Context, string) error { return nil }
func (m *mockPortfolios) SaveHolding(context.Context, string, models.Holding) error {
	return nil
}
func (m *mockPortfolios) DeleteHolding(context.Context, string, string) error { return nil }

func newTestService(prices map[string]float64, store *memHistory, now time.Time) *Service {
	svc := NewService(&mockQuotes{prices: prices}, store, &mockPortfolios{}, nil, common.NewSilentLogger())
	svc.now = func() time.Time { return now }
	return svc
}

func seed(store *memHistory, id string, days int) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.Local)
	for i := 0; i < days; i++ {
		store.UpsertPoint(context.Background(), models.HistoryPoint{
			PortfolioID: id,
			Date:        start.AddDate(0, 0, i),
			TotalValue:  float64(i + 1),
		})
	}
}

func TestRecordPortfolioValue_SkipsMissingQuotes(t *testing.T) {
	store := newMemHistory()
	svc := newTestService(map[string]float64{"AAPL": 160}, store, time.Date(2026, 3, 2, 15, 0, 0, 0, time.Local))

	p := &models.Portfolio{ID: "pf1", Holdings: []models.Holding{
		{Symbol: "AAPL", Quantity: 10},
		{Symbol: "GONE", Quantity: 5},
	}}

	total, err := svc.RecordPortfolioValue(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 1600.0, total)

	got, err := store.GetPoint(context.Background(), "pf1", time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local))
	require.NoError(t, err)
	assert.Equal(t, 1600.0, got.TotalValue)
}

func TestRecordPortfolioValue_TwiceSameDayKeepsOnePoint(t *testing.T) {
	store := newMemHistory()
	prices := map[string]float64{"AAPL": 160}
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.Local)
	svc := newTestService(prices, store, now)

	p := &models.Portfolio{ID: "pf1", Holdings: []models.Holding{{Symbol: "AAPL", Quantity: 10}}}

	_, err := svc.RecordPortfolioValue(context.Background(), p)
	require.NoError(t, err)

	prices["AAPL"] = 170
	svc.now = func() time.Time { return now.Add(8 * time.Hour) }
	_, err = svc.RecordPortfolioValue(context.Background(), p)
	require.NoError(t, err)

	points, err := svc.GetHistory(context.Background(), "pf1", 30)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 1700.0, points[0].TotalValue)
}

func TestRecordPortfolioValue_EmptyPortfolioRecordsZero(t *testing.T) {
	store := newMemHistory()
	svc := newTestService(nil, store, time.Now())

	total, err := svc.RecordPortfolioValue(context.Background(), &models.Portfolio{ID: "pf1"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, total)
	assert.Len(t, store.points, 1)
}

func TestRecordPortfolioValue_PersistenceError(t *testing.T) {
	store := newMemHistory()
	store.err = errors.New("db down")
	svc := newTestService(map[string]float64{"AAPL": 10}, store, time.Now())

	total, err := svc.RecordPortfolioValue(context.Background(), &models.Portfolio{ID: "pf1", Holdings: []models.Holding{{Symbol: "AAPL", Quantity: 1}}})
	require.Error(t, err)
	assert.Equal(t, 10.0, total)
}

// GetHistory keeps the earliest days points once more than days exist.
func TestGetHistory_ReturnsEarliestPoints(t *testing.T) {
	store := newMemHistory()
	seed(store, "pf1", 40)
	svc := newTestService(nil, store, time.Now())

	points, err := svc.GetHistory(context.Background(), "pf1", 30)
	require.NoError(t, err)
	require.Len(t, points, 30)
	assert.Equal(t, 1.0, points[0].TotalValue)
	assert.Equal(t, 30.0, points[29].TotalValue)
}

func TestGetRecentHistory_ReturnsLatestPoints(t *testing.T) {
	store := newMemHistory()
	seed(store, "pf1", 40)
	svc := newTestService(nil, store, time.Now())

	points, err := svc.GetRecentHistory(context.Background(), "pf1", 30)
	require.NoError(t, err)
	require.Len(t, points, 30)
	assert.Equal(t, 11.0, points[0].TotalValue)
	assert.Equal(t, 40.0, points[29].TotalValue)
}

func TestGetHistory_FewerThanLimitAndDefault(t *testing.T) {
	store := newMemHistory()
	seed(store, "pf1", 5)
	svc := newTestService(nil, store, time.Now())

	points, err := svc.GetHistory(context.Background(), "pf1", 0)
	require.NoError(t, err)
	assert.Len(t, points, 5)

	recent, err := svc.GetRecentHistory(context.Background(), "pf1", 30)
	require.NoError(t, err)
	assert.Equal(t, points, recent)
}

func TestRecordAll(t *testing.T) {
	store := newMemHistory()
	svc := newTestService(map[string]float64{"AAPL": 100}, store, time.Date(2026, 3, 2, 16, 30, 0, 0, time.Local))
	svc.portfolios = &mockPortfolios{list: []*models.Portfolio{
		{ID: "pf1", Holdings: []models.Holding{{Symbol: "AAPL", Quantity: 1}}},
		{ID: "pf2", Holdings: []models.Holding{{Symbol: "AAPL", Quantity: 2}}},
	}}

	n, err := svc.RecordAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	p2, err := store.GetPoint(context.Background(), "pf2", time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local))
	require.NoError(t, err)
	assert.Equal(t, 200.0, p2.TotalValue)
}
