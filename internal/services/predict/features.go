package predict

import (
	"time"

	"github.com/bobmcallan/folio/internal/models"
	"github.com/bobmcallan/folio/internal/signals"
)

// Feature column names, in model order.
var featureNames = []string{"sma_5", "sma_20", "rsi_14", "return_1d", "return_5d", "volatility"}

// Features is the per-day feature table for one symbol, restricted to days on
// which every feature is defined. All slices share one length.
type Features struct {
	Dates      []time.Time
	Close      []float64
	Return1d   []float64
	Return5d   []float64
	SMA5       []float64
	SMA20      []float64
	RSI14      []float64
	Volatility []float64
}

// Len returns the number of usable rows.
func (f *Features) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Close)
}

// Row returns the model inputs for row i in featureNames order.
func (f *Features) Row(i int) []float64 {
	return []float64{f.SMA5[i], f.SMA20[i], f.RSI14[i], f.Return1d[i], f.Return5d[i], f.Volatility[i]}
}

// GenerateFeatures derives 1- and 5-day returns, 5- and 20-day SMAs, 14-day
// RSI and 20-day volatility of daily returns from ascending bars, then drops
// every day with an undefined value.
func GenerateFeatures(bars []models.Bar) *Features {
	closes := models.Closes(bars)

	ret1 := signals.PctChange(closes, 1)
	ret5 := signals.PctChange(closes, 5)
	sma5 := signals.SMA(closes, 5)
	sma20 := signals.SMA(closes, 20)
	rsi := signals.RSI(closes, 14)
	vol := signals.RollingStd(ret1, 20)

	rows := signals.CompleteRows(ret1, ret5, sma5, sma20, rsi, vol)

	f := &Features{
		Dates:      make([]time.Time, 0, len(rows)),
		Close:      make([]float64, 0, len(rows)),
		Return1d:   make([]float64, 0, len(rows)),
		Return5d:   make([]float64, 0, len(rows)),
		SMA5:       make([]float64, 0, len(rows)),
		SMA20:      make([]float64, 0, len(rows)),
		RSI14:      make([]float64, 0, len(rows)),
		Volatility: make([]float64, 0, len(rows)),
	}
	for _, i := range rows {
		f.Dates = append(f.Dates, bars[i].Date)
		f.Close = append(f.Close, closes[i])
		f.Return1d = append(f.Return1d, ret1[i])
		f.Return5d = append(f.Return5d, ret5[i])
		f.SMA5 = append(f.SMA5, sma5[i])
		f.SMA20 = append(f.SMA20, sma20[i])
		f.RSI14 = append(f.RSI14, rsi[i])
		f.Volatility = append(f.Volatility, vol[i])
	}
	return f
}
