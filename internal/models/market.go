package models

import "time"

// Quote is a current price snapshot for a symbol.
type Quote struct {
	Symbol             string    `json:"symbol"`
	CurrentPrice       float64   `json:"current_price"`
	DailyChange        float64   `json:"daily_change"`
	DailyChangePercent float64   `json:"daily_change_percent"`
	Volume             int64     `json:"volume"`
	High               float64   `json:"high"`
	Low                float64   `json:"low"`
	Timestamp          time.Time `json:"timestamp"`
}

// Bar is one day of OHLCV data.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Fundamentals carries the company attributes used by the recommendation rules.
type Fundamentals struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	Sector        string    `json:"sector"`
	Industry      string    `json:"industry"`
	DividendYield float64   `json:"dividend_yield"` // fraction, 0.02 = 2%
	Beta          float64   `json:"beta"`
	LastUpdated   time.Time `json:"last_updated"`
}

// OutputSize selects how many trailing daily bars to request.
type OutputSize int

const (
	// OutputFull requests all available history.
	OutputFull OutputSize = 0
	// OutputCompact requests the last 100 trading days.
	OutputCompact OutputSize = 100
	// OutputYear requests roughly one year of trading days.
	OutputYear OutputSize = 252
)

// Closes extracts the close series from bars.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
