package models

import "time"

// PredictionMethod records which path produced a prediction.
type PredictionMethod string

const (
	PredictionModel    PredictionMethod = "model"
	PredictionBaseline PredictionMethod = "baseline"
)

// Prediction is a forward return forecast for one symbol.
type Prediction struct {
	Symbol         string           `json:"symbol"`
	ExpectedReturn float64          `json:"expected_return"`
	TargetPrice    float64          `json:"target_price"`
	Confidence     float64          `json:"confidence"` // heuristic, in [0, 0.9]
	Method         PredictionMethod `json:"method"`
}

// PricePoint is a dated price, observed or projected.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// Forecast is a Prediction with the recent closes it was made from and the
// projected path to its target.
type Forecast struct {
	Prediction
	Recent []PricePoint `json:"recent"`
	Path   []PricePoint `json:"path"`
}
