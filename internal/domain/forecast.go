package domain

import (
	"context"
	"time"
)

// ForecastFeatures is the flattened input vector consumed by the occupancy ensemble.
type ForecastFeatures struct {
	Hour              int    `json:"hour"`
	DayOfWeek         int    `json:"day_of_week"` // Monday = 0
	DayOfMonth        int    `json:"day_of_month"`
	Month             int    `json:"month"`
	IsWeekend         bool   `json:"is_weekend"`
	IsPeakHour        bool   `json:"is_peak_hour"`
	VisitCount        int    `json:"visit_count"`
	UniqueLocations   int    `json:"unique_locations"`
	LocationHourCount int    `json:"location_hour_count"`
	CurrentOccupancy  int    `json:"current_occupancy"`
	Location          string `json:"location"`
	TimeOfDay         string `json:"time_of_day"`
	Source            string `json:"source"`
	EntityID          string `json:"entity_id"`
}

// Forecast is a point estimate returned by a forecaster.
type Forecast struct {
	Location    string    `json:"location"`
	At          time.Time `json:"at"`
	Count       float64   `json:"forecast_count"`
	Confidence  float64   `json:"confidence"`
	Model       string    `json:"model"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Forecaster is the opaque occupancy prediction ensemble.
type Forecaster interface {
	Forecast(ctx context.Context, features ForecastFeatures) (*Forecast, error)
}
