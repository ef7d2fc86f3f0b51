package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/campusguard/argus/internal/domain"
	"github.com/campusguard/argus/internal/metrics"
)

// TimelineSource builds entity timelines.
type TimelineSource interface {
	Build(ctx context.Context, entityID string, since time.Time) (*domain.Timeline, error)
}

// Request asks for an occupancy forecast in an entity's context.
type Request struct {
	EntityID  string    `json:"-"`
	Location  string    `json:"location"`
	At        time.Time `json:"at"`
	Occupancy int       `json:"current_occupancy"`
}

// Result pairs a forecast with the features it was computed from.
type Result struct {
	Features domain.ForecastFeatures `json:"features"`
	Forecast *domain.Forecast        `json:"forecast"`
}

// Service shapes features from a timeline and queries a forecaster.
type Service struct {
	timelines  TimelineSource
	forecaster domain.Forecaster
	metrics    *metrics.Collector

	Now func() time.Time
}

// NewService creates a forecast service.
func NewService(timelines TimelineSource, forecaster domain.Forecaster, m *metrics.Collector) *Service {
	if forecaster == nil {
		forecaster = &FallbackForecaster{}
	}
	return &Service{
		timelines:  timelines,
		forecaster: forecaster,
		metrics:    m,
		Now:        time.Now,
	}
}

// Forecast predicts occupancy for req.Location at req.At.
// An empty location defaults to the entity's current location and a zero
// time defaults to now.
func (s *Service) Forecast(ctx context.Context, req Request) (*Result, error) {
	if req.Occupancy < 0 {
		return nil, fmt.Errorf("current_occupancy must be non-negative: %w", domain.ErrInvalidInput)
	}

	tl, err := s.timelines.Build(ctx, req.EntityID, time.Time{})
	if err != nil {
		return nil, err
	}

	at := req.At
	if at.IsZero() {
		at = s.Now().UTC()
	}
	location := req.Location
	if location == "" {
		location = tl.CurrentLocation
	}
	if location == "" {
		return nil, fmt.Errorf("no location given and entity %s has none: %w", req.EntityID, domain.ErrInvalidInput)
	}

	features := BuildFeatures(tl, location, at, req.Occupancy)
	fc, err := s.forecaster.Forecast(ctx, features)
	if err != nil {
		return nil, fmt.Errorf("forecast failed: %w", err)
	}
	fc.At = at

	s.metrics.Forecast(fc.Model)
	return &Result{Features: features, Forecast: fc}, nil
}
