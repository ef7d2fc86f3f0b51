package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/campusguard/argus/internal/domain"
)

// Fallback policy.
const (
	FallbackModel      = "Fallback-Heuristic"
	FallbackConfidence = 0.60
)

// FallbackForecaster predicts the current occupancy unchanged.
type FallbackForecaster struct {
	Now func() time.Time
}

// Forecast implements domain.Forecaster.
func (f *FallbackForecaster) Forecast(_ context.Context, features domain.ForecastFeatures) (*domain.Forecast, error) {
	now := time.Now
	if f != nil && f.Now != nil {
		now = f.Now
	}
	return &domain.Forecast{
		Location:    features.Location,
		Count:       float64(features.CurrentOccupancy),
		Confidence:  FallbackConfidence,
		Model:       FallbackModel,
		GeneratedAt: now().UTC(),
	}, nil
}

// ensembleReply is the wire shape returned by the ensemble.
type ensembleReply struct {
	Count      float64 `json:"forecast_count"`
	Confidence float64 `json:"confidence"`
	Model      string  `json:"model_version"`
	Error      string  `json:"error,omitempty"`
}

// BusForecaster asks a remote ensemble over request-reply on the event bus.
// Any transport or decoding failure is served by the fallback.
type BusForecaster struct {
	bus      domain.EventBus
	timeout  time.Duration
	fallback domain.Forecaster
}

// NewBusForecaster creates a bus-backed forecaster.
func NewBusForecaster(bus domain.EventBus, timeout time.Duration, fallback domain.Forecaster) *BusForecaster {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if fallback == nil {
		fallback = &FallbackForecaster{}
	}
	return &BusForecaster{bus: bus, timeout: timeout, fallback: fallback}
}

// Forecast implements domain.Forecaster.
func (b *BusForecaster) Forecast(ctx context.Context, features domain.ForecastFeatures) (*domain.Forecast, error) {
	out, err := b.request(ctx, features)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("forecast ensemble unavailable, using fallback",
			"location", features.Location,
			"error", err,
		)
		return b.fallback.Forecast(ctx, features)
	}
	return out, nil
}

func (b *BusForecaster) request(ctx context.Context, features domain.ForecastFeatures) (*domain.Forecast, error) {
	payload, err := json.Marshal(features)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal features: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	data, err := b.bus.Request(reqCtx, domain.TopicForecastRequest, payload)
	if err != nil {
		return nil, err
	}

	var reply ensembleReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("failed to decode ensemble reply: %w", err)
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("ensemble error: %s", reply.Error)
	}

	return &domain.Forecast{
		Location:    features.Location,
		Count:       max(reply.Count, 0),
		Confidence:  reply.Confidence,
		Model:       reply.Model,
		GeneratedAt: time.Now().UTC(),
	}, nil
}
