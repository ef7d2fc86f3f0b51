package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/campusguard/argus/internal/bus"
	"github.com/campusguard/argus/internal/domain"
)

type stubTimelines map[string]*domain.Timeline

func (s stubTimelines) Build(_ context.Context, entityID string, _ time.Time) (*domain.Timeline, error) {
	tl, ok := s[entityID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return tl, nil
}

func sampleTimeline() *domain.Timeline {
	at := func(d, h int) time.Time { return time.Date(2025, 3, d, h, 15, 0, 0, time.UTC) }
	return &domain.Timeline{
		EntityID:        "E1",
		CurrentLocation: "LIB",
		Entries: []domain.TimelineEntry{
			{Timestamp: at(5, 14), Location: "LIB"},
			{Timestamp: at(4, 14), Location: "LIB"},
			{Timestamp: at(4, 9), Location: "LIB"},
			{Timestamp: at(3, 10), Location: "LAB"},
			{Timestamp: at(3, 9), Location: ""},
		},
	}
}

func TestBuildFeatures(t *testing.T) {
	// Saturday
	at := time.Date(2025, 3, 8, 14, 0, 0, 0, time.UTC)
	f := BuildFeatures(sampleTimeline(), "LIB", at, 42)

	if f.Hour != 14 || f.DayOfWeek != 5 || f.DayOfMonth != 8 || f.Month != 3 {
		t.Errorf("unexpected calendar features: %+v", f)
	}
	if !f.IsWeekend || !f.IsPeakHour {
		t.Errorf("expected weekend peak hour, got weekend=%v peak=%v", f.IsWeekend, f.IsPeakHour)
	}
	if f.TimeOfDay != "afternoon" {
		t.Errorf("expected afternoon, got %s", f.TimeOfDay)
	}
	if f.VisitCount != 3 || f.LocationHourCount != 2 || f.UniqueLocations != 2 {
		t.Errorf("unexpected activity features: visits=%d hour=%d unique=%d",
			f.VisitCount, f.LocationHourCount, f.UniqueLocations)
	}
	if f.CurrentOccupancy != 42 || f.EntityID != "E1" || f.Source != FeatureSource {
		t.Errorf("unexpected passthrough features: %+v", f)
	}

	t.Run("MondayIsZero", func(t *testing.T) {
		monday := time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC)
		f := BuildFeatures(nil, "LIB", monday, 0)
		if f.DayOfWeek != 0 || f.IsWeekend || f.IsPeakHour {
			t.Errorf("unexpected monday features: %+v", f)
		}
	})
}

func TestTimeOfDay(t *testing.T) {
	tests := map[int]string{0: "night", 5: "night", 6: "morning", 11: "morning", 12: "afternoon", 16: "afternoon", 17: "evening", 20: "evening", 21: "night"}
	for hour, want := range tests {
		if got := TimeOfDay(hour); got != want {
			t.Errorf("TimeOfDay(%d) = %s, want %s", hour, got, want)
		}
	}
}

func TestFallbackForecaster(t *testing.T) {
	fc, err := (&FallbackForecaster{}).Forecast(context.Background(), domain.ForecastFeatures{Location: "LIB", CurrentOccupancy: 17})
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}
	if fc.Count != 17 || fc.Confidence != FallbackConfidence || fc.Model != FallbackModel {
		t.Errorf("unexpected fallback forecast: %+v", fc)
	}
}

func TestBusForecaster(t *testing.T) {
	ctx := context.Background()

	t.Run("EnsembleReply", func(t *testing.T) {
		b := bus.NewChannelBus(10)
		defer b.Close()

		b.Subscribe(ctx, domain.TopicForecastRequest, func(ctx context.Context, msg *domain.Message) error {
			var f domain.ForecastFeatures
			if err := json.Unmarshal(msg.Payload, &f); err != nil {
				return err
			}
			reply, _ := json.Marshal(ensembleReply{Count: float64(f.CurrentOccupancy) * 1.5, Confidence: 0.91, Model: "SpaceFlow-v1.0-Ensemble"})
			return b.Respond(ctx, msg, reply)
		})

		fc, err := NewBusForecaster(b, time.Second, nil).Forecast(ctx, domain.ForecastFeatures{Location: "LIB", CurrentOccupancy: 20})
		if err != nil {
			t.Fatalf("Forecast failed: %v", err)
		}
		if fc.Count != 30 || fc.Confidence != 0.91 || fc.Model != "SpaceFlow-v1.0-Ensemble" {
			t.Errorf("unexpected ensemble forecast: %+v", fc)
		}
	})

	t.Run("FallbackOnTimeout", func(t *testing.T) {
		b := bus.NewChannelBus(10)
		defer b.Close()

		fc, err := NewBusForecaster(b, 20*time.Millisecond, nil).Forecast(ctx, domain.ForecastFeatures{Location: "LIB", CurrentOccupancy: 9})
		if err != nil {
			t.Fatalf("Forecast failed: %v", err)
		}
		if fc.Model != FallbackModel || fc.Count != 9 {
			t.Errorf("expected fallback forecast, got %+v", fc)
		}
	})

	t.Run("FallbackOnEnsembleError", func(t *testing.T) {
		b := bus.NewChannelBus(10)
		defer b.Close()

		b.Subscribe(ctx, domain.TopicForecastRequest, func(ctx context.Context, msg *domain.Message) error {
			reply, _ := json.Marshal(ensembleReply{Error: "model not loaded"})
			return b.Respond(ctx, msg, reply)
		})

		fc, err := NewBusForecaster(b, time.Second, nil).Forecast(ctx, domain.ForecastFeatures{CurrentOccupancy: 3})
		if err != nil {
			t.Fatalf("Forecast failed: %v", err)
		}
		if fc.Model != FallbackModel {
			t.Errorf("expected fallback forecast, got %+v", fc)
		}
	})
}

func TestService(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	svc := NewService(stubTimelines{"E1": sampleTimeline(), "E2": {EntityID: "E2"}}, nil, nil)
	svc.Now = func() time.Time { return now }
	ctx := context.Background()

	t.Run("DefaultsToCurrentLocation", func(t *testing.T) {
		res, err := svc.Forecast(ctx, Request{EntityID: "E1", Occupancy: 5})
		if err != nil {
			t.Fatalf("Forecast failed: %v", err)
		}
		if res.Features.Location != "LIB" || !res.Forecast.At.Equal(now) {
			t.Errorf("unexpected defaults: %+v at %v", res.Features, res.Forecast.At)
		}
		if res.Forecast.Model != FallbackModel {
			t.Errorf("expected fallback model, got %s", res.Forecast.Model)
		}
	})

	t.Run("NoLocation", func(t *testing.T) {
		_, err := svc.Forecast(ctx, Request{EntityID: "E2"})
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("NegativeOccupancy", func(t *testing.T) {
		_, err := svc.Forecast(ctx, Request{EntityID: "E1", Occupancy: -1})
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("UnknownEntity", func(t *testing.T) {
		_, err := svc.Forecast(ctx, Request{EntityID: "nobody", Location: "LIB"})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
