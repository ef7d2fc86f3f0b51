// Package forecast shapes occupancy features and queries the forecast ensemble.
package forecast

import (
	"time"

	"github.com/campusguard/argus/internal/domain"
)

// FeatureSource labels features derived from an entity timeline.
const FeatureSource = "timeline"

// BuildFeatures flattens a timeline into the ensemble's input vector for a
// location at a point in time.
func BuildFeatures(tl *domain.Timeline, location string, at time.Time, occupancy int) domain.ForecastFeatures {
	hour := at.Hour()
	dow := (int(at.Weekday()) + 6) % 7

	f := domain.ForecastFeatures{
		Hour:             hour,
		DayOfWeek:        dow,
		DayOfMonth:       at.Day(),
		Month:            int(at.Month()),
		IsWeekend:        dow >= 5,
		IsPeakHour:       hour >= 8 && hour <= 17,
		CurrentOccupancy: occupancy,
		Location:         location,
		TimeOfDay:        TimeOfDay(hour),
		Source:           FeatureSource,
	}
	if tl == nil {
		return f
	}

	f.EntityID = tl.EntityID
	locations := make(map[string]bool)
	for _, e := range tl.Entries {
		if e.Location == "" {
			continue
		}
		locations[e.Location] = true
		if e.Location != location {
			continue
		}
		f.VisitCount++
		if e.Timestamp.Hour() == hour {
			f.LocationHourCount++
		}
	}
	f.UniqueLocations = len(locations)
	return f
}

// TimeOfDay buckets an hour into morning, afternoon, evening or night.
func TimeOfDay(hour int) string {
	switch {
	case hour >= 6 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 17:
		return "afternoon"
	case hour >= 17 && hour < 21:
		return "evening"
	default:
		return "night"
	}
}
