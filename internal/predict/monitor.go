// Package predict derives next-location predictions, behavioral anomalies and
// attribute inferences from an entity's timeline.
package predict

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/campusguard/argus/internal/domain"
	"github.com/campusguard/argus/internal/metrics"
)

// Model policy.
const (
	ModelType = "pattern_based_ml"

	hourTopN       = 5
	transitionTopN = 3
	frequencyTopN  = 5
	frequencyScale = 0.5
	maxPredictions = 5

	zScoreThreshold    = 2.0
	zScoreHigh         = 3.0
	rareFrequency      = 0.05
	gapFactor          = 3.0
	baselineTopN       = 3
	peakHoursTopN      = 3
	primaryLocationTop = 2
)

// Method labels.
const (
	MethodTimePattern       = "time_pattern"
	MethodTransitionPattern = "transition_pattern"
	MethodFrequency         = "frequency"
)

// TimelineSource builds entity timelines.
type TimelineSource interface {
	Build(ctx context.Context, entityID string, since time.Time) (*domain.Timeline, error)
}

// Monitor runs the predictive models. It holds no state between calls.
type Monitor struct {
	timelines TimelineSource
	rules     *RuleEngine
	metrics   *metrics.Collector

	// Now is the clock used for the current hour. Hours are taken in UTC.
	Now func() time.Time
}

// NewMonitor creates a monitor with the builtin inference rules.
func NewMonitor(timelines TimelineSource, m *metrics.Collector) (*Monitor, error) {
	rules, err := NewRuleEngine(BuiltinRules())
	if err != nil {
		return nil, err
	}
	return &Monitor{
		timelines: timelines,
		rules:     rules,
		metrics:   m,
		Now:       time.Now,
	}, nil
}

// RulesCount returns the number of loaded inference rules.
func (m *Monitor) RulesCount() int {
	return m.rules.RulesCount()
}

// PredictNextLocation blends time-of-day, transition and frequency models.
func (m *Monitor) PredictNextLocation(ctx context.Context, entityID string) (*domain.NextLocationForecast, error) {
	tl, err := m.timelines.Build(ctx, entityID, time.Time{})
	if err != nil {
		m.metrics.Prediction("next_location", "error")
		return nil, err
	}

	// newest first
	located := withLocation(tl.Entries)
	if len(located) == 0 {
		m.metrics.Prediction("next_location", "insufficient")
		return nil, fmt.Errorf("entity %s has no located activity: %w", entityID, domain.ErrInsufficientData)
	}

	now := m.Now().UTC()
	hour := now.Hour()
	current := located[0].Location

	agg := newAggregator()

	// Time of day
	atHour := newCounter()
	for _, e := range located {
		if e.Timestamp.UTC().Hour() == hour {
			atHour.add(e.Location)
		}
	}
	for _, c := range atHour.top(hourTopN) {
		agg.add(c.Label, float64(c.Count)/float64(atHour.total),
			MethodTimePattern, fmt.Sprintf("Visited %d times at hour %d", c.Count, hour))
	}

	// Transitions from the current location, walked oldest to newest
	next := newCounter()
	for i := len(located) - 1; i > 0; i-- {
		if located[i].Location == current {
			next.add(located[i-1].Location)
		}
	}
	for _, c := range next.top(transitionTopN) {
		agg.add(c.Label, float64(c.Count)/float64(next.total),
			MethodTransitionPattern, fmt.Sprintf("%d/%d times moved from %s to %s", c.Count, next.total, current, c.Label))
	}

	// Overall frequency
	freq := newCounter()
	for _, e := range located {
		freq.add(e.Location)
	}
	for _, c := range freq.top(frequencyTopN) {
		agg.add(c.Label, float64(c.Count)/float64(len(located))*frequencyScale,
			MethodFrequency, fmt.Sprintf("Most frequent location (%d/%d visits)", c.Count, len(located)))
	}

	preds := agg.predictions()
	if len(preds) > maxPredictions {
		preds = preds[:maxPredictions]
	}

	m.metrics.Prediction("next_location", "ok")
	return &domain.NextLocationForecast{
		EntityID:        entityID,
		CurrentLocation: current,
		CurrentHour:     hour,
		Predictions:     preds,
		ModelType:       ModelType,
		Features:        []string{"time_patterns", "location_transitions", "frequency_analysis"},
		DataPoints:      len(tl.Entries),
		GeneratedAt:     now,
	}, nil
}

// DetectAnomalies flags unusual hours, rare locations and long gaps.
func (m *Monitor) DetectAnomalies(ctx context.Context, entityID string) (*domain.AnomalyReport, error) {
	tl, err := m.timelines.Build(ctx, entityID, time.Time{})
	if err != nil {
		m.metrics.Prediction("anomalies", "error")
		return nil, err
	}
	if len(tl.Entries) == 0 {
		m.metrics.Prediction("anomalies", "insufficient")
		return nil, fmt.Errorf("entity %s has no activity: %w", entityID, domain.ErrInsufficientData)
	}

	report := &domain.AnomalyReport{EntityID: entityID, Anomalies: []domain.Anomaly{}}

	hours := make(map[int]int)
	kinds := newCounter()
	for _, e := range tl.Entries {
		hours[e.Timestamp.UTC().Hour()]++
		kinds.add(string(e.DetectionType))
	}
	located := withLocation(tl.Entries)
	locs := newCounter()
	for _, e := range located {
		locs.add(e.Location)
	}

	report.Anomalies = append(report.Anomalies, hourAnomalies(hours)...)
	report.Anomalies = append(report.Anomalies, rareLocations(locs)...)
	report.Anomalies = append(report.Anomalies, gapAnomalies(tl.Chronological())...)

	counts := make([]float64, 0, len(hours))
	for _, c := range hours {
		counts = append(counts, float64(c))
	}
	report.Baseline = domain.Baseline{
		AvgHourlyActivity: mean(counts),
		TopLocations:      locs.top(baselineTopN),
		TopDetectionTypes: kinds.top(baselineTopN),
	}

	oldest := tl.Entries[len(tl.Entries)-1].Timestamp
	newest := tl.Entries[0].Timestamp
	report.AnalysisPeriod.Start = &oldest
	report.AnalysisPeriod.End = &newest
	report.AnalysisPeriod.DataPoints = len(tl.Entries)

	m.metrics.Anomalies(report.Anomalies)
	m.metrics.Prediction("anomalies", "ok")
	return report, nil
}

// hourAnomalies scores non-empty hour buckets by z-score.
// Fewer than two buckets or zero deviation yields nothing.
func hourAnomalies(hours map[int]int) []domain.Anomaly {
	if len(hours) < 2 {
		return nil
	}

	keys := make([]int, 0, len(hours))
	counts := make([]float64, 0, len(hours))
	for h := range hours {
		keys = append(keys, h)
	}
	sort.Ints(keys)
	for _, h := range keys {
		counts = append(counts, float64(hours[h]))
	}

	avg := mean(counts)
	sd := sampleStdDev(counts, avg)
	if sd == 0 {
		return nil
	}

	var out []domain.Anomaly
	for _, h := range keys {
		count := hours[h]
		z := (float64(count) - avg) / sd
		if math.Abs(z) <= zScoreThreshold {
			continue
		}
		severity := domain.TierMedium
		if math.Abs(z) >= zScoreHigh {
			severity = domain.TierHigh
		}
		hour, score := h, z
		out = append(out, domain.Anomaly{
			Type:        domain.AnomalyUnusualTime,
			Severity:    severity,
			Hour:        &hour,
			ZScore:      &score,
			Evidence:    fmt.Sprintf("Activity count: %d, Expected: %.1f ± %.1f", count, avg, sd),
			Explanation: fmt.Sprintf("This activity level is %.1f standard deviations from normal", math.Abs(z)),
		})
	}
	return out
}

// rareLocations flags locations seen more than once but under 5% of visits.
func rareLocations(locs *counter) []domain.Anomaly {
	var out []domain.Anomaly
	for _, c := range locs.top(len(locs.counts)) {
		freq := float64(c.Count) / float64(locs.total)
		if c.Count <= 1 || freq >= rareFrequency {
			continue
		}
		f := freq
		out = append(out, domain.Anomaly{
			Type:        domain.AnomalyRareLocation,
			Severity:    domain.TierLow,
			Location:    c.Label,
			Frequency:   &f,
			Evidence:    fmt.Sprintf("Only %d/%d visits (%.1f%%)", c.Count, locs.total, freq*100),
			Explanation: "This location is rarely visited compared to usual patterns",
		})
	}
	return out
}

// gapAnomalies flags inter-activity gaps above three times the mean gap.
func gapAnomalies(chrono []domain.TimelineEntry) []domain.Anomaly {
	if len(chrono) < 2 {
		return nil
	}

	gaps := make([]float64, 0, len(chrono)-1)
	for i := 1; i < len(chrono); i++ {
		gaps = append(gaps, chrono[i].Timestamp.Sub(chrono[i-1].Timestamp).Hours())
	}
	avg := mean(gaps)

	var out []domain.Anomaly
	for _, g := range gaps {
		if g <= avg*gapFactor {
			continue
		}
		gap := g
		out = append(out, domain.Anomaly{
			Type:        domain.AnomalyUnusualGap,
			Severity:    domain.TierMedium,
			GapHours:    &gap,
			Evidence:    fmt.Sprintf("Gap of %.1f hours, expected ~%.1f hours", g, avg),
			Explanation: "Extended period without any recorded activity",
		})
	}
	return out
}

// InferMissingData suggests attributes from the profile and activity.
// Suggestions are never written back.
func (m *Monitor) InferMissingData(ctx context.Context, entityID string) (*domain.InferenceReport, error) {
	tl, err := m.timelines.Build(ctx, entityID, time.Time{})
	if err != nil {
		m.metrics.Prediction("inferences", "error")
		return nil, err
	}

	facts := FactsFrom(tl)
	inferences, err := m.rules.Evaluate(facts)
	if err != nil {
		m.metrics.Prediction("inferences", "error")
		return nil, err
	}

	m.metrics.Prediction("inferences", "ok")
	return &domain.InferenceReport{EntityID: entityID, Inferences: inferences}, nil
}

// FactsFrom derives rule facts from a timeline.
func FactsFrom(tl *domain.Timeline) *Facts {
	f := &Facts{ActivityCount: len(tl.Entries)}
	if tl.Profile != nil {
		f.Email = tl.Profile.Email
		f.Department = tl.Profile.Department
	}

	hours := make(map[int]int)
	for _, e := range tl.Entries {
		hours[e.Timestamp.UTC().Hour()]++
		if e.DetectionType == domain.SourceLabBooking {
			f.LabBookings++
		}
	}
	f.PeakHours = topHours(hours, peakHoursTopN)

	locs := newCounter()
	for _, e := range withLocation(tl.Entries) {
		locs.add(e.Location)
	}
	f.PrimaryLocations = locs.top(primaryLocationTop)
	return f
}

func withLocation(entries []domain.TimelineEntry) []domain.TimelineEntry {
	out := make([]domain.TimelineEntry, 0, len(entries))
	for _, e := range entries {
		if e.Location != "" {
			out = append(out, e)
		}
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func sampleStdDev(xs []float64, avg float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var ss float64
	for _, x := range xs {
		ss += (x - avg) * (x - avg)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}
