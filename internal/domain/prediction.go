package domain

import "time"

// ConfidenceTier is a discrete label derived from a probability.
type ConfidenceTier string

const (
	TierHigh   ConfidenceTier = "high"
	TierMedium ConfidenceTier = "medium"
	TierLow    ConfidenceTier = "low"
)

// LocationPrediction scores one candidate next location.
type LocationPrediction struct {
	Location    string         `json:"location"`
	Probability float64        `json:"probability"`
	Confidence  ConfidenceTier `json:"confidence"`
	Evidence    []string       `json:"evidence"`
	Methods     []string       `json:"methods_used"`
}

// NextLocationForecast is the result of next-location prediction.
type NextLocationForecast struct {
	EntityID        string               `json:"entity_id"`
	CurrentLocation string               `json:"current_location"`
	CurrentHour     int                  `json:"current_hour"`
	Predictions     []LocationPrediction `json:"predictions"`
	ModelType       string               `json:"model_type"`
	Features        []string             `json:"features"`
	DataPoints      int                  `json:"data_points"`
	GeneratedAt     time.Time            `json:"generated_at"`
}

// AnomalyType classifies a behavioral anomaly.
type AnomalyType string

const (
	AnomalyUnusualTime  AnomalyType = "unusual_time_pattern"
	AnomalyRareLocation AnomalyType = "rare_location"
	AnomalyUnusualGap   AnomalyType = "unusual_gap"
)

// Anomaly is one flagged deviation from an entity's baseline.
type Anomaly struct {
	Type        AnomalyType    `json:"type"`
	Severity    ConfidenceTier `json:"severity"`
	Hour        *int           `json:"hour,omitempty"`
	Location    string         `json:"location,omitempty"`
	ZScore      *float64       `json:"z_score,omitempty"`
	Frequency   *float64       `json:"frequency,omitempty"`
	GapHours    *float64       `json:"gap_hours,omitempty"`
	Evidence    string         `json:"evidence"`
	Explanation string         `json:"explanation"`
}

// Baseline summarizes normal behavior used by anomaly detection.
type Baseline struct {
	AvgHourlyActivity float64        `json:"avg_hourly_activity"`
	TopLocations      []CountedLabel `json:"most_common_locations"`
	TopDetectionTypes []CountedLabel `json:"most_common_detection_types"`
}

// CountedLabel pairs a label with its occurrence count.
type CountedLabel struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// AnomalyReport is the result of anomaly detection.
type AnomalyReport struct {
	EntityID       string    `json:"entity_id"`
	Anomalies      []Anomaly `json:"anomalies"`
	Baseline       Baseline  `json:"baseline_stats"`
	AnalysisPeriod struct {
		Start      *time.Time `json:"start,omitempty"`
		End        *time.Time `json:"end,omitempty"`
		DataPoints int        `json:"data_points"`
	} `json:"analysis_period"`
}

// Inference is a suggested value for a missing or derived profile attribute.
// Inferences are advisory and never written back to the store.
type Inference struct {
	Field      string  `json:"field"`
	Value      any     `json:"inferred_value"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
	Evidence   string  `json:"evidence"`
}

// InferenceReport is the result of missing-data inference.
type InferenceReport struct {
	EntityID   string      `json:"entity_id"`
	Inferences []Inference `json:"inferences"`
}
