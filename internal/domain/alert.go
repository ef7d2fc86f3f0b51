package domain

import "time"

// Severity is an inactivity tier assigned by the alert generator.
type Severity string

const (
	SeverityActive   Severity = "active"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// ValidSeverity reports whether s names an alert tier that can appear in a list.
func ValidSeverity(s Severity) bool {
	return s == SeverityWarning || s == SeverityCritical
}

// AlertStatus is the analyst workflow state of an alert.
type AlertStatus string

const (
	AlertOpen          AlertStatus = "open"
	AlertInvestigating AlertStatus = "investigating"
	AlertResolved      AlertStatus = "resolved"
)

// ValidAlertStatus reports whether s is a known workflow state.
func ValidAlertStatus(s AlertStatus) bool {
	switch s {
	case AlertOpen, AlertInvestigating, AlertResolved:
		return true
	}
	return false
}

// Alert flags an entity whose recent activity is missing or stale.
type Alert struct {
	EntityID      string      `json:"entity_id"`
	Severity      Severity    `json:"severity"`
	HoursInactive *float64    `json:"hours_inactive"`
	LastSeen      *time.Time  `json:"last_seen"`
	Profile       *Profile    `json:"profile"`
	Status        AlertStatus `json:"status"`
	Message       string      `json:"message"`
}

// AlertSummary counts every sampled entity per tier, before filtering and truncation.
type AlertSummary struct {
	Total    int `json:"total_entities"`
	Active   int `json:"active_entities"`
	Warning  int `json:"warning_entities"`
	Critical int `json:"critical_entities"`
}

// AlertQuery filters an alert report. Zero values mean no filter.
type AlertQuery struct {
	Severity Severity
	Status   AlertStatus
	Limit    int
}

// AlertReport is the result of alert generation.
type AlertReport struct {
	Alerts          []Alert      `json:"alerts"`
	Summary         AlertSummary `json:"summary"`
	DegradedSources []Source     `json:"degraded_sources,omitempty"`
	GeneratedAt     time.Time    `json:"generated_at"`
}

// AlertStatusRecord is the persisted workflow state for one entity's alert.
type AlertStatusRecord struct {
	EntityID  string      `json:"entity_id"`
	Status    AlertStatus `json:"status"`
	UpdatedAt time.Time   `json:"updated_at"`
}
