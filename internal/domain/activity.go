package domain

import (
	"time"
)

// Source identifies the observation feed an activity record came from.
type Source string

const (
	SourceSwipe      Source = "swipe"
	SourceWiFi       Source = "wifi"
	SourceLabBooking Source = "lab_booking"
	SourceLibrary    Source = "library"
	SourceCCTV       Source = "cctv"
	SourceNote       Source = "note"
)

// AllSources lists every source in merge order.
// Timeline ties are broken by this order, then by per-source insertion order.
func AllSources() []Source {
	return []Source{
		SourceSwipe,
		SourceWiFi,
		SourceLabBooking,
		SourceLibrary,
		SourceCCTV,
		SourceNote,
	}
}

// ActivityRecord is one immutable observation of an entity.
type ActivityRecord struct {
	// Seq is the store's insertion sequence within its source.
	Seq       int64     `json:"-"`
	EntityID  string    `json:"entity_id"`
	Source    Source    `json:"source"`
	Location  string    `json:"location"`
	Timestamp time.Time `json:"timestamp"`

	// Identifier observed alongside the record (card, device hash or face id).
	Identifier string `json:"identifier,omitempty"`

	// Text is the free-text body of a note.
	Text string `json:"text,omitempty"`

	// Raw is the original collector payload, if any.
	Raw map[string]any `json:"raw,omitempty"`
}

// EntityStatus is the coarse liveness derived from the most recent activity.
type EntityStatus string

const (
	StatusActive   EntityStatus = "active"
	StatusRecent   EntityStatus = "recent"
	StatusInactive EntityStatus = "inactive"
)

// TimelineEntry is an activity record normalized for display.
type TimelineEntry struct {
	Timestamp     time.Time `json:"timestamp"`
	Location      string    `json:"location"`
	DetectionType Source    `json:"detection_type"`
	Description   string    `json:"description"`
}

// Timeline is the merged cross-source history of one entity, newest first.
// It is derived on demand and never persisted.
type Timeline struct {
	EntityID        string          `json:"entity_id"`
	Profile         *Profile        `json:"profile"`
	Entries         []TimelineEntry `json:"activities"`
	CurrentLocation string          `json:"current_location,omitempty"`
	LastSeen        *time.Time      `json:"last_seen,omitempty"`
	Status          EntityStatus    `json:"status"`
	Summary         map[Source]int  `json:"activity_summary"`
	DegradedSources []Source        `json:"degraded_sources,omitempty"`
	GeneratedAt     time.Time       `json:"generated_at"`
}

// Chronological returns the entries oldest first.
func (t *Timeline) Chronological() []TimelineEntry {
	out := make([]TimelineEntry, len(t.Entries))
	for i, e := range t.Entries {
		out[len(t.Entries)-1-i] = e
	}
	return out
}
