package repository

import (
	"fmt"

	"github.com/campusguard/argus/internal/domain"
)

// sourceTable maps an activity source onto its table layout.
type sourceTable struct {
	table       string
	locationCol string
	defaultLoc  string
	tsCol       string
	identCol    string // empty when the source carries no identifier
	textCol     string // empty when the source carries no free text
}

var sourceTables = map[domain.Source]sourceTable{
	domain.SourceSwipe: {
		table:       "swipes",
		locationCol: "location_id",
		tsCol:       "timestamp",
		identCol:    "card_id",
	},
	domain.SourceWiFi: {
		table:       "wifi_logs",
		locationCol: "ap_id",
		tsCol:       "timestamp",
		identCol:    "device_hash",
	},
	domain.SourceLabBooking: {
		table:       "lab_bookings",
		locationCol: "lab_id",
		tsCol:       "start_time",
	},
	domain.SourceLibrary: {
		table:       "library_checkouts",
		locationCol: "location_id",
		defaultLoc:  "library",
		tsCol:       "timestamp",
	},
	domain.SourceCCTV: {
		table:       "cctv_frames",
		locationCol: "location_id",
		tsCol:       "timestamp",
		identCol:    "face_id",
	},
	domain.SourceNote: {
		table:       "notes",
		locationCol: "location_id",
		tsCol:       "timestamp",
		textCol:     "text",
	},
}

func lookupSource(source domain.Source) (sourceTable, error) {
	st, ok := sourceTables[source]
	if !ok {
		return sourceTable{}, fmt.Errorf("%w: unknown source %q", domain.ErrInvalidInput, source)
	}
	return st, nil
}

// entityExpr resolves the canonical entity id, falling back to the legacy identity column.
const entityExpr = "COALESCE(NULLIF(entity_id, ''), identity, '')"

func (s sourceTable) locationExpr() string {
	return fmt.Sprintf("COALESCE(NULLIF(%s, ''), '%s')", s.locationCol, s.defaultLoc)
}

func (s sourceTable) identExpr() string {
	if s.identCol == "" {
		return "''"
	}
	return fmt.Sprintf("COALESCE(%s, '')", s.identCol)
}

func (s sourceTable) textExpr() string {
	if s.textCol == "" {
		return "''"
	}
	return fmt.Sprintf("COALESCE(%s, '')", s.textCol)
}

// selectColumns lists the normalized projection scanned by scanActivity.
func (s sourceTable) selectColumns() string {
	return fmt.Sprintf("seq, %s, %s, %s, %s, %s, COALESCE(raw_record_json, '')",
		entityExpr, s.locationExpr(), s.identExpr(), s.textExpr(), s.tsCol)
}
