package repository

import "fmt"

// Schema definitions for the Argus record store.
// Compatible with both SQLite and PostgreSQL; only the sequence column differs.
// Activity tables carry both entity_id and the legacy identity column.

const schemaProfiles = `
CREATE TABLE IF NOT EXISTS profiles (
    entity_id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    role TEXT NOT NULL DEFAULT '',
    department TEXT NOT NULL DEFAULT '',
    card_id TEXT,
    device_hash TEXT,
    face_id TEXT,
    student_id TEXT,
    email TEXT
);

CREATE INDEX IF NOT EXISTS idx_profiles_card ON profiles(card_id);
CREATE INDEX IF NOT EXISTS idx_profiles_device ON profiles(device_hash);
CREATE INDEX IF NOT EXISTS idx_profiles_face ON profiles(face_id);
`

const schemaSwipes = `
CREATE TABLE IF NOT EXISTS swipes (
    seq %[1]s,
    entity_id TEXT,
    identity TEXT,
    card_id TEXT,
    location_id TEXT,
    timestamp TIMESTAMP NOT NULL,
    raw_record_json TEXT
);

CREATE INDEX IF NOT EXISTS idx_swipes_entity ON swipes(entity_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_swipes_identity ON swipes(identity, timestamp);
CREATE INDEX IF NOT EXISTS idx_swipes_card ON swipes(card_id);
`

const schemaWiFiLogs = `
CREATE TABLE IF NOT EXISTS wifi_logs (
    seq %[1]s,
    entity_id TEXT,
    identity TEXT,
    device_hash TEXT,
    ap_id TEXT,
    timestamp TIMESTAMP NOT NULL,
    raw_record_json TEXT
);

CREATE INDEX IF NOT EXISTS idx_wifi_entity ON wifi_logs(entity_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_wifi_identity ON wifi_logs(identity, timestamp);
CREATE INDEX IF NOT EXISTS idx_wifi_device ON wifi_logs(device_hash);
`

const schemaLabBookings = `
CREATE TABLE IF NOT EXISTS lab_bookings (
    seq %[1]s,
    booking_id TEXT,
    entity_id TEXT,
    identity TEXT,
    lab_id TEXT,
    start_time TIMESTAMP NOT NULL,
    end_time TIMESTAMP,
    attended_flag INTEGER,
    raw_record_json TEXT
);

CREATE INDEX IF NOT EXISTS idx_lab_entity ON lab_bookings(entity_id, start_time);
`

const schemaLibraryCheckouts = `
CREATE TABLE IF NOT EXISTS library_checkouts (
    seq %[1]s,
    checkout_id TEXT,
    entity_id TEXT,
    identity TEXT,
    book_id TEXT,
    location_id TEXT,
    timestamp TIMESTAMP NOT NULL,
    raw_record_json TEXT
);

CREATE INDEX IF NOT EXISTS idx_library_entity ON library_checkouts(entity_id, timestamp);
`

const schemaCCTVFrames = `
CREATE TABLE IF NOT EXISTS cctv_frames (
    seq %[1]s,
    frame_id TEXT,
    entity_id TEXT,
    identity TEXT,
    face_id TEXT,
    location_id TEXT,
    timestamp TIMESTAMP NOT NULL,
    raw_record_json TEXT
);

CREATE INDEX IF NOT EXISTS idx_cctv_entity ON cctv_frames(entity_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_cctv_face ON cctv_frames(face_id);
`

const schemaNotes = `
CREATE TABLE IF NOT EXISTS notes (
    seq %[1]s,
    entity_id TEXT,
    identity TEXT,
    source TEXT,
    text TEXT,
    location_id TEXT,
    timestamp TIMESTAMP NOT NULL,
    raw_record_json TEXT
);

CREATE INDEX IF NOT EXISTS idx_notes_entity ON notes(entity_id, timestamp);
`

// AllSchemas returns all schema statements in order for the given driver.
func AllSchemas(driver string) []string {
	seq := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if driver == "postgres" {
		seq = "BIGSERIAL PRIMARY KEY"
	}

	activity := []string{
		schemaSwipes,
		schemaWiFiLogs,
		schemaLabBookings,
		schemaLibraryCheckouts,
		schemaCCTVFrames,
		schemaNotes,
	}

	schemas := []string{schemaProfiles}
	for _, s := range activity {
		schemas = append(schemas, fmt.Sprintf(s, seq))
	}
	return schemas
}
