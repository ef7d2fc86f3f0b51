package domain

import "strings"

// Profile is a tracked campus entity as stored by the ingestion process.
// Argus only reads profiles; identifiers are optional and may be empty.
type Profile struct {
	EntityID   string `json:"entity_id"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	Department string `json:"department"`

	// Source-specific identifiers
	CardID     string `json:"card_id,omitempty"`
	DeviceHash string `json:"device_hash,omitempty"`
	FaceID     string `json:"face_id,omitempty"`
	StudentID  string `json:"student_id,omitempty"`
	Email      string `json:"email,omitempty"`
}

// IdentifierField names a profile column that can be matched exactly.
type IdentifierField string

const (
	FieldCardID     IdentifierField = "card_id"
	FieldDeviceHash IdentifierField = "device_hash"
	FieldFaceID     IdentifierField = "face_id"
	FieldStudentID  IdentifierField = "student_id"
	FieldEmail      IdentifierField = "email"
)

// Value returns the profile's value for an identifier field.
func (p *Profile) Value(field IdentifierField) string {
	switch field {
	case FieldCardID:
		return p.CardID
	case FieldDeviceHash:
		return p.DeviceHash
	case FieldFaceID:
		return p.FaceID
	case FieldStudentID:
		return p.StudentID
	case FieldEmail:
		return p.Email
	}
	return ""
}

// SearchField names a profile column usable for pattern search.
type SearchField string

const (
	SearchName       SearchField = "name"
	SearchEmail      SearchField = "email"
	SearchDepartment SearchField = "department"
)

// ValidSearchField reports whether f can be searched.
func ValidSearchField(f SearchField) bool {
	switch f {
	case SearchName, SearchEmail, SearchDepartment:
		return true
	}
	return false
}

// Identifiers is the raw input to identity resolution.
// Every field is optional; values are trimmed by Normalize.
type Identifiers struct {
	CardID     string `json:"card_id,omitempty"`
	DeviceHash string `json:"device_hash,omitempty"`
	FaceID     string `json:"face_id,omitempty"`
	StudentID  string `json:"student_id,omitempty"`
	Email      string `json:"email,omitempty"`
	Name       string `json:"name,omitempty"`
}

// Normalize trims whitespace from every identifier.
func (ids Identifiers) Normalize() Identifiers {
	return Identifiers{
		CardID:     strings.TrimSpace(ids.CardID),
		DeviceHash: strings.TrimSpace(ids.DeviceHash),
		FaceID:     strings.TrimSpace(ids.FaceID),
		StudentID:  strings.TrimSpace(ids.StudentID),
		Email:      strings.TrimSpace(ids.Email),
		Name:       strings.TrimSpace(ids.Name),
	}
}

// Empty reports whether no identifier is supplied.
func (ids Identifiers) Empty() bool {
	n := ids.Normalize()
	return n.CardID == "" && n.DeviceHash == "" && n.FaceID == "" &&
		n.StudentID == "" && n.Email == "" && n.Name == ""
}

// Value returns the supplied value for an identifier field.
func (ids Identifiers) Value(field IdentifierField) string {
	switch field {
	case FieldCardID:
		return ids.CardID
	case FieldDeviceHash:
		return ids.DeviceHash
	case FieldFaceID:
		return ids.FaceID
	case FieldStudentID:
		return ids.StudentID
	case FieldEmail:
		return ids.Email
	}
	return ""
}
