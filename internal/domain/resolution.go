package domain

// Resolution outcome labels.
const (
	OutcomeMatched  = "matched"
	OutcomeNoMatch  = "no_match"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// MatchedField labels a contributing field on a fuzzy candidate.
const MatchedNameFuzzy = "name_fuzzy"

// ResolutionCandidate is one scored profile produced by fuzzy resolution.
type ResolutionCandidate struct {
	EntityID      string   `json:"entity_id"`
	Profile       *Profile `json:"profile"`
	Confidence    float64  `json:"confidence"`
	Score         float64  `json:"raw_score"`
	MatchedFields []string `json:"matched_fields"`
	Evidence      []string `json:"evidence"`
}

// ResolutionResult is the outcome of fuzzy multi-identifier resolution.
// Status is one of matched, no_match or error; BestMatch is nil unless matched.
type ResolutionResult struct {
	Status          string                 `json:"status"`
	BestMatch       *ResolutionCandidate   `json:"best_match"`
	Alternatives    []*ResolutionCandidate `json:"alternatives"`
	TotalCandidates int                    `json:"total_candidates"`
	Method          string                 `json:"resolution_method"`
	Error           string                 `json:"error,omitempty"`
}

// ExactMatch is one identifier hit in exact resolution.
type ExactMatch struct {
	Source     string   `json:"source"`
	Field      string   `json:"field"`
	EntityID   string   `json:"entity_id"`
	Confidence float64  `json:"confidence"`
	Profile    *Profile `json:"-"`
}

// ExactResolution is the outcome of exact identifier resolution.
// A conflict carries every match and no winner; callers must handle it
// distinctly from a clean match.
type ExactResolution struct {
	Outcome        string       `json:"outcome"`
	EntityID       string       `json:"entity_id,omitempty"`
	Confidence     float64      `json:"confidence,omitempty"`
	MatchedSources []string     `json:"matched_sources,omitempty"`
	MatchedFields  []string     `json:"matched_fields,omitempty"`
	Profile        *Profile     `json:"profile,omitempty"`
	Matches        []ExactMatch `json:"matches,omitempty"`

	// Conflict details
	ConflictingEntities []string `json:"matched_entities,omitempty"`
	Message             string   `json:"message,omitempty"`
}

// IsConflict reports whether the identifiers resolved to different entities.
func (r *ExactResolution) IsConflict() bool {
	return r != nil && r.Outcome == OutcomeConflict
}

// IdentifierSource describes where an identifier is observed.
type IdentifierSource struct {
	Value      string `json:"value"`
	Source     string `json:"source"`
	Confidence string `json:"confidence"`
}

// Provenance lists the data sources backing an entity's identity.
type Provenance struct {
	EntityID          string                      `json:"entity_id"`
	IdentifierSources map[string]IdentifierSource `json:"identifier_sources"`
	ActivityCounts    map[Source]int64            `json:"activity_counts"`
	DataSources       []string                    `json:"data_sources"`
	WindowDays        int                         `json:"window_days"`
}

// SourceLink connects one identifier to the records observed with it.
type SourceLink struct {
	Kind        string            `json:"link_type"`
	Identifier  string            `json:"identifier"`
	Confidence  float64           `json:"confidence"`
	RecordCount int               `json:"record_count"`
	Samples     []*ActivityRecord `json:"sample_records"`
}

// CrossSourceLinks summarizes identifier linkage across feeds.
type CrossSourceLinks struct {
	EntityID          string       `json:"entity_id"`
	Links             []SourceLink `json:"links"`
	OverallConfidence float64      `json:"overall_confidence"`
}
