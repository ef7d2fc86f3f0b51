// Package resolver maps partial identifiers to canonical campus entities.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/campusguard/argus/internal/domain"
	"github.com/campusguard/argus/internal/metrics"
)

// Fuzzy scoring policy.
const (
	// MaxScore is the highest raw score a candidate can reach.
	MaxScore = 1.15

	// NameThreshold is the minimum similarity for a name to contribute.
	NameThreshold = 0.70
	NameWeight    = 0.20

	// MaxAlternatives is the number of runners-up returned after the best match.
	MaxAlternatives = 4

	// FuzzyMethod labels results produced by Resolve.
	FuzzyMethod = "multi_identifier_fuzzy"

	// ProvenanceWindow is the look-back for provenance activity counts.
	ProvenanceWindow = 30 * 24 * time.Hour

	linkRecordLimit = 5
	linkSampleLimit = 3
)

// fieldRule is one exact-match contribution to the fuzzy score.
type fieldRule struct {
	field    domain.IdentifierField
	weight   float64
	evidence func(v string) string
}

// fieldRules are evaluated in order; matched_fields follows the same order.
var fieldRules = []fieldRule{
	{domain.FieldCardID, 0.25, func(v string) string { return "Card ID exact match: " + v }},
	{domain.FieldDeviceHash, 0.20, func(v string) string { return "Device hash exact match: " + truncate(v, 10) + "..." }},
	{domain.FieldFaceID, 0.20, func(v string) string { return "Face ID exact match: " + v }},
	{domain.FieldStudentID, 0.15, func(v string) string { return "Student ID exact match: " + v }},
	{domain.FieldEmail, 0.15, func(v string) string { return "Email exact match: " + v }},
}

// exactSource is one identifier consulted in exact mode.
type exactSource struct {
	field      domain.IdentifierField
	source     string
	confidence float64
}

var exactSources = []exactSource{
	{domain.FieldCardID, "card", 0.95},
	{domain.FieldDeviceHash, "device", 0.85},
	{domain.FieldFaceID, "face", 0.90},
}

// sourceLink connects a profile identifier to the feed it is observed in.
type sourceLink struct {
	kind       string
	field      domain.IdentifierField
	source     domain.Source
	table      string
	tier       string
	confidence float64
}

var sourceLinks = []sourceLink{
	{"card_to_swipes", domain.FieldCardID, domain.SourceSwipe, "swipes", "high", 0.95},
	{"device_to_wifi", domain.FieldDeviceHash, domain.SourceWiFi, "wifi_logs", "high", 0.90},
	{"face_to_cctv", domain.FieldFaceID, domain.SourceCCTV, "cctv_frames", "medium", 0.85},
}

// Resolver scores profiles against supplied identifiers.
type Resolver struct {
	store   domain.Store
	metrics *metrics.Collector

	// Now is the clock used for provenance windows.
	Now func() time.Time
}

// New creates a resolver over the record store.
func New(store domain.Store, m *metrics.Collector) *Resolver {
	return &Resolver{
		store:   store,
		metrics: m,
		Now:     time.Now,
	}
}

// Resolve performs fuzzy multi-identifier resolution over every profile.
// A result with status no_match is not an error.
func (r *Resolver) Resolve(ctx context.Context, ids domain.Identifiers) (*domain.ResolutionResult, error) {
	start := time.Now()
	ids = ids.Normalize()

	failed := &domain.ResolutionResult{
		Status:       domain.OutcomeError,
		Alternatives: []*domain.ResolutionCandidate{},
		Method:       FuzzyMethod,
	}

	if ids.Empty() {
		failed.Error = domain.ErrNoIdentifier.Error()
		r.metrics.ObserveResolution("fuzzy", domain.OutcomeError, 0, start)
		return failed, domain.ErrNoIdentifier
	}

	profiles, err := r.store.AllProfiles(ctx)
	if err != nil {
		failed.Error = err.Error()
		r.metrics.ObserveResolution("fuzzy", domain.OutcomeError, 0, start)
		return failed, fmt.Errorf("failed to scan profiles: %w", wrapStore(err))
	}

	var candidates []*domain.ResolutionCandidate
	for _, p := range profiles {
		if c := score(p, ids); c != nil {
			candidates = append(candidates, c)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].EntityID < candidates[j].EntityID
	})
	r.metrics.ObserveCandidates(len(candidates))

	result := &domain.ResolutionResult{
		Status:          domain.OutcomeNoMatch,
		Alternatives:    []*domain.ResolutionCandidate{},
		TotalCandidates: len(candidates),
		Method:          FuzzyMethod,
	}
	if len(candidates) == 0 {
		r.metrics.ObserveResolution("fuzzy", domain.OutcomeNoMatch, 0, start)
		return result, nil
	}

	result.Status = domain.OutcomeMatched
	result.BestMatch = candidates[0]
	end := min(len(candidates), 1+MaxAlternatives)
	result.Alternatives = append(result.Alternatives, candidates[1:end]...)

	r.metrics.ObserveResolution("fuzzy", domain.OutcomeMatched, result.BestMatch.Confidence, start)
	return result, nil
}

// score evaluates one profile. It returns nil when nothing matched.
func score(p *domain.Profile, ids domain.Identifiers) *domain.ResolutionCandidate {
	var raw float64
	var fields, evidence []string

	for _, rule := range fieldRules {
		want := ids.Value(rule.field)
		if want == "" || p.Value(rule.field) != want {
			continue
		}
		raw += rule.weight
		fields = append(fields, string(rule.field))
		evidence = append(evidence, rule.evidence(want))
	}

	if ids.Name != "" && p.Name != "" {
		sim := NameSimilarity(ids.Name, p.Name)
		if sim >= NameThreshold {
			raw += sim * NameWeight
			fields = append(fields, domain.MatchedNameFuzzy)
			evidence = append(evidence, fmt.Sprintf("Name similarity: %.2f%% - '%s' ≈ '%s'", sim*100, ids.Name, p.Name))
		}
	}

	if raw <= 0 {
		return nil
	}

	return &domain.ResolutionCandidate{
		EntityID:      p.EntityID,
		Profile:       p,
		Confidence:    min(raw/MaxScore, 1.0),
		Score:         raw,
		MatchedFields: fields,
		Evidence:      evidence,
	}
}

// ResolveExact looks up card, device and face identifiers independently.
// Other identifier fields are ignored. Identifiers that resolve to different
// entities produce a conflict outcome with no winner.
func (r *Resolver) ResolveExact(ctx context.Context, ids domain.Identifiers) (*domain.ExactResolution, error) {
	start := time.Now()
	ids = ids.Normalize()

	var matches []domain.ExactMatch
	supplied := 0
	for _, src := range exactSources {
		value := ids.Value(src.field)
		if value == "" {
			continue
		}
		supplied++

		p, err := r.store.FindProfileBy(ctx, src.field, value)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			r.metrics.ObserveResolution("exact", domain.OutcomeError, 0, start)
			return nil, fmt.Errorf("failed to look up %s: %w", src.field, wrapStore(err))
		}
		matches = append(matches, domain.ExactMatch{
			Source:     src.source,
			Field:      string(src.field),
			EntityID:   p.EntityID,
			Confidence: src.confidence,
			Profile:    p,
		})
	}

	if supplied == 0 {
		r.metrics.ObserveResolution("exact", domain.OutcomeError, 0, start)
		return nil, domain.ErrNoIdentifier
	}

	if len(matches) == 0 {
		r.metrics.ObserveResolution("exact", domain.OutcomeNoMatch, 0, start)
		return &domain.ExactResolution{Outcome: domain.OutcomeNoMatch}, nil
	}

	entities := distinctEntities(matches)
	if len(entities) > 1 {
		r.metrics.ObserveResolution("exact", domain.OutcomeConflict, 0, start)
		slog.Warn("identifier conflict", "entities", entities, "matches", len(matches))
		return &domain.ExactResolution{
			Outcome:             domain.OutcomeConflict,
			Matches:             matches,
			ConflictingEntities: entities,
			Message:             "Multiple sources matched different entities",
		}, nil
	}

	best := matches[0]
	res := &domain.ExactResolution{Outcome: domain.OutcomeMatched, Matches: matches}
	for _, m := range matches {
		if m.Confidence > best.Confidence {
			best = m
		}
		res.MatchedSources = append(res.MatchedSources, m.Source)
		res.MatchedFields = append(res.MatchedFields, m.Field)
	}
	res.EntityID = best.EntityID
	res.Confidence = best.Confidence
	res.Profile = best.Profile

	r.metrics.ObserveResolution("exact", domain.OutcomeMatched, best.Confidence, start)
	return res, nil
}

func distinctEntities(matches []domain.ExactMatch) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range matches {
		if !seen[m.EntityID] {
			seen[m.EntityID] = true
			out = append(out, m.EntityID)
		}
	}
	sort.Strings(out)
	return out
}

// Provenance reports which feeds back an entity's identifiers and how much
// activity each feed recorded in the last 30 days.
func (r *Resolver) Provenance(ctx context.Context, entityID string) (*domain.Provenance, error) {
	p, err := r.store.GetProfile(ctx, entityID)
	if err != nil {
		return nil, err
	}

	prov := &domain.Provenance{
		EntityID:          entityID,
		IdentifierSources: make(map[string]domain.IdentifierSource),
		ActivityCounts:    make(map[domain.Source]int64),
		DataSources:       []string{},
		WindowDays:        int(ProvenanceWindow / (24 * time.Hour)),
	}

	tables := make(map[string]bool)
	for _, ls := range sourceLinks {
		if v := p.Value(ls.field); v != "" {
			prov.IdentifierSources[string(ls.field)] = domain.IdentifierSource{
				Value:      v,
				Source:     ls.table,
				Confidence: ls.tier,
			}
			tables[ls.table] = true
		}
	}
	if p.StudentID != "" {
		prov.IdentifierSources[string(domain.FieldStudentID)] = domain.IdentifierSource{
			Value:      p.StudentID,
			Source:     "profiles",
			Confidence: "high",
		}
	}
	for t := range tables {
		prov.DataSources = append(prov.DataSources, t)
	}
	sort.Strings(prov.DataSources)

	since := r.Now().Add(-ProvenanceWindow)
	for _, src := range domain.AllSources() {
		n, err := r.store.CountActivity(ctx, src, entityID, since)
		if err != nil {
			slog.Warn("provenance count failed", "source", src, "entity_id", entityID, "error", err)
			r.metrics.SourceFailed("provenance", src)
			n = 0
		}
		prov.ActivityCounts[src] = n
	}

	return prov, nil
}

// CrossSourceLinks shows how an entity's identifiers link to observed records.
func (r *Resolver) CrossSourceLinks(ctx context.Context, entityID string) (*domain.CrossSourceLinks, error) {
	p, err := r.store.GetProfile(ctx, entityID)
	if err != nil {
		return nil, err
	}

	out := &domain.CrossSourceLinks{EntityID: entityID, Links: []domain.SourceLink{}}
	var total float64
	for _, ls := range sourceLinks {
		ident := p.Value(ls.field)
		if ident == "" {
			continue
		}
		recs, err := r.store.ActivityByIdentifier(ctx, ls.source, ident, linkRecordLimit)
		if err != nil {
			slog.Warn("link lookup failed", "link", ls.kind, "entity_id", entityID, "error", err)
			r.metrics.SourceFailed("links", ls.source)
			continue
		}
		if len(recs) == 0 {
			continue
		}
		out.Links = append(out.Links, domain.SourceLink{
			Kind:        ls.kind,
			Identifier:  ident,
			Confidence:  ls.confidence,
			RecordCount: len(recs),
			Samples:     recs[:min(len(recs), linkSampleLimit)],
		})
		total += ls.confidence
	}

	if len(out.Links) > 0 {
		out.OverallConfidence = total / float64(len(out.Links))
	}
	return out, nil
}

func wrapStore(err error) error {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
