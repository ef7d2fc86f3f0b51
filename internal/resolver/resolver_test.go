package resolver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/campusguard/argus/internal/domain"
	"github.com/campusguard/argus/internal/repository"
)

// countingStore records calls that reach the store.
type countingStore struct {
	domain.Store
	calls int
}

func (s *countingStore) AllProfiles(ctx context.Context) ([]*domain.Profile, error) {
	s.calls++
	return s.Store.AllProfiles(ctx)
}

func (s *countingStore) FindProfileBy(ctx context.Context, f domain.IdentifierField, v string) (*domain.Profile, error) {
	s.calls++
	return s.Store.FindProfileBy(ctx, f, v)
}

// brokenStore fails every profile scan.
type brokenStore struct {
	domain.Store
}

func (brokenStore) AllProfiles(context.Context) ([]*domain.Profile, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func newStore(t *testing.T) *repository.SQLRepository {
	t.Helper()
	repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedProfiles(t *testing.T, store domain.Store, profiles ...*domain.Profile) {
	t.Helper()
	for _, p := range profiles {
		if err := store.SaveProfile(context.Background(), p); err != nil {
			t.Fatalf("SaveProfile failed: %v", err)
		}
	}
}

var (
	alice = &domain.Profile{
		EntityID:   "A",
		Name:       "Alice Morgan",
		CardID:     "C1",
		DeviceHash: "d41d8cd98f00b204e9800998ecf8427e",
		FaceID:     "F1",
		StudentID:  "S1",
		Email:      "alice@eng.campus.edu",
	}
	bob = &domain.Profile{
		EntityID: "B",
		Name:     "Bob Tran",
		CardID:   "C2",
		FaceID:   "F2",
	}
)

func TestResolve(t *testing.T) {
	store := newStore(t)
	seedProfiles(t, store, alice, bob)
	r := New(store, nil)
	ctx := context.Background()

	t.Run("NoIdentifierSkipsStore", func(t *testing.T) {
		cs := &countingStore{Store: store}
		res, err := New(cs, nil).Resolve(ctx, domain.Identifiers{Name: "   "})
		if !errors.Is(err, domain.ErrNoIdentifier) {
			t.Fatalf("expected ErrNoIdentifier, got %v", err)
		}
		if res.Status != domain.OutcomeError || res.BestMatch != nil {
			t.Errorf("expected failed result, got %+v", res)
		}
		if cs.calls != 0 {
			t.Errorf("expected no store calls, got %d", cs.calls)
		}
	})

	t.Run("SingleFieldConfidence", func(t *testing.T) {
		for _, rule := range fieldRules {
			ids := domain.Identifiers{}
			switch rule.field {
			case domain.FieldCardID:
				ids.CardID = alice.CardID
			case domain.FieldDeviceHash:
				ids.DeviceHash = alice.DeviceHash
			case domain.FieldFaceID:
				ids.FaceID = alice.FaceID
			case domain.FieldStudentID:
				ids.StudentID = alice.StudentID
			case domain.FieldEmail:
				ids.Email = alice.Email
			}

			res, err := r.Resolve(ctx, ids)
			if err != nil {
				t.Fatalf("Resolve(%s) failed: %v", rule.field, err)
			}
			if res.Status != domain.OutcomeMatched || res.BestMatch.EntityID != "A" {
				t.Fatalf("expected A for %s, got %+v", rule.field, res)
			}
			if res.BestMatch.Confidence < rule.weight/MaxScore-1e-9 {
				t.Errorf("%s: confidence %.4f below %.4f", rule.field, res.BestMatch.Confidence, rule.weight/MaxScore)
			}
			if len(res.BestMatch.MatchedFields) != 1 || res.BestMatch.MatchedFields[0] != string(rule.field) {
				t.Errorf("%s: unexpected matched fields %v", rule.field, res.BestMatch.MatchedFields)
			}
		}
	})

	t.Run("AllIdentifiers", func(t *testing.T) {
		res, err := r.Resolve(ctx, domain.Identifiers{
			CardID:     "C1",
			DeviceHash: alice.DeviceHash,
			FaceID:     "F1",
			StudentID:  "S1",
			Email:      alice.Email,
			Name:       "alice morgan",
		})
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		best := res.BestMatch
		if math.Abs(best.Score-MaxScore) > 1e-9 || math.Abs(best.Confidence-1.0) > 1e-9 {
			t.Errorf("expected full score, got raw=%.4f conf=%.4f", best.Score, best.Confidence)
		}
		want := []string{"card_id", "device_hash", "face_id", "student_id", "email", "name_fuzzy"}
		if strings.Join(best.MatchedFields, ",") != strings.Join(want, ",") {
			t.Errorf("unexpected field order: %v", best.MatchedFields)
		}
		if best.Evidence[1] != "Device hash exact match: d41d8cd98f..." {
			t.Errorf("unexpected device evidence: %s", best.Evidence[1])
		}
		if !strings.HasPrefix(best.Evidence[5], "Name similarity: 100.00%") {
			t.Errorf("unexpected name evidence: %s", best.Evidence[5])
		}
	})

	t.Run("NameBelowThreshold", func(t *testing.T) {
		res, err := r.Resolve(ctx, domain.Identifiers{Name: "Zed Quill"})
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if res.Status != domain.OutcomeNoMatch || res.TotalCandidates != 0 {
			t.Errorf("expected no match, got %+v", res)
		}
	})

	t.Run("Alternatives", func(t *testing.T) {
		s := newStore(t)
		for i := 0; i < 7; i++ {
			seedProfiles(t, s, &domain.Profile{EntityID: fmt.Sprintf("P%d", i), Name: "Jordan Lee", Department: "Science"})
		}
		res, err := New(s, nil).Resolve(ctx, domain.Identifiers{Name: "Jordan Lee"})
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if res.TotalCandidates != 7 || len(res.Alternatives) != MaxAlternatives {
			t.Errorf("expected 7 candidates and %d alternatives, got %d and %d",
				MaxAlternatives, res.TotalCandidates, len(res.Alternatives))
		}
		if res.BestMatch.EntityID != "P0" || res.Alternatives[0].EntityID != "P1" {
			t.Errorf("expected ties ordered by entity id, got %s then %s", res.BestMatch.EntityID, res.Alternatives[0].EntityID)
		}
	})

	t.Run("StoreFailure", func(t *testing.T) {
		res, err := New(brokenStore{Store: store}, nil).Resolve(ctx, domain.Identifiers{CardID: "C1"})
		if !errors.Is(err, domain.ErrStoreUnavailable) {
			t.Fatalf("expected ErrStoreUnavailable, got %v", err)
		}
		if res.Status != domain.OutcomeError || res.Error == "" || len(res.Alternatives) != 0 {
			t.Errorf("expected failed result, got %+v", res)
		}
	})
}

func TestResolveExact(t *testing.T) {
	store := newStore(t)
	seedProfiles(t, store, alice, bob)
	r := New(store, nil)
	ctx := context.Background()

	t.Run("CardMatch", func(t *testing.T) {
		res, err := r.ResolveExact(ctx, domain.Identifiers{CardID: "C1"})
		if err != nil {
			t.Fatalf("ResolveExact failed: %v", err)
		}
		if res.Outcome != domain.OutcomeMatched || res.EntityID != "A" || res.Confidence != 0.95 {
			t.Errorf("unexpected result: %+v", res)
		}
		if len(res.MatchedFields) != 1 || res.MatchedFields[0] != "card_id" {
			t.Errorf("expected [card_id], got %v", res.MatchedFields)
		}
	})

	t.Run("HighestSourceWins", func(t *testing.T) {
		res, err := r.ResolveExact(ctx, domain.Identifiers{DeviceHash: alice.DeviceHash, FaceID: "F1"})
		if err != nil {
			t.Fatalf("ResolveExact failed: %v", err)
		}
		if res.Confidence != 0.90 {
			t.Errorf("expected face confidence 0.90, got %.2f", res.Confidence)
		}
		if strings.Join(res.MatchedSources, ",") != "device,face" {
			t.Errorf("unexpected sources: %v", res.MatchedSources)
		}
	})

	t.Run("Conflict", func(t *testing.T) {
		res, err := r.ResolveExact(ctx, domain.Identifiers{CardID: "C1", FaceID: "F2"})
		if err != nil {
			t.Fatalf("ResolveExact failed: %v", err)
		}
		if !res.IsConflict() {
			t.Fatalf("expected conflict, got %s", res.Outcome)
		}
		if strings.Join(res.ConflictingEntities, ",") != "A,B" {
			t.Errorf("expected {A,B}, got %v", res.ConflictingEntities)
		}
		if res.EntityID != "" || res.Profile != nil {
			t.Error("conflict must not name a winner")
		}
		if len(res.Matches) != 2 {
			t.Errorf("expected 2 matches, got %d", len(res.Matches))
		}
	})

	t.Run("NoMatch", func(t *testing.T) {
		res, err := r.ResolveExact(ctx, domain.Identifiers{CardID: "C404"})
		if err != nil {
			t.Fatalf("ResolveExact failed: %v", err)
		}
		if res.Outcome != domain.OutcomeNoMatch {
			t.Errorf("expected no_match, got %s", res.Outcome)
		}
	})

	t.Run("NoIdentifier", func(t *testing.T) {
		cs := &countingStore{Store: store}
		_, err := New(cs, nil).ResolveExact(ctx, domain.Identifiers{Email: "alice@eng.campus.edu"})
		if !errors.Is(err, domain.ErrNoIdentifier) {
			t.Errorf("expected ErrNoIdentifier, got %v", err)
		}
		if cs.calls != 0 {
			t.Errorf("expected no store calls, got %d", cs.calls)
		}
	})
}

func TestProvenanceAndLinks(t *testing.T) {
	store := newStore(t)
	seedProfiles(t, store, alice, bob)
	ctx := context.Background()
	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

	records := []*domain.ActivityRecord{
		{EntityID: "A", Source: domain.SourceSwipe, Location: "GATE-1", Identifier: "C1", Timestamp: now.Add(-1 * time.Hour)},
		{EntityID: "A", Source: domain.SourceSwipe, Location: "GATE-2", Identifier: "C1", Timestamp: now.Add(-2 * time.Hour)},
		{EntityID: "A", Source: domain.SourceSwipe, Location: "GATE-3", Identifier: "C1", Timestamp: now.Add(-40 * 24 * time.Hour)},
		{EntityID: "A", Source: domain.SourceWiFi, Location: "AP-1", Identifier: alice.DeviceHash, Timestamp: now.Add(-3 * time.Hour)},
	}
	for _, rec := range records {
		if err := store.SaveActivity(ctx, rec); err != nil {
			t.Fatalf("SaveActivity failed: %v", err)
		}
	}

	r := New(store, nil)
	r.Now = func() time.Time { return now }

	t.Run("Provenance", func(t *testing.T) {
		prov, err := r.Provenance(ctx, "A")
		if err != nil {
			t.Fatalf("Provenance failed: %v", err)
		}
		if prov.IdentifierSources["face_id"].Confidence != "medium" {
			t.Errorf("expected medium face tier, got %+v", prov.IdentifierSources["face_id"])
		}
		if prov.IdentifierSources["student_id"].Source != "profiles" {
			t.Errorf("expected student id from profiles, got %+v", prov.IdentifierSources["student_id"])
		}
		if prov.ActivityCounts[domain.SourceSwipe] != 2 {
			t.Errorf("expected 2 swipes in window, got %d", prov.ActivityCounts[domain.SourceSwipe])
		}
		if strings.Join(prov.DataSources, ",") != "cctv_frames,swipes,wifi_logs" {
			t.Errorf("unexpected data sources: %v", prov.DataSources)
		}
	})

	t.Run("ProvenanceUnknown", func(t *testing.T) {
		if _, err := r.Provenance(ctx, "Z"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Links", func(t *testing.T) {
		links, err := r.CrossSourceLinks(ctx, "A")
		if err != nil {
			t.Fatalf("CrossSourceLinks failed: %v", err)
		}
		if len(links.Links) != 2 {
			t.Fatalf("expected card and device links, got %+v", links.Links)
		}
		card := links.Links[0]
		if card.Kind != "card_to_swipes" || card.RecordCount != 3 || len(card.Samples) != 3 {
			t.Errorf("unexpected card link: %+v", card)
		}
		if math.Abs(links.OverallConfidence-0.925) > 1e-9 {
			t.Errorf("expected mean 0.925, got %.4f", links.OverallConfidence)
		}
	})
}

func TestNameSimilarity(t *testing.T) {
	names := []string{"Alice Morgan", "alice morgan", "Morgan Alice", "Alicia Morgen", "Bob", "b", ""}

	t.Run("Identity", func(t *testing.T) {
		for _, n := range names[:5] {
			if got := NameSimilarity(n, n); got != 1 {
				t.Errorf("sim(%q, %q) = %v, want 1", n, n, got)
			}
		}
	})

	t.Run("Empty", func(t *testing.T) {
		if NameSimilarity("", "Alice") != 0 || NameSimilarity("Alice", "  ") != 0 {
			t.Error("expected zero for empty input")
		}
	})

	t.Run("Symmetric", func(t *testing.T) {
		for _, a := range names {
			for _, b := range names {
				if x, y := NameSimilarity(a, b), NameSimilarity(b, a); math.Abs(x-y) > 1e-12 {
					t.Errorf("sim(%q,%q)=%v but sim(%q,%q)=%v", a, b, x, b, a, y)
				}
			}
		}
	})

	t.Run("Bounded", func(t *testing.T) {
		for _, a := range names {
			for _, b := range names {
				if s := NameSimilarity(a, b); s < 0 || s > 1 {
					t.Errorf("sim(%q,%q)=%v out of range", a, b, s)
				}
			}
		}
	})

	t.Run("ReorderedTokens", func(t *testing.T) {
		reordered := NameSimilarity("Alice Morgan", "Morgan Alice")
		unrelated := NameSimilarity("Alice Morgan", "Bob Tran")
		if reordered <= unrelated {
			t.Errorf("expected reordered tokens to outscore an unrelated name, got %v <= %v", reordered, unrelated)
		}
	})
}
