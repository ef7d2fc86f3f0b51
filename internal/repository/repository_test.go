package repository

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/campusguard/argus/internal/domain"
)

func newTestRepo(t *testing.T) *SQLRepository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "argus-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	alice := &domain.Profile{
		EntityID:   "E100",
		Name:       "Alice Zhang",
		Role:       "student",
		Department: "Engineering",
		CardID:     "C100",
		DeviceHash: "DH100",
		Email:      "alice@eng.campus.edu",
	}
	bob := &domain.Profile{
		EntityID: "E200",
		Name:     "Bob Okafor",
		Role:     "staff",
		FaceID:   "F200",
	}

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetProfile", func(t *testing.T) {
		for _, p := range []*domain.Profile{alice, bob} {
			if err := repo.SaveProfile(ctx, p); err != nil {
				t.Fatalf("SaveProfile failed: %v", err)
			}
		}

		got, err := repo.GetProfile(ctx, "E100")
		if err != nil {
			t.Fatalf("GetProfile failed: %v", err)
		}
		if got.Name != alice.Name || got.CardID != "C100" {
			t.Errorf("unexpected profile: %+v", got)
		}
		if got.FaceID != "" {
			t.Errorf("expected empty face id, got %q", got.FaceID)
		}
	})

	t.Run("SaveProfileUpserts", func(t *testing.T) {
		updated := *bob
		updated.Department = "Facilities"
		if err := repo.SaveProfile(ctx, &updated); err != nil {
			t.Fatalf("SaveProfile failed: %v", err)
		}
		got, err := repo.GetProfile(ctx, "E200")
		if err != nil {
			t.Fatalf("GetProfile failed: %v", err)
		}
		if got.Department != "Facilities" {
			t.Errorf("expected Facilities, got %q", got.Department)
		}
	})

	t.Run("ProfileNotFound", func(t *testing.T) {
		_, err := repo.GetProfile(ctx, "missing")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ListProfiles", func(t *testing.T) {
		page, err := repo.ListProfiles(ctx, 1, 1)
		if err != nil {
			t.Fatalf("ListProfiles failed: %v", err)
		}
		if len(page) != 1 || page[0].EntityID != "E200" {
			t.Errorf("expected second profile E200, got %+v", page)
		}

		all, err := repo.AllProfiles(ctx)
		if err != nil {
			t.Fatalf("AllProfiles failed: %v", err)
		}
		if len(all) != 2 {
			t.Errorf("expected 2 profiles, got %d", len(all))
		}
	})

	t.Run("SearchProfiles", func(t *testing.T) {
		hits, err := repo.SearchProfiles(ctx, domain.SearchName, "ZHANG", 10)
		if err != nil {
			t.Fatalf("SearchProfiles failed: %v", err)
		}
		if len(hits) != 1 || hits[0].EntityID != "E100" {
			t.Errorf("expected E100, got %+v", hits)
		}

		if _, err := repo.SearchProfiles(ctx, "card_id", "C", 10); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for unsearchable field, got %v", err)
		}
	})

	t.Run("FindProfileBy", func(t *testing.T) {
		got, err := repo.FindProfileBy(ctx, domain.FieldFaceID, "F200")
		if err != nil {
			t.Fatalf("FindProfileBy failed: %v", err)
		}
		if got.EntityID != "E200" {
			t.Errorf("expected E200, got %s", got.EntityID)
		}

		if _, err := repo.FindProfileBy(ctx, domain.FieldCardID, "nope"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ActivityRoundTrip", func(t *testing.T) {
		records := []*domain.ActivityRecord{
			{EntityID: "E100", Source: domain.SourceSwipe, Location: "LIB-1", Identifier: "C100", Timestamp: now.Add(-3 * time.Hour)},
			{EntityID: "E100", Source: domain.SourceSwipe, Location: "LAB-2", Identifier: "C100", Timestamp: now.Add(-1 * time.Hour)},
			{EntityID: "E100", Source: domain.SourceWiFi, Location: "AP-7", Identifier: "DH100", Timestamp: now.Add(-2 * time.Hour)},
			{EntityID: "E100", Source: domain.SourceLibrary, Timestamp: now.Add(-30 * time.Hour)},
			{EntityID: "E100", Source: domain.SourceNote, Text: "left badge at desk", Timestamp: now.Add(-5 * time.Hour)},
		}
		for _, rec := range records {
			if err := repo.SaveActivity(ctx, rec); err != nil {
				t.Fatalf("SaveActivity failed: %v", err)
			}
		}

		swipes, err := repo.ActivityFor(ctx, domain.SourceSwipe, "E100", time.Time{})
		if err != nil {
			t.Fatalf("ActivityFor failed: %v", err)
		}
		if len(swipes) != 2 {
			t.Fatalf("expected 2 swipes, got %d", len(swipes))
		}
		if swipes[0].Location != "LIB-1" || swipes[1].Location != "LAB-2" {
			t.Errorf("expected insertion order, got %s, %s", swipes[0].Location, swipes[1].Location)
		}
		if swipes[0].Seq >= swipes[1].Seq {
			t.Errorf("expected increasing seq, got %d then %d", swipes[0].Seq, swipes[1].Seq)
		}

		recent, err := repo.ActivityFor(ctx, domain.SourceSwipe, "E100", now.Add(-2*time.Hour))
		if err != nil {
			t.Fatalf("ActivityFor failed: %v", err)
		}
		if len(recent) != 1 {
			t.Errorf("expected 1 swipe since cutoff, got %d", len(recent))
		}

		library, err := repo.ActivityFor(ctx, domain.SourceLibrary, "E100", time.Time{})
		if err != nil {
			t.Fatalf("ActivityFor failed: %v", err)
		}
		if len(library) != 1 || library[0].Location != "library" {
			t.Errorf("expected default library location, got %+v", library)
		}

		notes, err := repo.ActivityFor(ctx, domain.SourceNote, "E100", time.Time{})
		if err != nil {
			t.Fatalf("ActivityFor failed: %v", err)
		}
		if len(notes) != 1 || notes[0].Text != "left badge at desk" {
			t.Errorf("unexpected notes: %+v", notes)
		}
	})

	t.Run("LegacyIdentityColumn", func(t *testing.T) {
		_, err := repo.db.ExecContext(ctx,
			`INSERT INTO wifi_logs (identity, device_hash, ap_id, timestamp) VALUES (?, ?, ?, ?)`,
			"E200", "DH200", "AP-9", now.Add(-4*time.Hour))
		if err != nil {
			t.Fatalf("insert legacy row failed: %v", err)
		}

		recs, err := repo.ActivityFor(ctx, domain.SourceWiFi, "E200", time.Time{})
		if err != nil {
			t.Fatalf("ActivityFor failed: %v", err)
		}
		if len(recs) != 1 || recs[0].EntityID != "E200" {
			t.Errorf("expected legacy row resolved to E200, got %+v", recs)
		}
	})

	t.Run("ActivityByIdentifier", func(t *testing.T) {
		recs, err := repo.ActivityByIdentifier(ctx, domain.SourceSwipe, "C100", 5)
		if err != nil {
			t.Fatalf("ActivityByIdentifier failed: %v", err)
		}
		if len(recs) != 2 || recs[0].Location != "LAB-2" {
			t.Errorf("expected newest first, got %+v", recs)
		}

		if _, err := repo.ActivityByIdentifier(ctx, domain.SourceLabBooking, "x", 5); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("CountActivity", func(t *testing.T) {
		n, err := repo.CountActivity(ctx, domain.SourceSwipe, "E100", now.Add(-24*time.Hour))
		if err != nil {
			t.Fatalf("CountActivity failed: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2, got %d", n)
		}
	})

	t.Run("LastSeenByEntity", func(t *testing.T) {
		seen, err := repo.LastSeenByEntity(ctx, domain.SourceSwipe, []string{"E100", "E200"}, now.Add(-24*time.Hour))
		if err != nil {
			t.Fatalf("LastSeenByEntity failed: %v", err)
		}
		if !seen["E100"].Equal(now.Add(-1 * time.Hour)) {
			t.Errorf("expected latest swipe for E100, got %v", seen["E100"])
		}
		if _, ok := seen["E200"]; ok {
			t.Error("expected no swipe entry for E200")
		}

		empty, err := repo.LastSeenByEntity(ctx, domain.SourceSwipe, nil, now)
		if err != nil || len(empty) != 0 {
			t.Errorf("expected empty map for no ids, got %v, %v", empty, err)
		}
	})

	t.Run("UnknownSource", func(t *testing.T) {
		if _, err := repo.ActivityFor(ctx, "radar", "E100", time.Time{}); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestRebind(t *testing.T) {
	pg := &SQLRepository{driver: "postgres"}
	if got := pg.rebind("a = ? AND b IN (?, ?)"); got != "a = $1 AND b IN ($2, $3)" {
		t.Errorf("unexpected rebind: %s", got)
	}

	lite := &SQLRepository{driver: "sqlite"}
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite query should be unchanged, got %s", got)
	}
}

func TestPostgresDSN(t *testing.T) {
	dsn := postgresDSN(domain.RepositoryConfig{PostgresUser: "argus"})
	for _, want := range []string{"host=localhost", "port=5432", "dbname=argus", "sslmode=disable", "user=argus"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("dsn %q missing %q", dsn, want)
		}
	}
	if strings.Contains(dsn, "password") {
		t.Errorf("dsn should omit empty password: %q", dsn)
	}
}
