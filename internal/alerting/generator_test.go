package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/campusguard/argus/internal/alertstore"
	"github.com/campusguard/argus/internal/bus"
	"github.com/campusguard/argus/internal/domain"
	"github.com/campusguard/argus/internal/repository"
)

// flakyStore fails LastSeenByEntity for selected sources.
type flakyStore struct {
	domain.Store
	fail map[domain.Source]bool
}

func (s *flakyStore) LastSeenByEntity(ctx context.Context, src domain.Source, ids []string, since time.Time) (map[string]time.Time, error) {
	if s.fail[src] {
		return nil, errors.New("connection reset")
	}
	return s.Store.LastSeenByEntity(ctx, src, ids, since)
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

// seed creates A (active), W (warning), C (critical) and N (no activity).
func seed(t *testing.T, store domain.Store, now time.Time) {
	t.Helper()
	ctx := context.Background()

	for _, id := range []string{"A", "C", "N", "W"} {
		if err := store.SaveProfile(ctx, &domain.Profile{EntityID: id, Name: "Entity " + id}); err != nil {
			t.Fatalf("SaveProfile failed: %v", err)
		}
	}

	records := []*domain.ActivityRecord{
		{EntityID: "A", Source: domain.SourceSwipe, Location: "GATE", Timestamp: now.Add(-8 * time.Hour)},
		{EntityID: "A", Source: domain.SourceWiFi, Location: "AP-1", Timestamp: now.Add(-5*time.Hour - 50*time.Minute)},
		{EntityID: "W", Source: domain.SourceLibrary, Location: "LIB", Timestamp: now.Add(-7 * time.Hour)},
		{EntityID: "C", Source: domain.SourceCCTV, Location: "CAM-2", Timestamp: now.Add(-13 * time.Hour)},
		{EntityID: "N", Source: domain.SourceSwipe, Location: "GATE", Timestamp: now.Add(-30 * time.Hour)},
	}
	for _, rec := range records {
		if err := store.SaveActivity(ctx, rec); err != nil {
			t.Fatalf("SaveActivity failed: %v", err)
		}
	}
}

func TestGenerate(t *testing.T) {
	store := newStore(t)
	now := time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC)
	seed(t, store, now)

	alerts := alertstore.NewMemoryStore(100, 0)
	g := NewGenerator(store, alerts, nil, domain.AlertConfig{}, nil)
	g.Now = func() time.Time { return now }
	ctx := context.Background()

	t.Run("Tiers", func(t *testing.T) {
		report, err := g.Generate(ctx, domain.AlertQuery{})
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}

		want := domain.AlertSummary{Total: 4, Active: 1, Warning: 1, Critical: 2}
		if report.Summary != want {
			t.Errorf("expected summary %+v, got %+v", want, report.Summary)
		}

		// Critical first, then entity id
		order := []string{"C", "N", "W"}
		if len(report.Alerts) != len(order) {
			t.Fatalf("expected %d alerts, got %d", len(order), len(report.Alerts))
		}
		for i, id := range order {
			if report.Alerts[i].EntityID != id {
				t.Errorf("alert %d: expected %s, got %s", i, id, report.Alerts[i].EntityID)
			}
		}
	})

	t.Run("NoActivityIsCritical", func(t *testing.T) {
		report, _ := g.Generate(ctx, domain.AlertQuery{})
		for _, a := range report.Alerts {
			if a.EntityID != "N" {
				continue
			}
			if a.Severity != domain.SeverityCritical {
				t.Errorf("expected critical, got %s", a.Severity)
			}
			if a.HoursInactive != nil || a.LastSeen != nil {
				t.Error("expected no hours or last seen for an entity without activity")
			}
			return
		}
		t.Error("entity N not reported")
	})

	t.Run("HoursInactive", func(t *testing.T) {
		report, _ := g.Generate(ctx, domain.AlertQuery{Severity: domain.SeverityWarning})
		if len(report.Alerts) != 1 {
			t.Fatalf("expected 1 warning, got %d", len(report.Alerts))
		}
		a := report.Alerts[0]
		if a.HoursInactive == nil || *a.HoursInactive != 7 {
			t.Errorf("expected 7 hours inactive, got %v", a.HoursInactive)
		}
		if a.Status != domain.AlertOpen {
			t.Errorf("expected default status open, got %s", a.Status)
		}
	})

	t.Run("LimitAfterSummary", func(t *testing.T) {
		report, _ := g.Generate(ctx, domain.AlertQuery{Limit: 1})
		if len(report.Alerts) != 1 || report.Alerts[0].EntityID != "C" {
			t.Errorf("expected only C, got %+v", report.Alerts)
		}
		if report.Summary.Total != 4 || report.Summary.Critical != 2 {
			t.Errorf("summary must ignore the limit, got %+v", report.Summary)
		}
	})

	t.Run("StatusFilter", func(t *testing.T) {
		if _, err := g.UpdateStatus(ctx, "C", domain.AlertInvestigating); err != nil {
			t.Fatalf("UpdateStatus failed: %v", err)
		}

		report, _ := g.Generate(ctx, domain.AlertQuery{Status: domain.AlertInvestigating})
		if len(report.Alerts) != 1 || report.Alerts[0].EntityID != "C" {
			t.Errorf("expected only C, got %+v", report.Alerts)
		}

		report, _ = g.Generate(ctx, domain.AlertQuery{Status: domain.AlertOpen})
		if len(report.Alerts) != 2 {
			t.Errorf("expected 2 open alerts, got %d", len(report.Alerts))
		}
	})

	t.Run("InvalidQuery", func(t *testing.T) {
		for _, q := range []domain.AlertQuery{
			{Severity: "active"},
			{Severity: "urgent"},
			{Status: "closed"},
			{Limit: -1},
		} {
			if _, err := g.Generate(ctx, q); !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("query %+v: expected ErrInvalidInput, got %v", q, err)
			}
		}
	})

	t.Run("SourceFailureIsolated", func(t *testing.T) {
		flaky := NewGenerator(&flakyStore{Store: store, fail: map[domain.Source]bool{domain.SourceWiFi: true}},
			alertstore.NewMemoryStore(10, 0), nil, domain.AlertConfig{}, nil)
		flaky.Now = g.Now

		report, err := flaky.Generate(ctx, domain.AlertQuery{})
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if len(report.DegradedSources) != 1 || report.DegradedSources[0] != domain.SourceWiFi {
			t.Errorf("expected wifi degraded, got %v", report.DegradedSources)
		}
		// Without wifi, A was last seen 8h ago
		if report.Summary.Active != 0 || report.Summary.Warning != 2 {
			t.Errorf("unexpected summary without wifi: %+v", report.Summary)
		}
	})
}

func TestUpdateStatus(t *testing.T) {
	store := newStore(t)
	now := time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC)
	seed(t, store, now)

	b := bus.NewChannelBus(10)
	defer b.Close()
	ctx := context.Background()

	var mu sync.Mutex
	var events []domain.AlertStatusRecord
	done := make(chan struct{}, 4)
	b.Subscribe(ctx, domain.TopicAlertStatusChanged, func(ctx context.Context, msg *domain.Message) error {
		var rec domain.AlertStatusRecord
		if err := json.Unmarshal(msg.Payload, &rec); err != nil {
			return err
		}
		mu.Lock()
		events = append(events, rec)
		mu.Unlock()
		done <- struct{}{}
		return nil
	})

	alerts := alertstore.NewMemoryStore(100, 0)
	g := NewGenerator(store, alerts, b, domain.AlertConfig{}, nil)
	g.Now = func() time.Time { return now }

	t.Run("LastWriteWins", func(t *testing.T) {
		if _, err := g.UpdateStatus(ctx, "W", domain.AlertInvestigating); err != nil {
			t.Fatalf("UpdateStatus failed: %v", err)
		}
		rec, err := g.UpdateStatus(ctx, "W", domain.AlertResolved)
		if err != nil {
			t.Fatalf("UpdateStatus failed: %v", err)
		}
		if rec.Status != domain.AlertResolved || !rec.UpdatedAt.Equal(now) {
			t.Errorf("unexpected record: %+v", rec)
		}

		stored, _ := alerts.GetStatus(ctx, "W")
		if stored == nil || stored.Status != domain.AlertResolved {
			t.Errorf("expected resolved in store, got %+v", stored)
		}
	})

	t.Run("PublishesStatusChange", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("timeout waiting for status events")
			}
		}
		mu.Lock()
		defer mu.Unlock()
		if events[len(events)-1].EntityID != "W" {
			t.Errorf("unexpected event: %+v", events[len(events)-1])
		}
	})

	t.Run("UnknownEntity", func(t *testing.T) {
		_, err := g.UpdateStatus(ctx, "nobody", domain.AlertResolved)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("InvalidStatus", func(t *testing.T) {
		_, err := g.UpdateStatus(ctx, "W", "closed")
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestGenerateRaisesOpenAlerts(t *testing.T) {
	store := newStore(t)
	now := time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC)
	seed(t, store, now)

	b := bus.NewChannelBus(10)
	defer b.Close()
	ctx := context.Background()

	raised := make(chan RaisedEvent, 10)
	b.Subscribe(ctx, domain.TopicAlertRaised, func(ctx context.Context, msg *domain.Message) error {
		var ev RaisedEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return err
		}
		raised <- ev
		return nil
	})

	alerts := alertstore.NewMemoryStore(100, 0)
	_ = alerts.SetStatus(ctx, &domain.AlertStatusRecord{EntityID: "C", Status: domain.AlertResolved})

	g := NewGenerator(store, alerts, b, domain.AlertConfig{}, nil)
	g.Now = func() time.Time { return now }

	if _, err := g.Generate(ctx, domain.AlertQuery{}); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	got := map[string]domain.Severity{}
	for len(got) < 2 {
		select {
		case ev := <-raised:
			got[ev.EntityID] = ev.Severity
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for raised alerts, got %v", got)
		}
	}
	if got["N"] != domain.SeverityCritical || got["W"] != domain.SeverityWarning {
		t.Errorf("unexpected raised alerts: %v", got)
	}
	if _, ok := got["C"]; ok {
		t.Error("resolved alert should not be raised")
	}
}
