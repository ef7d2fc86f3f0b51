// Package alerting flags sampled entities whose activity is missing or stale.
package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/campusguard/argus/internal/domain"
	"github.com/campusguard/argus/internal/metrics"
)

// RaisedEvent is published on domain.TopicAlertRaised.
type RaisedEvent struct {
	EntityID      string          `json:"entity_id"`
	Severity      domain.Severity `json:"severity"`
	HoursInactive *float64        `json:"hours_inactive"`
	Message       string          `json:"message"`
	RaisedAt      time.Time       `json:"raised_at"`
}

// Generator produces inactivity alert reports and tracks their workflow status.
type Generator struct {
	store   domain.Store
	alerts  domain.AlertStore
	bus     domain.EventBus
	cfg     domain.AlertConfig
	metrics *metrics.Collector

	Now func() time.Time
}

// NewGenerator creates an alert generator. The bus may be nil.
// Zero policy fields take the defaults.
func NewGenerator(store domain.Store, alerts domain.AlertStore, bus domain.EventBus, cfg domain.AlertConfig, m *metrics.Collector) *Generator {
	def := domain.DefaultAlertConfig()
	if cfg.WarningAfter <= 0 || cfg.CriticalAfter <= 0 {
		cfg.WarningAfter = def.WarningAfter
		cfg.CriticalAfter = def.CriticalAfter
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = def.SampleSize
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = def.DefaultLimit
	}
	return &Generator{
		store:   store,
		alerts:  alerts,
		bus:     bus,
		cfg:     cfg,
		metrics: m,
		Now:     time.Now,
	}
}

// Generate samples entities, classifies their inactivity and returns the
// filtered report. The summary always covers the whole sample.
func (g *Generator) Generate(ctx context.Context, q domain.AlertQuery) (*domain.AlertReport, error) {
	if q.Severity != "" && !domain.ValidSeverity(q.Severity) {
		return nil, fmt.Errorf("unknown severity %q: %w", q.Severity, domain.ErrInvalidInput)
	}
	if q.Status != "" && !domain.ValidAlertStatus(q.Status) {
		return nil, fmt.Errorf("unknown status %q: %w", q.Status, domain.ErrInvalidInput)
	}
	if q.Limit < 0 {
		return nil, fmt.Errorf("limit must be non-negative: %w", domain.ErrInvalidInput)
	}
	limit := q.Limit
	if limit == 0 {
		limit = g.cfg.DefaultLimit
	}

	now := g.Now().UTC()
	profiles, err := g.store.ListProfiles(ctx, g.cfg.SampleSize, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to sample profiles: %w", wrapStore(err))
	}

	ids := make([]string, len(profiles))
	for i, p := range profiles {
		ids[i] = p.EntityID
	}

	report := &domain.AlertReport{
		Alerts:      []domain.Alert{},
		GeneratedAt: now,
	}

	lastSeen, degraded, err := g.lastSeen(ctx, ids, now.Add(-g.cfg.Window))
	if err != nil {
		return nil, err
	}
	report.DegradedSources = degraded

	var flagged []domain.Alert
	for _, p := range profiles {
		report.Summary.Total++
		alert := g.classify(p, lastSeen, now)
		switch alert.Severity {
		case domain.SeverityActive:
			report.Summary.Active++
			continue
		case domain.SeverityWarning:
			report.Summary.Warning++
		case domain.SeverityCritical:
			report.Summary.Critical++
		}
		flagged = append(flagged, alert)
	}
	g.metrics.AlertSummary(report.Summary)

	g.attachStatuses(ctx, flagged)

	sort.SliceStable(flagged, func(i, j int) bool {
		ri, rj := rank(flagged[i].Severity), rank(flagged[j].Severity)
		if ri != rj {
			return ri < rj
		}
		return flagged[i].EntityID < flagged[j].EntityID
	})

	g.publishRaised(ctx, flagged, now)

	for _, a := range flagged {
		if q.Severity != "" && a.Severity != q.Severity {
			continue
		}
		if q.Status != "" && a.Status != q.Status {
			continue
		}
		report.Alerts = append(report.Alerts, a)
		if len(report.Alerts) == limit {
			break
		}
	}
	return report, nil
}

// lastSeen merges the most recent observation per entity across sources.
func (g *Generator) lastSeen(ctx context.Context, ids []string, since time.Time) (map[string]time.Time, []domain.Source, error) {
	seen := make(map[string]time.Time, len(ids))
	var degraded []domain.Source
	if len(ids) == 0 {
		return seen, degraded, nil
	}

	for _, src := range domain.AllSources() {
		latest, err := g.store.LastSeenByEntity(ctx, src, ids, since)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			slog.Warn("alert source unavailable",
				"source", src,
				"error", err,
			)
			g.metrics.SourceFailed("alerts", src)
			degraded = append(degraded, src)
			continue
		}
		for id, ts := range latest {
			if ts.After(seen[id]) {
				seen[id] = ts
			}
		}
	}
	return seen, degraded, nil
}

func (g *Generator) classify(p *domain.Profile, lastSeen map[string]time.Time, now time.Time) domain.Alert {
	alert := domain.Alert{
		EntityID: p.EntityID,
		Profile:  p,
		Status:   domain.AlertOpen,
	}

	ts, ok := lastSeen[p.EntityID]
	if !ok {
		alert.Severity = domain.SeverityCritical
		alert.Message = fmt.Sprintf("No activity recorded in the last %s", formatHours(g.cfg.Window))
		return alert
	}

	age := now.Sub(ts)
	hours := math.Round(age.Hours()*100) / 100
	last := ts.UTC()
	alert.LastSeen = &last
	alert.HoursInactive = &hours

	switch {
	case age < g.cfg.WarningAfter:
		alert.Severity = domain.SeverityActive
	case age < g.cfg.CriticalAfter:
		alert.Severity = domain.SeverityWarning
	default:
		alert.Severity = domain.SeverityCritical
	}
	alert.Message = fmt.Sprintf("Not seen for %.1f hours", hours)
	return alert
}

// attachStatuses loads workflow status; entities without a record stay open.
func (g *Generator) attachStatuses(ctx context.Context, alerts []domain.Alert) {
	if g.alerts == nil || len(alerts) == 0 {
		return
	}

	ids := make([]string, len(alerts))
	for i, a := range alerts {
		ids[i] = a.EntityID
	}

	records, err := g.alerts.GetStatuses(ctx, ids)
	if err != nil {
		slog.Warn("alert status unavailable, defaulting to open", "error", err)
		return
	}
	for i := range alerts {
		if rec, ok := records[alerts[i].EntityID]; ok && domain.ValidAlertStatus(rec.Status) {
			alerts[i].Status = rec.Status
		}
	}
}

// publishRaised announces open alerts. Delivery is best effort.
func (g *Generator) publishRaised(ctx context.Context, alerts []domain.Alert, now time.Time) {
	if g.bus == nil {
		return
	}
	for _, a := range alerts {
		if a.Status != domain.AlertOpen {
			continue
		}
		payload, err := json.Marshal(RaisedEvent{
			EntityID:      a.EntityID,
			Severity:      a.Severity,
			HoursInactive: a.HoursInactive,
			Message:       a.Message,
			RaisedAt:      now,
		})
		if err != nil {
			continue
		}
		if err := g.bus.Publish(ctx, domain.TopicAlertRaised, payload); err != nil {
			g.metrics.BusMessage(domain.TopicAlertRaised, "error")
			slog.Warn("failed to publish alert", "entity_id", a.EntityID, "error", err)
			continue
		}
		g.metrics.BusMessage(domain.TopicAlertRaised, "published")
	}
}

// UpdateStatus records an analyst's workflow status for an entity's alert.
func (g *Generator) UpdateStatus(ctx context.Context, entityID string, status domain.AlertStatus) (*domain.AlertStatusRecord, error) {
	if !domain.ValidAlertStatus(status) {
		return nil, fmt.Errorf("unknown status %q: %w", status, domain.ErrInvalidInput)
	}

	if _, err := g.store.GetProfile(ctx, entityID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("entity %s: %w", entityID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load profile: %w", wrapStore(err))
	}

	rec := &domain.AlertStatusRecord{
		EntityID:  entityID,
		Status:    status,
		UpdatedAt: g.Now().UTC(),
	}
	if err := g.alerts.SetStatus(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to store alert status: %w", wrapStore(err))
	}
	g.metrics.AlertStatusUpdated(status)

	if g.bus != nil {
		payload, _ := json.Marshal(rec)
		if err := g.bus.Publish(ctx, domain.TopicAlertStatusChanged, payload); err != nil {
			g.metrics.BusMessage(domain.TopicAlertStatusChanged, "error")
			slog.Warn("failed to publish alert status", "entity_id", entityID, "error", err)
		} else {
			g.metrics.BusMessage(domain.TopicAlertStatusChanged, "published")
		}
	}
	return rec, nil
}

func rank(s domain.Severity) int {
	if s == domain.SeverityCritical {
		return 0
	}
	return 1
}

func formatHours(d time.Duration) string {
	return fmt.Sprintf("%gh", d.Hours())
}

func wrapStore(err error) error {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
}
