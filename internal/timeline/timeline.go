// Package timeline merges per-source activity into a single entity history.
package timeline

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

// Builder assembles timelines from the record store.
type Builder struct {
	store   domain.Store
	cfg     domain.TimelineConfig
	metrics *metrics.Collector

	// Now is the clock used for status classification.
	Now func() time.Time
}

// NewBuilder creates a timeline builder. A zero config uses the defaults.
func NewBuilder(store domain.Store, cfg domain.TimelineConfig, m *metrics.Collector) *Builder {
	if cfg.ActiveWithin <= 0 || cfg.RecentWithin <= 0 {
		cfg = domain.DefaultTimelineConfig()
	}
	return &Builder{
		store:   store,
		cfg:     cfg,
		metrics: m,
		Now:     time.Now,
	}
}

// Build returns the merged timeline of an entity, newest first.
// A zero since means the full history.
func (b *Builder) Build(ctx context.Context, entityID string, since time.Time) (*domain.Timeline, error) {
	profile, err := b.store.GetProfile(ctx, entityID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("entity %s: %w", entityID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	tl := &domain.Timeline{
		EntityID:    entityID,
		Profile:     profile,
		Entries:     []domain.TimelineEntry{},
		Status:      domain.StatusInactive,
		Summary:     make(map[domain.Source]int),
		GeneratedAt: b.Now().UTC(),
	}

	for _, src := range domain.AllSources() {
		recs, err := b.store.ActivityFor(ctx, src, entityID, since)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("timeline source unavailable",
				"source", src,
				"entity_id", entityID,
				"error", err,
			)
			b.metrics.SourceFailed("timeline", src)
			tl.DegradedSources = append(tl.DegradedSources, src)
			continue
		}
		for _, rec := range recs {
			tl.Entries = append(tl.Entries, domain.TimelineEntry{
				Timestamp:     rec.Timestamp,
				Location:      rec.Location,
				DetectionType: src,
				Description:   Describe(rec),
			})
			tl.Summary[src]++
		}
	}

	// Entries were appended in source order then insertion order.
	sort.SliceStable(tl.Entries, func(i, j int) bool {
		return tl.Entries[i].Timestamp.After(tl.Entries[j].Timestamp)
	})

	if len(tl.Entries) > 0 {
		latest := tl.Entries[0]
		seen := latest.Timestamp
		tl.LastSeen = &seen
		tl.CurrentLocation = latest.Location
		tl.Status = Status(seen, b.Now(), b.cfg)
	}

	b.metrics.TimelineBuilt()
	return tl, nil
}

// Status classifies liveness from the age of the most recent activity.
// Both thresholds are exclusive upper bounds.
func Status(lastSeen, now time.Time, cfg domain.TimelineConfig) domain.EntityStatus {
	age := now.Sub(lastSeen)
	switch {
	case age < cfg.ActiveWithin:
		return domain.StatusActive
	case age < cfg.RecentWithin:
		return domain.StatusRecent
	default:
		return domain.StatusInactive
	}
}

// Describe renders the human-readable description of a record.
func Describe(rec *domain.ActivityRecord) string {
	switch rec.Source {
	case domain.SourceSwipe:
		return "Card swipe at " + rec.Location
	case domain.SourceWiFi:
		return "WiFi connection at " + rec.Location
	case domain.SourceLabBooking:
		return "Lab booking at " + rec.Location
	case domain.SourceLibrary:
		return "Library checkout at " + rec.Location
	case domain.SourceCCTV:
		return "Camera detection at " + rec.Location
	case domain.SourceNote:
		return "Note recorded: " + rec.Text
	default:
		return fmt.Sprintf("%s activity at %s", rec.Source, rec.Location)
	}
}
