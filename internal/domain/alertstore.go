package domain

import (
	"context"
	"time"
)

// AlertStore persists analyst workflow status for alerts, keyed by entity.
// It never holds activity data. Writes are last-write-wins upserts.
type AlertStore interface {
	// GetStatus returns the stored record, or nil, nil if none exists.
	GetStatus(ctx context.Context, entityID string) (*AlertStatusRecord, error)

	// GetStatuses returns the stored records for the given entities.
	// Entities without a record are absent from the map.
	GetStatuses(ctx context.Context, entityIDs []string) (map[string]*AlertStatusRecord, error)

	// SetStatus upserts the workflow status for an entity.
	SetStatus(ctx context.Context, rec *AlertStatusRecord) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// AlertStoreConfig holds configuration for alert store initialization.
type AlertStoreConfig struct {
	// Type is the store type: "memory" or "redis"
	Type string

	// In-memory settings (Community tier)
	LocalMaxSize int

	// Redis settings (Pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// TTL expires workflow records; zero keeps them indefinitely.
	TTL time.Duration
}
