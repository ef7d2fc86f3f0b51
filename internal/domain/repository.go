// Package domain defines the core interfaces and types for Argus.
package domain

import (
	"context"
	"time"
)

// Store defines read access to profiles and per-source activity logs.
// Every read is a weakly consistent fetch; implementations return
// ErrNotFound for a missing profile and wrap I/O failures.
type Store interface {
	// Profile operations
	GetProfile(ctx context.Context, entityID string) (*Profile, error)
	ListProfiles(ctx context.Context, limit, offset int) ([]*Profile, error)
	AllProfiles(ctx context.Context) ([]*Profile, error)
	SearchProfiles(ctx context.Context, field SearchField, pattern string, limit int) ([]*Profile, error)
	FindProfileBy(ctx context.Context, field IdentifierField, value string) (*Profile, error)
	SaveProfile(ctx context.Context, p *Profile) error

	// Activity operations
	ActivityFor(ctx context.Context, source Source, entityID string, since time.Time) ([]*ActivityRecord, error)
	ActivityByIdentifier(ctx context.Context, source Source, identifier string, limit int) ([]*ActivityRecord, error)
	CountActivity(ctx context.Context, source Source, entityID string, since time.Time) (int64, error)
	LastSeenByEntity(ctx context.Context, source Source, entityIDs []string, since time.Time) (map[string]time.Time, error)
	SaveActivity(ctx context.Context, rec *ActivityRecord) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// QueryTimeout bounds every store call; zero means no bound.
	QueryTimeout time.Duration
}
