// Package alertstore persists analyst workflow status for inactivity alerts.
package alertstore

import (
	"fmt"

	"github.com/campusguard/argus/internal/domain"
)

// New creates an alert store based on configuration.
// For Community tier: returns an in-process LRU store.
// For Pro tier: returns a Redis store shared across replicas.
func New(cfg domain.AlertStoreConfig) (domain.AlertStore, error) {
	switch cfg.Type {
	case "memory", "":
		return NewMemoryStore(cfg.LocalMaxSize, cfg.TTL), nil

	case "redis":
		return NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.TTL)

	default:
		return nil, fmt.Errorf("unsupported alert store type: %s", cfg.Type)
	}
}
