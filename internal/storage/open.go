// Package storage is the durable user → topic subscription mapping.
//
// The one semantic callers rely on: ReplaceTopics swaps a user's whole
// subscription set in a single transaction, so a concurrent reader sees
// either the old set or the new set, never a partial one.
package storage

import (
	"context"
	"errors"
	"strings"

	logx "kulisml/pkg/logx"
)

// Store is the persistence API used by the selection and digest services.
type Store interface {
	// UpsertUser creates the user on first contact and refreshes display
	// fields afterwards.
	UpsertUser(ctx context.Context, u User) error
	// GetTopics returns the user's subscribed topic ids (unordered set).
	GetTopics(ctx context.Context, userID int64) ([]string, error)
	// ReplaceTopics atomically replaces the user's entire subscription set.
	// An empty set clears all subscriptions.
	ReplaceTopics(ctx context.Context, userID int64, topicIDs []string) error
	// ListSubscribedUserIDs returns users with at least one subscription,
	// in a stable order.
	ListSubscribedUserIDs(ctx context.Context) ([]int64, error)
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "memory", "mem":
		return NewMemory(), nil
	default:
		return nil, errors.New("unknown storage driver: " + cfg.Driver)
	}
}
