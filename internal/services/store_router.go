package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/hearthware/homeboard/internal/logger"
)

// DefaultStoreLabel is the destination used when nothing routes an
// ingredient elsewhere
const DefaultStoreLabel = "Grocery"

// StoreDefaultStore persists the learned ingredient-to-store table
type StoreDefaultStore interface {
	// Defaults returns the owner's table as normalized key -> store label
	Defaults(ctx context.Context, ownerID int) (map[string]string, error)
	// Upsert writes one learned preference, last write wins
	Upsert(ctx context.Context, ownerID int, normalizedName, store string) error
}

// StoreRouter resolves the destination list label for an ingredient. Lookup is
// exact-key only: routing must be precise, unlike pantry matching which
// tolerates approximation.
type StoreRouter struct {
	store StoreDefaultStore
}

// NewStoreRouter creates a router over a learned-defaults store
func NewStoreRouter(store StoreDefaultStore) *StoreRouter {
	return &StoreRouter{store: store}
}

// Route picks the destination label for a normalized key. Priority:
// recipe-level preference, then the learned table, then the default list.
// Per-call overrides are applied by the orchestrator before routing.
func (r *StoreRouter) Route(normalizedKey string, recipePreference *string, defaults map[string]string) string {
	if recipePreference != nil && *recipePreference != "" {
		return *recipePreference
	}
	if store, ok := defaults[normalizedKey]; ok && store != "" {
		return store
	}
	return DefaultStoreLabel
}

// Observe persists a caller override so future runs route the same way.
// This is the single place the routing table learns from.
func (r *StoreRouter) Observe(ctx context.Context, ownerID int, normalizedKey, store string) error {
	if err := r.store.Upsert(ctx, ownerID, normalizedKey, store); err != nil {
		return err
	}
	logger.L().Debug("learned store default",
		zap.Int("owner_id", ownerID),
		zap.String("ingredient", normalizedKey),
		zap.String("store", store),
	)
	return nil
}
