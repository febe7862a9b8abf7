package services

import (
	"sort"

	"github.com/hearthware/homeboard/internal/models"
)

// PurchaseRequest is one ingredient that survived skip rules, pantry matching
// and overrides, bound to its destination store and contributing recipe.
type PurchaseRequest struct {
	Name          string
	NormalizedKey string
	Quantity      *string
	Description   *string
	Store         string
	Source        models.RecipeSource
}

// MergeRequests deduplicates purchase requests across recipes by
// (store, normalized key). Merge is key-exact; fuzzy matching is reserved for
// pantry comparison so distinct items are never silently conflated.
// existingKeys holds, per store label, the normalized keys of items already
// unchecked on that destination; groups matching one are flagged.
// Output order is deterministic: by store label, then key.
func MergeRequests(reqs []PurchaseRequest, existingKeys map[string]map[string]struct{}) []models.PlanGroup {
	type groupKey struct {
		store string
		key   string
	}

	groups := make(map[groupKey]*models.PlanGroup)
	order := make([]groupKey, 0, len(reqs))

	for _, req := range reqs {
		gk := groupKey{store: req.Store, key: req.NormalizedKey}
		g, ok := groups[gk]
		if !ok {
			g = &models.PlanGroup{
				Name:          req.Name,
				NormalizedKey: req.NormalizedKey,
				Quantity:      req.Quantity,
				Description:   req.Description,
				Store:         req.Store,
			}
			if keys, ok := existingKeys[req.Store]; ok {
				_, g.MatchesExisting = keys[req.NormalizedKey]
			}
			groups[gk] = g
			order = append(order, gk)
		} else {
			g.Quantity = CombineQuantities(g.Quantity, req.Quantity)
			if g.Description == nil {
				g.Description = req.Description
			}
		}
		g.Sources = appendSource(g.Sources, req.Source)
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].store != order[j].store {
			return order[i].store < order[j].store
		}
		return order[i].key < order[j].key
	})

	out := make([]models.PlanGroup, 0, len(order))
	for _, gk := range order {
		out = append(out, *groups[gk])
	}
	return out
}

// CombineQuantities concatenates opaque quantity strings ("2 cups" + "1 cup")
func CombineQuantities(existing, added *string) *string {
	if added == nil || *added == "" {
		return existing
	}
	if existing == nil || *existing == "" {
		return added
	}
	combined := *existing + " + " + *added
	return &combined
}

// appendSource unions provenance by recipe id
func appendSource(sources []models.RecipeSource, src models.RecipeSource) []models.RecipeSource {
	for _, s := range sources {
		if s.RecipeID == src.RecipeID {
			return sources
		}
	}
	return append(sources, src)
}

// UnionSources merges two provenance lists, deduplicating by recipe id and
// preserving the order of first appearance
func UnionSources(existing, added []models.RecipeSource) []models.RecipeSource {
	out := make([]models.RecipeSource, 0, len(existing)+len(added))
	out = append(out, existing...)
	for _, src := range added {
		out = appendSource(out, src)
	}
	return out
}
