package services

// Ingredients that are never proposed for purchase, whatever the pantry says.
// Keys are normalized (NormalizeIngredient output).
var skipIngredients = map[string]struct{}{
	"water":         {},
	"tap water":     {},
	"cold water":    {},
	"hot water":     {},
	"warm water":    {},
	"boiling water": {},
	"ice":           {},
	"ice water":     {},
	"ice cube":      {},
	"salt and pepper to taste": {},
}

// AlwaysSkip reports whether a normalized key must be excluded from purchase
// proposals unconditionally. Skipped ingredients are still surfaced to the
// caller with the always_skip flag, never silently dropped.
func AlwaysSkip(normalizedKey string) bool {
	_, ok := skipIngredients[normalizedKey]
	return ok
}
