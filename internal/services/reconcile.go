package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hearthware/homeboard/internal/logger"
	"github.com/hearthware/homeboard/internal/models"
)

// RecipeStore loads recipes with their ingredient sets
type RecipeStore interface {
	// RecipesWithIngredients returns the owner's recipes for the given ids,
	// in request order, omitting unknown or unowned ids
	RecipesWithIngredients(ctx context.Context, ownerID int, ids []int) ([]*models.Recipe, error)
}

// PantryStore reads a user's pantry inventory. The engine never writes it.
type PantryStore interface {
	PantryRecords(ctx context.Context, ownerID int) ([]*models.PantryRecord, error)
}

// ListStore applies reconciliation plans against the list storage. CommitRun
// and UndoRun must each execute as one serialized-per-owner transaction so two
// concurrent runs cannot observe the same pre-merge state.
type ListStore interface {
	// UncheckedKeys returns, per destination label, the normalized keys of
	// live unchecked items
	UncheckedKeys(ctx context.Context, ownerID int) (map[string]map[string]struct{}, error)
	// CommitRun creates/merges items for every plan group and records exactly
	// one AddEvent, atomically
	CommitRun(ctx context.Context, ownerID int, plan *models.ReconcilePlan) (*models.AddToListResult, error)
	// UndoRun reverses an event's entries, returning the entries that could
	// not be reversed. Returns ErrNotFound for a missing or already-undone
	// event.
	UndoRun(ctx context.Context, ownerID, eventID int) ([]models.UndoFailure, error)
}

// Reconciler expands recipes into required ingredients, decides what to buy,
// and commits the result as one reversible event.
type Reconciler struct {
	recipes RecipeStore
	pantry  PantryStore
	matcher *PantryMatcher
	router  *StoreRouter
	lists   ListStore
}

// NewReconciler wires the reconciliation engine
func NewReconciler(recipes RecipeStore, pantry PantryStore, matcher *PantryMatcher, router *StoreRouter, lists ListStore) *Reconciler {
	return &Reconciler{
		recipes: recipes,
		pantry:  pantry,
		matcher: matcher,
		router:  router,
		lists:   lists,
	}
}

// keyDecision is the per-normalized-key purchase decision for one run
type keyDecision struct {
	addToList  bool
	alwaysSkip bool
	store      string
}

// CheckPantry previews per-ingredient proposals for a set of recipes without
// mutating anything.
func (r *Reconciler) CheckPantry(ctx context.Context, ownerID int, recipeIDs []int) ([]models.IngredientProposal, error) {
	recipes, err := r.loadRecipes(ctx, ownerID, recipeIDs)
	if err != nil {
		return nil, err
	}
	records, err := r.pantry.PantryRecords(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load pantry: %w", err)
	}

	var proposals []models.IngredientProposal
	for _, recipe := range recipes {
		for _, ing := range recipe.Ingredients {
			key := NormalizeIngredient(ing.Name)
			proposals = append(proposals, r.propose(ing, key, records))
		}
	}
	return proposals, nil
}

// propose builds the proposal for one ingredient occurrence
func (r *Reconciler) propose(ing models.RecipeIngredient, key string, records []*models.PantryRecord) models.IngredientProposal {
	p := models.IngredientProposal{
		Name:      ing.Name,
		Quantity:  ing.Quantity,
		AddToList: true,
	}
	match := r.matcher.Match(key, records)
	p.Confidence = match.Confidence
	if match.Record != nil {
		p.PantryMatch = &models.PantryMatch{
			ID:     match.Record.ID,
			Name:   match.Record.Name,
			Status: match.Record.Status,
		}
		// "have" means no purchase needed; low/out still default to buy
		if match.Record.Status == models.PantryStatusHave {
			p.AddToList = false
		}
	}
	if AlwaysSkip(key) {
		p.AlwaysSkip = true
		p.AddToList = false
	}
	return p
}

// AddToList runs the committing reconciliation: expand, decide, merge, route,
// and commit with a single undo event.
func (r *Reconciler) AddToList(ctx context.Context, ownerID int, recipeIDs []int, overrides []models.IngredientOverride) (*models.AddToListResult, error) {
	recipes, err := r.loadRecipes(ctx, ownerID, recipeIDs)
	if err != nil {
		return nil, err
	}
	records, err := r.pantry.PantryRecords(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load pantry: %w", err)
	}
	defaults, err := r.router.store.Defaults(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load store defaults: %w", err)
	}

	overrideByKey := make(map[string]models.IngredientOverride, len(overrides))
	for _, o := range overrides {
		overrideByKey[NormalizeIngredient(o.Name)] = o
	}

	// Group occurrences by normalized key so each distinct ingredient gets
	// exactly one decision per run, however many recipes mention it
	type keyGroup struct {
		first      models.RecipeIngredient
		recipePref *string
	}
	groupsByKey := make(map[string]*keyGroup)
	keyOrder := make([]string, 0)
	type occurrence struct {
		ing models.RecipeIngredient
		src models.RecipeSource
		key string
	}
	var occurrences []occurrence

	for _, recipe := range recipes {
		src := models.RecipeSource{
			RecipeID:   recipe.ID,
			RecipeName: recipe.Name,
			LabelColor: recipe.LabelColor,
		}
		for _, ing := range recipe.Ingredients {
			key := NormalizeIngredient(ing.Name)
			occurrences = append(occurrences, occurrence{ing: ing, src: src, key: key})
			g, ok := groupsByKey[key]
			if !ok {
				g = &keyGroup{first: ing}
				groupsByKey[key] = g
				keyOrder = append(keyOrder, key)
			}
			if g.recipePref == nil && ing.StorePreference != nil {
				g.recipePref = ing.StorePreference
			}
		}
	}

	// Decide per key. Store overrides are learned only after the run
	// commits, so a failed run leaves no side effects.
	type learnedDefault struct {
		key   string
		store string
	}
	var learned []learnedDefault
	decisions := make(map[string]keyDecision, len(groupsByKey))
	skipped := 0
	for _, key := range keyOrder {
		g := groupsByKey[key]
		d := keyDecision{addToList: true}

		match := r.matcher.Match(key, records)
		if match.Record != nil && match.Record.Status == models.PantryStatusHave {
			d.addToList = false
		}
		if AlwaysSkip(key) {
			d.alwaysSkip = true
			d.addToList = false
		}

		d.store = r.router.Route(key, g.recipePref, defaults)

		// Caller override always wins, both directions
		if o, ok := overrideByKey[key]; ok {
			d.addToList = o.AddToList
			if o.Store != nil && *o.Store != "" {
				d.store = *o.Store
				learned = append(learned, learnedDefault{key: key, store: *o.Store})
			}
		}

		if !d.addToList {
			skipped++
		}
		decisions[key] = d
	}

	// Merge surviving occurrences into per-destination groups
	var reqs []PurchaseRequest
	for _, occ := range occurrences {
		d := decisions[occ.key]
		if !d.addToList {
			continue
		}
		reqs = append(reqs, PurchaseRequest{
			Name:          occ.ing.Name,
			NormalizedKey: occ.key,
			Quantity:      occ.ing.Quantity,
			Description:   occ.ing.Description,
			Store:         d.store,
			Source:        occ.src,
		})
	}

	// Flag groups that will merge into a live unchecked item. CommitRun
	// re-resolves targets inside its transaction; this is the preview view.
	existing, err := r.lists.UncheckedKeys(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load existing list keys: %w", err)
	}

	plan := &models.ReconcilePlan{
		Groups:       MergeRequests(reqs, existing),
		SkippedCount: skipped,
	}

	result, err := r.lists.CommitRun(ctx, ownerID, plan)
	if err != nil {
		return nil, err
	}

	// The overrides become defaults for future runs. The run itself is
	// already committed, so a write failure here only loses the learning.
	for _, l := range learned {
		if err := r.router.Observe(ctx, ownerID, l.key, l.store); err != nil {
			logger.L().Warn("persist store override failed",
				zap.String("ingredient", l.key),
				zap.Error(err),
			)
		}
	}

	logger.L().Info("reconciliation run committed",
		zap.Int("owner_id", ownerID),
		zap.Int("event_id", result.EventID),
		zap.Int("grocery_added", result.GroceryItemsAdded),
		zap.Int("specialty_added", result.SpecialtyItemsAdded),
		zap.Int("merged", result.ItemsMerged),
		zap.Int("skipped", result.ItemsSkipped),
	)
	return result, nil
}

// UndoAddToList reverses one reconciliation run. Reversible entries are
// reversed even when a later entry fails; the returned UndoConflictError then
// names exactly which entries did not reverse.
func (r *Reconciler) UndoAddToList(ctx context.Context, ownerID, eventID int) error {
	failures, err := r.lists.UndoRun(ctx, ownerID, eventID)
	if err != nil {
		return err
	}
	if len(failures) > 0 {
		return &UndoConflictError{EventID: eventID, Failures: failures}
	}
	logger.L().Info("reconciliation run undone",
		zap.Int("owner_id", ownerID),
		zap.Int("event_id", eventID),
	)
	return nil
}

// loadRecipes expands recipe ids, failing with ErrNotFound when any id is
// unknown or not owned by the caller
func (r *Reconciler) loadRecipes(ctx context.Context, ownerID int, recipeIDs []int) ([]*models.Recipe, error) {
	if len(recipeIDs) == 0 {
		return nil, fmt.Errorf("no recipes requested: %w", ErrValidation)
	}
	recipes, err := r.recipes.RecipesWithIngredients(ctx, ownerID, recipeIDs)
	if err != nil {
		return nil, fmt.Errorf("load recipes: %w", err)
	}
	if len(recipes) != len(recipeIDs) {
		found := make(map[int]struct{}, len(recipes))
		for _, rec := range recipes {
			found[rec.ID] = struct{}{}
		}
		for _, id := range recipeIDs {
			if _, ok := found[id]; !ok {
				return nil, fmt.Errorf("recipe %d: %w", id, ErrNotFound)
			}
		}
	}
	return recipes, nil
}
