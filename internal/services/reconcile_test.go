package services

import (
	"context"
	"errors"
	"testing"

	"github.com/hearthware/homeboard/internal/models"
)

type fakeRecipeStore struct {
	recipes map[int]*models.Recipe
}

func (f *fakeRecipeStore) RecipesWithIngredients(ctx context.Context, ownerID int, ids []int) ([]*models.Recipe, error) {
	var out []*models.Recipe
	for _, id := range ids {
		if r, ok := f.recipes[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakePantryStore struct {
	records []*models.PantryRecord
}

func (f *fakePantryStore) PantryRecords(ctx context.Context, ownerID int) ([]*models.PantryRecord, error) {
	return f.records, nil
}

type fakeListStore struct {
	unchecked    map[string]map[string]struct{}
	committed    []*models.ReconcilePlan
	result       *models.AddToListResult
	commitErr    error
	undoFailures []models.UndoFailure
	undoErr      error
}

func (f *fakeListStore) UncheckedKeys(ctx context.Context, ownerID int) (map[string]map[string]struct{}, error) {
	return f.unchecked, nil
}

func (f *fakeListStore) CommitRun(ctx context.Context, ownerID int, plan *models.ReconcilePlan) (*models.AddToListResult, error) {
	if f.commitErr != nil {
		return nil, f.commitErr
	}
	f.committed = append(f.committed, plan)
	if f.result != nil {
		return f.result, nil
	}
	res := &models.AddToListResult{EventID: 1, ItemsSkipped: plan.SkippedCount}
	for _, g := range plan.Groups {
		if g.Store == DefaultStoreLabel {
			res.GroceryItemsAdded++
		} else {
			res.SpecialtyItemsAdded++
		}
	}
	return res, nil
}

func (f *fakeListStore) UndoRun(ctx context.Context, ownerID, eventID int) ([]models.UndoFailure, error) {
	return f.undoFailures, f.undoErr
}

func ingredient(name string, qty string) models.RecipeIngredient {
	return models.RecipeIngredient{Name: name, Quantity: strp(qty)}
}

func testReconciler(recipes map[int]*models.Recipe, pantryNames map[string]models.PantryStatus, lists ListStore, defaults *fakeDefaultsStore) *Reconciler {
	var records []*models.PantryRecord
	id := 1
	for name, status := range pantryNames {
		records = append(records, &models.PantryRecord{
			ID:             id,
			Name:           name,
			NormalizedName: NormalizeIngredient(name),
			Status:         status,
		})
		id++
	}
	if defaults == nil {
		defaults = &fakeDefaultsStore{}
	}
	return NewReconciler(
		&fakeRecipeStore{recipes: recipes},
		&fakePantryStore{records: records},
		NewPantryMatcher(),
		NewStoreRouter(defaults),
		lists,
	)
}

func twoRecipes() map[int]*models.Recipe {
	return map[int]*models.Recipe{
		1: {ID: 1, Name: "Pancakes", Ingredients: []models.RecipeIngredient{
			ingredient("2 cups flour", "2 cups"),
			ingredient("1 cup milk", "1 cup"),
		}},
		2: {ID: 2, Name: "Bread", Ingredients: []models.RecipeIngredient{
			ingredient("3 cups flour", "3 cups"),
			ingredient("1 cup water", "1 cup"),
			ingredient("yeast", "1 packet"),
		}},
	}
}

func TestCheckPantryProposals(t *testing.T) {
	lists := &fakeListStore{}
	r := testReconciler(twoRecipes(), map[string]models.PantryStatus{
		"Flour": models.PantryStatusHave,
		"Milk":  models.PantryStatusOut,
	}, lists, nil)

	proposals, err := r.CheckPantry(context.Background(), 1, []int{1, 2})
	if err != nil {
		t.Fatalf("CheckPantry: %v", err)
	}
	if len(proposals) != 5 {
		t.Fatalf("got %d proposals, want 5", len(proposals))
	}

	byName := make(map[string]models.IngredientProposal)
	for _, p := range proposals {
		byName[p.Name] = p
	}

	flour := byName["2 cups flour"]
	if flour.AddToList || flour.PantryMatch == nil || flour.Confidence != 1.0 {
		t.Errorf("pantry-have flour should not be proposed: %+v", flour)
	}
	milk := byName["1 cup milk"]
	if !milk.AddToList || milk.PantryMatch == nil {
		t.Errorf("pantry-out milk should still be proposed: %+v", milk)
	}
	water := byName["1 cup water"]
	if water.AddToList || !water.AlwaysSkip {
		t.Errorf("water should be always-skip: %+v", water)
	}
	yeast := byName["yeast"]
	if !yeast.AddToList || yeast.PantryMatch != nil {
		t.Errorf("unmatched yeast should default to buy: %+v", yeast)
	}
}

func TestAddToListSkipsPerKey(t *testing.T) {
	lists := &fakeListStore{}
	r := testReconciler(twoRecipes(), map[string]models.PantryStatus{
		"Flour": models.PantryStatusHave,
	}, lists, nil)

	res, err := r.AddToList(context.Background(), 1, []int{1, 2}, nil)
	if err != nil {
		t.Fatalf("AddToList: %v", err)
	}

	// flour (have) and water (always skip) are each one skipped decision,
	// however many recipes mention them
	if res.ItemsSkipped != 2 {
		t.Errorf("ItemsSkipped = %d, want 2", res.ItemsSkipped)
	}

	if len(lists.committed) != 1 {
		t.Fatalf("CommitRun called %d times, want 1", len(lists.committed))
	}
	plan := lists.committed[0]
	keys := make([]string, 0, len(plan.Groups))
	for _, g := range plan.Groups {
		keys = append(keys, g.NormalizedKey)
		if g.Store != DefaultStoreLabel {
			t.Errorf("group %q routed to %q, want %q", g.NormalizedKey, g.Store, DefaultStoreLabel)
		}
	}
	if len(keys) != 2 || keys[0] != "milk" || keys[1] != "yeast" {
		t.Errorf("plan keys = %v, want [milk yeast]", keys)
	}
}

func TestAddToListMergesSharedIngredient(t *testing.T) {
	lists := &fakeListStore{}
	r := testReconciler(twoRecipes(), nil, lists, nil)

	if _, err := r.AddToList(context.Background(), 1, []int{1, 2}, nil); err != nil {
		t.Fatalf("AddToList: %v", err)
	}

	plan := lists.committed[0]
	var flour *models.PlanGroup
	for i := range plan.Groups {
		if plan.Groups[i].NormalizedKey == "flour" {
			flour = &plan.Groups[i]
		}
	}
	if flour == nil {
		t.Fatalf("no flour group in plan: %+v", plan.Groups)
	}
	if flour.Quantity == nil || *flour.Quantity != "2 cups + 3 cups" {
		t.Errorf("flour quantity = %v, want combined", flour.Quantity)
	}
	if len(flour.Sources) != 2 {
		t.Errorf("flour sources = %+v, want both recipes", flour.Sources)
	}
}

func TestAddToListOverrideWins(t *testing.T) {
	lists := &fakeListStore{}
	defaults := &fakeDefaultsStore{}
	r := testReconciler(twoRecipes(), map[string]models.PantryStatus{
		"Flour": models.PantryStatusHave,
	}, lists, defaults)

	costco := "Costco"
	overrides := []models.IngredientOverride{
		{Name: "flour", AddToList: true, Store: &costco}, // force despite pantry
		{Name: "milk", AddToList: false},                 // suppress despite no match
	}
	res, err := r.AddToList(context.Background(), 1, []int{1, 2}, overrides)
	if err != nil {
		t.Fatalf("AddToList: %v", err)
	}

	// water and milk skipped, flour forced back in
	if res.ItemsSkipped != 2 {
		t.Errorf("ItemsSkipped = %d, want 2", res.ItemsSkipped)
	}

	plan := lists.committed[0]
	byKey := make(map[string]models.PlanGroup)
	for _, g := range plan.Groups {
		byKey[g.NormalizedKey] = g
	}
	if _, ok := byKey["milk"]; ok {
		t.Error("suppressed milk still in plan")
	}
	flour, ok := byKey["flour"]
	if !ok {
		t.Fatal("forced flour missing from plan")
	}
	if flour.Store != "Costco" {
		t.Errorf("flour store = %q, want Costco", flour.Store)
	}
	// The store override must be learned for future runs
	if defaults.defaults["flour"] != "Costco" {
		t.Errorf("override not persisted: %v", defaults.defaults)
	}
}

func TestAddToListOverrideBeatsSkipList(t *testing.T) {
	lists := &fakeListStore{}
	r := testReconciler(twoRecipes(), nil, lists, nil)

	overrides := []models.IngredientOverride{
		{Name: "water", AddToList: true},
	}
	res, err := r.AddToList(context.Background(), 1, []int{2}, overrides)
	if err != nil {
		t.Fatalf("AddToList: %v", err)
	}
	if res.ItemsSkipped != 0 {
		t.Errorf("ItemsSkipped = %d, want 0", res.ItemsSkipped)
	}
	found := false
	for _, g := range lists.committed[0].Groups {
		if g.NormalizedKey == "water" {
			found = true
		}
	}
	if !found {
		t.Error("forced skip-list ingredient missing from plan")
	}
}

func TestAddToListRecipeStorePreference(t *testing.T) {
	asian := "Asian Market"
	recipes := map[int]*models.Recipe{
		1: {ID: 1, Name: "Stir Fry", Ingredients: []models.RecipeIngredient{
			{Name: "soy sauce", Quantity: strp("2 tbsp"), StorePreference: &asian},
			ingredient("rice", "1 cup"),
		}},
	}
	lists := &fakeListStore{}
	r := testReconciler(recipes, nil, lists, nil)

	if _, err := r.AddToList(context.Background(), 1, []int{1}, nil); err != nil {
		t.Fatalf("AddToList: %v", err)
	}

	plan := lists.committed[0]
	stores := make(map[string]string)
	for _, g := range plan.Groups {
		stores[g.NormalizedKey] = g.Store
	}
	if stores["soy sauce"] != "Asian Market" {
		t.Errorf("soy sauce store = %q, want Asian Market", stores["soy sauce"])
	}
	if stores["rice"] != DefaultStoreLabel {
		t.Errorf("rice store = %q, want %q", stores["rice"], DefaultStoreLabel)
	}
}

func TestAddToListFlagsExistingItems(t *testing.T) {
	lists := &fakeListStore{
		unchecked: map[string]map[string]struct{}{
			DefaultStoreLabel: {"milk": {}},
		},
	}
	r := testReconciler(twoRecipes(), nil, lists, nil)

	if _, err := r.AddToList(context.Background(), 1, []int{1}, nil); err != nil {
		t.Fatalf("AddToList: %v", err)
	}
	for _, g := range lists.committed[0].Groups {
		want := g.NormalizedKey == "milk"
		if g.MatchesExisting != want {
			t.Errorf("group %q MatchesExisting = %v, want %v", g.NormalizedKey, g.MatchesExisting, want)
		}
	}
}

func TestLoadRecipesValidation(t *testing.T) {
	r := testReconciler(twoRecipes(), nil, &fakeListStore{}, nil)

	_, err := r.CheckPantry(context.Background(), 1, nil)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("empty recipe ids: got %v, want ErrValidation", err)
	}

	_, err = r.CheckPantry(context.Background(), 1, []int{1, 99})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown recipe id: got %v, want ErrNotFound", err)
	}
}

func TestUndoAddToListConflict(t *testing.T) {
	lists := &fakeListStore{
		undoFailures: []models.UndoFailure{
			{EventItemID: 10, ItemID: 3, ItemName: "Milk", Reason: "item already checked off"},
		},
	}
	r := testReconciler(nil, nil, lists, nil)

	err := r.UndoAddToList(context.Background(), 1, 42)
	if err == nil {
		t.Fatal("expected conflict error")
	}
	var conflict *UndoConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("got %T, want *UndoConflictError", err)
	}
	if conflict.EventID != 42 || len(conflict.Failures) != 1 {
		t.Errorf("conflict = %+v", conflict)
	}
	if !errors.Is(err, ErrConflict) {
		t.Error("UndoConflictError should unwrap to ErrConflict")
	}
}

func TestAddToListFailedCommitLearnsNothing(t *testing.T) {
	lists := &fakeListStore{commitErr: errors.New("storage unavailable")}
	defaults := &fakeDefaultsStore{}
	r := testReconciler(twoRecipes(), nil, lists, defaults)

	costco := "Costco"
	overrides := []models.IngredientOverride{
		{Name: "flour", AddToList: true, Store: &costco},
	}
	if _, err := r.AddToList(context.Background(), 1, []int{1}, overrides); err == nil {
		t.Fatal("expected commit failure")
	}
	// A run that never committed must not teach the routing table
	if len(defaults.upserts) != 0 {
		t.Errorf("failed run persisted defaults: %v", defaults.upserts)
	}
}

func TestUndoAddToListClean(t *testing.T) {
	lists := &fakeListStore{}
	r := testReconciler(nil, nil, lists, nil)
	if err := r.UndoAddToList(context.Background(), 1, 42); err != nil {
		t.Fatalf("UndoAddToList: %v", err)
	}
}
