package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hearthware/homeboard/internal/models"
)

type fakeImportRepo struct {
	mu           sync.Mutex
	jobs         map[uuid.UUID]*models.ImportJob
	recipes      []*models.CreateRecipeRequest
	nextRecipeID int
}

func newFakeImportRepo() *fakeImportRepo {
	return &fakeImportRepo{jobs: make(map[uuid.UUID]*models.ImportJob)}
}

func (f *fakeImportRepo) CreateImportJob(ctx context.Context, job *models.ImportJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *job
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now()
	}
	f.jobs[job.ID] = &cp
	return nil
}

func (f *fakeImportRepo) GetImportJob(ctx context.Context, ownerID int, id uuid.UUID) (*models.ImportJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok || job.UserID != ownerID {
		return nil, fmt.Errorf("import job not found: %w", ErrNotFound)
	}
	cp := *job
	return &cp, nil
}

func (f *fakeImportRepo) GetImportJobByID(ctx context.Context, id uuid.UUID) (*models.ImportJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, fmt.Errorf("import job not found: %w", ErrNotFound)
	}
	cp := *job
	return &cp, nil
}

func (f *fakeImportRepo) MarkImportProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok || job.Status.Terminal() {
		return false, nil
	}
	job.Status = models.ImportStatusProcessing
	job.UpdatedAt = time.Now()
	return true, nil
}

func (f *fakeImportRepo) CompleteImportJob(ctx context.Context, id uuid.UUID, recipe *models.ParsedRecipe, meta *models.ParseMeta) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok || job.Status.Terminal() {
		return false, nil
	}
	job.Status = models.ImportStatusCompleted
	job.ParsedRecipe = recipe
	job.ParseMeta = meta
	return true, nil
}

func (f *fakeImportRepo) FailImportJob(ctx context.Context, id uuid.UUID, message string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok || job.Status.Terminal() {
		return false, nil
	}
	job.Status = models.ImportStatusFailed
	job.ErrorMessage = &message
	return true, nil
}

func (f *fakeImportRepo) DeleteImportJob(ctx context.Context, ownerID int, id uuid.UUID) (*models.ImportJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok || job.UserID != ownerID {
		return nil, nil
	}
	delete(f.jobs, id)
	return job, nil
}

func (f *fakeImportRepo) PendingImportJobIDs(ctx context.Context) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []uuid.UUID
	for id, job := range f.jobs {
		if job.Status == models.ImportStatusPending {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeImportRepo) StaleProcessingImportJobIDs(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []uuid.UUID
	for id, job := range f.jobs {
		if job.Status == models.ImportStatusProcessing && job.UpdatedAt.Before(cutoff) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeImportRepo) CreateRecipeFromImport(ctx context.Context, ownerID int, jobID uuid.UUID, req *models.CreateRecipeRequest) (*models.Recipe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok || job.UserID != ownerID {
		return nil, fmt.Errorf("import job not found: %w", ErrNotFound)
	}
	if job.Status != models.ImportStatusCompleted {
		return nil, fmt.Errorf("import not completed: %w", ErrConflict)
	}
	delete(f.jobs, jobID)
	f.nextRecipeID++
	f.recipes = append(f.recipes, req)
	return &models.Recipe{ID: f.nextRecipeID, UserID: ownerID, Name: req.Name}, nil
}

func (f *fakeImportRepo) job(id uuid.UUID) *models.ImportJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil
	}
	cp := *job
	return &cp
}

// fakeParser serves a fixed sequence of snapshots; the last one repeats
type fakeParser struct {
	mu        sync.Mutex
	snapshots []*ParserSnapshot
	submits   int
	submitErr error
}

func (f *fakeParser) Submit(ctx context.Context, rawText string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return "remote-1", nil
}

func (f *fakeParser) Fetch(ctx context.Context, remoteID string) (*ParserSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.snapshots) == 0 {
		return &ParserSnapshot{}, nil
	}
	snap := f.snapshots[0]
	if len(f.snapshots) > 1 {
		f.snapshots = f.snapshots[1:]
	}
	return snap, nil
}

func parsedStirFry() *models.ParsedRecipe {
	servings := 4
	return &models.ParsedRecipe{
		Name:     "Weeknight Stir Fry",
		Servings: &servings,
		Ingredients: []models.ParsedIngredient{
			{Name: "soy sauce", Quantity: strp("2 tbsp")},
			{Name: "rice", Quantity: strp("1 cup")},
		},
	}
}

func doneSnapshot() *ParserSnapshot {
	return &ParserSnapshot{
		Done:   true,
		Recipe: parsedStirFry(),
		Meta: &models.ParseMeta{
			Kind:      models.ParseKindHeuristic,
			Heuristic: &models.HeuristicMeta{LineCount: 8, MatchedLines: 6, Confidence: 0.75},
		},
	}
}

func testImportService(repo *fakeImportRepo, parser ParserClient) (*ImportService, *MemoryPointerStore) {
	pointers := NewMemoryPointerStore()
	svc := NewImportService(repo, pointers, parser, nil, ImportConfig{
		Workers:      1,
		QueueSize:    8,
		PollInterval: time.Millisecond,
		PollTimeout:  200 * time.Millisecond,
	})
	return svc, pointers
}

func TestImportCreateValidation(t *testing.T) {
	svc, _ := testImportService(newFakeImportRepo(), &fakeParser{})
	_, err := svc.Create(context.Background(), 1, "   \n\t")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("blank text: got %v, want ErrValidation", err)
	}
}

func TestImportCreateSetsPointer(t *testing.T) {
	repo := newFakeImportRepo()
	svc, pointers := testImportService(repo, &fakeParser{})

	job, err := svc.Create(context.Background(), 1, "Pancakes\n2 cups flour\n1 cup milk")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if job.Status != models.ImportStatusPending {
		t.Errorf("status = %q, want pending", job.Status)
	}
	if repo.job(job.ID) == nil {
		t.Error("job not persisted")
	}
	id, ok, err := pointers.Current(context.Background(), 1)
	if err != nil || !ok || id != job.ID {
		t.Errorf("pointer = (%v, %v, %v), want job id", id, ok, err)
	}
}

func TestImportProcessCompletes(t *testing.T) {
	repo := newFakeImportRepo()
	parser := &fakeParser{snapshots: []*ParserSnapshot{
		{}, // still running on first poll
		doneSnapshot(),
	}}
	svc, _ := testImportService(repo, parser)

	job, err := svc.Create(context.Background(), 1, "raw text")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	svc.process(job.ID)

	got := repo.job(job.ID)
	if got == nil || got.Status != models.ImportStatusCompleted {
		t.Fatalf("job after process = %+v, want completed", got)
	}
	if got.ParsedRecipe == nil || got.ParsedRecipe.Name != "Weeknight Stir Fry" {
		t.Errorf("parsed recipe = %+v", got.ParsedRecipe)
	}
	if got.ParseMeta == nil || got.ParseMeta.Kind != models.ParseKindHeuristic {
		t.Errorf("parse meta = %+v", got.ParseMeta)
	}
}

func TestImportProcessParserFailure(t *testing.T) {
	repo := newFakeImportRepo()
	parser := &fakeParser{snapshots: []*ParserSnapshot{
		{Failed: true, Error: "unparseable text"},
	}}
	svc, _ := testImportService(repo, parser)

	job, _ := svc.Create(context.Background(), 1, "raw text")
	svc.process(job.ID)

	got := repo.job(job.ID)
	if got == nil || got.Status != models.ImportStatusFailed {
		t.Fatalf("job = %+v, want failed", got)
	}
	if got.ErrorMessage == nil || *got.ErrorMessage != "unparseable text" {
		t.Errorf("error message = %v", got.ErrorMessage)
	}
}

func TestImportProcessTimeout(t *testing.T) {
	repo := newFakeImportRepo()
	// Parser never reaches a terminal snapshot
	svc, _ := testImportService(repo, &fakeParser{})
	svc.cfg.PollTimeout = 20 * time.Millisecond

	job, _ := svc.Create(context.Background(), 1, "raw text")
	svc.process(job.ID)

	got := repo.job(job.ID)
	if got == nil || got.Status != models.ImportStatusFailed {
		t.Fatalf("job = %+v, want failed", got)
	}
	if got.ErrorMessage == nil || !strings.Contains(*got.ErrorMessage, "timed out") {
		t.Errorf("error message = %v", got.ErrorMessage)
	}
}

func TestImportProcessRejectsUnusableRecipe(t *testing.T) {
	repo := newFakeImportRepo()
	parser := &fakeParser{snapshots: []*ParserSnapshot{
		{Done: true, Recipe: &models.ParsedRecipe{Name: "No Ingredients"}},
	}}
	svc, _ := testImportService(repo, parser)

	job, _ := svc.Create(context.Background(), 1, "raw text")
	svc.process(job.ID)

	got := repo.job(job.ID)
	if got == nil || got.Status != models.ImportStatusFailed {
		t.Fatalf("job = %+v, want failed", got)
	}
}

func TestImportProcessSkipsCancelled(t *testing.T) {
	repo := newFakeImportRepo()
	parser := &fakeParser{snapshots: []*ParserSnapshot{doneSnapshot()}}
	svc, _ := testImportService(repo, parser)

	job, _ := svc.Create(context.Background(), 1, "raw text")
	if err := svc.Cancel(context.Background(), 1, job.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	svc.process(job.ID)

	if parser.submits != 0 {
		t.Errorf("cancelled job reached the parser %d times", parser.submits)
	}
}

func TestImportConfirmBeforeCompletion(t *testing.T) {
	repo := newFakeImportRepo()
	svc, _ := testImportService(repo, &fakeParser{})

	job, _ := svc.Create(context.Background(), 1, "raw text")
	_, err := svc.Confirm(context.Background(), 1, job.ID, nil)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("confirm pending job: got %v, want ErrConflict", err)
	}
}

func TestImportConfirmCreatesRecipe(t *testing.T) {
	repo := newFakeImportRepo()
	parser := &fakeParser{snapshots: []*ParserSnapshot{doneSnapshot()}}
	svc, pointers := testImportService(repo, parser)

	job, _ := svc.Create(context.Background(), 1, "raw text")
	svc.process(job.ID)

	recipe, err := svc.Confirm(context.Background(), 1, job.ID, nil)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if recipe.Name != "Weeknight Stir Fry" {
		t.Errorf("recipe name = %q", recipe.Name)
	}
	if len(repo.recipes) != 1 || len(repo.recipes[0].Ingredients) != 2 {
		t.Errorf("created request = %+v", repo.recipes)
	}
	// Job consumed and pointer cleared
	if repo.job(job.ID) != nil {
		t.Error("confirmed job still present")
	}
	if _, ok, _ := pointers.Current(context.Background(), 1); ok {
		t.Error("pointer not cleared after confirm")
	}
}

func TestImportConfirmAppliesEdits(t *testing.T) {
	repo := newFakeImportRepo()
	parser := &fakeParser{snapshots: []*ParserSnapshot{doneSnapshot()}}
	svc, _ := testImportService(repo, parser)

	job, _ := svc.Create(context.Background(), 1, "raw text")
	svc.process(job.ID)

	name := "Family Stir Fry"
	edits := &models.ConfirmImportRequest{
		Name: &name,
		Ingredients: []models.CreateIngredientRequest{
			{Name: "tamari", Quantity: strp("2 tbsp")},
		},
	}
	recipe, err := svc.Confirm(context.Background(), 1, job.ID, edits)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if recipe.Name != "Family Stir Fry" {
		t.Errorf("edited name not applied: %q", recipe.Name)
	}
	req := repo.recipes[0]
	if len(req.Ingredients) != 1 || req.Ingredients[0].Name != "tamari" {
		t.Errorf("edited ingredients not applied: %+v", req.Ingredients)
	}
	// Parsed servings survive when the edit leaves them alone
	if req.Servings == nil || *req.Servings != 4 {
		t.Errorf("servings = %v, want parsed value", req.Servings)
	}
}

func TestImportCancelClearsPointer(t *testing.T) {
	repo := newFakeImportRepo()
	svc, pointers := testImportService(repo, &fakeParser{})

	job, _ := svc.Create(context.Background(), 1, "raw text")
	if err := svc.Cancel(context.Background(), 1, job.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if repo.job(job.ID) != nil {
		t.Error("cancelled job still present")
	}
	if _, ok, _ := pointers.Current(context.Background(), 1); ok {
		t.Error("pointer not cleared after cancel")
	}
	// Cancelling again is a no-op
	if err := svc.Cancel(context.Background(), 1, job.ID); err != nil {
		t.Errorf("repeat cancel: %v", err)
	}
}

func TestImportCancelKeepsNewerPointer(t *testing.T) {
	repo := newFakeImportRepo()
	svc, pointers := testImportService(repo, &fakeParser{})

	old, _ := svc.Create(context.Background(), 1, "first")
	newer, _ := svc.Create(context.Background(), 1, "second")

	if err := svc.Cancel(context.Background(), 1, old.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	id, ok, _ := pointers.Current(context.Background(), 1)
	if !ok || id != newer.ID {
		t.Errorf("pointer = (%v, %v), want newer job kept", id, ok)
	}
}

func TestImportCurrent(t *testing.T) {
	repo := newFakeImportRepo()
	svc, pointers := testImportService(repo, &fakeParser{})

	if _, err := svc.Current(context.Background(), 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("no pointer: got %v, want ErrNotFound", err)
	}

	job, _ := svc.Create(context.Background(), 1, "raw text")
	got, err := svc.Current(context.Background(), 1)
	if err != nil || got.ID != job.ID {
		t.Fatalf("Current = (%+v, %v), want the created job", got, err)
	}

	// Dangling pointer: job removed underneath, pointer must be cleared
	repo.mu.Lock()
	delete(repo.jobs, job.ID)
	repo.mu.Unlock()
	if _, err := svc.Current(context.Background(), 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("dangling pointer: got %v, want ErrNotFound", err)
	}
	if _, ok, _ := pointers.Current(context.Background(), 1); ok {
		t.Error("dangling pointer not cleared")
	}
}

func TestImportStartResumesPending(t *testing.T) {
	repo := newFakeImportRepo()
	parser := &fakeParser{snapshots: []*ParserSnapshot{doneSnapshot()}}
	svc, _ := testImportService(repo, parser)

	// Persisted by a previous process, never picked up
	stale := &models.ImportJob{
		ID:      uuid.New(),
		UserID:  1,
		RawText: "leftover text",
		Status:  models.ImportStatusPending,
	}
	if err := repo.CreateImportJob(context.Background(), stale); err != nil {
		t.Fatal(err)
	}

	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer svc.Stop()

	deadline := time.Now().Add(time.Second)
	for {
		if got := repo.job(stale.ID); got != nil && got.Status.Terminal() {
			if got.Status != models.ImportStatusCompleted {
				t.Fatalf("resumed job = %+v, want completed", got)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("resumed job never completed: %+v", repo.job(stale.ID))
		}
		time.Sleep(time.Millisecond)
	}
}

func TestImportStartReclaimsOrphanedProcessing(t *testing.T) {
	repo := newFakeImportRepo()
	parser := &fakeParser{snapshots: []*ParserSnapshot{doneSnapshot()}}
	svc, _ := testImportService(repo, parser)

	// A previous process claimed this job and died before finishing it
	orphan := &models.ImportJob{
		ID:        uuid.New(),
		UserID:    1,
		RawText:   "abandoned text",
		Status:    models.ImportStatusProcessing,
		UpdatedAt: time.Now().Add(-time.Hour),
	}
	if err := repo.CreateImportJob(context.Background(), orphan); err != nil {
		t.Fatal(err)
	}

	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer svc.Stop()

	deadline := time.Now().Add(time.Second)
	for {
		if got := repo.job(orphan.ID); got != nil && got.Status.Terminal() {
			if got.Status != models.ImportStatusCompleted {
				t.Fatalf("orphaned job = %+v, want completed", got)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("orphaned job never recovered: %+v", repo.job(orphan.ID))
		}
		time.Sleep(time.Millisecond)
	}
}

func TestImportStartLeavesFreshProcessingAlone(t *testing.T) {
	repo := newFakeImportRepo()
	parser := &fakeParser{}
	svc, _ := testImportService(repo, parser)

	// Claimed recently; another live worker may still be polling it
	active := &models.ImportJob{
		ID:        uuid.New(),
		UserID:    1,
		RawText:   "in flight",
		Status:    models.ImportStatusProcessing,
		UpdatedAt: time.Now(),
	}
	if err := repo.CreateImportJob(context.Background(), active); err != nil {
		t.Fatal(err)
	}

	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	svc.Stop()

	if parser.submits != 0 {
		t.Errorf("fresh processing job was re-submitted %d times", parser.submits)
	}
}

func TestBuildRecipeRequestEdgeCases(t *testing.T) {
	parsed := parsedStirFry()

	// Blank name edit falls back to the parsed name
	blank := ""
	req := buildRecipeRequest(parsed, &models.ConfirmImportRequest{Name: &blank})
	if req.Name != parsed.Name {
		t.Errorf("blank name edit: got %q", req.Name)
	}
	if len(req.Ingredients) != len(parsed.Ingredients) {
		t.Errorf("ingredients = %+v, want parsed set", req.Ingredients)
	}

	// Nil edits carry the parsed values wholesale
	req = buildRecipeRequest(parsed, nil)
	if req.Name != parsed.Name || req.Servings != parsed.Servings || len(req.Ingredients) != 2 {
		t.Errorf("nil edits: %+v", req)
	}
}
