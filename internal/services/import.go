package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hearthware/homeboard/internal/logger"
	"github.com/hearthware/homeboard/internal/models"
)

// ImportJobRepo persists import jobs. Status transitions must be guarded so a
// terminal job never changes again; the Mark/Complete/Fail methods return
// false when the guard rejects the write (e.g. the job was cancelled).
type ImportJobRepo interface {
	CreateImportJob(ctx context.Context, job *models.ImportJob) error
	GetImportJob(ctx context.Context, ownerID int, id uuid.UUID) (*models.ImportJob, error)
	GetImportJobByID(ctx context.Context, id uuid.UUID) (*models.ImportJob, error)
	MarkImportProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	CompleteImportJob(ctx context.Context, id uuid.UUID, recipe *models.ParsedRecipe, meta *models.ParseMeta) (bool, error)
	FailImportJob(ctx context.Context, id uuid.UUID, message string) (bool, error)
	// DeleteImportJob removes the job and returns it, or nil when absent
	DeleteImportJob(ctx context.Context, ownerID int, id uuid.UUID) (*models.ImportJob, error)
	// PendingImportJobIDs lists jobs not yet picked up, oldest first
	PendingImportJobIDs(ctx context.Context) ([]uuid.UUID, error)
	// StaleProcessingImportJobIDs lists jobs still marked processing whose
	// last update predates cutoff, i.e. orphaned by a dead worker
	StaleProcessingImportJobIDs(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
	// CreateRecipeFromImport atomically creates the recipe and deletes the
	// completed job
	CreateRecipeFromImport(ctx context.Context, ownerID int, jobID uuid.UUID, req *models.CreateRecipeRequest) (*models.Recipe, error)
}

// ImportConfig tunes the import worker pool and parser polling
type ImportConfig struct {
	Workers      int
	QueueSize    int
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// ImportService manages the lifecycle of recipe-text import jobs: submission,
// background parsing via the external service, client-resumable tracking,
// confirmation and cancellation.
type ImportService struct {
	repo     ImportJobRepo
	pointers PointerStore
	parser   ParserClient
	archiver Archiver // optional
	cfg      ImportConfig

	queue chan uuid.UUID
	done  chan struct{}
	wg    sync.WaitGroup
}

// NewImportService wires the import pipeline. archiver may be nil.
func NewImportService(repo ImportJobRepo, pointers PointerStore, parser ParserClient, archiver Archiver, cfg ImportConfig) *ImportService {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 3 * time.Minute
	}
	return &ImportService{
		repo:     repo,
		pointers: pointers,
		parser:   parser,
		archiver: archiver,
		cfg:      cfg,
		queue:    make(chan uuid.UUID, cfg.QueueSize),
		done:     make(chan struct{}),
	}
}

// Start launches the worker pool and re-enqueues jobs that were still pending
// when the previous process stopped.
func (s *ImportService) Start(ctx context.Context) error {
	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}

	pending, err := s.repo.PendingImportJobIDs(ctx)
	if err != nil {
		return fmt.Errorf("resume pending imports: %w", err)
	}
	for _, id := range pending {
		s.enqueue(id)
	}

	// Reclaim jobs a crashed process left in processing; the claim guard in
	// the repo tolerates the second mark
	stale, err := s.repo.StaleProcessingImportJobIDs(ctx, time.Now().Add(-s.cfg.PollTimeout))
	if err != nil {
		return fmt.Errorf("resume orphaned imports: %w", err)
	}
	for _, id := range stale {
		s.enqueue(id)
	}

	if len(pending) > 0 || len(stale) > 0 {
		logger.L().Info("resumed import jobs",
			zap.Int("pending", len(pending)),
			zap.Int("orphaned", len(stale)),
		)
	}
	return nil
}

// Stop drains the worker pool
func (s *ImportService) Stop() {
	close(s.done)
	s.wg.Wait()
}

// Create submits raw recipe text, persists the job, sets the resumable
// pointer and queues background processing.
func (s *ImportService) Create(ctx context.Context, ownerID int, rawText string) (*models.ImportJob, error) {
	if strings.TrimSpace(rawText) == "" {
		return nil, fmt.Errorf("raw_text is required: %w", ErrValidation)
	}

	job := &models.ImportJob{
		ID:      uuid.New(),
		UserID:  ownerID,
		RawText: rawText,
		Status:  models.ImportStatusPending,
	}

	if s.archiver != nil {
		key, err := s.archiver.Archive(ctx, ownerID, job.ID, rawText)
		if err != nil {
			logger.L().Warn("import text archive failed", zap.Error(err), zap.String("job_id", job.ID.String()))
		} else {
			job.ArchiveKey = &key
		}
	}

	if err := s.repo.CreateImportJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create import job: %w", err)
	}

	if err := s.pointers.SetCurrent(ctx, ownerID, job.ID); err != nil {
		logger.L().Error("set resumable job pointer failed", zap.Error(err), zap.Int("owner_id", ownerID))
	}

	s.enqueue(job.ID)
	logger.L().Info("import job created",
		zap.String("job_id", job.ID.String()),
		zap.Int("owner_id", ownerID),
		zap.Int("text_len", len(rawText)),
	)
	return job, nil
}

// Pending lists jobs across all owners that no worker has picked up yet
func (s *ImportService) Pending(ctx context.Context) ([]uuid.UUID, error) {
	return s.repo.PendingImportJobIDs(ctx)
}

// Get returns the current status snapshot. Idempotent: polling a terminal job
// returns the same snapshot with no side effects.
func (s *ImportService) Get(ctx context.Context, ownerID int, id uuid.UUID) (*models.ImportJob, error) {
	return s.repo.GetImportJob(ctx, ownerID, id)
}

// Current resolves the resumable pointer so a reloaded client can pick up its
// in-flight import. A dangling pointer (job deleted underneath) is cleared.
func (s *ImportService) Current(ctx context.Context, ownerID int) (*models.ImportJob, error) {
	id, ok, err := s.pointers.Current(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no import in flight: %w", ErrNotFound)
	}
	job, err := s.repo.GetImportJob(ctx, ownerID, id)
	if err != nil {
		if clearErr := s.pointers.Clear(ctx, ownerID); clearErr != nil {
			logger.L().Warn("clear dangling job pointer failed", zap.Error(clearErr))
		}
		return nil, err
	}
	return job, nil
}

// Confirm applies caller edits over the parsed result and commits the recipe.
// Only valid once the job has completed.
func (s *ImportService) Confirm(ctx context.Context, ownerID int, id uuid.UUID, edits *models.ConfirmImportRequest) (*models.Recipe, error) {
	job, err := s.repo.GetImportJob(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if job.Status != models.ImportStatusCompleted {
		return nil, fmt.Errorf("import %s is %s, not completed: %w", id, job.Status, ErrConflict)
	}
	if job.ParsedRecipe == nil {
		return nil, fmt.Errorf("import %s has no parsed recipe: %w", id, ErrConflict)
	}

	req := buildRecipeRequest(job.ParsedRecipe, edits)
	recipe, err := s.repo.CreateRecipeFromImport(ctx, ownerID, id, req)
	if err != nil {
		return nil, err
	}

	if err := s.clearPointerFor(ctx, ownerID, id); err != nil {
		logger.L().Warn("clear job pointer after confirm failed", zap.Error(err))
	}
	logger.L().Info("import job confirmed",
		zap.String("job_id", id.String()),
		zap.Int("recipe_id", recipe.ID),
	)
	return recipe, nil
}

// Cancel deletes the job and clears the pointer. Best-effort and safe in any
// state; a completion racing the cancel is tolerated either way.
func (s *ImportService) Cancel(ctx context.Context, ownerID int, id uuid.UUID) error {
	job, err := s.repo.DeleteImportJob(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if job != nil && job.ArchiveKey != nil && s.archiver != nil {
		if err := s.archiver.Remove(ctx, *job.ArchiveKey); err != nil {
			logger.L().Warn("remove archived import text failed", zap.Error(err))
		}
	}
	if err := s.clearPointerFor(ctx, ownerID, id); err != nil {
		logger.L().Warn("clear job pointer after cancel failed", zap.Error(err))
	}
	return nil
}

// clearPointerFor clears the pointer only if it still references this job
func (s *ImportService) clearPointerFor(ctx context.Context, ownerID int, id uuid.UUID) error {
	current, ok, err := s.pointers.Current(ctx, ownerID)
	if err != nil {
		return err
	}
	if !ok || current != id {
		return nil
	}
	return s.pointers.Clear(ctx, ownerID)
}

// enqueue hands a job to the workers without blocking the caller. A full
// queue leaves the job pending; the startup resume scan picks it up.
func (s *ImportService) enqueue(id uuid.UUID) {
	select {
	case s.queue <- id:
	default:
		logger.L().Warn("import queue full, job left pending", zap.String("job_id", id.String()))
	}
}

func (s *ImportService) worker() {
	defer s.wg.Done()
	for {
		select {
		case id := <-s.queue:
			s.process(id)
		case <-s.done:
			return
		}
	}
}

// process drives one job to a terminal state: submit to the parser, then poll
// at a bounded cadence, stopping immediately once a terminal snapshot is
// observed or the deadline passes.
func (s *ImportService) process(id uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PollTimeout)
	defer cancel()

	job, err := s.repo.GetImportJobByID(ctx, id)
	if err != nil {
		// Cancelled before a worker got to it
		return
	}
	if job.Status.Terminal() {
		return
	}

	ok, err := s.repo.MarkImportProcessing(ctx, id)
	if err != nil || !ok {
		return
	}

	remoteID, err := s.parser.Submit(ctx, job.RawText)
	if err != nil {
		s.fail(id, err.Error())
		return
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		snap, err := s.parser.Fetch(ctx, remoteID)
		if err != nil {
			lastErr = err
		} else if snap.Failed {
			s.fail(id, snap.Error)
			return
		} else if snap.Done {
			s.complete(id, snap)
			return
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			msg := "timed out waiting for parser"
			if lastErr != nil {
				msg = fmt.Sprintf("%s: %v", msg, lastErr)
			}
			s.fail(id, msg)
			return
		case <-s.done:
			// Leave the job processing; the next start resumes nothing for
			// it, but the parser result is lost anyway without a poller, so
			// mark it failed for the client.
			s.fail(id, "import worker shut down")
			return
		}
	}
}

func (s *ImportService) complete(id uuid.UUID, snap *ParserSnapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if snap.Recipe == nil || snap.Recipe.Name == "" || len(snap.Recipe.Ingredients) == 0 {
		s.fail(id, "parser returned an unusable recipe structure")
		return
	}

	updated, err := s.repo.CompleteImportJob(ctx, id, snap.Recipe, snap.Meta)
	if err != nil {
		logger.L().Error("complete import job failed", zap.Error(err), zap.String("job_id", id.String()))
		return
	}
	if !updated {
		// Cancel won the race; the row is gone or terminal
		logger.L().Debug("import completion discarded", zap.String("job_id", id.String()))
		return
	}
	logger.L().Info("import job completed", zap.String("job_id", id.String()))
}

func (s *ImportService) fail(id uuid.UUID, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	updated, err := s.repo.FailImportJob(ctx, id, message)
	if err != nil {
		logger.L().Error("fail import job failed", zap.Error(err), zap.String("job_id", id.String()))
		return
	}
	if updated {
		logger.L().Warn("import job failed", zap.String("job_id", id.String()), zap.String("reason", message))
	}
}

// buildRecipeRequest layers caller edits over the parsed values
func buildRecipeRequest(parsed *models.ParsedRecipe, edits *models.ConfirmImportRequest) *models.CreateRecipeRequest {
	req := &models.CreateRecipeRequest{
		Name:         parsed.Name,
		Servings:     parsed.Servings,
		Instructions: parsed.Instructions,
	}
	if edits != nil {
		if edits.Name != nil && *edits.Name != "" {
			req.Name = *edits.Name
		}
		if edits.Servings != nil {
			req.Servings = edits.Servings
		}
		if edits.Instructions != nil {
			req.Instructions = edits.Instructions
		}
	}

	if edits != nil && len(edits.Ingredients) > 0 {
		req.Ingredients = edits.Ingredients
	} else {
		req.Ingredients = make([]models.CreateIngredientRequest, 0, len(parsed.Ingredients))
		for _, ing := range parsed.Ingredients {
			req.Ingredients = append(req.Ingredients, models.CreateIngredientRequest{
				Name:        ing.Name,
				Quantity:    ing.Quantity,
				Description: ing.Description,
			})
		}
	}
	return req
}
