package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/churnlabs/churnguard/internal/ingest"
	"github.com/churnlabs/churnguard/internal/models"
	"github.com/churnlabs/churnguard/internal/storage"
)

// Run status values reported to pollers.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusNone      = "none"
)

// Runner executes analysis runs off the request path. Callers observe
// completion by polling Status, which reads the persisted result, not a
// synchronous return. The runner holds its own store handle so runs
// share no connection state with the caller. Runs for the same tenant
// are not mutually exclusive: concurrent runs each persist a result and
// readers resolve by the newest analysis date.
type Runner struct {
	analyzer *Analyzer
	store    storage.Store
	logger   *zap.Logger

	mu      sync.Mutex
	active  map[string]int
	lastErr map[string]bool
}

func NewRunner(analyzer *Analyzer, store storage.Store, logger *zap.Logger) *Runner {
	return &Runner{
		analyzer: analyzer,
		store:    store,
		logger:   logger,
		active:   make(map[string]int),
		lastErr:  make(map[string]bool),
	}
}

// Start launches a background analysis run and returns its id
// immediately. There is no cancellation path once the model call is
// issued, so the run deliberately detaches from the caller's context.
func (r *Runner) Start(userID string, table *ingest.Table, csvFileID string) string {
	runID := uuid.New().String()

	r.mu.Lock()
	r.active[userID]++
	r.mu.Unlock()

	r.logger.Info("starting background analysis",
		zap.String("user_id", userID),
		zap.String("run_id", runID))

	go r.run(userID, runID, table, csvFileID)
	return runID
}

func (r *Runner) run(userID, runID string, table *ingest.Table, csvFileID string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("analysis run panicked",
				zap.String("user_id", userID),
				zap.String("run_id", runID),
				zap.Any("panic", rec))
			r.finish(userID, true)
		}
	}()

	ctx := context.Background()

	result, err := r.analyzer.Analyze(ctx, table)
	if err != nil {
		r.logger.Error("background analysis failed",
			zap.String("user_id", userID),
			zap.String("run_id", runID),
			zap.Error(err))
		r.finish(userID, true)
		return
	}

	doc := &models.AnalysisDocument{
		ID:               runID,
		AnalysisDate:     time.Now(),
		AnalysisResult:   result,
		Summary:          result.Summary,
		ChurnPredictions: result.ChurnPredictions,
		Insights:         result.Insights,
		Analytics:        result.Analytics,
		CSVFileID:        csvFileID,
		Status:           models.AnalysisStatusCompleted,
	}

	// A store failure after a successful model call loses the result;
	// that fails the whole run rather than retrying.
	if _, err := r.store.StoreAnalysis(ctx, userID, doc); err != nil {
		r.logger.Error("failed to persist analysis result",
			zap.String("user_id", userID),
			zap.String("run_id", runID),
			zap.Error(err))
		r.finish(userID, true)
		return
	}

	r.logger.Info("background analysis completed",
		zap.String("user_id", userID),
		zap.String("run_id", runID),
		zap.Int("predictions", len(result.ChurnPredictions)))
	r.finish(userID, false)
}

func (r *Runner) finish(userID string, failed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[userID]--
	if r.active[userID] <= 0 {
		delete(r.active, userID)
	}
	r.lastErr[userID] = failed
}

// Running reports whether the tenant has an active run.
func (r *Runner) Running(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active[userID] > 0
}

// Status resolves the tenant's analysis state: running wins over
// everything, then a persisted completed result, then the outcome of
// the most recent finished run.
func (r *Runner) Status(ctx context.Context, userID string) string {
	if r.Running(userID) {
		return StatusRunning
	}

	doc, err := r.store.LatestAnalysis(ctx, userID)
	if err == nil && doc.Status == models.AnalysisStatusCompleted {
		return StatusCompleted
	}

	r.mu.Lock()
	failed := r.lastErr[userID]
	r.mu.Unlock()
	if failed {
		return StatusFailed
	}
	return StatusNone
}
