// Package nlq answers natural-language questions about an uploaded
// dataset, routing each question to either full-table or summary
// context to bound token cost.
package nlq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/churnlabs/churnguard/internal/gateway"
	"github.com/churnlabs/churnguard/internal/ingest"
	"github.com/churnlabs/churnguard/internal/models"
	"github.com/churnlabs/churnguard/internal/prompt"
	"github.com/churnlabs/churnguard/internal/serialize"
)

var (
	ErrNoData = errors.New("no data loaded")
)

// summaryCacheSize bounds the per-dataset statistical summary cache.
const summaryCacheSize = 32

// Generator is the slice of the model gateway the agent needs.
type Generator interface {
	Available() bool
	GenerateText(ctx context.Context, promptText string, file *gateway.FileHandle) (string, error)
	UploadCSV(ctx context.Context, content []byte, displayName string) (*gateway.FileHandle, error)
}

// Options bound the conversation window fed into prompts.
type Options struct {
	HistoryLimit  int
	HistoryMaxLen int
}

// Agent holds one tenant's loaded dataset and answers questions over it.
type Agent struct {
	gen       Generator
	assembler *prompt.Assembler
	router    *Router
	opts      Options
	logger    *zap.Logger

	summaries *lru.Cache[string, string]

	mu       sync.RWMutex
	table    *ingest.Table
	fileID   string
	uploaded *gateway.FileHandle
}

func NewAgent(gen Generator, assembler *prompt.Assembler, router *Router, opts Options, logger *zap.Logger) *Agent {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 4
	}
	if opts.HistoryMaxLen <= 0 {
		opts.HistoryMaxLen = 500
	}
	summaries, _ := lru.New[string, string](summaryCacheSize)
	return &Agent{
		gen:       gen,
		assembler: assembler,
		router:    router,
		opts:      opts,
		summaries: summaries,
		logger:    logger,
	}
}

// Load stores the dataset and attaches the raw CSV to the model session
// so full-table questions can reference it. An upload failure
// propagates: callers must know the attachment is missing, because
// full-table questions silently degrade to summary context without it.
func (a *Agent) Load(ctx context.Context, table *ingest.Table, fileID string, csvContent []byte) error {
	a.mu.Lock()
	a.table = table
	a.fileID = fileID
	a.uploaded = nil
	a.mu.Unlock()

	a.logger.Info("dataset loaded for queries",
		zap.Int("rows", table.NumRows()),
		zap.String("file_id", fileID))

	if len(csvContent) == 0 || !a.gen.Available() {
		return nil
	}

	handle, err := a.gen.UploadCSV(ctx, csvContent, "customer_data.csv")
	if err != nil {
		return fmt.Errorf("attaching CSV for query context: %w", err)
	}

	a.mu.Lock()
	a.uploaded = handle
	a.mu.Unlock()
	return nil
}

// Loaded reports whether a dataset is available for questions.
func (a *Agent) Loaded() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.table != nil
}

// Ask answers a question using the loaded dataset, with the most recent
// conversation history as additional context.
func (a *Agent) Ask(ctx context.Context, question string, history []models.ChatMessage) (string, error) {
	if !a.gen.Available() {
		return "", gateway.ErrModelUnavailable
	}

	a.mu.RLock()
	table := a.table
	fileID := a.fileID
	uploaded := a.uploaded
	a.mu.RUnlock()

	if table == nil {
		return "", ErrNoData
	}

	conversation := prompt.ConversationContext(history, a.opts.HistoryLimit, a.opts.HistoryMaxLen)

	if a.router.NeedsFullTable(question) && uploaded != nil {
		return a.askWithFullTable(ctx, question, conversation, table, uploaded)
	}
	return a.askWithSummary(ctx, question, conversation, table, fileID)
}

func (a *Agent) askWithFullTable(ctx context.Context, question, conversation string, table *ingest.Table, file *gateway.FileHandle) (string, error) {
	dataInfo := fmt.Sprintf(`**Dataset Information:**
- Total Rows: %d
- Total Columns: %d
- Fields: %s

**Note:** Full CSV data attached for detailed analysis.`,
		table.NumRows(), table.NumColumns(), strings.Join(table.Columns, ", "))

	fullPrompt, err := a.assembler.QueryPrompt(question, conversation, dataInfo)
	if err != nil {
		return "", err
	}

	a.logger.Info("complex query, using full table context", zap.Int("rows", table.NumRows()))
	return a.gen.GenerateText(ctx, fullPrompt, file)
}

func (a *Agent) askWithSummary(ctx context.Context, question, conversation string, table *ingest.Table, fileID string) (string, error) {
	dataInfo := fmt.Sprintf(`**Dataset Summary:**
- Total Rows: %d
- Total Columns: %d
- Fields: %s

**Statistical Summary:**
%s

**Note:** Summary mode. For detailed row-level analysis, I can access full dataset.`,
		table.NumRows(), table.NumColumns(), strings.Join(table.Columns, ", "),
		a.summaryFor(table, fileID))

	fullPrompt, err := a.assembler.QueryPrompt(question, conversation, dataInfo)
	if err != nil {
		return "", err
	}

	a.logger.Info("simple query, using summary context")
	return a.gen.GenerateText(ctx, fullPrompt, nil)
}

// summaryFor serializes the statistical summary once per dataset.
func (a *Agent) summaryFor(table *ingest.Table, fileID string) string {
	if fileID != "" {
		if cached, ok := a.summaries.Get(fileID); ok {
			return cached
		}
	}
	summary := serialize.SummaryStatistics(table)
	if fileID != "" {
		a.summaries.Add(fileID, summary)
	}
	return summary
}
