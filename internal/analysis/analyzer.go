// Package analysis runs the churn analysis pipeline: serialize the
// validated table, assemble the prompt, call the model, parse the
// response contract.
package analysis

import (
	"context"

	"go.uber.org/zap"

	"github.com/churnlabs/churnguard/internal/contract"
	"github.com/churnlabs/churnguard/internal/gateway"
	"github.com/churnlabs/churnguard/internal/ingest"
	"github.com/churnlabs/churnguard/internal/models"
	"github.com/churnlabs/churnguard/internal/prompt"
	"github.com/churnlabs/churnguard/internal/serialize"
)

// Generator is the slice of the model gateway the analyzer needs.
type Generator interface {
	Available() bool
	GenerateText(ctx context.Context, promptText string, file *gateway.FileHandle) (string, error)
}

type Analyzer struct {
	gen       Generator
	assembler *prompt.Assembler
	parser    *contract.Parser
	logger    *zap.Logger
}

func NewAnalyzer(gen Generator, assembler *prompt.Assembler, parser *contract.Parser, logger *zap.Logger) *Analyzer {
	return &Analyzer{gen: gen, assembler: assembler, parser: parser, logger: logger}
}

// Analyze runs one analysis over a validated table. Single model
// attempt; any failure is returned to the caller, never retried here.
func (a *Analyzer) Analyze(ctx context.Context, table *ingest.Table) (*models.AnalysisResult, error) {
	if !a.gen.Available() {
		a.logger.Error("model not available for analysis")
		return nil, gateway.ErrModelUnavailable
	}

	a.logger.Info("starting churn analysis",
		zap.Int("rows", table.NumRows()),
		zap.Int("columns", table.NumColumns()),
		zap.Strings("column_names", table.Columns))

	csvText := serialize.TableText(table)

	promptText, err := a.assembler.AnalysisPrompt(csvText)
	if err != nil {
		return nil, err
	}

	response, err := a.gen.GenerateText(ctx, promptText, nil)
	if err != nil {
		return nil, err
	}

	result, err := a.parser.ParseAnalysis(response)
	if err != nil {
		return nil, err
	}

	a.logger.Info("churn analysis complete",
		zap.Int("total_customers", result.Summary.TotalCustomers),
		zap.Int("high_risk", result.Summary.HighRiskCustomers),
		zap.Int("medium_risk", result.Summary.MediumRiskCustomers),
		zap.Int("low_risk", result.Summary.LowRiskCustomers),
		zap.Float64("revenue_at_risk", result.Summary.TotalRevenueAtRisk),
		zap.Int("predictions", len(result.ChurnPredictions)))

	return result, nil
}
