// Package projection turns a parsed analysis into the flat,
// analysis-ready customer table with derived triage fields.
package projection

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/churnlabs/churnguard/internal/ingest"
	"github.com/churnlabs/churnguard/internal/models"
)

// PlaceholderEmail is used when the uploaded table has no email for a
// predicted customer, so outreach tooling sees a visibly fake sentinel
// instead of a silently unmailable blank.
const PlaceholderEmail = "barath.contact@gmail.com"

// Revenue tier thresholds in revenue-impact currency units.
const (
	revenueTierHigh   = 10000
	revenueTierMedium = 1000
)

// Thresholds are the probability cutoffs for the derived risk bucket.
type Thresholds struct {
	High   float64
	Medium float64
}

// Builder derives the customer projection from an analysis result.
type Builder struct {
	thresholds Thresholds
	logger     *zap.Logger
}

func NewBuilder(thresholds Thresholds, logger *zap.Logger) *Builder {
	if thresholds.High == 0 {
		thresholds.High = 0.7
	}
	if thresholds.Medium == 0 {
		thresholds.Medium = 0.4
	}
	return &Builder{thresholds: thresholds, logger: logger}
}

// Build emits one projection row per churn prediction, joining emails
// from the original uploaded table when it carries customer-id and email
// columns. Rows are ordered by customer id. The risk category is
// re-derived from the probability and can disagree with the model's own
// risk_level; that is intentional. Empty predictions produce an empty
// projection, which is a valid, displayable state.
func (b *Builder) Build(result *models.AnalysisResult, original *ingest.Table) []models.CustomerProjection {
	rows := []models.CustomerProjection{}
	if result == nil || len(result.ChurnPredictions) == 0 {
		b.logger.Warn("no churn predictions in analysis result, projection is empty")
		return rows
	}

	emails := emailLookup(original, b.logger)

	for key, pred := range result.ChurnPredictions {
		customerID := pred.CustomerID
		if customerID == "" {
			customerID = key
		}

		email, ok := emails[customerID]
		if !ok {
			email = PlaceholderEmail
		}

		rows = append(rows, models.CustomerProjection{
			CustomerID:              customerID,
			Email:                   email,
			ChurnProbability:        pred.ChurnProbability,
			RiskLevel:               pred.RiskLevel,
			PrimaryRiskFactors:      strings.Join(pred.PrimaryRiskFactors, ", "),
			RetentionRecommendation: recommendation(pred.RetentionRecommendation),
			EstimatedRevenueImpact:  pred.EstimatedRevenueImpact,
			RiskCategory:            b.riskCategory(pred.ChurnProbability),
			RevenueTier:             revenueTier(pred.EstimatedRevenueImpact),
			PriorityScore:           priorityScore(pred.ChurnProbability, pred.EstimatedRevenueImpact),
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].CustomerID < rows[j].CustomerID })

	b.logger.Info("customer projection built", zap.Int("customers", len(rows)))
	return rows
}

func (b *Builder) riskCategory(probability float64) string {
	switch {
	case probability >= b.thresholds.High:
		return models.RiskHigh
	case probability >= b.thresholds.Medium:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

func revenueTier(revenue float64) string {
	switch {
	case revenue >= revenueTierHigh:
		return models.RiskHigh
	case revenue >= revenueTierMedium:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// priorityScore blends churn probability and revenue impact into a 0-1
// triage ranking: clip(0.7*probability + 0.3*(revenue/10000), 0, 1).
func priorityScore(probability, revenue float64) float64 {
	score := probability*0.7 + (revenue/10000)*0.3
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func recommendation(r string) string {
	if r == "" {
		return "monitor"
	}
	return r
}

// emailLookup builds the customer-id to email mapping from the uploaded
// table, when it has identifiable columns.
func emailLookup(original *ingest.Table, logger *zap.Logger) map[string]string {
	lookup := map[string]string{}
	if original == nil {
		logger.Warn("no original table available for email mapping")
		return lookup
	}

	idCol := original.ColumnIndex("customer_id")
	emailCol := original.ColumnIndex("email")
	if idCol < 0 || emailCol < 0 {
		logger.Warn("uploaded table missing customer-id or email column")
		return lookup
	}

	for _, row := range original.Rows {
		lookup[row[idCol]] = row[emailCol]
	}
	logger.Info("email mapping created", zap.Int("customers", len(lookup)))
	return lookup
}
