package projection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/churnlabs/churnguard/internal/ingest"
	"github.com/churnlabs/churnguard/internal/models"
)

func testResult() *models.AnalysisResult {
	return &models.AnalysisResult{
		ChurnPredictions: map[string]models.PredictionRecord{
			"C001": {
				CustomerID:              "C001",
				ChurnProbability:        0.85,
				RiskLevel:               models.RiskHigh,
				PrimaryRiskFactors:      []string{"low engagement", "billing issues"},
				RetentionRecommendation: "offer discount",
				EstimatedRevenueImpact:  15000,
			},
			"C002": {
				CustomerID:             "C002",
				ChurnProbability:       0.5,
				RiskLevel:              models.RiskMedium,
				EstimatedRevenueImpact: 2000,
			},
			"C003": {
				CustomerID:             "C003",
				ChurnProbability:       0.1,
				RiskLevel:              models.RiskLow,
				EstimatedRevenueImpact: 500,
			},
		},
	}
}

func uploadedTable() *ingest.Table {
	return &ingest.Table{
		Columns: []string{"customer_id", "email", "plan"},
		Rows: [][]string{
			{"C001", "alice@example.com", "pro"},
			{"C002", "bob@example.com", "basic"},
		},
	}
}

func TestBuildDerivedFields(t *testing.T) {
	b := NewBuilder(Thresholds{}, zap.NewNop())

	rows := b.Build(testResult(), uploadedTable())
	require.Len(t, rows, 3)

	// Sorted by customer id.
	assert.Equal(t, "C001", rows[0].CustomerID)
	assert.Equal(t, "C002", rows[1].CustomerID)
	assert.Equal(t, "C003", rows[2].CustomerID)

	high := rows[0]
	assert.Equal(t, models.RiskHigh, high.RiskCategory)
	assert.Equal(t, models.RiskHigh, high.RevenueTier)
	// 0.7*0.85 + 0.3*(15000/10000) = 1.045, clipped to 1.
	assert.Equal(t, 1.0, high.PriorityScore)
	assert.Equal(t, "low engagement, billing issues", high.PrimaryRiskFactors)
	assert.Equal(t, "offer discount", high.RetentionRecommendation)

	medium := rows[1]
	assert.Equal(t, models.RiskMedium, medium.RiskCategory)
	assert.Equal(t, models.RiskMedium, medium.RevenueTier)
	assert.InDelta(t, 0.7*0.5+0.3*0.2, medium.PriorityScore, 1e-9)
	// Missing recommendation defaults to monitor.
	assert.Equal(t, "monitor", medium.RetentionRecommendation)

	low := rows[2]
	assert.Equal(t, models.RiskLow, low.RiskCategory)
	assert.Equal(t, models.RiskLow, low.RevenueTier)
}

func TestBuildEmailJoin(t *testing.T) {
	b := NewBuilder(Thresholds{}, zap.NewNop())

	rows := b.Build(testResult(), uploadedTable())
	require.Len(t, rows, 3)

	assert.Equal(t, "alice@example.com", rows[0].Email)
	assert.Equal(t, "bob@example.com", rows[1].Email)
	// C003 is not in the uploaded table; sentinel email instead of blank.
	assert.Equal(t, PlaceholderEmail, rows[2].Email)
}

func TestBuildWithoutEmailColumn(t *testing.T) {
	b := NewBuilder(Thresholds{}, zap.NewNop())

	table := &ingest.Table{
		Columns: []string{"customer_id", "plan"},
		Rows:    [][]string{{"C001", "pro"}},
	}
	rows := b.Build(testResult(), table)
	for _, row := range rows {
		assert.Equal(t, PlaceholderEmail, row.Email)
	}
}

func TestBuildNilTable(t *testing.T) {
	b := NewBuilder(Thresholds{}, zap.NewNop())

	rows := b.Build(testResult(), nil)
	require.Len(t, rows, 3)
	assert.Equal(t, PlaceholderEmail, rows[0].Email)
}

func TestBuildEmptyPredictions(t *testing.T) {
	b := NewBuilder(Thresholds{}, zap.NewNop())

	rows := b.Build(&models.AnalysisResult{}, uploadedTable())
	assert.NotNil(t, rows)
	assert.Empty(t, rows)

	rows = b.Build(nil, uploadedTable())
	assert.Empty(t, rows)
}

func TestBuildUsesMapKeyWhenCustomerIDMissing(t *testing.T) {
	b := NewBuilder(Thresholds{}, zap.NewNop())

	result := &models.AnalysisResult{
		ChurnPredictions: map[string]models.PredictionRecord{
			"C009": {ChurnProbability: 0.2},
		},
	}
	rows := b.Build(result, nil)
	require.Len(t, rows, 1)
	assert.Equal(t, "C009", rows[0].CustomerID)
}

func TestRiskCategoryBoundaries(t *testing.T) {
	b := NewBuilder(Thresholds{High: 0.7, Medium: 0.4}, zap.NewNop())

	assert.Equal(t, models.RiskHigh, b.riskCategory(0.7))
	assert.Equal(t, models.RiskMedium, b.riskCategory(0.69))
	assert.Equal(t, models.RiskMedium, b.riskCategory(0.4))
	assert.Equal(t, models.RiskLow, b.riskCategory(0.39))
}

func TestSelectors(t *testing.T) {
	b := NewBuilder(Thresholds{}, zap.NewNop())
	rows := b.Build(testResult(), uploadedTable())

	high := ByRiskLevel(rows, models.RiskHigh)
	require.Len(t, high, 1)
	assert.Equal(t, "C001", high[0].CustomerID)

	tiers := ByRevenueTier(rows, models.RiskMedium)
	require.Len(t, tiers, 1)
	assert.Equal(t, "C002", tiers[0].CustomerID)

	top := TopPriority(rows, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "C001", top[0].CustomerID)
	assert.Equal(t, "C002", top[1].CustomerID)

	// Limit beyond the row count returns everything.
	assert.Len(t, TopPriority(rows, 10), 3)
}
