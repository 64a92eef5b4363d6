package models

// Risk level labels as emitted by the model and used for bucketing.
const (
	RiskHigh   = "high"
	RiskMedium = "medium"
	RiskLow    = "low"
)

// AnalysisSummary holds the aggregate counts from an analysis run.
type AnalysisSummary struct {
	TotalCustomers      int     `json:"total_customers"`
	HighRiskCustomers   int     `json:"high_risk_customers"`
	MediumRiskCustomers int     `json:"medium_risk_customers"`
	LowRiskCustomers    int     `json:"low_risk_customers"`
	TotalRevenueAtRisk  float64 `json:"total_revenue_at_risk"`
}

// PredictionRecord is the per-customer prediction inside churn_predictions.
type PredictionRecord struct {
	CustomerID              string   `json:"customer_id"`
	ChurnProbability        float64  `json:"churn_probability"`
	RiskLevel               string   `json:"risk_level"`
	PrimaryRiskFactors      []string `json:"primary_risk_factors"`
	RetentionRecommendation string   `json:"retention_recommendation"`
	EstimatedRevenueImpact  float64  `json:"estimated_revenue_impact"`
}

type Insights struct {
	TopChurnDrivers        []string `json:"top_churn_drivers"`
	RetentionOpportunities []string `json:"retention_opportunities"`
	RecommendedActions     []string `json:"recommended_actions"`
}

type Analytics struct {
	ChurnProbabilityDistribution map[string]int     `json:"churn_probability_distribution"`
	RevenueAtRiskBySegment       map[string]float64 `json:"revenue_at_risk_by_segment"`
	EngagementTrends             map[string]int     `json:"engagement_trends"`
}

// AnalysisResult is the parsed model response for a churn analysis.
// All five top-level keys are guaranteed present after parsing; missing
// keys are filled with empty defaults by the contract parser.
type AnalysisResult struct {
	Summary          AnalysisSummary             `json:"summary"`
	ChurnPredictions map[string]PredictionRecord `json:"churn_predictions"`
	CustomerSegments map[string]any              `json:"customer_segments"`
	Insights         Insights                    `json:"insights"`
	Analytics        Analytics                   `json:"analytics"`
}

// HeaderValidation is the parsed model response for the header
// suitability check. This is a separate contract from AnalysisResult.
type HeaderValidation struct {
	IsSuitable            bool              `json:"is_suitable"`
	Confidence            string            `json:"confidence"`
	Reasoning             string            `json:"reasoning"`
	Message               string            `json:"message"`
	IdentifiedFields      map[string]string `json:"identified_fields,omitempty"`
	MissingCriticalFields []string          `json:"missing_critical_fields,omitempty"`
	Recommendations       string            `json:"recommendations,omitempty"`
}

// CustomerProjection is one analysis-ready row derived from a
// PredictionRecord plus the email resolved from the uploaded table.
type CustomerProjection struct {
	CustomerID              string  `json:"customer_id"`
	Email                   string  `json:"email"`
	ChurnProbability        float64 `json:"churn_probability"`
	RiskLevel               string  `json:"risk_level"`
	PrimaryRiskFactors      string  `json:"primary_risk_factors"`
	RetentionRecommendation string  `json:"retention_recommendation"`
	EstimatedRevenueImpact  float64 `json:"estimated_revenue_impact"`
	RiskCategory            string  `json:"risk_category"`
	RevenueTier             string  `json:"revenue_tier"`
	PriorityScore           float64 `json:"priority_score"`
}
