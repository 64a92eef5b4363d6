// Package contract parses raw model responses against the two response
// contracts: the analysis schema and the header-validation schema. The
// two are never conflated. Malformed input never panics; every failure
// path returns a typed error the caller checks.
package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/churnlabs/churnguard/internal/models"
)

// previewLen bounds the diagnostic text attached to a ParseError.
const previewLen = 500

// ParseError is a contract violation: the response text did not decode
// as JSON. It carries the decoder's position and a bounded preview of
// the offending text for diagnostics.
type ParseError struct {
	Offset  int64
	Preview string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("response is not valid JSON at offset %d: %v", e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parser validates model responses. Missing required keys are filled
// with empty defaults rather than failing; only total decode failure is
// a hard failure.
type Parser struct {
	logger *zap.Logger
}

func NewParser(logger *zap.Logger) *Parser {
	return &Parser{logger: logger}
}

// ParseAnalysis parses a response against the analysis contract. All
// five required top-level keys are present in the result; absent or
// malformed keys become empty defaults. Probabilities are clamped to
// [0,1] and revenue impacts to >= 0 after parsing.
func (p *Parser) ParseAnalysis(raw string) (*models.AnalysisResult, error) {
	top, err := p.decode(raw)
	if err != nil {
		return nil, err
	}

	result := &models.AnalysisResult{
		ChurnPredictions: map[string]models.PredictionRecord{},
		CustomerSegments: map[string]any{},
		Insights: models.Insights{
			TopChurnDrivers:        []string{},
			RetentionOpportunities: []string{},
			RecommendedActions:     []string{},
		},
		Analytics: models.Analytics{
			ChurnProbabilityDistribution: map[string]int{},
			RevenueAtRiskBySegment:       map[string]float64{},
			EngagementTrends:             map[string]int{},
		},
	}

	p.fillKey(top, "summary", &result.Summary)
	p.fillKey(top, "churn_predictions", &result.ChurnPredictions)
	p.fillKey(top, "customer_segments", &result.CustomerSegments)
	p.fillKey(top, "insights", &result.Insights)
	p.fillKey(top, "analytics", &result.Analytics)

	clampPredictions(result)
	return result, nil
}

// ParseHeaderValidation parses a response against the header-validation
// contract: {is_suitable, confidence, reasoning, message}, with defaults
// injected for missing keys.
func (p *Parser) ParseHeaderValidation(raw string) (*models.HeaderValidation, error) {
	top, err := p.decode(raw)
	if err != nil {
		return nil, err
	}

	result := &models.HeaderValidation{
		IsSuitable: false,
		Confidence: "low",
		Reasoning:  "N/A",
		Message:    "N/A",
	}

	p.fillKey(top, "is_suitable", &result.IsSuitable)
	p.fillKey(top, "confidence", &result.Confidence)
	p.fillKey(top, "reasoning", &result.Reasoning)
	p.fillKey(top, "message", &result.Message)
	p.fillKey(top, "identified_fields", &result.IdentifiedFields)
	p.fillKey(top, "missing_critical_fields", &result.MissingCriticalFields)
	p.fillKey(top, "recommendations", &result.Recommendations)

	return result, nil
}

// decode strips formatting artifacts and decodes the top-level object.
func (p *Parser) decode(raw string) (map[string]json.RawMessage, error) {
	cleaned := StripFences(raw)

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &top); err != nil {
		perr := &ParseError{Preview: boundedPreview(cleaned), Err: err}
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) {
			perr.Offset = syntaxErr.Offset
		} else if errors.As(err, &typeErr) {
			perr.Offset = typeErr.Offset
		}
		p.logger.Error("failed to decode model response",
			zap.Int64("offset", perr.Offset),
			zap.String("preview", perr.Preview))
		return nil, perr
	}
	return top, nil
}

// fillKey decodes one top-level key into dst when present and well
// formed. A missing or malformed key leaves dst at its default: a
// degraded-but-present result beats a hard failure.
func (p *Parser) fillKey(top map[string]json.RawMessage, key string, dst any) {
	value, ok := top[key]
	if !ok {
		p.logger.Warn("response missing required key, using default", zap.String("key", key))
		return
	}
	if err := json.Unmarshal(value, dst); err != nil {
		p.logger.Warn("response key malformed, using default",
			zap.String("key", key),
			zap.Error(err))
	}
}

// StripFences removes a leading markdown code-fence marker (with or
// without a language tag) and a trailing fence, if present. The model is
// known to sometimes wrap JSON in fences despite instructions.
func StripFences(raw string) string {
	cleaned := strings.TrimSpace(raw)

	if strings.HasPrefix(cleaned, "```json") {
		cleaned = cleaned[len("```json"):]
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = cleaned[len("```"):]
	}
	cleaned = strings.TrimSuffix(cleaned, "```")

	return strings.TrimSpace(cleaned)
}

// clampPredictions bounds model-returned numbers: probability to [0,1],
// revenue impact to >= 0. The model is otherwise trusted on values.
func clampPredictions(result *models.AnalysisResult) {
	for id, pred := range result.ChurnPredictions {
		if pred.ChurnProbability < 0 {
			pred.ChurnProbability = 0
		} else if pred.ChurnProbability > 1 {
			pred.ChurnProbability = 1
		}
		if pred.EstimatedRevenueImpact < 0 {
			pred.EstimatedRevenueImpact = 0
		}
		result.ChurnPredictions[id] = pred
	}
	if result.Summary.TotalRevenueAtRisk < 0 {
		result.Summary.TotalRevenueAtRisk = 0
	}
}

// boundedPreview keeps the first and last previewLen characters.
func boundedPreview(s string) string {
	if len(s) <= 2*previewLen {
		return s
	}
	return s[:previewLen] + " ... " + s[len(s)-previewLen:]
}
