package analysis

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/churnlabs/churnguard/internal/contract"
	"github.com/churnlabs/churnguard/internal/models"
	"github.com/churnlabs/churnguard/internal/prompt"
)

// HeaderValidator asks the model whether uploaded column headers are
// suitable for churn prediction. It always returns a result: when the
// model is unavailable or the response unparseable it falls back to a
// permissive default so broken validation infrastructure never blocks
// an upload.
type HeaderValidator struct {
	gen       Generator
	assembler *prompt.Assembler
	parser    *contract.Parser
	logger    *zap.Logger
}

func NewHeaderValidator(gen Generator, assembler *prompt.Assembler, parser *contract.Parser, logger *zap.Logger) *HeaderValidator {
	return &HeaderValidator{gen: gen, assembler: assembler, parser: parser, logger: logger}
}

func (v *HeaderValidator) Validate(ctx context.Context, headers []string) *models.HeaderValidation {
	if len(headers) == 0 {
		return v.fallback("No headers provided")
	}
	if !v.gen.Available() {
		return v.fallback("Validator not available")
	}

	v.logger.Info("validating CSV headers",
		zap.Int("num_headers", len(headers)),
		zap.Strings("headers", headers))

	response, err := v.gen.GenerateText(ctx, v.assembler.HeaderValidationPrompt(headers), nil)
	if err != nil {
		return v.fallback("Failed to generate validation")
	}

	result, err := v.parser.ParseHeaderValidation(response)
	if err != nil {
		return v.fallback("Failed to parse validation response")
	}

	v.logger.Info("header validation complete",
		zap.Bool("is_suitable", result.IsSuitable),
		zap.String("confidence", result.Confidence))
	return result
}

// fallback defaults is_suitable to true so users are not blocked when
// validation infrastructure is down.
func (v *HeaderValidator) fallback(errorMessage string) *models.HeaderValidation {
	v.logger.Error("header validation unavailable, using permissive fallback",
		zap.String("reason", errorMessage))

	return &models.HeaderValidation{
		IsSuitable: true,
		Confidence: "low",
		Reasoning: fmt.Sprintf(
			"Automatic validation unavailable: %s. Proceeding with caution.", errorMessage),
		IdentifiedFields:      map[string]string{},
		MissingCriticalFields: []string{},
		Recommendations:       "Manual review recommended",
		Message: fmt.Sprintf(
			"Unable to validate headers (%s). You can proceed, but ensure your data contains customer behavioral metrics.",
			errorMessage),
	}
}
