// Package prompt assembles the exact text sent to the model. System
// instructions and task templates are loaded from external prompt files;
// when a file is unavailable the assembler degrades gracefully to a
// short built-in instruction instead of failing.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/churnlabs/churnguard/internal/models"
)

// Built-in fallbacks used when a prompt file cannot be read.
const (
	analysisSystemFallback   = "You are ChurnGuard AI, an expert customer retention analyst."
	analysisTemplateFallback = "## Customer Data to Analyze\n\n{csv_text}\n\n## Analysis Output:"
	querySystemFallback      = "You are a customer retention analyst for ChurnGuard."
	queryTemplateFallback    = "{context}\n{conversation_history}\n\n**Question:** {question}\n\n**Answer:**"
	headerPromptFallback     = "Analyze these CSV headers and determine if churn prediction is possible."
)

var placeholderPattern = regexp.MustCompile(`\{[a-z_]+\}`)

// Assembler combines system instructions, task templates and serialized
// data into final prompt text.
type Assembler struct {
	analysisSystem   string
	analysisTemplate string
	querySystem      string
	queryTemplate    string
	headerPrompt     string
	logger           *zap.Logger
}

func NewAssembler(promptsDir string, logger *zap.Logger) *Assembler {
	return &Assembler{
		analysisSystem:   loadPromptFile(promptsDir, "churn_analysis_system_prompt.txt", analysisSystemFallback, logger),
		analysisTemplate: loadPromptFile(promptsDir, "csv_analysis_user_prompt_template.txt", analysisTemplateFallback, logger),
		querySystem:      loadPromptFile(promptsDir, "nlq_system_prompt.txt", querySystemFallback, logger),
		queryTemplate:    loadPromptFile(promptsDir, "nlq_user_prompt_template.txt", queryTemplateFallback, logger),
		headerPrompt:     loadPromptFile(promptsDir, "csv_header_validation_prompt.txt", headerPromptFallback, logger),
		logger:           logger,
	}
}

// AnalysisPrompt builds the analysis-mode prompt: system instruction
// plus the serialized table. The output-format reminder travels inside
// the serialized text.
func (a *Assembler) AnalysisPrompt(csvText string) (string, error) {
	userPrompt, err := render(a.analysisTemplate,
		map[string]string{"csv_text": csvText}, "csv_text")
	if err != nil {
		return "", fmt.Errorf("analysis prompt template: %w", err)
	}
	return a.analysisSystem + "\n\n" + userPrompt, nil
}

// QueryPrompt builds the query-mode prompt from the dataset context
// block (full-table info or statistical summary), the truncated
// conversation history and the current question. The question is a hard
// requirement of the template; its absence is an error, never a blank
// prompt.
func (a *Assembler) QueryPrompt(question, conversation, dataInfo string) (string, error) {
	userPrompt, err := render(a.queryTemplate, map[string]string{
		"context":              dataInfo,
		"conversation_history": conversation,
		"question":             question,
	}, "question")
	if err != nil {
		return "", fmt.Errorf("query prompt template: %w", err)
	}
	return a.querySystem + "\n\n" + userPrompt, nil
}

// HeaderValidationPrompt builds the header suitability check prompt.
func (a *Assembler) HeaderValidationPrompt(headers []string) string {
	return fmt.Sprintf(`%s

## CSV Headers to Validate

The uploaded CSV file has the following column headers:

%s

## Your Analysis

Analyze these headers and provide your validation response in JSON format as specified above.`,
		a.headerPrompt, strings.Join(headers, ", "))
}

// ConversationContext renders the bounded conversation window: the most
// recent limit messages, each truncated to maxContentLen characters.
func ConversationContext(history []models.ChatMessage, limit, maxContentLen int) string {
	if len(history) == 0 {
		return ""
	}
	if len(history) > limit {
		history = history[len(history)-limit:]
	}

	var b strings.Builder
	b.WriteString("\n**Previous Conversation:**\n")
	for _, msg := range history {
		role := "Assistant"
		if msg.Role == models.ChatRoleUser {
			role = "User"
		}
		content := msg.Content
		if len(content) > maxContentLen {
			content = content[:maxContentLen] + "..."
		}
		fmt.Fprintf(&b, "%s: %s\n", role, content)
	}
	return b.String()
}

// render substitutes {name} placeholders. Every name in required must
// appear in the template, and the template may not reference a
// placeholder with no value; both conditions surface as errors.
func render(tmpl string, vars map[string]string, required ...string) (string, error) {
	for _, name := range required {
		if !strings.Contains(tmpl, "{"+name+"}") {
			return "", fmt.Errorf("template missing required placeholder {%s}", name)
		}
	}

	for _, ref := range placeholderPattern.FindAllString(tmpl, -1) {
		name := strings.Trim(ref, "{}")
		if _, ok := vars[name]; !ok {
			return "", fmt.Errorf("template has unresolved placeholder %s", ref)
		}
	}

	out := tmpl
	for name, value := range vars {
		out = strings.ReplaceAll(out, "{"+name+"}", value)
	}
	return out, nil
}

func loadPromptFile(dir, filename, fallback string, logger *zap.Logger) string {
	path := filepath.Join(dir, filename)
	content, err := os.ReadFile(path)
	if err != nil {
		logger.Error("prompt file not found, using fallback",
			zap.String("path", path),
			zap.Error(err))
		return fallback
	}
	logger.Debug("loaded prompt file", zap.String("path", path))
	return string(content)
}
