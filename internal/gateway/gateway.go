// Package gateway is the single point of contact with the Gemini API.
// It owns request/response logging and converts provider failures into
// the typed errors the pipeline branches on.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	genai "google.golang.org/genai"
)

var (
	// ErrModelUnavailable means the gateway was never initialized with a
	// working client. Analysis aborts on it; header validation falls back
	// to a permissive default.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrGenerationFailed wraps provider errors from a generation call.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrUploadFailed wraps provider errors from a file upload. It is
	// never swallowed: query-mode correctness depends on knowing whether
	// the attachment succeeded.
	ErrUploadFailed = errors.New("file upload failed")
)

// FileHandle references a file artifact attached to the model session.
type FileHandle struct {
	Name     string
	URI      string
	MIMEType string
}

// Config holds the gateway settings.
type Config struct {
	APIKey          string
	Model           string
	MaxOutputTokens int
	Temperature     float64
	// LogPreviewLen bounds how much prompt/response text reaches the
	// logs. 0 disables previews entirely.
	LogPreviewLen int
}

// Gateway wraps the genai client. A gateway constructed without an API
// key is a valid, permanently unavailable gateway; callers check
// Available and receive ErrModelUnavailable from every call.
type Gateway struct {
	client *genai.Client
	cfg    Config
	logger *zap.Logger
}

func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Gateway, error) {
	g := &Gateway{cfg: cfg, logger: logger}

	if cfg.APIKey == "" {
		logger.Error("gemini API key not configured, model gateway unavailable")
		return g, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	g.client = client
	logger.Info("model gateway initialized", zap.String("model", cfg.Model))
	return g, nil
}

func (g *Gateway) Available() bool { return g.client != nil }

// GenerateText sends the final prompt text, optionally with an attached
// file, and returns the raw response text. Single attempt, no retry;
// there is no cancellation path once the call is issued.
func (g *Gateway) GenerateText(ctx context.Context, promptText string, file *FileHandle) (string, error) {
	if !g.Available() {
		return "", ErrModelUnavailable
	}

	parts := []*genai.Part{{Text: promptText}}
	if file != nil {
		parts = append(parts, &genai.Part{
			FileData: &genai.FileData{FileURI: file.URI, MIMEType: file.MIMEType},
		})
	}

	g.logger.Info("model request",
		zap.String("model", g.cfg.Model),
		zap.Int("prompt_len", len(promptText)),
		zap.Bool("has_file", file != nil),
		zap.String("prompt_preview", g.preview(promptText)))

	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model,
		[]*genai.Content{{Parts: parts}},
		g.generateConfig())
	if err != nil {
		g.logger.Error("model generation failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		g.logger.Error("model returned empty response")
		return "", fmt.Errorf("%w: empty response", ErrGenerationFailed)
	}

	text := resp.Candidates[0].Content.Parts[0].Text
	g.logger.Info("model response",
		zap.Int("response_len", len(text)),
		zap.String("response_preview", g.preview(text)))
	return text, nil
}

// UploadCSV attaches CSV content to the model session and returns its
// handle for later generation calls.
func (g *Gateway) UploadCSV(ctx context.Context, content []byte, displayName string) (*FileHandle, error) {
	if !g.Available() {
		return nil, ErrModelUnavailable
	}

	file, err := g.client.Files.Upload(ctx, bytes.NewReader(content), &genai.UploadFileConfig{
		MIMEType:    "text/csv",
		DisplayName: displayName,
	})
	if err != nil {
		g.logger.Error("CSV upload to model failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	g.logger.Info("CSV uploaded to model",
		zap.String("file_name", file.Name),
		zap.Int("size_bytes", len(content)))
	return &FileHandle{Name: file.Name, URI: file.URI, MIMEType: file.MIMEType}, nil
}

func (g *Gateway) generateConfig() *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if g.cfg.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(g.cfg.MaxOutputTokens)
	}
	if g.cfg.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(g.cfg.Temperature))
	}
	return cfg
}

func (g *Gateway) preview(s string) string {
	n := g.cfg.LogPreviewLen
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
