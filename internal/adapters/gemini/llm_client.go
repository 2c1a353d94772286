package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/reply-intel/internal/adapters/verdict"
	"github.com/mikey/reply-intel/internal/core"
	"github.com/mikey/reply-intel/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GeminiClient classifies replies with Google Gemini
type GeminiClient struct {
	client        *genai.Client
	model         *genai.GenerativeModel
	modelName     string
	maxBodySize   int
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	textProcessor *utils.TextProcessor,
	logger *zap.Logger,
) (*GeminiClient, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(verdict.SystemPrompt)}}

	return &GeminiClient{
		client:        client,
		model:         model,
		modelName:     modelName,
		maxBodySize:   maxBodySize,
		textProcessor: textProcessor,
		logger:        logger,
	}, nil
}

// Close closes the Gemini client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// ClassifyText asks the model for the reply's interest tier
func (c *GeminiClient) ClassifyText(ctx context.Context, req core.ClassifyRequest) (*core.SemanticVerdict, error) {
	req.Body = c.textProcessor.ProcessText(req.Body, c.maxBodySize)

	resp, err := c.model.GenerateContent(ctx, genai.Text(verdict.Prompt(req)))
	if err != nil {
		return nil, classifyError(err)
	}

	text := responseText(resp)
	if text == "" {
		return nil, fmt.Errorf("%w: empty response from Gemini", core.ErrMalformedResponse)
	}

	c.logger.Debug("Received model response", zap.String("reply_id", req.ReplyID))
	return verdict.Parse(text, c.modelName)
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

func classifyError(err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		switch gErr.Code {
		case http.StatusTooManyRequests:
			return fmt.Errorf("gemini: %w: %v", core.ErrQuotaExhausted, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("gemini: %w: %v", core.ErrInvalidCredential, err)
		}
	}
	msg := err.Error()
	if strings.Contains(msg, "RESOURCE_EXHAUSTED") || strings.Contains(msg, "Error 429") || strings.Contains(strings.ToLower(msg), "quota") {
		return fmt.Errorf("gemini: %w: %v", core.ErrQuotaExhausted, err)
	}
	return fmt.Errorf("gemini: generate content: %w", err)
}
