package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/mikey/reply-intel/internal/adapters/verdict"
	"github.com/mikey/reply-intel/internal/core"
	"github.com/mikey/reply-intel/internal/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIClient classifies replies with the OpenAI chat completions API
type OpenAIClient struct {
	client        *openai.Client
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(
	client *openai.Client,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	textProcessor *utils.TextProcessor,
	logger *zap.Logger,
) *OpenAIClient {
	return &OpenAIClient{
		client:        client,
		modelName:     modelName,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		textProcessor: textProcessor,
		logger:        logger,
	}
}

// ClassifyText asks the model for the reply's interest tier
func (c *OpenAIClient) ClassifyText(ctx context.Context, req core.ClassifyRequest) (*core.SemanticVerdict, error) {
	req.Body = c.textProcessor.ProcessText(req.Body, c.maxBodySize)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: verdict.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: verdict.Prompt(req)},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response from OpenAI", core.ErrMalformedResponse)
	}

	c.logger.Debug("Received model response",
		zap.String("reply_id", req.ReplyID),
		zap.String("model", resp.Model),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))

	return verdict.Parse(resp.Choices[0].Message.Content, c.modelName)
}

func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Type == "insufficient_quota" || apiErr.Code == "insufficient_quota" ||
			apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("openai: %w: %v", core.ErrQuotaExhausted, err)
		}
		if apiErr.HTTPStatusCode == http.StatusUnauthorized {
			return fmt.Errorf("openai: %w: %v", core.ErrInvalidCredential, err)
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("openai: %w: %v", core.ErrQuotaExhausted, err)
	}
	return fmt.Errorf("openai: create chat completion: %w", err)
}
