package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/mikey/reply-intel/internal/adapters/verdict"
	"github.com/mikey/reply-intel/internal/core"
	"github.com/mikey/reply-intel/internal/utils"
	"go.uber.org/zap"
)

// AnthropicClient classifies replies with the Anthropic Messages API
type AnthropicClient struct {
	client        sdk.Client
	modelName     string
	maxTokens     int64
	temperature   float64
	maxBodySize   int
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
}

// NewAnthropicClient creates a new Anthropic client. Extra request options are
// passed to the SDK, which is how tests point it at a local server.
func NewAnthropicClient(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float64,
	maxBodySize int,
	textProcessor *utils.TextProcessor,
	logger *zap.Logger,
	opts ...option.RequestOption,
) *AnthropicClient {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicClient{
		client:        sdk.NewClient(opts...),
		modelName:     modelName,
		maxTokens:     int64(maxTokens),
		temperature:   temperature,
		maxBodySize:   maxBodySize,
		textProcessor: textProcessor,
		logger:        logger,
	}
}

// ClassifyText asks the model for the reply's interest tier
func (c *AnthropicClient) ClassifyText(ctx context.Context, req core.ClassifyRequest) (*core.SemanticVerdict, error) {
	req.Body = c.textProcessor.ProcessText(req.Body, c.maxBodySize)

	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.modelName),
		MaxTokens: c.maxTokens,
		System:    []sdk.TextBlockParam{{Text: verdict.SystemPrompt}},
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(verdict.Prompt(req)))},
	}
	params.Temperature = sdk.Float(c.temperature)

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyError(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		text.WriteString(block.Text)
	}

	c.logger.Debug("Received model response",
		zap.String("reply_id", req.ReplyID),
		zap.String("model", string(msg.Model)),
		zap.Int64("output_tokens", msg.Usage.OutputTokens))

	return verdict.Parse(text.String(), c.modelName)
}

func classifyError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests:
			return fmt.Errorf("anthropic: %w: %v", core.ErrQuotaExhausted, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("anthropic: %w: %v", core.ErrInvalidCredential, err)
		}
	}
	return fmt.Errorf("anthropic: create message: %w", err)
}
