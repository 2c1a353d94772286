package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/mikey/reply-intel/internal/adapters/verdict"
	"github.com/mikey/reply-intel/internal/core"
	"github.com/mikey/reply-intel/internal/utils"
	"go.uber.org/zap"
)

// InvokeAPI is the part of the Bedrock runtime client used here
type InvokeAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockClient classifies replies with a model hosted on Amazon Bedrock
type BedrockClient struct {
	client        InvokeAPI
	modelID       string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
}

// NewBedrockClient creates a new Bedrock client
func NewBedrockClient(
	client InvokeAPI,
	modelID string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	textProcessor *utils.TextProcessor,
	logger *zap.Logger,
) *BedrockClient {
	return &BedrockClient{
		client:        client,
		modelID:       modelID,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		textProcessor: textProcessor,
		logger:        logger,
	}
}

// ClassifyText asks the model for the reply's interest tier
func (c *BedrockClient) ClassifyText(ctx context.Context, req core.ClassifyRequest) (*core.SemanticVerdict, error) {
	req.Body = c.textProcessor.ProcessText(req.Body, c.maxBodySize)

	payload, err := c.payload(verdict.Prompt(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, classifyError(err)
	}

	text, err := c.responseText(resp.Body)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Received model response", zap.String("reply_id", req.ReplyID), zap.String("model", c.modelID))
	return verdict.Parse(text, c.modelID)
}

func (c *BedrockClient) payload(prompt string) ([]byte, error) {
	switch {
	case c.isAnthropicModel():
		return json.Marshal(map[string]any{
			"anthropic_version": "bedrock-2023-05-31",
			"max_tokens":        c.maxTokens,
			"temperature":       c.temperature,
			"top_p":             c.topP,
			"system":            verdict.SystemPrompt,
			"messages": []map[string]any{
				{"role": "user", "content": prompt},
			},
		})
	case c.isAmazonTitanModel():
		return json.Marshal(map[string]any{
			"inputText": verdict.SystemPrompt + "\n\n" + prompt,
			"textGenerationConfig": map[string]any{
				"maxTokenCount": c.maxTokens,
				"temperature":   c.temperature,
				"topP":          c.topP,
			},
		})
	default:
		return json.Marshal(map[string]any{
			"prompt":      verdict.SystemPrompt + "\n\n" + prompt,
			"max_tokens":  c.maxTokens,
			"temperature": c.temperature,
			"top_p":       c.topP,
		})
	}
}

func (c *BedrockClient) responseText(body []byte) (string, error) {
	switch {
	case c.isAnthropicModel():
		var resp struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("%w: unmarshal Claude response: %v", core.ErrMalformedResponse, err)
		}
		var b strings.Builder
		for _, block := range resp.Content {
			b.WriteString(block.Text)
		}
		return b.String(), nil
	case c.isAmazonTitanModel():
		var resp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("%w: unmarshal Titan response: %v", core.ErrMalformedResponse, err)
		}
		if len(resp.Results) == 0 {
			return "", fmt.Errorf("%w: empty response from Titan model", core.ErrMalformedResponse)
		}
		return resp.Results[0].OutputText, nil
	default:
		var resp struct {
			Output     string `json:"output"`
			Text       string `json:"text"`
			Generation string `json:"generation"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return string(body), nil
		}
		for _, s := range []string{resp.Output, resp.Text, resp.Generation} {
			if s != "" {
				return s, nil
			}
		}
		return string(body), nil
	}
}

// isAnthropicModel checks if the model is an Anthropic Claude model
func (c *BedrockClient) isAnthropicModel() bool {
	return strings.Contains(c.modelID, "anthropic.claude")
}

// isAmazonTitanModel checks if the model is an Amazon Titan model
func (c *BedrockClient) isAmazonTitanModel() bool {
	return strings.HasPrefix(c.modelID, "amazon.titan")
}

func classifyError(err error) error {
	var throttled *types.ThrottlingException
	var quota *types.ServiceQuotaExceededException
	var denied *types.AccessDeniedException
	switch {
	case errors.As(err, &throttled), errors.As(err, &quota):
		return fmt.Errorf("bedrock: %w: %v", core.ErrQuotaExhausted, err)
	case errors.As(err, &denied):
		return fmt.Errorf("bedrock: %w: %v", core.ErrInvalidCredential, err)
	}
	return fmt.Errorf("failed to invoke Bedrock model: %w", err)
}
