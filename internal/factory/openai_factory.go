package factory

import (
	"fmt"

	"github.com/mikey/reply-intel/internal/adapters/openai"
	"github.com/mikey/reply-intel/internal/config"
	"github.com/mikey/reply-intel/internal/core"
	"github.com/mikey/reply-intel/internal/utils"
	openaisdk "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIFactory creates OpenAI classifiers
type OpenAIFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewOpenAIFactory creates a new OpenAI factory
func NewOpenAIFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *OpenAIFactory {
	return &OpenAIFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateClassifier creates an OpenAI classifier
func (f *OpenAIFactory) CreateClassifier() (core.TextClassifier, error) {
	openaiCfg := f.cfg.GetOpenAI()
	if openaiCfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	return openai.NewOpenAIClient(
		openaisdk.NewClient(openaiCfg.APIKey),
		openaiCfg.ModelName,
		openaiCfg.MaxTokens,
		openaiCfg.Temperature,
		openaiCfg.TopP,
		openaiCfg.MaxBodySize,
		f.textProcessor,
		f.logger,
	), nil
}
