package factory

import (
	"fmt"

	"github.com/mikey/reply-intel/internal/adapters/anthropic"
	"github.com/mikey/reply-intel/internal/config"
	"github.com/mikey/reply-intel/internal/core"
	"github.com/mikey/reply-intel/internal/utils"
	"go.uber.org/zap"
)

// AnthropicFactory creates Anthropic classifiers
type AnthropicFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewAnthropicFactory creates a new Anthropic factory
func NewAnthropicFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *AnthropicFactory {
	return &AnthropicFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateClassifier creates an Anthropic classifier
func (f *AnthropicFactory) CreateClassifier() (core.TextClassifier, error) {
	anthropicCfg := f.cfg.GetAnthropic()
	if anthropicCfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	return anthropic.NewAnthropicClient(
		anthropicCfg.APIKey,
		anthropicCfg.ModelName,
		anthropicCfg.MaxTokens,
		anthropicCfg.Temperature,
		anthropicCfg.MaxBodySize,
		f.textProcessor,
		f.logger,
	), nil
}
