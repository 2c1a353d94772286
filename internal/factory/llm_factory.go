package factory

import (
	"fmt"

	"github.com/mikey/reply-intel/internal/config"
	"github.com/mikey/reply-intel/internal/core"
	"github.com/mikey/reply-intel/internal/utils"
	"go.uber.org/zap"
)

// LLMFactory creates the text classifier for the configured provider
type LLMFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewLLMFactory creates a new LLM factory
func NewLLMFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *LLMFactory {
	return &LLMFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateClassifier creates a new text classifier based on the configuration
func (f *LLMFactory) CreateClassifier() (core.TextClassifier, error) {
	llmConfig := f.cfg.GetLLM()

	switch llmConfig.Provider {
	case "anthropic":
		return NewAnthropicFactory(f.cfg, f.logger, f.textProcessor).CreateClassifier()
	case "bedrock":
		return NewBedrockFactory(f.cfg, f.logger, f.textProcessor).CreateClassifier()
	case "gemini":
		return NewGeminiFactory(f.cfg, f.logger, f.textProcessor).CreateClassifier()
	case "openai":
		return NewOpenAIFactory(f.cfg, f.logger, f.textProcessor).CreateClassifier()
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", llmConfig.Provider)
	}
}
