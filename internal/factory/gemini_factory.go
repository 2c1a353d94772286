package factory

import (
	"fmt"

	"github.com/mikey/reply-intel/internal/adapters/gemini"
	"github.com/mikey/reply-intel/internal/config"
	"github.com/mikey/reply-intel/internal/core"
	"github.com/mikey/reply-intel/internal/utils"
	"go.uber.org/zap"
)

// GeminiFactory creates Gemini classifiers
type GeminiFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewGeminiFactory creates a new Gemini factory
func NewGeminiFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *GeminiFactory {
	return &GeminiFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateClassifier creates a Gemini classifier
func (f *GeminiFactory) CreateClassifier() (core.TextClassifier, error) {
	geminiCfg := f.cfg.GetGemini()
	if geminiCfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	return gemini.NewGeminiClient(
		geminiCfg.APIKey,
		geminiCfg.ModelName,
		geminiCfg.MaxTokens,
		geminiCfg.Temperature,
		geminiCfg.TopP,
		geminiCfg.MaxBodySize,
		f.textProcessor,
		f.logger,
	)
}
