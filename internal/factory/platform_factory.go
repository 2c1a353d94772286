package factory

import (
	"fmt"

	"github.com/mikey/reply-intel/internal/adapters/bison"
	"github.com/mikey/reply-intel/internal/adapters/httpapi"
	"github.com/mikey/reply-intel/internal/adapters/instantly"
	"github.com/mikey/reply-intel/internal/config"
	"github.com/mikey/reply-intel/internal/core"
	"github.com/mikey/reply-intel/internal/pagination"
	"github.com/mikey/reply-intel/internal/pipeline"
	"github.com/mikey/reply-intel/internal/senders"
	"github.com/mikey/reply-intel/internal/utils"
	"go.uber.org/zap"
)

const userAgent = "reply-intel/1.0"

var platforms = []core.Platform{core.PlatformInstantly, core.PlatformBison}

// PlatformFactory builds workspace-scoped platform clients. Each client gets
// its own credential and the rate limiter for its (platform, workspace) pair.
type PlatformFactory struct {
	cfg           *config.Config
	budgets       *pipeline.Budgets
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
}

// NewPlatformFactory creates a new platform factory and registers each
// platform's request budget
func NewPlatformFactory(cfg *config.Config, budgets *pipeline.Budgets, textProcessor *utils.TextProcessor, logger *zap.Logger) (*PlatformFactory, error) {
	for _, p := range platforms {
		pcfg, err := cfg.GetPlatform(string(p))
		if err != nil {
			return nil, err
		}
		budgets.SetLimit(pipeline.ScopePlatform, p, pipeline.Limit{PerSecond: pcfg.RatePerSecond, Burst: pcfg.Burst})
	}
	return &PlatformFactory{
		cfg:           cfg,
		budgets:       budgets,
		textProcessor: textProcessor,
		logger:        logger,
	}, nil
}

// ForWorkspace creates the platform client for one workspace
func (f *PlatformFactory) ForWorkspace(ws core.Workspace) (core.PlatformClient, error) {
	pcfg, err := f.cfg.GetPlatform(string(ws.Platform))
	if err != nil {
		return nil, err
	}
	pag, err := f.cfg.GetPagination()
	if err != nil {
		return nil, err
	}

	logger := f.logger.With(zap.String("workspace", ws.ID), zap.String("platform", string(ws.Platform)))
	api := httpapi.New(httpapi.Options{
		BaseURL:     pcfg.BaseURL,
		APIKey:      ws.APIKey,
		Timeout:     pcfg.Timeout,
		UserAgent:   userAgent,
		Limiter:     f.budgets.Limiter(pipeline.ScopePlatform, ws.Platform, ws.ID),
		MaxAttempts: pag.MaxAttempts,
		Backoff:     pag.InitialBackoff,
	}, logger)

	switch ws.Platform {
	case core.PlatformInstantly:
		return instantly.NewClient(api, ws, pcfg.PageSize, f.textProcessor, logger), nil
	case core.PlatformBison:
		return bison.NewClient(api, ws, pcfg.PageSize, f.textProcessor, logger), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", ws.Platform)
	}
}

// CreatePagers creates one pagination adapter per platform using the
// platform's configured strategy
func (f *PlatformFactory) CreatePagers(checker *senders.Checker) (map[core.Platform]*pagination.Adapter, error) {
	pag, err := f.cfg.GetPagination()
	if err != nil {
		return nil, err
	}

	pagers := make(map[core.Platform]*pagination.Adapter, len(platforms))
	for _, p := range platforms {
		pcfg, err := f.cfg.GetPlatform(string(p))
		if err != nil {
			return nil, err
		}
		strategy, err := pagination.ParseStrategy(pcfg.Strategy)
		if err != nil {
			return nil, fmt.Errorf("platform %s: %w", p, err)
		}
		pagers[p] = pagination.NewAdapter(pagination.Options{
			Strategy:       strategy,
			MaxAttempts:    pag.MaxAttempts,
			InitialBackoff: pag.InitialBackoff,
			MaxBackoff:     pag.MaxBackoff,
			MaxJitter:      pag.MaxJitter,
			MaxPages:       pag.MaxPages,
		}, checker, f.logger.With(zap.String("platform", string(p))))
	}
	return pagers, nil
}
