package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/reply-intel/internal/config"
	"github.com/mikey/reply-intel/internal/core"
	"github.com/mikey/reply-intel/internal/factory"
	"github.com/mikey/reply-intel/internal/keyword"
	"github.com/mikey/reply-intel/internal/logging"
	"github.com/mikey/reply-intel/internal/pipeline"
	"github.com/mikey/reply-intel/internal/ports"
	"github.com/mikey/reply-intel/internal/senders"
	"github.com/mikey/reply-intel/internal/utils"
)

// BuildContainer creates and configures the dependency injection container
// for a full pipeline run
func BuildContainer(cfg *config.Config) (*dig.Container, error) {
	container, err := buildClassification(cfg)
	if err != nil {
		return nil, err
	}

	// Register platform clients and their pagination
	if err := container.Provide(factory.NewPlatformFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.PlatformFactory) core.PlatformProvider {
		return f
	}); err != nil {
		return nil, err
	}

	// Register the later phases
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (*pipeline.TimingValidator, error) {
		threshold, err := cfg.GetTimingThreshold()
		if err != nil {
			return nil, err
		}
		return pipeline.NewTimingValidator(threshold, logger), nil
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *pipeline.Marker {
		return pipeline.NewMarker(cfg.GetBool("pipeline.dry_run"), logger)
	}); err != nil {
		return nil, err
	}

	// Register the workspace runner
	if err := container.Provide(func(
		platforms *factory.PlatformFactory,
		kw *keyword.Filter,
		semantic *pipeline.SemanticClassifier,
		timing *pipeline.TimingValidator,
		marker *pipeline.Marker,
		checker *senders.Checker,
		logger *zap.Logger,
	) (*pipeline.Runner, error) {
		pagers, err := platforms.CreatePagers(checker)
		if err != nil {
			return nil, err
		}
		return pipeline.NewRunner(pipeline.RunnerDeps{
			Platforms: platforms,
			Pagers:    pagers,
			Keyword:   kw,
			Semantic:  semantic,
			Timing:    timing,
			Marker:    marker,
			Senders:   checker,
			Logger:    logger,
		}), nil
	}); err != nil {
		return nil, err
	}

	// Register the fan-out orchestrator
	if err := container.Provide(func(cfg *config.Config, runner *pipeline.Runner, logger *zap.Logger) (*pipeline.Orchestrator, error) {
		pc, err := cfg.GetPipeline()
		if err != nil {
			return nil, err
		}
		return pipeline.NewOrchestrator(runner, pipeline.OrchestratorOptions{
			Workers:  pc.Workers,
			Deadline: pc.Deadline,
			DryRun:   pc.DryRun,
		}, logger), nil
	}); err != nil {
		return nil, err
	}

	// Register workspace source
	if err := container.Provide(factory.NewWorkspaceSourceFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.WorkspaceSourceFactory) (ports.WorkspaceSource, error) {
		return f.CreateWorkspaceSource()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// buildClassification registers what both the pipeline and single-reply
// classification need: configuration, logging and phases 1 and 2
func buildClassification(cfg *config.Config) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(func() *config.Config { return cfg }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}

	// Register text classifier
	if err := container.Provide(func(f *factory.LLMFactory) (core.TextClassifier, error) {
		return f.CreateClassifier()
	}); err != nil {
		return nil, err
	}

	// Register verdict cache, nil when disabled
	if err := container.Provide(func(f *factory.CacheFactory) (factory.StoppableCache, error) {
		return f.CreateCache()
	}); err != nil {
		return nil, err
	}

	// Register rate budgets shared by every workspace run
	if err := container.Provide(func(cfg *config.Config) *pipeline.Budgets {
		sc := cfg.GetSemantic()
		budgets := pipeline.NewBudgets(pipeline.Limit{})
		for _, p := range []core.Platform{core.PlatformInstantly, core.PlatformBison} {
			budgets.SetLimit(pipeline.ScopeSemantic, p, pipeline.Limit{PerSecond: sc.RatePerSecond, Burst: sc.Burst})
		}
		return budgets
	}); err != nil {
		return nil, err
	}

	// Register internal sender checker
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *senders.Checker {
		domains, locals := cfg.GetSenders()
		if len(domains) > 0 {
			logger.Info("Loaded internal domains", zap.Strings("domains", domains))
		}
		return senders.NewChecker(domains, locals, logger)
	}); err != nil {
		return nil, err
	}

	// Register keyword filter
	if err := container.Provide(keyword.New); err != nil {
		return nil, err
	}

	// Register semantic classifier
	if err := container.Provide(func(
		cfg *config.Config,
		classifier core.TextClassifier,
		cache factory.StoppableCache,
		budgets *pipeline.Budgets,
		logger *zap.Logger,
	) (*pipeline.SemanticClassifier, error) {
		cacheCfg, err := cfg.GetCache()
		if err != nil {
			return nil, err
		}
		var verdicts core.VerdictCache
		if cache != nil {
			verdicts = cache
		}
		return pipeline.NewSemanticClassifier(classifier, verdicts, pipeline.SemanticOptions{
			Concurrency:  cfg.GetSemantic().Concurrency,
			CacheEnabled: cacheCfg.Enabled,
			CacheTTL:     cacheCfg.TTL,
		}, budgets, logger), nil
	}); err != nil {
		return nil, err
	}

	return container, nil
}
