package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mikey/reply-intel/internal/core"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SemanticOptions controls the semantic phase
type SemanticOptions struct {
	Concurrency  int
	CacheEnabled bool
	CacheTTL     time.Duration
}

// SemanticStats summarizes one semantic batch
type SemanticStats struct {
	Input     int
	Degraded  map[core.Degradation]int
	CacheHits int
	Failures  []core.Failure
}

// DegradedTotal is the number of replies that fell back to cold
func (s SemanticStats) DegradedTotal() int {
	n := 0
	for _, c := range s.Degraded {
		n += c
	}
	return n
}

// SemanticClassifier runs pass-through replies through the text classifier.
// A failed call never aborts the batch; the reply degrades to cold instead.
type SemanticClassifier struct {
	classifier core.TextClassifier
	cache      core.VerdictCache
	opts       SemanticOptions
	budgets    *Budgets
	logger     *zap.Logger
}

// NewSemanticClassifier creates the semantic phase. cache may be nil.
func NewSemanticClassifier(
	classifier core.TextClassifier,
	cache core.VerdictCache,
	opts SemanticOptions,
	budgets *Budgets,
	logger *zap.Logger,
) *SemanticClassifier {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if cache == nil {
		opts.CacheEnabled = false
	}
	return &SemanticClassifier{
		classifier: classifier,
		cache:      cache,
		opts:       opts,
		budgets:    budgets,
		logger:     logger,
	}
}

// ClassifyAll classifies replies concurrently; results keep the input order
func (s *SemanticClassifier) ClassifyAll(ctx context.Context, ws core.Workspace, replies []core.Reply) ([]core.Classified, SemanticStats) {
	stats := SemanticStats{Input: len(replies), Degraded: make(map[core.Degradation]int)}
	out := make([]core.Classified, len(replies))
	limiter := s.budgets.Limiter(ScopeSemantic, ws.Platform, ws.ID)

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.opts.Concurrency)

	for i, r := range replies {
		g.Go(func() error {
			var (
				res    core.ClassificationResult
				cached bool
				err    error
			)
			if werr := limiter.Wait(ctx); werr != nil {
				res, err = degrade(r.ID, core.DegradedServiceError, werr), werr
			} else {
				res, cached, err = s.safeClassifyOne(ctx, ws, r)
			}
			out[i] = core.Classified{Reply: r, Result: res}

			mu.Lock()
			defer mu.Unlock()
			if cached {
				stats.CacheHits++
			}
			if res.Degraded != core.DegradedNone {
				stats.Degraded[res.Degraded]++
				stats.Failures = append(stats.Failures, core.Failure{
					Stage: core.StageClassify,
					Ref:   r.ID,
					Error: fmt.Sprintf("%s: %v", res.Degraded, err),
				})
			}
			return nil // don't abort batch on individual failure
		})
	}
	_ = g.Wait()

	return out, stats
}

// safeClassifyOne turns a classifier panic into a degraded result. errgroup
// goroutines are not covered by the orchestrator's recover.
func (s *SemanticClassifier) safeClassifyOne(ctx context.Context, ws core.Workspace, r core.Reply) (res core.ClassificationResult, cached bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("classifier panic: %v", p)
			s.logger.Error("Recovered from classifier panic",
				zap.String("workspace", ws.ID),
				zap.String("reply_id", r.ID),
				zap.Any("panic", p))
			res, cached = degrade(r.ID, core.DegradedServiceError, err), false
		}
	}()
	return s.classifyOne(ctx, ws, r)
}

func (s *SemanticClassifier) classifyOne(ctx context.Context, ws core.Workspace, r core.Reply) (core.ClassificationResult, bool, error) {
	key := cacheKey(ws, r)
	if s.opts.CacheEnabled {
		if entry, err := s.cache.Get(ctx, key); err == nil {
			s.logger.Debug("Cache hit for reply", zap.String("reply_id", r.ID))
			return core.ClassificationResult{
				ReplyID:   r.ID,
				Tier:      entry.Tier,
				Method:    core.MethodSemantic,
				Rationale: entry.Rationale,
				Model:     entry.Model,
			}, true, nil
		}
	}

	verdict, err := s.classifier.ClassifyText(ctx, core.ClassifyRequest{
		ReplyID: r.ID,
		Subject: r.Subject,
		Body:    r.Body,
	})
	if err != nil {
		reason := degradationFor(err)
		s.logger.Warn("Semantic classification failed, treating as cold",
			zap.String("workspace", ws.ID),
			zap.String("reply_id", r.ID),
			zap.String("degraded", string(reason)),
			zap.Error(err))
		return degrade(r.ID, reason, err), false, err
	}

	tier := verdict.Tier
	if !tier.Promising() && tier != core.TierCold {
		tier = core.TierCold
	}
	res := core.ClassificationResult{
		ReplyID:   r.ID,
		Tier:      tier,
		Method:    core.MethodSemantic,
		Rationale: verdict.Rationale,
		Model:     verdict.Model,
	}

	if s.opts.CacheEnabled {
		now := time.Now()
		entry := &core.CacheEntry{
			Key:       key,
			Tier:      tier,
			Rationale: verdict.Rationale,
			Model:     verdict.Model,
			CreatedAt: now,
			ExpiresAt: now.Add(s.opts.CacheTTL),
		}
		if err := s.cache.Set(ctx, entry); err != nil {
			s.logger.Error("Failed to update cache", zap.Error(err))
		}
	}

	return res, false, nil
}

func cacheKey(ws core.Workspace, r core.Reply) string {
	return fmt.Sprintf("%s:%s:%s", ws.Platform, ws.ID, r.ID)
}

func degradationFor(err error) core.Degradation {
	switch {
	case errors.Is(err, core.ErrMalformedResponse):
		return core.DegradedParseFailure
	case errors.Is(err, core.ErrQuotaExhausted), errors.Is(err, core.ErrRateLimited):
		return core.DegradedQuota
	default:
		return core.DegradedServiceError
	}
}

func degrade(replyID string, reason core.Degradation, err error) core.ClassificationResult {
	return core.ClassificationResult{
		ReplyID:   replyID,
		Tier:      core.TierCold,
		Method:    core.MethodSemantic,
		Degraded:  reason,
		Rationale: fmt.Sprintf("classification unavailable: %v", err),
	}
}
