package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mikey/reply-intel/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func semanticReplies(n int) []core.Reply {
	out := make([]core.Reply, n)
	for i := range out {
		out[i] = core.Reply{ID: fmt.Sprintf("r%d", i), Body: fmt.Sprintf("body %d", i), Subject: "Re: intro"}
	}
	return out
}

func TestSemanticDegradesInsteadOfFailing(t *testing.T) {
	m := &mockClassifier{}
	m.On("ClassifyText", mock.Anything, mock.MatchedBy(func(r core.ClassifyRequest) bool { return r.ReplyID == "r0" })).
		Return(&core.SemanticVerdict{Tier: core.TierHot, Rationale: "asks for a call", Model: "m"}, nil)
	m.On("ClassifyText", mock.Anything, mock.MatchedBy(func(r core.ClassifyRequest) bool { return r.ReplyID == "r1" })).
		Return(nil, fmt.Errorf("decode: %w", core.ErrMalformedResponse))
	m.On("ClassifyText", mock.Anything, mock.MatchedBy(func(r core.ClassifyRequest) bool { return r.ReplyID == "r2" })).
		Return(nil, fmt.Errorf("429: %w", core.ErrQuotaExhausted))
	m.On("ClassifyText", mock.Anything, mock.MatchedBy(func(r core.ClassifyRequest) bool { return r.ReplyID == "r3" })).
		Return(nil, errors.New("connection reset"))

	s := NewSemanticClassifier(m, nil, SemanticOptions{Concurrency: 2}, NewBudgets(Limit{}), zap.NewNop())
	out, stats := s.ClassifyAll(context.Background(), testWorkspace("ws"), semanticReplies(4))

	require.Len(t, out, 4)
	for i, c := range out {
		assert.Equal(t, fmt.Sprintf("r%d", i), c.Reply.ID, "input order kept")
		assert.Equal(t, core.MethodSemantic, c.Result.Method)
	}
	assert.Equal(t, core.TierHot, out[0].Result.Tier)
	assert.Equal(t, core.DegradedNone, out[0].Result.Degraded)

	assert.Equal(t, core.TierCold, out[1].Result.Tier)
	assert.Equal(t, core.DegradedParseFailure, out[1].Result.Degraded)
	assert.Equal(t, core.DegradedQuota, out[2].Result.Degraded)
	assert.Equal(t, core.DegradedServiceError, out[3].Result.Degraded)

	assert.Equal(t, 3, stats.DegradedTotal())
	assert.Len(t, stats.Failures, 3)
	m.AssertNumberOfCalls(t, "ClassifyText", 4)
}

func TestSemanticFoldsUnknownTiersToCold(t *testing.T) {
	c := funcClassifier(func(req core.ClassifyRequest) (*core.SemanticVerdict, error) {
		return &core.SemanticVerdict{Tier: core.TierAutoReply, Rationale: "vacation"}, nil
	})
	s := NewSemanticClassifier(c, nil, SemanticOptions{}, NewBudgets(Limit{}), zap.NewNop())
	out, stats := s.ClassifyAll(context.Background(), testWorkspace("ws"), semanticReplies(1))

	assert.Equal(t, core.TierCold, out[0].Result.Tier)
	assert.Equal(t, core.DegradedNone, out[0].Result.Degraded)
	assert.Zero(t, stats.DegradedTotal())
}

func TestSemanticRespectsConcurrencyLimit(t *testing.T) {
	var inFlight, peak int32
	c := funcClassifier(func(req core.ClassifyRequest) (*core.SemanticVerdict, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return &core.SemanticVerdict{Tier: core.TierCold}, nil
	})
	s := NewSemanticClassifier(c, nil, SemanticOptions{Concurrency: 3}, NewBudgets(Limit{}), zap.NewNop())
	out, _ := s.ClassifyAll(context.Background(), testWorkspace("ws"), semanticReplies(20))

	assert.Len(t, out, 20)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestSemanticCache(t *testing.T) {
	ws := testWorkspace("ws")
	cache := &mockCache{}
	cache.On("Get", mock.Anything, "instantly:ws:r0").Return(&core.CacheEntry{Tier: core.TierWarm, Rationale: "cached"}, nil)
	cache.On("Get", mock.Anything, "instantly:ws:r1").Return(nil, core.ErrNotFound)
	cache.On("Set", mock.Anything, mock.MatchedBy(func(e *core.CacheEntry) bool {
		return e.Key == "instantly:ws:r1" && e.Tier == core.TierHot && e.ExpiresAt.After(e.CreatedAt)
	})).Return(nil)

	m := &mockClassifier{}
	m.On("ClassifyText", mock.Anything, mock.Anything).Return(&core.SemanticVerdict{Tier: core.TierHot}, nil)

	s := NewSemanticClassifier(m, cache, SemanticOptions{CacheEnabled: true, CacheTTL: time.Hour}, NewBudgets(Limit{}), zap.NewNop())
	out, stats := s.ClassifyAll(context.Background(), ws, semanticReplies(2))

	assert.Equal(t, core.TierWarm, out[0].Result.Tier)
	assert.Equal(t, core.TierHot, out[1].Result.Tier)
	assert.Equal(t, 1, stats.CacheHits)
	m.AssertNumberOfCalls(t, "ClassifyText", 1)
	cache.AssertExpectations(t)
}

func TestSemanticDoesNotCacheFailures(t *testing.T) {
	cache := &mockCache{}
	cache.On("Get", mock.Anything, mock.Anything).Return(nil, core.ErrNotFound)

	m := &mockClassifier{}
	m.On("ClassifyText", mock.Anything, mock.Anything).Return(nil, core.ErrMalformedResponse)

	s := NewSemanticClassifier(m, cache, SemanticOptions{CacheEnabled: true, CacheTTL: time.Hour}, NewBudgets(Limit{}), zap.NewNop())
	s.ClassifyAll(context.Background(), testWorkspace("ws"), semanticReplies(1))

	cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything)
}

func TestBudgetsShareLimiterPerKey(t *testing.T) {
	b := NewBudgets(Limit{PerSecond: 1, Burst: 1})
	b.SetLimit(ScopePlatform, core.PlatformBison, Limit{PerSecond: 3, Burst: 3})

	a1 := b.Limiter(ScopePlatform, core.PlatformInstantly, "a")
	a2 := b.Limiter(ScopePlatform, core.PlatformInstantly, "a")
	other := b.Limiter(ScopePlatform, core.PlatformInstantly, "b")
	bison := b.Limiter(ScopePlatform, core.PlatformBison, "a")

	assert.Same(t, a1, a2)
	assert.NotSame(t, a1, other)
	assert.Equal(t, 3, bison.Burst())
	assert.Equal(t, 1, a1.Burst())
}

func TestSemanticRecoversClassifierPanic(t *testing.T) {
	c := funcClassifier(func(req core.ClassifyRequest) (*core.SemanticVerdict, error) {
		if req.ReplyID == "r1" {
			panic("classifier blew up")
		}
		return &core.SemanticVerdict{Tier: core.TierHot}, nil
	})
	s := NewSemanticClassifier(c, nil, SemanticOptions{Concurrency: 2}, NewBudgets(Limit{}), zap.NewNop())
	out, stats := s.ClassifyAll(context.Background(), testWorkspace("ws"), semanticReplies(3))

	require.Len(t, out, 3)
	assert.Equal(t, core.TierHot, out[0].Result.Tier)
	assert.Equal(t, core.TierCold, out[1].Result.Tier)
	assert.Equal(t, core.DegradedServiceError, out[1].Result.Degraded)
	assert.Equal(t, core.TierHot, out[2].Result.Tier)
	require.Len(t, stats.Failures, 1)
	assert.Equal(t, "r1", stats.Failures[0].Ref)
	assert.Contains(t, stats.Failures[0].Error, "classifier blew up")
}
