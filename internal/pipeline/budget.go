package pipeline

import (
	"sync"

	"github.com/mikey/reply-intel/internal/core"
	"golang.org/x/time/rate"
)

// Scope separates budgets for different kinds of calls
type Scope string

const (
	ScopePlatform Scope = "platform"
	ScopeSemantic Scope = "semantic"
)

// Limit is a rate and burst pair
type Limit struct {
	PerSecond float64
	Burst     int
}

type budgetKey struct {
	scope     Scope
	platform  core.Platform
	workspace string
}

// Budgets hands out one rate limiter per (scope, platform, workspace). Limiters
// are created on first use and shared by every caller with the same key.
type Budgets struct {
	mu       sync.Mutex
	limits   map[Scope]map[core.Platform]Limit
	fallback Limit
	limiters map[budgetKey]*rate.Limiter
}

// NewBudgets creates an empty registry. Keys without a configured limit use fallback.
func NewBudgets(fallback Limit) *Budgets {
	return &Budgets{
		limits:   make(map[Scope]map[core.Platform]Limit),
		fallback: fallback,
		limiters: make(map[budgetKey]*rate.Limiter),
	}
}

// SetLimit configures the limit for a scope and platform
func (b *Budgets) SetLimit(scope Scope, platform core.Platform, l Limit) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.limits[scope] == nil {
		b.limits[scope] = make(map[core.Platform]Limit)
	}
	b.limits[scope][platform] = l
}

// Limiter returns the limiter for a key
func (b *Budgets) Limiter(scope Scope, platform core.Platform, workspaceID string) *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := budgetKey{scope: scope, platform: platform, workspace: workspaceID}
	if l, ok := b.limiters[key]; ok {
		return l
	}
	limit, ok := b.limits[scope][platform]
	if !ok {
		limit = b.fallback
	}
	l := newLimiter(limit)
	b.limiters[key] = l
	return l
}

func newLimiter(l Limit) *rate.Limiter {
	if l.PerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := l.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(l.PerSecond), burst)
}
