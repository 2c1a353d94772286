package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mikey/reply-intel/internal/core"
	"github.com/mikey/reply-intel/internal/keyword"
	"github.com/mikey/reply-intel/internal/pagination"
	"github.com/mikey/reply-intel/internal/senders"
	"go.uber.org/zap"
)

// Runner executes every phase for one workspace, strictly in order
type Runner struct {
	platforms core.PlatformProvider
	pagers    map[core.Platform]*pagination.Adapter
	keyword   *keyword.Filter
	semantic  *SemanticClassifier
	timing    *TimingValidator
	marker    *Marker
	senders   *senders.Checker
	logger    *zap.Logger
}

// RunnerDeps groups the collaborators of a Runner
type RunnerDeps struct {
	Platforms core.PlatformProvider
	Pagers    map[core.Platform]*pagination.Adapter
	Keyword   *keyword.Filter
	Semantic  *SemanticClassifier
	Timing    *TimingValidator
	Marker    *Marker
	Senders   *senders.Checker
	Logger    *zap.Logger
}

// NewRunner creates a workspace runner
func NewRunner(d RunnerDeps) *Runner {
	if d.Senders == nil {
		d.Senders = senders.NewChecker(nil, nil, d.Logger)
	}
	return &Runner{
		platforms: d.Platforms,
		pagers:    d.Pagers,
		keyword:   d.Keyword,
		semantic:  d.Semantic,
		timing:    d.Timing,
		marker:    d.Marker,
		senders:   d.Senders,
		logger:    d.Logger,
	}
}

// Run processes one workspace and always returns a report, never an error
func (r *Runner) Run(ctx context.Context, ws core.Workspace, window core.Window) (rep core.WorkspaceReport) {
	start := time.Now()
	logger := r.logger.With(zap.String("workspace", ws.ID), zap.String("platform", string(ws.Platform)))
	rep = core.WorkspaceReport{
		WorkspaceID:   ws.ID,
		Name:          ws.Name,
		Platform:      ws.Platform,
		Opportunities: []core.Opportunity{},
		Outcomes:      []core.MarkingOutcome{},
	}
	defer func() { rep.Duration = time.Since(start) }()

	if err := ws.Validate(); err != nil {
		return fail(rep, err)
	}
	client, err := r.platforms.ForWorkspace(ws)
	if err != nil {
		return fail(rep, fmt.Errorf("create platform client: %w", err))
	}
	pager, ok := r.pagers[ws.Platform]
	if !ok {
		return fail(rep, fmt.Errorf("no pagination configured for platform %s", ws.Platform))
	}

	// Phase 0: fetch
	fetched, err := pager.FetchAll(ctx, client, window, r.senders.With(ws.InternalDomains))
	if err != nil {
		if errors.Is(err, core.ErrInvalidCredential) {
			logger.Error("Workspace credential rejected", zap.Error(err))
		}
		return fail(rep, fmt.Errorf("fetch replies: %w", err))
	}
	rep.Strategy = string(fetched.Strategy)
	rep.Anomalies = append(rep.Anomalies, fetched.Anomalies...)
	rep.Failures = append(rep.Failures, fetched.Failures...)
	rep.Funnel.Fetched = len(fetched.Replies)
	rep.Funnel.Pages = fetched.Pages
	if ctx.Err() != nil {
		return incomplete(rep, ctx.Err())
	}

	// Phase 1: keyword filter
	terminal, pass := r.keyword.Partition(fetched.Replies)
	rep.Funnel.KeywordTerminal = len(terminal)
	if len(terminal) > 0 {
		rep.Funnel.KeywordReasons = make(map[string]int)
		for _, t := range terminal {
			rep.Funnel.KeywordReasons[t.Result.Reason]++
		}
	}

	// Phase 2: semantic classification
	classified, sstats := r.semantic.ClassifyAll(ctx, ws, pass)
	rep.Funnel.SemanticInput = sstats.Input
	rep.Funnel.SemanticDegraded = sstats.DegradedTotal()
	rep.Funnel.CacheHits = sstats.CacheHits
	rep.Failures = append(rep.Failures, sstats.Failures...)
	if ctx.Err() != nil {
		return incomplete(rep, ctx.Err())
	}

	for _, c := range classified {
		if c.Result.Tier.Promising() {
			rep.Funnel.Promising++
		}
	}

	// Phase 3: timing validation
	validated, tstats := r.timing.Validate(ctx, client, classified)
	rep.Funnel.TimingDowngraded = tstats.Downgraded
	rep.Funnel.TimingUnverified = tstats.NoPriorSend + tstats.LookupFailed
	rep.Failures = append(rep.Failures, tstats.Failures...)
	if ctx.Err() != nil {
		return incomplete(rep, ctx.Err())
	}

	// Phase 4: deduplication, merged with what the platform already knows
	opps := Deduplicate(ws, validated)
	records, err := client.FetchInterested(ctx, window)
	if err != nil {
		logger.Warn("Could not load already-interested leads", zap.Error(err))
		rep.AddFailure(core.StageDedupe, "interested listing", err)
	}
	idx := NewInterestIndex(records)
	opps = MergeInterested(opps, idx)
	rep.Opportunities = opps
	rep.Funnel.Opportunities = len(opps)
	for _, o := range opps {
		if o.AlreadyMarked {
			rep.Funnel.AlreadyMarked++
		}
	}
	if ctx.Err() != nil {
		return incomplete(rep, ctx.Err())
	}

	// Phase 5: marking
	outcomes, mstats := r.marker.MarkAll(ctx, client, opps, idx)
	rep.Outcomes = append(rep.Outcomes, outcomes...)
	rep.Failures = append(rep.Failures, mstats.Failures...)
	for _, o := range outcomes {
		if o.Success {
			rep.Funnel.Marked++
		} else if o.Error != "" {
			rep.Funnel.MarkFailed++
		}
	}
	if ctx.Err() != nil {
		return incomplete(rep, ctx.Err())
	}

	rep.Settle()
	logger.Info("Workspace processed",
		zap.String("status", string(rep.Status)),
		zap.Int("fetched", rep.Funnel.Fetched),
		zap.Int("keyword_terminal", rep.Funnel.KeywordTerminal),
		zap.Int("semantic_input", rep.Funnel.SemanticInput),
		zap.Int("timing_downgraded", rep.Funnel.TimingDowngraded),
		zap.Int("opportunities", rep.Funnel.Opportunities),
		zap.Int("marked", rep.Funnel.Marked))
	return rep
}

func fail(rep core.WorkspaceReport, err error) core.WorkspaceReport {
	rep.Status = core.StatusFailed
	rep.Error = err.Error()
	rep.AddFailure(core.StageRun, rep.WorkspaceID, err)
	return rep
}

func incomplete(rep core.WorkspaceReport, err error) core.WorkspaceReport {
	rep.Status = core.StatusIncomplete
	rep.Error = err.Error()
	return rep
}
