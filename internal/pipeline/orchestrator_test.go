package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mikey/reply-intel/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type runnerFunc func(ctx context.Context, ws core.Workspace, window core.Window) core.WorkspaceReport

func (f runnerFunc) Run(ctx context.Context, ws core.Workspace, window core.Window) core.WorkspaceReport {
	return f(ctx, ws, window)
}

func TestOrchestratorIsolatesInvalidCredential(t *testing.T) {
	provider := &fakeProvider{clients: make(map[string]*fakePlatform)}
	var workspaces []core.Workspace
	for i := 0; i < 80; i++ {
		id := fmt.Sprintf("ws-%02d", i)
		fp := newFakePlatform(core.PlatformInstantly)
		if i == 37 {
			fp.fetchErr = fmt.Errorf("401: %w", core.ErrInvalidCredential)
		}
		provider.clients[id] = fp
		workspaces = append(workspaces, testWorkspace(id))
	}

	runner := newTestRunner(provider, funcClassifier(func(core.ClassifyRequest) (*core.SemanticVerdict, error) {
		return &core.SemanticVerdict{Tier: core.TierCold}, nil
	}), false)
	o := NewOrchestrator(runner, OrchestratorOptions{Workers: 15}, zap.NewNop())

	report := o.RunPipeline(context.Background(), workspaces, testWindow())

	require.Len(t, report.Workspaces, 80)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 79, report.Totals.ByStatus[core.StatusOK])
	assert.Equal(t, 1, report.Totals.ByStatus[core.StatusFailed])

	failed := report.Workspaces[37]
	assert.Equal(t, "ws-37", failed.WorkspaceID)
	assert.Equal(t, core.StatusFailed, failed.Status)
	assert.Contains(t, failed.Error, core.ErrInvalidCredential.Error())
	assert.NotNil(t, failed.Opportunities)
}

func TestOrchestratorRecoversFromPanic(t *testing.T) {
	runner := runnerFunc(func(_ context.Context, ws core.Workspace, _ core.Window) core.WorkspaceReport {
		if ws.ID == "boom" {
			panic("nil map write")
		}
		return core.WorkspaceReport{WorkspaceID: ws.ID, Status: core.StatusOK}
	})
	o := NewOrchestrator(runner, OrchestratorOptions{Workers: 2}, zap.NewNop())

	report := o.RunPipeline(context.Background(), []core.Workspace{
		testWorkspace("a"), testWorkspace("boom"), testWorkspace("c"),
	}, testWindow())

	require.Len(t, report.Workspaces, 3)
	assert.Equal(t, core.StatusOK, report.Workspaces[0].Status)
	assert.Equal(t, "boom", report.Workspaces[1].WorkspaceID)
	assert.Equal(t, core.StatusFailed, report.Workspaces[1].Status)
	assert.Contains(t, report.Workspaces[1].Error, "nil map write")
	assert.Equal(t, core.StatusOK, report.Workspaces[2].Status)
}

func TestOrchestratorSurvivesClassifierPanic(t *testing.T) {
	provider := &fakeProvider{clients: make(map[string]*fakePlatform)}
	var workspaces []core.Workspace
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("ws-%d", i)
		fp := newFakePlatform(core.PlatformInstantly)
		fp.replies = []core.Reply{{
			ID: id + "-r", SenderEmail: "lead@" + id + ".io", LeadEmail: "lead@" + id + ".io",
			Body: "Sounds good, what are the next steps?", ReceivedAt: t0, Direction: core.DirectionInbound,
		}}
		provider.clients[id] = fp
		workspaces = append(workspaces, testWorkspace(id))
	}

	runner := newTestRunner(provider, funcClassifier(func(req core.ClassifyRequest) (*core.SemanticVerdict, error) {
		if req.ReplyID == "ws-1-r" {
			panic("classifier blew up")
		}
		return &core.SemanticVerdict{Tier: core.TierCold}, nil
	}), false)
	o := NewOrchestrator(runner, OrchestratorOptions{Workers: 2}, zap.NewNop())

	report := o.RunPipeline(context.Background(), workspaces, testWindow())

	require.Len(t, report.Workspaces, 3)
	assert.Equal(t, core.StatusOK, report.Workspaces[0].Status)
	assert.Equal(t, core.StatusPartial, report.Workspaces[1].Status)
	assert.Equal(t, 1, report.Workspaces[1].Funnel.SemanticDegraded)
	assert.Equal(t, core.StatusOK, report.Workspaces[2].Status)
}

func TestOrchestratorDeadlineMarksIncomplete(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, ws core.Workspace, _ core.Window) core.WorkspaceReport {
		<-ctx.Done()
		return core.WorkspaceReport{WorkspaceID: ws.ID, Status: core.StatusIncomplete, Error: ctx.Err().Error()}
	})
	o := NewOrchestrator(runner, OrchestratorOptions{Workers: 1, Deadline: 20 * time.Millisecond}, zap.NewNop())

	start := time.Now()
	report := o.RunPipeline(context.Background(), []core.Workspace{
		testWorkspace("a"), testWorkspace("b"), testWorkspace("c"),
	}, testWindow())

	assert.Less(t, time.Since(start), 5*time.Second)
	require.Len(t, report.Workspaces, 3)
	assert.Equal(t, 3, report.Totals.ByStatus[core.StatusIncomplete])
	assert.Contains(t, report.Workspaces[2].Error, "not started")
}

func TestOrchestratorEmptyRun(t *testing.T) {
	o := NewOrchestrator(runnerFunc(nil), OrchestratorOptions{DryRun: true}, zap.NewNop())
	report := o.RunPipeline(context.Background(), nil, testWindow())

	assert.Empty(t, report.Workspaces)
	assert.True(t, report.DryRun)
	assert.Equal(t, 0, report.Totals.Workspaces)
}
