package pipeline

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/mikey/reply-intel/internal/core"
	"github.com/mikey/reply-intel/internal/keyword"
	"github.com/mikey/reply-intel/internal/pagination"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// mockClassifier is a testify mock of core.TextClassifier
type mockClassifier struct {
	mock.Mock
}

func (m *mockClassifier) ClassifyText(ctx context.Context, req core.ClassifyRequest) (*core.SemanticVerdict, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core.SemanticVerdict), args.Error(1)
}

// funcClassifier adapts a function to core.TextClassifier
type funcClassifier func(req core.ClassifyRequest) (*core.SemanticVerdict, error)

func (f funcClassifier) ClassifyText(_ context.Context, req core.ClassifyRequest) (*core.SemanticVerdict, error) {
	return f(req)
}

// mockCache is a testify mock of core.VerdictCache
type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, key string) (*core.CacheEntry, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core.CacheEntry), args.Error(1)
}

func (m *mockCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockCache) Cleanup(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// fakePlatform is an in-memory platform. Marking is a set insert, so repeated
// marks of the same identity have no further effect.
type fakePlatform struct {
	mu sync.Mutex

	platform   core.Platform
	replies    []core.Reply
	pageSize   int
	fetchErr   error
	sends      map[string][]core.OutboundSend
	sendErr    error
	campaigns  map[string]*core.CampaignRef
	lookupErr  error
	markErr    map[string]error
	records    []core.InterestedRecord
	recordsErr error

	marked      map[string]core.MarkTarget
	markCalls   []core.MarkTarget
	lookupCalls []string
	sendCalls   []string
}

func newFakePlatform(p core.Platform) *fakePlatform {
	return &fakePlatform{
		platform:  p,
		pageSize:  100,
		sends:     make(map[string][]core.OutboundSend),
		campaigns: make(map[string]*core.CampaignRef),
		markErr:   make(map[string]error),
		marked:    make(map[string]core.MarkTarget),
	}
}

func (f *fakePlatform) Platform() core.Platform  { return f.platform }
func (f *fakePlatform) PageSize() int            { return f.pageSize }
func (f *fakePlatform) SupportsTypeFilter() bool { return true }

func (f *fakePlatform) FetchReplies(_ context.Context, req core.PageRequest) (*core.ReplyPage, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	start := 0
	if req.Cursor != "" {
		start, _ = strconv.Atoi(req.Cursor)
	}
	if start >= len(f.replies) {
		return &core.ReplyPage{}, nil
	}
	end := start + f.pageSize
	next := strconv.Itoa(end)
	if end >= len(f.replies) {
		end = len(f.replies)
		next = ""
	}
	return &core.ReplyPage{Items: append([]core.Reply(nil), f.replies[start:end]...), NextCursor: next}, nil
}

func (f *fakePlatform) FetchSends(_ context.Context, leadEmail string) ([]core.OutboundSend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls = append(f.sendCalls, leadEmail)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return f.sends[core.NormalizeEmail(leadEmail)], nil
}

func (f *fakePlatform) MarkInterested(_ context.Context, t core.MarkTarget) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markCalls = append(f.markCalls, t)
	if err := f.markErr[core.NormalizeEmail(t.Email)]; err != nil {
		return err
	}
	f.marked[core.NormalizeEmail(t.Email)] = t
	return nil
}

func (f *fakePlatform) LookupCampaignForContact(_ context.Context, email string) (*core.CampaignRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookupCalls = append(f.lookupCalls, email)
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	ref, ok := f.campaigns[core.NormalizeEmail(email)]
	if !ok {
		return nil, core.ErrNotFound
	}
	return ref, nil
}

func (f *fakePlatform) FetchInterested(_ context.Context, _ core.Window) ([]core.InterestedRecord, error) {
	return f.records, f.recordsErr
}

// fakeProvider hands out one fake platform per workspace id
type fakeProvider struct {
	clients map[string]*fakePlatform
	err     error
}

func (p *fakeProvider) ForWorkspace(ws core.Workspace) (core.PlatformClient, error) {
	if p.err != nil {
		return nil, p.err
	}
	c, ok := p.clients[ws.ID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return c, nil
}

var t0 = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

func testWindow() core.Window {
	return core.Window{Since: t0.Add(-7 * 24 * time.Hour), Until: t0.Add(7 * 24 * time.Hour)}
}

func testWorkspace(id string) core.Workspace {
	return core.Workspace{ID: id, Name: "Client " + id, Platform: core.PlatformInstantly, APIKey: "key-" + id}
}

func newTestRunner(provider core.PlatformProvider, classifier core.TextClassifier, dryRun bool) *Runner {
	logger := zap.NewNop()
	budgets := NewBudgets(Limit{})
	pager := pagination.NewAdapter(pagination.Options{
		Strategy:    pagination.StrategyCursor,
		MaxAttempts: 1,
		MaxPages:    100,
	}, nil, logger)
	return NewRunner(RunnerDeps{
		Platforms: provider,
		Pagers: map[core.Platform]*pagination.Adapter{
			core.PlatformInstantly: pager,
			core.PlatformBison:     pager,
		},
		Keyword:  keyword.New(),
		Semantic: NewSemanticClassifier(classifier, nil, SemanticOptions{Concurrency: 4}, budgets, logger),
		Timing:   NewTimingValidator(5*time.Minute, logger),
		Marker:   NewMarker(dryRun, logger),
		Logger:   logger,
	})
}
