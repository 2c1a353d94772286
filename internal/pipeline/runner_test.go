package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mikey/reply-intel/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var terminalBodies = []string{
	"I am out of the office until Monday with limited access to email.",
	"Please unsubscribe me from this list.",
	"Not interested, thanks.",
	"STOP",
	"Your message could not be delivered to this address.",
}

// buildMailbox returns 131 replies the keyword filter settles and 95 that need
// the classifier. Ten of the latter are hot.
func buildMailbox() (replies []core.Reply, hot []string) {
	for i := 0; i < 131; i++ {
		lead := fmt.Sprintf("auto%03d@prospect.io", i)
		replies = append(replies, core.Reply{
			ID:          fmt.Sprintf("t%03d", i),
			Platform:    core.PlatformInstantly,
			SenderEmail: lead,
			LeadEmail:   lead,
			Subject:     "Re: quick question",
			Body:        terminalBodies[i%len(terminalBodies)],
			ReceivedAt:  t0.Add(-time.Duration(i) * time.Minute),
			Direction:   core.DirectionInbound,
		})
	}
	for i := 0; i < 95; i++ {
		lead := fmt.Sprintf("human%03d@prospect.io", i)
		id := fmt.Sprintf("p%03d", i)
		replies = append(replies, core.Reply{
			ID:          id,
			Platform:    core.PlatformInstantly,
			SenderEmail: lead,
			LeadEmail:   lead,
			Subject:     "Re: quick question",
			Body:        "Thanks for the note. Can you share pricing details?",
			ReceivedAt:  t0.Add(-time.Duration(i) * time.Minute),
			CampaignID:  "camp-1",
			Direction:   core.DirectionInbound,
		})
		if i < 10 {
			hot = append(hot, id)
		}
	}
	return replies, hot
}

func TestRunnerEndToEnd(t *testing.T) {
	replies, hot := buildMailbox()
	hotSet := make(map[string]bool)
	for _, id := range hot {
		hotSet[id] = true
	}

	fp := newFakePlatform(core.PlatformInstantly)
	fp.replies = replies
	for _, r := range replies {
		if !hotSet[r.ID] {
			continue
		}
		gap := 45 * time.Second
		if r.ID == "p009" {
			gap = 3 * time.Hour
		}
		fp.sends[r.LeadEmail] = []core.OutboundSend{{RecipientEmail: r.LeadEmail, SentAt: r.ReceivedAt.Add(-gap)}}
	}

	classifier := funcClassifier(func(req core.ClassifyRequest) (*core.SemanticVerdict, error) {
		if hotSet[req.ReplyID] {
			return &core.SemanticVerdict{Tier: core.TierHot, Rationale: "asks about pricing"}, nil
		}
		return &core.SemanticVerdict{Tier: core.TierCold}, nil
	})

	provider := &fakeProvider{clients: map[string]*fakePlatform{"acme": fp}}
	runner := newTestRunner(provider, classifier, false)

	rep := runner.Run(context.Background(), testWorkspace("acme"), testWindow())

	assert.Equal(t, core.StatusOK, rep.Status, rep.Error)
	assert.Equal(t, 226, rep.Funnel.Fetched)
	assert.Equal(t, 3, rep.Funnel.Pages)
	assert.Equal(t, 131, rep.Funnel.KeywordTerminal)
	assert.Equal(t, 95, rep.Funnel.SemanticInput)
	assert.Equal(t, 10, rep.Funnel.Promising)
	assert.Equal(t, 9, rep.Funnel.TimingDowngraded)
	assert.Equal(t, 1, rep.Funnel.Opportunities)
	assert.Equal(t, 1, rep.Funnel.Marked)
	assert.Positive(t, rep.Duration)

	require.Len(t, rep.Opportunities, 1)
	assert.Equal(t, "human009@prospect.io", rep.Opportunities[0].LeadEmail)
	require.Len(t, rep.Outcomes, 1)
	assert.True(t, rep.Outcomes[0].Success)
	assert.Contains(t, fp.marked, "human009@prospect.io")
	assert.Len(t, fp.sendCalls, 10, "only promising replies are timed")
}

func TestRunnerZeroOpportunitiesIsOK(t *testing.T) {
	fp := newFakePlatform(core.PlatformInstantly)
	fp.replies = []core.Reply{{
		ID: "r1", SenderEmail: "a@prospect.io", LeadEmail: "a@prospect.io",
		Body: "Not interested.", ReceivedAt: t0, Direction: core.DirectionInbound,
	}}
	provider := &fakeProvider{clients: map[string]*fakePlatform{"acme": fp}}
	runner := newTestRunner(provider, funcClassifier(nil), false)

	rep := runner.Run(context.Background(), testWorkspace("acme"), testWindow())

	assert.Equal(t, core.StatusOK, rep.Status)
	assert.Empty(t, rep.Opportunities)
	assert.Equal(t, 1, rep.Funnel.KeywordReasons["rejection"])
}

func TestRunnerDegradedClassificationIsPartial(t *testing.T) {
	fp := newFakePlatform(core.PlatformInstantly)
	fp.replies = []core.Reply{{
		ID: "r1", SenderEmail: "a@prospect.io", LeadEmail: "a@prospect.io",
		Body: "Sounds good, what are the next steps?", ReceivedAt: t0, Direction: core.DirectionInbound,
	}}
	provider := &fakeProvider{clients: map[string]*fakePlatform{"acme": fp}}
	runner := newTestRunner(provider, funcClassifier(func(core.ClassifyRequest) (*core.SemanticVerdict, error) {
		return nil, core.ErrQuotaExhausted
	}), false)

	rep := runner.Run(context.Background(), testWorkspace("acme"), testWindow())

	assert.Equal(t, core.StatusPartial, rep.Status)
	assert.Equal(t, 1, rep.Funnel.SemanticDegraded)
	assert.Empty(t, rep.Opportunities)
}

func TestRunnerInvalidWorkspaceFails(t *testing.T) {
	runner := newTestRunner(&fakeProvider{}, funcClassifier(nil), false)
	ws := testWorkspace("acme")
	ws.APIKey = ""

	rep := runner.Run(context.Background(), ws, testWindow())

	assert.Equal(t, core.StatusFailed, rep.Status)
	assert.Contains(t, rep.Error, "APIKey")
}

func TestRunnerCancelledContextIsIncomplete(t *testing.T) {
	fp := newFakePlatform(core.PlatformInstantly)
	provider := &fakeProvider{clients: map[string]*fakePlatform{"acme": fp}}
	runner := newTestRunner(provider, funcClassifier(nil), false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep := runner.Run(ctx, testWorkspace("acme"), testWindow())

	assert.Equal(t, core.StatusIncomplete, rep.Status)
}

func TestRunnerDryRunWritesNothing(t *testing.T) {
	fp := newFakePlatform(core.PlatformInstantly)
	fp.replies = []core.Reply{{
		ID: "r1", SenderEmail: "a@prospect.io", LeadEmail: "a@prospect.io",
		Body: "Yes, let's talk Thursday.", ReceivedAt: t0, Direction: core.DirectionInbound,
	}}
	provider := &fakeProvider{clients: map[string]*fakePlatform{"acme": fp}}
	runner := newTestRunner(provider, funcClassifier(func(core.ClassifyRequest) (*core.SemanticVerdict, error) {
		return &core.SemanticVerdict{Tier: core.TierHot}, nil
	}), true)

	rep := runner.Run(context.Background(), testWorkspace("acme"), testWindow())

	assert.Equal(t, core.StatusOK, rep.Status)
	require.Len(t, rep.Outcomes, 1)
	assert.True(t, rep.Outcomes[0].DryRun)
	assert.Empty(t, fp.markCalls)
}

func TestRunnerTruncatedInterestedListingIsPartial(t *testing.T) {
	fp := newFakePlatform(core.PlatformInstantly)
	fp.replies = []core.Reply{{
		ID: "r1", SenderEmail: "a@prospect.io", LeadEmail: "a@prospect.io",
		Body: "Sounds good, what are the next steps?", ReceivedAt: t0, Direction: core.DirectionInbound,
	}}
	fp.recordsErr = fmt.Errorf("list interested: 50 pages: %w", core.ErrListTruncated)
	provider := &fakeProvider{clients: map[string]*fakePlatform{"acme": fp}}
	runner := newTestRunner(provider, funcClassifier(func(core.ClassifyRequest) (*core.SemanticVerdict, error) {
		return &core.SemanticVerdict{Tier: core.TierCold}, nil
	}), false)

	rep := runner.Run(context.Background(), testWorkspace("acme"), testWindow())

	assert.Equal(t, core.StatusPartial, rep.Status)
	require.Len(t, rep.Failures, 1)
	assert.Equal(t, core.StageDedupe, rep.Failures[0].Stage)
	assert.Contains(t, rep.Failures[0].Error, core.ErrListTruncated.Error())
}
