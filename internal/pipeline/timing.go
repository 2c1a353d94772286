package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/mikey/reply-intel/internal/core"
	"go.uber.org/zap"
)

// TimingStats summarizes one timing validation pass
type TimingStats struct {
	Checked      int
	Downgraded   int
	NoPriorSend  int
	LookupFailed int
	Failures     []core.Failure
}

// TimingValidator downgrades promising replies that arrived too soon after the
// preceding send to have been written by a person
type TimingValidator struct {
	threshold time.Duration
	logger    *zap.Logger
}

// NewTimingValidator creates a validator with the given minimum human response time
func NewTimingValidator(threshold time.Duration, logger *zap.Logger) *TimingValidator {
	return &TimingValidator{threshold: threshold, logger: logger}
}

// Validate checks every warm or hot item. Other items pass through untouched.
func (v *TimingValidator) Validate(ctx context.Context, history core.SendHistory, items []core.Classified) ([]core.Classified, TimingStats) {
	var stats TimingStats
	out := make([]core.Classified, len(items))
	sendsByLead := make(map[string][]core.OutboundSend)
	failedLeads := make(map[string]error)

	for i, it := range items {
		out[i] = it
		if !it.Result.Tier.Promising() {
			continue
		}
		stats.Checked++

		lead := it.Reply.LeadEmail
		if lead == "" {
			lead = it.Reply.SenderEmail
		}
		key := core.NormalizeEmail(lead)

		sends, ok := sendsByLead[key]
		if !ok {
			if err, failed := failedLeads[key]; failed {
				out[i].Result = it.Result.WithTiming(core.TimingLookupFailed, 0)
				stats.LookupFailed++
				stats.Failures = append(stats.Failures, core.Failure{Stage: core.StageTiming, Ref: it.Reply.ID, Error: err.Error()})
				continue
			}
			fetched, err := history.FetchSends(ctx, lead)
			if err != nil {
				err = fmt.Errorf("fetch sends for %s: %w", lead, err)
				failedLeads[key] = err
				v.logger.Warn("Send history lookup failed, keeping tier",
					zap.String("reply_id", it.Reply.ID),
					zap.Error(err))
				out[i].Result = it.Result.WithTiming(core.TimingLookupFailed, 0)
				stats.LookupFailed++
				stats.Failures = append(stats.Failures, core.Failure{Stage: core.StageTiming, Ref: it.Reply.ID, Error: err.Error()})
				continue
			}
			sends = fetched
			sendsByLead[key] = sends
		}

		prior, found := latestBefore(sends, key, it.Reply.ReceivedAt)
		if !found {
			out[i].Result = it.Result.WithTiming(core.TimingNoPriorSend, 0)
			stats.NoPriorSend++
			continue
		}

		gap := it.Reply.ReceivedAt.Sub(prior.SentAt)
		if gap < v.threshold {
			v.logger.Info("Reply arrived too soon after send, downgrading",
				zap.String("reply_id", it.Reply.ID),
				zap.String("lead", lead),
				zap.Duration("gap", gap),
				zap.String("previous_tier", string(it.Result.Tier)))
			out[i].Result = it.Result.Downgrade(gap)
			stats.Downgraded++
			continue
		}
		out[i].Result = it.Result.WithTiming(core.TimingConfirmed, gap)
	}

	return out, stats
}

// latestBefore finds the most recent send to the lead strictly before t
func latestBefore(sends []core.OutboundSend, leadKey string, t time.Time) (core.OutboundSend, bool) {
	var best core.OutboundSend
	found := false
	for _, s := range sends {
		if s.RecipientEmail != "" && core.NormalizeEmail(s.RecipientEmail) != leadKey {
			continue
		}
		if !s.SentAt.Before(t) {
			continue
		}
		if !found || s.SentAt.After(best.SentAt) {
			best = s
			found = true
		}
	}
	return best, found
}
