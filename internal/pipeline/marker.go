package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/mikey/reply-intel/internal/core"
	"go.uber.org/zap"
)

// MarkClient is the part of a platform client the marker needs
type MarkClient interface {
	core.InterestMarker
	core.CampaignLookup
}

// MarkStats summarizes one marking pass
type MarkStats struct {
	Written  int
	Skipped  int
	Failed   int
	Failures []core.Failure
}

// Marker flags opportunities as interested on their platform
type Marker struct {
	dryRun bool
	logger *zap.Logger
}

// NewMarker creates a marker. In dry-run mode nothing is written.
func NewMarker(dryRun bool, logger *zap.Logger) *Marker {
	return &Marker{dryRun: dryRun, logger: logger}
}

// MarkAll marks every opportunity. Each identity gets its own outcome and a
// failure on one opportunity never stops the others.
func (m *Marker) MarkAll(ctx context.Context, client MarkClient, opps []core.Opportunity, idx InterestIndex) ([]core.MarkingOutcome, MarkStats) {
	var stats MarkStats
	var outcomes []core.MarkingOutcome
	done := make(map[string]bool)

	for _, opp := range opps {
		targets, err := m.targets(ctx, client, opp)
		if err != nil {
			m.logger.Warn("Campaign lookup failed, skipping opportunity",
				zap.String("lead", opp.LeadEmail),
				zap.Error(err))
			for _, t := range targets {
				outcomes = append(outcomes, core.MarkingOutcome{
					LeadEmail: opp.LeadEmail,
					Identity:  t.Email,
					Role:      t.Role,
					Error:     err.Error(),
				})
				stats.Failed++
			}
			stats.Failures = append(stats.Failures, core.Failure{Stage: core.StageMark, Ref: opp.LeadEmail, Error: err.Error()})
			continue
		}

		for _, t := range targets {
			out := core.MarkingOutcome{LeadEmail: opp.LeadEmail, Identity: t.Email, Role: t.Role}
			key := core.NormalizeEmail(t.Email)

			switch {
			case done[key], idx.Confirmed(t.Email), alreadyMarked(opp, t):
				out.Success = true
				out.Skipped = true
				stats.Skipped++
			case m.dryRun:
				out.Skipped = true
				out.DryRun = true
				stats.Skipped++
			default:
				if err := client.MarkInterested(ctx, t); err != nil {
					m.logger.Warn("Failed to mark identity as interested",
						zap.String("lead", opp.LeadEmail),
						zap.String("identity", t.Email),
						zap.String("role", string(t.Role)),
						zap.Error(err))
					out.Error = err.Error()
					stats.Failed++
					stats.Failures = append(stats.Failures, core.Failure{Stage: core.StageMark, Ref: t.Email, Error: err.Error()})
				} else {
					m.logger.Info("Marked identity as interested",
						zap.String("lead", opp.LeadEmail),
						zap.String("identity", t.Email),
						zap.String("role", string(t.Role)))
					out.Success = true
					stats.Written++
					done[key] = true
				}
			}
			outcomes = append(outcomes, out)
		}
	}

	return outcomes, stats
}

func alreadyMarked(opp core.Opportunity, t core.MarkTarget) bool {
	if t.Role == core.RoleResponder {
		return opp.Reply.AlreadyInterested
	}
	return opp.AlreadyMarked
}

// targets lists the identities to mark. A forwarded reply yields the original
// recipient and the responder; campaign context comes from the original
// recipient's address. On lookup failure the targets are still returned so
// each can be reported.
func (m *Marker) targets(ctx context.Context, client MarkClient, opp core.Opportunity) ([]core.MarkTarget, error) {
	r := opp.Reply
	if !r.IsForwarded() {
		email := r.LeadEmail
		if email == "" {
			email = r.SenderEmail
		}
		return []core.MarkTarget{{
			Email:      email,
			Role:       core.RoleLead,
			CampaignID: r.CampaignID,
			LeadID:     r.LeadID,
			ReplyID:    r.ID,
		}}, nil
	}

	lead := core.MarkTarget{Email: r.LeadEmail, Role: core.RoleLead, CampaignID: r.CampaignID, LeadID: r.LeadID}
	responder := core.MarkTarget{Email: r.SenderEmail, Role: core.RoleResponder, CampaignID: r.CampaignID, ReplyID: r.ID}
	targets := []core.MarkTarget{lead, responder}

	ref, err := client.LookupCampaignForContact(ctx, r.LeadEmail)
	switch {
	case err == nil && ref != nil:
		if ref.CampaignID != "" {
			targets[0].CampaignID = ref.CampaignID
			targets[1].CampaignID = ref.CampaignID
		}
		if ref.LeadID != "" {
			targets[0].LeadID = ref.LeadID
		}
		targets[0].ReplyID = ref.ReplyID
	case errors.Is(err, core.ErrNotFound) && r.CampaignID != "":
		m.logger.Debug("No campaign found for original recipient, using reply campaign",
			zap.String("lead", r.LeadEmail),
			zap.String("campaign_id", r.CampaignID))
	case err != nil:
		return targets, fmt.Errorf("%w for %s: %v", core.ErrCampaignLookup, r.LeadEmail, err)
	default:
		return targets, fmt.Errorf("%w for %s: empty result", core.ErrCampaignLookup, r.LeadEmail)
	}
	return targets, nil
}
