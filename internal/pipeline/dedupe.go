package pipeline

import (
	"sort"

	"github.com/mikey/reply-intel/internal/core"
)

// Deduplicate collapses promising replies to one Opportunity per lead. The
// earliest reply wins; ties go to the smaller reply id so the outcome does not
// depend on input order.
func Deduplicate(ws core.Workspace, items []core.Classified) []core.Opportunity {
	byLead := make(map[string]*core.Opportunity)
	var order []string

	for _, it := range items {
		if !it.Result.Tier.Promising() {
			continue
		}
		key := it.Reply.IdentityKey()
		if key == "" {
			continue
		}
		opp, ok := byLead[key]
		if !ok {
			byLead[key] = &core.Opportunity{
				LeadEmail:     key,
				Reply:         it.Reply,
				Tier:          it.Result.Tier,
				WorkspaceID:   ws.ID,
				Platform:      ws.Platform,
				ReplyCount:    1,
				AlreadyMarked: it.Reply.AlreadyInterested,
			}
			order = append(order, key)
			continue
		}
		opp.ReplyCount++
		opp.AlreadyMarked = opp.AlreadyMarked || it.Reply.AlreadyInterested
		if earlier(it.Reply, opp.Reply) {
			opp.Reply = it.Reply
			opp.Tier = it.Result.Tier
		}
	}

	sort.Strings(order)
	out := make([]core.Opportunity, 0, len(order))
	for _, k := range order {
		out = append(out, *byLead[k])
	}
	return out
}

func earlier(a, b core.Reply) bool {
	if a.ReceivedAt.Equal(b.ReceivedAt) {
		return a.ID < b.ID
	}
	return a.ReceivedAt.Before(b.ReceivedAt)
}

// InterestIndex is the platform's already-interested listing keyed by identity
type InterestIndex map[string]core.Direction

// NewInterestIndex folds records into an index. An inbound record outranks
// outbound or unknown ones for the same identity.
func NewInterestIndex(records []core.InterestedRecord) InterestIndex {
	idx := make(InterestIndex, len(records))
	for _, r := range records {
		key := core.NormalizeEmail(r.Email)
		if key == "" {
			continue
		}
		if idx[key] == core.DirectionInbound {
			continue
		}
		idx[key] = r.Direction
	}
	return idx
}

// Confirmed reports whether an inbound message from the identity carries the flag
func (idx InterestIndex) Confirmed(email string) bool {
	return idx[core.NormalizeEmail(email)] == core.DirectionInbound
}

// MergeInterested returns copies of the opportunities annotated with the
// platform's existing interest flags. A flag seen only on the client's own
// outbound message, or of unknown direction, does not count as handled; the
// opportunity is flagged ambiguous and still marked.
func MergeInterested(opps []core.Opportunity, idx InterestIndex) []core.Opportunity {
	out := make([]core.Opportunity, len(opps))
	for i, o := range opps {
		out[i] = o
		dir, ok := idx[o.LeadEmail]
		if !ok {
			continue
		}
		switch dir {
		case core.DirectionInbound:
			out[i].AlreadyMarked = true
		case core.DirectionOutbound:
			out[i].Ambiguous = true
			out[i].AmbiguityReason = "interest flag is set on the client's outbound message, not the lead's reply"
		default:
			out[i].Ambiguous = true
			out[i].AmbiguityReason = "interest flag found but the flagged message direction is unknown"
		}
	}
	return out
}
