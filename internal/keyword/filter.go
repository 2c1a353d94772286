// Package keyword implements the cheap first pass that settles obvious
// replies before any model is consulted.
package keyword

import (
	"regexp"
	"strings"

	"github.com/mikey/reply-intel/internal/core"
	"github.com/mikey/reply-intel/internal/utils"
)

// Verdict is the outcome of evaluating one reply
type Verdict struct {
	Disposition core.Disposition
	Tier        core.Tier
	Reason      string
	Pattern     string
}

// Terminal reports whether the verdict settles the reply
func (v Verdict) Terminal() bool {
	return v.Disposition.Terminal()
}

type scope int

const (
	scopeSubject scope = iota
	scopeLine
	scopeBody
)

type rule struct {
	reason      string
	disposition core.Disposition
	tier        core.Tier
	scope       scope
	re          *regexp.Regexp
}

func newRule(reason string, d core.Disposition, tier core.Tier, s scope, pattern string) rule {
	return rule{reason: reason, disposition: d, tier: tier, scope: s, re: regexp.MustCompile(pattern)}
}

// Evaluation order matters: automated mail is recognised before opt-outs,
// and opt-outs before plain rejections.
var defaultRules = []rule{
	newRule("autoresponder_subject", core.DispositionAutoReply, core.TierAutoReply, scopeSubject,
		`(?i)^\s*(automatic reply|auto[- ]?reply|autoreply|out of (the )?office|ooo\b|away from (the )?office)`),
	newRule("bounce", core.DispositionAutoReply, core.TierAutoReply, scopeSubject,
		`(?i)(undeliverable|undelivered mail|delivery status notification|mail delivery (failed|failure|subsystem)|returned mail|delivery has failed|failure notice)`),
	newRule("bounce", core.DispositionAutoReply, core.TierAutoReply, scopeBody,
		`(?i)(\bdelivery (has )?failed\b|\baddress not found\b|\bcould not be delivered\b|\brecipient address rejected\b|\bno such user\b|\bmailbox (is )?(full|unavailable)\b|\bmessage (was )?not delivered\b)`),
	newRule("out_of_office", core.DispositionAutoReply, core.TierAutoReply, scopeBody,
		`(?i)(\bout of (the )?office\b|\bautomatic reply\b|\bauto[- ]?reply\b|\bthis is an automated (message|response|reply)\b|\bon (annual |maternity |paternity |parental |sick )?leave\b|\b(maternity|paternity|parental) leave\b|\bon vacation\b|\bcurrently (away|travell?ing)\b|\blimited access to (my )?e-?mail\b|\breturning (on )?\d{1,2}/\d{1,2}\b|\bstandard response time\b|\ball[- ]day meeting\b)`),
	newRule("left_organisation", core.DispositionAutoReply, core.TierAutoReply, scopeBody,
		`(?i)(\b(i have|i've|has) (now )?left (the|our|this) (company|organi[sz]ation|firm|business)\b|\bno longer (with|at|employed (with|at|by)) (the|this) (company|organi[sz]ation|firm|business)\b|\b(has|have|i've) retired\b|\bun-?monitored (mail ?box|inbox|address)\b|\b(mail ?box|inbox) is (not|no longer) (being )?monitored\b|\bnot accepting (e-?mails|messages)\b|\bwill not be (read|returned|forwarded)\b)`),
	newRule("unsubscribe_subject", core.DispositionUnsubscribe, core.TierCold, scopeSubject,
		`(?i)^\s*(unsubscribe|remove( me)?|stop)\s*[!.]*\s*$`),
	newRule("stop_line", core.DispositionUnsubscribe, core.TierAutoReply, scopeLine,
		`(?im)^[ \t]*(stop|unsubscribe|remove|remove me|opt[- ]?out)[ \t]*[!.]*[ \t]*$`),
	newRule("unsubscribe", core.DispositionUnsubscribe, core.TierCold, scopeBody,
		`(?i)(\bunsubscribe\b|\bremove me\b|\bopt (me )?out\b|\bstop (e-?mailing|contacting|sending)\b|\bdon'?t (contact|e-?mail) me\b|\btake me off\b)`),
	newRule("rejection", core.DispositionRejection, core.TierCold, scopeBody,
		`(?i)(\bnot interested\b|\bno,? thanks?\b|\bno thank you\b|\bnot a (good )?fit\b|\bnot looking\b|\bwe('re| are) all set\b|\balready have a (solution|provider|vendor)\b)`),
}

// Filter classifies replies with fixed patterns. It is stateless and safe for
// concurrent use.
type Filter struct {
	rules []rule
}

// New creates a filter with the default rule set
func New() *Filter {
	return &Filter{rules: defaultRules}
}

// Evaluate classifies one reply. Quoted correspondence is ignored.
func (f *Filter) Evaluate(reply core.Reply) Verdict {
	body := utils.StripQuoted(reply.Body)
	subject := strings.TrimSpace(reply.Subject)

	for _, r := range f.rules {
		var target string
		switch r.scope {
		case scopeSubject:
			target = subject
		default:
			target = body
		}
		if target == "" {
			continue
		}
		if m := r.re.FindString(target); m != "" {
			return Verdict{
				Disposition: r.disposition,
				Tier:        r.tier,
				Reason:      r.reason,
				Pattern:     strings.TrimSpace(m),
			}
		}
	}

	return Verdict{Disposition: core.DispositionPassThrough}
}

// Classify returns the terminal classification for a reply, or false when the
// reply needs semantic classification
func (f *Filter) Classify(reply core.Reply) (core.ClassificationResult, bool) {
	v := f.Evaluate(reply)
	if !v.Terminal() {
		return core.ClassificationResult{}, false
	}
	return core.ClassificationResult{
		ReplyID:     reply.ID,
		Tier:        v.Tier,
		Method:      core.MethodKeyword,
		Disposition: v.Disposition,
		Reason:      v.Reason,
		Rationale:   "matched " + v.Pattern,
	}, true
}

// Partition splits replies into keyword-settled results and pass-through replies.
// Input order is preserved in both outputs.
func (f *Filter) Partition(replies []core.Reply) (terminal []core.Classified, pass []core.Reply) {
	for _, r := range replies {
		if res, ok := f.Classify(r); ok {
			terminal = append(terminal, core.Classified{Reply: r, Result: res})
			continue
		}
		pass = append(pass, r)
	}
	return terminal, pass
}
