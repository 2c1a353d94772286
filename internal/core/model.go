package core

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Platform identifies an outreach platform
type Platform string

const (
	PlatformInstantly Platform = "instantly"
	PlatformBison     Platform = "bison"
)

// Tier is the interest level assigned to a reply
type Tier string

const (
	TierAutoReply Tier = "auto_reply"
	TierCold      Tier = "cold"
	TierWarm      Tier = "warm"
	TierHot       Tier = "hot"
)

// Promising reports whether the tier can become an opportunity
func (t Tier) Promising() bool {
	return t == TierWarm || t == TierHot
}

// Valid reports whether t is one of the known tiers
func (t Tier) Valid() bool {
	switch t {
	case TierAutoReply, TierCold, TierWarm, TierHot:
		return true
	}
	return false
}

// Method records which phase produced a classification
type Method string

const (
	MethodKeyword          Method = "keyword"
	MethodSemantic         Method = "semantic"
	MethodTimingValidation Method = "timing_validation"
)

// Direction tells inbound replies apart from the client's own messages
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
	DirectionUnknown  Direction = "unknown"
)

// Disposition is the keyword filter's tagged outcome
type Disposition string

const (
	DispositionPassThrough Disposition = "pass_through"
	DispositionAutoReply   Disposition = "auto_reply"
	DispositionUnsubscribe Disposition = "unsubscribe"
	DispositionRejection   Disposition = "rejection"
)

// Terminal reports whether the disposition ends classification
func (d Disposition) Terminal() bool {
	return d != "" && d != DispositionPassThrough
}

// Degradation explains why a semantic result fell back to cold
type Degradation string

const (
	DegradedNone         Degradation = ""
	DegradedParseFailure Degradation = "parse_failure"
	DegradedQuota        Degradation = "quota"
	DegradedServiceError Degradation = "service_error"
)

// TimingCheck records what the timing validator concluded
type TimingCheck string

const (
	TimingNotChecked   TimingCheck = ""
	TimingConfirmed    TimingCheck = "confirmed"
	TimingDowngraded   TimingCheck = "downgraded"
	TimingNoPriorSend  TimingCheck = "no_prior_send"
	TimingLookupFailed TimingCheck = "lookup_failed"
)

// MarkRole distinguishes the two identities of a forwarded reply
type MarkRole string

const (
	RoleLead      MarkRole = "lead"
	RoleResponder MarkRole = "responder"
)

// NormalizeEmail returns the case-folded form of an address used for identity
// comparisons. Casers are stateful, so each call gets its own.
func NormalizeEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}

// Reply is one inbound message from a lead
type Reply struct {
	ID                string    `json:"id"`
	Platform          Platform  `json:"platform"`
	WorkspaceID       string    `json:"workspace_id"`
	SenderEmail       string    `json:"sender_email"`
	LeadEmail         string    `json:"lead_email"`
	Subject           string    `json:"subject"`
	Body              string    `json:"body"`
	ReceivedAt        time.Time `json:"received_at"`
	ThreadID          string    `json:"thread_id,omitempty"`
	CampaignID        string    `json:"campaign_id,omitempty"`
	LeadID            string    `json:"lead_id,omitempty"`
	Direction         Direction `json:"direction"`
	AlreadyInterested bool      `json:"already_interested"`

	// CursorTime is the platform's listing order key when it differs from
	// ReceivedAt. Zero means ReceivedAt.
	CursorTime time.Time `json:"-"`
}

// OrderTime returns the timestamp the platform filters and sorts listings by
func (r Reply) OrderTime() time.Time {
	if !r.CursorTime.IsZero() {
		return r.CursorTime
	}
	return r.ReceivedAt
}

// IdentityKey returns the normalized lead address, falling back to the sender
func (r Reply) IdentityKey() string {
	if r.LeadEmail != "" {
		return NormalizeEmail(r.LeadEmail)
	}
	return NormalizeEmail(r.SenderEmail)
}

// IsForwarded reports whether someone other than the addressed lead replied
func (r Reply) IsForwarded() bool {
	if r.LeadEmail == "" || r.SenderEmail == "" {
		return false
	}
	return NormalizeEmail(r.LeadEmail) != NormalizeEmail(r.SenderEmail)
}

// OutboundSend is one message sent to a lead by a campaign
type OutboundSend struct {
	RecipientEmail string    `json:"recipient_email"`
	SentAt         time.Time `json:"sent_at"`
	Platform       Platform  `json:"platform"`
	WorkspaceID    string    `json:"workspace_id"`
	CampaignID     string    `json:"campaign_id,omitempty"`
}

// ClassificationResult is an immutable verdict on one reply. Phases derive new
// values rather than editing an existing one.
type ClassificationResult struct {
	ReplyID      string        `json:"reply_id"`
	Tier         Tier          `json:"tier"`
	Method       Method        `json:"method"`
	PreviousTier Tier          `json:"previous_tier,omitempty"`
	Disposition  Disposition   `json:"disposition,omitempty"`
	Reason       string        `json:"reason,omitempty"`
	Rationale    string        `json:"rationale,omitempty"`
	Model        string        `json:"model,omitempty"`
	Degraded     Degradation   `json:"degraded,omitempty"`
	Timing       TimingCheck   `json:"timing,omitempty"`
	Gap          time.Duration `json:"gap,omitempty"`
}

// Downgrade returns a copy reclassified as an automated reply by timing validation
func (c ClassificationResult) Downgrade(gap time.Duration) ClassificationResult {
	out := c
	out.PreviousTier = c.Tier
	out.Tier = TierAutoReply
	out.Method = MethodTimingValidation
	out.Timing = TimingDowngraded
	out.Gap = gap
	return out
}

// WithTiming returns a copy annotated with a timing outcome that keeps the tier
func (c ClassificationResult) WithTiming(check TimingCheck, gap time.Duration) ClassificationResult {
	out := c
	out.Timing = check
	out.Gap = gap
	return out
}

// Classified pairs a reply with its current verdict
type Classified struct {
	Reply  Reply
	Result ClassificationResult
}

// Opportunity is a deduplicated, promising lead ready to be marked
type Opportunity struct {
	LeadEmail       string   `json:"lead_email"`
	Reply           Reply    `json:"reply"`
	Tier            Tier     `json:"tier"`
	WorkspaceID     string   `json:"workspace_id"`
	Platform        Platform `json:"platform"`
	ReplyCount      int      `json:"reply_count"`
	AlreadyMarked   bool     `json:"already_marked"`
	Ambiguous       bool     `json:"ambiguous"`
	AmbiguityReason string   `json:"ambiguity_reason,omitempty"`
}

// CampaignRef locates the campaign context for a contact
type CampaignRef struct {
	CampaignID string
	LeadID     string
	ReplyID    string
}

// MarkTarget is one identity to flag as interested
type MarkTarget struct {
	Email      string
	Role       MarkRole
	CampaignID string
	LeadID     string
	ReplyID    string
}

// MarkingOutcome reports the result of marking one identity
type MarkingOutcome struct {
	LeadEmail string   `json:"lead_email"`
	Identity  string   `json:"identity"`
	Role      MarkRole `json:"role"`
	Success   bool     `json:"success"`
	Skipped   bool     `json:"skipped"`
	DryRun    bool     `json:"dry_run,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// InterestedRecord is an entry of the platform's already-interested listing
type InterestedRecord struct {
	Email     string
	Direction Direction
}

// ClassifyRequest is the text handed to the semantic classifier
type ClassifyRequest struct {
	ReplyID string
	Subject string
	Body    string
}

// SemanticVerdict is the classifier's answer
type SemanticVerdict struct {
	Tier      Tier
	Rationale string
	Model     string
}

// CacheEntry memoises a semantic verdict
type CacheEntry struct {
	Key       string
	Tier      Tier
	Rationale string
	Model     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Workspace is one client account on one platform
type Workspace struct {
	ID              string   `json:"id" yaml:"id" validate:"required"`
	Name            string   `json:"name" yaml:"name"`
	Platform        Platform `json:"platform" yaml:"platform" validate:"required,oneof=instantly bison"`
	APIKey          string   `json:"-" yaml:"api_key" validate:"required"`
	InternalDomains []string `json:"-" yaml:"internal_domains" validate:"dive,fqdn"`
}
