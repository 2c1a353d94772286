package core

import (
	"context"
	"time"
)

// PageRequest asks a platform for one page of replies
type PageRequest struct {
	Window      Window
	Cursor      string
	Since       time.Time
	Ascending   bool
	InboundOnly bool
	Limit       int
}

// ReplyPage is one page returned by a platform
type ReplyPage struct {
	Items      []Reply
	NextCursor string
}

// ReplyPager fetches pages of replies for one workspace
type ReplyPager interface {
	// FetchReplies returns one page of replies
	FetchReplies(ctx context.Context, req PageRequest) (*ReplyPage, error)

	// PageSize is the platform's nominal page size
	PageSize() int

	// SupportsTypeFilter reports whether the platform can return inbound mail only
	SupportsTypeFilter() bool
}

// SendHistory retrieves outbound sends to one lead
type SendHistory interface {
	FetchSends(ctx context.Context, leadEmail string) ([]OutboundSend, error)
}

// InterestMarker flags an identity as interested on the platform. Marking an
// identity that is already interested succeeds.
type InterestMarker interface {
	MarkInterested(ctx context.Context, target MarkTarget) error
}

// CampaignLookup resolves campaign context for a contact address
type CampaignLookup interface {
	LookupCampaignForContact(ctx context.Context, email string) (*CampaignRef, error)
}

// InterestedLookup lists identities the platform already considers interested
type InterestedLookup interface {
	FetchInterested(ctx context.Context, window Window) ([]InterestedRecord, error)
}

// PlatformClient is everything the pipeline needs from one workspace's platform
type PlatformClient interface {
	ReplyPager
	SendHistory
	InterestMarker
	CampaignLookup
	InterestedLookup

	Platform() Platform
}

// PlatformProvider builds workspace-scoped platform clients
type PlatformProvider interface {
	ForWorkspace(ws Workspace) (PlatformClient, error)
}

// TextClassifier labels reply text as cold, warm or hot
type TextClassifier interface {
	ClassifyText(ctx context.Context, req ClassifyRequest) (*SemanticVerdict, error)
}

// VerdictCache memoises semantic verdicts
type VerdictCache interface {
	// Get retrieves a cached verdict
	Get(ctx context.Context, key string) (*CacheEntry, error)

	// Set stores a verdict
	Set(ctx context.Context, entry *CacheEntry) error

	// Delete removes a verdict
	Delete(ctx context.Context, key string) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}
