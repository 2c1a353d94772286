// Package instantly implements the platform client for the Instantly v2 API
package instantly

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mikey/reply-intel/internal/adapters/httpapi"
	"github.com/mikey/reply-intel/internal/core"
	"github.com/mikey/reply-intel/internal/utils"
	"go.uber.org/zap"
)

// ue_type values on email items
const (
	ueTypeSent      = 1
	ueTypeReceived  = 2
	ueTypeManual    = 3
	interestedValue = 1

	maxListPages = 50
)

type emailBody struct {
	Text string `json:"text"`
	HTML string `json:"html"`
}

type email struct {
	ID               string    `json:"id"`
	UEType           int       `json:"ue_type"`
	FromAddress      string    `json:"from_address_email"`
	ToAddressList    string    `json:"to_address_email_list"`
	Subject          string    `json:"subject"`
	Body             emailBody `json:"body"`
	TimestampEmail   string    `json:"timestamp_email"`
	TimestampCreated string    `json:"timestamp_created"`
	ThreadID         string    `json:"thread_id"`
	Lead             string    `json:"lead"`
	LeadID           string    `json:"lead_id"`
	CampaignID       string    `json:"campaign_id"`
	IStatus          int       `json:"i_status"`
}

type emailList struct {
	Items             []email `json:"items"`
	NextStartingAfter string  `json:"next_starting_after"`
}

type lead struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Campaign string `json:"campaign"`
}

type leadList struct {
	Items []lead `json:"items"`
}

// Client talks to Instantly on behalf of one workspace
type Client struct {
	api           *httpapi.Client
	workspace     core.Workspace
	pageSize      int
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
}

// NewClient creates a workspace-scoped Instantly client
func NewClient(api *httpapi.Client, ws core.Workspace, pageSize int, textProcessor *utils.TextProcessor, logger *zap.Logger) *Client {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Client{
		api:           api,
		workspace:     ws,
		pageSize:      pageSize,
		textProcessor: textProcessor,
		logger:        logger.With(zap.String("workspace", ws.ID)),
	}
}

// Platform identifies the platform
func (c *Client) Platform() core.Platform { return core.PlatformInstantly }

// PageSize is the requested page size
func (c *Client) PageSize() int { return c.pageSize }

// SupportsTypeFilter is true: the emails endpoint can return received mail only
func (c *Client) SupportsTypeFilter() bool { return true }

// FetchReplies returns one page of the workspace's emails
func (c *Client) FetchReplies(ctx context.Context, req core.PageRequest) (*core.ReplyPage, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = c.pageSize
	}
	since := req.Since
	if since.IsZero() {
		since = req.Window.Since
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("min_timestamp_created", since.UTC().Format(time.RFC3339))
	if !req.Window.Until.IsZero() {
		q.Set("max_timestamp_created", req.Window.Until.UTC().Format(time.RFC3339))
	}
	if req.InboundOnly {
		q.Set("email_type", "received")
	}
	if req.Ascending {
		q.Set("sort_order", "asc")
	}
	if req.Cursor != "" {
		q.Set("starting_after", req.Cursor)
	}

	var list emailList
	if err := c.api.Do(ctx, http.MethodGet, "/api/v2/emails", q, nil, &list); err != nil {
		return nil, err
	}

	page := &core.ReplyPage{Items: make([]core.Reply, 0, len(list.Items)), NextCursor: list.NextStartingAfter}
	for _, e := range list.Items {
		page.Items = append(page.Items, c.toReply(e))
	}
	return page, nil
}

// FetchSends lists campaign emails sent to a lead
func (c *Client) FetchSends(ctx context.Context, leadEmail string) ([]core.OutboundSend, error) {
	q := url.Values{}
	q.Set("lead", leadEmail)
	q.Set("email_type", "sent")
	q.Set("limit", strconv.Itoa(c.pageSize))

	var sends []core.OutboundSend
	err := c.walk(ctx, q, func(e email) {
		if e.UEType != ueTypeSent && e.UEType != ueTypeManual {
			return
		}
		sends = append(sends, core.OutboundSend{
			RecipientEmail: leadEmail,
			SentAt:         timestamp(e),
			Platform:       core.PlatformInstantly,
			WorkspaceID:    c.workspace.ID,
			CampaignID:     e.CampaignID,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list sends: %w", err)
	}
	return sends, nil
}

// MarkInterested sets the lead's interest status. The update is idempotent.
func (c *Client) MarkInterested(ctx context.Context, t core.MarkTarget) error {
	payload := map[string]any{
		"lead_email":     t.Email,
		"interest_value": interestedValue,
	}
	if t.CampaignID != "" {
		payload["campaign_id"] = t.CampaignID
	}
	err := c.api.DoRetry(ctx, http.MethodPost, "/api/v2/leads/update-interest-status", nil, payload, nil)
	if httpapi.IsStatus(err, http.StatusConflict) {
		return nil
	}
	return err
}

// LookupCampaignForContact finds the lead record, and its campaign, for an address
func (c *Client) LookupCampaignForContact(ctx context.Context, address string) (*core.CampaignRef, error) {
	var list leadList
	payload := map[string]any{"search": address, "limit": 10}
	if err := c.api.DoRetry(ctx, http.MethodPost, "/api/v2/leads/list", nil, payload, &list); err != nil {
		return nil, err
	}
	want := core.NormalizeEmail(address)
	for _, l := range list.Items {
		if core.NormalizeEmail(l.Email) == want {
			return &core.CampaignRef{CampaignID: l.Campaign, LeadID: l.ID}, nil
		}
	}
	return nil, fmt.Errorf("lead %s: %w", address, core.ErrNotFound)
}

// FetchInterested lists emails carrying the interested status in the window
func (c *Client) FetchInterested(ctx context.Context, window core.Window) ([]core.InterestedRecord, error) {
	q := url.Values{}
	q.Set("i_status", strconv.Itoa(interestedValue))
	q.Set("min_timestamp_created", window.Since.UTC().Format(time.RFC3339))
	q.Set("max_timestamp_created", window.Until.UTC().Format(time.RFC3339))
	q.Set("limit", strconv.Itoa(c.pageSize))

	var records []core.InterestedRecord
	err := c.walk(ctx, q, func(e email) {
		rec := core.InterestedRecord{Direction: direction(e.UEType)}
		switch rec.Direction {
		case core.DirectionInbound:
			rec.Email = firstNonEmpty(e.Lead, e.FromAddress)
		case core.DirectionOutbound:
			rec.Email = firstNonEmpty(e.Lead, firstAddress(e.ToAddressList))
		default:
			rec.Email = e.Lead
		}
		if rec.Email != "" {
			records = append(records, rec)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("list interested: %w", err)
	}
	return records, nil
}

// walk pages through /api/v2/emails with the given filters
func (c *Client) walk(ctx context.Context, q url.Values, fn func(email)) error {
	seen := make(map[string]bool)
	for page := 0; page < maxListPages; page++ {
		var list emailList
		if err := c.api.DoRetry(ctx, http.MethodGet, "/api/v2/emails", q, nil, &list); err != nil {
			return err
		}
		fresh := 0
		for _, e := range list.Items {
			if seen[e.ID] {
				continue
			}
			seen[e.ID] = true
			fresh++
			fn(e)
		}
		if list.NextStartingAfter == "" || fresh == 0 || len(list.Items) < c.pageSize {
			return nil
		}
		q.Set("starting_after", list.NextStartingAfter)
	}
	c.logger.Warn("Stopped listing emails at page limit", zap.Int("pages", maxListPages))
	return fmt.Errorf("%d pages: %w", maxListPages, core.ErrListTruncated)
}

func (c *Client) toReply(e email) core.Reply {
	body := e.Body.Text
	if strings.TrimSpace(body) == "" && e.Body.HTML != "" {
		body = c.textProcessor.HTMLToText(e.Body.HTML)
	}
	leadEmail := ""
	if strings.Contains(e.Lead, "@") {
		leadEmail = e.Lead
	}
	return core.Reply{
		ID:                e.ID,
		Platform:          core.PlatformInstantly,
		WorkspaceID:       c.workspace.ID,
		SenderEmail:       e.FromAddress,
		LeadEmail:         leadEmail,
		Subject:           e.Subject,
		Body:              body,
		ReceivedAt:        timestamp(e),
		CursorTime:        parseTime(e.TimestampCreated),
		ThreadID:          e.ThreadID,
		CampaignID:        e.CampaignID,
		LeadID:            e.LeadID,
		Direction:         direction(e.UEType),
		AlreadyInterested: e.IStatus == interestedValue,
	}
}

func direction(ueType int) core.Direction {
	switch ueType {
	case ueTypeReceived:
		return core.DirectionInbound
	case ueTypeSent, ueTypeManual:
		return core.DirectionOutbound
	}
	return core.DirectionUnknown
}

func timestamp(e email) time.Time {
	for _, s := range []string{e.TimestampEmail, e.TimestampCreated} {
		if t := parseTime(s); !t.IsZero() {
			return t
		}
	}
	return time.Time{}
}

// parseTime returns the zero time for empty or malformed values
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func firstAddress(list string) string {
	first, _, _ := strings.Cut(list, ",")
	return strings.TrimSpace(first)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
