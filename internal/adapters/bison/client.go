// Package bison implements the platform client for the EmailBison API
package bison

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

// reply types reported by EmailBison
const (
	typeTrackedReply   = "Tracked Reply"
	typeUntrackedReply = "Untracked Reply"
	typeOutgoing       = "Outgoing Email"

	maxListPages = 50
)

type leadRef struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

type reply struct {
	ID           int64    `json:"id"`
	Type         string   `json:"type"`
	Folder       string   `json:"folder"`
	FromName     string   `json:"from_name"`
	FromEmail    string   `json:"from_email_address"`
	PrimaryTo    string   `json:"primary_to_email_address"`
	Subject      string   `json:"subject"`
	TextBody     string   `json:"text_body"`
	HTMLBody     string   `json:"html_body"`
	DateReceived string   `json:"date_received"`
	LeadID       int64    `json:"lead_id"`
	CampaignID   int64    `json:"campaign_id"`
	Interested   bool     `json:"interested"`
	Lead         *leadRef `json:"lead"`
}

type meta struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
}

type replyList struct {
	Data []reply `json:"data"`
	Meta meta    `json:"meta"`
}

// Client talks to EmailBison on behalf of one workspace
type Client struct {
	api           *httpapi.Client
	workspace     core.Workspace
	pageSize      int
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
}

// NewClient creates a workspace-scoped EmailBison client. EmailBison fixes its
// own page size; pageSize is what the pagination guards expect.
func NewClient(api *httpapi.Client, ws core.Workspace, pageSize int, textProcessor *utils.TextProcessor, logger *zap.Logger) *Client {
	if pageSize <= 0 {
		pageSize = 15
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
func (c *Client) Platform() core.Platform { return core.PlatformBison }

// PageSize is the platform's fixed page size
func (c *Client) PageSize() int { return c.pageSize }

// SupportsTypeFilter is false: the replies listing mixes in outgoing mail
func (c *Client) SupportsTypeFilter() bool { return false }

// FetchReplies returns one page of the workspace's inbox. The cursor is the page number.
func (c *Client) FetchReplies(ctx context.Context, req core.PageRequest) (*core.ReplyPage, error) {
	page := 1
	if req.Cursor != "" {
		n, err := strconv.Atoi(req.Cursor)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid page cursor %q", req.Cursor)
		}
		page = n
	}

	q := url.Values{}
	q.Set("folder", "inbox")
	q.Set("page", strconv.Itoa(page))
	if req.Ascending {
		q.Set("sort", "asc")
		q.Set("date_from", req.Since.UTC().Format(time.RFC3339))
	}

	var list replyList
	if err := c.api.Do(ctx, http.MethodGet, "/api/replies", q, nil, &list); err != nil {
		return nil, err
	}

	out := &core.ReplyPage{Items: make([]core.Reply, 0, len(list.Data))}
	for _, r := range list.Data {
		out.Items = append(out.Items, c.toReply(r))
	}
	if !req.Ascending && list.Meta.LastPage > list.Meta.CurrentPage && list.Meta.CurrentPage > 0 {
		out.NextCursor = strconv.Itoa(list.Meta.CurrentPage + 1)
	}
	return out, nil
}

// FetchSends lists outgoing emails addressed to a lead
func (c *Client) FetchSends(ctx context.Context, leadEmail string) ([]core.OutboundSend, error) {
	q := url.Values{}
	q.Set("search", leadEmail)
	q.Set("folder", "sent")

	want := core.NormalizeEmail(leadEmail)
	var sends []core.OutboundSend
	err := c.walk(ctx, q, func(r reply) {
		if r.Type != typeOutgoing || core.NormalizeEmail(r.PrimaryTo) != want {
			return
		}
		sends = append(sends, core.OutboundSend{
			RecipientEmail: r.PrimaryTo,
			SentAt:         parseDate(r.DateReceived),
			Platform:       core.PlatformBison,
			WorkspaceID:    c.workspace.ID,
			CampaignID:     id(r.CampaignID),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list sends: %w", err)
	}
	return sends, nil
}

// MarkInterested flags the target's reply as interested, or its lead when no
// reply is known. Webhooks are suppressed so the client's own automations do
// not fire twice.
func (c *Client) MarkInterested(ctx context.Context, t core.MarkTarget) error {
	var path string
	var payload map[string]any
	switch {
	case t.ReplyID != "":
		path = "/api/replies/" + url.PathEscape(t.ReplyID) + "/mark-as-interested"
		payload = map[string]any{"skip_webhooks": true}
	case t.LeadID != "":
		path = "/api/leads/" + url.PathEscape(t.LeadID) + "/update-status"
		payload = map[string]any{"status": "interested", "skip_webhooks": true}
	default:
		return fmt.Errorf("no reply or lead id to mark for %s", t.Email)
	}
	err := c.api.DoRetry(ctx, http.MethodPatch, path, nil, payload, nil)
	if httpapi.IsStatus(err, http.StatusConflict) {
		return nil
	}
	return err
}

// LookupCampaignForContact finds the most recent reply from the address and
// returns its campaign, lead and reply ids
func (c *Client) LookupCampaignForContact(ctx context.Context, address string) (*core.CampaignRef, error) {
	q := url.Values{}
	q.Set("search", address)
	q.Set("folder", "all")

	want := core.NormalizeEmail(address)
	var best *reply
	var bestAt time.Time
	err := c.walk(ctx, q, func(r reply) {
		if core.NormalizeEmail(r.FromEmail) != want && (r.Lead == nil || core.NormalizeEmail(r.Lead.Email) != want) {
			return
		}
		at := parseDate(r.DateReceived)
		if best == nil || at.After(bestAt) {
			rr := r
			best, bestAt = &rr, at
		}
	})
	if err != nil {
		return nil, err
	}
	if best == nil {
		return nil, fmt.Errorf("contact %s: %w", address, core.ErrNotFound)
	}
	ref := &core.CampaignRef{CampaignID: id(best.CampaignID), LeadID: id(best.LeadID)}
	if best.Type != typeOutgoing {
		ref.ReplyID = id(best.ID)
	}
	return ref, nil
}

// FetchInterested lists replies already flagged interested
func (c *Client) FetchInterested(ctx context.Context, _ core.Window) ([]core.InterestedRecord, error) {
	q := url.Values{}
	q.Set("status", "interested")
	q.Set("folder", "all")

	var records []core.InterestedRecord
	err := c.walk(ctx, q, func(r reply) {
		rec := core.InterestedRecord{Direction: direction(r.Type)}
		switch rec.Direction {
		case core.DirectionOutbound:
			rec.Email = r.PrimaryTo
		default:
			rec.Email = r.FromEmail
		}
		if r.Lead != nil && r.Lead.Email != "" {
			rec.Email = r.Lead.Email
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

// walk pages through /api/replies with the given filters
func (c *Client) walk(ctx context.Context, q url.Values, fn func(reply)) error {
	seen := make(map[int64]bool)
	for page := 1; page <= maxListPages; page++ {
		q.Set("page", strconv.Itoa(page))
		var list replyList
		if err := c.api.DoRetry(ctx, http.MethodGet, "/api/replies", q, nil, &list); err != nil {
			return err
		}
		fresh := 0
		for _, r := range list.Data {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			fresh++
			fn(r)
		}
		if fresh == 0 || list.Meta.LastPage <= page {
			return nil
		}
	}
	c.logger.Warn("Stopped listing replies at page limit", zap.Int("pages", maxListPages))
	return fmt.Errorf("%d pages: %w", maxListPages, core.ErrListTruncated)
}

func (c *Client) toReply(r reply) core.Reply {
	body := r.TextBody
	if strings.TrimSpace(body) == "" && r.HTMLBody != "" {
		body = c.textProcessor.HTMLToText(r.HTMLBody)
	}
	out := core.Reply{
		ID:                id(r.ID),
		Platform:          core.PlatformBison,
		WorkspaceID:       c.workspace.ID,
		SenderEmail:       r.FromEmail,
		Subject:           r.Subject,
		Body:              body,
		ReceivedAt:        parseDate(r.DateReceived),
		CampaignID:        id(r.CampaignID),
		LeadID:            id(r.LeadID),
		Direction:         direction(r.Type),
		AlreadyInterested: r.Interested,
	}
	if r.Lead != nil {
		out.LeadEmail = r.Lead.Email
	}
	return out
}

func direction(t string) core.Direction {
	switch t {
	case typeTrackedReply, typeUntrackedReply:
		return core.DirectionInbound
	case typeOutgoing:
		return core.DirectionOutbound
	}
	return core.DirectionUnknown
}

func id(n int64) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatInt(n, 10)
}

var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05.000000Z"}

func parseDate(s string) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
