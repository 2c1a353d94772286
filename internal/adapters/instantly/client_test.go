package instantly

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mikey/reply-intel/internal/adapters/httpapi"
	"github.com/mikey/reply-intel/internal/core"
	"github.com/mikey/reply-intel/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	logger := zap.NewNop()
	api := httpapi.New(httpapi.Options{BaseURL: ts.URL, APIKey: "ws-key", MaxAttempts: 1}, logger)
	ws := core.Workspace{ID: "ws1", Platform: core.PlatformInstantly, APIKey: "ws-key"}
	return NewClient(api, ws, 2, utils.NewTextProcessor(logger), logger)
}

func TestFetchReplies(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/emails", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "2", q.Get("limit"))
		assert.Equal(t, "received", q.Get("email_type"))
		assert.Equal(t, "cursor-1", q.Get("starting_after"))
		assert.Equal(t, "2025-03-01T00:00:00Z", q.Get("min_timestamp_created"))
		assert.Empty(t, q.Get("sort_order"))

		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"items": []map[string]any{
				{
					"id": "e1", "ue_type": 2, "from_address_email": "Colleague@Acme.io", "lead": "lead@acme.io",
					"subject": "Re: intro", "body": map[string]any{"text": "Forwarding to the right person"},
					"timestamp_email": "2025-03-02T10:00:00.000Z", "timestamp_created": "2025-03-02T10:07:00Z",
					"campaign_id": "camp-1", "i_status": 1,
				},
				{
					"id": "e2", "ue_type": 2, "from_address_email": "b@acme.io", "lead": "b@acme.io",
					"body": map[string]any{"html": "<p>Sounds <b>great</b></p>"},
					"timestamp_email": "2025-03-02T11:00:00Z",
				},
			},
			"next_starting_after": "cursor-2",
		})
	})

	since := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	page, err := c.FetchReplies(context.Background(), core.PageRequest{
		Window:      core.Window{Since: since, Until: since.Add(48 * time.Hour)},
		Cursor:      "cursor-1",
		InboundOnly: true,
		Limit:       2,
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "cursor-2", page.NextCursor)

	first := page.Items[0]
	assert.Equal(t, "e1", first.ID)
	assert.Equal(t, core.DirectionInbound, first.Direction)
	assert.True(t, first.IsForwarded())
	assert.True(t, first.AlreadyInterested)
	assert.Equal(t, "camp-1", first.CampaignID)
	assert.Equal(t, time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC), first.ReceivedAt.UTC())
	assert.Equal(t, time.Date(2025, 3, 2, 10, 7, 0, 0, time.UTC), first.OrderTime().UTC())
	assert.Equal(t, page.Items[1].ReceivedAt, page.Items[1].OrderTime())
	assert.Equal(t, "ws1", first.WorkspaceID)

	assert.Contains(t, page.Items[1].Body, "Sounds great")
	assert.False(t, page.Items[1].IsForwarded())
}

func TestFetchRepliesWatermark(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "asc", q.Get("sort_order"))
		assert.Equal(t, "2025-03-01T12:00:00Z", q.Get("min_timestamp_created"))
		assert.Empty(t, q.Get("starting_after"))
		w.Write([]byte(`{"items": []}`)) //nolint:errcheck
	})

	since := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	page, err := c.FetchReplies(context.Background(), core.PageRequest{
		Window:    core.Window{Since: since, Until: since.Add(48 * time.Hour)},
		Since:     since.Add(12 * time.Hour),
		Ascending: true,
	})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestFetchRepliesInvalidCredential(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	_, err := c.FetchReplies(context.Background(), core.PageRequest{})
	assert.ErrorIs(t, err, core.ErrInvalidCredential)
}

func TestFetchSends(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		q := r.URL.Query()
		assert.Equal(t, "lead@acme.io", q.Get("lead"))
		assert.Equal(t, "sent", q.Get("email_type"))
		if q.Get("starting_after") == "" {
			w.Write([]byte(`{"items": [
				{"id": "s1", "ue_type": 1, "timestamp_email": "2025-03-01T09:00:00Z", "campaign_id": "c"},
				{"id": "s2", "ue_type": 2, "timestamp_email": "2025-03-01T09:05:00Z"}
			], "next_starting_after": "s2"}`)) //nolint:errcheck
			return
		}
		w.Write([]byte(`{"items": [{"id": "s3", "ue_type": 3, "timestamp_email": "2025-03-01T10:00:00Z"}]}`)) //nolint:errcheck
	})

	sends, err := c.FetchSends(context.Background(), "lead@acme.io")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, sends, 2)
	assert.Equal(t, "lead@acme.io", sends[0].RecipientEmail)
	assert.Equal(t, "c", sends[0].CampaignID)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), sends[1].SentAt)
}

func TestMarkInterested(t *testing.T) {
	var payload map[string]any
	status := http.StatusOK
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v2/leads/update-interest-status", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(status)
	})

	require.NoError(t, c.MarkInterested(context.Background(), core.MarkTarget{Email: "lead@acme.io", CampaignID: "camp-1"}))
	assert.Equal(t, "lead@acme.io", payload["lead_email"])
	assert.EqualValues(t, 1, payload["interest_value"])
	assert.Equal(t, "camp-1", payload["campaign_id"])

	status = http.StatusConflict
	assert.NoError(t, c.MarkInterested(context.Background(), core.MarkTarget{Email: "lead@acme.io"}), "already interested counts as success")

	status = http.StatusBadRequest
	assert.Error(t, c.MarkInterested(context.Background(), core.MarkTarget{Email: "lead@acme.io"}))
}

func TestLookupCampaignForContact(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/leads/list", r.URL.Path)
		w.Write([]byte(`{"items": [
			{"id": "l0", "email": "lead@acme.io.other", "campaign": "wrong"},
			{"id": "l1", "email": "LEAD@acme.io", "campaign": "camp-9"}
		]}`)) //nolint:errcheck
	})

	ref, err := c.LookupCampaignForContact(context.Background(), "lead@acme.io")
	require.NoError(t, err)
	assert.Equal(t, "camp-9", ref.CampaignID)
	assert.Equal(t, "l1", ref.LeadID)

	_, err = c.LookupCampaignForContact(context.Background(), "nobody@acme.io")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestFetchInterested(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("i_status"))
		w.Write([]byte(`{"items": [
			{"id": "1", "ue_type": 2, "from_address_email": "in@acme.io"},
			{"id": "2", "ue_type": 1, "to_address_email_list": "out@acme.io, cc@acme.io"},
			{"id": "3", "ue_type": 4, "lead": "odd@acme.io"}
		]}`)) //nolint:errcheck
	})

	recs, err := c.FetchInterested(context.Background(), core.Window{Since: time.Now().Add(-time.Hour), Until: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, []core.InterestedRecord{
		{Email: "in@acme.io", Direction: core.DirectionInbound},
		{Email: "out@acme.io", Direction: core.DirectionOutbound},
		{Email: "odd@acme.io", Direction: core.DirectionUnknown},
	}, recs)
}

func TestFetchInterestedReportsTruncation(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"items": []map[string]any{
				{"id": fmt.Sprintf("e%d-a", n), "ue_type": 2, "from_address_email": "a@acme.io", "i_status": 1},
				{"id": fmt.Sprintf("e%d-b", n), "ue_type": 2, "from_address_email": "b@acme.io", "i_status": 1},
			},
			"next_starting_after": fmt.Sprintf("c%d", n),
		})
	})

	since := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := c.FetchInterested(context.Background(), core.Window{Since: since, Until: since.Add(24 * time.Hour)})
	require.ErrorIs(t, err, core.ErrListTruncated)
	assert.Equal(t, int32(maxListPages), calls.Load())
}
