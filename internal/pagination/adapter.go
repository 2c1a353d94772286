// Package pagination walks a platform's reply listing to completion, guarding
// against cursors that repeat or never advance.
package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/mikey/reply-intel/internal/core"
	"github.com/mikey/reply-intel/internal/senders"
	"go.uber.org/zap"
)

// Options controls retries and guards for one walk
type Options struct {
	Strategy       Strategy
	MaxAttempts    uint
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxJitter      time.Duration
	MaxPages       int
}

// Result is the outcome of walking one workspace's replies
type Result struct {
	Replies   []core.Reply
	Pages     int
	Strategy  Strategy
	Partial   bool
	Dropped   int
	Anomalies []string
	Failures  []core.Failure
}

// Adapter fetches every inbound reply inside a window
type Adapter struct {
	opts    Options
	senders *senders.Checker
	logger  *zap.Logger
}

// NewAdapter creates a pagination adapter. A nil checker keeps every sender.
func NewAdapter(opts Options, checker *senders.Checker, logger *zap.Logger) *Adapter {
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 1
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 500
	}
	if opts.MaxJitter <= 0 {
		opts.MaxJitter = time.Millisecond
	}
	if checker == nil {
		checker = senders.NewChecker(nil, nil, logger)
	}
	return &Adapter{opts: opts, senders: checker, logger: logger}
}

// FetchAll returns every unique inbound reply in the window. A rejected
// credential is returned as an error; any other page failure ends the walk
// with Partial set.
func (a *Adapter) FetchAll(ctx context.Context, pager core.ReplyPager, window core.Window, checker *senders.Checker) (*Result, error) {
	if checker == nil {
		checker = a.senders
	}
	pageSize := pager.PageSize()
	base := core.PageRequest{
		Window:      window,
		Since:       window.Since,
		InboundOnly: pager.SupportsTypeFilter(),
		Limit:       pageSize,
	}

	w := newWalker(a.opts.Strategy)
	req := w.start(base)
	res := &Result{Strategy: w.strategy()}
	seen := make(map[string]struct{})

	for {
		if res.Pages >= a.opts.MaxPages {
			res.Partial = true
			res.Anomalies = append(res.Anomalies, fmt.Sprintf("stopped after %d pages", res.Pages))
			break
		}

		page, err := a.fetchPage(ctx, pager, req)
		if err != nil {
			if errors.Is(err, core.ErrInvalidCredential) {
				return nil, err
			}
			res.Partial = true
			res.Failures = append(res.Failures, core.Failure{
				Stage: core.StageFetch,
				Ref:   pageRef(req, res.Pages+1),
				Error: err.Error(),
			})
			a.logger.Warn("Giving up on page",
				zap.Int("page", res.Pages+1),
				zap.String("strategy", string(w.strategy())),
				zap.Error(err))
			break
		}
		res.Pages++

		stats := pageStats{items: len(page.Items)}
		for _, item := range page.Items {
			if _, ok := seen[item.ID]; ok {
				stats.repeated++
				continue
			}
			seen[item.ID] = struct{}{}
			stats.fresh++
			if a.keep(item, window, checker) {
				res.Replies = append(res.Replies, item)
			} else {
				res.Dropped++
			}
		}

		st := w.advance(req, page, stats, pageSize)
		switch st.action {
		case actionNext:
			req = st.next
			continue
		case actionFallback:
			a.logger.Warn("Cursor pagination repeated data, switching to watermark",
				zap.Int("page", res.Pages),
				zap.String("reason", st.why))
			res.Anomalies = append(res.Anomalies, "cursor fallback: "+st.why)
			w = newWalker(StrategyWatermark)
			req = w.start(base)
			res.Strategy = w.strategy()
			continue
		case actionStall:
			a.logger.Warn("Watermark pagination stalled", zap.String("reason", st.why))
			res.Partial = true
			res.Anomalies = append(res.Anomalies, "watermark stalled: "+st.why)
		default:
			a.logger.Debug("Pagination finished",
				zap.Int("pages", res.Pages),
				zap.Int("replies", len(res.Replies)),
				zap.String("reason", st.why))
		}
		break
	}

	return res, nil
}

// keep drops outbound messages, internal senders and anything outside the window
func (a *Adapter) keep(r core.Reply, window core.Window, checker *senders.Checker) bool {
	if r.Direction == core.DirectionOutbound {
		return false
	}
	if checker.IsInternal(r.SenderEmail) {
		return false
	}
	if !r.ReceivedAt.IsZero() && !window.Contains(r.ReceivedAt) {
		return false
	}
	return true
}

func (a *Adapter) fetchPage(ctx context.Context, pager core.ReplyPager, req core.PageRequest) (*core.ReplyPage, error) {
	var page *core.ReplyPage
	var lastErr error

	err := retry.Do(
		func() error {
			p, err := pager.FetchReplies(ctx, req)
			if err != nil {
				lastErr = err
				return err
			}
			page = p
			return nil
		},
		retry.Attempts(a.opts.MaxAttempts),
		retry.Delay(a.opts.InitialBackoff),
		retry.MaxDelay(a.opts.MaxBackoff),
		retry.MaxJitter(a.opts.MaxJitter),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			a.logger.Info("Retrying page fetch after error",
				zap.Uint("attempt", n+1),
				zap.String("cursor", req.Cursor),
				zap.Error(err))
		}),
		retry.RetryIf(core.IsTransient),
	)
	if err != nil {
		if lastErr != nil && errors.Is(lastErr, core.ErrInvalidCredential) {
			return nil, lastErr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("fetch interrupted: %w", ctxErr)
		}
		return nil, fmt.Errorf("after retries: %w", lastErrOr(lastErr, err))
	}
	if page == nil {
		page = &core.ReplyPage{}
	}
	return page, nil
}

func lastErrOr(last, fallback error) error {
	if last != nil {
		return last
	}
	return fallback
}

func pageRef(req core.PageRequest, n int) string {
	switch {
	case req.Cursor != "":
		return fmt.Sprintf("page %d (cursor %s)", n, req.Cursor)
	case req.Ascending:
		return fmt.Sprintf("page %d (since %s)", n, req.Since.Format(time.RFC3339))
	}
	return fmt.Sprintf("page %d", n)
}
