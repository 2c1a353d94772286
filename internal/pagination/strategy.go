package pagination

import (
	"fmt"
	"time"

	"github.com/mikey/reply-intel/internal/core"
)

// Strategy names a way of walking a platform's reply listing
type Strategy string

const (
	// StrategyCursor follows the platform's opaque next-page cursor
	StrategyCursor Strategy = "cursor"
	// StrategyWatermark walks ascending by timestamp, using the last seen
	// timestamp as the next lower bound
	StrategyWatermark Strategy = "watermark"
)

// ParseStrategy validates a configured strategy name
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyCursor, StrategyWatermark:
		return Strategy(s), nil
	case "":
		return StrategyCursor, nil
	}
	return "", fmt.Errorf("unsupported pagination strategy: %s", s)
}

type action int

const (
	actionNext action = iota
	actionStop
	actionFallback
	actionStall
)

// pageStats describes one fetched page relative to everything seen so far
type pageStats struct {
	items    int
	fresh    int
	repeated int
}

type step struct {
	action action
	next   core.PageRequest
	why    string
}

type walker interface {
	strategy() Strategy
	start(base core.PageRequest) core.PageRequest
	advance(req core.PageRequest, page *core.ReplyPage, stats pageStats, pageSize int) step
}

func newWalker(s Strategy) walker {
	if s == StrategyWatermark {
		return &watermarkWalker{}
	}
	return &cursorWalker{}
}

type cursorWalker struct{}

func (cursorWalker) strategy() Strategy { return StrategyCursor }

func (cursorWalker) start(base core.PageRequest) core.PageRequest {
	return base
}

func (cursorWalker) advance(req core.PageRequest, page *core.ReplyPage, stats pageStats, pageSize int) step {
	if stats.items == 0 {
		return step{action: actionStop, why: "empty page"}
	}
	if stats.repeated > 0 {
		return step{action: actionFallback, why: fmt.Sprintf("cursor returned %d already seen items", stats.repeated)}
	}
	if req.Cursor != "" && page.NextCursor == req.Cursor {
		return step{action: actionFallback, why: "cursor did not advance"}
	}
	if stats.items < pageSize {
		return step{action: actionStop, why: "short page"}
	}
	if page.NextCursor == "" {
		return step{action: actionStop, why: "no next cursor"}
	}
	next := req
	next.Cursor = page.NextCursor
	return step{action: actionNext, next: next}
}

// watermarkWalker keeps the ids seen at the current watermark timestamp. Items
// at that timestamp come back on the next request because the lower bound is
// inclusive.
type watermarkWalker struct {
	mark   time.Time
	bucket map[string]struct{}
}

func (w *watermarkWalker) strategy() Strategy { return StrategyWatermark }

func (w *watermarkWalker) start(base core.PageRequest) core.PageRequest {
	w.mark = base.Window.Since
	w.bucket = make(map[string]struct{})
	req := base
	req.Cursor = ""
	req.Ascending = true
	req.Since = base.Window.Since
	return req
}

func (w *watermarkWalker) advance(req core.PageRequest, page *core.ReplyPage, stats pageStats, pageSize int) step {
	if stats.items == 0 {
		return step{action: actionStop, why: "empty page"}
	}

	startMark := w.mark
	novel := 0
	for _, it := range page.Items {
		ts := it.OrderTime()
		if ts.After(startMark) {
			novel++
		} else if ts.Equal(startMark) {
			if _, ok := w.bucket[it.ID]; !ok {
				novel++
			}
		}
		if ts.After(w.mark) {
			w.mark = ts
		}
	}
	if w.mark.After(startMark) {
		w.bucket = make(map[string]struct{})
	}
	for _, it := range page.Items {
		if it.OrderTime().Equal(w.mark) {
			w.bucket[it.ID] = struct{}{}
		}
	}

	if novel == 0 {
		if stats.items >= pageSize {
			return step{action: actionStall, why: fmt.Sprintf("more than %d items share timestamp %s", pageSize, w.mark.Format(time.RFC3339))}
		}
		return step{action: actionStop, why: "no new items"}
	}
	if stats.items < pageSize {
		return step{action: actionStop, why: "short page"}
	}

	next := req
	next.Since = w.mark
	return step{action: actionNext, next: next}
}
