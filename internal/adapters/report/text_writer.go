package report

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/mikey/reply-intel/internal/core"
	"github.com/mikey/reply-intel/internal/utils"
	"go.uber.org/zap"
)

const previewLen = 160

// TextWriter prints reports for a terminal
type TextWriter struct {
	out     io.Writer
	logger  *zap.Logger
	verbose bool
}

// NewTextWriter creates a new text report writer
func NewTextWriter(out io.Writer, logger *zap.Logger, verbose bool) *TextWriter {
	return &TextWriter{out: out, logger: logger, verbose: verbose}
}

// WriteReport prints a per-workspace summary followed by totals
func (w *TextWriter) WriteReport(_ context.Context, rep *core.Report) error {
	p := &printer{w: w.out}

	p.printf("\n=== Run %s ===\n", rep.RunID)
	p.printf("Window: %s to %s\n", rep.Window.Since.Format(time.RFC3339), rep.Window.Until.Format(time.RFC3339))
	if rep.DryRun {
		p.printf("Dry run: no leads were marked\n")
	}

	for _, ws := range rep.Workspaces {
		w.writeWorkspace(p, ws)
	}

	t := rep.Totals
	p.printf("\n=== Totals ===\n")
	p.printf("Workspaces: %d (%s)\n", t.Workspaces, statusLine(t.ByStatus))
	p.printf("Replies fetched: %d\n", t.Fetched)
	p.printf("Opportunities: %d (ambiguous: %d)\n", t.Opportunities, t.Ambiguous)
	p.printf("Marked: %d, failed: %d\n", t.Marked, t.MarkFailed)
	p.printf("Duration: %v\n", rep.FinishedAt.Sub(rep.StartedAt).Round(time.Millisecond))

	if p.err != nil {
		w.logger.Error("Failed to write report", zap.Error(p.err))
	}
	return p.err
}

func (w *TextWriter) writeWorkspace(p *printer, ws core.WorkspaceReport) {
	name := ws.WorkspaceID
	if ws.Name != "" && ws.Name != ws.WorkspaceID {
		name = fmt.Sprintf("%s (%s)", ws.Name, ws.WorkspaceID)
	}
	p.printf("\n--- %s [%s] %s ---\n", name, ws.Platform, strings.ToUpper(string(ws.Status)))
	if ws.Error != "" {
		p.printf("Error: %s\n", ws.Error)
	}

	f := ws.Funnel
	p.printf("Fetched %d replies in %d pages", f.Fetched, f.Pages)
	if ws.Strategy != "" {
		p.printf(" (%s)", ws.Strategy)
	}
	p.printf("\n")
	p.printf("Keyword filter: %d terminal, %d to semantic\n", f.KeywordTerminal, f.SemanticInput)
	if w.verbose && len(f.KeywordReasons) > 0 {
		reasons := make([]string, 0, len(f.KeywordReasons))
		for r, n := range f.KeywordReasons {
			reasons = append(reasons, fmt.Sprintf("%s=%d", r, n))
		}
		sort.Strings(reasons)
		p.printf("  reasons: %s\n", strings.Join(reasons, ", "))
	}
	p.printf("Semantic: %d promising, %d degraded, %d cached\n", f.Promising, f.SemanticDegraded, f.CacheHits)
	p.printf("Timing: %d downgraded, %d unverified\n", f.TimingDowngraded, f.TimingUnverified)

	if len(ws.Opportunities) == 0 {
		if ws.Status == core.StatusOK {
			p.printf("No opportunities found\n")
		}
	} else {
		p.printf("Opportunities (%d):\n", len(ws.Opportunities))
		for _, o := range ws.Opportunities {
			flags := ""
			if o.AlreadyMarked {
				flags += " [already marked]"
			}
			if o.Ambiguous {
				flags += " [ambiguous: " + o.AmbiguityReason + "]"
			}
			p.printf("  %-5s %s%s\n", o.Tier, o.LeadEmail, flags)
			if w.verbose {
				p.printf("        %s\n", utils.Summarize(o.Reply.Body, previewLen))
			}
		}
	}

	for _, oc := range ws.Outcomes {
		switch {
		case oc.Error != "":
			p.printf("  mark %s (%s): FAILED %s\n", oc.Identity, oc.Role, oc.Error)
		case w.verbose && oc.DryRun:
			p.printf("  mark %s (%s): dry run\n", oc.Identity, oc.Role)
		case w.verbose && oc.Skipped:
			p.printf("  mark %s (%s): skipped\n", oc.Identity, oc.Role)
		case w.verbose:
			p.printf("  mark %s (%s): ok\n", oc.Identity, oc.Role)
		}
	}

	if len(ws.Anomalies) > 0 {
		p.printf("Anomalies: %s\n", strings.Join(ws.Anomalies, "; "))
	}
	for _, fl := range ws.Failures {
		p.printf("  failure [%s] %s: %s\n", fl.Stage, fl.Ref, fl.Error)
	}
	p.printf("Took %v\n", ws.Duration.Round(time.Millisecond))
}

// WriteClassification prints the verdict on one reply
func (w *TextWriter) WriteClassification(_ context.Context, reply core.Reply, result core.ClassificationResult) error {
	p := &printer{w: w.out}

	p.printf("\n=== Reply Summary ===\n")
	p.printf("From: %s\n", reply.SenderEmail)
	if reply.LeadEmail != "" && reply.IsForwarded() {
		p.printf("Lead: %s\n", reply.LeadEmail)
	}
	p.printf("Subject: %s\n", reply.Subject)
	p.printf("Body length: %d bytes\n", len(reply.Body))
	if w.verbose {
		p.printf("\nBody preview:\n%s\n", utils.Summarize(reply.Body, 500))
	}

	p.printf("\n=== Results ===\n")
	p.printf("Tier: %s\n", result.Tier)
	p.printf("Method: %s\n", result.Method)
	if result.Disposition != "" {
		p.printf("Disposition: %s\n", result.Disposition)
	}
	if result.Reason != "" {
		p.printf("Matched rule: %s\n", result.Reason)
	}
	if result.Rationale != "" {
		p.printf("Rationale: %s\n", result.Rationale)
	}
	if result.Model != "" {
		p.printf("Model used: %s\n", result.Model)
	}
	if result.Degraded != core.DegradedNone {
		p.printf("Degraded: %s (not a genuine negative)\n", result.Degraded)
	}

	return p.err
}

func statusLine(by map[core.RunStatus]int) string {
	order := []core.RunStatus{core.StatusOK, core.StatusPartial, core.StatusFailed, core.StatusIncomplete}
	parts := make([]string, 0, len(order))
	for _, s := range order {
		parts = append(parts, fmt.Sprintf("%s %d", s, by[s]))
	}
	return strings.Join(parts, ", ")
}

// printer remembers the first write error so callers check once
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
