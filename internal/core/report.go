package core

import (
	"sort"
	"time"
)

// RunStatus summarizes how far a workspace run got
type RunStatus string

const (
	// StatusOK means every phase completed; zero opportunities is a valid OK result
	StatusOK RunStatus = "ok"
	// StatusPartial means the run completed but some pages, replies or marks failed
	StatusPartial RunStatus = "partial"
	// StatusFailed means the workspace could not be processed at all
	StatusFailed RunStatus = "failed"
	// StatusIncomplete means the run was cut off by the deadline
	StatusIncomplete RunStatus = "incomplete"
)

// Stage names a pipeline step in failure entries
type Stage string

const (
	StageFetch    Stage = "fetch"
	StageKeyword  Stage = "keyword"
	StageClassify Stage = "classify"
	StageTiming   Stage = "timing"
	StageDedupe   Stage = "dedupe"
	StageMark     Stage = "mark"
	StageRun      Stage = "run"
)

// Failure is one structured error entry in a report
type Failure struct {
	Stage Stage  `json:"stage"`
	Ref   string `json:"ref,omitempty"`
	Error string `json:"error"`
}

// Funnel counts replies as they move through the phases
type Funnel struct {
	Fetched          int            `json:"fetched"`
	Pages            int            `json:"pages"`
	KeywordTerminal  int            `json:"keyword_terminal"`
	KeywordReasons   map[string]int `json:"keyword_reasons,omitempty"`
	SemanticInput    int            `json:"semantic_input"`
	SemanticDegraded int            `json:"semantic_degraded"`
	CacheHits        int            `json:"cache_hits"`
	Promising        int            `json:"promising"`
	TimingDowngraded int            `json:"timing_downgraded"`
	TimingUnverified int            `json:"timing_unverified"`
	Opportunities    int            `json:"opportunities"`
	AlreadyMarked    int            `json:"already_marked"`
	Marked           int            `json:"marked"`
	MarkFailed       int            `json:"mark_failed"`
}

// WorkspaceReport is the outcome of one workspace run
type WorkspaceReport struct {
	WorkspaceID   string           `json:"workspace_id"`
	Name          string           `json:"name,omitempty"`
	Platform      Platform         `json:"platform"`
	Status        RunStatus        `json:"status"`
	Error         string           `json:"error,omitempty"`
	Strategy      string           `json:"pagination_strategy,omitempty"`
	Anomalies     []string         `json:"anomalies,omitempty"`
	Funnel        Funnel           `json:"funnel"`
	Opportunities []Opportunity    `json:"opportunities"`
	Outcomes      []MarkingOutcome `json:"outcomes"`
	Failures      []Failure        `json:"failures,omitempty"`
	Duration      time.Duration    `json:"duration"`
}

// AddFailure appends a failure entry
func (r *WorkspaceReport) AddFailure(stage Stage, ref string, err error) {
	r.Failures = append(r.Failures, Failure{Stage: stage, Ref: ref, Error: err.Error()})
}

// Settle derives the status from the collected failures unless one was already set
func (r *WorkspaceReport) Settle() {
	if r.Status != "" {
		return
	}
	if len(r.Failures) > 0 || len(r.Anomalies) > 0 {
		r.Status = StatusPartial
		return
	}
	r.Status = StatusOK
}

// Totals aggregates counts across workspaces
type Totals struct {
	Workspaces    int               `json:"workspaces"`
	ByStatus      map[RunStatus]int `json:"by_status"`
	Fetched       int               `json:"fetched"`
	Opportunities int               `json:"opportunities"`
	Marked        int               `json:"marked"`
	MarkFailed    int               `json:"mark_failed"`
	Ambiguous     int               `json:"ambiguous"`
}

// Report is the consolidated result of a run over many workspaces
type Report struct {
	RunID      string            `json:"run_id"`
	Window     Window            `json:"window"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	DryRun     bool              `json:"dry_run"`
	Workspaces []WorkspaceReport `json:"workspaces"`
	Totals     Totals            `json:"totals"`
}

// Finalize sorts workspace reports and computes totals
func (r *Report) Finalize() {
	sort.Slice(r.Workspaces, func(i, j int) bool {
		return r.Workspaces[i].WorkspaceID < r.Workspaces[j].WorkspaceID
	})
	t := Totals{Workspaces: len(r.Workspaces), ByStatus: make(map[RunStatus]int)}
	for _, ws := range r.Workspaces {
		t.ByStatus[ws.Status]++
		t.Fetched += ws.Funnel.Fetched
		t.Opportunities += ws.Funnel.Opportunities
		t.Marked += ws.Funnel.Marked
		t.MarkFailed += ws.Funnel.MarkFailed
		for _, o := range ws.Opportunities {
			if o.Ambiguous {
				t.Ambiguous++
			}
		}
	}
	r.Totals = t
}
