package pipeline

import (
	"errors"
	"time"
)

// Errors surfaced by pipeline stages. Each stage fails loud and stops the
// run; there is no partial-pipeline recovery.
var (
	// ErrNoReportFound indicates the reports directory is empty or missing.
	ErrNoReportFound = errors.New("no report found")

	// ErrUnparsableAnalysis indicates the analysis response carried no
	// decodable decision. No default decision is ever fabricated.
	ErrUnparsableAnalysis = errors.New("unparsable analysis response")

	// ErrArtifactNotProduced indicates a delegated generation step claimed
	// success but left no artifact on disk. Distinct from a backend crash;
	// an operator can retry it.
	ErrArtifactNotProduced = errors.New("artifact not produced")

	// ErrPublicationFailed indicates a commit, push or PR step failed.
	// Publication is never retried automatically.
	ErrPublicationFailed = errors.New("publication failed")
)

// Decision is the structured outcome of analyzing a report: the single
// highest-value actionable item. Produced once per run.
type Decision struct {
	PriorityItem       string   `json:"priorityItem"`
	Description        string   `json:"description"`
	Rationale          string   `json:"rationale"`
	AcceptanceCriteria []string `json:"acceptanceCriteria"`
	EstimatedTasks     int      `json:"estimatedTasks"`
	BranchName         string   `json:"branchName"`
}

// CompletedItem is one recently finished priority item, fed into analysis
// as a negative constraint. Derived fresh each run, never persisted.
type CompletedItem struct {
	Title string
	Date  time.Time
}

// State is the persisted pipeline position. It is written after every step
// so an interrupted run can be inspected or resumed from disk.
type State struct {
	Step       string    `json:"step"`
	BranchName string    `json:"branchName"`
	ReportPath string    `json:"reportPath"`
	PRDPath    string    `json:"prdPath"`
	StartedAt  time.Time `json:"startedAt"`
	Decision   *Decision `json:"decision,omitempty"`
}

// Pipeline step values, in execution order.
const (
	StepAnalyze     = "analyze"
	StepBranch      = "branch"
	StepMaterialize = "materialize"
	StepLoop        = "loop"
	StepPublish     = "publish"
	StepDone        = "done"
)
