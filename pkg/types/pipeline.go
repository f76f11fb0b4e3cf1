/*
Copyright 2025 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package types

import "time"

// Stage is one of the four fixed-topology stages.
type Stage string

const (
	StageIngest  Stage = "ingest"
	StageCheck   Stage = "check"
	StageAnalyze Stage = "analyze"
	StageNotify  Stage = "notify"
)

// FixedStageOrder is the strict sequential order the fixed-topology
// orchestrator drives a run through.
var FixedStageOrder = []Stage{StageIngest, StageCheck, StageAnalyze, StageNotify}

// NextStage returns the stage after s, and ok=false if s is the last stage.
func NextStage(s Stage) (Stage, bool) {
	for i, st := range FixedStageOrder {
		if st == s && i+1 < len(FixedStageOrder) {
			return FixedStageOrder[i+1], true
		}
	}
	return "", false
}

// RunStatus is the fixed-topology orchestrator's state machine position.
type RunStatus string

const (
	RunPending   RunStatus = "PENDING"
	RunIngested  RunStatus = "INGESTED"
	RunChecked   RunStatus = "CHECKED"
	RunAnalyzed  RunStatus = "ANALYZED"
	RunNotified  RunStatus = "NOTIFIED"
	RunRetrying  RunStatus = "RETRYING"
	RunFailed    RunStatus = "FAILED"

	// RunCompleted is the definition orchestrator's success terminal state
	// (§4.5): a run that exits the last node of a PipelineDefinition with no
	// required-node failure. The fixed orchestrator never produces it —
	// its own success terminal is RunNotified.
	RunCompleted RunStatus = "COMPLETED"
)

// StageCompletionStatus is the RunStatus a run enters once a given stage
// succeeds.
var StageCompletionStatus = map[Stage]RunStatus{
	StageIngest:  RunIngested,
	StageCheck:   RunChecked,
	StageAnalyze: RunAnalyzed,
	StageNotify:  RunNotified,
}

// IsTerminal reports whether status is a terminal run state.
func IsTerminal(status RunStatus) bool {
	return status == RunNotified || status == RunFailed || status == RunCompleted
}

// PipelineRun is the top-level lifecycle record of one orchestration.
type PipelineRun struct {
	ID                 string
	TraceID             string
	Source              string
	Environment         string
	IncidentID          string
	Status              RunStatus
	CurrentStage        Stage
	TotalAttempts       int
	MaxRetries          int
	LastErrorType       string
	LastErrorMessage    string
	LastErrorRetryable  bool
	CreatedAt           time.Time
	StartedAt           *time.Time
	CompletedAt         *time.Time
	TotalDurationMS     int64
}

type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageRunning   StageStatus = "running"
	StageSucceeded StageStatus = "succeeded"
	StageFailed    StageStatus = "failed"
	StageSkipped   StageStatus = "skipped"
)

// StageExecution is one attempt of one stage (fixed topology) or node
// (definition DAG — `Stage` holds the node type) within a PipelineRun.
type StageExecution struct {
	ID             string
	PipelineRunID  string
	Stage          string
	Attempt        int
	IdempotencyKey string
	Status         StageStatus
	InputRef       string
	OutputRef      string
	OutputSnapshot []byte
	ErrorType      string
	ErrorMessage   string
	ErrorStack     string
	ErrorRetryable bool
	StartedAt      *time.Time
	CompletedAt    *time.Time
	DurationMS     int64
}

// NotificationChannel is persisted config for one notification target.
type NotificationChannel struct {
	ID       string
	Name     string
	Driver   string
	Config   map[string]interface{}
	IsActive bool
}

// IntelligenceProvider is persisted config for one AI provider. At most one
// row may have IsActive=true; enforced at the storage layer.
type IntelligenceProvider struct {
	ID          string
	Name        string
	Type        string
	Credentials map[string]interface{}
	IsActive    bool
}
