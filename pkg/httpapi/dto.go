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

package httpapi

import (
	"encoding/json"

	"github.com/jordigilh/alertpipe/pkg/definition"
	"github.com/jordigilh/alertpipe/pkg/types"
)

// SubmitResponse answers both the sync and async variants of
// `POST /pipeline/`. The async variant stops at RunID/TraceID; the sync
// variant fills in the rest once the run reaches a terminal state.
type SubmitResponse struct {
	RunID           string `json:"run_id"`
	TraceID         string `json:"trace_id"`
	Status          string `json:"status,omitempty"`
	IncidentID      string `json:"incident_id,omitempty"`
	CurrentStage    string `json:"current_stage,omitempty"`
	TotalDurationMS int64  `json:"total_duration_ms,omitempty"`
}

func newSubmitResponse(run *types.PipelineRun) SubmitResponse {
	return SubmitResponse{
		RunID:           run.ID,
		TraceID:         run.TraceID,
		Status:          string(run.Status),
		IncidentID:      run.IncidentID,
		CurrentStage:    string(run.CurrentStage),
		TotalDurationMS: run.TotalDurationMS,
	}
}

// RunDetail is the `GET /pipeline/{run_id}/` response: the run plus every
// StageExecution attempt recorded against it.
type RunDetail struct {
	Run    RunSummary       `json:"run"`
	Stages []StageExecSummary `json:"stages"`
}

type RunSummary struct {
	RunID              string `json:"run_id"`
	TraceID            string `json:"trace_id"`
	Source             string `json:"source"`
	Environment        string `json:"environment"`
	IncidentID         string `json:"incident_id,omitempty"`
	Status             string `json:"status"`
	CurrentStage       string `json:"current_stage,omitempty"`
	TotalAttempts      int    `json:"total_attempts"`
	MaxRetries         int    `json:"max_retries"`
	LastErrorType      string `json:"last_error_type,omitempty"`
	LastErrorMessage   string `json:"last_error_message,omitempty"`
	LastErrorRetryable bool   `json:"last_error_retryable,omitempty"`
	CreatedAt          string `json:"created_at"`
	TotalDurationMS    int64  `json:"total_duration_ms,omitempty"`
}

type StageExecSummary struct {
	Stage          string `json:"stage"`
	Attempt        int    `json:"attempt"`
	Status         string `json:"status"`
	ErrorType      string `json:"error_type,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	ErrorRetryable bool   `json:"error_retryable,omitempty"`
	DurationMS     int64  `json:"duration_ms"`
}

func newRunSummary(run *types.PipelineRun) RunSummary {
	return RunSummary{
		RunID:              run.ID,
		TraceID:            run.TraceID,
		Source:             run.Source,
		Environment:        run.Environment,
		IncidentID:         run.IncidentID,
		Status:             string(run.Status),
		CurrentStage:       string(run.CurrentStage),
		TotalAttempts:      run.TotalAttempts,
		MaxRetries:         run.MaxRetries,
		LastErrorType:      run.LastErrorType,
		LastErrorMessage:   run.LastErrorMessage,
		LastErrorRetryable: run.LastErrorRetryable,
		CreatedAt:          run.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
		TotalDurationMS:    run.TotalDurationMS,
	}
}

func newRunDetail(run *types.PipelineRun, execs []*types.StageExecution) RunDetail {
	stages := make([]StageExecSummary, 0, len(execs))
	for _, se := range execs {
		stages = append(stages, StageExecSummary{
			Stage:          se.Stage,
			Attempt:        se.Attempt,
			Status:         string(se.Status),
			ErrorType:      se.ErrorType,
			ErrorMessage:   se.ErrorMessage,
			ErrorRetryable: se.ErrorRetryable,
			DurationMS:     se.DurationMS,
		})
	}
	return RunDetail{Run: newRunSummary(run), Stages: stages}
}

// RunListResponse answers `GET /pipelines/`.
type RunListResponse struct {
	Runs []RunSummary `json:"runs"`
}

// ExecuteDefinitionRequest is the `POST /definitions/{name}/execute/` body.
type ExecuteDefinitionRequest struct {
	Payload     json.RawMessage `json:"payload" validate:"required"`
	Source      string          `json:"source"`
	TraceID     string          `json:"trace_id,omitempty"`
	Environment string          `json:"environment"`
	IncidentID  string          `json:"incident_id,omitempty"`
}

// ExecuteDefinitionResponse answers `POST /definitions/{name}/execute/`
// per §6's field list.
type ExecuteDefinitionResponse struct {
	RunID         string                           `json:"run_id"`
	TraceID       string                           `json:"trace_id"`
	Status        string                           `json:"status"`
	ExecutedNodes []string                         `json:"executed_nodes"`
	SkippedNodes  []string                         `json:"skipped_nodes"`
	NodeResults   map[string]NodeResultDTO         `json:"node_results"`
	DurationMS    int64                            `json:"duration_ms"`
	Error         string                           `json:"error,omitempty"`
}

type NodeResultDTO struct {
	Errors     []string `json:"errors,omitempty"`
	Failed     bool     `json:"failed,omitempty"`
	Skipped    bool     `json:"skipped,omitempty"`
	SkipReason string   `json:"skip_reason,omitempty"`
	DurationMS int64    `json:"duration_ms,omitempty"`
}

func newExecuteDefinitionResponse(run *types.PipelineRun, report *definition.Report) ExecuteDefinitionResponse {
	resp := ExecuteDefinitionResponse{
		RunID:         run.ID,
		TraceID:       run.TraceID,
		Status:        string(run.Status),
		ExecutedNodes: report.ExecutedNodes,
		SkippedNodes:  report.SkippedNodes,
		NodeResults:   make(map[string]NodeResultDTO, len(report.NodeResults)),
		DurationMS:    run.TotalDurationMS,
		Error:         run.LastErrorMessage,
	}
	for id, outcome := range report.NodeResults {
		resp.NodeResults[id] = NodeResultDTO{
			Errors:     outcome.Errors,
			Failed:     outcome.Failed,
			Skipped:    outcome.Skipped,
			SkipReason: outcome.SkipReason,
			DurationMS: outcome.DurationMS,
		}
	}
	return resp
}

// DefinitionSummary answers `GET /definitions/`; `GET /definitions/{name}/`
// returns the full definition instead.
type DefinitionSummary struct {
	Name     string `json:"name"`
	Version  int    `json:"version"`
	IsActive bool   `json:"is_active"`
	Tags     []string `json:"tags,omitempty"`
}

func newDefinitionSummary(def *types.PipelineDefinition) DefinitionSummary {
	return DefinitionSummary{Name: def.Name, Version: def.Version, IsActive: def.IsActive, Tags: def.Tags}
}

// ValidateDefinitionResponse answers `POST /definitions/{name}/validate/`.
type ValidateDefinitionResponse struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}
