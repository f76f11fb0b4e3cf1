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

package definition

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	apperrors "github.com/jordigilh/alertpipe/internal/errors"
	"github.com/jordigilh/alertpipe/pkg/metrics"
	"github.com/jordigilh/alertpipe/pkg/nodes"
	"github.com/jordigilh/alertpipe/pkg/predicate"
	"github.com/jordigilh/alertpipe/pkg/retry"
	"github.com/jordigilh/alertpipe/pkg/stages"
	"github.com/jordigilh/alertpipe/pkg/storage/repository"
	"github.com/jordigilh/alertpipe/pkg/types"
)

// Runner drives a PipelineRun through a PipelineDefinition's nodes in
// declared order (§4.5). Unlike Orchestrator it does not support resume —
// an explicit non-goal of the definition orchestrator.
type Runner struct {
	Runs       repository.PipelineRunRepository
	StageExecs repository.StageExecutionRepository
	Registry   *nodes.Registry

	Backoff      retry.BackoffConfig
	StageTimeout time.Duration

	// Metrics is optional; a nil value disables instrumentation.
	Metrics *metrics.Metrics

	Log logr.Logger
}

func NewRunner(runs repository.PipelineRunRepository, stageExecs repository.StageExecutionRepository, registry *nodes.Registry, log logr.Logger) *Runner {
	return &Runner{
		Runs:         runs,
		StageExecs:   stageExecs,
		Registry:     registry,
		Backoff:      retry.DefaultBackoffConfig(),
		StageTimeout: 30 * time.Second,
		Log:          log,
	}
}

// NodeOutcome is one node's contribution to a Report, keyed by node id in
// Report.NodeResults.
type NodeOutcome struct {
	Errors     []string
	Failed     bool
	Skipped    bool
	SkipReason string
	DurationMS int64
}

// Report is the by-node-id execution summary the §6 definition-execute
// endpoint surfaces (`executed_nodes`, `skipped_nodes`, `node_results`),
// alongside the PipelineRun itself.
type Report struct {
	ExecutedNodes []string
	SkippedNodes  []string
	NodeResults   map[string]NodeOutcome
}

func newReport() *Report {
	return &Report{NodeResults: map[string]NodeOutcome{}}
}

// Run executes def against a fresh PipelineRun end to end.
func (r *Runner) Run(ctx context.Context, def *types.PipelineDefinition, traceID, source, environment string, payload []byte, sourceHint string) (*types.PipelineRun, error) {
	run, _, err := r.RunWithReport(ctx, def, traceID, source, environment, payload, sourceHint)
	return run, err
}

// RunWithReport is Run plus the by-node-id Report the HTTP layer needs to
// answer §6's `POST /definitions/{name}/execute/` contract.
func (r *Runner) RunWithReport(ctx context.Context, def *types.PipelineDefinition, traceID, source, environment string, payload []byte, sourceHint string) (*types.PipelineRun, *Report, error) {
	return r.RunFrom(ctx, def, traceID, source, environment, payload, sourceHint, "")
}

// RunFrom is RunWithReport with a caller-supplied incidentID seeded into the
// node context up front — §6's optional `incident_id` field on the execute
// request, mirroring the ingest node's own skip-if-already-known-incident
// contract (§4.4).
func (r *Runner) RunFrom(ctx context.Context, def *types.PipelineDefinition, traceID, source, environment string, payload []byte, sourceHint, incidentID string) (*types.PipelineRun, *Report, error) {
	report := newReport()

	if errs := Validate(def, r.Registry); len(errs) > 0 {
		return nil, report, apperrors.Newf(apperrors.KindValidation, "definition %q failed validation: %v", def.Name, errs[0])
	}

	if traceID == "" {
		traceID = uuid.NewString()
	}
	now := time.Now().UTC()
	run := &types.PipelineRun{
		ID:          uuid.NewString(),
		TraceID:     traceID,
		Source:      source,
		Environment: environment,
		IncidentID:  incidentID,
		Status:      types.RunPending,
		MaxRetries:  orDefault(def.Config.Defaults.MaxRetries, 3),
		CreatedAt:   now,
		StartedAt:   &now,
	}
	if err := r.Runs.Insert(ctx, run); err != nil {
		return nil, report, apperrors.Wrap(err, apperrors.KindTransient, "insert pipeline run").WithRetryable(true)
	}

	nc := nodes.Context{
		TraceID:         traceID,
		RunID:           run.ID,
		IncidentID:      incidentID,
		Payload:         payload,
		SourceHint:      sourceHint,
		Environment:     environment,
		Source:          source,
		PreviousOutputs: map[string]interface{}{},
	}
	hasErrors := map[string]bool{}

	for _, spec := range def.Config.Nodes {
		skip, reason, err := r.shouldSkip(spec, hasErrors)
		if err != nil {
			run, ferr := r.fail(ctx, run, err.Error())
			return run, report, ferr
		}
		if skip {
			r.Log.Info("node skipped", "trace_id", traceID, "run_id", run.ID, "node", spec.ID, "reason", reason)
			report.SkippedNodes = append(report.SkippedNodes, spec.ID)
			report.NodeResults[spec.ID] = NodeOutcome{Skipped: true, SkipReason: reason}
			continue
		}

		result, failed := r.runNodeWithRetry(ctx, run, nc, spec)

		report.ExecutedNodes = append(report.ExecutedNodes, spec.ID)
		report.NodeResults[spec.ID] = NodeOutcome{
			Errors:     result.Errors,
			Failed:     failed,
			DurationMS: result.DurationMS,
		}

		nc.PreviousOutputs[spec.ID] = result.Output
		hasErrors[spec.ID] = len(result.Errors) > 0 || result.Failed

		if out, ok := incidentIDFromOutput(result.Output); ok && out != "" {
			nc.IncidentID = out
			run.IncidentID = out
		}

		if failed && spec.IsRequired() {
			run, ferr := r.fail(ctx, run, "required node "+spec.ID+" failed")
			return run, report, ferr
		}
	}

	run.Status = types.RunCompleted
	run.CompletedAt = timePtr(time.Now().UTC())
	if run.StartedAt != nil {
		run.TotalDurationMS = run.CompletedAt.Sub(*run.StartedAt).Milliseconds()
	}
	if err := r.Runs.Update(ctx, run); err != nil {
		return run, report, apperrors.Wrap(err, apperrors.KindTransient, "mark run completed").WithRetryable(true)
	}
	if r.Metrics != nil {
		r.Metrics.RecordRunCompletion(string(run.Status))
	}
	return run, report, nil
}

func (r *Runner) shouldSkip(spec types.NodeSpec, hasErrors map[string]bool) (bool, string, error) {
	for _, dep := range spec.SkipIfErrors {
		if hasErrors[dep] {
			return true, "skip_if_errors: " + dep, nil
		}
	}
	if spec.SkipIfCondition != "" {
		ok, err := predicate.Evaluate(spec.SkipIfCondition, hasErrors)
		if err != nil {
			return false, "", err
		}
		if ok {
			return true, "skip_if_condition: " + spec.SkipIfCondition, nil
		}
	}
	return false, "", nil
}

// runNodeWithRetry runs spec to a terminal attempt, retrying on a retryable
// failure up to the node's retry budget, per §4.6. Each attempt persists its
// own StageExecution row, identically to the fixed orchestrator.
func (r *Runner) runNodeWithRetry(ctx context.Context, run *types.PipelineRun, nc nodes.Context, spec types.NodeSpec) (nodes.Result, bool) {
	handler, ok := r.Registry.Get(spec.Type)
	if !ok {
		return nodes.Result{Failed: true, Errors: []string{"no handler registered for type " + string(spec.Type)}}, true
	}

	stageName := truncateStage(string(spec.Type))
	// §4.6: retry budget per node = min(node_config.max_retries, run.max_retries).
	maxRetries := minPositive(nodeMaxRetries(spec), run.MaxRetries)

	var result nodes.Result
	for {
		attempt, err := r.StageExecs.MaxAttempt(ctx, run.ID, stageName)
		if err != nil {
			return nodes.Result{Failed: true, Errors: []string{err.Error()}}, true
		}
		attempt++

		se := &types.StageExecution{
			ID:             uuid.NewString(),
			PipelineRunID:  run.ID,
			Stage:          stageName,
			Attempt:        attempt,
			IdempotencyKey: retry.IdempotencyKey(run.ID, spec.ID, attempt),
			Status:         types.StagePending,
		}
		_ = r.StageExecs.Insert(ctx, se)

		started := time.Now().UTC()
		se.Status = types.StageRunning
		se.StartedAt = &started
		_ = r.StageExecs.Update(ctx, se)

		nodeCtx := nc
		nodeCtx.Config = spec.Config

		execCtx, cancel := context.WithTimeout(ctx, r.StageTimeout)
		result = handler.Execute(execCtx, nodeCtx)
		cancel()

		completed := time.Now().UTC()
		se.CompletedAt = &completed
		se.DurationMS = result.DurationMS
		run.TotalAttempts++

		if r.Metrics != nil {
			r.Metrics.ObserveStage(stageName, float64(result.DurationMS)/1000)
			if attempt > 1 {
				r.Metrics.RecordRetry(stageName)
			}
		}

		if !result.Failed {
			se.Status = types.StageSucceeded
			_ = r.StageExecs.Update(ctx, se)
			return result, false
		}

		errMsg := "node failed"
		if len(result.Errors) > 0 {
			errMsg = result.Errors[0]
		}
		se.Status = types.StageFailed
		se.ErrorMessage = errMsg
		se.ErrorRetryable = result.Retryable
		_ = r.StageExecs.Update(ctx, se)

		if !result.Retryable || attempt >= maxRetries {
			if r.Metrics != nil {
				r.Metrics.RecordFailure(stageName, result.Retryable)
			}
			return result, true
		}

		select {
		case <-time.After(r.Backoff.Delay(attempt)):
		case <-ctx.Done():
			return nodes.Result{Failed: true, Errors: []string{"cancelled during retry backoff"}}, true
		}
	}
}

func (r *Runner) fail(ctx context.Context, run *types.PipelineRun, reason string) (*types.PipelineRun, error) {
	run.Status = types.RunFailed
	run.LastErrorMessage = reason
	run.CompletedAt = timePtr(time.Now().UTC())
	if err := r.Runs.Update(ctx, run); err != nil {
		return run, apperrors.Wrap(err, apperrors.KindTransient, "mark run failed").WithRetryable(true)
	}
	if r.Metrics != nil {
		r.Metrics.RecordRunCompletion(string(run.Status))
	}
	return run, nil
}

func incidentIDFromOutput(output interface{}) (string, bool) {
	switch o := output.(type) {
	case stages.IngestOutput:
		return o.IncidentID, true
	default:
		return "", false
	}
}

func truncateStage(s string) string {
	const max = 20
	if len(s) > max {
		return s[:max]
	}
	return s
}

// nodeMaxRetries returns a node's own config.max_retries override, or 0 if
// unset (meaning: defer to the run's budget).
func nodeMaxRetries(spec types.NodeSpec) int {
	if v, ok := spec.Config["max_retries"].(int); ok && v > 0 {
		return v
	}
	if v, ok := spec.Config["max_retries"].(float64); ok && v > 0 {
		return int(v)
	}
	return 0
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func minPositive(a, b int) int {
	if a <= 0 {
		return b
	}
	if b <= 0 {
		return a
	}
	if a < b {
		return a
	}
	return b
}

func timePtr(t time.Time) *time.Time { return &t }
