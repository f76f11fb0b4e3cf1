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

// Package orchestrator drives a PipelineRun through the fixed four-stage
// topology of §4.3: PENDING -> INGESTED -> CHECKED -> ANALYZED -> NOTIFIED,
// with RETRYING/FAILED excursions on retryable/fatal stage failures.
package orchestrator

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	apperrors "github.com/jordigilh/alertpipe/internal/errors"
	"github.com/jordigilh/alertpipe/pkg/metrics"
	"github.com/jordigilh/alertpipe/pkg/retry"
	"github.com/jordigilh/alertpipe/pkg/stages"
	"github.com/jordigilh/alertpipe/pkg/storage/repository"
	"github.com/jordigilh/alertpipe/pkg/types"
)

// StageExecutor is the uniform contract every fixed stage implements,
// satisfied by *stages.Ingest, *stages.Check, *stages.Analyze, *stages.Notify.
type StageExecutor interface {
	Execute(ctx context.Context, sc stages.Context) stages.Result
}

// Orchestrator drives PipelineRun rows through the fixed topology.
type Orchestrator struct {
	Runs       repository.PipelineRunRepository
	StageExecs repository.StageExecutionRepository

	Executors map[types.Stage]StageExecutor

	Backoff      retry.BackoffConfig
	StageTimeout time.Duration

	// Metrics is optional; a nil value disables instrumentation.
	Metrics *metrics.Metrics

	Log logr.Logger
}

func New(runs repository.PipelineRunRepository, stageExecs repository.StageExecutionRepository, executors map[types.Stage]StageExecutor, log logr.Logger) *Orchestrator {
	return &Orchestrator{
		Runs:         runs,
		StageExecs:   stageExecs,
		Executors:    executors,
		Backoff:      retry.DefaultBackoffConfig(),
		StageTimeout: 30 * time.Second,
		Log:          log,
	}
}

// Submit creates a PipelineRun for a fresh (payload, source_hint) pair and
// drives it to a terminal state.
func (o *Orchestrator) Submit(ctx context.Context, traceID, source, environment string, rawPayload []byte, sourceHint string) (*types.PipelineRun, error) {
	return o.SubmitFrom(ctx, traceID, source, environment, rawPayload, sourceHint, "")
}

// SubmitFrom is Submit with a caller-supplied incidentID seeded up front,
// making IngestStage a no-op per §4.2 ("skippable when the caller already
// has an incident").
func (o *Orchestrator) SubmitFrom(ctx context.Context, traceID, source, environment string, rawPayload []byte, sourceHint, incidentID string) (*types.PipelineRun, error) {
	run, sc, err := o.create(ctx, traceID, source, environment, rawPayload, sourceHint, incidentID)
	if err != nil {
		return nil, err
	}
	return o.drive(ctx, run, sc, types.StageIngest)
}

// SubmitAsync creates and persists the PipelineRun, then drives it to a
// terminal state on a background goroutine, returning the freshly created
// (PENDING) run immediately — the §6 "async variant" of pipeline submission.
// ctx governs only the initial insert; driving the run uses context.Background
// so it is not cancelled when the originating request completes.
func (o *Orchestrator) SubmitAsync(ctx context.Context, traceID, source, environment string, rawPayload []byte, sourceHint string) (*types.PipelineRun, error) {
	return o.SubmitAsyncFrom(ctx, traceID, source, environment, rawPayload, sourceHint, "")
}

// SubmitAsyncFrom is SubmitAsync with a caller-supplied incidentID, mirroring
// SubmitFrom.
func (o *Orchestrator) SubmitAsyncFrom(ctx context.Context, traceID, source, environment string, rawPayload []byte, sourceHint, incidentID string) (*types.PipelineRun, error) {
	run, sc, err := o.create(ctx, traceID, source, environment, rawPayload, sourceHint, incidentID)
	if err != nil {
		return nil, err
	}
	go func() {
		if _, err := o.drive(context.Background(), run, sc, types.StageIngest); err != nil {
			o.Log.Error(err, "async pipeline run failed", "trace_id", run.TraceID, "run_id", run.ID)
		}
	}()
	return run, nil
}

func (o *Orchestrator) create(ctx context.Context, traceID, source, environment string, rawPayload []byte, sourceHint, incidentID string) (*types.PipelineRun, stages.Context, error) {
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
		MaxRetries:  3,
		CreatedAt:   now,
		StartedAt:   &now,
	}
	if err := o.Runs.Insert(ctx, run); err != nil {
		return nil, stages.Context{}, apperrors.Wrap(err, apperrors.KindTransient, "insert pipeline run").WithRetryable(true)
	}

	sc := stages.Context{
		TraceID:     traceID,
		RunID:       run.ID,
		RawPayload:  rawPayload,
		SourceHint:  sourceHint,
		Environment: environment,
		Source:      source,
		IncidentID:  incidentID,
	}
	return run, sc, nil
}

// Resume re-enters the state machine at the first stage with no succeeded
// StageExecution row, per §4.3's resume contract: outputs of previously
// succeeded stages are re-read, not recomputed.
func (o *Orchestrator) Resume(ctx context.Context, runID string) (*types.PipelineRun, error) {
	run, err := o.Runs.Get(ctx, runID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindNotFound, "pipeline run not found")
	}

	succeeded, err := o.StageExecs.SucceededStages(ctx, runID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindTransient, "load succeeded stages").WithRetryable(true)
	}

	sc := stages.Context{
		TraceID:         run.TraceID,
		RunID:           run.ID,
		IncidentID:      run.IncidentID,
		Environment:     run.Environment,
		Source:          run.Source,
		PreviousOutputs: map[string]interface{}{},
	}

	// §4.3: "outputs of previously succeeded stages are re-read (not
	// recomputed)" — rehydrate each succeeded stage's snapshot back into
	// PreviousOutputs so ANALYZED/NOTIFIED stages resumed mid-run see the
	// same check/analyze results a non-resumed run would have produced.
	for stageName, se := range succeeded {
		output, err := decodeOutput(types.Stage(stageName), se.OutputSnapshot)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.KindTransient, "decode stage output for "+stageName).WithRetryable(false)
		}
		sc.PreviousOutputs[stageName] = output
	}

	resumeStage := types.StageIngest
	for _, st := range types.FixedStageOrder {
		if _, ok := succeeded[string(st)]; ok {
			resumeStage, _ = types.NextStage(st)
			continue
		}
		break
	}
	if resumeStage == "" {
		// every stage already succeeded; nothing left to resume.
		return run, nil
	}

	return o.drive(ctx, run, sc, resumeStage)
}

// drive runs stage, and every stage after it, until the run reaches a
// terminal state.
func (o *Orchestrator) drive(ctx context.Context, run *types.PipelineRun, sc stages.Context, stage types.Stage) (*types.PipelineRun, error) {
	for {
		outcome, err := o.runStage(ctx, run, sc, stage)
		if err != nil {
			return run, err
		}
		if outcome.terminal {
			return run, nil
		}
		sc = outcome.nextContext
		stage = outcome.nextStage
	}
}

type stageOutcome struct {
	terminal    bool
	nextStage   types.Stage
	nextContext stages.Context
}

func (o *Orchestrator) runStage(ctx context.Context, run *types.PipelineRun, sc stages.Context, stage types.Stage) (stageOutcome, error) {
	executor, ok := o.Executors[stage]
	if !ok {
		return stageOutcome{}, apperrors.Newf(apperrors.KindValidation, "no executor registered for stage %q", stage)
	}

	attempt, err := o.StageExecs.MaxAttempt(ctx, run.ID, string(stage))
	if err != nil {
		return stageOutcome{}, apperrors.Wrap(err, apperrors.KindTransient, "load max attempt").WithRetryable(true)
	}
	attempt++

	se := &types.StageExecution{
		ID:             uuid.NewString(),
		PipelineRunID:  run.ID,
		Stage:          string(stage),
		Attempt:        attempt,
		IdempotencyKey: retry.IdempotencyKey(run.ID, string(stage), attempt),
		Status:         types.StagePending,
	}
	if err := o.StageExecs.Insert(ctx, se); err != nil {
		return stageOutcome{}, apperrors.Wrap(err, apperrors.KindTransient, "insert stage execution").WithRetryable(true)
	}

	started := time.Now().UTC()
	se.Status = types.StageRunning
	se.StartedAt = &started
	if err := o.StageExecs.Update(ctx, se); err != nil {
		return stageOutcome{}, apperrors.Wrap(err, apperrors.KindTransient, "mark stage running").WithRetryable(true)
	}

	stageCtx, cancel := context.WithTimeout(ctx, o.StageTimeout)
	result := executor.Execute(stageCtx, sc)
	cancel()

	completed := time.Now().UTC()
	se.CompletedAt = &completed
	se.DurationMS = result.DurationMS
	run.TotalAttempts++

	if o.Metrics != nil {
		o.Metrics.ObserveStage(string(stage), float64(result.DurationMS)/1000)
		if attempt > 1 {
			o.Metrics.RecordRetry(string(stage))
		}
	}

	if result.Skip {
		se.Status = types.StageSkipped
		if err := o.StageExecs.Update(ctx, se); err != nil {
			return stageOutcome{}, apperrors.Wrap(err, apperrors.KindTransient, "mark stage skipped").WithRetryable(true)
		}
		return o.advance(ctx, run, sc, stage, result)
	}

	if result.Failed {
		return o.handleFailure(ctx, run, sc, stage, se, result)
	}

	snapshot, err := encodeOutput(result.Output)
	if err != nil {
		return stageOutcome{}, apperrors.Wrap(err, apperrors.KindTransient, "encode stage output").WithRetryable(false)
	}
	se.Status = types.StageSucceeded
	se.OutputSnapshot = snapshot
	if err := o.StageExecs.Update(ctx, se); err != nil {
		return stageOutcome{}, apperrors.Wrap(err, apperrors.KindTransient, "mark stage succeeded").WithRetryable(true)
	}

	return o.advance(ctx, run, sc, stage, result)
}

func (o *Orchestrator) advance(ctx context.Context, run *types.PipelineRun, sc stages.Context, stage types.Stage, result stages.Result) (stageOutcome, error) {
	if out, ok := incidentIDFromOutput(result.Output); ok && out != "" {
		run.IncidentID = out
		sc.IncidentID = out
	}

	if sc.PreviousOutputs == nil {
		sc.PreviousOutputs = map[string]interface{}{}
	}
	sc.PreviousOutputs[string(stage)] = result.Output

	run.Status = types.StageCompletionStatus[stage]

	next, hasNext := types.NextStage(stage)
	if hasNext {
		run.CurrentStage = next
	} else {
		run.CurrentStage = stage
	}

	if !hasNext {
		run.CompletedAt = timePtr(time.Now().UTC())
		if run.StartedAt != nil {
			run.TotalDurationMS = run.CompletedAt.Sub(*run.StartedAt).Milliseconds()
		}
		if err := o.Runs.Update(ctx, run); err != nil {
			return stageOutcome{}, apperrors.Wrap(err, apperrors.KindTransient, "mark run notified").WithRetryable(true)
		}
		if o.Metrics != nil {
			o.Metrics.RecordRunCompletion(string(run.Status))
		}
		return stageOutcome{terminal: true}, nil
	}

	if err := o.Runs.Update(ctx, run); err != nil {
		return stageOutcome{}, apperrors.Wrap(err, apperrors.KindTransient, "advance run stage").WithRetryable(true)
	}

	return stageOutcome{nextStage: next, nextContext: sc}, nil
}

func (o *Orchestrator) handleFailure(ctx context.Context, run *types.PipelineRun, sc stages.Context, stage types.Stage, se *types.StageExecution, result stages.Result) (stageOutcome, error) {
	errMsg := "stage failed"
	if len(result.Errors) > 0 {
		errMsg = result.Errors[0]
	}

	errType := apperrors.KindTransient
	if !result.Retryable {
		errType = apperrors.KindValidation
	}

	se.Status = types.StageFailed
	se.ErrorType = string(errType)
	se.ErrorMessage = errMsg
	se.ErrorRetryable = result.Retryable
	if err := o.StageExecs.Update(ctx, se); err != nil {
		return stageOutcome{}, apperrors.Wrap(err, apperrors.KindTransient, "mark stage failed").WithRetryable(true)
	}

	if o.Metrics != nil {
		o.Metrics.RecordFailure(string(stage), result.Retryable)
	}

	run.LastErrorType = se.ErrorType
	run.LastErrorMessage = errMsg
	run.LastErrorRetryable = se.ErrorRetryable

	if se.ErrorRetryable && run.TotalAttempts < run.MaxRetries {
		run.Status = types.RunRetrying
		if err := o.Runs.Update(ctx, run); err != nil {
			return stageOutcome{}, apperrors.Wrap(err, apperrors.KindTransient, "mark run retrying").WithRetryable(true)
		}
		o.Log.Info("stage failed, scheduling retry", "trace_id", sc.TraceID, "run_id", run.ID, "stage", stage, "attempt", se.Attempt)

		select {
		case <-time.After(o.Backoff.Delay(se.Attempt)):
		case <-ctx.Done():
			return stageOutcome{}, apperrors.Wrap(ctx.Err(), apperrors.KindCancelled, "run cancelled during retry backoff")
		}

		return stageOutcome{nextStage: stage, nextContext: sc}, nil
	}

	run.Status = types.RunFailed
	run.CompletedAt = timePtr(time.Now().UTC())
	if err := o.Runs.Update(ctx, run); err != nil {
		return stageOutcome{}, apperrors.Wrap(err, apperrors.KindTransient, "mark run failed").WithRetryable(true)
	}
	if o.Metrics != nil {
		o.Metrics.RecordRunCompletion(string(run.Status))
	}
	return stageOutcome{terminal: true}, nil
}

func incidentIDFromOutput(output interface{}) (string, bool) {
	switch o := output.(type) {
	case stages.IngestOutput:
		return o.IncidentID, true
	default:
		return "", false
	}
}

func timePtr(t time.Time) *time.Time { return &t }
