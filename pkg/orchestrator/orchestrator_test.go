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

package orchestrator_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordigilh/alertpipe/pkg/orchestrator"
	"github.com/jordigilh/alertpipe/pkg/retry"
	"github.com/jordigilh/alertpipe/pkg/stages"
	"github.com/jordigilh/alertpipe/pkg/storage/memory"
	"github.com/jordigilh/alertpipe/pkg/types"
)

type fnExecutor struct {
	fn    func(ctx context.Context, sc stages.Context) stages.Result
	calls int
}

func (f *fnExecutor) Execute(ctx context.Context, sc stages.Context) stages.Result {
	f.calls++
	return f.fn(ctx, sc)
}

func succeeding(output interface{}) *fnExecutor {
	return &fnExecutor{fn: func(ctx context.Context, sc stages.Context) stages.Result {
		return stages.Result{Output: output}
	}}
}

func newOrchestrator(executors map[types.Stage]orchestrator.StageExecutor) (*orchestrator.Orchestrator, *memory.Store) {
	store := memory.NewStore()
	o := orchestrator.New(memory.PipelineRunRepo{S: store}, memory.StageExecutionRepo{S: store}, executors, logr.Discard())
	o.Backoff = retry.BackoffConfig{InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	return o, store
}

func TestSubmit_AllStagesSucceedReachesNotified(t *testing.T) {
	executors := map[types.Stage]orchestrator.StageExecutor{
		types.StageIngest:  succeeding(stages.IngestOutput{IncidentID: "inc-1"}),
		types.StageCheck:   succeeding(stages.CheckOutput{ChecksRun: 1}),
		types.StageAnalyze: succeeding(stages.AnalyzeOutput{}),
		types.StageNotify:  succeeding(stages.NotifyOutput{}),
	}
	o, store := newOrchestrator(executors)

	run, err := o.Submit(context.Background(), "", "alertmanager", "prod", []byte(`{}`), "")
	require.NoError(t, err)
	assert.Equal(t, types.RunNotified, run.Status)
	assert.Equal(t, "inc-1", run.IncidentID)

	execs, err := memory.StageExecutionRepo{S: store}.ListByRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Len(t, execs, 4)
	for _, e := range execs {
		assert.Equal(t, types.StageSucceeded, e.Status)
	}
}

func TestSubmit_NonRetryableFailureMarksRunFailed(t *testing.T) {
	executors := map[types.Stage]orchestrator.StageExecutor{
		types.StageIngest: &fnExecutor{fn: func(ctx context.Context, sc stages.Context) stages.Result {
			return stages.Result{Failed: true, Errors: []string{"bad payload"}}
		}},
	}
	o, _ := newOrchestrator(executors)
	o.Backoff.InitialDelay = 0

	run, err := o.Submit(context.Background(), "", "generic", "prod", []byte(`{}`), "")
	require.NoError(t, err)
	assert.Equal(t, types.RunFailed, run.Status)
}

func TestSubmit_RetryableFailureRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	executors := map[types.Stage]orchestrator.StageExecutor{
		types.StageIngest: &fnExecutor{fn: func(ctx context.Context, sc stages.Context) stages.Result {
			attempts++
			if attempts == 1 {
				return stages.Result{Failed: true, Retryable: true, Errors: []string{"transient"}}
			}
			return stages.Result{Output: stages.IngestOutput{IncidentID: "inc-1"}}
		}},
		types.StageCheck:   succeeding(stages.CheckOutput{}),
		types.StageAnalyze: succeeding(stages.AnalyzeOutput{}),
		types.StageNotify:  succeeding(stages.NotifyOutput{}),
	}
	o, store := newOrchestrator(executors)
	o.Backoff.InitialDelay = time.Millisecond

	run, err := o.Submit(context.Background(), "", "generic", "prod", []byte(`{}`), "")
	require.NoError(t, err)
	assert.Equal(t, types.RunNotified, run.Status)
	assert.Equal(t, 2, attempts)

	execs, err := memory.StageExecutionRepo{S: store}.ListByRun(context.Background(), run.ID)
	require.NoError(t, err)
	ingestExecs := 0
	for _, e := range execs {
		if e.Stage == string(types.StageIngest) {
			ingestExecs++
		}
	}
	assert.Equal(t, 2, ingestExecs)
}

func TestResume_FullySucceededRunReexecutesNoStage(t *testing.T) {
	checkCalls := 0
	executors := map[types.Stage]orchestrator.StageExecutor{
		types.StageIngest: succeeding(stages.IngestOutput{IncidentID: "inc-1"}),
		types.StageCheck: &fnExecutor{fn: func(ctx context.Context, sc stages.Context) stages.Result {
			checkCalls++
			return stages.Result{Output: stages.CheckOutput{}}
		}},
		types.StageAnalyze: succeeding(stages.AnalyzeOutput{}),
		types.StageNotify:  succeeding(stages.NotifyOutput{}),
	}
	o, store := newOrchestrator(executors)

	run, err := o.Submit(context.Background(), "", "generic", "prod", []byte(`{}`), "")
	require.NoError(t, err)
	require.Equal(t, types.RunNotified, run.Status)
	require.Equal(t, 1, checkCalls)

	resumed, err := o.Resume(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RunNotified, resumed.Status)

	execs, err := memory.StageExecutionRepo{S: store}.ListByRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Len(t, execs, 4)
}

func TestResume_RereadsPreviouslySucceededStageOutputs(t *testing.T) {
	var seenChecksRun int
	analyzeAttempts := 0
	executors := map[types.Stage]orchestrator.StageExecutor{
		types.StageIngest: succeeding(stages.IngestOutput{IncidentID: "inc-1"}),
		types.StageCheck:  succeeding(stages.CheckOutput{ChecksRun: 3, ChecksOK: 3}),
		types.StageAnalyze: &fnExecutor{fn: func(ctx context.Context, sc stages.Context) stages.Result {
			analyzeAttempts++
			if analyzeAttempts == 1 {
				return stages.Result{Failed: true, Errors: []string{"provider unavailable"}}
			}
			checkOut, _ := sc.PreviousOutputs[string(types.StageCheck)].(stages.CheckOutput)
			seenChecksRun = checkOut.ChecksRun
			return stages.Result{Output: stages.AnalyzeOutput{}}
		}},
		types.StageNotify: succeeding(stages.NotifyOutput{}),
	}
	o, _ := newOrchestrator(executors)

	run, err := o.Submit(context.Background(), "", "generic", "prod", []byte(`{}`), "")
	require.NoError(t, err)
	require.Equal(t, types.RunFailed, run.Status)

	resumed, err := o.Resume(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RunNotified, resumed.Status)

	// The resumed analyze attempt must see the check stage's real output
	// re-read from its persisted StageExecution row, not a recomputed or
	// nil-valued one (§4.3/§8 resume correctness).
	assert.Equal(t, 3, seenChecksRun)
}
