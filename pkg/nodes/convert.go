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

package nodes

import (
	"github.com/jordigilh/alertpipe/pkg/stages"
	"github.com/jordigilh/alertpipe/pkg/types"
)

// fromStageResult lifts a §4.2 stage Result into the node-level Result, the
// two being structurally identical: a node is a stage wearing the definition
// orchestrator's contract.
func fromStageResult(r stages.Result) Result {
	return Result{
		Output:     r.Output,
		Errors:     r.Errors,
		Failed:     r.Failed,
		Retryable:  r.Retryable,
		DurationMS: r.DurationMS,
		Skip:       r.Skip,
		SkipReason: r.SkipReason,
	}
}

// stagePreviousOutputs re-keys a node graph's by-node-id outputs to the
// by-stage-type keys the wrapped §4.2 stage executors expect. A definition
// graph names nodes freely, but a node wrapping stages.Check/Analyze/Notify
// is still the same executor reading the same fixed keys internally, so the
// upstream output is matched by its concrete type rather than by node id.
func stagePreviousOutputs(nc Context) map[string]interface{} {
	out := make(map[string]interface{}, len(nc.PreviousOutputs))
	for _, v := range nc.PreviousOutputs {
		switch v.(type) {
		case stages.IngestOutput:
			out[string(types.StageIngest)] = v
		case stages.CheckOutput:
			out[string(types.StageCheck)] = v
		case stages.AnalyzeOutput:
			out[string(types.StageAnalyze)] = v
		case stages.NotifyOutput:
			out[string(types.StageNotify)] = v
		}
	}
	return out
}
