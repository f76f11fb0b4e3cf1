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

package orchestrator

import (
	"encoding/json"

	"github.com/jordigilh/alertpipe/pkg/stages"
	"github.com/jordigilh/alertpipe/pkg/types"
)

// inlineOutputLimit is the §4.3 step 5 inline/by-reference threshold
// ("persist output, inline for small, by reference for large"). No
// object-store driver is wired into this orchestration core (SPEC_FULL.md's
// DOMAIN STACK has no blob-storage entry to back OutputRef with), so an
// output over the limit is still inlined rather than silently dropped;
// OutputRef stays empty either way until a blob store is wired.
const inlineOutputLimit = 32 * 1024

// encodeOutput serializes a stage's Output for StageExecution.OutputSnapshot.
// Stage outputs are plain exported-field structs (stages.IngestOutput,
// CheckOutput, AnalyzeOutput, NotifyOutput), so the generic reflection-based
// encoding/json round-trip fits here; go-faster/jx (used by the postgres
// converters for hand-rolled label maps) has no generic struct marshaling
// API and would require a bespoke encoder per output type for no benefit.
func encodeOutput(output interface{}) ([]byte, error) {
	if output == nil {
		return nil, nil
	}
	return json.Marshal(output)
}

// decodeOutput is encodeOutput's inverse, used by Resume to rehydrate
// sc.PreviousOutputs from succeeded StageExecution rows into the same
// concrete types the downstream stages type-assert against.
func decodeOutput(stage types.Stage, data []byte) (interface{}, error) {
	if len(data) == 0 {
		return nil, nil
	}
	switch stage {
	case types.StageIngest:
		var out stages.IngestOutput
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, err
		}
		return out, nil
	case types.StageCheck:
		var out stages.CheckOutput
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, err
		}
		return out, nil
	case types.StageAnalyze:
		var out stages.AnalyzeOutput
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, err
		}
		return out, nil
	case types.StageNotify:
		var out stages.NotifyOutput
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, err
		}
		return out, nil
	default:
		return nil, nil
	}
}
