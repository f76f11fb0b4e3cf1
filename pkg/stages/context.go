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

// Package stages implements the four fixed-topology stage executors
// (ingest, check, analyze, notify), each programmed against the uniform
// execute(context) -> StageResult contract of spec §4.2. The definition
// orchestrator's node handlers (pkg/nodes) wrap these same executors rather
// than reimplementing their policy.
package stages

// Context carries everything a stage needs to run, threaded from the
// orchestrator through every stage of one run.
type Context struct {
	TraceID  string
	RunID    string

	IncidentID string

	RawPayload []byte
	SourceHint string

	PreviousOutputs map[string]interface{}

	Environment string
	Source      string

	// Config is the stage-specific configuration resolved for this run
	// (checker hostname/skip list, driver set, provider override, ...).
	Config map[string]interface{}
}

func (sc Context) stringConfig(key string) string {
	if v, ok := sc.Config[key].(string); ok {
		return v
	}
	return ""
}

func (sc Context) stringSliceConfig(key string) []string {
	raw, ok := sc.Config[key].([]string)
	if ok {
		return raw
	}
	if anySlice, ok := sc.Config[key].([]interface{}); ok {
		out := make([]string, 0, len(anySlice))
		for _, v := range anySlice {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Result is the uniform outcome of one stage execution. Errors is populated
// for partial failures (a failed checker, a failed notify channel) that do
// not necessarily fail the stage; Failed is each stage's own verdict per its
// §4.2 failure policy and is what the orchestrator acts on.
type Result struct {
	Output     interface{}
	Errors     []string
	Failed     bool
	// Retryable classifies a Failed result per internal/errors, so the
	// orchestrator's retry decision reflects the actual failure kind
	// instead of assuming every stage failure is transient.
	Retryable  bool
	DurationMS int64
	Skip       bool
	SkipReason string
}
