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

// Package nodes implements the pluggable node types of the definition
// orchestrator (§4.4): ingest, context, intelligence, notify, transform.
// Each node wraps the matching §4.2 fixed-topology stage executor rather
// than reimplementing its policy — a node is the same executor behind the
// uniform validate(config)/execute(ctx, cfg) -> NodeResult contract the
// definition orchestrator drives.
package nodes

import (
	"context"

	"github.com/jordigilh/alertpipe/pkg/types"
)

// Node is one pluggable node type's handler.
type Node interface {
	Type() types.NodeType
	// Validate runs static, pre-execution checks against a node's config.
	Validate(config map[string]interface{}) []error
	Execute(ctx context.Context, nc Context) Result
}

// Context carries everything a node needs to run, threaded by the
// definition orchestrator from one node to the next.
type Context struct {
	TraceID string
	RunID   string

	IncidentID string

	Payload    []byte
	SourceHint string

	// PreviousOutputs maps node id -> that node's Result.Output. A node may
	// read any previously-executed node's output; it must not mutate them.
	PreviousOutputs map[string]interface{}

	Environment string
	Source      string

	Config map[string]interface{}
}

func (nc Context) stringConfig(key string) string {
	if v, ok := nc.Config[key].(string); ok {
		return v
	}
	return ""
}

func (nc Context) stringSliceConfig(key string) []string {
	if raw, ok := nc.Config[key].([]string); ok {
		return raw
	}
	if anySlice, ok := nc.Config[key].([]interface{}); ok {
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

// Result is the uniform outcome of one node execution.
type Result struct {
	Output     interface{}
	Errors     []string
	Failed     bool
	Retryable  bool
	DurationMS int64
	Skip       bool
	SkipReason string
}
