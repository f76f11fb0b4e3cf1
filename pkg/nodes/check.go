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
	"context"

	"github.com/jordigilh/alertpipe/pkg/stages"
	"github.com/jordigilh/alertpipe/pkg/types"
)

// ContextNode runs the health-checker fan-out (named "context" in the
// definition schema, since it gathers surrounding context for an incident).
// Named ContextNode rather than CheckNode to avoid colliding with this
// package's own Context type.
type ContextNode struct {
	Stage *stages.Check
}

func NewContextNode(stage *stages.Check) *ContextNode {
	return &ContextNode{Stage: stage}
}

func (n *ContextNode) Type() types.NodeType { return types.NodeContext }

func (n *ContextNode) Validate(config map[string]interface{}) []error {
	return nil
}

func (n *ContextNode) Execute(ctx context.Context, nc Context) Result {
	sc := stages.Context{
		TraceID:         nc.TraceID,
		RunID:           nc.RunID,
		IncidentID:      nc.IncidentID,
		Environment:     nc.Environment,
		Source:          nc.Source,
		Config:          nc.Config,
		PreviousOutputs: stagePreviousOutputs(nc),
	}
	return fromStageResult(n.Stage.Execute(ctx, sc))
}
