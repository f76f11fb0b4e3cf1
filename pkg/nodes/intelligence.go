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

// IntelligenceNode runs provider analysis with local fallback.
type IntelligenceNode struct {
	Stage *stages.Analyze
}

func NewIntelligenceNode(stage *stages.Analyze) *IntelligenceNode {
	return &IntelligenceNode{Stage: stage}
}

func (n *IntelligenceNode) Type() types.NodeType { return types.NodeIntelligence }

func (n *IntelligenceNode) Validate(config map[string]interface{}) []error {
	return nil
}

func (n *IntelligenceNode) Execute(ctx context.Context, nc Context) Result {
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
