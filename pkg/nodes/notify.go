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

// NotifyNode delivers a message over the configured driver set.
type NotifyNode struct {
	Stage *stages.Notify
}

func NewNotifyNode(stage *stages.Notify) *NotifyNode {
	return &NotifyNode{Stage: stage}
}

func (n *NotifyNode) Type() types.NodeType { return types.NodeNotify }

func (n *NotifyNode) Validate(config map[string]interface{}) []error {
	return nil
}

func (n *NotifyNode) Execute(ctx context.Context, nc Context) Result {
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
