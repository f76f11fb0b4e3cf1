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

// IngestNode adapts *stages.Ingest to the Node contract so a definition can
// place normalization anywhere in its node graph, not only as the fixed
// topology's first stage.
type IngestNode struct {
	Stage *stages.Ingest
}

func NewIngestNode(stage *stages.Ingest) *IngestNode {
	return &IngestNode{Stage: stage}
}

func (n *IngestNode) Type() types.NodeType { return types.NodeIngest }

func (n *IngestNode) Validate(config map[string]interface{}) []error {
	return nil
}

func (n *IngestNode) Execute(ctx context.Context, nc Context) Result {
	sc := stages.Context{
		TraceID:     nc.TraceID,
		RunID:       nc.RunID,
		IncidentID:  nc.IncidentID,
		RawPayload:  nc.Payload,
		SourceHint:  nc.SourceHint,
		Environment: nc.Environment,
		Source:      nc.Source,
		Config:      nc.Config,
	}
	r := n.Stage.Execute(ctx, sc)
	return fromStageResult(r)
}
