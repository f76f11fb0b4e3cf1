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

package nodes_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordigilh/alertpipe/pkg/nodes"
	"github.com/jordigilh/alertpipe/pkg/types"
)

type stubNode struct {
	typ types.NodeType
}

func (s stubNode) Type() types.NodeType                            { return s.typ }
func (s stubNode) Validate(config map[string]interface{}) []error  { return nil }
func (s stubNode) Execute(ctx context.Context, nc nodes.Context) nodes.Result {
	return nodes.Result{}
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := nodes.NewRegistry()
	require.NoError(t, r.Register(stubNode{typ: types.NodeIngest}))

	n, ok := r.Get(types.NodeIngest)
	require.True(t, ok)
	assert.Equal(t, types.NodeIngest, n.Type())

	_, ok = r.Get(types.NodeNotify)
	assert.False(t, ok)
}

func TestRegistry_RejectsDuplicateType(t *testing.T) {
	r := nodes.NewRegistry()
	require.NoError(t, r.Register(stubNode{typ: types.NodeIngest}))
	err := r.Register(stubNode{typ: types.NodeIngest})
	assert.Error(t, err)
}

func TestTransformNode_ValidateRequiresSourceNode(t *testing.T) {
	tn := nodes.NewTransformNode()
	errs := tn.Validate(map[string]interface{}{})
	assert.NotEmpty(t, errs)

	errs = tn.Validate(map[string]interface{}{"source_node": "check"})
	assert.Empty(t, errs)
}

func TestTransformNode_ExtractsDottedPath(t *testing.T) {
	tn := nodes.NewTransformNode()
	nc := nodes.Context{
		Config: map[string]interface{}{"source_node": "check", "extract": "Results"},
		PreviousOutputs: map[string]interface{}{
			"check": map[string]interface{}{
				"Results": map[string]interface{}{
					"disk": map[string]interface{}{"status": "ok"},
				},
			},
		},
	}
	res := tn.Execute(context.Background(), nc)
	require.False(t, res.Failed)
	out, ok := res.Output.(nodes.TransformOutput)
	require.True(t, ok)
	assert.NotNil(t, out.Result)
}

func TestTransformNode_FailsWhenSourceNodeMissing(t *testing.T) {
	tn := nodes.NewTransformNode()
	nc := nodes.Context{
		Config:          map[string]interface{}{"source_node": "missing"},
		PreviousOutputs: map[string]interface{}{},
	}
	res := tn.Execute(context.Background(), nc)
	assert.True(t, res.Failed)
	assert.False(t, res.Retryable)
}

func TestTransformNode_FiltersArrayByPriority(t *testing.T) {
	tn := nodes.NewTransformNode()
	nc := nodes.Context{
		Config: map[string]interface{}{
			"source_node":     "checks",
			"filter_priority": []string{"critical"},
		},
		PreviousOutputs: map[string]interface{}{
			"checks": []map[string]interface{}{
				{"status": "ok"},
				{"status": "critical"},
			},
		},
	}
	res := tn.Execute(context.Background(), nc)
	require.False(t, res.Failed)
	out, ok := res.Output.(nodes.TransformOutput)
	require.True(t, ok)
	arr, ok := out.Result.([]interface{})
	require.True(t, ok)
	assert.Len(t, arr, 1)
}

func TestTransformNode_AppliesMapping(t *testing.T) {
	tn := nodes.NewTransformNode()
	nc := nodes.Context{
		Config: map[string]interface{}{
			"source_node": "checks",
			"mapping":     map[string]interface{}{"status": "Status"},
		},
		PreviousOutputs: map[string]interface{}{
			"checks": map[string]interface{}{"Status": "ok"},
		},
	}
	res := tn.Execute(context.Background(), nc)
	require.False(t, res.Failed)
	out, ok := res.Output.(nodes.TransformOutput)
	require.True(t, ok)
	m, ok := out.Result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ok", m["status"])
}
