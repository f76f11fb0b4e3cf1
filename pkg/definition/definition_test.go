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

package definition_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordigilh/alertpipe/pkg/definition"
	"github.com/jordigilh/alertpipe/pkg/nodes"
	"github.com/jordigilh/alertpipe/pkg/retry"
	"github.com/jordigilh/alertpipe/pkg/storage/memory"
	"github.com/jordigilh/alertpipe/pkg/types"
)

type fnNode struct {
	typ types.NodeType
	fn  func(ctx context.Context, nc nodes.Context) nodes.Result
}

func (f fnNode) Type() types.NodeType { return f.typ }
func (f fnNode) Validate(config map[string]interface{}) []error { return nil }
func (f fnNode) Execute(ctx context.Context, nc nodes.Context) nodes.Result { return f.fn(ctx, nc) }

func succeedingNode(typ types.NodeType, output interface{}) fnNode {
	return fnNode{typ: typ, fn: func(ctx context.Context, nc nodes.Context) nodes.Result {
		return nodes.Result{Output: output}
	}}
}

func newDef(nodeSpecs ...types.NodeSpec) *types.PipelineDefinition {
	return &types.PipelineDefinition{
		Name: "test",
		Config: types.DefinitionConfig{
			Version: "1",
			Nodes:   nodeSpecs,
		},
	}
}

func TestValidate_RejectsDuplicateNodeIDs(t *testing.T) {
	reg := nodes.NewRegistry()
	require.NoError(t, reg.Register(succeedingNode(types.NodeIngest, nil)))

	def := newDef(
		types.NodeSpec{ID: "a", Type: types.NodeIngest},
		types.NodeSpec{ID: "a", Type: types.NodeIngest},
	)
	errs := definition.Validate(def, reg)
	assert.NotEmpty(t, errs)
}

func TestValidate_RejectsUnknownNextReference(t *testing.T) {
	reg := nodes.NewRegistry()
	require.NoError(t, reg.Register(succeedingNode(types.NodeIngest, nil)))

	def := newDef(types.NodeSpec{ID: "a", Type: types.NodeIngest, Next: "missing"})
	errs := definition.Validate(def, reg)
	assert.NotEmpty(t, errs)
}

func TestValidate_RejectsUnregisteredType(t *testing.T) {
	reg := nodes.NewRegistry()
	def := newDef(types.NodeSpec{ID: "a", Type: types.NodeIngest})
	errs := definition.Validate(def, reg)
	assert.NotEmpty(t, errs)
}

func TestValidate_RequiresVersion(t *testing.T) {
	reg := nodes.NewRegistry()
	require.NoError(t, reg.Register(succeedingNode(types.NodeIngest, nil)))
	def := &types.PipelineDefinition{Config: types.DefinitionConfig{
		Nodes: []types.NodeSpec{{ID: "a", Type: types.NodeIngest}},
	}}
	errs := definition.Validate(def, reg)
	assert.NotEmpty(t, errs)
}

func TestValidate_RejectsEmptyNodes(t *testing.T) {
	reg := nodes.NewRegistry()
	def := newDef()
	errs := definition.Validate(def, reg)
	assert.NotEmpty(t, errs)
}

func TestValidate_AcceptsWellFormedDefinition(t *testing.T) {
	reg := nodes.NewRegistry()
	require.NoError(t, reg.Register(succeedingNode(types.NodeIngest, nil)))
	require.NoError(t, reg.Register(succeedingNode(types.NodeContext, nil)))

	def := newDef(
		types.NodeSpec{ID: "ingest", Type: types.NodeIngest, Next: "check"},
		types.NodeSpec{ID: "check", Type: types.NodeContext},
	)
	assert.Empty(t, definition.Validate(def, reg))
}

func TestValidateSchema_RejectsMissingNodes(t *testing.T) {
	err := definition.ValidateSchema([]byte(`{"version": "1"}`))
	assert.Error(t, err)
}

func TestValidateSchema_RejectsUnknownNodeType(t *testing.T) {
	err := definition.ValidateSchema([]byte(`{"version":"1","nodes":[{"id":"a","type":"bogus"}]}`))
	assert.Error(t, err)
}

func TestValidateSchema_RejectsEmptyNodes(t *testing.T) {
	err := definition.ValidateSchema([]byte(`{"version":"1","nodes":[]}`))
	assert.Error(t, err)
}

func TestValidateSchema_AcceptsWellFormedDocument(t *testing.T) {
	err := definition.ValidateSchema([]byte(`{"version":"1","nodes":[{"id":"a","type":"ingest"}]}`))
	assert.NoError(t, err)
}

func newRunner(registry *nodes.Registry) (*definition.Runner, *memory.Store) {
	store := memory.NewStore()
	r := definition.NewRunner(memory.PipelineRunRepo{S: store}, memory.StageExecutionRepo{S: store}, registry, logr.Discard())
	r.Backoff = retry.BackoffConfig{InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	return r, store
}

func TestRunner_RunsAllNodesInOrderAndCompletes(t *testing.T) {
	var order []string
	reg := nodes.NewRegistry()
	require.NoError(t, reg.Register(fnNode{typ: types.NodeIngest, fn: func(ctx context.Context, nc nodes.Context) nodes.Result {
		order = append(order, "a")
		return nodes.Result{}
	}}))
	require.NoError(t, reg.Register(fnNode{typ: types.NodeContext, fn: func(ctx context.Context, nc nodes.Context) nodes.Result {
		order = append(order, "b")
		return nodes.Result{}
	}}))

	r, _ := newRunner(reg)
	def := newDef(
		types.NodeSpec{ID: "a", Type: types.NodeIngest},
		types.NodeSpec{ID: "b", Type: types.NodeContext},
	)

	run, err := r.Run(context.Background(), def, "", "generic", "prod", []byte(`{}`), "")
	require.NoError(t, err)
	assert.Equal(t, types.RunCompleted, run.Status)
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestRunner_RequiredNodeFailureFailsRun(t *testing.T) {
	reg := nodes.NewRegistry()
	require.NoError(t, reg.Register(fnNode{typ: types.NodeIngest, fn: func(ctx context.Context, nc nodes.Context) nodes.Result {
		return nodes.Result{Failed: true, Errors: []string{"boom"}}
	}}))

	r, _ := newRunner(reg)
	def := newDef(types.NodeSpec{ID: "a", Type: types.NodeIngest})

	run, err := r.Run(context.Background(), def, "", "generic", "prod", []byte(`{}`), "")
	require.NoError(t, err)
	assert.Equal(t, types.RunFailed, run.Status)
}

func TestRunner_OptionalNodeFailureContinues(t *testing.T) {
	notRequired := false
	ran := false
	reg := nodes.NewRegistry()
	require.NoError(t, reg.Register(fnNode{typ: types.NodeIngest, fn: func(ctx context.Context, nc nodes.Context) nodes.Result {
		return nodes.Result{Failed: true, Errors: []string{"boom"}}
	}}))
	require.NoError(t, reg.Register(fnNode{typ: types.NodeContext, fn: func(ctx context.Context, nc nodes.Context) nodes.Result {
		ran = true
		return nodes.Result{}
	}}))

	r, _ := newRunner(reg)
	def := newDef(
		types.NodeSpec{ID: "a", Type: types.NodeIngest, Required: &notRequired},
		types.NodeSpec{ID: "b", Type: types.NodeContext},
	)

	run, err := r.Run(context.Background(), def, "", "generic", "prod", []byte(`{}`), "")
	require.NoError(t, err)
	assert.Equal(t, types.RunCompleted, run.Status)
	assert.True(t, ran)
}

func TestRunner_SkipIfErrorsSkipsDependentNode(t *testing.T) {
	ran := false
	reg := nodes.NewRegistry()
	require.NoError(t, reg.Register(fnNode{typ: types.NodeIngest, fn: func(ctx context.Context, nc nodes.Context) nodes.Result {
		return nodes.Result{Errors: []string{"non-fatal"}}
	}}))
	require.NoError(t, reg.Register(fnNode{typ: types.NodeContext, fn: func(ctx context.Context, nc nodes.Context) nodes.Result {
		ran = true
		return nodes.Result{}
	}}))

	r, _ := newRunner(reg)
	def := newDef(
		types.NodeSpec{ID: "a", Type: types.NodeIngest},
		types.NodeSpec{ID: "b", Type: types.NodeContext, SkipIfErrors: []string{"a"}},
	)

	run, err := r.Run(context.Background(), def, "", "generic", "prod", []byte(`{}`), "")
	require.NoError(t, err)
	assert.Equal(t, types.RunCompleted, run.Status)
	assert.False(t, ran)
}

func TestRunner_RetriesRetryableNodeFailureThenSucceeds(t *testing.T) {
	attempts := 0
	reg := nodes.NewRegistry()
	require.NoError(t, reg.Register(fnNode{typ: types.NodeIngest, fn: func(ctx context.Context, nc nodes.Context) nodes.Result {
		attempts++
		if attempts == 1 {
			return nodes.Result{Failed: true, Retryable: true, Errors: []string{"transient"}}
		}
		return nodes.Result{}
	}}))

	r, _ := newRunner(reg)
	def := newDef(types.NodeSpec{ID: "a", Type: types.NodeIngest})

	run, err := r.Run(context.Background(), def, "", "generic", "prod", []byte(`{}`), "")
	require.NoError(t, err)
	assert.Equal(t, types.RunCompleted, run.Status)
	assert.Equal(t, 2, attempts)
}
