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
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	apperrors "github.com/jordigilh/alertpipe/internal/errors"
	"github.com/jordigilh/alertpipe/pkg/types"
)

// TransformNode is a pure projection/filter over a source node's output
// (§4.4): extract a dotted-path value, optionally filter an array by
// priority, optionally remap fields into a new shape. It never calls out and
// never fails retryably.
type TransformNode struct{}

func NewTransformNode() *TransformNode { return &TransformNode{} }

func (n *TransformNode) Type() types.NodeType { return types.NodeTransform }

func (n *TransformNode) Validate(config map[string]interface{}) []error {
	var errs []error
	if _, ok := config["source_node"].(string); !ok {
		errs = append(errs, fmt.Errorf("transform node: config.source_node is required"))
	}
	if raw, ok := config["mapping"]; ok {
		if _, ok := raw.(map[string]interface{}); !ok {
			errs = append(errs, fmt.Errorf("transform node: config.mapping must be an object"))
		}
	}
	return errs
}

// TransformOutput holds the resulting JSON document, decoded to a generic
// Go value so downstream nodes/templates can range over it like any other
// node output.
type TransformOutput struct {
	Result interface{}
}

func (n *TransformNode) Execute(ctx context.Context, nc Context) Result {
	start := time.Now()

	sourceNode := nc.stringConfig("source_node")
	source, ok := nc.PreviousOutputs[sourceNode]
	if sourceNode == "" || !ok {
		return Result{
			Errors:     []string{fmt.Sprintf("transform node: source node %q has no output", sourceNode)},
			Failed:     true,
			Retryable:  false,
			DurationMS: time.Since(start).Milliseconds(),
		}
	}

	raw, err := json.Marshal(source)
	if err != nil {
		return Result{
			Errors:     []string{apperrors.Wrap(err, apperrors.KindValidation, "transform node: marshal source output").Error()},
			Failed:     true,
			Retryable:  false,
			DurationMS: time.Since(start).Milliseconds(),
		}
	}

	body := string(raw)

	if extract := nc.stringConfig("extract"); extract != "" {
		body = gjson.Get(body, extract).Raw
		if body == "" {
			body = "null"
		}
	}

	if priorities := nc.stringSliceConfig("filter_priority"); len(priorities) > 0 && gjson.Parse(body).IsArray() {
		body = filterByPriority(body, priorities)
	}

	if mappingRaw, ok := nc.Config["mapping"].(map[string]interface{}); ok {
		mapped := "{}"
		for target, srcPath := range mappingRaw {
			path, ok := srcPath.(string)
			if !ok {
				continue
			}
			value := gjson.Get(body, path)
			var setErr error
			mapped, setErr = sjson.Set(mapped, target, value.Value())
			if setErr != nil {
				return Result{
					Errors:     []string{apperrors.Wrap(setErr, apperrors.KindValidation, "transform node: apply mapping").Error()},
					Failed:     true,
					Retryable:  false,
					DurationMS: time.Since(start).Milliseconds(),
				}
			}
		}
		body = mapped
	}

	var result interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		return Result{
			Errors:     []string{apperrors.Wrap(err, apperrors.KindValidation, "transform node: decode result").Error()},
			Failed:     true,
			Retryable:  false,
			DurationMS: time.Since(start).Milliseconds(),
		}
	}

	return Result{
		Output:     TransformOutput{Result: result},
		DurationMS: time.Since(start).Milliseconds(),
	}
}

// filterByPriority keeps array elements whose "status"/"severity" field
// matches one of the allowed values (case-insensitive).
func filterByPriority(body string, allowed []string) string {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		allowedSet[strings.ToLower(a)] = struct{}{}
	}

	out := "[]"
	idx := 0
	gjson.Parse(body).ForEach(func(_, value gjson.Result) bool {
		field := value.Get("status")
		if !field.Exists() {
			field = value.Get("severity")
		}
		if _, ok := allowedSet[strings.ToLower(field.String())]; ok {
			out, _ = sjson.Set(out, fmt.Sprintf("%d", idx), value.Value())
			idx++
		}
		return true
	})
	return out
}
