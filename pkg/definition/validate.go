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

// Package definition validates and executes a types.PipelineDefinition: the
// JSON-described DAG of §4.5, admitted against a schema (schema.go),
// structurally validated (this file), then driven node-by-node (runner.go).
package definition

import (
	"fmt"

	"github.com/jordigilh/alertpipe/pkg/nodes"
	"github.com/jordigilh/alertpipe/pkg/types"
)

// Validate runs every §4.5 pre-execution check: unique node ids, every
// `next` reference resolves, every node type is registered, every node's own
// Validate(config) passes, and version is present. It never mutates def.
func Validate(def *types.PipelineDefinition, registry *nodes.Registry) []error {
	var errs []error

	if def.Config.Version == "" {
		errs = append(errs, fmt.Errorf("definition: config.version is required"))
	}
	if len(def.Config.Nodes) == 0 {
		errs = append(errs, fmt.Errorf("definition: nodes must be non-empty"))
	}

	ids := make(map[string]struct{}, len(def.Config.Nodes))
	for _, n := range def.Config.Nodes {
		if n.ID == "" {
			errs = append(errs, fmt.Errorf("definition: node with empty id"))
			continue
		}
		if _, dup := ids[n.ID]; dup {
			errs = append(errs, fmt.Errorf("definition: duplicate node id %q", n.ID))
			continue
		}
		ids[n.ID] = struct{}{}
	}

	for _, n := range def.Config.Nodes {
		if n.Next != "" {
			if _, ok := ids[n.Next]; !ok {
				errs = append(errs, fmt.Errorf("definition: node %q has next %q which does not exist", n.ID, n.Next))
			}
		}
		for _, dep := range n.SkipIfErrors {
			if _, ok := ids[dep]; !ok {
				errs = append(errs, fmt.Errorf("definition: node %q skip_if_errors references unknown node %q", n.ID, dep))
			}
		}

		handler, ok := registry.Get(n.Type)
		if !ok {
			errs = append(errs, fmt.Errorf("definition: node %q has unregistered type %q", n.ID, n.Type))
			continue
		}
		for _, verr := range handler.Validate(n.Config) {
			errs = append(errs, fmt.Errorf("definition: node %q: %w", n.ID, verr))
		}
	}

	return errs
}
