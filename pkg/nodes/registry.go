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
	"fmt"

	"github.com/jordigilh/alertpipe/pkg/types"
)

// Registry resolves a definition node's type to its handler, mirroring the
// Register/Get shape of pkg/alerts.Registry, pkg/checkers.Registry,
// pkg/notify.Registry and pkg/intelligence.Registry.
type Registry struct {
	nodes map[types.NodeType]Node
}

func NewRegistry() *Registry {
	return &Registry{nodes: make(map[types.NodeType]Node)}
}

func (r *Registry) Register(n Node) error {
	if _, exists := r.nodes[n.Type()]; exists {
		return fmt.Errorf("nodes: node type %q already registered", n.Type())
	}
	r.nodes[n.Type()] = n
	return nil
}

func (r *Registry) Get(nodeType types.NodeType) (Node, bool) {
	n, ok := r.nodes[nodeType]
	return n, ok
}
