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

package types

// NodeType enumerates the pluggable node types a PipelineDefinition may use.
type NodeType string

const (
	NodeIngest       NodeType = "ingest"
	NodeContext      NodeType = "context"
	NodeIntelligence NodeType = "intelligence"
	NodeNotify       NodeType = "notify"
	NodeTransform    NodeType = "transform"
)

// NodeSpec is one node entry in a PipelineDefinition's JSON-described DAG.
type NodeSpec struct {
	ID               string                 `json:"id"`
	Type             NodeType               `json:"type"`
	Config           map[string]interface{} `json:"config"`
	Next             string                 `json:"next,omitempty"`
	Required         *bool                  `json:"required,omitempty"`
	SkipIfErrors     []string               `json:"skip_if_errors,omitempty"`
	SkipIfCondition  string                 `json:"skip_if_condition,omitempty"`
}

// IsRequired defaults to true when Required is unset.
func (n NodeSpec) IsRequired() bool {
	return n.Required == nil || *n.Required
}

// DefinitionDefaults are merged into every node that omits the field.
type DefinitionDefaults struct {
	MaxRetries     int `json:"max_retries"`
	TimeoutSeconds int `json:"timeout_seconds"`
}

// DefinitionConfig is the `config` JSON blob of a PipelineDefinition.
type DefinitionConfig struct {
	Version     string              `json:"version"`
	Description string              `json:"description,omitempty"`
	Defaults    DefinitionDefaults  `json:"defaults"`
	Nodes       []NodeSpec          `json:"nodes"`
}

// PipelineDefinition is a JSON-describable DAG for the definition
// orchestrator.
type PipelineDefinition struct {
	Name     string
	Version  int
	Config   DefinitionConfig
	Tags     []string
	IsActive bool
}
