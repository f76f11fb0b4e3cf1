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

// Package intelligence implements the intelligence provider registry: the
// local rule-engine fallback (always available, never fails to instantiate)
// and concrete LLM-backed providers, selected by the analyze stage/node per
// §4.2's "select active provider, or fall back to local."
package intelligence

import (
	"context"

	"github.com/jordigilh/alertpipe/pkg/types"
)

// Provider produces recommendations for an incident given its check results.
type Provider interface {
	Name() string
	Analyze(ctx context.Context, incident *types.Incident, checks []types.CheckResult) ([]types.Recommendation, int, error)
}

const LocalProviderName = "local"
