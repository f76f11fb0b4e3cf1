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

package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jordigilh/alertpipe/pkg/types"
)

func TestBuildPrompt_IncludesIncidentAndCheckDetails(t *testing.T) {
	incident := &types.Incident{Title: "disk pressure on db-1", Severity: types.SeverityCritical}
	checks := []types.CheckResult{
		{CheckerName: "disk", Hostname: "db-1", Status: types.CheckCritical, Message: "92% used"},
	}

	prompt := buildPrompt(incident, checks)

	assert.Contains(t, prompt, "disk pressure on db-1")
	assert.Contains(t, prompt, "disk on db-1")
	assert.Contains(t, prompt, "92% used")
}

func TestParseRecommendations_OneActionPerNonEmptyLine(t *testing.T) {
	recs := parseRecommendations("restart service\n\n  scale up replicas  \n")

	assert := assert.New(t)
	if assert.Len(recs, 2) {
		assert.Equal("restart service", recs[0].Action)
		assert.Equal("scale up replicas", recs[1].Action)
		assert.Greater(recs[0].Confidence, 0.0)
	}
}

func TestParseRecommendations_BlankInputYieldsNoRecommendations(t *testing.T) {
	recs := parseRecommendations("   \n\n  ")
	assert.Empty(t, recs)
}
