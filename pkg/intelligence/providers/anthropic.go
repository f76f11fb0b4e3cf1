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

// Package providers implements intelligence.Provider against concrete LLM
// backends, each a thin translation layer between types.Incident/CheckResult
// and that backend's own SDK request/response shapes.
package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	apperrors "github.com/jordigilh/alertpipe/internal/errors"
	"github.com/jordigilh/alertpipe/pkg/types"
)

const AnthropicName = "anthropic"

// Anthropic analyzes an incident via Claude, prompted with the incident
// summary and check results, expecting one recommendation per line back.
type Anthropic struct {
	client anthropic.Client
	model  anthropic.Model
}

func NewAnthropic(apiKey string, model anthropic.Model) *Anthropic {
	return &Anthropic{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (a *Anthropic) Name() string { return AnthropicName }

func (a *Anthropic) Analyze(ctx context.Context, incident *types.Incident, checks []types.CheckResult) ([]types.Recommendation, int, error) {
	prompt := buildPrompt(incident, checks)

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: 512,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.KindTransient, "anthropic provider: request failed").WithRetryable(true)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	recs := parseRecommendations(text.String())
	tokens := int(resp.Usage.InputTokens + resp.Usage.OutputTokens)
	return recs, tokens, nil
}

func buildPrompt(incident *types.Incident, checks []types.CheckResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Incident: %s (severity=%s)\n", incident.Title, incident.Severity)
	b.WriteString("Check results:\n")
	for _, c := range checks {
		fmt.Fprintf(&b, "- %s on %s: %s (%s)\n", c.CheckerName, c.Hostname, c.Status, c.Message)
	}
	b.WriteString("\nRespond with one recommended remediation action per line.")
	return b.String()
}

func parseRecommendations(text string) []types.Recommendation {
	var recs []types.Recommendation
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		recs = append(recs, types.Recommendation{
			Action:     line,
			Confidence: 0.7,
			Reasoning:  "model-generated recommendation",
		})
	}
	return recs
}
